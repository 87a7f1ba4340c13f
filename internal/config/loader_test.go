package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadBytes_Defaults(t *testing.T) {
	cfg, err := LoadBytes(nil)
	require.NoError(t, err)

	assert.Equal(t, "localhost", cfg.Server.Host)
	assert.Equal(t, 8000, cfg.Server.Port)
	assert.Equal(t, "./workspace", cfg.Workspace.Root)
	assert.Equal(t, int64(100), cfg.Workspace.MinFreeMB)
	assert.Equal(t, int64(50), cfg.Workspace.WriteMinFreeMB)
	assert.Equal(t, "https://api.groq.com/openai/v1", cfg.LLM.BaseURL)
	assert.Equal(t, 3, cfg.LLM.MaxConcurrent)
	assert.Equal(t, 2, cfg.Pipeline.FixAttempts)
	assert.Equal(t, 3, cfg.Pipeline.CreateRetries)
	assert.Equal(t, 90*time.Second, cfg.Pipeline.PlanningTimeout.Duration())
	assert.Equal(t, "json", cfg.Logging.Format)
}

func TestLoadBytes_YAMLOverrides(t *testing.T) {
	yaml := []byte(`
server:
  port: 9100
workspace:
  root: /tmp/craftd-ws
pipeline:
  fix_attempts: 4
  planning_timeout: 45s
logging:
  format: console
`)
	cfg, err := LoadBytes(yaml)
	require.NoError(t, err)

	assert.Equal(t, 9100, cfg.Server.Port)
	assert.Equal(t, "/tmp/craftd-ws", cfg.Workspace.Root)
	assert.Equal(t, 4, cfg.Pipeline.FixAttempts)
	assert.Equal(t, 45*time.Second, cfg.Pipeline.PlanningTimeout.Duration())
	assert.Equal(t, "console", cfg.Logging.Format)
}

func TestLoadBytes_EnvOverridesYAML(t *testing.T) {
	t.Setenv("CRAFTD_SERVER_PORT", "9999")
	t.Setenv("CRAFTD_LLM_MODEL", "llama-3.1-8b-instant")

	yaml := []byte("server:\n  port: 9100\n")
	cfg, err := LoadBytes(yaml)
	require.NoError(t, err)

	assert.Equal(t, 9999, cfg.Server.Port)
	assert.Equal(t, "llama-3.1-8b-instant", cfg.LLM.Model)
}

func TestLoadBytes_InvalidConfig(t *testing.T) {
	tests := []struct {
		name string
		yaml string
	}{
		{"port out of range", "server:\n  port: 70000\n"},
		{"bad log format", "logging:\n  format: xml\n"},
		{"write floor above dir floor", "workspace:\n  min_free_mb: 10\n  write_min_free_mb: 20\n"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := LoadBytes([]byte(tt.yaml))
			assert.Error(t, err)
		})
	}
}

func TestSecretRedaction(t *testing.T) {
	s := Secret("super-secret")
	assert.Equal(t, "[REDACTED]", s.String())
	assert.Equal(t, "super-secret", s.Value())
	assert.True(t, s.IsSet())

	data, err := s.MarshalJSON()
	require.NoError(t, err)
	assert.NotContains(t, string(data), "super-secret")
}

func TestDurationRoundTrip(t *testing.T) {
	var d Duration
	require.NoError(t, d.UnmarshalText([]byte("90s")))
	assert.Equal(t, 90*time.Second, d.Duration())

	text, err := d.MarshalText()
	require.NoError(t, err)
	assert.Equal(t, "1m30s", string(text))

	assert.Error(t, d.UnmarshalText([]byte("-1s")))
}
