// Package config provides configuration loading for craftd.
//
// Configuration precedence (highest to lowest):
//  1. Environment variables (CRAFTD_SERVER_PORT, CRAFTD_LLM_MODEL, ...)
//  2. YAML config file
//  3. Hardcoded defaults
package config

import "fmt"

// Config is the root configuration for the craftd daemon.
type Config struct {
	Server    ServerConfig    `koanf:"server"`
	Workspace WorkspaceConfig `koanf:"workspace"`
	LLM       LLMConfig       `koanf:"llm"`
	NATS      NATSConfig      `koanf:"nats"`
	Pipeline  PipelineConfig  `koanf:"pipeline"`
	Logging   LoggingConfig   `koanf:"logging"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Host            string   `koanf:"host"`
	Port            int      `koanf:"port"`
	ShutdownTimeout Duration `koanf:"shutdown_timeout"`
}

// WorkspaceConfig holds artifact store settings.
type WorkspaceConfig struct {
	// Root is the directory that holds one subdirectory per project.
	Root string `koanf:"root"`

	// MinFreeMB is the free-space floor checked before creating a
	// project directory.
	MinFreeMB int64 `koanf:"min_free_mb"`

	// WriteMinFreeMB is the lower free-space floor checked before each
	// file write.
	WriteMinFreeMB int64 `koanf:"write_min_free_mb"`
}

// LLMConfig holds settings for the generation provider.
type LLMConfig struct {
	// BaseURL is an OpenAI-compatible endpoint. Groq's compatibility
	// endpoint is the default.
	BaseURL string `koanf:"base_url"`
	Model   string `koanf:"model"`
	APIKey  Secret `koanf:"api_key"`

	// MaxConcurrent bounds in-flight provider calls across all
	// projects.
	MaxConcurrent int `koanf:"max_concurrent"`

	// RequestsPerSecond and Burst feed the client-side rate limiter.
	RequestsPerSecond float64 `koanf:"requests_per_second"`
	Burst             int     `koanf:"burst"`

	// MaxRetries bounds retries on rate-limited calls.
	MaxRetries int `koanf:"max_retries"`
}

// NATSConfig holds progress-sink transport settings.
type NATSConfig struct {
	// URL of an external NATS server. Ignored when Embedded is true.
	URL string `koanf:"url"`

	// Embedded runs an in-process NATS server instead of connecting
	// to an external one.
	Embedded bool `koanf:"embedded"`
}

// PipelineConfig holds orchestrator timeouts and bounds.
type PipelineConfig struct {
	PlanningTimeout     Duration `koanf:"planning_timeout"`
	GenerationTimeout   Duration `koanf:"generation_timeout"`
	EnforcementTimeout  Duration `koanf:"enforcement_timeout"`
	RegenerationTimeout Duration `koanf:"regeneration_timeout"`
	TestGenTimeout      Duration `koanf:"test_gen_timeout"`
	TestRunTimeout      Duration `koanf:"test_run_timeout"`
	FixTimeout          Duration `koanf:"fix_timeout"`
	SabotageTimeout     Duration `koanf:"sabotage_timeout"`
	AnalyzeTimeout      Duration `koanf:"analyze_timeout"`
	InstallTimeout      Duration `koanf:"install_timeout"`

	// FixAttempts bounds the test-failure fix loop per file.
	FixAttempts int `koanf:"fix_attempts"`

	// CreateRetries bounds whole-pipeline retries in the background
	// creation task.
	CreateRetries int `koanf:"create_retries"`

	// PersistQueueSize bounds the snapshot-write queue.
	PersistQueueSize int `koanf:"persist_queue_size"`
}

// LoggingConfig holds logger settings.
type LoggingConfig struct {
	Level  string `koanf:"level"`  // debug, info, warn, error
	Format string `koanf:"format"` // json or console
}

// Validate checks for configuration values that cannot work.
func (c *Config) Validate() error {
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("server.port out of range: %d", c.Server.Port)
	}
	if c.Workspace.Root == "" {
		return fmt.Errorf("workspace.root is required")
	}
	if c.Workspace.WriteMinFreeMB > c.Workspace.MinFreeMB {
		return fmt.Errorf("workspace.write_min_free_mb (%d) must not exceed workspace.min_free_mb (%d)",
			c.Workspace.WriteMinFreeMB, c.Workspace.MinFreeMB)
	}
	if c.LLM.MaxConcurrent < 1 {
		return fmt.Errorf("llm.max_concurrent must be at least 1")
	}
	if c.Pipeline.FixAttempts < 0 {
		return fmt.Errorf("pipeline.fix_attempts cannot be negative")
	}
	switch c.Logging.Format {
	case "json", "console":
	default:
		return fmt.Errorf("logging.format must be json or console, got %q", c.Logging.Format)
	}
	return nil
}
