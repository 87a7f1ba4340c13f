package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/rawbytes"
	"github.com/knadh/koanf/v2"
)

const (
	// envPrefix namespaces craftd environment variables.
	envPrefix = "CRAFTD_"

	maxConfigFileSize = 1024 * 1024 // 1MB
)

// Load reads configuration from the YAML file at configPath (skipped
// when empty or missing), then overrides with CRAFTD_* environment
// variables, then applies defaults and validates.
//
// Environment variables map to config keys by stripping the prefix,
// lowercasing and splitting on the first underscore:
//
//	CRAFTD_SERVER_PORT        -> server.port
//	CRAFTD_LLM_API_KEY        -> llm.api_key
//	CRAFTD_WORKSPACE_ROOT     -> workspace.root
//	CRAFTD_PIPELINE_FIX_ATTEMPTS -> pipeline.fix_attempts
func Load(configPath string) (*Config, error) {
	var fileContent []byte
	if configPath != "" {
		info, err := os.Stat(configPath)
		switch {
		case os.IsNotExist(err):
			// Missing file is fine; defaults + env apply.
		case err != nil:
			return nil, fmt.Errorf("stat config file: %w", err)
		case info.Size() > maxConfigFileSize:
			return nil, fmt.Errorf("config file %s exceeds %d bytes", configPath, maxConfigFileSize)
		default:
			fileContent, err = os.ReadFile(configPath)
			if err != nil {
				return nil, fmt.Errorf("read config file: %w", err)
			}
		}
	}
	return LoadBytes(fileContent)
}

// LoadBytes loads configuration from raw YAML content plus the
// environment. Tests use this directly with the rawbytes provider.
func LoadBytes(yamlContent []byte) (*Config, error) {
	k := koanf.New(".")

	if len(yamlContent) > 0 {
		if err := k.Load(rawbytes.Provider(yamlContent), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("parse config yaml: %w", err)
		}
	}

	if err := k.Load(env.Provider(envPrefix, ".", func(s string) string {
		// CRAFTD_SERVER_PORT -> server.port: section is everything up
		// to the first underscore, the rest keeps its underscores.
		lower := strings.ToLower(strings.TrimPrefix(s, envPrefix))
		parts := strings.SplitN(lower, "_", 2)
		if len(parts) == 1 {
			return lower
		}
		return parts[0] + "." + parts[1]
	}), nil); err != nil {
		return nil, fmt.Errorf("load environment variables: %w", err)
	}

	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	applyDefaults(&cfg)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return &cfg, nil
}

// applyDefaults fills zero values with working defaults.
func applyDefaults(cfg *Config) {
	if cfg.Server.Host == "" {
		cfg.Server.Host = "localhost"
	}
	if cfg.Server.Port == 0 {
		cfg.Server.Port = 8000
	}
	if cfg.Server.ShutdownTimeout == 0 {
		cfg.Server.ShutdownTimeout = Duration(10 * time.Second)
	}

	if cfg.Workspace.Root == "" {
		cfg.Workspace.Root = "./workspace"
	}
	if cfg.Workspace.MinFreeMB == 0 {
		cfg.Workspace.MinFreeMB = 100
	}
	if cfg.Workspace.WriteMinFreeMB == 0 {
		cfg.Workspace.WriteMinFreeMB = 50
	}

	if cfg.LLM.BaseURL == "" {
		cfg.LLM.BaseURL = "https://api.groq.com/openai/v1"
	}
	if cfg.LLM.Model == "" {
		cfg.LLM.Model = "llama-3.3-70b-versatile"
	}
	if cfg.LLM.MaxConcurrent == 0 {
		cfg.LLM.MaxConcurrent = 3
	}
	if cfg.LLM.RequestsPerSecond == 0 {
		cfg.LLM.RequestsPerSecond = 2
	}
	if cfg.LLM.Burst == 0 {
		cfg.LLM.Burst = 3
	}
	if cfg.LLM.MaxRetries == 0 {
		cfg.LLM.MaxRetries = 3
	}

	if cfg.NATS.URL == "" {
		cfg.NATS.URL = "nats://localhost:4222"
	}

	p := &cfg.Pipeline
	setDuration := func(d *Duration, def time.Duration) {
		if *d == 0 {
			*d = Duration(def)
		}
	}
	setDuration(&p.PlanningTimeout, 90*time.Second)
	setDuration(&p.GenerationTimeout, 60*time.Second)
	setDuration(&p.EnforcementTimeout, 30*time.Second)
	setDuration(&p.RegenerationTimeout, 60*time.Second)
	setDuration(&p.TestGenTimeout, 60*time.Second)
	setDuration(&p.TestRunTimeout, 30*time.Second)
	setDuration(&p.FixTimeout, 60*time.Second)
	setDuration(&p.SabotageTimeout, 45*time.Second)
	setDuration(&p.AnalyzeTimeout, 120*time.Second)
	setDuration(&p.InstallTimeout, 120*time.Second)
	if p.FixAttempts == 0 {
		p.FixAttempts = 2
	}
	if p.CreateRetries == 0 {
		p.CreateRetries = 3
	}
	if p.PersistQueueSize == 0 {
		p.PersistQueueSize = 64
	}

	if cfg.Logging.Level == "" {
		cfg.Logging.Level = "info"
	}
	if cfg.Logging.Format == "" {
		cfg.Logging.Format = "json"
	}
}
