// Package config provides configuration management for triad.
//
// Configuration is loaded from YAML files with environment variable
// overrides (TRIAD_ prefix). All durations accept Go duration syntax
// ("30s", "5m"). API keys and tokens are declared as Secret so they
// never appear in logs or serialized output.
package config

import (
	"fmt"
	"path/filepath"
	"time"
)

// Config is the root configuration for the triad daemon.
type Config struct {
	Server    ServerConfig    `koanf:"server"`
	Logging   LoggingConfig   `koanf:"logging"`
	Telemetry TelemetryConfig `koanf:"telemetry"`
	Models    []ModelConfig   `koanf:"models"`
	Agents    []AgentConfig   `koanf:"agents"`
	Workspace WorkspaceConfig `koanf:"workspace"`
	Terminal  TerminalConfig  `koanf:"terminal"`
	Search    SearchConfig    `koanf:"search"`
	Events    EventsConfig    `koanf:"events"`
	Secrets   SecretsConfig   `koanf:"secrets"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Host            string   `koanf:"host"`
	Port            int      `koanf:"port"`
	ReadTimeout     Duration `koanf:"read_timeout"`
	WriteTimeout    Duration `koanf:"write_timeout"`
	ShutdownTimeout Duration `koanf:"shutdown_timeout"`
}

// LoggingConfig holds the log settings surfaced in the daemon config.
// The logging package carries its own richer configuration; the daemon
// maps these fields onto it at startup.
type LoggingConfig struct {
	Level  string `koanf:"level"`
	Format string `koanf:"format"`
}

// TelemetryConfig holds OpenTelemetry export settings.
type TelemetryConfig struct {
	Enabled     bool    `koanf:"enabled"`
	ServiceName string  `koanf:"service_name"`
	Endpoint    string  `koanf:"endpoint"`
	Protocol    string  `koanf:"protocol"`
	Insecure    bool    `koanf:"insecure"`
	SampleRate  float64 `koanf:"sample_rate"`
}

// ModelConfig describes one AI model endpoint. Agents address models
// by ID. List entries are active unless disabled is set.
type ModelConfig struct {
	ID                string   `koanf:"id"`
	Provider          string   `koanf:"provider"`
	Endpoint          string   `koanf:"endpoint"`
	Model             string   `koanf:"model"`
	APIKey            Secret   `koanf:"api_key"`
	Temperature       float64  `koanf:"temperature"`
	MaxTokens         int      `koanf:"max_tokens"`
	Timeout           Duration `koanf:"timeout"`
	RequestsPerMinute int      `koanf:"requests_per_minute"`
	MaxRetries        int      `koanf:"max_retries"`
	Disabled          bool     `koanf:"disabled"`
}

// AgentConfig binds a pipeline role to a model. List entries are
// active unless disabled is set.
type AgentConfig struct {
	ID           string `koanf:"id"`
	Role         string `koanf:"role"`
	SystemPrompt string `koanf:"system_prompt"`
	ModelID      string `koanf:"model_id"`
	Disabled     bool   `koanf:"disabled"`
}

// WorkspaceConfig holds file store settings. An empty root keeps the
// store purely in memory.
type WorkspaceConfig struct {
	Root     string   `koanf:"root"`
	Watch    bool     `koanf:"watch"`
	Debounce Duration `koanf:"debounce"`
}

// TerminalConfig holds command execution settings. Execution is off
// unless explicitly enabled; without it, commands produce simulated
// output instead of running anything.
type TerminalConfig struct {
	Enabled        bool     `koanf:"enabled"`
	WorkDir        string   `koanf:"work_dir"`
	Timeout        Duration `koanf:"timeout"`
	MaxConcurrent  int      `koanf:"max_concurrent"`
	MaxOutputBytes int      `koanf:"max_output_bytes"`
	HistorySize    int      `koanf:"history_size"`
}

// SearchConfig holds web search settings.
type SearchConfig struct {
	Provider    string   `koanf:"provider"`
	GitHubToken Secret   `koanf:"github_token"`
	MaxResults  int      `koanf:"max_results"`
	Timeout     Duration `koanf:"timeout"`
}

// EventsConfig holds event bus settings. An empty URL selects the
// in-process bus; otherwise the URL is dialed as a NATS server.
type EventsConfig struct {
	URL string `koanf:"url"`
}

// SecretsConfig holds prompt scrubbing settings.
type SecretsConfig struct {
	Enabled    bool   `koanf:"enabled"`
	ConfigPath string `koanf:"config_path"`
}

var (
	validRoles = map[string]bool{
		"planner":     true,
		"verifier":    true,
		"implementer": true,
	}
	validProviders = map[string]bool{
		"anthropic": true,
		"openai":    true,
	}
	validLogLevels = map[string]bool{
		"trace": true,
		"debug": true,
		"info":  true,
		"warn":  true,
		"error": true,
	}
	validSearchProviders = map[string]bool{
		"duckduckgo": true,
		"github":     true,
	}
)

// applyDefaults fills in zero values with sensible defaults.
func applyDefaults(cfg *Config) {
	if cfg.Server.Host == "" {
		cfg.Server.Host = "localhost"
	}
	if cfg.Server.Port == 0 {
		cfg.Server.Port = 9090
	}
	if cfg.Server.ReadTimeout == 0 {
		cfg.Server.ReadTimeout = Duration(30 * time.Second)
	}
	if cfg.Server.WriteTimeout == 0 {
		cfg.Server.WriteTimeout = Duration(30 * time.Second)
	}
	if cfg.Server.ShutdownTimeout == 0 {
		cfg.Server.ShutdownTimeout = Duration(10 * time.Second)
	}

	if cfg.Logging.Level == "" {
		cfg.Logging.Level = "info"
	}
	if cfg.Logging.Format == "" {
		cfg.Logging.Format = "json"
	}

	if cfg.Telemetry.ServiceName == "" {
		cfg.Telemetry.ServiceName = "triad"
	}
	if cfg.Telemetry.Protocol == "" {
		cfg.Telemetry.Protocol = "grpc"
	}
	if cfg.Telemetry.SampleRate == 0 {
		cfg.Telemetry.SampleRate = 1.0
	}

	for i := range cfg.Models {
		m := &cfg.Models[i]
		if m.MaxTokens == 0 {
			m.MaxTokens = 4096
		}
		if m.Timeout == 0 {
			m.Timeout = Duration(60 * time.Second)
		}
		if m.RequestsPerMinute == 0 {
			m.RequestsPerMinute = 60
		}
		if m.MaxRetries == 0 {
			m.MaxRetries = 3
		}
	}

	if cfg.Workspace.Debounce == 0 {
		cfg.Workspace.Debounce = Duration(500 * time.Millisecond)
	}

	if cfg.Terminal.Timeout == 0 {
		cfg.Terminal.Timeout = Duration(30 * time.Second)
	}
	if cfg.Terminal.MaxConcurrent == 0 {
		cfg.Terminal.MaxConcurrent = 4
	}
	if cfg.Terminal.MaxOutputBytes == 0 {
		cfg.Terminal.MaxOutputBytes = 64 * 1024
	}
	if cfg.Terminal.HistorySize == 0 {
		cfg.Terminal.HistorySize = 50
	}

	if cfg.Search.Provider == "" {
		cfg.Search.Provider = "duckduckgo"
	}
	if cfg.Search.MaxResults == 0 {
		cfg.Search.MaxResults = 5
	}
	if cfg.Search.Timeout == 0 {
		cfg.Search.Timeout = Duration(10 * time.Second)
	}
}

// Validate checks the configuration for errors.
func (c *Config) Validate() error {
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("server.port must be between 1 and 65535, got %d", c.Server.Port)
	}

	if !validLogLevels[c.Logging.Level] {
		return fmt.Errorf("logging.level must be one of trace, debug, info, warn, error; got %q", c.Logging.Level)
	}
	if c.Logging.Format != "json" && c.Logging.Format != "console" {
		return fmt.Errorf("logging.format must be json or console, got %q", c.Logging.Format)
	}

	if c.Telemetry.Enabled {
		if c.Telemetry.Endpoint == "" {
			return fmt.Errorf("telemetry.endpoint is required when telemetry is enabled")
		}
		if c.Telemetry.Protocol != "grpc" && c.Telemetry.Protocol != "http" {
			return fmt.Errorf("telemetry.protocol must be grpc or http, got %q", c.Telemetry.Protocol)
		}
	}
	if c.Telemetry.SampleRate < 0 || c.Telemetry.SampleRate > 1 {
		return fmt.Errorf("telemetry.sample_rate must be between 0.0 and 1.0, got %f", c.Telemetry.SampleRate)
	}

	modelIDs := make(map[string]bool, len(c.Models))
	for i, m := range c.Models {
		if m.ID == "" {
			return fmt.Errorf("models[%d].id is required", i)
		}
		if modelIDs[m.ID] {
			return fmt.Errorf("models[%d]: duplicate model id %q", i, m.ID)
		}
		modelIDs[m.ID] = true
		if !validProviders[m.Provider] {
			return fmt.Errorf("models[%d].provider must be anthropic or openai, got %q", i, m.Provider)
		}
		if m.Model == "" {
			return fmt.Errorf("models[%d].model is required", i)
		}
		if m.Temperature < 0 || m.Temperature > 2 {
			return fmt.Errorf("models[%d].temperature must be between 0.0 and 2.0, got %f", i, m.Temperature)
		}
		if m.MaxTokens < 1 {
			return fmt.Errorf("models[%d].max_tokens must be positive, got %d", i, m.MaxTokens)
		}
	}

	agentIDs := make(map[string]bool, len(c.Agents))
	for i, a := range c.Agents {
		if a.ID == "" {
			return fmt.Errorf("agents[%d].id is required", i)
		}
		if agentIDs[a.ID] {
			return fmt.Errorf("agents[%d]: duplicate agent id %q", i, a.ID)
		}
		agentIDs[a.ID] = true
		if !validRoles[a.Role] {
			return fmt.Errorf("agents[%d].role must be planner, verifier, or implementer, got %q", i, a.Role)
		}
		if a.ModelID == "" {
			return fmt.Errorf("agents[%d].model_id is required", i)
		}
		if !modelIDs[a.ModelID] {
			return fmt.Errorf("agents[%d].model_id references unknown model %q", i, a.ModelID)
		}
	}

	if c.Workspace.Root != "" && !filepath.IsAbs(c.Workspace.Root) {
		return fmt.Errorf("workspace.root must be an absolute path, got %q", c.Workspace.Root)
	}

	if c.Terminal.WorkDir != "" && !filepath.IsAbs(c.Terminal.WorkDir) {
		return fmt.Errorf("terminal.work_dir must be an absolute path, got %q", c.Terminal.WorkDir)
	}
	if c.Terminal.MaxConcurrent < 1 {
		return fmt.Errorf("terminal.max_concurrent must be positive, got %d", c.Terminal.MaxConcurrent)
	}

	if !validSearchProviders[c.Search.Provider] {
		return fmt.Errorf("search.provider must be duckduckgo or github, got %q", c.Search.Provider)
	}
	if c.Search.Provider == "github" && !c.Search.GitHubToken.IsSet() {
		return fmt.Errorf("search.github_token is required when search.provider is github")
	}

	return nil
}
