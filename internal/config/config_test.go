package config

import (
	"strings"
	"testing"
	"time"
)

// validConfig returns a minimal configuration that passes validation.
func validConfig() *Config {
	cfg := &Config{
		Models: []ModelConfig{
			{ID: "m1", Provider: "anthropic", Model: "claude-sonnet-4", MaxTokens: 1024},
			{ID: "m2", Provider: "openai", Model: "gpt-4o", MaxTokens: 1024},
		},
		Agents: []AgentConfig{
			{ID: "a1", Role: "planner", ModelID: "m1"},
			{ID: "a2", Role: "verifier", ModelID: "m2"},
			{ID: "a3", Role: "implementer", ModelID: "m1"},
		},
	}
	applyDefaults(cfg)
	return cfg
}

func TestValidate_OK(t *testing.T) {
	if err := validConfig().Validate(); err != nil {
		t.Fatalf("Validate() error = %v, want nil", err)
	}
}

func TestValidate_Errors(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{
			name:    "port out of range",
			mutate:  func(c *Config) { c.Server.Port = 70000 },
			wantErr: "server.port",
		},
		{
			name:    "bad log level",
			mutate:  func(c *Config) { c.Logging.Level = "verbose" },
			wantErr: "logging.level",
		},
		{
			name:    "bad log format",
			mutate:  func(c *Config) { c.Logging.Format = "xml" },
			wantErr: "logging.format",
		},
		{
			name: "telemetry enabled without endpoint",
			mutate: func(c *Config) {
				c.Telemetry.Enabled = true
				c.Telemetry.Endpoint = ""
			},
			wantErr: "telemetry.endpoint",
		},
		{
			name:    "sample rate out of range",
			mutate:  func(c *Config) { c.Telemetry.SampleRate = 1.5 },
			wantErr: "sample_rate",
		},
		{
			name:    "model missing id",
			mutate:  func(c *Config) { c.Models[0].ID = "" },
			wantErr: "models[0].id",
		},
		{
			name:    "duplicate model id",
			mutate:  func(c *Config) { c.Models[1].ID = "m1" },
			wantErr: "duplicate model id",
		},
		{
			name:    "unknown provider",
			mutate:  func(c *Config) { c.Models[0].Provider = "cohere" },
			wantErr: "provider",
		},
		{
			name:    "temperature out of range",
			mutate:  func(c *Config) { c.Models[0].Temperature = 3.0 },
			wantErr: "temperature",
		},
		{
			name:    "unknown role",
			mutate:  func(c *Config) { c.Agents[0].Role = "reviewer" },
			wantErr: "role",
		},
		{
			name:    "duplicate agent id",
			mutate:  func(c *Config) { c.Agents[1].ID = "a1" },
			wantErr: "duplicate agent id",
		},
		{
			name:    "agent references unknown model",
			mutate:  func(c *Config) { c.Agents[0].ModelID = "ghost" },
			wantErr: "unknown model",
		},
		{
			name:    "relative workspace root",
			mutate:  func(c *Config) { c.Workspace.Root = "relative/path" },
			wantErr: "workspace.root",
		},
		{
			name:    "relative terminal workdir",
			mutate:  func(c *Config) { c.Terminal.WorkDir = "tmp/work" },
			wantErr: "terminal.work_dir",
		},
		{
			name:    "unknown search provider",
			mutate:  func(c *Config) { c.Search.Provider = "bing" },
			wantErr: "search.provider",
		},
		{
			name: "github search without token",
			mutate: func(c *Config) {
				c.Search.Provider = "github"
				c.Search.GitHubToken = ""
			},
			wantErr: "github_token",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig()
			tt.mutate(cfg)

			err := cfg.Validate()
			if err == nil {
				t.Fatal("Validate() error = nil, want error")
			}
			if !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("Validate() error = %v, want substring %q", err, tt.wantErr)
			}
		})
	}
}

func TestApplyDefaults(t *testing.T) {
	cfg := &Config{
		Models: []ModelConfig{{ID: "m1", Provider: "anthropic", Model: "claude-sonnet-4"}},
	}
	applyDefaults(cfg)

	if cfg.Server.Host != "localhost" {
		t.Errorf("Server.Host = %q, want %q", cfg.Server.Host, "localhost")
	}
	if cfg.Server.Port != 9090 {
		t.Errorf("Server.Port = %d, want 9090", cfg.Server.Port)
	}
	if cfg.Server.ShutdownTimeout.Duration() != 10*time.Second {
		t.Errorf("Server.ShutdownTimeout = %v, want 10s", cfg.Server.ShutdownTimeout.Duration())
	}
	if cfg.Logging.Level != "info" || cfg.Logging.Format != "json" {
		t.Errorf("Logging = %+v, want info/json", cfg.Logging)
	}
	if cfg.Telemetry.ServiceName != "triad" {
		t.Errorf("Telemetry.ServiceName = %q, want %q", cfg.Telemetry.ServiceName, "triad")
	}
	if cfg.Telemetry.SampleRate != 1.0 {
		t.Errorf("Telemetry.SampleRate = %f, want 1.0", cfg.Telemetry.SampleRate)
	}

	m := cfg.Models[0]
	if m.MaxTokens != 4096 {
		t.Errorf("Models[0].MaxTokens = %d, want 4096", m.MaxTokens)
	}
	if m.Timeout.Duration() != 60*time.Second {
		t.Errorf("Models[0].Timeout = %v, want 60s", m.Timeout.Duration())
	}
	if m.RequestsPerMinute != 60 {
		t.Errorf("Models[0].RequestsPerMinute = %d, want 60", m.RequestsPerMinute)
	}
	if m.MaxRetries != 3 {
		t.Errorf("Models[0].MaxRetries = %d, want 3", m.MaxRetries)
	}

	if cfg.Terminal.Timeout.Duration() != 30*time.Second {
		t.Errorf("Terminal.Timeout = %v, want 30s", cfg.Terminal.Timeout.Duration())
	}
	if cfg.Terminal.MaxOutputBytes != 64*1024 {
		t.Errorf("Terminal.MaxOutputBytes = %d, want 65536", cfg.Terminal.MaxOutputBytes)
	}
	if cfg.Search.MaxResults != 5 {
		t.Errorf("Search.MaxResults = %d, want 5", cfg.Search.MaxResults)
	}
	if cfg.Workspace.Debounce.Duration() != 500*time.Millisecond {
		t.Errorf("Workspace.Debounce = %v, want 500ms", cfg.Workspace.Debounce.Duration())
	}
}

func TestApplyDefaults_PreservesExplicitValues(t *testing.T) {
	cfg := &Config{
		Server:  ServerConfig{Port: 8081},
		Logging: LoggingConfig{Level: "error"},
	}
	applyDefaults(cfg)

	if cfg.Server.Port != 8081 {
		t.Errorf("Server.Port = %d, want 8081", cfg.Server.Port)
	}
	if cfg.Logging.Level != "error" {
		t.Errorf("Logging.Level = %q, want %q", cfg.Logging.Level, "error")
	}
}
