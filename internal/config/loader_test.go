package config

import (
	"bytes"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"testing"
	"time"
)

// setupTestHome creates a temporary home directory for testing.
// Returns the home dir path and a cleanup function.
func setupTestHome(t *testing.T) (string, func()) {
	t.Helper()

	tmpHome := t.TempDir()

	originalHome := os.Getenv("HOME")
	os.Setenv("HOME", tmpHome)

	cleanup := func() {
		if originalHome != "" {
			os.Setenv("HOME", originalHome)
		} else {
			os.Unsetenv("HOME")
		}
	}

	return tmpHome, cleanup
}

// writeTestConfig writes a config file under the fake home's allowed
// directory and returns its path.
func writeTestConfig(t *testing.T, home, content string, perm os.FileMode) string {
	t.Helper()

	configDir := filepath.Join(home, ".config", "triad")
	if err := os.MkdirAll(configDir, 0700); err != nil {
		t.Fatalf("Failed to create config dir: %v", err)
	}

	configPath := filepath.Join(configDir, "config.yaml")
	if err := os.WriteFile(configPath, []byte(content), perm); err != nil {
		t.Fatalf("Failed to write test config: %v", err)
	}

	return configPath
}

func TestLoadWithFile_ValidYAML(t *testing.T) {
	home, cleanup := setupTestHome(t)
	defer cleanup()

	yamlContent := `server:
  host: 127.0.0.1
  port: 8088
  shutdown_timeout: 5s

logging:
  level: debug
  format: console

models:
  - id: claude-main
    provider: anthropic
    model: claude-sonnet-4
    api_key: sk-test-key
    temperature: 0.3
    max_tokens: 2048

agents:
  - id: chief-planner
    role: planner
    model_id: claude-main
    system_prompt: You are a planning agent.
`

	configPath := writeTestConfig(t, home, yamlContent, 0600)

	cfg, err := LoadWithFile(configPath)
	if err != nil {
		t.Fatalf("LoadWithFile() error = %v, want nil", err)
	}

	if cfg.Server.Host != "127.0.0.1" {
		t.Errorf("Server.Host = %q, want %q", cfg.Server.Host, "127.0.0.1")
	}
	if cfg.Server.Port != 8088 {
		t.Errorf("Server.Port = %d, want 8088", cfg.Server.Port)
	}
	if cfg.Server.ShutdownTimeout.Duration() != 5*time.Second {
		t.Errorf("Server.ShutdownTimeout = %v, want 5s", cfg.Server.ShutdownTimeout.Duration())
	}
	if cfg.Logging.Level != "debug" {
		t.Errorf("Logging.Level = %q, want %q", cfg.Logging.Level, "debug")
	}
	if cfg.Logging.Format != "console" {
		t.Errorf("Logging.Format = %q, want %q", cfg.Logging.Format, "console")
	}

	if len(cfg.Models) != 1 {
		t.Fatalf("len(Models) = %d, want 1", len(cfg.Models))
	}
	m := cfg.Models[0]
	if m.ID != "claude-main" {
		t.Errorf("Models[0].ID = %q, want %q", m.ID, "claude-main")
	}
	if m.APIKey.Value() != "sk-test-key" {
		t.Errorf("Models[0].APIKey.Value() = %q, want %q", m.APIKey.Value(), "sk-test-key")
	}
	if m.Temperature != 0.3 {
		t.Errorf("Models[0].Temperature = %f, want 0.3", m.Temperature)
	}
	// Per-model defaults still apply to unset fields
	if m.Timeout.Duration() != 60*time.Second {
		t.Errorf("Models[0].Timeout = %v, want 60s default", m.Timeout.Duration())
	}

	if len(cfg.Agents) != 1 {
		t.Fatalf("len(Agents) = %d, want 1", len(cfg.Agents))
	}
	if cfg.Agents[0].Role != "planner" {
		t.Errorf("Agents[0].Role = %q, want %q", cfg.Agents[0].Role, "planner")
	}
	if cfg.Agents[0].ModelID != "claude-main" {
		t.Errorf("Agents[0].ModelID = %q, want %q", cfg.Agents[0].ModelID, "claude-main")
	}
}

func TestLoadWithFile_EnvironmentOverride(t *testing.T) {
	home, cleanup := setupTestHome(t)
	defer cleanup()

	yamlContent := `server:
  port: 9090

logging:
  level: info
`

	configPath := writeTestConfig(t, home, yamlContent, 0600)

	os.Setenv("TRIAD_SERVER_PORT", "7777")
	os.Setenv("TRIAD_LOGGING_LEVEL", "debug")
	defer os.Unsetenv("TRIAD_SERVER_PORT")
	defer os.Unsetenv("TRIAD_LOGGING_LEVEL")

	cfg, err := LoadWithFile(configPath)
	if err != nil {
		t.Fatalf("LoadWithFile() error = %v, want nil", err)
	}

	if cfg.Server.Port != 7777 {
		t.Errorf("Server.Port = %d, want 7777 (from env override)", cfg.Server.Port)
	}
	if cfg.Logging.Level != "debug" {
		t.Errorf("Logging.Level = %q, want %q (from env override)", cfg.Logging.Level, "debug")
	}
}

func TestLoadWithFile_MissingFile(t *testing.T) {
	home, cleanup := setupTestHome(t)
	defer cleanup()

	// Path in allowed directory, but no file on disk
	configPath := filepath.Join(home, ".config", "triad", "config.yaml")

	cfg, err := LoadWithFile(configPath)
	if err != nil {
		t.Fatalf("LoadWithFile() should not error on missing file, got: %v", err)
	}

	// Defaults apply
	if cfg.Server.Port != 9090 {
		t.Errorf("Server.Port = %d, want default 9090", cfg.Server.Port)
	}
	if cfg.Logging.Level != "info" {
		t.Errorf("Logging.Level = %q, want default %q", cfg.Logging.Level, "info")
	}
	if cfg.Search.Provider != "duckduckgo" {
		t.Errorf("Search.Provider = %q, want default %q", cfg.Search.Provider, "duckduckgo")
	}
	if cfg.Terminal.MaxConcurrent != 4 {
		t.Errorf("Terminal.MaxConcurrent = %d, want default 4", cfg.Terminal.MaxConcurrent)
	}
}

func TestLoadWithFile_InvalidYAML(t *testing.T) {
	home, cleanup := setupTestHome(t)
	defer cleanup()

	invalidYAML := `server:
  port: not-a-number
  invalid syntax here
`

	configPath := writeTestConfig(t, home, invalidYAML, 0600)

	_, err := LoadWithFile(configPath)
	if err == nil {
		t.Error("LoadWithFile() should error on invalid YAML, got nil")
	}
}

func TestLoadWithFile_Validation(t *testing.T) {
	home, cleanup := setupTestHome(t)
	defer cleanup()

	yamlContent := `server:
  port: 99999
`

	configPath := writeTestConfig(t, home, yamlContent, 0600)

	_, err := LoadWithFile(configPath)
	if err == nil {
		t.Error("LoadWithFile() should error on invalid port, got nil")
	}
}

func TestLoadWithFile_AgentUnknownModel(t *testing.T) {
	home, cleanup := setupTestHome(t)
	defer cleanup()

	yamlContent := `agents:
  - id: planner-1
    role: planner
    model_id: no-such-model
`

	configPath := writeTestConfig(t, home, yamlContent, 0600)

	_, err := LoadWithFile(configPath)
	if err == nil {
		t.Fatal("LoadWithFile() should error on unknown model reference, got nil")
	}
	if !strings.Contains(err.Error(), "no-such-model") {
		t.Errorf("Expected error naming the unknown model, got: %v", err)
	}
}

func TestLoadWithFile_PathTraversal(t *testing.T) {
	_, cleanup := setupTestHome(t)
	defer cleanup()

	_, err := LoadWithFile("../../../../etc/passwd")
	if err == nil {
		t.Error("Expected error for path traversal, got nil")
	}
	if !strings.Contains(err.Error(), "must be in ~/.config/triad/ or /etc/triad/") {
		t.Errorf("Expected path validation error, got: %v", err)
	}
}

func TestLoadWithFile_InsecurePermissions(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("Skipping permission test on Windows")
	}

	home, cleanup := setupTestHome(t)
	defer cleanup()

	// World-readable config must be rejected
	configPath := writeTestConfig(t, home, "server:\n  port: 9090\n", 0644)

	_, err := LoadWithFile(configPath)
	if err == nil {
		t.Error("Expected error for insecure permissions, got nil")
	}
	if !strings.Contains(err.Error(), "insecure") && !strings.Contains(err.Error(), "permissions") {
		t.Errorf("Expected 'insecure permissions' error, got: %v", err)
	}
}

func TestLoadWithFile_SecurePermissions(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("Skipping permission test on Windows")
	}

	home, cleanup := setupTestHome(t)
	defer cleanup()

	configPath := writeTestConfig(t, home, "server:\n  port: 9090\n", 0600)

	cfg, err := LoadWithFile(configPath)
	if err != nil {
		t.Fatalf("LoadWithFile() should succeed with 0600 permissions, got error: %v", err)
	}

	if cfg.Server.Port != 9090 {
		t.Errorf("Server.Port = %d, want 9090", cfg.Server.Port)
	}
}

func TestLoadWithFile_FileTooLarge(t *testing.T) {
	home, cleanup := setupTestHome(t)
	defer cleanup()

	// 2MB of comments exceeds the 1MB limit
	largeContent := bytes.Repeat([]byte("# comment line\n"), 150000)
	configPath := writeTestConfig(t, home, string(largeContent), 0600)

	_, err := LoadWithFile(configPath)
	if err == nil {
		t.Error("Expected error for large file, got nil")
	}
	if !strings.Contains(err.Error(), "too large") {
		t.Errorf("Expected 'too large' error, got: %v", err)
	}
}
