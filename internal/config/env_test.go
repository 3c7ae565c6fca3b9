package config

import (
	"errors"
	"log/slog"
	"os"
	"path/filepath"
	"provisioner/internal/apperrors"
	"testing"
	"time"
)

func TestGetEnv(t *testing.T) {
	// Test default value
	result := GetEnv("TEST_NONEXISTENT_VAR", "default")
	if result != "default" {
		t.Errorf("Expected 'default', got %q", result)
	}

	// Test with set value
	os.Setenv("TEST_GET_ENV", "custom")
	defer os.Unsetenv("TEST_GET_ENV")

	result = GetEnv("TEST_GET_ENV", "default")
	if result != "custom" {
		t.Errorf("Expected 'custom', got %q", result)
	}
}

func TestGetIntEnv(t *testing.T) {
	// Test default value
	result := GetIntEnv("TEST_NONEXISTENT_INT", 42)
	if result != 42 {
		t.Errorf("Expected 42, got %d", result)
	}

	// Test with valid int
	os.Setenv("TEST_INT_ENV", "123")
	defer os.Unsetenv("TEST_INT_ENV")

	result = GetIntEnv("TEST_INT_ENV", 42)
	if result != 123 {
		t.Errorf("Expected 123, got %d", result)
	}

	// Test with invalid int (should return default)
	os.Setenv("TEST_INVALID_INT", "not-a-number")
	defer os.Unsetenv("TEST_INVALID_INT")

	result = GetIntEnv("TEST_INVALID_INT", 42)
	if result != 42 {
		t.Errorf("Expected 42 for invalid int, got %d", result)
	}
}

func TestGetDurationEnv(t *testing.T) {
	defaultDuration := 5 * time.Second

	// Test default value
	result := GetDurationEnv("TEST_NONEXISTENT_DURATION", defaultDuration)
	if result != defaultDuration {
		t.Errorf("Expected %v, got %v", defaultDuration, result)
	}

	// Test with valid duration
	os.Setenv("TEST_DURATION_ENV", "30s")
	defer os.Unsetenv("TEST_DURATION_ENV")

	result = GetDurationEnv("TEST_DURATION_ENV", defaultDuration)
	if result != 30*time.Second {
		t.Errorf("Expected 30s, got %v", result)
	}

	// Test with milliseconds
	os.Setenv("TEST_DURATION_MS", "100ms")
	defer os.Unsetenv("TEST_DURATION_MS")

	result = GetDurationEnv("TEST_DURATION_MS", defaultDuration)
	if result != 100*time.Millisecond {
		t.Errorf("Expected 100ms, got %v", result)
	}

	// Test with invalid duration (should return default)
	os.Setenv("TEST_INVALID_DURATION", "not-a-duration")
	defer os.Unsetenv("TEST_INVALID_DURATION")

	result = GetDurationEnv("TEST_INVALID_DURATION", defaultDuration)
	if result != defaultDuration {
		t.Errorf("Expected %v for invalid duration, got %v", defaultDuration, result)
	}
}

func TestGetSecretFile(t *testing.T) {
	// Test empty path
	result := GetSecretFile("")
	if result != "" {
		t.Errorf("Expected empty string for empty path, got %q", result)
	}

	// Test nonexistent file
	result = GetSecretFile("/nonexistent/path/to/secret")
	if result != "" {
		t.Errorf("Expected empty string for nonexistent file, got %q", result)
	}

	// Test with actual file
	tmpFile, err := os.CreateTemp("", "secret-test")
	if err != nil {
		t.Fatalf("Failed to create temp file: %v", err)
	}
	defer os.Remove(tmpFile.Name())

	secretValue := "my-secret-value"
	if _, err := tmpFile.WriteString(secretValue + "\n"); err != nil {
		t.Fatalf("Failed to write to temp file: %v", err)
	}
	tmpFile.Close()

	result = GetSecretFile(tmpFile.Name())
	if result != secretValue {
		t.Errorf("Expected %q, got %q", secretValue, result)
	}
}

func TestGetBoolEnv(t *testing.T) {
	result := GetBoolEnv("TEST_NONEXISTENT_BOOL", true)
	if !result {
		t.Errorf("Expected true, got %v", result)
	}

	os.Setenv("TEST_BOOL_ENV", "false")
	defer os.Unsetenv("TEST_BOOL_ENV")

	result = GetBoolEnv("TEST_BOOL_ENV", true)
	if result {
		t.Errorf("Expected false, got %v", result)
	}

	os.Setenv("TEST_INVALID_BOOL", "maybe")
	defer os.Unsetenv("TEST_INVALID_BOOL")

	result = GetBoolEnv("TEST_INVALID_BOOL", true)
	if !result {
		t.Errorf("Expected true for invalid bool, got %v", result)
	}
}

func TestLoadDotEnv(t *testing.T) {
	if err := LoadDotEnv(""); err != nil {
		t.Errorf("Expected no error for empty path, got %v", err)
	}

	path := filepath.Join(t.TempDir(), ".env")
	content := "TEST_DOTENV_NEW=from-file\nTEST_DOTENV_EXISTING=from-file\n"
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("Failed to write env file: %v", err)
	}

	os.Setenv("TEST_DOTENV_EXISTING", "from-env")
	defer os.Unsetenv("TEST_DOTENV_EXISTING")
	defer os.Unsetenv("TEST_DOTENV_NEW")

	if err := LoadDotEnv(path); err != nil {
		t.Fatalf("LoadDotEnv failed: %v", err)
	}

	if got := os.Getenv("TEST_DOTENV_NEW"); got != "from-file" {
		t.Errorf("Expected 'from-file', got %q", got)
	}
	if got := os.Getenv("TEST_DOTENV_EXISTING"); got != "from-env" {
		t.Errorf("Expected existing value to win, got %q", got)
	}

	if err := LoadDotEnv(filepath.Join(t.TempDir(), "missing.env")); err == nil {
		t.Error("Expected error for missing env file")
	}
}

func TestServiceConfig_Validate(t *testing.T) {
	valid := func() *ServiceConfig {
		return &ServiceConfig{
			Driver: DriverConfig{
				IP:          "10.0.0.1",
				PortLower:   54310,
				PortUpper:   54330,
				JarPath:     "/opt/h2o/h2odriver.jar",
				YarnConfDir: "/etc/hadoop/conf",
			},
			Credentials: CredentialsConfig{UsernameLength: 10, PasswordLength: 16},
			Cluster:     ClusterConfig{Backend: "yarn"},
		}
	}

	if err := valid().Validate(); err != nil {
		t.Fatalf("Expected valid config, got %v", err)
	}

	tests := []struct {
		name   string
		mutate func(*ServiceConfig)
	}{
		{"missing driver ip", func(c *ServiceConfig) { c.Driver.IP = "" }},
		{"missing jar", func(c *ServiceConfig) { c.Driver.JarPath = "" }},
		{"missing yarn conf dir", func(c *ServiceConfig) { c.Driver.YarnConfDir = "" }},
		{"missing port bound", func(c *ServiceConfig) { c.Driver.PortUpper = 0 }},
		{"zero password length", func(c *ServiceConfig) { c.Credentials.PasswordLength = 0 }},
		{"unknown backend", func(c *ServiceConfig) { c.Cluster.Backend = "mesos" }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := valid()
			tt.mutate(cfg)
			err := cfg.Validate()
			if !errors.Is(err, apperrors.ErrValidation) {
				t.Errorf("Expected validation error, got %v", err)
			}
		})
	}
}

func TestLoadServiceConfig_Defaults(t *testing.T) {
	cfg := LoadServiceConfig()

	if cfg.Port != "8080" {
		t.Errorf("Expected default port 8080, got %q", cfg.Port)
	}
	if cfg.Driver.Launcher != "hadoop jar" {
		t.Errorf("Expected default launcher 'hadoop jar', got %q", cfg.Driver.Launcher)
	}
	if cfg.Cluster.Backend != "yarn" {
		t.Errorf("Expected default backend yarn, got %q", cfg.Cluster.Backend)
	}
	if cfg.LogLevel != slog.LevelInfo {
		t.Errorf("Expected info level, got %v", cfg.LogLevel)
	}

	os.Setenv("LOG_LEVEL", "debug")
	defer os.Unsetenv("LOG_LEVEL")
	if LoadServiceConfig().LogLevel != slog.LevelDebug {
		t.Error("Expected debug level from LOG_LEVEL")
	}
}
