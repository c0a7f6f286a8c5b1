package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

// Test Constants
const (
	TestDebugLevel = "DEBUG"
	TestRootID     = "root-from-test"
)

func TestNewDefault(t *testing.T) {
	cfg := NewDefault()

	// Test global defaults
	if cfg.Global.LogLevel != "INFO" {
		t.Errorf("Expected LogLevel to be INFO, got %s", cfg.Global.LogLevel)
	}
	if cfg.Global.MetricsPort != 8080 {
		t.Errorf("Expected MetricsPort to be 8080, got %d", cfg.Global.MetricsPort)
	}

	// Test drive defaults
	if cfg.Drive.MaxFolderLevel != 128 {
		t.Errorf("Expected MaxFolderLevel to be 128, got %d", cfg.Drive.MaxFolderLevel)
	}
	if cfg.Drive.PageSize != 1000 {
		t.Errorf("Expected PageSize to be 1000, got %d", cfg.Drive.PageSize)
	}
	if cfg.Drive.FindMatchLimit != 50 || cfg.Drive.FindSiblingLimit != 100 {
		t.Errorf("Expected find limits 50/100, got %d/%d", cfg.Drive.FindMatchLimit, cfg.Drive.FindSiblingLimit)
	}
	if cfg.Drive.DefaultVisibility != "private" {
		t.Errorf("Expected DefaultVisibility to be private, got %s", cfg.Drive.DefaultVisibility)
	}
	if !cfg.Drive.CacheEnabled {
		t.Error("Expected CacheEnabled to be true")
	}
	if _, ok := cfg.Drive.ExportMap["application/vnd.google-apps.document"]; !ok {
		t.Error("Expected export map to cover native documents")
	}

	// Test network defaults
	if cfg.Network.Retry.MaxAttempts != 3 {
		t.Errorf("Expected MaxAttempts to be 3, got %d", cfg.Network.Retry.MaxAttempts)
	}
	if !cfg.Network.CircuitBreaker.Enabled {
		t.Error("Expected circuit breaker to be enabled by default")
	}

	if cfg.Storage.URI != "mem://" {
		t.Errorf("Expected storage URI mem://, got %s", cfg.Storage.URI)
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("default configuration does not validate: %v", err)
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		config  func() *Configuration
		wantErr bool
		errMsg  string
	}{
		{
			name: "valid config",
			config: func() *Configuration {
				return NewDefault()
			},
			wantErr: false,
		},
		{
			name: "lowercase log level",
			config: func() *Configuration {
				cfg := NewDefault()
				cfg.Global.LogLevel = "debug"
				return cfg
			},
			wantErr: false,
		},
		{
			name: "invalid log level",
			config: func() *Configuration {
				cfg := NewDefault()
				cfg.Global.LogLevel = "INVALID"
				return cfg
			},
			wantErr: true,
			errMsg:  "invalid log_level",
		},
		{
			name: "invalid log format",
			config: func() *Configuration {
				cfg := NewDefault()
				cfg.Global.LogFormat = "xml"
				return cfg
			},
			wantErr: true,
			errMsg:  "invalid log_format",
		},
		{
			name: "zero folder level",
			config: func() *Configuration {
				cfg := NewDefault()
				cfg.Drive.MaxFolderLevel = 0
				return cfg
			},
			wantErr: true,
			errMsg:  "max_folder_level must be greater than 0",
		},
		{
			name: "negative cache size",
			config: func() *Configuration {
				cfg := NewDefault()
				cfg.Drive.CacheMaxEntries = -1
				return cfg
			},
			wantErr: true,
			errMsg:  "cache_max_entries",
		},
		{
			name: "page size too large",
			config: func() *Configuration {
				cfg := NewDefault()
				cfg.Drive.PageSize = 5000
				return cfg
			},
			wantErr: true,
			errMsg:  "page_size",
		},
		{
			name: "invalid visibility",
			config: func() *Configuration {
				cfg := NewDefault()
				cfg.Drive.DefaultVisibility = "shared"
				return cfg
			},
			wantErr: true,
			errMsg:  "invalid default_visibility",
		},
		{
			name: "unsupported storage uri",
			config: func() *Configuration {
				cfg := NewDefault()
				cfg.Storage.URI = "gs://bucket"
				return cfg
			},
			wantErr: true,
			errMsg:  "unsupported storage uri",
		},
		{
			name: "half of the credentials",
			config: func() *Configuration {
				cfg := NewDefault()
				cfg.Storage.S3.AccessKeyID = "AKIA"
				return cfg
			},
			wantErr: true,
			errMsg:  "must be set together",
		},
		{
			name: "no retry attempts",
			config: func() *Configuration {
				cfg := NewDefault()
				cfg.Network.Retry.MaxAttempts = 0
				return cfg
			},
			wantErr: true,
			errMsg:  "max_attempts must be greater than 0",
		},
		{
			name: "breaker without threshold",
			config: func() *Configuration {
				cfg := NewDefault()
				cfg.Network.CircuitBreaker.FailureThreshold = 0
				return cfg
			},
			wantErr: true,
			errMsg:  "failure_threshold",
		},
		{
			name: "invalid metrics port",
			config: func() *Configuration {
				cfg := NewDefault()
				cfg.Global.MetricsPort = 70000
				return cfg
			},
			wantErr: true,
			errMsg:  "invalid metrics_port",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := tt.config()
			err := cfg.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
				return
			}
			if err != nil && tt.errMsg != "" && !strings.Contains(err.Error(), tt.errMsg) {
				t.Errorf("Validate() error = %v, want error containing %v", err, tt.errMsg)
			}
		})
	}
}

func TestLoadFromFile(t *testing.T) {
	// Create a temporary config file
	tmpDir := t.TempDir()
	configFile := filepath.Join(tmpDir, "config.yaml")

	configContent := `
global:
  log_level: DEBUG
  metrics_port: 9090

drive:
  root_id: root-from-test
  max_folder_level: 16
  cache_enabled: false
  cache_max_entries: 5000

storage:
  uri: s3://bucket/team
  s3:
    endpoint: http://localhost:9000
    force_path_style: true

network:
  retry:
    max_attempts: 5
    initial_delay: 250ms
`

	err := os.WriteFile(configFile, []byte(configContent), 0600)
	if err != nil {
		t.Fatalf("Failed to write test config file: %v", err)
	}

	cfg := NewDefault()
	err = cfg.LoadFromFile(configFile)
	if err != nil {
		t.Fatalf("LoadFromFile() error = %v", err)
	}

	// Verify loaded values
	if cfg.Global.LogLevel != TestDebugLevel {
		t.Errorf("Expected LogLevel to be DEBUG, got %s", cfg.Global.LogLevel)
	}
	if cfg.Global.MetricsPort != 9090 {
		t.Errorf("Expected MetricsPort to be 9090, got %d", cfg.Global.MetricsPort)
	}
	if cfg.Drive.RootID != TestRootID {
		t.Errorf("Expected RootID %s, got %s", TestRootID, cfg.Drive.RootID)
	}
	if cfg.Drive.MaxFolderLevel != 16 {
		t.Errorf("Expected MaxFolderLevel to be 16, got %d", cfg.Drive.MaxFolderLevel)
	}
	if cfg.Drive.CacheEnabled {
		t.Error("Expected CacheEnabled to be false")
	}
	if cfg.Drive.CacheMaxEntries != 5000 {
		t.Errorf("Expected CacheMaxEntries to be 5000, got %d", cfg.Drive.CacheMaxEntries)
	}
	if cfg.Drive.PageSize != 1000 {
		t.Errorf("Expected untouched PageSize to keep its default, got %d", cfg.Drive.PageSize)
	}
	if cfg.Storage.URI != "s3://bucket/team" {
		t.Errorf("Expected storage URI s3://bucket/team, got %s", cfg.Storage.URI)
	}
	if !cfg.Storage.S3.ForcePathStyle {
		t.Error("Expected ForcePathStyle to be true")
	}
	if cfg.Network.Retry.MaxAttempts != 5 {
		t.Errorf("Expected MaxAttempts to be 5, got %d", cfg.Network.Retry.MaxAttempts)
	}
	if cfg.Network.Retry.InitialDelay != 250*time.Millisecond {
		t.Errorf("Expected InitialDelay to be 250ms, got %v", cfg.Network.Retry.InitialDelay)
	}
}

func TestLoadFromFileNonExistent(t *testing.T) {
	cfg := NewDefault()
	err := cfg.LoadFromFile("/nonexistent/config.yaml")
	if err == nil {
		t.Error("Expected error when loading non-existent config file")
	}
}

func TestLoadFromEnv(t *testing.T) {
	// Set up environment variables
	testEnvVars := map[string]string{
		"TREEFS_LOG_LEVEL":           "ERROR",
		"TREEFS_METRICS_PORT":        "9090",
		"TREEFS_ROOT_ID":             TestRootID,
		"TREEFS_MAX_FOLDER_LEVEL":    "32",
		"TREEFS_CACHE_ENABLED":       "false",
		"TREEFS_CACHE_MAX_ENTRIES":   "250",
		"TREEFS_STORAGE_URI":         "s3://env-bucket",
		"TREEFS_S3_FORCE_PATH_STYLE": "true",
		"TREEFS_RETRY_MAX_DELAY":     "10s",
		"TREEFS_METRICS_ENABLED":     "false",
	}

	// Set environment variables
	for key, value := range testEnvVars {
		t.Setenv(key, value)
	}

	cfg := NewDefault()
	err := cfg.LoadFromEnv()
	if err != nil {
		t.Fatalf("LoadFromEnv() error = %v", err)
	}

	// Verify loaded values
	if cfg.Global.LogLevel != "ERROR" {
		t.Errorf("Expected LogLevel to be ERROR, got %s", cfg.Global.LogLevel)
	}
	if cfg.Global.MetricsPort != 9090 {
		t.Errorf("Expected MetricsPort to be 9090, got %d", cfg.Global.MetricsPort)
	}
	if cfg.Drive.RootID != TestRootID {
		t.Errorf("Expected RootID %s, got %s", TestRootID, cfg.Drive.RootID)
	}
	if cfg.Drive.MaxFolderLevel != 32 {
		t.Errorf("Expected MaxFolderLevel to be 32, got %d", cfg.Drive.MaxFolderLevel)
	}
	if cfg.Drive.CacheEnabled {
		t.Error("Expected CacheEnabled to be false")
	}
	if cfg.Drive.CacheMaxEntries != 250 {
		t.Errorf("Expected CacheMaxEntries to be 250, got %d", cfg.Drive.CacheMaxEntries)
	}
	if cfg.Storage.URI != "s3://env-bucket" {
		t.Errorf("Expected storage URI s3://env-bucket, got %s", cfg.Storage.URI)
	}
	if !cfg.Storage.S3.ForcePathStyle {
		t.Error("Expected ForcePathStyle to be true")
	}
	if cfg.Network.Retry.MaxDelay != 10*time.Second {
		t.Errorf("Expected MaxDelay to be 10s, got %v", cfg.Network.Retry.MaxDelay)
	}
	if cfg.Monitoring.Metrics.Enabled {
		t.Error("Expected metrics to be disabled")
	}
}

func TestLoadFromEnvInvalidNumber(t *testing.T) {
	t.Setenv("TREEFS_PAGE_SIZE", "lots")

	cfg := NewDefault()
	err := cfg.LoadFromEnv()
	if err == nil {
		t.Fatal("Expected error for non-numeric TREEFS_PAGE_SIZE")
	}
	if !strings.Contains(err.Error(), "TREEFS_PAGE_SIZE") {
		t.Errorf("error %v does not name the variable", err)
	}
}

func TestLoadFromEnvFile(t *testing.T) {
	tmpDir := t.TempDir()
	envFile := filepath.Join(tmpDir, ".env")
	content := "TREEFS_ROOT_ID=from-dotenv\nTREEFS_LOG_FORMAT=json\n"
	if err := os.WriteFile(envFile, []byte(content), 0600); err != nil {
		t.Fatalf("Failed to write env file: %v", err)
	}

	// The process environment wins over the file.
	t.Setenv("TREEFS_LOG_FORMAT", "text")

	cfg := NewDefault()
	if err := cfg.LoadFromEnv(envFile, filepath.Join(tmpDir, "missing.env")); err != nil {
		t.Fatalf("LoadFromEnv() error = %v", err)
	}

	if cfg.Drive.RootID != "from-dotenv" {
		t.Errorf("Expected RootID from .env, got %s", cfg.Drive.RootID)
	}
	if cfg.Global.LogFormat != "text" {
		t.Errorf("Expected LogFormat from the environment, got %s", cfg.Global.LogFormat)
	}
}

func TestSaveToFile(t *testing.T) {
	tmpDir := t.TempDir()
	configFile := filepath.Join(tmpDir, "saved_config.yaml")

	cfg := NewDefault()
	cfg.Global.LogLevel = TestDebugLevel
	cfg.Drive.RootID = TestRootID

	err := cfg.SaveToFile(configFile)
	if err != nil {
		t.Fatalf("SaveToFile() error = %v", err)
	}

	// Verify file exists
	if _, err := os.Stat(configFile); os.IsNotExist(err) {
		t.Error("Config file was not created")
	}

	// Load the saved config and verify
	newCfg := NewDefault()
	err = newCfg.LoadFromFile(configFile)
	if err != nil {
		t.Fatalf("Failed to load saved config: %v", err)
	}

	if newCfg.Global.LogLevel != TestDebugLevel {
		t.Errorf("Expected LogLevel to be DEBUG, got %s", newCfg.Global.LogLevel)
	}
	if newCfg.Drive.RootID != TestRootID {
		t.Errorf("Expected RootID %s, got %s", TestRootID, newCfg.Drive.RootID)
	}
	if newCfg.Network.Retry.InitialDelay != cfg.Network.Retry.InitialDelay {
		t.Errorf("InitialDelay did not survive a round trip: %v", newCfg.Network.Retry.InitialDelay)
	}
}

func TestSaveToFileCreateDirectory(t *testing.T) {
	tmpDir := t.TempDir()
	configFile := filepath.Join(tmpDir, "subdir", "config.yaml")

	cfg := NewDefault()
	err := cfg.SaveToFile(configFile)
	if err != nil {
		t.Fatalf("SaveToFile() error = %v", err)
	}

	// Verify file exists
	if _, err := os.Stat(configFile); os.IsNotExist(err) {
		t.Error("Config file was not created")
	}
}
