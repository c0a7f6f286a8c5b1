package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v2"
)

// EnvPrefix prefixes every environment variable read by LoadFromEnv.
const EnvPrefix = "TREEFS_"

// Configuration represents the complete application configuration
type Configuration struct {
	Global     GlobalConfig     `yaml:"global"`
	Drive      DriveConfig      `yaml:"drive"`
	Storage    StorageConfig    `yaml:"storage"`
	Network    NetworkConfig    `yaml:"network"`
	Monitoring MonitoringConfig `yaml:"monitoring"`
	Mount      MountConfig      `yaml:"mount"`
}

// GlobalConfig represents global application settings
type GlobalConfig struct {
	LogLevel    string `yaml:"log_level"`
	LogFile     string `yaml:"log_file"`
	LogFormat   string `yaml:"log_format"`
	MetricsPort int    `yaml:"metrics_port"`
}

// DriveConfig controls path resolution over the remote tree.
type DriveConfig struct {
	// RootID overrides the store's root object. Empty uses the store default.
	RootID            string            `yaml:"root_id"`
	MaxFolderLevel    int               `yaml:"max_folder_level"`
	PageSize          int               `yaml:"page_size"`
	FindMatchLimit    int               `yaml:"find_match_limit"`
	FindSiblingLimit  int               `yaml:"find_sibling_limit"`
	DefaultVisibility string            `yaml:"default_visibility"`
	ExportMap         map[string]string `yaml:"export_map"`
	CacheEnabled      bool              `yaml:"cache_enabled"`
	// CacheMaxEntries bounds the path cache; 0 means unbounded.
	CacheMaxEntries int `yaml:"cache_max_entries"`
}

// StorageConfig selects the remote store.
type StorageConfig struct {
	// URI is s3://bucket[/prefix] or mem://
	URI string   `yaml:"uri"`
	S3  S3Config `yaml:"s3"`
}

// S3Config represents S3 backend settings
type S3Config struct {
	Region          string `yaml:"region"`
	Endpoint        string `yaml:"endpoint"`
	ForcePathStyle  bool   `yaml:"force_path_style"`
	Prefix          string `yaml:"prefix"`
	AccessKeyID     string `yaml:"access_key_id"`
	SecretAccessKey string `yaml:"secret_access_key"`
}

// NetworkConfig represents network configuration
type NetworkConfig struct {
	Retry          RetryConfig          `yaml:"retry"`
	CircuitBreaker CircuitBreakerConfig `yaml:"circuit_breaker"`
}

// RetryConfig represents retry settings
type RetryConfig struct {
	MaxAttempts  int           `yaml:"max_attempts"`
	InitialDelay time.Duration `yaml:"initial_delay"`
	MaxDelay     time.Duration `yaml:"max_delay"`
	Multiplier   float64       `yaml:"multiplier"`
}

// CircuitBreakerConfig represents circuit breaker settings
type CircuitBreakerConfig struct {
	Enabled          bool          `yaml:"enabled"`
	FailureThreshold int           `yaml:"failure_threshold"`
	Timeout          time.Duration `yaml:"timeout"`
}

// MonitoringConfig represents monitoring settings
type MonitoringConfig struct {
	Metrics MetricsConfig `yaml:"metrics"`
}

// MetricsConfig represents metrics settings
type MetricsConfig struct {
	Enabled      bool              `yaml:"enabled"`
	Namespace    string            `yaml:"namespace"`
	Path         string            `yaml:"path"`
	CustomLabels map[string]string `yaml:"custom_labels"`
}

// MountConfig represents FUSE mount settings
type MountConfig struct {
	ReadOnly     bool          `yaml:"read_only"`
	AllowOther   bool          `yaml:"allow_other"`
	UID          uint32        `yaml:"uid"`
	GID          uint32        `yaml:"gid"`
	FileMode     uint32        `yaml:"file_mode"`
	DirMode      uint32        `yaml:"dir_mode"`
	EntryTimeout time.Duration `yaml:"entry_timeout"`
	AttrTimeout  time.Duration `yaml:"attr_timeout"`
}

// NewDefault returns a configuration with sensible defaults
func NewDefault() *Configuration {
	return &Configuration{
		Global: GlobalConfig{
			LogLevel:    "INFO",
			LogFile:     "",
			LogFormat:   "text",
			MetricsPort: 8080,
		},
		Drive: DriveConfig{
			MaxFolderLevel:    128,
			PageSize:          1000,
			FindMatchLimit:    50,
			FindSiblingLimit:  100,
			DefaultVisibility: "private",
			ExportMap: map[string]string{
				"application/vnd.google-apps.document":     "application/vnd.openxmlformats-officedocument.wordprocessingml.document",
				"application/vnd.google-apps.spreadsheet":  "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet",
				"application/vnd.google-apps.presentation": "application/vnd.openxmlformats-officedocument.presentationml.presentation",
				"application/vnd.google-apps.drawing":      "image/svg+xml",
			},
			CacheEnabled: true,
		},
		Storage: StorageConfig{
			URI: "mem://",
			S3: S3Config{
				Region: "us-east-1",
			},
		},
		Network: NetworkConfig{
			Retry: RetryConfig{
				MaxAttempts:  3,
				InitialDelay: 100 * time.Millisecond,
				MaxDelay:     5 * time.Second,
				Multiplier:   2.0,
			},
			CircuitBreaker: CircuitBreakerConfig{
				Enabled:          true,
				FailureThreshold: 5,
				Timeout:          60 * time.Second,
			},
		},
		Monitoring: MonitoringConfig{
			Metrics: MetricsConfig{
				Enabled:   true,
				Namespace: "treefs",
				Path:      "/metrics",
				CustomLabels: map[string]string{
					"service": "treefs",
				},
			},
		},
		Mount: MountConfig{
			FileMode:     0o644,
			DirMode:      0o755,
			EntryTimeout: time.Second,
			AttrTimeout:  time.Second,
		},
	}
}

// LoadFromFile loads configuration from a YAML file
func (c *Configuration) LoadFromFile(filename string) error {
	data, err := os.ReadFile(filename)
	if err != nil {
		return fmt.Errorf("failed to read config file: %w", err)
	}

	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("failed to parse config file: %w", err)
	}

	return nil
}

// LoadFromEnv applies TREEFS_* variables. Values from the given .env files
// are used for variables the process environment does not set; missing
// files are skipped.
func (c *Configuration) LoadFromEnv(envFiles ...string) error {
	dotenv := map[string]string{}
	for _, name := range envFiles {
		if _, err := os.Stat(name); err != nil {
			continue
		}
		values, err := godotenv.Read(name)
		if err != nil {
			return fmt.Errorf("failed to read env file %s: %w", name, err)
		}
		for k, v := range values {
			dotenv[k] = v
		}
	}

	env := func(key string) string {
		if val, ok := os.LookupEnv(EnvPrefix + key); ok {
			return val
		}
		return dotenv[EnvPrefix+key]
	}

	var errs []string
	setInt := func(key string, dst *int) {
		if val := env(key); val != "" {
			n, err := strconv.Atoi(val)
			if err != nil {
				errs = append(errs, fmt.Sprintf("%s%s: %v", EnvPrefix, key, err))
				return
			}
			*dst = n
		}
	}
	setBool := func(key string, dst *bool) {
		if val := env(key); val != "" {
			*dst = strings.ToLower(val) == "true" || val == "1"
		}
	}
	setDuration := func(key string, dst *time.Duration) {
		if val := env(key); val != "" {
			d, err := time.ParseDuration(val)
			if err != nil {
				errs = append(errs, fmt.Sprintf("%s%s: %v", EnvPrefix, key, err))
				return
			}
			*dst = d
		}
	}
	setString := func(key string, dst *string) {
		if val := env(key); val != "" {
			*dst = val
		}
	}

	// Global settings
	setString("LOG_LEVEL", &c.Global.LogLevel)
	setString("LOG_FILE", &c.Global.LogFile)
	setString("LOG_FORMAT", &c.Global.LogFormat)
	setInt("METRICS_PORT", &c.Global.MetricsPort)

	// Drive settings
	setString("ROOT_ID", &c.Drive.RootID)
	setInt("MAX_FOLDER_LEVEL", &c.Drive.MaxFolderLevel)
	setInt("PAGE_SIZE", &c.Drive.PageSize)
	setString("DEFAULT_VISIBILITY", &c.Drive.DefaultVisibility)
	setBool("CACHE_ENABLED", &c.Drive.CacheEnabled)
	setInt("CACHE_MAX_ENTRIES", &c.Drive.CacheMaxEntries)

	// Storage settings
	setString("STORAGE_URI", &c.Storage.URI)
	setString("S3_REGION", &c.Storage.S3.Region)
	setString("S3_ENDPOINT", &c.Storage.S3.Endpoint)
	setBool("S3_FORCE_PATH_STYLE", &c.Storage.S3.ForcePathStyle)
	setString("S3_PREFIX", &c.Storage.S3.Prefix)
	setString("S3_ACCESS_KEY_ID", &c.Storage.S3.AccessKeyID)
	setString("S3_SECRET_ACCESS_KEY", &c.Storage.S3.SecretAccessKey)

	// Network settings
	setInt("RETRY_MAX_ATTEMPTS", &c.Network.Retry.MaxAttempts)
	setDuration("RETRY_INITIAL_DELAY", &c.Network.Retry.InitialDelay)
	setDuration("RETRY_MAX_DELAY", &c.Network.Retry.MaxDelay)
	setBool("CIRCUIT_BREAKER_ENABLED", &c.Network.CircuitBreaker.Enabled)
	setInt("CIRCUIT_BREAKER_THRESHOLD", &c.Network.CircuitBreaker.FailureThreshold)

	// Monitoring
	setBool("METRICS_ENABLED", &c.Monitoring.Metrics.Enabled)

	if len(errs) > 0 {
		return fmt.Errorf("invalid environment: %s", strings.Join(errs, "; "))
	}
	return nil
}

// SaveToFile saves the configuration to a YAML file
func (c *Configuration) SaveToFile(filename string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(filename), 0750); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	if err := os.WriteFile(filename, data, 0600); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

// Validate validates the configuration
func (c *Configuration) Validate() error {
	validLogLevels := []string{"DEBUG", "INFO", "WARN", "ERROR"}
	logLevelValid := false
	for _, level := range validLogLevels {
		if strings.ToUpper(c.Global.LogLevel) == level {
			logLevelValid = true
			break
		}
	}
	if !logLevelValid {
		return fmt.Errorf("invalid log_level: %s (must be one of: %s)",
			c.Global.LogLevel, strings.Join(validLogLevels, ", "))
	}

	switch strings.ToLower(c.Global.LogFormat) {
	case "", "text", "json":
	default:
		return fmt.Errorf("invalid log_format: %s (must be text or json)", c.Global.LogFormat)
	}

	if c.Drive.MaxFolderLevel <= 0 {
		return fmt.Errorf("max_folder_level must be greater than 0")
	}

	if c.Drive.PageSize < 0 || c.Drive.PageSize > 1000 {
		return fmt.Errorf("page_size must be between 0 and 1000")
	}

	if c.Drive.CacheMaxEntries < 0 {
		return fmt.Errorf("cache_max_entries must not be negative")
	}

	switch c.Drive.DefaultVisibility {
	case "", "private", "public":
	default:
		return fmt.Errorf("invalid default_visibility: %s", c.Drive.DefaultVisibility)
	}

	if c.Storage.URI != "" && !strings.HasPrefix(c.Storage.URI, "s3://") && !strings.HasPrefix(c.Storage.URI, "mem://") {
		return fmt.Errorf("unsupported storage uri: %s (expected s3:// or mem://)", c.Storage.URI)
	}

	if (c.Storage.S3.AccessKeyID == "") != (c.Storage.S3.SecretAccessKey == "") {
		return fmt.Errorf("access_key_id and secret_access_key must be set together")
	}

	if c.Network.Retry.MaxAttempts <= 0 {
		return fmt.Errorf("max_attempts must be greater than 0")
	}

	if c.Network.CircuitBreaker.Enabled && c.Network.CircuitBreaker.FailureThreshold <= 0 {
		return fmt.Errorf("failure_threshold must be greater than 0 when the circuit breaker is enabled")
	}

	if c.Monitoring.Metrics.Enabled && (c.Global.MetricsPort <= 0 || c.Global.MetricsPort > 65535) {
		return fmt.Errorf("invalid metrics_port: %d", c.Global.MetricsPort)
	}

	return nil
}
