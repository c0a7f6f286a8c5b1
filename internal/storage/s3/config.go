package s3

import (
	"time"
)

// Config represents S3 backend configuration
type Config struct {
	Region          string `yaml:"region"`
	Endpoint        string `yaml:"endpoint"`
	AccessKeyID     string `yaml:"access_key_id"`
	SecretAccessKey string `yaml:"secret_access_key"`
	SessionToken    string `yaml:"session_token"`
	ForcePathStyle  bool   `yaml:"force_path_style"`

	// Prefix is prepended to every key the backend writes.
	Prefix string `yaml:"prefix"`

	// RootID names the root directory. It is never stored.
	RootID string `yaml:"root_id"`

	// FindMatchLimit and FindSiblingLimit bound the two listings of one
	// FindByName round trip.
	FindMatchLimit   int `yaml:"find_match_limit"`
	FindSiblingLimit int `yaml:"find_sibling_limit"`

	// SDK-level retries. The resilient store does its own retrying, so
	// this stays low.
	MaxRetries     int           `yaml:"max_retries"`
	RequestTimeout time.Duration `yaml:"request_timeout"`

	// SkipHealthCheck skips the HeadBucket probe in NewBackend.
	SkipHealthCheck bool `yaml:"skip_health_check"`
}

// DefaultConfig returns the backend defaults.
func DefaultConfig() *Config {
	return &Config{
		Region:           "us-east-1",
		RootID:           "root",
		FindMatchLimit:   50,
		FindSiblingLimit: 100,
		MaxRetries:       1,
		RequestTimeout:   30 * time.Second,
	}
}

func (c *Config) withDefaults() *Config {
	def := DefaultConfig()
	if c == nil {
		return def
	}
	out := *c
	if out.Region == "" {
		out.Region = def.Region
	}
	if out.RootID == "" {
		out.RootID = def.RootID
	}
	if out.FindMatchLimit <= 0 {
		out.FindMatchLimit = def.FindMatchLimit
	}
	if out.FindSiblingLimit <= 0 {
		out.FindSiblingLimit = def.FindSiblingLimit
	}
	if out.MaxRetries <= 0 {
		out.MaxRetries = def.MaxRetries
	}
	return &out
}
