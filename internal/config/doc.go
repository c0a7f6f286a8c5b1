/*
Package config provides configuration management for treefs.

Configuration is layered. Later sources override earlier ones:

	┌─────────────────────────────────────────────┐
	│          Command-line flags                 │ ← Highest Priority
	│     (--storage, --log-level)                │
	└─────────────────────────────────────────────┘
	                      │
	┌─────────────────────────────────────────────┐
	│        Environment Variables                │
	│   (TREEFS_*, then an optional .env file)    │
	└─────────────────────────────────────────────┘
	                      │
	┌─────────────────────────────────────────────┐
	│         Configuration File                  │
	│            (YAML format)                    │
	└─────────────────────────────────────────────┘
	                      │
	┌─────────────────────────────────────────────┐
	│           Default Values                    │ ← Lowest Priority
	│            (NewDefault)                     │
	└─────────────────────────────────────────────┘

# Sections

	global:      log_level, log_file, log_format, metrics_port
	drive:       root_id, max_folder_level, page_size, find limits,
	             default_visibility, export_map, cache_enabled,
	             cache_max_entries (0 keeps every entry)
	storage:     uri (s3://bucket/prefix or mem://), s3 client settings
	network:     retry and circuit_breaker policies for remote calls
	monitoring:  metrics (enabled, namespace, path, custom_labels)
	mount:       FUSE options (read_only, allow_other, uid, gid, modes, timeouts)

# Usage

	cfg := config.NewDefault()
	if path != "" {
		if err := cfg.LoadFromFile(path); err != nil {
			return err
		}
	}
	if err := cfg.LoadFromEnv(".env"); err != nil {
		return err
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

A minimal file:

	global:
	  log_level: DEBUG
	  log_format: json
	drive:
	  max_folder_level: 64
	storage:
	  uri: s3://my-bucket/team
	  s3:
	    endpoint: http://localhost:9000
	    force_path_style: true

# Environment variables

	TREEFS_LOG_LEVEL, TREEFS_LOG_FILE, TREEFS_LOG_FORMAT, TREEFS_METRICS_PORT
	TREEFS_ROOT_ID, TREEFS_MAX_FOLDER_LEVEL, TREEFS_PAGE_SIZE
	TREEFS_DEFAULT_VISIBILITY, TREEFS_CACHE_ENABLED, TREEFS_CACHE_MAX_ENTRIES
	TREEFS_STORAGE_URI, TREEFS_S3_REGION, TREEFS_S3_ENDPOINT
	TREEFS_S3_FORCE_PATH_STYLE, TREEFS_S3_PREFIX
	TREEFS_S3_ACCESS_KEY_ID, TREEFS_S3_SECRET_ACCESS_KEY
	TREEFS_RETRY_MAX_ATTEMPTS, TREEFS_RETRY_INITIAL_DELAY, TREEFS_RETRY_MAX_DELAY
	TREEFS_CIRCUIT_BREAKER_ENABLED, TREEFS_CIRCUIT_BREAKER_THRESHOLD
	TREEFS_METRICS_ENABLED

Malformed numbers and durations are reported by LoadFromEnv rather than
silently ignored.
*/
package config
