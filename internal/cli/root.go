package cli

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/objectfs/treefs/internal/adapter"
	"github.com/objectfs/treefs/internal/config"
	"github.com/objectfs/treefs/internal/filesystem"
	"github.com/objectfs/treefs/internal/remote"
	"github.com/objectfs/treefs/pkg/utils"
)

// Process exit codes.
const (
	ExitError = 1
	ExitPanic = 3
)

// Build-time variables set via ldflags
var (
	version = "dev"
	commit  = "unknown"
)

var rootFlags struct {
	configFile string
	logLevel   string
	storage    string
	envFile    string
}

// storeOverride replaces the configured store. Tests use it to share one
// in-memory store across commands.
var storeOverride remote.Store

var rootCmd = &cobra.Command{
	Use:   "treefs",
	Short: "Path-addressed access to ID-addressed object stores",
	Long: `treefs presents a remote store whose objects are addressed by ID, and
whose names need not be unique, as an ordinary slash-separated tree.

Paths are resolved with as few remote lookups as possible and the answers
are cached for the life of the process. Use the file commands for one-off
operations or "treefs mount" to expose the tree through FUSE.

Storage URIs:
  s3://bucket[/prefix]   objects in an S3 bucket (see storage.s3 in the config)
  mem://                 an empty in-memory store, useful for trying things out`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

// Execute runs the root command
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&rootFlags.configFile, "config", "c", "",
		"YAML configuration file")
	rootCmd.PersistentFlags().StringVar(&rootFlags.logLevel, "log-level", "",
		"Log level: DEBUG, INFO, WARN or ERROR (overrides the config)")
	rootCmd.PersistentFlags().StringVarP(&rootFlags.storage, "storage", "s", "",
		"Storage URI (overrides storage.uri)")
	rootCmd.PersistentFlags().StringVar(&rootFlags.envFile, "env-file", ".env",
		"File with TREEFS_* variables applied before the process environment")

	rootCmd.Version = fmt.Sprintf("%s (%s)", version, commit)
}

// loadConfig layers defaults, the config file, the environment and flags.
func loadConfig() (*config.Configuration, error) {
	cfg := config.NewDefault()
	if rootFlags.configFile != "" {
		if err := cfg.LoadFromFile(rootFlags.configFile); err != nil {
			return nil, err
		}
	}
	if err := cfg.LoadFromEnv(rootFlags.envFile); err != nil {
		return nil, err
	}
	if rootFlags.logLevel != "" {
		cfg.Global.LogLevel = rootFlags.logLevel
	}
	if rootFlags.storage != "" {
		cfg.Storage.URI = rootFlags.storage
	}
	return cfg, cfg.Validate()
}

// session is one command's view of the configured store.
type session struct {
	cfg     *config.Configuration
	adapter *adapter.Adapter
	driver  *filesystem.Driver
	logs    io.Closer
}

func openSession(ctx context.Context) (*session, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	logs, err := utils.SetupLogging(utils.LogOptions{
		Level:  cfg.Global.LogLevel,
		File:   cfg.Global.LogFile,
		Format: cfg.Global.LogFormat,
	})
	if err != nil {
		return nil, err
	}

	opts := []adapter.Option{adapter.WithLogger(slog.Default())}
	if storeOverride != nil {
		opts = append(opts, adapter.WithStore(storeOverride))
	}
	a, err := adapter.New(ctx, cfg, opts...)
	if err != nil {
		_ = logs.Close()
		return nil, err
	}

	return &session{cfg: cfg, adapter: a, driver: a.Driver(), logs: logs}, nil
}

func (s *session) Close() error {
	return s.logs.Close()
}

// withSession runs fn against a freshly opened session.
func withSession(cmd *cobra.Command, fn func(ctx context.Context, s *session) error) error {
	parent := cmd.Context()
	if parent == nil {
		parent = context.Background()
	}
	ctx := filesystem.WithProtocol(parent, "cli")
	s, err := openSession(ctx)
	if err != nil {
		return err
	}
	defer s.Close()
	return fn(ctx, s)
}

func stderr(cmd *cobra.Command) io.Writer {
	if cmd == nil {
		return os.Stderr
	}
	return cmd.ErrOrStderr()
}
