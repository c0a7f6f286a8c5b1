package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
)

var mountFlags struct {
	readOnly   bool
	allowOther bool
}

var mountCmd = &cobra.Command{
	Use:   "mount MOUNTPOINT",
	Short: "Mount the store through FUSE",
	Long: `Mount the configured store at MOUNTPOINT and serve it until the process
receives SIGINT or SIGTERM, or the filesystem is unmounted externally.

The metrics endpoint is started alongside the mount when
monitoring.metrics.enabled is set.`,
	Example: `  treefs mount /mnt/drive --storage s3://my-bucket/team
  treefs mount /mnt/drive --config treefs.yaml --read-only`,
	Args: cobra.ExactArgs(1),
	RunE: runMount,
}

var serveMetricsCmd = &cobra.Command{
	Use:   "serve-metrics",
	Short: "Check the store and serve metrics without mounting",
	Args:  cobra.NoArgs,
	RunE:  runServeMetrics,
}

// shutdownTimeout bounds unmounting and stopping the metrics server.
const shutdownTimeout = 10 * time.Second

func init() {
	rootCmd.AddCommand(mountCmd, serveMetricsCmd)

	mountCmd.Flags().BoolVar(&mountFlags.readOnly, "read-only", false, "Mount read-only (overrides mount.read_only)")
	mountCmd.Flags().BoolVar(&mountFlags.allowOther, "allow-other", false, "Let other users access the mount (overrides mount.allow_other)")
}

func runMount(cmd *cobra.Command, args []string) error {
	mountPoint := args[0]

	return withSession(cmd, func(ctx context.Context, s *session) error {
		if mountFlags.readOnly {
			s.cfg.Mount.ReadOnly = true
		}
		if mountFlags.allowOther {
			s.cfg.Mount.AllowOther = true
		}

		ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
		defer stop()

		if err := s.adapter.Start(ctx); err != nil {
			return err
		}
		defer shutdown(cmd, s)

		if err := s.adapter.Mount(ctx, mountPoint); err != nil {
			return err
		}
		fmt.Fprintf(stderr(cmd), "Mounted %s at %s\n", s.cfg.Storage.URI, mountPoint)

		unmounted := make(chan struct{})
		go func() {
			s.adapter.Wait()
			close(unmounted)
		}()

		select {
		case <-ctx.Done():
			fmt.Fprintln(stderr(cmd), "Shutting down")
		case <-unmounted:
			fmt.Fprintf(stderr(cmd), "%s was unmounted\n", mountPoint)
		}
		return nil
	})
}

func runServeMetrics(cmd *cobra.Command, args []string) error {
	return withSession(cmd, func(ctx context.Context, s *session) error {
		if !s.cfg.Monitoring.Metrics.Enabled {
			return fmt.Errorf("metrics are disabled (set monitoring.metrics.enabled)")
		}

		ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
		defer stop()

		if err := s.adapter.Start(ctx); err != nil {
			return err
		}
		defer shutdown(cmd, s)

		fmt.Fprintf(stderr(cmd), "Serving metrics on :%d%s\n",
			s.cfg.Global.MetricsPort, s.cfg.Monitoring.Metrics.Path)
		<-ctx.Done()
		return nil
	})
}

func shutdown(cmd *cobra.Command, s *session) {
	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := s.adapter.Stop(ctx); err != nil {
		fmt.Fprintf(stderr(cmd), "Warning: shutdown: %v\n", err)
	}
}
