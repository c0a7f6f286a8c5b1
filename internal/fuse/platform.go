package fuse

import (
	"context"
	"log/slog"

	"github.com/objectfs/treefs/internal/filesystem"
)

// PlatformFileSystem is a mounted view of a driver.
type PlatformFileSystem interface {
	Mount(ctx context.Context) error
	Unmount() error
	IsMounted() bool
	Wait()
	GetStats() *FilesystemStats
}

var _ PlatformFileSystem = (*MountManager)(nil)

// CreatePlatformMountManager builds the FUSE filesystem for driver and the
// manager that mounts it at mountConfig.MountPoint. ReadOnly in the mount
// options also makes the nodes refuse writes.
func CreatePlatformMountManager(driver filesystem.FilesystemInterface, fsConfig *Config,
	mountConfig *MountConfig, logger *slog.Logger) PlatformFileSystem {
	if fsConfig == nil {
		fsConfig = DefaultConfig()
	}
	if mountConfig != nil && mountConfig.Options != nil && mountConfig.Options.ReadOnly {
		fsConfig.ReadOnly = true
	}
	return NewMountManager(NewFileSystem(driver, fsConfig, logger), mountConfig)
}
