/*
Package fuse mounts a treefs driver as a POSIX filesystem using go-fuse.

Every kernel request becomes one verb on filesystem.FilesystemInterface, so
the mounted tree shares the driver's path cache with the CLI and any other
frontend built on the same Driver:

	Lookup, Getattr    Stat
	Readdir            ReadDir (non-recursive)
	Mkdir              Mkdir
	Create             WriteFile with empty content
	Unlink             Remove
	Rmdir              RemoveAll after checking the directory is empty
	Rename             Rename (RENAME_NOREPLACE supported, RENAME_EXCHANGE is not)

Objects are whole blobs in the remote store, so file content is buffered per
open handle. The first Read or Write downloads the object; Flush, Fsync and
Release upload the buffer when it has been modified. Opening with O_TRUNC
starts from an empty buffer without downloading.

Nodes derive their path from their position in the inode tree, so a
directory that is renamed while its children are cached keeps resolving
correctly.

# Errors

Driver errors map to errno values by code:

	PATH_NOT_FOUND, OBJECT_NOT_FOUND      ENOENT
	PATH_ALREADY_EXISTS                   EEXIST
	PATH_TYPE_CONFLICT                    ENOTDIR
	PATH_DEPTH_EXCEEDED                   ENAMETOOLONG
	PATH_INVALID, VALIDATION_FAILED       EINVAL
	TREE_PROTECTED_OBJECT                 EPERM
	ACCESS_DENIED                         EACCES
	REMOTE_CIRCUIT_OPEN                   EAGAIN
	OPERATION_TIMEOUT                     ETIMEDOUT
	OPERATION_CANCELED                    EINTR

Anything else, including ambiguous names and transient store failures, is
EIO and logged at warn level.

# Usage

	mount := fuse.CreatePlatformMountManager(driver, fuse.DefaultConfig(),
		&fuse.MountConfig{MountPoint: "/mnt/drive"}, logger)
	if err := mount.Mount(ctx); err != nil {
		return err
	}
	defer mount.Unmount()
	mount.Wait()
*/
package fuse
