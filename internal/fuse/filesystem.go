package fuse

import (
	"bytes"
	"context"
	"io"
	"log/slog"
	"os"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/hanwen/go-fuse/v2/fs"
	"github.com/hanwen/go-fuse/v2/fuse"

	"github.com/objectfs/treefs/internal/filesystem"
	"github.com/objectfs/treefs/pkg/errors"
	"github.com/objectfs/treefs/pkg/utils"
)

// Rename flags from renameat2(2).
const (
	renameNoReplace = 0x1
	renameExchange  = 0x2
)

// safeInt64ToUint64 safely converts int64 to uint64, preventing negative values
func safeInt64ToUint64(i int64) uint64 {
	if i < 0 {
		return 0
	}
	return uint64(i)
}

// safeIntToUint32 safely converts int to uint32, preventing overflow
func safeIntToUint32(i int) uint32 {
	if i < 0 {
		return 0
	}
	if i > 0xFFFFFFFF {
		return 0xFFFFFFFF
	}
	return uint32(i)
}

// FileSystem exposes a filesystem.FilesystemInterface through go-fuse.
// Every node operation becomes one Driver verb; file contents are buffered
// per open handle and uploaded whole on flush.
type FileSystem struct {
	driver filesystem.FilesystemInterface
	config *Config
	logger *slog.Logger

	mu         sync.Mutex
	openFiles  map[uint64]*FileHandle
	nextHandle uint64

	stats *Stats
}

// Config represents FUSE filesystem configuration
type Config struct {
	ReadOnly bool   `yaml:"read_only"`
	UID      uint32 `yaml:"uid"`
	GID      uint32 `yaml:"gid"`

	EntryTimeout time.Duration `yaml:"entry_timeout"`
	AttrTimeout  time.Duration `yaml:"attr_timeout"`
}

// DefaultConfig returns a configuration owned by the current user.
func DefaultConfig() *Config {
	return &Config{
		UID:          safeIntToUint32(os.Getuid()),
		GID:          safeIntToUint32(os.Getgid()),
		EntryTimeout: time.Second,
		AttrTimeout:  time.Second,
	}
}

// Stats tracks filesystem operation statistics
type Stats struct {
	mu sync.RWMutex

	// Operation counts
	Lookups int64 `json:"lookups"`
	Opens   int64 `json:"opens"`
	Reads   int64 `json:"reads"`
	Writes  int64 `json:"writes"`
	Creates int64 `json:"creates"`
	Deletes int64 `json:"deletes"`
	Renames int64 `json:"renames"`
	Uploads int64 `json:"uploads"`

	// Data transfer
	BytesRead    int64 `json:"bytes_read"`
	BytesWritten int64 `json:"bytes_written"`

	// Error counts
	Errors int64 `json:"errors"`

	// Performance metrics
	AvgReadTime   time.Duration `json:"avg_read_time"`
	AvgWriteTime  time.Duration `json:"avg_write_time"`
	AvgLookupTime time.Duration `json:"avg_lookup_time"`
}

// NewFileSystem creates a new FUSE filesystem instance
func NewFileSystem(driver filesystem.FilesystemInterface, config *Config, logger *slog.Logger) *FileSystem {
	if config == nil {
		config = DefaultConfig()
	}
	if logger == nil {
		logger = slog.Default()
	}

	return &FileSystem{
		driver:     driver,
		config:     config,
		logger:     logger.With("component", "fuse"),
		openFiles:  make(map[uint64]*FileHandle),
		nextHandle: 1,
		stats:      &Stats{},
	}
}

// Root returns the root inode
func (fs *FileSystem) Root() fs.InodeEmbedder {
	return &DirectoryNode{
		fs:   fs,
		path: utils.RootPath,
	}
}

// GetStats returns current filesystem statistics
func (fs *FileSystem) GetStats() *Stats {
	fs.stats.mu.RLock()
	defer fs.stats.mu.RUnlock()

	return &Stats{
		Lookups:       fs.stats.Lookups,
		Opens:         fs.stats.Opens,
		Reads:         fs.stats.Reads,
		Writes:        fs.stats.Writes,
		Creates:       fs.stats.Creates,
		Deletes:       fs.stats.Deletes,
		Renames:       fs.stats.Renames,
		Uploads:       fs.stats.Uploads,
		BytesRead:     fs.stats.BytesRead,
		BytesWritten:  fs.stats.BytesWritten,
		Errors:        fs.stats.Errors,
		AvgReadTime:   fs.stats.AvgReadTime,
		AvgWriteTime:  fs.stats.AvgWriteTime,
		AvgLookupTime: fs.stats.AvgLookupTime,
	}
}

// OpenHandles returns the number of open file handles.
func (fs *FileSystem) OpenHandles() int {
	fs.mu.Lock()
	defer fs.mu.Unlock()
	return len(fs.openFiles)
}

// ctx tags a kernel request for the driver's logs.
func (fs *FileSystem) ctx(ctx context.Context) context.Context {
	return filesystem.WithProtocol(ctx, "fuse")
}

// fail counts err and converts it to an errno.
func (fs *FileSystem) fail(op, path string, err error) syscall.Errno {
	fs.stats.mu.Lock()
	fs.stats.Errors++
	fs.stats.mu.Unlock()

	errno := toErrno(err)
	if errno == syscall.EIO {
		fs.logger.Warn("Operation failed", "operation", op, "path", path, "error", err)
	} else {
		fs.logger.Debug("Operation failed", "operation", op, "path", path, "errno", errno, "error", err)
	}
	return errno
}

func (fs *FileSystem) count(field *int64) {
	fs.stats.mu.Lock()
	*field++
	fs.stats.mu.Unlock()
}

// toErrno maps driver errors onto the errno the kernel reports.
func toErrno(err error) syscall.Errno {
	if err == nil {
		return 0
	}
	if errors.Is(err, context.Canceled) {
		return syscall.EINTR
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return syscall.ETIMEDOUT
	}
	if errors.IsNotFound(err) {
		return syscall.ENOENT
	}

	switch errors.CodeOf(err) {
	case errors.ErrCodeAlreadyExists:
		return syscall.EEXIST
	case errors.ErrCodeTypeConflict:
		return syscall.ENOTDIR
	case errors.ErrCodeDepthExceeded:
		return syscall.ENAMETOOLONG
	case errors.ErrCodePathInvalid, errors.ErrCodeValidationFailed:
		return syscall.EINVAL
	case errors.ErrCodeProtected:
		return syscall.EPERM
	case errors.ErrCodeAccessDenied:
		return syscall.EACCES
	case errors.ErrCodeOperationTimeout:
		return syscall.ETIMEDOUT
	case errors.ErrCodeOperationCanceled:
		return syscall.EINTR
	case errors.ErrCodeCircuitOpen:
		return syscall.EAGAIN
	}

	switch {
	case errors.Is(err, os.ErrNotExist):
		return syscall.ENOENT
	case errors.Is(err, os.ErrExist):
		return syscall.EEXIST
	case errors.Is(err, os.ErrPermission):
		return syscall.EACCES
	}
	return syscall.EIO
}

// fillAttr copies driver metadata into a kernel attribute block.
func (fs *FileSystem) fillAttr(info filesystem.FileInfo, out *fuse.Attr) {
	perm := uint32(info.Mode().Perm())
	if fs.config.ReadOnly {
		perm &^= 0222
	}
	if info.IsDir() {
		out.Mode = fuse.S_IFDIR | perm
		out.Nlink = 2
	} else {
		out.Mode = fuse.S_IFREG | perm
		out.Nlink = 1
		out.Size = safeInt64ToUint64(info.Size())
	}
	out.Uid = fs.config.UID
	out.Gid = fs.config.GID

	mtime := info.ModTime()
	if !mtime.IsZero() {
		out.SetTimes(&mtime, &mtime, &mtime)
	}
}

func (fs *FileSystem) fillEntry(info filesystem.FileInfo, out *fuse.EntryOut) {
	fs.fillAttr(info, &out.Attr)
	out.SetEntryTimeout(fs.config.EntryTimeout)
	out.SetAttrTimeout(fs.config.AttrTimeout)
}

// pendingSize reports the buffered size of a dirty handle open on path.
func (fs *FileSystem) pendingSize(path string) (int64, bool) {
	fs.mu.Lock()
	defer fs.mu.Unlock()

	for _, h := range fs.openFiles {
		if size, ok := h.dirtySize(path); ok {
			return size, true
		}
	}
	return 0, false
}

// nodePath is the live path of an attached inode. Detached nodes fall back
// to the path they were created with.
func nodePath(n *fs.Inode, fallback string) string {
	if _, parent := n.Parent(); parent != nil {
		return utils.CleanPath(n.Path(nil))
	}
	return fallback
}

// DirectoryNode represents a directory in the filesystem
type DirectoryNode struct {
	fs.Inode
	fs   *FileSystem
	path string
}

var (
	_ fs.NodeLookuper  = (*DirectoryNode)(nil)
	_ fs.NodeReaddirer = (*DirectoryNode)(nil)
	_ fs.NodeGetattrer = (*DirectoryNode)(nil)
	_ fs.NodeMkdirer   = (*DirectoryNode)(nil)
	_ fs.NodeCreater   = (*DirectoryNode)(nil)
	_ fs.NodeUnlinker  = (*DirectoryNode)(nil)
	_ fs.NodeRmdirer   = (*DirectoryNode)(nil)
	_ fs.NodeRenamer   = (*DirectoryNode)(nil)
)

func (n *DirectoryNode) fullPath() string {
	return nodePath(&n.Inode, n.path)
}

func (n *DirectoryNode) joinPath(name string) string {
	return utils.JoinPath(n.fullPath(), name)
}

// Lookup looks up a child node by name
func (n *DirectoryNode) Lookup(ctx context.Context, name string, out *fuse.EntryOut) (*fs.Inode, syscall.Errno) {
	start := time.Now()
	n.fs.count(&n.fs.stats.Lookups)
	defer func() {
		n.fs.recordLookupTime(time.Since(start))
	}()

	childPath := n.joinPath(name)
	info, err := n.fs.driver.Stat(n.fs.ctx(ctx), childPath)
	if err != nil {
		return nil, n.fs.fail("lookup", childPath, err)
	}

	n.fs.fillEntry(info, out)
	return n.createChildNode(ctx, childPath, info), 0
}

// Getattr reports directory attributes
func (n *DirectoryNode) Getattr(ctx context.Context, fh fs.FileHandle, out *fuse.AttrOut) syscall.Errno {
	path := n.fullPath()
	info, err := n.fs.driver.Stat(n.fs.ctx(ctx), path)
	if err != nil {
		return n.fs.fail("getattr", path, err)
	}
	n.fs.fillAttr(info, &out.Attr)
	out.SetTimeout(n.fs.config.AttrTimeout)
	return 0
}

// Readdir reads directory contents
func (n *DirectoryNode) Readdir(ctx context.Context) (fs.DirStream, syscall.Errno) {
	path := n.fullPath()
	entries, err := n.fs.driver.ReadDir(n.fs.ctx(ctx), path, false)
	if err != nil {
		return nil, n.fs.fail("readdir", path, err)
	}

	out := make([]fuse.DirEntry, 0, len(entries))
	seen := make(map[string]bool, len(entries))
	for _, e := range entries {
		// Only the first of several same-named objects is reachable by path.
		// Depth-folded names hold slashes and cannot be a directory entry.
		if seen[e.Name] || strings.Contains(e.Name, "/") {
			continue
		}
		seen[e.Name] = true

		mode := uint32(fuse.S_IFREG)
		if e.IsDir {
			mode = fuse.S_IFDIR
		}
		out = append(out, fuse.DirEntry{Name: e.Name, Mode: mode})
	}
	return fs.NewListDirStream(out), 0
}

// Mkdir creates a new directory
func (n *DirectoryNode) Mkdir(ctx context.Context, name string, mode uint32, out *fuse.EntryOut) (*fs.Inode, syscall.Errno) {
	if n.fs.config.ReadOnly {
		return nil, syscall.EROFS
	}

	childPath := n.joinPath(name)
	ctx = n.fs.ctx(ctx)
	if exists, err := n.fs.driver.Exists(ctx, childPath); err != nil {
		return nil, n.fs.fail("mkdir", childPath, err)
	} else if exists {
		return nil, syscall.EEXIST
	}

	info, err := n.fs.driver.Mkdir(ctx, childPath, filesystem.MkdirOptions{})
	if err != nil {
		return nil, n.fs.fail("mkdir", childPath, err)
	}
	n.fs.count(&n.fs.stats.Creates)

	n.fs.fillEntry(info, out)
	return n.createChildNode(ctx, childPath, info), 0
}

// Create creates a new empty file and opens it
func (n *DirectoryNode) Create(ctx context.Context, name string, flags uint32, mode uint32, out *fuse.EntryOut) (node *fs.Inode, fh fs.FileHandle, fuseFlags uint32, errno syscall.Errno) {
	if n.fs.config.ReadOnly {
		return nil, nil, 0, syscall.EROFS
	}

	childPath := n.joinPath(name)
	info, err := n.fs.driver.WriteFile(n.fs.ctx(ctx), childPath, bytes.NewReader(nil), filesystem.WriteOptions{})
	if err != nil {
		return nil, nil, 0, n.fs.fail("create", childPath, err)
	}
	n.fs.count(&n.fs.stats.Creates)

	n.fs.fillEntry(info, out)
	node = n.createChildNode(ctx, childPath, info)

	// The object is empty, so there is nothing to download.
	handle := n.fs.openHandle(childPath, flags)
	handle.loaded = true
	return node, handle, fuse.FOPEN_DIRECT_IO, 0
}

// Unlink removes a file
func (n *DirectoryNode) Unlink(ctx context.Context, name string) syscall.Errno {
	if n.fs.config.ReadOnly {
		return syscall.EROFS
	}

	childPath := n.joinPath(name)
	ctx = n.fs.ctx(ctx)
	if isDir, err := n.fs.driver.IsDir(ctx, childPath); err != nil {
		return n.fs.fail("unlink", childPath, err)
	} else if isDir {
		return syscall.EISDIR
	}

	if err := n.fs.driver.Remove(ctx, childPath); err != nil {
		return n.fs.fail("unlink", childPath, err)
	}
	n.fs.count(&n.fs.stats.Deletes)
	return 0
}

// Rmdir removes an empty directory
func (n *DirectoryNode) Rmdir(ctx context.Context, name string) syscall.Errno {
	if n.fs.config.ReadOnly {
		return syscall.EROFS
	}

	childPath := n.joinPath(name)
	ctx = n.fs.ctx(ctx)
	info, err := n.fs.driver.Stat(ctx, childPath)
	if err != nil {
		return n.fs.fail("rmdir", childPath, err)
	}
	if !info.IsDir() {
		return syscall.ENOTDIR
	}

	entries, err := n.fs.driver.ReadDir(ctx, childPath, false)
	if err != nil {
		return n.fs.fail("rmdir", childPath, err)
	}
	if len(entries) > 0 {
		return syscall.ENOTEMPTY
	}

	if err := n.fs.driver.RemoveAll(ctx, childPath); err != nil {
		return n.fs.fail("rmdir", childPath, err)
	}
	n.fs.count(&n.fs.stats.Deletes)
	return 0
}

// Rename moves name to newName under newParent
func (n *DirectoryNode) Rename(ctx context.Context, name string, newParent fs.InodeEmbedder, newName string, flags uint32) syscall.Errno {
	if n.fs.config.ReadOnly {
		return syscall.EROFS
	}
	if flags&renameExchange != 0 {
		return syscall.EINVAL
	}

	target, ok := newParent.(*DirectoryNode)
	if !ok {
		return syscall.EXDEV
	}

	from := n.joinPath(name)
	to := target.joinPath(newName)
	ctx = n.fs.ctx(ctx)

	if flags&renameNoReplace != 0 {
		if exists, err := n.fs.driver.Exists(ctx, to); err != nil {
			return n.fs.fail("rename", to, err)
		} else if exists {
			return syscall.EEXIST
		}
	}

	if err := n.fs.driver.Rename(ctx, from, to); err != nil {
		return n.fs.fail("rename", from, err)
	}
	n.fs.count(&n.fs.stats.Renames)
	return 0
}

func (n *DirectoryNode) createChildNode(ctx context.Context, path string, info filesystem.FileInfo) *fs.Inode {
	if info.IsDir() {
		return n.NewInode(ctx, &DirectoryNode{fs: n.fs, path: path}, fs.StableAttr{
			Mode: fuse.S_IFDIR,
		})
	}
	return n.NewInode(ctx, &FileNode{fs: n.fs, path: path}, fs.StableAttr{
		Mode: fuse.S_IFREG,
	})
}

// FileNode represents a file in the filesystem
type FileNode struct {
	fs.Inode
	fs   *FileSystem
	path string
}

var (
	_ fs.NodeOpener    = (*FileNode)(nil)
	_ fs.NodeGetattrer = (*FileNode)(nil)
	_ fs.NodeSetattrer = (*FileNode)(nil)
)

func (f *FileNode) fullPath() string {
	return nodePath(&f.Inode, f.path)
}

// Open opens a file
func (f *FileNode) Open(ctx context.Context, flags uint32) (fh fs.FileHandle, fuseFlags uint32, errno syscall.Errno) {
	f.fs.count(&f.fs.stats.Opens)

	writing := flags&(syscall.O_WRONLY|syscall.O_RDWR|syscall.O_TRUNC|syscall.O_APPEND) != 0
	if f.fs.config.ReadOnly && writing {
		return nil, 0, syscall.EROFS
	}

	handle := f.fs.openHandle(f.fullPath(), flags)
	if flags&syscall.O_TRUNC != 0 {
		handle.loaded = true
		handle.dirty = true
	}
	return handle, fuse.FOPEN_DIRECT_IO, 0
}

// Getattr gets file attributes
func (f *FileNode) Getattr(ctx context.Context, fh fs.FileHandle, out *fuse.AttrOut) syscall.Errno {
	path := f.fullPath()
	info, err := f.fs.driver.Stat(f.fs.ctx(ctx), path)
	if err != nil {
		return f.fs.fail("getattr", path, err)
	}

	f.fs.fillAttr(info, &out.Attr)
	if size, ok := f.fs.pendingSize(path); ok {
		out.Size = safeInt64ToUint64(size)
	}
	out.SetTimeout(f.fs.config.AttrTimeout)
	return 0
}

// Setattr applies truncation. Ownership and mode changes are accepted and
// ignored since the store keeps neither.
func (f *FileNode) Setattr(ctx context.Context, fh fs.FileHandle, in *fuse.SetAttrIn, out *fuse.AttrOut) syscall.Errno {
	if size, ok := in.GetSize(); ok {
		if f.fs.config.ReadOnly {
			return syscall.EROFS
		}

		handle, open := fh.(*FileHandle)
		if !open {
			handle = f.fs.openHandle(f.fullPath(), syscall.O_WRONLY)
			defer func() { _ = handle.Release(ctx) }()
		}
		if errno := handle.truncate(ctx, int64(size)); errno != 0 {
			return errno
		}
		if !open {
			if errno := handle.Flush(ctx); errno != 0 {
				return errno
			}
		}
	}
	return f.Getattr(ctx, fh, out)
}

// FileHandle buffers the content of one open file.
type FileHandle struct {
	fs     *FileSystem
	handle uint64
	path   string
	flags  uint32

	mu     sync.Mutex
	data   []byte
	loaded bool
	dirty  bool

	lastAccess  time.Time
	accessCount int64
}

var (
	_ fs.FileReader   = (*FileHandle)(nil)
	_ fs.FileWriter   = (*FileHandle)(nil)
	_ fs.FileFlusher  = (*FileHandle)(nil)
	_ fs.FileFsyncer  = (*FileHandle)(nil)
	_ fs.FileReleaser = (*FileHandle)(nil)
)

func (fs *FileSystem) openHandle(path string, flags uint32) *FileHandle {
	fs.mu.Lock()
	defer fs.mu.Unlock()

	h := &FileHandle{
		fs:         fs,
		handle:     fs.nextHandle,
		path:       path,
		flags:      flags,
		lastAccess: time.Now(),
	}
	fs.openFiles[h.handle] = h
	fs.nextHandle++
	return h
}

func (fh *FileHandle) dirtySize(path string) (int64, bool) {
	fh.mu.Lock()
	defer fh.mu.Unlock()

	if fh.path != path || !fh.dirty {
		return 0, false
	}
	return int64(len(fh.data)), true
}

// load downloads the file content on first use. Callers hold fh.mu.
func (fh *FileHandle) load(ctx context.Context) syscall.Errno {
	if fh.loaded {
		return 0
	}

	rc, err := fh.fs.driver.ReadFile(fh.fs.ctx(ctx), fh.path)
	if err != nil {
		return fh.fs.fail("read", fh.path, err)
	}
	defer rc.Close()

	data, err := io.ReadAll(rc)
	if err != nil {
		return fh.fs.fail("read", fh.path, err)
	}
	fh.data = data
	fh.loaded = true
	return 0
}

// Read reads data from the file
func (fh *FileHandle) Read(ctx context.Context, dest []byte, off int64) (fuse.ReadResult, syscall.Errno) {
	start := time.Now()
	fh.fs.count(&fh.fs.stats.Reads)
	defer func() {
		fh.fs.recordReadTime(time.Since(start))
	}()

	fh.mu.Lock()
	defer fh.mu.Unlock()

	fh.lastAccess = time.Now()
	fh.accessCount++

	if errno := fh.load(ctx); errno != 0 {
		return nil, errno
	}
	if off >= int64(len(fh.data)) {
		return fuse.ReadResultData(nil), 0
	}

	end := min(off+int64(len(dest)), int64(len(fh.data)))
	chunk := fh.data[off:end]

	fh.fs.stats.mu.Lock()
	fh.fs.stats.BytesRead += int64(len(chunk))
	fh.fs.stats.mu.Unlock()

	return fuse.ReadResultData(chunk), 0
}

// Write writes data to the file buffer
func (fh *FileHandle) Write(ctx context.Context, data []byte, off int64) (written uint32, errno syscall.Errno) {
	if fh.fs.config.ReadOnly {
		return 0, syscall.EROFS
	}
	if off < 0 {
		return 0, syscall.EINVAL
	}

	start := time.Now()
	fh.fs.count(&fh.fs.stats.Writes)
	defer func() {
		fh.fs.recordWriteTime(time.Since(start))
	}()

	fh.mu.Lock()
	defer fh.mu.Unlock()

	if errno := fh.load(ctx); errno != 0 {
		return 0, errno
	}
	if fh.flags&syscall.O_APPEND != 0 {
		off = int64(len(fh.data))
	}

	end := off + int64(len(data))
	if end > int64(len(fh.data)) {
		grown := make([]byte, end)
		copy(grown, fh.data)
		fh.data = grown
	}
	copy(fh.data[off:end], data)
	fh.dirty = true
	fh.lastAccess = time.Now()

	fh.fs.stats.mu.Lock()
	fh.fs.stats.BytesWritten += int64(len(data))
	fh.fs.stats.mu.Unlock()

	return safeIntToUint32(len(data)), 0
}

func (fh *FileHandle) truncate(ctx context.Context, size int64) syscall.Errno {
	fh.mu.Lock()
	defer fh.mu.Unlock()

	if size == 0 {
		fh.data = nil
		fh.loaded = true
	} else {
		if errno := fh.load(ctx); errno != 0 {
			return errno
		}
		if size <= int64(len(fh.data)) {
			fh.data = fh.data[:size]
		} else {
			grown := make([]byte, size)
			copy(grown, fh.data)
			fh.data = grown
		}
	}
	fh.dirty = true
	return 0
}

// Flush uploads the buffer when it holds unsaved writes
func (fh *FileHandle) Flush(ctx context.Context) syscall.Errno {
	fh.mu.Lock()
	defer fh.mu.Unlock()

	if !fh.dirty {
		return 0
	}

	_, err := fh.fs.driver.WriteFile(fh.fs.ctx(ctx), fh.path, bytes.NewReader(fh.data), filesystem.WriteOptions{})
	if err != nil {
		return fh.fs.fail("flush", fh.path, err)
	}
	fh.dirty = false
	fh.fs.count(&fh.fs.stats.Uploads)
	return 0
}

// Fsync is Flush
func (fh *FileHandle) Fsync(ctx context.Context, flags uint32) syscall.Errno {
	return fh.Flush(ctx)
}

// Release releases the file handle
func (fh *FileHandle) Release(ctx context.Context) syscall.Errno {
	errno := fh.Flush(ctx)

	fh.fs.mu.Lock()
	delete(fh.fs.openFiles, fh.handle)
	fh.fs.mu.Unlock()

	return errno
}

func (fs *FileSystem) recordLookupTime(duration time.Duration) {
	fs.stats.mu.Lock()
	defer fs.stats.mu.Unlock()

	if fs.stats.Lookups == 1 {
		fs.stats.AvgLookupTime = duration
	} else {
		fs.stats.AvgLookupTime = time.Duration(
			(int64(fs.stats.AvgLookupTime)*9 + int64(duration)) / 10,
		)
	}
}

func (fs *FileSystem) recordReadTime(duration time.Duration) {
	fs.stats.mu.Lock()
	defer fs.stats.mu.Unlock()

	if fs.stats.Reads == 1 {
		fs.stats.AvgReadTime = duration
	} else {
		fs.stats.AvgReadTime = time.Duration(
			(int64(fs.stats.AvgReadTime)*9 + int64(duration)) / 10,
		)
	}
}

func (fs *FileSystem) recordWriteTime(duration time.Duration) {
	fs.stats.mu.Lock()
	defer fs.stats.mu.Unlock()

	if fs.stats.Writes == 1 {
		fs.stats.AvgWriteTime = duration
	} else {
		fs.stats.AvgWriteTime = time.Duration(
			(int64(fs.stats.AvgWriteTime)*9 + int64(duration)) / 10,
		)
	}
}
