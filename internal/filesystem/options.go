package filesystem

import (
	"log/slog"
	"os"

	"github.com/objectfs/treefs/pkg/types"
)

const (
	// DefaultMaxFolderLevel bounds how many directory levels a path may have.
	DefaultMaxFolderLevel = 128
	// DefaultListPageSize is the listing page size requested from the store.
	DefaultListPageSize = 1000
	// MaxListPageSize is the largest page size a store accepts.
	MaxListPageSize = 1000
)

// Options configures the resolver, builder, lister and Driver.
type Options struct {
	// RootID overrides the store's root object ID.
	RootID string `yaml:"root_id"`
	// MaxFolderLevel bounds directory nesting. Deeper segments are folded
	// into the final name during resolution; EnsureDirectory rejects them.
	MaxFolderLevel int `yaml:"max_folder_level"`
	// ListPageSize is clamped to [1, MaxListPageSize].
	ListPageSize      int              `yaml:"list_page_size"`
	DefaultVisibility types.Visibility `yaml:"default_visibility"`
	// ExportMap maps native document MIME types to their download format.
	ExportMap map[string]string `yaml:"export_map"`

	FileMode os.FileMode `yaml:"file_mode"`
	DirMode  os.FileMode `yaml:"dir_mode"`

	Logger  *slog.Logger           `yaml:"-"`
	Metrics types.MetricsCollector `yaml:"-"`
}

// DefaultOptions returns the default options.
func DefaultOptions() Options {
	return Options{
		MaxFolderLevel:    DefaultMaxFolderLevel,
		ListPageSize:      DefaultListPageSize,
		DefaultVisibility: types.VisibilityPrivate,
		ExportMap: map[string]string{
			"application/vnd.google-apps.document":     "application/vnd.openxmlformats-officedocument.wordprocessingml.document",
			"application/vnd.google-apps.spreadsheet":  "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet",
			"application/vnd.google-apps.presentation": "application/vnd.openxmlformats-officedocument.presentationml.presentation",
			"application/vnd.google-apps.drawing":      "image/svg+xml",
		},
		FileMode: 0644,
		DirMode:  0755,
	}
}

// withDefaults fills zero fields from DefaultOptions.
func (o Options) withDefaults() Options {
	def := DefaultOptions()
	if o.MaxFolderLevel <= 0 {
		o.MaxFolderLevel = def.MaxFolderLevel
	}
	if o.ListPageSize == 0 {
		o.ListPageSize = def.ListPageSize
	}
	o.ListPageSize = clampPageSize(o.ListPageSize)
	if o.DefaultVisibility == "" {
		o.DefaultVisibility = def.DefaultVisibility
	}
	if o.ExportMap == nil {
		o.ExportMap = def.ExportMap
	}
	if o.FileMode == 0 {
		o.FileMode = def.FileMode
	}
	if o.DirMode == 0 {
		o.DirMode = def.DirMode
	}
	if o.Logger == nil {
		o.Logger = slog.Default()
	}
	if o.Metrics == nil {
		o.Metrics = types.NopMetrics{}
	}
	return o
}

func clampPageSize(n int) int {
	if n < 1 {
		return 1
	}
	if n > MaxListPageSize {
		return MaxListPageSize
	}
	return n
}
