package utils

import (
	"fmt"
	"path/filepath"
	"strings"
)

// RootPath is the canonical form of the tree root.
const RootPath = "/"

// CleanPath converts any user supplied path into its canonical absolute
// form. Backslashes are treated as separators and empty, "." and ".."
// segments are dropped, so the result never escapes the root.
//
//	CleanPath(`a\b/./c/`) == "/a/b/c"
//	CleanPath("")          == "/"
func CleanPath(path string) string {
	segs := Segments(path)
	if len(segs) == 0 {
		return RootPath
	}
	return "/" + strings.Join(segs, "/")
}

// Segments returns the cleaned segment list of path. The root has no
// segments.
func Segments(path string) []string {
	path = strings.ReplaceAll(path, `\`, "/")
	parts := strings.Split(path, "/")
	segs := make([]string, 0, len(parts))
	for _, p := range parts {
		switch p {
		case "", ".", "..":
			continue
		}
		segs = append(segs, p)
	}
	return segs
}

// JoinSegments is the inverse of Segments.
func JoinSegments(segs []string) string {
	if len(segs) == 0 {
		return RootPath
	}
	return "/" + strings.Join(segs, "/")
}

// JoinPath appends name to an already canonical directory path.
func JoinPath(dir, name string) string {
	if dir == RootPath || dir == "" {
		return "/" + name
	}
	return dir + "/" + name
}

// SplitPath breaks path into directory segments and a final name. At most
// maxDepth directory segments are kept; the rest are folded into the final
// name, which then contains slashes. maxDepth <= 0 disables folding. The
// root yields (nil, "").
func SplitPath(path string, maxDepth int) ([]string, string) {
	segs := Segments(path)
	if len(segs) == 0 {
		return nil, ""
	}
	if maxDepth > 0 && len(segs) > maxDepth+1 {
		return segs[:maxDepth], strings.Join(segs[maxDepth:], "/")
	}
	return segs[:len(segs)-1], segs[len(segs)-1]
}

// ResolvableSegments is SplitPath flattened back into one list: the
// directory segments followed by the (possibly folded) final name.
func ResolvableSegments(path string, maxDepth int) []string {
	dirs, name := SplitPath(path, maxDepth)
	if name == "" {
		return nil
	}
	return append(dirs, name)
}

// ParentPath returns the canonical parent of a canonical path. The root is
// its own parent.
func ParentPath(path string) string {
	if path == RootPath || path == "" {
		return RootPath
	}
	i := strings.LastIndex(path, "/")
	if i <= 0 {
		return RootPath
	}
	return path[:i]
}

// BaseName returns the last segment of a canonical path.
func BaseName(path string) string {
	if path == RootPath {
		return ""
	}
	return path[strings.LastIndex(path, "/")+1:]
}

// IsSubPath reports whether path equals prefix or lies below it, comparing
// whole segments.
func IsSubPath(prefix, path string) bool {
	if prefix == RootPath {
		return true
	}
	return path == prefix || strings.HasPrefix(path, prefix+"/")
}

// ValidatePath validates that a local file path is safe and does not contain
// directory traversal attempts.
//
// Example usage:
//
//	if err := ValidatePath(userProvidedPath, true); err != nil {
//		return fmt.Errorf("invalid path: %w", err)
//	}
func ValidatePath(path string, allowAbsolute bool) error {
	if path == "" {
		return fmt.Errorf("path cannot be empty")
	}

	cleanPath := filepath.Clean(path)

	if strings.Contains(cleanPath, "..") {
		return fmt.Errorf("path contains directory traversal: %s", path)
	}

	if !allowAbsolute && filepath.IsAbs(cleanPath) {
		return fmt.Errorf("absolute paths not allowed: %s", path)
	}

	return nil
}
