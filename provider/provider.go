package provider

import (
	"context"
	"io"
	"os"
	"time"
)

// FileInfo represents the standard metadata for a file or a directory
// across different storage abstractions.
type FileInfo interface {
	Name() string
	Size() int64
	IsDir() bool
	ModTime() time.Time
}

// ModedFileInfo extends FileInfo with the full file mode so callers can
// tell regular files apart from symlinks, sockets and devices.
type ModedFileInfo interface {
	FileInfo
	Mode() os.FileMode
}

// Provider represents a read-only storage backend abstraction.
// A typical Provider might be a local filesystem or an S3 prefix.
// The warming engine only ever reads, so there is no write surface.
type Provider interface {
	// Stat returns the FileInfo for the given path.
	Stat(ctx context.Context, path string) (FileInfo, error)

	// List returns the contents of the given directory.
	List(ctx context.Context, path string) ([]FileInfo, error)

	// OpenRead opens a file for streaming reads.
	OpenRead(ctx context.Context, path string) (io.ReadCloser, error)
}

// WalkFunc is invoked once per regular file visited by a TreeWalker, or with
// a non-nil err for entries that could not be read. Returning a non-nil
// error aborts the walk. TreeWalker implementations may invoke it from
// multiple goroutines.
type WalkFunc func(path string, info FileInfo, err error) error

// TreeWalker is an optional Provider capability: a backend-native traversal
// of an entire subtree. Backends that can enumerate a tree cheaper than
// repeated List calls (parallel directory reads, a single flat object
// listing) should implement it.
type TreeWalker interface {
	WalkTree(ctx context.Context, root string, fn WalkFunc) error
}

// IsRegular reports whether info describes a plain file whose bytes can be
// read sequentially. Backends that carry no mode information (object stores)
// only expose data objects, so the answer defaults to true for
// non-directories.
func IsRegular(info FileInfo) bool {
	if info == nil || info.IsDir() {
		return false
	}
	if m, ok := info.(ModedFileInfo); ok {
		return m.Mode().IsRegular()
	}
	return true
}
