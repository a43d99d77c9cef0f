package provider

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"github.com/charlievieth/fastwalk"
)

type localFileInfo struct {
	name    string
	size    int64
	isDir   bool
	modTime time.Time
	mode    os.FileMode
}

func (l *localFileInfo) Name() string       { return l.name }
func (l *localFileInfo) Size() int64        { return l.size }
func (l *localFileInfo) IsDir() bool        { return l.isDir }
func (l *localFileInfo) ModTime() time.Time { return l.modTime }
func (l *localFileInfo) Mode() os.FileMode  { return l.mode }

// WrapOSFileInfo converts an os.FileInfo into a ModedFileInfo.
func WrapOSFileInfo(info os.FileInfo) ModedFileInfo {
	return &localFileInfo{
		name:    info.Name(),
		size:    info.Size(),
		isDir:   info.IsDir(),
		modTime: info.ModTime(),
		mode:    info.Mode(),
	}
}

// LocalProvider implements the Provider interface for posix-compliant local
// filesystems. It also implements TreeWalker via a parallel directory walk.
type LocalProvider struct {
	basePath    string
	followLinks bool
}

// NewLocalProvider creates a new LocalProvider rooted at basePath.
// If basePath is empty, it acts upon absolute or relative paths directly.
func NewLocalProvider(basePath string) *LocalProvider {
	return &LocalProvider{basePath: basePath}
}

// WithFollowLinks makes walks descend into symlinked directories and read
// through symlinked files. Off by default since circular links would make
// the walk revisit subtrees.
func (p *LocalProvider) WithFollowLinks(follow bool) *LocalProvider {
	p.followLinks = follow
	return p
}

func (p *LocalProvider) resolve(path string) string {
	if p.basePath == "" {
		return path
	}
	return filepath.Join(p.basePath, filepath.Clean(path))
}

func (p *LocalProvider) unresolve(fullPath string) string {
	if p.basePath == "" {
		return fullPath
	}
	rel, err := filepath.Rel(p.basePath, fullPath)
	if err != nil {
		return fullPath
	}
	return rel
}

func (p *LocalProvider) Stat(ctx context.Context, path string) (FileInfo, error) {
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	default:
	}

	info, err := os.Stat(p.resolve(path))
	if err != nil {
		return nil, err
	}

	return WrapOSFileInfo(info), nil
}

func (p *LocalProvider) List(ctx context.Context, path string) ([]FileInfo, error) {
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	default:
	}

	entries, err := os.ReadDir(p.resolve(path))
	if err != nil {
		return nil, err
	}

	var infos []FileInfo
	for _, entry := range entries {
		info, err := entry.Info()
		if err != nil {
			// A file deleted between ReadDir and Info is no longer part of
			// the tree; anything else makes the listing incomplete, so the
			// caller gets the error instead of a silent gap.
			if errors.Is(err, fs.ErrNotExist) {
				continue
			}
			return nil, fmt.Errorf("failed to stat entry %s: %w", entry.Name(), err)
		}
		infos = append(infos, WrapOSFileInfo(info))
	}
	return infos, nil
}

func (p *LocalProvider) OpenRead(ctx context.Context, path string) (io.ReadCloser, error) {
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	default:
	}

	return os.Open(p.resolve(path))
}

// WalkTree traverses the subtree rooted at root with fastwalk, invoking fn
// for every regular file. Directory read errors are reported to fn as soft
// failures so the caller can count them; the walk continues into siblings.
// fastwalk runs callbacks from multiple goroutines, so fn must be
// concurrency-safe.
func (p *LocalProvider) WalkTree(ctx context.Context, root string, fn WalkFunc) error {
	conf := &fastwalk.Config{
		Follow: p.followLinks,
	}

	fullRoot := p.resolve(root)

	return fastwalk.Walk(conf, fullRoot, func(path string, d fs.DirEntry, err error) error {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		if err != nil {
			return fn(p.unresolve(path), nil, err)
		}

		if path == fullRoot || d.IsDir() {
			return nil
		}

		if d.Type()&os.ModeSymlink != 0 {
			if !p.followLinks {
				return nil
			}
			// Resolve the link target; only regular targets get warmed.
			info, serr := os.Stat(path)
			if serr != nil {
				return fn(p.unresolve(path), nil, serr)
			}
			if !info.Mode().IsRegular() {
				return nil
			}
			return fn(p.unresolve(path), WrapOSFileInfo(info), nil)
		}

		if !d.Type().IsRegular() {
			return nil // sockets, devices, fifos
		}

		info, ierr := d.Info()
		if ierr != nil {
			return fn(p.unresolve(path), nil, ierr)
		}

		return fn(p.unresolve(path), WrapOSFileInfo(info), nil)
	})
}

// compile-time capability checks
var (
	_ Provider   = (*LocalProvider)(nil)
	_ TreeWalker = (*LocalProvider)(nil)
)
