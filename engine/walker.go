package engine

import (
	"context"
	"fmt"
	"path/filepath"
	"sync/atomic"

	"github.com/franksops/gowarm/provider"
)

// Walker traverses a directory tree to push WarmJobs to a channel. The
// fallback traversal is iterative (stack-based) to avoid deep recursion on
// very deep directory structures; providers implementing TreeWalker get to
// use their native traversal instead.
//
// Unreadable subdirectories are soft failures: they are counted as skipped
// and the walk continues into siblings. Only a failure on the root itself
// aborts the walk.
type Walker struct {
	SourceProvider provider.Provider
	JobChan        JobChannel
}

// NewWalker creates a new directory walker.
func NewWalker(src provider.Provider, jobChan JobChannel) *Walker {
	return &Walker{
		SourceProvider: src,
		JobChan:        jobChan,
	}
}

// Walk enumerates every regular file under root, sending one WarmJob per
// file. It returns the number of entries skipped due to soft errors. The
// walker never reads file contents.
func (w *Walker) Walk(ctx context.Context, root string) (int64, error) {
	if tw, ok := w.SourceProvider.(provider.TreeWalker); ok {
		return w.walkNative(ctx, tw, root)
	}
	return w.walkStack(ctx, root)
}

// walkNative delegates traversal to the provider. The callback may run
// concurrently, so the skip counter is atomic.
func (w *Walker) walkNative(ctx context.Context, tw provider.TreeWalker, root string) (int64, error) {
	var skipped atomic.Int64

	err := tw.WalkTree(ctx, root, func(path string, info provider.FileInfo, err error) error {
		if err != nil {
			skipped.Add(1)
			return nil
		}
		if !provider.IsRegular(info) {
			return nil
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case w.JobChan <- WarmJob{Path: path, Size: info.Size()}:
			return nil
		}
	})

	return skipped.Load(), err
}

// walkStack is the provider-agnostic traversal built on List calls.
func (w *Walker) walkStack(ctx context.Context, root string) (int64, error) {
	var skipped int64

	// Paths on the stack are relative to root so job paths compose cheaply.
	stack := []string{""}

	for len(stack) > 0 {
		select {
		case <-ctx.Done():
			return skipped, ctx.Err()
		default:
		}

		relPath := stack[len(stack)-1]
		stack = stack[:len(stack)-1]

		currentPath := root
		if relPath != "" {
			currentPath = filepath.Join(root, relPath)
		}

		entries, err := w.SourceProvider.List(ctx, currentPath)
		if err != nil {
			if relPath == "" {
				return skipped, fmt.Errorf("failed to list root %s: %w", root, err)
			}
			// Unreadable subtree: count it once and keep walking siblings.
			skipped++
			continue
		}

		for _, entry := range entries {
			entryRelPath := entry.Name()
			if relPath != "" {
				entryRelPath = filepath.Join(relPath, entry.Name())
			}

			if entry.IsDir() {
				stack = append(stack, entryRelPath)
				continue
			}

			if !provider.IsRegular(entry) {
				continue
			}

			job := WarmJob{
				Path: filepath.Join(root, entryRelPath),
				Size: entry.Size(),
			}

			select {
			case <-ctx.Done():
				return skipped, ctx.Err()
			case w.JobChan <- job:
				// Enqueued
			}
		}
	}

	return skipped, nil
}
