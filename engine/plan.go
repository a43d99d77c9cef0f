package engine

import (
	"context"
	"sort"

	"github.com/franksops/gowarm/provider"
)

// WarmPlan is the snapshot a warming run is accounted against: every regular
// file found under the root at estimation time, plus the totals progress
// percentages are computed from. A plan is read-only once built; files are
// not re-walked or re-stat'd during warming.
type WarmPlan struct {
	// TotalBytes is the sum of all entry sizes.
	TotalBytes int64

	// TotalFiles is the number of entries.
	TotalFiles int64

	// Entries holds one WarmJob per regular file, sorted by path so two
	// plans over the same unchanged tree are identical.
	Entries []WarmJob

	// Skipped counts entries excluded from the plan because they could not
	// be read during the walk (permission errors, races with deletion).
	Skipped int64
}

// PlanProgressFunc receives running totals while a plan is being built.
// It is called from the draining goroutine only.
type PlanProgressFunc func(filesFound, bytesFound int64)

// BuildPlan drains a single walk of root into a WarmPlan. Soft walk errors
// reduce the plan implicitly and increment Skipped; only a fatal root error
// fails the build.
func BuildPlan(ctx context.Context, src provider.Provider, root string, progress PlanProgressFunc) (*WarmPlan, error) {
	jobChan := make(JobChannel, 1024)
	walker := NewWalker(src, jobChan)

	var skipped int64
	var walkErr error
	go func() {
		defer close(jobChan)
		skipped, walkErr = walker.Walk(ctx, root)
	}()

	plan := &WarmPlan{}
	for job := range jobChan {
		plan.Entries = append(plan.Entries, job)
		plan.TotalBytes += job.Size
		plan.TotalFiles++
		if progress != nil {
			progress(plan.TotalFiles, plan.TotalBytes)
		}
	}

	// The channel is closed, so the walker goroutine's writes are visible.
	if walkErr != nil {
		return nil, walkErr
	}
	plan.Skipped = skipped

	// Native tree walks may deliver entries in a nondeterministic order;
	// sorting keeps the plan stable for a given tree.
	sort.Slice(plan.Entries, func(i, j int) bool {
		return plan.Entries[i].Path < plan.Entries[j].Path
	})

	return plan, nil
}
