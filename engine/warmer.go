package engine

import (
	"context"
	"errors"
	"fmt"
	"io"
	"runtime"

	"github.com/franksops/gowarm/provider"
)

// ErrNotDirectory is returned when the warming root exists but is not a
// directory.
var ErrNotDirectory = errors.New("root path is not a directory")

// Warmer forces every data block under a root to be read once so that a
// lazily-materialized volume (e.g. restored from a snapshot) is fully
// populated before a latency-sensitive application needs it. It never
// interprets or retains file contents.
type Warmer struct {
	src  provider.Provider
	root string

	workers      int
	bufPool      *BufferPool
	tracker      *RunTracker
	resume       bool
	planProgress PlanProgressFunc
}

// Option configures a Warmer.
type Option func(*Warmer)

// WithWorkers sets the worker pool size. Values <= 0 keep the default of
// the host's available parallelism.
func WithWorkers(n int) Option {
	return func(w *Warmer) {
		if n > 0 {
			w.workers = n
		}
	}
}

// WithBufferSize sets the per-worker read buffer size in bytes.
func WithBufferSize(n int) Option {
	return func(w *Warmer) {
		w.bufPool = NewBufferPool(n)
	}
}

// WithTracker journals per-file and per-run state to the given tracker.
func WithTracker(t *RunTracker) Option {
	return func(w *Warmer) {
		w.tracker = t
	}
}

// WithResume skips files the tracker's journal already records as warmed at
// an unchanged size. Requires WithTracker.
func WithResume(resume bool) Option {
	return func(w *Warmer) {
		w.resume = resume
	}
}

// WithPlanProgress reports running totals while the estimation pass runs.
func WithPlanProgress(fn PlanProgressFunc) Option {
	return func(w *Warmer) {
		w.planProgress = fn
	}
}

// NewWarmer validates the root eagerly and returns a warmer over it. A root
// that does not exist or is not a directory is a fatal configuration error:
// no plan or iterator is ever produced for it.
func NewWarmer(ctx context.Context, src provider.Provider, root string, opts ...Option) (*Warmer, error) {
	info, err := src.Stat(ctx, root)
	if err != nil {
		return nil, fmt.Errorf("failed to stat root %s: %w", root, err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("%s: %w", root, ErrNotDirectory)
	}

	w := &Warmer{
		src:     src,
		root:    root,
		workers: runtime.NumCPU(),
		bufPool: NewBufferPool(0),
	}
	for _, opt := range opts {
		opt(w)
	}

	return w, nil
}

// Workers returns the configured worker pool size.
func (w *Warmer) Workers() int {
	return w.workers
}

// Plan runs the size-estimation pass: one full walk of the tree, touching
// only metadata. The resulting plan is the denominator all progress is
// reported against.
func (w *Warmer) Plan(ctx context.Context) (*WarmPlan, error) {
	plan, err := BuildPlan(ctx, w.src, w.root, w.planProgress)
	if err != nil {
		return nil, err
	}
	if w.tracker != nil {
		if terr := w.tracker.BeginRun(plan); terr != nil {
			return nil, terr
		}
	}
	return plan, nil
}

// Warm starts reading every file in the plan through the worker pool and
// returns the progress iterator. The returned Iter is the single point of
// synchronization with the run: pull it until exhaustion, or Close it to
// cancel early.
func (w *Warmer) Warm(ctx context.Context, plan *WarmPlan) *Iter {
	ctx, cancel := context.WithCancel(ctx)
	it := newIter(plan, cancel)

	jobChan := make(JobChannel, 1024)
	pool := NewWorkerPool(ctx, jobChan, func(ctx context.Context, job WarmJob) error {
		return w.warmFile(ctx, it, job)
	})
	it.pool = pool
	pool.SetWorkerCount(w.workers)

	// Seed the queue once, then close it; workers only drain. Files the
	// journal already records as warmed are credited without being read.
	seedDone := make(chan struct{})
	go func() {
		defer close(seedDone)
		defer close(jobChan)
		for _, job := range plan.Entries {
			if w.resume && w.tracker != nil && w.tracker.IsWarmed(job.Path, job.Size) {
				it.send(ctx, Delta{Bytes: job.Size, Files: 1})
				continue
			}
			select {
			case <-ctx.Done():
				return
			case jobChan <- job:
			}
		}
	}()

	// End-of-stream: the delta channel closes only after both producers are
	// done. Waiting on the pool alone is not enough: a cancelled run lets
	// workers exit while the seeder may still be crediting resumed files.
	go func() {
		<-seedDone
		pool.Wait()
		close(it.deltas)
	}()

	if w.tracker != nil {
		it.onDone = func(final Snapshot) {
			_ = w.tracker.FinishRun(final)
		}
	}

	return it
}

// Run chains Plan and Warm.
func (w *Warmer) Run(ctx context.Context) (*WarmPlan, *Iter, error) {
	plan, err := w.Plan(ctx)
	if err != nil {
		return nil, nil, err
	}
	return plan, w.Warm(ctx, plan), nil
}

// warmFile reads one file start to end in bounded chunks, discarding the
// bytes. Progress is accounted against the planned snapshot size: chunk
// deltas are capped at the planned size and the completion delta credits the
// remainder, so BytesDone can neither overshoot TotalBytes nor fall short on
// a clean run. A failure emits a single FileError delta and the worker moves
// on; it never aborts sibling work.
func (w *Warmer) warmFile(ctx context.Context, it *Iter, job WarmJob) error {
	// A cancelled run abandons queued files without marking them failed.
	select {
	case <-ctx.Done():
		return ctx.Err()
	default:
	}

	if w.tracker != nil {
		_ = w.tracker.MarkWarming(job)
	}

	rc, err := w.src.OpenRead(ctx, job.Path)
	if err != nil {
		it.send(ctx, Delta{Err: &FileError{Path: job.Path, Err: err}})
		if w.tracker != nil {
			_ = w.tracker.MarkFailed(job, err)
		}
		return err
	}
	defer rc.Close()

	buf := w.bufPool.Get()
	defer w.bufPool.Put(buf)

	var reported int64
	for {
		n, rerr := rc.Read(*buf)
		if n > 0 {
			credit := min(int64(n), job.Size-reported)
			if credit > 0 {
				reported += credit
				it.send(ctx, Delta{Bytes: credit})
			}
		}
		if rerr == io.EOF {
			break
		}
		if rerr != nil {
			it.send(ctx, Delta{Err: &FileError{Path: job.Path, Err: rerr}})
			if w.tracker != nil {
				_ = w.tracker.MarkFailed(job, rerr)
			}
			return rerr
		}
		// Cancellation is observed between chunks; progress already
		// reported stands.
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}
	}

	it.send(ctx, Delta{Bytes: job.Size - reported, Files: 1})
	if w.tracker != nil {
		_ = w.tracker.MarkWarmed(job)
	}
	return nil
}
