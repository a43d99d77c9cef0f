package engine

import (
	"context"
	"fmt"
)

// FileError records one file that failed to warm. It never aborts sibling
// work; it is carried on the progress stream and in the final failure list.
type FileError struct {
	Path string
	Err  error
}

func (e *FileError) Error() string {
	return fmt.Sprintf("%s: %v", e.Path, e.Err)
}

func (e *FileError) Unwrap() error {
	return e.Err
}

// Delta is a single progress event emitted by a worker: bytes read, a file
// completed, or a failure. A successful file contributes deltas summing to
// exactly its planned size plus one file count; a failed file contributes
// exactly one error delta.
type Delta struct {
	Bytes int64
	Files int64
	Err   *FileError
}

// Snapshot is an aggregated view of warming progress at a point in time.
// BytesDone and FilesDone are monotonically non-decreasing and never exceed
// their totals; a run with zero failures ends with BytesDone == TotalBytes.
type Snapshot struct {
	BytesDone   int64
	TotalBytes  int64
	FilesDone   int64
	TotalFiles  int64
	FilesFailed int64

	// LastError is the most recent failure, nil if none so far.
	LastError *FileError
}

// Percent returns completion as a 0..1 fraction of planned bytes.
func (s Snapshot) Percent() float64 {
	if s.TotalBytes == 0 {
		if s.TotalFiles == 0 || s.FilesDone+s.FilesFailed == s.TotalFiles {
			return 1
		}
		return 0
	}
	return float64(s.BytesDone) / float64(s.TotalBytes)
}

// Iter converts concurrent, unordered completion events from the worker pool
// into a strictly serialized pull-based stream of Snapshots. It is the only
// synchronization point between the workers and the consumer: a renderer can
// just pull and draw without locking of its own.
//
// Iter is single-consumer; Next must not be called from multiple goroutines.
type Iter struct {
	deltas chan Delta
	state  Snapshot

	failures []*FileError
	cancel   context.CancelFunc
	pool     *WorkerPool

	// onDone fires once, with the terminal snapshot, when the stream is
	// exhausted. Used to finalize the run journal.
	onDone func(Snapshot)
	done   bool
}

func newIter(plan *WarmPlan, cancel context.CancelFunc) *Iter {
	return &Iter{
		// Buffered so short bursts of worker completions don't stall on a
		// slow consumer.
		deltas: make(chan Delta, 256),
		state: Snapshot{
			TotalBytes: plan.TotalBytes,
			TotalFiles: plan.TotalFiles,
		},
		cancel: cancel,
	}
}

// send delivers a delta unless the run has been cancelled. Workers must use
// it instead of writing to the channel directly so an abandoned iterator
// cannot block the pool forever.
func (it *Iter) send(ctx context.Context, d Delta) {
	select {
	case it.deltas <- d:
	case <-ctx.Done():
	}
}

// Next blocks until the next progress delta arrives, merges it into the
// running state and returns the updated snapshot. It returns ok == false
// once every worker has terminated and all pending deltas were consumed;
// the returned snapshot is then the terminal state. The sequence is finite
// and not restartable.
func (it *Iter) Next() (Snapshot, bool) {
	d, ok := <-it.deltas
	if !ok {
		if !it.done {
			it.done = true
			if it.onDone != nil {
				it.onDone(it.state)
			}
		}
		return it.state, false
	}

	it.state.BytesDone += d.Bytes
	it.state.FilesDone += d.Files
	if d.Err != nil {
		it.state.FilesFailed++
		it.state.LastError = d.Err
		it.failures = append(it.failures, d.Err)
	}

	return it.state, true
}

// State returns the snapshot as of the last Next call.
func (it *Iter) State() Snapshot {
	return it.state
}

// Failures returns every FileError observed so far. The list is complete
// once Next has returned ok == false.
func (it *Iter) Failures() []*FileError {
	return it.failures
}

// Close abandons the run: outstanding workers finish their in-flight file
// and then observe the cancellation before dequeuing further work. Progress
// already reported stands. Closing an exhausted iterator is a no-op.
func (it *Iter) Close() {
	if it.cancel != nil {
		it.cancel()
	}
}

// SetWorkerCount rescales the pool driving this run, if any.
func (it *Iter) SetWorkerCount(n int) {
	if it.pool != nil && n > 0 {
		it.pool.SetWorkerCount(n)
	}
}

// WorkerCount returns the current target worker count of the driving pool.
func (it *Iter) WorkerCount() int {
	if it.pool == nil {
		return 0
	}
	return it.pool.WorkerCount()
}
