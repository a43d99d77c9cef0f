package engine

import (
	"time"

	"github.com/franksops/gowarm/store"
)

// RunTracker wraps a store to journal per-file warming state and a per-run
// summary. All of its methods are best-effort: a journal write failure never
// affects the warming run itself, so workers ignore the returned errors.
type RunTracker struct {
	store store.Store
	runID string
	root  string
}

// NewRunTracker creates a tracker for one warming run over root and records
// the run's start in the journal.
func NewRunTracker(st store.Store, root string) (*RunTracker, error) {
	t := &RunTracker{
		store: st,
		runID: time.Now().UTC().Format(time.RFC3339Nano),
		root:  root,
	}

	err := st.SaveRun(&store.RunRecord{
		ID:        t.runID,
		Root:      root,
		StartedAt: time.Now().UTC(),
	})
	if err != nil {
		return nil, err
	}

	return t, nil
}

// RunID returns the journal key of this run.
func (t *RunTracker) RunID() string {
	return t.runID
}

// BeginRun records the plan totals once estimation has finished.
func (t *RunTracker) BeginRun(plan *WarmPlan) error {
	rec, err := t.store.GetRun(t.runID)
	if err != nil {
		return err
	}
	rec.TotalBytes = plan.TotalBytes
	rec.TotalFiles = plan.TotalFiles
	rec.Skipped = plan.Skipped
	return t.store.SaveRun(rec)
}

// IsWarmed reports whether path was already fully read by a previous run,
// at the same size. A size change invalidates the record since the new
// blocks were never touched.
func (t *RunTracker) IsWarmed(path string, size int64) bool {
	rec, err := t.store.GetFile(path)
	if err != nil {
		return false
	}
	return rec.State == store.StateWarmed && rec.Bytes == size
}

// MarkWarming records that a worker picked up the file.
func (t *RunTracker) MarkWarming(job WarmJob) error {
	return t.store.SaveFile(&store.FileRecord{
		Path:  job.Path,
		RunID: t.runID,
		State: store.StateWarming,
		Bytes: job.Size,
	})
}

// MarkWarmed records a completed file.
func (t *RunTracker) MarkWarmed(job WarmJob) error {
	return t.store.SaveFile(&store.FileRecord{
		Path:  job.Path,
		RunID: t.runID,
		State: store.StateWarmed,
		Bytes: job.Size,
	})
}

// MarkFailed records a file that could not be read.
func (t *RunTracker) MarkFailed(job WarmJob, err error) error {
	rec := &store.FileRecord{
		Path:  job.Path,
		RunID: t.runID,
		State: store.StateFailed,
		Bytes: job.Size,
	}
	if err != nil {
		rec.Error = err.Error()
	}
	return t.store.SaveFile(rec)
}

// FinishRun records the terminal snapshot of the run.
func (t *RunTracker) FinishRun(final Snapshot) error {
	rec, err := t.store.GetRun(t.runID)
	if err != nil {
		return err
	}
	rec.BytesWarmed = final.BytesDone
	rec.FilesWarmed = final.FilesDone
	rec.FilesFailed = final.FilesFailed
	rec.FinishedAt = time.Now().UTC()
	return t.store.SaveRun(rec)
}
