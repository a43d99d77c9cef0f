package engine

// WarmJob represents a single unit of work: one file whose bytes must be
// read once, end to end, to force its blocks to materialize.
type WarmJob struct {
	// Path is the provider-relative path of the file to read.
	Path string

	// Size is the file's byte count at enumeration time. Progress is
	// accounted against this snapshot size, not the live size.
	Size int64
}

// JobChannel is a channel used to queue and dispatch WarmJobs to workers
// in the worker pool. It is seeded once from a WarmPlan and then closed;
// workers only drain it.
type JobChannel chan WarmJob
