package ui

import (
	"fmt"
	"os"
	"time"

	"github.com/schollz/progressbar/v3"

	"github.com/franksops/gowarm/engine"
)

// Bar renders warming progress to stdout for headless runs (no TTY, CI,
// cron). It is fed snapshots pulled from the warm iterator by the caller
// and keeps no synchronization of its own.
type Bar struct {
	bar *progressbar.ProgressBar
}

// NewBar creates a byte-denominated progress bar for a plan's totals.
func NewBar(totalBytes int64) *Bar {
	bar := progressbar.NewOptions64(
		totalBytes,
		progressbar.OptionSetWriter(os.Stdout),
		progressbar.OptionUseANSICodes(true),
		progressbar.OptionSetDescription("warming"),
		progressbar.OptionShowBytes(true),
		progressbar.OptionSetPredictTime(true),
		progressbar.OptionThrottle(120*time.Millisecond),
	)
	_ = bar.RenderBlank()

	return &Bar{bar: bar}
}

// Update redraws the bar from a progress snapshot.
func (b *Bar) Update(snap engine.Snapshot) {
	_ = b.bar.Set64(snap.BytesDone)

	desc := fmt.Sprintf("warming %d/%d files", snap.FilesDone, snap.TotalFiles)
	if snap.FilesFailed > 0 {
		desc += fmt.Sprintf(" | failed=%d", snap.FilesFailed)
	}
	b.bar.Describe(desc)
}

// Finish completes the bar's rendering.
func (b *Bar) Finish() {
	_ = b.bar.Finish()
	fmt.Println()
}
