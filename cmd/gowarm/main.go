package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/franksops/gowarm/engine"
	"github.com/franksops/gowarm/provider"
	"github.com/franksops/gowarm/store"
	"github.com/franksops/gowarm/ui"

	tea "github.com/charmbracelet/bubbletea"
)

func main() {
	// CLI flags
	var (
		path        string
		workers     int
		bufferSize  int
		stateDir    string
		resume      bool
		followLinks bool
		tuiEnabled  bool
	)

	flag.StringVar(&path, "path", ".", "Root to warm (local directory or s3://bucket/prefix)")
	flag.IntVar(&workers, "workers", 0, "Number of concurrent readers (0 = number of CPUs)")
	flag.IntVar(&bufferSize, "buffer-size", engine.DefaultBufferSize, "Read buffer size in bytes per worker")
	flag.StringVar(&stateDir, "state-dir", "", "Directory for the warm-run journal (empty = no journal)")
	flag.BoolVar(&resume, "resume", false, "Skip files already journaled as warmed (requires -state-dir)")
	flag.BoolVar(&followLinks, "follow-links", false, "Follow symbolic links while walking")
	flag.BoolVar(&tuiEnabled, "tui", true, "Enable TUI (disable for headless operation)")
	flag.Parse()

	if resume && stateDir == "" {
		log.Fatal("-resume requires -state-dir")
	}

	// Context for cancellation
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Handle signals for graceful shutdown
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigChan
		cancel()
	}()

	src, root, err := createProvider(ctx, path, followLinks)
	if err != nil {
		log.Fatalf("Failed to create provider: %v", err)
	}

	opts := []engine.Option{
		engine.WithWorkers(workers),
		engine.WithBufferSize(bufferSize),
		engine.WithResume(resume),
	}

	if stateDir != "" {
		if err := os.MkdirAll(stateDir, 0755); err != nil {
			log.Fatalf("Failed to create state directory: %v", err)
		}
		journal, err := store.NewBoltStore(filepath.Join(stateDir, "warm.db"))
		if err != nil {
			log.Fatalf("Failed to open journal: %v", err)
		}
		defer journal.Close()

		tracker, err := engine.NewRunTracker(journal, path)
		if err != nil {
			log.Fatalf("Failed to start run journal: %v", err)
		}
		opts = append(opts, engine.WithTracker(tracker))
	}

	var final engine.Snapshot
	var failures []*engine.FileError

	if tuiEnabled {
		final, failures, err = runTUI(ctx, cancel, src, root, opts)
	} else {
		final, failures, err = runHeadless(ctx, src, root, opts)
	}
	if err != nil {
		log.Fatalf("Warming failed: %v", err)
	}

	fmt.Printf("Warmed %d/%d files, %d/%d bytes.\n",
		final.FilesDone, final.TotalFiles, final.BytesDone, final.TotalBytes)

	if len(failures) > 0 {
		fmt.Printf("%d files could not be warmed:\n", len(failures))
		for i, fe := range failures {
			if i == 10 {
				fmt.Printf("  ... and %d more\n", len(failures)-i)
				break
			}
			fmt.Printf("  %s\n", fe.Error())
		}
	}
}

// createProvider picks a backend for the given path. An s3://bucket/prefix
// path warms the bucket prefix; everything else is a local directory.
func createProvider(ctx context.Context, path string, followLinks bool) (provider.Provider, string, error) {
	if strings.HasPrefix(path, "s3://") {
		bucket, prefix, _ := strings.Cut(strings.TrimPrefix(path, "s3://"), "/")
		p, err := provider.NewS3Provider(ctx, bucket, prefix)
		return p, "", err
	}

	return provider.NewLocalProvider("").WithFollowLinks(followLinks), path, nil
}

func runHeadless(ctx context.Context, src provider.Provider, root string, opts []engine.Option) (engine.Snapshot, []*engine.FileError, error) {
	warmer, err := engine.NewWarmer(ctx, src, root, opts...)
	if err != nil {
		return engine.Snapshot{}, nil, err
	}

	plan, err := warmer.Plan(ctx)
	if err != nil {
		return engine.Snapshot{}, nil, fmt.Errorf("size estimation failed: %w", err)
	}
	log.Printf("Plan: %d files, %d bytes (%d entries skipped)", plan.TotalFiles, plan.TotalBytes, plan.Skipped)

	bar := ui.NewBar(plan.TotalBytes)
	it := warmer.Warm(ctx, plan)

	for {
		snap, ok := it.Next()
		if !ok {
			break
		}
		bar.Update(snap)
	}
	bar.Finish()

	return it.State(), it.Failures(), nil
}

func runTUI(ctx context.Context, cancel context.CancelFunc, src provider.Provider, root string, opts []engine.Option) (engine.Snapshot, []*engine.FileError, error) {
	var program *tea.Program
	var iter atomic.Pointer[engine.Iter]

	opts = append(opts, engine.WithPlanProgress(func(files, bytes int64) {
		if program != nil {
			program.Send(ui.PlanProgressMsg{Files: files, Bytes: bytes})
		}
	}))

	warmer, err := engine.NewWarmer(ctx, src, root, opts...)
	if err != nil {
		return engine.Snapshot{}, nil, err
	}

	workers := warmer.Workers()
	model := ui.NewTUIModel(workers, func(delta int) int {
		it := iter.Load()
		if it == nil {
			return workers
		}
		n := it.WorkerCount() + delta
		if n < 1 {
			n = 1
		}
		it.SetWorkerCount(n)
		return n
	})
	program = tea.NewProgram(model, tea.WithAltScreen())

	var runErr error
	done := make(chan struct{})

	go func() {
		defer close(done)

		plan, err := warmer.Plan(ctx)
		if err != nil {
			runErr = fmt.Errorf("size estimation failed: %w", err)
			program.Quit()
			return
		}
		program.Send(ui.PlanReadyMsg{Plan: plan})

		it := warmer.Warm(ctx, plan)
		iter.Store(it)

		lastSent := time.Time{}
		for {
			snap, ok := it.Next()
			if !ok {
				break
			}
			// Throttle updates; per-chunk deltas arrive far faster than
			// a terminal can redraw.
			if time.Since(lastSent) >= 100*time.Millisecond {
				program.Send(ui.SnapshotMsg{Snapshot: snap})
				lastSent = time.Now()
			}
		}

		program.Send(ui.DoneMsg{Final: it.State()})
		time.Sleep(200 * time.Millisecond)
		program.Quit()
	}()

	if _, err := program.Run(); err != nil {
		cancel()
		<-done
		return engine.Snapshot{}, nil, err
	}

	// The user may have quit mid-run; cancel and let the puller drain.
	cancel()
	<-done

	if runErr != nil {
		return engine.Snapshot{}, nil, runErr
	}

	it := iter.Load()
	if it == nil {
		return engine.Snapshot{}, nil, nil
	}
	return it.State(), it.Failures(), nil
}
