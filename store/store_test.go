package store

import (
	"errors"
	"path/filepath"
	"testing"
	"time"
)

func newTestStore(t *testing.T) *BoltStore {
	t.Helper()

	dbPath := filepath.Join(t.TempDir(), "journal.db")
	s, err := NewBoltStore(dbPath)
	if err != nil {
		t.Fatalf("failed to create store: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func TestBoltStore_SaveAndGetFile(t *testing.T) {
	s := newTestStore(t)

	rec := &FileRecord{
		Path:  "/data/a.txt",
		RunID: "run-1",
		State: StateWarmed,
		Bytes: 1024,
	}

	if err := s.SaveFile(rec); err != nil {
		t.Fatalf("SaveFile failed: %v", err)
	}

	got, err := s.GetFile("/data/a.txt")
	if err != nil {
		t.Fatalf("GetFile failed: %v", err)
	}

	if got.Path != rec.Path {
		t.Errorf("expected path %q, got %q", rec.Path, got.Path)
	}
	if got.State != StateWarmed {
		t.Errorf("expected state %q, got %q", StateWarmed, got.State)
	}
	if got.Bytes != 1024 {
		t.Errorf("expected 1024 bytes, got %d", got.Bytes)
	}
}

func TestBoltStore_GetFileNotFound(t *testing.T) {
	s := newTestStore(t)

	_, err := s.GetFile("/does/not/exist")
	if !errors.Is(err, ErrFileNotFound) {
		t.Errorf("expected ErrFileNotFound, got %v", err)
	}
}

func TestBoltStore_OverwriteFile(t *testing.T) {
	s := newTestStore(t)

	rec := &FileRecord{Path: "/data/a.txt", RunID: "run-1", State: StateWarming}
	if err := s.SaveFile(rec); err != nil {
		t.Fatalf("SaveFile failed: %v", err)
	}

	rec.State = StateFailed
	rec.Error = "read error"
	if err := s.SaveFile(rec); err != nil {
		t.Fatalf("SaveFile failed: %v", err)
	}

	got, err := s.GetFile("/data/a.txt")
	if err != nil {
		t.Fatalf("GetFile failed: %v", err)
	}
	if got.State != StateFailed {
		t.Errorf("expected state %q, got %q", StateFailed, got.State)
	}
	if got.Error != "read error" {
		t.Errorf("expected error message to survive, got %q", got.Error)
	}
}

func TestBoltStore_SaveAndGetRun(t *testing.T) {
	s := newTestStore(t)

	started := time.Now().Truncate(time.Second)
	rec := &RunRecord{
		ID:          "run-1",
		Root:        "/data",
		TotalBytes:  2048,
		TotalFiles:  3,
		BytesWarmed: 2048,
		FilesWarmed: 3,
		StartedAt:   started,
	}

	if err := s.SaveRun(rec); err != nil {
		t.Fatalf("SaveRun failed: %v", err)
	}

	got, err := s.GetRun("run-1")
	if err != nil {
		t.Fatalf("GetRun failed: %v", err)
	}

	if got.Root != "/data" {
		t.Errorf("expected root /data, got %q", got.Root)
	}
	if got.TotalBytes != 2048 || got.FilesWarmed != 3 {
		t.Errorf("unexpected run record: %+v", got)
	}
	if !got.StartedAt.Equal(started) {
		t.Errorf("expected StartedAt %v, got %v", started, got.StartedAt)
	}
}

func TestBoltStore_GetRunNotFound(t *testing.T) {
	s := newTestStore(t)

	_, err := s.GetRun("no-such-run")
	if !errors.Is(err, ErrRunNotFound) {
		t.Errorf("expected ErrRunNotFound, got %v", err)
	}
}

func TestBoltStore_PersistsAcrossOpens(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "journal.db")

	s, err := NewBoltStore(dbPath)
	if err != nil {
		t.Fatalf("failed to create store: %v", err)
	}
	if err := s.SaveFile(&FileRecord{Path: "/data/a.txt", State: StateWarmed, Bytes: 10}); err != nil {
		t.Fatalf("SaveFile failed: %v", err)
	}
	if err := s.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}

	s2, err := NewBoltStore(dbPath)
	if err != nil {
		t.Fatalf("failed to reopen store: %v", err)
	}
	defer s2.Close()

	got, err := s2.GetFile("/data/a.txt")
	if err != nil {
		t.Fatalf("GetFile after reopen failed: %v", err)
	}
	if got.State != StateWarmed || got.Bytes != 10 {
		t.Errorf("record did not survive reopen: %+v", got)
	}
}
