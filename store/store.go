package store

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"go.etcd.io/bbolt"
)

var (
	// ErrFileNotFound is returned when a file has no record in the journal.
	ErrFileNotFound = errors.New("file record not found")
	// ErrRunNotFound is returned when a run has no record in the journal.
	ErrRunNotFound = errors.New("run record not found")
)

var (
	filesBucket = []byte("files")
	runsBucket  = []byte("runs")
)

// FileState represents how far a single file got in the warming process.
type FileState string

const (
	StatePending FileState = "Pending"
	StateWarming FileState = "Warming"
	StateWarmed  FileState = "Warmed"
	StateFailed  FileState = "Failed"
)

// FileRecord is the journal entry for one file, keyed by its path. A record
// in state Warmed lets a later run skip re-reading the file.
type FileRecord struct {
	Path  string    `json:"path"`
	RunID string    `json:"run_id"`
	State FileState `json:"state"`
	Bytes int64     `json:"bytes"`
	Error string    `json:"error,omitempty"`
}

// RunRecord summarizes one warming run over a root.
type RunRecord struct {
	ID          string    `json:"id"`
	Root        string    `json:"root"`
	TotalBytes  int64     `json:"total_bytes"`
	TotalFiles  int64     `json:"total_files"`
	BytesWarmed int64     `json:"bytes_warmed"`
	FilesWarmed int64     `json:"files_warmed"`
	FilesFailed int64     `json:"files_failed"`
	Skipped     int64     `json:"skipped"`
	StartedAt   time.Time `json:"started_at"`
	FinishedAt  time.Time `json:"finished_at,omitempty"`
}

// Store defines the interface for the warm-run journal.
type Store interface {
	SaveFile(rec *FileRecord) error
	GetFile(path string) (*FileRecord, error)
	SaveRun(rec *RunRecord) error
	GetRun(id string) (*RunRecord, error)
	Close() error
}

// BoltStore is a Store implementation backed by bbolt.
type BoltStore struct {
	db *bbolt.DB
}

// NewBoltStore creates a new BoltStore at the given path.
func NewBoltStore(path string) (*BoltStore, error) {
	db, err := bbolt.Open(path, 0600, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to open bbolt database: %w", err)
	}

	err = db.Update(func(tx *bbolt.Tx) error {
		if _, err := tx.CreateBucketIfNotExists(filesBucket); err != nil {
			return err
		}
		_, err := tx.CreateBucketIfNotExists(runsBucket)
		return err
	})
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create journal buckets: %w", err)
	}

	return &BoltStore{db: db}, nil
}

// SaveFile saves a file record to the journal.
func (s *BoltStore) SaveFile(rec *FileRecord) error {
	return s.db.Update(func(tx *bbolt.Tx) error {
		b := tx.Bucket(filesBucket)

		data, err := json.Marshal(rec)
		if err != nil {
			return fmt.Errorf("failed to marshal file record: %w", err)
		}

		if err := b.Put([]byte(rec.Path), data); err != nil {
			return fmt.Errorf("failed to put file record: %w", err)
		}

		return nil
	})
}

// GetFile retrieves a file record from the journal.
func (s *BoltStore) GetFile(path string) (*FileRecord, error) {
	var rec FileRecord
	err := s.db.View(func(tx *bbolt.Tx) error {
		b := tx.Bucket(filesBucket)
		data := b.Get([]byte(path))
		if data == nil {
			return ErrFileNotFound
		}

		if err := json.Unmarshal(data, &rec); err != nil {
			return fmt.Errorf("failed to unmarshal file record: %w", err)
		}
		return nil
	})

	if err != nil {
		return nil, err
	}

	return &rec, nil
}

// SaveRun saves a run record to the journal.
func (s *BoltStore) SaveRun(rec *RunRecord) error {
	return s.db.Update(func(tx *bbolt.Tx) error {
		b := tx.Bucket(runsBucket)

		data, err := json.Marshal(rec)
		if err != nil {
			return fmt.Errorf("failed to marshal run record: %w", err)
		}

		if err := b.Put([]byte(rec.ID), data); err != nil {
			return fmt.Errorf("failed to put run record: %w", err)
		}

		return nil
	})
}

// GetRun retrieves a run record from the journal.
func (s *BoltStore) GetRun(id string) (*RunRecord, error) {
	var rec RunRecord
	err := s.db.View(func(tx *bbolt.Tx) error {
		b := tx.Bucket(runsBucket)
		data := b.Get([]byte(id))
		if data == nil {
			return ErrRunNotFound
		}

		if err := json.Unmarshal(data, &rec); err != nil {
			return fmt.Errorf("failed to unmarshal run record: %w", err)
		}
		return nil
	})

	if err != nil {
		return nil, err
	}

	return &rec, nil
}

// Close closes the underlying store.
func (s *BoltStore) Close() error {
	return s.db.Close()
}
