package engine

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"os"
	"testing"
	"time"

	"github.com/franksops/gowarm/provider"
)

type mockFileInfo struct {
	name    string
	size    int64
	isDir   bool
	modTime time.Time
	mode    os.FileMode
}

func (m mockFileInfo) Name() string       { return m.name }
func (m mockFileInfo) Size() int64        { return m.size }
func (m mockFileInfo) IsDir() bool        { return m.isDir }
func (m mockFileInfo) ModTime() time.Time { return m.modTime }
func (m mockFileInfo) Mode() os.FileMode  { return m.mode }

// mockProvider deliberately does not implement TreeWalker so walker tests
// exercise the stack-based fallback traversal.
type mockProvider struct {
	files    map[string]mockFileInfo
	dirs     map[string][]mockFileInfo
	contents map[string][]byte
	listErr  map[string]error
	openErr  map[string]error
}

func newMockProvider() *mockProvider {
	return &mockProvider{
		files:    make(map[string]mockFileInfo),
		dirs:     make(map[string][]mockFileInfo),
		contents: make(map[string][]byte),
		listErr:  make(map[string]error),
		openErr:  make(map[string]error),
	}
}

func (m *mockProvider) Stat(ctx context.Context, path string) (provider.FileInfo, error) {
	if info, ok := m.files[path]; ok {
		return info, nil
	}
	return nil, fmt.Errorf("file not found: %s", path)
}

func (m *mockProvider) List(ctx context.Context, path string) ([]provider.FileInfo, error) {
	if err, ok := m.listErr[path]; ok {
		return nil, err
	}
	if files, ok := m.dirs[path]; ok {
		res := make([]provider.FileInfo, len(files))
		for i, f := range files {
			res[i] = f
		}
		return res, nil
	}
	return nil, fmt.Errorf("directory not found: %s", path)
}

func (m *mockProvider) OpenRead(ctx context.Context, path string) (io.ReadCloser, error) {
	if err, ok := m.openErr[path]; ok {
		return nil, err
	}
	if data, ok := m.contents[path]; ok {
		return io.NopCloser(bytes.NewReader(data)), nil
	}
	return nil, fmt.Errorf("file not found: %s", path)
}

func drainJobs(t *testing.T, w *Walker, jobChan JobChannel, root string) ([]WarmJob, int64) {
	t.Helper()

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	type walkResult struct {
		skipped int64
		err     error
	}
	resCh := make(chan walkResult, 1)
	go func() {
		skipped, err := w.Walk(ctx, root)
		resCh <- walkResult{skipped, err}
		close(jobChan)
	}()

	var jobs []WarmJob
	for job := range jobChan {
		jobs = append(jobs, job)
	}

	res := <-resCh
	if res.err != nil {
		t.Fatalf("Walk failed: %v", res.err)
	}
	return jobs, res.skipped
}

func TestWalker_Walk(t *testing.T) {
	mp := newMockProvider()

	// Mock filesystem structure:
	// /root
	// /root/file1.txt (10 bytes)
	// /root/dir1
	// /root/dir1/file2.txt (20 bytes)
	// /root/dir1/dir2
	// /root/dir1/dir2/file3.txt (30 bytes)

	mp.files["/root"] = mockFileInfo{name: "root", isDir: true}
	mp.dirs["/root"] = []mockFileInfo{
		{name: "file1.txt", size: 10},
		{name: "dir1", isDir: true},
	}
	mp.dirs["/root/dir1"] = []mockFileInfo{
		{name: "file2.txt", size: 20},
		{name: "dir2", isDir: true},
	}
	mp.dirs["/root/dir1/dir2"] = []mockFileInfo{
		{name: "file3.txt", size: 30},
	}

	jobChan := make(JobChannel, 10)
	walker := NewWalker(mp, jobChan)

	jobs, skipped := drainJobs(t, walker, jobChan, "/root")

	if skipped != 0 {
		t.Errorf("Expected 0 skipped entries, got %d", skipped)
	}

	expected := map[string]int64{
		"/root/file1.txt":           10,
		"/root/dir1/file2.txt":      20,
		"/root/dir1/dir2/file3.txt": 30,
	}

	if len(jobs) != len(expected) {
		t.Fatalf("Expected %d jobs, got %d", len(expected), len(jobs))
	}

	// Walk order is stack-driven, so check membership and sizes.
	for _, job := range jobs {
		size, ok := expected[job.Path]
		if !ok {
			t.Errorf("Unexpected job for %s", job.Path)
			continue
		}
		if job.Size != size {
			t.Errorf("Expected size %d for %s, got %d", size, job.Path, job.Size)
		}
	}
}

func TestWalker_Walk_SkipsUnreadableDir(t *testing.T) {
	mp := newMockProvider()

	mp.dirs["/root"] = []mockFileInfo{
		{name: "good", isDir: true},
		{name: "bad", isDir: true},
		{name: "top.txt", size: 5},
	}
	mp.dirs["/root/good"] = []mockFileInfo{
		{name: "inner.txt", size: 7},
	}
	mp.listErr["/root/bad"] = fmt.Errorf("permission denied")

	jobChan := make(JobChannel, 10)
	walker := NewWalker(mp, jobChan)

	jobs, skipped := drainJobs(t, walker, jobChan, "/root")

	if skipped != 1 {
		t.Errorf("Expected 1 skipped subtree, got %d", skipped)
	}
	if len(jobs) != 2 {
		t.Fatalf("Expected siblings of the unreadable dir to be walked, got %d jobs", len(jobs))
	}
}

func TestWalker_Walk_SkipsIrregularFiles(t *testing.T) {
	mp := newMockProvider()

	mp.dirs["/root"] = []mockFileInfo{
		{name: "plain.txt", size: 5},
		{name: "sock", size: 0, mode: os.ModeSocket},
		{name: "dev", size: 0, mode: os.ModeDevice},
	}

	jobChan := make(JobChannel, 10)
	walker := NewWalker(mp, jobChan)

	jobs, skipped := drainJobs(t, walker, jobChan, "/root")

	if skipped != 0 {
		t.Errorf("Irregular files are not errors, expected 0 skipped, got %d", skipped)
	}
	if len(jobs) != 1 || jobs[0].Path != "/root/plain.txt" {
		t.Fatalf("Expected only the regular file, got %v", jobs)
	}
}

func TestWalker_Walk_RootListError(t *testing.T) {
	mp := newMockProvider()
	mp.listErr["/root"] = fmt.Errorf("permission denied")

	jobChan := make(JobChannel, 1)
	walker := NewWalker(mp, jobChan)

	_, err := walker.Walk(context.Background(), "/root")
	if err == nil {
		t.Fatal("Expected an error when the root itself is unreadable")
	}
}
