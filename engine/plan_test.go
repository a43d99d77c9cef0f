package engine

import (
	"context"
	"fmt"
	"reflect"
	"sort"
	"testing"
)

func sortedPaths(jobs []WarmJob) []string {
	paths := make([]string, len(jobs))
	for i, j := range jobs {
		paths[i] = j.Path
	}
	sort.Strings(paths)
	return paths
}

func TestBuildPlan_Totals(t *testing.T) {
	mp := newMockProvider()
	mp.dirs["/root"] = []mockFileInfo{
		{name: "a.txt", size: 10},
		{name: "sub", isDir: true},
	}
	mp.dirs["/root/sub"] = []mockFileInfo{
		{name: "b.txt", size: 20},
		{name: "c.txt", size: 30},
	}

	plan, err := BuildPlan(context.Background(), mp, "/root", nil)
	if err != nil {
		t.Fatalf("BuildPlan failed: %v", err)
	}

	if plan.TotalBytes != 60 {
		t.Errorf("Expected 60 total bytes, got %d", plan.TotalBytes)
	}
	if plan.TotalFiles != 3 {
		t.Errorf("Expected 3 total files, got %d", plan.TotalFiles)
	}
	if plan.Skipped != 0 {
		t.Errorf("Expected 0 skipped, got %d", plan.Skipped)
	}

	expected := []string{"/root/a.txt", "/root/sub/b.txt", "/root/sub/c.txt"}
	if !reflect.DeepEqual(sortedPaths(plan.Entries), expected) {
		t.Errorf("Expected entries %v, got %v", expected, plan.Entries)
	}

	// Entries must come out sorted regardless of walk order.
	for i := 1; i < len(plan.Entries); i++ {
		if plan.Entries[i-1].Path > plan.Entries[i].Path {
			t.Errorf("Entries not sorted: %q before %q", plan.Entries[i-1].Path, plan.Entries[i].Path)
		}
	}
}

func TestBuildPlan_EmptyDir(t *testing.T) {
	mp := newMockProvider()
	mp.dirs["/empty"] = []mockFileInfo{}

	plan, err := BuildPlan(context.Background(), mp, "/empty", nil)
	if err != nil {
		t.Fatalf("BuildPlan failed: %v", err)
	}

	if plan.TotalBytes != 0 || plan.TotalFiles != 0 || len(plan.Entries) != 0 {
		t.Errorf("Expected an empty plan, got %+v", plan)
	}
}

func TestBuildPlan_Idempotent(t *testing.T) {
	mp := newMockProvider()
	mp.dirs["/root"] = []mockFileInfo{
		{name: "x.bin", size: 100},
		{name: "y.bin", size: 200},
	}

	plan1, err := BuildPlan(context.Background(), mp, "/root", nil)
	if err != nil {
		t.Fatalf("BuildPlan failed: %v", err)
	}
	plan2, err := BuildPlan(context.Background(), mp, "/root", nil)
	if err != nil {
		t.Fatalf("BuildPlan failed: %v", err)
	}

	if !reflect.DeepEqual(plan1, plan2) {
		t.Errorf("Plans over an unchanged tree differ: %+v vs %+v", plan1, plan2)
	}
}

func TestBuildPlan_SkippedCount(t *testing.T) {
	mp := newMockProvider()
	mp.dirs["/root"] = []mockFileInfo{
		{name: "ok.txt", size: 1},
		{name: "denied", isDir: true},
	}
	mp.listErr["/root/denied"] = fmt.Errorf("permission denied")

	plan, err := BuildPlan(context.Background(), mp, "/root", nil)
	if err != nil {
		t.Fatalf("BuildPlan failed: %v", err)
	}

	if plan.Skipped != 1 {
		t.Errorf("Expected 1 skipped, got %d", plan.Skipped)
	}
	if plan.TotalFiles != 1 {
		t.Errorf("Expected unreadable subtree excluded from plan, got %d files", plan.TotalFiles)
	}
}

func TestBuildPlan_ProgressCallback(t *testing.T) {
	mp := newMockProvider()
	mp.dirs["/root"] = []mockFileInfo{
		{name: "a", size: 5},
		{name: "b", size: 5},
	}

	var calls int64
	var lastFiles, lastBytes int64
	plan, err := BuildPlan(context.Background(), mp, "/root", func(files, bytes int64) {
		calls++
		lastFiles, lastBytes = files, bytes
	})
	if err != nil {
		t.Fatalf("BuildPlan failed: %v", err)
	}

	if calls != plan.TotalFiles {
		t.Errorf("Expected one callback per file, got %d calls for %d files", calls, plan.TotalFiles)
	}
	if lastFiles != 2 || lastBytes != 10 {
		t.Errorf("Expected final callback with (2, 10), got (%d, %d)", lastFiles, lastBytes)
	}
}
