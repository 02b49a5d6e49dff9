package main

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/cwbudde/evotimetable/internal/store"
)

func ids(infos []store.CheckpointInfo) []string {
	out := make([]string, len(infos))
	for i, info := range infos {
		out[i] = info.ID
	}
	return out
}

func equalIDs(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

func TestSelectCheckpointsForDeletion_ByAge(t *testing.T) {
	now := time.Now()
	infos := []store.CheckpointInfo{
		{ID: "run1_gen_10", RunID: "run1", Timestamp: now.AddDate(0, 0, -10)}, // 10 days old
		{ID: "run2_gen_10", RunID: "run2", Timestamp: now.AddDate(0, 0, -5)},  // 5 days old
		{ID: "run3_gen_10", RunID: "run3", Timestamp: now.AddDate(0, 0, -1)},  // 1 day old
		{ID: "run4_gen_10", RunID: "run4", Timestamp: now.AddDate(0, 0, -30)}, // 30 days old
	}

	toDelete := selectCheckpointsForDeletion(infos, 0, 7, now)

	want := []string{"run4_gen_10", "run1_gen_10"}
	if got := ids(toDelete); !equalIDs(got, want) {
		t.Errorf("selected %v, want %v", got, want)
	}
}

func TestSelectCheckpointsForDeletion_KeepLastPerRun(t *testing.T) {
	now := time.Now()
	infos := []store.CheckpointInfo{
		{ID: "a_gen_1", RunID: "a", Generation: 1, Timestamp: now.Add(-4 * time.Hour)},
		{ID: "a_gen_2", RunID: "a", Generation: 2, Timestamp: now.Add(-3 * time.Hour)},
		{ID: "a_gen_3", RunID: "a", Generation: 3, Timestamp: now.Add(-2 * time.Hour)},
		{ID: "b_gen_1", RunID: "b", Generation: 1, Timestamp: now.Add(-5 * time.Hour)},
		{ID: "b_gen_2", RunID: "b", Generation: 2, Timestamp: now.Add(-1 * time.Hour)},
		{ID: "c_gen_1", RunID: "c", Generation: 1, Timestamp: now.Add(-9 * time.Hour)},
	}

	toDelete := selectCheckpointsForDeletion(infos, 1, 0, now)

	want := []string{"b_gen_1", "a_gen_1", "a_gen_2"}
	if got := ids(toDelete); !equalIDs(got, want) {
		t.Errorf("selected %v, want %v", got, want)
	}
}

func TestSelectCheckpointsForDeletion_SameTimestampUsesGeneration(t *testing.T) {
	now := time.Now()
	infos := []store.CheckpointInfo{
		{ID: "a_gen_5", RunID: "a", Generation: 5, Timestamp: now},
		{ID: "a_gen_4", RunID: "a", Generation: 4, Timestamp: now},
	}

	toDelete := selectCheckpointsForDeletion(infos, 1, 0, now)

	if got := ids(toDelete); !equalIDs(got, []string{"a_gen_4"}) {
		t.Errorf("selected %v, want [a_gen_4]", got)
	}
}

func TestSelectCheckpointsForDeletion_Combined(t *testing.T) {
	now := time.Now()
	infos := []store.CheckpointInfo{
		{ID: "a_gen_1", RunID: "a", Timestamp: now.AddDate(0, 0, -10)},
		{ID: "a_gen_2", RunID: "a", Timestamp: now.AddDate(0, 0, -5)},
		{ID: "a_gen_3", RunID: "a", Timestamp: now.AddDate(0, 0, -1)},
		{ID: "b_gen_1", RunID: "b", Timestamp: now.AddDate(0, 0, -30)},
		{ID: "b_gen_2", RunID: "b", Timestamp: now.AddDate(0, 0, -2)},
	}

	// a_gen_1 and b_gen_1 are too old; keeping 2 per run also drops a_gen_1.
	toDelete := selectCheckpointsForDeletion(infos, 2, 7, now)

	want := []string{"b_gen_1", "a_gen_1"}
	if got := ids(toDelete); !equalIDs(got, want) {
		t.Errorf("selected %v, want %v", got, want)
	}
}

func TestSelectCheckpointsForDeletion_NothingToDo(t *testing.T) {
	now := time.Now()
	infos := []store.CheckpointInfo{
		{ID: "a_gen_1", RunID: "a", Timestamp: now},
	}
	if got := selectCheckpointsForDeletion(infos, 3, 7, now); len(got) != 0 {
		t.Errorf("selected %v, want none", ids(got))
	}
}

func TestFilterByRun(t *testing.T) {
	infos := []store.CheckpointInfo{
		{ID: "a_gen_1", RunID: "a"},
		{ID: "b_gen_1", RunID: "b"},
	}
	if got := filterByRun(infos, ""); len(got) != 2 {
		t.Errorf("empty filter kept %d, want 2", len(got))
	}
	if got := ids(filterByRun(infos, "b")); !equalIDs(got, []string{"b_gen_1"}) {
		t.Errorf("filter b = %v", got)
	}
}

func TestShortID(t *testing.T) {
	if got := shortID("short"); got != "short" {
		t.Errorf("shortID(short) = %s", got)
	}
	if got := shortID("0123456789abcdef"); got != "0123456789ab..." {
		t.Errorf("shortID = %s", got)
	}
}

func TestGetDirSize(t *testing.T) {
	tmpDir := t.TempDir()

	testFile := filepath.Join(tmpDir, "test.txt")
	content := []byte("Hello, World!")
	if err := os.WriteFile(testFile, content, 0644); err != nil {
		t.Fatalf("Failed to create test file: %v", err)
	}

	size, err := getDirSize(tmpDir)
	if err != nil {
		t.Fatalf("getDirSize failed: %v", err)
	}

	if size < int64(len(content)) {
		t.Errorf("Expected size >= %d, got %d", len(content), size)
	}
}

func TestFormatBytes(t *testing.T) {
	tests := []struct {
		bytes    int64
		expected string
	}{
		{0, "0 B"},
		{512, "512 B"},
		{1023, "1023 B"},
		{1024, "1.0 KB"},
		{1536, "1.5 KB"},
		{1048576, "1.0 MB"},
		{1073741824, "1.0 GB"},
	}

	for _, tt := range tests {
		result := formatBytes(tt.bytes)
		if result != tt.expected {
			t.Errorf("formatBytes(%d) = %s, expected %s", tt.bytes, result, tt.expected)
		}
	}
}
