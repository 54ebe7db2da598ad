package storage

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"MemeCurator/internal/domain"
	"MemeCurator/internal/ports"
)

func sampleHistory() domain.History {
	ts := time.Date(2025, time.November, 8, 12, 30, 0, 0, time.UTC)
	return domain.History{
		PostedIDs:      []string{"x", "a"},
		DislikedTopics: []string{"cats", "politics"},
		LastRunDate:    &ts,
	}
}

func assertRoundTrip(t *testing.T, store ports.HistoryStore) {
	t.Helper()
	ctx := context.Background()

	empty, err := store.Load(ctx)
	if err != nil {
		t.Fatalf("load empty: %v", err)
	}
	if len(empty.PostedIDs) != 0 || len(empty.DislikedTopics) != 0 || empty.LastRunDate != nil {
		t.Fatalf("expected empty history, got %+v", empty)
	}

	want := sampleHistory()
	if err := store.Save(ctx, want); err != nil {
		t.Fatalf("save: %v", err)
	}

	got, err := store.Load(ctx)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if strings.Join(got.PostedIDs, ",") != "x,a" {
		t.Fatalf("unexpected ids %v", got.PostedIDs)
	}
	if strings.Join(got.DislikedTopics, ",") != "cats,politics" {
		t.Fatalf("unexpected topics %v", got.DislikedTopics)
	}
	if got.LastRunDate == nil || !got.LastRunDate.Equal(*want.LastRunDate) {
		t.Fatalf("unexpected last run %v", got.LastRunDate)
	}

	want.PostedIDs = append(want.PostedIDs, "b")
	want.DislikedTopics = []string{"politics"}
	if err := store.Save(ctx, want); err != nil {
		t.Fatalf("second save: %v", err)
	}
	got, err = store.Load(ctx)
	if err != nil {
		t.Fatalf("second load: %v", err)
	}
	if strings.Join(got.PostedIDs, ",") != "x,a,b" {
		t.Fatalf("unexpected ids after append %v", got.PostedIDs)
	}
	if strings.Join(got.DislikedTopics, ",") != "politics" {
		t.Fatalf("unexpected topics after replace %v", got.DislikedTopics)
	}
}

func TestJSONHistoryStoreRoundTrip(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "data", "history.json")
	assertRoundTrip(t, NewJSONHistoryStore(path, nil))

	if _, err := os.Stat(path + ".tmp"); !os.IsNotExist(err) {
		t.Fatalf("temp file left behind: %v", err)
	}
}

func TestJSONHistoryStoreCorruptFallsBackToEmpty(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "history.json")
	if err := os.WriteFile(path, []byte("{not json"), 0o600); err != nil {
		t.Fatalf("write: %v", err)
	}

	history, err := NewJSONHistoryStore(path, nil).Load(context.Background())
	if err != nil {
		t.Fatalf("load corrupt: %v", err)
	}
	if history.PostedIDs == nil || len(history.PostedIDs) != 0 {
		t.Fatalf("expected empty non-nil ids, got %#v", history.PostedIDs)
	}

	kept, err := os.ReadFile(path + corruptSuffix)
	if err != nil {
		t.Fatalf("corrupt file was not kept aside: %v", err)
	}
	if string(kept) != "{not json" {
		t.Fatalf("unexpected quarantined content %q", kept)
	}
}

func TestJSONHistoryStoreReadErrorIsReturned(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "history.json")
	if err := os.Mkdir(path, 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}

	if _, err := NewJSONHistoryStore(path, nil).Load(context.Background()); err == nil {
		t.Fatalf("expected unreadable history to fail the load")
	}
	if info, err := os.Stat(path); err != nil || !info.IsDir() {
		t.Fatalf("unreadable history must be left in place: %v", err)
	}
}

func TestJSONHistoryStoreEmptyFile(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "history.json")
	if err := os.WriteFile(path, []byte("  \n"), 0o600); err != nil {
		t.Fatalf("write: %v", err)
	}

	history, err := NewJSONHistoryStore(path, nil).Load(context.Background())
	if err != nil {
		t.Fatalf("load empty file: %v", err)
	}
	if len(history.PostedIDs) != 0 || history.LastRunDate != nil {
		t.Fatalf("expected empty history, got %+v", history)
	}
}

func TestJSONHistoryStoreWireFormat(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "history.json")
	store := NewJSONHistoryStore(path, nil)
	if err := store.Save(context.Background(), domain.EmptyHistory()); err != nil {
		t.Fatalf("save: %v", err)
	}

	raw, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	for _, key := range []string{`"postedIds": []`, `"dislikedTopics": []`, `"lastRunDate": null`} {
		if !strings.Contains(string(raw), key) {
			t.Fatalf("expected %s in %s", key, raw)
		}
	}
}

func TestSQLHistoryStoreRoundTrip(t *testing.T) {
	t.Parallel()

	store, err := OpenSQLite(context.Background(), filepath.Join(t.TempDir(), "history.db"), nil)
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	t.Cleanup(func() { _ = store.Close() })

	assertRoundTrip(t, store)
}

func TestSQLHistoryStoreCorruptFileStartsFresh(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "history.db")
	garbage := []byte(strings.Repeat("this is not a sqlite database ", 200))
	if err := os.WriteFile(path, garbage, 0o600); err != nil {
		t.Fatalf("write: %v", err)
	}

	store, err := OpenSQLite(context.Background(), path, nil)
	if err != nil {
		t.Fatalf("open corrupt sqlite: %v", err)
	}
	t.Cleanup(func() { _ = store.Close() })

	kept, err := os.ReadFile(path + corruptSuffix)
	if err != nil {
		t.Fatalf("corrupt database was not kept aside: %v", err)
	}
	if len(kept) != len(garbage) {
		t.Fatalf("quarantined file has %d bytes, want %d", len(kept), len(garbage))
	}

	assertRoundTrip(t, store)
}
