package services

import (
	"context"
	"path/filepath"
	"reflect"
	"testing"
	"time"
)

func exerciseStore(t *testing.T, store CacheStore) {
	t.Helper()
	ctx := context.Background()

	record, err := store.Load(ctx)
	if err != nil || record != nil {
		t.Fatalf("expected empty store, got %+v, %v", record, err)
	}
	if _, ok, err := store.LastUpdatedAt(ctx); err != nil || ok {
		t.Fatalf("expected no metadata, got ok=%v err=%v", ok, err)
	}

	capturedAt := time.UnixMilli(refreshEpoch.UnixMilli()).UTC()
	first := mustNormalize(sampleRaws(), capturedAt)
	first.SourceSessionToken = "sid=abc"
	if err := store.Save(ctx, first); err != nil {
		t.Fatalf("save failed: %v", err)
	}

	record, err = store.Load(ctx)
	if err != nil || record == nil {
		t.Fatalf("load failed: %+v, %v", record, err)
	}
	if !reflect.DeepEqual(record.Snapshot.Entries, first.Entries) {
		t.Errorf("entries changed in storage:\n got  %+v\n want %+v", record.Snapshot.Entries, first.Entries)
	}
	if !record.Snapshot.CapturedAt.Equal(capturedAt) || record.Snapshot.SourceSessionToken != "sid=abc" {
		t.Errorf("unexpected snapshot metadata %s %q", record.Snapshot.CapturedAt, record.Snapshot.SourceSessionToken)
	}

	lastUpdated, ok, err := store.LastUpdatedAt(ctx)
	if err != nil || !ok || !lastUpdated.Equal(capturedAt) {
		t.Errorf("unexpected last updated %s %v %v", lastUpdated, ok, err)
	}

	second := mustNormalize(sampleRaws()[:1], capturedAt.Add(time.Hour))
	if err := store.Save(ctx, second); err != nil {
		t.Fatalf("second save failed: %v", err)
	}
	record, _ = store.Load(ctx)
	if len(record.Snapshot.Entries) != 1 || !record.Snapshot.CapturedAt.Equal(capturedAt.Add(time.Hour)) {
		t.Errorf("expected second save to replace the record, got %+v", record.Snapshot)
	}
}

func TestCacheServiceStore(t *testing.T) {
	exerciseStore(t, NewCacheService())
}

func TestCacheServiceCopiesRecords(t *testing.T) {
	store := NewCacheService()
	ctx := context.Background()
	snapshot := mustNormalize(sampleRaws(), refreshEpoch)
	if err := store.Save(ctx, snapshot); err != nil {
		t.Fatal(err)
	}

	*snapshot.Entries[0].RoomNumber = "999"
	loaded, _ := store.Load(ctx)
	*loaded.Snapshot.Entries[0].RoomNumber = "888"
	loaded.Snapshot.Entries[0].CourseCode = "XXX"

	again, _ := store.Load(ctx)
	if deref(again.Snapshot.Entries[0].RoomNumber) != "301" || again.Snapshot.Entries[0].CourseCode != "CSE101" {
		t.Fatalf("stored record was mutated: %+v", again.Snapshot.Entries[0])
	}

	store.Flush()
	if record, _ := store.Load(ctx); record != nil {
		t.Fatal("expected flush to clear the record")
	}
}

func TestSQLiteStore(t *testing.T) {
	store, err := NewSQLiteStore(filepath.Join(t.TempDir(), "nested", "timetable.db"))
	if err != nil {
		t.Fatalf("failed to open sqlite store: %v", err)
	}
	defer store.Close()

	exerciseStore(t, store)
}

func TestSQLiteStoreSurvivesReopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "timetable.db")
	store, err := NewSQLiteStore(path)
	if err != nil {
		t.Fatal(err)
	}
	snapshot := mustNormalize(sampleRaws(), refreshEpoch)
	if err := store.Save(context.Background(), snapshot); err != nil {
		t.Fatal(err)
	}
	store.Close()

	reopened, err := NewSQLiteStore(path)
	if err != nil {
		t.Fatal(err)
	}
	defer reopened.Close()
	record, err := reopened.Load(context.Background())
	if err != nil || record == nil || len(record.Snapshot.Entries) != 3 {
		t.Fatalf("expected snapshot after reopen, got %+v, %v", record, err)
	}
}
