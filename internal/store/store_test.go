package store_test

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/internlog/internlog/internal/diary"
	"github.com/internlog/internlog/internal/store"
	"github.com/internlog/internlog/internal/submit"
)

func openTestDB(t *testing.T) *store.DB {
	t.Helper()
	db, err := store.OpenPath(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("OpenPath failed: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

func entryFor(id, date string) diary.Entry {
	return diary.Entry{
		ID:         id,
		Date:       date,
		Hours:      8.5,
		Activities: "Implemented the importer.",
		Learnings:  "Learned about batching.",
		Blockers:   "None",
		Skills:     []string{"Python", "SQL"},
		Confidence: 0.8,
	}
}

func TestDB_RecordAndRecentSubmissions(t *testing.T) {
	db := openTestDB(t)
	base := time.Date(2024, 1, 10, 12, 0, 0, 0, time.UTC)

	if err := db.Record(entryFor("e1", "2024-01-01"), submit.StatusSuccess, base); err != nil {
		t.Fatalf("Record failed: %v", err)
	}
	if err := db.Record(entryFor("e2", "2024-01-02"), submit.StatusError, base.Add(time.Minute)); err != nil {
		t.Fatalf("Record failed: %v", err)
	}

	subs, err := db.RecentSubmissions(10)
	if err != nil {
		t.Fatalf("RecentSubmissions failed: %v", err)
	}
	if len(subs) != 2 {
		t.Fatalf("got %d submissions, want 2", len(subs))
	}
	// Newest first.
	if subs[0].EntryID != "e2" || subs[1].EntryID != "e1" {
		t.Errorf("wrong order: %s, %s", subs[0].EntryID, subs[1].EntryID)
	}
	if len(subs[0].Skills) != 2 || subs[0].Skills[0] != "Python" {
		t.Errorf("skills round-trip failed: %v", subs[0].Skills)
	}
	if !subs[1].SubmittedAt.Equal(base) {
		t.Errorf("timestamp round-trip: got %v, want %v", subs[1].SubmittedAt, base)
	}
}

func TestDB_FailedDatesUseLatestAttempt(t *testing.T) {
	db := openTestDB(t)
	base := time.Date(2024, 1, 10, 12, 0, 0, 0, time.UTC)

	// Jan 1 failed then succeeded on retry; Jan 2 only ever failed.
	must := func(err error) {
		t.Helper()
		if err != nil {
			t.Fatalf("Record failed: %v", err)
		}
	}
	must(db.Record(entryFor("e1", "2024-01-01"), submit.StatusError, base))
	must(db.Record(entryFor("e1b", "2024-01-01"), submit.StatusSuccess, base.Add(time.Hour)))
	must(db.Record(entryFor("e2", "2024-01-02"), submit.StatusError, base))

	failed, err := db.FailedDates()
	if err != nil {
		t.Fatalf("FailedDates failed: %v", err)
	}
	if len(failed) != 1 || failed[0] != "2024-01-02" {
		t.Errorf("got %v, want only the date still failing", failed)
	}
}

func TestDB_GetStats(t *testing.T) {
	db := openTestDB(t)
	base := time.Date(2024, 1, 10, 12, 0, 0, 0, time.UTC)

	stats, err := db.GetStats()
	if err != nil {
		t.Fatalf("GetStats failed: %v", err)
	}
	if stats.Total != 0 {
		t.Errorf("fresh database reports %d submissions", stats.Total)
	}

	for i, status := range []submit.Status{
		submit.StatusSuccess, submit.StatusSuccess, submit.StatusError, submit.StatusSkipped,
	} {
		if err := db.Record(entryFor("e", "2024-01-01"), status, base.Add(time.Duration(i)*time.Minute)); err != nil {
			t.Fatalf("Record failed: %v", err)
		}
	}

	stats, err = db.GetStats()
	if err != nil {
		t.Fatalf("GetStats failed: %v", err)
	}
	if stats.Total != 4 || stats.Succeeded != 2 || stats.Failed != 1 || stats.Skipped != 1 {
		t.Errorf("got %+v, want 4 total, 2/1/1", stats)
	}
	if !stats.LastAt.Equal(base.Add(3 * time.Minute)) {
		t.Errorf("LastAt %v, want the newest event", stats.LastAt)
	}
}

func TestDB_State(t *testing.T) {
	db := openTestDB(t)

	v, err := db.GetState("missing")
	if err != nil {
		t.Fatalf("GetState failed: %v", err)
	}
	if v != "" {
		t.Errorf("missing key returned %q", v)
	}

	if err := db.SetState("last_range", "2024-01-01 to 2024-01-31"); err != nil {
		t.Fatalf("SetState failed: %v", err)
	}
	if err := db.SetState("last_range", "2024-02-01 to 2024-02-28"); err != nil {
		t.Fatalf("SetState upsert failed: %v", err)
	}

	v, err = db.GetState("last_range")
	if err != nil {
		t.Fatalf("GetState failed: %v", err)
	}
	if v != "2024-02-01 to 2024-02-28" {
		t.Errorf("got %q, want the updated value", v)
	}
}
