package publish

import (
	"context"
	"path/filepath"
	"testing"
)

func newTestJournal(t *testing.T) *Journal {
	t.Helper()
	j, err := OpenJournal(filepath.Join(t.TempDir(), "journal.db"))
	if err != nil {
		t.Fatalf("OpenJournal: %v", err)
	}
	t.Cleanup(func() { j.Close() })
	return j
}

func TestJournal_RecordAndRecent(t *testing.T) {
	j := newTestJournal(t)
	ctx := context.Background()

	if _, err := j.Record(ctx, "Update report for patient 7", Result{OK: true, Detail: "synced"}); err != nil {
		t.Fatalf("Record: %v", err)
	}
	if _, err := j.Record(ctx, "Delete patient 7", Result{OK: false, Detail: "push failed"}); err != nil {
		t.Fatalf("Record: %v", err)
	}

	entries, err := j.Recent(ctx, 10)
	if err != nil {
		t.Fatalf("Recent: %v", err)
	}
	if len(entries) != 2 {
		t.Fatalf("expected 2 entries, got %d", len(entries))
	}
	// Newest first.
	if entries[0].Message != "Delete patient 7" || entries[0].OK {
		t.Errorf("unexpected first entry: %+v", entries[0])
	}
	if entries[1].Message != "Update report for patient 7" || !entries[1].OK {
		t.Errorf("unexpected second entry: %+v", entries[1])
	}
	if entries[0].ID == "" || entries[0].CreatedAt.IsZero() {
		t.Error("entry missing id or timestamp")
	}
}

func TestJournal_Recent_Limit(t *testing.T) {
	j := newTestJournal(t)
	ctx := context.Background()
	for i := 0; i < 5; i++ {
		if _, err := j.Record(ctx, "msg", Result{OK: true}); err != nil {
			t.Fatal(err)
		}
	}
	entries, err := j.Recent(ctx, 3)
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 3 {
		t.Errorf("expected 3 entries, got %d", len(entries))
	}
}

func TestJournal_FailureStreak(t *testing.T) {
	j := newTestJournal(t)
	ctx := context.Background()

	streak, err := j.FailureStreak(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if streak != 0 {
		t.Errorf("empty journal streak = %d", streak)
	}

	j.Record(ctx, "a", Result{OK: true})
	j.Record(ctx, "b", Result{OK: false})
	j.Record(ctx, "c", Result{OK: false})

	streak, err = j.FailureStreak(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if streak != 2 {
		t.Errorf("streak = %d, want 2", streak)
	}

	j.Record(ctx, "d", Result{OK: true})
	streak, _ = j.FailureStreak(ctx)
	if streak != 0 {
		t.Errorf("streak after success = %d, want 0", streak)
	}
}

func TestJournaled_RecordsEveryAttempt(t *testing.T) {
	j := newTestJournal(t)
	pub := Journaled{
		Pub:     Func(func(ctx context.Context, message string) Result { return Result{OK: true, Detail: "synced"} }),
		Journal: j,
	}

	res := pub.Publish(context.Background(), "Update report for patient 7")
	if !res.OK {
		t.Fatalf("unexpected result: %+v", res)
	}
	entries, err := j.Recent(context.Background(), 10)
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 1 {
		t.Fatalf("expected 1 journaled entry, got %d", len(entries))
	}
}
