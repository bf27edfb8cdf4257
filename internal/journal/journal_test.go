package journal

import (
	"context"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func newTestJournal(t *testing.T) *Journal {
	t.Helper()
	j, err := Open(context.Background(), filepath.Join(t.TempDir(), "journal.db"))
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { _ = j.Close() })
	return j
}

func TestRecordAndFinish(t *testing.T) {
	j := newTestJournal(t)
	ctx := context.Background()

	id, err := j.Record(ctx, "440", "/tmp/out")
	if err != nil {
		t.Fatalf("Record: %v", err)
	}
	if id == "" {
		t.Fatal("Record returned empty id")
	}

	entries, err := j.Recent(ctx, 10)
	if err != nil {
		t.Fatalf("Recent: %v", err)
	}
	if len(entries) != 1 {
		t.Fatalf("Recent returned %d entries, want 1", len(entries))
	}
	e := entries[0]
	if e.ID != id || e.AppID != "440" || e.Dir != "/tmp/out" {
		t.Errorf("entry = %+v", e)
	}
	if e.Status != StatusRunning {
		t.Errorf("Status = %q, want %q", e.Status, StatusRunning)
	}
	if !e.FinishedAt.IsZero() {
		t.Errorf("FinishedAt = %v before Finish", e.FinishedAt)
	}
	if e.CreatedAt.IsZero() {
		t.Error("CreatedAt not set")
	}

	if err := j.Finish(ctx, id, "completed", "download complete"); err != nil {
		t.Fatalf("Finish: %v", err)
	}
	entries, err = j.Recent(ctx, 10)
	if err != nil {
		t.Fatalf("Recent: %v", err)
	}
	e = entries[0]
	if e.Status != "completed" || e.Message != "download complete" {
		t.Errorf("finished entry = %+v", e)
	}
	if e.FinishedAt.IsZero() {
		t.Error("FinishedAt not set after Finish")
	}
}

func TestFinishUnknownID(t *testing.T) {
	j := newTestJournal(t)

	err := j.Finish(context.Background(), "nope", "failed", "boom")
	if err == nil {
		t.Fatal("Finish on unknown id succeeded")
	}
	if !strings.Contains(err.Error(), "not found") {
		t.Errorf("Finish error = %v", err)
	}
}

func TestRecentOrderAndLimit(t *testing.T) {
	j := newTestJournal(t)
	ctx := context.Background()

	var ids []string
	for i := 0; i < 3; i++ {
		id, err := j.Record(ctx, "570", "/tmp/out")
		if err != nil {
			t.Fatalf("Record: %v", err)
		}
		ids = append(ids, id)
		time.Sleep(2 * time.Millisecond)
	}

	entries, err := j.Recent(ctx, 2)
	if err != nil {
		t.Fatalf("Recent: %v", err)
	}
	if len(entries) != 2 {
		t.Fatalf("Recent returned %d entries, want 2", len(entries))
	}
	if entries[0].ID != ids[2] || entries[1].ID != ids[1] {
		t.Errorf("Recent order = [%s %s], want newest first", entries[0].ID, entries[1].ID)
	}
}
