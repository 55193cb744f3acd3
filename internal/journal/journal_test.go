package journal

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/claude/repcoach/internal/models"
	"github.com/claude/repcoach/internal/session"
	"github.com/google/uuid"
)

func openTestJournal(t *testing.T) *Journal {
	t.Helper()
	j, err := Open(t.TempDir())
	if err != nil {
		t.Fatalf("Open() error: %v", err)
	}
	t.Cleanup(func() { j.Close() })
	return j
}

// TestJournalLifecycle walks a write through pending, committed, and failed
// states and checks what Unsynced reports.
func TestJournalLifecycle(t *testing.T) {
	j := openTestJournal(t)
	sid := uuid.New()

	committed, err := j.Begin(sid, "Bench Press", 1)
	if err != nil {
		t.Fatalf("Begin() error: %v", err)
	}
	failed, err := j.Begin(sid, "Bench Press", 2)
	if err != nil {
		t.Fatalf("Begin() error: %v", err)
	}
	pending, err := j.Begin(sid, "Squat", 1)
	if err != nil {
		t.Fatalf("Begin() error: %v", err)
	}

	if err := j.Commit(committed); err != nil {
		t.Fatalf("Commit() error: %v", err)
	}
	if err := j.Fail(failed, errors.New("connection refused")); err != nil {
		t.Fatalf("Fail() error: %v", err)
	}

	entries, err := j.Unsynced(0)
	if err != nil {
		t.Fatalf("Unsynced() error: %v", err)
	}
	if len(entries) != 2 {
		t.Fatalf("unsynced entries = %d, want 2 (failed + pending)", len(entries))
	}

	byID := map[int64]Entry{}
	for _, e := range entries {
		byID[e.ID] = e
	}
	if e := byID[failed]; e.Status != StatusFailed || e.Error != "connection refused" {
		t.Errorf("failed entry = %+v", e)
	}
	if e := byID[pending]; e.Status != StatusPending || e.SessionID != sid {
		t.Errorf("pending entry = %+v", e)
	}
	if _, ok := byID[committed]; ok {
		t.Error("committed entry reported as unsynced")
	}
}

// TestJournalPersistsAcrossOpens verifies the journal file survives reopening.
func TestJournalPersistsAcrossOpens(t *testing.T) {
	dir := t.TempDir()

	j, err := Open(dir)
	if err != nil {
		t.Fatalf("Open() error: %v", err)
	}
	if _, err := j.Begin(uuid.New(), "Deadlift", 1); err != nil {
		t.Fatalf("Begin() error: %v", err)
	}
	if err := j.Close(); err != nil {
		t.Fatalf("Close() error: %v", err)
	}

	if _, err := os.Stat(filepath.Join(dir, "journal.db")); err != nil {
		t.Fatalf("journal file missing: %v", err)
	}

	j2, err := Open(dir)
	if err != nil {
		t.Fatalf("reopen error: %v", err)
	}
	defer j2.Close()
	entries, err := j2.Unsynced(0)
	if err != nil {
		t.Fatalf("Unsynced() error: %v", err)
	}
	if len(entries) != 1 {
		t.Errorf("entries after reopen = %d, want 1", len(entries))
	}
}

// stubGateway implements session.Gateway with a controllable SaveSet outcome.
type stubGateway struct {
	saveErr error
	saved   int
}

func (g *stubGateway) CreateSession(context.Context, models.SessionRow) error { return nil }
func (g *stubGateway) CompleteSession(context.Context, uuid.UUID, int, int) error {
	return nil
}
func (g *stubGateway) SaveSet(context.Context, models.SetRow) error {
	g.saved++
	return g.saveErr
}
func (g *stubGateway) GetExerciseHistory(context.Context, int, string) (*models.ExerciseHistory, error) {
	return nil, nil
}
func (g *stubGateway) GetStats(context.Context, int) (*models.UserStats, error) {
	return &models.UserStats{}, nil
}

var _ session.Gateway = (*stubGateway)(nil)

// TestGatewayJournalsOutcomes verifies the decorator records a committed
// entry for a successful write and a failed entry for a failed one, while
// passing the wrapped result through unchanged.
func TestGatewayJournalsOutcomes(t *testing.T) {
	j := openTestJournal(t)
	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	inner := &stubGateway{}
	gw := Wrap(inner, j, log)

	row := models.SetRow{SessionID: uuid.New(), ExerciseName: "Bench Press", SetNumber: 1}
	if err := gw.SaveSet(context.Background(), row); err != nil {
		t.Fatalf("SaveSet() error: %v", err)
	}
	entries, _ := j.Unsynced(0)
	if len(entries) != 0 {
		t.Errorf("unsynced after successful write = %d, want 0", len(entries))
	}

	inner.saveErr = errors.New("timeout")
	if err := gw.SaveSet(context.Background(), row); err == nil {
		t.Fatal("SaveSet() = nil, want wrapped error passed through")
	}
	entries, _ = j.Unsynced(0)
	if len(entries) != 1 || entries[0].Status != StatusFailed || entries[0].Error != "timeout" {
		t.Errorf("unsynced after failed write = %+v, want one failed entry", entries)
	}

	if inner.saved != 2 {
		t.Errorf("wrapped SaveSet calls = %d, want 2", inner.saved)
	}
}
