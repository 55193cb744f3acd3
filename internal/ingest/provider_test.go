package ingest

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"strings"
	"testing"
	"time"

	"github.com/claude/repcoach/internal/models"
	"github.com/google/uuid"
)

type fakeStore struct {
	createErr error
	saveErr   error
	sessions  []models.SessionRow
	deleted   []uuid.UUID
	sets      []models.SetRow
	completed []uuid.UUID
}

func (s *fakeStore) CreateSession(_ context.Context, row models.SessionRow) error {
	if s.createErr != nil {
		return s.createErr
	}
	s.sessions = append(s.sessions, row)
	return nil
}

func (s *fakeStore) CompleteSession(_ context.Context, sessionID uuid.UUID, _, _ int) error {
	s.completed = append(s.completed, sessionID)
	return nil
}

func (s *fakeStore) SaveSet(_ context.Context, row models.SetRow) error {
	if s.saveErr != nil {
		return s.saveErr
	}
	s.sets = append(s.sets, row)
	return nil
}

func (s *fakeStore) DeleteSessionSets(_ context.Context, sessionID uuid.UUID) error {
	s.deleted = append(s.deleted, sessionID)
	return nil
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// TestImport runs the sample export through the provider and checks session
// rows, warmup skipping, and bodyweight handling.
func TestImport(t *testing.T) {
	store := &fakeStore{}
	p := NewProvider(store, testLogger())

	result, err := p.Import(context.Background(), 1, strings.NewReader(sampleExport))
	if err != nil {
		t.Fatalf("Import() error: %v", err)
	}

	if result.SessionsReceived != 2 || result.SessionsInserted != 2 {
		t.Errorf("sessions = %d received / %d inserted, want 2 / 2", result.SessionsReceived, result.SessionsInserted)
	}
	if result.SetsReceived != 7 {
		t.Errorf("sets received = %d, want 7 (incl. warmups)", result.SetsReceived)
	}
	if result.WarmupsSkipped != 2 {
		t.Errorf("warmups skipped = %d, want 2", result.WarmupsSkipped)
	}
	if result.SetsInserted != 5 {
		t.Errorf("sets inserted = %d, want 5", result.SetsInserted)
	}

	if len(store.sessions) != 2 {
		t.Fatalf("stored sessions = %d, want 2", len(store.sessions))
	}
	if row := store.sessions[0]; row.TemplateID != "imported" || row.TemplateName != "Push Day" {
		t.Errorf("first session row = %+v", row)
	}
	if len(store.completed) != 2 {
		t.Errorf("completed sessions = %d, want 2", len(store.completed))
	}

	for _, set := range store.sets {
		if set.ExerciseName == "" || set.Reps == 0 {
			t.Errorf("incomplete set row: %+v", set)
		}
	}
	// The +0 pull-up set stays unweighted; the +5 set records the added load.
	var weighted, unweighted int
	for _, set := range store.sets {
		if set.ExerciseName != "Pull-Up" {
			continue
		}
		if set.Weight == nil {
			unweighted++
		} else if *set.Weight == 5 {
			weighted++
		}
	}
	if weighted != 1 || unweighted != 1 {
		t.Errorf("pull-up sets = %d weighted / %d unweighted, want 1 / 1", weighted, unweighted)
	}
}

// TestImportIdempotent verifies re-importing the same export targets the same
// session ids and clears old sets first.
func TestImportIdempotent(t *testing.T) {
	store := &fakeStore{}
	p := NewProvider(store, testLogger())

	if _, err := p.Import(context.Background(), 1, strings.NewReader(sampleExport)); err != nil {
		t.Fatalf("first Import() error: %v", err)
	}
	firstIDs := make([]uuid.UUID, len(store.sessions))
	for i, row := range store.sessions {
		firstIDs[i] = row.ID
	}

	if _, err := p.Import(context.Background(), 1, strings.NewReader(sampleExport)); err != nil {
		t.Fatalf("second Import() error: %v", err)
	}
	for i, row := range store.sessions[len(firstIDs):] {
		if row.ID != firstIDs[i] {
			t.Errorf("re-import session id = %s, want stable %s", row.ID, firstIDs[i])
		}
	}
	if len(store.deleted) != 4 {
		t.Errorf("delete calls = %d, want one per session per import", len(store.deleted))
	}
}

// TestImportSessionIDScopedToUser verifies different users importing the same
// export get distinct session ids.
func TestImportSessionIDScopedToUser(t *testing.T) {
	date := time.Date(2026, 2, 19, 4, 54, 0, 0, time.UTC)
	if sessionID(1, date) == sessionID(2, date) {
		t.Error("session ids for different users collide")
	}
	if sessionID(1, date) != sessionID(1, date) {
		t.Error("session id is not deterministic")
	}
}

// TestImportCreateFailure verifies a failed session insert aborts with a
// partial result.
func TestImportCreateFailure(t *testing.T) {
	store := &fakeStore{createErr: errors.New("db down")}
	p := NewProvider(store, testLogger())

	result, err := p.Import(context.Background(), 1, strings.NewReader(sampleExport))
	if err == nil {
		t.Fatal("Import() = nil error, want failure")
	}
	if result == nil || result.SessionsInserted != 0 {
		t.Errorf("partial result = %+v, want 0 sessions inserted", result)
	}
}

// TestImportSetFailureContinues verifies a failed set insert is skipped, not
// fatal.
func TestImportSetFailureContinues(t *testing.T) {
	store := &fakeStore{saveErr: errors.New("db down")}
	p := NewProvider(store, testLogger())

	result, err := p.Import(context.Background(), 1, strings.NewReader(sampleExport))
	if err != nil {
		t.Fatalf("Import() error: %v", err)
	}
	if result.SetsInserted != 0 {
		t.Errorf("sets inserted = %d, want 0", result.SetsInserted)
	}
	if result.SessionsInserted != 2 {
		t.Errorf("sessions inserted = %d, want 2", result.SessionsInserted)
	}
}

// TestImportBadExport verifies parse failures surface before any writes.
func TestImportBadExport(t *testing.T) {
	store := &fakeStore{}
	p := NewProvider(store, testLogger())

	_, err := p.Import(context.Background(), 1, strings.NewReader(`"1. Bench Press · Barbell · 8 reps"`))
	if err == nil {
		t.Fatal("Import() = nil error, want parse failure")
	}
	if len(store.sessions) != 0 {
		t.Errorf("sessions written despite parse failure: %d", len(store.sessions))
	}
}
