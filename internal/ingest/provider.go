package ingest

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/claude/repcoach/internal/models"
	"github.com/google/uuid"
)

// Store is the write surface the importer needs. Satisfied by *storage.DB.
type Store interface {
	CreateSession(ctx context.Context, row models.SessionRow) error
	CompleteSession(ctx context.Context, sessionID uuid.UUID, totalExercises, totalSets int) error
	SaveSet(ctx context.Context, row models.SetRow) error
	DeleteSessionSets(ctx context.Context, sessionID uuid.UUID) error
}

// Provider imports archived training sessions.
type Provider struct {
	db  Store
	log *slog.Logger
}

// NewProvider creates an import provider.
func NewProvider(db Store, log *slog.Logger) *Provider {
	return &Provider{db: db, log: log}
}

// sessionID derives a stable id from the user and session timestamp, so
// re-importing the same export never duplicates sessions.
func sessionID(userID int, date time.Time) uuid.UUID {
	name := fmt.Sprintf("repcoach-import/%d/%s", userID, date.UTC().Format(time.RFC3339))
	return uuid.NewSHA1(uuid.NameSpaceOID, []byte(name))
}

// Import parses an archive export and stores every working set. Warmup sets
// are counted but not imported; they would poison weight suggestions and
// personal records. Saving sets also rebuilds personal records, since the
// record upsert runs on every weighted set.
func (p *Provider) Import(ctx context.Context, userID int, r io.Reader) (*Result, error) {
	sessions, err := Parse(r)
	if err != nil {
		return nil, fmt.Errorf("parsing export: %w", err)
	}

	result := &Result{SessionsReceived: len(sessions)}
	for _, s := range sessions {
		id := sessionID(userID, s.Date)
		if err := p.db.CreateSession(ctx, models.SessionRow{
			ID:           id,
			UserID:       userID,
			TemplateID:   "imported",
			TemplateName: s.Name,
			StartTime:    s.Date,
		}); err != nil {
			return result, fmt.Errorf("creating session %s: %w", s.Date.Format("2006-01-02"), err)
		}
		result.SessionsInserted++

		// Re-imports replace the session's sets wholesale.
		if err := p.db.DeleteSessionSets(ctx, id); err != nil {
			return result, fmt.Errorf("clearing session %s: %w", s.Date.Format("2006-01-02"), err)
		}

		totalSets := 0
		for _, ex := range s.Exercises {
			for _, set := range ex.Sets {
				result.SetsReceived++
				if set.IsWarmup {
					result.WarmupsSkipped++
					continue
				}
				weight := set.WeightKg
				row := models.SetRow{
					SessionID:    id,
					UserID:       userID,
					ExerciseName: ex.Name,
					SetNumber:    set.Number,
					Reps:         set.Reps,
					TargetReps:   fmt.Sprintf("%d", ex.TargetReps),
					CompletedAt:  s.Date,
				}
				// Bodyweight-plus sets record added load only; zero added
				// load stays unweighted so it never feeds the records.
				if !set.IsBodyweightPlus || weight > 0 {
					row.Weight = &weight
				}
				if err := p.db.SaveSet(ctx, row); err != nil {
					p.log.Warn("set not imported", "session", s.Name, "exercise", ex.Name,
						"set", set.Number, "error", err)
					continue
				}
				result.SetsInserted++
				totalSets++
			}
		}

		if err := p.db.CompleteSession(ctx, id, len(s.Exercises), totalSets); err != nil {
			p.log.Warn("imported session not marked complete", "session", s.Name, "error", err)
		}
	}

	result.Message = fmt.Sprintf("imported %d sessions", result.SessionsInserted)
	return result, nil
}
