package session

import (
	"context"
	"time"

	"github.com/claude/repcoach/internal/models"
	"github.com/google/uuid"
)

// Cue identifies an audio notification kind.
type Cue string

const (
	// CueBeep is the per-second countdown beep in the last seconds of rest.
	CueBeep Cue = "beep"
	// CueComplete marks a completed set or workout.
	CueComplete Cue = "complete"
	// CueRest marks the end of a rest period.
	CueRest Cue = "rest"
)

// Notifier delivers audio cues to the client. Calls are fire-and-forget;
// implementations must not block.
type Notifier interface {
	Play(cue Cue)
}

// CoachEventKind names the workout moments the coach reacts to.
type CoachEventKind string

const (
	EventWorkoutStart    CoachEventKind = "workout_start"
	EventExerciseStart   CoachEventKind = "exercise_start"
	EventSetComplete     CoachEventKind = "set_complete"
	EventRestEnd         CoachEventKind = "rest_end"
	EventWorkoutComplete CoachEventKind = "workout_complete"
	EventNewRecord       CoachEventKind = "new_record"
)

// CoachEvent carries the workout context for one coach reaction.
type CoachEvent struct {
	Kind           CoachEventKind
	WorkoutName    string
	ExerciseName   string
	ExerciseIndex  int
	TotalExercises int
	SetNumber      int
	TotalSets      int
	TargetReps     string
	RestSec        int
	Weight         float64
	Reps           int
	Duration       time.Duration
}

// Coach produces best-effort commentary for workout events. Responses are
// advisory only and never drive state transitions.
type Coach interface {
	React(ctx context.Context, ev CoachEvent) (string, error)
}

// Gateway is the persistence boundary of the core. All calls may fail;
// callers log and continue (weak-consistency policy, never blocking the
// workout flow).
type Gateway interface {
	CreateSession(ctx context.Context, row models.SessionRow) error
	CompleteSession(ctx context.Context, sessionID uuid.UUID, totalExercises, totalSets int) error
	SaveSet(ctx context.Context, row models.SetRow) error
	GetExerciseHistory(ctx context.Context, userID int, exerciseName string) (*models.ExerciseHistory, error)
	GetStats(ctx context.Context, userID int) (*models.UserStats, error)
}

// TemplateSource supplies the workout template catalog.
type TemplateSource interface {
	Templates() ([]models.WorkoutTemplate, error)
}
