package models

import (
	"time"

	"github.com/google/uuid"
)

// Exercise is one entry in a workout template. Immutable once the catalog
// is loaded; per-session progress lives in ExerciseProgress.
type Exercise struct {
	Name        string `json:"name" yaml:"name"`
	Sets        int    `json:"sets" yaml:"sets"`
	RestSec     int    `json:"rest_sec" yaml:"rest_sec"`
	TargetReps  string `json:"target_reps" yaml:"target_reps"`
	Equipment   string `json:"equipment" yaml:"equipment"`
	Type        string `json:"type" yaml:"type"`
	MuscleGroup string `json:"muscle_group" yaml:"muscle_group"`
}

// WorkoutTemplate is a static, ordered definition of exercises.
type WorkoutTemplate struct {
	ID          string     `json:"id" yaml:"id"`
	Name        string     `json:"name" yaml:"name"`
	Description string     `json:"description" yaml:"description"`
	Location    string     `json:"location" yaml:"location"`
	Type        string     `json:"type" yaml:"type"`
	Exercises   []Exercise `json:"exercises" yaml:"exercises"`
}

// SessionStatus is the lifecycle state of a workout session.
type SessionStatus string

const (
	SessionActive    SessionStatus = "active"
	SessionPaused    SessionStatus = "paused"
	SessionCompleted SessionStatus = "completed"
)

// SetLog is one logged set within a session.
type SetLog struct {
	SetNumber int      `json:"set_number"`
	Weight    *float64 `json:"weight"`
	Reps      int      `json:"reps"`
	LoggedAt  time.Time `json:"logged_at"`
}

// ExerciseProgress carries per-exercise state inside an active session:
// completed sets, the history snapshot taken at session start, and the
// suggested starting weight derived from it.
type ExerciseProgress struct {
	Name            string           `json:"name"`
	CompletedSets   int              `json:"completed_sets"`
	SetLogs         []SetLog         `json:"set_logs"`
	History         *ExerciseHistory `json:"history,omitempty"`
	SuggestedWeight float64          `json:"suggested_weight"`
}

// WorkoutSession is the single mutable entity of the core. It is created by
// the store's Start command and mutated only through store commands.
type WorkoutSession struct {
	ID                   uuid.UUID          `json:"id"`
	TemplateID           string             `json:"template_id"`
	UserID               int                `json:"user_id"`
	StartTime            time.Time          `json:"start_time"`
	EndTime              *time.Time         `json:"end_time,omitempty"`
	Status               SessionStatus      `json:"status"`
	CurrentExerciseIndex int                `json:"current_exercise_index"`
	CurrentSet           int                `json:"current_set"`
	Exercises            []ExerciseProgress `json:"exercises"`
}

// ExerciseHistory summarizes a user's past performance on one exercise.
// Read-only from the core's perspective; supplied by storage.
type ExerciseHistory struct {
	ExerciseName  string    `json:"exercise_name"`
	LastWeight    float64   `json:"last_weight"`
	LastReps      int       `json:"last_reps"`
	LastDate      time.Time `json:"last_date"`
	BestWeight    float64   `json:"best_weight"`
	BestReps      int       `json:"best_reps"`
	TotalSessions int       `json:"total_sessions"`
}

// SessionRow is a row of the workout_sessions table.
type SessionRow struct {
	ID             uuid.UUID  `json:"id"`
	UserID         int        `json:"user_id"`
	TemplateID     string     `json:"template_id"`
	TemplateName   string     `json:"template_name"`
	StartTime      time.Time  `json:"start_time"`
	EndTime        *time.Time `json:"end_time"`
	Completed      bool       `json:"completed"`
	TotalExercises int        `json:"total_exercises"`
	TotalSets      int        `json:"total_sets"`
}

// SetRow is a row of the workout_sets table.
type SetRow struct {
	ID           int64     `json:"id"`
	SessionID    uuid.UUID `json:"session_id"`
	UserID       int       `json:"user_id"`
	ExerciseName string    `json:"exercise_name"`
	SetNumber    int       `json:"set_number"`
	Weight       *float64  `json:"weight"`
	Reps         int       `json:"reps"`
	TargetReps   string    `json:"target_reps"`
	RestSec      int       `json:"rest_sec"`
	CompletedAt  time.Time `json:"completed_at"`
}

// PersonalRecord is a row of the personal_records table. OneRM is the
// Brzycki estimate recorded when the record was achieved.
type PersonalRecord struct {
	UserID       int       `json:"user_id"`
	ExerciseName string    `json:"exercise_name"`
	MaxWeight    float64   `json:"max_weight"`
	MaxReps      int       `json:"max_reps"`
	OneRM        float64   `json:"one_rm"`
	AchievedAt   time.Time `json:"achieved_at"`
}

// UserStats is the aggregate view returned by GetStats.
type UserStats struct {
	TotalWorkouts  int         `json:"total_workouts"`
	ThisWeek       int         `json:"this_week"`
	ThisMonth      int         `json:"this_month"`
	TotalExercises int         `json:"total_exercises"`
	CurrentStreak  int         `json:"current_streak"`
	BestStreak     int         `json:"best_streak"`
	LastWorkout    *SessionRow `json:"last_workout"`
}
