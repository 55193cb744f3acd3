package storage

import (
	"context"
	"errors"
	"fmt"

	"github.com/claude/repcoach/internal/models"
	"github.com/jackc/pgx/v5"
)

// GetExerciseHistory summarizes a user's past performance on one exercise:
// the last logged set, the personal record, and the total set count. Returns
// nil (no error) when the exercise has never been logged.
func (db *DB) GetExerciseHistory(ctx context.Context, userID int, exerciseName string) (*models.ExerciseHistory, error) {
	h := &models.ExerciseHistory{ExerciseName: exerciseName}

	var lastWeight *float64
	err := db.Pool.QueryRow(ctx,
		`SELECT weight, reps, completed_at
		 FROM workout_sets
		 WHERE user_id = $1 AND exercise_name = $2
		 ORDER BY completed_at DESC
		 LIMIT 1`,
		userID, exerciseName,
	).Scan(&lastWeight, &h.LastReps, &h.LastDate)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("querying last set: %w", err)
	}
	if lastWeight != nil {
		h.LastWeight = *lastWeight
	}

	// Personal record, falling back to the last set when none is stored.
	err = db.Pool.QueryRow(ctx,
		`SELECT max_weight, max_reps
		 FROM personal_records
		 WHERE user_id = $1 AND exercise_name = $2`,
		userID, exerciseName,
	).Scan(&h.BestWeight, &h.BestReps)
	if errors.Is(err, pgx.ErrNoRows) {
		h.BestWeight = h.LastWeight
		h.BestReps = h.LastReps
	} else if err != nil {
		return nil, fmt.Errorf("querying personal record: %w", err)
	}

	err = db.Pool.QueryRow(ctx,
		`SELECT COUNT(*) FROM workout_sets WHERE user_id = $1 AND exercise_name = $2`,
		userID, exerciseName,
	).Scan(&h.TotalSessions)
	if err != nil {
		return nil, fmt.Errorf("counting sets: %w", err)
	}

	return h, nil
}
