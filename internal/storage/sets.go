package storage

import (
	"context"
	"fmt"
	"time"

	"github.com/claude/repcoach/internal/models"
	"github.com/claude/repcoach/internal/session"
	"github.com/google/uuid"
)

// SaveSet inserts one completed set and, when the set was weighted, updates
// the user's personal record for the exercise.
func (db *DB) SaveSet(ctx context.Context, row models.SetRow) error {
	completedAt := row.CompletedAt
	if completedAt.IsZero() {
		completedAt = time.Now()
	}
	_, err := db.Pool.Exec(ctx,
		`INSERT INTO workout_sets (session_id, user_id, exercise_name, set_number,
		 weight, reps, target_reps, rest_sec, completed_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		row.SessionID, row.UserID, row.ExerciseName, row.SetNumber,
		row.Weight, row.Reps, row.TargetReps, row.RestSec, completedAt)
	if err != nil {
		return fmt.Errorf("inserting set: %w", err)
	}

	if row.Weight != nil {
		if err := db.UpsertPersonalRecord(ctx, row.UserID, row.ExerciseName, *row.Weight, row.Reps); err != nil {
			return fmt.Errorf("updating personal record: %w", err)
		}
	}
	return nil
}

// DeleteSessionSets removes all sets of one session. Used by the importer so
// re-imports always reflect the latest export.
func (db *DB) DeleteSessionSets(ctx context.Context, sessionID uuid.UUID) error {
	_, err := db.Pool.Exec(ctx, `DELETE FROM workout_sets WHERE session_id = $1`, sessionID)
	if err != nil {
		return fmt.Errorf("deleting session sets: %w", err)
	}
	return nil
}

// QuerySetsBySession retrieves the logged sets of one session in order.
func (db *DB) QuerySetsBySession(ctx context.Context, sessionID string, userID int) ([]models.SetRow, error) {
	rows, err := db.Pool.Query(ctx,
		`SELECT id, session_id, user_id, exercise_name, set_number,
		 weight, reps, COALESCE(target_reps, ''), COALESCE(rest_sec, 0), completed_at
		 FROM workout_sets
		 WHERE session_id = $1 AND user_id = $2
		 ORDER BY completed_at ASC`,
		sessionID, userID)
	if err != nil {
		return nil, fmt.Errorf("querying sets: %w", err)
	}
	defer rows.Close()

	return scanSetRows(rows)
}

// QuerySets retrieves a user's sets in a time range, optionally filtered by
// exercise name (partial, case-insensitive match).
func (db *DB) QuerySets(ctx context.Context, start, end time.Time, userID int, exerciseFilter string) ([]models.SetRow, error) {
	query := `SELECT id, session_id, user_id, exercise_name, set_number,
		 weight, reps, COALESCE(target_reps, ''), COALESCE(rest_sec, 0), completed_at
		 FROM workout_sets
		 WHERE completed_at >= $1 AND completed_at < $2 AND user_id = $3`
	args := []any{start, end, userID}
	if exerciseFilter != "" {
		query += ` AND exercise_name ILIKE $4`
		args = append(args, "%"+exerciseFilter+"%")
	}
	query += ` ORDER BY completed_at DESC`

	rows, err := db.Pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("querying sets: %w", err)
	}
	defer rows.Close()

	return scanSetRows(rows)
}

func scanSetRows(rows interface {
	Next() bool
	Scan(dest ...any) error
	Err() error
}) ([]models.SetRow, error) {
	var result []models.SetRow
	for rows.Next() {
		var r models.SetRow
		if err := rows.Scan(&r.ID, &r.SessionID, &r.UserID, &r.ExerciseName, &r.SetNumber,
			&r.Weight, &r.Reps, &r.TargetReps, &r.RestSec, &r.CompletedAt); err != nil {
			return nil, fmt.Errorf("scanning set: %w", err)
		}
		result = append(result, r)
	}
	return result, rows.Err()
}

// UpsertPersonalRecord raises the stored max weight, max reps, and estimated
// 1RM for an exercise when the new set beats them. Never lowers a record.
func (db *DB) UpsertPersonalRecord(ctx context.Context, userID int, exerciseName string, weight float64, reps int) error {
	oneRM := session.BrzyckiOneRM(weight, reps)
	_, err := db.Pool.Exec(ctx,
		`INSERT INTO personal_records (user_id, exercise_name, max_weight, max_reps, one_rm, achieved_at)
		 VALUES ($1, $2, $3, $4, $5, NOW())
		 ON CONFLICT (user_id, exercise_name) DO UPDATE SET
		   max_weight  = GREATEST(personal_records.max_weight, EXCLUDED.max_weight),
		   max_reps    = GREATEST(personal_records.max_reps, EXCLUDED.max_reps),
		   one_rm      = GREATEST(personal_records.one_rm, EXCLUDED.one_rm),
		   achieved_at = CASE WHEN EXCLUDED.one_rm > personal_records.one_rm
		                      THEN EXCLUDED.achieved_at ELSE personal_records.achieved_at END`,
		userID, exerciseName, weight, reps, oneRM)
	if err != nil {
		return fmt.Errorf("upserting personal record: %w", err)
	}
	return nil
}

// GetPersonalRecords retrieves all of a user's records, newest first.
func (db *DB) GetPersonalRecords(ctx context.Context, userID int) ([]models.PersonalRecord, error) {
	rows, err := db.Pool.Query(ctx,
		`SELECT user_id, exercise_name, max_weight, max_reps, one_rm, achieved_at
		 FROM personal_records
		 WHERE user_id = $1
		 ORDER BY achieved_at DESC`,
		userID)
	if err != nil {
		return nil, fmt.Errorf("querying personal records: %w", err)
	}
	defer rows.Close()

	var result []models.PersonalRecord
	for rows.Next() {
		var r models.PersonalRecord
		if err := rows.Scan(&r.UserID, &r.ExerciseName, &r.MaxWeight, &r.MaxReps, &r.OneRM, &r.AchievedAt); err != nil {
			return nil, fmt.Errorf("scanning personal record: %w", err)
		}
		result = append(result, r)
	}
	return result, rows.Err()
}
