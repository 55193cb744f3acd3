package storage

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/claude/repcoach/internal/models"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

// CreateSession inserts a workout session row at session start.
func (db *DB) CreateSession(ctx context.Context, row models.SessionRow) error {
	_, err := db.Pool.Exec(ctx,
		`INSERT INTO workout_sessions (id, user_id, template_id, template_name, start_time, completed)
		 VALUES ($1, $2, $3, $4, $5, false)
		 ON CONFLICT DO NOTHING`,
		row.ID, row.UserID, row.TemplateID, row.TemplateName, row.StartTime)
	if err != nil {
		return fmt.Errorf("inserting session: %w", err)
	}
	return nil
}

// CompleteSession marks a session completed with its totals.
func (db *DB) CompleteSession(ctx context.Context, sessionID uuid.UUID, totalExercises, totalSets int) error {
	tag, err := db.Pool.Exec(ctx,
		`UPDATE workout_sessions
		 SET end_time = $2, completed = true, total_exercises = $3, total_sets = $4
		 WHERE id = $1`,
		sessionID, time.Now(), totalExercises, totalSets)
	if err != nil {
		return fmt.Errorf("completing session: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("completing session: no row for %s", sessionID)
	}
	return nil
}

// GetRecentSessions retrieves a user's most recent sessions, newest first.
func (db *DB) GetRecentSessions(ctx context.Context, userID, limit int) ([]models.SessionRow, error) {
	if limit <= 0 {
		limit = 10
	}
	rows, err := db.Pool.Query(ctx,
		`SELECT id, user_id, template_id, template_name, start_time, end_time,
		 completed, COALESCE(total_exercises, 0), COALESCE(total_sets, 0)
		 FROM workout_sessions
		 WHERE user_id = $1
		 ORDER BY start_time DESC
		 LIMIT $2`,
		userID, limit)
	if err != nil {
		return nil, fmt.Errorf("querying sessions: %w", err)
	}
	defer rows.Close()

	var result []models.SessionRow
	for rows.Next() {
		var r models.SessionRow
		if err := rows.Scan(&r.ID, &r.UserID, &r.TemplateID, &r.TemplateName,
			&r.StartTime, &r.EndTime, &r.Completed, &r.TotalExercises, &r.TotalSets); err != nil {
			return nil, fmt.Errorf("scanning session: %w", err)
		}
		result = append(result, r)
	}
	return result, rows.Err()
}

// lastCompletedSession returns the most recently finished session, or nil.
func (db *DB) lastCompletedSession(ctx context.Context, userID int) (*models.SessionRow, error) {
	row := db.Pool.QueryRow(ctx,
		`SELECT id, user_id, template_id, template_name, start_time, end_time,
		 completed, COALESCE(total_exercises, 0), COALESCE(total_sets, 0)
		 FROM workout_sessions
		 WHERE user_id = $1 AND completed = true
		 ORDER BY end_time DESC
		 LIMIT 1`,
		userID)

	var r models.SessionRow
	err := row.Scan(&r.ID, &r.UserID, &r.TemplateID, &r.TemplateName,
		&r.StartTime, &r.EndTime, &r.Completed, &r.TotalExercises, &r.TotalSets)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("querying last session: %w", err)
	}
	return &r, nil
}
