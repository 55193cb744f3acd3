package storage

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/claude/repcoach/internal/models"
)

// GetStats returns aggregate workout statistics for a user. Only completed
// sessions count.
func (db *DB) GetStats(ctx context.Context, userID int) (*models.UserStats, error) {
	stats := &models.UserStats{}

	err := db.Pool.QueryRow(ctx,
		`SELECT COUNT(*) FROM workout_sessions WHERE user_id = $1 AND completed = true`,
		userID,
	).Scan(&stats.TotalWorkouts)
	if err != nil {
		return nil, fmt.Errorf("counting workouts: %w", err)
	}

	now := time.Now()
	err = db.Pool.QueryRow(ctx,
		`SELECT COUNT(*) FROM workout_sessions
		 WHERE user_id = $1 AND completed = true AND start_time >= $2`,
		userID, now.AddDate(0, 0, -7),
	).Scan(&stats.ThisWeek)
	if err != nil {
		return nil, fmt.Errorf("counting this week: %w", err)
	}

	err = db.Pool.QueryRow(ctx,
		`SELECT COUNT(*) FROM workout_sessions
		 WHERE user_id = $1 AND completed = true AND start_time >= $2`,
		userID, now.AddDate(0, 0, -30),
	).Scan(&stats.ThisMonth)
	if err != nil {
		return nil, fmt.Errorf("counting this month: %w", err)
	}

	err = db.Pool.QueryRow(ctx,
		`SELECT COALESCE(SUM(total_exercises), 0) FROM workout_sessions
		 WHERE user_id = $1 AND completed = true`,
		userID,
	).Scan(&stats.TotalExercises)
	if err != nil {
		return nil, fmt.Errorf("summing exercises: %w", err)
	}

	days, err := db.trainingDays(ctx, userID)
	if err != nil {
		return nil, err
	}
	stats.CurrentStreak, stats.BestStreak = Streaks(days, now)

	stats.LastWorkout, err = db.lastCompletedSession(ctx, userID)
	if err != nil {
		return nil, err
	}

	return stats, nil
}

// trainingDays returns the distinct calendar days with a completed session,
// ascending.
func (db *DB) trainingDays(ctx context.Context, userID int) ([]time.Time, error) {
	rows, err := db.Pool.Query(ctx,
		`SELECT DISTINCT date_trunc('day', start_time) FROM workout_sessions
		 WHERE user_id = $1 AND completed = true
		 ORDER BY 1 ASC`,
		userID)
	if err != nil {
		return nil, fmt.Errorf("querying training days: %w", err)
	}
	defer rows.Close()

	var days []time.Time
	for rows.Next() {
		var d time.Time
		if err := rows.Scan(&d); err != nil {
			return nil, fmt.Errorf("scanning training day: %w", err)
		}
		days = append(days, d)
	}
	return days, rows.Err()
}

// Streaks computes the current and best runs of consecutive training days.
// The current streak counts only if the most recent day is today or
// yesterday relative to now.
func Streaks(days []time.Time, now time.Time) (current, best int) {
	if len(days) == 0 {
		return 0, 0
	}

	truncated := make([]time.Time, len(days))
	for i, d := range days {
		truncated[i] = d.Truncate(24 * time.Hour)
	}
	sort.Slice(truncated, func(i, j int) bool { return truncated[i].Before(truncated[j]) })

	run := 1
	best = 1
	for i := 1; i < len(truncated); i++ {
		gap := truncated[i].Sub(truncated[i-1])
		switch {
		case gap == 0:
			continue
		case gap == 24*time.Hour:
			run++
		default:
			run = 1
		}
		if run > best {
			best = run
		}
	}

	last := truncated[len(truncated)-1]
	sinceLast := now.Truncate(24 * time.Hour).Sub(last)
	if sinceLast <= 24*time.Hour {
		current = run
	}
	return current, best
}
