package mcp

import (
	"context"
	"time"

	"github.com/claude/repcoach/internal/models"
	"github.com/claude/repcoach/internal/storage"
)

// DataSource abstracts the data layer for MCP tools. Both *storage.DB (local)
// and HTTPClient (remote via REST API) satisfy this interface.
type DataSource interface {
	GetExerciseHistory(ctx context.Context, userID int, exerciseName string) (*models.ExerciseHistory, error)
	GetRecentSessions(ctx context.Context, userID, limit int) ([]models.SessionRow, error)
	GetPersonalRecords(ctx context.Context, userID int) ([]models.PersonalRecord, error)
	GetStats(ctx context.Context, userID int) (*models.UserStats, error)
	QuerySets(ctx context.Context, start, end time.Time, userID int, exerciseFilter string) ([]models.SetRow, error)
}

// Compile-time check: *storage.DB satisfies DataSource.
var _ DataSource = (*storage.DB)(nil)
