package journal

import (
	"context"
	"log/slog"

	"github.com/claude/repcoach/internal/models"
	"github.com/claude/repcoach/internal/session"
)

// Gateway decorates a session.Gateway so that every SaveSet passes through
// the journal. Journal bookkeeping is best-effort; a journal error never
// changes the outcome of the wrapped call.
type Gateway struct {
	session.Gateway
	journal *Journal
	log     *slog.Logger
}

// Wrap decorates the given gateway.
func Wrap(gw session.Gateway, j *Journal, log *slog.Logger) *Gateway {
	return &Gateway{Gateway: gw, journal: j, log: log}
}

// SaveSet journals the write as pending, forwards it, and records the
// outcome.
func (g *Gateway) SaveSet(ctx context.Context, row models.SetRow) error {
	id, jerr := g.journal.Begin(row.SessionID, row.ExerciseName, row.SetNumber)
	if jerr != nil {
		g.log.Warn("set write not journaled", "exercise", row.ExerciseName, "error", jerr)
	}

	err := g.Gateway.SaveSet(ctx, row)

	if jerr == nil {
		if err != nil {
			if ferr := g.journal.Fail(id, err); ferr != nil {
				g.log.Warn("journal update failed", "id", id, "error", ferr)
			}
		} else if cerr := g.journal.Commit(id); cerr != nil {
			g.log.Warn("journal update failed", "id", id, "error", cerr)
		}
	}
	return err
}

var _ session.Gateway = (*Gateway)(nil)
