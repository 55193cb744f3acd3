package server

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/claude/repcoach/internal/ingest"
	"github.com/claude/repcoach/internal/media"
	"github.com/claude/repcoach/internal/models"
	"github.com/claude/repcoach/internal/notify"
	"github.com/go-chi/chi/v5"
	"tailscale.com/client/local"
)

// Database is the read surface the HTTP layer needs from storage. Satisfied
// by *storage.DB; narrowed so handler tests can stub it.
type Database interface {
	GetRecentSessions(ctx context.Context, userID, limit int) ([]models.SessionRow, error)
	GetPersonalRecords(ctx context.Context, userID int) ([]models.PersonalRecord, error)
	GetExerciseHistory(ctx context.Context, userID int, exerciseName string) (*models.ExerciseHistory, error)
	QuerySetsBySession(ctx context.Context, sessionID string, userID int) ([]models.SetRow, error)
	QuerySets(ctx context.Context, start, end time.Time, userID int, exerciseFilter string) ([]models.SetRow, error)
}

// Server holds dependencies for HTTP handlers.
type Server struct {
	db       Database
	manager  *Manager
	media    *media.Client
	events   *notify.Broadcaster
	importer *ingest.Provider
	ts       *local.Client
	log      *slog.Logger
	apiKey   string
	router   chi.Router
}

// New creates a new Server with all routes configured. media may be nil when
// no ExerciseDB key is configured.
func New(db Database, manager *Manager, mediaClient *media.Client, events *notify.Broadcaster, importer *ingest.Provider, apiKey string, log *slog.Logger) *Server {
	s := &Server{
		db:       db,
		manager:  manager,
		media:    mediaClient,
		events:   events,
		importer: importer,
		log:      log,
		apiKey:   apiKey,
		router:   chi.NewRouter(),
	}
	s.routes()
	return s
}

// SetTailscale enables tailnet identity resolution for incoming requests.
func (s *Server) SetTailscale(lc *local.Client) {
	s.ts = lc
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

func (s *Server) routes() {
	s.router.Use(RequestLogging(s.log))
	s.router.Use(CORS)
	s.router.Use(s.identity)

	s.router.Route("/api/v1", func(r chi.Router) {
		// Read endpoints (no auth — tsnet handles access)
		r.Get("/me", s.handleMe)
		r.Get("/templates", s.handleTemplates)
		r.Get("/stats", s.handleStats)
		r.Get("/records", s.handleRecords)
		r.Get("/sessions/recent", s.handleRecentSessions)
		r.Get("/sessions/current", s.handleCurrentSession)
		r.Get("/sessions/{id}/sets", s.handleSessionSets)
		r.Get("/sets", s.handleQuerySets)
		r.Get("/history/{exercise}", s.handleExerciseHistory)
		r.Get("/media/gif", s.handleExerciseGif)
		r.Get("/events", s.handleEvents)

		// Workout mutations and coach chat (API key required when configured)
		r.Group(func(r chi.Router) {
			if s.apiKey != "" {
				r.Use(APIKeyAuth(s.apiKey))
			}
			r.Post("/sessions", s.handleStartSession)
			r.Delete("/sessions/current", s.handleAbandonSession)
			r.Post("/sessions/current/sets", s.handleCompleteSet)
			r.Post("/sessions/current/rest/skip", s.handleSkipRest)
			r.Post("/sessions/current/rest/pause", s.handleTogglePause)
			r.Post("/coach/chat", s.handleCoachChat)
			r.Post("/import", s.handleImport)
		})
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}
