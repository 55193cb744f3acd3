package server

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/claude/repcoach/internal/session"
	"github.com/go-chi/chi/v5"
)

// snapshotPayload is the wire form of a controller snapshot with the
// formatted clocks the monitor renders directly.
type snapshotPayload struct {
	session.Snapshot
	TimerDisplay   string `json:"timer_display"`
	ElapsedDisplay string `json:"elapsed_display"`
}

func snapshotJSON(snap session.Snapshot) snapshotPayload {
	return snapshotPayload{
		Snapshot:       snap,
		TimerDisplay:   session.FormatClock(snap.Timer.Remaining),
		ElapsedDisplay: session.FormatClock(snap.ElapsedSec),
	}
}

func (s *Server) handleMe(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, identityFrom(r))
}

func (s *Server) handleTemplates(w http.ResponseWriter, r *http.Request) {
	wk := s.manager.Get(identityFrom(r).UserID)
	// Reload so template file edits show up without a restart; the previous
	// catalog survives a failed reload.
	if err := wk.Store.LoadTemplates(); err != nil {
		s.log.Warn("template reload failed", "error", err)
	}
	writeJSON(w, http.StatusOK, wk.Store.Templates())
}

func (s *Server) handleStartSession(w http.ResponseWriter, r *http.Request) {
	var req struct {
		TemplateID string `json:"template_id"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid JSON: " + err.Error()})
		return
	}
	if req.TemplateID == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "template_id required"})
		return
	}

	wk := s.manager.Get(identityFrom(r).UserID)
	if err := wk.Ctrl.Begin(r.Context(), req.TemplateID); err != nil {
		if errors.Is(err, session.ErrTemplateNotFound) {
			writeJSON(w, http.StatusNotFound, map[string]string{"error": err.Error()})
			return
		}
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
		return
	}
	writeJSON(w, http.StatusCreated, snapshotJSON(wk.Ctrl.Snapshot()))
}

func (s *Server) handleCurrentSession(w http.ResponseWriter, r *http.Request) {
	wk := s.manager.Get(identityFrom(r).UserID)
	if !wk.Store.Active() {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "no active session"})
		return
	}
	writeJSON(w, http.StatusOK, snapshotJSON(wk.Ctrl.Snapshot()))
}

func (s *Server) handleAbandonSession(w http.ResponseWriter, r *http.Request) {
	wk := s.manager.Get(identityFrom(r).UserID)
	if !wk.Store.Active() {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "no active session"})
		return
	}
	wk.Ctrl.Abandon()
	s.events.StateChanged()
	writeJSON(w, http.StatusOK, map[string]string{"status": "abandoned"})
}

func (s *Server) handleCompleteSet(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Weight string `json:"weight"`
		Reps   string `json:"reps"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid JSON: " + err.Error()})
		return
	}

	wk := s.manager.Get(identityFrom(r).UserID)
	if err := wk.Ctrl.CompleteSet(req.Weight, req.Reps); err != nil {
		switch {
		case errors.Is(err, session.ErrInvalidInput):
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
		case errors.Is(err, session.ErrNoActiveSession):
			writeJSON(w, http.StatusNotFound, map[string]string{"error": err.Error()})
		default:
			writeJSON(w, http.StatusConflict, map[string]string{"error": err.Error()})
		}
		return
	}
	s.events.StateChanged()
	writeJSON(w, http.StatusOK, snapshotJSON(wk.Ctrl.Snapshot()))
}

func (s *Server) handleSkipRest(w http.ResponseWriter, r *http.Request) {
	wk := s.manager.Get(identityFrom(r).UserID)
	wk.Ctrl.SkipRest()
	s.events.StateChanged()
	writeJSON(w, http.StatusOK, snapshotJSON(wk.Ctrl.Snapshot()))
}

func (s *Server) handleTogglePause(w http.ResponseWriter, r *http.Request) {
	wk := s.manager.Get(identityFrom(r).UserID)
	paused := wk.Ctrl.TogglePause()
	writeJSON(w, http.StatusOK, map[string]any{
		"paused": paused,
		"timer":  wk.Ctrl.Timer(),
	})
}

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	wk := s.manager.Get(identityFrom(r).UserID)
	// A failed refresh degrades to zeroed stats; the dashboard renders what
	// it gets.
	if err := wk.Store.LoadStatistics(r.Context()); err != nil {
		s.log.Warn("stats refresh failed", "error", err)
	}
	writeJSON(w, http.StatusOK, wk.Store.Stats())
}

func (s *Server) handleRecords(w http.ResponseWriter, r *http.Request) {
	records, err := s.db.GetPersonalRecords(r.Context(), identityFrom(r).UserID)
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, records)
}

func (s *Server) handleRecentSessions(w http.ResponseWriter, r *http.Request) {
	limit := 10
	if l := r.URL.Query().Get("limit"); l != "" {
		if parsed, err := strconv.Atoi(l); err == nil && parsed > 0 {
			limit = parsed
		}
	}
	sessions, err := s.db.GetRecentSessions(r.Context(), identityFrom(r).UserID, limit)
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, sessions)
}

func (s *Server) handleSessionSets(w http.ResponseWriter, r *http.Request) {
	sets, err := s.db.QuerySetsBySession(r.Context(), chi.URLParam(r, "id"), identityFrom(r).UserID)
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, sets)
}

func parseTimeRange(r *http.Request) (start, end time.Time, err error) {
	startStr := r.URL.Query().Get("start")
	endStr := r.URL.Query().Get("end")

	if startStr == "" {
		// Default: last 90 days
		end = time.Now()
		start = end.AddDate(0, 0, -90)
		return
	}

	start, err = time.Parse(time.RFC3339, startStr)
	if err != nil {
		start, err = time.Parse("2006-01-02", startStr)
		if err != nil {
			return time.Time{}, time.Time{}, err
		}
	}

	if endStr == "" {
		end = time.Now()
	} else {
		end, err = time.Parse(time.RFC3339, endStr)
		if err != nil {
			end, err = time.Parse("2006-01-02", endStr)
			if err != nil {
				return time.Time{}, time.Time{}, err
			}
			// End of day for date-only
			end = end.Add(24 * time.Hour)
		}
	}
	return
}

func (s *Server) handleQuerySets(w http.ResponseWriter, r *http.Request) {
	start, end, err := parseTimeRange(r)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
		return
	}
	sets, err := s.db.QuerySets(r.Context(), start, end, identityFrom(r).UserID, r.URL.Query().Get("exercise"))
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, sets)
}

func (s *Server) handleExerciseHistory(w http.ResponseWriter, r *http.Request) {
	exercise, err := url.PathUnescape(chi.URLParam(r, "exercise"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid exercise name"})
		return
	}
	history, err := s.db.GetExerciseHistory(r.Context(), identityFrom(r).UserID, exercise)
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
		return
	}
	if history == nil {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "no history for " + exercise})
		return
	}
	writeJSON(w, http.StatusOK, history)
}
