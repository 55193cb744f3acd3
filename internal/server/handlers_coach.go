package server

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/claude/repcoach/internal/media"
)

func (s *Server) handleCoachChat(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Message string `json:"message"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid JSON: " + err.Error()})
		return
	}
	if req.Message == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "message required"})
		return
	}

	wk := s.manager.Get(identityFrom(r).UserID)
	if wk.Coach == nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{"error": "coach not configured"})
		return
	}

	reply, err := wk.Coach.Chat(r.Context(), req.Message)
	if err != nil {
		s.log.Error("coach chat failed", "error", err)
		writeJSON(w, http.StatusBadGateway, map[string]string{"error": "coach unavailable"})
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"message": reply})
}

func (s *Server) handleExerciseGif(w http.ResponseWriter, r *http.Request) {
	exercise := r.URL.Query().Get("exercise")
	if exercise == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "exercise parameter required"})
		return
	}
	if s.media == nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{"error": "media lookups not configured"})
		return
	}

	gifURL, err := s.media.GifURL(r.Context(), exercise)
	if err != nil {
		if errors.Is(err, media.ErrNotFound) {
			writeJSON(w, http.StatusNotFound, map[string]string{"error": "no gif for " + exercise})
			return
		}
		s.log.Warn("gif lookup failed", "exercise", exercise, "error", err)
		writeJSON(w, http.StatusBadGateway, map[string]string{"error": "media lookup failed"})
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"exercise": exercise, "gif_url": gifURL})
}
