package server

import (
	"bufio"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/claude/repcoach/internal/models"
	"github.com/claude/repcoach/internal/notify"
	"github.com/claude/repcoach/internal/session"
	"github.com/google/uuid"
)

// stubDB cans the read queries and records what was asked.
type stubDB struct {
	mu          sync.Mutex
	records     []models.PersonalRecord
	sessions    []models.SessionRow
	history     map[string]*models.ExerciseHistory
	sets        []models.SetRow
	gotLimit    int
	gotStart    time.Time
	gotEnd      time.Time
	gotExercise string
	gotHistory  string
}

func (d *stubDB) GetRecentSessions(_ context.Context, _ int, limit int) ([]models.SessionRow, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.gotLimit = limit
	return d.sessions, nil
}

func (d *stubDB) GetPersonalRecords(context.Context, int) ([]models.PersonalRecord, error) {
	return d.records, nil
}

func (d *stubDB) GetExerciseHistory(_ context.Context, _ int, name string) (*models.ExerciseHistory, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.gotHistory = name
	return d.history[name], nil
}

func (d *stubDB) QuerySetsBySession(context.Context, string, int) ([]models.SetRow, error) {
	return d.sets, nil
}

func (d *stubDB) QuerySets(_ context.Context, start, end time.Time, _ int, exercise string) ([]models.SetRow, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.gotStart, d.gotEnd, d.gotExercise = start, end, exercise
	return d.sets, nil
}

// memGateway is an in-memory session.Gateway for wiring real stores and
// controllers under the handlers.
type memGateway struct {
	mu    sync.Mutex
	stats models.UserStats
}

func (g *memGateway) CreateSession(context.Context, models.SessionRow) error { return nil }
func (g *memGateway) CompleteSession(context.Context, uuid.UUID, int, int) error {
	return nil
}
func (g *memGateway) SaveSet(context.Context, models.SetRow) error { return nil }
func (g *memGateway) GetExerciseHistory(context.Context, int, string) (*models.ExerciseHistory, error) {
	return nil, nil
}
func (g *memGateway) GetStats(context.Context, int) (*models.UserStats, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	stats := g.stats
	return &stats, nil
}

type staticTemplates struct {
	templates []models.WorkoutTemplate
}

func (s *staticTemplates) Templates() ([]models.WorkoutTemplate, error) {
	return s.templates, nil
}

func testTemplates() []models.WorkoutTemplate {
	return []models.WorkoutTemplate{{
		ID:   "upper_a",
		Name: "Upper Body A",
		Exercises: []models.Exercise{
			{Name: "Bench Press", Sets: 2, RestSec: 30, TargetReps: "8-10"},
		},
	}}
}

func newTestServer(t *testing.T, db *stubDB, apiKey string) *Server {
	t.Helper()
	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	gw := &memGateway{stats: models.UserStats{TotalWorkouts: 7}}
	events := notify.NewBroadcaster(log)

	manager := NewManager(func(userID int) *Workout {
		store := session.NewStore(gw, &staticTemplates{templates: testTemplates()}, userID, log)
		if err := store.LoadTemplates(); err != nil {
			t.Fatalf("LoadTemplates() error: %v", err)
		}
		ctrl := session.NewController(store, gw, nil, events, log,
			session.WithTickInterval(time.Hour))
		return &Workout{Store: store, Ctrl: ctrl}
	})
	t.Cleanup(manager.Close)

	return New(db, manager, nil, events, nil, apiKey, log)
}

func doRequest(t *testing.T, s *Server, method, path, body, apiKey string) *httptest.ResponseRecorder {
	t.Helper()
	var rdr io.Reader
	if body != "" {
		rdr = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, rdr)
	if apiKey != "" {
		req.Header.Set("X-API-Key", apiKey)
	}
	rec := httptest.NewRecorder()
	s.ServeHTTP(rec, req)
	return rec
}

func decodeBody(t *testing.T, rec *httptest.ResponseRecorder, v any) {
	t.Helper()
	if err := json.Unmarshal(rec.Body.Bytes(), v); err != nil {
		t.Fatalf("decoding response %q: %v", rec.Body.String(), err)
	}
}

// TestMe verifies the dev identity fallback when no tsnet client is attached.
func TestMe(t *testing.T) {
	s := newTestServer(t, &stubDB{}, "")
	rec := doRequest(t, s, http.MethodGet, "/api/v1/me", "", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("GET /me = %d, want 200", rec.Code)
	}
	var id Identity
	decodeBody(t, rec, &id)
	if id.UserID != 1 || id.LoginName != "dev" {
		t.Errorf("identity = %+v, want dev user 1", id)
	}
}

// TestTemplatesEndpoint verifies the catalog is served.
func TestTemplatesEndpoint(t *testing.T) {
	s := newTestServer(t, &stubDB{}, "")
	rec := doRequest(t, s, http.MethodGet, "/api/v1/templates", "", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("GET /templates = %d, want 200", rec.Code)
	}
	var templates []models.WorkoutTemplate
	decodeBody(t, rec, &templates)
	if len(templates) != 1 || templates[0].ID != "upper_a" {
		t.Errorf("templates = %+v", templates)
	}
}

// TestSessionLifecycle drives a workout through the HTTP surface: start,
// snapshot, set completion into rest, pause, skip, and abandon.
func TestSessionLifecycle(t *testing.T) {
	s := newTestServer(t, &stubDB{}, "")

	rec := doRequest(t, s, http.MethodGet, "/api/v1/sessions/current", "", "")
	if rec.Code != http.StatusNotFound {
		t.Fatalf("GET /sessions/current before start = %d, want 404", rec.Code)
	}

	rec = doRequest(t, s, http.MethodPost, "/api/v1/sessions", `{"template_id":"upper_a"}`, "")
	if rec.Code != http.StatusCreated {
		t.Fatalf("POST /sessions = %d: %s", rec.Code, rec.Body.String())
	}
	var snap struct {
		State        string `json:"state"`
		TimerDisplay string `json:"timer_display"`
		Session      *models.WorkoutSession
	}
	decodeBody(t, rec, &snap)
	if snap.State != "collecting_input" {
		t.Errorf("state after start = %q, want collecting_input", snap.State)
	}
	if snap.Session == nil || snap.Session.CurrentSet != 1 {
		t.Errorf("session after start = %+v", snap.Session)
	}

	rec = doRequest(t, s, http.MethodPost, "/api/v1/sessions/current/sets", `{"weight":"60","reps":"10"}`, "")
	if rec.Code != http.StatusOK {
		t.Fatalf("POST /sets = %d: %s", rec.Code, rec.Body.String())
	}
	decodeBody(t, rec, &snap)
	if snap.State != "resting" || snap.TimerDisplay != "0:30" {
		t.Errorf("after set 1: state %q timer %q, want resting / 0:30", snap.State, snap.TimerDisplay)
	}

	rec = doRequest(t, s, http.MethodPost, "/api/v1/sessions/current/rest/pause", "", "")
	var pauseResp struct {
		Paused bool              `json:"paused"`
		Timer  session.RestTimer `json:"timer"`
	}
	decodeBody(t, rec, &pauseResp)
	if !pauseResp.Paused || !pauseResp.Timer.Active {
		t.Errorf("pause response = %+v, want paused with active timer", pauseResp)
	}

	rec = doRequest(t, s, http.MethodPost, "/api/v1/sessions/current/rest/skip", "", "")
	decodeBody(t, rec, &snap)
	if snap.State != "collecting_input" {
		t.Errorf("state after skip = %q, want collecting_input", snap.State)
	}

	rec = doRequest(t, s, http.MethodDelete, "/api/v1/sessions/current", "", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("DELETE /sessions/current = %d", rec.Code)
	}
	rec = doRequest(t, s, http.MethodGet, "/api/v1/sessions/current", "", "")
	if rec.Code != http.StatusNotFound {
		t.Errorf("GET /sessions/current after abandon = %d, want 404", rec.Code)
	}
}

// TestStartSessionErrors covers bad payloads and unknown templates.
func TestStartSessionErrors(t *testing.T) {
	s := newTestServer(t, &stubDB{}, "")

	if rec := doRequest(t, s, http.MethodPost, "/api/v1/sessions", `{nope`, ""); rec.Code != http.StatusBadRequest {
		t.Errorf("malformed JSON = %d, want 400", rec.Code)
	}
	if rec := doRequest(t, s, http.MethodPost, "/api/v1/sessions", `{}`, ""); rec.Code != http.StatusBadRequest {
		t.Errorf("missing template_id = %d, want 400", rec.Code)
	}
	if rec := doRequest(t, s, http.MethodPost, "/api/v1/sessions", `{"template_id":"nope"}`, ""); rec.Code != http.StatusNotFound {
		t.Errorf("unknown template = %d, want 404", rec.Code)
	}
}

// TestCompleteSetErrors covers invalid input and the no-session case.
func TestCompleteSetErrors(t *testing.T) {
	s := newTestServer(t, &stubDB{}, "")

	if rec := doRequest(t, s, http.MethodPost, "/api/v1/sessions/current/sets", `{"weight":"60","reps":"10"}`, ""); rec.Code != http.StatusNotFound {
		t.Errorf("set without session = %d, want 404", rec.Code)
	}

	doRequest(t, s, http.MethodPost, "/api/v1/sessions", `{"template_id":"upper_a"}`, "")
	if rec := doRequest(t, s, http.MethodPost, "/api/v1/sessions/current/sets", `{"weight":"heavy","reps":"10"}`, ""); rec.Code != http.StatusBadRequest {
		t.Errorf("non-numeric weight = %d, want 400", rec.Code)
	}

	// Move into rest, then try to log another set.
	doRequest(t, s, http.MethodPost, "/api/v1/sessions/current/sets", `{"weight":"60","reps":"10"}`, "")
	if rec := doRequest(t, s, http.MethodPost, "/api/v1/sessions/current/sets", `{"weight":"60","reps":"10"}`, ""); rec.Code != http.StatusConflict {
		t.Errorf("set while resting = %d, want 409", rec.Code)
	}
}

// TestAPIKeyAuth verifies mutations require the key while reads stay open.
func TestAPIKeyAuth(t *testing.T) {
	s := newTestServer(t, &stubDB{}, "secret")

	if rec := doRequest(t, s, http.MethodGet, "/api/v1/templates", "", ""); rec.Code != http.StatusOK {
		t.Errorf("read without key = %d, want 200", rec.Code)
	}
	if rec := doRequest(t, s, http.MethodPost, "/api/v1/sessions", `{"template_id":"upper_a"}`, ""); rec.Code != http.StatusUnauthorized {
		t.Errorf("mutation without key = %d, want 401", rec.Code)
	}
	if rec := doRequest(t, s, http.MethodPost, "/api/v1/sessions", `{"template_id":"upper_a"}`, "wrong"); rec.Code != http.StatusForbidden {
		t.Errorf("mutation with wrong key = %d, want 403", rec.Code)
	}
	if rec := doRequest(t, s, http.MethodPost, "/api/v1/sessions", `{"template_id":"upper_a"}`, "secret"); rec.Code != http.StatusCreated {
		t.Errorf("mutation with key = %d, want 201", rec.Code)
	}
}

// TestStats verifies the dashboard stats come from the gateway.
func TestStats(t *testing.T) {
	s := newTestServer(t, &stubDB{}, "")
	rec := doRequest(t, s, http.MethodGet, "/api/v1/stats", "", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("GET /stats = %d", rec.Code)
	}
	var stats models.UserStats
	decodeBody(t, rec, &stats)
	if stats.TotalWorkouts != 7 {
		t.Errorf("total workouts = %d, want 7", stats.TotalWorkouts)
	}
}

// TestRecentSessionsLimit verifies the limit query parameter with its
// default.
func TestRecentSessionsLimit(t *testing.T) {
	db := &stubDB{}
	s := newTestServer(t, db, "")

	doRequest(t, s, http.MethodGet, "/api/v1/sessions/recent", "", "")
	if db.gotLimit != 10 {
		t.Errorf("default limit = %d, want 10", db.gotLimit)
	}
	doRequest(t, s, http.MethodGet, "/api/v1/sessions/recent?limit=5", "", "")
	if db.gotLimit != 5 {
		t.Errorf("limit = %d, want 5", db.gotLimit)
	}
	doRequest(t, s, http.MethodGet, "/api/v1/sessions/recent?limit=bogus", "", "")
	if db.gotLimit != 10 {
		t.Errorf("bogus limit fell through to %d, want 10", db.gotLimit)
	}
}

// TestQuerySetsTimeRange verifies range parsing: the 90-day default,
// date-only end rounding, and rejection of garbage.
func TestQuerySetsTimeRange(t *testing.T) {
	db := &stubDB{}
	s := newTestServer(t, db, "")

	if rec := doRequest(t, s, http.MethodGet, "/api/v1/sets", "", ""); rec.Code != http.StatusOK {
		t.Fatalf("GET /sets = %d", rec.Code)
	}
	if d := db.gotEnd.Sub(db.gotStart); d < 89*24*time.Hour || d > 91*24*time.Hour {
		t.Errorf("default window = %v, want about 90 days", d)
	}

	rec := doRequest(t, s, http.MethodGet, "/api/v1/sets?start=2026-01-01&end=2026-01-31&exercise=bench", "", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("GET /sets with range = %d", rec.Code)
	}
	if db.gotExercise != "bench" {
		t.Errorf("exercise filter = %q, want bench", db.gotExercise)
	}
	// Date-only end covers the whole end day.
	wantEnd := time.Date(2026, 2, 1, 0, 0, 0, 0, time.UTC)
	if !db.gotEnd.Equal(wantEnd) {
		t.Errorf("end = %v, want %v", db.gotEnd, wantEnd)
	}

	if rec := doRequest(t, s, http.MethodGet, "/api/v1/sets?start=bogus", "", ""); rec.Code != http.StatusBadRequest {
		t.Errorf("garbage start = %d, want 400", rec.Code)
	}
}

// TestExerciseHistoryEndpoint verifies lookup, URL decoding, and the 404 for
// exercises never logged.
func TestExerciseHistoryEndpoint(t *testing.T) {
	db := &stubDB{history: map[string]*models.ExerciseHistory{
		"Bench Press": {ExerciseName: "Bench Press", LastWeight: 100, LastReps: 8},
	}}
	s := newTestServer(t, db, "")

	rec := doRequest(t, s, http.MethodGet, "/api/v1/history/Bench%20Press", "", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("GET /history = %d: %s", rec.Code, rec.Body.String())
	}
	if db.gotHistory != "Bench Press" {
		t.Errorf("queried exercise = %q, want decoded name", db.gotHistory)
	}
	var history models.ExerciseHistory
	decodeBody(t, rec, &history)
	if history.LastWeight != 100 {
		t.Errorf("history = %+v", history)
	}

	if rec := doRequest(t, s, http.MethodGet, "/api/v1/history/Unknown", "", ""); rec.Code != http.StatusNotFound {
		t.Errorf("unknown exercise = %d, want 404", rec.Code)
	}
}

// TestOptionalFeaturesUnavailable verifies coach, gif lookup, and import
// answer 503 when not configured.
func TestOptionalFeaturesUnavailable(t *testing.T) {
	s := newTestServer(t, &stubDB{}, "")

	if rec := doRequest(t, s, http.MethodPost, "/api/v1/coach/chat", `{"message":"hi"}`, ""); rec.Code != http.StatusServiceUnavailable {
		t.Errorf("coach chat = %d, want 503", rec.Code)
	}
	if rec := doRequest(t, s, http.MethodGet, "/api/v1/media/gif?exercise=Squat", "", ""); rec.Code != http.StatusServiceUnavailable {
		t.Errorf("gif lookup = %d, want 503", rec.Code)
	}
	if rec := doRequest(t, s, http.MethodPost, "/api/v1/import", "data", ""); rec.Code != http.StatusServiceUnavailable {
		t.Errorf("import = %d, want 503", rec.Code)
	}
}

// TestCORSPreflight verifies OPTIONS requests short-circuit with the CORS
// headers.
func TestCORSPreflight(t *testing.T) {
	s := newTestServer(t, &stubDB{}, "secret")
	rec := doRequest(t, s, http.MethodOptions, "/api/v1/sessions", "", "")
	if rec.Code != http.StatusNoContent {
		t.Fatalf("OPTIONS = %d, want 204", rec.Code)
	}
	if got := rec.Header().Get("Access-Control-Allow-Origin"); got != "*" {
		t.Errorf("allow-origin = %q, want *", got)
	}
}

// TestEventsStream verifies the SSE endpoint delivers published events.
func TestEventsStream(t *testing.T) {
	s := newTestServer(t, &stubDB{}, "")
	ts := httptest.NewServer(s)
	defer ts.Close()

	resp, err := http.Get(ts.URL + "/api/v1/events")
	if err != nil {
		t.Fatalf("GET /events: %v", err)
	}
	defer resp.Body.Close()
	if ct := resp.Header.Get("Content-Type"); ct != "text/event-stream" {
		t.Fatalf("content type = %q, want text/event-stream", ct)
	}

	// The subscription registers shortly after headers go out; publish until
	// the event shows up on the stream.
	stop := make(chan struct{})
	defer close(stop)
	go func() {
		for {
			select {
			case <-stop:
				return
			case <-time.After(10 * time.Millisecond):
				s.events.CoachMessage("keep it up")
			}
		}
	}()

	scanner := bufio.NewScanner(resp.Body)
	var event, data string
	for scanner.Scan() {
		line := scanner.Text()
		if strings.HasPrefix(line, "event: ") {
			event = strings.TrimPrefix(line, "event: ")
		}
		if strings.HasPrefix(line, "data: ") {
			data = strings.TrimPrefix(line, "data: ")
			break
		}
	}
	if event != "coach" {
		t.Errorf("event type = %q, want coach", event)
	}
	var ev notify.Event
	if err := json.Unmarshal([]byte(data), &ev); err != nil {
		t.Fatalf("decoding event data %q: %v", data, err)
	}
	if ev.Message != "keep it up" {
		t.Errorf("event message = %q, want %q", ev.Message, "keep it up")
	}
}
