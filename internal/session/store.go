package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/claude/repcoach/internal/models"
	"github.com/google/uuid"
)

var (
	// ErrTemplateNotFound is returned by Start for an unknown template id.
	ErrTemplateNotFound = errors.New("workout template not found")
	// ErrNoActiveSession is returned by commands that require an active session.
	ErrNoActiveSession = errors.New("no active session")
)

// SessionUpdate is a partial update applied by the Update command. Nil fields
// are left untouched.
type SessionUpdate struct {
	CurrentExerciseIndex *int
	CurrentSet           *int
	Status               *models.SessionStatus
	EndTime              *time.Time
}

// Store is the single source of truth for the template catalog, the active
// workout session, and aggregate statistics. All mutation goes through named
// commands; nothing outside this package writes its fields.
type Store struct {
	mu        sync.Mutex
	gw        Gateway
	src       TemplateSource
	log       *slog.Logger
	userID    int
	templates []models.WorkoutTemplate
	session   *models.WorkoutSession
	stats     models.UserStats
	now       func() time.Time
}

// NewStore creates a Store for one user.
func NewStore(gw Gateway, src TemplateSource, userID int, log *slog.Logger) *Store {
	return &Store{
		gw:     gw,
		src:    src,
		log:    log,
		userID: userID,
		now:    time.Now,
	}
}

// LoadTemplates populates the catalog from the template source. Idempotent;
// on failure the previous catalog is left untouched and the error surfaced.
func (s *Store) LoadTemplates() error {
	templates, err := s.src.Templates()
	if err != nil {
		return fmt.Errorf("loading templates: %w", err)
	}

	s.mu.Lock()
	s.templates = templates
	s.mu.Unlock()
	return nil
}

// Templates returns the loaded catalog.
func (s *Store) Templates() []models.WorkoutTemplate {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]models.WorkoutTemplate, len(s.templates))
	copy(out, s.templates)
	return out
}

// TemplateByID looks up a template in the loaded catalog.
func (s *Store) TemplateByID(id string) (models.WorkoutTemplate, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, t := range s.templates {
		if t.ID == id {
			return t, true
		}
	}
	return models.WorkoutTemplate{}, false
}

// Start constructs a new active session from a template. Each exercise is
// seeded with its history snapshot and suggested weight; a failed history
// read degrades to no suggestion. At most one session is active: starting
// while one exists replaces it wholesale. The session row is written to the
// gateway best-effort.
func (s *Store) Start(ctx context.Context, templateID string) (*models.WorkoutSession, error) {
	tmpl, ok := s.TemplateByID(templateID)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrTemplateNotFound, templateID)
	}

	progress := make([]models.ExerciseProgress, len(tmpl.Exercises))
	for i, ex := range tmpl.Exercises {
		history, err := s.gw.GetExerciseHistory(ctx, s.userID, ex.Name)
		if err != nil {
			s.log.Warn("exercise history unavailable", "exercise", ex.Name, "error", err)
			history = nil
		}
		progress[i] = models.ExerciseProgress{
			Name:            ex.Name,
			History:         history,
			SuggestedWeight: SuggestedWeight(history),
		}
	}

	sess := &models.WorkoutSession{
		ID:                   uuid.New(),
		TemplateID:           tmpl.ID,
		UserID:               s.userID,
		StartTime:            s.now(),
		Status:               models.SessionActive,
		CurrentExerciseIndex: 0,
		CurrentSet:           1,
		Exercises:            progress,
	}

	if err := s.gw.CreateSession(ctx, models.SessionRow{
		ID:           sess.ID,
		UserID:       s.userID,
		TemplateID:   tmpl.ID,
		TemplateName: tmpl.Name,
		StartTime:    sess.StartTime,
	}); err != nil {
		s.log.Warn("session row not persisted", "session", sess.ID, "error", err)
	}

	s.mu.Lock()
	s.session = sess
	s.mu.Unlock()
	return sess, nil
}

// Update shallow-merges the given fields into the active session.
func (s *Store) Update(u SessionUpdate) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.session == nil {
		return ErrNoActiveSession
	}
	if u.CurrentExerciseIndex != nil {
		s.session.CurrentExerciseIndex = *u.CurrentExerciseIndex
	}
	if u.CurrentSet != nil {
		s.session.CurrentSet = *u.CurrentSet
	}
	if u.Status != nil {
		s.session.Status = *u.Status
	}
	if u.EndTime != nil {
		s.session.EndTime = u.EndTime
	}
	return nil
}

// RecordSet appends a logged set to the given exercise's progress.
func (s *Store) RecordSet(exerciseIndex int, set models.SetLog) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.session == nil {
		return ErrNoActiveSession
	}
	if exerciseIndex < 0 || exerciseIndex >= len(s.session.Exercises) {
		return fmt.Errorf("exercise index %d out of range", exerciseIndex)
	}
	p := &s.session.Exercises[exerciseIndex]
	p.SetLogs = append(p.SetLogs, set)
	p.CompletedSets++
	return nil
}

// End clears the active session. Persistence of completion is the
// controller's responsibility, not End's.
func (s *Store) End() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.session == nil {
		return ErrNoActiveSession
	}
	s.session = nil
	return nil
}

// Active reports whether a session is in progress.
func (s *Store) Active() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.session != nil
}

// Session returns a copy of the active session, or nil.
func (s *Store) Session() *models.WorkoutSession {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.session == nil {
		return nil
	}
	cp := *s.session
	cp.Exercises = make([]models.ExerciseProgress, len(s.session.Exercises))
	copy(cp.Exercises, s.session.Exercises)
	return &cp
}

// LoadStatistics refreshes aggregate counters from the gateway. A failed read
// degrades to zeroed stats rather than blocking.
func (s *Store) LoadStatistics(ctx context.Context) error {
	stats, err := s.gw.GetStats(ctx, s.userID)
	if err != nil {
		s.log.Warn("statistics unavailable", "error", err)
		s.mu.Lock()
		s.stats = models.UserStats{}
		s.mu.Unlock()
		return fmt.Errorf("loading statistics: %w", err)
	}
	s.mu.Lock()
	s.stats = *stats
	s.mu.Unlock()
	return nil
}

// Stats returns the last loaded statistics.
func (s *Store) Stats() models.UserStats {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.stats
}

// UserID returns the owning user id.
func (s *Store) UserID() int {
	return s.userID
}
