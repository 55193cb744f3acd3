package server

import (
	"sync"

	"github.com/claude/repcoach/internal/coach"
	"github.com/claude/repcoach/internal/session"
)

// Workout bundles the live per-user state: the session store, the controller
// driving it, and the user's coach conversation. Coach may be nil when no
// LLM key is configured.
type Workout struct {
	Store *session.Store
	Ctrl  *session.Controller
	Coach *coach.Client
}

// WorkoutFactory builds the workout state for a user the first time they are
// seen.
type WorkoutFactory func(userID int) *Workout

// Manager hands out per-user workout state, creating it lazily.
type Manager struct {
	mu      sync.Mutex
	factory WorkoutFactory
	byUser  map[int]*Workout
}

// NewManager creates a Manager around the given factory.
func NewManager(factory WorkoutFactory) *Manager {
	return &Manager{
		factory: factory,
		byUser:  make(map[int]*Workout),
	}
}

// Get returns the workout state for a user, creating it on first use.
func (m *Manager) Get(userID int) *Workout {
	m.mu.Lock()
	defer m.mu.Unlock()
	if w, ok := m.byUser[userID]; ok {
		return w
	}
	w := m.factory(userID)
	m.byUser[userID] = w
	return w
}

// Close shuts down every controller. Called on server shutdown.
func (m *Manager) Close() {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, w := range m.byUser {
		w.Ctrl.Close()
	}
}
