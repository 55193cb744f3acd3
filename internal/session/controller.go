package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/claude/repcoach/internal/models"
)

// State is the controller's machine state.
type State string

const (
	// StateCollecting waits for the user to submit weight and reps for a set.
	StateCollecting State = "collecting_input"
	// StateResting counts down the rest timer between sets.
	StateResting State = "resting"
	// StateFinished is terminal: the last set of the last exercise is done.
	StateFinished State = "finished"
)

// ErrInvalidInput rejects a set submission with missing or non-numeric
// weight/reps. The submission is a no-op; no state changes.
var ErrInvalidInput = errors.New("weight and reps must be numeric")

// RestTimer is the transient countdown between sets. Never persisted.
type RestTimer struct {
	Remaining int  `json:"remaining"`
	Paused    bool `json:"paused"`
	Active    bool `json:"active"`
}

// Snapshot is a read-only view of the controller for clients.
type Snapshot struct {
	State        State                  `json:"state"`
	Timer        RestTimer              `json:"timer"`
	CoachMessage string                 `json:"coach_message"`
	ElapsedSec   int                    `json:"elapsed_sec"`
	Session      *models.WorkoutSession `json:"session"`
}

// Controller drives one guided workout: the rest countdown, set-completion
// flow, exercise advancement, and coach/audio side effects. All user actions
// and timer ticks are serialized behind one mutex; asynchronous side effects
// (coach reactions, persistence writes) run on goroutines and re-enter under
// the same mutex with a sequence guard, so stale coach responses are dropped.
type Controller struct {
	store  *Store
	gw     Gateway
	coach  Coach
	notify Notifier
	log    *slog.Logger

	mu       sync.Mutex
	state    State
	timer    RestTimer
	stopTick chan struct{}
	template models.WorkoutTemplate
	closed   bool

	coachSeq     atomic.Uint64
	coachApplied uint64
	coachMsg     string

	now         func() time.Time
	tickEvery   time.Duration
	finishDelay time.Duration
	onCoach     func(msg string)
	onFinished  func()
}

// Option configures a Controller.
type Option func(*Controller)

// WithTickInterval overrides the 1 Hz rest-timer tick. Tests use a long
// interval and call Tick directly.
func WithTickInterval(d time.Duration) Option {
	return func(c *Controller) { c.tickEvery = d }
}

// WithFinishDelay overrides the delay between entering Finished and the
// navigation signal.
func WithFinishDelay(d time.Duration) Option {
	return func(c *Controller) { c.finishDelay = d }
}

// WithClock overrides the wall clock.
func WithClock(now func() time.Time) Option {
	return func(c *Controller) { c.now = now }
}

// WithCoachListener registers a sink for applied coach messages.
func WithCoachListener(fn func(msg string)) Option {
	return func(c *Controller) { c.onCoach = fn }
}

// WithFinishListener registers the navigation signal fired after the
// completion display delay.
func WithFinishListener(fn func()) Option {
	return func(c *Controller) { c.onFinished = fn }
}

// NewController creates a controller bound to a store and its collaborators.
func NewController(store *Store, gw Gateway, coach Coach, notify Notifier, log *slog.Logger, opts ...Option) *Controller {
	c := &Controller{
		store:       store,
		gw:          gw,
		coach:       coach,
		notify:      notify,
		log:         log,
		state:       StateCollecting,
		now:         time.Now,
		tickEvery:   time.Second,
		finishDelay: 3 * time.Second,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Begin starts a session from the given template, replacing any session in
// progress. The machine lands in CollectingInput with the first exercise's
// suggested weight seeded.
func (c *Controller) Begin(ctx context.Context, templateID string) error {
	sess, err := c.store.Start(ctx, templateID)
	if err != nil {
		return err
	}
	tmpl, _ := c.store.TemplateByID(templateID)

	c.mu.Lock()
	c.clearTimerLocked()
	c.state = StateCollecting
	c.template = tmpl
	c.coachMsg = ""
	c.mu.Unlock()

	c.log.Info("session started", "session", sess.ID, "template", templateID)
	c.reactAsync(CoachEvent{Kind: EventWorkoutStart, WorkoutName: tmpl.Name})
	if len(tmpl.Exercises) > 0 {
		ex := tmpl.Exercises[0]
		c.reactAsync(CoachEvent{
			Kind:           EventExerciseStart,
			ExerciseName:   ex.Name,
			TotalSets:      ex.Sets,
			TargetReps:     ex.TargetReps,
			ExerciseIndex:  1,
			TotalExercises: len(tmpl.Exercises),
		})
	}
	return nil
}

// CompleteSet logs the current set. Weight and reps arrive as the raw input
// strings; both must parse as numbers or the call is rejected with no state
// change. On a non-final set the rest timer is armed; on the exercise's last
// set the machine advances to the next exercise, or to Finished.
func (c *Controller) CompleteSet(weightStr, repsStr string) error {
	weight, err := strconv.ParseFloat(weightStr, 64)
	if err != nil {
		return ErrInvalidInput
	}
	reps, err := strconv.Atoi(repsStr)
	if err != nil {
		return ErrInvalidInput
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if c.state != StateCollecting {
		return fmt.Errorf("cannot complete a set while %s", c.state)
	}
	sess := c.store.Session()
	if sess == nil {
		return ErrNoActiveSession
	}
	ex := c.template.Exercises[sess.CurrentExerciseIndex]
	setNumber := sess.CurrentSet

	_ = c.store.RecordSet(sess.CurrentExerciseIndex, models.SetLog{
		SetNumber: setNumber,
		Weight:    &weight,
		Reps:      reps,
		LoggedAt:  c.now(),
	})
	c.persistSetAsync(models.SetRow{
		SessionID:    sess.ID,
		UserID:       sess.UserID,
		ExerciseName: ex.Name,
		SetNumber:    setNumber,
		Weight:       &weight,
		Reps:         reps,
		TargetReps:   ex.TargetReps,
		RestSec:      ex.RestSec,
		CompletedAt:  c.now(),
	})
	c.reactAsync(CoachEvent{
		Kind:         EventSetComplete,
		ExerciseName: ex.Name,
		SetNumber:    setNumber,
		TotalSets:    ex.Sets,
		Weight:       weight,
		Reps:         reps,
	})
	c.notify.Play(CueComplete)

	if setNumber < ex.Sets {
		next := setNumber + 1
		_ = c.store.Update(SessionUpdate{CurrentSet: &next})
		c.armTimerLocked(ex.RestSec)
		c.state = StateResting
		return nil
	}
	c.advanceExerciseLocked(sess)
	return nil
}

// advanceExerciseLocked moves to the next exercise or finishes the workout.
// Caller holds c.mu.
func (c *Controller) advanceExerciseLocked(sess *models.WorkoutSession) {
	c.clearTimerLocked()

	if sess.CurrentExerciseIndex < len(c.template.Exercises)-1 {
		nextIdx := sess.CurrentExerciseIndex + 1
		firstSet := 1
		_ = c.store.Update(SessionUpdate{CurrentExerciseIndex: &nextIdx, CurrentSet: &firstSet})
		c.state = StateCollecting

		ex := c.template.Exercises[nextIdx]
		c.reactAsync(CoachEvent{
			Kind:           EventExerciseStart,
			ExerciseName:   ex.Name,
			TotalSets:      ex.Sets,
			TargetReps:     ex.TargetReps,
			ExerciseIndex:  nextIdx + 1,
			TotalExercises: len(c.template.Exercises),
		})
		return
	}

	c.state = StateFinished
	end := c.now()
	completed := models.SessionCompleted
	_ = c.store.Update(SessionUpdate{Status: &completed, EndTime: &end})

	totalSets := 0
	for _, ex := range c.template.Exercises {
		totalSets += ex.Sets
	}
	c.reactAsync(CoachEvent{
		Kind:           EventWorkoutComplete,
		WorkoutName:    c.template.Name,
		TotalExercises: len(c.template.Exercises),
		TotalSets:      totalSets,
		Duration:       end.Sub(sess.StartTime),
	})

	sessionID := sess.ID
	exercises := len(c.template.Exercises)
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := c.gw.CompleteSession(ctx, sessionID, exercises, totalSets); err != nil {
			c.log.Error("session completion not persisted", "session", sessionID, "error", err)
		}
	}()

	// Navigation away is an external concern; signal it after the completion
	// screen has been visible for the configured delay.
	time.AfterFunc(c.finishDelay, func() {
		c.mu.Lock()
		closed := c.closed
		c.mu.Unlock()
		if closed {
			return
		}
		_ = c.store.End()
		if c.onFinished != nil {
			c.onFinished()
		}
	})
}

// Tick advances the rest countdown by one second. Returns false once the
// timer is no longer running. Exported so tests can drive the countdown
// deterministically.
func (c *Controller) Tick() bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.state != StateResting || !c.timer.Active {
		return false
	}
	if c.timer.Paused {
		return true
	}

	c.timer.Remaining--
	switch {
	case c.timer.Remaining > 0 && c.timer.Remaining <= 5:
		c.notify.Play(CueBeep)
	case c.timer.Remaining <= 0:
		c.timer.Remaining = 0
		c.timer.Active = false
		c.state = StateCollecting
		c.notify.Play(CueRest)
		c.reactAsync(CoachEvent{Kind: EventRestEnd})
		return false
	}
	return true
}

// TogglePause suspends or resumes the countdown without resetting remaining
// time. Not a machine transition; the state stays Resting.
func (c *Controller) TogglePause() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state != StateResting {
		return false
	}
	c.timer.Paused = !c.timer.Paused
	return c.timer.Paused
}

// SkipRest zeroes the timer and returns to input collection immediately,
// regardless of remaining time.
func (c *Controller) SkipRest() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state != StateResting {
		return
	}
	c.clearTimerLocked()
	c.state = StateCollecting
}

// Abandon tears the session down: the timer stops, no further ticks occur,
// and nothing beyond already-committed sets is persisted.
func (c *Controller) Abandon() {
	c.mu.Lock()
	c.clearTimerLocked()
	c.state = StateCollecting
	c.mu.Unlock()
	_ = c.store.End()
}

// Close releases the controller. Deterministic: after Close returns no tick
// fires and no finish signal is delivered.
func (c *Controller) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closed = true
	c.clearTimerLocked()
}

// Snapshot returns the current view for clients.
func (c *Controller) Snapshot() Snapshot {
	c.mu.Lock()
	defer c.mu.Unlock()
	snap := Snapshot{
		State:        c.state,
		Timer:        c.timer,
		CoachMessage: c.coachMsg,
		Session:      c.store.Session(),
	}
	if snap.Session != nil {
		snap.ElapsedSec = int(c.now().Sub(snap.Session.StartTime) / time.Second)
	}
	return snap
}

// State returns the current machine state.
func (c *Controller) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Timer returns the current rest timer value.
func (c *Controller) Timer() RestTimer {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.timer
}

// armTimerLocked arms the countdown and starts the tick loop. Caller holds
// c.mu.
func (c *Controller) armTimerLocked(seconds int) {
	c.clearTimerLocked()
	c.timer = RestTimer{Remaining: seconds, Active: true}
	stop := make(chan struct{})
	c.stopTick = stop
	go c.tickLoop(stop)
}

// clearTimerLocked resets the timer and stops the tick loop. Caller holds
// c.mu.
func (c *Controller) clearTimerLocked() {
	c.timer = RestTimer{}
	if c.stopTick != nil {
		close(c.stopTick)
		c.stopTick = nil
	}
}

func (c *Controller) tickLoop(stop chan struct{}) {
	t := time.NewTicker(c.tickEvery)
	defer t.Stop()
	for {
		select {
		case <-stop:
			return
		case <-t.C:
			if !c.Tick() {
				return
			}
		}
	}
}

// persistSetAsync writes a set record without blocking the transition. A
// failed write is logged and never rolled back locally.
func (c *Controller) persistSetAsync(row models.SetRow) {
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := c.gw.SaveSet(ctx, row); err != nil {
			c.log.Error("set not persisted", "session", row.SessionID,
				"exercise", row.ExerciseName, "set", row.SetNumber, "error", err)
		}
	}()
}

// reactAsync requests a coach reaction. Each request carries a monotonically
// increasing sequence number; a response is applied only if no newer request
// has been issued since, so out-of-order completions cannot clobber fresher
// commentary. Caller may hold c.mu.
func (c *Controller) reactAsync(ev CoachEvent) {
	if c.coach == nil {
		return
	}
	seq := c.coachSeq.Add(1)

	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 20*time.Second)
		defer cancel()
		msg, err := c.coach.React(ctx, ev)
		if err != nil {
			c.log.Warn("coach reaction failed", "event", ev.Kind, "error", err)
			return
		}

		c.mu.Lock()
		stale := seq <= c.coachApplied || c.closed
		if !stale {
			c.coachApplied = seq
			c.coachMsg = msg
		}
		onCoach := c.onCoach
		c.mu.Unlock()

		if !stale && onCoach != nil {
			onCoach(msg)
		}
	}()
}

// FormatClock renders whole seconds as m:ss for timer and elapsed displays.
func FormatClock(seconds int) string {
	if seconds < 0 {
		seconds = 0
	}
	return fmt.Sprintf("%d:%02d", seconds/60, seconds%60)
}
