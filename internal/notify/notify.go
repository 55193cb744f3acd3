// Package notify fans workout events out to connected clients. The gym
// monitor subscribes over SSE and renders cues (audio) and coach messages as
// they arrive. Publishing never blocks: a subscriber that cannot keep up
// loses events.
package notify

import (
	"log/slog"
	"sync"

	"github.com/claude/repcoach/internal/session"
)

// EventKind distinguishes the payloads on the stream.
type EventKind string

const (
	// KindCue asks the client to play an audio cue.
	KindCue EventKind = "cue"
	// KindCoach delivers a coach message.
	KindCoach EventKind = "coach"
	// KindState tells the client the workout state changed and it should
	// refetch the snapshot.
	KindState EventKind = "state"
)

// Event is one message on the stream.
type Event struct {
	Kind    EventKind `json:"kind"`
	Cue     string    `json:"cue,omitempty"`
	Message string    `json:"message,omitempty"`
}

// Broadcaster delivers events to any number of subscribers. It satisfies
// session.Notifier.
type Broadcaster struct {
	mu   sync.Mutex
	subs map[chan Event]struct{}
	log  *slog.Logger
}

// NewBroadcaster creates a broadcaster with no subscribers.
func NewBroadcaster(log *slog.Logger) *Broadcaster {
	return &Broadcaster{
		subs: make(map[chan Event]struct{}),
		log:  log,
	}
}

var _ session.Notifier = (*Broadcaster)(nil)

// Play publishes an audio cue.
func (b *Broadcaster) Play(cue session.Cue) {
	b.Publish(Event{Kind: KindCue, Cue: string(cue)})
}

// CoachMessage publishes a coach message.
func (b *Broadcaster) CoachMessage(msg string) {
	b.Publish(Event{Kind: KindCoach, Message: msg})
}

// StateChanged tells subscribers to refetch the workout snapshot.
func (b *Broadcaster) StateChanged() {
	b.Publish(Event{Kind: KindState})
}

// Publish delivers an event to every subscriber. Full subscriber buffers are
// skipped.
func (b *Broadcaster) Publish(ev Event) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for ch := range b.subs {
		select {
		case ch <- ev:
		default:
			b.log.Debug("subscriber buffer full, event dropped", "kind", ev.Kind)
		}
	}
}

// Subscribe registers a new subscriber. The caller must call the returned
// cancel function when done; the channel is closed on cancel.
func (b *Broadcaster) Subscribe() (<-chan Event, func()) {
	ch := make(chan Event, 16)
	b.mu.Lock()
	b.subs[ch] = struct{}{}
	b.mu.Unlock()

	var once sync.Once
	cancel := func() {
		once.Do(func() {
			b.mu.Lock()
			delete(b.subs, ch)
			b.mu.Unlock()
			close(ch)
		})
	}
	return ch, cancel
}
