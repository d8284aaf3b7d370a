// Package events fans out store change notifications to subscribers such
// as the websocket stream.
package events

import (
	"io"
	"log"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Kind names what happened.
type Kind string

const (
	VersionSaved      Kind = "version_saved"
	CheckpointCreated Kind = "checkpoint_created"
	BranchCreated     Kind = "branch_created"
	SessionSwitched   Kind = "session_switched"
	VersionRestored   Kind = "version_restored"
	DataImported      Kind = "data_imported"
	DataCleared       Kind = "data_cleared"
)

// DefaultBuffer is the per-subscriber channel capacity.
const DefaultBuffer = 64

// Event is one notification.
type Event struct {
	ID        string         `json:"id"`
	Kind      Kind           `json:"kind"`
	SessionID string         `json:"sessionId,omitempty"`
	VersionID string         `json:"versionId,omitempty"`
	Time      time.Time      `json:"time"`
	Data      map[string]any `json:"data,omitempty"`
}

// Publisher is the sending half of a Bus.
type Publisher interface {
	Publish(Event)
}

// Discard drops every event.
var Discard Publisher = discard{}

type discard struct{}

func (discard) Publish(Event) {}

// Bus delivers each published event to every current subscriber.
// Publish never blocks: a subscriber whose buffer is full misses the event.
type Bus struct {
	mu     sync.RWMutex
	subs   map[string]chan Event
	buffer int
	closed bool
	logger *log.Logger
}

// NewBus creates a bus. buffer <= 0 uses DefaultBuffer; a nil logger
// uses log.Default().
func NewBus(buffer int, logger *log.Logger) *Bus {
	if buffer <= 0 {
		buffer = DefaultBuffer
	}
	if logger == nil {
		logger = log.Default()
	}
	return &Bus{
		subs:   make(map[string]chan Event),
		buffer: buffer,
		logger: logger,
	}
}

// Subscribe registers a subscriber. cancel unregisters it and closes the
// channel; it is safe to call more than once.
func (b *Bus) Subscribe() (string, <-chan Event, func()) {
	id := uuid.New().String()
	ch := make(chan Event, b.buffer)

	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		close(ch)
		return id, ch, func() {}
	}
	b.subs[id] = ch
	b.mu.Unlock()

	var once sync.Once
	cancel := func() {
		once.Do(func() {
			b.mu.Lock()
			defer b.mu.Unlock()
			if c, ok := b.subs[id]; ok {
				delete(b.subs, id)
				close(c)
			}
		})
	}
	return id, ch, cancel
}

// Publish stamps e with an id and time when missing and delivers it.
func (b *Bus) Publish(e Event) {
	if e.ID == "" {
		e.ID = uuid.New().String()
	}
	if e.Time.IsZero() {
		e.Time = time.Now().UTC()
	}

	b.mu.RLock()
	defer b.mu.RUnlock()
	if b.closed {
		return
	}
	for id, ch := range b.subs {
		select {
		case ch <- e:
		default:
			b.logger.Printf("[events] subscriber %s is full, dropped %s", id, e.Kind)
		}
	}
}

// Len returns the number of active subscribers.
func (b *Bus) Len() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subs)
}

// Close closes every subscriber channel. Later publishes are ignored.
func (b *Bus) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return
	}
	b.closed = true
	for id, ch := range b.subs {
		delete(b.subs, id)
		close(ch)
	}
}

// QuietLogger returns a logger that writes nowhere.
func QuietLogger() *log.Logger {
	return log.New(io.Discard, "", 0)
}
