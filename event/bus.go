// ABOUTME: Process-wide pub/sub for session lifecycle notifications
// ABOUTME: Decouples the session store from UI state without hidden module statics

package event

import (
	"log/slog"
	"sync"

	"marketplace-client/models"
)

// Bus broadcasts two kinds of events: "session changed" (including a change
// to no session at all) and "session became unauthorized". The unauthorized
// event is separate because it marks an involuntary sign-out; a deliberate
// logout only produces a session change.
type Bus struct {
	logger *slog.Logger

	mu               sync.RWMutex
	nextID           int
	sessionSubs      map[int]func(*models.Session)
	unauthorizedSubs map[int]func()
}

// NewBus creates an event bus. A nil logger falls back to slog.Default().
func NewBus(logger *slog.Logger) *Bus {
	if logger == nil {
		logger = slog.Default()
	}
	return &Bus{
		logger:           logger,
		sessionSubs:      make(map[int]func(*models.Session)),
		unauthorizedSubs: make(map[int]func()),
	}
}

// OnSessionChange registers a listener for session replacement. The returned
// function removes the subscription and is safe to call more than once.
func (b *Bus) OnSessionChange(fn func(*models.Session)) (unsubscribe func()) {
	b.mu.Lock()
	defer b.mu.Unlock()

	id := b.nextID
	b.nextID++
	b.sessionSubs[id] = fn

	return func() {
		b.mu.Lock()
		defer b.mu.Unlock()
		delete(b.sessionSubs, id)
	}
}

// OnUnauthorized registers a listener for involuntary sign-outs.
func (b *Bus) OnUnauthorized(fn func()) (unsubscribe func()) {
	b.mu.Lock()
	defer b.mu.Unlock()

	id := b.nextID
	b.nextID++
	b.unauthorizedSubs[id] = fn

	return func() {
		b.mu.Lock()
		defer b.mu.Unlock()
		delete(b.unauthorizedSubs, id)
	}
}

// PublishSessionChange notifies all listeners of the new session (nil for
// signed out). Listeners run synchronously so a listener that re-reads the
// store observes the state that triggered the event.
func (b *Bus) PublishSessionChange(session *models.Session) {
	for _, fn := range b.sessionListeners() {
		b.invoke(func() { fn(session) })
	}
}

// PublishUnauthorized notifies all listeners that the session was torn down
// involuntarily.
func (b *Bus) PublishUnauthorized() {
	b.mu.RLock()
	listeners := make([]func(), 0, len(b.unauthorizedSubs))
	for _, fn := range b.unauthorizedSubs {
		listeners = append(listeners, fn)
	}
	b.mu.RUnlock()

	for _, fn := range listeners {
		b.invoke(fn)
	}
}

func (b *Bus) sessionListeners() []func(*models.Session) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	listeners := make([]func(*models.Session), 0, len(b.sessionSubs))
	for _, fn := range b.sessionSubs {
		listeners = append(listeners, fn)
	}
	return listeners
}

// invoke shields the bus from listener panics; listeners guard their own
// failures.
func (b *Bus) invoke(fn func()) {
	defer func() {
		if r := recover(); r != nil {
			b.logger.Warn("session event listener panicked", "panic", r)
		}
	}()
	fn()
}
