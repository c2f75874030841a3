// Package auth tracks the externally owned identity session. The provider
// itself is an opaque collaborator; this tracker only records its
// transitions and fans them out to subscribers.
package auth

import "sync"

// Status is the provider-side session state.
type Status int

const (
	// StatusNotReady means the provider has not reported yet.
	StatusNotReady Status = iota
	StatusUnauthenticated
	StatusAuthenticated
)

func (s Status) String() string {
	switch s {
	case StatusAuthenticated:
		return "authenticated"
	case StatusUnauthenticated:
		return "unauthenticated"
	default:
		return "not_ready"
	}
}

// Change is one identity transition. Handle is set only while
// authenticated.
type Change struct {
	Status Status
	Handle string
}

// Subscriber receives identity transitions.
type Subscriber chan Change

// Tracker holds the current identity and notifies subscribers of changes.
type Tracker struct {
	mu      sync.RWMutex
	current Change
	subs    []Subscriber
}

func NewTracker() *Tracker {
	return &Tracker{current: Change{Status: StatusNotReady}}
}

// Current returns the latest identity state.
func (t *Tracker) Current() Change {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.current
}

// SetReady marks the provider ready without a session.
func (t *Tracker) SetReady() {
	t.set(Change{Status: StatusUnauthenticated})
}

// SetAuthenticated records a successful login for handle.
func (t *Tracker) SetAuthenticated(handle string) {
	t.set(Change{Status: StatusAuthenticated, Handle: handle})
}

// SetLoggedOut ends the current session.
func (t *Tracker) SetLoggedOut() {
	t.set(Change{Status: StatusUnauthenticated})
}

// set records a transition and fans it out. The lock is held across the
// sends so Unsubscribe cannot close a channel mid-broadcast.
func (t *Tracker) set(c Change) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.current == c {
		return
	}
	t.current = c
	for _, sub := range t.subs {
		select {
		case sub <- c:
		default:
			// Subscriber is slow; it will catch up via Current.
		}
	}
}

// Subscribe adds a subscriber and returns its channel.
func (t *Tracker) Subscribe() Subscriber {
	t.mu.Lock()
	defer t.mu.Unlock()
	ch := make(Subscriber, 16)
	t.subs = append(t.subs, ch)
	return ch
}

// Unsubscribe removes a subscriber.
func (t *Tracker) Unsubscribe(ch Subscriber) {
	t.mu.Lock()
	defer t.mu.Unlock()
	for i, sub := range t.subs {
		if sub == ch {
			t.subs = append(t.subs[:i], t.subs[i+1:]...)
			close(ch)
			break
		}
	}
}
