package testutil

import (
	"sync"

	"github.com/coremarket/broker/internal/broker"
)

// Recorder captures notifications in emission order for assertions and
// golden comparison.
//
// Thread-safety: all methods are safe for concurrent use via internal
// mutex, although broker operations themselves are serialized.
type Recorder struct {
	mu            sync.Mutex
	notifications []broker.Notification
}

// NewRecorder creates an empty recorder.
func NewRecorder() *Recorder {
	return &Recorder{}
}

// Notify implements broker.Notifier.
func (r *Recorder) Notify(n broker.Notification) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.notifications = append(r.notifications, n)
}

// All returns a copy of every recorded notification, oldest first.
func (r *Recorder) All() []broker.Notification {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]broker.Notification, len(r.notifications))
	copy(out, r.notifications)
	return out
}

// Kinds returns the kind strings of every recorded notification, in order.
func (r *Recorder) Kinds() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	kinds := make([]string, len(r.notifications))
	for i, n := range r.notifications {
		kinds[i] = n.Kind()
	}
	return kinds
}

// OfKind returns the recorded notifications with the given kind, in order.
func (r *Recorder) OfKind(kind string) []broker.Notification {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []broker.Notification
	for _, n := range r.notifications {
		if n.Kind() == kind {
			out = append(out, n)
		}
	}
	return out
}

// Last returns the most recent notification, or nil if none.
func (r *Recorder) Last() broker.Notification {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.notifications) == 0 {
		return nil
	}
	return r.notifications[len(r.notifications)-1]
}

// Reset discards recorded notifications so a test can assert on one
// phase at a time.
func (r *Recorder) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.notifications = nil
}
