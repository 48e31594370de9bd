package toast

import "sync"

// DefaultSinkSize is the buffer size used by NewSink.
const DefaultSinkSize = 64

// Sink is a channel-backed Notifier. The UI consumes notifications
// from C. When the buffer is full new notifications are dropped;
// producers are never blocked by a slow or absent consumer.
type Sink struct {
	C chan Notification

	mu      sync.Mutex
	dropped uint64
}

// NewSink creates a Sink with the default buffer size.
func NewSink() *Sink {
	return NewSinkSize(DefaultSinkSize)
}

// NewSinkSize creates a Sink with a custom buffer size.
func NewSinkSize(size int) *Sink {
	if size < 1 {
		size = 1
	}
	return &Sink{C: make(chan Notification, size)}
}

// Show implements Notifier.
func (s *Sink) Show(n Notification) {
	select {
	case s.C <- n:
	default:
		s.mu.Lock()
		s.dropped++
		s.mu.Unlock()
	}
}

// Dropped returns how many notifications were discarded because the
// buffer was full.
func (s *Sink) Dropped() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.dropped
}

// Recorder is a Notifier that captures notifications for assertions.
type Recorder struct {
	mu    sync.Mutex
	notes []Notification
}

// NewRecorder creates an empty Recorder.
func NewRecorder() *Recorder {
	return &Recorder{}
}

// Show implements Notifier.
func (r *Recorder) Show(n Notification) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.notes = append(r.notes, n)
}

// All returns a copy of the recorded notifications.
func (r *Recorder) All() []Notification {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Notification, len(r.notes))
	copy(out, r.notes)
	return out
}

// Count returns how many notifications were recorded.
func (r *Recorder) Count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.notes)
}

// Reset clears recorded notifications.
func (r *Recorder) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.notes = nil
}
