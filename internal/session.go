package internal

import "errors"

// ErrAlreadyActive is returned when activating a session twice.
var ErrAlreadyActive = errors.New("session is already active")

// ErrNotPreparing is returned when enqueueing into an active session.
var ErrNotPreparing = errors.New("session is not preparing")

// Session is the per-connection participation state. A session starts
// preparing, buffering everything that arrives before its identity is
// established, and becomes active exactly once on a valid join.
type Session struct {
	username string
	active   bool
	queue    []Message
}

// NewSession returns a preparing session with an empty queue.
func NewSession() *Session {
	return &Session{}
}

// RestoredSession rebuilds a session directly in the active state from a
// durable attachment. Restored sessions carry no queued replay material.
func RestoredSession(username string) *Session {
	return &Session{username: username, active: true}
}

// Active reports whether the session's identity is established.
func (s *Session) Active() bool {
	return s.active
}

// Username returns the established identity. Empty while preparing.
func (s *Session) Username() string {
	return s.username
}

// Enqueue buffers a message for delivery once the session activates.
// Only valid while preparing; the coordinator never calls it afterwards.
func (s *Session) Enqueue(message Message) error {
	if s.active {
		return ErrNotPreparing
	}
	s.queue = append(s.queue, message)
	return nil
}

// Queue returns the buffered messages in arrival order.
func (s *Session) Queue() []Message {
	return s.queue
}

// Activate transitions the session to active under the given name. The
// caller must have verified name uniqueness beforehand; this does not.
func (s *Session) Activate(username string) error {
	if s.active {
		return ErrAlreadyActive
	}
	s.username = username
	s.active = true
	s.queue = nil
	return nil
}
