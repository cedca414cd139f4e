package biflow

import "sync"

// sessionName is the synthetic transport-session name the engine registers
// with the host pipeline on first emit (spec §6).
const sessionName = "intermediate:biflow"

// Session models the single synthetic session this plugin instance opens
// the first time it emits anything, and closes exactly once at shutdown.
// The host's real session-event plumbing is out of scope (spec §1); this
// is the engine-local bookkeeping that decides when to fire each event.
type Session struct {
	Name string

	mu     sync.Mutex
	opened bool
	closed bool
}

func NewSession() *Session {
	return &Session{Name: sessionName}
}

// Open reports whether this call is the one that transitions the session
// from unopened to opened; only the first caller receives true.
func (s *Session) Open() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.opened {
		return false
	}
	s.opened = true
	return true
}

func (s *Session) Opened() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.opened
}

// Close reports whether this call is the one that transitions the session
// to closed; only fires once, and only if the session was ever opened.
func (s *Session) Close() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed || !s.opened {
		return false
	}
	s.closed = true
	return true
}
