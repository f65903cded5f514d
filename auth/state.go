package auth

import (
	"github.com/jrsteele09/go-anon-client/sessions"
)

// State is the observable view of the session.
//
//   - Loading is true until the manager has rehydrated from the store. Nothing should
//     decide on redirects while it is set.
//   - Session is nil when nobody is logged in.
//   - Expired marks that the session ended involuntarily (refresh failure) rather than
//     through logout, so observers can send the user back to the login entry point.
type State struct {
	Session *sessions.Session
	Loading bool
	Expired bool
}

// Authenticated reports whether a user is present
func (s State) Authenticated() bool {
	return s.Session != nil
}

// Username returns the logged in username, or an empty string
func (s State) Username() string {
	if s.Session == nil {
		return ""
	}
	return s.Session.Username
}

type subscribers struct {
	next      int
	listeners map[int]func(State)
}

func (s *subscribers) add(fn func(State)) int {
	if s.listeners == nil {
		s.listeners = make(map[int]func(State))
	}
	id := s.next
	s.next++
	s.listeners[id] = fn
	return id
}

func (s *subscribers) remove(id int) {
	delete(s.listeners, id)
}

func (s *subscribers) snapshot() []func(State) {
	fns := make([]func(State), 0, len(s.listeners))
	for _, fn := range s.listeners {
		fns = append(fns, fn)
	}
	return fns
}
