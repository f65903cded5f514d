package guard

import (
	"net/http"

	"github.com/rs/zerolog/log"

	"github.com/jrsteele09/go-anon-client/auth"
	apperrors "github.com/jrsteele09/go-anon-client/internal/errors"
	"github.com/jrsteele09/go-anon-client/sessions"
)

var (
	ErrLoginRequired  = apperrors.ErrLoginRequired
	ErrSessionLoading = apperrors.ErrSessionLoading
)

// StateSource provides the session state the guard decides on. *auth.Manager implements it.
type StateSource interface {
	Current() auth.State
}

type Decision int

const (
	Loading Decision = iota
	Allow
	Redirect
)

func (d Decision) String() string {
	switch d {
	case Loading:
		return "loading"
	case Allow:
		return "allow"
	case Redirect:
		return "redirect"
	default:
		return "unknown"
	}
}

// Guard gates protected views on the current session. It keeps no state of its own.
type Guard struct {
	source   StateSource
	loginURL string
}

func New(source StateSource, loginURL string) *Guard {
	if loginURL == "" {
		loginURL = auth.DefaultLoginURL
	}
	return &Guard{
		source:   source,
		loginURL: loginURL,
	}
}

// Decide maps a state onto what a protected view should do
func Decide(state auth.State) Decision {
	switch {
	case state.Loading:
		return Loading
	case state.Authenticated():
		return Allow
	default:
		return Redirect
	}
}

// Decide evaluates the current state of the source
func (g *Guard) Decide() Decision {
	return Decide(g.source.Current())
}

func (g *Guard) LoginURL() string {
	return g.loginURL
}

// RequireSession wraps a protected handler. While the session is loading a placeholder is
// served and the client is asked to retry; without a session the client is sent to login.
func (g *Guard) RequireSession(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		switch g.Decide() {
		case Loading:
			w.Header().Set("Retry-After", "1")
			http.Error(w, "Loading session...", http.StatusServiceUnavailable)
		case Redirect:
			log.Debug().Str("path", r.URL.Path).Msg("No session, redirecting to login")
			http.Redirect(w, r, g.loginURL, http.StatusSeeOther)
		default:
			next(w, r)
		}
	}
}

// Run calls fn with the current session, or explains why it cannot
func (g *Guard) Run(fn func(sessions.Session) error) error {
	state := g.source.Current()
	switch Decide(state) {
	case Loading:
		return ErrSessionLoading
	case Redirect:
		if state.Expired {
			return apperrors.Join(ErrLoginRequired, apperrors.ErrSessionExpired)
		}
		return ErrLoginRequired
	default:
		return fn(*state.Session)
	}
}
