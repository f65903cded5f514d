package auth

import (
	"context"
	"net/http"
	"sync"

	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"

	"github.com/jrsteele09/go-anon-client/apiclient"
	apperrors "github.com/jrsteele09/go-anon-client/internal/errors"
	"github.com/jrsteele09/go-anon-client/sessions"
	"github.com/jrsteele09/go-anon-client/token/refresh"
)

const DefaultLoginURL = "/login"

type loginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type signupRequest struct {
	Username        string `json:"username"`
	Email           string `json:"email"`
	Password        string `json:"password"`
	ConfirmPassword string `json:"confirm_password"`
}

// Identity is the user record returned by the backend
type Identity struct {
	Username string `json:"username"`
	Email    string `json:"email"`
}

func (i *Identity) complete() bool {
	return i != nil && i.Username != "" && i.Email != ""
}

type authResponse struct {
	Access string    `json:"access"`
	User   *Identity `json:"user,omitempty"`
}

// Manager owns the session. It is the only component that writes the session store;
// everything else reads it or observes State.
type Manager struct {
	api      apiclient.Doer
	store    sessions.Store
	loginURL string

	writeLock sync.Mutex // serialises every store write with the state change it causes

	stateLock sync.RWMutex
	state     State
	subs      subscribers
}

var _ refresh.SessionWriter = (*Manager)(nil)

type Option func(*Manager)

// WithLoginURL sets the login entry point observers are sent to once the session ends
func WithLoginURL(loginURL string) Option {
	return func(m *Manager) {
		m.loginURL = loginURL
	}
}

// NewManager creates a manager in the loading state. Call Rehydrate before relying on State.
func NewManager(api apiclient.Doer, store sessions.Store, options ...Option) *Manager {
	m := &Manager{
		api:      api,
		store:    store,
		loginURL: DefaultLoginURL,
		state:    State{Loading: true},
	}
	for _, opt := range options {
		opt(m)
	}
	return m
}

// LoginURL is the login entry point
func (m *Manager) LoginURL() string {
	return m.loginURL
}

// Rehydrate seeds the state from the store and ends the loading phase.
// A store holding only part of a session is cleared.
func (m *Manager) Rehydrate() State {
	m.writeLock.Lock()
	defer m.writeLock.Unlock()

	if sessions.Partial(m.store) {
		log.Warn().Msg("Discarding partially stored session")
		if err := m.store.ClearAll(); err != nil {
			log.Err(err).Msg("Failed to clear partial session")
		}
	}

	session, _ := sessions.Load(m.store)
	return m.setState(State{Session: session})
}

// Login authenticates with a username (or email) and password.
// The store is only written once the whole session is known.
func (m *Manager) Login(ctx context.Context, identifier, password string) (*sessions.Session, error) {
	var resp authResponse
	err := m.api.Do(ctx, apiclient.Request{
		Method:    http.MethodPost,
		Path:      apiclient.RouteLogin,
		Body:      loginRequest{Username: identifier, Password: password},
		Anonymous: true,
	}, &resp)
	if err != nil {
		return nil, errors.Wrap(err, "[Manager.Login] login request")
	}

	session, err := m.establish(ctx, resp)
	if err != nil {
		return nil, errors.Wrap(err, "[Manager.Login]")
	}
	log.Info().Str("username", session.Username).Msg("Logged in")
	return session, nil
}

// Signup registers a new account and logs it in
func (m *Manager) Signup(ctx context.Context, username, email, password string) (*sessions.Session, error) {
	var resp authResponse
	err := m.api.Do(ctx, apiclient.Request{
		Method: http.MethodPost,
		Path:   apiclient.RouteRegister,
		Body: signupRequest{
			Username:        username,
			Email:           email,
			Password:        password,
			ConfirmPassword: password,
		},
		Anonymous: true,
	}, &resp)
	if err != nil {
		return nil, errors.Wrap(err, "[Manager.Signup] register request")
	}

	session, err := m.establish(ctx, resp)
	if err != nil {
		return nil, errors.Wrap(err, "[Manager.Signup]")
	}
	log.Info().Str("username", session.Username).Msg("Signed up")
	return session, nil
}

// Logout tells the backend the session is over and clears the local session whatever
// the outcome of that call. The call runs through the interceptors so a stale token is
// renewed before it is sent.
func (m *Manager) Logout(ctx context.Context) {
	defer m.clear(false)

	accessToken, _ := m.store.Get(sessions.FieldAccessToken)
	err := m.api.Do(ctx, apiclient.Request{
		Method:    http.MethodPost,
		Path:      apiclient.RouteLogout,
		Body:      struct{}{},
		Anonymous: accessToken == "",
	}, nil)
	if err != nil {
		log.Err(err).Msg("Logout request failed, clearing local session anyway")
	}
}

// ReplaceAccessToken stores a renewed access token for the current user. The swap only
// happens while stale is still the stored token, so a refresh that finishes after a
// login or logout cannot mix its token with another session's identity.
func (m *Manager) ReplaceAccessToken(stale, renewed string) error {
	m.writeLock.Lock()
	defer m.writeLock.Unlock()

	session, ok := sessions.Load(m.store)
	if !ok {
		return errors.Wrap(ErrLoginRequired, "[Manager.ReplaceAccessToken] no session to update")
	}
	if session.AccessToken != stale {
		return errors.Wrap(ErrSessionChanged, "[Manager.ReplaceAccessToken]")
	}
	if err := m.store.Set(sessions.FieldAccessToken, renewed); err != nil {
		return errors.Wrap(err, "[Manager.ReplaceAccessToken] store.Set")
	}

	session.AccessToken = renewed
	m.setState(State{Session: session})
	return nil
}

// Expire ends the session that stale belongs to after a failure the user did not ask for.
// A session established since then is left alone.
func (m *Manager) Expire(stale string, reason error) {
	m.writeLock.Lock()
	defer m.writeLock.Unlock()

	if current, _ := m.store.Get(sessions.FieldAccessToken); current != stale {
		log.Debug().Err(reason).Msg("Ignoring expiry of a session that was already replaced")
		return
	}
	log.Warn().Err(reason).Msg("Session expired")
	m.clearLocked(true)
}

// Current returns the latest state
func (m *Manager) Current() State {
	m.stateLock.RLock()
	defer m.stateLock.RUnlock()
	return m.state
}

// Subscribe registers fn for every state change. fn runs in the goroutine that caused
// the change, before that change returns, so it must not call methods that write the session.
func (m *Manager) Subscribe(fn func(State)) (unsubscribe func()) {
	m.stateLock.Lock()
	id := m.subs.add(fn)
	m.stateLock.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			m.stateLock.Lock()
			m.subs.remove(id)
			m.stateLock.Unlock()
		})
	}
}

// establish turns a login or signup response into a stored session
func (m *Manager) establish(ctx context.Context, resp authResponse) (*sessions.Session, error) {
	if resp.Access == "" {
		return nil, ErrMissingAccessToken
	}

	identity := resp.User
	if !identity.complete() {
		fetched, err := m.fetchIdentity(ctx, resp.Access)
		if err != nil {
			return nil, err
		}
		identity = fetched
	}

	return m.commit(sessions.Session{
		AccessToken: resp.Access,
		Username:    identity.Username,
		Email:       identity.Email,
	}, "")
}

func (m *Manager) fetchIdentity(ctx context.Context, accessToken string) (*Identity, error) {
	var identity Identity
	err := m.api.Do(ctx, apiclient.Request{
		Method:      http.MethodGet,
		Path:        apiclient.RouteUserInfo,
		BearerToken: accessToken,
	}, &identity)
	if err != nil {
		return nil, errors.Wrap(apperrors.Join(ErrIdentityFetchFailed, err), "[Manager.fetchIdentity]")
	}
	if !identity.complete() {
		return nil, errors.Wrap(ErrIdentityFetchFailed, "[Manager.fetchIdentity] response is missing username or email")
	}
	return &identity, nil
}

// commit atomically replaces whatever is stored with session
func (m *Manager) commit(session sessions.Session, refreshToken string) (*sessions.Session, error) {
	m.writeLock.Lock()
	defer m.writeLock.Unlock()

	values := session.Values()
	if refreshToken != "" {
		values[sessions.FieldRefreshToken] = refreshToken
	}
	if err := m.store.Replace(values); err != nil {
		return nil, errors.Wrap(err, "[Manager.commit] store.Replace")
	}

	m.setState(State{Session: &session})
	return &session, nil
}

func (m *Manager) clear(expired bool) {
	m.writeLock.Lock()
	defer m.writeLock.Unlock()
	m.clearLocked(expired)
}

// clearLocked empties the store. Caller holds writeLock.
func (m *Manager) clearLocked(expired bool) {
	if err := m.store.ClearAll(); err != nil {
		log.Err(err).Msg("Failed to clear session store")
	}
	m.setState(State{Expired: expired})
}

// setState publishes next to every subscriber. Caller holds writeLock so
// notifications arrive in the order the changes were made.
func (m *Manager) setState(next State) State {
	if next.Session != nil {
		s := *next.Session
		next.Session = &s
	}

	m.stateLock.Lock()
	m.state = next
	listeners := m.subs.snapshot()
	m.stateLock.Unlock()

	for _, fn := range listeners {
		fn(next)
	}
	return next
}
