package refresh

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/rs/zerolog/log"
	"golang.org/x/oauth2"
	"golang.org/x/sync/singleflight"

	"github.com/jrsteele09/go-anon-client/apiclient"
	apperrors "github.com/jrsteele09/go-anon-client/internal/errors"
	"github.com/jrsteele09/go-anon-client/sessions"
	"github.com/jrsteele09/go-anon-client/token"
)

const (
	DefaultSkew           = 10 * time.Second
	DefaultRefreshTimeout = 10 * time.Second

	flightKey = "refresh"
)

// SessionWriter is how the coordinator changes the session. The auth manager implements
// it so it stays the only component writing the store. Both calls name the token the
// refresh started from and must leave the store alone once that token has been replaced
// by a login, logout or another writer.
type SessionWriter interface {
	// ReplaceAccessToken swaps stale for renewed, keeping the cached identity.
	// It returns ErrSessionChanged when stale is no longer the stored token.
	ReplaceAccessToken(stale, renewed string) error

	// Expire clears the session after an involuntary failure and notifies observers.
	// It does nothing when stale is no longer the stored token.
	Expire(stale string, reason error)
}

// Coordinator guarantees that every authenticated request leaves with an access token
// that is valid for at least the configured skew, refreshing at most once at a time.
type Coordinator struct {
	store              sessions.Reader
	writer             SessionWriter
	refresher          Refresher
	skew               time.Duration
	refreshTimeout     time.Duration
	clearOnUnreachable bool
	nowFunc            func() time.Time
	flight             singleflight.Group
}

var _ oauth2.TokenSource = (*Coordinator)(nil)

type Option func(*Coordinator)

func WithSkew(skew time.Duration) Option {
	return func(c *Coordinator) {
		c.skew = skew
	}
}

func WithNowFunc(nowFunc func() time.Time) Option {
	return func(c *Coordinator) {
		c.nowFunc = nowFunc
	}
}

// WithClearOnUnreachable makes a refresh that got no response end the session,
// the same as a rejected one. By default the session is kept.
func WithClearOnUnreachable(clear bool) Option {
	return func(c *Coordinator) {
		c.clearOnUnreachable = clear
	}
}

func WithRefreshTimeout(timeout time.Duration) Option {
	return func(c *Coordinator) {
		c.refreshTimeout = timeout
	}
}

func NewCoordinator(store sessions.Reader, writer SessionWriter, refresher Refresher, options ...Option) *Coordinator {
	c := &Coordinator{
		store:          store,
		writer:         writer,
		refresher:      refresher,
		skew:           DefaultSkew,
		refreshTimeout: DefaultRefreshTimeout,
		nowFunc:        time.Now,
	}
	for _, opt := range options {
		opt(c)
	}
	return c
}

// Interceptor returns the coordinator as an apiclient interceptor
func (c *Coordinator) Interceptor() apiclient.Interceptor {
	return c.Intercept
}

// Intercept attaches a fresh bearer token to req. Requests made without a session
// go out untouched.
func (c *Coordinator) Intercept(ctx context.Context, req *http.Request) error {
	accessToken, ok, err := c.AccessToken(ctx)
	if err != nil {
		return err
	}
	if !ok {
		return nil
	}
	bearer := &oauth2.Token{AccessToken: accessToken, TokenType: "Bearer"}
	bearer.SetAuthHeader(req)
	return nil
}

// AccessToken returns a token valid for at least the skew, refreshing when needed.
// ok is false when there is no session at all.
func (c *Coordinator) AccessToken(ctx context.Context) (accessToken string, ok bool, err error) {
	current, ok := c.store.Get(sessions.FieldAccessToken)
	if !ok || current == "" {
		return "", false, nil
	}
	if token.IsFresh(current, c.nowFunc(), c.skew) {
		return current, true, nil
	}

	renewed, err := c.refresh(ctx, current)
	if err != nil {
		return "", true, err
	}
	return renewed, true, nil
}

// Token implements oauth2.TokenSource
func (c *Coordinator) Token() (*oauth2.Token, error) {
	return c.TokenContext(context.Background())
}

// TokenContext is Token bound to ctx
func (c *Coordinator) TokenContext(ctx context.Context) (*oauth2.Token, error) {
	accessToken, ok, err := c.AccessToken(ctx)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, apperrors.ErrLoginRequired
	}

	t := &oauth2.Token{AccessToken: accessToken, TokenType: "Bearer"}
	if exp, err := token.DecodeExpiry(accessToken); err == nil {
		t.Expiry = exp
	}
	return t, nil
}

// refresh joins the in-flight refresh or starts one. The flight does not inherit the
// caller's cancellation so the session write it ends with is never cut in half.
func (c *Coordinator) refresh(ctx context.Context, stale string) (string, error) {
	flightCtx := context.WithoutCancel(ctx)
	ch := c.flight.DoChan(flightKey, func() (any, error) {
		return c.doRefresh(flightCtx, stale)
	})

	select {
	case <-ctx.Done():
		return "", ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return "", res.Err
		}
		return res.Val.(string), nil
	}
}

func (c *Coordinator) doRefresh(ctx context.Context, stale string) (string, error) {
	// A flight that finished just before this one started may already have renewed it
	current, ok := c.store.Get(sessions.FieldAccessToken)
	if !ok || current == "" {
		return "", fmt.Errorf("[Coordinator refresh] %w: session was cleared", ErrSessionExpired)
	}
	if current != stale && token.IsFresh(current, c.nowFunc(), c.skew) {
		return current, nil
	}
	stale = current

	ctx, cancel := context.WithTimeout(ctx, c.refreshTimeout)
	defer cancel()

	log.Debug().Msg("Access token is stale, refreshing")
	renewed, err := c.refresher.Refresh(ctx)
	if err != nil {
		return "", c.fail(stale, err)
	}

	if err := c.writer.ReplaceAccessToken(stale, renewed); err != nil {
		return "", fmt.Errorf("[Coordinator refresh] store renewed token: %w", err)
	}
	log.Debug().Msg("Access token refreshed")
	return renewed, nil
}

func (c *Coordinator) fail(stale string, err error) error {
	if apperrors.Is(err, apiclient.ErrUnreachable) {
		unreachable := apperrors.Join(ErrRefreshUnreachable, err)
		if !c.clearOnUnreachable {
			log.Warn().Err(err).Msg("Token refresh got no response, keeping session")
			return unreachable
		}
		return c.expire(stale, unreachable)
	}
	return c.expire(stale, apperrors.Join(ErrRefreshRejected, err))
}

func (c *Coordinator) expire(stale string, reason error) error {
	expired := apperrors.Join(ErrSessionExpired, reason)
	log.Warn().Err(reason).Msg("Token refresh failed, session expired")
	c.writer.Expire(stale, expired)
	return expired
}
