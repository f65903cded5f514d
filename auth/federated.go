package auth

import (
	"context"
	"net/http"
	"net/url"

	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
	"golang.org/x/oauth2"

	"github.com/jrsteele09/go-anon-client/apiclient"
	"github.com/jrsteele09/go-anon-client/internal/utils"
	"github.com/jrsteele09/go-anon-client/sessions"
	"github.com/jrsteele09/go-anon-client/token"
)

// Callback query parameters. Some backend versions send "token" instead of "access".
const (
	callbackAccessParam  = "access"
	callbackTokenParam   = "token"
	callbackRefreshParam = "refresh"
)

type federatedStartResponse struct {
	AuthorizationURL string `json:"authorization_url"`
}

// StartFederatedLogin asks the backend where to send the user to sign in with the
// external identity provider
func (m *Manager) StartFederatedLogin(ctx context.Context) (string, error) {
	var resp federatedStartResponse
	err := m.api.Do(ctx, apiclient.Request{
		Method:    http.MethodGet,
		Path:      apiclient.RouteGoogleLogin,
		Anonymous: true,
	}, &resp)
	if err != nil {
		return "", errors.Wrap(err, "[Manager.StartFederatedLogin]")
	}
	if resp.AuthorizationURL == "" {
		return "", errors.Wrap(apiclient.ErrInvalidResponse, "[Manager.StartFederatedLogin] missing authorization_url")
	}
	return resp.AuthorizationURL, nil
}

// ParseFederatedCallback extracts the tokens from the query the backend redirected back with
func ParseFederatedCallback(query url.Values) (*oauth2.Token, error) {
	accessToken := utils.FirstNonEmpty(query.Get(callbackAccessParam), query.Get(callbackTokenParam))
	if accessToken == "" {
		return nil, errors.Wrapf(ErrMissingCallbackToken, "[ParseFederatedCallback] received parameters %v", paramNames(query))
	}

	t := &oauth2.Token{
		AccessToken:  accessToken,
		TokenType:    "Bearer",
		RefreshToken: query.Get(callbackRefreshParam),
	}
	if exp, err := token.DecodeExpiry(accessToken); err == nil {
		t.Expiry = exp
	}
	return t, nil
}

// CompleteFederatedLogin establishes a session from tokens handed over by the federated
// login redirect. The identity is fetched before anything is stored, so a failed fetch
// leaves the store exactly as it was.
func (m *Manager) CompleteFederatedLogin(ctx context.Context, accessToken, refreshToken string) (*sessions.Session, error) {
	if accessToken == "" {
		return nil, errors.Wrap(ErrMissingCallbackToken, "[Manager.CompleteFederatedLogin]")
	}

	identity, err := m.fetchIdentity(ctx, accessToken)
	if err != nil {
		return nil, errors.Wrap(err, "[Manager.CompleteFederatedLogin]")
	}

	session, err := m.commit(sessions.Session{
		AccessToken: accessToken,
		Username:    identity.Username,
		Email:       identity.Email,
	}, refreshToken)
	if err != nil {
		return nil, errors.Wrap(err, "[Manager.CompleteFederatedLogin]")
	}
	log.Info().Str("username", session.Username).Msg("Logged in with federated login")
	return session, nil
}

// paramNames lists the keys only; values may be credentials
func paramNames(query url.Values) []string {
	names := make([]string, 0, len(query))
	for k := range query {
		names = append(names, k)
	}
	return names
}
