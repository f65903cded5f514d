package refresh

import (
	"context"
	"fmt"
	"net/http"

	"github.com/jrsteele09/go-anon-client/apiclient"
	apperrors "github.com/jrsteele09/go-anon-client/internal/errors"
	"github.com/jrsteele09/go-anon-client/internal/utils"
	"github.com/jrsteele09/go-anon-client/sessions"
)

// Refresher obtains a new access token from whatever credential the backend holds for us
type Refresher interface {
	Refresh(ctx context.Context) (string, error)
}

// HTTPRefresher renews the access token through the backend refresh endpoint.
// The refresh credential normally travels as an HttpOnly cookie in the client's jar;
// the stored refresh_token is only sent when a federated login left one behind.
type HTTPRefresher struct {
	api   apiclient.Doer
	store sessions.Reader
}

var _ Refresher = (*HTTPRefresher)(nil)

func NewHTTPRefresher(api apiclient.Doer, store sessions.Reader) *HTTPRefresher {
	return &HTTPRefresher{
		api:   api,
		store: store,
	}
}

// refreshRequest marshals to {} when there is no stored refresh token
type refreshRequest struct {
	Refresh *string `json:"refresh,omitempty"`
}

type refreshResponse struct {
	Access *string `json:"access,omitempty"`
}

// Refresh posts to the refresh endpoint without running the interceptors
func (r *HTTPRefresher) Refresh(ctx context.Context) (string, error) {
	var body refreshRequest
	if fallback, ok := r.store.Get(sessions.FieldRefreshToken); ok && fallback != "" {
		body.Refresh = utils.Ptr(fallback)
	}

	var resp refreshResponse
	err := r.api.Do(ctx, apiclient.Request{
		Method:    http.MethodPost,
		Path:      apiclient.RouteTokenRefresh,
		Body:      body,
		Anonymous: true,
	}, &resp)
	if err != nil {
		return "", fmt.Errorf("[HTTPRefresher Refresh] %w", err)
	}
	access := utils.Value(resp.Access)
	if access == "" {
		return "", fmt.Errorf("[HTTPRefresher Refresh] %w", apperrors.ErrMissingAccessToken)
	}
	return access, nil
}
