package auth

import apperrors "github.com/jrsteele09/go-anon-client/internal/errors"

var (
	ErrMissingAccessToken   = apperrors.ErrMissingAccessToken
	ErrMissingCallbackToken = apperrors.ErrMissingCallbackToken
	ErrIdentityFetchFailed  = apperrors.ErrIdentityFetchFailed
	ErrLoginRequired        = apperrors.ErrLoginRequired
	ErrSessionExpired       = apperrors.ErrSessionExpired
	ErrSessionChanged       = apperrors.ErrSessionChanged
)
