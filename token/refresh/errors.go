package refresh

import (
	apperrors "github.com/jrsteele09/go-anon-client/internal/errors"
)

var (
	ErrTokenDecode        = apperrors.ErrTokenDecode
	ErrRefreshRejected    = apperrors.ErrRefreshRejected
	ErrRefreshUnreachable = apperrors.ErrRefreshUnreachable
	ErrSessionExpired     = apperrors.ErrSessionExpired
	ErrSessionChanged     = apperrors.ErrSessionChanged
)
