package config

import "time"

type SessionConfig interface {
	GetLoginURL() string
	GetRefreshSkew() time.Duration
	GetRefreshTimeout() time.Duration
	GetClearSessionOnUnreachable() bool
	GetSessionFile() string
	GetCookieFile() string
	GetFlagsFile() string
}

type Session struct{}

var _ SessionConfig = Session{}

func (Session) GetLoginURL() string {
	return GetEnv("LOGIN_URL", "/login")
}

func (Session) GetRefreshSkew() time.Duration {
	return 10 * time.Second // Refresh when the token expires within this window
}

func (Session) GetRefreshTimeout() time.Duration {
	return GetEnvDuration("REFRESH_TIMEOUT", 10*time.Second)
}

// GetClearSessionOnUnreachable controls whether a refresh that never reached the server
// ends the session like an explicit rejection does.
func (Session) GetClearSessionOnUnreachable() bool {
	return GetEnvBool("CLEAR_SESSION_ON_UNREACHABLE", false)
}

func (Session) GetSessionFile() string {
	return GetEnv("SESSION_FILE", "session.json")
}

func (Session) GetCookieFile() string {
	return GetEnv("COOKIE_FILE", "cookies.json")
}

func (Session) GetFlagsFile() string {
	return GetEnv("FLAGS_FILE", "message_flags.json")
}
