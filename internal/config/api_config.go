package config

import (
	"strings"
	"time"
)

type APIConfig interface {
	GetAPIBaseURL() string
	GetFrontendOrigin() string
	GetRequestTimeout() time.Duration
	GetRequestsPerSecond() int
}

type API struct{}

var _ APIConfig = API{}

// GetAPIBaseURL returns the base URL of the messaging backend (e.g., "https://api.example.com")
func (API) GetAPIBaseURL() string {
	return strings.TrimRight(GetEnv("API_BASE_URL", "http://localhost:8000"), "/")
}

// GetFrontendOrigin is the origin used when building shareable /send/<username> links
func (API) GetFrontendOrigin() string {
	return strings.TrimRight(GetEnv("FRONTEND_ORIGIN", "http://localhost:5173"), "/")
}

func (API) GetRequestTimeout() time.Duration {
	return GetEnvDuration("REQUEST_TIMEOUT", 15*time.Second)
}

// GetRequestsPerSecond limits outbound calls. Zero disables limiting.
func (API) GetRequestsPerSecond() int {
	return GetEnvInt("REQUESTS_PER_SECOND", 10)
}
