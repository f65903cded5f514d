package server

// Route path constants for the loopback server
const (
	// Federated login lands here after the identity provider hands back to the backend
	RouteCallback = "/auth/callback"

	// Login entry point the guard redirects to
	RouteLogin = "/login"

	// Protected view of the current session
	RouteSession = "/session"
)
