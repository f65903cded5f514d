package server

import (
	"context"
	"fmt"
	"io"
	"net"
	"net/http"
	"os"
	"strings"
	"sync"

	"github.com/rs/zerolog/log"

	"github.com/jrsteele09/go-anon-client/auth"
	"github.com/jrsteele09/go-anon-client/guard"
	"github.com/jrsteele09/go-anon-client/internal/config"
	"github.com/jrsteele09/go-anon-client/sessions"
)

// SessionManager is the part of the auth manager the server needs
type SessionManager interface {
	CompleteFederatedLogin(ctx context.Context, accessToken, refreshToken string) (*sessions.Session, error)
	Current() auth.State
}

// CallbackResult is the outcome of one federated login callback
type CallbackResult struct {
	Session *sessions.Session
	Err     error
}

// Server is a small loopback HTTP server. It receives the federated login redirect in
// place of the web client and serves a guarded view of the session.
type Server struct {
	env     string // Environment (e.g. "DEV")
	mux     *http.ServeMux
	routes  []string
	config  config.Config
	manager SessionManager
	guard   *guard.Guard
	console io.Writer // Coloured route logging in DEV

	results chan CallbackResult

	httpServer *http.Server
	lock       sync.Mutex
}

type Option func(*Server)

// WithConsole sets where DEV route logging is printed
func WithConsole(w io.Writer) Option {
	return func(s *Server) {
		s.console = w
	}
}

func New(c config.Config, manager SessionManager, g *guard.Guard, options ...Option) *Server {
	s := &Server{
		env:     c.GetEnv(),
		mux:     http.NewServeMux(),
		config:  c,
		manager: manager,
		guard:   g,
		console: os.Stderr,
		results: make(chan CallbackResult, 1),
	}
	for _, opt := range options {
		opt(s)
	}

	s.initRoutes()
	s.logRoutes()
	return s
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.mux.ServeHTTP(w, r)
}

func (s *Server) RegisterRouteFunc(pattern string, handler http.HandlerFunc) {
	s.routes = append(s.routes, pattern)
	s.mux.HandleFunc(pattern, handler)
}

// Done delivers the result of the first federated login callback
func (s *Server) Done() <-chan CallbackResult {
	return s.results
}

// Start listens on the configured callback address and serves in the background.
// It returns the address actually bound, which matters when the port is 0.
func (s *Server) Start() (string, error) {
	s.lock.Lock()
	defer s.lock.Unlock()

	if s.httpServer != nil {
		return "", fmt.Errorf("[Server Start] already started")
	}

	listener, err := net.Listen("tcp", s.config.GetCallbackAddr())
	if err != nil {
		return "", fmt.Errorf("[Server Start] listen on %s: %w", s.config.GetCallbackAddr(), err)
	}

	s.httpServer = &http.Server{Handler: s}
	go func(srv *http.Server) {
		if err := srv.Serve(listener); err != nil && err != http.ErrServerClosed {
			log.Err(err).Msg("Callback server stopped")
		}
	}(s.httpServer)

	addr := listener.Addr().String()
	log.Debug().Str("addr", addr).Msg("Callback server listening")
	return addr, nil
}

// CallbackURL is the address the federated login must redirect back to
func CallbackURL(addr string) string {
	return "http://" + addr + RouteCallback
}

// Shutdown stops a started server
func (s *Server) Shutdown(ctx context.Context) error {
	s.lock.Lock()
	srv := s.httpServer
	s.httpServer = nil
	s.lock.Unlock()

	if srv == nil {
		return nil
	}
	if err := srv.Shutdown(ctx); err != nil {
		return fmt.Errorf("[Server Shutdown] %w", err)
	}
	return nil
}

// publish hands a callback result to whoever waits on Done. Only the first is kept.
func (s *Server) publish(result CallbackResult) {
	select {
	case s.results <- result:
	default:
		log.Warn().Msg("Ignoring repeated federated login callback")
	}
}

func (s *Server) logRoutes() {
	if s.env != "DEV" {
		return
	}
	for _, route := range s.routes {
		parts := strings.SplitN(route, " ", 2)

		if len(parts) > 1 {
			s.logRoute(parts[0], parts[1], "")
		} else {
			s.logRoute("", parts[0], "")
		}
	}
}

func (s *Server) logRoute(method, path, suffix string) {
	displayMethod := fmt.Sprintf(" %-7s", method)
	if color, ok := methodColors[method]; ok {
		displayMethod = color + displayMethod + ResetColor
	} else {
		displayMethod = Gray + displayMethod + ResetColor
	}
	fmt.Fprintf(s.console, "[%-19s] %s%s\n", displayMethod, path, suffix)
}
