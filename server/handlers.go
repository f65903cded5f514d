package server

import (
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/rs/zerolog/log"

	"github.com/jrsteele09/go-anon-client/auth"
)

// CallbackHandler completes a federated login from the tokens in the redirect query
func (s *Server) CallbackHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		query := r.URL.Query()

		if errorParam := query.Get("error"); errorParam != "" {
			err := fmt.Errorf("[CallbackHandler] federated login failed: %s %s", errorParam, query.Get("error_description"))
			s.publish(CallbackResult{Err: err})
			http.Error(w, "Login failed: "+errorParam, http.StatusBadRequest)
			return
		}

		tok, err := auth.ParseFederatedCallback(query)
		if err != nil {
			log.Err(err).Msg("Federated login callback without token")
			s.publish(CallbackResult{Err: err})
			http.Error(w, "Login failed: no token received", http.StatusBadRequest)
			return
		}

		session, err := s.manager.CompleteFederatedLogin(r.Context(), tok.AccessToken, tok.RefreshToken)
		if err != nil {
			log.Err(err).Msg("Federated login could not be completed")
			s.publish(CallbackResult{Err: err})
			http.Error(w, "Login failed: could not retrieve user details", http.StatusBadGateway)
			return
		}

		s.publish(CallbackResult{Session: session})
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		fmt.Fprintf(w, "Welcome %s! You are logged in and can close this window.\n", session.Username)
	}
}

// LoginHintHandler is where the guard sends requests that have no session
func (s *Server) LoginHintHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		w.WriteHeader(http.StatusUnauthorized)
		fmt.Fprintf(w, "You are not logged in. Run `anonclient login` or `anonclient google-login` first.\n")
	}
}

type sessionResponse struct {
	Username string `json:"username"`
	Email    string `json:"email"`
}

// SessionHandler shows who is logged in. It never returns the token itself.
func (s *Server) SessionHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		state := s.manager.Current()
		if state.Session == nil {
			http.Redirect(w, r, s.guard.LoginURL(), http.StatusSeeOther)
			return
		}

		w.Header().Set("Content-Type", "application/json; charset=utf-8")
		_ = json.NewEncoder(w).Encode(sessionResponse{
			Username: state.Session.Username,
			Email:    state.Session.Email,
		})
	}
}
