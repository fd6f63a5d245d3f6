package httpapi

import (
	"errors"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"go.uber.org/zap"

	"github.com/and161185/bookshelf/internal/errs"
)

// tokenResponse is the OAuth2 success body.
type tokenResponse struct {
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type"`
	ExpiresIn   int64  `json:"expires_in"`
}

// oauthError is the OAuth2 error body.
type oauthError struct {
	Error       string `json:"error"`
	Description string `json:"error_description,omitempty"`
}

// token implements the resource owner password grant of the development identity provider.
func (s *Server) token(w http.ResponseWriter, r *http.Request) {
	if mux.Vars(r)["realm"] != s.realm {
		writeJSON(w, http.StatusNotFound, oauthError{Error: "Realm does not exist"})
		return
	}
	if err := r.ParseForm(); err != nil {
		writeJSON(w, http.StatusBadRequest, oauthError{Error: "invalid_request", Description: "malformed form body"})
		return
	}
	if gt := r.PostForm.Get("grant_type"); gt != "password" {
		writeJSON(w, http.StatusBadRequest, oauthError{Error: "unsupported_grant_type", Description: "only the password grant is supported"})
		return
	}
	if r.PostForm.Get("client_id") != s.clientID {
		writeJSON(w, http.StatusUnauthorized, oauthError{Error: "invalid_client", Description: "Invalid client credentials"})
		return
	}
	username := r.PostForm.Get("username")
	tok, _, err := s.auth.PasswordGrant(r.Context(), username, r.PostForm.Get("password"), clientIP(r))
	switch {
	case err == nil:
	case errors.Is(err, errs.ErrRateLimited):
		s.loginOutcome("blocked")
		writeJSON(w, http.StatusTooManyRequests, oauthError{Error: "invalid_grant", Description: "Account temporarily locked"})
		return
	case errors.Is(err, errs.ErrUnauthorized):
		s.loginOutcome("denied")
		writeJSON(w, http.StatusUnauthorized, oauthError{Error: "invalid_grant", Description: "Invalid user credentials"})
		return
	default:
		s.loginOutcome("error")
		s.log.Error("password grant", zap.String("username", username), zap.Error(err))
		writeJSON(w, http.StatusInternalServerError, oauthError{Error: "server_error"})
		return
	}
	s.loginOutcome("ok")
	w.Header().Set("Cache-Control", "no-store")
	writeJSON(w, http.StatusOK, tokenResponse{
		AccessToken: tok.AccessToken,
		TokenType:   "Bearer",
		ExpiresIn:   int64(time.Until(tok.ExpiresAt).Seconds()),
	})
}

func (s *Server) loginOutcome(outcome string) {
	if s.metrics != nil {
		s.metrics.Login(outcome)
	}
}
