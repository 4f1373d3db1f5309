package authclient

import (
	"encoding/json"
	"net/http"

	"github.com/jrsteele09/go-auth-client/cookies"
	autherrors "github.com/jrsteele09/go-auth-client/internal/errors"
)

// ProfileHandler returns the session's identity claims as JSON, or 401 when
// no session exists.
func (c *Client) ProfileHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		jar := cookies.NewJar(w, r)
		session, err := c.sessions.Get(r.Context(), jar)
		if err != nil {
			http.Error(w, "failed to load the session", http.StatusInternalServerError)
			return
		}
		if session == nil {
			writeErrorJSON(w, http.StatusUnauthorized, autherrors.CodeMissingSession, "the user does not have an active session")
			return
		}
		writeJSON(w, http.StatusOK, session.User)
	}
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

func writeErrorJSON(w http.ResponseWriter, status int, code autherrors.Code, message string) {
	writeJSON(w, status, map[string]string{
		"error":             string(code),
		"error_description": message,
	})
}
