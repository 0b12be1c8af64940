package middleware

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/pingvi/pingvi/internal/auth"
)

// Error codes distinguish why a request failed authentication; clients can
// branch on them without parsing messages.
const (
	CodeMissingToken  = "missing_token"
	CodeMalformedAuth = "malformed_authorization"
	CodeInvalidToken  = "invalid_token"
)

// BearerToken extracts the token from the Authorization header. The error
// code is non-empty when the header is absent or malformed.
func BearerToken(r *http.Request) (token, code string) {
	header := r.Header.Get("Authorization")
	if header == "" {
		return "", CodeMissingToken
	}
	const prefix = "Bearer "
	if !strings.HasPrefix(header, prefix) {
		return "", CodeMalformedAuth
	}
	token = strings.TrimSpace(header[len(prefix):])
	if token == "" {
		return "", CodeMalformedAuth
	}
	return token, ""
}

// RequireAuth validates the bearer token and populates AuthContext for the
// wrapped handler. All failures are 401; expired and unknown tokens are not
// distinguishable.
func RequireAuth(sessions *auth.SessionManager) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token, code := BearerToken(r)
			if code != "" {
				unauthorized(w, code)
				return
			}

			ac, err := sessions.Validate(token)
			if err != nil {
				unauthorized(w, CodeInvalidToken)
				return
			}

			ctx := auth.WithAuth(r.Context(), auth.AuthContext{
				AccountID: ac.Account.ID,
				Role:      ac.Account.Role,
				SessionID: ac.Session.ID,
				Token:     token,
			})
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func unauthorized(w http.ResponseWriter, code string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusUnauthorized)
	json.NewEncoder(w).Encode(map[string]string{
		"error": "invalid or missing credentials",
		"code":  code,
	})
}
