package api

import (
	"net/http"
	"strings"

	"github.com/kalambet/healthdesk/internal/identity"
)

// TokenVerifier resolves a bearer id token to a user id.
// Implemented by *identity.Verifier.
type TokenVerifier interface {
	Verify(token string) (string, error)
}

// BearerAuth rejects requests without a valid id token and stores the
// verified user id in the request context for identity.FromContext.
func BearerAuth(v TokenVerifier) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			auth := r.Header.Get("Authorization")
			const prefix = "Bearer "
			if !strings.HasPrefix(auth, prefix) {
				httpError(w, http.StatusUnauthorized, "authentication_error", "invalid or missing bearer token")
				return
			}
			uid, err := v.Verify(auth[len(prefix):])
			if err != nil {
				httpError(w, http.StatusUnauthorized, "authentication_error", "invalid or missing bearer token")
				return
			}
			next.ServeHTTP(w, r.WithContext(identity.WithUser(r.Context(), uid)))
		})
	}
}
