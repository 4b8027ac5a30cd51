package middleware

import (
	"net/http"

	"github.com/authkit-dev/authkit"
)

// RequireUser is the downstream authorization gate: it rejects requests
// whose context carries no authenticated identity, or whose identity no
// longer resolves in the user directory. Mount it after [Authenticate].
func RequireUser(m *authkit.Manager) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			identity, ok := IdentityFromContext(r.Context())
			if !ok || identity.UserID == "" {
				writeJSONError(w, http.StatusUnauthorized, "valid access token required")
				return
			}

			user, err := m.Directory().FindByID(r.Context(), identity.UserID)
			if err != nil {
				writeJSONError(w, http.StatusInternalServerError, "internal server error")
				return
			}
			if user == nil {
				writeJSONError(w, http.StatusUnauthorized, "valid access token required")
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}
