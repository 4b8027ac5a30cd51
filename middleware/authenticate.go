package middleware

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"

	"github.com/authkit-dev/authkit"
	"github.com/authkit-dev/authkit/token"
)

// Request and response headers for the renewal handshake. The access
// token travels as a standard bearer credential; the refresh token
// rides a secondary header, and a renewed access token is surfaced back
// to the client on the response.
const (
	HeaderRefreshToken = "X-Refresh"
	HeaderFreshAccess  = "X-Access-Token"
)

type identityContextKey struct{}

// IdentityFromContext returns the authenticated identity attached by
// [Authenticate], if any. Absence means the request is unauthenticated,
// not that it was rejected.
func IdentityFromContext(ctx context.Context) (*authkit.Identity, bool) {
	id, ok := ctx.Value(identityContextKey{}).(*authkit.Identity)
	return id, ok
}

// Authenticate is the per-request gate. It extracts the bearer access
// token, verifies it, and attaches the decoded identity to the request
// context. An expired access token accompanied by a refresh token gets
// one renewal attempt; the fresh token is exposed via the
// X-Access-Token response header.
//
// A missing or invalid token lets the request proceed unauthenticated;
// downstream gates decide whether that matters. A signing configuration
// fault does not: it fails closed with a 500, because degrading a
// broken deployment to "unauthenticated" would mask it.
func Authenticate(m *authkit.Manager) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			access, ok := bearerToken(r.Header.Get("Authorization"))
			if !ok {
				next.ServeHTTP(w, r)
				return
			}

			res, err := m.VerifyAccess(access)
			if err != nil {
				writeJSONError(w, http.StatusInternalServerError, "internal server error")
				return
			}

			switch res.State {
			case token.StateValid:
				next.ServeHTTP(w, withIdentity(r, res.Claims))

			case token.StateExpired:
				refresh := r.Header.Get(HeaderRefreshToken)
				if refresh == "" {
					next.ServeHTTP(w, r)
					return
				}

				fresh, renewErr := m.Renew(r.Context(), refresh)
				if renewErr != nil {
					next.ServeHTTP(w, r)
					return
				}

				// Identity comes from re-verifying the fresh token, not
				// from the expired one's claims.
				freshRes, verifyErr := m.VerifyAccess(fresh)
				if verifyErr != nil {
					writeJSONError(w, http.StatusInternalServerError, "internal server error")
					return
				}
				if freshRes.State != token.StateValid {
					next.ServeHTTP(w, r)
					return
				}

				w.Header().Set(HeaderFreshAccess, fresh)
				next.ServeHTTP(w, withIdentity(r, freshRes.Claims))

			default:
				next.ServeHTTP(w, r)
			}
		})
	}
}

func withIdentity(r *http.Request, claims *token.Claims) *http.Request {
	identity := authkit.IdentityFromClaims(claims)
	if identity == nil {
		return r
	}
	ctx := context.WithValue(r.Context(), identityContextKey{}, identity)
	return r.WithContext(ctx)
}

func bearerToken(value string) (string, bool) {
	const bearer = "Bearer "
	if !strings.HasPrefix(value, bearer) {
		return "", false
	}

	tok := value[len(bearer):]
	if tok == "" {
		return "", false
	}

	return tok, true
}

func writeJSONError(w http.ResponseWriter, status int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]string{"message": message})
}
