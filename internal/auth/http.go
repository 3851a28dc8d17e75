// ABOUTME: HTTP middleware for JWT authentication on API endpoints
// ABOUTME: Accepts the access token from a cookie or the Authorization header

package auth

import (
	"encoding/json"
	"net/http"
	"strings"
)

// Cookie names set by the backend on login, signup, and refresh.
const (
	AccessCookie  = "accessToken"
	RefreshCookie = "refreshToken"
)

// ExtractBearerToken extracts a bearer token from the Authorization header.
// Returns the token and an error message (empty if successful).
func ExtractBearerToken(authHeader string) (string, string) {
	if authHeader == "" {
		return "", "missing authorization header"
	}
	if !strings.HasPrefix(authHeader, "Bearer ") {
		return "", "invalid authorization header format"
	}
	token := strings.TrimPrefix(authHeader, "Bearer ")
	if token == "" {
		return "", "empty token"
	}
	return token, ""
}

// RequestToken returns the token stored in the named cookie, falling back to
// the Authorization header.
func RequestToken(r *http.Request, cookie string) (string, string) {
	if c, err := r.Cookie(cookie); err == nil && c.Value != "" {
		return c.Value, ""
	}
	return ExtractBearerToken(r.Header.Get("Authorization"))
}

// HTTPAuthMiddleware rejects requests without a valid access token and adds
// the token's subject to the request context.
func HTTPAuthMiddleware(issuer *Issuer) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token, errMsg := RequestToken(r, AccessCookie)
			if errMsg != "" {
				writeUnauthorized(w, "Unauthorized - "+errMsg)
				return
			}

			userID, err := issuer.Verify(token, KindAccess)
			if err != nil {
				writeUnauthorized(w, "Unauthorized - invalid token")
				return
			}

			next.ServeHTTP(w, r.WithContext(WithUser(r.Context(), userID)))
		})
	}
}

func writeUnauthorized(w http.ResponseWriter, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusUnauthorized)
	_ = json.NewEncoder(w).Encode(map[string]string{"message": msg})
}
