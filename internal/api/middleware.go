package api

import (
	"net/http"
	"strings"

	"github.com/example/storefront-cart/internal/session"
)

// ExtractToken pulls the bearer token from cookie or Authorization
// header.
func ExtractToken(r *http.Request) string {
	if cookie, err := r.Cookie("access_token"); err == nil {
		return cookie.Value
	}
	if authHeader := r.Header.Get("Authorization"); strings.HasPrefix(authHeader, "Bearer ") {
		return strings.TrimPrefix(authHeader, "Bearer ")
	}
	return ""
}

// SessionMiddleware attaches the session signal to the request context.
// A valid token makes the session authenticated; anything else falls
// through as a guest. Guests are first-class here, so there is no
// required-auth variant.
func SessionMiddleware(verifier *session.Verifier) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if token := ExtractToken(r); token != "" && verifier != nil {
				if s, err := verifier.Parse(token); err == nil {
					r = r.WithContext(session.NewContext(r.Context(), s))
				}
			}
			next.ServeHTTP(w, r)
		})
	}
}
