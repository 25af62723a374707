package httpx

import (
	"net/http"
	"slices"
)

// RequireRole lets the request through when the caller holds one of roles.
// It must run after AuthnMiddleware.
func RequireRole(roles ...string) Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			p, ok := PrincipalFromContext(r.Context())
			if !ok || !slices.Contains(roles, p.Role) {
				WriteError(w, http.StatusForbidden, "You do not have permission to perform this action")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// RequireEmailVerified rejects callers whose email address is unverified.
func RequireEmailVerified() Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			p, ok := PrincipalFromContext(r.Context())
			if !ok || !p.EmailVerified {
				WriteError(w, http.StatusForbidden, "Please verify your email to access this resource.")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
