package httpx

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/aussiebroadwan/iworkcore/pkg/jwtx"
	"github.com/aussiebroadwan/iworkcore/pkg/slogx"
)

// ErrPrincipalNotFound is returned by a PrincipalLoader when the token
// subject no longer exists.
var ErrPrincipalNotFound = errors.New("httpx: principal not found")

// PrincipalLoader resolves verified claims into the caller's current state.
type PrincipalLoader func(ctx context.Context, c jwtx.Claims) (Principal, error)

// AuthnMiddleware requires an "Authorization: Bearer" access token. Tokens
// minted for any other purpose are rejected. When load is nil the Principal
// is taken from the claims alone.
func AuthnMiddleware(v jwtx.Verifier, load PrincipalLoader) Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()
			log := slogx.FromContext(ctx)

			authz := r.Header.Get("Authorization")
			if authz == "" || !strings.HasPrefix(authz, "Bearer ") {
				writeBearerError(w, "missing bearer token",
					"You are not logged in. Please log in to access this resource.")
				return
			}
			raw := strings.TrimSpace(strings.TrimPrefix(authz, "Bearer"))

			claims, err := v.Verify(raw)
			if errors.Is(err, jwtx.ErrExpired) {
				writeBearerError(w, "token expired", "Your token has expired. Please log in again.")
				return
			}
			if err != nil {
				log.Warn("jwt verify failed", "err", err)
				writeBearerError(w, "token verification failed", "Invalid token. Please log in again.")
				return
			}
			if err := claims.ValidatePurpose(jwtx.PurposeAccess); err != nil {
				log.Warn("bearer token has wrong purpose", "purpose", claims.Purpose, "sub", claims.Subject)
				writeBearerError(w, "wrong token purpose", "Invalid token. Please log in again.")
				return
			}

			p := Principal{UserID: claims.Subject, Role: claims.Role, CompanyID: claims.CompanyID}
			if load != nil {
				p, err = load(ctx, claims)
				if errors.Is(err, ErrPrincipalNotFound) {
					writeBearerError(w, "unknown subject", "The user belonging to this token no longer exists.")
					return
				}
				if err != nil {
					log.Error("failed to load principal", "sub", claims.Subject, "err", err)
					WriteError(w, http.StatusInternalServerError, "Internal server error")
					return
				}
			}

			next.ServeHTTP(w, r.WithContext(contextWithAuth(ctx, claims, p)))
		})
	}
}

// RFC 6750-compliant error response for bearer auth.
func writeBearerError(w http.ResponseWriter, desc, message string) {
	w.Header().Set("WWW-Authenticate", `Bearer error="invalid_token", error_description="`+desc+`"`)
	WriteError(w, http.StatusUnauthorized, message)
}
