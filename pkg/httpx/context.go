package httpx

import (
	"context"

	"github.com/aussiebroadwan/iworkcore/pkg/jwtx"
)

type ctxKey string

const (
	CtxKeyUserID    ctxKey = "user_id"
	CtxKeyClaims    ctxKey = "claims"
	CtxKeyPrincipal ctxKey = "principal"
)

// Principal is the caller identity attached to an authenticated request.
// It is built from the token claims and, when a loader is configured, from
// the current state of the account.
type Principal struct {
	UserID        string
	Role          string
	CompanyID     string
	EmailVerified bool
}

// PrincipalFromContext returns the Principal stored by AuthnMiddleware.
func PrincipalFromContext(ctx context.Context) (Principal, bool) {
	p, ok := ctx.Value(CtxKeyPrincipal).(Principal)
	return p, ok
}

// UserIDFromContext returns the authenticated subject, or "".
func UserIDFromContext(ctx context.Context) string {
	id, _ := ctx.Value(CtxKeyUserID).(string)
	return id
}

// ClaimsFromContext returns the verified access token claims.
func ClaimsFromContext(ctx context.Context) (jwtx.Claims, bool) {
	c, ok := ctx.Value(CtxKeyClaims).(jwtx.Claims)
	return c, ok
}

func contextWithAuth(ctx context.Context, c jwtx.Claims, p Principal) context.Context {
	ctx = context.WithValue(ctx, CtxKeyUserID, p.UserID)
	ctx = context.WithValue(ctx, CtxKeyClaims, c)
	ctx = context.WithValue(ctx, CtxKeyPrincipal, p)
	return ctx
}
