package httpx_test

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/aussiebroadwan/iworkcore/pkg/httpx"
	"github.com/aussiebroadwan/iworkcore/pkg/jwtx"
	"github.com/stretchr/testify/require"
)

const testIssuer = "iworkcore-test"

var testSecret = []byte(strings.Repeat("s", 32))

func signToken(t *testing.T, purpose jwtx.Purpose, ttl time.Duration, now time.Time) string {
	t.Helper()
	signer, err := jwtx.NewSignerHS256("", testSecret)
	require.NoError(t, err)
	c := jwtx.NewClaims(purpose, "user-1", ttl, testIssuer, now)
	c.Role = "hr"
	tok, err := signer.Sign(c)
	require.NoError(t, err)
	return tok
}

func serveWithToken(h http.Handler, token string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestChainOrder(t *testing.T) {
	var order []string
	mw := func(name string) httpx.Middleware {
		return func(next http.Handler) http.Handler {
			return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				order = append(order, name)
				next.ServeHTTP(w, r)
			})
		}
	}

	h := httpx.Chain(okHandler, mw("first"), mw("second"), mw("third"))
	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/", nil))
	require.Equal(t, []string{"first", "second", "third"}, order)
}

func TestAuthnMiddleware(t *testing.T) {
	verifier := jwtx.NewVerifierHS256(testSecret, testIssuer, nil)

	var got httpx.Principal
	capture := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got, _ = httpx.PrincipalFromContext(r.Context())
		require.Equal(t, got.UserID, httpx.UserIDFromContext(r.Context()))
		w.WriteHeader(http.StatusOK)
	})
	h := httpx.AuthnMiddleware(verifier, nil)(capture)

	t.Run("valid access token", func(t *testing.T) {
		rec := serveWithToken(h, signToken(t, jwtx.PurposeAccess, time.Minute, time.Now()))
		require.Equal(t, http.StatusOK, rec.Code)
		require.Equal(t, "user-1", got.UserID)
		require.Equal(t, "hr", got.Role)
		require.False(t, got.EmailVerified)
	})

	t.Run("missing token", func(t *testing.T) {
		rec := serveWithToken(h, "")
		require.Equal(t, http.StatusUnauthorized, rec.Code)
		require.Contains(t, rec.Header().Get("WWW-Authenticate"), "invalid_token")
		require.Contains(t, rec.Body.String(), "You are not logged in")
	})

	t.Run("expired token", func(t *testing.T) {
		rec := serveWithToken(h, signToken(t, jwtx.PurposeAccess, time.Minute, time.Now().Add(-time.Hour)))
		require.Equal(t, http.StatusUnauthorized, rec.Code)
		require.Contains(t, rec.Body.String(), "Your token has expired")
	})

	t.Run("refresh token presented as bearer", func(t *testing.T) {
		rec := serveWithToken(h, signToken(t, jwtx.PurposeRefresh, time.Hour, time.Now()))
		require.Equal(t, http.StatusUnauthorized, rec.Code)
		require.Contains(t, rec.Body.String(), "Invalid token")
	})

	t.Run("2fa token presented as bearer", func(t *testing.T) {
		rec := serveWithToken(h, signToken(t, jwtx.PurposeTwoFactor, time.Minute, time.Now()))
		require.Equal(t, http.StatusUnauthorized, rec.Code)
	})
}

func TestAuthnMiddlewareWithLoader(t *testing.T) {
	verifier := jwtx.NewVerifierHS256(testSecret, testIssuer, nil)
	token := signToken(t, jwtx.PurposeAccess, time.Minute, time.Now())

	t.Run("loader state wins over claims", func(t *testing.T) {
		load := func(ctx context.Context, c jwtx.Claims) (httpx.Principal, error) {
			return httpx.Principal{UserID: c.Subject, Role: "staff", EmailVerified: true}, nil
		}
		var got httpx.Principal
		h := httpx.AuthnMiddleware(verifier, load)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			got, _ = httpx.PrincipalFromContext(r.Context())
		}))

		serveWithToken(h, token)
		require.Equal(t, "staff", got.Role)
		require.True(t, got.EmailVerified)
	})

	t.Run("deleted user", func(t *testing.T) {
		load := func(ctx context.Context, c jwtx.Claims) (httpx.Principal, error) {
			return httpx.Principal{}, httpx.ErrPrincipalNotFound
		}
		rec := serveWithToken(httpx.AuthnMiddleware(verifier, load)(okHandler), token)
		require.Equal(t, http.StatusUnauthorized, rec.Code)
		require.Contains(t, rec.Body.String(), "no longer exists")
	})

	t.Run("loader failure", func(t *testing.T) {
		load := func(ctx context.Context, c jwtx.Claims) (httpx.Principal, error) {
			return httpx.Principal{}, errors.New("db down")
		}
		rec := serveWithToken(httpx.AuthnMiddleware(verifier, load)(okHandler), token)
		require.Equal(t, http.StatusInternalServerError, rec.Code)
		require.NotContains(t, rec.Body.String(), "db down")
	})
}

func TestGuards(t *testing.T) {
	verifier := jwtx.NewVerifierHS256(testSecret, testIssuer, nil)
	token := signToken(t, jwtx.PurposeAccess, time.Minute, time.Now())

	withPrincipal := func(p httpx.Principal) httpx.PrincipalLoader {
		return func(ctx context.Context, c jwtx.Claims) (httpx.Principal, error) { return p, nil }
	}

	cases := []struct {
		name string
		p    httpx.Principal
		code int
		msg  string
	}{
		{"verified hr", httpx.Principal{UserID: "u", Role: "hr", EmailVerified: true}, http.StatusOK, ""},
		{"unverified hr", httpx.Principal{UserID: "u", Role: "hr"}, http.StatusForbidden, "verify your email"},
		{"verified staff", httpx.Principal{UserID: "u", Role: "staff", EmailVerified: true}, http.StatusForbidden, "permission"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			h := httpx.Chain(okHandler,
				httpx.AuthnMiddleware(verifier, withPrincipal(tc.p)),
				httpx.RequireEmailVerified(),
				httpx.RequireRole("hr"),
			)
			rec := serveWithToken(h, token)
			require.Equal(t, tc.code, rec.Code)
			if tc.msg != "" {
				require.Contains(t, rec.Body.String(), tc.msg)
			}
		})
	}

	t.Run("guard without authn", func(t *testing.T) {
		rec := httptest.NewRecorder()
		httpx.RequireRole("hr")(okHandler).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
		require.Equal(t, http.StatusForbidden, rec.Code)
	})
}
