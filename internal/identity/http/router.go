package http

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/cors"

	"github.com/aussiebroadwan/iworkcore/internal/identity/domain"
	"github.com/aussiebroadwan/iworkcore/internal/identity/metrics"
	"github.com/aussiebroadwan/iworkcore/internal/identity/service"
	"github.com/aussiebroadwan/iworkcore/internal/identity/store"
	"github.com/aussiebroadwan/iworkcore/pkg/httpx"
	"github.com/aussiebroadwan/iworkcore/pkg/jwtx"
	"github.com/aussiebroadwan/iworkcore/pkg/slogx"
)

// Router holds shared dependencies for HTTP handlers.
type Router struct {
	Mux         *http.ServeMux
	middlewares []httpx.Middleware

	keys         *jwtx.KeySet // nil unless tokens are signed with EdDSA
	buildVersion string
	startTime    time.Time
	logger       *slog.Logger
	store        store.Store

	Tokens         *service.TokenIssuer
	Sessions       *service.SessionService
	PasswordResets *service.PasswordResetService
	Verification   *service.VerificationService
	TwoFactor      *service.TwoFactorService
	Onboarding     *service.OnboardingService
	Invitations    *service.InvitationService
	Metrics        *metrics.Metrics // Optional: /metrics is only served when set
	MailPing       Pinger           // Optional: reported by /readyz when set

	RateLimits     httpx.RateLimits
	AllowedOrigins []string
	// Dev includes internal error text in 500 responses.
	Dev bool
}

func NewRouter(
	keys *jwtx.KeySet,
	buildVersion string,
	st store.Store,
	logger *slog.Logger,
) *Router {
	r := &Router{
		Mux:          http.NewServeMux(),
		keys:         keys,
		buildVersion: buildVersion,
		startTime:    time.Now(),
		store:        st,
		logger:       logger,
		RateLimits:   httpx.DefaultRateLimits(),
	}

	// Set default middleware chain
	r.middlewares = []httpx.Middleware{
		slogx.HTTPMiddleware(r.logger),
	}

	return r
}

func (r *Router) ApplyRoutes() {
	if len(r.AllowedOrigins) > 0 {
		r.middlewares = append(r.middlewares, cors.Handler(cors.Options{
			AllowedOrigins:   r.AllowedOrigins,
			AllowedMethods:   []string{http.MethodGet, http.MethodPost, http.MethodDelete, http.MethodOptions},
			AllowedHeaders:   []string{"Authorization", "Content-Type", "X-Request-ID"},
			ExposedHeaders:   []string{"Retry-After", "X-Request-ID"},
			AllowCredentials: true,
			MaxAge:           300,
		}))
	}
	// Innermost, so the matched pattern is known when it records.
	r.middlewares = append(r.middlewares, r.Metrics.Middleware)

	r.registerAuth()
	r.registerTwoFactor()
	r.registerInvitations()
	r.registerOnboarding()
	r.registerSystem()
}

// ServeHTTP implements http.Handler for Router and applies the global middleware chain.
func (r *Router) ServeHTTP(w http.ResponseWriter, req *http.Request) {
	httpx.Chain(r.Mux, r.middlewares...).ServeHTTP(w, req)
}

// loadPrincipal resolves the bearer token subject against the store so
// tokens of deleted accounts are refused and guards see the current role
// and verification state.
func (r *Router) loadPrincipal(ctx context.Context, c jwtx.Claims) (httpx.Principal, error) {
	user, err := r.Sessions.CurrentUser(ctx, c.Subject)
	if errors.Is(err, service.ErrNotFound) {
		return httpx.Principal{}, httpx.ErrPrincipalNotFound
	}
	if err != nil {
		return httpx.Principal{}, err
	}
	return httpx.Principal{
		UserID:        user.ID,
		Role:          string(user.Role),
		CompanyID:     user.CompanyID,
		EmailVerified: user.EmailVerified,
	}, nil
}

func (r *Router) authn() httpx.Middleware {
	return httpx.AuthnMiddleware(r.Tokens.AccessVerifier, r.loadPrincipal)
}

func (r *Router) registerAuth() {
	h := &AuthHandler{
		Sessions:       r.Sessions,
		PasswordResets: r.PasswordResets,
		Verification:   r.Verification,
		errs:           errorWriter{dev: r.Dev},
	}
	limits := r.RateLimits

	// Credential endpoints - strict, keyed by IP and the submitted email where there is one
	r.Mux.Handle("POST /auth/signup",
		httpx.Chain(http.HandlerFunc(h.HandleSignUp),
			httpx.RateLimitByIP(limits.Strict),
		),
	)
	r.Mux.Handle("POST /auth/signin",
		httpx.Chain(http.HandlerFunc(h.HandleSignIn),
			httpx.RateLimitByIPAndJSONField(limits.Strict, "email"),
		),
	)
	r.Mux.Handle("POST /auth/2fa/verify",
		httpx.Chain(http.HandlerFunc(h.HandleTwoFactorSignIn),
			httpx.RateLimitByIP(limits.Strict),
		),
	)
	r.Mux.Handle("POST /auth/refresh-token",
		httpx.Chain(http.HandlerFunc(h.HandleRefresh),
			httpx.RateLimitByIP(limits.Moderate),
		),
	)

	// Session management - authenticated, by user
	r.Mux.Handle("POST /auth/logout",
		httpx.Chain(http.HandlerFunc(h.HandleLogout),
			r.authn(),
			httpx.RateLimitByUser(limits.Moderate),
		),
	)
	r.Mux.Handle("POST /auth/logout-all",
		httpx.Chain(http.HandlerFunc(h.HandleLogoutAll),
			r.authn(),
			httpx.RateLimitByUser(limits.Moderate),
		),
	)
	r.Mux.Handle("DELETE /auth/delete-account",
		httpx.Chain(http.HandlerFunc(h.HandleDeleteAccount),
			r.authn(),
			httpx.RateLimitByUser(limits.Strict),
		),
	)

	// Password recovery
	r.Mux.Handle("POST /auth/forgot-password",
		httpx.Chain(http.HandlerFunc(h.HandleForgotPassword),
			httpx.RateLimitByIPAndJSONField(limits.Strict, "email"),
		),
	)
	r.Mux.Handle("POST /auth/reset-password/{token}",
		httpx.Chain(http.HandlerFunc(h.HandleResetPassword),
			httpx.RateLimitByIP(limits.Strict),
		),
	)

	// Email verification
	r.Mux.Handle("POST /auth/send-verification-email",
		httpx.Chain(http.HandlerFunc(h.HandleSendVerification),
			r.authn(),
			httpx.RateLimitByUser(limits.Strict),
		),
	)
	r.Mux.Handle("GET /auth/verify-email/{token}",
		httpx.Chain(http.HandlerFunc(h.HandleVerifyEmail),
			httpx.RateLimitByIP(limits.Moderate),
		),
	)
	r.Mux.Handle("POST /auth/resend-verification-email",
		httpx.Chain(http.HandlerFunc(h.HandleResendVerification),
			httpx.RateLimitByIPAndJSONField(limits.Strict, "email"),
		),
	)
}

func (r *Router) registerTwoFactor() {
	h := &TwoFactorHandler{
		TwoFactor: r.TwoFactor,
		errs:      errorWriter{dev: r.Dev},
	}

	r.Mux.Handle("POST /auth/2fa/enable",
		httpx.Chain(http.HandlerFunc(h.HandleEnable),
			r.authn(),
			httpx.RateLimitByUser(r.RateLimits.Moderate),
		),
	)

	// Code checks are strict to slow down guessing
	r.Mux.Handle("POST /auth/2fa/confirm",
		httpx.Chain(http.HandlerFunc(h.HandleConfirm),
			r.authn(),
			httpx.RateLimitByUser(r.RateLimits.Strict),
		),
	)
	r.Mux.Handle("POST /auth/2fa/disable",
		httpx.Chain(http.HandlerFunc(h.HandleDisable),
			r.authn(),
			httpx.RateLimitByUser(r.RateLimits.Strict),
		),
	)
}

func (r *Router) registerInvitations() {
	h := &InvitationHandler{
		Invitations: r.Invitations,
		errs:        errorWriter{dev: r.Dev},
	}

	r.Mux.Handle("POST /auth/invitations",
		httpx.Chain(h,
			r.authn(),
			httpx.RequireEmailVerified(),
			httpx.RequireRole(string(domain.RoleHR)),
			httpx.RateLimitByUser(r.RateLimits.Moderate),
		),
	)
}

func (r *Router) registerOnboarding() {
	h := &OnboardingHandler{
		Onboarding: r.Onboarding,
		errs:       errorWriter{dev: r.Dev},
	}

	secured := func(next http.HandlerFunc) http.Handler {
		return httpx.Chain(next,
			r.authn(),
			httpx.RequireEmailVerified(),
			httpx.RequireRole(string(domain.RoleHR)),
			httpx.RateLimitByUser(r.RateLimits.Moderate),
		)
	}

	r.Mux.Handle("GET /onboarding/status", secured(h.HandleStatus))
	r.Mux.Handle("POST /onboarding/preferences", secured(h.HandlePreferences))
	r.Mux.Handle("POST /onboarding/complete", secured(h.HandleComplete))
}

func (r *Router) registerSystem() {
	// Health check endpoints - lenient rate limits (monitoring systems may poll frequently)
	r.Mux.Handle("GET /livez",
		httpx.Chain(LivezHandler(r.startTime, r.buildVersion),
			httpx.RateLimitByIP(r.RateLimits.Lenient),
		),
	)
	r.Mux.Handle("GET /readyz",
		httpx.Chain(ReadyzHandler(r.startTime, r.buildVersion, r.store, r.Tokens, r.keys, r.MailPing),
			httpx.RateLimitByIP(r.RateLimits.Lenient),
		),
	)

	if r.Metrics != nil {
		r.Mux.Handle("GET /metrics", r.Metrics.Handler())
	}

	// Only asymmetric keys can be published
	if r.keys != nil {
		r.Mux.Handle("GET /.well-known/jwks.json",
			httpx.Chain(JWKSHandler(r.keys),
				httpx.RateLimitByIP(r.RateLimits.Lenient),
			),
		)
	}
}
