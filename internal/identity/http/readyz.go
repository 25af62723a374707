package http

import (
	"context"
	"net/http"
	"time"

	"github.com/aussiebroadwan/iworkcore/internal/identity/service"
	"github.com/aussiebroadwan/iworkcore/internal/identity/store"
	"github.com/aussiebroadwan/iworkcore/pkg/httpx"
	"github.com/aussiebroadwan/iworkcore/pkg/jwtx"
)

// Pinger checks an optional dependency, such as the mail queue.
type Pinger func(ctx context.Context) error

// ReadyzHandler answers 503 when the database, the token signers or the
// mail queue (when mailPing is set) are unavailable.
func ReadyzHandler(
	startTime time.Time,
	version string,
	st store.Store,
	tokens *service.TokenIssuer,
	keys *jwtx.KeySet,
	mailPing Pinger,
) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		checks := &HealthChecks{
			Database: "ok",
			Signer:   "ok",
		}
		overallStatus := "ok"
		statusCode := http.StatusOK

		degrade := func(field *string, msg string) {
			*field = "error: " + msg
			overallStatus = "degraded"
			statusCode = http.StatusServiceUnavailable
		}

		if err := st.Ping(r.Context()); err != nil {
			degrade(&checks.Database, err.Error())
		}

		switch {
		case tokens == nil || tokens.AccessSigner == nil || tokens.RefreshSigner == nil:
			degrade(&checks.Signer, "signers not configured")
		case keys != nil && !keys.IsReady():
			degrade(&checks.Signer, "no keys loaded")
		}

		if mailPing != nil {
			checks.Mail = "ok"
			if err := mailPing(r.Context()); err != nil {
				degrade(&checks.Mail, err.Error())
			}
		}

		httpx.WriteJSON(w, statusCode, HealthResponse{
			Status:  overallStatus,
			Uptime:  time.Since(startTime).String(),
			Version: version,
			Checks:  checks,
		})
	}
}
