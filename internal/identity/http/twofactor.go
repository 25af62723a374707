package http

import (
	"net/http"

	"github.com/aussiebroadwan/iworkcore/internal/identity/service"
	"github.com/aussiebroadwan/iworkcore/pkg/httpx"
	"github.com/aussiebroadwan/iworkcore/pkg/slogx"
)

// TwoFactorHandler manages TOTP enrollment of the signed-in user.
type TwoFactorHandler struct {
	TwoFactor *service.TwoFactorService

	errs errorWriter
}

type codeRequest struct {
	Code string `json:"code"`
}

// HandleEnable handles POST /auth/2fa/enable. The returned secret stays
// pending until confirmed with a code.
func (h *TwoFactorHandler) HandleEnable(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	enrollment, err := h.TwoFactor.Enable(ctx, httpx.UserIDFromContext(ctx))
	if err != nil {
		h.errs.write(w, r, err)
		return
	}

	httpx.WriteSuccess(w, http.StatusOK, "Scan the QR code to set up Two-Factor Authentication", enrollment)
}

// HandleConfirm handles POST /auth/2fa/confirm.
func (h *TwoFactorHandler) HandleConfirm(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	log := slogx.FromContext(ctx)

	var req codeRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	fe := fieldErrors{}
	fe.code("code", req.Code)
	if !fe.ok(w) {
		return
	}

	userID := httpx.UserIDFromContext(ctx)
	if err := h.TwoFactor.Confirm(ctx, userID, req.Code); err != nil {
		h.errs.write(w, r, err,
			errorMapping{service.ErrInvalidCode, http.StatusBadRequest, "Invalid or expired Two-Factor Authentication code"},
		)
		return
	}

	log.Info("two-factor enabled", "user_id", userID)
	httpx.WriteSuccess(w, http.StatusOK, "Two-Factor Authentication enabled successfully", nil)
}

// HandleDisable handles POST /auth/2fa/disable. It requires a current code.
func (h *TwoFactorHandler) HandleDisable(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	log := slogx.FromContext(ctx)

	var req codeRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	fe := fieldErrors{}
	fe.code("code", req.Code)
	if !fe.ok(w) {
		return
	}

	userID := httpx.UserIDFromContext(ctx)
	if err := h.TwoFactor.Disable(ctx, userID, req.Code); err != nil {
		h.errs.write(w, r, err)
		return
	}

	log.Info("two-factor disabled", "user_id", userID)
	httpx.WriteSuccess(w, http.StatusOK, "Two-Factor Authentication disabled successfully", nil)
}
