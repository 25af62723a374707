package http

import (
	"net/http"
	"time"

	"github.com/aussiebroadwan/iworkcore/internal/identity/domain"
	"github.com/aussiebroadwan/iworkcore/internal/identity/service"
	"github.com/aussiebroadwan/iworkcore/pkg/httpx"
)

type InvitationHandler struct {
	Invitations *service.InvitationService

	errs errorWriter
}

type invitationData struct {
	ID          string                  `json:"id"`
	Email       string                  `json:"email"`
	CompanyID   string                  `json:"companyId"`
	Role        domain.Role             `json:"role"`
	Status      domain.InvitationStatus `json:"status"`
	ExpiresAt   time.Time               `json:"expiresAt"`
	InviteToken string                  `json:"inviteToken"`
}

// ServeHTTP handles POST /auth/invitations. The token is shown once; only
// its hash is stored.
func (h *InvitationHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req emailRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	fe := fieldErrors{}
	fe.email("email", req.Email)
	if !fe.ok(w) {
		return
	}

	res, err := h.Invitations.Invite(ctx, httpx.UserIDFromContext(ctx), req.Email)
	if err != nil {
		h.errs.write(w, r, err,
			errorMapping{service.ErrDuplicateEmail, http.StatusBadRequest, "A user with this email already exists."},
			errorMapping{service.ErrNoCompany, http.StatusBadRequest, "Complete company creation first"},
			companyNotFound,
		)
		return
	}

	inv := res.Invitation
	httpx.WriteSuccess(w, http.StatusCreated, "Invitation sent", invitationData{
		ID:          inv.ID,
		Email:       inv.Email,
		CompanyID:   inv.CompanyID,
		Role:        inv.Role,
		Status:      inv.Status,
		ExpiresAt:   inv.ExpiresAt,
		InviteToken: res.Token,
	})
}
