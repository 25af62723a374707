package http

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/aussiebroadwan/iworkcore/internal/identity/domain"
	"github.com/aussiebroadwan/iworkcore/internal/identity/service"
	"github.com/aussiebroadwan/iworkcore/pkg/httpx"
)

// OnboardingHandler drives the company onboarding of an HR user.
type OnboardingHandler struct {
	Onboarding *service.OnboardingService

	errs errorWriter
}

var companyNotFound = errorMapping{service.ErrNotFound, http.StatusNotFound, "Company not found"}

// HandleStatus handles GET /onboarding/status.
func (h *OnboardingHandler) HandleStatus(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	status, err := h.Onboarding.Status(ctx, httpx.UserIDFromContext(ctx))
	if err != nil {
		h.errs.write(w, r, err, companyNotFound)
		return
	}
	httpx.WriteSuccess(w, http.StatusOK, "", status)
}

type preferencesRequest struct {
	SetupPreferences json.RawMessage `json:"setupPreferences"`
}

type preferencesData struct {
	CompanyID        string                   `json:"companyId"`
	SetupPreferences []domain.SetupPreference `json:"setupPreferences"`
	OnboardingStep   int                      `json:"onboardingStep"`
}

// HandlePreferences handles POST /onboarding/preferences.
func (h *OnboardingHandler) HandlePreferences(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req preferencesRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	selections, ok := parseSelections(req.SetupPreferences)
	if !ok {
		httpx.WriteError(w, http.StatusBadRequest, "setupPreferences must be an array")
		return
	}

	status, err := h.Onboarding.SetPreferences(ctx, httpx.UserIDFromContext(ctx), selections)
	if err != nil {
		h.errs.write(w, r, err,
			companyNotFound,
			errorMapping{service.ErrNoCompany, http.StatusBadRequest, "Complete company creation first"},
			errorMapping{service.ErrForbidden, http.StatusForbidden, "You are not allowed to update this company"},
		)
		return
	}

	httpx.WriteSuccess(w, http.StatusOK, "Preferences saved", preferencesData{
		CompanyID:        status.CompanyID,
		SetupPreferences: status.SetupPreferences,
		OnboardingStep:   status.OnboardingStep,
	})
}

// parseSelections accepts a JSON array. Elements that are not strings are
// passed on in their JSON form so they are reported as invalid values.
func parseSelections(raw json.RawMessage) ([]string, bool) {
	var items []json.RawMessage
	if len(raw) == 0 || json.Unmarshal(raw, &items) != nil || items == nil {
		return nil, false
	}
	out := make([]string, 0, len(items))
	for _, item := range items {
		var s string
		if err := json.Unmarshal(item, &s); err != nil {
			s = string(item)
		}
		out = append(out, s)
	}
	return out, true
}

type completedCompany struct {
	ID                  string                   `json:"id"`
	CompanyName         string                   `json:"companyName"`
	OnboardingCompleted bool                     `json:"onboardingCompleted"`
	OnboardingStep      int                      `json:"onboardingStep"`
	SetupPreferences    []domain.SetupPreference `json:"setupPreferences"`
}

type completedUser struct {
	ID        string        `json:"id"`
	Onboarded bool          `json:"onboarded"`
	Status    domain.Status `json:"status"`
}

// HandleComplete handles POST /onboarding/complete.
func (h *OnboardingHandler) HandleComplete(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var profile domain.CompanyProfile
	if !decodeJSON(w, r, &profile) {
		return
	}
	if strings.TrimSpace(profile.Name) == "" || strings.TrimSpace(profile.Email) == "" {
		httpx.WriteError(w, http.StatusBadRequest, "companyName and companyEmail are required")
		return
	}

	res, err := h.Onboarding.Complete(ctx, httpx.UserIDFromContext(ctx), profile)
	if err != nil {
		h.errs.write(w, r, err,
			companyNotFound,
			errorMapping{service.ErrForbidden, http.StatusForbidden, "You are not allowed to update this company"},
		)
		return
	}

	status := res.Company.Status()
	httpx.WriteSuccess(w, http.StatusOK, "Onboarding completed. You can now launch your dashboard.", map[string]any{
		"company": completedCompany{
			ID:                  status.CompanyID,
			CompanyName:         status.CompanyName,
			OnboardingCompleted: status.OnboardingCompleted,
			OnboardingStep:      status.OnboardingStep,
			SetupPreferences:    status.SetupPreferences,
		},
		"user": completedUser{
			ID:        res.User.ID,
			Onboarded: res.User.Onboarded,
			Status:    res.User.Status,
		},
	})
}
