package http

import (
	"errors"
	"net/http"

	"github.com/aussiebroadwan/iworkcore/internal/identity/service"
	"github.com/aussiebroadwan/iworkcore/pkg/httpx"
	"github.com/aussiebroadwan/iworkcore/pkg/slogx"
)

// errorMapping translates a service error into a status and a message that
// is safe to show to the caller.
type errorMapping struct {
	err     error
	status  int
	message string
}

// defaultErrors is checked in order after any handler specific overrides.
var defaultErrors = []errorMapping{
	{service.ErrDuplicateEmail, http.StatusBadRequest, "User with this email already exists."},
	{service.ErrInvalidInvite, http.StatusBadRequest, "Invalid or expired invitation link."},
	{service.ErrInvalidCredentials, http.StatusBadRequest, "Invalid email or password"},
	{service.ErrAccountSuspended, http.StatusForbidden, "Your account has been suspended. Contact HR admin."},
	{service.ErrInvalidOrExpiredToken, http.StatusUnauthorized, "Invalid or expired token"},
	{service.ErrInvalidCode, http.StatusBadRequest, "Invalid Two-Factor Authentication code"},
	{service.ErrNotEnabled, http.StatusBadRequest, "Two-Factor Authentication is not currently enabled"},
	{service.ErrAlreadyEnabled, http.StatusBadRequest, "Two-Factor Authentication is already enabled"},
	{service.ErrNoEnrollment, http.StatusBadRequest, "No Two-Factor setup in progress"},
	{service.ErrForbidden, http.StatusForbidden, "You do not have permission to perform this action"},
	{service.ErrNotFound, http.StatusNotFound, "User not found"},
	{service.ErrAlreadyVerified, http.StatusBadRequest, "Email is already verified"},
	{service.ErrIncorrectPassword, http.StatusBadRequest, "Incorrect password"},
	{service.ErrNoCompany, http.StatusBadRequest, "No company associated with this HR account"},
}

// errorWriter renders service errors. In development the internal error
// text of unmapped failures is included in the response.
type errorWriter struct {
	dev bool
}

func (e errorWriter) write(w http.ResponseWriter, r *http.Request, err error, overrides ...errorMapping) {
	log := slogx.FromContext(r.Context())

	var verr *service.ValidationError
	if errors.As(err, &verr) {
		writeValidation(w, verr.Fields)
		return
	}

	var perr *service.InvalidPreferencesError
	if errors.As(err, &perr) {
		httpx.WriteJSON(w, http.StatusBadRequest, httpx.Envelope{
			Status:  httpx.StatusError,
			Message: "Invalid setupPreferences values",
			Invalid: perr.Invalid,
		})
		return
	}

	for _, table := range [][]errorMapping{overrides, defaultErrors} {
		for _, m := range table {
			if errors.Is(err, m.err) {
				log.Info("request rejected", "status", m.status, "reason", err.Error())
				httpx.WriteError(w, m.status, m.message)
				return
			}
		}
	}

	log.Error("request failed", "err", err)
	env := httpx.Envelope{Status: httpx.StatusError, Message: "Internal server error"}
	if e.dev {
		env.Error = err.Error()
	}
	httpx.WriteJSON(w, http.StatusInternalServerError, env)
}

func writeValidation(w http.ResponseWriter, fields map[string]string) {
	httpx.WriteJSON(w, http.StatusBadRequest, httpx.Envelope{
		Status:  httpx.StatusError,
		Message: "Validation failed",
		Errors:  fields,
	})
}
