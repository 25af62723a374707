package service

import (
	"errors"
	"maps"
	"slices"
	"strings"
)

var (
	ErrValidationFailed      = errors.New("validation failed")
	ErrDuplicateEmail        = errors.New("email already in use")
	ErrInvalidCredentials    = errors.New("invalid email or password")
	ErrAccountSuspended      = errors.New("account suspended")
	ErrInvalidOrExpiredToken = errors.New("invalid or expired token")
	ErrInvalidCode           = errors.New("invalid two-factor code")
	ErrNotEnabled            = errors.New("two-factor authentication not enabled")
	ErrAlreadyEnabled        = errors.New("two-factor authentication already enabled")
	ErrNoEnrollment          = errors.New("no two-factor enrollment in progress")
	ErrForbidden             = errors.New("forbidden")
	ErrNotFound              = errors.New("not found")
	ErrInvalidInvite         = errors.New("invalid or expired invitation")
	ErrAlreadyVerified       = errors.New("email already verified")
	ErrIncorrectPassword     = errors.New("incorrect password")
	ErrNoCompany             = errors.New("no company associated with user")
	ErrInvalidPreferences    = errors.New("invalid setup preferences")
)

// ValidationError carries per-field messages. It matches ErrValidationFailed.
type ValidationError struct {
	Fields map[string]string
}

func (e *ValidationError) Error() string {
	keys := slices.Sorted(maps.Keys(e.Fields))
	return "validation failed: " + strings.Join(keys, ", ")
}

func (e *ValidationError) Is(target error) bool { return target == ErrValidationFailed }

// InvalidPreferencesError lists the setup preference values that were not
// recognized. It matches ErrInvalidPreferences.
type InvalidPreferencesError struct {
	Invalid []string
}

func (e *InvalidPreferencesError) Error() string {
	return "invalid setup preferences: " + strings.Join(e.Invalid, ", ")
}

func (e *InvalidPreferencesError) Is(target error) bool { return target == ErrInvalidPreferences }

// requireFields builds a ValidationError for the named fields that are blank.
// It returns nil when every field is present.
func requireFields(fields map[string]string) error {
	missing := map[string]string{}
	for name, value := range fields {
		if strings.TrimSpace(value) == "" {
			missing[name] = name + " is required"
		}
	}
	if len(missing) == 0 {
		return nil
	}
	return &ValidationError{Fields: missing}
}
