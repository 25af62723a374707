package http

import (
	"encoding/json"
	"errors"
	"net/http"
	netmail "net/mail"
	"strings"
	"unicode"

	"github.com/aussiebroadwan/iworkcore/pkg/httpx"
	"github.com/aussiebroadwan/iworkcore/pkg/slogx"
)

const (
	maxBodyBytes      = 10 << 10
	minPasswordLength = 8
	passwordSpecials  = "@$!%*?&#."
)

// decodeJSON reads a JSON request body into dst. On failure it writes a 400
// and returns false.
func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		slogx.FromContext(r.Context()).Warn("failed to parse request", "err", err)

		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			httpx.WriteError(w, http.StatusRequestEntityTooLarge, "Request body too large")
			return false
		}
		httpx.WriteError(w, http.StatusBadRequest, "Invalid JSON body")
		return false
	}
	return true
}

// fieldErrors collects the first problem found for each request field.
type fieldErrors map[string]string

func (f fieldErrors) add(field, msg string) {
	if _, ok := f[field]; !ok {
		f[field] = msg
	}
}

func (f fieldErrors) required(field, value, msg string) bool {
	if strings.TrimSpace(value) == "" {
		f.add(field, msg)
		return false
	}
	return true
}

func (f fieldErrors) email(field, value string) {
	if !f.required(field, value, "Email is required") {
		return
	}
	if !validEmail(value) {
		f.add(field, "Please provide a valid email")
	}
}

func (f fieldErrors) password(field, value string) {
	if value == "" {
		f.add(field, "Password is required")
		return
	}
	if len(value) < minPasswordLength {
		f.add(field, "Password must be at least 8 characters")
		return
	}
	if !strongPassword(value) {
		f.add(field, "Password must contain at least one uppercase letter, one lowercase letter, one number, and one special character")
	}
}

func (f fieldErrors) confirm(field, value, password string) {
	if value == "" {
		f.add(field, "Please confirm your password")
		return
	}
	if value != password {
		f.add(field, "Passwords do not match")
	}
}

func (f fieldErrors) code(field, value string) {
	if !f.required(field, value, "Verification code is required") {
		return
	}
	if !sixDigits(value) {
		f.add(field, "Invalid verification code format")
	}
}

// ok writes the validation envelope when any field failed.
func (f fieldErrors) ok(w http.ResponseWriter) bool {
	if len(f) == 0 {
		return true
	}
	writeValidation(w, f)
	return false
}

func validEmail(s string) bool {
	s = strings.TrimSpace(s)
	addr, err := netmail.ParseAddress(s)
	if err != nil || addr.Address != s {
		return false
	}
	_, domain, _ := strings.Cut(s, "@")
	return strings.Contains(domain, ".") && !strings.HasSuffix(domain, ".")
}

func strongPassword(s string) bool {
	var lower, upper, digit, special bool
	for _, c := range s {
		switch {
		case unicode.IsLower(c):
			lower = true
		case unicode.IsUpper(c):
			upper = true
		case unicode.IsDigit(c):
			digit = true
		case strings.ContainsRune(passwordSpecials, c):
			special = true
		}
	}
	return lower && upper && digit && special
}

func sixDigits(s string) bool {
	if len(s) != 6 {
		return false
	}
	for _, c := range s {
		if c < '0' || c > '9' {
			return false
		}
	}
	return true
}
