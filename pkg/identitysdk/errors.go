package identitysdk

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"sort"
	"strings"
)

// APIError is a non-2xx response from the service.
type APIError struct {
	StatusCode int
	Message    string

	// Fields holds per-field validation messages.
	Fields map[string]string
	// Invalid lists rejected setup preference values.
	Invalid []string
	// RetryAfter is set on 429 responses, in seconds as sent by the server.
	RetryAfter string
}

func (e *APIError) Error() string {
	if len(e.Fields) == 0 {
		return fmt.Sprintf("identity: %d %s", e.StatusCode, e.Message)
	}

	keys := make([]string, 0, len(e.Fields))
	for k := range e.Fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, k+": "+e.Fields[k])
	}
	return fmt.Sprintf("identity: %d %s (%s)", e.StatusCode, e.Message, strings.Join(parts, "; "))
}

// TwoFactorRequiredError is returned by SignIn for accounts with two-factor
// enabled. Pass TempToken and a TOTP code to CompleteTwoFactorSignIn.
type TwoFactorRequiredError struct {
	TempToken string
}

func (e *TwoFactorRequiredError) Error() string {
	return "identity: two-factor verification required"
}

// IsStatus reports whether err is an APIError with the given status code.
func IsStatus(err error, status int) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.StatusCode == status
}

// parseErrorResponse turns an error envelope into an APIError.
func parseErrorResponse(resp *http.Response, body []byte) error {
	apiErr := &APIError{
		StatusCode: resp.StatusCode,
		RetryAfter: resp.Header.Get("Retry-After"),
	}

	var env envelope
	if err := json.Unmarshal(body, &env); err == nil && env.Message != "" {
		apiErr.Message = env.Message
		apiErr.Fields = env.Errors
		apiErr.Invalid = env.Invalid
		return apiErr
	}

	// Fallback: plain text bodies or proxies in front of the service
	apiErr.Message = strings.TrimSpace(string(body))
	if apiErr.Message == "" {
		apiErr.Message = http.StatusText(resp.StatusCode)
	}
	return apiErr
}
