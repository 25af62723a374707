package httpx

import (
	"encoding/json"
	"net/http"
)

// Response statuses carried in Envelope.Status.
const (
	StatusSuccess     = "success"
	StatusError       = "error"
	Status2FARequired = "2fa_required"
)

// Envelope is the body of every JSON response.
type Envelope struct {
	Status  string `json:"status"`
	Message string `json:"message,omitempty"`
	Data    any    `json:"data,omitempty"`

	// Errors holds field-level validation messages.
	Errors map[string]string `json:"errors,omitempty"`
	// Invalid lists rejected enum values.
	Invalid []string `json:"invalid,omitempty"`
	// TempToken is set when sign-in stops at the second factor.
	TempToken string `json:"tempToken,omitempty"`
	// Error carries the internal error text in development only.
	Error string `json:"error,omitempty"`
}

// WriteJSON writes a JSON response with the given status code.
// It automatically sets the Content-Type header and Cache-Control headers.
func WriteJSON(w http.ResponseWriter, code int, v any) {
	NoCache(w)
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

// WriteSuccess writes a success envelope.
func WriteSuccess(w http.ResponseWriter, code int, message string, data any) {
	WriteJSON(w, code, Envelope{Status: StatusSuccess, Message: message, Data: data})
}

// WriteError writes an error envelope with a caller-safe message.
func WriteError(w http.ResponseWriter, code int, message string) {
	WriteJSON(w, code, Envelope{Status: StatusError, Message: message})
}

// NoCache sets the Cache-Control and Pragma headers to prevent caching.
// This is commonly required for sensitive responses like tokens.
func NoCache(w http.ResponseWriter) {
	w.Header().Set("Cache-Control", "no-store")
	w.Header().Set("Pragma", "no-cache")
}
