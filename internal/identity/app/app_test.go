package app

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestNewWiresApplication(t *testing.T) {
	dir := t.TempDir()
	t.Setenv("IDENTITY_DATABASE_FILE", filepath.Join(dir, "identity.db"))
	t.Setenv("IDENTITY_PEPPER_FILE", filepath.Join(dir, "pepper"))
	t.Setenv("JWT_ALGORITHM", AlgorithmEdDSA)
	t.Setenv("JWT_SIGNING_KEY_FILE", filepath.Join(dir, "signing.pem"))
	t.Setenv("LOG_LEVEL", "error")

	cfg, err := LoadConfig()
	require.NoError(t, err)

	application, err := New(cfg)
	require.NoError(t, err)
	require.NotNil(t, application.metrics)
	require.Nil(t, application.mailPing, "in-process dispatcher has nothing to ping")

	application.housekeepingService.Start()
	application.mail.Start()

	rec := httptest.NewRecorder()
	application.router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/readyz", nil))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	rec = httptest.NewRecorder()
	application.router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/.well-known/jwks.json", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	var jwks struct {
		Keys []map[string]any `json:"keys"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &jwks))
	require.Len(t, jwks.Keys, 1)

	require.NoError(t, application.Shutdown())
}

func TestNewFailsOnUnusableDatabase(t *testing.T) {
	dir := t.TempDir()
	t.Setenv("IDENTITY_DATABASE_FILE", filepath.Join(dir, "missing", "dir", "identity.db"))
	t.Setenv("IDENTITY_PEPPER_FILE", filepath.Join(dir, "pepper"))
	t.Setenv("LOG_LEVEL", "error")

	cfg, err := LoadConfig()
	require.NoError(t, err)

	_, err = New(cfg)
	require.Error(t, err)
}
