package app

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/aussiebroadwan/iworkcore/pkg/jwtx"
	"github.com/aussiebroadwan/iworkcore/pkg/slogx"
)

const (
	testAccessSecret  = "access-secret-0123456789abcdef0123"
	testRefreshSecret = "refresh-secret-0123456789abcdef012"
)

func testConfig() Config {
	return Config{
		Issuer:           "iworkcore-test",
		Algorithm:        AlgorithmHS256,
		JWTSecret:        testAccessSecret,
		JWTRefreshSecret: testRefreshSecret,
	}
}

func roundTrip(t *testing.T, s jwtx.Signer, v jwtx.Verifier, purpose jwtx.Purpose) jwtx.Claims {
	t.Helper()
	tok, err := s.Sign(jwtx.NewClaims(purpose, "user-1", time.Minute, "iworkcore-test", time.Now()))
	require.NoError(t, err)
	claims, err := v.Verify(tok)
	require.NoError(t, err)
	require.Equal(t, "user-1", claims.Subject)
	return claims
}

func TestInitKeysHS256(t *testing.T) {
	keys, err := InitKeys(testConfig(), slogx.Discard())
	require.NoError(t, err)
	require.Nil(t, keys.KeySet)

	roundTrip(t, keys.AccessSigner, keys.AccessVerifier, jwtx.PurposeAccess)
	roundTrip(t, keys.RefreshSigner, keys.RefreshVerifier, jwtx.PurposeRefresh)

	// Access and refresh keys are not interchangeable
	tok, err := keys.AccessSigner.Sign(jwtx.NewClaims(jwtx.PurposeAccess, "user-1", time.Minute, "iworkcore-test", time.Now()))
	require.NoError(t, err)
	_, err = keys.RefreshVerifier.Verify(tok)
	require.Error(t, err)
}

func TestInitKeysEphemeralSecrets(t *testing.T) {
	cfg := testConfig()
	cfg.JWTSecret = ""
	cfg.JWTRefreshSecret = ""

	keys, err := InitKeys(cfg, slogx.Discard())
	require.NoError(t, err)
	roundTrip(t, keys.AccessSigner, keys.AccessVerifier, jwtx.PurposeAccess)

	other, err := InitKeys(cfg, slogx.Discard())
	require.NoError(t, err)
	tok, err := keys.AccessSigner.Sign(jwtx.NewClaims(jwtx.PurposeAccess, "user-1", time.Minute, "iworkcore-test", time.Now()))
	require.NoError(t, err)
	_, err = other.AccessVerifier.Verify(tok)
	require.Error(t, err, "ephemeral secrets must differ between processes")
}

func TestInitKeysRejectsSharedSecret(t *testing.T) {
	cfg := testConfig()
	cfg.JWTRefreshSecret = cfg.JWTSecret

	_, err := InitKeys(cfg, slogx.Discard())
	require.ErrorIs(t, err, errSharedSecret)
}

func TestInitKeysRejectsShortSecret(t *testing.T) {
	cfg := testConfig()
	cfg.JWTSecret = "short"

	_, err := InitKeys(cfg, slogx.Discard())
	require.ErrorContains(t, err, "JWT_SECRET")
}

func TestInitKeysEdDSA(t *testing.T) {
	cfg := testConfig()
	cfg.Algorithm = AlgorithmEdDSA
	cfg.SigningKeyFile = filepath.Join(t.TempDir(), "keys", "signing.pem")

	keys, err := InitKeys(cfg, slogx.Discard())
	require.NoError(t, err)
	require.NotNil(t, keys.KeySet)
	require.True(t, keys.KeySet.IsReady())

	jwks := keys.KeySet.PublicJWKS()
	require.Len(t, jwks.Keys, 1)
	require.Contains(t, jwks.Keys[0].Kid, "ed25519-")

	roundTrip(t, keys.AccessSigner, keys.AccessVerifier, jwtx.PurposeAccess)
	roundTrip(t, keys.RefreshSigner, keys.RefreshVerifier, jwtx.PurposeRefresh)

	info, err := os.Stat(cfg.SigningKeyFile)
	require.NoError(t, err)
	require.Equal(t, os.FileMode(0600), info.Mode().Perm())

	// A restart reuses the persisted key
	again, err := InitKeys(cfg, slogx.Discard())
	require.NoError(t, err)
	require.Equal(t, jwks.Keys[0].Kid, again.KeySet.PublicJWKS().Keys[0].Kid)

	tok, err := keys.AccessSigner.Sign(jwtx.NewClaims(jwtx.PurposeAccess, "user-1", time.Minute, "iworkcore-test", time.Now()))
	require.NoError(t, err)
	_, err = again.AccessVerifier.Verify(tok)
	require.NoError(t, err)
}
