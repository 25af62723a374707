package jwtx_test

import (
	"strings"
	"testing"
	"time"

	"github.com/aussiebroadwan/iworkcore/pkg/jwtx"
	"github.com/stretchr/testify/require"
)

var (
	accessSecret  = []byte(strings.Repeat("a", 32))
	refreshSecret = []byte(strings.Repeat("r", 32))
)

func TestHS256SignAndVerify(t *testing.T) {
	signer, err := jwtx.NewSignerHS256("", accessSecret)
	require.NoError(t, err)
	require.Equal(t, "HS256", signer.Alg())

	claims := jwtx.NewClaims(jwtx.PurposeAccess, "user-1", time.Minute, exampleIssuer, time.Now())
	claims.Role = "hr"
	claims.CompanyID = "company-1"
	claims.AMR = []string{jwtx.AMRPassword}

	token, err := signer.Sign(claims)
	require.NoError(t, err)

	got, err := jwtx.NewVerifierHS256(accessSecret, exampleIssuer, nil).Verify(token)
	require.NoError(t, err)
	require.Equal(t, "user-1", got.Subject)
	require.Equal(t, jwtx.PurposeAccess, got.Purpose)
	require.Equal(t, "hr", got.Role)
	require.Equal(t, "company-1", got.CompanyID)
	require.Equal(t, claims.ID, got.ID)
}

func TestHS256VerifyFailures(t *testing.T) {
	signer, err := jwtx.NewSignerHS256("", accessSecret)
	require.NoError(t, err)

	valid, err := signer.Sign(jwtx.NewClaims(jwtx.PurposeRefresh, "user-1", time.Minute, exampleIssuer, time.Now()))
	require.NoError(t, err)

	expired, err := signer.Sign(jwtx.NewClaims(jwtx.PurposeRefresh, "user-1", time.Minute, exampleIssuer, time.Now().Add(-time.Hour)))
	require.NoError(t, err)

	t.Run("other secret", func(t *testing.T) {
		_, err := jwtx.NewVerifierHS256(refreshSecret, exampleIssuer, nil).Verify(valid)
		require.ErrorIs(t, err, jwtx.ErrInvalidSig)
	})

	t.Run("expired", func(t *testing.T) {
		_, err := jwtx.NewVerifierHS256(accessSecret, exampleIssuer, nil).Verify(expired)
		require.ErrorIs(t, err, jwtx.ErrExpired)
	})

	t.Run("wrong issuer", func(t *testing.T) {
		_, err := jwtx.NewVerifierHS256(accessSecret, "someone-else", nil).Verify(valid)
		require.ErrorIs(t, err, jwtx.ErrIssuer)
	})

	t.Run("garbage", func(t *testing.T) {
		_, err := jwtx.NewVerifierHS256(accessSecret, exampleIssuer, nil).Verify("not.a.jwt")
		require.Error(t, err)
	})

	t.Run("tampered payload", func(t *testing.T) {
		parts := strings.Split(valid, ".")
		require.Len(t, parts, 3)
		tampered := parts[0] + "." + parts[1] + "x." + parts[2]
		_, err := jwtx.NewVerifierHS256(accessSecret, exampleIssuer, nil).Verify(tampered)
		require.Error(t, err)
	})
}

func TestHS256RejectsShortSecret(t *testing.T) {
	_, err := jwtx.NewSignerHS256("", []byte("short"))
	require.Error(t, err)

	_, err = jwtx.NewSignerHS256("", nil)
	require.Error(t, err)
}

func TestHS256RejectsEdDSAToken(t *testing.T) {
	signer := newEdDSASigner(t, "k1")
	token, err := signer.Sign(jwtx.NewClaims(jwtx.PurposeAccess, "user-1", time.Minute, exampleIssuer, time.Now()))
	require.NoError(t, err)

	_, err = jwtx.NewVerifierHS256(accessSecret, exampleIssuer, nil).Verify(token)
	require.Error(t, err)
}
