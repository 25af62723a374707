package identity_test

import (
	"context"
	"net/http"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/aussiebroadwan/iworkcore/pkg/identitysdk"
)

func TestSignInRefreshAndLogout(t *testing.T) {
	svc := setupIdentityContainer(t)
	ctx := context.Background()

	_, err := svc.client.SignUp(ctx, signUpRequest("ada@acme.test"))
	require.NoError(t, err)

	_, err = svc.client.SignIn(ctx, "ada@acme.test", "Wr0ng$ecret")
	require.True(t, identitysdk.IsStatus(err, http.StatusBadRequest), err)

	laptop, err := svc.client.SignIn(ctx, "ada@acme.test", testPassword)
	require.NoError(t, err)
	phone, err := svc.client.SignIn(ctx, "ADA@acme.test", testPassword)
	require.NoError(t, err)

	before := laptop.RefreshToken()
	require.NoError(t, laptop.Refresh(ctx))
	require.NotEqual(t, before, laptop.RefreshToken())

	// Logout revokes only this device
	stale := laptop.RefreshToken()
	require.NoError(t, laptop.Logout(ctx))
	_, err = svc.client.Refresh(ctx, stale)
	require.True(t, identitysdk.IsStatus(err, http.StatusUnauthorized), err)

	require.NoError(t, phone.Refresh(ctx))

	// LogoutAll revokes every device
	other, err := svc.client.SignIn(ctx, "ada@acme.test", testPassword)
	require.NoError(t, err)
	require.NoError(t, phone.LogoutAll(ctx))
	_, err = svc.client.Refresh(ctx, other.RefreshToken())
	require.True(t, identitysdk.IsStatus(err, http.StatusUnauthorized), err)
}

func TestPasswordReset(t *testing.T) {
	svc := setupIdentityContainer(t)
	ctx := context.Background()

	_, err := svc.client.SignUp(ctx, signUpRequest("reset@acme.test"))
	require.NoError(t, err)

	err = svc.client.ForgotPassword(ctx, "nobody@acme.test")
	require.True(t, identitysdk.IsStatus(err, http.StatusNotFound), err)

	require.NoError(t, svc.client.ForgotPassword(ctx, "reset@acme.test"))
	token := svc.emailedToken(t, "password_reset", "reset@acme.test")

	const newPassword = "An0ther$ecret"
	session, err := svc.client.ResetPassword(ctx, token, newPassword)
	require.NoError(t, err)
	require.NotEmpty(t, session.AccessToken())

	// Reset tokens are single use
	_, err = svc.client.ResetPassword(ctx, token, newPassword)
	require.True(t, identitysdk.IsStatus(err, http.StatusBadRequest), err)

	_, err = svc.client.SignIn(ctx, "reset@acme.test", testPassword)
	require.Error(t, err)
	_, err = svc.client.SignIn(ctx, "reset@acme.test", newPassword)
	require.NoError(t, err)
}

func TestDeleteAccount(t *testing.T) {
	svc := setupIdentityContainer(t)
	ctx := context.Background()

	session, err := svc.client.SignUp(ctx, signUpRequest("gone@acme.test"))
	require.NoError(t, err)
	access := session.AccessToken()

	err = session.DeleteAccount(ctx, "Wr0ng$ecret")
	require.True(t, identitysdk.IsStatus(err, http.StatusBadRequest), err)

	require.NoError(t, session.DeleteAccount(ctx, testPassword))

	// The old access token no longer resolves to a user
	stale := svc.client.NewSessionFromTokens(identitysdk.User{}, identitysdk.TokenPair{AccessToken: access, ExpiresIn: 900})
	err = stale.SendVerificationEmail(ctx)
	require.True(t, identitysdk.IsStatus(err, http.StatusUnauthorized), err)

	// The address can be registered again
	_, err = svc.client.SignUp(ctx, signUpRequest("gone@acme.test"))
	require.NoError(t, err)
}
