package identity_test

import (
	"context"
	"net/http"
	"testing"
	"time"

	"github.com/pquerna/otp/totp"
	"github.com/stretchr/testify/require"

	"github.com/aussiebroadwan/iworkcore/pkg/identitysdk"
)

func currentCode(t *testing.T, secret string) string {
	t.Helper()
	code, err := totp.GenerateCode(secret, time.Now())
	require.NoError(t, err)
	return code
}

func TestTwoFactorLifecycle(t *testing.T) {
	svc := setupIdentityContainer(t)
	ctx := context.Background()

	session, err := svc.client.SignUp(ctx, signUpRequest("tfa@acme.test"))
	require.NoError(t, err)

	enrollment, err := session.EnableTwoFactor(ctx)
	require.NoError(t, err)
	require.NotEmpty(t, enrollment.ManualCode)
	require.Contains(t, enrollment.QRCode, "data:image/png;base64,")

	// Pending enrollment does not change sign-in
	_, err = svc.client.SignIn(ctx, "tfa@acme.test", testPassword)
	require.NoError(t, err)

	err = session.ConfirmTwoFactor(ctx, "000000")
	require.True(t, identitysdk.IsStatus(err, http.StatusBadRequest), err)
	require.NoError(t, session.ConfirmTwoFactor(ctx, currentCode(t, enrollment.ManualCode)))

	_, err = svc.client.SignIn(ctx, "tfa@acme.test", testPassword)
	var tfa *identitysdk.TwoFactorRequiredError
	require.ErrorAs(t, err, &tfa)
	require.NotEmpty(t, tfa.TempToken)

	// The temp token is not an access token
	bogus := svc.client.NewSessionFromTokens(identitysdk.User{}, identitysdk.TokenPair{AccessToken: tfa.TempToken, ExpiresIn: 900})
	_, err = bogus.EnableTwoFactor(ctx)
	require.True(t, identitysdk.IsStatus(err, http.StatusUnauthorized), err)

	signedIn, err := svc.client.CompleteTwoFactorSignIn(ctx, tfa.TempToken, currentCode(t, enrollment.ManualCode))
	require.NoError(t, err)
	require.True(t, signedIn.User().TwoFactorEnabled)

	require.NoError(t, signedIn.DisableTwoFactor(ctx, currentCode(t, enrollment.ManualCode)))
	_, err = svc.client.SignIn(ctx, "tfa@acme.test", testPassword)
	require.NoError(t, err)
}
