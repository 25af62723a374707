/*
Package identitysdk is a Go client for the iWorkCore identity service.

# SDKClient vs Session

SDKClient covers the public endpoints: sign-up, sign-in, password recovery,
email verification and health. Signing in returns a Session, which carries
the token pair and refreshes the access token on its own before it expires:

	client := identitysdk.NewSDKClient("https://identity.example.com")

	session, err := client.SignIn(ctx, "ada@example.com", password)
	var tfa *identitysdk.TwoFactorRequiredError
	if errors.As(err, &tfa) {
		session, err = client.CompleteTwoFactorSignIn(ctx, tfa.TempToken, code)
	}

	status, err := session.OnboardingStatus(ctx)

# Errors

Failed requests return *APIError with the HTTP status, the server message
and, for validation failures, the per-field messages. Accounts with
two-factor enabled answer SignIn with *TwoFactorRequiredError.

# Thread Safety

Sessions are safe for concurrent use. Concurrent requests that find the
access token expired trigger a single refresh.
*/
package identitysdk
