package identitysdk

import (
	"context"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/aussiebroadwan/iworkcore/pkg/httpx"
)

// SDKClient is a client for the iWorkCore identity service.
// It provides access to unauthenticated operations and creates Sessions.
type SDKClient struct {
	BaseURL    string
	HTTPClient *http.Client
}

// NewSDKClient creates a new identity service client.
func NewSDKClient(baseURL string) *SDKClient {
	return &SDKClient{
		BaseURL: strings.TrimSuffix(baseURL, "/"),
		HTTPClient: &http.Client{
			Timeout: 10 * time.Second,
		},
	}
}

// SignUp registers an account and returns its first session.
func (c *SDKClient) SignUp(ctx context.Context, req SignUpRequest) (*Session, error) {
	var data authData
	if _, err := c.call(ctx, http.MethodPost, "/auth/signup", "", req, http.StatusCreated, &data); err != nil {
		return nil, err
	}
	return newSession(c, data.User, data.TokenPair), nil
}

// SignIn exchanges credentials for a session. Accounts with two-factor
// enabled get a *TwoFactorRequiredError instead.
func (c *SDKClient) SignIn(ctx context.Context, email, password string) (*Session, error) {
	body := map[string]string{"email": email, "password": password}

	var data authData
	env, err := c.call(ctx, http.MethodPost, "/auth/signin", "", body, http.StatusOK, &data)
	if err != nil {
		return nil, err
	}
	if env.Status == httpx.Status2FARequired {
		return nil, &TwoFactorRequiredError{TempToken: env.TempToken}
	}
	return newSession(c, data.User, data.TokenPair), nil
}

// CompleteTwoFactorSignIn finishes a sign-in that returned
// TwoFactorRequiredError.
func (c *SDKClient) CompleteTwoFactorSignIn(ctx context.Context, tempToken, code string) (*Session, error) {
	body := map[string]string{"tempToken": tempToken, "code": code}

	var data authData
	if _, err := c.call(ctx, http.MethodPost, "/auth/2fa/verify", "", body, http.StatusOK, &data); err != nil {
		return nil, err
	}
	return newSession(c, data.User, data.TokenPair), nil
}

// Refresh exchanges a refresh token for a new pair.
func (c *SDKClient) Refresh(ctx context.Context, refreshToken string) (*TokenPair, error) {
	body := map[string]string{"refreshToken": refreshToken}

	var pair TokenPair
	if _, err := c.call(ctx, http.MethodPost, "/auth/refresh-token", "", body, http.StatusOK, &pair); err != nil {
		return nil, err
	}
	return &pair, nil
}

// ForgotPassword emails a reset link to the account.
func (c *SDKClient) ForgotPassword(ctx context.Context, email string) error {
	_, err := c.call(ctx, http.MethodPost, "/auth/forgot-password", "", map[string]string{"email": email}, http.StatusOK, nil)
	return err
}

// ResetPassword sets a new password with the emailed token and returns a
// fresh session.
func (c *SDKClient) ResetPassword(ctx context.Context, token, password string) (*Session, error) {
	body := map[string]string{"password": password, "confirmPassword": password}

	var data authData
	if _, err := c.call(ctx, http.MethodPost, "/auth/reset-password/"+url.PathEscape(token), "", body, http.StatusOK, &data); err != nil {
		return nil, err
	}
	return newSession(c, data.User, data.TokenPair), nil
}

// VerifyEmail consumes the emailed verification token.
func (c *SDKClient) VerifyEmail(ctx context.Context, token string) (*User, error) {
	var data struct {
		User User `json:"user"`
	}
	if _, err := c.call(ctx, http.MethodGet, "/auth/verify-email/"+url.PathEscape(token), "", nil, http.StatusOK, &data); err != nil {
		return nil, err
	}
	return &data.User, nil
}

// ResendVerification sends a new verification email without signing in.
func (c *SDKClient) ResendVerification(ctx context.Context, email string) error {
	_, err := c.call(ctx, http.MethodPost, "/auth/resend-verification-email", "", map[string]string{"email": email}, http.StatusOK, nil)
	return err
}

// NewSessionFromTokens creates a session from a stored token pair. The
// session still refreshes when the access token expires.
func (c *SDKClient) NewSessionFromTokens(user User, pair TokenPair) *Session {
	return newSession(c, user, pair)
}
