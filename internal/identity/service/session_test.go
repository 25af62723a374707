package service

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/aussiebroadwan/iworkcore/internal/identity/domain"
	"github.com/aussiebroadwan/iworkcore/internal/identity/mail"
	"github.com/aussiebroadwan/iworkcore/pkg/cryptox"
	"github.com/aussiebroadwan/iworkcore/pkg/jwtx"
	"github.com/pquerna/otp/totp"
	"github.com/stretchr/testify/require"
)

func TestSignUp(t *testing.T) {
	t.Parallel()
	ctx := testContext()

	t.Run("hr account", func(t *testing.T) {
		f := newFixture(t)
		res := f.signUp(t, "  HR@Acme.com ")

		require.Equal(t, "hr@acme.com", res.User.Email)
		require.Equal(t, domain.RoleHR, res.User.Role)
		require.Equal(t, domain.StatusActive, res.User.Status)
		require.Empty(t, res.User.CompanyID)
		require.Equal(t, TokenTypeBearer, res.Tokens.TokenType)
		require.NotEmpty(t, res.Tokens.AccessToken)
		require.NotEmpty(t, res.Tokens.RefreshToken)

		stored, err := f.store.Users().GetUserByID(ctx, res.User.ID)
		require.NoError(t, err)
		require.NotEqual(t, testPassword, stored.PasswordHash)
		require.NoError(t, cryptox.VerifyPassword(testPassword, stored.PasswordHash))
		require.False(t, stored.EmailVerified)
		require.True(t, stored.EmailVerification.Live(time.Now().Add(23*time.Hour)))

		n, err := f.store.RefreshTokens().CountRefreshTokens(ctx, res.User.ID)
		require.NoError(t, err)
		require.Equal(t, 1, n)

		require.Len(t, f.mailer.sent(mail.TemplateEmailVerification), 1)
	})

	t.Run("duplicate email", func(t *testing.T) {
		f := newFixture(t)
		f.signUp(t, "hr@acme.com")

		_, err := f.sessions.SignUp(ctx, SignUpInput{
			Email: "HR@acme.com", Password: testPassword, FirstName: "A", LastName: "B",
		})
		require.ErrorIs(t, err, ErrDuplicateEmail)
	})

	t.Run("missing fields", func(t *testing.T) {
		f := newFixture(t)
		_, err := f.sessions.SignUp(ctx, SignUpInput{Email: "a@b.com"})

		var verr *ValidationError
		require.ErrorAs(t, err, &verr)
		require.Contains(t, verr.Fields, "password")
		require.Contains(t, verr.Fields, "firstName")
	})

	t.Run("with invitation", func(t *testing.T) {
		f := newFixture(t)
		hr := f.signUp(t, "hr@acme.com")
		company := f.completeOnboarding(t, hr.User.ID).Company

		inv, err := f.invitations.Invite(ctx, hr.User.ID, "staff@acme.com")
		require.NoError(t, err)
		require.Equal(t, inv.Token, f.mailer.lastToken(t, mail.TemplateInvitation))

		res, err := f.sessions.SignUp(ctx, SignUpInput{
			Email: "staff@acme.com", Password: testPassword, FirstName: "S", LastName: "T", InviteToken: inv.Token,
		})
		require.NoError(t, err)
		require.Equal(t, domain.RoleStaff, res.User.Role)
		require.Equal(t, domain.StatusPending, res.User.Status)
		require.Equal(t, company.ID, res.User.CompanyID)

		pending, err := f.store.Invitations().ListPendingInvitations(ctx, "staff@acme.com", time.Now())
		require.NoError(t, err)
		require.Empty(t, pending)
	})

	t.Run("invitation for another email", func(t *testing.T) {
		f := newFixture(t)
		hr := f.signUp(t, "hr@acme.com")
		f.completeOnboarding(t, hr.User.ID)

		inv, err := f.invitations.Invite(ctx, hr.User.ID, "staff@acme.com")
		require.NoError(t, err)

		_, err = f.sessions.SignUp(ctx, SignUpInput{
			Email: "mallory@acme.com", Password: testPassword, FirstName: "M", LastName: "M", InviteToken: inv.Token,
		})
		require.ErrorIs(t, err, ErrInvalidInvite)

		_, err = f.store.Users().GetUserByEmail(ctx, "mallory@acme.com")
		require.Error(t, err)
	})
}

// failingSigner refuses to sign refresh tokens so sign-up must roll back.
type failingSigner struct{ jwtx.Signer }

func (failingSigner) Sign(jwtx.Claims) (string, error) { return "", errors.New("hsm offline") }

func TestSignUpRollsBackOnTokenFailure(t *testing.T) {
	t.Parallel()
	ctx := testContext()
	f := newFixture(t)
	f.tokens.RefreshSigner = failingSigner{f.tokens.RefreshSigner}

	_, err := f.sessions.SignUp(ctx, SignUpInput{
		Email: "hr@acme.com", Password: testPassword, FirstName: "A", LastName: "B",
	})
	require.Error(t, err)

	_, err = f.store.Users().GetUserByEmail(ctx, "hr@acme.com")
	require.Error(t, err, "user must be removed after a failed sign-up")
	require.Empty(t, f.mailer.sent(mail.TemplateEmailVerification))
}

func TestSignIn(t *testing.T) {
	t.Parallel()
	ctx := testContext()
	f := newFixture(t)
	hr := f.signUp(t, "hr@acme.com")

	t.Run("success", func(t *testing.T) {
		res, err := f.sessions.SignIn(ctx, " HR@acme.com", testPassword)
		require.NoError(t, err)
		require.False(t, res.TwoFactorRequired())
		require.Equal(t, hr.User.ID, res.User.ID)

		claims, err := f.tokens.AccessVerifier.Verify(res.Tokens.AccessToken)
		require.NoError(t, err)
		require.Equal(t, jwtx.PurposeAccess, claims.Purpose)
		require.Equal(t, string(domain.RoleHR), claims.Role)
	})

	t.Run("unknown email and wrong password are indistinguishable", func(t *testing.T) {
		_, errUnknown := f.sessions.SignIn(ctx, "nobody@acme.com", testPassword)
		_, errWrong := f.sessions.SignIn(ctx, "hr@acme.com", "Wrong$Pass1")

		require.ErrorIs(t, errUnknown, ErrInvalidCredentials)
		require.ErrorIs(t, errWrong, ErrInvalidCredentials)
		require.Equal(t, errUnknown.Error(), errWrong.Error())
	})

	t.Run("suspended after password check", func(t *testing.T) {
		g := newFixture(t)
		u := g.signUp(t, "sus@acme.com")
		require.NoError(t, g.store.Users().SetStatus(ctx, u.User.ID, domain.StatusSuspended))

		_, err := g.sessions.SignIn(ctx, "sus@acme.com", "wrong")
		require.ErrorIs(t, err, ErrInvalidCredentials)

		_, err = g.sessions.SignIn(ctx, "sus@acme.com", testPassword)
		require.ErrorIs(t, err, ErrAccountSuspended)
	})
}

func enableTwoFactor(t *testing.T, f *fixture, userID string) string {
	t.Helper()
	ctx := testContext()
	enrollment, err := f.twoFactor.Enable(ctx, userID)
	require.NoError(t, err)
	code, err := totp.GenerateCode(enrollment.Secret, time.Now())
	require.NoError(t, err)
	require.NoError(t, f.twoFactor.Confirm(ctx, userID, code))
	return enrollment.Secret
}

func TestTwoFactorSignIn(t *testing.T) {
	t.Parallel()
	ctx := testContext()
	f := newFixture(t)
	hr := f.signUp(t, "hr@acme.com")
	secret := enableTwoFactor(t, f, hr.User.ID)

	res, err := f.sessions.SignIn(ctx, "hr@acme.com", testPassword)
	require.NoError(t, err)
	require.True(t, res.TwoFactorRequired())
	require.Empty(t, res.Tokens.AccessToken)

	claims, err := f.tokens.AccessVerifier.Verify(res.TwoFactorToken)
	require.NoError(t, err)
	require.Equal(t, jwtx.PurposeTwoFactor, claims.Purpose)
	require.WithinDuration(t, time.Now().Add(5*time.Minute), claims.ExpiresAt.Time, 5*time.Second)

	t.Run("temp token is not a bearer token", func(t *testing.T) {
		_, err := f.sessions.Authenticate(ctx, res.TwoFactorToken)
		require.ErrorIs(t, err, ErrInvalidOrExpiredToken)
	})

	t.Run("wrong code", func(t *testing.T) {
		_, err := f.sessions.CompleteTwoFactorSignIn(ctx, res.TwoFactorToken, "000000")
		require.ErrorIs(t, err, ErrInvalidCode)
	})

	t.Run("access token is not a temp token", func(t *testing.T) {
		code, err := totp.GenerateCode(secret, time.Now())
		require.NoError(t, err)
		_, err = f.sessions.CompleteTwoFactorSignIn(ctx, hr.Tokens.AccessToken, code)
		require.ErrorIs(t, err, ErrInvalidOrExpiredToken)
	})

	t.Run("valid code", func(t *testing.T) {
		code, err := totp.GenerateCode(secret, time.Now())
		require.NoError(t, err)
		done, err := f.sessions.CompleteTwoFactorSignIn(ctx, res.TwoFactorToken, code)
		require.NoError(t, err)
		require.NotEmpty(t, done.Tokens.AccessToken)

		claims, err := f.tokens.AccessVerifier.Verify(done.Tokens.AccessToken)
		require.NoError(t, err)
		require.ElementsMatch(t, []string{jwtx.AMRPassword, jwtx.AMROTP}, claims.AMR)
	})
}

func TestRefreshAndLogout(t *testing.T) {
	t.Parallel()
	ctx := testContext()

	t.Run("refresh issues a new pair and keeps the old token", func(t *testing.T) {
		f := newFixture(t)
		hr := f.signUp(t, "hr@acme.com")

		pair, err := f.sessions.Refresh(ctx, hr.Tokens.RefreshToken)
		require.NoError(t, err)
		require.NotEqual(t, hr.Tokens.RefreshToken, pair.RefreshToken)

		_, err = f.sessions.Refresh(ctx, hr.Tokens.RefreshToken)
		require.NoError(t, err)
	})

	t.Run("rejects an access token", func(t *testing.T) {
		f := newFixture(t)
		hr := f.signUp(t, "hr@acme.com")
		_, err := f.sessions.Refresh(ctx, hr.Tokens.AccessToken)
		require.ErrorIs(t, err, ErrInvalidOrExpiredToken)
	})

	t.Run("logout revokes", func(t *testing.T) {
		f := newFixture(t)
		hr := f.signUp(t, "hr@acme.com")

		require.NoError(t, f.sessions.Logout(ctx, hr.User.ID, hr.Tokens.RefreshToken))
		require.NoError(t, f.sessions.Logout(ctx, hr.User.ID, hr.Tokens.RefreshToken))
		_, err := f.sessions.Refresh(ctx, hr.Tokens.RefreshToken)
		require.ErrorIs(t, err, ErrInvalidOrExpiredToken)
	})

	t.Run("logout all", func(t *testing.T) {
		f := newFixture(t)
		hr := f.signUp(t, "hr@acme.com")
		other, err := f.sessions.SignIn(ctx, "hr@acme.com", testPassword)
		require.NoError(t, err)

		require.NoError(t, f.sessions.LogoutAll(ctx, hr.User.ID))
		for _, tok := range []string{hr.Tokens.RefreshToken, other.Tokens.RefreshToken} {
			_, err := f.sessions.Refresh(ctx, tok)
			require.ErrorIs(t, err, ErrInvalidOrExpiredToken)
		}
	})

	t.Run("sessions are capped", func(t *testing.T) {
		f := newFixture(t)
		f.tokens.MaxRefreshTokens = 3
		hr := f.signUp(t, "hr@acme.com")

		for range 5 {
			_, err := f.sessions.SignIn(ctx, "hr@acme.com", testPassword)
			require.NoError(t, err)
		}
		n, err := f.store.RefreshTokens().CountRefreshTokens(ctx, hr.User.ID)
		require.NoError(t, err)
		require.Equal(t, 3, n)

		// The sign-up session was the oldest and has been evicted.
		_, err = f.sessions.Refresh(ctx, hr.Tokens.RefreshToken)
		require.ErrorIs(t, err, ErrInvalidOrExpiredToken)
	})

	t.Run("concurrent refresh both succeed", func(t *testing.T) {
		f := newFixture(t)
		hr := f.signUp(t, "hr@acme.com")

		var wg sync.WaitGroup
		errs := make([]error, 2)
		for i := range errs {
			wg.Add(1)
			go func() {
				defer wg.Done()
				_, errs[i] = f.sessions.Refresh(context.Background(), hr.Tokens.RefreshToken)
			}()
		}
		wg.Wait()

		require.NoError(t, errs[0])
		require.NoError(t, errs[1])
		n, err := f.store.RefreshTokens().CountRefreshTokens(ctx, hr.User.ID)
		require.NoError(t, err)
		require.Equal(t, 3, n)
	})
}

func TestDeleteAccount(t *testing.T) {
	t.Parallel()
	ctx := testContext()
	f := newFixture(t)
	hr := f.signUp(t, "hr@acme.com")

	require.ErrorIs(t, f.sessions.DeleteAccount(ctx, hr.User.ID, "wrong"), ErrIncorrectPassword)
	require.ErrorIs(t, f.sessions.DeleteAccount(ctx, "missing", testPassword), ErrNotFound)

	require.NoError(t, f.sessions.DeleteAccount(ctx, hr.User.ID, testPassword))

	_, err := f.sessions.Authenticate(ctx, hr.Tokens.AccessToken)
	require.ErrorIs(t, err, ErrNotFound)
	_, err = f.sessions.Refresh(ctx, hr.Tokens.RefreshToken)
	require.ErrorIs(t, err, ErrInvalidOrExpiredToken)
}

func TestAuthenticate(t *testing.T) {
	t.Parallel()
	ctx := testContext()
	f := newFixture(t)
	hr := f.signUp(t, "hr@acme.com")

	u, err := f.sessions.Authenticate(ctx, hr.Tokens.AccessToken)
	require.NoError(t, err)
	require.Equal(t, hr.User.ID, u.ID)

	_, err = f.sessions.Authenticate(ctx, hr.Tokens.RefreshToken)
	require.ErrorIs(t, err, ErrInvalidOrExpiredToken)
	_, err = f.sessions.Authenticate(ctx, "garbage")
	require.ErrorIs(t, err, ErrInvalidOrExpiredToken)
}
