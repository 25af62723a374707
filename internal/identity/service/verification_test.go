package service

import (
	"testing"

	"github.com/aussiebroadwan/iworkcore/internal/identity/mail"
	"github.com/stretchr/testify/require"
)

func TestEmailVerification(t *testing.T) {
	t.Parallel()
	ctx := testContext()

	t.Run("sign-up token verifies once", func(t *testing.T) {
		f := newFixture(t)
		hr := f.signUp(t, "hr@acme.com")
		token := f.mailer.lastToken(t, mail.TemplateEmailVerification)

		user, err := f.verification.Verify(ctx, token)
		require.NoError(t, err)
		require.Equal(t, hr.User.ID, user.ID)
		require.True(t, user.EmailVerified)

		stored, err := f.store.Users().GetUserByID(ctx, hr.User.ID)
		require.NoError(t, err)
		require.True(t, stored.EmailVerified)
		require.Nil(t, stored.EmailVerification)

		_, err = f.verification.Verify(ctx, token)
		require.ErrorIs(t, err, ErrInvalidOrExpiredToken)

		require.ErrorIs(t, f.verification.SendVerification(ctx, hr.User.ID), ErrAlreadyVerified)
		require.ErrorIs(t, f.verification.Resend(ctx, "hr@acme.com"), ErrAlreadyVerified)
	})

	t.Run("resend replaces the token", func(t *testing.T) {
		f := newFixture(t)
		f.signUp(t, "hr@acme.com")
		first := f.mailer.lastToken(t, mail.TemplateEmailVerification)

		require.NoError(t, f.verification.Resend(ctx, " HR@acme.com "))
		msgs := f.mailer.sent(mail.TemplateEmailVerification)
		require.Len(t, msgs, 2)
		require.Equal(t, "1 hour", msgs[1].Data[mail.KeyExpires])
		second := f.mailer.lastToken(t, mail.TemplateEmailVerification)

		_, err := f.verification.Verify(ctx, first)
		require.ErrorIs(t, err, ErrInvalidOrExpiredToken)
		_, err = f.verification.Verify(ctx, second)
		require.NoError(t, err)
	})

	t.Run("expired token", func(t *testing.T) {
		f := newFixture(t)
		hr := f.signUp(t, "hr@acme.com")
		token := f.mailer.lastToken(t, mail.TemplateEmailVerification)
		expireUserTokens(t, f.store, hr.User)

		_, err := f.verification.Verify(ctx, token)
		require.ErrorIs(t, err, ErrInvalidOrExpiredToken)
	})

	t.Run("unknown users", func(t *testing.T) {
		f := newFixture(t)
		require.ErrorIs(t, f.verification.Resend(ctx, "nobody@acme.com"), ErrNotFound)
		require.ErrorIs(t, f.verification.SendVerification(ctx, "missing"), ErrNotFound)
	})
}
