package service

import (
	"testing"
	"time"

	"github.com/aussiebroadwan/iworkcore/internal/identity/domain"
	"github.com/aussiebroadwan/iworkcore/internal/identity/mail"
	"github.com/stretchr/testify/require"
)

func TestInvite(t *testing.T) {
	t.Parallel()
	ctx := testContext()
	f := newFixture(t)
	hr := f.signUp(t, "hr@acme.com")

	_, err := f.invitations.Invite(ctx, hr.User.ID, "staff@acme.com")
	require.ErrorIs(t, err, ErrNoCompany)

	company := f.completeOnboarding(t, hr.User.ID).Company

	res, err := f.invitations.Invite(ctx, hr.User.ID, " Staff@Acme.com ")
	require.NoError(t, err)
	require.Equal(t, "staff@acme.com", res.Invitation.Email)
	require.Equal(t, company.ID, res.Invitation.CompanyID)
	require.Equal(t, domain.RoleStaff, res.Invitation.Role)
	require.NotContains(t, res.Invitation.TokenHash, res.Token)
	require.True(t, res.Invitation.Redeemable("staff@acme.com", time.Now()))

	msgs := f.mailer.sent(mail.TemplateInvitation)
	require.Len(t, msgs, 1)
	require.Equal(t, "Acme", msgs[0].Data[mail.KeyCompany])
	require.Equal(t, "1 week", msgs[0].Data[mail.KeyExpires])

	t.Run("existing account", func(t *testing.T) {
		_, err := f.invitations.Invite(ctx, hr.User.ID, "hr@acme.com")
		require.ErrorIs(t, err, ErrDuplicateEmail)
	})

	t.Run("staff cannot invite", func(t *testing.T) {
		staff, err := f.sessions.SignUp(ctx, SignUpInput{
			Email: "staff@acme.com", Password: testPassword, FirstName: "S", LastName: "T", InviteToken: res.Token,
		})
		require.NoError(t, err)

		_, err = f.invitations.Invite(ctx, staff.User.ID, "friend@acme.com")
		require.ErrorIs(t, err, ErrForbidden)
	})

	t.Run("accepted invitation cannot be reused", func(t *testing.T) {
		_, err := f.sessions.SignUp(ctx, SignUpInput{
			Email: "staff@acme.com", Password: testPassword, FirstName: "S", LastName: "T", InviteToken: res.Token,
		})
		require.ErrorIs(t, err, ErrDuplicateEmail)
	})
}
