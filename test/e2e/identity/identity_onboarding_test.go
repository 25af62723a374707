package identity_test

import (
	"context"
	"net/http"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/aussiebroadwan/iworkcore/pkg/identitysdk"
)

// TestHROnboardingAndInvitation walks an HR admin from sign-up through
// company setup, then signs up the invited staff member.
func TestHROnboardingAndInvitation(t *testing.T) {
	svc := setupIdentityContainer(t)
	ctx := context.Background()

	hr := svc.verifiedHR(t, "hr@acme.test")

	status, err := hr.OnboardingStatus(ctx)
	require.NoError(t, err)
	require.False(t, status.OnboardingCompleted)
	require.Empty(t, status.CompanyID)

	// An unknown preference is rejected with the offending values listed
	_, err = hr.SavePreferences(ctx, []string{"onboarding_hires", "world_domination"})
	var apiErr *identitysdk.APIError
	require.ErrorAs(t, err, &apiErr)
	require.Equal(t, http.StatusBadRequest, apiErr.StatusCode)
	require.Equal(t, []string{"world_domination"}, apiErr.Invalid)

	saved, err := hr.SavePreferences(ctx, []string{"onboarding_hires", "setting_up_payroll"})
	require.NoError(t, err)
	require.NotEmpty(t, saved.CompanyID)

	done, err := hr.CompleteOnboarding(ctx, identitysdk.CompanyProfile{
		Name:          "Acme Pty Ltd",
		Email:         "people@acme.test",
		Industry:      "Manufacturing",
		EmployeeCount: 42,
	})
	require.NoError(t, err)
	require.True(t, done.Company.OnboardingCompleted)
	require.Equal(t, saved.CompanyID, done.Company.ID)
	require.True(t, done.User.Onboarded)
	require.Equal(t, "active", done.User.Status)

	inv, err := hr.Invite(ctx, "staff@acme.test")
	require.NoError(t, err)
	require.Equal(t, saved.CompanyID, inv.CompanyID)
	require.Equal(t, "staff", inv.Role)
	require.Equal(t, inv.InviteToken, svc.emailedToken(t, "invitation", "staff@acme.test"))

	req := signUpRequest("staff@acme.test")
	req.InviteToken = inv.InviteToken
	staff, err := svc.client.SignUp(ctx, req)
	require.NoError(t, err)
	require.Equal(t, "staff", staff.User().Role)
	require.Equal(t, saved.CompanyID, staff.User().CompanyID)

	// The invitation is single use
	req.Email = "second@acme.test"
	_, err = svc.client.SignUp(ctx, req)
	require.True(t, identitysdk.IsStatus(err, http.StatusBadRequest), err)

	// Staff cannot reach the HR endpoints
	_, err = staff.OnboardingStatus(ctx)
	require.True(t, identitysdk.IsStatus(err, http.StatusForbidden), err)
}

func TestUnverifiedHRCannotOnboard(t *testing.T) {
	svc := setupIdentityContainer(t)
	ctx := context.Background()

	hr, err := svc.client.SignUp(ctx, signUpRequest("unverified@acme.test"))
	require.NoError(t, err)

	_, err = hr.OnboardingStatus(ctx)
	require.True(t, identitysdk.IsStatus(err, http.StatusForbidden), err)

	// A resend issues a new working link
	require.NoError(t, svc.client.ResendVerification(ctx, "unverified@acme.test"))
	_, err = svc.client.VerifyEmail(ctx, svc.emailedToken(t, "email_verification", "unverified@acme.test"))
	require.NoError(t, err)

	_, err = hr.OnboardingStatus(ctx)
	require.NoError(t, err)
}
