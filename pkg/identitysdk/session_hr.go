package identitysdk

import (
	"context"
	"net/http"
)

// The calls below require a verified HR admin.

// OnboardingStatus reports the company setup progress.
func (s *Session) OnboardingStatus(ctx context.Context) (*OnboardingStatus, error) {
	var status OnboardingStatus
	if _, err := s.call(ctx, http.MethodGet, "/onboarding/status", nil, http.StatusOK, &status); err != nil {
		return nil, err
	}
	return &status, nil
}

// SavePreferences stores the setup preferences, creating the company on
// first use.
func (s *Session) SavePreferences(ctx context.Context, preferences []string) (*OnboardingStatus, error) {
	if preferences == nil {
		preferences = []string{}
	}
	body := map[string][]string{"setupPreferences": preferences}

	var status OnboardingStatus
	if _, err := s.call(ctx, http.MethodPost, "/onboarding/preferences", body, http.StatusOK, &status); err != nil {
		return nil, err
	}
	return &status, nil
}

// CompleteOnboarding submits the company profile and finishes onboarding.
func (s *Session) CompleteOnboarding(ctx context.Context, profile CompanyProfile) (*CompletedOnboarding, error) {
	var out CompletedOnboarding
	if _, err := s.call(ctx, http.MethodPost, "/onboarding/complete", profile, http.StatusOK, &out); err != nil {
		return nil, err
	}

	s.mu.Lock()
	s.user.Onboarded = out.User.Onboarded
	s.user.Status = out.User.Status
	s.user.CompanyID = out.Company.ID
	s.mu.Unlock()
	return &out, nil
}

// Invite mints a staff invitation for email in the admin's company.
func (s *Session) Invite(ctx context.Context, email string) (*Invitation, error) {
	var inv Invitation
	if _, err := s.call(ctx, http.MethodPost, "/auth/invitations", map[string]string{"email": email}, http.StatusCreated, &inv); err != nil {
		return nil, err
	}
	return &inv, nil
}
