package identitysdk

import (
	"context"
	"net/http"
)

// SendVerificationEmail emails a new verification link to the signed-in user.
func (s *Session) SendVerificationEmail(ctx context.Context) error {
	_, err := s.call(ctx, http.MethodPost, "/auth/send-verification-email", nil, http.StatusOK, nil)
	return err
}

// EnableTwoFactor starts TOTP enrollment. Two-factor stays off until
// ConfirmTwoFactor succeeds.
func (s *Session) EnableTwoFactor(ctx context.Context) (*TwoFactorEnrollment, error) {
	var enrollment TwoFactorEnrollment
	if _, err := s.call(ctx, http.MethodPost, "/auth/2fa/enable", nil, http.StatusOK, &enrollment); err != nil {
		return nil, err
	}
	return &enrollment, nil
}

// ConfirmTwoFactor activates the pending secret with a current code.
func (s *Session) ConfirmTwoFactor(ctx context.Context, code string) error {
	if _, err := s.call(ctx, http.MethodPost, "/auth/2fa/confirm", map[string]string{"code": code}, http.StatusOK, nil); err != nil {
		return err
	}
	s.mu.Lock()
	s.user.TwoFactorEnabled = true
	s.mu.Unlock()
	return nil
}

// DisableTwoFactor turns two-factor off with a current code.
func (s *Session) DisableTwoFactor(ctx context.Context, code string) error {
	if _, err := s.call(ctx, http.MethodPost, "/auth/2fa/disable", map[string]string{"code": code}, http.StatusOK, nil); err != nil {
		return err
	}
	s.mu.Lock()
	s.user.TwoFactorEnabled = false
	s.mu.Unlock()
	return nil
}
