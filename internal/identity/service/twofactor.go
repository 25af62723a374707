package service

import (
	"bytes"
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"image/png"
	"log/slog"
	"time"

	"github.com/aussiebroadwan/iworkcore/internal/identity/domain"
	"github.com/aussiebroadwan/iworkcore/internal/identity/store"
	"github.com/aussiebroadwan/iworkcore/pkg/slogx"
	"github.com/pquerna/otp"
	"github.com/pquerna/otp/totp"
)

const (
	DefaultTOTPIssuer = "iWorkCore"

	totpPeriod     = 30
	totpSecretSize = 20
	totpSkew       = 1
	qrCodeSize     = 256
)

var totpValidateOpts = totp.ValidateOpts{
	Period:    totpPeriod,
	Skew:      totpSkew,
	Digits:    otp.DigitsSix,
	Algorithm: otp.AlgorithmSHA1,
}

type TwoFactorService struct {
	Store  store.Store
	Issuer string // shown in authenticator apps, e.g. "iWorkCore"
}

func (s *TwoFactorService) issuer() string {
	if s.Issuer == "" {
		return DefaultTOTPIssuer
	}
	return s.Issuer
}

func (s *TwoFactorService) user(ctx context.Context, userID string) (domain.User, error) {
	user, err := s.Store.Users().GetUserByID(ctx, userID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return domain.User{}, ErrNotFound
		}
		return domain.User{}, err
	}
	return user, nil
}

// Enable starts enrollment: it generates a secret, stores it as pending and
// returns what the user needs to add it to an authenticator. Calling it
// again while pending replaces the pending secret.
func (s *TwoFactorService) Enable(ctx context.Context, userID string) (domain.Enrollment, error) {
	user, err := s.user(ctx, userID)
	if err != nil {
		return domain.Enrollment{}, err
	}
	if user.TwoFactor.Enabled() {
		return domain.Enrollment{}, ErrAlreadyEnabled
	}

	account := fmt.Sprintf("%s (%s)", s.issuer(), user.Email)
	key, err := totp.Generate(totp.GenerateOpts{
		Issuer:      s.issuer(),
		AccountName: account,
		Period:      totpPeriod,
		SecretSize:  totpSecretSize,
		Digits:      otp.DigitsSix,
		Algorithm:   otp.AlgorithmSHA1,
	})
	if err != nil {
		return domain.Enrollment{}, fmt.Errorf("failed to generate TOTP key: %w", err)
	}

	qr, err := qrDataURL(key)
	if err != nil {
		return domain.Enrollment{}, err
	}

	if err := s.Store.Users().SetTwoFactor(ctx, user.ID, domain.TwoFactorPending(key.Secret())); err != nil {
		return domain.Enrollment{}, fmt.Errorf("failed to store TOTP secret: %w", err)
	}

	return domain.Enrollment{
		Secret:  key.Secret(),
		URI:     key.URL(),
		QRCode:  qr,
		Issuer:  s.issuer(),
		Account: account,
	}, nil
}

// Confirm promotes a pending enrollment once the user proves they hold the
// secret.
func (s *TwoFactorService) Confirm(ctx context.Context, userID, code string) error {
	l := slogx.FromContext(ctx)

	user, err := s.user(ctx, userID)
	if err != nil {
		return err
	}

	switch {
	case user.TwoFactor.Enabled():
		return ErrAlreadyEnabled
	case !user.TwoFactor.Pending():
		return ErrNoEnrollment
	}

	if !validateCode(code, user.TwoFactor.Secret()) {
		return ErrInvalidCode
	}

	// A concurrent Enable replaces the pending secret and voids this code
	if err := s.Store.Users().ConfirmTwoFactor(ctx, user.ID, user.TwoFactor.Secret()); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return ErrNoEnrollment
		}
		return fmt.Errorf("failed to enable two-factor: %w", err)
	}
	l.Info("two-factor enabled", slog.String("user_id", user.ID))
	return nil
}

// Disable turns two-factor off after a valid code for the active secret.
func (s *TwoFactorService) Disable(ctx context.Context, userID, code string) error {
	l := slogx.FromContext(ctx)

	user, err := s.user(ctx, userID)
	if err != nil {
		return err
	}
	if !user.TwoFactor.Enabled() {
		return ErrNotEnabled
	}
	if !s.VerifyCode(user, code) {
		return ErrInvalidCode
	}

	if err := s.Store.Users().SetTwoFactor(ctx, user.ID, domain.TwoFactorDisabled()); err != nil {
		return fmt.Errorf("failed to disable two-factor: %w", err)
	}
	l.Info("two-factor disabled", slog.String("user_id", user.ID))
	return nil
}

// VerifyCode checks code against the user's active secret. A pending
// secret never verifies.
func (s *TwoFactorService) VerifyCode(user domain.User, code string) bool {
	if !user.TwoFactor.Enabled() {
		return false
	}
	return validateCode(code, user.TwoFactor.Secret())
}

func validateCode(code, secret string) bool {
	ok, err := totp.ValidateCustom(code, secret, time.Now().UTC(), totpValidateOpts)
	return err == nil && ok
}

// qrDataURL renders the provisioning URI as a PNG data URL.
func qrDataURL(key *otp.Key) (string, error) {
	img, err := key.Image(qrCodeSize, qrCodeSize)
	if err != nil {
		return "", fmt.Errorf("failed to render QR code: %w", err)
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return "", fmt.Errorf("failed to encode QR code: %w", err)
	}
	return "data:image/png;base64," + base64.StdEncoding.EncodeToString(buf.Bytes()), nil
}
