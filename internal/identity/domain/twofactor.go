package domain

import (
	"errors"
	"fmt"
)

type TwoFactorState string

const (
	TwoFactorStateDisabled TwoFactorState = "disabled"
	TwoFactorStatePending  TwoFactorState = "pending"
	TwoFactorStateEnabled  TwoFactorState = "enabled"
)

var ErrInvalidTwoFactor = errors.New("domain: invalid two-factor state")

// TwoFactor is the enrollment state of a user's TOTP second factor. A
// pending secret is not authoritative and never gates sign-in; only an
// enabled secret does. The zero value is Disabled.
type TwoFactor struct {
	state  TwoFactorState
	secret string
}

func TwoFactorDisabled() TwoFactor { return TwoFactor{} }

func TwoFactorPending(secret string) TwoFactor {
	return TwoFactor{state: TwoFactorStatePending, secret: secret}
}

func TwoFactorEnabled(secret string) TwoFactor {
	return TwoFactor{state: TwoFactorStateEnabled, secret: secret}
}

// ParseTwoFactor rebuilds a state read from storage.
func ParseTwoFactor(state, secret string) (TwoFactor, error) {
	switch TwoFactorState(state) {
	case "", TwoFactorStateDisabled:
		if secret != "" {
			return TwoFactor{}, fmt.Errorf("%w: disabled with secret", ErrInvalidTwoFactor)
		}
		return TwoFactorDisabled(), nil
	case TwoFactorStatePending, TwoFactorStateEnabled:
		if secret == "" {
			return TwoFactor{}, fmt.Errorf("%w: %s without secret", ErrInvalidTwoFactor, state)
		}
		return TwoFactor{state: TwoFactorState(state), secret: secret}, nil
	default:
		return TwoFactor{}, fmt.Errorf("%w: unknown state %q", ErrInvalidTwoFactor, state)
	}
}

func (t TwoFactor) State() TwoFactorState {
	if t.state == "" {
		return TwoFactorStateDisabled
	}
	return t.state
}

// Secret is the pending or active secret, "" when disabled.
func (t TwoFactor) Secret() string { return t.secret }

func (t TwoFactor) Enabled() bool { return t.state == TwoFactorStateEnabled }
func (t TwoFactor) Pending() bool { return t.state == TwoFactorStatePending }

// Enrollment is what a user needs to add the secret to an authenticator app.
type Enrollment struct {
	Secret  string `json:"manualCode"`
	URI     string `json:"otpauthUrl"`
	QRCode  string `json:"qrCode"` // PNG data URL
	Issuer  string `json:"issuer"`
	Account string `json:"account"`
}
