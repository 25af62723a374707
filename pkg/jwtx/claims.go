package jwtx

import (
	"crypto/rand"
	"encoding/base64"
	"slices"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// Default lifetimes for the three token purposes.
const (
	DefaultAccessTokenTTL    = 15 * time.Minute
	DefaultRefreshTokenTTL   = 7 * 24 * time.Hour
	DefaultTwoFactorTokenTTL = 5 * time.Minute
)

// Purpose separates the token kinds the service mints. A token is only
// accepted where its purpose is expected, so a refresh token can never be
// replayed as a bearer token and vice versa.
type Purpose string

const (
	PurposeAccess    Purpose = "access"
	PurposeRefresh   Purpose = "refresh"
	PurposeTwoFactor Purpose = "2fa"
)

// Authentication method references recorded in the "amr" claim.
const (
	AMRPassword = "pwd"
	AMROTP      = "otp"
	AMRRefresh  = "refresh"
)

// Claims are the claims carried by every token the service signs.
type Claims struct {
	jwt.RegisteredClaims

	Purpose Purpose `json:"purpose"`

	// Role of the user at issuance ("hr" or "staff").
	Role string `json:"role,omitempty"`

	// CompanyID is the tenant the user belonged to at issuance, if any.
	CompanyID string `json:"cid,omitempty"`

	// Authentication Methods Reference, e.g. ["pwd","otp"].
	AMR []string `json:"amr,omitempty"`
}

// NewClaims builds minimally-correct claims for subject with a fresh jti.
func NewClaims(purpose Purpose, subject string, ttl time.Duration, issuer string, now time.Time) Claims {
	return Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    issuer,
			Subject:   subject,
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
			ID:        NewJTI(),
		},
		Purpose: purpose,
	}
}

// NewJTI returns a URL-safe random identifier for the "jti" claim. It also
// guarantees two tokens minted in the same second never share a signature.
func NewJTI() string {
	var b [20]byte
	_, _ = rand.Read(b[:])
	return base64.RawURLEncoding.EncodeToString(b[:])
}

// ValidateIssuer checks if the issuer matches expected value.
func (c *Claims) ValidateIssuer(expected string) error {
	if expected == "" {
		return nil
	}
	if c.Issuer != expected {
		return ErrIssuer
	}
	return nil
}

// ValidateAudience checks if at least one expected audience is present.
func (c *Claims) ValidateAudience(expected []string) error {
	if len(expected) == 0 {
		return nil
	}
	for _, want := range expected {
		if slices.Contains(c.Audience, want) {
			return nil
		}
	}
	return ErrAudience
}

// ValidatePurpose rejects tokens minted for a different flow.
func (c *Claims) ValidatePurpose(expected Purpose) error {
	if c.Purpose != expected {
		return ErrPurpose
	}
	return nil
}

// ValidateExpiry ensures the token hasn't expired (exp) and isn't before nbf.
func (c *Claims) ValidateExpiry() error {
	return c.ValidateExpiryWithLeeway(0)
}

// ValidateExpiryWithLeeway adds a small grace period for clock skew.
func (c *Claims) ValidateExpiryWithLeeway(leeway time.Duration) error {
	now := time.Now().UTC()

	if c.ExpiresAt != nil && now.After(c.ExpiresAt.Add(leeway)) {
		return ErrExpired
	}
	if c.NotBefore != nil && now.Before(c.NotBefore.Add(-leeway)) {
		return ErrNotYetValid
	}
	return nil
}
