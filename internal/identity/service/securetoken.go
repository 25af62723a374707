package service

import (
	"time"

	"github.com/aussiebroadwan/iworkcore/internal/identity/domain"
	"github.com/aussiebroadwan/iworkcore/pkg/cryptox"
)

// Token purposes of single-use secure tokens.
const (
	PurposePasswordReset     = "password_reset"
	PurposeEmailVerification = "email_verification"
	PurposeInvitation        = "invitation"
)

// SecureToken is a freshly minted single-use token. Plain goes to the user
// exactly once; only Hash and ExpiresAt are stored.
type SecureToken struct {
	Plain     string
	Hash      string
	ExpiresAt time.Time
}

// Pending returns the stored half of the token.
func (t SecureToken) Pending() *domain.PendingToken {
	return &domain.PendingToken{Hash: t.Hash, ExpiresAt: t.ExpiresAt}
}

// IssueSecureToken mints a 256-bit token valid for ttl from now.
func IssueSecureToken(ttl time.Duration, now time.Time) (SecureToken, error) {
	plain, err := cryptox.GenerateToken(cryptox.TokenSize256)
	if err != nil {
		return SecureToken{}, err
	}
	hash, err := cryptox.HashSecureToken(plain)
	if err != nil {
		return SecureToken{}, err
	}
	return SecureToken{Plain: plain, Hash: hash, ExpiresAt: now.Add(ttl)}, nil
}

// RedeemSecureToken returns the index of the candidate plain was issued
// for. Every candidate is checked so the time taken does not depend on the
// position of the match. Candidates that are expired at now never match.
func RedeemSecureToken[T any](
	plain string,
	candidates []T,
	pending func(T) *domain.PendingToken,
	now time.Time,
) (int, error) {
	match := -1
	if plain == "" {
		return match, ErrInvalidOrExpiredToken
	}
	for i, c := range candidates {
		p := pending(c)
		if !p.Live(now) {
			continue
		}
		if cryptox.VerifySecureToken(plain, p.Hash) && match < 0 {
			match = i
		}
	}
	if match < 0 {
		return match, ErrInvalidOrExpiredToken
	}
	return match, nil
}
