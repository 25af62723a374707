package service

import (
	"context"
	"fmt"
	"time"

	"github.com/aussiebroadwan/iworkcore/internal/identity/domain"
	"github.com/aussiebroadwan/iworkcore/internal/identity/store"
	"github.com/aussiebroadwan/iworkcore/pkg/cryptox"
	"github.com/aussiebroadwan/iworkcore/pkg/idx"
	"github.com/aussiebroadwan/iworkcore/pkg/jwtx"
)

const (
	TokenTypeBearer = "Bearer"

	DefaultMaxRefreshTokens = 10
)

// TokenIssuer mints access, refresh and two-factor intermediate tokens.
// Access and two-factor tokens share a key but never a purpose; refresh
// tokens are signed with their own key.
type TokenIssuer struct {
	Store store.Store

	AccessSigner    jwtx.Signer
	AccessVerifier  jwtx.Verifier
	RefreshSigner   jwtx.Signer
	RefreshVerifier jwtx.Verifier

	Issuer       string
	AccessTTL    time.Duration
	RefreshTTL   time.Duration
	TwoFactorTTL time.Duration

	// MaxRefreshTokens caps the stored sessions per user.
	MaxRefreshTokens int
}

func (t *TokenIssuer) claims(purpose jwtx.Purpose, user domain.User, ttl time.Duration, now time.Time) jwtx.Claims {
	c := jwtx.NewClaims(purpose, user.ID, ttl, t.Issuer, now)
	c.Role = string(user.Role)
	c.CompanyID = user.CompanyID
	return c
}

// IssuePair signs a fresh access/refresh pair for user and stores the
// refresh token's fingerprint. Expired sessions are pruned and the oldest
// are evicted so the user keeps at most MaxRefreshTokens.
func (t *TokenIssuer) IssuePair(ctx context.Context, user domain.User, amr ...string) (domain.TokenPair, error) {
	now := time.Now()

	access := t.claims(jwtx.PurposeAccess, user, t.AccessTTL, now)
	access.AMR = amr
	accessToken, err := t.AccessSigner.Sign(access)
	if err != nil {
		return domain.TokenPair{}, fmt.Errorf("sign access token: %w", err)
	}

	refresh := t.claims(jwtx.PurposeRefresh, user, t.RefreshTTL, now)
	refreshToken, err := t.RefreshSigner.Sign(refresh)
	if err != nil {
		return domain.TokenPair{}, fmt.Errorf("sign refresh token: %w", err)
	}

	keep := t.MaxRefreshTokens
	if keep <= 0 {
		keep = DefaultMaxRefreshTokens
	}

	err = t.Store.WithTx(ctx, func(tx store.Tx) error {
		if err := tx.RefreshTokens().PruneRefreshTokens(ctx, user.ID, now, keep-1); err != nil {
			return fmt.Errorf("prune refresh tokens: %w", err)
		}
		return tx.RefreshTokens().CreateRefreshToken(ctx, domain.RefreshToken{
			ID:        idx.NewAt(now).String(),
			UserID:    user.ID,
			TokenHash: cryptox.FingerprintToken(refreshToken),
			CreatedAt: now,
			ExpiresAt: refresh.ExpiresAt.Time,
		})
	})
	if err != nil {
		return domain.TokenPair{}, err
	}

	return domain.TokenPair{
		AccessToken:  accessToken,
		RefreshToken: refreshToken,
		TokenType:    TokenTypeBearer,
		ExpiresIn:    int64(t.AccessTTL.Seconds()),
	}, nil
}

// IssueTwoFactor signs the short-lived token that stands in for a session
// between a correct password and a correct TOTP code.
func (t *TokenIssuer) IssueTwoFactor(user domain.User) (string, error) {
	c := t.claims(jwtx.PurposeTwoFactor, user, t.TwoFactorTTL, time.Now())
	c.AMR = []string{jwtx.AMRPassword}
	return t.AccessSigner.Sign(c)
}

// verify parses token with v and checks its purpose.
func verify(v jwtx.Verifier, token string, purpose jwtx.Purpose) (jwtx.Claims, error) {
	claims, err := v.Verify(token)
	if err != nil {
		return jwtx.Claims{}, err
	}
	if err := claims.ValidatePurpose(purpose); err != nil {
		return jwtx.Claims{}, err
	}
	return claims, nil
}
