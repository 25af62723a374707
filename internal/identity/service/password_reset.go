package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/aussiebroadwan/iworkcore/internal/identity/domain"
	"github.com/aussiebroadwan/iworkcore/internal/identity/mail"
	"github.com/aussiebroadwan/iworkcore/internal/identity/store"
	"github.com/aussiebroadwan/iworkcore/pkg/cryptox"
	"github.com/aussiebroadwan/iworkcore/pkg/jwtx"
	"github.com/aussiebroadwan/iworkcore/pkg/slogx"
)

const DefaultPasswordResetTTL = 15 * time.Minute

type PasswordResetService struct {
	Store  store.Store
	Tokens *TokenIssuer
	Mailer Mailer
	Links  Links
	TTL    time.Duration
}

// RequestReset emails a reset link to the owner of email. Unknown addresses
// yield ErrNotFound and send nothing.
func (s *PasswordResetService) RequestReset(ctx context.Context, email string) error {
	l := slogx.FromContext(ctx)

	user, err := s.Store.Users().GetUserByEmail(ctx, domain.NormalizeEmail(email))
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return ErrNotFound
		}
		return err
	}

	ttl := s.TTL
	if ttl <= 0 {
		ttl = DefaultPasswordResetTTL
	}
	token, err := IssueSecureToken(ttl, time.Now())
	if err != nil {
		return err
	}
	if err := s.Store.Users().SetPasswordReset(ctx, user.ID, *token.Pending()); err != nil {
		return fmt.Errorf("store reset token: %w", err)
	}

	mailerOrDiscard(s.Mailer).Dispatch(ctx, mail.Message{
		To:       user.Email,
		Template: mail.TemplatePasswordReset,
		Data: map[string]string{
			mail.KeyName:    user.FirstName,
			mail.KeyLink:    s.Links.ResetPassword(token.Plain),
			mail.KeyExpires: expiresIn(ttl),
		},
	})

	l.Info("password reset requested", slog.String("user_id", user.ID))
	return nil
}

// CompleteReset redeems a reset token, replaces the password, revokes every
// session of the user and signs them straight back in.
func (s *PasswordResetService) CompleteReset(ctx context.Context, token, newPassword string) (domain.User, domain.TokenPair, error) {
	l := slogx.FromContext(ctx)
	now := time.Now()

	if err := requireFields(map[string]string{"password": newPassword}); err != nil {
		return domain.User{}, domain.TokenPair{}, err
	}

	// 1. Find the owner among users holding a live token
	candidates, err := s.Store.Users().ListLivePasswordResets(ctx, now)
	if err != nil {
		return domain.User{}, domain.TokenPair{}, err
	}
	i, err := RedeemSecureToken(token, candidates, func(u domain.User) *domain.PendingToken {
		return u.PasswordReset
	}, now)
	if err != nil {
		return domain.User{}, domain.TokenPair{}, err
	}
	user := candidates[i]

	// 2. Hash the new password
	hash, err := cryptox.HashPassword(newPassword)
	if err != nil {
		return domain.User{}, domain.TokenPair{}, fmt.Errorf("hash password: %w", err)
	}

	// 3. Swap the password and drop every session atomically
	err = s.Store.WithTx(ctx, func(tx store.Tx) error {
		if err := tx.Users().ConsumePasswordReset(ctx, user.ID, user.PasswordReset.Hash, hash); err != nil {
			if errors.Is(err, store.ErrNotFound) {
				return ErrInvalidOrExpiredToken
			}
			return err
		}
		return tx.RefreshTokens().DeleteUserRefreshTokens(ctx, user.ID)
	})
	if err != nil {
		return domain.User{}, domain.TokenPair{}, err
	}
	user.PasswordHash = hash
	user.PasswordReset = nil
	l.Info("password reset completed", slog.String("user_id", user.ID))

	// 4. Suspended accounts keep the new password but get no session
	if user.Status == domain.StatusSuspended {
		return domain.User{}, domain.TokenPair{}, ErrAccountSuspended
	}

	pair, err := s.Tokens.IssuePair(ctx, user, jwtx.AMRPassword)
	if err != nil {
		return domain.User{}, domain.TokenPair{}, err
	}
	return user, pair, nil
}
