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
	"github.com/aussiebroadwan/iworkcore/pkg/slogx"
)

const DefaultEmailVerificationTTL = 60 * time.Minute

type VerificationService struct {
	Store  store.Store
	Mailer Mailer
	Links  Links
	TTL    time.Duration
}

func (s *VerificationService) ttl() time.Duration {
	if s.TTL <= 0 {
		return DefaultEmailVerificationTTL
	}
	return s.TTL
}

// SendVerification issues a fresh verification token for the user and
// emails it. Any previous token stops working.
func (s *VerificationService) SendVerification(ctx context.Context, userID string) error {
	user, err := s.Store.Users().GetUserByID(ctx, userID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return ErrNotFound
		}
		return err
	}
	return s.send(ctx, user)
}

// Resend is SendVerification keyed by email, for callers without a session.
func (s *VerificationService) Resend(ctx context.Context, email string) error {
	user, err := s.Store.Users().GetUserByEmail(ctx, domain.NormalizeEmail(email))
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return ErrNotFound
		}
		return err
	}
	return s.send(ctx, user)
}

func (s *VerificationService) send(ctx context.Context, user domain.User) error {
	if user.EmailVerified {
		return ErrAlreadyVerified
	}

	ttl := s.ttl()
	token, err := IssueSecureToken(ttl, time.Now())
	if err != nil {
		return err
	}
	if err := s.Store.Users().SetEmailVerification(ctx, user.ID, *token.Pending()); err != nil {
		return fmt.Errorf("store verification token: %w", err)
	}

	s.dispatch(ctx, user, token.Plain, ttl)
	return nil
}

// dispatch queues the verification email for an already stored token.
func (s *VerificationService) dispatch(ctx context.Context, user domain.User, plain string, ttl time.Duration) {
	mailerOrDiscard(s.Mailer).Dispatch(ctx, mail.Message{
		To:       user.Email,
		Template: mail.TemplateEmailVerification,
		Data: map[string]string{
			mail.KeyName:    user.FirstName,
			mail.KeyLink:    s.Links.VerifyEmail(plain),
			mail.KeyExpires: expiresIn(ttl),
		},
	})
}

// Verify redeems a verification token and marks the owner's email verified.
func (s *VerificationService) Verify(ctx context.Context, token string) (domain.User, error) {
	l := slogx.FromContext(ctx)
	now := time.Now()

	// 1. Only users holding a live token are candidates
	candidates, err := s.Store.Users().ListLiveEmailVerifications(ctx, now)
	if err != nil {
		return domain.User{}, err
	}

	// 2. Find the owner
	i, err := RedeemSecureToken(token, candidates, func(u domain.User) *domain.PendingToken {
		return u.EmailVerification
	}, now)
	if err != nil {
		return domain.User{}, err
	}
	user := candidates[i]

	// 3. Consume; a concurrent redemption of the same token loses here
	err = s.Store.Users().ConsumeEmailVerification(ctx, user.ID, user.EmailVerification.Hash)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return domain.User{}, ErrInvalidOrExpiredToken
		}
		return domain.User{}, err
	}

	l.Info("email verified", slog.String("user_id", user.ID))
	user.EmailVerified = true
	user.EmailVerification = nil
	return user, nil
}
