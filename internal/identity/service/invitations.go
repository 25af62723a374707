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
	"github.com/aussiebroadwan/iworkcore/pkg/idx"
	"github.com/aussiebroadwan/iworkcore/pkg/slogx"
)

const DefaultInvitationTTL = 7 * 24 * time.Hour

// InviteResult carries the plaintext token, which is never stored.
type InviteResult struct {
	Invitation domain.Invitation
	Token      string
}

type InvitationService struct {
	Store  store.Store
	Mailer Mailer
	Links  Links
	TTL    time.Duration
}

// Invite lets an HR user invite a staff member into their company. The
// token is returned once and emailed as a sign-up link.
func (s *InvitationService) Invite(ctx context.Context, hrID, email string) (InviteResult, error) {
	l := slogx.FromContext(ctx)
	now := time.Now()
	email = domain.NormalizeEmail(email)

	if err := requireFields(map[string]string{"email": email}); err != nil {
		return InviteResult{}, err
	}

	// 1. Only the company's HR user may invite
	hr, err := loadUser(ctx, s.Store, hrID)
	if err != nil {
		return InviteResult{}, err
	}
	if hr.Role != domain.RoleHR {
		return InviteResult{}, ErrForbidden
	}
	if hr.CompanyID == "" {
		return InviteResult{}, ErrNoCompany
	}
	company, err := loadCompany(ctx, s.Store, hr.CompanyID)
	if err != nil {
		return InviteResult{}, err
	}
	if !company.OwnedBy(hr.ID) {
		return InviteResult{}, ErrForbidden
	}

	// 2. The invitee must not have an account yet
	if _, err := s.Store.Users().GetUserByEmail(ctx, email); err == nil {
		return InviteResult{}, ErrDuplicateEmail
	} else if !errors.Is(err, store.ErrNotFound) {
		return InviteResult{}, err
	}

	// 3. Mint and store the invitation
	ttl := s.TTL
	if ttl <= 0 {
		ttl = DefaultInvitationTTL
	}
	token, err := IssueSecureToken(ttl, now)
	if err != nil {
		return InviteResult{}, err
	}
	inv := domain.Invitation{
		ID:        idx.NewAt(now).String(),
		Email:     email,
		CompanyID: company.ID,
		InvitedBy: hr.ID,
		TokenHash: token.Hash,
		Role:      domain.RoleStaff,
		Status:    domain.InvitationPending,
		ExpiresAt: token.ExpiresAt,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := s.Store.Invitations().CreateInvitation(ctx, inv); err != nil {
		return InviteResult{}, fmt.Errorf("store invitation: %w", err)
	}

	// 4. Email the link
	mailerOrDiscard(s.Mailer).Dispatch(ctx, mail.Message{
		To:       email,
		Template: mail.TemplateInvitation,
		Data: map[string]string{
			mail.KeyName:    hr.FirstName,
			mail.KeyCompany: company.Name,
			mail.KeyLink:    s.Links.Invitation(token.Plain),
			mail.KeyExpires: expiresIn(ttl),
		},
	})

	l.Info("invitation created", slog.String("invitation_id", inv.ID), slog.String("company_id", company.ID))
	return InviteResult{Invitation: inv, Token: token.Plain}, nil
}
