package domain

import (
	"strings"
	"time"
)

type Role string

const (
	RoleHR    Role = "hr"
	RoleStaff Role = "staff"
)

type Status string

const (
	StatusActive    Status = "active"
	StatusPending   Status = "pending"
	StatusSuspended Status = "suspended"
)

// PendingToken is the stored half of a secure token: its salted hash and
// expiry. A nil *PendingToken means no token is outstanding, so the pair is
// either fully set or fully absent.
type PendingToken struct {
	Hash      string
	ExpiresAt time.Time
}

// Live reports whether the token can still be redeemed at now.
func (p *PendingToken) Live(now time.Time) bool {
	return p != nil && p.Hash != "" && now.Before(p.ExpiresAt)
}

type User struct {
	ID            string
	Email         string // normalized, see NormalizeEmail
	PasswordHash  string // argon2id PHC string; empty for staff without a password
	FirstName     string
	LastName      string
	Phone         string
	PositionTitle string
	Role          Role
	Status        Status
	CompanyID     string // empty until linked to a company
	Onboarded     bool
	EmailVerified bool

	PasswordReset     *PendingToken
	EmailVerification *PendingToken

	TwoFactor TwoFactor

	CreatedAt time.Time
	UpdatedAt time.Time
}

// NormalizeEmail trims and lower-cases an address.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// PublicUser is the user shape returned to API callers. It never carries
// credential material.
type PublicUser struct {
	ID               string `json:"id"`
	FirstName        string `json:"firstName"`
	LastName         string `json:"lastName"`
	Email            string `json:"email"`
	Phone            string `json:"phone,omitempty"`
	PositionTitle    string `json:"positionTitle,omitempty"`
	Role             Role   `json:"role"`
	CompanyID        string `json:"companyId,omitempty"`
	Onboarded        bool   `json:"onboarded"`
	Status           Status `json:"status"`
	EmailVerified    bool   `json:"emailVerified"`
	TwoFactorEnabled bool   `json:"twoFactorEnabled"`
}

func (u User) Public() PublicUser {
	return PublicUser{
		ID:               u.ID,
		FirstName:        u.FirstName,
		LastName:         u.LastName,
		Email:            u.Email,
		Phone:            u.Phone,
		PositionTitle:    u.PositionTitle,
		Role:             u.Role,
		CompanyID:        u.CompanyID,
		Onboarded:        u.Onboarded,
		Status:           u.Status,
		EmailVerified:    u.EmailVerified,
		TwoFactorEnabled: u.TwoFactor.Enabled(),
	}
}
