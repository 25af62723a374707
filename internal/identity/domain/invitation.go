package domain

import "time"

type InvitationStatus string

const (
	InvitationPending  InvitationStatus = "pending"
	InvitationAccepted InvitationStatus = "accepted"
	InvitationRevoked  InvitationStatus = "revoked"
	InvitationExpired  InvitationStatus = "expired"
)

// Invitation lets an HR user bring a staff member into their company.
type Invitation struct {
	ID        string
	Email     string
	CompanyID string
	InvitedBy string
	TokenHash string
	Role      Role
	Status    InvitationStatus
	ExpiresAt time.Time
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Redeemable reports whether the invitation can be accepted by email at now.
func (i Invitation) Redeemable(email string, now time.Time) bool {
	return i.Status == InvitationPending && now.Before(i.ExpiresAt) && i.Email == NormalizeEmail(email)
}
