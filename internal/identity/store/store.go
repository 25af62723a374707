package store

import (
	"context"
	"errors"
	"time"

	"github.com/aussiebroadwan/iworkcore/internal/identity/domain"
)

var (
	ErrNotFound      = errors.New("store: not found")
	ErrAlreadyExists = errors.New("store: already exists")
)

// Store is the root data access interface. Concrete drivers implement it
// and expose sub-repositories, so a transaction-scoped Store cannot start a
// second transaction by accident.
type Store interface {
	Users() Users
	Companies() Companies
	Invitations() Invitations
	RefreshTokens() RefreshTokens

	ApplyMigrations() error

	// Tx starts a read/write transaction and returns a Tx-scoped Store.
	// The caller MUST call Commit() or Rollback() on the returned Tx.
	Tx(ctx context.Context) (Tx, error)

	// WithTx runs fn in a transaction, committing when fn returns nil and
	// rolling back otherwise. Inside fn only tx may be used.
	WithTx(ctx context.Context, fn func(tx Tx) error) error

	Close() error

	// Ping verifies the database connection is still alive.
	Ping(ctx context.Context) error
}

// Tx is a transactional store. It embeds the same repos but adds Commit/Rollback.
type Tx interface {
	Store
	Commit() error
	Rollback() error
}

type Users interface {
	GetUserByID(ctx context.Context, id string) (domain.User, error)

	// GetUserByEmail expects a normalized address.
	GetUserByEmail(ctx context.Context, email string) (domain.User, error)

	// CreateUser inserts u. A taken email yields ErrAlreadyExists.
	CreateUser(ctx context.Context, u domain.User) error

	// DeleteUser cascades to refresh_tokens.
	DeleteUser(ctx context.Context, id string) error

	UpdatePasswordHash(ctx context.Context, id, hash string) error

	// SetCompany links the user to a company.
	SetCompany(ctx context.Context, id, companyID string) error

	// MarkOnboarded sets onboarded and status=active.
	MarkOnboarded(ctx context.Context, id string) error

	SetStatus(ctx context.Context, id string, status domain.Status) error

	SetTwoFactor(ctx context.Context, id string, tf domain.TwoFactor) error

	// ConfirmTwoFactor enables two-factor only while secret is still the
	// pending one. ErrNotFound otherwise.
	ConfirmTwoFactor(ctx context.Context, id, secret string) error

	// SetPasswordReset replaces any outstanding reset token.
	SetPasswordReset(ctx context.Context, id string, t domain.PendingToken) error

	// ListLivePasswordResets returns users whose reset token expires after now.
	ListLivePasswordResets(ctx context.Context, now time.Time) ([]domain.User, error)

	// ConsumePasswordReset swaps in newHash and clears the reset pair, only
	// if the stored token hash is still tokenHash. ErrNotFound otherwise.
	ConsumePasswordReset(ctx context.Context, id, tokenHash, newHash string) error

	SetEmailVerification(ctx context.Context, id string, t domain.PendingToken) error

	ListLiveEmailVerifications(ctx context.Context, now time.Time) ([]domain.User, error)

	// ConsumeEmailVerification marks the email verified and clears the
	// pair, only if the stored token hash is still tokenHash.
	ConsumeEmailVerification(ctx context.Context, id, tokenHash string) error

	// ClearExpiredTokens drops reset and verification pairs that expired
	// at or before now.
	ClearExpiredTokens(ctx context.Context, now time.Time) (int64, error)
}

type Companies interface {
	GetCompanyByID(ctx context.Context, id string) (domain.Company, error)

	CreateCompany(ctx context.Context, c domain.Company) error

	// UpdateCompany writes profile, preferences and onboarding progress.
	// hr_id is never written after creation.
	UpdateCompany(ctx context.Context, c domain.Company) error
}

type Invitations interface {
	CreateInvitation(ctx context.Context, inv domain.Invitation) error

	// ListPendingInvitations returns pending invitations for email that
	// expire after now.
	ListPendingInvitations(ctx context.Context, email string, now time.Time) ([]domain.Invitation, error)

	// AcceptInvitation flips a pending invitation to accepted. ErrNotFound
	// when it is no longer pending.
	AcceptInvitation(ctx context.Context, id string) error

	// ExpireInvitations marks pending invitations past expiry as expired.
	ExpireInvitations(ctx context.Context, now time.Time) (int64, error)
}

type RefreshTokens interface {
	// CreateRefreshToken appends a session for the user.
	CreateRefreshToken(ctx context.Context, t domain.RefreshToken) error

	// GetRefreshToken finds an unexpired session by fingerprint.
	GetRefreshToken(ctx context.Context, userID, tokenHash string, now time.Time) (domain.RefreshToken, error)

	DeleteRefreshToken(ctx context.Context, userID, tokenHash string) error

	DeleteUserRefreshTokens(ctx context.Context, userID string) error

	// PruneRefreshTokens deletes the user's expired sessions and then the
	// oldest live ones until at most keep remain.
	PruneRefreshTokens(ctx context.Context, userID string, now time.Time, keep int) error

	CountRefreshTokens(ctx context.Context, userID string) (int, error)

	// DeleteExpiredRefreshTokens is housekeeping.
	DeleteExpiredRefreshTokens(ctx context.Context, now time.Time) (int64, error)
}
