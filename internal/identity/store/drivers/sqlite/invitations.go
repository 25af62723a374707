package sqlite

import (
	"context"
	"time"

	"github.com/aussiebroadwan/iworkcore/internal/identity/domain"
)

type invitationsRepo struct {
	db dbtx
}

func (r *invitationsRepo) CreateInvitation(ctx context.Context, inv domain.Invitation) error {
	now := toMillis(time.Now())
	status := inv.Status
	if status == "" {
		status = domain.InvitationPending
	}
	role := inv.Role
	if role == "" {
		role = domain.RoleStaff
	}
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO invitations (id, email, company_id, invited_by, token_hash, role, status, expires_at, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		inv.ID, inv.Email, inv.CompanyID, inv.InvitedBy, inv.TokenHash,
		string(role), string(status), toMillis(inv.ExpiresAt), now, now,
	)
	return mapUnique(err)
}

func (r *invitationsRepo) ListPendingInvitations(
	ctx context.Context,
	email string,
	now time.Time,
) ([]domain.Invitation, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, email, company_id, invited_by, token_hash, role, status, expires_at, created_at, updated_at
		FROM invitations
		WHERE email = ? AND status = 'pending' AND expires_at > ?
		ORDER BY created_at, id`, email, toMillis(now))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []domain.Invitation
	for rows.Next() {
		var (
			inv                             domain.Invitation
			role, status                    string
			expiresAt, createdAt, updatedAt int64
		)
		if err := rows.Scan(
			&inv.ID, &inv.Email, &inv.CompanyID, &inv.InvitedBy, &inv.TokenHash,
			&role, &status, &expiresAt, &createdAt, &updatedAt,
		); err != nil {
			return nil, err
		}
		inv.Role = domain.Role(role)
		inv.Status = domain.InvitationStatus(status)
		inv.ExpiresAt = fromMillis(expiresAt)
		inv.CreatedAt = fromMillis(createdAt)
		inv.UpdatedAt = fromMillis(updatedAt)
		out = append(out, inv)
	}
	return out, rows.Err()
}

func (r *invitationsRepo) AcceptInvitation(ctx context.Context, id string) error {
	return expectOne(r.db.ExecContext(ctx,
		`UPDATE invitations SET status = 'accepted', updated_at = ? WHERE id = ? AND status = 'pending'`,
		toMillis(time.Now()), id))
}

func (r *invitationsRepo) ExpireInvitations(ctx context.Context, now time.Time) (int64, error) {
	return rowsAffected(r.db.ExecContext(ctx,
		`UPDATE invitations SET status = 'expired', updated_at = ? WHERE status = 'pending' AND expires_at <= ?`,
		toMillis(time.Now()), toMillis(now)))
}
