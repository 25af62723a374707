package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/aussiebroadwan/iworkcore/internal/identity/domain"
)

type usersRepo struct {
	db dbtx
}

const userColumns = `id, email, password_hash, first_name, last_name, phone, position_title,
	role, status, company_id, onboarded, email_verified,
	password_reset_token_hash, password_reset_expires_at,
	email_verification_token_hash, email_verification_expires_at,
	two_factor_state, two_factor_secret, created_at, updated_at`

type scanner interface {
	Scan(dest ...any) error
}

func scanUser(row scanner) (domain.User, error) {
	var (
		u                           domain.User
		passwordHash, companyID     sql.NullString
		resetHash, verifyHash       sql.NullString
		resetExpires, verifyExpires sql.NullInt64
		role, status, tfState       string
		tfSecret                    sql.NullString
		createdAt, updatedAt        int64
	)
	err := row.Scan(
		&u.ID, &u.Email, &passwordHash, &u.FirstName, &u.LastName, &u.Phone, &u.PositionTitle,
		&role, &status, &companyID, &u.Onboarded, &u.EmailVerified,
		&resetHash, &resetExpires,
		&verifyHash, &verifyExpires,
		&tfState, &tfSecret, &createdAt, &updatedAt,
	)
	if err != nil {
		return domain.User{}, err
	}

	u.Role = domain.Role(role)
	u.Status = domain.Status(status)
	u.PasswordHash = mapNullString(passwordHash)
	u.CompanyID = mapNullString(companyID)
	u.PasswordReset = mapPendingToken(resetHash, resetExpires)
	u.EmailVerification = mapPendingToken(verifyHash, verifyExpires)
	u.CreatedAt = fromMillis(createdAt)
	u.UpdatedAt = fromMillis(updatedAt)

	u.TwoFactor, err = domain.ParseTwoFactor(tfState, mapNullString(tfSecret))
	if err != nil {
		return domain.User{}, fmt.Errorf("user %s: %w", u.ID, err)
	}
	return u, nil
}

func mapPendingToken(hash sql.NullString, expires sql.NullInt64) *domain.PendingToken {
	if !hash.Valid || !expires.Valid {
		return nil
	}
	return &domain.PendingToken{Hash: hash.String, ExpiresAt: fromMillis(expires.Int64)}
}

func (r *usersRepo) GetUserByID(ctx context.Context, id string) (domain.User, error) {
	u, err := scanUser(r.db.QueryRowContext(ctx,
		`SELECT `+userColumns+` FROM users WHERE id = ?`, id))
	if err != nil {
		return domain.User{}, mapNotFound(err)
	}
	return u, nil
}

func (r *usersRepo) GetUserByEmail(ctx context.Context, email string) (domain.User, error) {
	u, err := scanUser(r.db.QueryRowContext(ctx,
		`SELECT `+userColumns+` FROM users WHERE email = ?`, email))
	if err != nil {
		return domain.User{}, mapNotFound(err)
	}
	return u, nil
}

func (r *usersRepo) CreateUser(ctx context.Context, u domain.User) error {
	now := time.Now()
	resetHash, resetExpires := pendingTokenNull(u.PasswordReset)
	verifyHash, verifyExpires := pendingTokenNull(u.EmailVerification)
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO users (
			id, email, password_hash, first_name, last_name, phone, position_title,
			role, status, company_id, onboarded, email_verified,
			password_reset_token_hash, password_reset_expires_at,
			email_verification_token_hash, email_verification_expires_at,
			two_factor_state, two_factor_secret, created_at, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		u.ID, u.Email, mapStringNull(u.PasswordHash), u.FirstName, u.LastName, u.Phone, u.PositionTitle,
		string(u.Role), string(u.Status), mapStringNull(u.CompanyID), boolToInt(u.Onboarded), boolToInt(u.EmailVerified),
		resetHash, resetExpires,
		verifyHash, verifyExpires,
		string(u.TwoFactor.State()), mapStringNull(u.TwoFactor.Secret()), toMillis(now), toMillis(now),
	)
	return mapUnique(err)
}

// pendingTokenNull is the inverse of mapPendingToken.
func pendingTokenNull(t *domain.PendingToken) (sql.NullString, sql.NullInt64) {
	if t == nil {
		return sql.NullString{}, sql.NullInt64{}
	}
	return sql.NullString{String: t.Hash, Valid: true}, sql.NullInt64{Int64: toMillis(t.ExpiresAt), Valid: true}
}

func (r *usersRepo) DeleteUser(ctx context.Context, id string) error {
	return expectOne(r.db.ExecContext(ctx, `DELETE FROM users WHERE id = ?`, id))
}

func (r *usersRepo) UpdatePasswordHash(ctx context.Context, id, hash string) error {
	return expectOne(r.db.ExecContext(ctx,
		`UPDATE users SET password_hash = ?, updated_at = ? WHERE id = ?`,
		hash, toMillis(time.Now()), id))
}

func (r *usersRepo) SetCompany(ctx context.Context, id, companyID string) error {
	return expectOne(r.db.ExecContext(ctx,
		`UPDATE users SET company_id = ?, updated_at = ? WHERE id = ?`,
		companyID, toMillis(time.Now()), id))
}

func (r *usersRepo) MarkOnboarded(ctx context.Context, id string) error {
	return expectOne(r.db.ExecContext(ctx,
		`UPDATE users SET onboarded = 1, status = 'active', updated_at = ? WHERE id = ?`,
		toMillis(time.Now()), id))
}

func (r *usersRepo) SetStatus(ctx context.Context, id string, status domain.Status) error {
	return expectOne(r.db.ExecContext(ctx,
		`UPDATE users SET status = ?, updated_at = ? WHERE id = ?`,
		string(status), toMillis(time.Now()), id))
}

func (r *usersRepo) SetTwoFactor(ctx context.Context, id string, tf domain.TwoFactor) error {
	return expectOne(r.db.ExecContext(ctx,
		`UPDATE users SET two_factor_state = ?, two_factor_secret = ?, updated_at = ? WHERE id = ?`,
		string(tf.State()), mapStringNull(tf.Secret()), toMillis(time.Now()), id))
}

func (r *usersRepo) ConfirmTwoFactor(ctx context.Context, id, secret string) error {
	return expectOne(r.db.ExecContext(ctx, `
		UPDATE users
		SET two_factor_state = ?, updated_at = ?
		WHERE id = ? AND two_factor_state = ? AND two_factor_secret = ?`,
		string(domain.TwoFactorStateEnabled), toMillis(time.Now()), id, string(domain.TwoFactorStatePending), secret))
}

func (r *usersRepo) SetPasswordReset(ctx context.Context, id string, t domain.PendingToken) error {
	return expectOne(r.db.ExecContext(ctx, `
		UPDATE users
		SET password_reset_token_hash = ?, password_reset_expires_at = ?, updated_at = ?
		WHERE id = ?`,
		t.Hash, toMillis(t.ExpiresAt), toMillis(time.Now()), id))
}

func (r *usersRepo) ListLivePasswordResets(ctx context.Context, now time.Time) ([]domain.User, error) {
	return r.list(ctx,
		`SELECT `+userColumns+` FROM users WHERE password_reset_expires_at > ?`, toMillis(now))
}

func (r *usersRepo) ConsumePasswordReset(ctx context.Context, id, tokenHash, newHash string) error {
	return expectOne(r.db.ExecContext(ctx, `
		UPDATE users
		SET password_hash = ?,
		    password_reset_token_hash = NULL,
		    password_reset_expires_at = NULL,
		    updated_at = ?
		WHERE id = ? AND password_reset_token_hash = ?`,
		newHash, toMillis(time.Now()), id, tokenHash))
}

func (r *usersRepo) SetEmailVerification(ctx context.Context, id string, t domain.PendingToken) error {
	return expectOne(r.db.ExecContext(ctx, `
		UPDATE users
		SET email_verification_token_hash = ?, email_verification_expires_at = ?, updated_at = ?
		WHERE id = ?`,
		t.Hash, toMillis(t.ExpiresAt), toMillis(time.Now()), id))
}

func (r *usersRepo) ListLiveEmailVerifications(ctx context.Context, now time.Time) ([]domain.User, error) {
	return r.list(ctx,
		`SELECT `+userColumns+` FROM users WHERE email_verification_expires_at > ?`, toMillis(now))
}

func (r *usersRepo) ConsumeEmailVerification(ctx context.Context, id, tokenHash string) error {
	return expectOne(r.db.ExecContext(ctx, `
		UPDATE users
		SET email_verified = 1,
		    email_verification_token_hash = NULL,
		    email_verification_expires_at = NULL,
		    updated_at = ?
		WHERE id = ? AND email_verification_token_hash = ?`,
		toMillis(time.Now()), id, tokenHash))
}

func (r *usersRepo) ClearExpiredTokens(ctx context.Context, now time.Time) (int64, error) {
	cutoff := toMillis(now)
	resets, err := rowsAffected(r.db.ExecContext(ctx, `
		UPDATE users
		SET password_reset_token_hash = NULL, password_reset_expires_at = NULL
		WHERE password_reset_expires_at <= ?`, cutoff))
	if err != nil {
		return 0, err
	}
	verifications, err := rowsAffected(r.db.ExecContext(ctx, `
		UPDATE users
		SET email_verification_token_hash = NULL, email_verification_expires_at = NULL
		WHERE email_verification_expires_at <= ?`, cutoff))
	if err != nil {
		return resets, err
	}
	return resets + verifications, nil
}

func (r *usersRepo) list(ctx context.Context, query string, args ...any) ([]domain.User, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []domain.User
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, u)
	}
	return out, rows.Err()
}
