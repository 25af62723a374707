package sqlite

import (
	"context"
	"time"

	"github.com/aussiebroadwan/iworkcore/internal/identity/domain"
)

type refreshTokensRepo struct {
	db dbtx
}

func (r *refreshTokensRepo) CreateRefreshToken(ctx context.Context, t domain.RefreshToken) error {
	createdAt := t.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now()
	}
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO refresh_tokens (id, user_id, token_hash, expires_at, created_at)
		VALUES (?, ?, ?, ?, ?)`,
		t.ID, t.UserID, t.TokenHash, toMillis(t.ExpiresAt), toMillis(createdAt),
	)
	return mapUnique(err)
}

func (r *refreshTokensRepo) GetRefreshToken(
	ctx context.Context,
	userID, tokenHash string,
	now time.Time,
) (domain.RefreshToken, error) {
	var (
		t                    domain.RefreshToken
		expiresAt, createdAt int64
	)
	err := r.db.QueryRowContext(ctx, `
		SELECT id, user_id, token_hash, expires_at, created_at
		FROM refresh_tokens
		WHERE user_id = ? AND token_hash = ? AND expires_at > ?
		LIMIT 1`, userID, tokenHash, toMillis(now)).
		Scan(&t.ID, &t.UserID, &t.TokenHash, &expiresAt, &createdAt)
	if err != nil {
		return domain.RefreshToken{}, mapNotFound(err)
	}
	t.ExpiresAt = fromMillis(expiresAt)
	t.CreatedAt = fromMillis(createdAt)
	return t, nil
}

func (r *refreshTokensRepo) DeleteRefreshToken(ctx context.Context, userID, tokenHash string) error {
	_, err := r.db.ExecContext(ctx,
		`DELETE FROM refresh_tokens WHERE user_id = ? AND token_hash = ?`, userID, tokenHash)
	return err
}

func (r *refreshTokensRepo) DeleteUserRefreshTokens(ctx context.Context, userID string) error {
	_, err := r.db.ExecContext(ctx, `DELETE FROM refresh_tokens WHERE user_id = ?`, userID)
	return err
}

func (r *refreshTokensRepo) PruneRefreshTokens(
	ctx context.Context,
	userID string,
	now time.Time,
	keep int,
) error {
	cutoff := toMillis(now)
	_, err := r.db.ExecContext(ctx, `
		DELETE FROM refresh_tokens
		WHERE user_id = ?
		  AND (expires_at <= ?
		       OR id NOT IN (
		           SELECT id FROM refresh_tokens
		           WHERE user_id = ? AND expires_at > ?
		           ORDER BY created_at DESC, id DESC
		           LIMIT ?))`,
		userID, cutoff, userID, cutoff, max(keep, 0))
	return err
}

func (r *refreshTokensRepo) CountRefreshTokens(ctx context.Context, userID string) (int, error) {
	var n int
	err := r.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM refresh_tokens WHERE user_id = ?`, userID).Scan(&n)
	return n, err
}

func (r *refreshTokensRepo) DeleteExpiredRefreshTokens(ctx context.Context, now time.Time) (int64, error) {
	return rowsAffected(r.db.ExecContext(ctx,
		`DELETE FROM refresh_tokens WHERE expires_at <= ?`, toMillis(now)))
}
