package postgres

import (
	"context"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/safejob-nl/auth/repos"
)

type revokedTokenRepository struct {
	db *sqlx.DB
}

func (d *DB) NewRevokedTokenRepository() repos.RevokedTokenRepository {
	return &revokedTokenRepository{
		db: d.db,
	}
}

func (r *revokedTokenRepository) Add(ctx context.Context, tokenID string, expires time.Time, reason string) error {
	_, err := r.db.ExecContext(ctx, "INSERT INTO revoked_tokens (token_id, revoked_at, expires, reason) VALUES ($1, $2, $3, $4) ON CONFLICT (token_id) DO NOTHING",
		tokenID, time.Now().Unix(), expires.Unix(), reason)
	return repoErr("add revoked token: %w", err)
}

func (r *revokedTokenRepository) IsRevoked(ctx context.Context, tokenID string) (bool, error) {
	var count int
	err := r.db.GetContext(ctx, &count, "SELECT COUNT(*) FROM revoked_tokens WHERE token_id = $1", tokenID)
	if err != nil {
		return false, repoErr("check revoked token: %w", err)
	}
	return count > 0, nil
}

func (r *revokedTokenRepository) DeleteExpiredBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	result, err := r.db.ExecContext(ctx, "DELETE FROM revoked_tokens WHERE expires < $1", cutoff.Unix())
	if err != nil {
		return 0, repoErr("delete expired revoked tokens: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return 0, repoErr("delete expired revoked tokens: %w", err)
	}
	return rows, nil
}
