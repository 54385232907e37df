package sqlite

import (
	"context"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/safejob-nl/auth/repos"
)

type refreshTokenRepository struct {
	db *sqlx.DB
}

func (d *DB) NewRefreshTokenRepository() repos.RefreshTokenRepository {
	return &refreshTokenRepository{
		db: d.db,
	}
}

func (r *refreshTokenRepository) Create(ctx context.Context, token *repos.RefreshTokenModel) error {
	_, err := r.db.ExecContext(ctx, "INSERT INTO refresh_tokens (id, chain_id, replaces, identity, kind, verification, token_hash, created_at, expires) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)",
		token.ID, token.ChainID, token.Replaces, token.Identity, token.Kind, token.Verification, token.TokenHash, token.CreatedAt, token.Expires)
	return repoErr("create refresh token: %w", err)
}

func (r *refreshTokenRepository) FindByHash(ctx context.Context, tokenHash []byte) (*repos.RefreshTokenModel, error) {
	var token repos.RefreshTokenModel
	err := r.db.GetContext(ctx, &token, "SELECT * FROM refresh_tokens WHERE token_hash = ?", tokenHash)
	if err != nil {
		return nil, repoErr("find refresh token: %w", err)
	}
	return &token, nil
}

func (r *refreshTokenRepository) MarkRotated(ctx context.Context, id string) error {
	result, err := r.db.ExecContext(ctx, "UPDATE refresh_tokens SET rotated = 1 WHERE id = ? AND rotated = 0 AND revoked = 0", id)
	return repoErrResult("rotate refresh token: %w", result, err)
}

func (r *refreshTokenRepository) RevokeChain(ctx context.Context, chainID string) ([]repos.RefreshTokenModel, error) {
	var tokens []repos.RefreshTokenModel
	err := r.db.SelectContext(ctx, &tokens, "UPDATE refresh_tokens SET revoked = 1 WHERE chain_id = ? RETURNING *", chainID)
	if err != nil {
		return nil, repoErr("revoke refresh token chain: %w", err)
	}
	return tokens, nil
}

func (r *refreshTokenRepository) RevokeByIdentity(ctx context.Context, identity string) ([]repos.RefreshTokenModel, error) {
	var tokens []repos.RefreshTokenModel
	err := r.db.SelectContext(ctx, &tokens, "UPDATE refresh_tokens SET revoked = 1 WHERE identity = ? RETURNING *", identity)
	if err != nil {
		return nil, repoErr("revoke refresh tokens by identity: %w", err)
	}
	return tokens, nil
}

func (r *refreshTokenRepository) DeleteExpiredBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	result, err := r.db.ExecContext(ctx, "DELETE FROM refresh_tokens WHERE expires < ?", cutoff.Unix())
	if err != nil {
		return 0, repoErr("delete expired refresh tokens: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return 0, repoErr("delete expired refresh tokens: %w", err)
	}
	return rows, nil
}
