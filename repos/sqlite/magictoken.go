package sqlite

import (
	"context"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/oklog/ulid/v2"

	"github.com/safejob-nl/auth/repos"
)

type magicTokenRepository struct {
	db *sqlx.DB
}

func (d *DB) NewMagicTokenRepository() repos.MagicTokenRepository {
	return &magicTokenRepository{
		db: d.db,
	}
}

func (r *magicTokenRepository) Create(ctx context.Context, identity string, purpose repos.MagicTokenPurpose, tokenHash []byte, lifetime time.Duration, requestIP, userAgent string) (*repos.MagicTokenModel, error) {
	token := &repos.MagicTokenModel{
		ID:        ulid.Make().String(),
		CreatedAt: time.Now().Unix(),
		Identity:  identity,
		Purpose:   purpose,
		TokenHash: tokenHash,
		Expires:   time.Now().Add(lifetime).Unix(),
		RequestIP: requestIP,
		UserAgent: userAgent,
	}

	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, repoErr("create magic token: %w", err)
	}
	defer tx.Rollback()

	// supersede the previously active token for this identity and purpose
	_, err = tx.ExecContext(ctx, "UPDATE magic_link_tokens SET superseded = 1 WHERE identity = ? AND purpose = ? AND consumed = 0 AND superseded = 0", identity, purpose)
	if err != nil {
		return nil, repoErr("supersede magic tokens: %w", err)
	}

	_, err = tx.ExecContext(ctx, "INSERT INTO magic_link_tokens (id, created_at, identity, purpose, token_hash, expires, request_ip, user_agent) VALUES (?, ?, ?, ?, ?, ?, ?, ?)",
		token.ID, token.CreatedAt, token.Identity, token.Purpose, token.TokenHash, token.Expires, token.RequestIP, token.UserAgent)
	if err != nil {
		return nil, repoErr("create magic token: %w", err)
	}

	if err = tx.Commit(); err != nil {
		return nil, repoErr("create magic token: %w", err)
	}
	return token, nil
}

func (r *magicTokenRepository) Consume(ctx context.Context, purpose repos.MagicTokenPurpose, tokenHash []byte, now time.Time) (string, error) {
	var identity string
	err := r.db.GetContext(ctx, &identity, "UPDATE magic_link_tokens SET consumed = 1 WHERE token_hash = ? AND purpose = ? AND consumed = 0 AND superseded = 0 AND expires > ? RETURNING identity",
		tokenHash, purpose, now.Unix())
	if err != nil {
		return "", repoErr("consume magic token: %w", err)
	}
	return identity, nil
}

func (r *magicTokenRepository) Inspect(ctx context.Context, tokenHash []byte) (*repos.MagicTokenModel, error) {
	var token repos.MagicTokenModel
	err := r.db.GetContext(ctx, &token, "SELECT * FROM magic_link_tokens WHERE token_hash = ?", tokenHash)
	if err != nil {
		return nil, repoErr("inspect magic token: %w", err)
	}
	return &token, nil
}

func (r *magicTokenRepository) DeleteExpiredBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	result, err := r.db.ExecContext(ctx, "DELETE FROM magic_link_tokens WHERE expires < ?", cutoff.Unix())
	if err != nil {
		return 0, repoErr("delete expired magic tokens: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return 0, repoErr("delete expired magic tokens: %w", err)
	}
	return rows, nil
}
