package postgres

import (
	"context"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/safejob-nl/auth/repos"
)

type securityEventRepository struct {
	db *sqlx.DB
}

func (d *DB) NewSecurityEventRepository() repos.SecurityEventRepository {
	return &securityEventRepository{
		db: d.db,
	}
}

func (r *securityEventRepository) Create(ctx context.Context, event *repos.SecurityEventModel) error {
	_, err := r.db.ExecContext(ctx, "INSERT INTO security_events (id, created_at, identity, kind, source_ip, metadata) VALUES ($1, $2, $3, $4, $5, $6)",
		event.ID, event.CreatedAt, event.Identity, event.Kind, event.SourceIP, event.Metadata)
	return repoErr("create security event: %w", err)
}

func (r *securityEventRepository) CountByIdentitySince(ctx context.Context, identity string, kind repos.SecurityEventKind, since time.Time) (int, error) {
	var count int
	err := r.db.GetContext(ctx, &count, "SELECT COUNT(*) FROM security_events WHERE identity = $1 AND kind = $2 AND created_at >= $3", identity, kind, since.Unix())
	if err != nil {
		return 0, repoErr("count security events by identity: %w", err)
	}
	return count, nil
}

func (r *securityEventRepository) CountByIPSince(ctx context.Context, sourceIP string, kind repos.SecurityEventKind, since time.Time) (int, error) {
	var count int
	err := r.db.GetContext(ctx, &count, "SELECT COUNT(*) FROM security_events WHERE source_ip = $1 AND kind = $2 AND created_at >= $3", sourceIP, kind, since.Unix())
	if err != nil {
		return 0, repoErr("count security events by IP: %w", err)
	}
	return count, nil
}

func (r *securityEventRepository) FindByIdentity(ctx context.Context, identity string, limit int) ([]repos.SecurityEventModel, error) {
	var events []repos.SecurityEventModel
	err := r.db.SelectContext(ctx, &events, "SELECT * FROM security_events WHERE identity = $1 ORDER BY created_at DESC LIMIT $2", identity, limit)
	if err != nil {
		return nil, repoErr("find security events: %w", err)
	}
	return events, nil
}

func (r *securityEventRepository) DeleteBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	result, err := r.db.ExecContext(ctx, "DELETE FROM security_events WHERE created_at < $1", cutoff.Unix())
	if err != nil {
		return 0, repoErr("delete security events: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return 0, repoErr("delete security events: %w", err)
	}
	return rows, nil
}
