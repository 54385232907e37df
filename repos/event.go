package repos

import (
	"context"
	"database/sql"
	"time"
)

type SecurityEventKind string

var (
	EventLinkRequested      SecurityEventKind = "link-requested"
	EventLinkVerified       SecurityEventKind = "link-verified"
	EventLinkRejected       SecurityEventKind = "link-rejected"
	EventTokenRefreshed     SecurityEventKind = "token-refreshed"
	EventTokenRevoked       SecurityEventKind = "token-revoked"
	EventSuspiciousActivity SecurityEventKind = "suspicious-activity"
)

type SecurityEventModel struct {
	ID        string            `db:"id"`
	CreatedAt int64             `db:"created_at"`
	Identity  sql.NullString    `db:"identity"`
	Kind      SecurityEventKind `db:"kind"`
	SourceIP  string            `db:"source_ip"`
	Metadata  []byte            `db:"metadata"`
}

// SecurityEventRepository is append-only: events are never mutated and only
// deleted by retention cleanup.
type SecurityEventRepository interface {
	Create(ctx context.Context, event *SecurityEventModel) error

	CountByIdentitySince(ctx context.Context, identity string, kind SecurityEventKind, since time.Time) (int, error)
	CountByIPSince(ctx context.Context, sourceIP string, kind SecurityEventKind, since time.Time) (int, error)

	// FindByIdentity returns the newest events for an identity, newest first.
	FindByIdentity(ctx context.Context, identity string, limit int) ([]SecurityEventModel, error)

	DeleteBefore(ctx context.Context, cutoff time.Time) (int64, error)
}
