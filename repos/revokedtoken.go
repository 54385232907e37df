package repos

import (
	"context"
	"time"
)

type RevokedTokenModel struct {
	TokenID   string `db:"token_id"`
	RevokedAt int64  `db:"revoked_at"`
	Expires   int64  `db:"expires"`
	Reason    string `db:"reason"`
}

type RevokedTokenRepository interface {
	// Add inserts a revocation record. Adding an already revoked token is not
	// an error; revocation is idempotent.
	Add(ctx context.Context, tokenID string, expires time.Time, reason string) error

	IsRevoked(ctx context.Context, tokenID string) (bool, error)

	// DeleteExpiredBefore drops records whose underlying token has passed its
	// natural expiry, keeping the set bounded.
	DeleteExpiredBefore(ctx context.Context, cutoff time.Time) (int64, error)
}
