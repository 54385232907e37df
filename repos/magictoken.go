package repos

import (
	"context"
	"time"
)

type MagicTokenPurpose string

var (
	MagicTokenLogin       MagicTokenPurpose = "login"
	MagicTokenVerifyEmail MagicTokenPurpose = "verify-email"
)

type MagicTokenModel struct {
	ID         string            `db:"id"`
	CreatedAt  int64             `db:"created_at"`
	Identity   string            `db:"identity"`
	Purpose    MagicTokenPurpose `db:"purpose"`
	TokenHash  []byte            `db:"token_hash"`
	Expires    int64             `db:"expires"`
	Consumed   bool              `db:"consumed"`
	Superseded bool              `db:"superseded"`
	RequestIP  string            `db:"request_ip"`
	UserAgent  string            `db:"user_agent"`
}

type MagicTokenRepository interface {
	// Create stores a new token record and, in the same transaction, marks any
	// prior unconsumed record for the same (identity, purpose) superseded so
	// that at most one token per identity and purpose is actionable.
	Create(ctx context.Context, identity string, purpose MagicTokenPurpose, tokenHash []byte, lifetime time.Duration, requestIP, userAgent string) (*MagicTokenModel, error)

	// Consume atomically marks the record matching hash and purpose consumed,
	// provided it is unconsumed, unsuperseded, and unexpired at now. Exactly one
	// concurrent caller can win. Returns the token's identity on success and
	// ErrNoRecord when no actionable record matches.
	Consume(ctx context.Context, purpose MagicTokenPurpose, tokenHash []byte, now time.Time) (identity string, err error)

	// Inspect looks up a record by hash regardless of its state. Used to
	// classify consume failures for the security event log only.
	Inspect(ctx context.Context, tokenHash []byte) (*MagicTokenModel, error)

	// DeleteExpiredBefore removes records whose expiry predates cutoff.
	// Storage hygiene only; correctness never depends on it.
	DeleteExpiredBefore(ctx context.Context, cutoff time.Time) (int64, error)
}
