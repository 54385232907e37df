package repos

import (
	"context"
	"database/sql"
	"time"
)

type RefreshTokenModel struct {
	ID           string             `db:"id"`
	ChainID      string             `db:"chain_id"`
	Replaces     sql.NullString     `db:"replaces"`
	Identity     string             `db:"identity"`
	Kind         IdentityKind       `db:"kind"`
	Verification VerificationStatus `db:"verification"`
	TokenHash    []byte             `db:"token_hash"`
	CreatedAt    int64              `db:"created_at"`
	Expires      int64              `db:"expires"`
	Rotated      bool               `db:"rotated"`
	Revoked      bool               `db:"revoked"`
}

func (m *RefreshTokenModel) Claims() Claims {
	return Claims{Kind: m.Kind, Verification: m.Verification}
}

type RefreshTokenRepository interface {
	Create(ctx context.Context, token *RefreshTokenModel) error

	// FindByHash returns the record for the given token hash regardless of its
	// rotated/revoked state so callers can distinguish reuse from absence.
	FindByHash(ctx context.Context, tokenHash []byte) (*RefreshTokenModel, error)

	// MarkRotated conditionally marks the token rotated. It returns ErrNoRecord
	// when the token was already rotated or revoked, which makes concurrent
	// rotation a single-winner race.
	MarkRotated(ctx context.Context, id string) error

	// RevokeChain revokes every token in the rotation chain and returns the
	// affected records so their identifiers can be added to the revocation set.
	RevokeChain(ctx context.Context, chainID string) ([]RefreshTokenModel, error)

	// RevokeByIdentity revokes every refresh token of an identity across all
	// chains. Used for administrative lockout.
	RevokeByIdentity(ctx context.Context, identity string) ([]RefreshTokenModel, error)

	DeleteExpiredBefore(ctx context.Context, cutoff time.Time) (int64, error)
}
