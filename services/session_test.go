package services

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/safejob-nl/auth/repos"
)

func newSessionEnv(t *testing.T) (*sessionService, SecurityEventService) {
	t.Helper()
	db := newTestDB(t)
	events := NewSecurityEventService(db.NewSecurityEventRepository())
	svc, err := NewSessionService(db.NewRefreshTokenRepository(), db.NewRevokedTokenRepository(), db.NewSystemRepository(), events)
	require.NoError(t, err)
	return svc.(*sessionService), events
}

func TestSession_RoundTrip(t *testing.T) {
	t.Parallel()
	svc, _ := newSessionEnv(t)
	ctx := context.Background()

	claims := repos.Claims{Kind: repos.IdentityEmployer, Verification: repos.VerificationApproved}
	pair, err := svc.IssuePair(ctx, "employer@example.com", claims)
	require.NoError(t, err)
	require.NotEmpty(t, pair.Access)
	require.NotEmpty(t, pair.Refresh)

	identity, gotClaims, err := svc.ValidateAccess(ctx, pair.Access)
	require.NoError(t, err)
	assert.Equal(t, "employer@example.com", identity)
	assert.Equal(t, claims, gotClaims)
}

func TestSession_AccessTokenExpiry(t *testing.T) {
	t.Parallel()
	svc, _ := newSessionEnv(t)
	ctx := context.Background()

	pair, err := svc.IssuePair(ctx, "user@example.com", repos.Claims{Kind: repos.IdentityCandidate})
	require.NoError(t, err)

	svc.now = func() time.Time {
		return time.Now().Add(16 * time.Minute)
	}
	_, _, err = svc.ValidateAccess(ctx, pair.Access)
	assert.ErrorIs(t, err, ErrUnauthenticated)
}

func TestSession_MalformedAccessToken(t *testing.T) {
	t.Parallel()
	svc, _ := newSessionEnv(t)

	_, _, err := svc.ValidateAccess(context.Background(), "not.a.jwt")
	assert.ErrorIs(t, err, ErrUnauthenticated)

	_, _, err = svc.ValidateAccess(context.Background(), "")
	assert.ErrorIs(t, err, ErrUnauthenticated)
}

func TestSession_RefreshRotation(t *testing.T) {
	t.Parallel()
	svc, _ := newSessionEnv(t)
	ctx := context.Background()

	pair, err := svc.IssuePair(ctx, "user@example.com", repos.Claims{Kind: repos.IdentityCandidate})
	require.NoError(t, err)

	rotated, err := svc.Refresh(ctx, pair.Refresh, RequestContext{})
	require.NoError(t, err)
	require.NotEmpty(t, rotated.Refresh)
	assert.NotEqual(t, pair.Refresh, rotated.Refresh)

	// the rotated pair keeps the original identity and claims
	identity, claims, err := svc.ValidateAccess(ctx, rotated.Access)
	require.NoError(t, err)
	assert.Equal(t, "user@example.com", identity)
	assert.Equal(t, repos.IdentityCandidate, claims.Kind)
}

func TestSession_RefreshReuseRevokesChain(t *testing.T) {
	t.Parallel()
	svc, events := newSessionEnv(t)
	ctx := context.Background()

	pair, err := svc.IssuePair(ctx, "user@example.com", repos.Claims{Kind: repos.IdentityCandidate})
	require.NoError(t, err)

	rotated, err := svc.Refresh(ctx, pair.Refresh, RequestContext{})
	require.NoError(t, err)

	// reuse of the already rotated token is a compromise signal
	_, err = svc.Refresh(ctx, pair.Refresh, RequestContext{IP: "198.51.100.9"})
	assert.ErrorIs(t, err, ErrUnauthenticated)

	// the legitimate holder's latest refresh token dies with the chain
	_, err = svc.Refresh(ctx, rotated.Refresh, RequestContext{})
	assert.ErrorIs(t, err, ErrUnauthenticated)

	count, err := events.CountByIdentitySince(ctx, "user@example.com", repos.EventSuspiciousActivity, time.Hour)
	require.NoError(t, err)
	assert.GreaterOrEqual(t, count, 1)
}

func TestSession_RefreshExpired(t *testing.T) {
	t.Parallel()
	svc, _ := newSessionEnv(t)
	ctx := context.Background()

	pair, err := svc.IssuePair(ctx, "user@example.com", repos.Claims{Kind: repos.IdentityCandidate})
	require.NoError(t, err)

	svc.now = func() time.Time {
		return time.Now().Add(8 * 24 * time.Hour)
	}
	_, err = svc.Refresh(ctx, pair.Refresh, RequestContext{})
	assert.ErrorIs(t, err, ErrUnauthenticated)
}

func TestSession_ConcurrentRefreshSingleWinner(t *testing.T) {
	t.Parallel()
	svc, _ := newSessionEnv(t)
	ctx := context.Background()

	pair, err := svc.IssuePair(ctx, "user@example.com", repos.Claims{Kind: repos.IdentityCandidate})
	require.NoError(t, err)

	const n = 8
	var wg sync.WaitGroup
	results := make(chan error, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := svc.Refresh(ctx, pair.Refresh, RequestContext{})
			results <- err
		}()
	}
	wg.Wait()
	close(results)

	var successes int
	for err := range results {
		if err == nil {
			successes++
		} else {
			require.True(t, errors.Is(err, ErrTokenInvalid) || errors.Is(err, ErrUnauthenticated), "unexpected error: %v", err)
		}
	}
	assert.Equal(t, 1, successes)
}

func TestSession_RevokeAccessToken(t *testing.T) {
	t.Parallel()
	svc, _ := newSessionEnv(t)
	ctx := context.Background()

	pair, err := svc.IssuePair(ctx, "user@example.com", repos.Claims{Kind: repos.IdentityCandidate})
	require.NoError(t, err)

	_, _, err = svc.ValidateAccess(ctx, pair.Access)
	require.NoError(t, err)

	err = svc.RevokeAccessToken(ctx, pair.Access, "logout", RequestContext{})
	require.NoError(t, err)

	_, _, err = svc.ValidateAccess(ctx, pair.Access)
	assert.ErrorIs(t, err, ErrUnauthenticated)
}

func TestSession_RevokeRefreshToken(t *testing.T) {
	t.Parallel()
	svc, events := newSessionEnv(t)
	ctx := context.Background()

	pair, err := svc.IssuePair(ctx, "user@example.com", repos.Claims{Kind: repos.IdentityCandidate})
	require.NoError(t, err)

	err = svc.RevokeRefreshToken(ctx, pair.Refresh, "logout", RequestContext{})
	require.NoError(t, err)

	_, err = svc.Refresh(ctx, pair.Refresh, RequestContext{})
	assert.ErrorIs(t, err, ErrUnauthenticated)

	count, err := events.CountByIdentitySince(ctx, "user@example.com", repos.EventTokenRevoked, time.Hour)
	require.NoError(t, err)
	assert.Equal(t, 1, count)
}

func TestSession_RevokeIdentity(t *testing.T) {
	t.Parallel()
	svc, _ := newSessionEnv(t)
	ctx := context.Background()

	first, err := svc.IssuePair(ctx, "user@example.com", repos.Claims{Kind: repos.IdentityCandidate})
	require.NoError(t, err)
	second, err := svc.IssuePair(ctx, "user@example.com", repos.Claims{Kind: repos.IdentityCandidate})
	require.NoError(t, err)
	other, err := svc.IssuePair(ctx, "other@example.com", repos.Claims{Kind: repos.IdentityCandidate})
	require.NoError(t, err)

	err = svc.RevokeIdentity(ctx, "user@example.com", "administrative")
	require.NoError(t, err)

	_, err = svc.Refresh(ctx, first.Refresh, RequestContext{})
	assert.ErrorIs(t, err, ErrUnauthenticated)
	_, err = svc.Refresh(ctx, second.Refresh, RequestContext{})
	assert.ErrorIs(t, err, ErrUnauthenticated)

	_, err = svc.Refresh(ctx, other.Refresh, RequestContext{})
	assert.NoError(t, err)
}

func TestSession_KeysPersistAcrossRestarts(t *testing.T) {
	t.Parallel()
	db := newTestDB(t)
	events := NewSecurityEventService(db.NewSecurityEventRepository())

	first, err := NewSessionService(db.NewRefreshTokenRepository(), db.NewRevokedTokenRepository(), db.NewSystemRepository(), events)
	require.NoError(t, err)

	pair, err := first.IssuePair(context.Background(), "user@example.com", repos.Claims{Kind: repos.IdentityCandidate})
	require.NoError(t, err)

	second, err := NewSessionService(db.NewRefreshTokenRepository(), db.NewRevokedTokenRepository(), db.NewSystemRepository(), events)
	require.NoError(t, err)

	identity, _, err := second.ValidateAccess(context.Background(), pair.Access)
	require.NoError(t, err)
	assert.Equal(t, "user@example.com", identity)
}
