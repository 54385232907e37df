package services

import (
	"context"
	"crypto/rand"
	"crypto/rsa"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/oklog/ulid/v2"

	"github.com/juho05/log"

	"github.com/safejob-nl/auth/config"
	"github.com/safejob-nl/auth/repos"
)

// TokenPair is the result of a successful authentication or rotation.
type TokenPair struct {
	Access  string `json:"access"`
	Refresh string `json:"refresh"`
}

type SessionService interface {
	PublicJWTKey() *rsa.PublicKey

	// IssuePair mints a short-lived access token and a refresh token rooting a
	// new rotation chain for the given identity.
	IssuePair(ctx context.Context, identity string, claims repos.Claims) (TokenPair, error)

	// Refresh rotates the presented refresh token: the token becomes unusable
	// and a new pair on the same chain is returned. Reuse of an already
	// rotated token revokes the entire chain; the caller only ever sees
	// ErrUnauthenticated.
	Refresh(ctx context.Context, rawRefresh string, reqCtx RequestContext) (TokenPair, error)

	// ValidateAccess verifies the signed access token locally and checks its
	// identifier against the revocation set. No other I/O is performed.
	ValidateAccess(ctx context.Context, rawAccess string) (identity string, claims repos.Claims, err error)

	RevokeRefreshToken(ctx context.Context, rawRefresh string, reason string, reqCtx RequestContext) error
	RevokeAccessToken(ctx context.Context, rawAccess string, reason string, reqCtx RequestContext) error

	// Revoke marks an arbitrary token identifier unusable. Used by the
	// operational CLI.
	Revoke(ctx context.Context, tokenID string, reason string) error

	// RevokeIdentity revokes every refresh token of an identity across all
	// rotation chains. Used by the operational CLI for administrative lockout.
	RevokeIdentity(ctx context.Context, identity string, reason string) error
}

type accessClaims struct {
	jwt.RegisteredClaims
	Kind         repos.IdentityKind       `json:"kind"`
	Verification repos.VerificationStatus `json:"verification,omitempty"`
}

type sessionService struct {
	refreshRepo repos.RefreshTokenRepository
	revokedRepo repos.RevokedTokenRepository
	systemRepo  repos.SystemRepository
	events      SecurityEventService

	jwtKeyPriv *rsa.PrivateKey
	jwtKeyPub  *rsa.PublicKey

	now func() time.Time
}

func NewSessionService(refreshRepository repos.RefreshTokenRepository, revokedRepository repos.RevokedTokenRepository, systemRepository repos.SystemRepository, events SecurityEventService) (SessionService, error) {
	s := &sessionService{
		refreshRepo: refreshRepository,
		revokedRepo: revokedRepository,
		systemRepo:  systemRepository,
		events:      events,
		now:         time.Now,
	}
	err := s.initKeys(context.Background())
	if err != nil {
		return nil, err
	}
	return s, nil
}

func (s *sessionService) initKeys(ctx context.Context) error {
	if priv, pub, err := s.systemRepo.GetJWTKeys(ctx); err == nil {
		s.jwtKeyPriv = priv
		s.jwtKeyPub = pub
		log.Info("Using existing JWT keys...")
	} else if errors.Is(err, repos.ErrNoRecord) {
		log.Info("Generating new JWT keys...")
		key, err := rsa.GenerateKey(rand.Reader, 2048)
		if err != nil {
			return fmt.Errorf("generate JWT RSA keys: %w", err)
		}
		err = s.systemRepo.InsertJWTKeys(ctx, key, &key.PublicKey)
		if err != nil {
			return fmt.Errorf("init keys: %w", err)
		}
		s.jwtKeyPriv = key
		s.jwtKeyPub = &key.PublicKey
	} else {
		return fmt.Errorf("init keys: %w", err)
	}
	return nil
}

func (s *sessionService) PublicJWTKey() *rsa.PublicKey {
	return s.jwtKeyPub
}

func (s *sessionService) IssuePair(ctx context.Context, identity string, claims repos.Claims) (TokenPair, error) {
	return s.issuePair(ctx, identity, claims, ulid.Make().String(), "")
}

func (s *sessionService) issuePair(ctx context.Context, identity string, claims repos.Claims, chainID, replaces string) (TokenPair, error) {
	access, err := s.createAccessToken(identity, claims)
	if err != nil {
		return TokenPair{}, fmt.Errorf("issue token pair: %w", err)
	}

	refresh := GenerateToken(128)
	token := &repos.RefreshTokenModel{
		ID:           ulid.Make().String(),
		ChainID:      chainID,
		Replaces:     sql.NullString{String: replaces, Valid: replaces != ""},
		Identity:     identity,
		Kind:         claims.Kind,
		Verification: claims.Verification,
		TokenHash:    HashToken(refresh),
		CreatedAt:    s.now().Unix(),
		Expires:      s.now().Add(config.RefreshTokenLifetime()).Unix(),
	}
	err = s.refreshRepo.Create(ctx, token)
	if err != nil {
		log.Errorf("Failed to store refresh token: %s", err)
		return TokenPair{}, fmt.Errorf("issue token pair: %w", ErrUnavailable)
	}

	return TokenPair{
		Access:  access,
		Refresh: refresh,
	}, nil
}

func (s *sessionService) createAccessToken(identity string, claims repos.Claims) (string, error) {
	token := jwt.NewWithClaims(jwt.SigningMethodRS256, accessClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        ulid.Make().String(),
			Issuer:    config.BaseURL(),
			Subject:   identity,
			ExpiresAt: jwt.NewNumericDate(s.now().Add(config.AccessTokenLifetime())),
			IssuedAt:  jwt.NewNumericDate(s.now()),
		},
		Kind:         claims.Kind,
		Verification: claims.Verification,
	})
	return token.SignedString(s.jwtKeyPriv)
}

func (s *sessionService) Refresh(ctx context.Context, rawRefresh string, reqCtx RequestContext) (TokenPair, error) {
	token, err := s.refreshRepo.FindByHash(ctx, HashToken(rawRefresh))
	if err != nil {
		if errors.Is(err, repos.ErrNoRecord) {
			return TokenPair{}, fmt.Errorf("refresh: %w", ErrUnauthenticated)
		}
		log.Errorf("Failed to look up refresh token: %s", err)
		return TokenPair{}, fmt.Errorf("refresh: %w", ErrUnavailable)
	}

	if token.Rotated || token.Revoked {
		// Reuse of a rotated token is a compromise signal: kill the chain.
		s.revokeChain(ctx, token, reqCtx)
		return TokenPair{}, fmt.Errorf("refresh: %w", ErrUnauthenticated)
	}
	if token.Expires <= s.now().Unix() {
		return TokenPair{}, fmt.Errorf("refresh: %w", ErrUnauthenticated)
	}

	err = s.refreshRepo.MarkRotated(ctx, token.ID)
	if err != nil {
		if errors.Is(err, repos.ErrNoRecord) {
			// a concurrent rotation won the race
			return TokenPair{}, fmt.Errorf("refresh: %w", ErrTokenInvalid)
		}
		log.Errorf("Failed to rotate refresh token: %s", err)
		return TokenPair{}, fmt.Errorf("refresh: %w", ErrUnavailable)
	}

	err = s.revokedRepo.Add(ctx, token.ID, time.Unix(token.Expires, 0), "rotated")
	if err != nil {
		log.Errorf("Failed to add rotated token to revocation set: %s", err)
	}

	pair, err := s.issuePair(ctx, token.Identity, token.Claims(), token.ChainID, token.ID)
	if err != nil {
		return TokenPair{}, err
	}

	s.events.Record(ctx, repos.EventTokenRefreshed, token.Identity, reqCtx.IP, map[string]any{
		"chain": token.ChainID,
	})
	return pair, nil
}

func (s *sessionService) revokeChain(ctx context.Context, token *repos.RefreshTokenModel, reqCtx RequestContext) {
	revoked, err := s.refreshRepo.RevokeChain(ctx, token.ChainID)
	if err != nil {
		log.Errorf("Failed to revoke rotation chain %s: %s", token.ChainID, err)
	}
	for _, t := range revoked {
		err = s.revokedRepo.Add(ctx, t.ID, time.Unix(t.Expires, 0), "chain-revoked")
		if err != nil {
			log.Errorf("Failed to add token %s to revocation set: %s", t.ID, err)
		}
	}
	s.events.Record(ctx, repos.EventSuspiciousActivity, token.Identity, reqCtx.IP, map[string]any{
		"chain":    token.ChainID,
		"reason":   "refresh-token-reuse",
		"severity": "high",
	})
}

func (s *sessionService) ValidateAccess(ctx context.Context, rawAccess string) (string, repos.Claims, error) {
	var claims accessClaims
	_, err := jwt.ParseWithClaims(rawAccess, &claims, func(t *jwt.Token) (any, error) {
		return s.jwtKeyPub, nil
	}, jwt.WithValidMethods([]string{"RS256"}), jwt.WithTimeFunc(func() time.Time {
		return s.now()
	}))
	if err != nil {
		return "", repos.Claims{}, fmt.Errorf("validate access token: %w", ErrUnauthenticated)
	}

	revoked, err := s.revokedRepo.IsRevoked(ctx, claims.ID)
	if err != nil {
		log.Errorf("Failed to check revocation set: %s", err)
		return "", repos.Claims{}, fmt.Errorf("validate access token: %w", ErrUnavailable)
	}
	if revoked {
		return "", repos.Claims{}, fmt.Errorf("validate access token: %w", ErrUnauthenticated)
	}

	return claims.Subject, repos.Claims{
		Kind:         claims.Kind,
		Verification: claims.Verification,
	}, nil
}

func (s *sessionService) RevokeRefreshToken(ctx context.Context, rawRefresh string, reason string, reqCtx RequestContext) error {
	token, err := s.refreshRepo.FindByHash(ctx, HashToken(rawRefresh))
	if err != nil {
		if errors.Is(err, repos.ErrNoRecord) {
			return fmt.Errorf("revoke refresh token: %w", ErrUnauthenticated)
		}
		log.Errorf("Failed to look up refresh token: %s", err)
		return fmt.Errorf("revoke refresh token: %w", ErrUnavailable)
	}

	err = s.revokedRepo.Add(ctx, token.ID, time.Unix(token.Expires, 0), reason)
	if err != nil {
		log.Errorf("Failed to add token to revocation set: %s", err)
		return fmt.Errorf("revoke refresh token: %w", ErrUnavailable)
	}
	// best effort: keep the refresh row in sync with the revocation set
	if err := s.refreshRepo.MarkRotated(ctx, token.ID); err != nil && !errors.Is(err, repos.ErrNoRecord) {
		log.Errorf("Failed to mark refresh token rotated: %s", err)
	}

	s.events.Record(ctx, repos.EventTokenRevoked, token.Identity, reqCtx.IP, map[string]any{
		"reason": reason,
	})
	return nil
}

func (s *sessionService) RevokeAccessToken(ctx context.Context, rawAccess string, reason string, reqCtx RequestContext) error {
	identity, _, err := s.ValidateAccess(ctx, rawAccess)
	if err != nil {
		return fmt.Errorf("revoke access token: %w", err)
	}
	var claims accessClaims
	_, _, err = jwt.NewParser().ParseUnverified(rawAccess, &claims)
	if err != nil {
		return fmt.Errorf("revoke access token: %w", ErrUnauthenticated)
	}

	err = s.revokedRepo.Add(ctx, claims.ID, claims.ExpiresAt.Time, reason)
	if err != nil {
		log.Errorf("Failed to add token to revocation set: %s", err)
		return fmt.Errorf("revoke access token: %w", ErrUnavailable)
	}

	s.events.Record(ctx, repos.EventTokenRevoked, identity, reqCtx.IP, map[string]any{
		"reason": reason,
	})
	return nil
}

func (s *sessionService) RevokeIdentity(ctx context.Context, identity string, reason string) error {
	revoked, err := s.refreshRepo.RevokeByIdentity(ctx, identity)
	if err != nil {
		return fmt.Errorf("revoke identity: %w", err)
	}
	for _, t := range revoked {
		err = s.revokedRepo.Add(ctx, t.ID, time.Unix(t.Expires, 0), reason)
		if err != nil {
			return fmt.Errorf("revoke identity: %w", err)
		}
	}
	s.events.Record(ctx, repos.EventTokenRevoked, identity, "", map[string]any{
		"reason": reason,
		"scope":  "identity",
		"count":  len(revoked),
	})
	return nil
}

func (s *sessionService) Revoke(ctx context.Context, tokenID string, reason string) error {
	err := s.revokedRepo.Add(ctx, tokenID, s.now().Add(config.RefreshTokenLifetime()), reason)
	if err != nil {
		return fmt.Errorf("revoke token: %w", err)
	}
	s.events.Record(ctx, repos.EventTokenRevoked, "", "", map[string]any{
		"reason": reason,
		"token":  tokenID,
	})
	return nil
}
