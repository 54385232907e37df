package services

import (
	"context"
	"database/sql"
	"encoding/json"
	"time"

	"github.com/juho05/log"
	"github.com/oklog/ulid/v2"

	"github.com/safejob-nl/auth/repos"
)

// SecurityEventService is the append-only sink both token services report to.
// Record never fails the caller: authentication must not be blocked by a
// logging outage.
type SecurityEventService interface {
	Record(ctx context.Context, kind repos.SecurityEventKind, identity, sourceIP string, metadata map[string]any)
	CountByIdentitySince(ctx context.Context, identity string, kind repos.SecurityEventKind, window time.Duration) (int, error)
	CountByIPSince(ctx context.Context, sourceIP string, kind repos.SecurityEventKind, window time.Duration) (int, error)
	ListByIdentity(ctx context.Context, identity string, limit int) ([]repos.SecurityEventModel, error)
	DeleteBefore(ctx context.Context, cutoff time.Time) (int64, error)
}

type securityEventService struct {
	eventRepo repos.SecurityEventRepository

	now func() time.Time
}

func NewSecurityEventService(eventRepository repos.SecurityEventRepository) SecurityEventService {
	return &securityEventService{
		eventRepo: eventRepository,
		now:       time.Now,
	}
}

func (s *securityEventService) Record(ctx context.Context, kind repos.SecurityEventKind, identity, sourceIP string, metadata map[string]any) {
	blob := []byte("{}")
	if len(metadata) > 0 {
		b, err := json.Marshal(metadata)
		if err != nil {
			log.Errorf("Failed to encode security event metadata: %s", err)
		} else {
			blob = b
		}
	}
	event := &repos.SecurityEventModel{
		ID:        ulid.Make().String(),
		CreatedAt: s.now().Unix(),
		Identity:  sql.NullString{String: identity, Valid: identity != ""},
		Kind:      kind,
		SourceIP:  sourceIP,
		Metadata:  blob,
	}
	err := s.eventRepo.Create(ctx, event)
	if err != nil {
		log.Errorf("Failed to record security event '%s': %s", kind, err)
	}
}

func (s *securityEventService) CountByIdentitySince(ctx context.Context, identity string, kind repos.SecurityEventKind, window time.Duration) (int, error) {
	count, err := s.eventRepo.CountByIdentitySince(ctx, identity, kind, s.now().Add(-window))
	if err != nil {
		return 0, ErrUnavailable
	}
	return count, nil
}

func (s *securityEventService) CountByIPSince(ctx context.Context, sourceIP string, kind repos.SecurityEventKind, window time.Duration) (int, error) {
	count, err := s.eventRepo.CountByIPSince(ctx, sourceIP, kind, s.now().Add(-window))
	if err != nil {
		return 0, ErrUnavailable
	}
	return count, nil
}

func (s *securityEventService) ListByIdentity(ctx context.Context, identity string, limit int) ([]repos.SecurityEventModel, error) {
	return s.eventRepo.FindByIdentity(ctx, identity, limit)
}

func (s *securityEventService) DeleteBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	return s.eventRepo.DeleteBefore(ctx, cutoff)
}
