package services

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"time"

	"github.com/juho05/log"

	"github.com/safejob-nl/auth/config"
	"github.com/safejob-nl/auth/repos"
)

// RequestContext carries per-request metadata recorded for audit. The IP and
// user agent are never enforced at verification so that requesting a link on
// one device and opening it on another keeps working.
type RequestContext struct {
	IP        string
	UserAgent string
}

type MagicLinkService interface {
	// RequestLink issues a single-use link token and hands it to the email
	// collaborator. It succeeds generically regardless of whether the identity
	// is known, so the response cannot be used for enumeration.
	RequestLink(ctx context.Context, identity string, purpose repos.MagicTokenPurpose, reqCtx RequestContext) error

	// VerifyLink consumes the raw secret. A second call with the same secret
	// always fails cleanly; purpose must match the token's purpose even when
	// the digest does.
	VerifyLink(ctx context.Context, rawSecret string, purpose repos.MagicTokenPurpose, reqCtx RequestContext) (identity string, err error)
}

type magicLinkService struct {
	tokenRepo repos.MagicTokenRepository
	events    SecurityEventService
	email     EmailService

	now func() time.Time
}

func NewMagicLinkService(tokenRepository repos.MagicTokenRepository, events SecurityEventService, emailService EmailService) MagicLinkService {
	return &magicLinkService{
		tokenRepo: tokenRepository,
		events:    events,
		email:     emailService,
		now:       time.Now,
	}
}

func (s *magicLinkService) RequestLink(ctx context.Context, identity string, purpose repos.MagicTokenPurpose, reqCtx RequestContext) error {
	count, err := s.events.CountByIdentitySince(ctx, identity, repos.EventLinkRequested, time.Hour)
	if err != nil {
		return fmt.Errorf("request link: %w", err)
	}
	if count >= config.MagicLinkIdentityLimit() {
		return fmt.Errorf("request link: %w", ErrRateLimited)
	}
	if reqCtx.IP != "" {
		count, err = s.events.CountByIPSince(ctx, reqCtx.IP, repos.EventLinkRequested, time.Minute)
		if err != nil {
			return fmt.Errorf("request link: %w", err)
		}
		if count >= config.MagicLinkIPLimit() {
			return fmt.Errorf("request link: %w", ErrRateLimited)
		}
	}

	token := GenerateToken(64)
	tokenHash := HashToken(token)

	_, err = s.tokenRepo.Create(ctx, identity, purpose, tokenHash, config.MagicLinkLifetime(), reqCtx.IP, reqCtx.UserAgent)
	if err != nil {
		log.Errorf("Failed to store magic link token: %s", err)
		return fmt.Errorf("request link: %w", ErrUnavailable)
	}

	s.events.Record(ctx, repos.EventLinkRequested, identity, reqCtx.IP, map[string]any{
		"purpose": purpose,
	})

	link := fmt.Sprintf("%s/auth/verify?token=%s", config.FrontendURL(), url.QueryEscape(token))
	go func() {
		var subject, message string
		switch purpose {
		case repos.MagicTokenVerifyEmail:
			subject, message = "Confirm your email address", "verifyEmail"
		default:
			subject, message = "Sign in to Safe Job", "magicLink"
		}
		err := s.email.SendEmail(identity, subject, message, NewEmailTemplateData(identity, link))
		if err != nil {
			log.Errorf("Failed to send email: %s", err)
		}
	}()
	return nil
}

func (s *magicLinkService) VerifyLink(ctx context.Context, rawSecret string, purpose repos.MagicTokenPurpose, reqCtx RequestContext) (string, error) {
	tokenHash := HashToken(rawSecret)

	identity, err := s.tokenRepo.Consume(ctx, purpose, tokenHash, s.now())
	if err != nil {
		if !errors.Is(err, repos.ErrNoRecord) {
			log.Errorf("Failed to consume magic link token: %s", err)
			return "", fmt.Errorf("verify link: %w", ErrUnavailable)
		}
		s.recordRejection(ctx, tokenHash, purpose, reqCtx)
		return "", fmt.Errorf("verify link: %w", ErrLinkInvalidOrExpired)
	}

	s.events.Record(ctx, repos.EventLinkVerified, identity, reqCtx.IP, map[string]any{
		"purpose": purpose,
	})
	return identity, nil
}

// recordRejection classifies why a consume failed for the audit trail. The
// distinction is never surfaced to the caller.
func (s *magicLinkService) recordRejection(ctx context.Context, tokenHash []byte, purpose repos.MagicTokenPurpose, reqCtx RequestContext) {
	reason := "not-found"
	identity := ""
	token, err := s.tokenRepo.Inspect(ctx, tokenHash)
	if err == nil {
		identity = token.Identity
		switch {
		case token.Purpose != purpose:
			reason = "purpose-mismatch"
		case token.Consumed:
			reason = "already-consumed"
		case token.Superseded:
			reason = "superseded"
		case token.Expires <= s.now().Unix():
			reason = "expired"
		}
	} else if !errors.Is(err, repos.ErrNoRecord) {
		log.Errorf("Failed to inspect magic link token: %s", err)
		reason = "unknown"
	}
	s.events.Record(ctx, repos.EventLinkRejected, identity, reqCtx.IP, map[string]any{
		"purpose": purpose,
		"reason":  reason,
	})
}
