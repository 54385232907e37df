package services

import (
	"context"
	"slices"
	"strings"

	"github.com/safejob-nl/auth/config"
	"github.com/safejob-nl/auth/repos"
)

// IdentityDirectory resolves the claims for a verified identity. The account
// and employer-profile data live outside this subsystem; deployments provide
// an implementation backed by the platform's user store.
type IdentityDirectory interface {
	Resolve(ctx context.Context, identity string) (repos.Claims, error)
}

type configDirectory struct {
	adminEmails []string
}

// NewConfigDirectory returns a directory that grants the admin kind to the
// addresses in ADMIN_EMAILS and the candidate kind to everyone else.
func NewConfigDirectory() IdentityDirectory {
	return &configDirectory{
		adminEmails: config.AdminEmails(),
	}
}

func (d *configDirectory) Resolve(ctx context.Context, identity string) (repos.Claims, error) {
	if slices.Contains(d.adminEmails, strings.ToLower(identity)) {
		return repos.Claims{Kind: repos.IdentityAdmin}, nil
	}
	return repos.Claims{Kind: repos.IdentityCandidate}, nil
}
