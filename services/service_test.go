package services

import (
	"net/url"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/safejob-nl/auth/repos"
	"github.com/safejob-nl/auth/repos/sqlite"
)

func newTestDB(t *testing.T) repos.DB {
	t.Helper()
	db, err := sqlite.Connect(filepath.Join(t.TempDir(), "auth.sqlite"))
	require.NoError(t, err)
	t.Cleanup(func() {
		db.Close()
	})
	return db
}

type fakeEmailService struct {
	links chan string
}

func newFakeEmailService() *fakeEmailService {
	return &fakeEmailService{
		links: make(chan string, 16),
	}
}

func (f *fakeEmailService) SendEmail(address, subject, messageName string, data EmailTemplateData) error {
	f.links <- data.Link
	return nil
}

// waitToken blocks until the fake sender delivered a link and extracts the raw secret.
func (f *fakeEmailService) waitToken(t *testing.T) string {
	t.Helper()
	select {
	case link := <-f.links:
		u, err := url.Parse(link)
		require.NoError(t, err)
		token := u.Query().Get("token")
		require.NotEmpty(t, token)
		return token
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for magic link email")
		return ""
	}
}
