package handlers

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"net/url"
	"path/filepath"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/safejob-nl/auth/repos/sqlite"
	"github.com/safejob-nl/auth/services"
)

type fakeEmailService struct {
	links chan string
}

func (f *fakeEmailService) SendEmail(address, subject, messageName string, data services.EmailTemplateData) error {
	f.links <- data.Link
	return nil
}

func newTestServer(t *testing.T) (*httptest.Server, *fakeEmailService) {
	t.Helper()
	db, err := sqlite.Connect(filepath.Join(t.TempDir(), "auth.sqlite"))
	require.NoError(t, err)
	t.Cleanup(func() {
		db.Close()
	})

	email := &fakeEmailService{links: make(chan string, 16)}
	events := services.NewSecurityEventService(db.NewSecurityEventRepository())
	session, err := services.NewSessionService(db.NewRefreshTokenRepository(), db.NewRevokedTokenRepository(), db.NewSystemRepository(), events)
	require.NoError(t, err)

	handler := NewHandler()
	handler.Router = chi.NewRouter()
	handler.MagicLinkService = services.NewMagicLinkService(db.NewMagicTokenRepository(), events, email)
	handler.SessionService = session
	handler.Directory = services.NewConfigDirectory()
	handler.RegisterRoutes()

	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)
	return server, email
}

type envelope struct {
	Error   bool            `json:"error"`
	ErrorID string          `json:"errorID"`
	Body    json.RawMessage `json:"body"`
}

func postJSON(t *testing.T, server *httptest.Server, path string, body any, headers map[string]string) (*http.Response, envelope) {
	t.Helper()
	b, err := json.Marshal(body)
	require.NoError(t, err)
	req, err := http.NewRequest(http.MethodPost, server.URL+path, bytes.NewReader(b))
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	res, err := server.Client().Do(req)
	require.NoError(t, err)
	defer res.Body.Close()
	var env envelope
	if res.Header.Get("Content-Type") == "application/json" {
		require.NoError(t, json.NewDecoder(res.Body).Decode(&env))
	}
	return res, env
}

func getJSON(t *testing.T, server *httptest.Server, path, bearer string) (*http.Response, envelope) {
	t.Helper()
	req, err := http.NewRequest(http.MethodGet, server.URL+path, nil)
	require.NoError(t, err)
	if bearer != "" {
		req.Header.Set("Authorization", "Bearer "+bearer)
	}
	res, err := server.Client().Do(req)
	require.NoError(t, err)
	defer res.Body.Close()
	var env envelope
	if res.Header.Get("Content-Type") == "application/json" {
		require.NoError(t, json.NewDecoder(res.Body).Decode(&env))
	}
	return res, env
}

func waitToken(t *testing.T, email *fakeEmailService) string {
	t.Helper()
	select {
	case link := <-email.links:
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

func requestAndVerify(t *testing.T, server *httptest.Server, email *fakeEmailService, address string) (access, refresh string) {
	t.Helper()
	res, _ := postJSON(t, server, "/auth/magic-link/", map[string]string{"email": address}, nil)
	require.Equal(t, http.StatusOK, res.StatusCode)

	token := waitToken(t, email)
	res, env := postJSON(t, server, "/auth/magic-link/verify/", map[string]string{"token": token}, nil)
	require.Equal(t, http.StatusOK, res.StatusCode)

	var pair services.TokenPair
	require.NoError(t, json.Unmarshal(env.Body, &pair))
	require.NotEmpty(t, pair.Access)
	require.NotEmpty(t, pair.Refresh)
	return pair.Access, pair.Refresh
}

func TestHealth(t *testing.T) {
	server, _ := newTestServer(t)
	res, err := server.Client().Get(server.URL + "/health/")
	require.NoError(t, err)
	defer res.Body.Close()
	assert.Equal(t, http.StatusOK, res.StatusCode)

	var body struct {
		Status  string `json:"status"`
		Service string `json:"service"`
		Version string `json:"version"`
	}
	require.NoError(t, json.NewDecoder(res.Body).Decode(&body))
	assert.Equal(t, "healthy", body.Status)
	assert.NotEmpty(t, body.Version)
}

func TestRequestMagicLink_GenericResponse(t *testing.T) {
	server, _ := newTestServer(t)

	res, env := postJSON(t, server, "/auth/magic-link/", map[string]string{"email": "new@example.com"}, nil)
	assert.Equal(t, http.StatusOK, res.StatusCode)
	assert.False(t, env.Error)

	var body struct {
		Message string `json:"message"`
	}
	require.NoError(t, json.Unmarshal(env.Body, &body))
	// the response must not reveal whether the address is registered
	assert.NotContains(t, body.Message, "new@example.com")
}

func TestRequestMagicLink_InvalidEmail(t *testing.T) {
	server, _ := newTestServer(t)

	res, env := postJSON(t, server, "/auth/magic-link/", map[string]string{"email": "not-an-address"}, nil)
	assert.Equal(t, http.StatusUnprocessableEntity, res.StatusCode)
	assert.True(t, env.Error)
	assert.Equal(t, ErrInvalidFields.Error(), env.ErrorID)
}

func TestVerifyMagicLink_IssuesTokenPair(t *testing.T) {
	server, email := newTestServer(t)
	access, refresh := requestAndVerify(t, server, email, "candidate@example.com")
	assert.NotEmpty(t, access)
	assert.NotEmpty(t, refresh)
}

func TestVerifyMagicLink_ConsumedTokenRejected(t *testing.T) {
	server, email := newTestServer(t)

	res, _ := postJSON(t, server, "/auth/magic-link/", map[string]string{"email": "candidate@example.com"}, nil)
	require.Equal(t, http.StatusOK, res.StatusCode)
	token := waitToken(t, email)

	res, _ = postJSON(t, server, "/auth/magic-link/verify/", map[string]string{"token": token}, nil)
	require.Equal(t, http.StatusOK, res.StatusCode)

	res, env := postJSON(t, server, "/auth/magic-link/verify/", map[string]string{"token": token}, nil)
	assert.Equal(t, http.StatusBadRequest, res.StatusCode)
	assert.Equal(t, ErrLinkInvalidOrExpired.Error(), env.ErrorID)
}

func TestVerifyMagicLink_UnknownToken(t *testing.T) {
	server, _ := newTestServer(t)

	res, env := postJSON(t, server, "/auth/magic-link/verify/", map[string]string{"token": "bogus"}, nil)
	assert.Equal(t, http.StatusBadRequest, res.StatusCode)
	assert.Equal(t, ErrLinkInvalidOrExpired.Error(), env.ErrorID)
}

func TestMe(t *testing.T) {
	server, email := newTestServer(t)
	access, _ := requestAndVerify(t, server, email, "candidate@example.com")

	res, env := getJSON(t, server, "/auth/me/", access)
	require.Equal(t, http.StatusOK, res.StatusCode)

	var body struct {
		Identity string `json:"identity"`
		Kind     string `json:"kind"`
	}
	require.NoError(t, json.Unmarshal(env.Body, &body))
	assert.Equal(t, "candidate@example.com", body.Identity)
	assert.Equal(t, "candidate", body.Kind)
}

func TestMe_Unauthenticated(t *testing.T) {
	server, _ := newTestServer(t)

	res, _ := getJSON(t, server, "/auth/me/", "")
	assert.Equal(t, http.StatusUnauthorized, res.StatusCode)
	assert.NotEmpty(t, res.Header.Get("WWW-Authenticate"))

	res, _ = getJSON(t, server, "/auth/me/", "garbage")
	assert.Equal(t, http.StatusUnauthorized, res.StatusCode)
}

func TestRefreshToken(t *testing.T) {
	server, email := newTestServer(t)
	_, refresh := requestAndVerify(t, server, email, "candidate@example.com")

	res, env := postJSON(t, server, "/auth/token/refresh/", map[string]string{"refresh": refresh}, nil)
	require.Equal(t, http.StatusOK, res.StatusCode)

	var pair services.TokenPair
	require.NoError(t, json.Unmarshal(env.Body, &pair))
	assert.NotEqual(t, refresh, pair.Refresh)

	// the old refresh token is spent
	res, env = postJSON(t, server, "/auth/token/refresh/", map[string]string{"refresh": refresh}, nil)
	assert.Equal(t, http.StatusUnauthorized, res.StatusCode)
	assert.Equal(t, ErrUnauthenticated.Error(), env.ErrorID)
}

func TestLogout_AccessToken(t *testing.T) {
	server, email := newTestServer(t)
	access, _ := requestAndVerify(t, server, email, "candidate@example.com")

	res, _ := getJSON(t, server, "/auth/me/", access)
	require.Equal(t, http.StatusOK, res.StatusCode)

	res, _ = postJSON(t, server, "/auth/logout/", nil, map[string]string{"Authorization": "Bearer " + access})
	require.Equal(t, http.StatusOK, res.StatusCode)

	res, _ = getJSON(t, server, "/auth/me/", access)
	assert.Equal(t, http.StatusUnauthorized, res.StatusCode)
}

func TestLogout_RefreshToken(t *testing.T) {
	server, email := newTestServer(t)
	_, refresh := requestAndVerify(t, server, email, "candidate@example.com")

	res, _ := postJSON(t, server, "/auth/logout/", map[string]string{"refresh": refresh}, nil)
	require.Equal(t, http.StatusOK, res.StatusCode)

	res, _ = postJSON(t, server, "/auth/token/refresh/", map[string]string{"refresh": refresh}, nil)
	assert.Equal(t, http.StatusUnauthorized, res.StatusCode)
}

func TestLogout_MissingCredentials(t *testing.T) {
	server, _ := newTestServer(t)

	res, _ := postJSON(t, server, "/auth/logout/", map[string]string{}, nil)
	assert.Equal(t, http.StatusBadRequest, res.StatusCode)
}

func TestRequestMagicLink_RateLimited(t *testing.T) {
	server, email := newTestServer(t)

	for i := 0; i < 3; i++ {
		res, _ := postJSON(t, server, "/auth/magic-link/", map[string]string{"email": "busy@example.com"}, nil)
		require.Equal(t, http.StatusOK, res.StatusCode, fmt.Sprintf("request %d", i+1))
		waitToken(t, email)
	}

	res, env := postJSON(t, server, "/auth/magic-link/", map[string]string{"email": "busy@example.com"}, nil)
	assert.Equal(t, http.StatusTooManyRequests, res.StatusCode)
	assert.Equal(t, ErrRateLimited.Error(), env.ErrorID)
}
