// ABOUTME: Tests for the session manager.
// ABOUTME: Covers token restore, credential fallback, refresh persistence and failure.
package session

import (
	"context"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/harperreed/garmin-mcp/internal/garmin"
	"github.com/harperreed/garmin-mcp/internal/garmin/garmintest"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testConfig(t *testing.T, srv *garmintest.Server) Config {
	t.Helper()
	return Config{
		TokenDir: filepath.Join(t.TempDir(), ".garminconnect"),
		ClientOptions: []garmin.Option{
			garmin.WithHTTPClient(srv.Client()),
			garmin.WithBaseURLs(srv.URL, srv.URL),
			garmin.WithConsumer(garmintest.ConsumerKey, garmintest.ConsumerSecret),
		},
	}
}

func validCredentials() garmin.Credentials {
	return garmin.Credentials{Email: garmintest.Email, Password: garmintest.Password}
}

func saveTokens(t *testing.T, dir, access string, expiresAt time.Time) {
	t.Helper()
	err := garmin.NewTokenStore(dir).Save(&garmin.Tokens{
		OAuth1: &garmin.OAuth1Token{Token: "o1-token", Secret: "o1-secret", Domain: garmin.DefaultDomain},
		OAuth2: &garmin.OAuth2Token{AccessToken: access, TokenType: "Bearer", ExpiresAt: expiresAt.Unix()},
	})
	require.NoError(t, err)
}

func TestAuthenticateWithSavedTokens(t *testing.T) {
	srv := garmintest.New(t)
	cfg := testConfig(t, srv)
	saveTokens(t, cfg.TokenDir, srv.IssueToken(), time.Now().Add(time.Hour))

	m := New(cfg)
	sess, err := m.Authenticate(context.Background())
	require.NoError(t, err)

	assert.Equal(t, MethodTokens, sess.Method)
	assert.Equal(t, garmintest.DisplayName, sess.Profile.DisplayName)
	assert.Equal(t, garmintest.ProfileID, sess.ProfilePK)
	assert.Equal(t, 1, srv.Exchanges(), "no exchange needed for a fresh token")
	assert.Same(t, sess, m.Current())
}

func TestAuthenticateRefreshesExpiredTokens(t *testing.T) {
	srv := garmintest.New(t)
	cfg := testConfig(t, srv)
	saveTokens(t, cfg.TokenDir, "stale", time.Now().Add(-time.Minute))

	m := New(cfg)
	sess, err := m.Authenticate(context.Background())
	require.NoError(t, err)
	assert.Equal(t, MethodTokens, sess.Method)

	saved, err := m.Store().Load()
	require.NoError(t, err)
	assert.Equal(t, "access-1", saved.OAuth2.AccessToken)
	assert.True(t, saved.OAuth2.Expiry().After(time.Now()))
}

func TestAuthenticateFallsBackToCredentials(t *testing.T) {
	srv := garmintest.New(t)
	cfg := testConfig(t, srv)
	cfg.Credentials = validCredentials()
	// A token the server never issued is rejected with 401.
	saveTokens(t, cfg.TokenDir, "revoked", time.Now().Add(time.Hour))

	m := New(cfg)
	sess, err := m.Authenticate(context.Background())
	require.NoError(t, err)
	assert.Equal(t, MethodCredentials, sess.Method)

	saved, err := m.Store().Load()
	require.NoError(t, err)
	assert.NotEqual(t, "revoked", saved.OAuth2.AccessToken)
}

func TestAuthenticateWithCredentialsOnly(t *testing.T) {
	srv := garmintest.New(t)
	cfg := testConfig(t, srv)
	cfg.Credentials = validCredentials()

	m := New(cfg)
	sess, err := m.Authenticate(context.Background())
	require.NoError(t, err)
	assert.Equal(t, MethodCredentials, sess.Method)
	assert.True(t, m.Store().Exists(), "login tokens are persisted")
}

func TestAuthenticateFailsWithoutAnyMethod(t *testing.T) {
	srv := garmintest.New(t)
	m := New(testConfig(t, srv))

	sess, err := m.Authenticate(context.Background())
	require.ErrorIs(t, err, ErrUnavailable)
	require.ErrorIs(t, err, garmin.ErrNoTokens)
	assert.Nil(t, sess)
	assert.Nil(t, m.Current())

	st := m.Status()
	assert.False(t, st.Authenticated)
	assert.Contains(t, st.Error, "GARMIN_EMAIL")
}

func TestAuthenticateFailsWhenBothMethodsFail(t *testing.T) {
	srv := garmintest.New(t)
	cfg := testConfig(t, srv)
	cfg.Credentials = garmin.Credentials{Email: garmintest.Email, Password: "wrong"}
	saveTokens(t, cfg.TokenDir, "revoked", time.Now().Add(time.Hour))

	_, err := New(cfg).Authenticate(context.Background())
	require.ErrorIs(t, err, ErrUnavailable)
	require.ErrorIs(t, err, garmin.ErrAuthentication)
}

func TestAuthenticateMFAWithoutPrompt(t *testing.T) {
	srv := garmintest.New(t)
	srv.SetMFACode("424242")
	cfg := testConfig(t, srv)
	cfg.Credentials = validCredentials()

	_, err := New(cfg).Authenticate(context.Background())
	require.ErrorIs(t, err, garmin.ErrMFARequired)
}

func TestAuthenticateMFAWithPrompt(t *testing.T) {
	srv := garmintest.New(t)
	srv.SetMFACode("424242")
	cfg := testConfig(t, srv)
	cfg.Credentials = validCredentials()
	cfg.Prompt = func(context.Context) (string, error) { return "424242", nil }

	sess, err := New(cfg).Authenticate(context.Background())
	require.NoError(t, err)
	assert.Equal(t, MethodCredentials, sess.Method)
}

func TestSessionRetriesAfterFailure(t *testing.T) {
	srv := garmintest.New(t)
	cfg := testConfig(t, srv)
	m := New(cfg)

	_, err := m.Session(context.Background())
	require.ErrorIs(t, err, ErrUnavailable)

	saveTokens(t, cfg.TokenDir, srv.IssueToken(), time.Now().Add(time.Hour))
	sess, err := m.Session(context.Background())
	require.NoError(t, err)
	assert.Equal(t, MethodTokens, sess.Method)

	again, err := m.Session(context.Background())
	require.NoError(t, err)
	assert.Same(t, sess, again)
}

func TestConcurrentSessionsLoginOnce(t *testing.T) {
	srv := garmintest.New(t)
	cfg := testConfig(t, srv)
	cfg.Credentials = validCredentials()
	m := New(cfg)

	const callers = 8
	sessions := make([]*Session, callers)
	errs := make([]error, callers)
	var wg sync.WaitGroup
	for i := range callers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			sessions[i], errs[i] = m.Session(context.Background())
		}()
	}
	wg.Wait()

	for i := range callers {
		require.NoError(t, errs[i])
		assert.Same(t, sessions[0], sessions[i])
	}
	assert.Equal(t, 1, srv.Exchanges(), "only one login runs")
}

func TestProfilePKOverride(t *testing.T) {
	srv := garmintest.New(t)
	cfg := testConfig(t, srv)
	cfg.Credentials = validCredentials()
	cfg.UserProfilePK = 777

	sess, err := New(cfg).Authenticate(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(777), sess.ProfilePK)
	assert.Equal(t, garmintest.ProfileID, sess.Profile.ProfileID)
}

func TestStatusAndLogout(t *testing.T) {
	srv := garmintest.New(t)
	cfg := testConfig(t, srv)
	cfg.Credentials = validCredentials()
	m := New(cfg)

	_, err := m.Authenticate(context.Background())
	require.NoError(t, err)

	st := m.Status()
	assert.True(t, st.Authenticated)
	assert.True(t, st.TokensOnDisk)
	assert.Equal(t, MethodCredentials, st.Method)
	assert.Equal(t, garmintest.DisplayName, st.DisplayName)
	require.NotNil(t, st.ExpiresAt)

	require.NoError(t, m.Logout())
	assert.Nil(t, m.Current())
	st = m.Status()
	assert.False(t, st.Authenticated)
	assert.False(t, st.TokensOnDisk)
	assert.Empty(t, st.Error)
}
