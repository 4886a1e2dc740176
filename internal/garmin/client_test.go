// ABOUTME: Tests for the Connect API client and bearer transport.
// ABOUTME: Covers token refresh, status mapping and empty responses.
package garmin

import (
	"context"
	"net/http"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/harperreed/garmin-mcp/internal/garmin/garmintest"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDoWithoutTokens(t *testing.T) {
	srv := garmintest.New(t)
	c := newTestClient(srv)

	_, err := c.Do(context.Background(), http.MethodGet, "/userprofile-service/socialProfile", nil, nil)
	require.ErrorIs(t, err, ErrNotAuthenticated)
	assert.Empty(t, srv.Requests())
}

func TestDoRefreshesExpiredToken(t *testing.T) {
	srv := garmintest.New(t)
	clock := &fakeClock{now: time.Date(2026, 2, 1, 9, 0, 0, 0, time.UTC)}
	c := loggedInClient(t, srv, WithClock(clock.Now))
	require.Equal(t, 1, srv.Exchanges())

	var refreshed []*Tokens
	c.OnRefresh(func(tok *Tokens) { refreshed = append(refreshed, tok) })

	_, err := c.SocialProfile(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, srv.Exchanges())
	assert.Empty(t, refreshed)

	clock.Advance(2 * time.Hour)
	_, err = c.SocialProfile(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, srv.Exchanges())
	require.Len(t, refreshed, 1)
	assert.Equal(t, "access-2", refreshed[0].OAuth2.AccessToken)
	assert.Equal(t, "access-2", c.Tokens().OAuth2.AccessToken)
}

func TestDoMapsUnauthorized(t *testing.T) {
	srv := garmintest.New(t)
	c := loggedInClient(t, srv)
	srv.RevokeAll()

	_, err := c.SocialProfile(context.Background())
	require.ErrorIs(t, err, ErrAuthentication)

	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, http.StatusUnauthorized, apiErr.StatusCode)
}

func TestDoNotFound(t *testing.T) {
	srv := garmintest.New(t)
	c := loggedInClient(t, srv)

	_, err := c.Stress(context.Background(), "2026-02-01")
	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, http.StatusNotFound, apiErr.StatusCode)
	assert.NotErrorIs(t, err, ErrAuthentication)
}

func TestConnectAPINoContent(t *testing.T) {
	srv := garmintest.New(t)
	srv.SetResponse("/hrv-service/hrv/2026-02-01", "")
	c := loggedInClient(t, srv)

	raw, err := c.HRV(context.Background(), "2026-02-01")
	require.NoError(t, err)
	assert.Nil(t, raw)
}

func TestSetTokensRestoresSession(t *testing.T) {
	srv := garmintest.New(t)
	c := newTestClient(srv)
	c.SetTokens(&Tokens{
		OAuth1: &OAuth1Token{Token: "o1-token", Secret: "o1-secret"},
		OAuth2: &OAuth2Token{AccessToken: srv.IssueToken(), ExpiresAt: time.Now().Add(time.Hour).Unix()},
	})

	p, err := c.SocialProfile(context.Background())
	require.NoError(t, err)
	assert.Equal(t, garmintest.DisplayName, p.DisplayName)
	assert.Equal(t, garmintest.ProfileID, p.ProfileID)
}

func TestHTTPClientCarriesBearer(t *testing.T) {
	srv := garmintest.New(t)
	c := loggedInClient(t, srv)

	resp, err := c.HTTPClient().Get(srv.URL + "/userprofile-service/socialProfile")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestAPIErrorMessage(t *testing.T) {
	err := &APIError{Method: "GET", Path: "/x", StatusCode: 429, Body: "slow down"}
	assert.Equal(t, "GET /x: 429 Too Many Requests: slow down", err.Error())
	assert.ErrorIs(t, err, ErrTooManyRequests)
}

// gatedTransport holds OAuth2 exchange requests until release is closed.
type gatedTransport struct {
	base    http.RoundTripper
	armed   atomic.Bool
	entered chan struct{}
	release chan struct{}
}

func (g *gatedTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	if g.armed.Load() && strings.HasSuffix(req.URL.Path, "/oauth/exchange/user/2.0") {
		g.entered <- struct{}{}
		<-g.release
	}
	return g.base.RoundTrip(req)
}

func TestTokensDoesNotWaitForExchange(t *testing.T) {
	srv := garmintest.New(t)
	gate := &gatedTransport{
		base:    srv.Client().Transport,
		entered: make(chan struct{}, 1),
		release: make(chan struct{}),
	}
	c := loggedInClient(t, srv, WithHTTPClient(&http.Client{Transport: gate}))
	before := c.Tokens().OAuth2.AccessToken

	gate.armed.Store(true)
	done := make(chan error, 1)
	go func() { done <- c.RefreshOAuth2(context.Background()) }()
	<-gate.entered

	got := make(chan *Tokens, 1)
	go func() { got <- c.Tokens() }()
	select {
	case tok := <-got:
		assert.Equal(t, before, tok.OAuth2.AccessToken)
	case <-time.After(2 * time.Second):
		t.Fatal("Tokens blocked while an exchange was in flight")
	}

	close(gate.release)
	require.NoError(t, <-done)
	assert.NotEqual(t, before, c.Tokens().OAuth2.AccessToken)
}
