// ABOUTME: Shared helpers for garmin package tests.
// ABOUTME: Builds clients pointed at the fake Garmin server.
package garmin

import (
	"context"
	"testing"
	"time"

	"github.com/harperreed/garmin-mcp/internal/garmin/garmintest"
	"github.com/stretchr/testify/require"
)

func newTestClient(srv *garmintest.Server, opts ...Option) *Client {
	base := []Option{
		WithHTTPClient(srv.Client()),
		WithBaseURLs(srv.URL, srv.URL),
		WithConsumer(garmintest.ConsumerKey, garmintest.ConsumerSecret),
	}
	return New(append(base, opts...)...)
}

// loggedInClient returns a client that has completed credential login.
func loggedInClient(t *testing.T, srv *garmintest.Server, opts ...Option) *Client {
	t.Helper()
	c := newTestClient(srv, opts...)
	require.NoError(t, c.Login(context.Background(), Credentials{Email: garmintest.Email, Password: garmintest.Password}, nil))
	return c
}

type fakeClock struct {
	now time.Time
}

func (f *fakeClock) Now() time.Time { return f.now }

func (f *fakeClock) Advance(d time.Duration) { f.now = f.now.Add(d) }
