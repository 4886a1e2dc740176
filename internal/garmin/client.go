// ABOUTME: Garmin Connect API client with an OAuth2 bearer transport.
// ABOUTME: Refreshes the OAuth2 token from the OAuth1 token before it is used.
package garmin

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"golang.org/x/oauth2"
)

const (
	// DefaultDomain is the Garmin Connect domain outside China.
	DefaultDomain = "garmin.com"

	// DefaultConsumerURL serves the OAuth1 consumer key and secret of the mobile app.
	DefaultConsumerURL = "https://thegarth.s3.amazonaws.com/oauth_consumer.json"

	apiUserAgent = "GCM-iOS-5.7.2.1"
	ssoUserAgent = "com.garmin.android.apps.connectmobile"

	maxResponseBytes = 32 << 20
	maxErrorBody     = 512
)

// Response is a raw Connect API response.
type Response struct {
	StatusCode int
	Body       []byte
}

// Client talks to Garmin SSO and the Connect API for a single account.
type Client struct {
	base        *http.Client
	api         *http.Client
	apiBase     string
	ssoBase     string
	domain      string
	consumerURL string
	logger      *log.Logger
	now         func() time.Time

	consumerMu sync.Mutex
	consumer   *Consumer

	refreshMu sync.Mutex

	mu        sync.Mutex
	tokens    *Tokens
	onRefresh func(*Tokens)
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient sets the underlying HTTP client. Its transport is reused for
// both SSO and API calls.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.base = hc }
}

// WithDomain selects the Garmin domain, e.g. "garmin.cn".
func WithDomain(domain string) Option {
	return func(c *Client) {
		if domain != "" {
			c.domain = domain
		}
	}
}

// WithBaseURLs overrides the API and SSO base URLs derived from the domain.
func WithBaseURLs(apiBase, ssoBase string) Option {
	return func(c *Client) {
		c.apiBase = strings.TrimRight(apiBase, "/")
		c.ssoBase = strings.TrimRight(ssoBase, "/")
	}
}

// WithConsumer sets fixed OAuth1 consumer credentials instead of fetching them.
func WithConsumer(key, secret string) Option {
	return func(c *Client) { c.consumer = &Consumer{Key: key, Secret: secret} }
}

// WithConsumerURL overrides where consumer credentials are fetched from.
func WithConsumerURL(u string) Option {
	return func(c *Client) { c.consumerURL = u }
}

// WithLogger sets the client logger.
func WithLogger(l *log.Logger) Option {
	return func(c *Client) { c.logger = l }
}

// WithClock overrides time.Now, for tests.
func WithClock(now func() time.Time) Option {
	return func(c *Client) { c.now = now }
}

// New creates a client with no tokens.
func New(opts ...Option) *Client {
	c := &Client{
		base:        &http.Client{Timeout: 30 * time.Second},
		domain:      DefaultDomain,
		consumerURL: DefaultConsumerURL,
		logger:      log.New(io.Discard),
		now:         time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.apiBase == "" {
		c.apiBase = "https://connectapi." + c.domain
	}
	if c.ssoBase == "" {
		c.ssoBase = "https://sso." + c.domain
	}

	transport := c.base.Transport
	if transport == nil {
		transport = http.DefaultTransport
	}
	c.api = &http.Client{
		Timeout: c.base.Timeout,
		Transport: &oauth2.Transport{
			Source: tokenSource{c: c},
			Base:   transport,
		},
	}
	return c
}

// Domain returns the configured Garmin domain.
func (c *Client) Domain() string {
	return c.domain
}

// HTTPClient returns the authenticated transport used for API calls.
func (c *Client) HTTPClient() *http.Client {
	return c.api
}

// SetTokens replaces the client's tokens.
func (c *Client) SetTokens(t *Tokens) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.tokens = t.clone()
}

// Tokens returns a copy of the current tokens, or nil.
func (c *Client) Tokens() *Tokens {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.tokens.clone()
}

// OnRefresh registers fn to be called with fresh tokens after every exchange.
func (c *Client) OnRefresh(fn func(*Tokens)) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.onRefresh = fn
}

// RefreshOAuth2 exchanges the OAuth1 token for a new OAuth2 token.
func (c *Client) RefreshOAuth2(ctx context.Context) error {
	return c.refresh(ctx, true)
}

// ensureToken refreshes the OAuth2 token when it is missing or expired.
func (c *Client) ensureToken(ctx context.Context) error {
	return c.refresh(ctx, false)
}

// refresh runs at most one exchange at a time. c.mu is not held during the
// exchange so Tokens stays responsive.
func (c *Client) refresh(ctx context.Context, force bool) error {
	c.refreshMu.Lock()
	defer c.refreshMu.Unlock()

	c.mu.Lock()
	if c.tokens == nil || c.tokens.OAuth1 == nil {
		c.mu.Unlock()
		return ErrNotAuthenticated
	}
	if !force && !c.tokens.OAuth2.Expired(c.now()) {
		c.mu.Unlock()
		return nil
	}
	o1 := *c.tokens.OAuth1
	c.mu.Unlock()

	o2, err := c.exchange(ctx, &o1)
	if err != nil {
		return err
	}

	c.mu.Lock()
	if c.tokens == nil || c.tokens.OAuth1 == nil || c.tokens.OAuth1.Token != o1.Token {
		c.mu.Unlock()
		return ErrNotAuthenticated
	}
	c.tokens.OAuth2 = o2
	fresh := c.tokens.clone()
	onRefresh := c.onRefresh
	c.mu.Unlock()

	c.logger.Debug("refreshed oauth2 token", "expires_at", o2.Expiry())
	if onRefresh != nil {
		onRefresh(fresh)
	}
	return nil
}

type tokenSource struct {
	c *Client
}

func (ts tokenSource) Token() (*oauth2.Token, error) {
	if err := ts.c.ensureToken(context.Background()); err != nil {
		return nil, err
	}
	ts.c.mu.Lock()
	defer ts.c.mu.Unlock()
	return ts.c.tokens.OAuth2.bearer(), nil
}

// Do sends an authenticated request to the Connect API. body, if non-nil, is
// sent as JSON. Non-2xx statuses are returned as *APIError.
func (c *Client) Do(ctx context.Context, method, path string, query url.Values, body any) (*Response, error) {
	if err := c.ensureToken(ctx); err != nil {
		return nil, err
	}

	endpoint := c.apiBase + path
	if len(query) > 0 {
		endpoint += "?" + query.Encode()
	}

	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("encode %s body: %w", path, err)
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, endpoint, reader)
	if err != nil {
		return nil, fmt.Errorf("create %s request: %w", path, err)
	}
	req.Header.Set("User-Agent", apiUserAgent)
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	start := c.now()
	resp, err := c.api.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer func() { _ = resp.Body.Close() }()

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return nil, fmt.Errorf("read %s response: %w", path, err)
	}
	c.logger.Debug("connect api", "method", method, "path", path, "status", resp.StatusCode, "duration", c.now().Sub(start))

	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
		return nil, &APIError{
			Method:     method,
			Path:       path,
			StatusCode: resp.StatusCode,
			Body:       truncate(strings.TrimSpace(string(data)), maxErrorBody),
		}
	}
	return &Response{StatusCode: resp.StatusCode, Body: data}, nil
}

// ConnectAPI sends a request and returns the JSON body. An empty or 204
// response yields nil.
func (c *Client) ConnectAPI(ctx context.Context, method, path string, query url.Values, body any) (json.RawMessage, error) {
	resp, err := c.Do(ctx, method, path, query, body)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode == http.StatusNoContent || len(bytes.TrimSpace(resp.Body)) == 0 {
		return nil, nil
	}
	if !json.Valid(resp.Body) {
		return nil, fmt.Errorf("%s %s: response is not JSON", method, path)
	}
	return json.RawMessage(resp.Body), nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
