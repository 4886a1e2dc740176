// ABOUTME: Garmin SSO credential login producing OAuth1 and OAuth2 tokens.
// ABOUTME: Follows the embed widget flow with an optional MFA step.
package garmin

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// Credentials are the account email and password.
type Credentials struct {
	Email    string
	Password string
}

// MFAPrompter returns the one-time code for a second-factor challenge.
type MFAPrompter func(ctx context.Context) (string, error)

var ticketRe = regexp.MustCompile(`embed\?ticket=([^"]+)"`)

// ssoSession carries cookies and the referer between SSO pages.
type ssoSession struct {
	hc      *http.Client
	referer string
	body    string
}

// Login signs in with credentials and installs the resulting tokens.
// prompt may be nil, in which case an MFA challenge fails with ErrMFARequired.
func (c *Client) Login(ctx context.Context, creds Credentials, prompt MFAPrompter) error {
	if creds.Email == "" || creds.Password == "" {
		return fmt.Errorf("login: %w: email and password are required", ErrAuthentication)
	}

	jar, err := cookiejar.New(nil)
	if err != nil {
		return fmt.Errorf("login: create cookie jar: %w", err)
	}
	s := &ssoSession{hc: &http.Client{Jar: jar, Transport: c.base.Transport, Timeout: c.base.Timeout}}

	embed := c.ssoBase + "/sso/embed"
	embedParams := url.Values{
		"id":          {"gauth-widget"},
		"embedWidget": {"true"},
		"gauthHost":   {c.ssoBase + "/sso"},
	}
	signinParams := url.Values{
		"id":                              {"gauth-widget"},
		"embedWidget":                     {"true"},
		"gauthHost":                       {embed},
		"service":                         {embed},
		"source":                          {embed},
		"redirectAfterAccountLoginUrl":    {embed},
		"redirectAfterAccountCreationUrl": {embed},
	}

	if err := s.get(ctx, embed, embedParams); err != nil {
		return fmt.Errorf("login: load sso embed: %w", err)
	}
	if err := s.get(ctx, c.ssoBase+"/sso/signin", signinParams); err != nil {
		return fmt.Errorf("login: load sign-in page: %w", err)
	}
	csrf, err := s.csrfToken()
	if err != nil {
		return fmt.Errorf("login: %w", err)
	}

	err = s.post(ctx, c.ssoBase+"/sso/signin", signinParams, url.Values{
		"username": {creds.Email},
		"password": {creds.Password},
		"embed":    {"true"},
		"_csrf":    {csrf},
	})
	if err != nil {
		return fmt.Errorf("login: submit credentials: %w", err)
	}

	title := s.title()
	if strings.Contains(title, "MFA") {
		if prompt == nil {
			return ErrMFARequired
		}
		if err := c.verifyMFA(ctx, s, signinParams, prompt); err != nil {
			return err
		}
		title = s.title()
	}
	if title != "Success" {
		return fmt.Errorf("login: %w: unexpected sso page title %q", ErrAuthentication, title)
	}

	m := ticketRe.FindStringSubmatch(s.body)
	if m == nil {
		return fmt.Errorf("login: %w: no ticket in sso response", ErrAuthentication)
	}

	o1, err := c.preauthorize(ctx, m[1])
	if err != nil {
		return fmt.Errorf("login: %w", err)
	}
	o2, err := c.exchange(ctx, o1)
	if err != nil {
		return fmt.Errorf("login: %w", err)
	}

	c.mu.Lock()
	c.tokens = &Tokens{OAuth1: o1, OAuth2: o2}
	fresh := c.tokens.clone()
	onRefresh := c.onRefresh
	c.mu.Unlock()

	c.logger.Info("signed in to garmin connect", "domain", c.domain)
	if onRefresh != nil {
		onRefresh(fresh)
	}
	return nil
}

func (c *Client) verifyMFA(ctx context.Context, s *ssoSession, signinParams url.Values, prompt MFAPrompter) error {
	csrf, err := s.csrfToken()
	if err != nil {
		return fmt.Errorf("login: mfa: %w", err)
	}
	code, err := prompt(ctx)
	if err != nil {
		return fmt.Errorf("login: read mfa code: %w", err)
	}
	code = strings.TrimSpace(code)
	if code == "" {
		return fmt.Errorf("login: %w: empty mfa code", ErrAuthentication)
	}
	err = s.post(ctx, c.ssoBase+"/sso/verifyMFA/loginEnterMfaCode", signinParams, url.Values{
		"mfa-code": {code},
		"embed":    {"true"},
		"_csrf":    {csrf},
		"fromPage": {"setupEnterMfaCode"},
	})
	if err != nil {
		return fmt.Errorf("login: submit mfa code: %w", err)
	}
	return nil
}

func (s *ssoSession) get(ctx context.Context, endpoint string, params url.Values) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint+"?"+params.Encode(), nil)
	if err != nil {
		return err
	}
	return s.send(req)
}

func (s *ssoSession) post(ctx context.Context, endpoint string, params, form url.Values) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint+"?"+params.Encode(), strings.NewReader(form.Encode()))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	return s.send(req)
}

func (s *ssoSession) send(req *http.Request) error {
	req.Header.Set("User-Agent", ssoUserAgent)
	if s.referer != "" {
		req.Header.Set("Referer", s.referer)
	}
	resp, err := s.hc.Do(req)
	if err != nil {
		return err
	}
	defer func() { _ = resp.Body.Close() }()

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return fmt.Errorf("read sso response: %w", err)
	}
	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
		return &APIError{Method: req.Method, Path: req.URL.Path, StatusCode: resp.StatusCode, Body: truncate(string(data), maxErrorBody)}
	}
	s.referer = req.URL.String()
	s.body = string(data)
	return nil
}

func (s *ssoSession) document() (*goquery.Document, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(s.body))
	if err != nil {
		return nil, fmt.Errorf("parse sso page: %w", err)
	}
	return doc, nil
}

func (s *ssoSession) csrfToken() (string, error) {
	doc, err := s.document()
	if err != nil {
		return "", err
	}
	token, ok := doc.Find(`input[name="_csrf"]`).First().Attr("value")
	if !ok || token == "" {
		return "", errors.New("csrf token not found on sso page")
	}
	return token, nil
}

func (s *ssoSession) title() string {
	doc, err := s.document()
	if err != nil {
		return ""
	}
	return strings.TrimSpace(doc.Find("title").First().Text())
}

// getConsumer returns the configured consumer or fetches it once.
func (c *Client) getConsumer(ctx context.Context) (Consumer, error) {
	c.consumerMu.Lock()
	defer c.consumerMu.Unlock()
	if c.consumer != nil {
		return *c.consumer, nil
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.consumerURL, nil)
	if err != nil {
		return Consumer{}, fmt.Errorf("create consumer request: %w", err)
	}
	resp, err := c.base.Do(req)
	if err != nil {
		return Consumer{}, fmt.Errorf("fetch oauth consumer: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()
	if resp.StatusCode != http.StatusOK {
		return Consumer{}, fmt.Errorf("fetch oauth consumer: status %d", resp.StatusCode)
	}

	var consumer Consumer
	if err := json.NewDecoder(io.LimitReader(resp.Body, maxErrorBody*8)).Decode(&consumer); err != nil {
		return Consumer{}, fmt.Errorf("decode oauth consumer: %w", err)
	}
	if consumer.Key == "" || consumer.Secret == "" {
		return Consumer{}, errors.New("oauth consumer response missing key or secret")
	}
	c.consumer = &consumer
	return consumer, nil
}

// preauthorize trades an SSO ticket for an OAuth1 token.
func (c *Client) preauthorize(ctx context.Context, ticket string) (*OAuth1Token, error) {
	consumer, err := c.getConsumer(ctx)
	if err != nil {
		return nil, err
	}

	query := url.Values{
		"ticket":             {ticket},
		"login-url":          {c.ssoBase + "/sso/embed"},
		"accepts-mfa-tokens": {"true"},
	}
	endpoint := c.apiBase + "/oauth-service/oauth/preauthorized?" + query.Encode()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("create preauthorized request: %w", err)
	}
	req.Header.Set("User-Agent", ssoUserAgent)
	newOAuth1Signer(consumer, "", "", c.now).sign(req, nil)

	body, err := c.sendOAuth(req)
	if err != nil {
		return nil, fmt.Errorf("preauthorize: %w", err)
	}
	values, err := url.ParseQuery(string(body))
	if err != nil {
		return nil, fmt.Errorf("preauthorize: decode response: %w", err)
	}
	token := &OAuth1Token{
		Token:                  values.Get("oauth_token"),
		Secret:                 values.Get("oauth_token_secret"),
		MFAToken:               values.Get("mfa_token"),
		MFAExpirationTimestamp: values.Get("mfa_expiration_timestamp"),
		Domain:                 c.domain,
	}
	if token.Token == "" || token.Secret == "" {
		return nil, fmt.Errorf("preauthorize: %w: response missing oauth token", ErrAuthentication)
	}
	return token, nil
}

// exchange trades an OAuth1 token for a fresh OAuth2 token.
func (c *Client) exchange(ctx context.Context, o1 *OAuth1Token) (*OAuth2Token, error) {
	consumer, err := c.getConsumer(ctx)
	if err != nil {
		return nil, err
	}

	form := url.Values{}
	if o1.MFAToken != "" {
		form.Set("mfa_token", o1.MFAToken)
	}
	endpoint := c.apiBase + "/oauth-service/oauth/exchange/user/2.0"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, strings.NewReader(form.Encode()))
	if err != nil {
		return nil, fmt.Errorf("create exchange request: %w", err)
	}
	req.Header.Set("User-Agent", ssoUserAgent)
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	newOAuth1Signer(consumer, o1.Token, o1.Secret, c.now).sign(req, form)

	body, err := c.sendOAuth(req)
	if err != nil {
		return nil, fmt.Errorf("exchange oauth2 token: %w", err)
	}
	var o2 OAuth2Token
	if err := json.Unmarshal(body, &o2); err != nil {
		return nil, fmt.Errorf("exchange oauth2 token: decode response: %w", err)
	}
	if o2.AccessToken == "" {
		return nil, fmt.Errorf("exchange oauth2 token: %w: response missing access token", ErrAuthentication)
	}
	o2.setExpirations(c.now())
	return &o2, nil
}

func (c *Client) sendOAuth(req *http.Request) ([]byte, error) {
	resp, err := c.base.Do(req)
	if err != nil {
		return nil, err
	}
	defer func() { _ = resp.Body.Close() }()
	data, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}
	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
		return nil, &APIError{Method: req.Method, Path: req.URL.Path, StatusCode: resp.StatusCode, Body: truncate(string(data), maxErrorBody)}
	}
	return data, nil
}
