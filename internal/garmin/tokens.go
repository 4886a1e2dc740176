// ABOUTME: OAuth1 and OAuth2 token types in the garth JSON layout.
// ABOUTME: Converts the OAuth2 token into an x/oauth2 bearer token.
package garmin

import (
	"time"

	"golang.org/x/oauth2"
)

// OAuth1Token is the long-lived token returned by the preauthorized endpoint.
// It is exchanged for short-lived OAuth2 tokens.
type OAuth1Token struct {
	Token                  string `json:"oauth_token"`
	Secret                 string `json:"oauth_token_secret"`
	MFAToken               string `json:"mfa_token,omitempty"`
	MFAExpirationTimestamp string `json:"mfa_expiration_timestamp,omitempty"`
	Domain                 string `json:"domain,omitempty"`
}

// OAuth2Token is the bearer token used for Connect API calls.
type OAuth2Token struct {
	Scope                 string `json:"scope"`
	JTI                   string `json:"jti"`
	TokenType             string `json:"token_type"`
	AccessToken           string `json:"access_token"`
	RefreshToken          string `json:"refresh_token"`
	ExpiresIn             int64  `json:"expires_in"`
	ExpiresAt             int64  `json:"expires_at"`
	RefreshTokenExpiresIn int64  `json:"refresh_token_expires_in"`
	RefreshTokenExpiresAt int64  `json:"refresh_token_expires_at"`
}

// Expired reports whether the access token is no longer usable at now.
func (t *OAuth2Token) Expired(now time.Time) bool {
	return t == nil || t.AccessToken == "" || now.Unix() >= t.ExpiresAt
}

// Expiry returns the access token expiry as a time.
func (t *OAuth2Token) Expiry() time.Time {
	if t == nil || t.ExpiresAt == 0 {
		return time.Time{}
	}
	return time.Unix(t.ExpiresAt, 0)
}

// setExpirations fills the absolute expiry fields from the relative ones.
func (t *OAuth2Token) setExpirations(now time.Time) {
	t.ExpiresAt = now.Unix() + t.ExpiresIn
	t.RefreshTokenExpiresAt = now.Unix() + t.RefreshTokenExpiresIn
}

func (t *OAuth2Token) bearer() *oauth2.Token {
	return &oauth2.Token{
		AccessToken:  t.AccessToken,
		TokenType:    "Bearer",
		RefreshToken: t.RefreshToken,
		Expiry:       t.Expiry(),
	}
}

// Tokens is the pair persisted in the token store.
type Tokens struct {
	OAuth1 *OAuth1Token
	OAuth2 *OAuth2Token
}

func (t *Tokens) clone() *Tokens {
	if t == nil {
		return nil
	}
	out := &Tokens{}
	if t.OAuth1 != nil {
		o1 := *t.OAuth1
		out.OAuth1 = &o1
	}
	if t.OAuth2 != nil {
		o2 := *t.OAuth2
		out.OAuth2 = &o2
	}
	return out
}
