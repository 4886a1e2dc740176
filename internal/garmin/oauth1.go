// ABOUTME: OAuth 1.0a HMAC-SHA1 request signing (RFC 5849).
// ABOUTME: Used for the preauthorized and OAuth2 exchange endpoints only.
package garmin

import (
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha1"
	"encoding/base64"
	"encoding/hex"
	"net/http"
	"net/url"
	"sort"
	"strconv"
	"strings"
	"time"
)

// Consumer holds the OAuth1 consumer credentials of the Garmin Connect app.
type Consumer struct {
	Key    string `json:"consumer_key"`
	Secret string `json:"consumer_secret"`
}

type oauth1Signer struct {
	consumer Consumer
	token    string
	secret   string

	nonce     func() string
	timestamp func() int64
}

func newOAuth1Signer(consumer Consumer, token, secret string, now func() time.Time) *oauth1Signer {
	return &oauth1Signer{
		consumer:  consumer,
		token:     token,
		secret:    secret,
		nonce:     randomNonce,
		timestamp: func() int64 { return now().Unix() },
	}
}

// sign sets the Authorization header on req. form holds the
// application/x-www-form-urlencoded body parameters, if any.
func (s *oauth1Signer) sign(req *http.Request, form url.Values) {
	params := map[string]string{
		"oauth_consumer_key":     s.consumer.Key,
		"oauth_nonce":            s.nonce(),
		"oauth_signature_method": "HMAC-SHA1",
		"oauth_timestamp":        strconv.FormatInt(s.timestamp(), 10),
		"oauth_version":          "1.0",
	}
	if s.token != "" {
		params["oauth_token"] = s.token
	}

	params["oauth_signature"] = s.signature(req.Method, req.URL, form, params)

	keys := make([]string, 0, len(params))
	for k := range params {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, percentEncode(k)+`="`+percentEncode(params[k])+`"`)
	}
	req.Header.Set("Authorization", "OAuth "+strings.Join(parts, ", "))
}

func (s *oauth1Signer) signature(method string, u *url.URL, form url.Values, oauthParams map[string]string) string {
	type pair struct{ k, v string }
	var pairs []pair
	for k, vs := range u.Query() {
		for _, v := range vs {
			pairs = append(pairs, pair{percentEncode(k), percentEncode(v)})
		}
	}
	for k, vs := range form {
		for _, v := range vs {
			pairs = append(pairs, pair{percentEncode(k), percentEncode(v)})
		}
	}
	for k, v := range oauthParams {
		pairs = append(pairs, pair{percentEncode(k), percentEncode(v)})
	}
	sort.Slice(pairs, func(i, j int) bool {
		if pairs[i].k == pairs[j].k {
			return pairs[i].v < pairs[j].v
		}
		return pairs[i].k < pairs[j].k
	})

	encoded := make([]string, len(pairs))
	for i, p := range pairs {
		encoded[i] = p.k + "=" + p.v
	}

	base := strings.ToUpper(method) + "&" +
		percentEncode(baseStringURI(u)) + "&" +
		percentEncode(strings.Join(encoded, "&"))

	key := percentEncode(s.consumer.Secret) + "&" + percentEncode(s.secret)
	mac := hmac.New(sha1.New, []byte(key))
	mac.Write([]byte(base))
	return base64.StdEncoding.EncodeToString(mac.Sum(nil))
}

// baseStringURI drops the query and default ports, lowercasing scheme and host.
func baseStringURI(u *url.URL) string {
	scheme := strings.ToLower(u.Scheme)
	host := strings.ToLower(u.Host)
	if (scheme == "http" && strings.HasSuffix(host, ":80")) ||
		(scheme == "https" && strings.HasSuffix(host, ":443")) {
		host = host[:strings.LastIndex(host, ":")]
	}
	path := u.EscapedPath()
	if path == "" {
		path = "/"
	}
	return scheme + "://" + host + path
}

// percentEncode escapes everything outside the RFC 3986 unreserved set.
func percentEncode(s string) string {
	const hexDigits = "0123456789ABCDEF"
	var b strings.Builder
	for i := 0; i < len(s); i++ {
		c := s[i]
		if ('A' <= c && c <= 'Z') || ('a' <= c && c <= 'z') || ('0' <= c && c <= '9') ||
			c == '-' || c == '.' || c == '_' || c == '~' {
			b.WriteByte(c)
			continue
		}
		b.WriteByte('%')
		b.WriteByte(hexDigits[c>>4])
		b.WriteByte(hexDigits[c&0x0f])
	}
	return b.String()
}

func randomNonce() string {
	buf := make([]byte, 16)
	_, _ = rand.Read(buf)
	return hex.EncodeToString(buf)
}
