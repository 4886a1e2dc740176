// ABOUTME: Fake Garmin SSO and Connect API server for tests.
// ABOUTME: Issues tokens, serves canned wellness JSON, and records calendar updates.
package garmintest

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
)

// Defaults used by New.
const (
	Email          = "runner@example.com"
	Password       = "hunter2"
	DisplayName    = "runner-42"
	ProfileID      = int64(90210)
	ConsumerKey    = "consumer-key"
	ConsumerSecret = "consumer-secret"

	csrf   = "csrf-token-1"
	ticket = "ST-0000-ticket"
)

// Server is an httptest server impersonating both sso.garmin.com and
// connectapi.garmin.com.
type Server struct {
	*httptest.Server

	mu sync.Mutex

	mfaCode        string
	expiresIn      int64
	calendarStatus int
	responses      map[string]string

	issued     int
	valid      map[string]bool
	periods    map[string][]string
	calendar   []map[string]any
	hydration  []map[string]any
	requests   []string
	oauthAuths []string
}

// New starts a server and closes it when the test ends.
func New(t testing.TB) *Server {
	t.Helper()
	s := &Server{
		expiresIn:      3600,
		calendarStatus: http.StatusNoContent,
		responses:      map[string]string{},
		valid:          map[string]bool{},
		periods:        map[string][]string{},
	}
	s.Server = httptest.NewServer(http.HandlerFunc(s.handle))
	t.Cleanup(s.Close)
	return s
}

// SetMFACode makes sign-in require code as a second factor.
func (s *Server) SetMFACode(code string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.mfaCode = code
}

// SetCalendarStatus sets the status returned by calendar updates. Default 204.
func (s *Server) SetCalendarStatus(status int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calendarStatus = status
}

// SetResponse makes path return body. An empty body yields 204 No Content.
// Paths without a response return 404.
func (s *Server) SetResponse(path, body string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.responses[path] = body
}

// IssueToken mints an access token the server will accept.
func (s *Server) IssueToken() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.issueLocked()
}

func (s *Server) issueLocked() string {
	s.issued++
	tok := fmt.Sprintf("access-%d", s.issued)
	s.valid[tok] = true
	return tok
}

// RevokeAll makes every issued access token invalid.
func (s *Server) RevokeAll() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.valid = map[string]bool{}
}

// Exchanges returns how many OAuth2 tokens have been issued.
func (s *Server) Exchanges() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.issued
}

// Requests returns "METHOD /path" for every API request received.
func (s *Server) Requests() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.requests...)
}

// OAuthHeaders returns the Authorization headers sent to the OAuth endpoints.
func (s *Server) OAuthHeaders() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.oauthAuths...)
}

// CalendarUpdates returns the decoded bodies of every calendar update.
func (s *Server) CalendarUpdates() []map[string]any {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]map[string]any(nil), s.calendar...)
}

// HydrationLogs returns the decoded bodies of every hydration log.
func (s *Server) HydrationLogs() []map[string]any {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]map[string]any(nil), s.hydration...)
}

// Period returns the stored date list for the period starting on start.
// Each update replaces the list, mirroring the real endpoint.
func (s *Server) Period(start string) []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.periods[start]...)
}

func (s *Server) handle(w http.ResponseWriter, r *http.Request) {
	switch {
	case r.URL.Path == "/sso/embed":
		http.SetCookie(w, &http.Cookie{Name: "GARMIN-SSO", Value: "1", Path: "/"})
		writeHTML(w, "GARMIN Authentication Application", "")
	case r.URL.Path == "/sso/signin" && r.Method == http.MethodGet:
		if _, err := r.Cookie("GARMIN-SSO"); err != nil {
			http.Error(w, "missing sso cookie", http.StatusForbidden)
			return
		}
		writeHTML(w, "GARMIN Authentication Application", csrfInput())
	case r.URL.Path == "/sso/signin" && r.Method == http.MethodPost:
		s.handleSignin(w, r)
	case r.URL.Path == "/sso/verifyMFA/loginEnterMfaCode":
		s.handleMFA(w, r)
	case r.URL.Path == "/oauth-service/oauth/preauthorized":
		s.handlePreauthorized(w, r)
	case r.URL.Path == "/oauth-service/oauth/exchange/user/2.0":
		s.handleExchange(w, r)
	default:
		s.handleAPI(w, r)
	}
}

func (s *Server) handleSignin(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil || r.PostForm.Get("_csrf") != csrf {
		http.Error(w, "bad csrf", http.StatusForbidden)
		return
	}
	if r.PostForm.Get("username") != Email || r.PostForm.Get("password") != Password {
		writeHTML(w, "GARMIN Authentication Application", csrfInput())
		return
	}
	s.mu.Lock()
	mfa := s.mfaCode
	s.mu.Unlock()
	if mfa != "" {
		writeHTML(w, "GARMIN > MFA Challenge", csrfInput())
		return
	}
	writeSuccess(w)
}

func (s *Server) handleMFA(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil || r.PostForm.Get("_csrf") != csrf {
		http.Error(w, "bad csrf", http.StatusForbidden)
		return
	}
	s.mu.Lock()
	mfa := s.mfaCode
	s.mu.Unlock()
	if r.PostForm.Get("mfa-code") != mfa {
		writeHTML(w, "GARMIN > MFA Challenge", csrfInput())
		return
	}
	writeSuccess(w)
}

func (s *Server) handlePreauthorized(w http.ResponseWriter, r *http.Request) {
	s.recordOAuth(r)
	if r.URL.Query().Get("ticket") != ticket {
		http.Error(w, "bad ticket", http.StatusUnauthorized)
		return
	}
	_, _ = io.WriteString(w, "oauth_token=o1-token&oauth_token_secret=o1-secret&mfa_token=mfa-1")
}

func (s *Server) handleExchange(w http.ResponseWriter, r *http.Request) {
	s.recordOAuth(r)
	if !strings.Contains(r.Header.Get("Authorization"), `oauth_token="o1-token"`) {
		http.Error(w, "bad oauth1 token", http.StatusUnauthorized)
		return
	}
	s.mu.Lock()
	tok := s.issueLocked()
	expires := s.expiresIn
	s.mu.Unlock()
	writeJSON(w, http.StatusOK, map[string]any{
		"scope":                    "CONNECT_READ CONNECT_WRITE",
		"jti":                      "jti-" + tok,
		"token_type":               "Bearer",
		"access_token":             tok,
		"refresh_token":            "refresh-" + tok,
		"expires_in":               expires,
		"refresh_token_expires_in": 7200,
	})
}

func (s *Server) handleAPI(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	s.requests = append(s.requests, r.Method+" "+r.URL.Path)
	auth := strings.TrimPrefix(r.Header.Get("Authorization"), "Bearer ")
	ok := s.valid[auth]
	s.mu.Unlock()
	if !ok {
		http.Error(w, `{"message":"invalid token"}`, http.StatusUnauthorized)
		return
	}

	switch r.URL.Path {
	case "/userprofile-service/socialProfile":
		writeJSON(w, http.StatusOK, map[string]any{
			"profileId":   ProfileID,
			"displayName": DisplayName,
			"fullName":    "Test Runner",
			"userName":    Email,
		})
		return
	case "/periodichealth-service/menstrualcycle/calendarupdates":
		s.handleCalendar(w, r)
		return
	case "/usersummary-service/usersummary/hydration/log":
		var body map[string]any
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		s.mu.Lock()
		s.hydration = append(s.hydration, body)
		s.mu.Unlock()
		writeJSON(w, http.StatusOK, map[string]any{"calendarDate": body["calendarDate"], "valueInML": body["valueInML"]})
		return
	}

	s.mu.Lock()
	body, found := s.responses[r.URL.Path]
	s.mu.Unlock()
	if !found {
		http.NotFound(w, r)
		return
	}
	if body == "" {
		w.WriteHeader(http.StatusNoContent)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	_, _ = io.WriteString(w, body)
}

func (s *Server) handleCalendar(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	var body map[string]any
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.calendar = append(s.calendar, body)
	if s.calendarStatus != http.StatusNoContent {
		w.WriteHeader(s.calendarStatus)
		return
	}
	start, _ := body["startDate"].(string)
	lists, _ := body["cycleDatesLists"].([]any)
	var dates []string
	if len(lists) > 0 {
		inner, _ := lists[0].([]any)
		for _, d := range inner {
			if ds, ok := d.(string); ok {
				dates = append(dates, ds)
			}
		}
	}
	s.periods[start] = dates
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) recordOAuth(r *http.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.oauthAuths = append(s.oauthAuths, r.Header.Get("Authorization"))
}

func csrfInput() string {
	return `<form><input type="hidden" name="_csrf" value="` + csrf + `"></form>`
}

func writeSuccess(w http.ResponseWriter) {
	writeHTML(w, "Success", `<script>var url = "https://sso.garmin.com/sso/embed?ticket=`+ticket+`";</script>`)
}

func writeHTML(w http.ResponseWriter, title, body string) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	_, _ = fmt.Fprintf(w, "<html><head><title>%s</title></head><body>%s</body></html>", title, body)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
