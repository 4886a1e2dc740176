// ABOUTME: Session manager for the single Garmin Connect account.
// ABOUTME: Restores saved tokens, falls back to credential login, persists refreshes.
package session

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/harperreed/garmin-mcp/internal/garmin"
)

// ErrUnavailable is returned when neither saved tokens nor credentials
// produce a working session.
var ErrUnavailable = errors.New("garmin session unavailable")

// Method records how a session was established.
type Method string

const (
	MethodTokens      Method = "tokens"
	MethodCredentials Method = "credentials"
)

// Config configures a Manager.
type Config struct {
	// TokenDir is the token cache directory.
	TokenDir string

	// Credentials are used only when token restoration fails.
	Credentials garmin.Credentials

	// UserProfilePK overrides the profile id reported by Garmin when non-zero.
	UserProfilePK int64

	// Prompt answers MFA challenges. Nil means challenges fail.
	Prompt garmin.MFAPrompter

	// ClientOptions are passed to every garmin.Client the manager creates.
	ClientOptions []garmin.Option

	Logger *log.Logger
	Now    func() time.Time
}

// Session is an authenticated context for one account.
type Session struct {
	Client        *garmin.Client
	Profile       garmin.Profile
	ProfilePK     int64
	Method        Method
	EstablishedAt time.Time
}

// ExpiresAt returns the current OAuth2 access token expiry.
func (s *Session) ExpiresAt() time.Time {
	tokens := s.Client.Tokens()
	if tokens == nil {
		return time.Time{}
	}
	return tokens.OAuth2.Expiry()
}

// Status is a point-in-time view of the manager.
type Status struct {
	Authenticated bool       `json:"authenticated"`
	Method        Method     `json:"method,omitempty"`
	DisplayName   string     `json:"display_name,omitempty"`
	FullName      string     `json:"full_name,omitempty"`
	ProfilePK     int64      `json:"profile_pk,omitempty"`
	TokenDir      string     `json:"token_dir"`
	TokensOnDisk  bool       `json:"tokens_on_disk"`
	ExpiresAt     *time.Time `json:"expires_at,omitempty"`
	Error         string     `json:"error,omitempty"`
}

// Manager owns the session. It is safe for concurrent use.
type Manager struct {
	cfg    Config
	store  *garmin.TokenStore
	logger *log.Logger

	authMu sync.Mutex

	mu      sync.RWMutex
	session *Session
	lastErr error
}

// New creates a manager. It does not contact Garmin until Authenticate.
func New(cfg Config) *Manager {
	if cfg.Logger == nil {
		cfg.Logger = log.New(io.Discard)
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	return &Manager{
		cfg:    cfg,
		store:  garmin.NewTokenStore(cfg.TokenDir),
		logger: cfg.Logger,
	}
}

// Store returns the token store.
func (m *Manager) Store() *garmin.TokenStore {
	return m.store
}

// Authenticate establishes a session, preferring saved tokens.
func (m *Manager) Authenticate(ctx context.Context) (*Session, error) {
	m.authMu.Lock()
	defer m.authMu.Unlock()
	return m.authenticateLocked(ctx)
}

func (m *Manager) authenticateLocked(ctx context.Context) (*Session, error) {
	var errs []error

	sess, err := m.restore(ctx)
	if err == nil {
		m.logger.Info("authenticated via saved tokens", "display_name", sess.Profile.DisplayName)
		m.set(sess, nil)
		return sess, nil
	}
	if !errors.Is(err, garmin.ErrNoTokens) {
		m.logger.Warn("token auth failed", "err", err)
	}
	errs = append(errs, fmt.Errorf("restore tokens: %w", err))

	if m.cfg.Credentials.Email != "" && m.cfg.Credentials.Password != "" {
		sess, err := m.login(ctx)
		if err == nil {
			m.logger.Info("authenticated via email/password", "display_name", sess.Profile.DisplayName)
			m.set(sess, nil)
			return sess, nil
		}
		m.logger.Error("email/password auth failed", "err", err)
		errs = append(errs, fmt.Errorf("credential login: %w", err))
	} else {
		errs = append(errs, errors.New("credential login: GARMIN_EMAIL and GARMIN_PASSWORD are not set"))
	}

	err = fmt.Errorf("%w: %w", ErrUnavailable, errors.Join(errs...))
	m.logger.Error("no authentication method available; run 'garmin-mcp auth login'")
	m.set(nil, err)
	return nil, err
}

// Session returns the current session, authenticating again if there is none.
func (m *Manager) Session(ctx context.Context) (*Session, error) {
	if sess := m.Current(); sess != nil {
		return sess, nil
	}
	m.authMu.Lock()
	defer m.authMu.Unlock()
	if sess := m.Current(); sess != nil {
		return sess, nil
	}
	return m.authenticateLocked(ctx)
}

// Current returns the established session or nil.
func (m *Manager) Current() *Session {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.session
}

// Status reports the manager state without contacting Garmin.
func (m *Manager) Status() Status {
	m.mu.RLock()
	sess, lastErr := m.session, m.lastErr
	m.mu.RUnlock()

	st := Status{
		TokenDir:     m.store.Dir(),
		TokensOnDisk: m.store.Exists(),
	}
	if sess != nil {
		st.Authenticated = true
		st.Method = sess.Method
		st.DisplayName = sess.Profile.DisplayName
		st.FullName = sess.Profile.FullName
		st.ProfilePK = sess.ProfilePK
		if exp := sess.ExpiresAt(); !exp.IsZero() {
			st.ExpiresAt = &exp
		}
	} else if lastErr != nil {
		st.Error = lastErr.Error()
	}
	return st
}

// Logout deletes saved tokens and drops the session.
func (m *Manager) Logout() error {
	m.authMu.Lock()
	defer m.authMu.Unlock()
	if err := m.store.Clear(); err != nil {
		return fmt.Errorf("logout: %w", err)
	}
	m.set(nil, nil)
	return nil
}

func (m *Manager) restore(ctx context.Context) (*Session, error) {
	tokens, err := m.store.Load()
	if err != nil {
		return nil, err
	}
	client := m.newClient()
	client.SetTokens(tokens)

	sess, err := m.establish(ctx, client, MethodTokens)
	if err != nil {
		return nil, err
	}
	// Persist again so a refresh during verification is not lost.
	if err := m.store.Save(client.Tokens()); err != nil {
		m.logger.Warn("could not save refreshed tokens", "dir", m.store.Dir(), "err", err)
	}
	return sess, nil
}

func (m *Manager) login(ctx context.Context) (*Session, error) {
	client := m.newClient()
	if err := client.Login(ctx, m.cfg.Credentials, m.cfg.Prompt); err != nil {
		return nil, err
	}
	return m.establish(ctx, client, MethodCredentials)
}

func (m *Manager) establish(ctx context.Context, client *garmin.Client, method Method) (*Session, error) {
	profile, err := client.SocialProfile(ctx)
	if err != nil {
		return nil, err
	}
	pk := profile.ProfileID
	if m.cfg.UserProfilePK != 0 {
		pk = m.cfg.UserProfilePK
	}
	return &Session{
		Client:        client,
		Profile:       *profile,
		ProfilePK:     pk,
		Method:        method,
		EstablishedAt: m.cfg.Now(),
	}, nil
}

func (m *Manager) newClient() *garmin.Client {
	opts := append([]garmin.Option{garmin.WithLogger(m.logger)}, m.cfg.ClientOptions...)
	client := garmin.New(opts...)
	client.OnRefresh(func(t *garmin.Tokens) {
		if err := m.store.Save(t); err != nil {
			m.logger.Warn("could not save tokens", "dir", m.store.Dir(), "err", err)
			return
		}
		m.logger.Debug("saved tokens", "dir", m.store.Dir())
	})
	return client
}

func (m *Manager) set(sess *Session, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.session = sess
	m.lastErr = err
}
