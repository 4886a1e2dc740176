// ABOUTME: On-disk token cache directory shared with garth-based tooling.
// ABOUTME: Reads and writes oauth1_token.json and oauth2_token.json with 0600 perms.
package garmin

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
)

const (
	oauth1File = "oauth1_token.json"
	oauth2File = "oauth2_token.json"

	storeDirMode  = 0o700
	tokenFileMode = 0o600
)

// TokenStore persists tokens in a directory.
type TokenStore struct {
	dir string
}

// NewTokenStore returns a store rooted at dir. The directory is created on Save.
func NewTokenStore(dir string) *TokenStore {
	return &TokenStore{dir: filepath.Clean(dir)}
}

// Dir returns the store directory.
func (s *TokenStore) Dir() string {
	return s.dir
}

// Exists reports whether both token files are present.
func (s *TokenStore) Exists() bool {
	for _, name := range []string{oauth1File, oauth2File} {
		if _, err := os.Stat(filepath.Join(s.dir, name)); err != nil {
			return false
		}
	}
	return true
}

// Load reads both tokens. It returns ErrNoTokens if either file is missing.
func (s *TokenStore) Load() (*Tokens, error) {
	var o1 OAuth1Token
	if err := s.read(oauth1File, &o1); err != nil {
		return nil, err
	}
	var o2 OAuth2Token
	if err := s.read(oauth2File, &o2); err != nil {
		return nil, err
	}
	if o1.Token == "" || o1.Secret == "" {
		return nil, fmt.Errorf("load %s: oauth1 token is incomplete", s.dir)
	}
	return &Tokens{OAuth1: &o1, OAuth2: &o2}, nil
}

// Save writes both tokens, creating the directory if needed.
func (s *TokenStore) Save(t *Tokens) error {
	if t == nil || t.OAuth1 == nil || t.OAuth2 == nil {
		return errors.New("save tokens: both oauth1 and oauth2 tokens are required")
	}
	if err := os.MkdirAll(s.dir, storeDirMode); err != nil {
		return fmt.Errorf("create token directory: %w", err)
	}
	if err := s.write(oauth1File, t.OAuth1); err != nil {
		return err
	}
	return s.write(oauth2File, t.OAuth2)
}

// Clear removes both token files. Missing files are not an error.
func (s *TokenStore) Clear() error {
	for _, name := range []string{oauth1File, oauth2File} {
		err := os.Remove(filepath.Join(s.dir, name))
		if err != nil && !errors.Is(err, os.ErrNotExist) {
			return fmt.Errorf("remove %s: %w", name, err)
		}
	}
	return nil
}

func (s *TokenStore) read(name string, v any) error {
	data, err := os.ReadFile(filepath.Join(s.dir, name))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return fmt.Errorf("%w in %s", ErrNoTokens, s.dir)
		}
		return fmt.Errorf("read %s: %w", name, err)
	}
	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("decode %s: %w", name, err)
	}
	return nil
}

func (s *TokenStore) write(name string, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("encode %s: %w", name, err)
	}
	path := filepath.Join(s.dir, name)
	if err := os.WriteFile(path, data, tokenFileMode); err != nil {
		return fmt.Errorf("write %s: %w", name, err)
	}
	// WriteFile keeps the mode of an existing file.
	if err := os.Chmod(path, tokenFileMode); err != nil {
		return fmt.Errorf("chmod %s: %w", name, err)
	}
	return nil
}
