// ABOUTME: garmin-mcp configuration from environment, .env files and an optional TOML file.
// ABOUTME: Resolves credentials, token directory, domain, log level and HTTP timeout.

package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Keys understood in the config file. Each is also read from GARMIN_<KEY>.
const (
	KeyEmail         = "email"
	KeyPassword      = "password"
	KeyTokenStore    = "tokenstore"
	KeyDomain        = "domain"
	KeyUserProfilePK = "user_profile_pk"
	KeyLogLevel      = "log_level"
	KeyHTTPTimeout   = "http_timeout"

	envPrefix = "GARMIN"
)

// Defaults.
const (
	DefaultTokenStore  = "~/.garminconnect"
	DefaultDomain      = "garmin.com"
	DefaultLogLevel    = "info"
	DefaultHTTPTimeout = 30 * time.Second
)

// Config stores garmin-mcp settings.
type Config struct {
	Email    string
	Password string

	// TokenStore is the token cache directory, with ~ expanded.
	TokenStore string

	// Domain is "garmin.com", or "garmin.cn" for accounts in China.
	Domain string

	// UserProfilePK overrides the profile id Garmin reports, when non-zero.
	UserProfilePK int64

	LogLevel    string
	HTTPTimeout time.Duration

	// File is the config file that was read, or empty.
	File string
}

// HasCredentials reports whether both email and password are set.
func (c *Config) HasCredentials() bool {
	return c.Email != "" && c.Password != ""
}

// ExpandPath expands a leading ~ to the user's home directory.
func ExpandPath(path string) string {
	if path == "" {
		return ""
	}
	if path == "~" {
		home, _ := os.UserHomeDir()
		return home
	}
	if strings.HasPrefix(path, "~/") {
		home, _ := os.UserHomeDir()
		return filepath.Join(home, path[2:])
	}
	return path
}

// GetConfigDir returns the garmin-mcp config directory.
func GetConfigDir() string {
	configDir := os.Getenv("XDG_CONFIG_HOME")
	if configDir == "" {
		homeDir, _ := os.UserHomeDir()
		configDir = filepath.Join(homeDir, ".config")
	}
	return filepath.Join(configDir, "garmin-mcp")
}

// GetConfigPath returns the config file path.
func GetConfigPath() string {
	return filepath.Join(GetConfigDir(), "config.toml")
}

// LoadDotEnv loads .env from the working directory and the config directory.
// Variables already in the environment are never overridden, and missing
// files are skipped. It returns the files that were loaded.
func LoadDotEnv() ([]string, error) {
	var loaded []string
	for _, p := range []string{".env", filepath.Join(GetConfigDir(), ".env")} {
		if err := godotenv.Load(p); err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				continue
			}
			return loaded, fmt.Errorf("load %s: %w", p, err)
		}
		loaded = append(loaded, p)
	}
	return loaded, nil
}

// NewViper returns a viper instance with defaults, env bindings and the
// config file search path set. Flags may be bound to it before Load.
func NewViper() *viper.Viper {
	v := viper.New()
	v.SetDefault(KeyTokenStore, DefaultTokenStore)
	v.SetDefault(KeyDomain, DefaultDomain)
	v.SetDefault(KeyLogLevel, DefaultLogLevel)
	v.SetDefault(KeyHTTPTimeout, DefaultHTTPTimeout.String())

	v.SetEnvPrefix(envPrefix)
	for _, key := range []string{
		KeyEmail, KeyPassword, KeyTokenStore, KeyDomain,
		KeyUserProfilePK, KeyLogLevel, KeyHTTPTimeout,
	} {
		_ = v.BindEnv(key)
	}

	v.SetConfigName("config")
	v.SetConfigType("toml")
	v.AddConfigPath(GetConfigDir())
	return v
}

// Load reads the config file, if any, and resolves every setting. A nil v
// uses NewViper.
func Load(v *viper.Viper) (*Config, error) {
	if v == nil {
		v = NewViper()
	}
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("read config file: %w", err)
		}
	}

	cfg := &Config{
		Email:      strings.TrimSpace(v.GetString(KeyEmail)),
		Password:   v.GetString(KeyPassword),
		TokenStore: ExpandPath(v.GetString(KeyTokenStore)),
		Domain:     strings.TrimSpace(v.GetString(KeyDomain)),
		LogLevel:   strings.ToLower(strings.TrimSpace(v.GetString(KeyLogLevel))),
		File:       v.ConfigFileUsed(),
	}
	if cfg.TokenStore == "" {
		cfg.TokenStore = ExpandPath(DefaultTokenStore)
	}
	if cfg.Domain == "" {
		cfg.Domain = DefaultDomain
	}

	if raw := strings.TrimSpace(v.GetString(KeyUserProfilePK)); raw != "" {
		pk, err := strconv.ParseInt(raw, 10, 64)
		if err != nil || pk < 0 {
			return nil, fmt.Errorf("invalid %s %q: expected a positive integer", KeyUserProfilePK, raw)
		}
		cfg.UserProfilePK = pk
	}

	timeout, err := parseTimeout(v.GetString(KeyHTTPTimeout))
	if err != nil {
		return nil, err
	}
	cfg.HTTPTimeout = timeout

	return cfg, nil
}

// parseTimeout accepts a Go duration ("45s") or a bare number of seconds.
func parseTimeout(raw string) (time.Duration, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return DefaultHTTPTimeout, nil
	}
	if secs, err := strconv.Atoi(raw); err == nil {
		raw = strconv.Itoa(secs) + "s"
	}
	d, err := time.ParseDuration(raw)
	if err != nil || d <= 0 {
		return 0, fmt.Errorf("invalid %s %q: expected a positive duration", KeyHTTPTimeout, raw)
	}
	return d, nil
}
