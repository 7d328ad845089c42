package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

const (
	DefaultHost           = "openapi.baidu.com"
	DefaultConnectTimeout = 5000 * time.Millisecond
	DefaultReadTimeout    = 5000 * time.Millisecond
	DefaultMaxAttempts    = 1
)

type Config struct {
	Host           string
	AccessToken    string
	SessionKey     string
	SessionSecret  string
	ConnectTimeout time.Duration
	ReadTimeout    time.Duration
	// StrictErrors switches error detection from the substring check to a
	// structured error_code/error_msg check.
	StrictErrors bool
	// MaxAttempts is passed through to the transport. 1 means no retries.
	MaxAttempts uint
	// UserAgent replaces the transport's default User-Agent when set.
	UserAgent string
}

func Load() (*Config, error) {
	// Try to load .env file, but don't fail if it doesn't exist
	_ = godotenv.Load()

	cfg := &Config{
		Host:          os.Getenv("BAIDU_OPENAPI_HOST"),
		AccessToken:   os.Getenv("BAIDU_OPENAPI_ACCESS_TOKEN"),
		SessionKey:    os.Getenv("BAIDU_OPENAPI_SESSION_KEY"),
		SessionSecret: os.Getenv("BAIDU_OPENAPI_SESSION_SECRET"),
		UserAgent:     os.Getenv("BAIDU_OPENAPI_USER_AGENT"),
	}

	var err error
	if cfg.ConnectTimeout, err = millisFromEnv("BAIDU_OPENAPI_CONNECT_TIMEOUT_MS"); err != nil {
		return nil, err
	}
	if cfg.ReadTimeout, err = millisFromEnv("BAIDU_OPENAPI_READ_TIMEOUT_MS"); err != nil {
		return nil, err
	}
	if v := os.Getenv("BAIDU_OPENAPI_STRICT_ERRORS"); v != "" {
		if cfg.StrictErrors, err = strconv.ParseBool(v); err != nil {
			return nil, fmt.Errorf("BAIDU_OPENAPI_STRICT_ERRORS must be a boolean: %w", err)
		}
	}
	if v := os.Getenv("BAIDU_OPENAPI_MAX_ATTEMPTS"); v != "" {
		n, err := strconv.ParseUint(v, 10, 32)
		if err != nil {
			return nil, fmt.Errorf("BAIDU_OPENAPI_MAX_ATTEMPTS must be a positive integer: %w", err)
		}
		cfg.MaxAttempts = uint(n)
	}

	cfg.ApplyDefaults()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// NewAccessTokenConfig returns a validated config for HTTPS calls with an
// access token.
func NewAccessTokenConfig(accessToken string) (*Config, error) {
	cfg := &Config{AccessToken: accessToken}
	cfg.ApplyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// NewSessionConfig returns a validated config for signed HTTP calls.
func NewSessionConfig(sessionKey, sessionSecret string) (*Config, error) {
	cfg := &Config{SessionKey: sessionKey, SessionSecret: sessionSecret}
	cfg.ApplyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// ApplyDefaults fills unset fields.
func (c *Config) ApplyDefaults() {
	if c.Host == "" {
		c.Host = DefaultHost
	}
	if c.ConnectTimeout == 0 {
		c.ConnectTimeout = DefaultConnectTimeout
	}
	if c.ReadTimeout == 0 {
		c.ReadTimeout = DefaultReadTimeout
	}
	if c.MaxAttempts == 0 {
		c.MaxAttempts = DefaultMaxAttempts
	}
}

// UsesAccessToken reports whether the config selects access-token (HTTPS) mode.
func (c *Config) UsesAccessToken() bool {
	return c.AccessToken != ""
}

func (c *Config) Validate() error {
	hasToken := c.AccessToken != ""
	hasSession := c.SessionKey != "" || c.SessionSecret != ""

	if hasToken && hasSession {
		return fmt.Errorf("BAIDU_OPENAPI_ACCESS_TOKEN and BAIDU_OPENAPI_SESSION_KEY/SECRET are mutually exclusive")
	}
	if !hasToken && !hasSession {
		return fmt.Errorf("BAIDU_OPENAPI_ACCESS_TOKEN or BAIDU_OPENAPI_SESSION_KEY/SECRET is required")
	}
	if hasSession {
		if c.SessionKey == "" {
			return fmt.Errorf("BAIDU_OPENAPI_SESSION_KEY is required")
		}
		if c.SessionSecret == "" {
			return fmt.Errorf("BAIDU_OPENAPI_SESSION_SECRET is required")
		}
	}
	if strings.Contains(c.Host, "/") {
		return fmt.Errorf("BAIDU_OPENAPI_HOST must be a bare host, got %q", c.Host)
	}
	if c.ConnectTimeout < 0 || c.ReadTimeout < 0 {
		return fmt.Errorf("timeouts must not be negative")
	}
	return nil
}

func millisFromEnv(key string) (time.Duration, error) {
	v := os.Getenv(key)
	if v == "" {
		return 0, nil
	}
	ms, err := strconv.Atoi(v)
	if err != nil || ms < 0 {
		return 0, fmt.Errorf("%s must be a non-negative integer of milliseconds", key)
	}
	return time.Duration(ms) * time.Millisecond, nil
}
