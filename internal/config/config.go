// Package config loads server settings from the environment.
//
// LOAD ORDER:
//  1. .env in the working directory (optional, via godotenv)
//  2. the process environment, which always wins over .env
//  3. defaults for anything still unset
//
// Unlike a "fall back to the default on a typo" loader, an invalid value
// (PORT=abc, SESSION_TTL=forever) is a load error. A server silently running
// with a different TTL than the operator asked for is worse than one that
// refuses to start.
package config

import (
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

const (
	DriverJSON   = "json"
	DriverSQLite = "sqlite"
)

// Config holds every setting of the server.
type Config struct {
	Port int

	StoreDriver string // "json" or "sqlite"
	DataPath    string

	SessionSecret string
	// SecretGenerated is true when SESSION_SECRET was unset and a random
	// secret was made up. Sessions then do not survive a restart.
	SecretGenerated bool
	SessionTTL      time.Duration
	CookieSecure    bool

	RedisAddr     string // empty selects the in-memory session store
	RedisPassword string
	RedisDB       int

	GoogleClientID     string
	GoogleClientSecret string
	GoogleCallbackURL  string

	ClientURL string
	StaticDir string // empty disables serving the frontend

	AuthRateLimit int // login/register attempts per minute per IP, 0 disables
	// TrustProxy makes X-Forwarded-For / X-Real-IP the client address.
	// Only set it when a reverse proxy in front of the server overwrites
	// those headers; otherwise any client can pick its own address.
	TrustProxy bool
	LogLevel   slog.Level
}

// GoogleEnabled reports whether both OAuth credentials are present.
func (c *Config) GoogleEnabled() bool {
	return c.GoogleClientID != "" && c.GoogleClientSecret != ""
}

// Load reads .env (if present) and the environment.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("config: reading .env: %w", err)
	}
	return FromEnv()
}

// FromEnv builds a Config from the process environment only.
func FromEnv() (*Config, error) {
	var errs []error
	p := parser{errs: &errs}

	cfg := &Config{
		Port:               p.getInt("PORT", 3001),
		StoreDriver:        strings.ToLower(getEnv("STORE_DRIVER", DriverJSON)),
		SessionSecret:      getEnv("SESSION_SECRET", ""),
		SessionTTL:         p.getDuration("SESSION_TTL", 7*24*time.Hour),
		CookieSecure:       p.getBool("COOKIE_SECURE", false),
		RedisAddr:          getEnv("REDIS_ADDR", ""),
		RedisPassword:      getEnv("REDIS_PASSWORD", ""),
		RedisDB:            p.getInt("REDIS_DB", 0),
		GoogleClientID:     getEnv("GOOGLE_CLIENT_ID", ""),
		GoogleClientSecret: getEnv("GOOGLE_CLIENT_SECRET", ""),
		ClientURL:          strings.TrimRight(getEnv("CLIENT_URL", "http://localhost:5173"), "/"),
		StaticDir:          getEnv("STATIC_DIR", ""),
		AuthRateLimit:      p.getInt("AUTH_RATE_LIMIT", 10),
		TrustProxy:         p.getBool("TRUSTED_PROXY", false),
		LogLevel:           p.getLevel("LOG_LEVEL", slog.LevelInfo),
	}

	switch cfg.StoreDriver {
	case DriverJSON:
		cfg.DataPath = getEnv("DATA_PATH", "data/data.json")
	case DriverSQLite:
		cfg.DataPath = getEnv("DATA_PATH", "data/social.db")
	default:
		errs = append(errs, fmt.Errorf("STORE_DRIVER: unknown driver %q (want json or sqlite)", cfg.StoreDriver))
	}

	cfg.GoogleCallbackURL = getEnv("GOOGLE_CALLBACK_URL",
		fmt.Sprintf("http://localhost:%d/auth/google/callback", cfg.Port))

	if cfg.Port <= 0 || cfg.Port > 65535 {
		errs = append(errs, fmt.Errorf("PORT: %d out of range", cfg.Port))
	}
	if cfg.SessionTTL <= 0 {
		errs = append(errs, errors.New("SESSION_TTL: must be positive"))
	}
	if cfg.AuthRateLimit < 0 {
		errs = append(errs, errors.New("AUTH_RATE_LIMIT: must not be negative"))
	}

	if cfg.SessionSecret == "" {
		secret, err := randomSecret()
		if err != nil {
			errs = append(errs, err)
		}
		cfg.SessionSecret = secret
		cfg.SecretGenerated = true
	} else if len(cfg.SessionSecret) < 16 {
		errs = append(errs, errors.New("SESSION_SECRET: must be at least 16 characters"))
	}

	if err := errors.Join(errs...); err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}
	return cfg, nil
}

func getEnv(key, fallback string) string {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return fallback
	}
	return value
}

// parser collects every invalid value instead of stopping at the first, so
// one failed start shows all the typos.
type parser struct {
	errs *[]error
}

func (p parser) fail(key, value string, err error) {
	*p.errs = append(*p.errs, fmt.Errorf("%s: invalid value %q: %w", key, value, err))
}

func (p parser) getInt(key string, fallback int) int {
	raw := getEnv(key, "")
	if raw == "" {
		return fallback
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		p.fail(key, raw, err)
		return fallback
	}
	return v
}

func (p parser) getBool(key string, fallback bool) bool {
	raw := getEnv(key, "")
	if raw == "" {
		return fallback
	}
	v, err := strconv.ParseBool(raw)
	if err != nil {
		p.fail(key, raw, err)
		return fallback
	}
	return v
}

func (p parser) getDuration(key string, fallback time.Duration) time.Duration {
	raw := getEnv(key, "")
	if raw == "" {
		return fallback
	}
	v, err := time.ParseDuration(raw)
	if err != nil {
		p.fail(key, raw, err)
		return fallback
	}
	return v
}

func (p parser) getLevel(key string, fallback slog.Level) slog.Level {
	raw := getEnv(key, "")
	if raw == "" {
		return fallback
	}
	var v slog.Level
	if err := v.UnmarshalText([]byte(raw)); err != nil {
		p.fail(key, raw, err)
		return fallback
	}
	return v
}

func randomSecret() (string, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("SESSION_SECRET: generating: %w", err)
	}
	return hex.EncodeToString(b), nil
}
