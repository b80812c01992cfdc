package config

import (
	"errors"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config carries every runtime setting. It is built once in main and
// passed by value into component constructors; nothing reads the
// environment after startup.
type Config struct {
	ListenAddr string
	AppName    string

	PostgresDSN       string
	DBMaxOpenConns    int
	DBMaxIdleConns    int
	DBConnMaxLifetime time.Duration

	TokenSecret string
	AccessTTL   time.Duration
	RefreshTTL  time.Duration

	CORSAllowedOrigins []string

	RateLimitPerSecond int
	RateLimitBurst     int

	HTTPReadTimeout       time.Duration
	HTTPReadHeaderTimeout time.Duration
	HTTPWriteTimeout      time.Duration
	HTTPIdleTimeout       time.Duration

	BootstrapAdminUsername string
	BootstrapAdminEmail    string
	BootstrapAdminPassword string
}

// Load builds a Config from environment variables with sensible defaults.
func Load() (Config, error) {
	cfg := Config{
		ListenAddr:             env("AQUAWATCH_LISTEN_ADDR", ":8080"),
		AppName:                env("AQUAWATCH_APP_NAME", "AquaWatch"),
		PostgresDSN:            env("AQUAWATCH_PG_DSN", ""),
		DBMaxOpenConns:         envInt("AQUAWATCH_DB_MAX_OPEN_CONNS", 10),
		DBMaxIdleConns:         envInt("AQUAWATCH_DB_MAX_IDLE_CONNS", 10),
		DBConnMaxLifetime:      time.Duration(envInt("AQUAWATCH_DB_CONN_MAX_LIFETIME_MIN", 30)) * time.Minute,
		TokenSecret:            env("AQUAWATCH_TOKEN_SECRET", ""),
		AccessTTL:              time.Duration(envInt("AQUAWATCH_ACCESS_TTL_MIN", 30)) * time.Minute,
		RefreshTTL:             time.Duration(envInt("AQUAWATCH_REFRESH_TTL_DAYS", 7)) * 24 * time.Hour,
		CORSAllowedOrigins:     envCSV("AQUAWATCH_CORS_ORIGINS"),
		RateLimitPerSecond:     envInt("AQUAWATCH_RATE_LIMIT_PER_SEC", 10),
		RateLimitBurst:         envInt("AQUAWATCH_RATE_LIMIT_BURST", 20),
		HTTPReadTimeout:        time.Duration(envInt("AQUAWATCH_HTTP_READ_TIMEOUT_SEC", 15)) * time.Second,
		HTTPReadHeaderTimeout:  time.Duration(envInt("AQUAWATCH_HTTP_READ_HEADER_TIMEOUT_SEC", 15)) * time.Second,
		HTTPWriteTimeout:       time.Duration(envInt("AQUAWATCH_HTTP_WRITE_TIMEOUT_SEC", 15)) * time.Second,
		HTTPIdleTimeout:        time.Duration(envInt("AQUAWATCH_HTTP_IDLE_TIMEOUT_SEC", 60)) * time.Second,
		BootstrapAdminUsername: env("AQUAWATCH_BOOTSTRAP_ADMIN_USERNAME", ""),
		BootstrapAdminEmail:    env("AQUAWATCH_BOOTSTRAP_ADMIN_EMAIL", ""),
		BootstrapAdminPassword: env("AQUAWATCH_BOOTSTRAP_ADMIN_PASSWORD", ""),
	}
	if cfg.TokenSecret == "" {
		return Config{}, errors.New("config: AQUAWATCH_TOKEN_SECRET is required")
	}
	if cfg.AccessTTL <= 0 || cfg.RefreshTTL <= 0 {
		return Config{}, errors.New("config: token lifetimes must be positive")
	}
	return cfg, nil
}

func env(key, fallback string) string {
	if v, ok := os.LookupEnv(key); ok && strings.TrimSpace(v) != "" {
		return strings.TrimSpace(v)
	}
	return fallback
}

func envInt(key string, fallback int) int {
	v, ok := os.LookupEnv(key)
	if !ok {
		return fallback
	}
	n, err := strconv.Atoi(strings.TrimSpace(v))
	if err != nil {
		return fallback
	}
	return n
}

func envCSV(key string) []string {
	v, ok := os.LookupEnv(key)
	if !ok {
		return nil
	}
	var out []string
	for _, part := range strings.Split(v, ",") {
		part = strings.TrimSpace(part)
		if part != "" {
			out = append(out, part)
		}
	}
	return out
}
