package config

import (
	"errors"
	"os"
	"strings"
	"time"
)

type HTTPConfig struct {
	Addr string
}

type AppConfig struct {
	ServiceName string
	LogLevel    string
	HTTP        HTTPConfig

	// DatabaseURL selects the Postgres repository; empty means the
	// in-memory store (development only).
	DatabaseURL string
	// RedisURL enables the read-side progress cache when set.
	RedisURL string
	CacheTTL time.Duration
	// NATSURL enables event publishing when set.
	NATSURL string

	// JWTSecret signs and verifies access tokens. Required: tokens must
	// never be signed with a literal embedded in code.
	JWTSecret      []byte
	AccessTokenTTL time.Duration
}

func Load() (AppConfig, error) {
	cfg := AppConfig{
		ServiceName: strings.TrimSpace(os.Getenv("SERVICE_NAME")),
		LogLevel:    strings.TrimSpace(os.Getenv("LOG_LEVEL")),
		HTTP: HTTPConfig{
			Addr: strings.TrimSpace(os.Getenv("HTTP_ADDR")),
		},
		DatabaseURL:    strings.TrimSpace(os.Getenv("DATABASE_URL")),
		RedisURL:       strings.TrimSpace(os.Getenv("REDIS_URL")),
		CacheTTL:       parseDurationWithDefault(os.Getenv("CACHE_TTL"), 30*time.Second),
		NATSURL:        strings.TrimSpace(os.Getenv("NATS_URL")),
		AccessTokenTTL: parseDurationWithDefault(os.Getenv("ACCESS_TOKEN_TTL"), 24*time.Hour),
	}

	secret := strings.TrimSpace(os.Getenv("JWT_SECRET"))
	if secret == "" {
		return AppConfig{}, errors.New("JWT_SECRET is required")
	}
	cfg.JWTSecret = []byte(secret)

	if cfg.ServiceName == "" {
		cfg.ServiceName = "watchtrack"
	}
	if cfg.HTTP.Addr == "" {
		cfg.HTTP.Addr = ":8080"
	}
	if cfg.LogLevel == "" {
		cfg.LogLevel = "info"
	}
	return cfg, nil
}

func parseDurationWithDefault(v string, def time.Duration) time.Duration {
	v = strings.TrimSpace(v)
	if v == "" {
		return def
	}
	d, err := time.ParseDuration(v)
	if err != nil || d <= 0 {
		return def
	}
	return d
}
