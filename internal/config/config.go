package config

import (
	"os"
	"strconv"
)

type Config struct {
	Port        int
	AuthToken   string
	JWTSecret   string
	DatabaseURL string

	CodePurgeIntervalHours int
}

func Load() Config {
	cfg := Config{
		Port:                   8080,
		AuthToken:              os.Getenv("VTC_AUTH_TOKEN"),
		JWTSecret:              os.Getenv("VTC_JWT_SECRET"),
		DatabaseURL:            os.Getenv("VTC_DATABASE_URL"),
		CodePurgeIntervalHours: 24,
	}

	if cfg.DatabaseURL == "" {
		cfg.DatabaseURL = os.Getenv("DATABASE_URL")
	}

	if v := os.Getenv("VTC_PORT"); v != "" {
		if p, err := strconv.Atoi(v); err == nil && p > 0 && p < 65536 {
			cfg.Port = p
		}
	}

	if v := os.Getenv("VTC_CODE_PURGE_INTERVAL_HOURS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n >= 0 {
			cfg.CodePurgeIntervalHours = n
		}
	}

	return cfg
}

func (c Config) ListenAddr() string {
	return ":" + strconv.Itoa(c.Port)
}
