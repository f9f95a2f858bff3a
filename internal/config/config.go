package config

import (
	"fmt"
	"os"
)

type Config struct {
	Env         string
	ListenAddr  string
	DatabaseURL string
	RedisAddr   string
	LogLevel    string
	Migrate     bool
}

func getenv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func Load() (Config, error) {
	cfg := Config{
		Env:         getenv("APP_ENV", "development"),
		ListenAddr:  getenv("LISTEN_ADDR", ":8080"),
		DatabaseURL: os.Getenv("DATABASE_URL"),
		RedisAddr:   os.Getenv("REDIS_ADDR"),
		LogLevel:    getenv("LOG_LEVEL", "info"),
		Migrate:     os.Getenv("MIGRATE") == "1",
	}
	if cfg.DatabaseURL == "" {
		return cfg, fmt.Errorf("DATABASE_URL not set")
	}
	return cfg, nil
}
