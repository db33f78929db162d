package taskserver

import (
	"os"
	"strings"
)

type Config struct {
	Port        string
	LogLevel    string
	DatabaseURL string
	AuthToken   string
}

func LoadConfig() Config {
	cfg := Config{
		Port:        envOrDefault("TASKSERVER_PORT", "8080"),
		LogLevel:    envOrDefault("TASKSERVER_LOG_LEVEL", "info"),
		DatabaseURL: envOrDefault("TASKSERVER_DATABASE_URL", "file:taskserver.db"),
		AuthToken:   strings.TrimSpace(os.Getenv("TASKSERVER_AUTH_TOKEN")),
	}
	if p := strings.TrimSpace(os.Getenv("PORT")); p != "" {
		cfg.Port = p
	}
	return cfg
}

func envOrDefault(key, fallback string) string {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return fallback
	}
	return v
}
