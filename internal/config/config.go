package config

import (
	"encoding/json"
	"os"
	"strconv"
	"strings"
	"time"
)

// SyncConfig drives the client-side sync engine.
type SyncConfig struct {
	BaseURL         string `json:"base_url"`
	DatabasePath    string `json:"database_path"`
	DeviceID        string `json:"device_id"`
	IntervalSeconds int    `json:"interval_seconds"`
	ProbeSeconds    int    `json:"probe_seconds"`
	MaxAttempts     int    `json:"max_attempts"`
	BackoffSeconds  int    `json:"backoff_seconds"`
}

type Config struct {
	Sync     SyncConfig `json:"sync"`
	LogLevel string     `json:"-"`
}

func (s SyncConfig) Interval() time.Duration {
	return time.Duration(s.IntervalSeconds) * time.Second
}

func (s SyncConfig) ProbeInterval() time.Duration {
	return time.Duration(s.ProbeSeconds) * time.Second
}

func (s SyncConfig) Backoff() time.Duration {
	return time.Duration(s.BackoffSeconds) * time.Second
}

// Load reads an optional JSON config file, then lets TASKSYNC_* environment
// variables override it, and finally applies defaults.
func Load() Config {
	cfg := Config{}
	paths := []string{os.Getenv("TASKSYNC_CONFIG"), "tasksync.json"}
	for _, p := range paths {
		if strings.TrimSpace(p) == "" {
			continue
		}
		b, err := os.ReadFile(p)
		if err == nil {
			_ = json.Unmarshal(b, &cfg)
			break
		}
	}

	applySyncEnv(&cfg.Sync)

	cfg.LogLevel = strings.TrimSpace(os.Getenv("TASKSYNC_LOG_LEVEL"))
	if cfg.LogLevel == "" {
		cfg.LogLevel = "info"
	}
	if strings.TrimSpace(cfg.Sync.DatabasePath) == "" {
		cfg.Sync.DatabasePath = "file:tasksync.db"
	}
	if cfg.Sync.IntervalSeconds <= 0 {
		cfg.Sync.IntervalSeconds = 30
	}
	if cfg.Sync.ProbeSeconds <= 0 {
		cfg.Sync.ProbeSeconds = 10
	}
	if cfg.Sync.BackoffSeconds < 0 {
		cfg.Sync.BackoffSeconds = 0
	}
	if strings.TrimSpace(cfg.Sync.DeviceID) == "" {
		if host, err := os.Hostname(); err == nil && strings.TrimSpace(host) != "" {
			cfg.Sync.DeviceID = "tasksync-" + host
		} else {
			cfg.Sync.DeviceID = "tasksync-device"
		}
	}
	cfg.Sync.BaseURL = strings.TrimRight(strings.TrimSpace(cfg.Sync.BaseURL), "/")

	return cfg
}

func applySyncEnv(s *SyncConfig) {
	if v := strings.TrimSpace(os.Getenv("TASKSYNC_BASE_URL")); v != "" {
		s.BaseURL = v
	}
	if v := strings.TrimSpace(os.Getenv("TASKSYNC_DB")); v != "" {
		s.DatabasePath = v
	}
	if v := strings.TrimSpace(os.Getenv("TASKSYNC_DEVICE_ID")); v != "" {
		s.DeviceID = v
	}
	if v := strings.TrimSpace(os.Getenv("TASKSYNC_INTERVAL_SECONDS")); v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			s.IntervalSeconds = i
		}
	}
	if v := strings.TrimSpace(os.Getenv("TASKSYNC_PROBE_SECONDS")); v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			s.ProbeSeconds = i
		}
	}
	if v := strings.TrimSpace(os.Getenv("TASKSYNC_MAX_ATTEMPTS")); v != "" {
		if i, err := strconv.Atoi(v); err == nil && i >= 0 {
			s.MaxAttempts = i
		}
	}
	if v := strings.TrimSpace(os.Getenv("TASKSYNC_BACKOFF_SECONDS")); v != "" {
		if i, err := strconv.Atoi(v); err == nil && i >= 0 {
			s.BackoffSeconds = i
		}
	}
}
