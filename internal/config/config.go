package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

type AppConfig struct {
	RedisURL    string
	DatabaseURL string

	SweepInterval     time.Duration
	ReconcileInterval time.Duration
	SweepBatch        int

	MaxOpenPerUser int
	EventsChannel  string
}

// fileConfig mirrors AppConfig for the optional YAML overlay. Pointer
// fields so absent keys don't clobber defaults.
type fileConfig struct {
	RedisURL          *string `yaml:"redis_url"`
	DatabaseURL       *string `yaml:"database_url"`
	SweepInterval     *string `yaml:"sweep_interval"`
	ReconcileInterval *string `yaml:"reconcile_interval"`
	SweepBatch        *int    `yaml:"sweep_batch"`
	MaxOpenPerUser    *int    `yaml:"max_open_per_user"`
	EventsChannel     *string `yaml:"events_channel"`
}

// Load builds the config from defaults, then the YAML file named by
// CONFIG_FILE (if any), then environment variables. Env wins.
func Load() (*AppConfig, error) {
	cfg := &AppConfig{
		SweepInterval:     15 * time.Second,
		ReconcileInterval: 5 * time.Minute,
		SweepBatch:        200,
		MaxOpenPerUser:    10,
		EventsChannel:     "challenge.events",
	}

	if path := strings.TrimSpace(os.Getenv("CONFIG_FILE")); path != "" {
		if err := cfg.applyFile(path); err != nil {
			return nil, err
		}
	}

	if v := strings.TrimSpace(os.Getenv("REDIS_URL")); v != "" {
		cfg.RedisURL = v
	}
	if v := strings.TrimSpace(os.Getenv("DATABASE_URL")); v != "" {
		cfg.DatabaseURL = v
	}
	if v := strings.TrimSpace(os.Getenv("SWEEP_INTERVAL")); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return nil, fmt.Errorf("SWEEP_INTERVAL: %w", err)
		}
		cfg.SweepInterval = d
	}
	if v := strings.TrimSpace(os.Getenv("RECONCILE_INTERVAL")); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return nil, fmt.Errorf("RECONCILE_INTERVAL: %w", err)
		}
		cfg.ReconcileInterval = d
	}
	if v := strings.TrimSpace(os.Getenv("SWEEP_BATCH")); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			cfg.SweepBatch = n
		}
	}
	if v := strings.TrimSpace(os.Getenv("MAX_OPEN_PER_USER")); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			cfg.MaxOpenPerUser = n
		}
	}
	if v := strings.TrimSpace(os.Getenv("EVENTS_CHANNEL")); v != "" {
		cfg.EventsChannel = v
	}

	if cfg.RedisURL == "" {
		return nil, errors.New("REDIS_URL is required")
	}
	if cfg.SweepInterval <= 0 || cfg.ReconcileInterval <= 0 {
		return nil, errors.New("sweep and reconcile intervals must be positive")
	}
	return cfg, nil
}

func (cfg *AppConfig) applyFile(path string) error {
	raw, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config file: %w", err)
	}
	var fc fileConfig
	if err := yaml.Unmarshal(raw, &fc); err != nil {
		return fmt.Errorf("parse config file: %w", err)
	}
	if fc.RedisURL != nil {
		cfg.RedisURL = strings.TrimSpace(*fc.RedisURL)
	}
	if fc.DatabaseURL != nil {
		cfg.DatabaseURL = strings.TrimSpace(*fc.DatabaseURL)
	}
	if fc.SweepInterval != nil {
		d, err := time.ParseDuration(*fc.SweepInterval)
		if err != nil {
			return fmt.Errorf("sweep_interval: %w", err)
		}
		cfg.SweepInterval = d
	}
	if fc.ReconcileInterval != nil {
		d, err := time.ParseDuration(*fc.ReconcileInterval)
		if err != nil {
			return fmt.Errorf("reconcile_interval: %w", err)
		}
		cfg.ReconcileInterval = d
	}
	if fc.SweepBatch != nil && *fc.SweepBatch > 0 {
		cfg.SweepBatch = *fc.SweepBatch
	}
	if fc.MaxOpenPerUser != nil && *fc.MaxOpenPerUser > 0 {
		cfg.MaxOpenPerUser = *fc.MaxOpenPerUser
	}
	if fc.EventsChannel != nil {
		cfg.EventsChannel = strings.TrimSpace(*fc.EventsChannel)
	}
	return nil
}
