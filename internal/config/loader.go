package config

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Defaults applied by [Load] for fields left empty.
const (
	DefaultListenAddr    = ":8080"
	DefaultAdminAddr     = ":9090"
	DefaultDisplayWindow = 3 * time.Second
	DefaultSyncInterval  = 15 * time.Minute
)

// Load reads the YAML configuration file at path and returns a validated
// [Config]. It is a convenience wrapper around [LoadFromReader].
func Load(path string) (*Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("config: open %q: %w", path, err)
	}
	defer f.Close()

	cfg, err := LoadFromReader(f)
	if err != nil {
		return nil, fmt.Errorf("config: parse %q: %w", path, err)
	}
	return cfg, nil
}

// LoadFromReader decodes a YAML config from r, applies defaults, and
// validates the result. Useful in tests where configs are constructed from
// string literals.
func LoadFromReader(r io.Reader) (*Config, error) {
	cfg := &Config{}
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("config: decode yaml: %w", err)
	}
	ApplyDefaults(cfg)
	if err := Validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// ApplyDefaults fills zero-valued fields with their defaults.
func ApplyDefaults(cfg *Config) {
	if cfg.Server.ListenAddr == "" {
		cfg.Server.ListenAddr = DefaultListenAddr
	}
	if cfg.Server.AdminAddr == "" {
		cfg.Server.AdminAddr = DefaultAdminAddr
	}
	if cfg.Server.LogLevel == "" {
		cfg.Server.LogLevel = LogInfo
	}
	if cfg.Learning.DisplayWindow <= 0 {
		cfg.Learning.DisplayWindow = DefaultDisplayWindow
	}
	if cfg.Learning.PromotionThreshold <= 0 {
		cfg.Learning.PromotionThreshold = 5
	}
	if cfg.Learning.SyncInterval <= 0 {
		cfg.Learning.SyncInterval = DefaultSyncInterval
	}
	if cfg.Kafka.AcceptTopic == "" {
		cfg.Kafka.AcceptTopic = "mixctl.corrections.accepted"
	}
	if cfg.Kafka.PromotedTopic == "" {
		cfg.Kafka.PromotedTopic = "mixctl.dictionary.promoted"
	}
	if cfg.Kafka.ConsumerGroup == "" {
		cfg.Kafka.ConsumerGroup = "mixctl-aggregator"
	}
}

// Validate checks that cfg contains a coherent set of values.
// It returns a joined error listing all validation failures found.
func Validate(cfg *Config) error {
	var errs []error

	if cfg.Server.LogLevel != "" && !cfg.Server.LogLevel.IsValid() {
		errs = append(errs, fmt.Errorf("server.log_level %q is invalid; valid values: debug, info, warn, error", cfg.Server.LogLevel))
	}

	if !cfg.Device.Mock && cfg.Device.Addr == "" {
		errs = append(errs, errors.New("device.addr is required unless device.mock is true"))
	}
	if cfg.Device.ResponseTimeout < 0 {
		errs = append(errs, fmt.Errorf("device.response_timeout %s is negative", cfg.Device.ResponseTimeout))
	}

	if cfg.Learning.SharedLearning && cfg.Server.UserID == "" {
		errs = append(errs, errors.New("server.user_id is required when learning.shared_learning is enabled"))
	}

	// Soft issues: the server still runs, with reduced function.
	if cfg.Learning.SharedLearning && len(cfg.Kafka.Brokers) == 0 && cfg.Learning.PostgresDSN == "" {
		slog.Warn("shared learning enabled with no kafka brokers and no postgres dsn; accept events stay log-only")
	}
	if cfg.Dictionary.Path == "" {
		slog.Warn("dictionary.path is empty; learned corrections will not survive restarts")
	}

	return errors.Join(errs...)
}
