// Package config loads the remedyq configuration file and applies
// defaults so every knob has a sane value.
package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/remedyq/remedyq/internal/escalation"
)

// Backend names a queue storage backend.
type Backend string

const (
	BackendFile   Backend = "file"
	BackendRedis  Backend = "redis"
	BackendMemory Backend = "memory"
)

// Config is the full daemon/CLI configuration.
type Config struct {
	Project    ProjectConfig     `yaml:"project"`
	Storage    StorageConfig     `yaml:"storage"`
	Worker     WorkerConfig      `yaml:"worker"`
	Escalation escalation.Config `yaml:"escalation"`
	Handlers   HandlersConfig    `yaml:"handlers"`
	Cost       CostConfig        `yaml:"cost"`
	Logging    LoggingConfig     `yaml:"logging"`
}

// HandlersConfig maps level names to the external commands that attempt
// them, e.g. handlers.commands.ollama: ["ollama-fix", "--fast"].
type HandlersConfig struct {
	Commands   map[string][]string `yaml:"commands"`
	TimeoutSec int                 `yaml:"timeout_sec"`
}

type ProjectConfig struct {
	Name string `yaml:"name"`
}

type StorageConfig struct {
	Backend     Backend `yaml:"backend"`
	Path        string  `yaml:"path"`
	RedisAddr   string  `yaml:"redis_addr"`
	RedisPrefix string  `yaml:"redis_prefix"`
}

type WorkerConfig struct {
	Count           int `yaml:"count"`
	LockTTLSec      int `yaml:"lock_ttl_sec"`
	PollIntervalSec int `yaml:"poll_interval_sec"`
	MaxItemRetries  int `yaml:"max_item_retries"`
}

type CostConfig struct {
	LedgerPath    string `yaml:"ledger_path"`
	RetentionDays int    `yaml:"retention_days"`
}

type LoggingConfig struct {
	Level string `yaml:"level"`
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		Project: ProjectConfig{Name: "remedyq"},
		Storage: StorageConfig{
			Backend:     BackendFile,
			Path:        ".remedyq/queue.json",
			RedisPrefix: "remedyq",
		},
		Worker: WorkerConfig{
			Count:           1,
			LockTTLSec:      60,
			PollIntervalSec: 15,
			MaxItemRetries:  3,
		},
		Escalation: escalation.DefaultConfig(),
		Cost: CostConfig{
			LedgerPath:    ".remedyq/costs.json",
			RetentionDays: 90,
		},
		Logging: LoggingConfig{Level: "info"},
	}
}

// Load reads the config at path. A missing file yields the defaults;
// anything else unreadable or invalid is an error.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return Default(), nil
		}
		return nil, fmt.Errorf("read config: %w", err)
	}

	cfg := Default()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	cfg.applyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) applyDefaults() {
	def := Default()
	if c.Storage.Backend == "" {
		c.Storage.Backend = def.Storage.Backend
	}
	if c.Storage.Path == "" {
		c.Storage.Path = def.Storage.Path
	}
	if c.Storage.RedisPrefix == "" {
		c.Storage.RedisPrefix = def.Storage.RedisPrefix
	}
	if c.Worker.Count <= 0 {
		c.Worker.Count = def.Worker.Count
	}
	if c.Worker.LockTTLSec <= 0 {
		c.Worker.LockTTLSec = def.Worker.LockTTLSec
	}
	if c.Worker.PollIntervalSec <= 0 {
		c.Worker.PollIntervalSec = def.Worker.PollIntervalSec
	}
	if c.Worker.MaxItemRetries <= 0 {
		c.Worker.MaxItemRetries = def.Worker.MaxItemRetries
	}
	if c.Cost.RetentionDays <= 0 {
		c.Cost.RetentionDays = def.Cost.RetentionDays
	}
	if c.Cost.LedgerPath == "" {
		c.Cost.LedgerPath = def.Cost.LedgerPath
	}
	if c.Logging.Level == "" {
		c.Logging.Level = def.Logging.Level
	}
	if c.Handlers.TimeoutSec <= 0 {
		c.Handlers.TimeoutSec = 600
	}
	c.Escalation.ApplyDefaults()
}

// Validate rejects unusable configurations.
func (c *Config) Validate() error {
	switch c.Storage.Backend {
	case BackendFile, BackendMemory:
	case BackendRedis:
		if c.Storage.RedisAddr == "" {
			return fmt.Errorf("storage.redis_addr is required for the redis backend")
		}
	default:
		return fmt.Errorf("unknown storage backend %q", c.Storage.Backend)
	}

	switch c.Logging.Level {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("unknown logging level %q", c.Logging.Level)
	}
	return nil
}
