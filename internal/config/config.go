package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"hotelsync/internal/models"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

type Config struct {
	App        AppConfig        `yaml:"app"`
	Database   DatabaseConfig   `yaml:"database"`
	Artifacts  ArtifactsConfig  `yaml:"artifacts"`
	Remote     RemoteConfig     `yaml:"remote"`
	Sync       SyncConfig       `yaml:"sync"`
	Redis      RedisConfig      `yaml:"redis"`
	Backup     BackupConfig     `yaml:"backup"`
	Monitoring MonitoringConfig `yaml:"monitoring"`
	Logging    LoggingConfig    `yaml:"logging"`
	Status     StatusConfig     `yaml:"status"`
	Exports    ExportConfig     `yaml:"exports"`
}

type AppConfig struct {
	Name        string `yaml:"name"`
	Environment string `yaml:"environment"`
	Version     string `yaml:"version"`
}

type DatabaseConfig struct {
	Path string `yaml:"path"`
}

type ArtifactsConfig struct {
	Dir string `yaml:"dir"`
	// OrphanRetention is how long fallback-orphaned photos are kept before a sweep removes them.
	OrphanRetention string `yaml:"orphan_retention"`
}

type RemoteConfig struct {
	BaseURL          string  `yaml:"base_url"`
	Token            string  `yaml:"token"`
	HealthPath       string  `yaml:"health_path"`
	PlainTimeout     int     `yaml:"plain_timeout_seconds"`
	MultipartTimeout int     `yaml:"multipart_timeout_seconds"`
	ProbeTimeout     int     `yaml:"probe_timeout_seconds"`
	RPS              float64 `yaml:"rps"`
	Burst            int     `yaml:"burst"`
}

type SyncConfig struct {
	BatchSize        int     `yaml:"batch_size"`
	PeriodicInterval string  `yaml:"periodic_interval"`
	BackoffFloor     string  `yaml:"backoff_floor"`
	BackoffMax       string  `yaml:"backoff_max"`
	BackoffFactor    float64 `yaml:"backoff_factor"`
	// MaxAttempts caps per-record attempts; 0 keeps retrying forever.
	MaxAttempts int    `yaml:"max_attempts"`
	LeaseKey    string `yaml:"lease_key"`
	LeaseTTL    string `yaml:"lease_ttl"`
}

type RedisConfig struct {
	Address  string `yaml:"address"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
	PoolSize int    `yaml:"pool_size"`
}

type BackupConfig struct {
	Enabled       bool   `yaml:"enabled"`
	Schedule      string `yaml:"schedule"`
	RetentionDays int    `yaml:"retention_days"`
	StoragePath   string `yaml:"storage_path"`
}

type MonitoringConfig struct {
	PrometheusEnabled bool `yaml:"prometheus_enabled"`
}

type LoggingConfig struct {
	Level      string `yaml:"level"`
	Format     string `yaml:"format"`
	Output     string `yaml:"output"`
	FilePath   string `yaml:"file_path"`
	MaxSizeMB  int    `yaml:"max_size_mb"`
	MaxBackups int    `yaml:"max_backups"`
	MaxAgeDays int    `yaml:"max_age_days"`
}

type StatusConfig struct {
	Enabled bool    `yaml:"enabled"`
	Port    int     `yaml:"port"`
	RPS     float64 `yaml:"rps"`
	Burst   int     `yaml:"burst"`
}

type ExportConfig struct {
	Path string `yaml:"path"`
}

func Load(configPath string) (*Config, error) {
	// .env is optional on devices; a missing file is not an error
	if err := godotenv.Load(".env"); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("load .env: %w", err)
	}

	data, err := os.ReadFile(configPath)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}

	expandedData := []byte(os.ExpandEnv(string(data)))

	var config Config
	if err := yaml.Unmarshal(expandedData, &config); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	config.applyDefaults()

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return &config, nil
}

func (c *Config) Validate() error {
	if c.Database.Path == "" {
		return errors.New("database path is required")
	}
	if c.Artifacts.Dir == "" {
		return errors.New("artifacts dir is required")
	}
	if strings.TrimSpace(c.Remote.BaseURL) == "" {
		return errors.New("remote base_url is required")
	}
	if c.Sync.BatchSize < 1 {
		return fmt.Errorf("sync.batch_size must be positive, got %d", c.Sync.BatchSize)
	}
	if c.Sync.MaxAttempts < 0 {
		return fmt.Errorf("sync.max_attempts must not be negative, got %d", c.Sync.MaxAttempts)
	}

	durations := map[string]string{
		"sync.periodic_interval":     c.Sync.PeriodicInterval,
		"sync.backoff_floor":         c.Sync.BackoffFloor,
		"sync.backoff_max":           c.Sync.BackoffMax,
		"sync.lease_ttl":             c.Sync.LeaseTTL,
		"artifacts.orphan_retention": c.Artifacts.OrphanRetention,
	}
	for name, value := range durations {
		if value == "" {
			continue
		}
		if _, err := time.ParseDuration(value); err != nil {
			return fmt.Errorf("%s: %w", name, err)
		}
	}
	return nil
}

func (c *Config) applyDefaults() {
	if c.App.Name == "" {
		c.App.Name = "hotelsync"
	}
	if c.Remote.HealthPath == "" {
		c.Remote.HealthPath = "/api/health"
	}
	if c.Remote.PlainTimeout == 0 {
		c.Remote.PlainTimeout = models.DefaultPlainTimeoutSeconds
	}
	if c.Remote.MultipartTimeout == 0 {
		c.Remote.MultipartTimeout = models.DefaultMultipartTimeoutSeconds
	}
	if c.Remote.ProbeTimeout == 0 {
		c.Remote.ProbeTimeout = 5
	}
	if c.Remote.Burst == 0 {
		c.Remote.Burst = 5
	}

	if c.Sync.BatchSize == 0 {
		c.Sync.BatchSize = models.DefaultBatchSize
	}
	if c.Sync.PeriodicInterval == "" {
		c.Sync.PeriodicInterval = fmt.Sprintf("%dm", models.DefaultPeriodicIntervalMinutes)
	}
	if c.Sync.BackoffFloor == "" {
		c.Sync.BackoffFloor = fmt.Sprintf("%ds", models.DefaultBackoffFloorSeconds)
	}
	if c.Sync.BackoffMax == "" {
		c.Sync.BackoffMax = "5h"
	}
	if c.Sync.BackoffFactor == 0 {
		c.Sync.BackoffFactor = 2
	}
	if c.Sync.LeaseKey == "" {
		c.Sync.LeaseKey = "hotelsync:pass"
	}
	if c.Sync.LeaseTTL == "" {
		c.Sync.LeaseTTL = "10m"
	}

	if c.Artifacts.OrphanRetention == "" {
		c.Artifacts.OrphanRetention = "168h"
	}

	if c.Status.Port == 0 {
		c.Status.Port = 8088
	}
	if c.Status.RPS == 0 {
		c.Status.RPS = 1
	}
	if c.Status.Burst == 0 {
		c.Status.Burst = 3
	}

	if c.Backup.Schedule == "" {
		c.Backup.Schedule = "24h"
	}
	if c.Backup.RetentionDays == 0 {
		c.Backup.RetentionDays = 7
	}

	if c.Exports.Path == "" {
		c.Exports.Path = "exports"
	}
}

// Duration parses a validated duration field, falling back to def when empty.
func Duration(value string, def time.Duration) time.Duration {
	if value == "" {
		return def
	}
	d, err := time.ParseDuration(value)
	if err != nil {
		return def
	}
	return d
}
