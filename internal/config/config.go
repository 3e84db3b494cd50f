package config

import (
	"fmt"
	"net"
	"strconv"
	"time"

	"github.com/jonesrussell/north-cloud/shelter-sync/internal/database"
	"github.com/jonesrussell/north-cloud/shelter-sync/internal/discovery"
	"github.com/jonesrussell/north-cloud/shelter-sync/internal/events"
	"github.com/jonesrussell/north-cloud/shelter-sync/internal/extractor"
	"github.com/jonesrussell/north-cloud/shelter-sync/internal/fetcher"
	"github.com/jonesrussell/north-cloud/shelter-sync/internal/index"
	"github.com/jonesrussell/north-cloud/shelter-sync/internal/logger"
	"github.com/jonesrussell/north-cloud/shelter-sync/internal/profiling"
	"github.com/jonesrussell/north-cloud/shelter-sync/internal/scheduler"
	"github.com/jonesrussell/north-cloud/shelter-sync/internal/syncer"
)

// DefaultPath is the config file read when CONFIG_PATH is unset.
const DefaultPath = "config.yml"

// Server defaults.
const (
	defaultServiceName     = "shelter-sync"
	defaultServerPort      = 8060
	defaultReadTimeout     = 30 * time.Second
	defaultWriteTimeout    = 60 * time.Second
	defaultIdleTimeout     = 60 * time.Second
	defaultShutdownTimeout = 30 * time.Second
	defaultMetricsPath     = "/metrics"
)

// Config is the service configuration.
type Config struct {
	Service    ServiceConfig    `yaml:"service"`
	Server     ServerConfig     `yaml:"server"`
	Database   database.Config  `yaml:"database"`
	Logging    logger.Config    `yaml:"logging"`
	Fetch      fetcher.Config   `yaml:"fetch"`
	Discovery  discovery.Config `yaml:"discovery"`
	Extraction ExtractionConfig `yaml:"extraction"`
	Ingest     IngestConfig     `yaml:"ingest"`
	Schedule   scheduler.Config `yaml:"schedule"`
	Sync       syncer.Config    `yaml:"sync"`
	Index      index.Config     `yaml:"index"`
	Redis      events.Config    `yaml:"redis"`
	Metrics    MetricsConfig    `yaml:"metrics"`
	Profiling  profiling.Config `yaml:"profiling"`
}

// ServiceConfig identifies the running service.
type ServiceConfig struct {
	Name        string `yaml:"name"`
	Environment string `env:"APP_ENV"      yaml:"environment"`
	Debug       bool   `env:"APP_DEBUG"    yaml:"debug"`
	AutoMigrate bool   `env:"AUTO_MIGRATE" yaml:"auto_migrate"`
}

// ServerConfig holds HTTP server configuration.
type ServerConfig struct {
	Host            string        `env:"SERVER_HOST" yaml:"host"`
	Port            int           `env:"SERVER_PORT" yaml:"port"`
	ReadTimeout     time.Duration `yaml:"read_timeout"`
	WriteTimeout    time.Duration `yaml:"write_timeout"`
	IdleTimeout     time.Duration `yaml:"idle_timeout"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
}

// Address returns the listen address in host:port form.
func (c ServerConfig) Address() string {
	return net.JoinHostPort(c.Host, strconv.Itoa(c.Port))
}

// ExtractionConfig holds the selector sets of both extractors.
type ExtractionConfig struct {
	Records extractor.RecordSelectors  `yaml:"records"`
	General extractor.GeneralSelectors `yaml:"general"`
}

// IngestConfig holds orchestrator settings.
type IngestConfig struct {
	CountsFlushEvery int `yaml:"counts_flush_every"`
}

// MetricsConfig controls the Prometheus endpoint.
type MetricsConfig struct {
	Enabled bool   `env:"METRICS_ENABLED" yaml:"enabled"`
	Path    string `yaml:"path"`
}

// Load loads the configuration from path. An empty path uses defaults and
// the environment only.
func Load(path string) (*Config, error) {
	cfg, err := LoadWithDefaults(path, newBase(), setDefaults)
	if err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

// newBase returns the values a YAML file may override, including the
// booleans that default to true.
func newBase() *Config {
	return &Config{
		Service:  ServiceConfig{AutoMigrate: true},
		Schedule: scheduler.Config{Enabled: true},
		Metrics:  MetricsConfig{Enabled: true},
	}
}

func setDefaults(cfg *Config) {
	if cfg.Service.Name == "" {
		cfg.Service.Name = defaultServiceName
	}
	if cfg.Service.Environment == "" {
		cfg.Service.Environment = "development"
	}
	cfg.Server.setDefaults()
	cfg.Database.SetDefaults()
	cfg.Logging.SetDefaults()
	if cfg.Service.Debug {
		cfg.Logging.Level = "debug"
	}
	cfg.Logging.Service = cfg.Service.Name
	cfg.Fetch = cfg.Fetch.WithDefaults()
	cfg.Discovery = cfg.Discovery.WithDefaults()
	cfg.Extraction.Records = cfg.Extraction.Records.WithDefaults()
	cfg.Extraction.General = cfg.Extraction.General.WithDefaults()
	cfg.Schedule.SetDefaults()
	cfg.Sync.SetDefaults()
	cfg.Index.SetDefaults()
	cfg.Redis.SetDefaults()
	cfg.Profiling.SetDefaults()
	if cfg.Metrics.Path == "" {
		cfg.Metrics.Path = defaultMetricsPath
	}
}

func (c *ServerConfig) setDefaults() {
	if c.Port == 0 {
		c.Port = defaultServerPort
	}
	if c.ReadTimeout == 0 {
		c.ReadTimeout = defaultReadTimeout
	}
	if c.WriteTimeout == 0 {
		c.WriteTimeout = defaultWriteTimeout
	}
	if c.IdleTimeout == 0 {
		c.IdleTimeout = defaultIdleTimeout
	}
	if c.ShutdownTimeout == 0 {
		c.ShutdownTimeout = defaultShutdownTimeout
	}
}
