package bootstrap

import (
	"errors"
	"fmt"

	"github.com/jonesrussell/north-cloud/shelter-sync/internal/config"
	"github.com/jonesrussell/north-cloud/shelter-sync/internal/logger"
)

var (
	errLoggerRequired = errors.New("logger is required")
	errConfigRequired = errors.New("config is required")
)

// Options are the process-level inputs that do not come from the config
// file.
type Options struct {
	// ConfigPath overrides CONFIG_PATH and the default config.yml.
	ConfigPath string
	// Debug forces debug logging.
	Debug   bool
	Version string
}

// CommandDeps holds the dependencies every command needs.
type CommandDeps struct {
	Config  *config.Config
	Logger  logger.Logger
	Version string
}

// NewCommandDeps loads the config and creates the logger.
func NewCommandDeps(opts Options) (*CommandDeps, error) {
	cfg, err := LoadConfig(opts)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}

	log, err := CreateLogger(cfg)
	if err != nil {
		return nil, fmt.Errorf("create logger: %w", err)
	}

	deps := &CommandDeps{Config: cfg, Logger: log, Version: opts.Version}
	if validateErr := deps.Validate(); validateErr != nil {
		return nil, fmt.Errorf("validate deps: %w", validateErr)
	}
	return deps, nil
}

// LoadConfig resolves the config path and loads it. The debug option wins
// over the file and environment.
func LoadConfig(opts Options) (*config.Config, error) {
	path := opts.ConfigPath
	if path == "" {
		path = config.ResolvePath(config.DefaultPath)
	}

	cfg, err := config.Load(path)
	if err != nil {
		return nil, err
	}
	if opts.Debug {
		cfg.Service.Debug = true
		cfg.Logging.Level = "debug"
	}
	return cfg, nil
}

// CreateLogger builds the service logger. Sampling is off in development
// and debug runs.
func CreateLogger(cfg *config.Config) (logger.Logger, error) {
	logCfg := cfg.Logging
	if cfg.Service.Environment == "development" || cfg.Service.Debug {
		logCfg.Development = true
	}
	return logger.New(logCfg)
}

// Validate ensures all required dependencies are present.
func (d *CommandDeps) Validate() error {
	if d.Logger == nil {
		return errLoggerRequired
	}
	if d.Config == nil {
		return errConfigRequired
	}
	return nil
}
