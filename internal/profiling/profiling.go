// Package profiling starts the optional pprof endpoint and Pyroscope
// continuous profiling.
package profiling

import (
	"errors"
	"fmt"
	"net"
	"net/http"
	"net/http/pprof"
	"os"
	"runtime"
	"time"

	"github.com/grafana/pyroscope-go"

	"github.com/jonesrussell/north-cloud/shelter-sync/internal/logger"
)

const (
	defaultPprofPort   = "6060"
	defaultServerURL   = "http://pyroscope:4040"
	defaultEnvironment = "development"
	readHeaderTimeout  = 5 * time.Second
)

// Config holds profiling configuration.
type Config struct {
	PprofEnabled       bool   `env:"ENABLE_PROFILING"            yaml:"pprof_enabled"`
	PprofPort          string `env:"PPROF_PORT"                  yaml:"pprof_port"`
	PyroscopeEnabled   bool   `env:"ENABLE_CONTINUOUS_PROFILING" yaml:"pyroscope_enabled"`
	PyroscopeServerURL string `env:"PYROSCOPE_SERVER_URL"        yaml:"pyroscope_server_url"`
	Environment        string `env:"PYROSCOPE_ENVIRONMENT"       yaml:"environment"`
}

// SetDefaults applies default values to the config if not set.
func (c *Config) SetDefaults() {
	if c.PprofPort == "" {
		c.PprofPort = defaultPprofPort
	}
	if c.PyroscopeServerURL == "" {
		c.PyroscopeServerURL = defaultServerURL
	}
	if c.Environment == "" {
		c.Environment = defaultEnvironment
	}
}

// StartPprof serves the pprof endpoints on localhost when enabled. It
// returns nil when disabled; callers close the returned server on shutdown.
func StartPprof(cfg Config, log logger.Logger) *http.Server {
	if !cfg.PprofEnabled {
		return nil
	}
	cfg.SetDefaults()

	mux := http.NewServeMux()
	mux.HandleFunc("/debug/pprof/", pprof.Index)
	mux.HandleFunc("/debug/pprof/cmdline", pprof.Cmdline)
	mux.HandleFunc("/debug/pprof/profile", pprof.Profile)
	mux.HandleFunc("/debug/pprof/symbol", pprof.Symbol)
	mux.HandleFunc("/debug/pprof/trace", pprof.Trace)

	// Localhost only.
	addr := net.JoinHostPort("localhost", cfg.PprofPort)
	srv := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: readHeaderTimeout}

	go func() {
		log.Info("Starting pprof server", logger.String("addr", addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("pprof server error", logger.Error(err))
		}
	}()
	return srv
}

// Profiler wraps a running Pyroscope profiler.
type Profiler struct {
	profiler *pyroscope.Profiler
}

// StartPyroscope starts continuous profiling when enabled. It returns a nil
// profiler when disabled.
func StartPyroscope(cfg Config, serviceName, version string, log logger.Logger) (*Profiler, error) {
	if !cfg.PyroscopeEnabled {
		return nil, nil //nolint:nilnil // disabled is not an error
	}
	cfg.SetDefaults()

	if version == "" {
		version = "unknown"
	}

	pcfg := pyroscope.Config{
		ApplicationName: "north-cloud." + serviceName,
		ServerAddress:   cfg.PyroscopeServerURL,
		ProfileTypes: []pyroscope.ProfileType{
			pyroscope.ProfileCPU,
			pyroscope.ProfileAllocObjects,
			pyroscope.ProfileAllocSpace,
			pyroscope.ProfileInuseObjects,
			pyroscope.ProfileInuseSpace,
			pyroscope.ProfileGoroutines,
		},
		Tags: map[string]string{
			"environment": cfg.Environment,
			"version":     version,
			"hostname":    hostname(),
			"go_version":  runtime.Version(),
		},
	}

	p, err := pyroscope.Start(pcfg)
	if err != nil {
		return nil, fmt.Errorf("failed to start Pyroscope profiler: %w", err)
	}

	log.Info("Pyroscope continuous profiling started",
		logger.String("application", pcfg.ApplicationName),
		logger.String("server", cfg.PyroscopeServerURL),
		logger.String("environment", cfg.Environment),
	)
	return &Profiler{profiler: p}, nil
}

// Stop flushes and stops the profiler. It is safe on a nil profiler.
func (p *Profiler) Stop() error {
	if p == nil || p.profiler == nil {
		return nil
	}
	return p.profiler.Stop()
}

func hostname() string {
	h, err := os.Hostname()
	if err != nil {
		return "unknown"
	}
	return h
}
