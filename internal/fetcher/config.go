package fetcher

import "time"

// Default configuration values.
const (
	defaultUserAgent             = "ShelterSync/1.0 (+https://northcloud.one)"
	defaultRequestTimeout        = 30 * time.Second
	defaultBulkConcurrency       = 10
	defaultStructuredConcurrency = 3
	defaultMaxAttempts           = 3
	defaultInitialBackoff        = time.Second
	defaultBackoffMultiplier     = 3.0
	defaultMaxBodyBytes          = 10 * 1024 * 1024 // 10 MB
	defaultProxyEndpoint         = "https://api.zyte.com/v1/extract"
	defaultProxyRatePerSecond    = 0.5
	defaultProxyBurst            = 3
	defaultBreakerFailures       = 5
	defaultBreakerCooldown       = time.Minute
)

// Config holds fetch configuration for both strategies.
type Config struct {
	UserAgent             string        `env:"FETCH_USER_AGENT"             yaml:"user_agent"`
	RequestTimeout        time.Duration `env:"FETCH_REQUEST_TIMEOUT"        yaml:"request_timeout"`
	BulkConcurrency       int           `env:"FETCH_BULK_CONCURRENCY"       yaml:"bulk_concurrency"`
	StructuredConcurrency int           `env:"FETCH_STRUCTURED_CONCURRENCY" yaml:"structured_concurrency"`
	MaxAttempts           int           `env:"FETCH_MAX_ATTEMPTS"           yaml:"max_attempts"`
	InitialBackoff        time.Duration `env:"FETCH_INITIAL_BACKOFF"        yaml:"initial_backoff"`
	BackoffMultiplier     float64       `env:"FETCH_BACKOFF_MULTIPLIER"     yaml:"backoff_multiplier"`
	MaxBodyBytes          int           `yaml:"max_body_bytes"`
	Proxy                 ProxyConfig   `yaml:"proxy"`
}

// ProxyConfig configures the structured fetch service.
type ProxyConfig struct {
	Endpoint        string        `env:"PROXY_ENDPOINT"          yaml:"endpoint"`
	APIKey          string        `env:"ZYTE_API_KEY"            yaml:"api_key"`
	RatePerSecond   float64       `env:"PROXY_RATE_PER_SECOND"   yaml:"rate_per_second"`
	Burst           int           `env:"PROXY_BURST"             yaml:"burst"`
	BreakerFailures int           `env:"PROXY_BREAKER_FAILURES"  yaml:"breaker_failures"`
	BreakerCooldown time.Duration `env:"PROXY_BREAKER_COOLDOWN"  yaml:"breaker_cooldown"`
}

// Enabled reports whether structured fetches go through the proxy.
// Without an API key structured fetches fall back to the bulk transport.
func (p ProxyConfig) Enabled() bool {
	return p.APIKey != ""
}

// WithDefaults returns a copy of the config with defaults for zero-value fields.
func (c Config) WithDefaults() Config {
	if c.UserAgent == "" {
		c.UserAgent = defaultUserAgent
	}
	if c.RequestTimeout <= 0 {
		c.RequestTimeout = defaultRequestTimeout
	}
	if c.BulkConcurrency <= 0 {
		c.BulkConcurrency = defaultBulkConcurrency
	}
	if c.StructuredConcurrency <= 0 {
		c.StructuredConcurrency = defaultStructuredConcurrency
	}
	if c.MaxAttempts <= 0 {
		c.MaxAttempts = defaultMaxAttempts
	}
	if c.InitialBackoff <= 0 {
		c.InitialBackoff = defaultInitialBackoff
	}
	if c.BackoffMultiplier <= 0 {
		c.BackoffMultiplier = defaultBackoffMultiplier
	}
	if c.MaxBodyBytes <= 0 {
		c.MaxBodyBytes = defaultMaxBodyBytes
	}
	if c.Proxy.Endpoint == "" {
		c.Proxy.Endpoint = defaultProxyEndpoint
	}
	if c.Proxy.RatePerSecond <= 0 {
		c.Proxy.RatePerSecond = defaultProxyRatePerSecond
	}
	if c.Proxy.Burst <= 0 {
		c.Proxy.Burst = defaultProxyBurst
	}
	if c.Proxy.BreakerFailures <= 0 {
		c.Proxy.BreakerFailures = defaultBreakerFailures
	}
	if c.Proxy.BreakerCooldown <= 0 {
		c.Proxy.BreakerCooldown = defaultBreakerCooldown
	}
	return c
}
