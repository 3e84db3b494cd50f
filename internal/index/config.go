package index

import "time"

// Default configuration values.
const (
	defaultURL             = "http://localhost:9200"
	defaultIndexName       = "shelter_sync_documents"
	defaultMaxRetries      = 3
	defaultPingTimeout     = 5 * time.Second
	defaultRequestTimeout  = 10 * time.Second
	defaultConnectAttempts = 5
	defaultListPageSize    = 500
)

// Config holds Elasticsearch configuration.
type Config struct {
	URL       string `env:"ELASTICSEARCH_URL"      yaml:"url"`
	Username  string `env:"ELASTICSEARCH_USERNAME" yaml:"username"`
	Password  string `env:"ELASTICSEARCH_PASSWORD" yaml:"password"`
	APIKey    string `env:"ELASTICSEARCH_API_KEY"  yaml:"api_key"`
	IndexName string `env:"ELASTICSEARCH_INDEX"    yaml:"index_name"`
	// MaxRetries is the client's per-request retry count.
	MaxRetries     int           `yaml:"max_retries"`
	PingTimeout    time.Duration `yaml:"ping_timeout"`
	RequestTimeout time.Duration `yaml:"request_timeout"`
	// ConnectAttempts bounds the startup ping loop.
	ConnectAttempts int `yaml:"connect_attempts"`
	ListPageSize    int `yaml:"list_page_size"`
}

// SetDefaults applies default values to the config if not set.
func (c *Config) SetDefaults() {
	if c.URL == "" {
		c.URL = defaultURL
	}
	if c.IndexName == "" {
		c.IndexName = defaultIndexName
	}
	if c.MaxRetries == 0 {
		c.MaxRetries = defaultMaxRetries
	}
	if c.PingTimeout == 0 {
		c.PingTimeout = defaultPingTimeout
	}
	if c.RequestTimeout == 0 {
		c.RequestTimeout = defaultRequestTimeout
	}
	if c.ConnectAttempts == 0 {
		c.ConnectAttempts = defaultConnectAttempts
	}
	if c.ListPageSize == 0 {
		c.ListPageSize = defaultListPageSize
	}
}
