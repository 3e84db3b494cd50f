package index

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	es "github.com/elastic/go-elasticsearch/v8"

	"github.com/jonesrussell/north-cloud/shelter-sync/internal/logger"
	"github.com/jonesrussell/north-cloud/shelter-sync/internal/retry"
)

// NewClient creates an Elasticsearch client and verifies the connection,
// retrying the ping with exponential backoff.
func NewClient(ctx context.Context, cfg Config, log logger.Logger) (*es.Client, error) {
	cfg.SetDefaults()

	url := normalizeURL(cfg.URL)
	clientConfig := es.Config{
		Addresses:  []string{url},
		MaxRetries: cfg.MaxRetries,
	}

	// Configure authentication
	if cfg.APIKey != "" {
		clientConfig.APIKey = cfg.APIKey
	} else if cfg.Username != "" && cfg.Password != "" {
		clientConfig.Username = cfg.Username
		clientConfig.Password = cfg.Password
	}

	client, err := es.NewClient(clientConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to create Elasticsearch client: %w", err)
	}

	log.Info("Verifying Elasticsearch connection", logger.String("url", url))

	retryCfg := retry.Config{
		MaxAttempts:  cfg.ConnectAttempts,
		InitialDelay: 2 * time.Second,
		MaxDelay:     10 * time.Second,
		Multiplier:   2.0,
		IsRetryable:  func(error) bool { return true },
	}
	if err := retry.Do(ctx, retryCfg, func(int) error {
		return ping(ctx, client, cfg.PingTimeout)
	}); err != nil {
		return nil, fmt.Errorf("failed to connect to Elasticsearch after retries: %w", err)
	}

	log.Info("Elasticsearch connection established", logger.String("url", url))

	return client, nil
}

// normalizeURL adds an http:// prefix if missing.
func normalizeURL(url string) string {
	if url == "" {
		return defaultURL
	}
	if !strings.HasPrefix(url, "http://") && !strings.HasPrefix(url, "https://") {
		return "http://" + url
	}
	return url
}

func ping(ctx context.Context, client *es.Client, timeout time.Duration) error {
	pingCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	res, err := client.Ping(client.Ping.WithContext(pingCtx))
	if err != nil {
		return fmt.Errorf("ping: %w", err)
	}
	defer res.Body.Close()

	if res.IsError() {
		return errors.New("ping: " + res.Status())
	}
	return nil
}
