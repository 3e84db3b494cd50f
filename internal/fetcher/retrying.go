package fetcher

import (
	"context"
	"time"

	"github.com/jonesrussell/north-cloud/shelter-sync/internal/logger"
	"github.com/jonesrussell/north-cloud/shelter-sync/internal/retry"
)

// Retrying retries timeouts and network failures of the wrapped fetcher.
// HTTP errors (404 included) and blocks are returned on the first attempt.
type Retrying struct {
	next Fetcher
	cfg  retry.Config
}

// NewRetrying wraps next with the backoff policy from cfg.
func NewRetrying(next Fetcher, cfg Config, log logger.Logger) *Retrying {
	cfg = cfg.WithDefaults()
	return &Retrying{
		next: next,
		cfg: retry.Config{
			MaxAttempts:  cfg.MaxAttempts,
			InitialDelay: cfg.InitialBackoff,
			Multiplier:   cfg.BackoffMultiplier,
			OnRetry: func(attempt int, delay time.Duration, err error) {
				log.Debug("Retrying fetch",
					logger.Int("attempt", attempt),
					logger.Duration("delay", delay),
					logger.Error(err),
				)
			},
		},
	}
}

// Fetch implements Fetcher.
func (r *Retrying) Fetch(ctx context.Context, url string) (*Response, error) {
	var resp *Response
	err := retry.Do(ctx, r.cfg, func(int) error {
		var fetchErr error
		resp, fetchErr = r.next.Fetch(ctx, url)
		return fetchErr
	})
	if err != nil {
		return nil, classifyTransportError(url, err)
	}
	return resp, nil
}
