package fetcher

import (
	"context"
	"fmt"

	"github.com/jonesrussell/north-cloud/shelter-sync/internal/logger"
)

type strategy struct {
	fetcher Fetcher
	pool    *Pool
}

// Set dispatches fetches to the strategy the caller asks for.
type Set struct {
	strategies map[Mode]strategy
	structured *StructuredFetcher
}

// NewSet wires both strategies from cfg. Each gets retries and its own
// pool. When no proxy key is configured, structured fetches use the bulk
// transport but keep the smaller structured pool.
func NewSet(cfg Config, log logger.Logger) (*Set, error) {
	cfg = cfg.WithDefaults()

	bulkPool, err := NewPool(cfg.BulkConcurrency)
	if err != nil {
		return nil, err
	}
	structuredPool, err := NewPool(cfg.StructuredConcurrency)
	if err != nil {
		bulkPool.Close()
		return nil, err
	}

	bulk := NewBulkFetcher(cfg)
	s := &Set{strategies: make(map[Mode]strategy, 2)}
	s.strategies[ModeBulk] = strategy{fetcher: NewRetrying(bulk, cfg, log), pool: bulkPool}

	var structured Fetcher = bulk
	if cfg.Proxy.Enabled() {
		s.structured = NewStructuredFetcher(cfg, log)
		structured = s.structured
	} else {
		log.Warn("No proxy API key configured, structured fetches use the bulk transport")
	}
	s.strategies[ModeStructured] = strategy{fetcher: NewRetrying(structured, cfg, log), pool: structuredPool}

	return s, nil
}

// NewSetFrom builds a Set from explicit fetchers and pools. Used by tests.
func NewSetFrom(bulk Fetcher, bulkPool *Pool, structured Fetcher, structuredPool *Pool) *Set {
	return &Set{strategies: map[Mode]strategy{
		ModeBulk:       {fetcher: bulk, pool: bulkPool},
		ModeStructured: {fetcher: structured, pool: structuredPool},
	}}
}

// Fetch retrieves one URL with the given strategy.
func (s *Set) Fetch(ctx context.Context, mode Mode, url string) (*Response, error) {
	st, err := s.strategy(mode)
	if err != nil {
		return nil, err
	}
	return st.fetcher.Fetch(ctx, url)
}

// FetchAll retrieves urls in parallel with the given strategy, bounded by
// its pool, and returns after every fetch has finished.
func (s *Set) FetchAll(ctx context.Context, mode Mode, urls []string) []Result {
	st, err := s.strategy(mode)
	if err != nil {
		results := make([]Result, len(urls))
		for i, u := range urls {
			results[i] = Result{URL: u, Err: err}
		}
		return results
	}
	return st.pool.FetchAll(ctx, urls, st.fetcher)
}

// For returns a Fetcher bound to one strategy. It panics on an unknown mode.
func (s *Set) For(mode Mode) Fetcher {
	st, err := s.strategy(mode)
	if err != nil {
		panic(err)
	}
	return st.fetcher
}

// ProxyBreakerState reports the structured proxy breaker, or closed when no
// proxy is in use.
func (s *Set) ProxyBreakerState() BreakerState {
	if s.structured == nil {
		return BreakerClosed
	}
	return s.structured.BreakerState()
}

// Close releases both pools.
func (s *Set) Close() {
	for _, st := range s.strategies {
		if st.pool != nil {
			st.pool.Close()
		}
	}
}

func (s *Set) strategy(mode Mode) (strategy, error) {
	st, ok := s.strategies[mode]
	if !ok {
		return strategy{}, fmt.Errorf("unknown fetch mode %q", mode)
	}
	return st, nil
}
