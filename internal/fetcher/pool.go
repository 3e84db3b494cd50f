package fetcher

import (
	"context"
	"fmt"
	"sync"

	"github.com/panjf2000/ants/v2"
)

// Result is the outcome of one pooled fetch.
type Result struct {
	URL      string
	Response *Response
	Err      error
}

// Pool bounds how many fetches run at once. It is shared by every job using
// the same strategy, so concurrent jobs together respect the bound.
type Pool struct {
	pool *ants.Pool
}

// NewPool creates a pool of size workers.
func NewPool(size int) (*Pool, error) {
	p, err := ants.NewPool(size)
	if err != nil {
		return nil, fmt.Errorf("create fetch pool: %w", err)
	}
	return &Pool{pool: p}, nil
}

// Size returns the worker bound.
func (p *Pool) Size() int {
	return p.pool.Cap()
}

// FetchAll fetches every URL through f and returns once all of them have
// finished, in input order. URLs not yet dispatched when ctx is cancelled
// are returned with a cancellation error; fetches already running are
// detached from ctx and allowed to complete.
func (p *Pool) FetchAll(ctx context.Context, urls []string, f Fetcher) []Result {
	results := make([]Result, len(urls))
	var wg sync.WaitGroup

	for i, u := range urls {
		if err := ctx.Err(); err != nil {
			results[i] = Result{URL: u, Err: classifyTransportError(u, err)}
			continue
		}

		wg.Add(1)
		submitErr := p.pool.Submit(func() {
			defer wg.Done()
			if err := ctx.Err(); err != nil {
				results[i] = Result{URL: u, Err: classifyTransportError(u, err)}
				return
			}
			resp, err := f.Fetch(context.WithoutCancel(ctx), u)
			results[i] = Result{URL: u, Response: resp, Err: err}
		})
		if submitErr != nil {
			wg.Done()
			results[i] = Result{URL: u, Err: classifyTransportError(u, submitErr)}
		}
	}

	wg.Wait()
	return results
}

// Close releases the pool's workers.
func (p *Pool) Close() {
	p.pool.Release()
}
