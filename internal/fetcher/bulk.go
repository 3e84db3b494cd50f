package fetcher

import (
	"context"
	"errors"

	"github.com/gocolly/colly/v2"
)

// errEmptyResponse is returned when colly finished without calling back.
var errEmptyResponse = errors.New("no response received")

// BulkFetcher fetches pages directly with a colly collector. Each fetch runs
// on a clone of a base collector; clones share the HTTP backend, so
// connection reuse and timeouts apply across concurrent fetches.
type BulkFetcher struct {
	base *colly.Collector
}

// NewBulkFetcher creates a bulk fetcher from cfg.
func NewBulkFetcher(cfg Config) *BulkFetcher {
	cfg = cfg.WithDefaults()

	c := colly.NewCollector(
		colly.UserAgent(cfg.UserAgent),
		colly.AllowURLRevisit(),
		colly.MaxBodySize(cfg.MaxBodyBytes),
		colly.ParseHTTPErrorResponse(),
	)
	c.SetRequestTimeout(cfg.RequestTimeout)

	return &BulkFetcher{base: c}
}

// Fetch retrieves url. Once started the request runs to completion or
// timeout; ctx is only checked before dispatch.
func (f *BulkFetcher) Fetch(ctx context.Context, url string) (*Response, error) {
	if err := ctx.Err(); err != nil {
		return nil, classifyTransportError(url, err)
	}

	c := f.base.Clone()

	var resp *Response
	c.OnResponse(func(r *colly.Response) {
		resp = &Response{
			URL:        r.Request.URL.String(),
			StatusCode: r.StatusCode,
			Body:       r.Body,
		}
	})

	if err := c.Visit(url); err != nil {
		return nil, classifyTransportError(url, err)
	}
	if resp == nil {
		return nil, classifyTransportError(url, errEmptyResponse)
	}

	if err := classifyStatus(url, resp.StatusCode); err != nil {
		return nil, err
	}

	return resp, nil
}
