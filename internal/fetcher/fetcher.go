// Package fetcher retrieves raw pages through two strategies: a fast bulk
// fetcher for general pages and a proxy-routed structured fetcher for pages
// that need reliable rendering.
package fetcher

import (
	"context"
	"errors"
	"net"
	"net/http"

	"github.com/jonesrussell/north-cloud/shelter-sync/internal/domain"
)

// Mode selects a fetch strategy by caller intent.
type Mode string

const (
	ModeBulk       Mode = "bulk"
	ModeStructured Mode = "structured"
)

// Response is a successfully fetched page.
type Response struct {
	URL        string
	StatusCode int
	Body       []byte
}

// Fetcher retrieves one page. Failures are *domain.FetchError.
type Fetcher interface {
	Fetch(ctx context.Context, url string) (*Response, error)
}

// Status codes that mean the site or proxy refused us rather than the page
// being absent.
var blockedStatuses = map[int]bool{
	http.StatusUnauthorized:    true,
	http.StatusForbidden:       true,
	http.StatusTooManyRequests: true,
}

// classifyStatus turns a non-2xx status into a FetchError, or nil for success.
func classifyStatus(url string, status int) error {
	if status >= http.StatusOK && status < http.StatusMultipleChoices {
		return nil
	}
	kind := domain.FetchHTTPError
	if blockedStatuses[status] {
		kind = domain.FetchBlocked
	}
	return &domain.FetchError{Kind: kind, URL: url, StatusCode: status}
}

// classifyTransportError maps a transport failure to timeout or network.
func classifyTransportError(url string, err error) *domain.FetchError {
	var fe *domain.FetchError
	if errors.As(err, &fe) {
		return fe
	}

	kind := domain.FetchNetwork
	var netErr net.Error
	if errors.Is(err, context.DeadlineExceeded) || (errors.As(err, &netErr) && netErr.Timeout()) {
		kind = domain.FetchTimeout
	}
	return &domain.FetchError{Kind: kind, URL: url, Err: err}
}

// IsNotFound reports whether err is a permanent 404.
func IsNotFound(err error) bool {
	var fe *domain.FetchError
	return errors.As(err, &fe) && fe.Kind == domain.FetchHTTPError && fe.StatusCode == http.StatusNotFound
}
