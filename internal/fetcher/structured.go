package fetcher

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"

	"golang.org/x/time/rate"

	"github.com/jonesrussell/north-cloud/shelter-sync/internal/domain"
	"github.com/jonesrussell/north-cloud/shelter-sync/internal/logger"
)

// The proxy returns the page base64 encoded inside JSON, so its response may
// be this many times larger than the page size limit.
const proxyBodyOverhead = 2

// Proxy statuses signalling a ban of the target site rather than a failure of
// the proxy itself.
const (
	statusProxyBanned    = 520
	statusProxyBannedAlt = 521
)

type extractRequest struct {
	URL              string `json:"url"`
	HTTPResponseBody bool   `json:"httpResponseBody"`
}

type extractResponse struct {
	URL              string `json:"url"`
	StatusCode       int    `json:"statusCode"`
	HTTPResponseBody string `json:"httpResponseBody"`
}

// StructuredFetcher routes fetches through a paid extraction proxy. Calls are
// rate limited with a token bucket and guarded by a circuit breaker that opens
// after repeated refusals.
type StructuredFetcher struct {
	client   *http.Client
	endpoint string
	apiKey   string
	limiter  *rate.Limiter
	breaker  *breaker
	maxBody  int64
	log      logger.Logger
}

// NewStructuredFetcher creates a proxy-backed fetcher.
func NewStructuredFetcher(cfg Config, log logger.Logger) *StructuredFetcher {
	cfg = cfg.WithDefaults()

	f := &StructuredFetcher{
		client:   &http.Client{Timeout: cfg.RequestTimeout},
		endpoint: cfg.Proxy.Endpoint,
		apiKey:   cfg.Proxy.APIKey,
		limiter:  rate.NewLimiter(rate.Limit(cfg.Proxy.RatePerSecond), cfg.Proxy.Burst),
		maxBody:  int64(cfg.MaxBodyBytes) * proxyBodyOverhead,
		log:      log,
	}
	f.breaker = newBreaker(cfg.Proxy.BreakerFailures, cfg.Proxy.BreakerCooldown, isProxyRefusal)
	f.breaker.onStateChange = func(from, to BreakerState) {
		log.Warn("Proxy circuit breaker state changed",
			logger.String("from", from.String()),
			logger.String("to", to.String()),
		)
	}

	return f
}

// BreakerState exposes the proxy breaker state for health reporting.
func (f *StructuredFetcher) BreakerState() BreakerState {
	return f.breaker.State()
}

// Fetch retrieves url through the proxy.
func (f *StructuredFetcher) Fetch(ctx context.Context, url string) (*Response, error) {
	if err := f.limiter.Wait(ctx); err != nil {
		return nil, classifyTransportError(url, err)
	}

	var resp *Response
	err := f.breaker.execute(func() error {
		var callErr error
		resp, callErr = f.call(ctx, url)
		return callErr
	})
	if errors.Is(err, ErrCircuitOpen) {
		return nil, &domain.FetchError{Kind: domain.FetchBlocked, URL: url, Err: err}
	}
	if err != nil {
		return nil, err
	}

	return resp, nil
}

func (f *StructuredFetcher) call(ctx context.Context, url string) (*Response, error) {
	payload, err := json.Marshal(extractRequest{URL: url, HTTPResponseBody: true})
	if err != nil {
		return nil, &domain.FetchError{Kind: domain.FetchNetwork, URL: url, Err: err}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, f.endpoint, bytes.NewReader(payload))
	if err != nil {
		return nil, &domain.FetchError{Kind: domain.FetchNetwork, URL: url, Err: err}
	}
	req.Header.Set("Content-Type", "application/json")
	req.SetBasicAuth(f.apiKey, "")

	httpResp, err := f.client.Do(req)
	if err != nil {
		return nil, classifyTransportError(url, err)
	}
	defer httpResp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(httpResp.Body, f.maxBody))
	if err != nil {
		return nil, classifyTransportError(url, err)
	}

	if proxyErr := classifyProxyStatus(url, httpResp.StatusCode); proxyErr != nil {
		return nil, proxyErr
	}

	var out extractResponse
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, &domain.FetchError{Kind: domain.FetchNetwork, URL: url, Err: fmt.Errorf("decode proxy response: %w", err)}
	}

	if statusErr := classifyStatus(url, out.StatusCode); statusErr != nil {
		return nil, statusErr
	}

	body, err := base64.StdEncoding.DecodeString(out.HTTPResponseBody)
	if err != nil {
		return nil, &domain.FetchError{Kind: domain.FetchNetwork, URL: url, Err: fmt.Errorf("decode page body: %w", err)}
	}

	finalURL := out.URL
	if finalURL == "" {
		finalURL = url
	}

	return &Response{URL: finalURL, StatusCode: out.StatusCode, Body: body}, nil
}

// classifyProxyStatus maps the proxy's own HTTP status. Refusals are blocked,
// proxy-side 5xx are transient.
func classifyProxyStatus(url string, status int) error {
	switch {
	case status >= http.StatusOK && status < http.StatusMultipleChoices:
		return nil
	case blockedStatuses[status], status == statusProxyBanned, status == statusProxyBannedAlt:
		return &domain.FetchError{Kind: domain.FetchBlocked, URL: url, StatusCode: status}
	case status >= http.StatusInternalServerError:
		return &domain.FetchError{Kind: domain.FetchNetwork, URL: url, StatusCode: status}
	default:
		return &domain.FetchError{Kind: domain.FetchHTTPError, URL: url, StatusCode: status}
	}
}

func isProxyRefusal(err error) bool {
	var fe *domain.FetchError
	return errors.As(err, &fe) && fe.Kind == domain.FetchBlocked
}
