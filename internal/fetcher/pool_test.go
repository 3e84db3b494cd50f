package fetcher_test

import (
	"context"
	"fmt"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	"github.com/jonesrussell/north-cloud/shelter-sync/internal/domain"
	"github.com/jonesrussell/north-cloud/shelter-sync/internal/fetcher"
	"github.com/jonesrussell/north-cloud/shelter-sync/internal/fetcher/mocks"
	"github.com/jonesrussell/north-cloud/shelter-sync/internal/logger"
)

// countingFetcher records the peak number of concurrent fetches.
type countingFetcher struct {
	active atomic.Int32
	peak   atomic.Int32
}

func (f *countingFetcher) Fetch(_ context.Context, url string) (*fetcher.Response, error) {
	n := f.active.Add(1)
	for {
		p := f.peak.Load()
		if n <= p || f.peak.CompareAndSwap(p, n) {
			break
		}
	}
	time.Sleep(5 * time.Millisecond)
	f.active.Add(-1)
	return &fetcher.Response{URL: url, StatusCode: 200}, nil
}

func TestPool_RespectsBound(t *testing.T) {
	t.Parallel()

	pool, err := fetcher.NewPool(3)
	require.NoError(t, err)
	defer pool.Close()

	urls := make([]string, 20)
	for i := range urls {
		urls[i] = fmt.Sprintf("https://example.com/%d", i)
	}

	f := &countingFetcher{}
	results := pool.FetchAll(context.Background(), urls, f)

	require.Len(t, results, 20)
	assert.LessOrEqual(t, f.peak.Load(), int32(3))
	for i, r := range results {
		assert.Equal(t, urls[i], r.URL)
		assert.NoError(t, r.Err)
	}
}

func TestPool_IsolatesFailures(t *testing.T) {
	t.Parallel()

	ctrl := gomock.NewController(t)
	mockFetcher := mocks.NewMockFetcher(ctrl)
	mockFetcher.EXPECT().Fetch(gomock.Any(), gomock.Any()).DoAndReturn(
		func(_ context.Context, url string) (*fetcher.Response, error) {
			if strings.HasSuffix(url, "/missing") {
				return nil, &domain.FetchError{Kind: domain.FetchHTTPError, URL: url, StatusCode: 404}
			}
			return &fetcher.Response{URL: url, StatusCode: 200, Body: []byte("ok")}, nil
		},
	).Times(10)

	pool, err := fetcher.NewPool(4)
	require.NoError(t, err)
	defer pool.Close()

	urls := make([]string, 0, 10)
	for i := range 7 {
		urls = append(urls, fmt.Sprintf("https://example.com/%d", i))
	}
	for i := range 3 {
		urls = append(urls, fmt.Sprintf("https://example.com/%d/missing", i))
	}

	results := pool.FetchAll(context.Background(), urls, mockFetcher)

	failed := 0
	for _, r := range results {
		if r.Err != nil {
			failed++
			assert.True(t, fetcher.IsNotFound(r.Err))
		}
	}
	assert.Equal(t, 3, failed)
}

func TestPool_CancelledContextSkipsDispatch(t *testing.T) {
	t.Parallel()

	ctrl := gomock.NewController(t)
	mockFetcher := mocks.NewMockFetcher(ctrl)

	pool, err := fetcher.NewPool(2)
	require.NoError(t, err)
	defer pool.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	results := pool.FetchAll(ctx, []string{"https://example.com/a", "https://example.com/b"}, mockFetcher)
	for _, r := range results {
		assert.Error(t, r.Err)
	}
}

func TestRetrying_RetriesTimeoutsOnly(t *testing.T) {
	t.Parallel()

	ctrl := gomock.NewController(t)
	mockFetcher := mocks.NewMockFetcher(ctrl)

	gomock.InOrder(
		mockFetcher.EXPECT().Fetch(gomock.Any(), "https://example.com/a").
			Return(nil, &domain.FetchError{Kind: domain.FetchTimeout, URL: "https://example.com/a"}),
		mockFetcher.EXPECT().Fetch(gomock.Any(), "https://example.com/a").
			Return(&fetcher.Response{URL: "https://example.com/a", StatusCode: 200}, nil),
	)
	mockFetcher.EXPECT().Fetch(gomock.Any(), "https://example.com/gone").
		Return(nil, &domain.FetchError{Kind: domain.FetchHTTPError, URL: "https://example.com/gone", StatusCode: 404}).
		Times(1)

	r := fetcher.NewRetrying(mockFetcher, fetcher.Config{InitialBackoff: time.Millisecond}, logger.NewNop())

	resp, err := r.Fetch(context.Background(), "https://example.com/a")
	require.NoError(t, err)
	assert.Equal(t, 200, resp.StatusCode)

	_, err = r.Fetch(context.Background(), "https://example.com/gone")
	assert.True(t, fetcher.IsNotFound(err))
}

func TestSet_UnknownMode(t *testing.T) {
	t.Parallel()

	set := fetcher.NewSetFrom(nil, nil, nil, nil)
	results := set.FetchAll(context.Background(), fetcher.Mode("carrier-pigeon"), []string{"https://example.com"})
	require.Len(t, results, 1)
	assert.Error(t, results[0].Err)
}

func TestSet_ForBindsStrategy(t *testing.T) {
	t.Parallel()

	bulk := &countingFetcher{}
	set := fetcher.NewSetFrom(bulk, nil, nil, nil)

	resp, err := set.For(fetcher.ModeBulk).Fetch(context.Background(), "https://example.com/a")
	require.NoError(t, err)
	assert.Equal(t, "https://example.com/a", resp.URL)
	assert.Panics(t, func() { set.For(fetcher.Mode("carrier-pigeon")) })
}
