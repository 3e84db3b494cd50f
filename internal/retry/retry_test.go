package retry_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jonesrussell/north-cloud/shelter-sync/internal/domain"
	"github.com/jonesrussell/north-cloud/shelter-sync/internal/retry"
)

func TestBackoff_DefaultSchedule(t *testing.T) {
	t.Parallel()

	cfg := retry.Config{}
	assert.Equal(t, 1*time.Second, cfg.Backoff(1))
	assert.Equal(t, 3*time.Second, cfg.Backoff(2))
	assert.Equal(t, 9*time.Second, cfg.Backoff(3))
	assert.Equal(t, retry.DefaultMaxDelay, cfg.Backoff(10))
}

func TestDo_DefaultAttemptsWaitTwice(t *testing.T) {
	t.Parallel()

	var delays []time.Duration
	cfg := retry.Config{
		InitialDelay: time.Millisecond,
		OnRetry:      func(_ int, d time.Duration, _ error) { delays = append(delays, d) },
	}

	calls := 0
	err := retry.Do(context.Background(), cfg, func(int) error {
		calls++
		return &domain.FetchError{Kind: domain.FetchTimeout, URL: "u"}
	})

	require.Error(t, err)
	assert.Equal(t, retry.DefaultMaxAttempts, calls)
	assert.Equal(t, []time.Duration{time.Millisecond, 3 * time.Millisecond}, delays)
}

func fastConfig() retry.Config {
	return retry.Config{InitialDelay: time.Millisecond, MaxDelay: 5 * time.Millisecond}
}

func TestDo_RetriesTransientErrors(t *testing.T) {
	t.Parallel()

	calls := 0
	err := retry.Do(context.Background(), fastConfig(), func(int) error {
		calls++
		if calls < 3 {
			return &domain.FetchError{Kind: domain.FetchTimeout, URL: "u"}
		}
		return nil
	})

	require.NoError(t, err)
	assert.Equal(t, 3, calls)
}

func TestDo_GivesUpAfterMaxAttempts(t *testing.T) {
	t.Parallel()

	calls := 0
	var retried []int
	cfg := fastConfig()
	cfg.OnRetry = func(attempt int, _ time.Duration, _ error) { retried = append(retried, attempt) }

	err := retry.Do(context.Background(), cfg, func(int) error {
		calls++
		return &domain.FetchError{Kind: domain.FetchNetwork, URL: "u"}
	})

	var fe *domain.FetchError
	require.ErrorAs(t, err, &fe)
	assert.Equal(t, domain.FetchNetwork, fe.Kind)
	assert.Equal(t, 3, calls)
	assert.Equal(t, []int{1, 2}, retried)
}

func TestDo_DoesNotRetryNotFound(t *testing.T) {
	t.Parallel()

	calls := 0
	err := retry.Do(context.Background(), fastConfig(), func(int) error {
		calls++
		return &domain.FetchError{Kind: domain.FetchHTTPError, StatusCode: 404, URL: "u"}
	})

	require.Error(t, err)
	assert.Equal(t, 1, calls)
}

func TestDo_StopsWhenContextCancelled(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := retry.Do(ctx, fastConfig(), func(int) error { return nil })
	assert.ErrorIs(t, err, retry.ErrContextCancelled)
}

func TestIsTransient(t *testing.T) {
	t.Parallel()

	assert.False(t, retry.IsTransient(nil))
	assert.False(t, retry.IsTransient(errors.New("boom")))
	assert.True(t, retry.IsTransient(context.DeadlineExceeded))
	assert.True(t, retry.IsTransient(&domain.FetchError{Kind: domain.FetchTimeout}))
}
