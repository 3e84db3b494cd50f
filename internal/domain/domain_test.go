package domain_test

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jonesrussell/north-cloud/shelter-sync/internal/domain"
)

func TestValidateURLTransition(t *testing.T) {
	t.Parallel()

	tests := []struct {
		from, to domain.URLStatus
		ok       bool
	}{
		{domain.URLStatusPending, domain.URLStatusFetched, true},
		{domain.URLStatusFetched, domain.URLStatusParsed, true},
		{domain.URLStatusPending, domain.URLStatusFailed, true},
		{domain.URLStatusFetched, domain.URLStatusFailed, true},
		{domain.URLStatusFailed, domain.URLStatusPending, true},
		{domain.URLStatusParsed, domain.URLStatusPending, true},
		{domain.URLStatusRemoved, domain.URLStatusPending, true},
		{domain.URLStatusParsed, domain.URLStatusFailed, true},
		{domain.URLStatusParsed, domain.URLStatusFetched, false},
		{domain.URLStatusPending, domain.URLStatusParsed, false},
		{domain.URLStatusFailed, domain.URLStatusParsed, false},
	}

	for _, tt := range tests {
		err := domain.ValidateURLTransition(tt.from, tt.to)
		if tt.ok {
			assert.NoError(t, err, "%s -> %s", tt.from, tt.to)
		} else {
			assert.ErrorIs(t, err, domain.ErrInvalidTransition, "%s -> %s", tt.from, tt.to)
		}
	}
}

func TestURLStatusesInto(t *testing.T) {
	t.Parallel()

	assert.Equal(t, []domain.URLStatus{domain.URLStatusPending}, domain.URLStatusesInto(domain.URLStatusFetched))
	assert.Equal(t, []domain.URLStatus{domain.URLStatusFetched}, domain.URLStatusesInto(domain.URLStatusParsed))
	assert.Equal(t,
		[]domain.URLStatus{domain.URLStatusPending, domain.URLStatusFetched, domain.URLStatusParsed},
		domain.URLStatusesInto(domain.URLStatusFailed),
	)
	assert.NotContains(t, domain.URLStatusesInto(domain.URLStatusRemoved), domain.URLStatusRemoved)
}

func TestValidateJobTransition(t *testing.T) {
	t.Parallel()

	require.NoError(t, domain.ValidateJobTransition(domain.JobStatusRunning, domain.JobStatusCompleted))
	require.NoError(t, domain.ValidateJobTransition(domain.JobStatusRunning, domain.JobStatusFailed))
	require.ErrorIs(t,
		domain.ValidateJobTransition(domain.JobStatusCompleted, domain.JobStatusRunning),
		domain.ErrInvalidTransition,
	)
}

func TestFinalStatus(t *testing.T) {
	t.Parallel()

	assert.Equal(t, domain.JobStatusCompleted, domain.FinalStatus(domain.JobCounts{Created: 3}))
	assert.Equal(t, domain.JobStatusCompletedWithErrors, domain.FinalStatus(domain.JobCounts{Created: 7, Failed: 3}))
}

func TestSchedulingError_MatchesSentinel(t *testing.T) {
	t.Parallel()

	err := fmt.Errorf("trigger: %w", &domain.SchedulingError{
		Kind:    domain.SchedulingJobAlreadyRunning,
		JobType: domain.JobTypeFull,
	})

	assert.ErrorIs(t, err, domain.ErrJobAlreadyRunning)

	var se *domain.SchedulingError
	require.ErrorAs(t, err, &se)
	assert.Equal(t, domain.JobTypeFull, se.JobType)
}

func TestFetchError_Retryable(t *testing.T) {
	t.Parallel()

	assert.True(t, (&domain.FetchError{Kind: domain.FetchTimeout}).Retryable())
	assert.True(t, (&domain.FetchError{Kind: domain.FetchNetwork}).Retryable())
	assert.False(t, (&domain.FetchError{Kind: domain.FetchHTTPError, StatusCode: 404}).Retryable())
	assert.False(t, (&domain.FetchError{Kind: domain.FetchBlocked, StatusCode: 403}).Retryable())
}

func TestIsConnectionLost(t *testing.T) {
	t.Parallel()

	lost := fmt.Errorf("apply: %w", &domain.PersistenceError{
		Kind: domain.PersistenceConnectionLost,
		Op:   "apply record",
		Err:  errors.New("driver: bad connection"),
	})
	assert.True(t, domain.IsConnectionLost(lost))
	assert.False(t, domain.IsConnectionLost(&domain.PersistenceError{Kind: domain.PersistenceConstraintViolation}))
	assert.False(t, domain.IsConnectionLost(errors.New("plain")))
}

func TestParseSyncScope(t *testing.T) {
	t.Parallel()

	scope, err := domain.ParseSyncScope("")
	require.NoError(t, err)
	assert.Equal(t, domain.SyncScopeAll, scope)
	assert.Len(t, scope.ItemTypes(), 2)

	scope, err = domain.ParseSyncScope("records")
	require.NoError(t, err)
	assert.Equal(t, []domain.ItemType{domain.ItemTypeRecord}, scope.ItemTypes())

	_, err = domain.ParseSyncScope("everything")
	assert.Error(t, err)
}

func TestListingHint_RoundTripsThroughJSONColumn(t *testing.T) {
	t.Parallel()

	hint := domain.ListingHint{Name: "Rosie", Species: "Dog", Size: "L"}
	raw, err := hint.Value()
	require.NoError(t, err)

	var scanned domain.ListingHint
	require.NoError(t, scanned.Scan(raw))
	assert.Equal(t, hint, scanned)

	var empty domain.ListingHint
	require.NoError(t, empty.Scan(nil))
	assert.Equal(t, domain.ListingHint{}, empty)
}
