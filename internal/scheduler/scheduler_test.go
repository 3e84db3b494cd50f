package scheduler_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jonesrussell/north-cloud/shelter-sync/internal/domain"
	"github.com/jonesrussell/north-cloud/shelter-sync/internal/logger"
	"github.com/jonesrussell/north-cloud/shelter-sync/internal/metrics"
	"github.com/jonesrussell/north-cloud/shelter-sync/internal/scheduler"
)

type call struct {
	jobType domain.JobType
	trigger domain.JobTrigger
}

type fakeTrigger struct {
	mu    sync.Mutex
	calls []call
	err   error
	fired chan struct{}
}

func newFakeTrigger(err error) *fakeTrigger {
	return &fakeTrigger{err: err, fired: make(chan struct{}, 10)}
}

func (f *fakeTrigger) Trigger(_ context.Context, jobType domain.JobType, trigger domain.JobTrigger) (*domain.IngestionJob, error) {
	f.mu.Lock()
	f.calls = append(f.calls, call{jobType: jobType, trigger: trigger})
	f.mu.Unlock()
	f.fired <- struct{}{}

	if f.err != nil {
		return nil, f.err
	}
	return &domain.IngestionJob{ID: "job-1", JobType: jobType, Status: domain.JobStatusRunning, Trigger: trigger}, nil
}

func (f *fakeTrigger) waitFired(t *testing.T) {
	t.Helper()
	select {
	case <-f.fired:
	case <-time.After(2 * time.Second):
		t.Fatal("trigger was not called")
	}
}

func TestConfig_Specs(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		cfg  scheduler.Config
		want map[domain.JobType]string
	}{
		{
			name: "defaults",
			cfg:  scheduler.Config{},
			want: map[domain.JobType]string{
				domain.JobTypeRecordScrape:  "@every 4h",
				domain.JobTypeContentScrape: "0 2 * * *",
				domain.JobTypeURLDiscovery:  "0 1 * * 0",
			},
		},
		{
			name: "custom",
			cfg: scheduler.Config{
				RecordIntervalHours: 6,
				ContentTime:         "03:15",
				DiscoveryWeekday:    "Wednesday",
				DiscoveryTime:       "14:30",
			},
			want: map[domain.JobType]string{
				domain.JobTypeRecordScrape:  "@every 6h",
				domain.JobTypeContentScrape: "15 3 * * *",
				domain.JobTypeURLDiscovery:  "30 14 * * 3",
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			cfg := tt.cfg
			cfg.SetDefaults()
			specs, err := cfg.Specs()
			require.NoError(t, err)
			assert.Equal(t, tt.want, specs)
		})
	}
}

func TestConfig_SpecsInvalid(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		mutate func(*scheduler.Config)
	}{
		{"content time without colon", func(c *scheduler.Config) { c.ContentTime = "0200" }},
		{"hour out of range", func(c *scheduler.Config) { c.ContentTime = "24:00" }},
		{"minute out of range", func(c *scheduler.Config) { c.DiscoveryTime = "01:60" }},
		{"unknown weekday", func(c *scheduler.Config) { c.DiscoveryWeekday = "someday" }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			cfg := scheduler.Config{}
			cfg.SetDefaults()
			tt.mutate(&cfg)

			_, err := cfg.Specs()
			require.Error(t, err)
		})
	}
}

func TestNew_InvalidTimezone(t *testing.T) {
	t.Parallel()

	_, err := scheduler.New(scheduler.Config{Timezone: "Mars/Olympus"}, newFakeTrigger(nil), nil, logger.NewNop())
	require.Error(t, err)
}

func TestNextRuns_BeforeStart(t *testing.T) {
	t.Parallel()

	s, err := scheduler.New(scheduler.Config{Timezone: "UTC"}, newFakeTrigger(nil), nil, logger.NewNop())
	require.NoError(t, err)

	now := time.Now().UTC()
	runs := s.NextRuns()
	require.Len(t, runs, 3)

	content := runs[domain.JobTypeContentScrape]
	assert.True(t, content.After(now))
	assert.Equal(t, 2, content.Hour())
	assert.Equal(t, 0, content.Minute())

	discovery := runs[domain.JobTypeURLDiscovery]
	assert.Equal(t, time.Sunday, discovery.Weekday())
	assert.Equal(t, 1, discovery.Hour())

	record := runs[domain.JobTypeRecordScrape]
	assert.WithinDuration(t, now.Add(4*time.Hour), record, time.Minute)
}

func TestStart_RunsRecordsOnStartup(t *testing.T) {
	t.Parallel()

	trigger := newFakeTrigger(nil)
	s, err := scheduler.New(scheduler.Config{Timezone: "UTC", RunRecordsOnStartup: true}, trigger, nil, logger.NewNop())
	require.NoError(t, err)

	require.NoError(t, s.Start(context.Background()))
	t.Cleanup(func() { _ = s.Stop(context.Background()) })

	trigger.waitFired(t)

	trigger.mu.Lock()
	defer trigger.mu.Unlock()
	require.Len(t, trigger.calls, 1)
	assert.Equal(t, domain.JobTypeRecordScrape, trigger.calls[0].jobType)
	assert.Equal(t, domain.TriggerStartup, trigger.calls[0].trigger)
}

func TestStart_SkipsWhenAlreadyRunning(t *testing.T) {
	t.Parallel()

	m := metrics.NewNop()
	trigger := newFakeTrigger(&domain.SchedulingError{
		Kind:    domain.SchedulingJobAlreadyRunning,
		JobType: domain.JobTypeRecordScrape,
	})
	s, err := scheduler.New(scheduler.Config{Timezone: "UTC", RunRecordsOnStartup: true}, trigger, m, logger.NewNop())
	require.NoError(t, err)

	require.NoError(t, s.Start(context.Background()))
	t.Cleanup(func() { _ = s.Stop(context.Background()) })

	trigger.waitFired(t)

	assert.Eventually(t, func() bool {
		return testutil.ToFloat64(m.ScheduleSkipped.WithLabelValues(string(domain.JobTypeRecordScrape))) == 1
	}, 2*time.Second, 10*time.Millisecond)
}

func TestLifecycle(t *testing.T) {
	t.Parallel()

	s, err := scheduler.New(scheduler.Config{Timezone: "UTC"}, newFakeTrigger(nil), nil, logger.NewNop())
	require.NoError(t, err)

	assert.Equal(t, scheduler.StateStopped, s.State())
	require.NoError(t, s.Stop(context.Background()))

	require.NoError(t, s.Start(context.Background()))
	assert.Equal(t, scheduler.StateRunning, s.State())
	require.Error(t, s.Start(context.Background()))

	runs := s.NextRuns()
	assert.Len(t, runs, 3)

	require.NoError(t, s.Stop(context.Background()))
	assert.Equal(t, scheduler.StateStopped, s.State())

	// A stopped scheduler can be started again.
	require.NoError(t, s.Start(context.Background()))
	require.NoError(t, s.Stop(context.Background()))
}
