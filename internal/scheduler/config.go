package scheduler

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/jonesrussell/north-cloud/shelter-sync/internal/domain"
)

// Default configuration values.
const (
	defaultRecordIntervalHours = 4
	defaultContentTime         = "02:00"
	defaultDiscoveryWeekday    = "sunday"
	defaultDiscoveryTime       = "01:00"
	defaultTimezone            = "America/Toronto"
)

// Config holds the cadences of the scheduled jobs.
type Config struct {
	Enabled             bool   `env:"SCHEDULER_ENABLED"               yaml:"enabled"`
	RecordIntervalHours int    `env:"SCHEDULE_RECORD_INTERVAL_HOURS"  yaml:"record_interval_hours"`
	ContentTime         string `env:"SCHEDULE_CONTENT_TIME"           yaml:"content_time"`
	DiscoveryWeekday    string `env:"SCHEDULE_DISCOVERY_WEEKDAY"      yaml:"discovery_weekday"`
	DiscoveryTime       string `env:"SCHEDULE_DISCOVERY_TIME"         yaml:"discovery_time"`
	Timezone            string `env:"SCHEDULE_TIMEZONE"               yaml:"timezone"`
	RunRecordsOnStartup bool   `env:"SCHEDULE_RUN_RECORDS_ON_STARTUP" yaml:"run_records_on_startup"`
}

// SetDefaults applies default values to the config if not set.
func (c *Config) SetDefaults() {
	if c.RecordIntervalHours <= 0 {
		c.RecordIntervalHours = defaultRecordIntervalHours
	}
	if c.ContentTime == "" {
		c.ContentTime = defaultContentTime
	}
	if c.DiscoveryWeekday == "" {
		c.DiscoveryWeekday = defaultDiscoveryWeekday
	}
	if c.DiscoveryTime == "" {
		c.DiscoveryTime = defaultDiscoveryTime
	}
	if c.Timezone == "" {
		c.Timezone = defaultTimezone
	}
}

var weekdays = map[string]time.Weekday{
	"sunday":    time.Sunday,
	"monday":    time.Monday,
	"tuesday":   time.Tuesday,
	"wednesday": time.Wednesday,
	"thursday":  time.Thursday,
	"friday":    time.Friday,
	"saturday":  time.Saturday,
}

// Specs returns the cron expression of each scheduled job type.
func (c Config) Specs() (map[domain.JobType]string, error) {
	if c.RecordIntervalHours <= 0 {
		return nil, fmt.Errorf("record interval must be positive, got %d", c.RecordIntervalHours)
	}

	contentHour, contentMinute, err := parseClock(c.ContentTime)
	if err != nil {
		return nil, fmt.Errorf("content_time: %w", err)
	}
	discoveryHour, discoveryMinute, err := parseClock(c.DiscoveryTime)
	if err != nil {
		return nil, fmt.Errorf("discovery_time: %w", err)
	}
	weekday, ok := weekdays[strings.ToLower(strings.TrimSpace(c.DiscoveryWeekday))]
	if !ok {
		return nil, fmt.Errorf("discovery_weekday: unknown day %q", c.DiscoveryWeekday)
	}

	return map[domain.JobType]string{
		domain.JobTypeRecordScrape:  fmt.Sprintf("@every %dh", c.RecordIntervalHours),
		domain.JobTypeContentScrape: fmt.Sprintf("%d %d * * *", contentMinute, contentHour),
		domain.JobTypeURLDiscovery:  fmt.Sprintf("%d %d * * %d", discoveryMinute, discoveryHour, weekday),
	}, nil
}

// Location resolves the configured timezone.
func (c Config) Location() (*time.Location, error) {
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return nil, fmt.Errorf("timezone %q: %w", c.Timezone, err)
	}
	return loc, nil
}

// parseClock parses "HH:MM".
func parseClock(s string) (hour, minute int, err error) {
	h, m, ok := strings.Cut(strings.TrimSpace(s), ":")
	if !ok {
		return 0, 0, fmt.Errorf("invalid time %q, want HH:MM", s)
	}
	hour, err = strconv.Atoi(h)
	if err != nil || hour < 0 || hour > 23 {
		return 0, 0, fmt.Errorf("invalid hour in %q", s)
	}
	minute, err = strconv.Atoi(m)
	if err != nil || minute < 0 || minute > 59 {
		return 0, 0, fmt.Errorf("invalid minute in %q", s)
	}
	return hour, minute, nil
}
