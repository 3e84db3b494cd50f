package config

import (
	"errors"
	"fmt"
	"net/url"
	"regexp"
	"strings"
)

// ValidationError is a configuration field error.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// Validate checks the loaded configuration and reports every problem.
func (c *Config) Validate() error {
	var errs []error

	if err := validatePort("server.port", c.Server.Port); err != nil {
		errs = append(errs, err)
	}
	if err := validatePort("database.port", c.Database.Port); err != nil {
		errs = append(errs, err)
	}
	if c.Database.Host == "" {
		errs = append(errs, &ValidationError{Field: "database.host", Message: "is required"})
	}
	if err := validateLogLevel(c.Logging.Level); err != nil {
		errs = append(errs, err)
	}
	if err := validateLogFormat(c.Logging.Format); err != nil {
		errs = append(errs, err)
	}
	if err := validateURL("index.url", withScheme(c.Index.URL)); err != nil {
		errs = append(errs, err)
	}
	if c.Redis.Enabled && c.Redis.Address == "" {
		errs = append(errs, &ValidationError{Field: "redis.address", Message: "is required when redis is enabled"})
	}

	for i, l := range c.Discovery.Listings {
		if err := validateURL(fmt.Sprintf("discovery.listings[%d].url", i), l.URL); err != nil {
			errs = append(errs, err)
		}
		if l.Category == "" {
			errs = append(errs, &ValidationError{
				Field:   fmt.Sprintf("discovery.listings[%d].category", i),
				Message: "is required",
			})
		}
	}
	for i, rule := range c.Discovery.Rules {
		for j, p := range rule.Patterns {
			if _, err := regexp.Compile(p); err != nil {
				errs = append(errs, &ValidationError{
					Field:   fmt.Sprintf("discovery.rules[%d].patterns[%d]", i, j),
					Message: err.Error(),
				})
			}
		}
	}

	if _, err := c.Schedule.Specs(); err != nil {
		errs = append(errs, &ValidationError{Field: "schedule", Message: err.Error()})
	}
	if _, err := c.Schedule.Location(); err != nil {
		errs = append(errs, &ValidationError{Field: "schedule.timezone", Message: err.Error()})
	}

	return errors.Join(errs...)
}

func validatePort(field string, port int) error {
	if port < 1 || port > 65535 {
		return &ValidationError{Field: field, Message: "must be between 1 and 65535"}
	}
	return nil
}

func validateLogLevel(level string) error {
	switch level {
	case "debug", "info", "warn", "warning", "error", "fatal":
		return nil
	default:
		return &ValidationError{Field: "logging.level", Message: "must be one of: debug, info, warn, error, fatal"}
	}
}

func validateLogFormat(format string) error {
	switch format {
	case "json", "console":
		return nil
	default:
		return &ValidationError{Field: "logging.format", Message: "must be one of: json, console"}
	}
}

func validateURL(field, raw string) error {
	u, err := url.Parse(raw)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return &ValidationError{Field: field, Message: fmt.Sprintf("invalid URL %q", raw)}
	}
	return nil
}

// withScheme mirrors the index client, which assumes http when no scheme is
// given.
func withScheme(raw string) string {
	if raw != "" && !strings.Contains(raw, "://") {
		return "http://" + raw
	}
	return raw
}
