package config

import (
	"fmt"
	"slices"
	"strings"
	"time"
)

// ValidationError represents a single validation failure
type ValidationError struct {
	Field   string // The config field path (e.g., "retry.max_retries")
	Value   any    // The invalid value
	Message string // Human-readable error description
}

// Error implements the error interface for ValidationError
func (e ValidationError) Error() string {
	return fmt.Sprintf("%s: %s (got: %v)", e.Field, e.Message, e.Value)
}

// ValidationErrors is a collection of validation errors
type ValidationErrors []ValidationError

// Error implements the error interface for ValidationErrors
func (e ValidationErrors) Error() string {
	if len(e) == 0 {
		return ""
	}
	if len(e) == 1 {
		return e[0].Error()
	}

	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("%d validation errors:\n", len(e)))
	for i, err := range e {
		sb.WriteString(fmt.Sprintf("  %d. %s\n", i+1, err.Error()))
	}
	return sb.String()
}

// Bounds on the retry policy
const (
	maxRetriesLimit = 20
	minBaseDelay    = time.Millisecond
	maxBaseDelay    = 10 * time.Second
	maxLogSizeMB    = 1000
)

// ValidBackends returns the list of valid store backends
func ValidBackends() []string {
	return []string{BackendFile, BackendSQLite, BackendS3, BackendMemory}
}

// ValidLogLevels returns the list of valid log levels
func ValidLogLevels() []string {
	return []string{"DEBUG", "INFO", "WARN", "ERROR"}
}

// Validate checks the Config for invalid values and returns all validation errors found
func (c *Config) Validate() []ValidationError {
	var errors []ValidationError
	errors = append(errors, c.validateStore()...)
	errors = append(errors, c.validateRetry()...)
	errors = append(errors, c.validateLogging()...)
	return errors
}

func (c *Config) validateStore() []ValidationError {
	var errors []ValidationError

	if !slices.Contains(ValidBackends(), c.Store.Backend) {
		errors = append(errors, ValidationError{
			Field:   "store.backend",
			Value:   c.Store.Backend,
			Message: fmt.Sprintf("must be one of: %s", strings.Join(ValidBackends(), ", ")),
		})
		return errors
	}

	switch c.Store.Backend {
	case BackendFile:
		if strings.TrimSpace(c.Store.File.Path) == "" {
			errors = append(errors, ValidationError{
				Field:   "store.file.path",
				Value:   c.Store.File.Path,
				Message: "is required for the file backend",
			})
		}
	case BackendSQLite:
		if strings.TrimSpace(c.Store.SQLite.Path) == "" {
			errors = append(errors, ValidationError{
				Field:   "store.sqlite.path",
				Value:   c.Store.SQLite.Path,
				Message: "is required for the sqlite backend",
			})
		}
		if strings.TrimSpace(c.Store.SQLite.Key) == "" {
			errors = append(errors, ValidationError{
				Field:   "store.sqlite.key",
				Value:   c.Store.SQLite.Key,
				Message: "must not be empty",
			})
		}
	case BackendS3:
		if strings.TrimSpace(c.Store.S3.Bucket) == "" {
			errors = append(errors, ValidationError{
				Field:   "store.s3.bucket",
				Value:   c.Store.S3.Bucket,
				Message: "is required for the s3 backend",
			})
		}
		if strings.TrimSpace(c.Store.S3.Key) == "" {
			errors = append(errors, ValidationError{
				Field:   "store.s3.key",
				Value:   c.Store.S3.Key,
				Message: "must not be empty",
			})
		}
	}

	return errors
}

func (c *Config) validateRetry() []ValidationError {
	var errors []ValidationError

	if c.Retry.MaxRetries < 1 || c.Retry.MaxRetries > maxRetriesLimit {
		errors = append(errors, ValidationError{
			Field:   "retry.max_retries",
			Value:   c.Retry.MaxRetries,
			Message: fmt.Sprintf("must be between 1 and %d", maxRetriesLimit),
		})
	}
	if c.Retry.BaseDelay < minBaseDelay || c.Retry.BaseDelay > maxBaseDelay {
		errors = append(errors, ValidationError{
			Field:   "retry.base_delay",
			Value:   c.Retry.BaseDelay,
			Message: fmt.Sprintf("must be between %s and %s", minBaseDelay, maxBaseDelay),
		})
	}
	if c.Retry.RetryAfter < 0 {
		errors = append(errors, ValidationError{
			Field:   "retry.retry_after",
			Value:   c.Retry.RetryAfter,
			Message: "must be non-negative",
		})
	}

	return errors
}

func (c *Config) validateLogging() []ValidationError {
	var errors []ValidationError

	if !slices.Contains(ValidLogLevels(), strings.ToUpper(c.Logging.Level)) {
		errors = append(errors, ValidationError{
			Field:   "logging.level",
			Value:   c.Logging.Level,
			Message: fmt.Sprintf("must be one of: %s", strings.Join(ValidLogLevels(), ", ")),
		})
	}
	if c.Logging.MaxSizeMB < 0 || c.Logging.MaxSizeMB > maxLogSizeMB {
		errors = append(errors, ValidationError{
			Field:   "logging.max_size_mb",
			Value:   c.Logging.MaxSizeMB,
			Message: fmt.Sprintf("must be between 0 and %d", maxLogSizeMB),
		})
	}
	if c.Logging.MaxBackups < 0 {
		errors = append(errors, ValidationError{
			Field:   "logging.max_backups",
			Value:   c.Logging.MaxBackups,
			Message: "must be non-negative",
		})
	}

	return errors
}
