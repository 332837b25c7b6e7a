// Package errors provides the error taxonomy shared by every giftswap
// component. It defines sentinel errors, typed errors that carry context,
// and classification helpers used by the retry layer and the CLI.
//
// # Error Types
//
// Caller-fixable and terminal errors:
//   - ValidationError: blank or oversized names, out-of-range ids
//   - NotFoundError: unknown gift id
//   - CapacityError: the participant registry is full
//   - GameError: a turn operation whose precondition does not hold
//     (no participants, already started, not started)
//
// Storage errors:
//   - StoreError: I/O, lock, decode, network or version-conflict failure
//     inside a state backend. Always retryable.
//   - UnavailableError: the retry budget was exhausted. Carries the last
//     underlying error and a suggested client retry delay.
//
// # Usage
//
//	err := errors.NewValidationError("name must not be blank").WithField("name")
//	if errors.Is(err, errors.ErrInvalidInput) { ... }
//
//	var unavailable *errors.UnavailableError
//	if errors.As(err, &unavailable) {
//	    time.Sleep(unavailable.RetryAfter)
//	}
//
//	switch errors.Classify(err) {
//	case errors.ClassCapacity: ...
//	}
package errors

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// Re-export standard library functions for convenience.
// This allows callers to import only this package for all error handling.
var (
	Is     = errors.Is
	As     = errors.As
	Unwrap = errors.Unwrap
	New    = errors.New
	Join   = errors.Join
)

// Severity represents the severity level of an error.
type Severity int

const (
	// SeverityDebug is for errors that are useful for debugging but not critical.
	SeverityDebug Severity = iota
	// SeverityInfo is for informational errors that don't indicate a problem.
	SeverityInfo
	// SeverityWarning is for errors that might indicate a problem but aren't critical.
	SeverityWarning
	// SeverityError is for errors that indicate a real problem.
	SeverityError
	// SeverityCritical is for errors that require immediate attention.
	SeverityCritical
)

// String returns the string representation of the severity level.
func (s Severity) String() string {
	switch s {
	case SeverityDebug:
		return "debug"
	case SeverityInfo:
		return "info"
	case SeverityWarning:
		return "warning"
	case SeverityError:
		return "error"
	case SeverityCritical:
		return "critical"
	default:
		return "unknown"
	}
}

// -----------------------------------------------------------------------------
// Sentinel Errors
// -----------------------------------------------------------------------------

// Input and lookup sentinels
var (
	// ErrInvalidInput indicates that input validation failed.
	ErrInvalidInput = New("invalid input")
	// ErrNotFound indicates that a referenced resource does not exist.
	ErrNotFound = New("not found")
	// ErrCapacity indicates that the participant registry is full.
	ErrCapacity = New("capacity reached")
)

// Game-state sentinels
var (
	// ErrNoParticipants indicates a turn operation on a game with nobody registered.
	ErrNoParticipants = New("no participants registered")
	// ErrAlreadyStarted indicates a start request after registration closed.
	ErrAlreadyStarted = New("game already started")
	// ErrNotStarted indicates a backwards move before any turn order exists.
	ErrNotStarted = New("game not started")
)

// Storage sentinels
var (
	// ErrCorrupt indicates that a stored snapshot could not be decoded.
	ErrCorrupt = New("state snapshot is corrupt")
	// ErrConflict indicates that a conditional write lost a race.
	ErrConflict = New("state was modified concurrently")
	// ErrUnavailable indicates that storage stayed unavailable after retrying.
	ErrUnavailable = New("service temporarily unavailable")
)

// -----------------------------------------------------------------------------
// Base Error Interface
// -----------------------------------------------------------------------------

// GiftswapError is the interface implemented by every typed error in this
// package. It extends error with classification methods.
type GiftswapError interface {
	error

	// Unwrap returns the underlying error, if any.
	Unwrap() error

	// Is reports whether this error matches the target error.
	Is(target error) bool

	// Severity returns the severity level of this error.
	Severity() Severity

	// IsRetryable returns true if the operation may succeed on retry.
	IsRetryable() bool

	// IsUserFacing returns true if the message is safe to show end users.
	IsUserFacing() bool
}

// -----------------------------------------------------------------------------
// Base Error Implementation
// -----------------------------------------------------------------------------

// baseError provides common functionality for all error types.
type baseError struct {
	message    string
	cause      error
	severity   Severity
	retryable  bool
	userFacing bool
}

// Error returns the error message.
func (e *baseError) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("%s: %v", e.message, e.cause)
	}
	return e.message
}

// Unwrap returns the underlying error.
func (e *baseError) Unwrap() error {
	return e.cause
}

// Is checks if this error matches the target.
func (e *baseError) Is(target error) bool {
	if e.cause != nil {
		return errors.Is(e.cause, target)
	}
	return false
}

// Severity returns the error severity.
func (e *baseError) Severity() Severity {
	return e.severity
}

// IsRetryable returns whether the error is retryable.
func (e *baseError) IsRetryable() bool {
	return e.retryable
}

// IsUserFacing returns whether the error is safe to show users.
func (e *baseError) IsUserFacing() bool {
	return e.userFacing
}

// -----------------------------------------------------------------------------
// Caller Errors
// -----------------------------------------------------------------------------

// ValidationError represents caller input that can never succeed as given.
//
// Example:
//
//	err := errors.NewValidationError("name must be between 2 and 50 characters")
//	err = err.WithField("name").WithValue("A")
type ValidationError struct {
	baseError
	Field string
	Value any
}

// NewValidationError creates a new ValidationError.
func NewValidationError(message string) *ValidationError {
	return &ValidationError{
		baseError: baseError{
			message:    message,
			severity:   SeverityWarning,
			userFacing: true,
		},
	}
}

// WithField adds a field name to the error context.
func (e *ValidationError) WithField(field string) *ValidationError {
	e.Field = field
	return e
}

// WithValue adds the invalid value to the error context.
func (e *ValidationError) WithValue(value any) *ValidationError {
	e.Value = value
	return e
}

// Error returns the formatted error message.
func (e *ValidationError) Error() string {
	var parts []string
	if e.Field != "" {
		parts = append(parts, fmt.Sprintf("field=%s", e.Field))
	}
	if e.Value != nil {
		parts = append(parts, fmt.Sprintf("value=%v", e.Value))
	}

	prefix := "validation error"
	if len(parts) > 0 {
		prefix = fmt.Sprintf("validation error [%s]", strings.Join(parts, ", "))
	}

	if e.cause != nil {
		return fmt.Sprintf("%s: %s: %v", prefix, e.message, e.cause)
	}
	return fmt.Sprintf("%s: %s", prefix, e.message)
}

// Is checks if this error matches the target.
func (e *ValidationError) Is(target error) bool {
	if _, ok := target.(*ValidationError); ok {
		return true
	}
	if target == ErrInvalidInput {
		return true
	}
	return e.baseError.Is(target)
}

// NotFoundError represents a resource that could not be found.
//
// Example:
//
//	err := errors.NewNotFoundError("gift", "5f0c...")
//	fmt.Println(err) // "gift '5f0c...' not found"
type NotFoundError struct {
	baseError
	ResourceType string
	ResourceID   string
}

// NewNotFoundError creates a new NotFoundError.
func NewNotFoundError(resourceType, resourceID string) *NotFoundError {
	return &NotFoundError{
		baseError: baseError{
			message:    fmt.Sprintf("%s '%s' not found", resourceType, resourceID),
			severity:   SeverityWarning,
			userFacing: true,
		},
		ResourceType: resourceType,
		ResourceID:   resourceID,
	}
}

// Is checks if this error matches the target.
func (e *NotFoundError) Is(target error) bool {
	if _, ok := target.(*NotFoundError); ok {
		return true
	}
	if target == ErrNotFound {
		return true
	}
	return e.baseError.Is(target)
}

// CapacityError reports that a bounded collection is full. It is kept apart
// from ValidationError so callers can answer with a conflict rather than a
// bad request.
type CapacityError struct {
	baseError
	Limit int
}

// NewCapacityError creates a new CapacityError for the given limit.
func NewCapacityError(resource string, limit int) *CapacityError {
	return &CapacityError{
		baseError: baseError{
			message:    fmt.Sprintf("maximum %d %s reached", limit, resource),
			severity:   SeverityWarning,
			userFacing: true,
		},
		Limit: limit,
	}
}

// Is checks if this error matches the target.
func (e *CapacityError) Is(target error) bool {
	if _, ok := target.(*CapacityError); ok {
		return true
	}
	if target == ErrCapacity {
		return true
	}
	return e.baseError.Is(target)
}

// GameError represents a turn operation rejected because the game is in the
// wrong state. The cause is one of ErrNoParticipants, ErrAlreadyStarted or
// ErrNotStarted.
//
// Example:
//
//	err := errors.NewGameError("advance", errors.ErrNoParticipants)
//	fmt.Println(err) // "game error [op=advance]: no participants registered"
type GameError struct {
	baseError
	Op string
}

// NewGameError creates a new GameError for the named operation.
func NewGameError(op string, cause error) *GameError {
	return &GameError{
		baseError: baseError{
			message:    op,
			cause:      cause,
			severity:   SeverityWarning,
			userFacing: true,
		},
		Op: op,
	}
}

// Error returns the formatted error message.
func (e *GameError) Error() string {
	if e.cause == nil {
		return fmt.Sprintf("game error [op=%s]", e.Op)
	}
	return fmt.Sprintf("game error [op=%s]: %v", e.Op, e.cause)
}

// Is checks if this error matches the target.
func (e *GameError) Is(target error) bool {
	if _, ok := target.(*GameError); ok {
		return true
	}
	return e.baseError.Is(target)
}

// -----------------------------------------------------------------------------
// Storage Errors
// -----------------------------------------------------------------------------

// StoreError represents a transient failure inside a state backend. It is
// always retryable; the retry layer absorbs it and escalates exhaustion as an
// UnavailableError.
//
// Example:
//
//	err := errors.NewStoreError("read", err).WithBackend("file").WithKey("/var/lib/giftswap/state.json")
type StoreError struct {
	baseError
	Op      string
	Backend string
	Key     string
}

// NewStoreError creates a new StoreError for the named operation.
func NewStoreError(op string, cause error) *StoreError {
	return &StoreError{
		baseError: baseError{
			message:   op,
			cause:     cause,
			severity:  SeverityError,
			retryable: true,
		},
		Op: op,
	}
}

// WithBackend adds the backend name to the error context.
func (e *StoreError) WithBackend(backend string) *StoreError {
	e.Backend = backend
	return e
}

// WithKey adds the object key or file path to the error context.
func (e *StoreError) WithKey(key string) *StoreError {
	e.Key = key
	return e
}

// Error returns the formatted error message.
func (e *StoreError) Error() string {
	parts := []string{fmt.Sprintf("op=%s", e.Op)}
	if e.Backend != "" {
		parts = append(parts, fmt.Sprintf("backend=%s", e.Backend))
	}
	if e.Key != "" {
		parts = append(parts, fmt.Sprintf("key=%s", e.Key))
	}

	prefix := fmt.Sprintf("store error [%s]", strings.Join(parts, ", "))
	if e.cause != nil {
		return fmt.Sprintf("%s: %v", prefix, e.cause)
	}
	return prefix
}

// Is checks if this error matches the target.
func (e *StoreError) Is(target error) bool {
	if _, ok := target.(*StoreError); ok {
		return true
	}
	return e.baseError.Is(target)
}

// UnavailableError is returned once the retry budget is spent. It wraps the
// last underlying failure and suggests how long a client should wait.
type UnavailableError struct {
	baseError
	Attempts   int
	RetryAfter time.Duration
}

// NewUnavailableError creates a new UnavailableError.
func NewUnavailableError(attempts int, retryAfter time.Duration, cause error) *UnavailableError {
	return &UnavailableError{
		baseError: baseError{
			message:    ErrUnavailable.Error(),
			cause:      cause,
			severity:   SeverityError,
			userFacing: true,
		},
		Attempts:   attempts,
		RetryAfter: retryAfter,
	}
}

// Error returns the formatted error message.
func (e *UnavailableError) Error() string {
	base := fmt.Sprintf("%s after %d attempts (retry after %s)", e.message, e.Attempts, e.RetryAfter)
	if e.cause != nil {
		return fmt.Sprintf("%s: %v", base, e.cause)
	}
	return base
}

// Is checks if this error matches the target.
func (e *UnavailableError) Is(target error) bool {
	if _, ok := target.(*UnavailableError); ok {
		return true
	}
	if target == ErrUnavailable {
		return true
	}
	return e.baseError.Is(target)
}

// -----------------------------------------------------------------------------
// Error Classification Helpers
// -----------------------------------------------------------------------------

// Class is the coarse category a transport layer maps to its own status codes.
type Class string

const (
	ClassNone        Class = ""
	ClassValidation  Class = "validation"
	ClassNotFound    Class = "not_found"
	ClassCapacity    Class = "capacity"
	ClassConflict    Class = "conflict"
	ClassUnavailable Class = "unavailable"
	ClassInternal    Class = "internal"
)

// Classify returns the category of err. A StoreError that escaped the retry
// layer is reported as unavailable, never as internal.
func Classify(err error) Class {
	if err == nil {
		return ClassNone
	}

	var unavailable *UnavailableError
	var validation *ValidationError
	var notFound *NotFoundError
	var capacity *CapacityError
	var game *GameError
	var store *StoreError

	switch {
	case As(err, &unavailable):
		return ClassUnavailable
	case As(err, &validation):
		return ClassValidation
	case As(err, &notFound):
		return ClassNotFound
	case As(err, &capacity):
		return ClassCapacity
	case As(err, &game):
		return ClassConflict
	case As(err, &store):
		return ClassUnavailable
	default:
		return ClassInternal
	}
}

// IsRetryable returns true if the error represents a transient condition
// that may succeed on retry.
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}

	var gsErr GiftswapError
	if As(err, &gsErr) {
		return gsErr.IsRetryable()
	}

	return false
}

// IsUserFacing returns true if the error message is safe to display to end users.
func IsUserFacing(err error) bool {
	if err == nil {
		return false
	}

	var gsErr GiftswapError
	if As(err, &gsErr) {
		return gsErr.IsUserFacing()
	}

	return false
}

// GetSeverity returns the severity level of the error.
// Returns SeverityError for errors that don't implement GiftswapError.
func GetSeverity(err error) Severity {
	if err == nil {
		return SeverityDebug
	}

	var gsErr GiftswapError
	if As(err, &gsErr) {
		return gsErr.Severity()
	}

	return SeverityError
}

// -----------------------------------------------------------------------------
// Convenience Constructors
// -----------------------------------------------------------------------------

// Wrap wraps an error with additional context message.
// Unlike fmt.Errorf with %w, this returns nil for a nil error.
func Wrap(err error, message string) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", message, err)
}

// Wrapf wraps an error with a formatted context message.
func Wrapf(err error, format string, args ...any) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", fmt.Sprintf(format, args...), err)
}
