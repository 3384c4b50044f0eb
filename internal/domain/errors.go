package domain

import (
	"errors"
	"fmt"
)

// RetriableError defines an interface for errors that can be retried
type RetriableError interface {
	error
	IsRetriable() bool
}

// IsRetriable checks if an error is retriable
func IsRetriable(err error) bool {
	var re RetriableError
	if errors.As(err, &re) {
		return re.IsRetriable()
	}
	return false
}

// NetworkError represents a feed or poller failure that may be retriable
type NetworkError struct {
	Op        string // Operation that failed (e.g., "dial", "read", "poll")
	Err       error  // Underlying error
	Retriable bool   // Whether this error is retriable
}

func (e *NetworkError) Error() string {
	return e.Op + ": " + e.Err.Error()
}

func (e *NetworkError) IsRetriable() bool {
	return e.Retriable
}

func (e *NetworkError) Unwrap() error {
	return e.Err
}

// NewNetworkError creates a new retriable network error
func NewNetworkError(op string, err error) *NetworkError {
	return &NetworkError{Op: op, Err: err, Retriable: true}
}

// NewFatalNetworkError creates a non-retriable network error
func NewFatalNetworkError(op string, err error) *NetworkError {
	return &NetworkError{Op: op, Err: err, Retriable: false}
}

// ConfigError represents a configuration error (never retriable)
type ConfigError struct {
	Field string
	Err   error
}

func (e *ConfigError) Error() string {
	return "config error [" + e.Field + "]: " + e.Err.Error()
}

func (e *ConfigError) IsRetriable() bool {
	return false
}

func (e *ConfigError) Unwrap() error {
	return e.Err
}

// ParamError reports which pricing input was rejected. It always wraps ErrInvalidParameter.
type ParamError struct {
	Field string
	Value any
	Err   error
}

func (e *ParamError) Error() string {
	return fmt.Sprintf("%s: %s=%v", e.Err.Error(), e.Field, e.Value)
}

func (e *ParamError) IsRetriable() bool {
	return false
}

func (e *ParamError) Unwrap() error {
	return e.Err
}

// InvalidParam builds a ParamError for field.
func InvalidParam(field string, value any) error {
	return &ParamError{Field: field, Value: value, Err: ErrInvalidParameter}
}

var (
	// ErrInvalidOptionKind is returned when the kind is neither Call nor Put.
	ErrInvalidOptionKind = errors.New("invalid option kind")

	// ErrInvalidParameter is returned for non-positive T, sigma, steps, simulations,
	// or any input that would make a pricer produce a non-finite result.
	ErrInvalidParameter = errors.New("invalid parameter")

	// ErrUnsupportedModel is returned when a model/family combination has no pricer.
	ErrUnsupportedModel = errors.New("unsupported pricing model")

	// ErrConnectionFailed is returned when the spot feed connection fails. It's usually retriable.
	ErrConnectionFailed = errors.New("connection failed")

	// ErrConfigNotFound is returned when configuration file is missing
	ErrConfigNotFound = errors.New("configuration not found")
)
