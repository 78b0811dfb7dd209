package simplestorage

import (
	"errors"
	"fmt"
	"net/http"
)

// Error types
var (
	// ErrConfiguration indicates the service or adapter is missing required setup
	ErrConfiguration = errors.New("storage not configured")

	// ErrNotFound indicates the object does not exist
	ErrNotFound = errors.New("object not found")

	// ErrAccessDenied indicates the backend rejected the credentials for the operation
	ErrAccessDenied = errors.New("access denied")

	// ErrUnexpected indicates any other backend or I/O failure
	ErrUnexpected = errors.New("unexpected storage failure")
)

// Kind is the semantic category of a storage failure.
type Kind int

const (
	KindUnexpected Kind = iota
	KindConfiguration
	KindNotFound
	KindAccessDenied
)

func (k Kind) String() string {
	switch k {
	case KindConfiguration:
		return "configuration"
	case KindNotFound:
		return "not_found"
	case KindAccessDenied:
		return "access_denied"
	default:
		return "unexpected"
	}
}

func (k Kind) sentinel() error {
	switch k {
	case KindConfiguration:
		return ErrConfiguration
	case KindNotFound:
		return ErrNotFound
	case KindAccessDenied:
		return ErrAccessDenied
	default:
		return ErrUnexpected
	}
}

// MapStatus maps a provider status code onto a Kind. It is total: anything
// that is not a 404 or 403 is unexpected.
func MapStatus(status int) Kind {
	switch status {
	case http.StatusNotFound:
		return KindNotFound
	case http.StatusForbidden:
		return KindAccessDenied
	default:
		return KindUnexpected
	}
}

// StorageError represents a failed backend operation on a single key
type StorageError struct {
	Backend string
	Op      string
	Key     string
	Kind    Kind
	Err     error
}

func (e *StorageError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("storage operation %s failed for key %s on backend %s: %s", e.Op, e.Key, e.Backend, e.Kind.sentinel())
	}
	return fmt.Sprintf("storage operation %s failed for key %s on backend %s: %s: %v", e.Op, e.Key, e.Backend, e.Kind.sentinel(), e.Err)
}

func (e *StorageError) Unwrap() error {
	return e.Err
}

// Is reports the sentinel matching the error kind, so errors.Is works
// without callers knowing about StorageError.
func (e *StorageError) Is(target error) bool {
	return target == e.Kind.sentinel()
}

// ConfigError represents invalid or missing setup detected before any backend call
type ConfigError struct {
	Backend string
	Field   string
	Msg     string
	Err     error
}

func (e *ConfigError) Error() string {
	msg := e.Msg
	if e.Field != "" {
		msg = fmt.Sprintf("%s: %s", e.Field, e.Msg)
	}
	if e.Err != nil {
		return fmt.Sprintf("%s configuration invalid: %s: %v", e.Backend, msg, e.Err)
	}
	return fmt.Sprintf("%s configuration invalid: %s", e.Backend, msg)
}

func (e *ConfigError) Unwrap() error {
	return e.Err
}

func (e *ConfigError) Is(target error) bool {
	return target == ErrConfiguration
}

// Translate builds the semantic error for a provider status code.
func Translate(backend, op, key string, status int, cause error) error {
	return &StorageError{Backend: backend, Op: op, Key: key, Kind: MapStatus(status), Err: cause}
}

// NotFound wraps cause as a NotFound failure for key.
func NotFound(backend, op, key string, cause error) error {
	return &StorageError{Backend: backend, Op: op, Key: key, Kind: KindNotFound, Err: cause}
}

// AccessDenied wraps cause as an AccessDenied failure for key.
func AccessDenied(backend, op, key string, cause error) error {
	return &StorageError{Backend: backend, Op: op, Key: key, Kind: KindAccessDenied, Err: cause}
}

// Unexpected wraps cause as an Unexpected failure for key. Errors that are
// already classified pass through unchanged.
func Unexpected(backend, op, key string, cause error) error {
	var se *StorageError
	if errors.As(cause, &se) {
		return cause
	}
	var ce *ConfigError
	if errors.As(cause, &ce) {
		return cause
	}
	return &StorageError{Backend: backend, Op: op, Key: key, Kind: KindUnexpected, Err: cause}
}

// Misconfigured returns a Configuration error for backend.
func Misconfigured(backend, field, msg string) error {
	return &ConfigError{Backend: backend, Field: field, Msg: msg}
}

// KindOf classifies any error. Unclassified errors are unexpected.
func KindOf(err error) Kind {
	switch {
	case errors.Is(err, ErrConfiguration):
		return KindConfiguration
	case errors.Is(err, ErrNotFound):
		return KindNotFound
	case errors.Is(err, ErrAccessDenied):
		return KindAccessDenied
	default:
		return KindUnexpected
	}
}

func IsNotFound(err error) bool      { return errors.Is(err, ErrNotFound) }
func IsAccessDenied(err error) bool  { return errors.Is(err, ErrAccessDenied) }
func IsConfiguration(err error) bool { return errors.Is(err, ErrConfiguration) }
func IsUnexpected(err error) bool    { return err != nil && KindOf(err) == KindUnexpected }
