// Package apperrors provides structured application errors with HTTP status mapping.
package apperrors

import (
	"errors"
	"fmt"
)

// Sentinel errors for classification via errors.Is().
var (
	ErrValidation       = errors.New("validation error")
	ErrInvalidRange     = errors.New("invalid port range")
	ErrNoPortAvailable  = errors.New("no port available")
	ErrSpawnFailed      = errors.New("spawn failed")
	ErrLoginFailed      = errors.New("login failed")
	ErrConfigUnreadable = errors.New("config unreadable")
	ErrNotFound         = errors.New("not found")
	ErrAmbiguousMatch   = errors.New("ambiguous match")
	ErrQueryFailed      = errors.New("query failed")
	ErrTerminateFailed  = errors.New("terminate failed")
	ErrIOFailure        = errors.New("io failure")

	// Call-level failures of the provision and deprovision workflows.
	ErrProvisioningFailed   = errors.New("provisioning failed")
	ErrDeprovisioningFailed = errors.New("deprovisioning failed")
)

// Error provides structured error with context.
type Error struct {
	Sentinel   error  // Wrapped sentinel for errors.Is() classification
	Message    string // Human-readable message
	Field      string // For validation errors (e.g., "instanceId", "memory")
	Resource   string // For not found / ambiguous match (e.g., "job")
	Op         string // Operation that failed (e.g., "yarn.listApplications")
	InstanceID string // Instance the call-level failure belongs to
	Cause      error  // Underlying error
}

// Error returns the human-readable error message.
func (e *Error) Error() string {
	return e.Message
}

// Unwrap exposes both the sentinel and the cause, so errors.Is sees the
// step-level kind through a call-level wrapper.
func (e *Error) Unwrap() []error {
	if e.Cause == nil {
		return []error{e.Sentinel}
	}
	return []error{e.Sentinel, e.Cause}
}

// Validation creates a validation error for a specific field.
func Validation(field, message string) error {
	return &Error{
		Sentinel: ErrValidation,
		Message:  message,
		Field:    field,
	}
}

// InvalidRange reports a port range that cannot back an allocator.
func InvalidRange(lower, upper int) error {
	return &Error{
		Sentinel: ErrInvalidRange,
		Message:  fmt.Sprintf("invalid port range [%d, %d]: bounds must be in (0, 65535] and upper > lower", lower, upper),
		Field:    "portRange",
	}
}

// NoPortAvailable reports that every port in the pool failed the liveness check.
func NoPortAvailable() error {
	return &Error{
		Sentinel: ErrNoPortAvailable,
		Message:  "no port in the pool is available",
	}
}

// SpawnFailed reports a process that could not be started or exited badly.
func SpawnFailed(op string, cause error) error {
	return wrap(ErrSpawnFailed, op, cause)
}

// LoginFailed reports a failed ticket login.
func LoginFailed(op string, cause error) error {
	return wrap(ErrLoginFailed, op, cause)
}

// ConfigUnreadable reports a configuration file that could not be read or rewritten.
func ConfigUnreadable(op string, cause error) error {
	return wrap(ErrConfigUnreadable, op, cause)
}

// NotFound creates a not found error for a resource.
func NotFound(resource, id string) error {
	return &Error{
		Sentinel: ErrNotFound,
		Message:  fmt.Sprintf("%s %s not found", resource, id),
		Resource: resource,
	}
}

// AmbiguousMatch reports more than one live resource under the same name.
func AmbiguousMatch(resource, name string, count int) error {
	return &Error{
		Sentinel: ErrAmbiguousMatch,
		Message:  fmt.Sprintf("found %d %ss with name %s", count, resource, name),
		Resource: resource,
	}
}

// QueryFailed wraps a resource manager query failure.
func QueryFailed(op string, cause error) error {
	return wrap(ErrQueryFailed, op, cause)
}

// TerminateFailed wraps a resource manager kill failure.
func TerminateFailed(op string, cause error) error {
	return wrap(ErrTerminateFailed, op, cause)
}

// IOFailure wraps a file system failure.
func IOFailure(op string, cause error) error {
	return wrap(ErrIOFailure, op, cause)
}

// ProvisioningFailed wraps any step-level error of a provisioning call.
func ProvisioningFailed(instanceID string, cause error) error {
	return &Error{
		Sentinel:   ErrProvisioningFailed,
		Message:    fmt.Sprintf("unable to provision instance %s: %v", instanceID, cause),
		InstanceID: instanceID,
		Cause:      cause,
	}
}

// DeprovisioningFailed wraps any step-level error of a deprovisioning call
// except NotFound, which callers receive unwrapped.
func DeprovisioningFailed(instanceID string, cause error) error {
	return &Error{
		Sentinel:   ErrDeprovisioningFailed,
		Message:    fmt.Sprintf("unable to deprovision instance %s: %v", instanceID, cause),
		InstanceID: instanceID,
		Cause:      cause,
	}
}

func wrap(sentinel error, op string, cause error) error {
	return &Error{
		Sentinel: sentinel,
		Message:  fmt.Sprintf("%s: %v", op, cause),
		Op:       op,
		Cause:    cause,
	}
}

// kinds lists step-level sentinels in the order Kind checks them.
var kinds = []struct {
	sentinel error
	name     string
}{
	{ErrValidation, "validation"},
	{ErrInvalidRange, "invalid_range"},
	{ErrNoPortAvailable, "no_port_available"},
	{ErrSpawnFailed, "spawn_failed"},
	{ErrLoginFailed, "login_failed"},
	{ErrConfigUnreadable, "config_unreadable"},
	{ErrNotFound, "not_found"},
	{ErrAmbiguousMatch, "ambiguous_match"},
	{ErrQueryFailed, "query_failed"},
	{ErrTerminateFailed, "terminate_failed"},
	{ErrIOFailure, "io_failure"},
}

// Kind returns a short label for the step-level kind of err, looking through
// call-level wrappers. It is "none" for nil and "unknown" otherwise.
func Kind(err error) string {
	if err == nil {
		return "none"
	}
	for _, k := range kinds {
		if errors.Is(err, k.sentinel) {
			return k.name
		}
	}
	return "unknown"
}
