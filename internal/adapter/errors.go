package adapter

import (
	"errors"
	"fmt"
	"strings"

	"github.com/HsiangNianian/aieda-bridge/internal/protocol"
)

var (
	ErrRuntimeUnavailable    = errors.New("host runtime unavailable")
	ErrOperationUnsupported  = errors.New("operation unsupported by host")
	ErrNotFound              = errors.New("primitive not found")
	ErrCreateComponentFailed = errors.New("create component failed")
	ErrInvalidInput          = errors.New("invalid input")
)

// InputError names the operation field that failed validation.
type InputError struct {
	Field  string
	Reason string
}

func (e *InputError) Error() string {
	return fmt.Sprintf("invalid input: %s %s", e.Field, e.Reason)
}

func (e *InputError) Unwrap() error { return ErrInvalidInput }

func (e *InputError) Details() map[string]any {
	return map[string]any{"field": e.Field}
}

func missing(field string) error {
	return &InputError{Field: field, Reason: "is required"}
}

// CapabilityError reports host methods missing for a read or a write.
type CapabilityError struct {
	Operation string
	Missing   []string
	Write     bool
}

func (e *CapabilityError) Error() string {
	if e.Write {
		return fmt.Sprintf("operation %s unsupported: missing %s", e.Operation, strings.Join(e.Missing, ", "))
	}
	if len(e.Missing) == 0 {
		return fmt.Sprintf("%s: host runtime unavailable", e.Operation)
	}
	return fmt.Sprintf("%s: host runtime unavailable, missing %s", e.Operation, strings.Join(e.Missing, ", "))
}

func (e *CapabilityError) Unwrap() error {
	if e.Write {
		return ErrOperationUnsupported
	}
	return ErrRuntimeUnavailable
}

func (e *CapabilityError) Details() map[string]any {
	return map[string]any{"operation": e.Operation, "missing": e.Missing, "write": e.Write}
}

// HostCallError wraps a failure thrown by the host during a valid call.
type HostCallError struct {
	Method string
	Err    error
}

func (e *HostCallError) Error() string {
	return fmt.Sprintf("host call %s failed: %v", e.Method, e.Err)
}

func (e *HostCallError) Unwrap() error { return e.Err }

func (e *HostCallError) Details() map[string]any {
	return map[string]any{"method": e.Method}
}

// CreateComponentError carries the failure of every attempted call shape.
type CreateComponentError struct {
	Attempts []string
}

func (e *CreateComponentError) Error() string {
	return fmt.Sprintf("create component failed after %d call shapes: %s", len(e.Attempts), strings.Join(e.Attempts, "; "))
}

func (e *CreateComponentError) Unwrap() error { return ErrCreateComponentFailed }

func (e *CreateComponentError) Details() map[string]any {
	return map[string]any{"attempts": e.Attempts}
}

func notFound(kind protocol.OpKind, id string) error {
	return fmt.Errorf("%s %s: %w", kind, id, ErrNotFound)
}
