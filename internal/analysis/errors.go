package analysis

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
)

// FailureKind categorizes why an upload-and-analyze call did not produce a
// result.
type FailureKind string

const (
	FailureNetwork        FailureKind = "network"
	FailureServerError    FailureKind = "server_error"
	FailureTimeout        FailureKind = "timeout"
	FailureContentInvalid FailureKind = "content_invalid"
	FailureUnauthorized   FailureKind = "unauthorized"
)

// Failure is a typed analysis error. StatusCode is set for server-originated
// failures and zero otherwise.
type Failure struct {
	Kind       FailureKind
	StatusCode int
	Message    string
	Err        error
}

func (f *Failure) Error() string {
	switch {
	case f.StatusCode != 0 && f.Message != "":
		return fmt.Sprintf("analysis %s (HTTP %d): %s", f.Kind, f.StatusCode, f.Message)
	case f.StatusCode != 0:
		return fmt.Sprintf("analysis %s (HTTP %d)", f.Kind, f.StatusCode)
	case f.Message != "":
		return fmt.Sprintf("analysis %s: %s", f.Kind, f.Message)
	case f.Err != nil:
		return fmt.Sprintf("analysis %s: %v", f.Kind, f.Err)
	default:
		return fmt.Sprintf("analysis %s", f.Kind)
	}
}

func (f *Failure) Unwrap() error {
	return f.Err
}

// AsFailure extracts a typed Failure from an error chain.
func AsFailure(err error) (*Failure, bool) {
	var failure *Failure
	if errors.As(err, &failure) {
		return failure, true
	}
	return nil, false
}

// Retriable reports whether the failure stems from transport conditions that
// a connectivity change could resolve. Callers combine this with an observed
// disconnect to decide between rollback and a sticky failure.
func Retriable(err error) bool {
	failure, ok := AsFailure(err)
	if !ok {
		return false
	}
	return failure.Kind == FailureNetwork || failure.Kind == FailureTimeout
}

// classifyTransport maps a client-side request error to a failure kind.
// Context cancellation is intentionally not a Failure; callers treat it as
// rollback, not an error.
func classifyTransport(err error) *Failure {
	if errors.Is(err, context.DeadlineExceeded) {
		return &Failure{Kind: FailureTimeout, Err: err}
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return &Failure{Kind: FailureTimeout, Err: err}
	}
	return &Failure{Kind: FailureNetwork, Err: err}
}

// classifyStatus maps a server HTTP status to a failure kind.
func classifyStatus(code int, message string) *Failure {
	kind := FailureServerError
	switch {
	case code == http.StatusUnauthorized || code == http.StatusForbidden:
		kind = FailureUnauthorized
	case code == http.StatusBadRequest ||
		code == http.StatusUnsupportedMediaType ||
		code == http.StatusUnprocessableEntity ||
		code == http.StatusRequestEntityTooLarge:
		kind = FailureContentInvalid
	}
	return &Failure{Kind: kind, StatusCode: code, Message: message}
}
