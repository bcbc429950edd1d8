// Package tserrors defines the error taxonomy shared across tscore's
// storage engine. Kinds are distinguished by type, not by sentinel value, so
// callers use errors.As to branch on them.
package tserrors

import "fmt"

// ReadOnlyError is returned by any mutating entry point when the owning
// Connection is configured read-only.
type ReadOnlyError struct {
	Op string
}

func (e *ReadOnlyError) Error() string {
	return fmt.Sprintf("tscore: %s: connection is read-only", e.Op)
}

// UnknownMetricError is returned when an insert or delete references a
// metric absent from the registry.
type UnknownMetricError struct {
	Metric string
}

func (e *UnknownMetricError) Error() string {
	return fmt.Sprintf("tscore: unknown metric %q", e.Metric)
}

// DeleteForbiddenError is returned when a delete targets a metric whose
// definition disallows deletion.
type DeleteForbiddenError struct {
	Metric string
}

func (e *DeleteForbiddenError) Error() string {
	return fmt.Sprintf("tscore: delete forbidden for metric %q", e.Metric)
}

// ArgumentError is returned when a precondition is violated: an empty
// series, an out-of-bound range, a too-short key or metric, a bad batch
// size, an invalid aggregation parameter, and so on.
type ArgumentError struct {
	Msg string
}

func (e *ArgumentError) Error() string {
	return "tscore: argument error: " + e.Msg
}

func NewArgumentError(format string, args ...interface{}) *ArgumentError {
	return &ArgumentError{Msg: fmt.Sprintf(format, args...)}
}

// InvariantViolationError signals a broken container invariant (sort order,
// duplicate timestamp in append, length mismatch). It indicates a bug in the
// caller or in tscore itself, not bad user input.
type InvariantViolationError struct {
	Msg string
}

func (e *InvariantViolationError) Error() string {
	return "tscore: invariant violation: " + e.Msg
}

func NewInvariantViolation(format string, args ...interface{}) *InvariantViolationError {
	return &InvariantViolationError{Msg: fmt.Sprintf(format, args...)}
}

// CodecMismatchError is returned when a decoded cell's tag disagrees with
// the expected series variant.
type CodecMismatchError struct {
	Detail string
	Cause  error
}

func (e *CodecMismatchError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("tscore: codec mismatch: %s: %v", e.Detail, e.Cause)
	}
	return "tscore: codec mismatch: " + e.Detail
}

func (e *CodecMismatchError) Unwrap() error { return e.Cause }

// NewCodecMismatch wraps a lower-level codec error (e.g. cellcodec.MismatchError)
// as the storage engine's CodecMismatch taxonomy kind.
func NewCodecMismatch(detail string, cause error) *CodecMismatchError {
	return &CodecMismatchError{Detail: detail, Cause: cause}
}

// BackendError wraps a non-success response from the backend, carrying its
// upstream code and message.
type BackendError struct {
	Op      string
	Code    int
	Message string
	Cause   error
}

func (e *BackendError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("tscore: backend error during %s (code %d): %s: %v", e.Op, e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("tscore: backend error during %s (code %d): %s", e.Op, e.Code, e.Message)
}

func (e *BackendError) Unwrap() error { return e.Cause }

// CancelledError wraps a caller-initiated cancellation or deadline expiry.
type CancelledError struct {
	Cause error
}

func (e *CancelledError) Error() string {
	return fmt.Sprintf("tscore: cancelled: %v", e.Cause)
}

func (e *CancelledError) Unwrap() error { return e.Cause }

// NotFoundError is used by single-row reads that expect the row to exist.
type NotFoundError struct {
	RowKey string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("tscore: row not found: %s", e.RowKey)
}
