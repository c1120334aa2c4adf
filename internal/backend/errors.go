package backend

import (
	"errors"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"
)

// ErrStreamConsumed is yielded when a chat fragment sequence is ranged over
// more than once.
var ErrStreamConsumed = errors.New("chat stream already consumed")

// unavailableError signals that a backend's availability probe failed.
type unavailableError struct {
	id     Identity
	reason string
}

func (e unavailableError) Error() string {
	return "backend unavailable: " + string(e.id) + ": " + e.reason
}

func ErrUnavailable(id Identity, reason string) error {
	return unavailableError{id: id, reason: reason}
}

// IsUnavailable reports whether err indicates a failed availability probe.
func IsUnavailable(err error) bool {
	var e unavailableError
	return errors.As(err, &e)
}

// initializationError wraps the cause of a failed Initialize.
type initializationError struct {
	id  Identity
	err error
}

func (e initializationError) Error() string {
	return "initialize " + string(e.id) + ": " + e.err.Error()
}

func (e initializationError) Unwrap() error { return e.err }

func ErrInitialization(id Identity, cause error) error {
	if cause == nil {
		cause = errors.New("unknown cause")
	}
	return initializationError{id: id, err: cause}
}

func IsInitialization(err error) bool {
	var e initializationError
	return errors.As(err, &e)
}

type unsupportedCapabilityError struct {
	id  Identity
	cap Capability
}

func (e unsupportedCapabilityError) Error() string {
	return fmt.Sprintf("backend %s does not support %s", e.id, e.cap)
}

func ErrUnsupportedCapability(id Identity, c Capability) error {
	return unsupportedCapabilityError{id: id, cap: c}
}

// IsUnsupportedCapability reports whether err is a capability rejection.
func IsUnsupportedCapability(err error) bool {
	var e unsupportedCapabilityError
	return errors.As(err, &e)
}

// requestTimeoutError is returned when a single request got no reply in time.
type requestTimeoutError struct {
	id      Identity
	command string
	after   time.Duration
}

func (e requestTimeoutError) Error() string {
	return fmt.Sprintf("%s: %s request timed out after %s", e.id, e.command, e.after)
}

func ErrRequestTimeout(id Identity, command string, after time.Duration) error {
	return requestTimeoutError{id: id, command: command, after: after}
}

func IsRequestTimeout(err error) bool {
	var e requestTimeoutError
	return errors.As(err, &e)
}

type startupTimeoutError struct {
	id    Identity
	after time.Duration
}

func (e startupTimeoutError) Error() string {
	return fmt.Sprintf("%s: not ready after %s", e.id, e.after)
}

func ErrStartupTimeout(id Identity, after time.Duration) error {
	return startupTimeoutError{id: id, after: after}
}

func IsStartupTimeout(err error) bool {
	var e startupTimeoutError
	return errors.As(err, &e)
}

// noBackendAvailableError lists every identity selection attempted.
type noBackendAvailableError struct{ tried []Identity }

func (e noBackendAvailableError) Error() string {
	names := make([]string, len(e.tried))
	for i, id := range e.tried {
		names[i] = string(id)
	}
	return "no backend available (tried: " + strings.Join(names, ", ") + ")"
}

func ErrNoBackendAvailable(tried []Identity) error {
	return noBackendAvailableError{tried: append([]Identity(nil), tried...)}
}

func IsNoBackendAvailable(err error) bool {
	var e noBackendAvailableError
	return errors.As(err, &e)
}

// notInitializedError is returned when nothing is ready to serve a call. An
// empty identity means the dispatcher itself has no active backend.
type notInitializedError struct{ id Identity }

func (e notInitializedError) Error() string {
	if e.id == "" {
		return "no active backend"
	}
	return "backend not initialized: " + string(e.id)
}

func ErrNotInitialized(id Identity) error { return notInitializedError{id: id} }

func IsNotInitialized(err error) bool {
	var e notInitializedError
	return errors.As(err, &e)
}

// BatchError reports the inputs of a batch embedding that failed. Vectors for
// the other inputs are still returned alongside it.
type BatchError struct {
	Total  int
	Failed map[int]error
}

// Indexes returns the failed input positions in ascending order.
func (e *BatchError) Indexes() []int {
	idx := make([]int, 0, len(e.Failed))
	for i := range e.Failed {
		idx = append(idx, i)
	}
	sort.Ints(idx)
	return idx
}

func (e *BatchError) Error() string {
	idx := e.Indexes()
	parts := make([]string, len(idx))
	for i, n := range idx {
		parts[i] = strconv.Itoa(n)
	}
	msg := fmt.Sprintf("%d of %d embeddings failed (indexes %s)", len(idx), e.Total, strings.Join(parts, ","))
	if len(idx) > 0 {
		msg += ": " + e.Failed[idx[0]].Error()
	}
	return msg
}

func (e *BatchError) Unwrap() []error {
	errs := make([]error, 0, len(e.Failed))
	for _, i := range e.Indexes() {
		errs = append(errs, e.Failed[i])
	}
	return errs
}

// AsBatchError returns the BatchError inside err, if any.
func AsBatchError(err error) (*BatchError, bool) {
	var be *BatchError
	ok := errors.As(err, &be)
	return be, ok
}
