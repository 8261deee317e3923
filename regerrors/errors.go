// Package regerrors lists the invariant violations of the register cache.
//
// Every entry is a programmer error: once one of them fires, code generated
// earlier in the block can no longer be trusted. The cache raises them with
// Assert, which panics with an *AssertionError wrapping the sentinel below.
package regerrors

import (
	"errors"
	"fmt"
	"strings"
)

// Realize / constraint errors
var (
	ErrIncompatibleRealize = errors.New("R1|IncompatibleRealize: A guest register was requested with a stricter constraint than the one it was already realized with.")
	ErrUnrealizedAccess    = errors.New("R6|UnrealizedAccess: A concrete location was read from a handle before Realize.")
	ErrLoadDiscarded       = errors.New("R7|LoadDiscarded: A discarded guest register was read.")
)

// Lock errors
var (
	ErrDoubleUnlock     = errors.New("R2|DoubleUnlock: A lock count was decremented below zero.")
	ErrOutstandingLocks = errors.New("R5|OutstandingLocks: A structural operation ran while a lock or constraint was still held.")
	ErrHandleReleased   = errors.New("R11|HandleReleased: A handle was used after its lock was released or moved.")
)

// Transaction errors
var (
	ErrNotRevertable         = errors.New("R3|NotRevertable: Revert or Commit on a register that is not in a transaction.")
	ErrTransactionInProgress = errors.New("R9|TransactionInProgress: A revertable register was stored, flushed or discarded before Commit or Revert.")
)

// Allocation and state errors
var (
	ErrOutOfHostRegisters  = errors.New("R4|OutOfHostRegisters: Every allocatable host register is locked.")
	ErrInvalidRegister     = errors.New("R8|InvalidRegister: Guest or host register index out of range.")
	ErrInconsistentBinding = errors.New("R10|InconsistentBinding: Guest and host slot bindings disagree.")
	ErrNotStarted          = errors.New("R12|NotStarted: The cache was used before Start.")
	ErrFlushDiscarded      = errors.New("R13|FlushDiscarded: A discarded guest register was flushed.")
)

// AssertionError is the panic value of a failed cache assertion.
type AssertionError struct {
	Err    error
	Detail string
}

func (e *AssertionError) Error() string {
	if e.Detail == "" {
		return e.Err.Error()
	}
	return e.Err.Error() + " (" + e.Detail + ")"
}

func (e *AssertionError) Unwrap() error { return e.Err }

// Assert panics with an *AssertionError wrapping sentinel when cond is false.
func Assert(cond bool, sentinel error, format string, args ...interface{}) {
	if cond {
		return
	}
	panic(&AssertionError{Err: sentinel, Detail: fmt.Sprintf(format, args...)})
}

// Fail panics unconditionally.
func Fail(sentinel error, format string, args ...interface{}) {
	panic(&AssertionError{Err: sentinel, Detail: fmt.Sprintf(format, args...)})
}

// Recover turns an assertion panic into an error stored in *errp. Other
// panics are re-raised. Use it as a deferred call at API boundaries:
//
//	defer regerrors.Recover(&err)
func Recover(errp *error) {
	r := recover()
	if r == nil {
		return
	}
	if ae, ok := r.(*AssertionError); ok {
		*errp = ae
		return
	}
	panic(r)
}

func sentinelOf(err error) error {
	var ae *AssertionError
	if errors.As(err, &ae) {
		return ae.Err
	}
	return err
}

// GetErrorName extracts the error name from the error message.
func GetErrorName(err error) string {
	if err == nil {
		return "No Error"
	}
	errStr := sentinelOf(err).Error()
	if !strings.Contains(errStr, "|") || !strings.Contains(errStr, ":") {
		return errStr
	}
	parts := strings.SplitN(errStr, "|", 2)
	nameParts := strings.SplitN(parts[1], ":", 2)
	return strings.TrimSpace(nameParts[0])
}

func GetErrorNames(errs []error) []string {
	errStrs := make([]string, len(errs))
	for i, err := range errs {
		errStrs[i] = GetErrorName(err)
	}
	return errStrs
}

// GetErrorCode extracts the error code from the error message.
func GetErrorCode(err error) string {
	if err == nil {
		return ""
	}
	errStr := sentinelOf(err).Error()
	if !strings.Contains(errStr, "|") {
		return ""
	}
	parts := strings.SplitN(errStr, "|", 2)
	return strings.TrimSpace(parts[0])
}

// GetErrorCodeWithName returns the error code and name in the format "Code_ErrorName".
func GetErrorCodeWithName(err error) string {
	code := GetErrorCode(err)
	name := GetErrorName(err)
	if code == "" || name == "" {
		return ""
	}
	return code + "_" + name
}

// GetErrorDesc extracts the error description from the error message.
func GetErrorDesc(err error) string {
	if err == nil {
		return ""
	}
	parts := strings.SplitN(sentinelOf(err).Error(), ":", 2)
	if len(parts) < 2 {
		return "DESC NOT SET"
	}
	return strings.TrimSpace(parts[1])
}
