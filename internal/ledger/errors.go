package ledger

import (
	"errors"
	"fmt"
)

// RevertError aborts the current call and undoes every state change made
// by it and by the calls it made. Reason is a stable upper-snake code that
// callers and tests assert on.
type RevertError struct {
	Reason string
	Detail string
}

func (e *RevertError) Error() string {
	if e.Detail != "" {
		return e.Reason + ": " + e.Detail
	}
	return e.Reason
}

// Is matches any RevertError carrying the same reason, so sentinels work
// with errors.Is regardless of detail.
func (e *RevertError) Is(target error) bool {
	t, ok := target.(*RevertError)
	return ok && t.Reason == e.Reason
}

// NewRevert returns a sentinel revert for reason.
func NewRevert(reason string) *RevertError {
	return &RevertError{Reason: reason}
}

// Revertf returns a revert with a formatted detail.
func Revertf(reason, format string, args ...any) *RevertError {
	return &RevertError{Reason: reason, Detail: fmt.Sprintf(format, args...)}
}

// Reason extracts the revert reason from err, or "" if err is not a revert.
func Reason(err error) string {
	var re *RevertError
	if errors.As(err, &re) {
		return re.Reason
	}
	return ""
}

// Ledger-level revert reasons.
var (
	ErrNoCode              = NewRevert("LEDGER_NO_CODE")
	ErrUnknownMethod       = NewRevert("LEDGER_UNKNOWN_METHOD")
	ErrNotPayable          = NewRevert("LEDGER_NOT_PAYABLE")
	ErrStaticViolation     = NewRevert("LEDGER_STATIC_VIOLATION")
	ErrInsufficientBalance = NewRevert("LEDGER_INSUFFICIENT_BALANCE")
	ErrCallDepth           = NewRevert("LEDGER_CALL_DEPTH_EXCEEDED")
	ErrBadArgs             = NewRevert("LEDGER_BAD_ARGS")
	ErrBadReturn           = NewRevert("LEDGER_BAD_RETURN")
	ErrReentrant           = NewRevert("REENTRANCY_REENTRANT_CALL")
	ErrAddressCollision    = NewRevert("LEDGER_ADDRESS_COLLISION")
	ErrAborted             = NewRevert("LEDGER_ABORTED")
)
