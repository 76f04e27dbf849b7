// Package lifecycle tracks whether a component has been initialized or
// petrified. The state lives in the storage of the frame being executed,
// so a proxy and the base it delegates to each have their own.
package lifecycle

import (
	"math"

	"github.com/ppiankov/chainkernel/internal/ledger"
)

const initBlockKey = "lifecycle.initializationBlock"

// PetrifiedBlock is the initialization block of a petrified component.
// It is never reached, so the component can never run as initialized.
const PetrifiedBlock uint64 = math.MaxUint64

var (
	ErrAlreadyInitialized = ledger.NewRevert("INIT_ALREADY_INITIALIZED")
	ErrNotInitialized     = ledger.NewRevert("INIT_NOT_INITIALIZED")
)

// InitializationBlock returns the recorded block, 0 if never initialized.
func InitializationBlock(f *ledger.Frame) uint64 {
	return ledger.Load[uint64](f.Storage(), initBlockKey)
}

// HasInitialized reports whether Initialize ran and its block was reached.
func HasInitialized(f *ledger.Frame) bool {
	b := InitializationBlock(f)
	return b != 0 && f.Block() >= b
}

// IsPetrified reports whether the component was permanently frozen.
func IsPetrified(f *ledger.Frame) bool {
	return InitializationBlock(f) == PetrifiedBlock
}

// Initialize marks the component initialized at the current block.
func Initialize(f *ledger.Frame) error {
	if InitializationBlock(f) != 0 {
		return ledger.Revertf(ErrAlreadyInitialized.Reason, "at %s", f.Self().Short())
	}
	f.Storage().Set(initBlockKey, f.Block())
	return nil
}

// Petrify freezes an uninitialized component forever.
func Petrify(f *ledger.Frame) error {
	if InitializationBlock(f) != 0 {
		return ledger.Revertf(ErrAlreadyInitialized.Reason, "cannot petrify %s", f.Self().Short())
	}
	f.Storage().Set(initBlockKey, PetrifiedBlock)
	return nil
}

// RequireInitialized fails unless HasInitialized.
func RequireInitialized(f *ledger.Frame) error {
	if !HasInitialized(f) {
		return ledger.Revertf(ErrNotInitialized.Reason, "at %s", f.Self().Short())
	}
	return nil
}
