// Package app holds the state and checks shared by every component
// installed in a kernel: its kernel reference, app id, designated owner,
// role checks against the kernel's ACL and kill-switch guards.
package app

import (
	"github.com/ppiankov/chainkernel/internal/ident"
	"github.com/ppiankov/chainkernel/internal/ledger"
	"github.com/ppiankov/chainkernel/internal/lifecycle"
)

const (
	kernelKey = "app.kernel"
	appIDKey  = "app.appId"
	ownerKey  = "app.owner"
)

var (
	ErrAuthFailed       = ledger.NewRevert("APP_AUTH_FAILED")
	ErrKillSwitchDenied = ledger.NewRevert("APP_KILL_SWITCH_DENIED")
)

// Kernel returns the kernel this component is bound to.
func Kernel(f *ledger.Frame) ident.Address {
	return ledger.Load[ident.Address](f.Storage(), kernelKey)
}

// SetKernel binds the component to kernel.
func SetKernel(f *ledger.Frame, kernel ident.Address) {
	f.Storage().Set(kernelKey, kernel)
}

// AppID returns the id the component was installed under.
func AppID(f *ledger.Frame) ident.ID {
	return ledger.Load[ident.ID](f.Storage(), appIDKey)
}

// SetAppID records the id the component was installed under.
func SetAppID(f *ledger.Frame, id ident.ID) {
	f.Storage().Set(appIDKey, id)
}

// Owner returns the designated owner, exempt from owner-escapable
// kill-switch checks. Zero when none was set.
func Owner(f *ledger.Frame) ident.Address {
	return ledger.Load[ident.Address](f.Storage(), ownerKey)
}

// SetOwner records the designated owner.
func SetOwner(f *ledger.Frame, owner ident.Address) {
	f.Storage().Set(ownerKey, owner)
}

// CanPerform asks the kernel whether who holds role on this component.
// Uninitialized or unbound components deny everything.
func CanPerform(f *ledger.Frame, who ident.Address, role ident.ID) bool {
	if !lifecycle.HasInitialized(f) {
		return false
	}
	k := Kernel(f)
	if k.IsZero() {
		return false
	}
	ok, err := ledger.First[bool](f.StaticCall(k, "hasPermission", who, f.Self(), role))
	return err == nil && ok
}

// Auth fails unless the sender holds role on this component.
func Auth(f *ledger.Frame, role ident.ID) error {
	if CanPerform(f, f.Sender(), role) {
		return nil
	}
	return ledger.Revertf(ErrAuthFailed.Reason, "%s lacks %s on %s", f.Sender().Short(), role.Short(), f.Self().Short())
}

func checkKillSwitch(f *ledger.Frame) error {
	k := Kernel(f)
	if k.IsZero() {
		return nil
	}
	deny, err := ledger.First[bool](f.StaticCall(k, "shouldDenyCallingContract", f.Code()))
	if err != nil {
		return err
	}
	if deny {
		return ledger.Revertf(ErrKillSwitchDenied.Reason, "%s is blocked", f.Code().Short())
	}
	return nil
}

// Protected runs h only if the kernel's kill switch allows this code.
func Protected(h ledger.Handler) ledger.Handler {
	return func(f *ledger.Frame, args ledger.Args) ([]any, error) {
		if err := checkKillSwitch(f); err != nil {
			return nil, err
		}
		return h(f, args)
	}
}

// ProtectedUnlessOwner is Protected, except the designated owner always
// gets through.
func ProtectedUnlessOwner(h ledger.Handler) ledger.Handler {
	return func(f *ledger.Frame, args ledger.Args) ([]any, error) {
		if owner := Owner(f); owner.IsZero() || f.Sender() != owner {
			if err := checkKillSwitch(f); err != nil {
				return nil, err
			}
		}
		return h(f, args)
	}
}
