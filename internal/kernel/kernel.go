// Package kernel is the namespace registry at the center of a DAO. It
// maps (namespace, app id) pairs to component addresses, bootstraps the
// ACL, creates app proxies and routes permission and kill-switch queries.
package kernel

import (
	"github.com/ppiankov/chainkernel/internal/ident"
	"github.com/ppiankov/chainkernel/internal/ledger"
	"github.com/ppiankov/chainkernel/internal/lifecycle"
	"github.com/ppiankov/chainkernel/internal/proxy"
)

// AppManagerRole allows changing the app table and creating instances.
var AppManagerRole = ident.Keccak("APP_MANAGER_ROLE")

var (
	ErrAuthFailed       = ledger.NewRevert("KERNEL_AUTH_FAILED")
	ErrAppNotContract   = ledger.NewRevert("KERNEL_APP_NOT_CONTRACT")
	ErrInvalidAppChange = ledger.NewRevert("KERNEL_INVALID_APP_CHANGE")
)

// Event names.
const (
	EventSetApp      = "SetApp"
	EventNewAppProxy = "NewAppProxy"
)

const recoveryVaultAppIDKey = "kernel.recoveryVaultAppId"

// AppsKey is the storage key of the app table entry (ns, id).
func AppsKey(ns, id ident.ID) string {
	return ledger.Key("kernel.apps", ns, id)
}

// Kernel is the kernel code. Templates are deployed petrified and used
// behind a KernelProxy; an unpetrified kernel can run on its own.
type Kernel struct {
	Petrified bool
}

// Construct petrifies template kernels.
func (k Kernel) Construct(f *ledger.Frame, _ ledger.Args) error {
	if k.Petrified {
		return lifecycle.Petrify(f)
	}
	return nil
}

func (k Kernel) Methods() ledger.MethodTable {
	return ledger.MethodTable{
		"initialize":            {Handler: k.initialize},
		"setApp":                {Handler: k.setApp},
		"newAppInstance":        {Handler: k.newInstance(proxy.Upgradeable())},
		"newPinnedAppInstance":  {Handler: k.newInstance(proxy.Pinned())},
		"setRecoveryVaultAppId": {Handler: k.setRecoveryVaultAppID},
		"getApp":                {View: true, Handler: k.getApp},
		"acl": {View: true, Handler: func(f *ledger.Frame, _ ledger.Args) ([]any, error) {
			return []any{getApp(f, ident.AppAddrNamespace, ident.ACLAppID)}, nil
		}},
		"hasPermission": {View: true, Handler: k.hasPermission},
		"hasInitialized": {View: true, Handler: func(f *ledger.Frame, _ ledger.Args) ([]any, error) {
			return []any{lifecycle.HasInitialized(f)}, nil
		}},
		"isPetrified": {View: true, Handler: func(f *ledger.Frame, _ ledger.Args) ([]any, error) {
			return []any{lifecycle.IsPetrified(f)}, nil
		}},
		"getInitializationBlock": {View: true, Handler: func(f *ledger.Frame, _ ledger.Args) ([]any, error) {
			return []any{lifecycle.InitializationBlock(f)}, nil
		}},
		"getRecoveryVaultAppId": {View: true, Handler: func(f *ledger.Frame, _ ledger.Args) ([]any, error) {
			return []any{recoveryVaultAppID(f)}, nil
		}},
		"getRecoveryVault": {View: true, Handler: func(f *ledger.Frame, _ ledger.Args) ([]any, error) {
			return []any{getApp(f, ident.AppAddrNamespace, recoveryVaultAppID(f))}, nil
		}},
		"killSwitch": {View: true, Handler: func(f *ledger.Frame, _ ledger.Args) ([]any, error) {
			return []any{getApp(f, ident.AppAddrNamespace, ident.KillSwitchAppID)}, nil
		}},
		"shouldDenyCallingContract": {View: true, Handler: k.shouldDenyCallingContract},
		"APP_MANAGER_ROLE": {View: true, Handler: func(*ledger.Frame, ledger.Args) ([]any, error) {
			return []any{AppManagerRole}, nil
		}},
	}
}

// initialize registers the ACL base, creates the ACL instance for root
// and registers it. These are the only two app table writes.
func (Kernel) initialize(f *ledger.Frame, args ledger.Args) ([]any, error) {
	var baseACL, root ident.Address
	if err := args.Decode(&baseACL, &root); err != nil {
		return nil, err
	}
	if err := lifecycle.Initialize(f); err != nil {
		return nil, err
	}
	if err := setApp(f, ident.AppBasesNamespace, ident.ACLAppID, baseACL); err != nil {
		return nil, err
	}
	acl, err := newProxy(f, proxy.Upgradeable(), ident.ACLAppID, ledger.Invocation{})
	if err != nil {
		return nil, err
	}
	if _, err := f.Call(acl, 0, "initialize", root); err != nil {
		return nil, err
	}
	if err := setApp(f, ident.AppAddrNamespace, ident.ACLAppID, acl); err != nil {
		return nil, err
	}
	f.Storage().Set(recoveryVaultAppIDKey, ident.VaultAppID)
	return nil, nil
}

func (Kernel) setApp(f *ledger.Frame, args ledger.Args) ([]any, error) {
	var (
		ns, id ident.ID
		addr   ident.Address
	)
	if err := args.Decode(&ns, &id, &addr); err != nil {
		return nil, err
	}
	if err := auth(f, AppManagerRole); err != nil {
		return nil, err
	}
	return nil, setApp(f, ns, id, addr)
}

func (Kernel) getApp(f *ledger.Frame, args ledger.Args) ([]any, error) {
	var ns, id ident.ID
	if err := args.Decode(&ns, &id); err != nil {
		return nil, err
	}
	return []any{getApp(f, ns, id)}, nil
}

// newInstance handles newAppInstance and newPinnedAppInstance. Arguments:
// appId, base[, init, setDefault].
func (Kernel) newInstance(code proxy.AppProxy) ledger.Handler {
	return func(f *ledger.Frame, args ledger.Args) ([]any, error) {
		var (
			appID      ident.ID
			base       ident.Address
			init       ledger.Invocation
			setDefault bool
		)
		var err error
		if len(args) == 2 {
			err = args.Decode(&appID, &base)
		} else {
			err = args.Decode(&appID, &base, &init, &setDefault)
		}
		if err != nil {
			return nil, err
		}
		if err := auth(f, AppManagerRole); err != nil {
			return nil, err
		}
		if err := setAppIfNew(f, ident.AppBasesNamespace, appID, base); err != nil {
			return nil, err
		}
		addr, err := newProxy(f, code, appID, init)
		if err != nil {
			return nil, err
		}
		if setDefault {
			if err := setApp(f, ident.AppAddrNamespace, appID, addr); err != nil {
				return nil, err
			}
		}
		return []any{addr}, nil
	}
}

func (Kernel) setRecoveryVaultAppID(f *ledger.Frame, args ledger.Args) ([]any, error) {
	var id ident.ID
	if err := args.Decode(&id); err != nil {
		return nil, err
	}
	if err := auth(f, AppManagerRole); err != nil {
		return nil, err
	}
	f.Storage().Set(recoveryVaultAppIDKey, id)
	return nil, nil
}

func (Kernel) hasPermission(f *ledger.Frame, args ledger.Args) ([]any, error) {
	var who, where ident.Address
	var role ident.ID
	if err := args.Decode(&who, &where, &role); err != nil {
		return nil, err
	}
	return []any{hasPermission(f, who, where, role)}, nil
}

func (Kernel) shouldDenyCallingContract(f *ledger.Frame, args ledger.Args) ([]any, error) {
	var code ident.Address
	if err := args.Decode(&code); err != nil {
		return nil, err
	}
	ks := getApp(f, ident.AppAddrNamespace, ident.KillSwitchAppID)
	if ks.IsZero() {
		return []any{false}, nil
	}
	return f.StaticCall(ks, "shouldDenyCallingContract", code)
}

func getApp(f *ledger.Frame, ns, id ident.ID) ident.Address {
	return ledger.Load[ident.Address](f.Storage(), AppsKey(ns, id))
}

func recoveryVaultAppID(f *ledger.Frame) ident.ID {
	return ledger.Load[ident.ID](f.Storage(), recoveryVaultAppIDKey)
}

func setApp(f *ledger.Frame, ns, id ident.ID, addr ident.Address) error {
	if !f.IsContract(addr) {
		return ledger.Revertf(ErrAppNotContract.Reason, "%s", addr.Short())
	}
	f.Storage().Set(AppsKey(ns, id), addr)
	f.Emit(EventSetApp,
		ledger.F("namespace", ns),
		ledger.F("appId", id),
		ledger.F("app", addr),
	)
	return nil
}

func setAppIfNew(f *ledger.Frame, ns, id ident.ID, addr ident.Address) error {
	current := getApp(f, ns, id)
	if current.IsZero() {
		return setApp(f, ns, id, addr)
	}
	if current != addr {
		return ledger.Revertf(ErrInvalidAppChange.Reason, "%s is %s, not %s", id.Short(), current.Short(), addr.Short())
	}
	return nil
}

func newProxy(f *ledger.Frame, code proxy.AppProxy, appID ident.ID, init ledger.Invocation) (ident.Address, error) {
	addr, err := f.Deploy(code, 0, f.Self(), appID, init)
	if err != nil {
		return ident.ZeroAddress, err
	}
	f.Emit(EventNewAppProxy,
		ledger.F("proxy", addr),
		ledger.F("isUpgradeable", !code.Pinned),
		ledger.F("appId", appID),
	)
	return addr, nil
}

// hasPermission asks the registered ACL. It is false until the kernel is
// initialized since no ACL is registered before that.
func hasPermission(f *ledger.Frame, who, where ident.Address, role ident.ID) bool {
	acl := getApp(f, ident.AppAddrNamespace, ident.ACLAppID)
	if acl.IsZero() {
		return false
	}
	ok, err := ledger.First[bool](f.StaticCall(acl, "hasPermission", who, where, role))
	return err == nil && ok
}

func auth(f *ledger.Frame, role ident.ID) error {
	if hasPermission(f, f.Sender(), f.Self(), role) {
		return nil
	}
	return ledger.Revertf(ErrAuthFailed.Reason, "%s lacks %s", f.Sender().Short(), role.Short())
}
