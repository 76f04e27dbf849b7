// Package proxy implements app proxies: components that own an app's
// state and forward every call to the app code registered in a kernel,
// running that code against their own storage.
package proxy

import (
	"github.com/ppiankov/chainkernel/internal/app"
	"github.com/ppiankov/chainkernel/internal/ident"
	"github.com/ppiankov/chainkernel/internal/ledger"
)

// Proxy types as reported by proxyType.
const (
	ForwardingProxy  uint64 = 1
	UpgradeableProxy uint64 = 2
)

const pinnedCodeKey = "proxy.pinnedCode"

var (
	ErrImplementationNotSet = ledger.NewRevert("PROXY_IMPLEMENTATION_NOT_SET")
	ErrKernelNotInitialized = ledger.NewRevert("PROXY_KERNEL_NOT_INITIALIZED")
	ErrVaultNotContract     = ledger.NewRevert("RECOVER_VAULT_NOT_CONTRACT")
	ErrRecoverDisallowed    = ledger.NewRevert("RECOVER_DISALLOWED")
)

// Event names.
const (
	EventRecoverToVault = "RecoverToVault"
	EventProxyDeposit   = "ProxyDeposit"
)

// AppProxy fronts one app instance. Upgradeable proxies look up the app
// code in the kernel's base namespace on every call; pinned proxies
// resolve it once at construction.
type AppProxy struct {
	Pinned bool
}

// Upgradeable returns the code of an upgradeable proxy.
func Upgradeable() AppProxy { return AppProxy{} }

// Pinned returns the code of a pinned proxy.
func Pinned() AppProxy { return AppProxy{Pinned: true} }

// Construct binds the proxy to (kernel, appId) and runs the optional
// initialization invocation against the resolved code. Arguments:
// kernel, appId[, init].
func (p AppProxy) Construct(f *ledger.Frame, args ledger.Args) error {
	var (
		kernel ident.Address
		appID  ident.ID
		init   ledger.Invocation
	)
	var err error
	if len(args) == 2 {
		err = args.Decode(&kernel, &appID)
	} else {
		err = args.Decode(&kernel, &appID, &init)
	}
	if err != nil {
		return err
	}
	app.SetKernel(f, kernel)
	app.SetAppID(f, appID)

	code, err := baseCode(f, kernel, appID)
	if err != nil {
		return err
	}
	if p.Pinned {
		if code.IsZero() {
			return ledger.Revertf(ErrImplementationNotSet.Reason, "no base for %s", appID.Short())
		}
		f.Storage().Set(pinnedCodeKey, code)
	}
	if init.Method == "" {
		return nil
	}
	if !f.IsContract(code) {
		return ledger.Revertf(ErrImplementationNotSet.Reason, "no base for %s", appID.Short())
	}
	_, err = f.DelegateCall(code, init.Method, init.Args...)
	return err
}

func (p AppProxy) Methods() ledger.MethodTable {
	return ledger.MethodTable{
		"implementation": {View: true, Handler: func(f *ledger.Frame, _ ledger.Args) ([]any, error) {
			code, err := p.implementation(f)
			if err != nil {
				return nil, err
			}
			return []any{code}, nil
		}},
		"isUpgradeable": {View: true, Handler: func(*ledger.Frame, ledger.Args) ([]any, error) {
			return []any{!p.Pinned}, nil
		}},
		"proxyType": {View: true, Handler: func(*ledger.Frame, ledger.Args) ([]any, error) {
			if p.Pinned {
				return []any{ForwardingProxy}, nil
			}
			return []any{UpgradeableProxy}, nil
		}},
		"kernel": {View: true, Handler: func(f *ledger.Frame, _ ledger.Args) ([]any, error) {
			return []any{app.Kernel(f)}, nil
		}},
		"appId": {View: true, Handler: func(f *ledger.Frame, _ ledger.Args) ([]any, error) {
			return []any{app.AppID(f)}, nil
		}},
		"transferToVault": {NonReentrant: true, Handler: p.transferToVault},
	}
}

// Fallback forwards everything else to the app code. An empty method
// with no arguments is a deposit of native value.
func (p AppProxy) Fallback(f *ledger.Frame, method string, args ledger.Args) ([]any, error) {
	if err := requireKernelInitialized(f); err != nil {
		return nil, err
	}
	if method == "" && len(args) == 0 {
		if f.Value() > 0 {
			f.Emit(EventProxyDeposit, ledger.F("sender", f.Sender()), ledger.F("value", f.Value()))
		}
		return nil, nil
	}
	code, err := p.implementation(f)
	if err != nil {
		return nil, err
	}
	if code.IsZero() {
		return nil, ledger.Revertf(ErrImplementationNotSet.Reason, "no base for %s", app.AppID(f).Short())
	}
	return f.DelegateCall(code, method, args...)
}

func (p AppProxy) implementation(f *ledger.Frame) (ident.Address, error) {
	if p.Pinned {
		return ledger.Load[ident.Address](f.Storage(), pinnedCodeKey), nil
	}
	return baseCode(f, app.Kernel(f), app.AppID(f))
}

// transferToVault moves the proxy's whole balance of token (zero for the
// native balance) to the kernel's recovery vault.
func (p AppProxy) transferToVault(f *ledger.Frame, args ledger.Args) ([]any, error) {
	var token ident.Address
	if err := args.Decode(&token); err != nil {
		return nil, err
	}
	kernel := app.Kernel(f)
	vault, err := ledger.First[ident.Address](f.StaticCall(kernel, "getRecoveryVault"))
	if err != nil {
		return nil, err
	}
	if !f.IsContract(vault) {
		return nil, ledger.Revertf(ErrVaultNotContract.Reason, "vault %s", vault.Short())
	}

	code, err := p.implementation(f)
	if err != nil {
		return nil, err
	}
	if f.IsContract(code) {
		allowed, err := ledger.First[bool](f.DelegateCall(code, "allowRecoverability", token))
		if err != nil {
			return nil, err
		}
		if !allowed {
			return nil, ledger.Revertf(ErrRecoverDisallowed.Reason, "token %s", token.Short())
		}
	}

	var amount uint64
	if token.IsZero() {
		amount = f.Balance(f.Self())
		if amount > 0 {
			if _, err := f.Call(vault, amount, "deposit", token, amount); err != nil {
				return nil, err
			}
		}
	} else {
		amount, err = ledger.First[uint64](f.StaticCall(token, "balanceOf", f.Self()))
		if err != nil {
			return nil, err
		}
		if amount > 0 {
			if _, err := f.Call(token, 0, "transfer", vault, amount); err != nil {
				return nil, err
			}
		}
	}
	f.Emit(EventRecoverToVault,
		ledger.F("vault", vault),
		ledger.F("token", token),
		ledger.F("amount", amount),
	)
	return nil, nil
}

func baseCode(f *ledger.Frame, kernel ident.Address, appID ident.ID) (ident.Address, error) {
	return ledger.First[ident.Address](f.StaticCall(kernel, "getApp", ident.AppBasesNamespace, appID))
}

func requireKernelInitialized(f *ledger.Frame) error {
	kernel := app.Kernel(f)
	ok, err := ledger.First[bool](f.StaticCall(kernel, "hasInitialized"))
	if err != nil || !ok {
		return ledger.Revertf(ErrKernelNotInitialized.Reason, "kernel %s", kernel.Short())
	}
	return nil
}
