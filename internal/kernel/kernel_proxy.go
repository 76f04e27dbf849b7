package kernel

import (
	"github.com/ppiankov/chainkernel/internal/ident"
	"github.com/ppiankov/chainkernel/internal/ledger"
	"github.com/ppiankov/chainkernel/internal/proxy"
)

// KernelProxy is the address a DAO lives at. The kernel code it runs is
// read from its own app table under (core, KernelAppID), so upgrading the
// kernel is a setApp on that entry.
type KernelProxy struct{}

// Construct records the kernel code. Arguments: kernelCode.
func (KernelProxy) Construct(f *ledger.Frame, args ledger.Args) error {
	var code ident.Address
	if err := args.Decode(&code); err != nil {
		return err
	}
	return setApp(f, ident.CoreNamespace, ident.KernelAppID, code)
}

func (KernelProxy) Methods() ledger.MethodTable {
	return ledger.MethodTable{
		"implementation": {View: true, Handler: func(f *ledger.Frame, _ ledger.Args) ([]any, error) {
			return []any{getApp(f, ident.CoreNamespace, ident.KernelAppID)}, nil
		}},
		"isUpgradeable": {View: true, Handler: func(*ledger.Frame, ledger.Args) ([]any, error) {
			return []any{true}, nil
		}},
		"proxyType": {View: true, Handler: func(*ledger.Frame, ledger.Args) ([]any, error) {
			return []any{proxy.UpgradeableProxy}, nil
		}},
	}
}

// Fallback runs the registered kernel code.
func (KernelProxy) Fallback(f *ledger.Frame, method string, args ledger.Args) ([]any, error) {
	code := getApp(f, ident.CoreNamespace, ident.KernelAppID)
	if code.IsZero() {
		return nil, ledger.Revertf(proxy.ErrImplementationNotSet.Reason, "no kernel code")
	}
	return f.DelegateCall(code, method, args...)
}
