package app

import (
	"github.com/ppiankov/chainkernel/internal/ident"
	"github.com/ppiankov/chainkernel/internal/ledger"
	"github.com/ppiankov/chainkernel/internal/lifecycle"
)

// Template is embedded by app code. Deploying the code directly petrifies
// it, so only proxies pointing at it can ever be initialized.
type Template struct{}

// Construct petrifies the base.
func (Template) Construct(f *ledger.Frame, _ ledger.Args) error {
	return lifecycle.Petrify(f)
}

// BaseMethods are the read methods every app exposes.
func BaseMethods() ledger.MethodTable {
	return ledger.MethodTable{
		"kernel": {View: true, Handler: func(f *ledger.Frame, _ ledger.Args) ([]any, error) {
			return []any{Kernel(f)}, nil
		}},
		"appId": {View: true, Handler: func(f *ledger.Frame, _ ledger.Args) ([]any, error) {
			return []any{AppID(f)}, nil
		}},
		"hasInitialized": {View: true, Handler: func(f *ledger.Frame, _ ledger.Args) ([]any, error) {
			return []any{lifecycle.HasInitialized(f)}, nil
		}},
		"isPetrified": {View: true, Handler: func(f *ledger.Frame, _ ledger.Args) ([]any, error) {
			return []any{lifecycle.IsPetrified(f)}, nil
		}},
		"getInitializationBlock": {View: true, Handler: func(f *ledger.Frame, _ ledger.Args) ([]any, error) {
			return []any{lifecycle.InitializationBlock(f)}, nil
		}},
		"allowRecoverability": {View: true, Handler: func(f *ledger.Frame, _ ledger.Args) ([]any, error) {
			return []any{true}, nil
		}},
		"canPerform": {View: true, Handler: func(f *ledger.Frame, args ledger.Args) ([]any, error) {
			var who ident.Address
			var role ident.ID
			if err := args.Decode(&who, &role); err != nil {
				return nil, err
			}
			return []any{CanPerform(f, who, role)}, nil
		}},
	}
}
