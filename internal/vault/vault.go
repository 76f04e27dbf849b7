// Package vault is the app that holds a DAO's funds and receives
// anything recovered from other apps.
package vault

import (
	"github.com/ppiankov/chainkernel/internal/app"
	"github.com/ppiankov/chainkernel/internal/ident"
	"github.com/ppiankov/chainkernel/internal/ledger"
	"github.com/ppiankov/chainkernel/internal/lifecycle"
)

// TransferRole allows moving funds out of the vault.
var TransferRole = ident.Keccak("TRANSFER_ROLE")

var (
	ErrDepositValueZero  = ledger.NewRevert("VAULT_DEPOSIT_VALUE_ZERO")
	ErrValueMismatch     = ledger.NewRevert("VAULT_VALUE_MISMATCH")
	ErrTransferValueZero = ledger.NewRevert("VAULT_TRANSFER_VALUE_ZERO")
)

// Event names.
const (
	EventDeposit  = "VaultDeposit"
	EventTransfer = "VaultTransfer"
)

// Vault is the vault app code.
type Vault struct {
	app.Template
}

func (v Vault) Methods() ledger.MethodTable {
	return ledger.MethodTable{
		"initialize": {Handler: func(f *ledger.Frame, args ledger.Args) ([]any, error) {
			if err := args.Decode(); err != nil {
				return nil, err
			}
			return nil, lifecycle.Initialize(f)
		}},
		"deposit":  {Payable: true, Handler: v.deposit},
		"transfer": {NonReentrant: true, Handler: v.transfer},
		"balance": {View: true, Handler: func(f *ledger.Frame, args ledger.Args) ([]any, error) {
			var token ident.Address
			if err := args.Decode(&token); err != nil {
				return nil, err
			}
			return balance(f, token)
		}},
		"allowRecoverability": {View: true, Handler: func(*ledger.Frame, ledger.Args) ([]any, error) {
			return []any{false}, nil
		}},
		"TRANSFER_ROLE": {View: true, Handler: func(*ledger.Frame, ledger.Args) ([]any, error) {
			return []any{TransferRole}, nil
		}},
	}.Merge(app.BaseMethods())
}

// deposit takes native value (token zero) or pulls an approved token
// allowance from the sender.
func (Vault) deposit(f *ledger.Frame, args ledger.Args) ([]any, error) {
	var token ident.Address
	var amount uint64
	if err := args.Decode(&token, &amount); err != nil {
		return nil, err
	}
	if err := lifecycle.RequireInitialized(f); err != nil {
		return nil, err
	}
	if amount == 0 {
		return nil, ErrDepositValueZero
	}
	if token.IsZero() {
		if f.Value() != amount {
			return nil, ledger.Revertf(ErrValueMismatch.Reason, "sent %d, declared %d", f.Value(), amount)
		}
	} else {
		if f.Value() != 0 {
			return nil, ledger.Revertf(ErrValueMismatch.Reason, "native value sent with token deposit")
		}
		if _, err := f.Call(token, 0, "transferFrom", f.Sender(), f.Self(), amount); err != nil {
			return nil, err
		}
	}
	f.Emit(EventDeposit,
		ledger.F("token", token),
		ledger.F("sender", f.Sender()),
		ledger.F("amount", amount),
	)
	return nil, nil
}

func (Vault) transfer(f *ledger.Frame, args ledger.Args) ([]any, error) {
	var token, to ident.Address
	var amount uint64
	if err := args.Decode(&token, &to, &amount); err != nil {
		return nil, err
	}
	if err := app.Auth(f, TransferRole); err != nil {
		return nil, err
	}
	if amount == 0 {
		return nil, ErrTransferValueZero
	}
	if token.IsZero() {
		if _, err := f.Call(to, amount, ""); err != nil {
			return nil, err
		}
	} else if _, err := f.Call(token, 0, "transfer", to, amount); err != nil {
		return nil, err
	}
	f.Emit(EventTransfer,
		ledger.F("token", token),
		ledger.F("to", to),
		ledger.F("amount", amount),
	)
	return nil, nil
}

func balance(f *ledger.Frame, token ident.Address) ([]any, error) {
	if token.IsZero() {
		return []any{f.Balance(f.Self())}, nil
	}
	return f.StaticCall(token, "balanceOf", f.Self())
}
