// Package token is a minimal fungible token minted by its deployer. It
// exists so vaults and fund recovery have something other than the
// native balance to move.
package token

import (
	"github.com/ppiankov/chainkernel/internal/ident"
	"github.com/ppiankov/chainkernel/internal/ledger"
)

var (
	ErrNotOwner              = ledger.NewRevert("TOKEN_NOT_OWNER")
	ErrInsufficientBalance   = ledger.NewRevert("TOKEN_INSUFFICIENT_BALANCE")
	ErrInsufficientAllowance = ledger.NewRevert("TOKEN_INSUFFICIENT_ALLOWANCE")
	ErrOverflow              = ledger.NewRevert("TOKEN_OVERFLOW")
)

// Event names.
const (
	EventTransfer = "Transfer"
	EventApproval = "Approval"
)

const (
	ownerKey  = "token.owner"
	nameKey   = "token.name"
	symbolKey = "token.symbol"
	supplyKey = "token.totalSupply"
)

func balanceKey(a ident.Address) string { return ledger.Key("token.balances", a) }
func allowanceKey(o, s ident.Address) string { return ledger.Key("token.allowances", o, s) }

// Token is the token code. Constructor arguments: name, symbol.
type Token struct{}

func (Token) Construct(f *ledger.Frame, args ledger.Args) error {
	var name, symbol string
	if err := args.Decode(&name, &symbol); err != nil {
		return err
	}
	st := f.Storage()
	st.Set(ownerKey, f.Sender())
	st.Set(nameKey, name)
	st.Set(symbolKey, symbol)
	return nil
}

func (t Token) Methods() ledger.MethodTable {
	return ledger.MethodTable{
		"mint":         {Handler: t.mint},
		"transfer":     {Handler: t.transfer},
		"approve":      {Handler: t.approve},
		"transferFrom": {Handler: t.transferFrom},
		"balanceOf": {View: true, Handler: func(f *ledger.Frame, args ledger.Args) ([]any, error) {
			var who ident.Address
			if err := args.Decode(&who); err != nil {
				return nil, err
			}
			return []any{balanceOf(f, who)}, nil
		}},
		"allowance": {View: true, Handler: func(f *ledger.Frame, args ledger.Args) ([]any, error) {
			var owner, spender ident.Address
			if err := args.Decode(&owner, &spender); err != nil {
				return nil, err
			}
			return []any{ledger.Load[uint64](f.Storage(), allowanceKey(owner, spender))}, nil
		}},
		"totalSupply": {View: true, Handler: func(f *ledger.Frame, _ ledger.Args) ([]any, error) {
			return []any{ledger.Load[uint64](f.Storage(), supplyKey)}, nil
		}},
		"name": {View: true, Handler: func(f *ledger.Frame, _ ledger.Args) ([]any, error) {
			return []any{ledger.Load[string](f.Storage(), nameKey)}, nil
		}},
		"symbol": {View: true, Handler: func(f *ledger.Frame, _ ledger.Args) ([]any, error) {
			return []any{ledger.Load[string](f.Storage(), symbolKey)}, nil
		}},
		"owner": {View: true, Handler: func(f *ledger.Frame, _ ledger.Args) ([]any, error) {
			return []any{ledger.Load[ident.Address](f.Storage(), ownerKey)}, nil
		}},
	}
}

func (Token) mint(f *ledger.Frame, args ledger.Args) ([]any, error) {
	var to ident.Address
	var amount uint64
	if err := args.Decode(&to, &amount); err != nil {
		return nil, err
	}
	if f.Sender() != ledger.Load[ident.Address](f.Storage(), ownerKey) {
		return nil, ledger.Revertf(ErrNotOwner.Reason, "%s", f.Sender().Short())
	}
	supply := ledger.Load[uint64](f.Storage(), supplyKey)
	if supply+amount < supply {
		return nil, ErrOverflow
	}
	f.Storage().Set(supplyKey, supply+amount)
	f.Storage().Set(balanceKey(to), balanceOf(f, to)+amount)
	f.Emit(EventTransfer,
		ledger.F("from", ident.ZeroAddress),
		ledger.F("to", to),
		ledger.F("value", amount),
	)
	return []any{true}, nil
}

func (Token) transfer(f *ledger.Frame, args ledger.Args) ([]any, error) {
	var to ident.Address
	var amount uint64
	if err := args.Decode(&to, &amount); err != nil {
		return nil, err
	}
	if err := move(f, f.Sender(), to, amount); err != nil {
		return nil, err
	}
	return []any{true}, nil
}

func (Token) approve(f *ledger.Frame, args ledger.Args) ([]any, error) {
	var spender ident.Address
	var amount uint64
	if err := args.Decode(&spender, &amount); err != nil {
		return nil, err
	}
	f.Storage().Set(allowanceKey(f.Sender(), spender), amount)
	f.Emit(EventApproval,
		ledger.F("owner", f.Sender()),
		ledger.F("spender", spender),
		ledger.F("value", amount),
	)
	return []any{true}, nil
}

func (Token) transferFrom(f *ledger.Frame, args ledger.Args) ([]any, error) {
	var from, to ident.Address
	var amount uint64
	if err := args.Decode(&from, &to, &amount); err != nil {
		return nil, err
	}
	key := allowanceKey(from, f.Sender())
	allowed := ledger.Load[uint64](f.Storage(), key)
	if allowed < amount {
		return nil, ledger.Revertf(ErrInsufficientAllowance.Reason, "%d < %d", allowed, amount)
	}
	f.Storage().Set(key, allowed-amount)
	if err := move(f, from, to, amount); err != nil {
		return nil, err
	}
	return []any{true}, nil
}

func balanceOf(f *ledger.Frame, who ident.Address) uint64 {
	return ledger.Load[uint64](f.Storage(), balanceKey(who))
}

func move(f *ledger.Frame, from, to ident.Address, amount uint64) error {
	fb := balanceOf(f, from)
	if fb < amount {
		return ledger.Revertf(ErrInsufficientBalance.Reason, "%s has %d, needs %d", from.Short(), fb, amount)
	}
	f.Storage().Set(balanceKey(from), fb-amount)
	f.Storage().Set(balanceKey(to), balanceOf(f, to)+amount)
	f.Emit(EventTransfer,
		ledger.F("from", from),
		ledger.F("to", to),
		ledger.F("value", amount),
	)
	return nil
}
