// Package counter is a small app used to exercise proxies, upgrades and
// the kill switch. Two code versions exist: V1 counts by one, V2 by two.
package counter

import (
	"github.com/ppiankov/chainkernel/internal/app"
	"github.com/ppiankov/chainkernel/internal/ident"
	"github.com/ppiankov/chainkernel/internal/ledger"
	"github.com/ppiankov/chainkernel/internal/lifecycle"
)

// AppID is the id counters are installed under.
var AppID = ident.NameHash("counter.apm.eth")

const valueKey = "counter.value"

// Event names.
const (
	EventIncrement = "Increment"
	EventReset     = "Reset"
)

// Counter is the counter app code.
type Counter struct {
	app.Template
	Step uint64
}

// V1 counts by one.
func V1() Counter { return Counter{Step: 1} }

// V2 counts by two.
func V2() Counter { return Counter{Step: 2} }

func (c Counter) Methods() ledger.MethodTable {
	return ledger.MethodTable{
		"initialize": {Handler: func(f *ledger.Frame, args ledger.Args) ([]any, error) {
			var owner ident.Address
			if err := args.Decode(&owner); err != nil {
				return nil, err
			}
			if err := lifecycle.Initialize(f); err != nil {
				return nil, err
			}
			app.SetOwner(f, owner)
			return nil, nil
		}},
		"increment": {Handler: app.Protected(c.increment)},
		"reset":     {Handler: app.ProtectedUnlessOwner(c.reset)},
		"value": {View: true, Handler: func(f *ledger.Frame, _ ledger.Args) ([]any, error) {
			return []any{ledger.Load[uint64](f.Storage(), valueKey)}, nil
		}},
		"step": {View: true, Handler: func(*ledger.Frame, ledger.Args) ([]any, error) {
			return []any{c.Step}, nil
		}},
		"owner": {View: true, Handler: func(f *ledger.Frame, _ ledger.Args) ([]any, error) {
			return []any{app.Owner(f)}, nil
		}},
	}.Merge(app.BaseMethods())
}

func (c Counter) increment(f *ledger.Frame, args ledger.Args) ([]any, error) {
	if err := args.Decode(); err != nil {
		return nil, err
	}
	if err := lifecycle.RequireInitialized(f); err != nil {
		return nil, err
	}
	v := ledger.Load[uint64](f.Storage(), valueKey) + c.Step
	f.Storage().Set(valueKey, v)
	f.Emit(EventIncrement, ledger.F("by", f.Sender()), ledger.F("value", v))
	return []any{v}, nil
}

func (Counter) reset(f *ledger.Frame, args ledger.Args) ([]any, error) {
	if err := args.Decode(); err != nil {
		return nil, err
	}
	if err := lifecycle.RequireInitialized(f); err != nil {
		return nil, err
	}
	f.Storage().Delete(valueKey)
	f.Emit(EventReset, ledger.F("by", f.Sender()))
	return nil, nil
}
