package ledger

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ppiankov/chainkernel/internal/ident"
)

// box stores a single number and can call into other boxes.
type box struct{}

func (box) Construct(f *Frame, args Args) error {
	var start uint64
	if len(args) > 0 {
		if err := args.Decode(&start); err != nil {
			return err
		}
	}
	f.Storage().Set("n", start)
	return nil
}

func (box) Methods() MethodTable {
	return MethodTable{
		"get": {View: true, Handler: func(f *Frame, _ Args) ([]any, error) {
			return []any{Load[uint64](f.Storage(), "n")}, nil
		}},
		"set": {Handler: func(f *Frame, args Args) ([]any, error) {
			var n uint64
			if err := args.Decode(&n); err != nil {
				return nil, err
			}
			f.Storage().Set("n", n)
			f.Emit("Set", F("n", n))
			return nil, nil
		}},
		"setThenFail": {Handler: func(f *Frame, args Args) ([]any, error) {
			f.Storage().Set("n", uint64(999))
			f.Emit("Set", F("n", uint64(999)))
			return nil, NewRevert("BOX_FAIL")
		}},
		"tryOther": {Handler: func(f *Frame, args Args) ([]any, error) {
			var other ident.Address
			if err := args.Decode(&other); err != nil {
				return nil, err
			}
			f.Storage().Set("n", uint64(1))
			_, err := f.Call(other, 0, "setThenFail")
			return []any{Reason(err)}, nil
		}},
		"writeViaStatic": {Handler: func(f *Frame, args Args) ([]any, error) {
			var other ident.Address
			if err := args.Decode(&other); err != nil {
				return nil, err
			}
			return f.StaticCall(other, "set", uint64(5))
		}},
		"delegateSet": {Handler: func(f *Frame, args Args) ([]any, error) {
			var code ident.Address
			var n uint64
			if err := args.Decode(&code, &n); err != nil {
				return nil, err
			}
			return f.DelegateCall(code, "set", n)
		}},
		"deposit": {Payable: true, Handler: func(f *Frame, _ Args) ([]any, error) {
			return []any{f.Value()}, nil
		}},
		"guarded": {NonReentrant: true, Handler: func(f *Frame, args Args) ([]any, error) {
			var again bool
			if err := args.Decode(&again); err != nil {
				return nil, err
			}
			if again {
				return f.Call(f.Self(), 0, "guarded", false)
			}
			return []any{"ok"}, nil
		}},
	}
}

type recorder struct {
	receipts []*Receipt
}

func (r *recorder) Publish(rc *Receipt) error {
	r.receipts = append(r.receipts, rc)
	return nil
}

var alice = ident.Address{19: 0xa1}

func deployBox(t *testing.T, w *World, start uint64) ident.Address {
	t.Helper()
	addr, r, err := w.Deploy(context.Background(), alice, box{}, start)
	require.NoError(t, err)
	require.True(t, r.Committed())
	require.Equal(t, addr, r.Created)
	return addr
}

func get(t *testing.T, w *World, addr ident.Address) uint64 {
	t.Helper()
	n, err := First[uint64](w.Call(context.Background(), Msg{From: alice, To: addr, Method: "get"}))
	require.NoError(t, err)
	return n
}

func TestDeployRunsConstructor(t *testing.T) {
	w := NewWorld()
	addr := deployBox(t, w, 7)
	assert.True(t, w.HasCode(addr))
	assert.Equal(t, uint64(7), get(t, w, addr))
	assert.Equal(t, ident.DeriveAddress(alice, 0), addr)

	second := deployBox(t, w, 0)
	assert.Equal(t, ident.DeriveAddress(alice, 1), second)
}

func TestTransactCommitsAndPublishes(t *testing.T) {
	rec := &recorder{}
	w := NewWorld(WithSink(rec))
	addr := deployBox(t, w, 0)

	r, err := w.Transact(context.Background(), Msg{From: alice, To: addr, Method: "set", Args: []any{uint64(42)}})
	require.NoError(t, err)
	assert.Equal(t, StatusCommitted, r.Status)
	require.Len(t, r.Events, 1)
	assert.Equal(t, "Set", r.Events[0].Name)
	assert.Equal(t, uint64(42), r.Events[0].Get("n"))
	assert.Equal(t, addr, r.Events[0].Address)
	assert.NotEmpty(t, r.TxID)
	assert.Equal(t, uint64(2), r.Block)

	assert.Equal(t, uint64(42), get(t, w, addr))
	assert.Len(t, rec.receipts, 2)
}

func TestRevertUndoesEverything(t *testing.T) {
	rec := &recorder{}
	w := NewWorld(WithSink(rec))
	addr := deployBox(t, w, 3)

	r, err := w.Transact(context.Background(), Msg{From: alice, To: addr, Method: "setThenFail"})
	require.Error(t, err)
	assert.ErrorIs(t, err, NewRevert("BOX_FAIL"))
	assert.Equal(t, StatusReverted, r.Status)
	assert.Equal(t, "BOX_FAIL", r.Reason)
	assert.Empty(t, r.Events)
	assert.Equal(t, uint64(3), get(t, w, addr))

	require.Len(t, rec.receipts, 2)
	assert.False(t, rec.receipts[1].Committed())
}

func TestFailedInnerCallOnlyRevertsItself(t *testing.T) {
	w := NewWorld()
	outer := deployBox(t, w, 0)
	inner := deployBox(t, w, 5)

	r, err := w.Transact(context.Background(), Msg{From: alice, To: outer, Method: "tryOther", Args: []any{inner}})
	require.NoError(t, err)
	assert.Equal(t, []any{"BOX_FAIL"}, r.Return)
	assert.Empty(t, r.Events)
	assert.Equal(t, uint64(1), get(t, w, outer))
	assert.Equal(t, uint64(5), get(t, w, inner))
}

func TestStaticCallRejectsWrites(t *testing.T) {
	w := NewWorld()
	a := deployBox(t, w, 0)
	b := deployBox(t, w, 0)

	_, err := w.Transact(context.Background(), Msg{From: alice, To: a, Method: "writeViaStatic", Args: []any{b}})
	assert.ErrorIs(t, err, ErrStaticViolation)

	_, err = w.Call(context.Background(), Msg{From: alice, To: a, Method: "set", Args: []any{uint64(1)}})
	assert.ErrorIs(t, err, ErrStaticViolation)
}

func TestDelegateCallWritesCallerStorage(t *testing.T) {
	w := NewWorld()
	caller := deployBox(t, w, 0)
	code := deployBox(t, w, 0)

	r, err := w.Transact(context.Background(), Msg{From: alice, To: caller, Method: "delegateSet", Args: []any{code, uint64(9)}})
	require.NoError(t, err)
	assert.Equal(t, uint64(9), get(t, w, caller))
	assert.Equal(t, uint64(0), get(t, w, code))
	require.Len(t, r.Events, 1)
	assert.Equal(t, caller, r.Events[0].Address)
}

func TestValueTransfers(t *testing.T) {
	w := NewWorld()
	addr := deployBox(t, w, 0)
	w.Mint(alice, 100)

	_, err := w.Transact(context.Background(), Msg{From: alice, To: addr, Value: 10, Method: "set", Args: []any{uint64(1)}})
	assert.ErrorIs(t, err, ErrNotPayable)
	assert.Equal(t, uint64(100), w.Balance(alice))

	r, err := w.Transact(context.Background(), Msg{From: alice, To: addr, Value: 30, Method: "deposit"})
	require.NoError(t, err)
	assert.Equal(t, []any{uint64(30)}, r.Return)
	assert.Equal(t, uint64(70), w.Balance(alice))
	assert.Equal(t, uint64(30), w.Balance(addr))

	_, err = w.Transact(context.Background(), Msg{From: alice, To: addr, Value: 500, Method: "deposit"})
	assert.ErrorIs(t, err, ErrInsufficientBalance)

	bob := ident.Address{19: 0xb0}
	_, err = w.Transact(context.Background(), Msg{From: alice, To: bob, Value: 5})
	require.NoError(t, err)
	assert.Equal(t, uint64(5), w.Balance(bob))
}

func TestNonReentrant(t *testing.T) {
	w := NewWorld()
	addr := deployBox(t, w, 0)

	r, err := w.Transact(context.Background(), Msg{From: alice, To: addr, Method: "guarded", Args: []any{false}})
	require.NoError(t, err)
	assert.Equal(t, []any{"ok"}, r.Return)

	_, err = w.Transact(context.Background(), Msg{From: alice, To: addr, Method: "guarded", Args: []any{true}})
	assert.ErrorIs(t, err, ErrReentrant)

	// the guard is released after a failed attempt
	_, err = w.Transact(context.Background(), Msg{From: alice, To: addr, Method: "guarded", Args: []any{false}})
	assert.NoError(t, err)
}

func TestUnknownTargets(t *testing.T) {
	w := NewWorld()
	addr := deployBox(t, w, 0)

	_, err := w.Transact(context.Background(), Msg{From: alice, To: addr, Method: "nope"})
	assert.ErrorIs(t, err, ErrUnknownMethod)

	_, err = w.Transact(context.Background(), Msg{From: alice, To: ident.Address{1}, Method: "get"})
	assert.ErrorIs(t, err, ErrNoCode)
}

func TestCanceledContextAborts(t *testing.T) {
	w := NewWorld()
	addr := deployBox(t, w, 0)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	r, err := w.Transact(ctx, Msg{From: alice, To: addr, Method: "set", Args: []any{uint64(1)}})
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, ErrAborted.Reason, r.Reason)
}

func TestArgsDecode(t *testing.T) {
	var (
		s string
		n uint64
		b bool
		a ident.Address
		i Invocation
	)
	args := Args{"x", float64(12), true, "0x00000000000000000000000000000000000000a1", map[string]any{"method": "init", "args": []any{"y"}}}
	require.NoError(t, args.Decode(&s, &n, &b, &a, &i))
	assert.Equal(t, "x", s)
	assert.Equal(t, uint64(12), n)
	assert.True(t, b)
	assert.Equal(t, alice, a)
	assert.Equal(t, Invocation{Method: "init", Args: []any{"y"}}, i)

	assert.ErrorIs(t, Args{"x"}.Decode(&s, &n), ErrBadArgs)
	assert.ErrorIs(t, Args{float64(1.5)}.Decode(&n), ErrBadArgs)
	assert.ErrorIs(t, Args{"x"}.Decode(&b), ErrBadArgs)
}

func TestKeyJoinsParts(t *testing.T) {
	assert.Equal(t, "acl.permissions/"+alice.Hex()+"/x", Key("acl.permissions", alice, "x"))
}
