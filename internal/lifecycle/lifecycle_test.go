package lifecycle

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ppiankov/chainkernel/internal/ident"
	"github.com/ppiankov/chainkernel/internal/ledger"
)

type initable struct{}

func (initable) Methods() ledger.MethodTable {
	return ledger.MethodTable{
		"initialize": {Handler: func(f *ledger.Frame, _ ledger.Args) ([]any, error) {
			return nil, Initialize(f)
		}},
		"petrify": {Handler: func(f *ledger.Frame, _ ledger.Args) ([]any, error) {
			return nil, Petrify(f)
		}},
		"state": {View: true, Handler: func(f *ledger.Frame, _ ledger.Args) ([]any, error) {
			return []any{HasInitialized(f), IsPetrified(f), RequireInitialized(f) == nil}, nil
		}},
	}
}

var deployer = ident.EntityFromName("deployer")

func setup(t *testing.T) (*ledger.World, ident.Address) {
	t.Helper()
	w := ledger.NewWorld()
	addr, _, err := w.Deploy(context.Background(), deployer, initable{})
	require.NoError(t, err)
	return w, addr
}

func send(w *ledger.World, to ident.Address, method string) error {
	_, err := w.Transact(context.Background(), ledger.Msg{From: deployer, To: to, Method: method})
	return err
}

func state(t *testing.T, w *ledger.World, addr ident.Address) []any {
	t.Helper()
	ret, err := w.Call(context.Background(), ledger.Msg{From: deployer, To: addr, Method: "state"})
	require.NoError(t, err)
	return ret
}

func TestInitializeOnce(t *testing.T) {
	w, addr := setup(t)
	assert.Equal(t, []any{false, false, false}, state(t, w, addr))

	require.NoError(t, send(w, addr, "initialize"))
	assert.Equal(t, []any{true, false, true}, state(t, w, addr))

	assert.ErrorIs(t, send(w, addr, "initialize"), ErrAlreadyInitialized)
	assert.ErrorIs(t, send(w, addr, "petrify"), ErrAlreadyInitialized)
}

func TestPetrifyIsTerminal(t *testing.T) {
	w, addr := setup(t)
	require.NoError(t, send(w, addr, "petrify"))
	assert.Equal(t, []any{false, true, false}, state(t, w, addr))

	assert.ErrorIs(t, send(w, addr, "initialize"), ErrAlreadyInitialized)
	assert.ErrorIs(t, send(w, addr, "petrify"), ErrAlreadyInitialized)
}
