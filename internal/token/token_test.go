package token_test

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ppiankov/chainkernel/internal/ident"
	"github.com/ppiankov/chainkernel/internal/testkit"
	"github.com/ppiankov/chainkernel/internal/token"
)

func TestMintAndTransfer(t *testing.T) {
	e := testkit.New(t)
	tok := e.Deploy(testkit.Alice, token.Token{}, "Test", "TST")
	assert.Equal(t, "TST", testkit.Get[string](e, tok, "symbol"))
	assert.Equal(t, testkit.Alice, testkit.Get[ident.Address](e, tok, "owner"))

	_, err := e.Send(testkit.Bob, tok, "mint", testkit.Bob, uint64(1))
	assert.ErrorIs(t, err, token.ErrNotOwner)

	r := e.MustSend(testkit.Alice, tok, "mint", testkit.Alice, uint64(10))
	ev := r.EventsNamed(token.EventTransfer)
	require.Len(t, ev, 1)
	assert.Equal(t, ident.ZeroAddress, ev[0].Get("from"))

	e.MustSend(testkit.Alice, tok, "transfer", testkit.Bob, uint64(4))
	assert.Equal(t, uint64(6), testkit.Get[uint64](e, tok, "balanceOf", testkit.Alice))
	assert.Equal(t, uint64(4), testkit.Get[uint64](e, tok, "balanceOf", testkit.Bob))
	assert.Equal(t, uint64(10), testkit.Get[uint64](e, tok, "totalSupply"))

	_, err = e.Send(testkit.Bob, tok, "transfer", testkit.Alice, uint64(5))
	assert.ErrorIs(t, err, token.ErrInsufficientBalance)

	_, err = e.Send(testkit.Alice, tok, "mint", testkit.Alice, uint64(math.MaxUint64))
	assert.ErrorIs(t, err, token.ErrOverflow)
}

func TestAllowance(t *testing.T) {
	e := testkit.New(t)
	tok := e.Deploy(testkit.Alice, token.Token{}, "Test", "TST")
	e.MustSend(testkit.Alice, tok, "mint", testkit.Alice, uint64(10))

	_, err := e.Send(testkit.Bob, tok, "transferFrom", testkit.Alice, testkit.Bob, uint64(1))
	assert.ErrorIs(t, err, token.ErrInsufficientAllowance)

	e.MustSend(testkit.Alice, tok, "approve", testkit.Bob, uint64(3))
	e.MustSend(testkit.Bob, tok, "transferFrom", testkit.Alice, testkit.Bob, uint64(2))
	assert.Equal(t, uint64(1), testkit.Get[uint64](e, tok, "allowance", testkit.Alice, testkit.Bob))
	assert.Equal(t, uint64(2), testkit.Get[uint64](e, tok, "balanceOf", testkit.Bob))
}
