package ledger

import (
	"context"

	"github.com/sirupsen/logrus"

	"github.com/ppiankov/chainkernel/internal/ident"
)

// MaxCallDepth bounds nested calls within one transaction.
const MaxCallDepth = 256

// Frame is the execution context of one call.
type Frame struct {
	w      *World
	ctx    context.Context
	self   ident.Address
	code   ident.Address
	sender ident.Address
	origin ident.Address
	value  uint64
	static bool
	depth  int
	txID   string
	block  uint64
}

// Context returns the context of the enclosing transaction.
func (f *Frame) Context() context.Context { return f.ctx }

// Self is the address whose storage and balance this frame acts on.
func (f *Frame) Self() ident.Address { return f.self }

// Code is the address of the code being executed. It differs from Self
// under delegate execution.
func (f *Frame) Code() ident.Address { return f.code }

// Sender is the immediate caller.
func (f *Frame) Sender() ident.Address { return f.sender }

// Origin is the entity that submitted the transaction.
func (f *Frame) Origin() ident.Address { return f.origin }

// Value is the native amount attached to the call.
func (f *Frame) Value() uint64 { return f.value }

// Block is the current block number.
func (f *Frame) Block() uint64 { return f.block }

// TxID identifies the enclosing transaction.
func (f *Frame) TxID() string { return f.txID }

// Static reports whether state changes are forbidden.
func (f *Frame) Static() bool { return f.static }

// Depth is the call depth, zero for the submitting entity.
func (f *Frame) Depth() int { return f.depth }

// Storage returns the storage of Self.
func (f *Frame) Storage() Storage { return Storage{w: f.w, addr: f.self} }

// Balance returns the native balance of addr.
func (f *Frame) Balance(addr ident.Address) uint64 { return f.w.balances[addr] }

// IsContract reports whether code is deployed at addr.
func (f *Frame) IsContract(addr ident.Address) bool {
	_, ok := f.w.code[addr]
	return ok
}

// Logger returns a logger annotated with the current call.
func (f *Frame) Logger() *logrus.Entry {
	return f.w.log.WithFields(logrus.Fields{
		"tx_id": f.txID,
		"self":  f.self.Short(),
		"depth": f.depth,
	})
}

// Emit records an event from Self. It is published only if the
// transaction commits and dropped if this frame is reverted.
func (f *Frame) Emit(name string, fields ...Field) {
	if f.static {
		return
	}
	w := f.w
	w.journal.append(eventChange{prevLen: len(w.pending)})
	w.pending = append(w.pending, Event{
		Address: f.self,
		Name:    name,
		Fields:  fields,
		Index:   len(w.pending),
	})
}

func (f *Frame) child(self, code, sender ident.Address, value uint64, static bool) (*Frame, error) {
	if f.depth+1 > MaxCallDepth {
		return nil, Revertf(ErrCallDepth.Reason, "depth %d", f.depth+1)
	}
	if err := f.ctx.Err(); err != nil {
		return nil, err
	}
	return &Frame{
		w:      f.w,
		ctx:    f.ctx,
		self:   self,
		code:   code,
		sender: sender,
		origin: f.origin,
		value:  value,
		static: static,
		depth:  f.depth + 1,
		txID:   f.txID,
		block:  f.block,
	}, nil
}

// Call invokes method on to, moving value from Self. All changes made by
// the callee are undone if it fails.
func (f *Frame) Call(to ident.Address, value uint64, method string, args ...any) ([]any, error) {
	if f.static && value > 0 {
		return nil, Revertf(ErrStaticViolation.Reason, "value transfer in static call")
	}
	c, err := f.child(to, to, f.self, value, f.static)
	if err != nil {
		return nil, err
	}
	snap := f.w.journal.snapshot()
	if err := f.w.transfer(f.self, to, value); err != nil {
		f.w.journal.revertTo(f.w, snap)
		return nil, err
	}
	ret, err := f.w.invoke(c, method, Args(args))
	if err != nil {
		f.w.journal.revertTo(f.w, snap)
		return nil, err
	}
	return ret, nil
}

// StaticCall invokes a view method on to. The callee and anything it
// calls may not change state.
func (f *Frame) StaticCall(to ident.Address, method string, args ...any) ([]any, error) {
	c, err := f.child(to, to, f.self, 0, true)
	if err != nil {
		return nil, err
	}
	snap := f.w.journal.snapshot()
	ret, err := f.w.invoke(c, method, Args(args))
	if err != nil {
		f.w.journal.revertTo(f.w, snap)
		return nil, err
	}
	return ret, nil
}

// DelegateCall runs the code at code against Self's storage, keeping the
// current sender and value.
func (f *Frame) DelegateCall(code ident.Address, method string, args ...any) ([]any, error) {
	c, err := f.child(f.self, code, f.sender, f.value, f.static)
	if err != nil {
		return nil, err
	}
	snap := f.w.journal.snapshot()
	ret, err := f.w.invoke(c, method, Args(args))
	if err != nil {
		f.w.journal.revertTo(f.w, snap)
		return nil, err
	}
	return ret, nil
}

// Deploy creates a new component at an address derived from Self and its
// creation nonce, runs its constructor and funds it with value.
func (f *Frame) Deploy(c Contract, value uint64, args ...any) (ident.Address, error) {
	if f.static {
		return ident.ZeroAddress, Revertf(ErrStaticViolation.Reason, "deploy in static call")
	}
	w := f.w
	nonce := w.nonces[f.self]
	w.journal.append(nonceChange{addr: f.self, prev: nonce})
	w.nonces[f.self] = nonce + 1

	addr := ident.DeriveAddress(f.self, nonce)
	if _, exists := w.code[addr]; exists {
		return ident.ZeroAddress, Revertf(ErrAddressCollision.Reason, "%s", addr.Short())
	}

	cf, err := f.child(addr, addr, f.self, value, false)
	if err != nil {
		return ident.ZeroAddress, err
	}
	snap := w.journal.snapshot()
	w.code[addr] = c
	w.journal.append(codeChange{addr: addr})
	if err := w.transfer(f.self, addr, value); err != nil {
		w.journal.revertTo(w, snap)
		return ident.ZeroAddress, err
	}
	if ctor, ok := c.(Constructor); ok {
		if err := ctor.Construct(cf, Args(args)); err != nil {
			w.journal.revertTo(w, snap)
			return ident.ZeroAddress, err
		}
	}
	return addr, nil
}
