// Package ledger is the execution model every kernel component runs in.
//
// A World holds deployed code, per-address storage, native balances and a
// block counter. Each transaction runs to completion under the world lock,
// so there is no interleaving between transactions. Every write is
// journaled: when a call fails, the changes made by it and by every call
// it made are undone. Events are buffered per transaction and handed to
// sinks only after it commits.
package ledger

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/ppiankov/chainkernel/internal/ident"
)

// Msg is an external call into the world.
type Msg struct {
	// TxID is optional; replays pass the original id.
	TxID   string
	From   ident.Address
	To     ident.Address
	Value  uint64
	Method string
	Args   []any
}

// World is the shared state of all deployed components.
type World struct {
	mu       sync.Mutex
	code     map[ident.Address]Contract
	storage  map[ident.Address]map[string]any
	balances map[ident.Address]uint64
	nonces   map[ident.Address]uint64
	block    uint64
	sinks    []Sink
	log      *logrus.Entry
	now      func() time.Time

	// per-transaction state, only valid while mu is held
	journal *journal
	pending []Event
}

// Option configures a World.
type Option func(*World)

// WithLogger sets the logger used for transaction outcomes.
func WithLogger(l *logrus.Entry) Option {
	return func(w *World) { w.log = l }
}

// WithSink registers a sink at construction.
func WithSink(s Sink) Option {
	return func(w *World) { w.sinks = append(w.sinks, s) }
}

// WithClock overrides the wall clock stamped on receipts.
func WithClock(now func() time.Time) Option {
	return func(w *World) { w.now = now }
}

// NewWorld creates an empty world.
func NewWorld(opts ...Option) *World {
	w := &World{
		code:     make(map[ident.Address]Contract),
		storage:  make(map[ident.Address]map[string]any),
		balances: make(map[ident.Address]uint64),
		nonces:   make(map[ident.Address]uint64),
		now:      time.Now,
	}
	for _, o := range opts {
		o(w)
	}
	if w.log == nil {
		l := logrus.New()
		l.SetLevel(logrus.WarnLevel)
		w.log = logrus.NewEntry(l)
	}
	return w
}

// AddSink registers a sink for subsequent transactions.
func (w *World) AddSink(s Sink) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.sinks = append(w.sinks, s)
}

// Transact executes msg as one atomic transaction. On failure the receipt
// is still returned, with status reverted, alongside the error.
func (w *World) Transact(ctx context.Context, msg Msg) (*Receipt, error) {
	return w.execute(ctx, msg, func(f *Frame) ([]any, error) {
		return f.Call(msg.To, msg.Value, msg.Method, msg.Args...)
	})
}

// Deploy creates c on behalf of from in its own transaction.
func (w *World) Deploy(ctx context.Context, from ident.Address, c Contract, args ...any) (ident.Address, *Receipt, error) {
	var created ident.Address
	r, err := w.execute(ctx, Msg{From: from, Args: args}, func(f *Frame) ([]any, error) {
		addr, err := f.Deploy(c, 0, args...)
		if err != nil {
			return nil, err
		}
		created = addr
		return []any{addr}, nil
	})
	if r != nil {
		r.Created = created
	}
	return created, r, err
}

// Call runs msg as a read-only call against the latest state. Nothing it
// does is kept.
func (w *World) Call(ctx context.Context, msg Msg) ([]any, error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	w.journal = &journal{}
	w.pending = nil
	defer func() {
		w.journal.revertTo(w, 0)
		w.journal = nil
		w.pending = nil
	}()

	f := &Frame{
		w: w, ctx: ctx,
		self: msg.From, code: msg.From, sender: msg.From, origin: msg.From,
		static: true,
		block:  w.block,
	}
	return f.StaticCall(msg.To, msg.Method, msg.Args...)
}

func (w *World) execute(ctx context.Context, msg Msg, run func(f *Frame) ([]any, error)) (*Receipt, error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	start := w.now()
	w.block++
	txID := msg.TxID
	if txID == "" {
		txID = uuid.NewString()
	}
	w.journal = &journal{}
	w.pending = nil

	f := &Frame{
		w: w, ctx: ctx,
		self: msg.From, code: msg.From, sender: msg.From, origin: msg.From,
		txID:  txID,
		block: w.block,
	}
	ret, err := run(f)

	r := &Receipt{
		TxID:   txID,
		Block:  w.block,
		From:   msg.From,
		To:     msg.To,
		Method: msg.Method,
		Args:   msg.Args,
		Value:  msg.Value,
		Time:   start.UTC(),
	}
	entry := w.log.WithFields(logrus.Fields{
		"tx_id":  txID,
		"block":  r.Block,
		"from":   msg.From.Short(),
		"to":     msg.To.Short(),
		"method": msg.Method,
	})
	if err != nil {
		w.journal.revertTo(w, 0)
		r.Status = StatusReverted
		r.Reason = Reason(err)
		if r.Reason == "" {
			r.Reason = ErrAborted.Reason
		}
		r.Error = err.Error()
		entry.WithField("reason", r.Reason).Info("transaction reverted")
	} else {
		r.Status = StatusCommitted
		r.Events = w.pending
		r.Return = ret
		entry.WithField("events", len(r.Events)).Debug("transaction committed")
	}
	r.Duration = w.now().Sub(start)
	w.journal = nil
	w.pending = nil

	for _, s := range w.sinks {
		if perr := s.Publish(r); perr != nil {
			entry.WithError(perr).Warn("sink publish failed")
		}
	}
	return r, err
}

// Mint credits amount to addr outside of any transaction (genesis funding).
func (w *World) Mint(addr ident.Address, amount uint64) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.balances[addr] += amount
}

// Balance returns the native balance of addr.
func (w *World) Balance(addr ident.Address) uint64 {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.balances[addr]
}

// HasCode reports whether a component is deployed at addr.
func (w *World) HasCode(addr ident.Address) bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	_, ok := w.code[addr]
	return ok
}

// Block returns the number of the last executed transaction.
func (w *World) Block() uint64 {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.block
}

func (w *World) setBalance(addr ident.Address, v uint64) {
	w.journal.append(balanceChange{addr: addr, prev: w.balances[addr]})
	w.balances[addr] = v
}

func (w *World) transfer(from, to ident.Address, amount uint64) error {
	if amount == 0 {
		return nil
	}
	fb := w.balances[from]
	if fb < amount {
		return Revertf(ErrInsufficientBalance.Reason, "%s has %d, needs %d", from.Short(), fb, amount)
	}
	tb := w.balances[to]
	if tb+amount < tb {
		return Revertf(ErrInsufficientBalance.Reason, "balance overflow on %s", to.Short())
	}
	w.setBalance(from, fb-amount)
	w.setBalance(to, w.balances[to]+amount)
	return nil
}

const reentrancyKey = "ledger.reentrancyMutex"

func (w *World) invoke(f *Frame, method string, args Args) ([]any, error) {
	c, ok := w.code[f.code]
	if !ok {
		if method == "" {
			// plain value transfer to an entity
			return nil, nil
		}
		return nil, Revertf(ErrNoCode.Reason, "%s has no code", f.code.Short())
	}

	m, ok := c.Methods()[method]
	if !ok {
		if fb, ok := c.(Fallback); ok {
			return fb.Fallback(f, method, args)
		}
		return nil, Revertf(ErrUnknownMethod.Reason, "%q on %s", method, f.code.Short())
	}
	if f.value > 0 && !m.Payable {
		return nil, Revertf(ErrNotPayable.Reason, "%q does not accept value", method)
	}
	if f.static && !m.View {
		return nil, Revertf(ErrStaticViolation.Reason, "%q is not a view", method)
	}
	if !m.NonReentrant {
		return m.Handler(f, args)
	}

	st := f.Storage()
	if Load[bool](st, reentrancyKey) {
		return nil, Revertf(ErrReentrant.Reason, "%q re-entered on %s", method, f.self.Short())
	}
	st.Set(reentrancyKey, true)
	ret, err := m.Handler(f, args)
	if err != nil {
		return nil, err
	}
	st.Delete(reentrancyKey)
	return ret, nil
}
