// Package node owns the ledger world: it deploys the genesis components,
// replays the event log, and is the single entry point the transports
// (gRPC, HTTP, MCP, CLI) use to submit transactions and run queries.
package node

import (
	"context"
	"errors"
	"fmt"

	"github.com/sirupsen/logrus"

	"github.com/ppiankov/chainkernel/internal/ident"
	"github.com/ppiankov/chainkernel/internal/ledger"
)

// ErrReservedSender rejects submissions from the zero, any or burn
// entities.
var ErrReservedSender = errors.New("node: reserved sender")

// Genesis is the entity that deploys the base code.
var Genesis = ident.EntityFromName("chainkernel.genesis")

// Node is a bootstrapped world.
type Node struct {
	world *ledger.World
	log   *logrus.Entry
	addrs Addresses
}

// Option configures a Node.
type Option func(*options)

type options struct {
	log   *logrus.Entry
	sinks []ledger.Sink
}

// WithLogger sets the node and ledger logger.
func WithLogger(l *logrus.Entry) Option { return func(o *options) { o.log = l } }

// WithSink attaches a sink before genesis, so it sees every receipt.
func WithSink(s ledger.Sink) Option { return func(o *options) { o.sinks = append(o.sinks, s) } }

// New creates a world and deploys the genesis components for root.
func New(ctx context.Context, root ident.Address, opts ...Option) (*Node, error) {
	o := options{}
	for _, opt := range opts {
		opt(&o)
	}
	if o.log == nil {
		l := logrus.New()
		l.SetLevel(logrus.WarnLevel)
		o.log = logrus.NewEntry(l)
	}
	if reserved(root) {
		return nil, fmt.Errorf("%w: root %s", ErrReservedSender, root)
	}

	wopts := []ledger.Option{ledger.WithLogger(o.log.WithField("component", "ledger"))}
	for _, s := range o.sinks {
		wopts = append(wopts, ledger.WithSink(s))
	}
	n := &Node{
		world: ledger.NewWorld(wopts...),
		log:   o.log.WithField("component", "node"),
	}
	if err := n.bootstrap(ctx, root); err != nil {
		return nil, fmt.Errorf("genesis: %w", err)
	}
	n.log.WithFields(logrus.Fields{
		"root":  root.Short(),
		"dao":   n.addrs.DAO.Short(),
		"block": n.world.Block(),
	}).Info("genesis complete")
	return n, nil
}

// World exposes the underlying ledger.
func (n *Node) World() *ledger.World { return n.world }

// Addresses returns the genesis components.
func (n *Node) Addresses() Addresses { return n.addrs }

// AddSink attaches a sink for subsequent receipts.
func (n *Node) AddSink(s ledger.Sink) { n.world.AddSink(s) }

// Submit executes msg as a transaction. Reverts are returned both in the
// receipt and as the error.
func (n *Node) Submit(ctx context.Context, msg ledger.Msg) (*ledger.Receipt, error) {
	if reserved(msg.From) {
		return nil, fmt.Errorf("%w: %s", ErrReservedSender, msg.From)
	}
	return n.world.Transact(ctx, msg)
}

// Query runs a view call against the latest state.
func (n *Node) Query(ctx context.Context, from, to ident.Address, method string, args ...any) ([]any, error) {
	return n.world.Call(ctx, ledger.Msg{From: from, To: to, Method: method, Args: args})
}

func reserved(a ident.Address) bool {
	return a.IsZero() || a == ident.AnyEntity || a == ident.BurnEntity
}
