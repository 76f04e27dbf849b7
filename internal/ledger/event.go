package ledger

import (
	"time"

	"github.com/ppiankov/chainkernel/internal/ident"
)

// Field is one named event argument. Events keep fields ordered so
// indexers and tests see the same shape every time.
type Field struct {
	Name  string `json:"name"`
	Value any    `json:"value"`
}

// F builds a Field.
func F(name string, value any) Field {
	return Field{Name: name, Value: value}
}

// Event is a structured log entry emitted by a component.
type Event struct {
	Address ident.Address `json:"address"`
	Name    string        `json:"name"`
	Fields  []Field       `json:"fields"`
	Index   int           `json:"index"`
}

// Get returns the value of the named field, or nil.
func (e Event) Get(name string) any {
	for _, f := range e.Fields {
		if f.Name == name {
			return f.Value
		}
	}
	return nil
}

// Status is the outcome of a transaction.
type Status string

const (
	StatusCommitted Status = "committed"
	StatusReverted  Status = "reverted"
)

// Receipt records one executed transaction.
type Receipt struct {
	TxID     string        `json:"tx_id"`
	Block    uint64        `json:"block"`
	From     ident.Address `json:"from"`
	To       ident.Address `json:"to"`
	Method   string        `json:"method"`
	Args     []any         `json:"args,omitempty"`
	Value    uint64        `json:"value,omitempty"`
	Created  ident.Address `json:"created"`
	Status   Status        `json:"status"`
	Reason   string        `json:"reason,omitempty"`
	Error    string        `json:"error,omitempty"`
	Return   []any         `json:"return,omitempty"`
	Events   []Event       `json:"events"`
	Time     time.Time     `json:"time"`
	Duration time.Duration `json:"duration"`
}

// Committed reports whether the transaction took effect.
func (r *Receipt) Committed() bool { return r.Status == StatusCommitted }

// EventsNamed returns the receipt's events with the given name, in order.
func (r *Receipt) EventsNamed(name string) []Event {
	var out []Event
	for _, e := range r.Events {
		if e.Name == name {
			out = append(out, e)
		}
	}
	return out
}

// Sink receives every finished transaction, committed or reverted, in
// execution order. Sinks run under the world lock and must not call back
// into the World.
type Sink interface {
	Publish(r *Receipt) error
}

// SinkFunc adapts a function to Sink.
type SinkFunc func(r *Receipt) error

// Publish calls fn(r).
func (fn SinkFunc) Publish(r *Receipt) error { return fn(r) }
