package eventlog

import (
	"github.com/ppiankov/chainkernel/internal/ident"
	"github.com/ppiankov/chainkernel/internal/ledger"
)

// Entry is one line in the hash-chained JSONL event log: one transaction.
// All fields are structs or slices (no maps) so json.Marshal output is
// deterministic and the chain hashes are reproducible.
type Entry struct {
	Timestamp string        `json:"ts"`
	TxID      string        `json:"tx_id"`
	Block     uint64        `json:"block"`
	From      ident.Address `json:"from"`
	To        ident.Address `json:"to"`
	Method    string        `json:"method"`
	Args      []any         `json:"args"`
	Value     uint64        `json:"value"`
	Deploy    bool          `json:"deploy,omitempty"`
	Status    string        `json:"status"`
	Reason    string        `json:"reason,omitempty"`
	Events    []string      `json:"events,omitempty"`
	PrevHash  string        `json:"prev_hash"`
}

// Committed reports whether the transaction was kept.
func (e Entry) Committed() bool { return e.Status == string(ledger.StatusCommitted) }

// Msg rebuilds the message that produced the entry.
func (e Entry) Msg() ledger.Msg {
	return ledger.Msg{
		TxID:   e.TxID,
		From:   e.From,
		To:     e.To,
		Value:  e.Value,
		Method: e.Method,
		Args:   e.Args,
	}
}

// FromReceipt flattens a receipt into an entry. PrevHash is set by Log.
func FromReceipt(r *ledger.Receipt) Entry {
	e := Entry{
		Timestamp: r.Time.UTC().Format(TimestampFormat),
		TxID:      r.TxID,
		Block:     r.Block,
		From:      r.From,
		To:        r.To,
		Method:    r.Method,
		Args:      r.Args,
		Value:     r.Value,
		Deploy:    !r.Created.IsZero(),
		Status:    string(r.Status),
		Reason:    r.Reason,
	}
	if e.Args == nil {
		e.Args = []any{}
	}
	for _, ev := range r.Events {
		e.Events = append(e.Events, ev.Name)
	}
	return e
}
