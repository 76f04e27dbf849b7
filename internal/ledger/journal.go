package ledger

import "github.com/ppiankov/chainkernel/internal/ident"

// journalEntry undoes one state change.
type journalEntry interface {
	revert(w *World)
}

type journal struct {
	entries []journalEntry
}

func (j *journal) append(e journalEntry) {
	j.entries = append(j.entries, e)
}

func (j *journal) snapshot() int {
	return len(j.entries)
}

// revertTo undoes every change recorded after snapshot id, newest first.
func (j *journal) revertTo(w *World, id int) {
	for i := len(j.entries) - 1; i >= id; i-- {
		j.entries[i].revert(w)
	}
	j.entries = j.entries[:id]
}

type storageChange struct {
	addr    ident.Address
	key     string
	prev    any
	existed bool
}

func (c storageChange) revert(w *World) {
	slots := w.storage[c.addr]
	if c.existed {
		slots[c.key] = c.prev
		return
	}
	delete(slots, c.key)
}

type balanceChange struct {
	addr ident.Address
	prev uint64
}

func (c balanceChange) revert(w *World) {
	w.balances[c.addr] = c.prev
}

type nonceChange struct {
	addr ident.Address
	prev uint64
}

func (c nonceChange) revert(w *World) {
	w.nonces[c.addr] = c.prev
}

type codeChange struct {
	addr ident.Address
}

func (c codeChange) revert(w *World) {
	delete(w.code, c.addr)
}

type eventChange struct {
	prevLen int
}

func (c eventChange) revert(w *World) {
	w.pending = w.pending[:c.prevLen]
}
