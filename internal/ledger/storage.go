package ledger

import (
	"fmt"
	"strings"

	"github.com/ppiankov/chainkernel/internal/ident"
)

// Storage is the key/value state owned by one address. Under delegate
// execution the owner is the calling proxy, not the code being run.
// Values must be treated as immutable once stored.
type Storage struct {
	w    *World
	addr ident.Address
}

// Owner returns the address that owns this storage.
func (s Storage) Owner() ident.Address { return s.addr }

// Get returns the value stored at key.
func (s Storage) Get(key string) (any, bool) {
	v, ok := s.w.storage[s.addr][key]
	return v, ok
}

// Set writes v at key and journals the previous value.
func (s Storage) Set(key string, v any) {
	slots := s.w.storage[s.addr]
	if slots == nil {
		slots = make(map[string]any)
		s.w.storage[s.addr] = slots
	}
	prev, existed := slots[key]
	s.w.journal.append(storageChange{addr: s.addr, key: key, prev: prev, existed: existed})
	slots[key] = v
}

// Delete clears key.
func (s Storage) Delete(key string) {
	slots := s.w.storage[s.addr]
	prev, existed := slots[key]
	if !existed {
		return
	}
	s.w.journal.append(storageChange{addr: s.addr, key: key, prev: prev, existed: true})
	delete(slots, key)
}

// Load reads key as T, returning the zero value when unset.
func Load[T any](s Storage, key string) T {
	var zero T
	v, ok := s.Get(key)
	if !ok {
		return zero
	}
	t, ok := v.(T)
	if !ok {
		return zero
	}
	return t
}

// Key joins parts into a storage key. Addresses and ids render as hex.
func Key(parts ...any) string {
	var b strings.Builder
	for i, p := range parts {
		if i > 0 {
			b.WriteByte('/')
		}
		fmt.Fprint(&b, p)
	}
	return b.String()
}
