// Package ident defines the 20-byte entity addresses and 32-byte opaque
// identifiers shared by every kernel component. Roles, namespaces and app
// ids are derived from human-readable names with a one-way hash so all
// components agree on their meaning without a lookup table.
package ident

import (
	"encoding/hex"
	"fmt"
	"strings"

	"golang.org/x/crypto/sha3"
)

// Address identifies an entity or a deployed component.
type Address [20]byte

// ID is an opaque 32-byte identifier (role, namespace, app id, package name).
type ID [32]byte

// ZeroAddress is the unset address.
var ZeroAddress Address

var (
	// AnyEntity holds a permission on behalf of every caller.
	AnyEntity = Address{0xff, 0xff, 0xff, 0xff, 0xff, 0xff, 0xff, 0xff, 0xff, 0xff,
		0xff, 0xff, 0xff, 0xff, 0xff, 0xff, 0xff, 0xff, 0xff, 0xff}
	// BurnEntity marks a permission manager that can never act again.
	BurnEntity = Address{19: 0x01}
)

// Keccak returns the legacy Keccak-256 hash of name.
func Keccak(name string) ID {
	return keccak([]byte(name))
}

func keccak(parts ...[]byte) ID {
	h := sha3.NewLegacyKeccak256()
	for _, p := range parts {
		h.Write(p)
	}
	var id ID
	copy(id[:], h.Sum(nil))
	return id
}

// NameHash computes the recursive hash of a dotted name ("vault.apm.eth"):
// the hash of the parent node concatenated with the hash of the label.
// The empty name hashes to the zero ID.
func NameHash(name string) ID {
	var node ID
	if name == "" {
		return node
	}
	labels := strings.Split(name, ".")
	for i := len(labels) - 1; i >= 0; i-- {
		label := Keccak(labels[i])
		node = keccak(node[:], label[:])
	}
	return node
}

// EntityFromName derives a stable address for a human-named caller.
func EntityFromName(name string) Address {
	h := Keccak(name)
	var a Address
	copy(a[:], h[12:])
	return a
}

// DeriveAddress returns the address of the nonce-th component created by
// creator.
func DeriveAddress(creator Address, nonce uint64) Address {
	var n [8]byte
	for i := 0; i < 8; i++ {
		n[7-i] = byte(nonce >> (8 * i))
	}
	h := keccak(creator[:], n[:])
	var a Address
	copy(a[:], h[12:])
	return a
}

// IsZero reports whether a is the unset address.
func (a Address) IsZero() bool { return a == ZeroAddress }

// Hex returns the 0x-prefixed lowercase hex form.
func (a Address) Hex() string { return "0x" + hex.EncodeToString(a[:]) }

func (a Address) String() string { return a.Hex() }

// Short returns an abbreviated form for logs.
func (a Address) Short() string {
	h := a.Hex()
	return h[:6] + ".." + h[len(h)-4:]
}

// MarshalText implements encoding.TextMarshaler.
func (a Address) MarshalText() ([]byte, error) { return []byte(a.Hex()), nil }

// UnmarshalText implements encoding.TextUnmarshaler.
func (a *Address) UnmarshalText(b []byte) error {
	p, err := ParseAddress(string(b))
	if err != nil {
		return err
	}
	*a = p
	return nil
}

// DecodeArg accepts an Address or its hex form.
func (a *Address) DecodeArg(v any) error {
	switch x := v.(type) {
	case Address:
		*a = x
		return nil
	case string:
		return a.UnmarshalText([]byte(x))
	case nil:
		*a = ZeroAddress
		return nil
	default:
		return fmt.Errorf("cannot use %T as address", v)
	}
}

// ParseAddress parses a 0x-prefixed (or bare) 40-digit hex address.
func ParseAddress(s string) (Address, error) {
	var a Address
	b, err := decodeHex(s, len(a))
	if err != nil {
		return a, fmt.Errorf("invalid address %q: %w", s, err)
	}
	copy(a[:], b)
	return a, nil
}

// IsZero reports whether id is all zeroes.
func (id ID) IsZero() bool { return id == ID{} }

// Hex returns the 0x-prefixed lowercase hex form.
func (id ID) Hex() string { return "0x" + hex.EncodeToString(id[:]) }

func (id ID) String() string { return id.Hex() }

// Short returns an abbreviated form for logs.
func (id ID) Short() string {
	h := id.Hex()
	return h[:10]
}

// MarshalText implements encoding.TextMarshaler.
func (id ID) MarshalText() ([]byte, error) { return []byte(id.Hex()), nil }

// UnmarshalText implements encoding.TextUnmarshaler.
func (id *ID) UnmarshalText(b []byte) error {
	p, err := ParseID(string(b))
	if err != nil {
		return err
	}
	*id = p
	return nil
}

// DecodeArg accepts an ID or its hex form.
func (id *ID) DecodeArg(v any) error {
	switch x := v.(type) {
	case ID:
		*id = x
		return nil
	case string:
		return id.UnmarshalText([]byte(x))
	case nil:
		*id = ID{}
		return nil
	default:
		return fmt.Errorf("cannot use %T as id", v)
	}
}

// ParseID parses a 0x-prefixed (or bare) 64-digit hex identifier.
func ParseID(s string) (ID, error) {
	var id ID
	b, err := decodeHex(s, len(id))
	if err != nil {
		return id, fmt.Errorf("invalid id %q: %w", s, err)
	}
	copy(id[:], b)
	return id, nil
}

// RoleID resolves a hex identifier or, failing that, hashes the string as
// a role name ("APP_MANAGER_ROLE").
func RoleID(s string) ID {
	if id, err := ParseID(s); err == nil {
		return id
	}
	return Keccak(s)
}

func decodeHex(s string, size int) ([]byte, error) {
	s = strings.TrimPrefix(strings.TrimPrefix(s, "0x"), "0X")
	if len(s) != size*2 {
		return nil, fmt.Errorf("expected %d hex digits, got %d", size*2, len(s))
	}
	return hex.DecodeString(s)
}
