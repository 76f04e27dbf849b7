// Package apm is the package registry: repos holding the semantic version
// history of an app, and a registry that creates repos by name.
package apm

import (
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/ppiankov/chainkernel/internal/ledger"
)

// Version is a (major, minor, patch) triple.
type Version [3]uint16

// NewVersion builds a version, rejecting fields that do not fit 16 bits.
func NewVersion(major, minor, patch uint64) (Version, error) {
	var v Version
	for i, n := range []uint64{major, minor, patch} {
		if n > math.MaxUint16 {
			return v, fmt.Errorf("version field %d overflows: %d", i, n)
		}
		v[i] = uint16(n)
	}
	return v, nil
}

// ParseVersion parses "1.2.3", with an optional leading "v".
func ParseVersion(s string) (Version, error) {
	parts := strings.Split(strings.TrimPrefix(s, "v"), ".")
	if len(parts) != 3 {
		return Version{}, fmt.Errorf("invalid version %q: want major.minor.patch", s)
	}
	var n [3]uint64
	for i, p := range parts {
		u, err := strconv.ParseUint(p, 10, 64)
		if err != nil {
			return Version{}, fmt.Errorf("invalid version %q: %w", s, err)
		}
		n[i] = u
	}
	v, err := NewVersion(n[0], n[1], n[2])
	if err != nil {
		return Version{}, fmt.Errorf("invalid version %q: %w", s, err)
	}
	return v, nil
}

func (v Version) String() string {
	return fmt.Sprintf("%d.%d.%d", v[0], v[1], v[2])
}

func (v Version) IsZero() bool { return v == Version{} }

func (v Version) MarshalText() ([]byte, error) { return []byte(v.String()), nil }

func (v *Version) UnmarshalText(b []byte) error {
	p, err := ParseVersion(string(b))
	if err != nil {
		return err
	}
	*v = p
	return nil
}

// DecodeArg accepts a Version, "1.2.3" or a list of three numbers.
func (v *Version) DecodeArg(a any) error {
	switch x := a.(type) {
	case Version:
		*v = x
		return nil
	case string:
		return v.UnmarshalText([]byte(x))
	case []any:
		if len(x) != 3 {
			return fmt.Errorf("version needs 3 fields, got %d", len(x))
		}
		var n [3]uint64
		for i, e := range x {
			u, err := ledger.ToUint64(e)
			if err != nil {
				return err
			}
			n[i] = u
		}
		p, err := NewVersion(n[0], n[1], n[2])
		if err != nil {
			return err
		}
		*v = p
		return nil
	default:
		return fmt.Errorf("cannot use %T as version", a)
	}
}

// wideVersion holds version fields before the 16-bit check, so views can
// answer for versions no repo could store.
type wideVersion [3]uint64

// DecodeArg accepts the same forms as Version without the field limit.
func (w *wideVersion) DecodeArg(a any) error {
	switch x := a.(type) {
	case Version:
		*w = wideVersion{uint64(x[0]), uint64(x[1]), uint64(x[2])}
		return nil
	case string:
		parts := strings.Split(strings.TrimPrefix(x, "v"), ".")
		if len(parts) != 3 {
			return fmt.Errorf("invalid version %q: want major.minor.patch", x)
		}
		for i, p := range parts {
			u, err := strconv.ParseUint(p, 10, 64)
			if err != nil {
				return fmt.Errorf("invalid version %q: %w", x, err)
			}
			w[i] = u
		}
		return nil
	case []any:
		if len(x) != 3 {
			return fmt.Errorf("version needs 3 fields, got %d", len(x))
		}
		for i, e := range x {
			u, err := ledger.ToUint64(e)
			if err != nil {
				return err
			}
			w[i] = u
		}
		return nil
	default:
		return fmt.Errorf("cannot use %T as version", a)
	}
}

// narrow returns w as a Version; false when a field overflows.
func (w wideVersion) narrow() (Version, bool) {
	v, err := NewVersion(w[0], w[1], w[2])
	return v, err == nil
}

// IsValidBump reports whether to follows from in exactly one step: one
// field goes up by one and every field after it is zero.
func IsValidBump(from, to Version) bool {
	bumped := false
	for i := range from {
		switch {
		case bumped:
			if to[i] != 0 {
				return false
			}
		case to[i] != from[i]:
			if to[i] < from[i] || to[i]-from[i] != 1 {
				return false
			}
			bumped = true
		}
	}
	return bumped
}
