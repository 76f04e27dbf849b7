package ledger

import (
	"encoding/json"
	"fmt"
	"math"
	"reflect"
)

// Handler implements one method of a component.
type Handler func(f *Frame, args Args) ([]any, error)

// Method describes one entry in a component's selector table.
type Method struct {
	Handler Handler
	// View methods never write; they are the only methods allowed in
	// static frames and are never re-entrancy guarded.
	View bool
	// Payable methods accept value.
	Payable bool
	// NonReentrant methods fail fast if the same storage owner already
	// has a NonReentrant method on the call stack.
	NonReentrant bool
}

// MethodTable maps method names to their descriptors.
type MethodTable map[string]Method

// Merge returns a table holding base overridden by t.
func (t MethodTable) Merge(base MethodTable) MethodTable {
	out := make(MethodTable, len(base)+len(t))
	for k, v := range base {
		out[k] = v
	}
	for k, v := range t {
		out[k] = v
	}
	return out
}

// Contract is deployable code. Implementations are stateless: all state
// lives in the Storage of the frame they run in.
type Contract interface {
	Methods() MethodTable
}

// Constructor runs once when the contract is deployed, in the frame of
// the new address.
type Constructor interface {
	Construct(f *Frame, args Args) error
}

// Fallback receives calls for methods missing from the table.
type Fallback interface {
	Fallback(f *Frame, method string, args Args) ([]any, error)
}

// Invocation is a deferred call: a method name and its arguments.
type Invocation struct {
	Method string `json:"method"`
	Args   []any  `json:"args,omitempty"`
}

// DecodeArg accepts an Invocation, a pointer to one, or its JSON object form.
func (inv *Invocation) DecodeArg(v any) error {
	switch x := v.(type) {
	case Invocation:
		*inv = x
		return nil
	case *Invocation:
		if x != nil {
			*inv = *x
		}
		return nil
	case nil:
		*inv = Invocation{}
		return nil
	case map[string]any:
		m, _ := x["method"].(string)
		inv.Method = m
		inv.Args = nil
		if raw, ok := x["args"].([]any); ok {
			inv.Args = raw
		}
		return nil
	default:
		return fmt.Errorf("cannot use %T as invocation", v)
	}
}

// ArgDecoder is implemented by argument types that convert themselves
// from native or JSON-decoded values.
type ArgDecoder interface {
	DecodeArg(v any) error
}

// Args are the positional arguments of a call.
type Args []any

// Decode assigns each argument to the matching destination pointer.
// The argument count must match exactly.
func (a Args) Decode(dst ...any) error {
	if len(a) != len(dst) {
		return Revertf(ErrBadArgs.Reason, "expected %d arguments, got %d", len(dst), len(a))
	}
	for i, d := range dst {
		if err := decodeArg(a[i], d); err != nil {
			return Revertf(ErrBadArgs.Reason, "argument %d: %v", i, err)
		}
	}
	return nil
}

func decodeArg(v any, dst any) error {
	if d, ok := dst.(ArgDecoder); ok {
		return d.DecodeArg(v)
	}
	switch p := dst.(type) {
	case *any:
		*p = v
		return nil
	case *string:
		s, ok := v.(string)
		if !ok {
			return fmt.Errorf("cannot use %T as string", v)
		}
		*p = s
		return nil
	case *bool:
		b, ok := v.(bool)
		if !ok {
			return fmt.Errorf("cannot use %T as bool", v)
		}
		*p = b
		return nil
	case *uint64:
		n, err := ToUint64(v)
		if err != nil {
			return err
		}
		*p = n
		return nil
	case *uint8:
		n, err := ToUint64(v)
		if err != nil {
			return err
		}
		if n > math.MaxUint8 {
			return fmt.Errorf("%d overflows uint8", n)
		}
		*p = uint8(n)
		return nil
	}

	rv := reflect.ValueOf(dst)
	if rv.Kind() != reflect.Pointer || rv.IsNil() {
		return fmt.Errorf("destination must be a non-nil pointer, got %T", dst)
	}
	elem := rv.Elem()
	if v == nil {
		elem.Set(reflect.Zero(elem.Type()))
		return nil
	}
	val := reflect.ValueOf(v)
	if val.Type().AssignableTo(elem.Type()) {
		elem.Set(val)
		return nil
	}
	if val.Type().ConvertibleTo(elem.Type()) && val.Kind() == elem.Kind() {
		elem.Set(val.Convert(elem.Type()))
		return nil
	}
	return fmt.Errorf("cannot use %T as %s", v, elem.Type())
}

// ToUint64 converts native integers, integral floats and json.Number.
func ToUint64(v any) (uint64, error) {
	switch n := v.(type) {
	case uint64:
		return n, nil
	case uint:
		return uint64(n), nil
	case uint8:
		return uint64(n), nil
	case uint16:
		return uint64(n), nil
	case uint32:
		return uint64(n), nil
	case int:
		if n < 0 {
			return 0, fmt.Errorf("negative value %d", n)
		}
		return uint64(n), nil
	case int64:
		if n < 0 {
			return 0, fmt.Errorf("negative value %d", n)
		}
		return uint64(n), nil
	case float64:
		if n < 0 || n != math.Trunc(n) || n >= 1<<64 {
			return 0, fmt.Errorf("%v is not an unsigned integer", n)
		}
		return uint64(n), nil
	case json.Number:
		var u uint64
		if _, err := fmt.Sscan(n.String(), &u); err != nil {
			return 0, fmt.Errorf("%q is not an unsigned integer", n.String())
		}
		return u, nil
	default:
		return 0, fmt.Errorf("cannot use %T as integer", v)
	}
}

// Return decodes the index-th return value of a call into T.
func Return[T any](ret []any, index int) (T, error) {
	var zero T
	if index >= len(ret) {
		return zero, Revertf(ErrBadReturn.Reason, "missing return value %d", index)
	}
	t, ok := ret[index].(T)
	if !ok {
		return zero, Revertf(ErrBadReturn.Reason, "return value %d is %T", index, ret[index])
	}
	return t, nil
}

// First unpacks the first return value of a call result.
func First[T any](ret []any, err error) (T, error) {
	if err != nil {
		var zero T
		return zero, err
	}
	return Return[T](ret, 0)
}
