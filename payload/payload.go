// Package payload implements the type-erased, shareable handle nodes use
// to pass values along graph edges without the graph itself knowing the
// concrete frame/residency type each edge carries.
package payload

import (
	"fmt"
	"reflect"
)

// Payload is a type-erased, cheaply cloneable container for any value a
// node can emit — typically a *frame.Frame[*buffer.HostBuffer] or
// *frame.Frame[*buffer.DeviceBuffer], but deliberately not restricted to
// those so future payload kinds don't require a graph-wide change.
//
// Cloning a Payload (simple Go assignment — Payload is a small value type
// wrapping an interface) never copies the contained value; both copies
// share the same underlying data.
type Payload struct {
	value    any
	typeName string
}

// Of wraps value in a Payload, recording its concrete type name for
// diagnostics and downcast error messages.
func Of(value any) Payload {
	return Payload{value: value, typeName: typeNameOf(value)}
}

// Empty returns a Payload carrying a unit value — used where a node must
// produce a Payload but has nothing meaningful to emit (e.g. a sink that
// only has side effects).
func Empty() Payload {
	return Payload{value: struct{}{}, typeName: "()"}
}

// TypeName reports the human-readable type name of the contained value.
func (p Payload) TypeName() string { return p.typeName }

// IsEmpty reports whether p was constructed with Empty.
func (p Payload) IsEmpty() bool { return p.typeName == "()" }

func typeNameOf(v any) string {
	t := reflect.TypeOf(v)
	if t == nil {
		return "<nil>"
	}
	return t.String()
}

// WrongPayloadType is returned by Downcast when the payload's concrete
// type does not match the requested type exactly.
type WrongPayloadType struct {
	Expected string
	Actual   string
}

func (e *WrongPayloadType) Error() string {
	return fmt.Sprintf("payload: wanted a value of type %s, but the payload was of type %s", e.Expected, e.Actual)
}

// Downcast extracts a T from p. Downcasting succeeds only when p's stored
// type matches T exactly (no implicit conversions); a mismatch returns
// *WrongPayloadType carrying both the expected and actual type names.
func Downcast[T any](p Payload) (T, error) {
	var zero T
	v, ok := p.value.(T)
	if !ok {
		return zero, &WrongPayloadType{Expected: typeNameOf(zero), Actual: p.typeName}
	}
	return v, nil
}
