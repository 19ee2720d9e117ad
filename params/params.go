// Package params implements the declarative parameter schema node
// constructors validate against: mandatory/optional/defaulted typed
// values plus bound upstream node references.
package params

import (
	"fmt"

	"github.com/Polyrhythm/axiom-recorder/node"
)

// Kind enumerates the value shapes a parameter may declare.
type Kind interface {
	kind()
}

type intKind struct{ Min, Max int64 }
type floatKind struct{ Min, Max float64 }
type boolKind struct{}
type stringKind struct{}
type nodeInputKind struct{}
type listOfKind struct{ Element Kind }

func (intKind) kind()       {}
func (floatKind) kind()     {}
func (boolKind) kind()      {}
func (stringKind) kind()    {}
func (nodeInputKind) kind() {}
func (listOfKind) kind()    {}

// Int declares an integer parameter constrained to [min, max].
func Int(min, max int64) Kind { return intKind{Min: min, Max: max} }

// Float declares a floating-point parameter constrained to [min, max].
func Float(min, max float64) Kind { return floatKind{Min: min, Max: max} }

// Bool declares a boolean parameter.
func Bool() Kind { return boolKind{} }

// String declares a string parameter.
func String() Kind { return stringKind{} }

// NodeInput declares a parameter bound to an upstream node at graph
// construction time.
func NodeInput() Kind { return nodeInputKind{} }

// ListOf declares a parameter that is a homogeneous list of element.
func ListOf(element Kind) Kind { return listOfKind{Element: element} }

// Requiredness classifies whether a parameter must be supplied by the
// caller, is optional with no fallback, or falls back to a default.
type Requiredness uint8

const (
	Mandatory Requiredness = iota
	Optional
	WithDefault
)

// TypeDescriptor is one entry of a ParametersDescriptor: a parameter's
// value shape, whether it must be supplied, and its default when
// Requiredness is WithDefault (or Optional with a fallback).
type TypeDescriptor struct {
	Kind         Kind
	Requiredness Requiredness
	Default      any
}

// Descriptor is the full declarative schema for one node's
// constructor: an ordered sequence of named parameters.
type Descriptor []NamedDescriptor

// NamedDescriptor pairs a parameter name with its TypeDescriptor.
type NamedDescriptor struct {
	Name string
	Type TypeDescriptor
}

// Error reports a parameter that failed validation.
type Error struct {
	Name   string
	Reason string
}

func (e *Error) Error() string { return fmt.Sprintf("parameter %q: %s", e.Name, e.Reason) }

// Parameters is the materialized set of values a node constructor reads
// from. New stores the raw values as given, without checking them
// against a Descriptor. Take consumes a named value (removing it so
// repeated Take calls fail loudly instead of silently reusing a value)
// and checks only its Go type; it does not check the declared Kind or
// any range.
type Parameters struct {
	values map[string]any
	set    map[string]bool
}

// New builds Parameters from raw values, to be validated field-by-field
// as each node constructor calls Take/NodeInputOf.
func New(values map[string]any) *Parameters {
	set := make(map[string]bool, len(values))
	for k := range values {
		set[k] = true
	}
	return &Parameters{values: values, set: set}
}

// Has reports whether name was supplied by the caller.
func (p *Parameters) Has(name string) bool { return p.set[name] }

// Take consumes the named parameter as T, applying def when the value
// is absent (T's zero value if def is not provided by the caller's
// schema handling). Returns *Error when present but of the wrong Go
// type — schema-kind enforcement (range checks, etc.) is the
// caller's responsibility since Kind carries no type parameter.
func Take[T any](p *Parameters, name string, def T, required bool) (T, error) {
	raw, ok := p.values[name]
	if !ok {
		if required {
			var zero T
			return zero, &Error{Name: name, Reason: "missing mandatory parameter"}
		}
		return def, nil
	}
	v, ok := raw.(T)
	if !ok {
		var zero T
		return zero, &Error{Name: name, Reason: fmt.Sprintf("wrong type: expected %T, got %T", zero, raw)}
	}
	delete(p.values, name)
	return v, nil
}

// NodeInputOf consumes the named parameter as a bound upstream node
// reference.
func (p *Parameters) NodeInputOf(name string) (node.InputProcessingNode, error) {
	raw, ok := p.values[name]
	if !ok {
		return node.InputProcessingNode{}, &Error{Name: name, Reason: "missing mandatory node input"}
	}
	n, ok := raw.(node.Node)
	if !ok {
		return node.InputProcessingNode{}, &Error{Name: name, Reason: "value is not a node"}
	}
	delete(p.values, name)
	return node.InputProcessingNode{Upstream: n}, nil
}
