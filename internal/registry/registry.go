// Package registry is the compiled-in catalog of entity kinds the engine
// knows about: which fields each kind exposes to triggers, with which
// operators, and which kinds may be generated by process nodes.
//
// The catalog is closed and immutable. Lookups on an unknown kind return
// ErrUnknownKind (or panic in the Must forms): that is a programming error,
// not a runtime condition.
package registry

import (
	"errors"
	"fmt"
	"slices"

	"github.com/roach88/procflow/internal/ir"
)

// ErrUnknownKind is returned for entity kinds outside the catalog.
var ErrUnknownKind = errors.New("unknown entity kind")

// ValueType describes what a trigger variable holds.
type ValueType string

const (
	ValueText   ValueType = "text"
	ValueNumber ValueType = "number"
	ValueList   ValueType = "list"
)

// TriggerVariable is one field a kind exposes to triggers.
type TriggerVariable struct {
	Name      string            `json:"name"`
	Type      ValueType         `json:"type"`
	Operators []ir.OperatorKind `json:"operators"`
}

// EntityTypeSpec declares how the engine may use an entity kind.
type EntityTypeSpec struct {
	Kind        ir.EntityKind `json:"kind"`
	Description string        `json:"description"`

	// TriggerVariables in declaration order.
	TriggerVariables []TriggerVariable `json:"trigger_variables"`

	// Returnable kinds may be produced by a process node.
	Returnable bool `json:"returnable"`

	// Customizable kinds accept an author-supplied template.
	Customizable bool `json:"customizable"`

	GeneratableKinds []ir.EntityKind `json:"generatable_kinds"`

	// ProjectTypeField names the snapshot field that selects the process
	// graph. Only root kinds set it.
	ProjectTypeField string `json:"project_type_field,omitempty"`
}

// IsRoot reports whether entities of this kind start runs.
func (s EntityTypeSpec) IsRoot() bool {
	return s.ProjectTypeField != ""
}

// Variable returns the named trigger variable.
func (s EntityTypeSpec) Variable(name string) (TriggerVariable, bool) {
	for _, v := range s.TriggerVariables {
		if v.Name == name {
			return v, true
		}
	}
	return TriggerVariable{}, false
}

// CanGenerate reports whether kind is in GeneratableKinds.
func (s EntityTypeSpec) CanGenerate(kind ir.EntityKind) bool {
	return slices.Contains(s.GeneratableKinds, kind)
}

// SpecFor returns the spec for kind.
func SpecFor(kind ir.EntityKind) (EntityTypeSpec, error) {
	spec, ok := catalog[kind]
	if !ok {
		return EntityTypeSpec{}, fmt.Errorf("%w: %q", ErrUnknownKind, kind)
	}
	return spec, nil
}

// MustSpecFor is like SpecFor but panics on an unknown kind.
func MustSpecFor(kind ir.EntityKind) EntityTypeSpec {
	spec, err := SpecFor(kind)
	if err != nil {
		panic(err)
	}
	return spec
}

// IsKnown reports whether kind is in the catalog.
func IsKnown(kind ir.EntityKind) bool {
	_, ok := catalog[kind]
	return ok
}

// TriggerVariablesFor returns the trigger variables of kind, in declaration order.
func TriggerVariablesFor(kind ir.EntityKind) ([]TriggerVariable, error) {
	spec, err := SpecFor(kind)
	if err != nil {
		return nil, err
	}
	return slices.Clone(spec.TriggerVariables), nil
}

// AllowedOperators returns the operators allowed for variable on kind.
// An undeclared variable yields an empty set and no error.
func AllowedOperators(kind ir.EntityKind, variable string) ([]ir.OperatorKind, error) {
	spec, err := SpecFor(kind)
	if err != nil {
		return nil, err
	}
	v, ok := spec.Variable(variable)
	if !ok {
		return nil, nil
	}
	return slices.Clone(v.Operators), nil
}

// Allows reports whether operator is allowed for variable on kind.
func Allows(kind ir.EntityKind, variable string, op ir.OperatorKind) bool {
	ops, err := AllowedOperators(kind, variable)
	if err != nil {
		return false
	}
	return slices.Contains(ops, op)
}

// Kinds returns every kind in catalog order.
func Kinds() []ir.EntityKind {
	return slices.Clone(kindOrder)
}

// Specs returns every spec in catalog order.
func Specs() []EntityTypeSpec {
	specs := make([]EntityTypeSpec, len(kindOrder))
	for i, k := range kindOrder {
		specs[i] = catalog[k]
	}
	return specs
}
