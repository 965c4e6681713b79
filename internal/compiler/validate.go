package compiler

import (
	"errors"
	"fmt"
	"strings"

	"github.com/roach88/procflow/internal/condition"
	"github.com/roach88/procflow/internal/ir"
	"github.com/roach88/procflow/internal/registry"
)

// Validation error codes (E200-E299)
const (
	// Trigger errors (E201-E202, E206)
	ErrUndeclaredVariable = "E201" // trigger variable not declared for the source kind
	ErrOperatorNotAllowed = "E202" // operator not allowed for the variable
	ErrMalformedOperand   = "E206" // operand shape does not fit the operator

	// Kind errors (E203, E207, E211)
	ErrNotReturnable   = "E203" // produced kind cannot be generated
	ErrUnknownKind     = "E207" // source or produced kind is not in the registry
	ErrRootKindInvalid = "E211" // root node attached to a non-root kind

	// Structure errors (E204-E205, E208-E210)
	ErrCycle              = "E204" // parent chain loops back on itself
	ErrMultipleRootKinds  = "E205" // roots attach to more than one kind
	ErrDuplicateNodeID    = "E208" // node id declared twice
	ErrMissingParent      = "E209" // parent id not in the graph
	ErrSourceKindMismatch = "E210" // source kind differs from the parent's produced kind
)

// ValidationError represents one failed graph check. NodeID is empty for
// graph-level errors.
type ValidationError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
	Code    string `json:"code"`
	NodeID  string `json:"node_id,omitempty"`
}

// Error implements the error interface.
func (e ValidationError) Error() string {
	if e.NodeID != "" {
		return fmt.Sprintf("[%s] node %q: %s: %s", e.Code, e.NodeID, e.Field, e.Message)
	}
	return fmt.Sprintf("[%s] %s: %s", e.Code, e.Field, e.Message)
}

// ConfigurationError reports a graph that failed validation. A run against
// such a graph aborts before any node executes.
type ConfigurationError struct {
	ProjectTypeID string
	Errors        []ValidationError
}

func (e *ConfigurationError) Error() string {
	if len(e.Errors) == 0 {
		return fmt.Sprintf("graph %q is invalid", e.ProjectTypeID)
	}
	return fmt.Sprintf("graph %q is invalid: %d error(s), first: %s",
		e.ProjectTypeID, len(e.Errors), e.Errors[0].Error())
}

// Details renders each validation error on its own line.
func (e *ConfigurationError) Details() []string {
	details := make([]string, len(e.Errors))
	for i, ve := range e.Errors {
		details[i] = ve.Error()
	}
	return details
}

// IsConfigurationError checks if err is (or wraps) a ConfigurationError.
func IsConfigurationError(err error) bool {
	var ce *ConfigurationError
	return errors.As(err, &ce)
}

// Check validates the graph and returns a *ConfigurationError when any
// check fails, nil otherwise.
func Check(g *ir.ProcessGraph) error {
	if errs := Validate(g); len(errs) > 0 {
		return &ConfigurationError{ProjectTypeID: g.ProjectTypeID, Errors: errs}
	}
	return nil
}

// Validate checks a graph against the entity registry.
// Returns all errors found (does not fail-fast), in node declaration order
// followed by graph-level errors.
func Validate(g *ir.ProcessGraph) []ValidationError {
	var errs []ValidationError

	// First declaration wins for parent lookups.
	byID := make(map[string]ir.ProcessNode, len(g.Nodes))
	for i, n := range g.Nodes {
		// E208: duplicate id
		if _, dup := byID[n.ID]; dup {
			errs = append(errs, ValidationError{
				Field:   fmt.Sprintf("process[%d].id", i),
				Message: fmt.Sprintf("duplicate node id %q", n.ID),
				Code:    ErrDuplicateNodeID,
				NodeID:  n.ID,
			})
			continue
		}
		byID[n.ID] = n
	}

	for _, n := range g.Nodes {
		errs = append(errs, validateNode(n, byID)...)
	}

	errs = append(errs, validateRootKinds(g)...)
	errs = append(errs, findCycles(g, byID)...)

	return errs
}

func validateNode(n ir.ProcessNode, byID map[string]ir.ProcessNode) []ValidationError {
	var errs []ValidationError
	add := func(field, code, format string, args ...any) {
		errs = append(errs, ValidationError{
			Field:   field,
			Message: fmt.Sprintf(format, args...),
			Code:    code,
			NodeID:  n.ID,
		})
	}

	sourceKnown := registry.IsKnown(n.SourceKind)
	// E207: unknown kinds
	if !sourceKnown {
		add("source", ErrUnknownKind, "unknown entity kind %q", n.SourceKind)
	}
	if !registry.IsKnown(n.ProducedKind) {
		add("produces", ErrUnknownKind, "unknown entity kind %q", n.ProducedKind)
	} else if spec := registry.MustSpecFor(n.ProducedKind); !spec.Returnable {
		// E203: produced kind must be returnable
		add("produces", ErrNotReturnable, "%s cannot be generated by a process node", n.ProducedKind)
	}

	// GeneratableKinds is advisory; only returnability is enforced.

	if sourceKnown {
		validateTrigger(n, add)
	}

	if n.IsRoot() {
		// E211: roots attach to a root kind
		if sourceKnown && !registry.MustSpecFor(n.SourceKind).IsRoot() {
			add("source", ErrRootKindInvalid, "root node attached to %s, which is not a root kind", n.SourceKind)
		}
		return errs
	}

	parent, ok := byID[n.ParentID]
	switch {
	case !ok:
		// E209: parent must exist
		add("parent", ErrMissingParent, "parent %q not found", n.ParentID)
	case parent.ProducedKind != n.SourceKind:
		// E210: a child reads the record its parent produced
		add("source", ErrSourceKindMismatch, "source %s does not match parent %q which produces %s",
			n.SourceKind, parent.ID, parent.ProducedKind)
	}

	return errs
}

// validateTrigger runs E201, E202 and E206, stopping at the first failure.
func validateTrigger(n ir.ProcessNode, add func(field, code, format string, args ...any)) {
	spec := registry.MustSpecFor(n.SourceKind)
	variable, declared := spec.Variable(n.Trigger.Variable)
	if !declared {
		add("trigger.variable", ErrUndeclaredVariable, "%s has no trigger variable %q (declared: %s)",
			n.SourceKind, n.Trigger.Variable, strings.Join(variableNames(spec), ", "))
		return
	}

	allowed := false
	for _, op := range variable.Operators {
		if op == n.Trigger.Operator {
			allowed = true
			break
		}
	}
	if !allowed {
		add("trigger.operator", ErrOperatorNotAllowed, "operator %s not allowed for %s.%s",
			n.Trigger.Operator, n.SourceKind, variable.Name)
		return
	}

	if err := condition.CheckOperand(n.Trigger.Operator, n.Trigger.Operand); err != nil {
		add("trigger.operand", ErrMalformedOperand, "%v", err)
	}
}

func variableNames(spec registry.EntityTypeSpec) []string {
	names := make([]string, len(spec.TriggerVariables))
	for i, v := range spec.TriggerVariables {
		names[i] = v.Name
	}
	return names
}

// validateRootKinds enforces E205: one graph, one root kind.
func validateRootKinds(g *ir.ProcessGraph) []ValidationError {
	var kinds []ir.EntityKind
	seen := make(map[ir.EntityKind]bool)
	for _, n := range g.Nodes {
		if n.IsRoot() && !seen[n.SourceKind] {
			seen[n.SourceKind] = true
			kinds = append(kinds, n.SourceKind)
		}
	}
	if len(kinds) <= 1 {
		return nil
	}
	names := make([]string, len(kinds))
	for i, k := range kinds {
		names[i] = string(k)
	}
	return []ValidationError{{
		Field:   "process",
		Message: fmt.Sprintf("root nodes attach to more than one kind: %s", strings.Join(names, ", ")),
		Code:    ErrMultipleRootKinds,
	}}
}
