package compiler

import (
	"fmt"
	"strings"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/errors"
	"cuelang.org/go/cue/token"

	"github.com/roach88/procflow/internal/ir"
)

// CompileGraph parses a CUE value into a ProcessGraph.
// Uses CUE SDK's Go API directly (not CLI subprocess).
//
// The value is the file's top-level struct:
//
//	project_type: "residencial"
//	process: "n-revenue": {
//		source:   "Project"
//		trigger:  {variable: "status", operator: "EQUALS_TEXT", operand: "GANHO"}
//		produces: "Revenue"
//	}
//
// Nodes keep CUE declaration order. CompileGraph only checks structure;
// semantic checks against the registry are done by Validate.
func CompileGraph(v cue.Value) (*ir.ProcessGraph, error) {
	if err := v.Err(); err != nil {
		return nil, formatCUEError(err)
	}

	ptVal := v.LookupPath(cue.ParsePath("project_type"))
	if !ptVal.Exists() {
		return nil, &CompileError{
			Field:   "project_type",
			Message: "project_type is required",
			Pos:     v.Pos(),
		}
	}
	projectType, err := ptVal.String()
	if err != nil {
		return nil, formatCUEError(err)
	}
	if projectType == "" {
		return nil, &CompileError{
			Field:   "project_type",
			Message: "project_type must be non-empty",
			Pos:     ptVal.Pos(),
		}
	}

	graph := &ir.ProcessGraph{ProjectTypeID: projectType}

	// An empty graph is legal: the project type simply automates nothing.
	procVal := v.LookupPath(cue.ParsePath("process"))
	if !procVal.Exists() {
		return graph, nil
	}

	iter, err := procVal.Fields()
	if err != nil {
		return nil, formatCUEError(err)
	}
	for iter.Next() {
		node, err := compileNode(iter.Label(), iter.Value())
		if err != nil {
			return nil, err
		}
		graph.Nodes = append(graph.Nodes, *node)
	}

	return graph, nil
}

// CompileNode parses a single process node. The node id is the struct label,
// e.g. CompileNode(v.LookupPath(cue.ParsePath(`process."n-revenue"`))).
func CompileNode(v cue.Value) (*ir.ProcessNode, error) {
	if err := v.Err(); err != nil {
		return nil, formatCUEError(err)
	}
	var id string
	if sels := v.Path().Selectors(); len(sels) > 0 {
		// The id may be quoted in CUE, e.g. `process: "n-revenue": {...}`
		id = strings.Trim(sels[len(sels)-1].String(), `"`)
	}
	return compileNode(id, v)
}

func compileNode(id string, v cue.Value) (*ir.ProcessNode, error) {
	if err := v.Err(); err != nil {
		return nil, formatCUEError(err)
	}
	if id == "" {
		return nil, &CompileError{Field: "process", Message: "node id must be non-empty", Pos: v.Pos()}
	}
	field := func(name string) string { return fmt.Sprintf("process[%s].%s", id, name) }

	node := &ir.ProcessNode{ID: id}

	if parentVal := v.LookupPath(cue.ParsePath("parent")); parentVal.Exists() {
		parent, err := parentVal.String()
		if err != nil {
			return nil, formatCUEError(err)
		}
		node.ParentID = parent
	}

	source, err := requiredString(v, "source", field)
	if err != nil {
		return nil, err
	}
	node.SourceKind = ir.EntityKind(source)

	produces, err := requiredString(v, "produces", field)
	if err != nil {
		return nil, err
	}
	node.ProducedKind = ir.EntityKind(produces)

	node.Trigger, err = parseTrigger(v, field)
	if err != nil {
		return nil, err
	}

	if tmplVal := v.LookupPath(cue.ParsePath("template")); tmplVal.Exists() {
		tmpl, err := decodeValue(tmplVal)
		if err != nil {
			return nil, err
		}
		obj, ok := tmpl.(ir.IRObject)
		if !ok {
			return nil, &CompileError{Field: field("template"), Message: "template must be a struct", Pos: tmplVal.Pos()}
		}
		node.Template = obj
	}

	if posVal := v.LookupPath(cue.ParsePath("position")); posVal.Exists() {
		pos, err := parsePosition(posVal, field)
		if err != nil {
			return nil, err
		}
		node.Position = pos
	}

	return node, nil
}

func parseTrigger(v cue.Value, field func(string) string) (ir.Trigger, error) {
	var trigger ir.Trigger

	trigVal := v.LookupPath(cue.ParsePath("trigger"))
	if !trigVal.Exists() {
		return trigger, &CompileError{Field: field("trigger"), Message: "trigger is required", Pos: v.Pos()}
	}

	variable, err := requiredString(trigVal, "variable", func(name string) string { return field("trigger." + name) })
	if err != nil {
		return trigger, err
	}
	operator, err := requiredString(trigVal, "operator", func(name string) string { return field("trigger." + name) })
	if err != nil {
		return trigger, err
	}
	trigger.Variable = variable
	trigger.Operator = ir.OperatorKind(operator)

	operandVal := trigVal.LookupPath(cue.ParsePath("operand"))
	if !operandVal.Exists() {
		return trigger, &CompileError{Field: field("trigger.operand"), Message: "operand is required", Pos: trigVal.Pos()}
	}
	trigger.Operand, err = decodeValue(operandVal)
	if err != nil {
		return trigger, err
	}
	return trigger, nil
}

func parsePosition(v cue.Value, field func(string) string) (*ir.CanvasPosition, error) {
	pos := &ir.CanvasPosition{}
	for _, axis := range []struct {
		name string
		dst  *int64
	}{{"x", &pos.X}, {"y", &pos.Y}} {
		axisVal := v.LookupPath(cue.ParsePath(axis.name))
		if !axisVal.Exists() {
			continue
		}
		n, err := axisVal.Int64()
		if err != nil {
			return nil, &CompileError{
				Field:   field("position." + axis.name),
				Message: "must be an integer",
				Pos:     axisVal.Pos(),
			}
		}
		*axis.dst = n
	}
	return pos, nil
}

func requiredString(v cue.Value, name string, field func(string) string) (string, error) {
	val := v.LookupPath(cue.ParsePath(name))
	if !val.Exists() {
		return "", &CompileError{Field: field(name), Message: name + " is required", Pos: v.Pos()}
	}
	s, err := val.String()
	if err != nil {
		return "", &CompileError{Field: field(name), Message: "must be a string", Pos: val.Pos()}
	}
	if s == "" {
		return "", &CompileError{Field: field(name), Message: "must be non-empty", Pos: val.Pos()}
	}
	return s, nil
}

// decodeValue converts a concrete CUE value into an IR value. Numbers keep
// their exact decimal text (CUE numbers are arbitrary precision).
func decodeValue(v cue.Value) (ir.IRValue, error) {
	if err := v.Validate(cue.Concrete(true)); err != nil {
		return nil, formatCUEError(err)
	}
	data, err := v.MarshalJSON()
	if err != nil {
		return nil, formatCUEError(err)
	}
	val, err := ir.UnmarshalIRValue(data)
	if err != nil {
		return nil, &CompileError{Field: "value", Message: err.Error(), Pos: v.Pos()}
	}
	return val, nil
}

// CompileError represents a compilation error with source position.
type CompileError struct {
	Field   string
	Message string
	Pos     token.Pos
}

func (e *CompileError) Error() string {
	if e.Pos.IsValid() {
		return fmt.Sprintf("%s:%d:%d: %s: %s",
			e.Pos.Filename(), e.Pos.Line(), e.Pos.Column(),
			e.Field, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// formatCUEError extracts position info from CUE errors.
func formatCUEError(err error) error {
	if err == nil {
		return nil
	}

	// CUE errors may contain multiple errors
	errs := errors.Errors(err)
	if len(errs) == 0 {
		return err
	}

	// Return first error with position info
	firstErr := errs[0]
	positions := errors.Positions(firstErr)
	if len(positions) > 0 {
		return &CompileError{
			Field:   "cue",
			Message: firstErr.Error(),
			Pos:     positions[0],
		}
	}

	return err
}
