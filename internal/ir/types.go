package ir

import (
	"encoding/json"
	"fmt"
)

// EntityKind names a business entity kind known to the engine.
type EntityKind string

// Entity kinds. The set is closed; see internal/registry for their specs.
const (
	KindProject      EntityKind = "Project"
	KindServiceOrder EntityKind = "ServiceOrder"
	KindPurchase     EntityKind = "Purchase"
	KindRevenue      EntityKind = "Revenue"
	KindActivity     EntityKind = "Activity"
	KindNotification EntityKind = "Notification"
	KindCommission   EntityKind = "Commission"
)

// OperatorKind is a trigger comparison operator.
type OperatorKind string

// Trigger operators. Operand shapes:
//   - EQUALS_TEXT, EQUALS_NUMBER, GREATER_THAN, LESS_THAN: a single value
//   - BETWEEN: an object {min, max}
//   - IN_LIST: an array of values
const (
	OpEqualsText   OperatorKind = "EQUALS_TEXT"
	OpEqualsNumber OperatorKind = "EQUALS_NUMBER"
	OpGreaterThan  OperatorKind = "GREATER_THAN"
	OpLessThan     OperatorKind = "LESS_THAN"
	OpBetween      OperatorKind = "BETWEEN"
	OpInList       OperatorKind = "IN_LIST"
)

// Operators lists every operator in a stable order.
var Operators = []OperatorKind{
	OpEqualsText, OpEqualsNumber, OpGreaterThan, OpLessThan, OpBetween, OpInList,
}

// Trigger is the activation condition of a process node, evaluated against
// the parent entity's field snapshot.
type Trigger struct {
	Variable string       `json:"variable"`
	Operator OperatorKind `json:"operator"`
	Operand  IRValue      `json:"operand"`
}

// UnmarshalJSON implements json.Unmarshaler; Operand is a sealed interface.
func (t *Trigger) UnmarshalJSON(data []byte) error {
	var raw struct {
		Variable string          `json:"variable"`
		Operator OperatorKind    `json:"operator"`
		Operand  json.RawMessage `json:"operand"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	t.Variable = raw.Variable
	t.Operator = raw.Operator
	t.Operand = IRNull{}
	if len(raw.Operand) > 0 {
		v, err := UnmarshalIRValue(raw.Operand)
		if err != nil {
			return fmt.Errorf("trigger operand: %w", err)
		}
		t.Operand = v
	}
	return nil
}

// CanvasPosition is where the authoring tool draws a node.
// Presentation only; the engine never reads it.
type CanvasPosition struct {
	X int64 `json:"x"`
	Y int64 `json:"y"`
}

// ProcessNode is one rule of the automation graph: when Trigger holds for
// the parent entity (of SourceKind), materialize an entity of ProducedKind.
type ProcessNode struct {
	ID           string          `json:"id"`
	ParentID     string          `json:"parent_id,omitempty"` // Empty for roots
	SourceKind   EntityKind      `json:"source_kind"`
	Trigger      Trigger         `json:"trigger"`
	ProducedKind EntityKind      `json:"produced_kind"`
	Template     IRObject        `json:"template,omitempty"`
	Position     *CanvasPosition `json:"position,omitempty"`
}

// IsRoot reports whether the node attaches directly to a root entity.
func (n ProcessNode) IsRoot() bool {
	return n.ParentID == ""
}

// ProcessGraph is the automation forest configured for one project type.
// Nodes are kept in declaration order; sibling processing follows it.
type ProcessGraph struct {
	ProjectTypeID string        `json:"project_type_id"`
	Nodes         []ProcessNode `json:"nodes"`
}

// Node returns the node with the given id.
func (g *ProcessGraph) Node(id string) (ProcessNode, bool) {
	for _, n := range g.Nodes {
		if n.ID == id {
			return n, true
		}
	}
	return ProcessNode{}, false
}

// Children returns the child nodes of every node, in declaration order.
func (g *ProcessGraph) Children() map[string][]ProcessNode {
	children := make(map[string][]ProcessNode)
	for _, n := range g.Nodes {
		if n.IsRoot() {
			continue
		}
		children[n.ParentID] = append(children[n.ParentID], n)
	}
	return children
}

// Roots returns the root nodes bound to the given entity kind, in declaration order.
func (g *ProcessGraph) Roots(kind EntityKind) []ProcessNode {
	var roots []ProcessNode
	for _, n := range g.Nodes {
		if n.IsRoot() && n.SourceKind == kind {
			roots = append(roots, n)
		}
	}
	return roots
}

// EntitySnapshot is the field state of one entity at the moment a run reads it.
type EntitySnapshot struct {
	Kind   EntityKind `json:"kind"`
	ID     string     `json:"id"`
	Fields IRObject   `json:"fields"`
}

// GeneratedRecord is a business object created by materialization, with its
// origin key (OriginNodeID, RootEntityID).
type GeneratedRecord struct {
	ID             string     `json:"id"`
	Kind           EntityKind `json:"kind"`
	OriginNodeID   string     `json:"origin_node_id"`
	RootEntityID   string     `json:"root_entity_id"`
	RootEntityKind EntityKind `json:"root_entity_kind"`
	Payload        IRObject   `json:"payload"`
	PayloadHash    string     `json:"payload_hash"`
	Revision       int64      `json:"revision"` // Incremented when the payload changes
	Seq            int64      `json:"seq"`      // Store-assigned creation order
}

// Snapshot returns the record as the parent snapshot for its child nodes.
func (r GeneratedRecord) Snapshot() EntitySnapshot {
	return EntitySnapshot{Kind: r.Kind, ID: r.ID, Fields: r.Payload}
}

// Outcome is the per-node result of a run.
type Outcome string

const (
	OutcomeSatisfied Outcome = "Satisfied"
	OutcomeSkipped   Outcome = "Skipped"
	OutcomeFailed    Outcome = "Failed"
)

// NodeOutcome is one entry of an ExecutionReport.
type NodeOutcome struct {
	NodeID   string     `json:"node_id"`
	Kind     EntityKind `json:"kind"`
	Outcome  Outcome    `json:"outcome"`
	Reason   string     `json:"reason,omitempty"`
	RecordID string     `json:"record_id,omitempty"`
}

// Abort codes for runs that stop as a whole.
const (
	AbortGraphTooLarge        = "GRAPH_TOO_LARGE"
	AbortConfigurationInvalid = "CONFIGURATION_INVALID"
)

// RunAbort describes why a run stopped before draining its queue.
type RunAbort struct {
	Code    string   `json:"code"`
	Message string   `json:"message"`
	Details []string `json:"details,omitempty"`
}

// ExecutionReport is the outcome of one run, node by node, in processing order.
type ExecutionReport struct {
	RunID         string        `json:"run_id"`
	ProjectTypeID string        `json:"project_type_id,omitempty"`
	GraphHash     string        `json:"graph_hash,omitempty"`
	RootKind      EntityKind    `json:"root_kind"`
	RootEntityID  string        `json:"root_entity_id"`
	RootFields    IRObject      `json:"root_fields,omitempty"`
	Nodes         []NodeOutcome `json:"nodes"`
	Abort         *RunAbort     `json:"abort,omitempty"`
}

// Aborted reports whether the run stopped as a whole.
func (r *ExecutionReport) Aborted() bool {
	return r.Abort != nil
}

// Outcome returns the entry for nodeID.
func (r *ExecutionReport) Outcome(nodeID string) (NodeOutcome, bool) {
	for _, n := range r.Nodes {
		if n.NodeID == nodeID {
			return n, true
		}
	}
	return NodeOutcome{}, false
}

// Count returns how many nodes ended with the given outcome.
func (r *ExecutionReport) Count(o Outcome) int {
	count := 0
	for _, n := range r.Nodes {
		if n.Outcome == o {
			count++
		}
	}
	return count
}

// NodeIDs returns the node ids in report order.
func (r *ExecutionReport) NodeIDs() []string {
	ids := make([]string, len(r.Nodes))
	for i, n := range r.Nodes {
		ids[i] = n.NodeID
	}
	return ids
}

// Root returns the snapshot of the entity the run started from.
func (r *ExecutionReport) Root() EntitySnapshot {
	return EntitySnapshot{Kind: r.RootKind, ID: r.RootEntityID, Fields: r.RootFields}
}
