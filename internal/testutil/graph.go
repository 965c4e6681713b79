package testutil

import "github.com/roach88/procflow/internal/ir"

// NodeBuilder builds a process node fluently:
//
//	testutil.Node("rev").On(ir.KindProject, "status", ir.OpEqualsText, ir.IRString("GANHO")).
//		Produces(ir.KindRevenue).Build()
type NodeBuilder struct {
	n ir.ProcessNode
}

// Node starts a root node with the given id.
func Node(id string) *NodeBuilder {
	return &NodeBuilder{n: ir.ProcessNode{ID: id, Trigger: ir.Trigger{Operand: ir.IRNull{}}}}
}

// Under sets the parent node id.
func (b *NodeBuilder) Under(parentID string) *NodeBuilder {
	b.n.ParentID = parentID
	return b
}

// On sets the source kind and trigger.
func (b *NodeBuilder) On(source ir.EntityKind, variable string, op ir.OperatorKind, operand ir.IRValue) *NodeBuilder {
	b.n.SourceKind = source
	b.n.Trigger = ir.Trigger{Variable: variable, Operator: op, Operand: operand}
	return b
}

// Produces sets the generated kind.
func (b *NodeBuilder) Produces(kind ir.EntityKind) *NodeBuilder {
	b.n.ProducedKind = kind
	return b
}

// With sets the customization template.
func (b *NodeBuilder) With(template ir.IRObject) *NodeBuilder {
	b.n.Template = template
	return b
}

// Build returns the node.
func (b *NodeBuilder) Build() ir.ProcessNode {
	return b.n
}

// Graph assembles nodes into a graph.
func Graph(projectType string, nodes ...*NodeBuilder) *ir.ProcessGraph {
	g := &ir.ProcessGraph{ProjectTypeID: projectType, Nodes: make([]ir.ProcessNode, len(nodes))}
	for i, b := range nodes {
		g.Nodes[i] = b.Build()
	}
	return g
}

// Project returns a root Project snapshot.
func Project(id string, fields ir.IRObject) ir.EntitySnapshot {
	if fields == nil {
		fields = ir.IRObject{}
	}
	return ir.EntitySnapshot{Kind: ir.KindProject, ID: id, Fields: fields}
}

// Range builds a BETWEEN operand.
func Range(min, max int64) ir.IRObject {
	return ir.IRObject{"min": ir.NewIRInt(min), "max": ir.NewIRInt(max)}
}

// Texts builds an IN_LIST operand of text values.
func Texts(values ...string) ir.IRArray {
	out := make(ir.IRArray, len(values))
	for i, v := range values {
		out[i] = ir.IRString(v)
	}
	return out
}
