package store

import (
	"path/filepath"
	"testing"

	"github.com/roach88/procflow/internal/ir"
)

// createTestStore creates a new store in a temporary directory.
func createTestStore(t *testing.T) *Store {
	t.Helper()
	path := filepath.Join(t.TempDir(), "test.db")
	s, err := Open(path)
	if err != nil {
		t.Fatalf("Open() failed: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

// createTestRecord creates a record with its id and hash derived the way
// the materializer derives them.
func createTestRecord(kind ir.EntityKind, nodeID, rootID string, payload ir.IRObject) ir.GeneratedRecord {
	return ir.GeneratedRecord{
		ID:             ir.RecordID(nodeID, rootID),
		Kind:           kind,
		OriginNodeID:   nodeID,
		RootEntityID:   rootID,
		RootEntityKind: ir.KindProject,
		Payload:        payload,
		PayloadHash:    ir.MustPayloadHash(payload),
	}
}

// createTestGraph returns a small valid graph: revenue on GANHO, then a
// commission when the revenue total is positive.
func createTestGraph(projectType string) *ir.ProcessGraph {
	return &ir.ProcessGraph{
		ProjectTypeID: projectType,
		Nodes: []ir.ProcessNode{
			{
				ID:           "rev",
				SourceKind:   ir.KindProject,
				Trigger:      ir.Trigger{Variable: "status", Operator: ir.OpEqualsText, Operand: ir.IRString("GANHO")},
				ProducedKind: ir.KindRevenue,
				Template:     ir.IRObject{"descricao": ir.IRString("Venda")},
				Position:     &ir.CanvasPosition{X: 10, Y: -4},
			},
			{
				ID:           "comm",
				ParentID:     "rev",
				SourceKind:   ir.KindRevenue,
				Trigger:      ir.Trigger{Variable: "total", Operator: ir.OpBetween, Operand: ir.IRObject{"min": ir.NewIRInt(1), "max": ir.MustNumber("99999.99")}},
				ProducedKind: ir.KindCommission,
				Template:     ir.IRObject{},
			},
		},
	}
}
