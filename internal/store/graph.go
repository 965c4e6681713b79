package store

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/roach88/procflow/internal/ir"
)

// GraphInfo summarizes one stored graph.
type GraphInfo struct {
	ProjectTypeID string `json:"project_type_id"`
	GraphHash     string `json:"graph_hash"`
	NodeCount     int    `json:"node_count"`
}

// SaveGraph replaces the stored graph for g.ProjectTypeID and returns its hash.
//
// The graph is stored as given; validation happens at run time, so an
// invalid import is still visible to (and rejected by) every run.
func (s *Store) SaveGraph(ctx context.Context, g *ir.ProcessGraph) (string, error) {
	hash, err := ir.GraphHash(g)
	if err != nil {
		return "", fmt.Errorf("save graph: %w", err)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return "", fmt.Errorf("save graph: begin tx: %w", classify(err))
	}
	defer tx.Rollback() // No-op if committed

	_, err = tx.ExecContext(ctx, `
		INSERT INTO process_graphs (project_type_id, graph_hash, node_count, seq)
		VALUES (?, ?, ?, (SELECT COALESCE(MAX(seq), 0) + 1 FROM process_graphs))
		ON CONFLICT(project_type_id) DO UPDATE SET
			graph_hash = excluded.graph_hash,
			node_count = excluded.node_count,
			seq = excluded.seq
	`, g.ProjectTypeID, hash, len(g.Nodes))
	if err != nil {
		return "", fmt.Errorf("save graph: %w", classify(err))
	}

	if _, err := tx.ExecContext(ctx, `DELETE FROM process_nodes WHERE project_type_id = ?`, g.ProjectTypeID); err != nil {
		return "", fmt.Errorf("save graph: clear nodes: %w", classify(err))
	}

	for i, n := range g.Nodes {
		if err := insertNode(ctx, tx, g.ProjectTypeID, i, n); err != nil {
			return "", fmt.Errorf("save graph: node %q: %w", n.ID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return "", fmt.Errorf("save graph: commit: %w", classify(err))
	}
	return hash, nil
}

func insertNode(ctx context.Context, tx *sql.Tx, projectType string, ord int, n ir.ProcessNode) error {
	operand := n.Trigger.Operand
	if operand == nil {
		operand = ir.IRNull{}
	}
	operandJSON, err := marshalValue(operand)
	if err != nil {
		return err
	}
	templateJSON, err := marshalObject(n.Template)
	if err != nil {
		return err
	}

	var parent, posX, posY any
	if n.ParentID != "" {
		parent = n.ParentID
	}
	if n.Position != nil {
		posX, posY = n.Position.X, n.Position.Y
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO process_nodes
		(project_type_id, ord, node_id, parent_id, source_kind, variable, operator, operand, produced_kind, template, pos_x, pos_y)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`,
		projectType,
		ord,
		n.ID,
		parent,
		string(n.SourceKind),
		n.Trigger.Variable,
		string(n.Trigger.Operator),
		operandJSON,
		string(n.ProducedKind),
		templateJSON,
		posX,
		posY,
	)
	return classify(err)
}

// LoadGraph returns the graph for a project type, nodes in declaration order.
// Returns ErrNotFound if no graph was imported for it.
func (s *Store) LoadGraph(ctx context.Context, projectTypeID string) (*ir.ProcessGraph, error) {
	var exists int
	err := s.db.QueryRowContext(ctx,
		`SELECT 1 FROM process_graphs WHERE project_type_id = ?`, projectTypeID,
	).Scan(&exists)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("load graph %q: %w", projectTypeID, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("load graph %q: %w", projectTypeID, classify(err))
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT node_id, parent_id, source_kind, variable, operator, operand, produced_kind, template, pos_x, pos_y
		FROM process_nodes
		WHERE project_type_id = ?
		ORDER BY ord ASC
	`, projectTypeID)
	if err != nil {
		return nil, fmt.Errorf("load graph %q: %w", projectTypeID, classify(err))
	}
	defer rows.Close()

	g := &ir.ProcessGraph{ProjectTypeID: projectTypeID, Nodes: []ir.ProcessNode{}}
	for rows.Next() {
		n, err := scanNode(rows)
		if err != nil {
			return nil, fmt.Errorf("load graph %q: %w", projectTypeID, err)
		}
		g.Nodes = append(g.Nodes, n)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("load graph %q: iterate nodes: %w", projectTypeID, classify(err))
	}
	return g, nil
}

func scanNode(rows *sql.Rows) (ir.ProcessNode, error) {
	var (
		n                     ir.ProcessNode
		parent                sql.NullString
		source, op, produced  string
		operandJSON, tmplJSON string
		posX, posY            sql.NullInt64
	)
	if err := rows.Scan(&n.ID, &parent, &source, &n.Trigger.Variable, &op,
		&operandJSON, &produced, &tmplJSON, &posX, &posY); err != nil {
		return n, fmt.Errorf("scan node: %w", err)
	}

	operand, err := unmarshalValue(operandJSON)
	if err != nil {
		return n, err
	}
	tmpl, err := unmarshalObject(tmplJSON)
	if err != nil {
		return n, err
	}

	n.ParentID = parent.String
	n.SourceKind = ir.EntityKind(source)
	n.Trigger.Operator = ir.OperatorKind(op)
	n.Trigger.Operand = operand
	n.ProducedKind = ir.EntityKind(produced)
	n.Template = tmpl
	if posX.Valid || posY.Valid {
		n.Position = &ir.CanvasPosition{X: posX.Int64, Y: posY.Int64}
	}
	return n, nil
}

// ListProjectTypes returns every stored graph, most recently imported last.
func (s *Store) ListProjectTypes(ctx context.Context) ([]GraphInfo, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT project_type_id, graph_hash, node_count
		FROM process_graphs
		ORDER BY seq ASC, project_type_id COLLATE BINARY ASC
	`)
	if err != nil {
		return nil, fmt.Errorf("list project types: %w", classify(err))
	}
	defer rows.Close()

	infos := []GraphInfo{}
	for rows.Next() {
		var info GraphInfo
		if err := rows.Scan(&info.ProjectTypeID, &info.GraphHash, &info.NodeCount); err != nil {
			return nil, fmt.Errorf("list project types: scan: %w", err)
		}
		infos = append(infos, info)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list project types: %w", classify(err))
	}
	return infos, nil
}
