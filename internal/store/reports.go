package store

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/roach88/procflow/internal/ir"
)

// WriteReport persists an execution report.
// Uses ON CONFLICT(run_id) DO NOTHING for idempotency - writing the same run
// twice is silently ignored.
func (s *Store) WriteReport(ctx context.Context, r *ir.ExecutionReport) error {
	rootJSON, err := marshalObject(r.RootFields)
	if err != nil {
		return fmt.Errorf("write report: %w", err)
	}

	var abortCode, abortMessage, abortDetails any
	if r.Abort != nil {
		abortCode, abortMessage = r.Abort.Code, r.Abort.Message
		if abortDetails, err = marshalStrings(r.Abort.Details); err != nil {
			return fmt.Errorf("write report: %w", err)
		}
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("write report: begin tx: %w", classify(err))
	}
	defer tx.Rollback() // No-op if committed

	result, err := tx.ExecContext(ctx, `
		INSERT INTO execution_runs
		(run_id, project_type_id, graph_hash, root_kind, root_entity_id, root_fields, abort_code, abort_message, abort_details)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(run_id) DO NOTHING
	`,
		r.RunID,
		r.ProjectTypeID,
		r.GraphHash,
		string(r.RootKind),
		r.RootEntityID,
		rootJSON,
		abortCode,
		abortMessage,
		abortDetails,
	)
	if err != nil {
		return fmt.Errorf("write report: %w", classify(err))
	}
	if n, err := result.RowsAffected(); err != nil {
		return fmt.Errorf("write report: rows affected: %w", err)
	} else if n == 0 {
		return nil
	}

	for i, o := range r.Nodes {
		_, err := tx.ExecContext(ctx, `
			INSERT INTO execution_outcomes (run_id, ord, node_id, kind, outcome, reason, record_id)
			VALUES (?, ?, ?, ?, ?, ?, ?)
		`, r.RunID, i, o.NodeID, string(o.Kind), string(o.Outcome), o.Reason, o.RecordID)
		if err != nil {
			return fmt.Errorf("write report: outcome %d: %w", i, classify(err))
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("write report: commit: %w", classify(err))
	}
	return nil
}

const runColumns = `run_id, project_type_id, graph_hash, root_kind, root_entity_id, root_fields, abort_code, abort_message, abort_details`

// ReadReport retrieves the report of one run.
// Returns ErrNotFound if the run was never recorded.
func (s *Store) ReadReport(ctx context.Context, runID string) (*ir.ExecutionReport, error) {
	r, err := scanRun(s.db.QueryRowContext(ctx, `
		SELECT `+runColumns+`
		FROM execution_runs
		WHERE run_id = ?
	`, runID))
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("read report %q: %w", runID, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("read report %q: %w", runID, classify(err))
	}

	if r.Nodes, err = s.readOutcomes(ctx, runID); err != nil {
		return nil, fmt.Errorf("read report %q: %w", runID, err)
	}
	return r, nil
}

// ListReports returns every report recorded for a root entity, oldest first.
func (s *Store) ListReports(ctx context.Context, rootEntityID string) ([]*ir.ExecutionReport, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+runColumns+`
		FROM execution_runs
		WHERE root_entity_id = ?
		ORDER BY seq ASC
	`, rootEntityID)
	if err != nil {
		return nil, fmt.Errorf("list reports: %w", classify(err))
	}

	reports := []*ir.ExecutionReport{}
	for rows.Next() {
		r, err := scanRun(rows)
		if err != nil {
			rows.Close()
			return nil, fmt.Errorf("list reports: %w", err)
		}
		reports = append(reports, r)
	}
	if err := rows.Err(); err != nil {
		rows.Close()
		return nil, fmt.Errorf("list reports: iterate: %w", classify(err))
	}
	// Single connection: close before issuing the outcome queries.
	rows.Close()

	for _, r := range reports {
		if r.Nodes, err = s.readOutcomes(ctx, r.RunID); err != nil {
			return nil, fmt.Errorf("list reports: %w", err)
		}
	}
	return reports, nil
}

func (s *Store) readOutcomes(ctx context.Context, runID string) ([]ir.NodeOutcome, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT node_id, kind, outcome, reason, record_id
		FROM execution_outcomes
		WHERE run_id = ?
		ORDER BY ord ASC
	`, runID)
	if err != nil {
		return nil, fmt.Errorf("query outcomes: %w", classify(err))
	}
	defer rows.Close()

	outcomes := []ir.NodeOutcome{}
	for rows.Next() {
		var (
			o             ir.NodeOutcome
			kind, outcome string
		)
		if err := rows.Scan(&o.NodeID, &kind, &outcome, &o.Reason, &o.RecordID); err != nil {
			return nil, fmt.Errorf("scan outcome: %w", err)
		}
		o.Kind = ir.EntityKind(kind)
		o.Outcome = ir.Outcome(outcome)
		outcomes = append(outcomes, o)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate outcomes: %w", classify(err))
	}
	return outcomes, nil
}

func scanRun(row rowScanner) (*ir.ExecutionReport, error) {
	var (
		r                                     ir.ExecutionReport
		rootKind, rootJSON                    string
		abortCode, abortMessage, abortDetails sql.NullString
	)
	err := row.Scan(&r.RunID, &r.ProjectTypeID, &r.GraphHash, &rootKind, &r.RootEntityID,
		&rootJSON, &abortCode, &abortMessage, &abortDetails)
	if err != nil {
		return nil, err
	}
	r.RootKind = ir.EntityKind(rootKind)
	if r.RootFields, err = unmarshalObject(rootJSON); err != nil {
		return nil, err
	}
	if abortCode.Valid {
		r.Abort = &ir.RunAbort{Code: abortCode.String, Message: abortMessage.String}
		if r.Abort.Details, err = unmarshalStrings(abortDetails.String); err != nil {
			return nil, err
		}
	}
	return &r, nil
}
