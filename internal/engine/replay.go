package engine

import (
	"context"
	"fmt"

	"github.com/roach88/procflow/internal/ir"
)

// ReportSource reads stored reports.
type ReportSource interface {
	ReadReport(ctx context.Context, runID string) (*ir.ExecutionReport, error)
}

// Replay runs the root snapshot of a stored report again, against the graph
// currently stored for its project type.
//
// Records already generated are found by origin and updated in place, so a
// replay after an Unavailable failure completes the missing records without
// duplicating the others.
func (e *Engine) Replay(ctx context.Context, reports ReportSource, runID string) (*ir.ExecutionReport, error) {
	prior, err := reports.ReadReport(ctx, runID)
	if err != nil {
		return nil, fmt.Errorf("read report %s: %w", runID, err)
	}

	report, err := e.OnEntityChanged(ctx, prior.RootKind, prior.RootEntityID, prior.RootFields.Clone())
	if err != nil {
		return nil, fmt.Errorf("replay %s: %w", runID, err)
	}
	return report, nil
}
