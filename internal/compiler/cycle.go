package compiler

import (
	"fmt"
	"strings"

	"github.com/roach88/procflow/internal/ir"
)

// findCycles reports every parent chain that loops back on itself (E204).
//
// Each node's ancestor walk is bounded by the node count and a visited set,
// so a malformed graph can never hang validation. A node that merely leads
// into a cycle is not reported; the cycle itself is, once, starting from
// its first member in declaration order.
func findCycles(g *ir.ProcessGraph, byID map[string]ir.ProcessNode) []ValidationError {
	var errs []ValidationError
	reported := make(map[string]bool)

	for _, n := range g.Nodes {
		if reported[n.ID] {
			continue
		}
		path, ok := cycleThrough(n.ID, byID, len(g.Nodes))
		if !ok {
			continue
		}
		for _, id := range path {
			reported[id] = true
		}
		errs = append(errs, ValidationError{
			Field:   "parent",
			Message: fmt.Sprintf("parent chain forms a cycle: %s", strings.Join(path, " → ")),
			Code:    ErrCycle,
			NodeID:  n.ID,
		})
	}

	return errs
}

// cycleThrough walks parent links up from start. It returns the cycle path
// (start first and last) when the walk comes back to start.
func cycleThrough(start string, byID map[string]ir.ProcessNode, bound int) ([]string, bool) {
	path := []string{start}
	visited := map[string]bool{start: true}
	current := start

	for steps := 0; steps <= bound; steps++ {
		node, ok := byID[current]
		if !ok || node.IsRoot() {
			return nil, false
		}
		next := node.ParentID
		if next == start {
			return append(path, start), true
		}
		if visited[next] {
			// Loops, but not through start.
			return nil, false
		}
		visited[next] = true
		path = append(path, next)
		current = next
	}
	return nil, false
}
