// Package engine runs the process graph of a project type against a root
// entity.
//
// A run starts from a root snapshot (a Project whose status changed) and
// walks the graph breadth-first. Each node's trigger is evaluated against
// the snapshot of its parent entity: the root for root nodes, the record
// generated by the parent node otherwise. A satisfied node materializes its
// record and releases its children; a skipped or failed node blocks its
// whole subtree, while its siblings carry on.
//
// ARCHITECTURE:
//
// Single-threaded run:
// A run processes one node at a time from a FIFO queue seeded with the root
// nodes in declaration order. The resulting report lists node outcomes in
// processing order, so the same graph and root snapshot always produce the
// same report.
//
// Runs are not transactional. Records written before a failure stay
// written. Running again is safe: every record is addressed by its origin
// (node id, root entity id) and updated in place.
//
// CRITICAL PATTERNS:
//
// Outcomes are data:
// Node-level failures (a rejected template, an unreachable store) become
// Failed entries in the report. Only an invalid graph (CONFIGURATION_INVALID)
// or a graph past the configured limits (GRAPH_TOO_LARGE) stop a run, and
// both are reported through ExecutionReport.Abort rather than as errors.
//
// Bounded work:
// A run processes each node at most once and never more than
// Limits.MaxNodes nodes or Limits.MaxDepth levels.
//
// Skip, don't delete:
// A trigger that no longer holds skips the node. Records generated by
// earlier runs are left alone.
package engine
