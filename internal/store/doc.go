// Package store provides SQLite-backed durable storage for procflow.
//
// Three things are stored:
//   - Process graphs: one per project type, nodes in declaration order
//   - Generated records: the business objects runs materialize
//   - Execution reports: one per run, node outcomes in processing order
//
// # Critical Patterns
//
// Origin-Keyed Idempotency
//   - UNIQUE(origin_node_id, root_entity_id) on generated_records
//   - Upsert updates in place; a second run never creates a duplicate
//   - An unchanged payload hash leaves the row (and its revision) untouched
//
// Logical Ordering
//   - All ordering uses seq/ord INTEGER columns, NEVER timestamps
//   - All list queries include ORDER BY on those columns
//
// # Database Configuration
//
//   - WAL mode: Concurrent reads during writes
//   - synchronous=NORMAL: Balance durability/performance
//   - busy_timeout=5000: Wait for locks up to 5 seconds
//   - foreign_keys=ON: Enforce referential integrity
//
// Record ids are computed by ir.RecordID from the origin key, using RFC 8785
// canonical JSON and SHA-256 with domain separation.
package store
