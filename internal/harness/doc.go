// Package harness runs conformance scenarios against the engine.
//
// A scenario imports one authored graph into a fresh in-memory store, feeds
// a sequence of root state changes through engine.OnEntityChanged, and
// checks the resulting execution reports and stored records.
//
// # Scenario Format
//
//	name: won_project
//	description: "A won project gets its revenue, commission and installation"
//	graph: ../graphs/residencial.cue
//	run_id: run            # optional prefix, runs are run-0001, run-0002, ...
//	limits: {max_nodes: 3} # optional engine bounds
//	steps:
//	  - kind: Project
//	    id: P-1
//	    fields: {status: GANHO, valorVenda: 10000, tipoProjeto: residencial}
//	assertions:
//	  - type: outcome
//	    step: 0
//	    node: aviso
//	    outcome: Skipped
//	    reason: trigger not satisfied
//	  - type: record
//	    node: comm
//	    fields: {valor: 500}
//
// # Assertion Types
//
//   - outcome: a node's outcome in a step's run, with an optional reason substring
//   - order: the exact processing order of a step's run
//   - abort: a step's run aborted with the given code
//   - record_count: number of stored records, optionally of one kind
//   - record: subset match on a stored record's payload, optional revision
//
// # Golden Snapshots
//
// RunWithGolden renders every report and record as canonical JSON and
// compares it with testdata/golden/<name>.golden (see Snapshot). Run ids
// are sequential and record ids are written as "<node>@<root>", so the
// snapshot is identical across runs.
package harness
