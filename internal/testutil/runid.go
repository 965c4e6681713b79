package testutil

import "fmt"

// FixedRunIDGenerator generates the same run id every time.
//
// This enables deterministic test execution and golden report comparison:
// the same scenario with the same FixedRunIDGenerator produces byte-identical
// reports.
//
// Thread-safety: FixedRunIDGenerator is stateless and safe for concurrent use.
type FixedRunIDGenerator struct {
	id string
}

// NewFixedRunIDGenerator creates a new fixed run id generator.
//
// The id is typically set in the scenario YAML:
//
//	run_id: "run-residencial-001"
//
// If id is empty, Generate() returns "test-run-default".
func NewFixedRunIDGenerator(id string) *FixedRunIDGenerator {
	if id == "" {
		id = "test-run-default"
	}
	return &FixedRunIDGenerator{id: id}
}

// Generate returns the fixed run id.
//
// Implements engine.RunIDGenerator interface.
func (g *FixedRunIDGenerator) Generate() string {
	return g.id
}

// SequentialRunIDGenerator generates prefix-0001, prefix-0002, ...
// Use it when a test performs several runs and needs distinct, predictable ids.
type SequentialRunIDGenerator struct {
	prefix string
	seq    *Sequence
}

// NewSequentialRunIDGenerator creates a generator; an empty prefix means "run".
func NewSequentialRunIDGenerator(prefix string) *SequentialRunIDGenerator {
	if prefix == "" {
		prefix = "run"
	}
	return &SequentialRunIDGenerator{prefix: prefix, seq: &Sequence{}}
}

// Generate returns the next id in sequence. Safe for concurrent use.
func (g *SequentialRunIDGenerator) Generate() string {
	return fmt.Sprintf("%s-%04d", g.prefix, g.seq.Next())
}
