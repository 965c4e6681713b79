package harness

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"

	"github.com/roach88/procflow/internal/ir"
	"github.com/roach88/procflow/internal/registry"
)

// Scenario defines a conformance scenario: one authored graph, a sequence
// of root state changes, and assertions over the resulting reports and
// records.
type Scenario struct {
	// Name uniquely identifies this scenario and names its golden file.
	Name string `yaml:"name"`

	// Description explains what this scenario validates.
	Description string `yaml:"description"`

	// Graph is the CUE graph file, relative to the scenario file.
	Graph string `yaml:"graph"`

	// RunID is the run id prefix; runs are numbered <prefix>-0001, ...
	// Defaults to "run".
	RunID string `yaml:"run_id,omitempty"`

	// Limits overrides the engine run bounds. Zero fields keep the defaults.
	Limits *Limits `yaml:"limits,omitempty"`

	// Steps are root state changes, each one run.
	Steps []Step `yaml:"steps"`

	// Assertions validate the reports and the final records.
	Assertions []Assertion `yaml:"assertions"`
}

// Limits mirrors engine.Limits in scenario files.
type Limits struct {
	MaxNodes int `yaml:"max_nodes"`
	MaxDepth int `yaml:"max_depth"`
}

// Step is one state change of a root entity.
type Step struct {
	Kind   string         `yaml:"kind"`
	ID     string         `yaml:"id"`
	Fields map[string]any `yaml:"fields"`
}

// Snapshot converts the step into the root snapshot handed to the engine.
func (s Step) Snapshot() (ir.EntitySnapshot, error) {
	fields, err := ir.ObjectFromNative(s.Fields)
	if err != nil {
		return ir.EntitySnapshot{}, fmt.Errorf("fields: %w", err)
	}
	return ir.EntitySnapshot{Kind: ir.EntityKind(s.Kind), ID: s.ID, Fields: fields}, nil
}

// Assertion validates one aspect of the result.
type Assertion struct {
	// Type specifies the assertion type:
	// - "outcome": a node ended a step's run with Outcome (and Reason substring)
	// - "order": a step's report lists Nodes in exactly this order
	// - "abort": a step's run aborted with Code
	// - "record_count": the store holds Count records (of Kind, if set)
	// - "record": the record of Node for Root has at least Fields
	Type string `yaml:"type"`

	// Step indexes Steps (outcome, order, abort).
	Step int `yaml:"step,omitempty"`

	// Node is a process node id (outcome, record).
	Node string `yaml:"node,omitempty"`

	// Outcome is Satisfied, Skipped or Failed (outcome).
	Outcome string `yaml:"outcome,omitempty"`

	// Reason must be contained in the outcome reason (outcome).
	Reason string `yaml:"reason,omitempty"`

	// Nodes is the expected processing order (order).
	Nodes []string `yaml:"nodes,omitempty"`

	// Code is the expected abort code (abort).
	Code string `yaml:"code,omitempty"`

	// Kind filters record_count.
	Kind string `yaml:"kind,omitempty"`

	// Count is the expected number of records (record_count).
	Count int `yaml:"count,omitempty"`

	// Root is the root entity id (record). Defaults to the first step's id.
	Root string `yaml:"root,omitempty"`

	// Fields is a subset of the expected payload (record).
	// Numbers compare by value: 10000 matches 10000.00.
	Fields map[string]any `yaml:"fields,omitempty"`

	// Revision is the expected record revision (record), if non-zero.
	Revision int64 `yaml:"revision,omitempty"`
}

// Assertion type constants.
const (
	AssertOutcome     = "outcome"
	AssertOrder       = "order"
	AssertAbort       = "abort"
	AssertRecordCount = "record_count"
	AssertRecord      = "record"
)

// LoadScenario reads and parses a scenario YAML file. The graph path is
// resolved relative to the scenario file. Unknown fields (typos) and
// missing required fields are errors.
func LoadScenario(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read scenario file: %w", err)
	}

	var scenario Scenario
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(&scenario); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}

	if scenario.Graph != "" && !filepath.IsAbs(scenario.Graph) {
		scenario.Graph = filepath.Join(filepath.Dir(path), scenario.Graph)
	}

	if err := validateScenario(&scenario); err != nil {
		return nil, fmt.Errorf("invalid scenario: %w", err)
	}

	return &scenario, nil
}

// validateScenario checks that required fields are present and valid.
func validateScenario(s *Scenario) error {
	if s.Name == "" {
		return fmt.Errorf("name is required")
	}

	if s.Description == "" {
		return fmt.Errorf("description is required")
	}

	if s.Graph == "" {
		return fmt.Errorf("graph is required")
	}
	if _, err := os.Stat(s.Graph); os.IsNotExist(err) {
		return fmt.Errorf("graph file not found: %s", s.Graph)
	}

	if len(s.Steps) == 0 {
		return fmt.Errorf("steps list is required and must be non-empty")
	}

	if len(s.Assertions) == 0 {
		return fmt.Errorf("assertions list is required and must be non-empty")
	}

	if s.Limits != nil && (s.Limits.MaxNodes < 0 || s.Limits.MaxDepth < 0) {
		return fmt.Errorf("limits must be non-negative")
	}

	for i, step := range s.Steps {
		if step.Kind == "" {
			return fmt.Errorf("steps[%d]: kind is required", i)
		}
		if step.ID == "" {
			return fmt.Errorf("steps[%d]: id is required", i)
		}
		if step.Fields == nil {
			return fmt.Errorf("steps[%d]: fields is required (use empty map if no fields)", i)
		}
	}

	for i, assertion := range s.Assertions {
		if err := validateAssertion(i, &assertion, len(s.Steps)); err != nil {
			return err
		}
	}

	return nil
}

// validateAssertion validates a single assertion based on its type.
func validateAssertion(index int, a *Assertion, steps int) error {
	if a.Type == "" {
		return fmt.Errorf("assertions[%d]: type is required", index)
	}

	stepInRange := func() error {
		if a.Step < 0 || a.Step >= steps {
			return fmt.Errorf("assertions[%d]: step %d out of range (%d steps)", index, a.Step, steps)
		}
		return nil
	}

	switch a.Type {
	case AssertOutcome:
		if a.Node == "" {
			return fmt.Errorf("assertions[%d]: node is required for outcome", index)
		}
		switch ir.Outcome(a.Outcome) {
		case ir.OutcomeSatisfied, ir.OutcomeSkipped, ir.OutcomeFailed:
		default:
			return fmt.Errorf("assertions[%d]: outcome must be Satisfied, Skipped or Failed, got %q", index, a.Outcome)
		}
		return stepInRange()
	case AssertOrder:
		if len(a.Nodes) == 0 {
			return fmt.Errorf("assertions[%d]: nodes list is required for order", index)
		}
		return stepInRange()
	case AssertAbort:
		if a.Code == "" {
			return fmt.Errorf("assertions[%d]: code is required for abort", index)
		}
		return stepInRange()
	case AssertRecordCount:
		if a.Count < 0 {
			return fmt.Errorf("assertions[%d]: count must be non-negative for record_count", index)
		}
		if a.Kind != "" && !registry.IsKnown(ir.EntityKind(a.Kind)) {
			return fmt.Errorf("assertions[%d]: unknown kind %q", index, a.Kind)
		}
	case AssertRecord:
		if a.Node == "" {
			return fmt.Errorf("assertions[%d]: node is required for record", index)
		}
		if len(a.Fields) == 0 && a.Revision == 0 {
			return fmt.Errorf("assertions[%d]: fields or revision is required for record", index)
		}
	default:
		return fmt.Errorf("assertions[%d]: unknown assertion type %q", index, a.Type)
	}

	return nil
}
