package harness

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// writeScenario writes a scenario next to a placeholder graph file.
func writeScenario(t *testing.T, content string) string {
	t.Helper()
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "graph.cue"), []byte(`project_type: "residencial"`), 0o644))
	path := filepath.Join(dir, "scenario.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

const validScenario = `
name: test_scenario
description: "Test scenario for validation"
graph: graph.cue
run_id: test
limits: {max_nodes: 10}
steps:
  - kind: Project
    id: P-1
    fields: {status: GANHO, valorVenda: 2500.50, etiquetas: [a, b]}
assertions:
  - type: record_count
    count: 0
`

func TestLoadScenario_ValidFile(t *testing.T) {
	path := writeScenario(t, validScenario)

	scenario, err := LoadScenario(path)
	require.NoError(t, err)

	assert.Equal(t, "test_scenario", scenario.Name)
	assert.Equal(t, filepath.Join(filepath.Dir(path), "graph.cue"), scenario.Graph)
	assert.Equal(t, "test", scenario.RunID)
	require.NotNil(t, scenario.Limits)
	assert.Equal(t, 10, scenario.Limits.MaxNodes)
	require.Len(t, scenario.Steps, 1)
	assert.Equal(t, "P-1", scenario.Steps[0].ID)
}

func TestStep_Snapshot(t *testing.T) {
	scenario, err := LoadScenario(writeScenario(t, validScenario))
	require.NoError(t, err)

	root, err := scenario.Steps[0].Snapshot()
	require.NoError(t, err)

	assert.Equal(t, "Project", string(root.Kind))
	assert.Equal(t, "2500.5", describe(root.Fields.Field("valorVenda")))
	assert.Equal(t, `["a","b"]`, describe(root.Fields.Field("etiquetas")))
}

func TestLoadScenario_UnknownField(t *testing.T) {
	path := writeScenario(t, validScenario+"assertion: []\n")

	_, err := LoadScenario(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to parse YAML")
}

func TestLoadScenario_MissingFile(t *testing.T) {
	_, err := LoadScenario(filepath.Join(t.TempDir(), "missing.yaml"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to read scenario file")
}

func TestLoadScenario_Invalid(t *testing.T) {
	tests := []struct {
		name    string
		content string
		want    string
	}{
		{
			name:    "missing name",
			content: "description: d\ngraph: graph.cue\nsteps: [{kind: Project, id: P, fields: {}}]\nassertions: [{type: record_count}]\n",
			want:    "name is required",
		},
		{
			name:    "missing description",
			content: "name: n\ngraph: graph.cue\nsteps: [{kind: Project, id: P, fields: {}}]\nassertions: [{type: record_count}]\n",
			want:    "description is required",
		},
		{
			name:    "missing graph",
			content: "name: n\ndescription: d\nsteps: [{kind: Project, id: P, fields: {}}]\nassertions: [{type: record_count}]\n",
			want:    "graph is required",
		},
		{
			name:    "graph not found",
			content: "name: n\ndescription: d\ngraph: nope.cue\nsteps: [{kind: Project, id: P, fields: {}}]\nassertions: [{type: record_count}]\n",
			want:    "graph file not found",
		},
		{
			name:    "no steps",
			content: "name: n\ndescription: d\ngraph: graph.cue\nsteps: []\nassertions: [{type: record_count}]\n",
			want:    "steps list is required",
		},
		{
			name:    "no assertions",
			content: "name: n\ndescription: d\ngraph: graph.cue\nsteps: [{kind: Project, id: P, fields: {}}]\n",
			want:    "assertions list is required",
		},
		{
			name:    "step without fields",
			content: "name: n\ndescription: d\ngraph: graph.cue\nsteps: [{kind: Project, id: P}]\nassertions: [{type: record_count}]\n",
			want:    "steps[0]: fields is required",
		},
		{
			name:    "step without kind",
			content: "name: n\ndescription: d\ngraph: graph.cue\nsteps: [{id: P, fields: {}}]\nassertions: [{type: record_count}]\n",
			want:    "steps[0]: kind is required",
		},
		{
			name:    "unknown assertion type",
			content: "name: n\ndescription: d\ngraph: graph.cue\nsteps: [{kind: Project, id: P, fields: {}}]\nassertions: [{type: trace_contains}]\n",
			want:    `unknown assertion type "trace_contains"`,
		},
		{
			name:    "bad outcome",
			content: "name: n\ndescription: d\ngraph: graph.cue\nsteps: [{kind: Project, id: P, fields: {}}]\nassertions: [{type: outcome, node: a, outcome: Done}]\n",
			want:    "outcome must be Satisfied, Skipped or Failed",
		},
		{
			name:    "step out of range",
			content: "name: n\ndescription: d\ngraph: graph.cue\nsteps: [{kind: Project, id: P, fields: {}}]\nassertions: [{type: abort, step: 1, code: GRAPH_TOO_LARGE}]\n",
			want:    "step 1 out of range",
		},
		{
			name:    "order without nodes",
			content: "name: n\ndescription: d\ngraph: graph.cue\nsteps: [{kind: Project, id: P, fields: {}}]\nassertions: [{type: order}]\n",
			want:    "nodes list is required",
		},
		{
			name:    "record without expectation",
			content: "name: n\ndescription: d\ngraph: graph.cue\nsteps: [{kind: Project, id: P, fields: {}}]\nassertions: [{type: record, node: rev}]\n",
			want:    "fields or revision is required",
		},
		{
			name:    "unknown record kind",
			content: "name: n\ndescription: d\ngraph: graph.cue\nsteps: [{kind: Project, id: P, fields: {}}]\nassertions: [{type: record_count, kind: Invoice}]\n",
			want:    `unknown kind "Invoice"`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := LoadScenario(writeScenario(t, tt.content))
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestLoadScenario_Testdata(t *testing.T) {
	paths, err := filepath.Glob(filepath.Join("testdata", "scenarios", "*.yaml"))
	require.NoError(t, err)
	require.NotEmpty(t, paths)

	for _, path := range paths {
		_, err := LoadScenario(path)
		assert.NoError(t, err, path)
	}
}
