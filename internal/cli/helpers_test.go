package cli

import (
	"bytes"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/require"
)

func TestMain(m *testing.M) {
	slog.SetDefault(slog.New(slog.NewTextHandler(io.Discard, nil)))
	os.Exit(m.Run())
}

// wonGraph generates a revenue when the project is won and a commission
// when the revenue total passes 5000.
const wonGraph = `project_type: "residencial"

process: "rev": {
	source:   "Project"
	trigger:  {variable: "status", operator: "EQUALS_TEXT", operand: "GANHO"}
	produces: "Revenue"
}

process: "comm": {
	parent:   "rev"
	source:   "Revenue"
	trigger:  {variable: "total", operator: "GREATER_THAN", operand: 5000}
	produces: "Commission"
	template: {beneficiario: "vendedor", percentual: 5}
}
`

// invalidGraph triggers on a variable Project does not declare.
const invalidGraph = `project_type: "residencial"

process: "rev": {
	source:   "Project"
	trigger:  {variable: "statuss", operator: "EQUALS_TEXT", operand: "GANHO"}
	produces: "Revenue"
}
`

const wonSnapshot = `kind: Project
id: P-1
fields:
  tipoProjeto: residencial
  status: GANHO
  valorVenda: 10000
`

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

// execute runs cmd with args and returns what it wrote to stdout.
func execute(cmd *cobra.Command, args ...string) (string, error) {
	out := &bytes.Buffer{}
	cmd.SetOut(out)
	cmd.SetErr(io.Discard)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

// importWonGraph stores wonGraph in a fresh database and returns its path.
func importWonGraph(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	db := filepath.Join(dir, "procflow.db")
	graph := writeFile(t, dir, "graphs/residencial.cue", wonGraph)

	_, err := execute(NewImportCommand(&RootOptions{Format: "text"}), "--db", db, graph)
	require.NoError(t, err)
	return db
}
