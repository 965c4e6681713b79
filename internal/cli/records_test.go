package cli

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/procflow/internal/ir"
)

// runWon imports wonGraph and runs wonSnapshot once; the run id is run-0001.
func runWon(t *testing.T) string {
	t.Helper()
	db := importWonGraph(t)
	snapshot := writeFile(t, t.TempDir(), "p-1.yaml", wonSnapshot)
	_, err := execute(newRunCommand(runWithIDs("text")), "--db", db, "--snapshot", snapshot)
	require.NoError(t, err)
	return db
}

func TestRecordsText(t *testing.T) {
	db := runWon(t)

	out, err := execute(NewRecordsCommand(&RootOptions{Format: "text"}), "--db", db, "P-1")
	require.NoError(t, err)
	assert.Contains(t, out, "Revenue node=rev rev=1")
	assert.Contains(t, out, "Commission node=comm rev=1")
	assert.Contains(t, out, `"valor":500`)
}

func TestRecordsJSON(t *testing.T) {
	db := runWon(t)

	out, err := execute(NewRecordsCommand(&RootOptions{Format: "json"}), "--db", db, "P-1")
	require.NoError(t, err)

	var resp struct {
		Data []ir.GeneratedRecord `json:"data"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	require.Len(t, resp.Data, 2)
	assert.Equal(t, "rev", resp.Data[0].OriginNodeID)
	assert.Equal(t, "comm", resp.Data[1].OriginNodeID)
	assert.Equal(t, "P-1", resp.Data[1].RootEntityID)
}

func TestRecordsUnknownRoot(t *testing.T) {
	db := runWon(t)

	out, err := execute(NewRecordsCommand(&RootOptions{Format: "text"}), "--db", db, "P-404")
	require.NoError(t, err)
	assert.Equal(t, "No records for \"P-404\".\n", out)
}
