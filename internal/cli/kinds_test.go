package cli

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/procflow/internal/ir"
	"github.com/roach88/procflow/internal/registry"
)

func TestKindsText(t *testing.T) {
	out, err := execute(NewKindsCommand(&RootOptions{Format: "text"}))
	require.NoError(t, err)
	for _, kind := range registry.Kinds() {
		assert.Contains(t, out, string(kind))
	}
	assert.Contains(t, out, "project type field: tipoProjeto")
	assert.Contains(t, out, "EQUALS_TEXT")
}

func TestKindsSingleJSON(t *testing.T) {
	out, err := execute(NewKindsCommand(&RootOptions{Format: "json"}), "Revenue")
	require.NoError(t, err)

	var resp struct {
		Data []registry.EntityTypeSpec `json:"data"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	require.Len(t, resp.Data, 1)
	assert.Equal(t, ir.KindRevenue, resp.Data[0].Kind)
	assert.Equal(t, registry.MustSpecFor(ir.KindRevenue), resp.Data[0])
}

func TestKindsUnknown(t *testing.T) {
	out, err := execute(NewKindsCommand(&RootOptions{Format: "text"}), "Invoice")
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
	assert.Contains(t, out, "Error [E005]")
}
