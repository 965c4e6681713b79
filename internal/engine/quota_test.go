package engine

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/procflow/internal/ir"
)

func TestQuotaEnforcer_WithinLimit(t *testing.T) {
	q := NewQuotaEnforcer(Limits{MaxNodes: 3, MaxDepth: 2})

	for i := 0; i < 3; i++ {
		assert.NoError(t, q.Check("n", 2), "node %d should be allowed", i+1)
	}
	assert.Equal(t, 3, q.Current())
}

func TestQuotaEnforcer_ExceedsNodes(t *testing.T) {
	q := NewQuotaEnforcer(Limits{MaxNodes: 2, MaxDepth: 5})
	require.NoError(t, q.Check("a", 1))
	require.NoError(t, q.Check("b", 1))

	err := q.Check("c", 1)
	require.Error(t, err)

	var ge *GraphTooLargeError
	require.ErrorAs(t, err, &ge)
	assert.Equal(t, LimitNodes, ge.Limit)
	assert.Equal(t, 3, ge.Value)
	assert.Equal(t, 2, ge.Max)
	assert.Equal(t, "c", ge.NodeID)
}

func TestQuotaEnforcer_ExceedsDepth(t *testing.T) {
	q := NewQuotaEnforcer(Limits{MaxNodes: 10, MaxDepth: 2})

	err := q.Check("deep", 3)
	require.Error(t, err)
	assert.True(t, IsGraphTooLarge(err))
	assert.Equal(t, `graph too large: depth 3 exceeds limit 2 (node "deep")`, err.Error())
	assert.Equal(t, 0, q.Current(), "a rejected node is not counted")
}

func TestQuotaEnforcer_CheckGraph(t *testing.T) {
	q := NewQuotaEnforcer(Limits{MaxNodes: 1})
	small := &ir.ProcessGraph{Nodes: make([]ir.ProcessNode, 1)}
	large := &ir.ProcessGraph{Nodes: make([]ir.ProcessNode, 2)}

	assert.NoError(t, q.CheckGraph(small))
	err := q.CheckGraph(large)
	require.Error(t, err)
	assert.Equal(t, "graph too large: nodes 2 exceeds limit 1", err.Error())
	assert.Equal(t, []string{"limit=nodes", "value=2", "max=1"}, err.(*GraphTooLargeError).Details())
}

func TestQuotaEnforcer_Defaults(t *testing.T) {
	q := NewQuotaEnforcer(Limits{})
	assert.Equal(t, DefaultLimits(), q.Limits())
	assert.Equal(t, Limits{MaxNodes: 500, MaxDepth: 20}, DefaultLimits())
}
