package tasks

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAddNode(t *testing.T) {
	g := newGraph()

	g.addNode(1)
	assert.Len(t, g.nodes, 1)
	n, ok := g.nodes[1]
	require.True(t, ok)
	assert.Equal(t, 1, n.id)
	assert.NotNil(t, n.deps)
	assert.NotNil(t, n.dependents)

	g.addNode(1) // idempotent
	assert.Len(t, g.nodes, 1)
}

func TestAddEdge(t *testing.T) {
	t.Run("success case", func(t *testing.T) {
		g := newGraph()
		g.addNode(1)
		g.addNode(2)

		require.NoError(t, g.addEdge(1, 2))
		assert.Contains(t, g.nodes[1].dependents, 2)
		assert.Contains(t, g.nodes[2].deps, 1)
	})

	t.Run("error cases", func(t *testing.T) {
		g := newGraph()
		g.addNode(1)

		assert.ErrorContains(t, g.addEdge(9, 1), "source task not found")
		assert.ErrorContains(t, g.addEdge(1, 9), "destination task not found")
		assert.ErrorContains(t, g.addEdge(1, 1), "self-referential edge")
	})
}

func TestDetectCycles(t *testing.T) {
	t.Run("empty graph has no cycles", func(t *testing.T) {
		assert.NoError(t, newGraph().detectCycles())
	})

	t.Run("valid dag has no cycles", func(t *testing.T) {
		g := newGraph()
		for i := 1; i <= 4; i++ {
			g.addNode(i)
		}
		require.NoError(t, g.addEdge(1, 2))
		require.NoError(t, g.addEdge(2, 3))
		require.NoError(t, g.addEdge(1, 3))
		require.NoError(t, g.addEdge(3, 4))
		assert.NoError(t, g.detectCycles())
	})

	t.Run("longer cycle is detected", func(t *testing.T) {
		g := newGraph()
		for i := 1; i <= 3; i++ {
			g.addNode(i)
		}
		require.NoError(t, g.addEdge(1, 2))
		require.NoError(t, g.addEdge(2, 3))
		require.NoError(t, g.addEdge(3, 1))
		assert.ErrorContains(t, g.detectCycles(), "cycle detected")
	})
}
