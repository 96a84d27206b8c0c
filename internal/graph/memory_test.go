package graph

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/graphwright/graphwright/internal/types"
)

func TestMemoryStoreUpsertNodeIdempotent(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()

	spec := NodeSpec{
		Key:   "example",
		Label: "demo",
		Props: map[string]any{"name": "Example"},
	}

	first, err := store.UpsertNode(ctx, spec)
	require.NoError(t, err)
	require.NotNil(t, first)
	require.NoError(t, first.ID.Validate())

	second, err := store.UpsertNode(ctx, spec)
	require.NoError(t, err)

	// Same identity, no duplicate.
	assert.Equal(t, first.ID, second.ID)

	snapshot, err := store.GetSubgraph(ctx, Match{}, 0)
	require.NoError(t, err)
	assert.Len(t, snapshot.Nodes, 1)
}

func TestMemoryStoreUpsertNodeLabelConflict(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()

	_, err := store.UpsertNode(ctx, NodeSpec{Key: "example", Label: "demo"})
	require.NoError(t, err)

	_, err = store.UpsertNode(ctx, NodeSpec{Key: "example", Label: "other"})
	require.Error(t, err)
	assert.True(t, errors.Is(err, types.NewError(types.CONSTRAINT_VIOLATION, "")))
}

func TestMemoryStoreUpsertNodeValidation(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()

	tests := []struct {
		name string
		spec NodeSpec
	}{
		{name: "missing key", spec: NodeSpec{Label: "demo"}},
		{name: "missing label", spec: NodeSpec{Key: "example"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := store.UpsertNode(ctx, tt.spec)
			require.Error(t, err)
			assert.Equal(t, types.VALIDATION_FAILED, types.CodeOf(err))
		})
	}
}

func TestMemoryStoreUpsertEdge(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()

	_, err := store.UpsertNode(ctx, NodeSpec{Key: "a", Label: "demo"})
	require.NoError(t, err)
	_, err = store.UpsertNode(ctx, NodeSpec{Key: "b", Label: "demo"})
	require.NoError(t, err)

	spec := EdgeSpec{Key: "a-knows-b", Type: "KNOWS", FromKey: "a", ToKey: "b"}

	first, err := store.UpsertEdge(ctx, spec)
	require.NoError(t, err)

	second, err := store.UpsertEdge(ctx, spec)
	require.NoError(t, err)
	assert.Equal(t, first.ID, second.ID)

	// Missing endpoint is NOT_FOUND.
	_, err = store.UpsertEdge(ctx, EdgeSpec{Key: "x", Type: "KNOWS", FromKey: "a", ToKey: "ghost"})
	require.Error(t, err)
	assert.Equal(t, types.NOT_FOUND, types.CodeOf(err))
}

func TestMemoryStoreUpdateProps(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()

	_, err := store.UpsertNode(ctx, NodeSpec{Key: "a", Label: "demo", Props: map[string]any{"name": "A"}})
	require.NoError(t, err)

	updated, err := store.UpdateProps(ctx, Match{Key: "a"}, map[string]any{"name": "A2", "rank": 1})
	require.NoError(t, err)
	assert.Equal(t, 1, updated)

	snapshot, err := store.GetSubgraph(ctx, Match{Key: "a"}, 0)
	require.NoError(t, err)
	require.Len(t, snapshot.Nodes, 1)
	assert.Equal(t, "A2", snapshot.Nodes[0].GetProperty("name"))

	_, err = store.UpdateProps(ctx, Match{Key: "ghost"}, map[string]any{"x": 1})
	require.Error(t, err)
	assert.Equal(t, types.NOT_FOUND, types.CodeOf(err))
}

func TestMemoryStoreDeleteNodeDetaches(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()

	_, err := store.UpsertNode(ctx, NodeSpec{Key: "a", Label: "demo"})
	require.NoError(t, err)
	_, err = store.UpsertNode(ctx, NodeSpec{Key: "b", Label: "demo"})
	require.NoError(t, err)
	_, err = store.UpsertEdge(ctx, EdgeSpec{Key: "ab", Type: "KNOWS", FromKey: "a", ToKey: "b"})
	require.NoError(t, err)

	require.NoError(t, store.DeleteNode(ctx, Match{Key: "a"}))

	snapshot, err := store.GetSubgraph(ctx, Match{}, 1)
	require.NoError(t, err)
	assert.Len(t, snapshot.Nodes, 1)
	assert.Empty(t, snapshot.Edges)

	err = store.DeleteNode(ctx, Match{Key: "a"})
	require.Error(t, err)
	assert.Equal(t, types.NOT_FOUND, types.CodeOf(err))
}

func TestMemoryStoreGetSubgraphDepth(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()

	// a -> b -> c chain
	for _, key := range []string{"a", "b", "c"} {
		_, err := store.UpsertNode(ctx, NodeSpec{Key: key, Label: "demo"})
		require.NoError(t, err)
	}
	_, err := store.UpsertEdge(ctx, EdgeSpec{Key: "ab", Type: "NEXT", FromKey: "a", ToKey: "b"})
	require.NoError(t, err)
	_, err = store.UpsertEdge(ctx, EdgeSpec{Key: "bc", Type: "NEXT", FromKey: "b", ToKey: "c"})
	require.NoError(t, err)

	tests := []struct {
		depth     int
		wantNodes int
		wantEdges int
	}{
		{depth: 0, wantNodes: 1, wantEdges: 0},
		{depth: 1, wantNodes: 2, wantEdges: 1},
		{depth: 2, wantNodes: 3, wantEdges: 2},
	}

	for _, tt := range tests {
		snapshot, err := store.GetSubgraph(ctx, Match{Key: "a"}, tt.depth)
		require.NoError(t, err)
		assert.Len(t, snapshot.Nodes, tt.wantNodes, "depth %d", tt.depth)
		assert.Len(t, snapshot.Edges, tt.wantEdges, "depth %d", tt.depth)
		assert.Equal(t, tt.depth, snapshot.Depth)
	}
}

func TestMemoryStoreRunQueryCount(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()

	_, err := store.UpsertNode(ctx, NodeSpec{Key: "a", Label: "demo"})
	require.NoError(t, err)

	result, err := store.RunQuery(ctx, "MATCH (n) RETURN count(n)", nil)
	require.NoError(t, err)
	require.Len(t, result.Records, 1)
	assert.Equal(t, 1, result.Records[0]["count"])
}

func TestSnapshotNeighborKeys(t *testing.T) {
	snapshot := &GraphSnapshot{
		Nodes: []Node{{Key: "a"}, {Key: "b"}, {Key: "c"}},
		Edges: []Edge{
			{Key: "ab", FromKey: "a", ToKey: "b"},
			{Key: "ca", FromKey: "c", ToKey: "a"},
		},
	}

	neighbors := snapshot.NeighborKeys("a")
	assert.ElementsMatch(t, []string{"b", "c"}, neighbors)
	assert.Nil(t, snapshot.NeighborKeys("ghost"))
	require.NotNil(t, snapshot.NodeByKey("b"))
	assert.Nil(t, snapshot.NodeByKey("ghost"))
}
