package resolve

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/graphwright/graphwright/internal/graph"
	"github.com/graphwright/graphwright/internal/types"
)

func snapshotWith(nodes ...graph.Node) *graph.GraphSnapshot {
	return &graph.GraphSnapshot{
		Nodes:      nodes,
		CapturedAt: time.Now().UTC(),
	}
}

func personNode(key, name string) graph.Node {
	return graph.Node{
		ID:    types.NewID(),
		Key:   key,
		Label: "Person",
		Props: map[string]any{"name": name},
	}
}

func newTestResolver(t *testing.T) *EntityResolver {
	t.Helper()
	resolver, err := NewEntityResolver(DefaultResolverConfig())
	require.NoError(t, err)
	return resolver
}

func TestResolverConfigValidate(t *testing.T) {
	require.NoError(t, DefaultResolverConfig().Validate())

	inverted := DefaultResolverConfig()
	inverted.CreateNewThreshold = 0.96
	require.Error(t, inverted.Validate())

	noCandidates := DefaultResolverConfig()
	noCandidates.MaxCandidates = 0
	require.Error(t, noCandidates.Validate())
}

func TestResolveEmptyMentionFails(t *testing.T) {
	resolver := newTestResolver(t)

	_, err := resolver.Resolve(EntityMention{SurfaceForm: "  "}, nil)
	require.Error(t, err)
	assert.Equal(t, types.VALIDATION_FAILED, types.CodeOf(err))
}

func TestResolveEmptyGraphCreatesNew(t *testing.T) {
	resolver := newTestResolver(t)

	resolution, err := resolver.Resolve(EntityMention{SurfaceForm: "John Doe"}, nil)
	require.NoError(t, err)
	assert.Equal(t, StrategyCreateNew, resolution.Strategy)
	assert.Empty(t, resolution.Candidates)
}

func TestResolveExactKeyMatchIsCertain(t *testing.T) {
	node := personNode("john-doe", "John Doe")
	snapshot := snapshotWith(node, personNode("jane-roe", "Jane Roe"))

	resolver := newTestResolver(t)
	resolution, err := resolver.Resolve(EntityMention{SurfaceForm: "john-doe"}, snapshot)
	require.NoError(t, err)

	assert.Equal(t, StrategyUseExisting, resolution.Strategy)
	assert.Equal(t, node.ID, resolution.EntityID)
	assert.Equal(t, "john-doe", resolution.EntityKey)
	assert.InDelta(t, 1.0, resolution.Confidence.Overall, 0.001)
}

func TestResolveExactMatchIgnoresScoringWeights(t *testing.T) {
	// An exact natural-key match is authoritative under any weighting.
	snapshot := snapshotWith(personNode("john-doe", "John Doe"))
	mention := EntityMention{SurfaceForm: "John Doe"}

	for _, weights := range []Weights{
		DefaultWeights(),
		{Name: 1.0},
		{Context: 1.0},
	} {
		cfg := DefaultResolverConfig()
		cfg.Weights = weights
		resolver, err := NewEntityResolver(cfg)
		require.NoError(t, err)

		resolution, err := resolver.Resolve(mention, snapshot)
		require.NoError(t, err)
		assert.Equal(t, StrategyUseExisting, resolution.Strategy)
		assert.InDelta(t, 1.0, resolution.Confidence.Overall, 0.001)
	}
}

func TestResolveHighSimilarityUsesExisting(t *testing.T) {
	// Same tokens, different punctuation: not an exact match, but well above
	// the reuse threshold.
	snapshot := snapshotWith(personNode("john-doe", "John Doe"))

	resolver := newTestResolver(t)
	resolution, err := resolver.Resolve(EntityMention{SurfaceForm: "john.doe"}, snapshot)
	require.NoError(t, err)

	assert.Equal(t, StrategyUseExisting, resolution.Strategy)
	assert.Equal(t, "john-doe", resolution.EntityKey)
}

func TestResolveDissimilarMentionCreatesNew(t *testing.T) {
	snapshot := snapshotWith(personNode("john-doe", "John Doe"))

	resolver := newTestResolver(t)
	resolution, err := resolver.Resolve(EntityMention{SurfaceForm: "budget spreadsheet"}, snapshot)
	require.NoError(t, err)

	assert.Equal(t, StrategyCreateNew, resolution.Strategy)
}

func TestResolveAmbiguousMentionAsksUser(t *testing.T) {
	snapshot := snapshotWith(
		personNode("john-doe", "John Doe"),
		personNode("john-smith", "John Smith"),
	)

	resolver := newTestResolver(t)
	resolution, err := resolver.Resolve(EntityMention{SurfaceForm: "John"}, snapshot)
	require.NoError(t, err)

	assert.Equal(t, StrategyAskUser, resolution.Strategy)
	require.Len(t, resolution.Candidates, 2)
	assert.InDelta(t, 0.5, resolution.Candidates[0].Score, 0.05)
	assert.InDelta(t, 0.5, resolution.Candidates[1].Score, 0.05)
	assert.Empty(t, resolution.EntityKey)
}

func TestResolveCapsPresentedCandidates(t *testing.T) {
	nodes := []graph.Node{
		personNode("john-a", "John A"),
		personNode("john-b", "John B"),
		personNode("john-c", "John C"),
		personNode("john-d", "John D"),
		personNode("john-e", "John E"),
		personNode("john-f", "John F"),
		personNode("john-g", "John G"),
	}

	resolver := newTestResolver(t)
	resolution, err := resolver.Resolve(EntityMention{SurfaceForm: "John"}, snapshotWith(nodes...))
	require.NoError(t, err)

	assert.Equal(t, StrategyAskUser, resolution.Strategy)
	assert.LessOrEqual(t, len(resolution.Candidates), 5)
}

func TestResolveLabelMismatchFiltersCandidates(t *testing.T) {
	snapshot := snapshotWith(personNode("john-doe", "John Doe"))

	resolver := newTestResolver(t)
	resolution, err := resolver.Resolve(EntityMention{SurfaceForm: "John Doe", Label: "Task"}, snapshot)
	require.NoError(t, err)

	assert.Equal(t, StrategyCreateNew, resolution.Strategy)
}

func TestResolveIsDeterministic(t *testing.T) {
	snapshot := snapshotWith(
		personNode("john-doe", "John Doe"),
		personNode("john-smith", "John Smith"),
	)
	mention := EntityMention{SurfaceForm: "John"}

	resolver := newTestResolver(t)
	first, err := resolver.Resolve(mention, snapshot)
	require.NoError(t, err)

	for i := 0; i < 5; i++ {
		again, err := resolver.Resolve(mention, snapshot)
		require.NoError(t, err)
		assert.Equal(t, first.Strategy, again.Strategy)
		assert.Equal(t, first.EntityKey, again.EntityKey)
		assert.Equal(t, first.Confidence, again.Confidence)
		assert.Equal(t, len(first.Candidates), len(again.Candidates))
	}
}

func TestResolveGoalCollectsAmbiguities(t *testing.T) {
	snapshot := snapshotWith(
		personNode("john-doe", "John Doe"),
		personNode("john-smith", "John Smith"),
	)

	resolver := newTestResolver(t)
	spec, err := resolver.ResolveGoal("assign the ticket to John", []EntityMention{
		{SurfaceForm: "John"},
		{SurfaceForm: "deployment ticket"},
	}, snapshot)
	require.NoError(t, err)

	assert.False(t, spec.ReadyToExecute)
	require.Len(t, spec.Ambiguities, 1)
	assert.Equal(t, "John", spec.Ambiguities[0].Mention.SurfaceForm)
	assert.Equal(t, AmbiguityPending, spec.Ambiguities[0].Status)
	assert.Contains(t, spec.Ambiguities[0].Question, "John")
	assert.Len(t, spec.Resolutions, 2)
}

func TestApplyAnswerSelectsCandidate(t *testing.T) {
	snapshot := snapshotWith(
		personNode("john-doe", "John Doe"),
		personNode("john-smith", "John Smith"),
	)

	resolver := newTestResolver(t)
	spec, err := resolver.ResolveGoal("update John's record", []EntityMention{{SurfaceForm: "John"}}, snapshot)
	require.NoError(t, err)
	require.False(t, spec.ReadyToExecute)

	spec, err = resolver.ApplyAnswer(spec, "John", "john-smith")
	require.NoError(t, err)

	assert.True(t, spec.ReadyToExecute)
	assert.Equal(t, AmbiguityResolved, spec.Ambiguities[0].Status)

	// The original ask_user record is retained; the answer appends a new one.
	require.Len(t, spec.Resolutions, 2)
	final := spec.Resolutions[len(spec.Resolutions)-1]
	assert.Equal(t, StrategyUseExisting, final.Strategy)
	assert.Equal(t, "john-smith", final.EntityKey)
	assert.InDelta(t, 1.0, final.Confidence.Overall, 0.001)
}

func TestApplyAnswerEmptyKeyCreatesNew(t *testing.T) {
	snapshot := snapshotWith(
		personNode("john-doe", "John Doe"),
		personNode("john-smith", "John Smith"),
	)

	resolver := newTestResolver(t)
	spec, err := resolver.ResolveGoal("add John", []EntityMention{{SurfaceForm: "John"}}, snapshot)
	require.NoError(t, err)

	spec, err = resolver.ApplyAnswer(spec, "John", "")
	require.NoError(t, err)

	assert.True(t, spec.ReadyToExecute)
	final := spec.Resolutions[len(spec.Resolutions)-1]
	assert.Equal(t, StrategyCreateNew, final.Strategy)
}

func TestApplyAnswerRejectsUnknownChoice(t *testing.T) {
	snapshot := snapshotWith(
		personNode("john-doe", "John Doe"),
		personNode("john-smith", "John Smith"),
	)

	resolver := newTestResolver(t)
	spec, err := resolver.ResolveGoal("add John", []EntityMention{{SurfaceForm: "John"}}, snapshot)
	require.NoError(t, err)

	_, err = resolver.ApplyAnswer(spec, "John", "jane-roe")
	require.Error(t, err)
	assert.Equal(t, types.AMBIGUOUS_ENTITY, types.CodeOf(err))

	_, err = resolver.ApplyAnswer(spec, "nobody", "john-doe")
	require.Error(t, err)
	assert.Equal(t, types.NOT_FOUND, types.CodeOf(err))
}

func TestResolveCollapsesDuplicateCandidates(t *testing.T) {
	// Two records of the same person differ only in key; the user should see
	// a single merged candidate, not a choice between duplicates.
	snapshot := snapshotWith(
		personNode("john-doe", "John Doe"),
		personNode("john-doe-import", "John Doe"),
		personNode("john-smith", "John Smith"),
	)

	resolver := newTestResolver(t)
	resolution, err := resolver.Resolve(EntityMention{SurfaceForm: "John"}, snapshot)
	require.NoError(t, err)

	assert.Equal(t, StrategyAskUser, resolution.Strategy)
	assert.Len(t, resolution.Candidates, 2)
}
