package session

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/graphwright/graphwright/internal/diagnose"
	"github.com/graphwright/graphwright/internal/intent"
	"github.com/graphwright/graphwright/internal/resolve"
	"github.com/graphwright/graphwright/internal/tool"
	"github.com/graphwright/graphwright/internal/types"
)

func TestNewSessionStartsAtParseIntent(t *testing.T) {
	s := New("add John Doe to the platform team")

	assert.Equal(t, StatusRunning, s.Status())
	assert.Equal(t, NodeParseIntent, s.Node())
	assert.Equal(t, 1, s.Attempt())
	assert.Zero(t, s.DisclosureLevel())
	require.NoError(t, s.ID().Validate())
}

func TestApplyCommitsDeltaAndNodeTogether(t *testing.T) {
	s := New("goal")

	parsed := &intent.IntentSpec{
		Goal:       "goal",
		Type:       intent.IntentCreate,
		Complexity: intent.ComplexitySimple,
	}
	s.Apply(Delta{Intent: parsed}, NodeResolveEntities)

	assert.Equal(t, NodeResolveEntities, s.Node())
	assert.Equal(t, parsed, s.Intent())
}

func TestAttemptAndDisclosureTrackTogether(t *testing.T) {
	s := New("goal")
	s.Apply(Delta{PlanAppend: []tool.ToolSignature{{Tool: "upsert_node"}, {Tool: "upsert_edge"}}}, NodeExecuteTool)

	s.Apply(Delta{IncrementAttempt: true}, NodePlanStep)
	s.Apply(Delta{IncrementAttempt: true}, NodePlanStep)
	assert.Equal(t, 3, s.Attempt())
	assert.Equal(t, 2, s.DisclosureLevel())

	// Advancing to the next step resets both.
	s.Apply(Delta{AdvanceStep: true}, NodeExecuteTool)
	assert.Equal(t, 1, s.Attempt())
	assert.Zero(t, s.DisclosureLevel())
	assert.Equal(t, 1, s.StepIndex())

	step, ok := s.CurrentStep()
	require.True(t, ok)
	assert.Equal(t, "upsert_edge", step.Tool)
}

func TestRaiseDisclosureSkipsIntermediateLevels(t *testing.T) {
	s := New("goal")
	require.Zero(t, s.DisclosureLevel())

	s.Apply(Delta{RaiseDisclosure: 2}, NodePlanStep)
	assert.Equal(t, 2, s.DisclosureLevel())

	// Raising never lowers.
	s.Apply(Delta{RaiseDisclosure: 1}, NodePlanStep)
	assert.Equal(t, 2, s.DisclosureLevel())
}

func TestFailureHistoryIsBounded(t *testing.T) {
	s := New("goal")

	for i := 0; i < maxFailures+10; i++ {
		s.Apply(Delta{Failure: &diagnose.Failure{
			Attempt: i + 1,
			Tool:    "run_query",
			Message: fmt.Sprintf("failure %d", i),
		}}, NodeDiagnose)
	}

	failures := s.Failures()
	assert.Len(t, failures, maxFailures)
	// The newest entries survive.
	assert.Equal(t, maxFailures+10, failures[len(failures)-1].Attempt)
}

func TestPlanReplaceDropsOnlyRemainingSteps(t *testing.T) {
	s := New("goal")
	s.Apply(Delta{PlanAppend: []tool.ToolSignature{
		{Tool: "a"}, {Tool: "b"}, {Tool: "c"},
	}}, NodeExecuteTool)
	s.Apply(Delta{AdvanceStep: true}, NodeExecuteTool)

	// Replanning at step 1 keeps the completed step and replaces the rest.
	s.Apply(Delta{PlanReplace: []tool.ToolSignature{{Tool: "d"}}}, NodeExecuteTool)

	plan := s.Plan()
	require.Len(t, plan, 2)
	assert.Equal(t, "a", plan[0].Tool)
	assert.Equal(t, "d", plan[1].Tool)
}

func TestAnswerCompletesSession(t *testing.T) {
	s := New("goal")
	answer := "created node john-doe"
	s.Apply(Delta{Answer: &answer}, NodeAnswer)

	assert.Equal(t, StatusCompleted, s.Status())
	assert.Equal(t, answer, s.Answer())
	assert.True(t, s.Node().IsTerminal())
}

func TestFailTerminatesSession(t *testing.T) {
	s := New("goal")
	reason := "escalation timed out"
	s.Apply(Delta{Fail: &reason}, NodeFailed)

	assert.Equal(t, StatusFailed, s.Status())
	assert.True(t, s.Node().IsTerminal())
}

func TestSnapshotRoundTripPreservesSuspension(t *testing.T) {
	// A session suspended mid-disambiguation must resume at disambiguate
	// with the candidate list intact.
	s := New("update John's record")
	s.Apply(Delta{Intent: &intent.IntentSpec{
		Goal:       "update John's record",
		Type:       intent.IntentUpdate,
		Mentions:   []string{"John"},
		Complexity: intent.ComplexityComplex,
	}}, NodeResolveEntities)

	resolved := &resolve.ResolvedGoalSpec{
		Goal: "update John's record",
		Ambiguities: []resolve.AmbiguityResolution{{
			Mention:  resolve.EntityMention{SurfaceForm: "John"},
			Question: "Which entity does \"John\" refer to?",
			Candidates: []resolve.EntityCandidate{
				{CandidateID: types.NewID(), Key: "john-doe", Name: "John Doe", Score: 0.5},
				{CandidateID: types.NewID(), Key: "john-smith", Name: "John Smith", Score: 0.5},
			},
			Status: resolve.AmbiguityPending,
		}},
	}
	s.Apply(Delta{Resolved: resolved, Suspend: true}, NodeDisambiguate)

	data, err := s.Snapshot()
	require.NoError(t, err)

	restored, err := Restore(data)
	require.NoError(t, err)

	assert.Equal(t, s.ID(), restored.ID())
	assert.Equal(t, NodeDisambiguate, restored.Node())
	assert.Equal(t, StatusSuspended, restored.Status())

	require.NotNil(t, restored.Resolved())
	require.Len(t, restored.Resolved().Ambiguities, 1)
	candidates := restored.Resolved().Ambiguities[0].Candidates
	require.Len(t, candidates, 2)
	assert.Equal(t, "john-doe", candidates[0].Key)
	assert.Equal(t, "john-smith", candidates[1].Key)
}

func TestRestoreRejectsGarbage(t *testing.T) {
	_, err := Restore([]byte("not json"))
	require.Error(t, err)
	assert.Equal(t, types.CHECKPOINT_FAILED, types.CodeOf(err))

	_, err = Restore([]byte(`{"id": "not-a-uuid"}`))
	require.Error(t, err)
}

func TestResumeClearsEscalation(t *testing.T) {
	s := New("goal")
	s.Apply(Delta{Suspend: true}, NodeEscalate)
	assert.Equal(t, StatusSuspended, s.Status())

	s.Apply(Delta{Resume: true}, NodePlanStep)
	assert.Equal(t, StatusRunning, s.Status())
	assert.Nil(t, s.Escalation())
}
