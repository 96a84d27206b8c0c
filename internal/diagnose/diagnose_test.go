package diagnose

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/graphwright/graphwright/internal/types"
)

func failure(attempt int, toolName string, code types.ErrorCode, args map[string]any) Failure {
	return Failure{
		Attempt:   attempt,
		Tool:      toolName,
		Args:      args,
		ErrorCode: code,
		Message:   "failed",
	}
}

func TestSignatureNormalizesOrderAndCase(t *testing.T) {
	a := failure(1, "upsert_node", types.CONSTRAINT_VIOLATION, map[string]any{"key": "x", "label": "Person"})
	b := failure(2, "Upsert_Node", types.CONSTRAINT_VIOLATION, map[string]any{"label": "Person", "key": "x"})
	b.Message = "  FAILED "

	assert.Equal(t, a.Signature(), b.Signature())
}

func TestSignatureDistinguishesArgValues(t *testing.T) {
	a := failure(1, "upsert_node", types.CONSTRAINT_VIOLATION, map[string]any{"key": "alpha"})
	b := failure(2, "upsert_node", types.CONSTRAINT_VIOLATION, map[string]any{"key": "beta"})

	assert.NotEqual(t, a.Signature(), b.Signature())
}

func TestClassifyChangedArgValuesAreNotIdentical(t *testing.T) {
	// The planner already varied the call; treating the retries as identical
	// would escalate a step that is still making progress.
	a := failure(1, "upsert_node", types.CONSTRAINT_VIOLATION, map[string]any{"key": "alpha"})
	a.Message = "key alpha already bound to another label"
	b := failure(2, "upsert_node", types.CONSTRAINT_VIOLATION, map[string]any{"key": "beta"})
	b.Message = "key beta already bound to another label"

	diagnosis, err := Classify([]Failure{a, b})
	require.NoError(t, err)
	assert.NotEqual(t, ClassIdentical, diagnosis.Class)
}

func TestClassifyEmptyHistoryFails(t *testing.T) {
	_, err := Classify(nil)
	require.Error(t, err)
	assert.Equal(t, types.VALIDATION_FAILED, types.CodeOf(err))
}

func TestClassifySingleFailureIsRandom(t *testing.T) {
	diagnosis, err := Classify([]Failure{
		failure(1, "run_query", types.QUERY_FAILED, nil),
	})
	require.NoError(t, err)
	assert.Equal(t, ClassRandom, diagnosis.Class)
}

func TestClassifyConsecutiveIdenticalFailures(t *testing.T) {
	history := []Failure{
		failure(1, "upsert_node", types.CONSTRAINT_VIOLATION, map[string]any{"key": "x"}),
		failure(2, "upsert_node", types.CONSTRAINT_VIOLATION, map[string]any{"key": "x"}),
	}

	diagnosis, err := Classify(history)
	require.NoError(t, err)
	assert.Equal(t, ClassIdentical, diagnosis.Class)
	assert.Contains(t, diagnosis.Remediation, "upsert_node")
}

func TestClassifySystematicRecurrence(t *testing.T) {
	// The same signature recurs with a different failure in between.
	history := []Failure{
		failure(1, "upsert_edge", types.NOT_FOUND, map[string]any{"key": "e"}),
		failure(2, "run_query", types.QUERY_FAILED, nil),
		failure(3, "upsert_edge", types.NOT_FOUND, map[string]any{"key": "e"}),
	}

	diagnosis, err := Classify(history)
	require.NoError(t, err)
	assert.Equal(t, ClassSystematic, diagnosis.Class)
}

func TestClassifySingleToolAlwaysFailing(t *testing.T) {
	history := []Failure{
		failure(1, "run_query", types.QUERY_FAILED, map[string]any{"query": "a"}),
		failure(2, "run_query", types.VALIDATION_FAILED, map[string]any{"params": "b"}),
		failure(3, "run_query", types.GRAPH_UNAVAILABLE, nil),
	}

	diagnosis, err := Classify(history)
	require.NoError(t, err)
	assert.Equal(t, ClassSystematic, diagnosis.Class)
	assert.Contains(t, diagnosis.Reason, "run_query")
}

func TestClassifyUnrelatedFailuresAreRandom(t *testing.T) {
	history := []Failure{
		failure(1, "upsert_node", types.GRAPH_UNAVAILABLE, map[string]any{"key": "x"}),
		failure(2, "run_query", types.QUERY_FAILED, nil),
	}

	diagnosis, err := Classify(history)
	require.NoError(t, err)
	assert.Equal(t, ClassRandom, diagnosis.Class)
}
