package intent

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/graphwright/graphwright/internal/llm"
	"github.com/graphwright/graphwright/internal/types"
)

func TestParseSuccess(t *testing.T) {
	mock := llm.NewMockProvider().Script(`{
		"intent_type": "create",
		"mentions": ["John Doe", "platform team", "john doe"],
		"complexity": "simple",
		"requires_graph_context": true
	}`)

	parser := NewParser(mock)
	spec, err := parser.Parse(context.Background(), "add John Doe to the platform team")
	require.NoError(t, err)

	assert.Equal(t, IntentCreate, spec.Type)
	assert.Equal(t, ComplexitySimple, spec.Complexity)
	assert.True(t, spec.RequiresGraphContext)
	// Duplicate mentions are collapsed case-insensitively.
	assert.Equal(t, []string{"John Doe", "platform team"}, spec.Mentions)
	assert.Equal(t, "add John Doe to the platform team", spec.Goal)
}

func TestParseEmptyGoalFails(t *testing.T) {
	parser := NewParser(llm.NewMockProvider())

	_, err := parser.Parse(context.Background(), "   ")
	require.Error(t, err)
	assert.Equal(t, types.VALIDATION_FAILED, types.CodeOf(err))
}

func TestParseRetriesMalformedOutput(t *testing.T) {
	mock := llm.NewMockProvider().
		Script("sorry, here is prose instead of JSON").
		Script(`{"intent_type": "query", "mentions": ["alice"], "complexity": "simple", "requires_graph_context": false}`)

	parser := NewParser(mock)
	spec, err := parser.Parse(context.Background(), "who does alice report to")
	require.NoError(t, err)

	assert.Equal(t, IntentQuery, spec.Type)
	assert.Len(t, mock.Calls(), 2)
}

func TestParseExhaustsRetries(t *testing.T) {
	mock := llm.NewMockProvider().
		Script("not json").
		Script("still not json")

	parser := NewParser(mock, WithMaxRetries(1))
	_, err := parser.Parse(context.Background(), "do something")
	require.Error(t, err)
	assert.Equal(t, types.COMPLETION_MALFORMED, types.CodeOf(err))
}

func TestParseNonRetryableErrorStops(t *testing.T) {
	mock := llm.NewMockProvider().
		ScriptError(types.NewError(types.COMPLETION_FAILED, "invalid api key"))

	parser := NewParser(mock)
	_, err := parser.Parse(context.Background(), "do something")
	require.Error(t, err)
	assert.Len(t, mock.Calls(), 1)
}

func TestParseNormalizesUnknownIntentType(t *testing.T) {
	mock := llm.NewMockProvider().Script(`{
		"intent_type": "summarize",
		"mentions": [],
		"complexity": "weird",
		"requires_graph_context": false
	}`)

	parser := NewParser(mock)
	spec, err := parser.Parse(context.Background(), "summarize the graph")
	require.NoError(t, err)

	assert.Equal(t, IntentUnknown, spec.Type)
	// Unrecognized complexity defaults to complex so the planner stays in
	// the loop.
	assert.Equal(t, ComplexityComplex, spec.Complexity)
}

func TestIsSimple(t *testing.T) {
	tests := []struct {
		name string
		spec IntentSpec
		want bool
	}{
		{
			name: "single mention create",
			spec: IntentSpec{Type: IntentCreate, Mentions: []string{"x"}, Complexity: ComplexitySimple},
			want: true,
		},
		{
			name: "query with no mentions",
			spec: IntentSpec{Type: IntentQuery, Complexity: ComplexitySimple},
			want: true,
		},
		{
			name: "complex create",
			spec: IntentSpec{Type: IntentCreate, Mentions: []string{"x"}, Complexity: ComplexityComplex},
			want: false,
		},
		{
			name: "multi-mention",
			spec: IntentSpec{Type: IntentCreate, Mentions: []string{"x", "y"}, Complexity: ComplexitySimple},
			want: false,
		},
		{
			name: "update never skips planning",
			spec: IntentSpec{Type: IntentUpdate, Mentions: []string{"x"}, Complexity: ComplexitySimple},
			want: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.spec.IsSimple())
		})
	}
}
