package llm

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/graphwright/graphwright/internal/types"
)

func TestExtractJSON(t *testing.T) {
	tests := []struct {
		name     string
		response string
		expected string
		wantErr  bool
	}{
		{
			name:     "fenced json block",
			response: "Here you go:\n```json\n{\"a\": 1}\n```\nDone.",
			expected: `{"a": 1}`,
		},
		{
			name:     "unfenced object",
			response: `The answer is {"intent": "create"} as requested.`,
			expected: `{"intent": "create"}`,
		},
		{
			name:     "nested braces in strings",
			response: `{"msg": "use {curly} braces", "n": 2}`,
			expected: `{"msg": "use {curly} braces", "n": 2}`,
		},
		{
			name:     "array response",
			response: `[{"x": 1}, {"x": 2}]`,
			expected: `[{"x": 1}, {"x": 2}]`,
		},
		{
			name:     "fence tagged other language skipped",
			response: "```python\nprint('hi')\n```\n{\"ok\": true}",
			expected: `{"ok": true}`,
		},
		{
			name:     "no json at all",
			response: "I cannot help with that.",
			wantErr:  true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ExtractJSON(tt.response)
			if tt.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.expected, got)
		})
	}
}

func TestDecodeStructured(t *testing.T) {
	type payload struct {
		Intent string `json:"intent"`
	}

	var out payload
	err := DecodeStructured("```json\n{\"intent\": \"query\"}\n```", &out)
	require.NoError(t, err)
	assert.Equal(t, "query", out.Intent)

	err = DecodeStructured("no json here", &out)
	require.Error(t, err)
	assert.Equal(t, types.COMPLETION_MALFORMED, types.CodeOf(err))
	assert.True(t, types.IsRetryable(err))
}

func TestMockProviderScripting(t *testing.T) {
	mock := NewMockProvider().
		Script(`{"first": true}`).
		ScriptError(types.NewRetryableError(types.COMPLETION_FAILED, "transient"))

	ctx := context.Background()

	resp, err := mock.Complete(ctx, CompletionRequest{Messages: []Message{NewUserMessage("hi")}})
	require.NoError(t, err)
	assert.Equal(t, `{"first": true}`, resp.Content)

	_, err = mock.Complete(ctx, CompletionRequest{})
	require.Error(t, err)
	assert.True(t, types.IsRetryable(err))

	// Exhausted scripts fail loudly.
	_, err = mock.Complete(ctx, CompletionRequest{})
	require.Error(t, err)

	assert.Len(t, mock.Calls(), 3)
}

func TestMockProviderStructured(t *testing.T) {
	type out struct {
		Name string `json:"name"`
	}

	mock := NewMockProvider().Script(`{"name": "demo"}`)

	var result out
	err := mock.CompleteStructured(context.Background(), CompletionRequest{}, types.ObjectSchema(nil), &result)
	require.NoError(t, err)
	assert.Equal(t, "demo", result.Name)
}
