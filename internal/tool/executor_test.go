package tool

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/graphwright/graphwright/internal/types"
)

// hangingTool blocks until its context is cancelled.
type hangingTool struct{}

func (h *hangingTool) Name() string                   { return "slow_query" }
func (h *hangingTool) Description() string            { return "blocks until cancelled" }
func (h *hangingTool) InputSchema() *types.JSONSchema { return nil }

func (h *hangingTool) Health(ctx context.Context) types.HealthStatus {
	return types.Healthy("")
}

func (h *hangingTool) Execute(ctx context.Context, args map[string]any) (map[string]any, error) {
	<-ctx.Done()
	return nil, ctx.Err()
}

func newExecutorWith(t *testing.T, tools ...Tool) *Executor {
	t.Helper()
	registry := NewRegistry()
	for _, tl := range tools {
		require.NoError(t, registry.Register(tl))
	}
	return NewExecutor(registry)
}

func TestExecutorSuccess(t *testing.T) {
	executor := newExecutorWith(t, &fakeTool{
		name:    "upsert_node",
		output:  map[string]any{"key": "john-doe"},
		healthy: true,
		schema: types.ObjectSchema(map[string]*types.JSONSchema{
			"key": types.StringSchema("natural key"),
		}, "key"),
	})

	result := executor.Execute(context.Background(), ToolSignature{
		Tool: "upsert_node",
		Args: map[string]any{"key": "john-doe"},
	})

	assert.Equal(t, StatusSuccess, result.Status)
	assert.True(t, result.Succeeded())
	assert.Equal(t, "john-doe", result.Output["key"])
	assert.Empty(t, result.Error)
}

func TestExecutorUnknownToolIsValidationError(t *testing.T) {
	executor := newExecutorWith(t)

	result := executor.Execute(context.Background(), ToolSignature{Tool: "nonexistent"})

	assert.Equal(t, StatusValidationError, result.Status)
	assert.Equal(t, types.TOOL_NOT_FOUND, result.ErrorCode)
	// The planner can name a registered tool on its next attempt.
	assert.True(t, result.Retryable)
}

func TestExecutorMalformedSignatureNotRetryable(t *testing.T) {
	executor := newExecutorWith(t)

	result := executor.Execute(context.Background(), ToolSignature{})

	assert.Equal(t, StatusValidationError, result.Status)
	assert.False(t, result.Retryable)
}

func TestExecutorMissingRequiredArgIsRetryable(t *testing.T) {
	ft := &fakeTool{
		name:    "upsert_node",
		healthy: true,
		schema: types.ObjectSchema(map[string]*types.JSONSchema{
			"key": types.StringSchema("natural key"),
		}, "key"),
	}
	executor := newExecutorWith(t, ft)

	result := executor.Execute(context.Background(), ToolSignature{
		Tool: "upsert_node",
		Args: map[string]any{},
	})

	assert.Equal(t, StatusValidationError, result.Status)
	// A schema mismatch is correctable output, not a dead end.
	assert.True(t, result.Retryable)
	// Validation failures never reach the tool.
	assert.Zero(t, ft.calls)
}

func TestExecutorWrongArgType(t *testing.T) {
	executor := newExecutorWith(t, &fakeTool{
		name:    "upsert_node",
		healthy: true,
		schema: types.ObjectSchema(map[string]*types.JSONSchema{
			"key": types.StringSchema("natural key"),
		}, "key"),
	})

	result := executor.Execute(context.Background(), ToolSignature{
		Tool: "upsert_node",
		Args: map[string]any{"key": 42},
	})

	assert.Equal(t, StatusValidationError, result.Status)
}

func TestExecutorExecutionErrorCarriesRetryability(t *testing.T) {
	executor := newExecutorWith(t, &fakeTool{
		name:    "flaky",
		healthy: true,
		err:     types.NewRetryableError(types.GRAPH_UNAVAILABLE, "connection reset"),
	})

	result := executor.Execute(context.Background(), ToolSignature{Tool: "flaky"})

	assert.Equal(t, StatusExecutionError, result.Status)
	assert.True(t, result.Retryable)
	assert.NotEmpty(t, result.Error)
}

func TestExecutorToolTimeout(t *testing.T) {
	registry := NewRegistry()
	require.NoError(t, registry.Register(&hangingTool{}))
	executor := NewExecutor(registry, WithToolTimeout(20*time.Millisecond))

	result := executor.Execute(context.Background(), ToolSignature{Tool: "slow_query"})

	assert.Equal(t, StatusExecutionError, result.Status)
	assert.Equal(t, types.TOOL_EXEC_FAILED, result.ErrorCode)
	assert.True(t, result.Retryable)
	assert.Contains(t, result.Error, "timed out")
}

func TestExecutorTimeoutLeavesSessionCancellationAlone(t *testing.T) {
	registry := NewRegistry()
	require.NoError(t, registry.Register(&hangingTool{}))
	executor := NewExecutor(registry, WithToolTimeout(time.Minute))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	result := executor.Execute(ctx, ToolSignature{Tool: "slow_query"})

	assert.Equal(t, StatusExecutionError, result.Status)
	assert.NotContains(t, result.Error, "timed out")
}

func TestValidateArgs(t *testing.T) {
	closed := false
	schema := &types.JSONSchema{
		Type: "object",
		Properties: map[string]*types.JSONSchema{
			"name":  types.StringSchema("a name"),
			"count": {Type: "number"},
			"mode":  types.StringSchema("mode", "fast", "safe"),
		},
		Required:             []string{"name"},
		AdditionalProperties: &closed,
	}

	tests := []struct {
		name    string
		args    map[string]any
		wantErr bool
	}{
		{name: "valid", args: map[string]any{"name": "x", "count": 3}},
		{name: "missing required", args: map[string]any{"count": 3}, wantErr: true},
		{name: "wrong type", args: map[string]any{"name": 1}, wantErr: true},
		{name: "enum violation", args: map[string]any{"name": "x", "mode": "reckless"}, wantErr: true},
		{name: "enum accepted", args: map[string]any{"name": "x", "mode": "safe"}},
		{name: "undeclared arg rejected", args: map[string]any{"name": "x", "extra": true}, wantErr: true},
		{name: "nil value passes type check", args: map[string]any{"name": "x", "count": nil}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateArgs(schema, tt.args)
			if tt.wantErr {
				require.Error(t, err)
				assert.Equal(t, types.VALIDATION_FAILED, types.CodeOf(err))
				return
			}
			require.NoError(t, err)
		})
	}
}
