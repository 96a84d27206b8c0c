package tool

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/graphwright/graphwright/internal/types"
)

// Executor validates planner signatures against tool schemas and runs them,
// folding every outcome into an ExecutionResult. The executor never returns
// a Go error for a failed invocation; errors are reserved for nil inputs.
type Executor struct {
	registry *Registry
	timeout  time.Duration
	logger   *slog.Logger
}

// ExecutorOption configures an Executor.
type ExecutorOption func(*Executor)

// WithExecutorLogger sets the executor's logger.
func WithExecutorLogger(logger *slog.Logger) ExecutorOption {
	return func(e *Executor) {
		e.logger = logger
	}
}

// WithToolTimeout bounds each tool invocation independently of any session
// deadline. Zero means no per-call limit.
func WithToolTimeout(timeout time.Duration) ExecutorOption {
	return func(e *Executor) {
		if timeout > 0 {
			e.timeout = timeout
		}
	}
}

// NewExecutor creates an executor over the given registry.
func NewExecutor(registry *Registry, opts ...ExecutorOption) *Executor {
	e := &Executor{
		registry: registry,
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Execute runs one signature end to end: shape check, tool lookup, argument
// validation against the tool's schema, then execution. Unknown tools and
// rejected arguments surface as validation_error results without running
// anything.
func (e *Executor) Execute(ctx context.Context, sig ToolSignature) ExecutionResult {
	result := ExecutionResult{
		Signature:  sig,
		ExecutedAt: time.Now().UTC(),
	}

	if err := sig.Validate(); err != nil {
		// A structurally broken signature cannot be fixed by replanning.
		return e.validationFailure(result, err, false)
	}

	t, err := e.registry.Get(sig.Tool)
	if err != nil {
		return e.validationFailure(result, err, true)
	}

	if err := ValidateArgs(t.InputSchema(), sig.Args); err != nil {
		// Schema mismatches are retryable: the planner can correct the
		// arguments on the next attempt.
		return e.validationFailure(result, err, true)
	}

	execCtx := ctx
	if e.timeout > 0 {
		var cancel context.CancelFunc
		execCtx, cancel = context.WithTimeout(ctx, e.timeout)
		defer cancel()
	}

	start := time.Now()
	output, err := e.registry.Execute(execCtx, sig.Tool, sig.Args)
	result.Duration = time.Since(start)

	if err != nil {
		if execCtx.Err() != nil && ctx.Err() == nil {
			// The per-call budget expired, not the session's. A hung tool
			// call is worth one more attempt.
			err = types.NewRetryableError(types.TOOL_EXEC_FAILED,
				fmt.Sprintf("tool %q timed out after %s", sig.Tool, e.timeout))
		}
		result.Status = StatusExecutionError
		result.Error = err.Error()
		result.ErrorCode = types.CodeOf(err)
		result.Retryable = types.IsRetryable(err)
		e.logger.Warn("tool execution failed",
			"tool", sig.Tool,
			"error_code", result.ErrorCode,
			"retryable", result.Retryable,
			"duration", result.Duration)
		return result
	}

	result.Status = StatusSuccess
	result.Output = output
	e.logger.Debug("tool executed",
		"tool", sig.Tool,
		"duration", result.Duration)
	return result
}

func (e *Executor) validationFailure(result ExecutionResult, err error, retryable bool) ExecutionResult {
	result.Status = StatusValidationError
	result.Error = err.Error()
	result.ErrorCode = types.CodeOf(err)
	result.Retryable = retryable
	e.logger.Warn("tool signature rejected",
		"tool", result.Signature.Tool,
		"retryable", retryable,
		"error", err)
	return result
}

// ValidateArgs checks arguments against a tool's declared schema: required
// keys must be present and values must match their declared JSON type.
// Arguments not named in the schema are rejected when the schema closes
// additional properties.
func ValidateArgs(schema *types.JSONSchema, args map[string]any) error {
	if schema == nil {
		return nil
	}

	for _, required := range schema.Required {
		if _, ok := args[required]; !ok {
			return types.NewError(types.VALIDATION_FAILED,
				fmt.Sprintf("missing required argument %q", required))
		}
	}

	for name, value := range args {
		propSchema, declared := schema.Properties[name]
		if !declared {
			if schema.AdditionalProperties != nil && !*schema.AdditionalProperties {
				return types.NewError(types.VALIDATION_FAILED,
					fmt.Sprintf("unexpected argument %q", name))
			}
			continue
		}
		if err := validateValue(name, propSchema, value); err != nil {
			return err
		}
	}

	return nil
}

func validateValue(name string, schema *types.JSONSchema, value any) error {
	if schema == nil || schema.Type == "" {
		return nil
	}
	if value == nil {
		return nil
	}

	ok := true
	switch schema.Type {
	case "string":
		_, ok = value.(string)
	case "number":
		switch value.(type) {
		case float64, float32, int, int32, int64:
		default:
			ok = false
		}
	case "boolean":
		_, ok = value.(bool)
	case "object":
		_, ok = value.(map[string]any)
	case "array":
		_, ok = value.([]any)
	}

	if !ok {
		return types.NewError(types.VALIDATION_FAILED,
			fmt.Sprintf("argument %q must be of type %s", name, schema.Type))
	}

	if len(schema.Enum) > 0 {
		for _, allowed := range schema.Enum {
			if value == allowed {
				return nil
			}
		}
		return types.NewError(types.VALIDATION_FAILED,
			fmt.Sprintf("argument %q is not one of the allowed values", name))
	}

	return nil
}
