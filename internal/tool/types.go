package tool

import (
	"context"
	"time"

	"github.com/graphwright/graphwright/internal/types"
)

// Tool is a named, schema-described operation the planner may invoke.
// Implementations must be safe for concurrent use.
type Tool interface {
	// Name returns the unique tool name.
	Name() string

	// Description explains what the tool does, phrased for the planner.
	Description() string

	// InputSchema declares the arguments the tool accepts. Execution
	// validates against this schema before the tool runs.
	InputSchema() *types.JSONSchema

	// Execute runs the tool with validated arguments.
	Execute(ctx context.Context, args map[string]any) (map[string]any, error)

	// Health reports whether the tool can currently execute.
	Health(ctx context.Context) types.HealthStatus
}

// ToolDescriptor contains tool metadata for discovery and introspection.
type ToolDescriptor struct {
	Name        string            `json:"name"`
	Description string            `json:"description"`
	InputSchema *types.JSONSchema `json:"input_schema"`
}

// NewToolDescriptor creates a ToolDescriptor from a Tool.
func NewToolDescriptor(t Tool) ToolDescriptor {
	return ToolDescriptor{
		Name:        t.Name(),
		Description: t.Description(),
		InputSchema: t.InputSchema(),
	}
}

// ToolSignature is the planner's request to run one tool: the tool name and
// the arguments to pass. Signatures come from model output and are never
// trusted until validated.
type ToolSignature struct {
	Tool      string         `json:"tool"`
	Args      map[string]any `json:"args"`
	Rationale string         `json:"rationale,omitempty"`
}

// Validate checks the signature's basic shape. Argument validation against
// the tool's schema happens at execution time.
func (s ToolSignature) Validate() error {
	if s.Tool == "" {
		return types.NewError(types.VALIDATION_FAILED, "tool signature requires a tool name")
	}
	return nil
}

// ExecutionStatus classifies how a tool invocation ended.
type ExecutionStatus string

const (
	// StatusSuccess means the tool ran and produced output.
	StatusSuccess ExecutionStatus = "success"
	// StatusValidationError means the signature never reached the tool:
	// unknown tool name or arguments rejected by the schema.
	StatusValidationError ExecutionStatus = "validation_error"
	// StatusExecutionError means the tool ran and failed.
	StatusExecutionError ExecutionStatus = "execution_error"
)

// ExecutionResult is the uniform outcome of one tool invocation. Failures
// are carried as data, not as Go errors, so the evaluator and diagnoser can
// inspect them.
type ExecutionResult struct {
	Signature  ToolSignature   `json:"signature"`
	Status     ExecutionStatus `json:"status"`
	Output     map[string]any  `json:"output,omitempty"`
	Error      string          `json:"error,omitempty"`
	ErrorCode  types.ErrorCode `json:"error_code,omitempty"`
	Retryable  bool            `json:"retryable"`
	Duration   time.Duration   `json:"duration"`
	ExecutedAt time.Time       `json:"executed_at"`
}

// Succeeded reports whether the invocation completed successfully.
func (r ExecutionResult) Succeeded() bool {
	return r.Status == StatusSuccess
}

// ToolMetrics tracks tool execution statistics. Metrics are updated by the
// registry during execution; callers receive copies.
type ToolMetrics struct {
	TotalCalls     int64         `json:"total_calls"`
	SuccessCalls   int64         `json:"success_calls"`
	FailedCalls    int64         `json:"failed_calls"`
	TotalDuration  time.Duration `json:"total_duration"`
	AvgDuration    time.Duration `json:"avg_duration"`
	LastExecutedAt *time.Time    `json:"last_executed_at,omitempty"`
}

// RecordSuccess records a successful execution with the given duration.
func (m *ToolMetrics) RecordSuccess(duration time.Duration) {
	m.TotalCalls++
	m.SuccessCalls++
	m.TotalDuration += duration
	m.AvgDuration = m.TotalDuration / time.Duration(m.TotalCalls)
	now := time.Now()
	m.LastExecutedAt = &now
}

// RecordFailure records a failed execution with the given duration.
func (m *ToolMetrics) RecordFailure(duration time.Duration) {
	m.TotalCalls++
	m.FailedCalls++
	m.TotalDuration += duration
	m.AvgDuration = m.TotalDuration / time.Duration(m.TotalCalls)
	now := time.Now()
	m.LastExecutedAt = &now
}

// SuccessRate returns the success rate between 0.0 and 1.0.
func (m *ToolMetrics) SuccessRate() float64 {
	if m.TotalCalls == 0 {
		return 0.0
	}
	return float64(m.SuccessCalls) / float64(m.TotalCalls)
}
