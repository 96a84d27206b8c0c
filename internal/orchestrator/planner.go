package orchestrator

import (
	"context"
	"log/slog"
	"time"

	"github.com/graphwright/graphwright/internal/llm"
	"github.com/graphwright/graphwright/internal/prompt"
	"github.com/graphwright/graphwright/internal/session"
	"github.com/graphwright/graphwright/internal/tool"
	"github.com/graphwright/graphwright/internal/types"
)

// planPayload is the wire shape of the planner's answer: either the next
// tool invocation or a declaration that the goal is complete.
type planPayload struct {
	Done      bool           `json:"done"`
	Answer    string         `json:"answer,omitempty"`
	Tool      string         `json:"tool,omitempty"`
	Args      map[string]any `json:"args,omitempty"`
	Rationale string         `json:"rationale,omitempty"`
}

// planDecision is the planner's validated output.
type planDecision struct {
	Done      bool
	Answer    string
	Signature tool.ToolSignature
}

// planner asks the completion service for the next step. Prompts come from
// the context manager so disclosure stays monotonic across retries.
type planner struct {
	provider    llm.Provider
	builder     *prompt.ContextManager
	model       string
	temperature float64
	maxRetries  int
	logger      *slog.Logger
}

// planSchema constrains the planner's structured output. The tool name is
// an enum over the registered tools, so the model cannot invent one.
func planSchema(descriptors []tool.ToolDescriptor) *types.JSONSchema {
	names := make([]string, 0, len(descriptors))
	for _, d := range descriptors {
		names = append(names, d.Name)
	}
	return types.ObjectSchema(map[string]*types.JSONSchema{
		"done":      types.BoolSchema("true when the goal is already satisfied and no tool call is needed"),
		"answer":    types.StringSchema("final answer for the caller, required when done is true"),
		"tool":      types.StringSchema("tool to invoke next", names...),
		"args":      {Type: "object", Description: "arguments for the tool, matching its schema"},
		"rationale": types.StringSchema("one sentence on why this step advances the goal"),
	}, "done")
}

// Next plans the next step for the session. Malformed model output is
// retried with backoff up to the configured limit.
func (p *planner) Next(ctx context.Context, state *session.State, descriptors []tool.ToolDescriptor) (*planDecision, error) {
	input := p.builder.Build(state, descriptors)
	req := llm.CompletionRequest{
		Model: p.model,
		Messages: []llm.Message{
			llm.NewSystemMessage(input.System),
			llm.NewUserMessage(input.Prompt),
		},
		Temperature: p.temperature,
	}
	schema := planSchema(descriptors)

	var lastErr error
	for attempt := 0; attempt <= p.maxRetries; attempt++ {
		if attempt > 0 {
			backoff := time.Duration(100*(1<<(attempt-1))) * time.Millisecond
			select {
			case <-ctx.Done():
				return nil, types.WrapError(types.COMPLETION_FAILED, "planning cancelled", ctx.Err())
			case <-time.After(backoff):
			}
		}

		var payload planPayload
		if err := p.provider.CompleteStructured(ctx, req, schema, &payload); err != nil {
			lastErr = err
			if !types.IsRetryable(err) {
				return nil, err
			}
			p.logger.Warn("planning attempt failed",
				"attempt", attempt+1,
				"error", err)
			continue
		}

		decision, err := decisionFromPayload(payload)
		if err != nil {
			lastErr = err
			p.logger.Warn("planner output rejected",
				"attempt", attempt+1,
				"error", err)
			continue
		}
		return decision, nil
	}

	return nil, types.WrapError(types.COMPLETION_MALFORMED,
		"planning failed after retries", lastErr)
}

// decisionFromPayload validates the raw payload. An open step must name a
// tool; the enum in the schema usually guarantees this, but model output is
// never trusted.
func decisionFromPayload(payload planPayload) (*planDecision, error) {
	if payload.Done {
		answer := payload.Answer
		if answer == "" {
			answer = "goal completed"
		}
		return &planDecision{Done: true, Answer: answer}, nil
	}

	if payload.Tool == "" {
		return nil, types.NewRetryableError(types.COMPLETION_MALFORMED,
			"planner named no tool and did not declare the goal done")
	}

	return &planDecision{
		Signature: tool.ToolSignature{
			Tool:      payload.Tool,
			Args:      payload.Args,
			Rationale: payload.Rationale,
		},
	}, nil
}
