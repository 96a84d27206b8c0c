package intent

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/graphwright/graphwright/internal/llm"
	"github.com/graphwright/graphwright/internal/types"
)

const systemPrompt = `You classify goals for a property-graph assistant.
Given a goal, identify the graph operation it asks for, list every entity
mention verbatim as it appears in the goal, and judge whether the goal needs
multi-step planning. Use intent type "unknown" when the goal does not map to
a graph operation. Respond with JSON only.`

// intentSchema constrains the parser's structured output.
func intentSchema() *types.JSONSchema {
	return types.ObjectSchema(map[string]*types.JSONSchema{
		"intent_type": types.StringSchema("operation the goal asks for",
			string(IntentCreate), string(IntentQuery), string(IntentUpdate), string(IntentDelete), string(IntentUnknown)),
		"mentions": types.ArraySchema(
			types.StringSchema("entity mention verbatim from the goal"),
			"every entity mentioned in the goal"),
		"complexity": types.StringSchema("whether the goal needs multi-step planning",
			string(ComplexitySimple), string(ComplexityComplex)),
		"requires_graph_context": types.BoolSchema("whether existing graph state must be consulted"),
	}, "intent_type", "mentions", "complexity", "requires_graph_context")
}

// intentPayload is the wire shape of the model's answer.
type intentPayload struct {
	IntentType           string   `json:"intent_type"`
	Mentions             []string `json:"mentions"`
	Complexity           string   `json:"complexity"`
	RequiresGraphContext bool     `json:"requires_graph_context"`
}

// Parser produces IntentSpecs from goal text via structured completion.
type Parser struct {
	provider    llm.Provider
	model       string
	temperature float64
	maxRetries  int
	logger      *slog.Logger
}

// ParserOption configures a Parser.
type ParserOption func(*Parser)

// WithModel overrides the completion model.
func WithModel(model string) ParserOption {
	return func(p *Parser) {
		p.model = model
	}
}

// WithMaxRetries sets how many times malformed output is retried.
func WithMaxRetries(n int) ParserOption {
	return func(p *Parser) {
		if n >= 0 {
			p.maxRetries = n
		}
	}
}

// WithLogger sets the parser's logger.
func WithLogger(logger *slog.Logger) ParserOption {
	return func(p *Parser) {
		p.logger = logger
	}
}

// NewParser creates a parser over the given provider.
func NewParser(provider llm.Provider, opts ...ParserOption) *Parser {
	p := &Parser{
		provider:    provider,
		temperature: 0.1,
		maxRetries:  3,
		logger:      slog.Default(),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Parse turns a goal into an IntentSpec. Malformed model output is retried
// with backoff up to the configured limit; the last error is returned once
// retries are exhausted.
func (p *Parser) Parse(ctx context.Context, goal string) (*IntentSpec, error) {
	if strings.TrimSpace(goal) == "" {
		return nil, types.NewError(types.VALIDATION_FAILED, "goal text is empty")
	}

	req := llm.CompletionRequest{
		Model: p.model,
		Messages: []llm.Message{
			llm.NewSystemMessage(systemPrompt),
			llm.NewUserMessage(fmt.Sprintf("Goal: %s", goal)),
		},
		Temperature: p.temperature,
	}

	var lastErr error
	for attempt := 0; attempt <= p.maxRetries; attempt++ {
		if attempt > 0 {
			backoff := time.Duration(100*(1<<(attempt-1))) * time.Millisecond
			select {
			case <-ctx.Done():
				return nil, types.WrapError(types.COMPLETION_FAILED, "intent parsing cancelled", ctx.Err())
			case <-time.After(backoff):
			}
		}

		var payload intentPayload
		if err := p.provider.CompleteStructured(ctx, req, intentSchema(), &payload); err != nil {
			lastErr = err
			if !types.IsRetryable(err) {
				return nil, err
			}
			p.logger.Debug("intent parse attempt failed",
				"attempt", attempt+1,
				"error", err)
			continue
		}

		spec := specFromPayload(goal, payload)
		if err := spec.Validate(); err != nil {
			lastErr = err
			continue
		}
		return &spec, nil
	}

	return nil, types.WrapError(types.COMPLETION_MALFORMED,
		fmt.Sprintf("intent parsing failed after %d attempts", p.maxRetries+1), lastErr)
}

// specFromPayload normalizes model output into a spec. An intent type the
// parser does not recognize becomes unknown rather than an error: the model
// expressed uncertainty, not malformed output.
func specFromPayload(goal string, payload intentPayload) IntentSpec {
	intentType := IntentType(strings.ToLower(strings.TrimSpace(payload.IntentType)))
	if _, ok := knownIntentTypes[intentType]; !ok {
		intentType = IntentUnknown
	}

	complexity := Complexity(strings.ToLower(strings.TrimSpace(payload.Complexity)))
	if complexity != ComplexitySimple && complexity != ComplexityComplex {
		complexity = ComplexityComplex
	}

	seen := make(map[string]struct{})
	var mentions []string
	for _, m := range payload.Mentions {
		m = strings.TrimSpace(m)
		if m == "" {
			continue
		}
		lower := strings.ToLower(m)
		if _, dup := seen[lower]; dup {
			continue
		}
		seen[lower] = struct{}{}
		mentions = append(mentions, m)
	}

	return IntentSpec{
		Goal:                 goal,
		Type:                 intentType,
		Mentions:             mentions,
		Complexity:           complexity,
		RequiresGraphContext: payload.RequiresGraphContext,
		ParsedAt:             time.Now().UTC(),
	}
}
