package llm

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/graphwright/graphwright/internal/types"
)

// Provider defines the completion service contract. Implementations are
// stateless per call and must be safe for concurrent use from multiple
// sessions. Providers return text or schema-conforming objects only; they
// never generate entity identifiers, which are minted in internal/types.
type Provider interface {
	// Name returns the provider name (e.g. "openai", "mock").
	Name() string

	// Complete sends a completion request and returns the full response.
	Complete(ctx context.Context, req CompletionRequest) (*CompletionResponse, error)

	// CompleteStructured sends a completion request constrained by a JSON
	// schema and unmarshals the result into out. The schema describes the
	// expected object; providers without native JSON mode fall back to
	// fenced-JSON extraction from the raw response.
	CompleteStructured(ctx context.Context, req CompletionRequest, schema *types.JSONSchema, out any) error

	// Health checks the health status of the provider and its connectivity.
	Health(ctx context.Context) types.HealthStatus
}

// StructuredPrompt renders the schema instruction appended to structured
// completion requests for providers without native schema enforcement.
func StructuredPrompt(schema *types.JSONSchema) (string, error) {
	schemaJSON, err := json.MarshalIndent(schema, "", "  ")
	if err != nil {
		return "", types.WrapError(types.COMPLETION_FAILED, "failed to render schema", err)
	}
	return fmt.Sprintf(
		"Respond with a single JSON object conforming to this JSON schema. "+
			"Do not include any text outside the JSON object.\n\nSchema:\n%s",
		schemaJSON), nil
}

// DecodeStructured extracts JSON from a raw model response and unmarshals it
// into out, returning a COMPLETION_MALFORMED error on failure. The error is
// retryable: a malformed completion is exactly the kind of failure a retry
// with more context can correct.
func DecodeStructured(raw string, out any) error {
	jsonStr, err := ExtractJSON(raw)
	if err != nil {
		return types.WrapRetryableError(types.COMPLETION_MALFORMED,
			"model response contained no JSON object", err)
	}

	if err := json.Unmarshal([]byte(jsonStr), out); err != nil {
		return types.WrapRetryableError(types.COMPLETION_MALFORMED,
			"model response did not match the expected schema", err)
	}

	return nil
}
