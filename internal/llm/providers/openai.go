// Package providers contains concrete completion-service adapters built on
// langchaingo. Any OpenAI-compatible endpoint (including local servers) is
// reachable through the OpenAI provider by overriding BaseURL.
package providers

import (
	"context"
	"os"
	"time"

	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/llms/openai"

	"github.com/graphwright/graphwright/internal/llm"
	"github.com/graphwright/graphwright/internal/types"
)

// OpenAIProvider implements llm.Provider for OpenAI-compatible backends.
type OpenAIProvider struct {
	client *openai.LLM
	config llm.ProviderConfig
}

// NewOpenAIProvider creates a new OpenAI-compatible provider.
func NewOpenAIProvider(cfg llm.ProviderConfig) (*OpenAIProvider, error) {
	apiKey := cfg.APIKey
	if apiKey == "" {
		apiKey = os.Getenv("OPENAI_API_KEY")
	}

	if apiKey == "" {
		return nil, types.NewError(types.COMPLETION_FAILED, "openai API key is not configured")
	}

	opts := []openai.Option{
		openai.WithToken(apiKey),
	}

	if cfg.DefaultModel != "" {
		opts = append(opts, openai.WithModel(cfg.DefaultModel))
	}

	if cfg.BaseURL != "" {
		opts = append(opts, openai.WithBaseURL(cfg.BaseURL))
	}

	client, err := openai.New(opts...)
	if err != nil {
		return nil, types.WrapError(types.COMPLETION_FAILED, "failed to create openai client", err)
	}

	return &OpenAIProvider{
		client: client,
		config: cfg,
	}, nil
}

// Name returns the provider name.
func (p *OpenAIProvider) Name() string {
	return "openai"
}

// Complete sends a completion request.
func (p *OpenAIProvider) Complete(ctx context.Context, req llm.CompletionRequest) (*llm.CompletionResponse, error) {
	if p.config.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, p.config.Timeout)
		defer cancel()
	}

	messages := toLangchainMessages(req.Messages)
	callOpts := buildCallOptions(req)

	start := time.Now()
	resp, err := p.client.GenerateContent(ctx, messages, callOpts...)
	if err != nil {
		return nil, types.WrapRetryableError(types.COMPLETION_FAILED, "openai completion failed", err)
	}

	return fromLangchainResponse(resp, req.Model, time.Since(start)), nil
}

// CompleteStructured sends a schema-constrained request and decodes the
// response into out. The schema is rendered into the prompt; extraction
// tolerates code-fenced output from models without native JSON mode.
func (p *OpenAIProvider) CompleteStructured(ctx context.Context, req llm.CompletionRequest, schema *types.JSONSchema, out any) error {
	instruction, err := llm.StructuredPrompt(schema)
	if err != nil {
		return err
	}

	structured := req
	structured.Messages = append([]llm.Message{llm.NewSystemMessage(instruction)}, req.Messages...)
	if structured.Temperature == 0 {
		structured.Temperature = 0.1
	}

	resp, err := p.Complete(ctx, structured)
	if err != nil {
		return err
	}

	return llm.DecodeStructured(resp.Content, out)
}

// Health checks the provider with a minimal completion.
func (p *OpenAIProvider) Health(ctx context.Context) types.HealthStatus {
	req := llm.CompletionRequest{
		Model: p.config.DefaultModel,
		Messages: []llm.Message{
			llm.NewUserMessage("ping"),
		},
		MaxTokens: 1,
	}

	if _, err := p.Complete(ctx, req); err != nil {
		return types.Unhealthy(err.Error())
	}

	return types.Healthy("")
}

// toLangchainMessages converts request messages to langchaingo content.
func toLangchainMessages(messages []llm.Message) []llms.MessageContent {
	converted := make([]llms.MessageContent, 0, len(messages))
	for _, msg := range messages {
		role := llms.ChatMessageTypeHuman
		switch msg.Role {
		case llm.RoleSystem:
			role = llms.ChatMessageTypeSystem
		case llm.RoleModel:
			role = llms.ChatMessageTypeAI
		}
		converted = append(converted, llms.TextParts(role, msg.Content))
	}
	return converted
}

// buildCallOptions maps request settings onto langchaingo call options.
func buildCallOptions(req llm.CompletionRequest) []llms.CallOption {
	var opts []llms.CallOption
	if req.Model != "" {
		opts = append(opts, llms.WithModel(req.Model))
	}
	if req.MaxTokens > 0 {
		opts = append(opts, llms.WithMaxTokens(req.MaxTokens))
	}
	if req.Temperature > 0 {
		opts = append(opts, llms.WithTemperature(req.Temperature))
	}
	return opts
}

// fromLangchainResponse converts a langchaingo response to the local shape.
func fromLangchainResponse(resp *llms.ContentResponse, model string, latency time.Duration) *llm.CompletionResponse {
	out := &llm.CompletionResponse{
		Model:   model,
		Latency: latency,
	}

	if len(resp.Choices) > 0 {
		choice := resp.Choices[0]
		out.Content = choice.Content

		if choice.GenerationInfo != nil {
			if v, ok := choice.GenerationInfo["PromptTokens"].(int); ok {
				out.PromptTokens = v
			}
			if v, ok := choice.GenerationInfo["CompletionTokens"].(int); ok {
				out.CompletionTokens = v
			}
		}
	}

	return out
}
