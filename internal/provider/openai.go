package provider

import (
	"context"
	"fmt"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
)

// OpenAIProvider implements the Provider interface for OpenAI-compatible
// chat completion APIs (OpenAI, OpenRouter, self-hosted gateways).
type OpenAIProvider struct {
	client *openai.Client
	name   string
	model  string
	models []string
}

// OpenAIConfig holds configuration for OpenAI-compatible providers.
type OpenAIConfig struct {
	APIKey  string
	BaseURL string
	Model   string
}

// NewOpenAI creates a provider for the OpenAI API.
func NewOpenAI(cfg OpenAIConfig) (*OpenAIProvider, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("OPENAI_API_KEY is required")
	}
	model := cfg.Model
	if model == "" {
		model = "gpt-4o-mini"
	}
	return newOpenAICompatible("openai", cfg.APIKey, cfg.BaseURL, model,
		[]string{"gpt-4o-mini", "gpt-4o", "gpt-4.1-mini"}), nil
}

// NewOpenRouter creates a provider for OpenRouter.
func NewOpenRouter(cfg OpenAIConfig) (*OpenAIProvider, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("OPENROUTER_API_KEY is required")
	}

	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = "https://openrouter.ai/api/v1"
	}

	model := cfg.Model
	if model == "" {
		model = "google/gemini-2.0-flash-001"
	}

	return newOpenAICompatible("openrouter", cfg.APIKey, baseURL, model, []string{
		"google/gemini-2.0-flash-001",
		"anthropic/claude-3.5-haiku",
		"openai/gpt-4o-mini",
		"meta-llama/llama-3.3-70b-instruct",
	}), nil
}

func newOpenAICompatible(name, apiKey, baseURL, model string, models []string) *OpenAIProvider {
	opts := []option.RequestOption{option.WithAPIKey(apiKey)}
	if baseURL != "" {
		opts = append(opts, option.WithBaseURL(baseURL))
	}
	client := openai.NewClient(opts...)

	return &OpenAIProvider{
		client: &client,
		name:   name,
		model:  model,
		models: models,
	}
}

func (p *OpenAIProvider) Name() string {
	return p.name
}

func (p *OpenAIProvider) Models() []string {
	return p.models
}

// Chat sends a non-streaming request. Stop sequences are not forwarded; the
// output parser cuts hallucinated observations instead.
func (p *OpenAIProvider) Chat(ctx context.Context, req *ChatRequest) (*ChatResponse, error) {
	maxTokens := req.MaxTokens
	if maxTokens == 0 {
		maxTokens = 1024
	}
	model := p.model
	if req.Model != "" {
		model = req.Model
	}

	params := openai.ChatCompletionNewParams{
		Model:    model,
		Messages: p.buildMessages(req),
	}
	params.MaxTokens = openai.Int(int64(maxTokens))
	params.Temperature = openai.Float(req.Temperature)

	resp, err := p.client.Chat.Completions.New(ctx, params)
	if err != nil {
		return nil, fmt.Errorf("%s chat failed: %w", p.name, err)
	}
	if len(resp.Choices) == 0 {
		return textResponse(resp.ID, "", "empty", 0, 0), nil
	}

	choice := resp.Choices[0]
	return textResponse(resp.ID, choice.Message.Content, choice.FinishReason,
		int(resp.Usage.PromptTokens), int(resp.Usage.CompletionTokens)), nil
}

func (p *OpenAIProvider) buildMessages(req *ChatRequest) []openai.ChatCompletionMessageParamUnion {
	var messages []openai.ChatCompletionMessageParamUnion

	if req.System != "" {
		messages = append(messages, openai.SystemMessage(req.System))
	}

	for _, msg := range req.Messages {
		switch msg.Role {
		case "assistant":
			messages = append(messages, openai.AssistantMessage(msg.Content))
		default:
			messages = append(messages, openai.UserMessage(msg.Content))
		}
	}

	return messages
}
