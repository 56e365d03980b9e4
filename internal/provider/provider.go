// Package provider defines the LLM provider interface and types.
package provider

import (
	"context"
	"fmt"
	"strings"
)

// Provider is any LLM backend that can generate chat completions.
type Provider interface {
	// Chat sends a request and returns the complete response.
	Chat(ctx context.Context, req *ChatRequest) (*ChatResponse, error)

	// Name returns the provider name (e.g., "gemini", "anthropic").
	Name() string

	// Models returns the list of known model IDs.
	Models() []string
}

// ChatRequest represents a chat completion request.
type ChatRequest struct {
	Model       string
	System      string
	Messages    []Message
	MaxTokens   int
	Temperature float64
	Stop        []string
}

// Message represents a single message in the conversation.
type Message struct {
	Role    string // "user", "assistant"
	Content string
}

// ContentBlock represents a block of content in a response.
type ContentBlock struct {
	Type string // "text"
	Text string
}

// ChatResponse represents a complete chat response.
type ChatResponse struct {
	ID         string
	Content    []ContentBlock
	StopReason string
	Usage      Usage
}

// Text joins the text blocks of the response.
func (r *ChatResponse) Text() string {
	var sb strings.Builder
	for _, block := range r.Content {
		if block.Type == "text" {
			sb.WriteString(block.Text)
		}
	}
	return sb.String()
}

// Usage tracks token usage.
type Usage struct {
	InputTokens  int
	OutputTokens int
}

// Config selects and configures a backend.
type Config struct {
	Name    string
	APIKey  string
	BaseURL string
	Model   string
}

// New builds the provider named in cfg.
func New(ctx context.Context, cfg Config) (Provider, error) {
	switch cfg.Name {
	case "gemini", "google":
		return NewGemini(ctx, GeminiConfig{APIKey: cfg.APIKey, Model: cfg.Model})
	case "anthropic":
		return NewAnthropic(AnthropicConfig{APIKey: cfg.APIKey, BaseURL: cfg.BaseURL, Model: cfg.Model})
	case "openai":
		return NewOpenAI(OpenAIConfig{APIKey: cfg.APIKey, BaseURL: cfg.BaseURL, Model: cfg.Model})
	case "openrouter":
		return NewOpenRouter(OpenAIConfig{APIKey: cfg.APIKey, BaseURL: cfg.BaseURL, Model: cfg.Model})
	case "ollama":
		return NewOllama(OllamaConfig{Host: cfg.BaseURL, Model: cfg.Model})
	case "dummy":
		return NewDummy(""), nil
	default:
		return nil, fmt.Errorf("unknown provider: %s", cfg.Name)
	}
}

func textResponse(id, text, stop string, in, out int) *ChatResponse {
	resp := &ChatResponse{ID: id, StopReason: stop, Usage: Usage{InputTokens: in, OutputTokens: out}}
	if text != "" {
		resp.Content = []ContentBlock{{Type: "text", Text: text}}
	}
	return resp
}
