package provider

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	ollama "github.com/ollama/ollama/api"
)

// Ollama implements the Provider interface for a local Ollama server.
type Ollama struct {
	client *ollama.Client
	model  string
}

// OllamaConfig holds configuration for the Ollama provider.
type OllamaConfig struct {
	Host  string
	Model string
}

// NewOllama creates a new Ollama provider.
func NewOllama(cfg OllamaConfig) (*Ollama, error) {
	host := cfg.Host
	if host == "" {
		host = "http://localhost:11434"
	}
	u, err := url.Parse(host)
	if err != nil {
		return nil, fmt.Errorf("invalid ollama host %q: %w", host, err)
	}

	model := cfg.Model
	if model == "" {
		model = "llama3.1"
	}

	httpClient := &http.Client{Timeout: 120 * time.Second}
	return &Ollama{client: ollama.NewClient(u, httpClient), model: model}, nil
}

func (o *Ollama) Name() string {
	return "ollama"
}

func (o *Ollama) Models() []string {
	return []string{"llama3.1", "qwen2.5", "mistral"}
}

// Chat sends a non-streaming chat request.
func (o *Ollama) Chat(ctx context.Context, req *ChatRequest) (*ChatResponse, error) {
	model := o.model
	if req.Model != "" {
		model = req.Model
	}

	var messages []ollama.Message
	if req.System != "" {
		messages = append(messages, ollama.Message{Role: "system", Content: req.System})
	}
	for _, msg := range req.Messages {
		messages = append(messages, ollama.Message{Role: msg.Role, Content: msg.Content})
	}

	options := map[string]any{"temperature": req.Temperature}
	if req.MaxTokens > 0 {
		options["num_predict"] = req.MaxTokens
	}
	if len(req.Stop) > 0 {
		options["stop"] = req.Stop
	}

	stream := false
	var (
		text strings.Builder
		last ollama.ChatResponse
	)
	err := o.client.Chat(ctx, &ollama.ChatRequest{
		Model:    model,
		Messages: messages,
		Stream:   &stream,
		Options:  options,
	}, func(resp ollama.ChatResponse) error {
		text.WriteString(resp.Message.Content)
		last = resp
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("ollama chat failed: %w", err)
	}

	return textResponse("", text.String(), last.DoneReason, last.PromptEvalCount, last.EvalCount), nil
}
