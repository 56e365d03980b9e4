package provider

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/generative-ai-go/genai"
	"google.golang.org/api/option"
)

// Gemini implements the Provider interface for Google Gemini models.
type Gemini struct {
	client *genai.Client
	model  string
}

// GeminiConfig holds configuration for the Gemini provider.
type GeminiConfig struct {
	APIKey string
	Model  string
}

// NewGemini creates a new Gemini provider.
func NewGemini(ctx context.Context, cfg GeminiConfig) (*Gemini, error) {
	if cfg.APIKey == "" {
		return nil, errors.New("missing GOOGLE_API_KEY or GEMINI_API_KEY")
	}
	client, err := genai.NewClient(ctx, option.WithAPIKey(cfg.APIKey))
	if err != nil {
		return nil, fmt.Errorf("gemini init: %w", err)
	}

	model := cfg.Model
	if model == "" {
		model = "gemini-2.0-flash"
	}
	return &Gemini{client: client, model: model}, nil
}

func (g *Gemini) Name() string {
	return "gemini"
}

func (g *Gemini) Models() []string {
	return []string{
		"gemini-2.0-flash",
		"gemini-2.0-flash-lite",
		"gemini-1.5-pro",
	}
}

// Chat replays the earlier messages as chat history and sends the last one.
func (g *Gemini) Chat(ctx context.Context, req *ChatRequest) (*ChatResponse, error) {
	if len(req.Messages) == 0 {
		return nil, errors.New("gemini: no messages")
	}

	name := g.model
	if req.Model != "" {
		name = req.Model
	}
	model := g.client.GenerativeModel(name)
	model.SetTemperature(float32(req.Temperature))
	if req.MaxTokens > 0 {
		model.SetMaxOutputTokens(int32(req.MaxTokens))
	}
	if len(req.Stop) > 0 {
		model.StopSequences = req.Stop
	}
	if req.System != "" {
		model.SystemInstruction = &genai.Content{Parts: []genai.Part{genai.Text(req.System)}}
	}

	cs := model.StartChat()
	last := req.Messages[len(req.Messages)-1]
	for _, msg := range req.Messages[:len(req.Messages)-1] {
		role := "user"
		if msg.Role == "assistant" {
			role = "model"
		}
		cs.History = append(cs.History, &genai.Content{Role: role, Parts: []genai.Part{genai.Text(msg.Content)}})
	}

	resp, err := cs.SendMessage(ctx, genai.Text(last.Content))
	if err != nil {
		return nil, fmt.Errorf("gemini generate: %w", err)
	}
	if len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
		return nil, errors.New("gemini: empty response")
	}

	cand := resp.Candidates[0]
	var text strings.Builder
	for _, part := range cand.Content.Parts {
		if t, ok := part.(genai.Text); ok {
			text.WriteString(string(t))
		}
	}

	var in, out int
	if resp.UsageMetadata != nil {
		in = int(resp.UsageMetadata.PromptTokenCount)
		out = int(resp.UsageMetadata.CandidatesTokenCount)
	}
	return textResponse("", text.String(), cand.FinishReason.String(), in, out), nil
}

// Close releases the underlying client.
func (g *Gemini) Close() error {
	return g.client.Close()
}
