package provider

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
)

const defaultAnthropicModel = "claude-3-5-haiku-latest"

// Anthropic talks to the Claude messages API.
type Anthropic struct {
	client *anthropic.Client
	model  string
}

type AnthropicConfig struct {
	APIKey  string
	BaseURL string
	Model   string
}

func NewAnthropic(cfg AnthropicConfig) (*Anthropic, error) {
	if cfg.APIKey == "" {
		return nil, errors.New("anthropic api key is required")
	}
	opts := []option.RequestOption{option.WithAPIKey(cfg.APIKey)}
	if cfg.BaseURL != "" {
		opts = append(opts, option.WithBaseURL(cfg.BaseURL))
	}
	a := &Anthropic{client: anthropic.NewClient(opts...), model: cfg.Model}
	if a.model == "" {
		a.model = defaultAnthropicModel
	}
	return a, nil
}

func (a *Anthropic) Name() string { return "anthropic" }

func (a *Anthropic) Models() []string {
	return []string{defaultAnthropicModel, "claude-3-5-sonnet-latest", "claude-sonnet-4-20250514"}
}

func (a *Anthropic) Chat(ctx context.Context, req *ChatRequest) (*ChatResponse, error) {
	model := req.Model
	if model == "" {
		model = a.model
	}
	maxTokens := int64(req.MaxTokens)
	if maxTokens <= 0 {
		maxTokens = 1024
	}

	var msgs []anthropic.MessageParam
	for _, m := range alternateTurns(req.Messages) {
		role := anthropic.MessageParamRoleUser
		if m.Role == "assistant" {
			role = anthropic.MessageParamRoleAssistant
		}
		msgs = append(msgs, anthropic.MessageParam{
			Role:    anthropic.F(role),
			Content: anthropic.F([]anthropic.ContentBlockParamUnion{anthropic.NewTextBlock(m.Content)}),
		})
	}
	if len(msgs) == 0 {
		return nil, errors.New("anthropic: request has no user message")
	}

	params := anthropic.MessageNewParams{
		Model:       anthropic.F(anthropic.Model(model)),
		MaxTokens:   anthropic.F(maxTokens),
		Messages:    anthropic.F(msgs),
		Temperature: anthropic.F(req.Temperature),
	}
	if req.System != "" {
		params.System = anthropic.F([]anthropic.TextBlockParam{anthropic.NewTextBlock(req.System)})
	}
	if len(req.Stop) > 0 {
		params.StopSequences = anthropic.F(req.Stop)
	}

	resp, err := a.client.Messages.New(ctx, params)
	if err != nil {
		return nil, fmt.Errorf("anthropic %s: %w", model, err)
	}

	var sb strings.Builder
	for _, block := range resp.Content {
		if block.Type == anthropic.ContentBlockTypeText {
			sb.WriteString(block.Text)
		}
	}
	return textResponse(resp.ID, sb.String(), string(resp.StopReason),
		int(resp.Usage.InputTokens), int(resp.Usage.OutputTokens)), nil
}

// alternateTurns reshapes a history into what the messages API accepts:
// it starts with a user turn, never repeats a role twice in a row and has
// no empty turns. Consecutive turns of one role are joined by a blank line.
func alternateTurns(msgs []Message) []Message {
	var out []Message
	for _, m := range msgs {
		if strings.TrimSpace(m.Content) == "" {
			continue
		}
		role := "user"
		if m.Role == "assistant" {
			role = "assistant"
		}
		if len(out) == 0 && role == "assistant" {
			continue
		}
		if n := len(out); n > 0 && out[n-1].Role == role {
			out[n-1].Content += "\n\n" + m.Content
			continue
		}
		out = append(out, Message{Role: role, Content: m.Content})
	}
	return out
}
