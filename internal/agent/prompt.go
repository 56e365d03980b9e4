package agent

import (
	"fmt"
	"strings"
	"text/template"
	"time"

	"github.com/jeffryhq/jeffry/internal/memory"
	"github.com/jeffryhq/jeffry/internal/provider"
)

var systemTmpl = template.Must(template.New("system").Parse(`You are {{.Persona}}, a friendly personal assistant who replies in short, casual messages like a real person texting. No long essays, no formal tone.
{{- if .Instructions}}

## Your role
{{.Instructions}}
{{- end}}

You have access to tools to help answer questions and perform tasks:

{{.Tools}}
Use this format (it is your internal reasoning, the user only sees the final answer):

Question: the input question you must answer
Thought: think step by step about the best approach
Action: the tool to use, exactly one of [{{.ToolNames}}]
Action Input: the tool input as a JSON object
Observation: the result of the tool (written for you, never write it yourself)
... (Thought/Action/Action Input/Observation can repeat)
Thought: I now know the final answer
Final Answer: a short, casual reply to the user

Never write both an Action and a Final Answer in the same reply.

Current time: {{.Now}} ({{.Zone}})
{{- if .ChatID}}
Chat ID: {{.ChatID}}
{{- end}}
When scheduling, give run_at as "YYYY-MM-DD HH:MM:SS" in {{.Zone}} and always in the future.
`))

type promptData struct {
	Persona      string
	Instructions string
	Tools        string
	ToolNames    string
	Now          string
	Zone         string
	ChatID       string
}

// buildRequest renders the model request for the current step of a run.
func (e *Executor) buildRequest(run *runState) (*provider.ChatRequest, error) {
	now := e.now().In(e.cfg.Location)

	var system strings.Builder
	err := systemTmpl.Execute(&system, promptData{
		Persona:      e.cfg.Persona,
		Instructions: e.cfg.Instructions,
		Tools:        e.tools.Describe(),
		ToolNames:    strings.Join(e.tools.Names(), ", "),
		Now:          now.Format("Monday, 2006-01-02 15:04:05"),
		Zone:         zoneName(now),
		ChatID:       run.chatID,
	})
	if err != nil {
		return nil, fmt.Errorf("render system prompt: %w", err)
	}

	var messages []provider.Message
	for _, turn := range e.memory.History(e.cfg.MemoryWindow, run.id) {
		switch turn.Kind {
		case memory.KindUser:
			messages = append(messages, provider.Message{Role: "user", Content: turn.Content})
		case memory.KindFinal:
			messages = append(messages, provider.Message{Role: "assistant", Content: turn.Content})
		}
	}
	messages = append(messages, provider.Message{
		Role:    "user",
		Content: renderScratchpad(run.input, e.memory.Run(run.id)),
	})

	return &provider.ChatRequest{
		Model:       e.cfg.Model,
		System:      system.String(),
		Messages:    messages,
		MaxTokens:   e.cfg.MaxTokens,
		Temperature: e.cfg.Temperature,
		Stop:        []string{"\nObservation:"},
	}, nil
}

// renderScratchpad writes the question followed by the steps taken so far.
func renderScratchpad(input string, turns []memory.Turn) string {
	var sb strings.Builder
	sb.WriteString("Question: ")
	sb.WriteString(input)
	sb.WriteString("\n")

	for _, turn := range turns {
		switch turn.Kind {
		case memory.KindThought:
			if turn.ParseError != "" {
				sb.WriteString("\n")
				sb.WriteString(strings.TrimSpace(turn.Content))
				sb.WriteString(fmt.Sprintf("\n\nYour last reply could not be parsed (%s). Reply with either\n"+
					"Action: <tool name>\nAction Input: <JSON object>\nor\nFinal Answer: <reply>\n", turn.ParseError))
				continue
			}
			sb.WriteString("Thought: ")
			sb.WriteString(turn.Content)
			sb.WriteString("\n")
		case memory.KindTool:
			sb.WriteString(fmt.Sprintf("Action: %s\nAction Input: %s\nObservation: %s\n", turn.Tool, turn.Input, turn.Output))
		}
	}

	sb.WriteString("Thought:")
	return sb.String()
}

func zoneName(t time.Time) string {
	name, offset := t.Zone()
	sign := "+"
	if offset < 0 {
		sign = "-"
		offset = -offset
	}
	utc := fmt.Sprintf("UTC%s%02d:%02d", sign, offset/3600, offset%3600/60)
	if name == "" || name == utc {
		return utc
	}
	return name + ", " + utc
}
