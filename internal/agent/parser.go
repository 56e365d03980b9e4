package agent

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"regexp"
	"strings"
)

// ErrParseFailure marks model output that is neither a tool call nor a final answer.
var ErrParseFailure = errors.New("failed to parse model output")

// ActionKind tags the variant held by a ParsedAction.
type ActionKind int

const (
	ActionParseFailure ActionKind = iota
	ActionToolCall
	ActionFinalAnswer
)

func (k ActionKind) String() string {
	switch k {
	case ActionToolCall:
		return "tool_call"
	case ActionFinalAnswer:
		return "final_answer"
	default:
		return "parse_failure"
	}
}

// ParsedAction is the result of parsing one model response.
type ParsedAction struct {
	Kind    ActionKind
	Thought string

	// ActionToolCall
	Tool  string
	Input json.RawMessage

	// ActionFinalAnswer
	Text string

	// ActionParseFailure
	Raw    string
	Reason string
}

// Err returns a wrapped ErrParseFailure for failures and nil otherwise.
func (p ParsedAction) Err() error {
	if p.Kind != ActionParseFailure {
		return nil
	}
	return fmt.Errorf("%w: %s", ErrParseFailure, p.Reason)
}

var (
	markerRe    = regexp.MustCompile(`(?im)^[ \t>*_#]*(thought|action input|action|final answer|observation)[ \t*_]*:[*_]*`)
	codeFenceRe = regexp.MustCompile("(?s)^```[a-zA-Z]*\\s*(.*?)\\s*```$")
)

type section struct {
	marker string
	body   string
}

// Parse turns model text into a tool call, a final answer or a parse failure.
// A failure is never guessed into a tool call.
func Parse(text string) ParsedAction {
	sections := splitSections(text)
	failure := func(reason string) ParsedAction {
		return ParsedAction{Kind: ActionParseFailure, Raw: text, Reason: reason, Thought: first(sections, "thought")}
	}

	var action, input, final *section
	actions := 0
	for i := range sections {
		s := &sections[i]
		switch s.marker {
		case "action":
			actions++
			if action == nil {
				action = s
			}
		case "action input":
			if input == nil && action != nil {
				input = s
			}
		case "final answer":
			if final == nil {
				final = s
			}
		}
	}

	switch {
	case actions > 1:
		return failure("more than one action")
	case action != nil && final != nil:
		return failure("both final answer and action present")
	case final != nil:
		answer := strings.TrimSpace(final.body)
		if answer == "" {
			return failure("empty final answer")
		}
		return ParsedAction{Kind: ActionFinalAnswer, Text: answer, Thought: first(sections, "thought")}
	case action != nil:
		name := cleanToolName(action.body)
		if name == "" {
			return failure("action has no tool name")
		}
		if input == nil {
			return failure("action input missing")
		}
		raw, err := parseInput(input.body)
		if err != nil {
			return failure(err.Error())
		}
		return ParsedAction{Kind: ActionToolCall, Tool: name, Input: raw, Thought: first(sections, "thought")}
	default:
		return failure("no action or final answer found")
	}
}

// splitSections cuts text at marker lines. Everything from the first
// observation on is dropped; observations come from tools, not the model.
func splitSections(text string) []section {
	locs := markerRe.FindAllStringSubmatchIndex(text, -1)
	var out []section
	for i, loc := range locs {
		marker := strings.ToLower(text[loc[2]:loc[3]])
		if marker == "observation" {
			break
		}
		end := len(text)
		if i+1 < len(locs) {
			end = locs[i+1][0]
		}
		out = append(out, section{marker: marker, body: text[loc[1]:end]})
	}
	return out
}

func first(sections []section, marker string) string {
	for _, s := range sections {
		if s.marker == marker {
			return strings.TrimSpace(s.body)
		}
	}
	return ""
}

func cleanToolName(body string) string {
	line := strings.TrimSpace(body)
	if i := strings.IndexByte(line, '\n'); i >= 0 {
		line = line[:i]
	}
	line = strings.Trim(line, "`\"'[]* \t")
	line = strings.TrimSuffix(line, "()")
	if strings.ContainsAny(line, " \t") {
		return ""
	}
	return line
}

func parseInput(body string) (json.RawMessage, error) {
	s := strings.TrimSpace(body)
	if m := codeFenceRe.FindStringSubmatch(s); m != nil {
		s = strings.TrimSpace(m[1])
	}
	if s == "" {
		return nil, errors.New("action input is empty")
	}

	candidates := []string{s}
	if unq := strings.Trim(s, `'"`); unq != s {
		candidates = append(candidates, unq)
	}
	if obj := extractJSON(s); obj != "" {
		candidates = append(candidates, obj)
	}

	for _, c := range candidates {
		if json.Valid([]byte(c)) {
			return compact(c), nil
		}
	}
	for _, c := range candidates {
		if !strings.Contains(c, `"`) && strings.Contains(c, "'") {
			if fixed := strings.ReplaceAll(c, "'", `"`); json.Valid([]byte(fixed)) {
				return compact(fixed), nil
			}
		}
	}
	return nil, errors.New("action input is not valid JSON")
}

func compact(s string) json.RawMessage {
	var buf bytes.Buffer
	if err := json.Compact(&buf, []byte(s)); err != nil {
		return json.RawMessage(s)
	}
	return json.RawMessage(buf.Bytes())
}

// extractJSON returns the first balanced JSON object or array in text.
func extractJSON(text string) string {
	start := strings.IndexAny(text, "{[")
	if start < 0 {
		return ""
	}
	opening, closing := text[start], byte('}')
	if opening == '[' {
		closing = ']'
	}
	depth := 0
	inString := false
	escaped := false
	for i := start; i < len(text); i++ {
		c := text[i]
		if escaped {
			escaped = false
			continue
		}
		if c == '\\' && inString {
			escaped = true
			continue
		}
		if c == '"' {
			inString = !inString
			continue
		}
		if inString {
			continue
		}
		switch c {
		case opening:
			depth++
		case closing:
			depth--
			if depth == 0 {
				return text[start : i+1]
			}
		}
	}
	return ""
}
