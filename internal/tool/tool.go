// Package tool defines the tool interface and registry.
package tool

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"
)

var (
	// ErrDuplicateToolName is returned when a name is registered twice.
	ErrDuplicateToolName = errors.New("duplicate tool name")
	// ErrUnknownTool is returned when a lookup misses.
	ErrUnknownTool = errors.New("unknown tool")
	// ErrRegistrySealed is returned when registering after Seal.
	ErrRegistrySealed = errors.New("tool registry is sealed")
)

// Category groups tools for listing.
type Category string

const (
	CategoryScheduling Category = "scheduling"
	CategorySearch     Category = "search"
	CategoryChannels   Category = "channels"
	CategoryPlanner    Category = "planner"
	CategoryUtility    Category = "utility"
)

// Tool is any capability the agent can invoke.
type Tool interface {
	// Name returns the tool name (e.g., "web_search", "schedule_task").
	Name() string

	// Description returns a human-readable description shown to the model.
	Description() string

	// Category returns the group the tool is listed under.
	Category() Category

	// Schema returns the JSON Schema for tool parameters.
	Schema() json.RawMessage

	// Execute runs the tool with the given parameters.
	Execute(ctx context.Context, params json.RawMessage) (*Result, error)
}

// Result is the outcome of tool execution.
type Result struct {
	Content string
	IsError bool
}

// Registry holds available tools in registration order.
type Registry struct {
	mu     sync.RWMutex
	tools  map[string]Tool
	order  []string
	sealed bool
}

// NewRegistry creates a new tool registry.
func NewRegistry() *Registry {
	return &Registry{
		tools: make(map[string]Tool),
	}
}

// Register adds a tool to the registry.
func (r *Registry) Register(t Tool) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.sealed {
		return fmt.Errorf("register %q: %w", t.Name(), ErrRegistrySealed)
	}
	if _, exists := r.tools[t.Name()]; exists {
		return fmt.Errorf("register %q: %w", t.Name(), ErrDuplicateToolName)
	}
	r.tools[t.Name()] = t
	r.order = append(r.order, t.Name())
	return nil
}

// Seal makes the registry read-only.
func (r *Registry) Seal() {
	r.mu.Lock()
	r.sealed = true
	r.mu.Unlock()
}

// Get retrieves a tool by name.
func (r *Registry) Get(name string) (Tool, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	t, ok := r.tools[name]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownTool, name)
	}
	return t, nil
}

// List returns the tools of a category in registration order.
// An empty category lists every tool.
func (r *Registry) List(category Category) []Tool {
	r.mu.RLock()
	defer r.mu.RUnlock()

	result := make([]Tool, 0, len(r.order))
	for _, name := range r.order {
		t := r.tools[name]
		if category == "" || t.Category() == category {
			result = append(result, t)
		}
	}
	return result
}

// Names returns tool names in registration order.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, len(r.order))
	copy(names, r.order)
	return names
}

// Len returns the number of registered tools.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.order)
}

// Describe renders one line per tool for the model prompt.
func (r *Registry) Describe() string {
	var sb strings.Builder
	for _, t := range r.List("") {
		sb.WriteString(fmt.Sprintf("- %s [%s]: %s", t.Name(), t.Category(), t.Description()))
		if schema := t.Schema(); len(schema) > 0 {
			sb.WriteString("\n  input: ")
			sb.WriteString(compactJSON(schema))
		}
		sb.WriteString("\n")
	}
	return sb.String()
}

func compactJSON(raw json.RawMessage) string {
	var buf bytes.Buffer
	if err := json.Compact(&buf, raw); err != nil {
		return string(raw)
	}
	return buf.String()
}

// decodeParams unmarshals tool input. Empty input leaves v untouched.
func decodeParams(params json.RawMessage, v any) error {
	if len(bytes.TrimSpace(params)) == 0 {
		return nil
	}
	return json.Unmarshal(params, v)
}

func invalidParams(err error) *Result {
	return &Result{Content: fmt.Sprintf("Invalid parameters: %v", err), IsError: true}
}

func truncateString(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
