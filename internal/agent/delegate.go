package agent

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/jeffryhq/jeffry/internal/memory"
	"github.com/jeffryhq/jeffry/internal/provider"
	"github.com/jeffryhq/jeffry/internal/tool"
)

// Delegate offers a nested reasoning loop as one tool. Each call runs the
// task in a fresh memory over the delegate's own tools and returns the
// final answer as the observation.
type Delegate struct {
	spec     tool.SubAgent
	provider provider.Provider
	tools    *tool.Registry
	cfg      Config
	opts     []Option
}

// NewDelegate builds a delegate from spec. cfg is the parent's configuration;
// persona and instructions are replaced by the delegate's own.
func NewDelegate(p provider.Provider, spec tool.SubAgent, cfg Config, opts ...Option) (*Delegate, error) {
	if spec.Name == "" {
		return nil, fmt.Errorf("delegate: name is required")
	}
	reg, err := tool.NewRegistryFor(spec.Tools)
	if err != nil {
		return nil, fmt.Errorf("delegate %s: %w", spec.Name, err)
	}
	if spec.Category == "" {
		spec.Category = tool.CategoryUtility
	}
	if spec.Timeout <= 0 {
		spec.Timeout = 2 * time.Minute
	}

	cfg.Persona = spec.Name
	cfg.Instructions = spec.Instructions
	return &Delegate{spec: spec, provider: p, tools: reg, cfg: cfg, opts: opts}, nil
}

func (d *Delegate) Name() string            { return d.spec.Name }
func (d *Delegate) Description() string     { return d.spec.Description }
func (d *Delegate) Category() tool.Category { return d.spec.Category }
func (d *Delegate) Timeout() time.Duration  { return d.spec.Timeout }
func (d *Delegate) Tools() []string         { return d.tools.Names() }
func (d *Delegate) Schema() json.RawMessage {
	return json.RawMessage(`{
		"type": "object",
		"properties": {
			"task": {
				"type": "string",
				"description": "What to do, in plain words"
			}
		},
		"required": ["task"]
	}`)
}

type delegateParams struct {
	Task string `json:"task"`
}

func (d *Delegate) Execute(ctx context.Context, params json.RawMessage) (*tool.Result, error) {
	var p delegateParams
	if err := json.Unmarshal(params, &p); err != nil {
		return &tool.Result{Content: fmt.Sprintf("Invalid parameters: %v", err), IsError: true}, nil
	}
	if strings.TrimSpace(p.Task) == "" {
		return &tool.Result{Content: "task is required", IsError: true}, nil
	}

	ex := New(d.provider, d.tools, memory.New(), d.cfg, d.opts...)
	ex.logger = ex.logger.With("delegate", d.spec.Name)
	out := ex.Run(ctx, p.Task)
	if out.State != StateFinished {
		return &tool.Result{
			Content: fmt.Sprintf("%s gave up after %d steps: %v", d.spec.Name, out.Iterations, out.Err),
			IsError: true,
		}, nil
	}
	return &tool.Result{Content: out.Answer}, nil
}
