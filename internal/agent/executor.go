// Package agent implements the reasoning loop: prompt the model, parse its
// reply, dispatch tool calls and feed observations back until a final answer.
package agent

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/jeffryhq/jeffry/internal/memory"
	"github.com/jeffryhq/jeffry/internal/provider"
	"github.com/jeffryhq/jeffry/internal/tool"
)

var (
	ErrIterationBudgetExceeded = errors.New("iteration budget exceeded")
	ErrModelUnavailable        = errors.New("model unavailable")
	ErrParseRetriesExhausted   = errors.New("parse retries exhausted")
	ErrCancelled               = errors.New("run cancelled")
	ErrToolExecution           = errors.New("tool execution failed")
)

// State is a step of the reasoning loop.
type State int

const (
	StateStart State = iota
	StateAwaitingModel
	StateDispatching
	StateObservingResult
	StateFinished
	StateFailed
)

func (s State) String() string {
	switch s {
	case StateStart:
		return "start"
	case StateAwaitingModel:
		return "awaiting_model"
	case StateDispatching:
		return "dispatching"
	case StateObservingResult:
		return "observing_result"
	case StateFinished:
		return "finished"
	case StateFailed:
		return "failed"
	}
	return fmt.Sprintf("state(%d)", int(s))
}

// Config holds executor limits and prompt settings.
type Config struct {
	Persona string
	// Instructions describe a narrower role; they are added to the prompt.
	Instructions  string
	Model         string
	ChatID        string
	MaxIterations int
	// ParseRetries bounds consecutive parse failures; zero leaves only the
	// iteration budget.
	ParseRetries int
	ModelRetries int
	ModelTimeout time.Duration
	ToolTimeout  time.Duration
	RetryBackoff time.Duration
	MaxTokens    int
	Temperature  float64
	MemoryWindow int
	Location     *time.Location
}

func (c Config) withDefaults() Config {
	if c.Persona == "" {
		c.Persona = "Jeffry"
	}
	if c.MaxIterations <= 0 {
		c.MaxIterations = 10
	}
	if c.ModelRetries < 0 {
		c.ModelRetries = 0
	}
	if c.ModelTimeout <= 0 {
		c.ModelTimeout = 8 * time.Second
	}
	if c.ToolTimeout <= 0 {
		c.ToolTimeout = 8 * time.Second
	}
	if c.MaxTokens <= 0 {
		c.MaxTokens = 1024
	}
	if c.MemoryWindow == 0 {
		c.MemoryWindow = 10
	}
	if c.Location == nil {
		c.Location = time.Local
	}
	return c
}

// Outcome is the result of one run.
type Outcome struct {
	RunID      string
	State      State
	Answer     string
	Err        error
	Iterations int
	ToolCalls  int
}

// Reply is the text shown to the user. Internal errors never leak through it.
func (o *Outcome) Reply() string {
	if o.State == StateFinished {
		return o.Answer
	}
	switch {
	case errors.Is(o.Err, ErrIterationBudgetExceeded), errors.Is(o.Err, ErrParseRetriesExhausted):
		return "Sorry, I couldn't work that one out. Could you try rephrasing?"
	case errors.Is(o.Err, ErrModelUnavailable):
		return "Sorry, I can't think straight right now. Please try again in a bit."
	case errors.Is(o.Err, ErrCancelled):
		return "Okay, stopped."
	default:
		return FailureReply
	}
}

// FailureReply is the generic apology for failures the user can do nothing
// about.
const FailureReply = "Sorry, I couldn't complete that."

// EventKind names an observer event.
type EventKind string

const (
	EventParseFailure EventKind = "parse_failure"
	EventToolCall     EventKind = "tool_call"
	EventObservation  EventKind = "observation"
	EventFinal        EventKind = "final"
	EventFailed       EventKind = "failed"
)

// Event reports progress of a run.
type Event struct {
	Kind      EventKind
	RunID     string
	Iteration int
	Tool      string
	Input     json.RawMessage
	Text      string
	IsError   bool
}

// Observer receives run events synchronously.
type Observer func(Event)

// Option configures an Executor.
type Option func(*Executor)

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(e *Executor) {
		if l != nil {
			e.logger = l
		}
	}
}

// WithObserver registers a progress callback.
func WithObserver(o Observer) Option {
	return func(e *Executor) { e.observer = o }
}

// WithClock replaces time.Now for prompts.
func WithClock(now func() time.Time) Option {
	return func(e *Executor) { e.now = now }
}

// Executor runs the bounded reasoning loop for one session.
type Executor struct {
	provider provider.Provider
	tools    *tool.Registry
	memory   *memory.Memory
	cfg      Config
	logger   *slog.Logger
	observer Observer
	now      func() time.Time

	// late is closed when a tool call that outlived its timeout returns.
	// The next call waits for it, so tool calls never overlap.
	mu   sync.Mutex
	late chan struct{}
}

// New creates an executor. The registry should already be sealed.
func New(p provider.Provider, tools *tool.Registry, mem *memory.Memory, cfg Config, opts ...Option) *Executor {
	e := &Executor{
		provider: p,
		tools:    tools,
		memory:   mem,
		cfg:      cfg.withDefaults(),
		logger:   slog.Default(),
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Config returns the effective configuration.
func (e *Executor) Config() Config {
	return e.cfg
}

type runState struct {
	id     string
	input  string
	chatID string
	state  State
	log    *slog.Logger
}

func (r *runState) transition(to State) {
	r.log.Debug("state", "from", r.state.String(), "to", to.String())
	r.state = to
}

// Run answers input. It always returns an outcome: Finished with an answer or
// Failed with one of the terminal errors.
func (e *Executor) Run(ctx context.Context, input string) *Outcome {
	run := &runState{
		id:     uuid.New().String()[:8],
		input:  input,
		chatID: e.cfg.ChatID,
		state:  StateStart,
	}
	run.log = e.logger.With("run_id", run.id)
	run.log.Info("run_start", "max_iterations", e.cfg.MaxIterations, "input_len", len(input))

	e.memory.Append(memory.Turn{Kind: memory.KindUser, RunID: run.id, Content: input})

	out := &Outcome{RunID: run.id}
	modelFailures, parseFailures := 0, 0

	for iter := 1; iter <= e.cfg.MaxIterations; iter++ {
		if err := ctx.Err(); err != nil {
			return e.fail(run, out, fmt.Errorf("%w before step %d: %v", ErrCancelled, iter, err))
		}
		out.Iterations = iter
		run.transition(StateAwaitingModel)

		text, err := e.callModel(ctx, run, iter)
		if err != nil {
			if ctx.Err() != nil {
				return e.fail(run, out, fmt.Errorf("%w during model call: %v", ErrCancelled, ctx.Err()))
			}
			modelFailures++
			run.log.Warn("model_call_error", "step", iter, "failures", modelFailures, "error", err.Error())
			if modelFailures > e.cfg.ModelRetries {
				return e.fail(run, out, fmt.Errorf("%w: %v", ErrModelUnavailable, err))
			}
			if !sleepCtx(ctx, e.cfg.RetryBackoff) {
				return e.fail(run, out, fmt.Errorf("%w during backoff: %v", ErrCancelled, ctx.Err()))
			}
			continue
		}
		modelFailures = 0

		parsed := Parse(text)
		switch parsed.Kind {
		case ActionParseFailure:
			parseFailures++
			run.log.Warn("parse_failure", "step", iter, "failures", parseFailures, "reason", parsed.Reason)
			e.memory.Append(memory.Turn{
				Kind:       memory.KindThought,
				RunID:      run.id,
				Content:    parsed.Raw,
				ParseError: parsed.Reason,
			})
			e.emit(Event{Kind: EventParseFailure, RunID: run.id, Iteration: iter, Text: parsed.Reason, IsError: true})
			if e.cfg.ParseRetries > 0 && parseFailures > e.cfg.ParseRetries {
				return e.fail(run, out, fmt.Errorf("%w after %d attempts: %v", ErrParseRetriesExhausted, parseFailures, parsed.Err()))
			}

		case ActionFinalAnswer:
			e.recordThought(run, parsed.Thought)
			e.memory.Append(memory.Turn{Kind: memory.KindFinal, RunID: run.id, Content: parsed.Text})
			run.transition(StateFinished)
			out.State = StateFinished
			out.Answer = parsed.Text
			e.emit(Event{Kind: EventFinal, RunID: run.id, Iteration: iter, Text: parsed.Text})
			run.log.Info("run_finished", "steps", iter, "tool_calls", out.ToolCalls)
			return out

		case ActionToolCall:
			parseFailures = 0
			e.recordThought(run, parsed.Thought)
			run.transition(StateDispatching)
			e.emit(Event{Kind: EventToolCall, RunID: run.id, Iteration: iter, Tool: parsed.Tool, Input: parsed.Input})

			obs := e.dispatch(ctx, run, parsed)
			out.ToolCalls++
			if ctx.Err() != nil {
				run.log.Info("tool_result_discarded", "tool", parsed.Tool)
				return e.fail(run, out, fmt.Errorf("%w after tool %s: %v", ErrCancelled, parsed.Tool, ctx.Err()))
			}

			run.transition(StateObservingResult)
			e.memory.Append(memory.Turn{
				Kind:    memory.KindTool,
				RunID:   run.id,
				Tool:    parsed.Tool,
				Input:   parsed.Input,
				Output:  obs.output,
				IsError: obs.isError,
			})
			e.emit(Event{Kind: EventObservation, RunID: run.id, Iteration: iter, Tool: parsed.Tool, Text: obs.output, IsError: obs.isError})
		}
	}

	return e.fail(run, out, fmt.Errorf("%w: no final answer after %d steps", ErrIterationBudgetExceeded, e.cfg.MaxIterations))
}

func (e *Executor) callModel(ctx context.Context, run *runState, iter int) (string, error) {
	req, err := e.buildRequest(run)
	if err != nil {
		return "", err
	}

	mctx, cancel := context.WithTimeout(ctx, e.cfg.ModelTimeout)
	defer cancel()

	start := time.Now()
	run.log.Debug("model_call_start", "step", iter, "messages", len(req.Messages))
	resp, err := e.provider.Chat(mctx, req)
	if err != nil {
		if errors.Is(mctx.Err(), context.DeadlineExceeded) && ctx.Err() == nil {
			return "", fmt.Errorf("model call timed out after %s: %w", e.cfg.ModelTimeout, err)
		}
		return "", err
	}
	run.log.Debug("model_call_done",
		"step", iter,
		"duration_ms", time.Since(start).Milliseconds(),
		"input_tokens", resp.Usage.InputTokens,
		"output_tokens", resp.Usage.OutputTokens,
	)
	return resp.Text(), nil
}

func (e *Executor) recordThought(run *runState, thought string) {
	if thought == "" {
		return
	}
	e.memory.Append(memory.Turn{Kind: memory.KindThought, RunID: run.id, Content: thought})
}

func (e *Executor) fail(run *runState, out *Outcome, err error) *Outcome {
	run.transition(StateFailed)
	out.State = StateFailed
	out.Err = err
	run.log.Warn("run_failed", "steps", out.Iterations, "error", err.Error())
	e.emit(Event{Kind: EventFailed, RunID: run.id, Iteration: out.Iterations, Text: err.Error(), IsError: true})
	return out
}

func (e *Executor) emit(ev Event) {
	if e.observer != nil {
		e.observer(ev)
	}
}

type observation struct {
	output  string
	isError bool
}

// dispatch runs one tool call. Every failure comes back as an observation.
// The call is detached from caller cancellation so it is never interrupted
// midway; only the tool timeout bounds it.
func (e *Executor) dispatch(ctx context.Context, run *runState, call ParsedAction) observation {
	t, err := e.tools.Get(call.Tool)
	if err != nil {
		run.log.Warn("unknown_tool", "tool", call.Tool)
		return observation{
			output: fmt.Sprintf("Error [unknown_tool]: %q is not an available tool. Use one of: %s",
				call.Tool, strings.Join(e.tools.Names(), ", ")),
			isError: true,
		}
	}

	if !e.waitLate(ctx) {
		return observation{
			output:  fmt.Sprintf("Error [tool_busy]: a previous tool call is still running, %s was not started", call.Tool),
			isError: true,
		}
	}

	timeout := e.cfg.ToolTimeout
	if lr, ok := t.(tool.LongRunning); ok && lr.Timeout() > timeout {
		timeout = lr.Timeout()
	}
	tctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), timeout)
	defer cancel()

	type toolReturn struct {
		res *tool.Result
		err error
	}
	done := make(chan toolReturn, 1)
	finished := make(chan struct{})

	start := time.Now()
	run.log.Info("tool_call", "tool", call.Tool, "input_len", len(call.Input))
	go func() {
		defer close(finished)
		defer func() {
			if r := recover(); r != nil {
				done <- toolReturn{err: fmt.Errorf("%w: panic: %v", ErrToolExecution, r)}
			}
		}()
		res, err := t.Execute(tctx, call.Input)
		done <- toolReturn{res: res, err: err}
	}()

	var obs observation
	select {
	case r := <-done:
		switch {
		case r.err != nil:
			obs = observation{output: fmt.Sprintf("Error [tool_error]: %s failed: %v", call.Tool, r.err), isError: true}
		case r.res == nil:
			obs = observation{output: "(no output)"}
		case r.res.IsError:
			obs = observation{output: "Error [tool_error]: " + r.res.Content, isError: true}
		default:
			obs = observation{output: r.res.Content}
		}
	case <-tctx.Done():
		e.mu.Lock()
		e.late = finished
		e.mu.Unlock()
		obs = observation{
			output:  fmt.Sprintf("Error [tool_timeout]: %s did not finish within %s", call.Tool, timeout),
			isError: true,
		}
	}

	if strings.TrimSpace(obs.output) == "" {
		obs.output = "(no output)"
	}
	obs.output = truncate(obs.output, maxObservation)
	run.log.Info("tool_done",
		"tool", call.Tool,
		"duration_ms", time.Since(start).Milliseconds(),
		"is_error", obs.isError,
		"output_len", len(obs.output),
	)
	return obs
}

// waitLate blocks until a timed-out tool call has returned. It reports
// false if ctx ends first.
func (e *Executor) waitLate(ctx context.Context) bool {
	e.mu.Lock()
	late := e.late
	e.mu.Unlock()
	if late == nil {
		return true
	}
	select {
	case <-late:
		e.mu.Lock()
		if e.late == late {
			e.late = nil
		}
		e.mu.Unlock()
		return true
	case <-ctx.Done():
		return false
	}
}

const maxObservation = 4000

func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	return s[:max] + "\n... (truncated)"
}

func sleepCtx(ctx context.Context, d time.Duration) bool {
	if d <= 0 {
		return ctx.Err() == nil
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
		return true
	case <-ctx.Done():
		return false
	}
}
