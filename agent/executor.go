package agent

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/hupe1980/roundtable/core"
	"github.com/hupe1980/roundtable/flow"
	"github.com/hupe1980/roundtable/logging"
	"github.com/hupe1980/roundtable/mode"
	"github.com/hupe1980/roundtable/model"
	"github.com/hupe1980/roundtable/tool"
)

const (
	// DefaultPlainMaxTokens is requested for turns without tools.
	DefaultPlainMaxTokens = 850
	// DefaultToolMaxTokens is requested per model call of a tool turn.
	DefaultToolMaxTokens = 1500
)

// ErrEmptyResponse is returned when the model produced no text at all.
var ErrEmptyResponse = errors.New("model returned an empty response")

// ToolResolver resolves configured tool ids to capabilities. *tool.Registry
// implements it.
type ToolResolver interface {
	Resolve(ids []string, scope tool.Scope) []tool.Tool
}

// Options configures an Executor.
type Options struct {
	// Tools resolves the agent's tool ids. Without a resolver every agent runs
	// the plain path.
	Tools ToolResolver
	// MaxToolIterations bounds the model calls of one tool turn.
	MaxToolIterations int
	PlainMaxTokens    int64
	ToolMaxTokens     int64
	Logger            logging.Logger
}

// Executor runs agent turns. It holds no per-run state and may be shared by
// concurrent runs.
type Executor struct {
	llm  model.Model
	opts Options
}

// NewExecutor creates an executor over the given model.
func NewExecutor(llm model.Model, optFns ...func(o *Options)) *Executor {
	opts := Options{
		MaxToolIterations: flow.DefaultMaxModelCalls,
		PlainMaxTokens:    DefaultPlainMaxTokens,
		ToolMaxTokens:     DefaultToolMaxTokens,
		Logger:            logging.NoOpLogger{},
	}

	for _, fn := range optFns {
		fn(&opts)
	}

	return &Executor{llm: llm, opts: opts}
}

// Turn is the input of one agent turn.
type Turn struct {
	Agent    mode.AgentSpec
	Topic    string
	Context  map[string]any
	Previous []core.PreviousMessage
	Scope    tool.Scope
	Stream   bool
	// OnToken receives streamed text when Stream is set. The concatenation of
	// all chunks equals Result.Content.
	OnToken func(chunk string)
}

// Result is the outcome of a turn. Err is set for degraded turns, in which
// case Content and ToolCalls are empty.
type Result struct {
	Content   string
	ToolCalls []core.ToolCall
	Err       error
}

// Degraded reports whether the turn failed.
func (r Result) Degraded() bool { return r.Err != nil }

// Message converts the result to the AgentMessage appended to the run state.
func (r Result) Message(agentID string, round int) core.AgentMessage {
	if r.Err != nil {
		return core.NewErrorMessage(agentID, round, r.Err.Error())
	}
	return core.NewAgentMessage(agentID, round, r.Content, r.ToolCalls)
}

// Execute runs one turn. It never panics.
func (e *Executor) Execute(ctx context.Context, turn Turn) (res Result) {
	start := time.Now()
	agentID := turn.Agent.ID

	defer func() {
		if r := recover(); r != nil {
			res = Result{Err: fmt.Errorf("agent %s panicked: %v", agentID, r)}
		}

		if res.Err != nil {
			e.opts.Logger.Warn("agent.turn.degraded",
				"agent", agentID,
				"duration_ms", time.Since(start).Milliseconds(),
				"error", res.Err.Error(),
			)
			res.Content, res.ToolCalls = "", nil
			return
		}

		e.opts.Logger.Info("agent.turn.complete",
			"agent", agentID,
			"chars", len(res.Content),
			"tool_calls", len(res.ToolCalls),
			"duration_ms", time.Since(start).Milliseconds(),
		)
	}()

	prompt, err := RenderPrompt(turn.Agent.UserPromptTemplate, PromptVars(turn.Topic, turn.Context, turn.Previous))
	if err != nil {
		return Result{Err: err}
	}

	instructions := turn.Agent.SystemPrompt
	if instructions == "" {
		instructions = turn.Agent.Persona
	}

	var tools []tool.Tool
	if e.opts.Tools != nil && len(turn.Agent.Tools) > 0 {
		tools = e.opts.Tools.Resolve(turn.Agent.Tools, turn.Scope)
	}

	e.opts.Logger.Debug("agent.turn.start",
		"agent", agentID,
		"stream", turn.Stream,
		"tools", len(tools),
		"prompt_chars", len(prompt),
	)

	if len(tools) > 0 {
		return e.executeWithTools(ctx, turn, instructions, prompt, tools)
	}

	return e.executePlain(ctx, turn, instructions, prompt)
}

func (e *Executor) executePlain(ctx context.Context, turn Turn, instructions, prompt string) Result {
	temperature := turn.Agent.Temperature
	req := model.Request{
		Instructions: instructions,
		Contents:     []core.Content{core.NewTextContent("user", prompt)},
		Stream:       turn.Stream,
		Temperature:  &temperature,
		MaxTokens:    e.opts.PlainMaxTokens,
	}

	var (
		onDelta  func(string)
		streamed bool
	)
	if turn.Stream && turn.OnToken != nil {
		onDelta = func(chunk string) {
			streamed = true
			turn.OnToken(chunk)
		}
	}

	resp, err := model.Collect(ctx, e.llm, req, onDelta)
	if err != nil {
		return Result{Err: fmt.Errorf("model call: %w", err)}
	}

	content := resp.Content.Text()
	if content == "" {
		return Result{Err: ErrEmptyResponse}
	}

	// Providers that do not stream partials still owe the consumer the text.
	if onDelta != nil && !streamed {
		turn.OnToken(content)
	}

	return Result{Content: content, ToolCalls: []core.ToolCall{}}
}

func (e *Executor) executeWithTools(ctx context.Context, turn Turn, instructions, prompt string, tools []tool.Tool) Result {
	temperature := turn.Agent.Temperature
	loop := flow.NewToolLoop(e.llm, tools, func(o *flow.Options) {
		o.MaxModelCalls = e.opts.MaxToolIterations
		o.MaxTokens = e.opts.ToolMaxTokens
		o.Temperature = &temperature
		o.Logger = e.opts.Logger
	})

	out, err := loop.Run(ctx, instructions, prompt)
	if err != nil {
		return Result{Err: fmt.Errorf("tool loop: %w", err)}
	}
	if out.Content == "" {
		return Result{Err: ErrEmptyResponse}
	}

	// Tool turns stream the final answer as one batch chunk.
	if turn.Stream && turn.OnToken != nil {
		turn.OnToken(out.Content)
	}

	calls := out.ToolCalls
	if calls == nil {
		calls = []core.ToolCall{}
	}

	return Result{Content: out.Content, ToolCalls: calls}
}
