// Package flow provides the bounded tool-augmented reasoning loop used by
// agent turns that have tools configured.
//
// The loop alternates model calls and tool executions: the model either
// answers (no function calls) or requests tools, whose textual results are fed
// back as tool contents for the next call. Tool failures never abort the loop;
// they become text payloads the model can reason about. The loop is bounded by
// a model call budget enforced with core.ModelLimiter.
package flow

import (
	"context"
	"fmt"
	"time"

	"github.com/hupe1980/roundtable/core"
	"github.com/hupe1980/roundtable/logging"
	"github.com/hupe1980/roundtable/model"
	"github.com/hupe1980/roundtable/tool"
)

// DefaultMaxModelCalls bounds one tool loop.
const DefaultMaxModelCalls = 8

// Options configures a ToolLoop.
type Options struct {
	// MaxModelCalls bounds the number of model calls; 0 means unlimited.
	MaxModelCalls int
	// MaxTokens is requested per model call when > 0.
	MaxTokens int64
	// Temperature is requested per model call when set.
	Temperature *float64
	// Executor runs each batch of function calls.
	Executor FunctionExecutor
	Logger   logging.Logger
}

// Result is the outcome of a completed loop.
type Result struct {
	Content    string
	ToolCalls  []core.ToolCall
	ModelCalls int
}

// llmLogger is implemented by *logging.RoundtableLogger.
type llmLogger interface {
	LogLLMCall(model string, dur time.Duration, success bool, err error)
}

// ToolLoop drives one agent turn with tools. It is stateless between Run calls
// and safe for concurrent use.
type ToolLoop struct {
	llm   model.Model
	tools map[string]tool.Tool
	defs  []model.ToolDefinition
	opts  Options
}

// NewToolLoop creates a loop over the given model and tools.
func NewToolLoop(llm model.Model, tools []tool.Tool, optFns ...func(o *Options)) *ToolLoop {
	opts := Options{
		MaxModelCalls: DefaultMaxModelCalls,
		Logger:        logging.NoOpLogger{},
	}

	for _, fn := range optFns {
		fn(&opts)
	}

	if opts.Executor == nil {
		opts.Executor = NewParallelFunctionExecutor(FunctionExecutorConfig{Logger: opts.Logger})
	}

	registry := make(map[string]tool.Tool, len(tools))
	defs := make([]model.ToolDefinition, 0, len(tools))
	for _, t := range tools {
		registry[t.Name()] = t
		defs = append(defs, model.ToolDefinition{
			Type: "function",
			Function: model.FunctionDefinition{
				Name:        t.Name(),
				Description: t.Description(),
				Parameters:  t.Parameters(),
			},
		})
	}

	return &ToolLoop{llm: llm, tools: registry, defs: defs, opts: opts}
}

// Run executes the loop for one prompt. The returned error is set for model
// failures, an exhausted call budget or cancellation; tool failures are not
// errors.
func (l *ToolLoop) Run(ctx context.Context, instructions, prompt string) (Result, error) {
	limiter := core.NewModelLimiter(l.opts.MaxModelCalls)
	contents := []core.Content{core.NewTextContent("user", prompt)}

	var calls []core.ToolCall

	for {
		if err := ctx.Err(); err != nil {
			return Result{ToolCalls: calls, ModelCalls: limiter.Count()}, err
		}

		if err := limiter.Increment(); err != nil {
			return Result{ToolCalls: calls, ModelCalls: limiter.Count() - 1}, err
		}

		req := model.Request{
			Instructions: instructions,
			Contents:     contents,
			Tools:        l.defs,
			Temperature:  l.opts.Temperature,
			MaxTokens:    l.opts.MaxTokens,
		}

		start := time.Now()
		resp, err := model.Collect(ctx, l.llm, req, nil)
		if ll, ok := l.opts.Logger.(llmLogger); ok {
			ll.LogLLMCall(l.llm.Info().Name, time.Since(start), err == nil, err)
		} else {
			l.opts.Logger.Debug("flow.model.call",
				"model", l.llm.Info().Name,
				"call", limiter.Count(),
				"duration_ms", time.Since(start).Milliseconds(),
				"error", err != nil,
			)
		}
		if err != nil {
			return Result{ToolCalls: calls, ModelCalls: limiter.Count()}, fmt.Errorf("model call %d: %w", limiter.Count(), err)
		}

		fnCalls := resp.Content.FunctionCalls()
		if len(fnCalls) == 0 {
			return Result{Content: resp.Content.Text(), ToolCalls: calls, ModelCalls: limiter.Count()}, nil
		}

		for i := range fnCalls {
			if fnCalls[i].ID == "" {
				fnCalls[i].ID = fmt.Sprintf("call_%d_%d", limiter.Count(), i)
			}
		}

		assistant := resp.Content
		assistant.Role = "assistant"
		assistant.Parts = make([]core.Part, 0, len(resp.Content.Parts))
		for _, p := range resp.Content.Parts {
			if _, ok := p.(core.FunctionCallPart); !ok {
				assistant.Parts = append(assistant.Parts, p)
			}
		}
		for _, fc := range fnCalls {
			assistant.Parts = append(assistant.Parts, core.FunctionCallPart{FunctionCall: fc})
		}
		contents = append(contents, assistant)

		results := l.opts.Executor.Execute(ctx, l.tools, fnCalls)

		responses := core.Content{Role: "tool", Parts: make([]core.Part, 0, len(results))}
		for _, r := range results {
			calls = append(calls, r.Call)
			responses.Parts = append(responses.Parts, core.FunctionResponsePart{FunctionResponse: core.FunctionResponse{
				ID:       r.ID,
				Name:     r.Call.ToolName,
				Response: r.Call.Output,
			}})
		}
		contents = append(contents, responses)
	}
}
