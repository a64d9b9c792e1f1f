package flow

import (
	"context"
	"fmt"
	"runtime/debug"
	"sync"
	"time"

	"github.com/hupe1980/roundtable/core"
	"github.com/hupe1980/roundtable/logging"
	"github.com/hupe1980/roundtable/tool"
)

// FunctionResult is the recorded outcome of one function call.
type FunctionResult struct {
	ID   string
	Call core.ToolCall
	Err  error
}

// FunctionExecutor executes a batch of function/tool calls possibly in parallel.
// Implementations must:
//   - Respect ctx cancellation
//   - Never panic (recover internally and record an error payload)
//   - Return exactly one result per incoming call, in call order
type FunctionExecutor interface {
	Execute(ctx context.Context, tools map[string]tool.Tool, fnCalls []core.FunctionCall) []FunctionResult
}

// FunctionExecutorConfig configures the default parallel executor.
type FunctionExecutorConfig struct {
	MaxParallel int // 0 or <1 => no explicit limit (len(fnCalls))
	Logger      logging.Logger
}

// parallelFunctionExecutor is the default implementation.
type parallelFunctionExecutor struct {
	cfg FunctionExecutorConfig
}

// NewParallelFunctionExecutor constructs a new executor with the given config.
func NewParallelFunctionExecutor(cfg FunctionExecutorConfig) FunctionExecutor {
	if cfg.Logger == nil {
		cfg.Logger = logging.NoOpLogger{}
	}
	return &parallelFunctionExecutor{cfg: cfg}
}

func (e *parallelFunctionExecutor) Execute(
	ctx context.Context,
	tools map[string]tool.Tool,
	fnCalls []core.FunctionCall,
) []FunctionResult {
	n := len(fnCalls)
	results := make([]FunctionResult, n)
	if n == 0 {
		return results
	}

	// Fast path: single call, execute inline.
	if n == 1 {
		results[0] = e.executeSingle(ctx, tools, fnCalls[0])
		return results
	}

	maxPar := e.cfg.MaxParallel
	if maxPar <= 0 || maxPar > n {
		maxPar = n
	}

	var wg sync.WaitGroup
	sem := make(chan struct{}, maxPar)

	batchStart := time.Now()
	for i := range fnCalls {
		wg.Add(1)
		sem <- struct{}{}
		go func(idx int, fc core.FunctionCall) {
			defer wg.Done()
			defer func() { <-sem }()
			results[idx] = e.executeSingle(ctx, tools, fc)
		}(i, fnCalls[i])
	}

	wg.Wait()

	e.cfg.Logger.Debug(
		"flow.functions.batch.complete",
		"count", n,
		"parallelism", maxPar,
		"duration_ms", time.Since(batchStart).Milliseconds(),
	)

	return results
}

func (e *parallelFunctionExecutor) executeSingle(
	ctx context.Context,
	tools map[string]tool.Tool,
	fc core.FunctionCall,
) FunctionResult {
	start := time.Now()

	input, output, err := executeTool(ctx, tools, fc)

	if tl, ok := e.cfg.Logger.(toolLogger); ok {
		tl.LogToolCall(fc.Name, time.Since(start), err == nil, err)
	} else {
		e.cfg.Logger.Info(
			"flow.function.executed",
			"function", fc.Name,
			"duration_ms", time.Since(start).Milliseconds(),
			"error", err != nil,
		)
	}

	return FunctionResult{
		ID:   fc.ID,
		Call: core.ToolCall{ToolName: fc.Name, Input: input, Output: output},
		Err:  err,
	}
}

// toolLogger is implemented by *logging.RoundtableLogger.
type toolLogger interface {
	LogToolCall(tool string, dur time.Duration, success bool, err error)
}

// executeTool looks the tool up, extracts its text input and runs it. Any
// failure, including a panic, is converted to the error payload returned as
// output.
func executeTool(ctx context.Context, tools map[string]tool.Tool, fc core.FunctionCall) (input, output string, err error) {
	input = fc.Arguments

	defer func() {
		if r := recover(); r != nil {
			err = panicError(r)
			output = tool.ErrorText(err)
		}
	}()

	if err = ctx.Err(); err != nil {
		return input, tool.ErrorText(err), err
	}

	impl, ok := tools[fc.Name]
	if !ok {
		err = tool.NewToolError(fc.Name, fmt.Sprintf("Error: tool %s not found", fc.Name), "NOT_FOUND")
		return input, tool.ErrorText(err), err
	}

	input, err = tool.Input(impl, fc.Arguments)
	if err != nil {
		return fc.Arguments, tool.ErrorText(err), err
	}

	output, err = impl.Call(ctx, input)
	if err != nil {
		return input, tool.ErrorText(err), err
	}

	return input, output, nil
}

// panicError converts a recovered panic value to an error without pulling external dependencies.
func panicError(r any) error { return &panicErr{val: r, stack: debug.Stack()} }

type panicErr struct {
	val   any
	stack []byte
}

func (p *panicErr) Error() string { return fmt.Sprintf("panic recovered: %v", p.val) }
