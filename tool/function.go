package tool

import (
	"context"
	"errors"
	"time"

	"github.com/hupe1980/roundtable/internal/util"
	"github.com/hupe1980/roundtable/logging"
)

// FunctionTool is a generic adapter that exposes a plain Go function as a tool.
//
// Responsibilities:
//   - Declares a single required string property (the input key) as its schema
//   - Invokes the wrapped function with the extracted text input
//   - Normalizes error handling so callers receive *ToolError with consistent codes:
//     EXECUTION_ERROR -> underlying function returned an error (non-ToolError)
//     (custom codes preserved if the function returns *ToolError directly)
//
// Concurrency:
//
//	A FunctionTool has no internal mutable state after construction and is safe for
//	concurrent use by multiple goroutines.
type FunctionTool struct {
	name        string
	description string
	parameters  map[string]any
	fn          func(ctx context.Context, input string) (string, error)
	logger      logging.Logger
}

// FunctionToolOptions configures a FunctionTool.
type FunctionToolOptions struct {
	// InputKey names the argument property carrying the text input. Defaults to "input".
	InputKey string
	// InputDescription documents the input property for the model.
	InputDescription string
	Logger           logging.Logger
}

// NewFunctionTool constructs a FunctionTool.
//
// Example:
//
//	echo := NewFunctionTool("echo", "Repeat the input", func(_ context.Context, in string) (string, error) {
//	  return in, nil
//	}, func(o *FunctionToolOptions) { o.InputKey = "text" })
func NewFunctionTool(
	name, description string,
	fn func(ctx context.Context, input string) (string, error),
	optFns ...func(o *FunctionToolOptions),
) *FunctionTool {
	opts := FunctionToolOptions{
		InputKey: "input",
		Logger:   logging.NoOpLogger{},
	}

	for _, fn := range optFns {
		fn(&opts)
	}

	return &FunctionTool{
		name:        name,
		description: description,
		parameters:  util.StringSchema(opts.InputKey, opts.InputDescription),
		fn:          fn,
		logger:      opts.Logger,
	}
}

// Name returns the unique tool name used in function call declarations and routing.
func (t *FunctionTool) Name() string { return t.name }

// Description returns the short natural language description exposed to models.
func (t *FunctionTool) Description() string { return t.description }

// Parameters returns the JSON schema describing expected arguments.
func (t *FunctionTool) Parameters() map[string]any { return t.parameters }

// Call invokes the underlying function. Failures are wrapped (or passed
// through) as *ToolError for uniform downstream handling.
func (t *FunctionTool) Call(ctx context.Context, input string) (string, error) {
	start := time.Now()

	t.logger.Debug("tool.call.start", "tool", t.name)

	result, err := t.fn(ctx, input)
	if err != nil {
		var toolErr *ToolError
		if errors.As(err, &toolErr) { // Already a ToolError -> just log and forward
			t.logger.Warn("tool.call.error", "tool", t.name, "code", toolErr.Code, "error", toolErr.Message)

			return "", toolErr
		}

		t.logger.Warn("tool.call.error", "tool", t.name, "error", err.Error())

		return "", &ToolError{
			Tool:    t.name,
			Message: "Error: " + err.Error(),
			Code:    "EXECUTION_ERROR",
			Cause:   err,
		}
	}

	t.logger.Debug("tool.call.success", "tool", t.name, "duration_ms", time.Since(start).Milliseconds())

	return result, nil
}
