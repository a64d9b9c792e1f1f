// Package tool implements the capabilities agents may invoke mid-turn for
// grounding: a text-in / text-out contract, consistent error handling, a
// registry resolving configured tool ids, and the built-in calculator, web
// search and document reader tools.
package tool

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/hupe1980/roundtable/internal/util"
)

// Tool defines the interface for extending agent capabilities with external functions.
//
// Tools are resolved per agent from the ids listed in the mode configuration and
// exposed to the model for function calling. The model supplies a JSON argument
// object; the flow extracts the single text input with Input and hands it to Call.
//
// Tool implementations should:
//   - Provide clear, descriptive names and descriptions
//   - Define a JSON schema with exactly one required string property
//   - Return failures as *ToolError so the agent model can read them
//   - Be safe for concurrent use; one instance may serve several runs
type Tool interface {
	// Name returns the unique identifier for this tool.
	Name() string

	// Description returns a human-readable description of what this tool does.
	// This description is provided to the LLM to help it understand when and how to use the tool.
	Description() string

	// Parameters returns a JSON schema describing the expected argument object.
	Parameters() map[string]any

	// Call executes the tool with the extracted text input.
	Call(ctx context.Context, input string) (string, error)
}

// ValidationError represents parameter validation errors with detailed information.
type ValidationError = util.ValidationError

// ToolError represents errors that occur during tool execution. Message is the
// text payload handed back to the model; Cause keeps the typed error for Go
// callers.
type ToolError struct {
	Tool    string `json:"tool"`              // Name of the tool that failed
	Message string `json:"message"`           // Error message
	Code    string `json:"code"`              // Error code for categorization
	Cause   error  `json:"-"`                 // Underlying typed error, if any
	Details any    `json:"details,omitempty"` // Additional error details
}

func (e *ToolError) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("tool error [%s] in %s: %s", e.Code, e.Tool, e.Message)
	}
	return fmt.Sprintf("tool error in %s: %s", e.Tool, e.Message)
}

// Unwrap exposes Cause to errors.Is and errors.As.
func (e *ToolError) Unwrap() error { return e.Cause }

// NewToolError creates a new ToolError with the specified details.
func NewToolError(tool, message, code string) *ToolError {
	return &ToolError{
		Tool:    tool,
		Message: message,
		Code:    code,
	}
}

// ErrorText renders a tool failure as the payload fed back to the model.
func ErrorText(err error) string {
	var te *ToolError
	if errors.As(err, &te) {
		return te.Message
	}
	return "Error: " + err.Error()
}

// Input extracts the text input for t from the raw argument text the model
// produced. A JSON object is validated against the tool's schema and its first
// required property is used. Anything that is not a JSON object is passed
// through unchanged, since some models answer with the bare input.
func Input(t Tool, arguments string) (string, error) {
	raw := strings.TrimSpace(arguments)
	if !strings.HasPrefix(raw, "{") {
		return raw, nil
	}

	var args map[string]any
	if err := json.Unmarshal([]byte(raw), &args); err != nil {
		return raw, nil
	}

	schema := t.Parameters()
	if err := util.ValidateParameters(args, schema); err != nil {
		return "", &ToolError{
			Tool:    t.Name(),
			Message: fmt.Sprintf("Error: invalid arguments: %v", err),
			Code:    "VALIDATION_ERROR",
			Cause:   err,
			Details: err,
		}
	}

	for _, key := range util.RequiredFields(schema) {
		if s, ok := args[key].(string); ok {
			return s, nil
		}
	}

	// No required text property: fall back to the only string value, if any.
	var only string
	n := 0
	for _, v := range args {
		if s, ok := v.(string); ok {
			only = s
			n++
		}
	}
	if n == 1 {
		return only, nil
	}

	return raw, nil
}
