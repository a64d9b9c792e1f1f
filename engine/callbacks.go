package engine

import (
	"context"
	"fmt"
	"sync"

	"github.com/hupe1980/roundtable/core"
)

// CallbackType defines the lifecycle points where callbacks run.
//
// Callbacks run synchronously on the goroutine executing the node (diverge
// agents run concurrently, so callbacks must be safe for concurrent use). A
// callback returning an error moves the run to FAILED.
type CallbackType string

const (
	// CallbackBeforeAgent is triggered before an agent node executes.
	CallbackBeforeAgent CallbackType = "before_agent"

	// CallbackAfterAgent is triggered after an agent node produced its message,
	// degraded or not.
	CallbackAfterAgent CallbackType = "after_agent"

	// CallbackRoundComplete is triggered after the barrier of a round.
	CallbackRoundComplete CallbackType = "round_complete"

	// CallbackOnError is triggered when the run fails. Its return value is
	// ignored.
	CallbackOnError CallbackType = "on_error"
)

// CallbackContext carries what a callback may inspect.
type CallbackContext struct {
	RunID        string
	ModeID       string
	AgentID      string
	Round        int
	CallbackType CallbackType

	// Message is set for CallbackAfterAgent.
	Message *core.AgentMessage

	// Err is set for CallbackOnError.
	Err error

	// Metadata provides extensible storage for custom callback data.
	Metadata map[string]any
}

// Callback defines the interface for execution lifecycle hooks.
type Callback interface {
	// Type returns the callback type this implementation handles.
	Type() CallbackType

	// Execute performs the callback logic with the provided context.
	// Returning an error fails the run.
	Execute(ctx context.Context, callbackCtx *CallbackContext) error
}

// FunctionCallback wraps a function as a callback implementation.
//
// Example:
//
//	audit := NewFunctionCallback(CallbackAfterAgent, func(ctx context.Context, cc *CallbackContext) error {
//	    log.Printf("%s finished round %d", cc.AgentID, cc.Round)
//	    return nil
//	})
type FunctionCallback struct {
	callbackType CallbackType
	fn           func(ctx context.Context, callbackCtx *CallbackContext) error
}

// NewFunctionCallback creates a new function-based callback.
func NewFunctionCallback(
	callbackType CallbackType,
	fn func(ctx context.Context, callbackCtx *CallbackContext) error,
) *FunctionCallback {
	return &FunctionCallback{
		callbackType: callbackType,
		fn:           fn,
	}
}

// Type returns the callback type this function handles.
func (c *FunctionCallback) Type() CallbackType {
	return c.callbackType
}

// Execute calls the wrapped function with the provided context.
func (c *FunctionCallback) Execute(ctx context.Context, callbackCtx *CallbackContext) error {
	return c.fn(ctx, callbackCtx)
}

// CallbackManager holds callbacks per type and runs them in registration
// order. The first error stops execution. It is safe for concurrent use.
type CallbackManager struct {
	mu        sync.RWMutex
	callbacks map[CallbackType][]Callback
}

// NewCallbackManager creates a new callback manager instance.
func NewCallbackManager() *CallbackManager {
	return &CallbackManager{
		callbacks: make(map[CallbackType][]Callback),
	}
}

// RegisterCallback adds a callback to the manager for its type.
func (cm *CallbackManager) RegisterCallback(callback Callback) {
	cm.mu.Lock()
	defer cm.mu.Unlock()

	callbackType := callback.Type()
	cm.callbacks[callbackType] = append(cm.callbacks[callbackType], callback)
}

// ExecuteCallbacks executes all registered callbacks for the specified type.
func (cm *CallbackManager) ExecuteCallbacks(
	ctx context.Context,
	callbackType CallbackType,
	callbackCtx *CallbackContext,
) error {
	if cm == nil {
		return nil
	}

	cm.mu.RLock()
	callbacks := cm.callbacks[callbackType]
	cm.mu.RUnlock()

	callbackCtx.CallbackType = callbackType
	for _, callback := range callbacks {
		if err := callback.Execute(ctx, callbackCtx); err != nil {
			return fmt.Errorf("%s callback: %w", callbackType, err)
		}
	}

	return nil
}

// LoggingCallback forwards lifecycle events to a logging function.
//
// Example:
//
//	callback := NewLoggingCallback(CallbackAfterAgent, func(message string) {
//	    log.Printf("[ENGINE] %s", message)
//	})
type LoggingCallback struct {
	callbackType CallbackType
	logger       func(message string)
}

// NewLoggingCallback creates a new logging callback.
func NewLoggingCallback(callbackType CallbackType, logger func(message string)) *LoggingCallback {
	return &LoggingCallback{
		callbackType: callbackType,
		logger:       logger,
	}
}

// Type returns the callback type this logger handles.
func (c *LoggingCallback) Type() CallbackType {
	return c.callbackType
}

// Execute logs the lifecycle event.
func (c *LoggingCallback) Execute(_ context.Context, callbackCtx *CallbackContext) error {
	if c.logger == nil {
		return nil
	}

	message := fmt.Sprintf("[%s] run=%s agent=%s round=%d",
		c.callbackType, callbackCtx.RunID, callbackCtx.AgentID, callbackCtx.Round)
	if callbackCtx.Message != nil && callbackCtx.Message.Error {
		message += " degraded"
	}
	if callbackCtx.Err != nil {
		message += " error=" + callbackCtx.Err.Error()
	}

	c.logger(message)

	return nil
}
