package model

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/hupe1980/roundtable/core"
)

// ToolDefinition declaratively exposes a callable function to the model.
type ToolDefinition struct {
	Type     string             `json:"type"` // "function"
	Function FunctionDefinition `json:"function"`
}

// FunctionDefinition describes an individual function (tool) exposed to the model.
// Parameters is a JSON Schema object (draft agnostic, minimal subset expected).
type FunctionDefinition struct {
	Name        string         `json:"name"`
	Description string         `json:"description"`
	Parameters  map[string]any `json:"parameters"` // JSON Schema
}

// Request captures the normalized model input produced by agents and flows.
type Request struct {
	Instructions string           `json:"instructions"` // System prompt
	Contents     []core.Content   `json:"contents"`     // Conversation converted to provider messages
	Tools        []ToolDefinition `json:"tools,omitempty"`
	Stream       bool             `json:"stream,omitempty"`
	// Temperature overrides the adapter default when set.
	Temperature *float64 `json:"temperature,omitempty"`
	// MaxTokens caps the completion length when > 0.
	MaxTokens int64 `json:"max_tokens,omitempty"`
}

// LastUserText returns the text of the last user content, if any.
func (r Request) LastUserText() string {
	for i := len(r.Contents) - 1; i >= 0; i-- {
		if r.Contents[i].Role == "user" {
			return r.Contents[i].Text()
		}
	}
	return ""
}

// TokenUsage captures token usage statistics for a response.
type TokenUsage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
}

// Response is a (partial or final) chunk emitted by a streaming model.
type Response struct {
	ID           string       `json:"id"`
	Partial      bool         `json:"partial"` // Indicates if this is a partial response
	Content      core.Content `json:"content"`
	FinishReason string       `json:"finish_reason"` // "stop", "length", "tool_calls", etc.
	Usage        *TokenUsage  `json:"usage,omitempty"`
}

// Info contains metadata about a model implementation.
type Info struct {
	Name          string `json:"name"`
	Provider      string `json:"provider"` // "openai", "anthropic", "mock", etc.
	SupportsTools bool   `json:"supports_tools"`
}

// Model is the minimal interface required by agents & flows to drive generation.
//
// Generate emits zero or more partial responses (text deltas when
// Request.Stream is set) followed by exactly one final response, then closes
// both channels. A failure is reported on the error channel instead of a final
// response. Implementations must be safe for concurrent use.
type Model interface {
	Generate(ctx context.Context, req Request) (<-chan Response, <-chan error)

	// Info returns information about the model implementation.
	Info() Info
}

// Collect drains a Generate call, forwarding partial text deltas to onDelta
// (may be nil), and returns the final response.
func Collect(ctx context.Context, m Model, req Request, onDelta func(string)) (Response, error) {
	respCh, errCh := m.Generate(ctx, req)

	var final *Response
	for resp := range respCh {
		if resp.Partial {
			if onDelta != nil {
				if text := resp.Content.Text(); text != "" {
					onDelta(text)
				}
			}
			continue
		}
		r := resp
		final = &r
	}

	if err := <-errCh; err != nil {
		return Response{}, err
	}
	if final == nil {
		return Response{}, fmt.Errorf("model %s returned no final response", m.Info().Name)
	}
	return *final, nil
}

// MockTurn is one scripted model answer.
type MockTurn struct {
	Text      string
	ToolCalls []core.FunctionCall
	Err       error
}

// MockModel is a lightweight in‑memory Model useful for tests & examples.
//
// Answers are chosen in this order: a Responder function, the next scripted
// turn, a canned response registered for the last user prompt, and finally an
// echo of that prompt.
type MockModel struct {
	info Info

	mu        sync.Mutex
	responses map[string]string
	script    []MockTurn
	responder func(ctx context.Context, req Request) (MockTurn, error)
	requests  []Request
}

// NewMockModel constructs a MockModel with basic tool support enabled.
func NewMockModel(name, provider string) *MockModel {
	return &MockModel{
		info: Info{
			Name:          name,
			Provider:      provider,
			SupportsTools: true,
		},
		responses: make(map[string]string),
	}
}

// AddResponse registers a deterministic canned completion for an input prompt.
func (m *MockModel) AddResponse(prompt, response string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.responses[prompt] = response
}

// Script appends turns consumed one per Generate call.
func (m *MockModel) Script(turns ...MockTurn) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.script = append(m.script, turns...)
}

// SetResponder installs a function computing every answer. It takes
// precedence over scripts and canned responses.
func (m *MockModel) SetResponder(fn func(ctx context.Context, req Request) (MockTurn, error)) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.responder = fn
}

// Requests returns a copy of every request received so far.
func (m *MockModel) Requests() []Request {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]Request, len(m.requests))
	copy(out, m.requests)
	return out
}

func (m *MockModel) next(ctx context.Context, req Request) (MockTurn, error) {
	m.mu.Lock()
	m.requests = append(m.requests, req)
	responder := m.responder
	if responder == nil && len(m.script) > 0 {
		turn := m.script[0]
		m.script = m.script[1:]
		m.mu.Unlock()
		return turn, turn.Err
	}
	canned, ok := m.responses[req.LastUserText()]
	m.mu.Unlock()

	if responder != nil {
		return responder(ctx, req)
	}
	if ok {
		return MockTurn{Text: canned}, nil
	}
	return MockTurn{Text: fmt.Sprintf("Mock response to: %s", req.LastUserText())}, nil
}

// Generate implements Model; emits optional streaming chunks then the final response.
func (m *MockModel) Generate(ctx context.Context, req Request) (<-chan Response, <-chan error) {
	respCh := make(chan Response, 16)
	errCh := make(chan error, 1)

	go func() {
		defer close(respCh)
		defer close(errCh)
		if len(req.Contents) == 0 {
			errCh <- fmt.Errorf("no contents provided")
			return
		}

		turn, err := m.next(ctx, req)
		if err != nil {
			errCh <- err
			return
		}

		if req.Stream && len(turn.ToolCalls) == 0 {
			for _, chunk := range splitChunks(turn.Text) {
				select {
				case <-ctx.Done():
					errCh <- ctx.Err()
					return
				case respCh <- Response{
					Partial: true,
					Content: core.NewTextContent("assistant", chunk),
				}:
				}
			}
		}

		parts := make([]core.Part, 0, len(turn.ToolCalls)+1)
		if turn.Text != "" {
			parts = append(parts, core.TextPart{Text: turn.Text})
		}
		finish := "stop"
		for _, fc := range turn.ToolCalls {
			parts = append(parts, core.FunctionCallPart{FunctionCall: fc})
			finish = "tool_calls"
		}

		select {
		case <-ctx.Done():
			errCh <- ctx.Err()
		case respCh <- Response{
			Content:      core.Content{Role: "assistant", Parts: parts},
			FinishReason: finish,
		}:
		}
	}()
	return respCh, errCh
}

// Info implements Model interface.
func (m *MockModel) Info() Info { return m.info }

// splitChunks cuts text into word-sized pieces, keeping separators, so that
// concatenating the chunks yields the text unchanged.
func splitChunks(text string) []string {
	var chunks []string
	for len(text) > 0 {
		i := strings.IndexByte(text[1:], ' ')
		if i < 0 {
			chunks = append(chunks, text)
			break
		}
		chunks = append(chunks, text[:i+1])
		text = text[i+1:]
	}
	return chunks
}
