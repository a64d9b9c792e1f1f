package anthropic

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/roundtable/core"
	"github.com/hupe1980/roundtable/model"
)

func newTestModel(t *testing.T, handler http.HandlerFunc) *Model {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	client := anthropic.NewClient(option.WithAPIKey("test"), option.WithBaseURL(srv.URL))
	return NewModelFromClient(&client)
}

func TestGenerate_NonStreamingToolUse(t *testing.T) {
	var body map[string]any
	m := newTestModel(t, func(w http.ResponseWriter, r *http.Request) {
		data, _ := io.ReadAll(r.Body)
		_ = json.Unmarshal(data, &body)
		w.Header().Set("Content-Type", "application/json")
		_, _ = io.WriteString(w, `{"id":"msg_1","type":"message","role":"assistant","model":"claude-test",
			"content":[{"type":"text","text":"Let me check."},{"type":"tool_use","id":"tu_1","name":"calculator","input":{"expression":"2 ** 10"}}],
			"stop_reason":"tool_use","stop_sequence":null,"usage":{"input_tokens":3,"output_tokens":5}}`)
	})

	temp := 0.2
	resp, err := model.Collect(context.Background(), m, model.Request{
		Instructions: "persona",
		Contents:     []core.Content{core.NewTextContent("user", "compute")},
		Temperature:  &temp,
		MaxTokens:    1500,
	}, nil)
	require.NoError(t, err)

	assert.Equal(t, 1500.0, body["max_tokens"])
	assert.Equal(t, 0.2, body["temperature"])
	assert.NotNil(t, body["system"])

	assert.Equal(t, "Let me check.", resp.Content.Text())
	calls := resp.Content.FunctionCalls()
	require.Len(t, calls, 1)
	assert.Equal(t, "tu_1", calls[0].ID)
	assert.JSONEq(t, `{"expression":"2 ** 10"}`, calls[0].Arguments)
	assert.Equal(t, "tool_use", resp.FinishReason)
	assert.Equal(t, 8, resp.Usage.TotalTokens)
}

func TestGenerate_Streaming(t *testing.T) {
	m := newTestModel(t, func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "text/event-stream")
		events := []string{
			`{"type":"message_start","message":{"id":"msg_1","type":"message","role":"assistant","model":"claude-test","content":[],"stop_reason":null,"stop_sequence":null,"usage":{"input_tokens":2,"output_tokens":0}}}`,
			`{"type":"content_block_start","index":0,"content_block":{"type":"text","text":""}}`,
			`{"type":"content_block_delta","index":0,"delta":{"type":"text_delta","text":"Hello"}}`,
			`{"type":"content_block_delta","index":0,"delta":{"type":"text_delta","text":" world"}}`,
			`{"type":"content_block_stop","index":0}`,
			`{"type":"message_delta","delta":{"stop_reason":"end_turn","stop_sequence":null},"usage":{"output_tokens":2}}`,
			`{"type":"message_stop"}`,
		}
		for _, ev := range events {
			var typ struct {
				Type string `json:"type"`
			}
			_ = json.Unmarshal([]byte(ev), &typ)
			fmt.Fprintf(w, "event: %s\ndata: %s\n\n", typ.Type, ev)
		}
	})

	var deltas []string
	resp, err := model.Collect(context.Background(), m, model.Request{
		Contents: []core.Content{core.NewTextContent("user", "hi")},
		Stream:   true,
	}, func(s string) { deltas = append(deltas, s) })
	require.NoError(t, err)

	assert.Equal(t, []string{"Hello", " world"}, deltas)
	assert.Equal(t, "Hello world", resp.Content.Text())
	assert.Equal(t, "end_turn", resp.FinishReason)
}

func TestBuildMessages_ToolResultsFollowInUserTurn(t *testing.T) {
	msgs := buildMessages([]core.Content{
		core.NewTextContent("system", "ignored here"),
		core.NewTextContent("user", "compute"),
		{Role: "assistant", Parts: []core.Part{core.FunctionCallPart{FunctionCall: core.FunctionCall{ID: "tu_1", Name: "calculator", Arguments: `{"expression":"1+1"}`}}}},
		{Role: "tool", Parts: []core.Part{core.FunctionResponsePart{FunctionResponse: core.FunctionResponse{ID: "tu_1", Name: "calculator", Response: "Result: 2"}}}},
	})

	require.Len(t, msgs, 3)
	assert.Equal(t, anthropic.MessageParamRoleUser, msgs[0].Role)
	assert.Equal(t, anthropic.MessageParamRoleAssistant, msgs[1].Role)
	assert.Equal(t, anthropic.MessageParamRoleUser, msgs[2].Role)
	require.Len(t, msgs[2].Content, 1)
	require.NotNil(t, msgs[2].Content[0].OfToolResult)
	assert.Equal(t, "tu_1", msgs[2].Content[0].OfToolResult.ToolUseID)
}

func TestBuildTools(t *testing.T) {
	tools := buildTools([]model.ToolDefinition{{Function: model.FunctionDefinition{
		Name:        "calculator",
		Description: "math",
		Parameters: map[string]any{
			"type":       "object",
			"properties": map[string]any{"expression": map[string]any{"type": "string"}},
			"required":   []any{"expression"},
		},
	}}})
	require.Len(t, tools, 1)
	require.NotNil(t, tools[0].OfTool)
	assert.Equal(t, "calculator", tools[0].OfTool.Name)
	assert.Equal(t, []string{"expression"}, tools[0].OfTool.InputSchema.Required)
}
