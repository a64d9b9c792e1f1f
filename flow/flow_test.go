package flow

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/hupe1980/roundtable/core"
	"github.com/hupe1980/roundtable/model"
	"github.com/hupe1980/roundtable/tool"
)

func calcCall(id, expr string) core.FunctionCall {
	return core.FunctionCall{ID: id, Name: tool.CalculatorToolID, Arguments: `{"expression":"` + expr + `"}`}
}

func TestToolLoop_AnswersWithoutTools(t *testing.T) {
	llm := model.NewMockModel("mock", "test")
	llm.Script(model.MockTurn{Text: "direct answer"})

	loop := NewToolLoop(llm, []tool.Tool{tool.NewCalculator()})
	res, err := loop.Run(context.Background(), "persona", "question")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.Content != "direct answer" {
		t.Fatalf("unexpected content %q", res.Content)
	}
	if len(res.ToolCalls) != 0 || res.ModelCalls != 1 {
		t.Fatalf("expected no tool calls and one model call, got %d / %d", len(res.ToolCalls), res.ModelCalls)
	}

	reqs := llm.Requests()
	if len(reqs[0].Tools) != 1 || reqs[0].Tools[0].Function.Name != tool.CalculatorToolID {
		t.Fatalf("expected calculator definition in request, got %+v", reqs[0].Tools)
	}
	if reqs[0].Instructions != "persona" {
		t.Fatalf("instructions not forwarded")
	}
}

func TestToolLoop_ExecutesToolsAndFeedsResultsBack(t *testing.T) {
	llm := model.NewMockModel("mock", "test")
	llm.Script(
		model.MockTurn{ToolCalls: []core.FunctionCall{calcCall("c1", "(28.4 - 26.3) / 26.3 * 100")}},
		model.MockTurn{Text: "Growth is about 7.98%"},
	)

	loop := NewToolLoop(llm, []tool.Tool{tool.NewCalculator()}, func(o *Options) { o.MaxTokens = 1500 })
	res, err := loop.Run(context.Background(), "", "how much growth?")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.Content != "Growth is about 7.98%" {
		t.Fatalf("unexpected content %q", res.Content)
	}
	if len(res.ToolCalls) != 1 {
		t.Fatalf("expected 1 tool call, got %d", len(res.ToolCalls))
	}
	call := res.ToolCalls[0]
	if call.ToolName != tool.CalculatorToolID || call.Input != "(28.4 - 26.3) / 26.3 * 100" || call.Output != "Result: 7.9848" {
		t.Fatalf("unexpected tool call record %+v", call)
	}

	reqs := llm.Requests()
	if len(reqs) != 2 {
		t.Fatalf("expected 2 model calls, got %d", len(reqs))
	}
	if reqs[1].MaxTokens != 1500 {
		t.Fatalf("max tokens not forwarded")
	}
	second := reqs[1].Contents
	if len(second) != 3 || second[1].Role != "assistant" || second[2].Role != "tool" {
		t.Fatalf("unexpected follow-up contents %+v", second)
	}
	resp, ok := second[2].Parts[0].(core.FunctionResponsePart)
	if !ok || resp.FunctionResponse.ID != "c1" || resp.FunctionResponse.Response != "Result: 7.9848" {
		t.Fatalf("unexpected tool response part %+v", second[2].Parts[0])
	}
}

func TestToolLoop_ToolFailuresBecomeText(t *testing.T) {
	llm := model.NewMockModel("mock", "test")
	llm.Script(
		model.MockTurn{ToolCalls: []core.FunctionCall{
			calcCall("c1", "1 / 0"),
			{ID: "c2", Name: "unknown_tool", Arguments: "{}"},
		}},
		model.MockTurn{Text: "done"},
	)

	res, err := NewToolLoop(llm, []tool.Tool{tool.NewCalculator()}).Run(context.Background(), "", "q")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(res.ToolCalls) != 2 {
		t.Fatalf("expected 2 tool calls, got %d", len(res.ToolCalls))
	}
	if res.ToolCalls[0].Output != "Error: Division by zero" {
		t.Fatalf("unexpected calculator output %q", res.ToolCalls[0].Output)
	}
	if res.ToolCalls[1].Output != "Error: tool unknown_tool not found" {
		t.Fatalf("unexpected unknown tool output %q", res.ToolCalls[1].Output)
	}
}

func TestToolLoop_PanickingToolIsRecovered(t *testing.T) {
	boom := tool.NewFunctionTool("boom", "panics", func(context.Context, string) (string, error) {
		panic("kaboom")
	})

	llm := model.NewMockModel("mock", "test")
	llm.Script(
		model.MockTurn{ToolCalls: []core.FunctionCall{{ID: "p1", Name: "boom", Arguments: `{"input":"x"}`}}},
		model.MockTurn{Text: "recovered"},
	)

	res, err := NewToolLoop(llm, []tool.Tool{boom}).Run(context.Background(), "", "q")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !strings.Contains(res.ToolCalls[0].Output, "panic recovered: kaboom") {
		t.Fatalf("expected panic payload, got %q", res.ToolCalls[0].Output)
	}
	if res.Content != "recovered" {
		t.Fatalf("unexpected content %q", res.Content)
	}
}

func TestToolLoop_CallBudgetExhausted(t *testing.T) {
	llm := model.NewMockModel("mock", "test")
	llm.SetResponder(func(context.Context, model.Request) (model.MockTurn, error) {
		return model.MockTurn{ToolCalls: []core.FunctionCall{calcCall("", "1+1")}}, nil
	})

	res, err := NewToolLoop(llm, []tool.Tool{tool.NewCalculator()}, func(o *Options) { o.MaxModelCalls = 3 }).
		Run(context.Background(), "", "loop forever")
	if !errors.Is(err, core.ErrModelCallLimit) {
		t.Fatalf("expected call limit error, got %v", err)
	}
	if res.ModelCalls != 3 || len(llm.Requests()) != 3 {
		t.Fatalf("expected 3 model calls, got %d / %d", res.ModelCalls, len(llm.Requests()))
	}
	if len(res.ToolCalls) != 3 {
		t.Fatalf("expected partial tool trace of 3, got %d", len(res.ToolCalls))
	}
}

func TestToolLoop_ModelErrorPropagates(t *testing.T) {
	llm := model.NewMockModel("mock", "test")
	llm.Script(model.MockTurn{Err: errors.New("rate limited")})

	_, err := NewToolLoop(llm, nil).Run(context.Background(), "", "q")
	if err == nil || !strings.Contains(err.Error(), "rate limited") {
		t.Fatalf("expected model error, got %v", err)
	}
}

func TestToolLoop_CanceledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := NewToolLoop(model.NewMockModel("mock", "test"), nil).Run(ctx, "", "q")
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
}
