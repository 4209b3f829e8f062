package llmtask

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/quantbrief/quantbrief-backend/internal/platform/llm"
	"github.com/quantbrief/quantbrief-backend/internal/platform/logger"
	"github.com/quantbrief/quantbrief-backend/internal/types"
	"github.com/quantbrief/quantbrief-backend/internal/workflow/faults"
)

type scriptedClient struct {
	outputs []string
	calls   int
}

func (c *scriptedClient) Generate(_ context.Context, _ string, _ llm.Model, _ json.RawMessage) (llm.Generation, error) {
	out := c.outputs[c.calls]
	if c.calls < len(c.outputs)-1 {
		c.calls++
	}
	return llm.Generation{Generated: out, PromptTokens: 10, GeneratedTokens: 5}, nil
}

func (c *scriptedClient) Embed(_ context.Context, _ string) ([]float32, error) {
	return []float32{1, 0}, nil
}

var testModel = llm.Model{Name: "local", API: types.APILocal}

func TestRender_SubstitutesAndLeavesUnknown(t *testing.T) {
	out := Render("Report on {topic} for {user}, literal {brace}", map[string]any{
		"topic": "AAPL",
		"user":  "analyst",
	})
	want := "Report on AAPL for analyst, literal {brace}"
	if out != want {
		t.Fatalf("got %q want %q", out, want)
	}
}

func TestRender_StringifiesNonStrings(t *testing.T) {
	out := Render("sections: {sections}", map[string]any{
		"sections": []string{"a", "b"},
	})
	if out != `sections: ["a","b"]` {
		t.Fatalf("got %q", out)
	}
}

func TestStructured_UsesLastOutputSentinel(t *testing.T) {
	r := NewRunner(logger.NewNop(), &scriptedClient{outputs: []string{
		"thinking <Output>{\"wrong\": 1}</Output> more <Output>\n```json\n{\"valid\": true}\n```\n</Output>",
	}})
	payload, results, err := r.Structured(context.Background(), "t", nil, testModel, `{"type":"object"}`)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if string(payload) != `{"valid": true}` {
		t.Fatalf("got payload %q", string(payload))
	}
	if len(results) != 1 {
		t.Fatalf("expected 1 cost record, got %d", len(results))
	}
}

func TestStructured_RetriesOnceOnInvalidJSON(t *testing.T) {
	client := &scriptedClient{outputs: []string{
		"<Output>not json</Output>",
		"<Output>{\"ok\": true}</Output>",
	}}
	r := NewRunner(logger.NewNop(), client)
	payload, results, err := r.Structured(context.Background(), "t", nil, testModel, `{"type":"object"}`)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if string(payload) != `{"ok": true}` {
		t.Fatalf("got payload %q", string(payload))
	}
	if len(results) != 2 {
		t.Fatalf("expected both generations billed, got %d records", len(results))
	}
}

func TestStructured_FailsAfterSecondInvalidJSON(t *testing.T) {
	r := NewRunner(logger.NewNop(), &scriptedClient{outputs: []string{
		"<Output>nope</Output>",
		"still nothing",
	}})
	_, results, err := r.Structured(context.Background(), "t", nil, testModel, `{"type":"object"}`)
	if err == nil {
		t.Fatalf("expected parse fault")
	}
	var fault *faults.Fault
	if !asFault(err, &fault) || fault.Kind != faults.KindParse {
		t.Fatalf("expected parse fault, got %v", err)
	}
	if len(results) != 2 {
		t.Fatalf("expected 2 cost records, got %d", len(results))
	}
}

func TestStructured_SchemaViolationIsNotRetried(t *testing.T) {
	client := &scriptedClient{outputs: []string{
		`<Output>{"valid": "yes"}</Output>`,
	}}
	r := NewRunner(logger.NewNop(), client)
	schema := `{"type":"object","properties":{"valid":{"type":"boolean"}},"required":["valid"]}`
	_, results, err := r.Structured(context.Background(), "t", nil, testModel, schema)
	if err == nil {
		t.Fatalf("expected schema violation")
	}
	var fault *faults.Fault
	if !asFault(err, &fault) || fault.Kind != faults.KindParse {
		t.Fatalf("expected parse fault, got %v", err)
	}
	if len(results) != 1 {
		t.Fatalf("schema violations must not trigger a second generation, got %d records", len(results))
	}
}

func TestRaw_ReturnsVerbatimWithCostRecord(t *testing.T) {
	r := NewRunner(logger.NewNop(), &scriptedClient{outputs: []string{"  A Title  "}})
	out, result, err := r.Raw(context.Background(), "name {x}", map[string]any{"x": "y"}, testModel)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if out != "  A Title  " {
		t.Fatalf("raw output must be verbatim, got %q", out)
	}
	if result.APITag != types.APILocal || result.PromptTokens != 10 || result.GeneratedTokens != 5 {
		t.Fatalf("unexpected cost record: %+v", result)
	}
}

func asFault(err error, target **faults.Fault) bool {
	return errors.As(err, target)
}
