package llmtask

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/xeipuuv/gojsonschema"

	"github.com/quantbrief/quantbrief-backend/internal/platform/llm"
	"github.com/quantbrief/quantbrief-backend/internal/platform/logger"
	"github.com/quantbrief/quantbrief-backend/internal/types"
	"github.com/quantbrief/quantbrief-backend/internal/workflow/faults"
)

// Runner renders a prompt template, calls the model, and turns the result
// into either verbatim text or schema-validated JSON. Every call yields a
// GenerationResult the caller appends to the report's generation_results.
type Runner struct {
	log    *logger.Logger
	client llm.Client
}

func NewRunner(baseLog *logger.Logger, client llm.Client) *Runner {
	return &Runner{log: baseLog.With("service", "LLMTaskRunner"), client: client}
}

// Raw renders the template and returns the generated text verbatim.
func (r *Runner) Raw(ctx context.Context, template string, input map[string]any, model llm.Model) (string, types.GenerationResult, error) {
	prompt := Render(template, input)
	gen, err := r.client.Generate(ctx, prompt, model, nil)
	if err != nil {
		return "", types.GenerationResult{}, faults.Upstream("llm_generate", err)
	}
	return gen.Generated, costRecord(model, gen), nil
}

// Structured renders the template, passes the JSON schema to the model, and
// parses the payload between the last <Output> sentinels. Invalid JSON is
// retried once with a fresh generation; a schema violation is a parse fault.
// All cost records incurred are returned, including on failure.
func (r *Runner) Structured(ctx context.Context, template string, input map[string]any, model llm.Model, schema string) (json.RawMessage, []types.GenerationResult, error) {
	prompt := Render(template, input)
	var results []types.GenerationResult

	var payload json.RawMessage
	var parseErr error
	for attempt := 0; attempt < 2; attempt++ {
		gen, err := r.client.Generate(ctx, prompt, model, json.RawMessage(schema))
		if err != nil {
			return nil, results, faults.Upstream("llm_generate", err)
		}
		results = append(results, costRecord(model, gen))

		payload, parseErr = extractOutput(gen.Generated)
		if parseErr == nil {
			break
		}
		r.log.Warn("Structured output parse failed",
			"attempt", attempt+1,
			"error", parseErr.Error(),
		)
	}
	if parseErr != nil {
		return nil, results, faults.Parse("llm_structured", "model output is not valid JSON", parseErr)
	}

	if err := validate(schema, payload); err != nil {
		return nil, results, err
	}
	return payload, results, nil
}

// Render substitutes {name} placeholders with the input's field values.
// Unknown placeholders are left untouched so prompts may carry literal braces.
func Render(template string, input map[string]any) string {
	out := template
	for key, val := range input {
		out = strings.ReplaceAll(out, "{"+key+"}", stringify(val))
	}
	return out
}

func stringify(v any) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return t
	case []byte:
		return string(t)
	default:
		b, err := json.Marshal(v)
		if err != nil {
			return fmt.Sprint(v)
		}
		return string(b)
	}
}

// extractOutput pulls the payload between the last <Output> and </Output>
// pair, strips fenced-code markers, and checks it parses as JSON.
func extractOutput(generated string) (json.RawMessage, error) {
	open := strings.LastIndex(generated, "<Output>")
	if open < 0 {
		return nil, fmt.Errorf("no <Output> sentinel in generation")
	}
	rest := generated[open+len("<Output>"):]
	close_ := strings.Index(rest, "</Output>")
	if close_ < 0 {
		return nil, fmt.Errorf("no closing </Output> sentinel in generation")
	}
	payload := stripFences(rest[:close_])
	if !json.Valid([]byte(payload)) {
		return nil, fmt.Errorf("sentinel payload is not JSON")
	}
	return json.RawMessage(payload), nil
}

func stripFences(s string) string {
	var kept []string
	for _, line := range strings.Split(s, "\n") {
		if strings.HasPrefix(strings.TrimSpace(line), "```") {
			continue
		}
		kept = append(kept, line)
	}
	return strings.TrimSpace(strings.Join(kept, "\n"))
}

func validate(schema string, payload json.RawMessage) error {
	result, err := gojsonschema.Validate(
		gojsonschema.NewStringLoader(schema),
		gojsonschema.NewBytesLoader(payload),
	)
	if err != nil {
		return faults.Parse("llm_structured", "schema compilation failed", err)
	}
	if !result.Valid() {
		var msgs []string
		for _, e := range result.Errors() {
			msgs = append(msgs, e.String())
		}
		return faults.Parse("llm_structured", "schema violation: "+strings.Join(msgs, "; "), nil)
	}
	return nil
}

func costRecord(model llm.Model, gen llm.Generation) types.GenerationResult {
	return types.GenerationResult{
		APITag:           model.API,
		PromptTokens:     gen.PromptTokens,
		GeneratedTokens:  gen.GeneratedTokens,
		CacheReadTokens:  gen.CacheReadTokens,
		CacheWriteTokens: gen.CacheWriteTokens,
		DurationMicros:   gen.Duration.Microseconds(),
	}
}
