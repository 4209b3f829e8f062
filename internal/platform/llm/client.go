package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/quantbrief/quantbrief-backend/internal/platform/httpx"
	"github.com/quantbrief/quantbrief-backend/internal/platform/logger"
	"github.com/quantbrief/quantbrief-backend/internal/types"
)

// Model names a model together with the API that prices its tokens.
type Model struct {
	Name string
	API  types.APITag
}

// Generation is the raw output of one generate call, usage included.
// Caching token counts are zero for APIs that do not report them.
type Generation struct {
	Generated        string
	PromptTokens     int
	GeneratedTokens  int
	CacheReadTokens  int
	CacheWriteTokens int
	Duration         time.Duration
}

// Client talks to the inference endpoint: one generate operation (with an
// optional JSON schema the server may enforce natively) and one embed
// operation.
type Client interface {
	Generate(ctx context.Context, prompt string, model Model, schema json.RawMessage) (Generation, error)
	Embed(ctx context.Context, text string) ([]float32, error)
}

type client struct {
	log        *logger.Logger
	baseURL    string
	httpClient *http.Client

	maxRetries  int
	backoffBase time.Duration
}

func NewClient(baseLog *logger.Logger, baseURL string, maxRetries int, backoffBase time.Duration) Client {
	if maxRetries < 0 {
		maxRetries = 0
	}
	if backoffBase <= 0 {
		backoffBase = time.Second
	}
	return &client{
		log:         baseLog.With("service", "LLMClient"),
		baseURL:     strings.TrimRight(baseURL, "/"),
		httpClient:  &http.Client{Timeout: 180 * time.Second},
		maxRetries:  maxRetries,
		backoffBase: backoffBase,
	}
}

type llmHTTPError struct {
	StatusCode int
	Body       string
}

func (e *llmHTTPError) Error() string {
	return fmt.Sprintf("llm http %d: %s", e.StatusCode, e.Body)
}

func (e *llmHTTPError) HTTPStatusCode() int {
	if e == nil {
		return 0
	}
	return e.StatusCode
}

type generateRequest struct {
	Prompt string          `json:"prompt"`
	Model  string          `json:"model"`
	Schema json.RawMessage `json:"schema,omitempty"`
}

type generateResponse struct {
	Generated       string `json:"generated"`
	PromptTokens    int    `json:"prompt_tokens"`
	GeneratedTokens int    `json:"generated_tokens"`
	Caching         struct {
		ReadTokens  int `json:"read_tokens"`
		WriteTokens int `json:"write_tokens"`
	} `json:"caching"`
	DurationMicros int64 `json:"duration_us"`
}

type embedRequest struct {
	Input string `json:"input"`
}

type embedResponse struct {
	Embedding []float32 `json:"embedding"`
}

func (c *client) Generate(ctx context.Context, prompt string, model Model, schema json.RawMessage) (Generation, error) {
	req := generateRequest{Prompt: prompt, Model: model.Name, Schema: schema}
	start := time.Now()

	var resp generateResponse
	if err := c.do(ctx, "/generate", req, &resp); err != nil {
		return Generation{}, err
	}

	dur := time.Duration(resp.DurationMicros) * time.Microsecond
	if dur <= 0 {
		dur = time.Since(start)
	}
	return Generation{
		Generated:        resp.Generated,
		PromptTokens:     resp.PromptTokens,
		GeneratedTokens:  resp.GeneratedTokens,
		CacheReadTokens:  resp.Caching.ReadTokens,
		CacheWriteTokens: resp.Caching.WriteTokens,
		Duration:         dur,
	}, nil
}

func (c *client) Embed(ctx context.Context, text string) ([]float32, error) {
	if strings.TrimSpace(text) == "" {
		text = " "
	}
	var resp embedResponse
	if err := c.do(ctx, "/embed", embedRequest{Input: text}, &resp); err != nil {
		return nil, err
	}
	if len(resp.Embedding) == 0 {
		return nil, fmt.Errorf("llm embed returned empty vector")
	}
	return resp.Embedding, nil
}

func (c *client) do(ctx context.Context, path string, body any, out any) error {
	for attempt := 0; ; attempt++ {
		if ctx.Err() != nil {
			return ctx.Err()
		}

		raw, err := c.doOnce(ctx, path, body)
		if err == nil {
			if uErr := json.Unmarshal(raw, out); uErr != nil {
				return fmt.Errorf("llm decode error: %w; raw=%s", uErr, string(raw))
			}
			return nil
		}

		if attempt >= c.maxRetries-1 || !httpx.IsRetryable(err) {
			return err
		}

		sleepFor := httpx.Backoff(attempt, c.backoffBase)
		c.log.Warn("LLM request retrying",
			"path", path,
			"attempt", attempt+1,
			"max_retries", c.maxRetries,
			"sleep", sleepFor.String(),
			"error", err.Error(),
		)
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(sleepFor):
		}
	}
}

func (c *client) doOnce(ctx context.Context, path string, body any) ([]byte, error) {
	var buf bytes.Buffer
	if err := json.NewEncoder(&buf).Encode(body); err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, &buf)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	raw, readErr := io.ReadAll(resp.Body)
	_ = resp.Body.Close()
	if readErr != nil {
		return nil, readErr
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, &llmHTTPError{StatusCode: resp.StatusCode, Body: string(raw)}
	}
	return raw, nil
}
