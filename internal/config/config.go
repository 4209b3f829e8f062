package config

import (
	"time"

	"github.com/quantbrief/quantbrief-backend/internal/platform/envutil"
)

// Config carries everything the worker reads from the environment. All knobs
// have defaults so a bare `docker compose up` of the collaborators is enough
// for local runs.
type Config struct {
	LogMode string

	BrokerURL  string
	StateDBURL string
	SearchURL  string
	LLMURL     string
	PersistDir string

	BrowserHost     string
	BrowserPortBase int
	BrowserPoolSize int
	ScrapeTimeout   time.Duration

	FormatContentPermits int64
	LLMMaxRetries        int
	LLMBackoffBase       time.Duration
	SearchMaxRetries     int
	SearchBackoffBase    time.Duration

	AnswerTopK          int
	AnswerContextBudget int

	WorkerPrefetch int

	ChartFontPath string
}

func Load() Config {
	return Config{
		LogMode: envutil.Str("LOG_MODE", "dev"),

		BrokerURL:  envutil.Str("BROKER_URL", "amqp://localhost"),
		StateDBURL: envutil.Str("STATE_DB_URL", "localhost:8000"),
		SearchURL:  envutil.Str("SEARCH_URL", "http://localhost:8081"),
		LLMURL:     envutil.Str("LLM_URL", "http://localhost:8080"),
		PersistDir: envutil.Str("PERSISTANCE_DIR", "./reports"),

		BrowserHost:     envutil.Str("BROWSER_HOST", "localhost"),
		BrowserPortBase: envutil.Int("BROWSER_PORT_BASE", 4444),
		BrowserPoolSize: envutil.Int("BROWSER_POOL_SIZE", 4),
		ScrapeTimeout:   envutil.Dur("SCRAPE_TIMEOUT", 2*time.Second),

		FormatContentPermits: int64(envutil.Int("FORMAT_CONTENT_PERMITS", 1)),
		LLMMaxRetries:        envutil.Int("LLM_MAX_RETRIES", 3),
		LLMBackoffBase:       envutil.Dur("LLM_BACKOFF_BASE", time.Second),
		SearchMaxRetries:     envutil.Int("SEARCH_MAX_RETRIES", 3),
		SearchBackoffBase:    envutil.Dur("SEARCH_BACKOFF_BASE", time.Second),

		AnswerTopK:          envutil.Int("ANSWER_TOP_K", 8),
		AnswerContextBudget: envutil.Int("ANSWER_CONTEXT_BUDGET", 4096),

		WorkerPrefetch: envutil.Int("WORKER_PREFETCH", 8),

		ChartFontPath: envutil.Str("CHART_FONT_PATH", ""),
	}
}
