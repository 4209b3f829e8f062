package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	"github.com/quantbrief/quantbrief-backend/internal/config"
	"github.com/quantbrief/quantbrief-backend/internal/costs"
	"github.com/quantbrief/quantbrief-backend/internal/db"
	"github.com/quantbrief/quantbrief-backend/internal/llmtask"
	"github.com/quantbrief/quantbrief-backend/internal/platform/broker"
	"github.com/quantbrief/quantbrief-backend/internal/platform/browser"
	"github.com/quantbrief/quantbrief-backend/internal/platform/envutil"
	"github.com/quantbrief/quantbrief-backend/internal/platform/llm"
	"github.com/quantbrief/quantbrief-backend/internal/platform/logger"
	"github.com/quantbrief/quantbrief-backend/internal/platform/search"
	"github.com/quantbrief/quantbrief-backend/internal/prompts"
	"github.com/quantbrief/quantbrief-backend/internal/render"
	"github.com/quantbrief/quantbrief-backend/internal/repos"
	"github.com/quantbrief/quantbrief-backend/internal/types"
	"github.com/quantbrief/quantbrief-backend/internal/vector"
	"github.com/quantbrief/quantbrief-backend/internal/workflow"
	"github.com/quantbrief/quantbrief-backend/internal/workflow/stages"
)

func main() {
	_ = godotenv.Load()
	cfg := config.Load()

	log, err := logger.New(cfg.LogMode)
	if err != nil {
		fmt.Printf("Failed to init logger: %v\n", err)
		os.Exit(1)
	}
	defer log.Sync()

	// State store
	store, err := db.NewStateStore(log, cfg.StateDBURL)
	if err != nil {
		log.Error("Could not init state store", "error", err)
		os.Exit(1)
	}
	if err := store.AutoMigrateAll(); err != nil {
		log.Error("State store migration failed", "error", err)
		os.Exit(1)
	}
	gdb := store.DB()

	// Repos
	log.Info("Setting up repos...")
	stateRepo := repos.NewWorkflowStateRepo(gdb, log)
	chunkRepo := repos.NewEmbeddedChunkRepo(gdb, log)
	promptRepo := repos.NewPromptRepo(gdb, log)
	genLogRepo := repos.NewGenerationLogRepo(gdb, log)

	// Services
	log.Info("Setting up services...")
	promptCache := prompts.NewCache(log, promptRepo)
	llmClient := llm.NewClient(log, cfg.LLMURL, cfg.LLMMaxRetries, cfg.LLMBackoffBase)
	taskRunner := llmtask.NewRunner(log, llmClient)
	searchClient := search.NewClient(log, cfg.SearchURL, cfg.SearchMaxRetries, cfg.SearchBackoffBase)
	vectorIndex := vector.NewIndex(log, chunkRepo)
	ledger := costs.NewLedger(log, genLogRepo)

	chartRenderer, err := render.NewChartRenderer(log, cfg.PersistDir, cfg.ChartFontPath)
	if err != nil {
		log.Error("Could not init chart renderer", "error", err)
		os.Exit(1)
	}
	docRenderer := render.NewMarkdownRenderer(log, cfg.PersistDir)

	// Broker
	log.Info("Connecting to broker...")
	bk, err := broker.Connect(log, cfg.BrokerURL, cfg.WorkerPrefetch)
	if err != nil {
		log.Error("Could not connect to broker", "error", err)
		os.Exit(1)
	}
	defer bk.Close()

	// Stage handlers
	deps := &stages.Deps{
		Log:     log,
		Prompts: promptCache,
		Tasks:   taskRunner,
		LLM:     llmClient,
		Search:  searchClient,
		Vector:  vectorIndex,

		Charts:   chartRenderer,
		Renderer: docRenderer,

		Model: llm.Model{
			Name: envutil.Str("LLM_MODEL", "local"),
			API:  types.APITag(envutil.Str("LLM_API_TAG", string(types.APILocal))),
		},

		NewScraperPool: func() (stages.Scraper, error) {
			pool, err := browser.NewPool(log, cfg.BrowserHost, cfg.BrowserPortBase, cfg.BrowserPoolSize, cfg.ScrapeTimeout)
			if err != nil {
				return nil, err
			}
			return pool, nil
		},

		FormatPermits: cfg.FormatContentPermits,
		AnswerTopK:    cfg.AnswerTopK,
		ContextBudget: cfg.AnswerContextBudget,
	}

	registry := workflow.NewRegistry()
	if err := stages.RegisterAll(registry, deps); err != nil {
		log.Error("Could not register stage handlers", "error", err)
		os.Exit(1)
	}

	scheduler := workflow.NewScheduler(log, registry, stateRepo, bk, ledger)

	deliveries, err := bk.Consume()
	if err != nil {
		log.Error("Could not start consuming", "error", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	log.Info("Worker started", "queue", broker.Queue, "prefetch", cfg.WorkerPrefetch)
	scheduler.Run(ctx, deliveries)
	log.Info("Worker stopped")
}
