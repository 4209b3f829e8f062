package stages

import (
	"context"

	"github.com/quantbrief/quantbrief-backend/internal/llmtask"
	"github.com/quantbrief/quantbrief-backend/internal/platform/llm"
	"github.com/quantbrief/quantbrief-backend/internal/platform/logger"
	"github.com/quantbrief/quantbrief-backend/internal/platform/search"
	"github.com/quantbrief/quantbrief-backend/internal/prompts"
	"github.com/quantbrief/quantbrief-backend/internal/render"
	"github.com/quantbrief/quantbrief-backend/internal/vector"
	"github.com/quantbrief/quantbrief-backend/internal/workflow"
)

// Scraper is the per-stage browser pool: built at ScrapePages start, closed
// at stage end.
type Scraper interface {
	Scrape(ctx context.Context, url string) (string, error)
	Close()
}

// Deps carries every collaborator the stage handlers share. Stages receive
// it at construction; nothing here is process-global.
type Deps struct {
	Log     *logger.Logger
	Prompts *prompts.Cache
	Tasks   *llmtask.Runner
	LLM     llm.Client
	Search  search.Client
	Vector  vector.Index

	Charts   *render.ChartRenderer
	Renderer render.Renderer

	// Model serves every generation in the workflow; pricing follows its API.
	Model llm.Model

	// NewScraperPool builds a fresh browser pool for one ScrapePages run.
	NewScraperPool func() (Scraper, error)

	FormatPermits int64
	AnswerTopK    int
	ContextBudget int
}

func (d *Deps) stageLog(name string) *logger.Logger {
	return d.Log.With("job", name)
}

// RegisterAll wires one handler per stage into the registry.
func RegisterAll(reg *workflow.Registry, deps *Deps) error {
	handlers := []workflow.Handler{
		NewValidation(deps),
		NewGenerateTitle(deps),
		NewGenerateSectionNames(deps),
		NewGenerateSubSections(deps),
		NewGenerateSubSectionQuestions(deps),
		NewGenerateSearchQueries(deps),
		NewRunSearch(deps),
		NewScrapePages(deps),
		NewExtractContent(deps),
		NewFormatContent(deps),
		NewClassifySources(deps),
		NewExtractData(deps),
		NewClassifyData(deps),
		NewChunkContent(deps),
		NewIndexChunks(deps),
		NewAnswerQuestions(deps),
		NewSectionizeAnswers(deps),
		NewIdentifyVisuals(deps),
		NewGenerateVisuals(deps),
		NewIdentifyVisualInsertions(deps),
		NewRender(deps),
		NewGeneratePreview(deps),
	}
	for _, h := range handlers {
		if err := reg.Register(h); err != nil {
			return err
		}
	}
	return nil
}
