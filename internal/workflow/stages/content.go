package stages

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/semaphore"

	"github.com/quantbrief/quantbrief-backend/internal/extract"
	"github.com/quantbrief/quantbrief-backend/internal/platform/logger"
	"github.com/quantbrief/quantbrief-backend/internal/prompts"
	"github.com/quantbrief/quantbrief-backend/internal/types"
	"github.com/quantbrief/quantbrief-backend/internal/workflow/faults"
)

// ExtractContent converts every scraped page to cleaned markdown.
type ExtractContent struct {
	deps *Deps
	log  *logger.Logger
}

func NewExtractContent(deps *Deps) *ExtractContent {
	return &ExtractContent{deps: deps, log: deps.stageLog("extract_content")}
}

func (s *ExtractContent) Stage() types.Stage { return types.StageExtractContent }

func (s *ExtractContent) Run(_ context.Context, state *types.ReportState) error {
	if len(state.HTMLSources) == 0 {
		return faults.Invariant("extract_content", "no scraped pages in state")
	}
	md := make([]types.PageSource, 0, len(state.HTMLSources))
	for _, page := range state.HTMLSources {
		content, err := extract.HTMLToMarkdown(page.Content)
		if err != nil {
			return err
		}
		md = append(md, types.PageSource{URL: page.URL, Content: content})
	}
	state.MDSources = md
	return nil
}

// FormatContent rewrites each markdown source through a date-aware template.
// Calls run under a permit semaphore; with one permit the fan-out is serial,
// which is the documented default.
type FormatContent struct {
	deps *Deps
	log  *logger.Logger
}

func NewFormatContent(deps *Deps) *FormatContent {
	return &FormatContent{deps: deps, log: deps.stageLog("format_content")}
}

func (s *FormatContent) Stage() types.Stage { return types.StageFormatContent }

func (s *FormatContent) Run(ctx context.Context, state *types.ReportState) error {
	template, err := s.deps.Prompts.Get(ctx, prompts.KeySourceFormatter)
	if err != nil {
		return err
	}

	permits := s.deps.FormatPermits
	if permits <= 0 {
		permits = 1
	}
	sem := semaphore.NewWeighted(permits)
	today := time.Now().Format("2006-01-02")

	formatted := make([]types.PageSource, len(state.MDSources))
	resultsPer := make([]types.GenerationResult, len(state.MDSources))

	g, gctx := errgroup.WithContext(ctx)
	for i, page := range state.MDSources {
		i, page := i, page
		g.Go(func() error {
			if err := sem.Acquire(gctx, 1); err != nil {
				return err
			}
			defer sem.Release(1)

			out, result, err := s.deps.Tasks.Raw(gctx, template, map[string]any{
				"content": page.Content,
				"date":    today,
			}, s.deps.Model)
			resultsPer[i] = result
			if err != nil {
				return err
			}
			formatted[i] = types.PageSource{URL: page.URL, Content: out}
			return nil
		})
	}
	err = g.Wait()
	state.GenerationResults = append(state.GenerationResults, resultsPer...)
	if err != nil {
		return err
	}
	state.MDSources = formatted
	return nil
}

// ClassifySources attaches metadata to each markdown source and assigns the
// per-report id website<index>.
type ClassifySources struct {
	deps *Deps
	log  *logger.Logger
}

func NewClassifySources(deps *Deps) *ClassifySources {
	return &ClassifySources{deps: deps, log: deps.stageLog("classify_sources")}
}

func (s *ClassifySources) Stage() types.Stage { return types.StageClassifySources }

type sourceVerdict struct {
	Title          string `json:"title"`
	Author         string `json:"author"`
	Date           string `json:"date"`
	PublishedAfter bool   `json:"published_after"`
}

func (s *ClassifySources) Run(ctx context.Context, state *types.ReportState) error {
	template, err := s.deps.Prompts.Get(ctx, prompts.KeyContentClassifier)
	if err != nil {
		return err
	}
	today := time.Now().Format("2006-01-02")

	sources := make([]types.Source, 0, len(state.MDSources))
	for i, page := range state.MDSources {
		payload, results, err := s.deps.Tasks.Structured(ctx, template, map[string]any{
			"content": page.Content,
			"date":    today,
		}, s.deps.Model, sourceClassifierSchema)
		state.GenerationResults = append(state.GenerationResults, results...)
		if err != nil {
			return err
		}
		var verdict sourceVerdict
		if err := json.Unmarshal(payload, &verdict); err != nil {
			return faults.Parse("classify_sources", "source verdict did not decode", err)
		}
		sources = append(sources, types.Source{
			ID:             fmt.Sprintf("website%d", i),
			URL:            page.URL,
			Title:          verdict.Title,
			Author:         verdict.Author,
			Date:           verdict.Date,
			PublishedAfter: verdict.PublishedAfter,
			Content:        page.Content,
		})
	}
	state.Sources = sources
	return nil
}
