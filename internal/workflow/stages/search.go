package stages

import (
	"context"
	"encoding/json"
	"sort"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/quantbrief/quantbrief-backend/internal/platform/logger"
	"github.com/quantbrief/quantbrief-backend/internal/prompts"
	"github.com/quantbrief/quantbrief-backend/internal/types"
	"github.com/quantbrief/quantbrief-backend/internal/workflow/faults"
)

// GenerateSearchQueries turns the outline into web search queries.
type GenerateSearchQueries struct {
	deps *Deps
	log  *logger.Logger
}

func NewGenerateSearchQueries(deps *Deps) *GenerateSearchQueries {
	return &GenerateSearchQueries{deps: deps, log: deps.stageLog("generate_search_queries")}
}

func (s *GenerateSearchQueries) Stage() types.Stage { return types.StageGenerateSearchQueries }

func (s *GenerateSearchQueries) Run(ctx context.Context, state *types.ReportState) error {
	template, err := s.deps.Prompts.Get(ctx, prompts.KeySearch)
	if err != nil {
		return err
	}
	payload, results, err := s.deps.Tasks.Structured(ctx, template, map[string]any{
		"user_input":   state.UserInput,
		"title":        state.Title,
		"sections":     state.Sections,
		"sub_sections": state.SubSections,
	}, s.deps.Model, stringListSchema)
	state.GenerationResults = append(state.GenerationResults, results...)
	if err != nil {
		return err
	}
	var queries []string
	if err := json.Unmarshal(payload, &queries); err != nil {
		return faults.Parse("generate_search_queries", "query list did not decode", err)
	}
	if len(queries) == 0 {
		return faults.Parse("generate_search_queries", "model produced no queries", nil)
	}
	state.Searches = queries
	return nil
}

// RunSearch runs every query concurrently and writes the sorted, deduplicated
// union of result URLs.
type RunSearch struct {
	deps *Deps
	log  *logger.Logger
}

func NewRunSearch(deps *Deps) *RunSearch {
	return &RunSearch{deps: deps, log: deps.stageLog("run_search")}
}

func (s *RunSearch) Stage() types.Stage { return types.StageRunSearch }

func (s *RunSearch) Run(ctx context.Context, state *types.ReportState) error {
	if len(state.Searches) == 0 {
		return faults.Invariant("run_search", "no search queries in state")
	}

	var mu sync.Mutex
	var all []string
	g, gctx := errgroup.WithContext(ctx)
	for _, query := range state.Searches {
		query := query
		g.Go(func() error {
			urls, err := s.deps.Search.Search(gctx, query)
			if err != nil {
				return faults.Upstream("run_search", err)
			}
			mu.Lock()
			all = append(all, urls...)
			mu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}

	state.SearchURLs = sortedUnique(all)
	s.log.Info("Search done", "report_id", state.ID, "queries", len(state.Searches), "urls", len(state.SearchURLs))
	return nil
}

func sortedUnique(urls []string) []string {
	sort.Strings(urls)
	out := urls[:0]
	for i, u := range urls {
		if i == 0 || urls[i-1] != u {
			out = append(out, u)
		}
	}
	return out
}
