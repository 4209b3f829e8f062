package stages

import (
	"context"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/quantbrief/quantbrief-backend/internal/platform/logger"
	"github.com/quantbrief/quantbrief-backend/internal/types"
	"github.com/quantbrief/quantbrief-backend/internal/workflow/faults"
)

// ScrapePages fans out one scrape per URL over a browser pool built for this
// run. Per-URL failures and timeouts drop the URL; only pool construction
// fails the stage. The pool is closed when every task has finished.
type ScrapePages struct {
	deps *Deps
	log  *logger.Logger
}

func NewScrapePages(deps *Deps) *ScrapePages {
	return &ScrapePages{deps: deps, log: deps.stageLog("scrape_pages")}
}

func (s *ScrapePages) Stage() types.Stage { return types.StageScrapePages }

func (s *ScrapePages) Run(ctx context.Context, state *types.ReportState) error {
	if len(state.SearchURLs) == 0 {
		return faults.Invariant("scrape_pages", "no urls in state")
	}

	pool, err := s.deps.NewScraperPool()
	if err != nil {
		return err
	}
	defer pool.Close()

	var mu sync.Mutex
	var pages []types.PageSource
	g, gctx := errgroup.WithContext(ctx)
	for _, url := range state.SearchURLs {
		url := url
		g.Go(func() error {
			html, err := pool.Scrape(gctx, url)
			if err != nil {
				s.log.Warn("Scrape dropped", "report_id", state.ID, "url", url, "error", err)
				return nil
			}
			mu.Lock()
			pages = append(pages, types.PageSource{URL: url, Content: html})
			mu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}

	state.HTMLSources = pages
	s.log.Info("Scraping done", "report_id", state.ID, "attempted", len(state.SearchURLs), "scraped", len(pages))
	return nil
}
