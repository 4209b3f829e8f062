package prompts

import (
	"context"
	"sync"

	"github.com/quantbrief/quantbrief-backend/internal/platform/logger"
	"github.com/quantbrief/quantbrief-backend/internal/repos"
)

// Keys the workflow reads from the prompt collection.
const (
	KeyValidation          = "validation"
	KeyTitle               = "title"
	KeySection             = "section"
	KeySubSection          = "subsection"
	KeySubSectionQuestions = "sub-section-questions"
	KeySearch              = "search"
	KeySourceFormatter     = "source-formatter"
	KeyContentClassifier   = "content-classifier"
	KeyDataClassifier      = "data-classifier"
	KeyAnswerQuestions     = "answer-questions"
	KeySectionizeQuestions = "sectionize-questions"
	KeyGraphVisualization  = "graph-visualization"
	KeyGraphDataPrep       = "graph-data-prep"
	KeyGraphIdentifier     = "graph-identifier"
	KeyGraphInsertion      = "graph-insertion"
	KeySingleSearch        = "single-search"
	KeyParagraph           = "paragraph"
)

// Cache is a read-through cache over the prompt collection. Invalidation is
// out of scope; Reload drops everything for operational refresh.
type Cache struct {
	log  *logger.Logger
	repo repos.PromptRepo

	mu   sync.RWMutex
	byID map[string]string
}

func NewCache(baseLog *logger.Logger, repo repos.PromptRepo) *Cache {
	return &Cache{
		log:  baseLog.With("service", "PromptCache"),
		repo: repo,
		byID: make(map[string]string),
	}
}

func (c *Cache) Get(ctx context.Context, key string) (string, error) {
	c.mu.RLock()
	cached, ok := c.byID[key]
	c.mu.RUnlock()
	if ok {
		return cached, nil
	}

	template, err := c.repo.Get(ctx, key)
	if err != nil {
		return "", err
	}
	c.mu.Lock()
	c.byID[key] = template
	c.mu.Unlock()
	return template, nil
}

func (c *Cache) Reload() {
	c.mu.Lock()
	c.byID = make(map[string]string)
	c.mu.Unlock()
}
