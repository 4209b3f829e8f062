package workflow

import (
	"context"
	"fmt"
	"sync"

	"github.com/quantbrief/quantbrief-backend/internal/types"
)

// Handler runs one stage against the report state. Handlers mutate the state
// in place and must be idempotent: the broker is at-least-once, so a stage
// may run again on a state it already advanced.
type Handler interface {
	Stage() types.Stage
	Run(ctx context.Context, state *types.ReportState) error
}

type Registry struct {
	mu       sync.RWMutex
	handlers map[types.Stage]Handler
}

func NewRegistry() *Registry {
	return &Registry{handlers: make(map[types.Stage]Handler)}
}

func (r *Registry) Register(h Handler) error {
	if h == nil {
		return fmt.Errorf("nil handler")
	}
	s := h.Stage()
	if s == "" {
		return fmt.Errorf("handler Stage() is empty")
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.handlers[s]; exists {
		return fmt.Errorf("handler already registered for stage=%s", s)
	}
	r.handlers[s] = h
	return nil
}

func (r *Registry) Get(stage types.Stage) (Handler, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	h, ok := r.handlers[stage]
	return h, ok
}
