package prompts

import (
	"context"
	"testing"

	"github.com/quantbrief/quantbrief-backend/internal/platform/logger"
	"github.com/quantbrief/quantbrief-backend/internal/workflow/faults"
)

type countingRepo struct {
	templates map[string]string
	gets      int
}

func (r *countingRepo) Get(_ context.Context, key string) (string, error) {
	r.gets++
	tpl, ok := r.templates[key]
	if !ok {
		return "", faults.NotFound("prompt_get", "prompt "+key)
	}
	return tpl, nil
}

func TestCache_ReadThrough(t *testing.T) {
	repo := &countingRepo{templates: map[string]string{KeyTitle: "Name {user_input}"}}
	cache := NewCache(logger.NewNop(), repo)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		got, err := cache.Get(ctx, KeyTitle)
		if err != nil {
			t.Fatalf("get: %v", err)
		}
		if got != "Name {user_input}" {
			t.Fatalf("got %q", got)
		}
	}
	if repo.gets != 1 {
		t.Fatalf("expected a single store read, got %d", repo.gets)
	}
}

func TestCache_ReloadDropsEntries(t *testing.T) {
	repo := &countingRepo{templates: map[string]string{KeyTitle: "v1"}}
	cache := NewCache(logger.NewNop(), repo)
	ctx := context.Background()

	if _, err := cache.Get(ctx, KeyTitle); err != nil {
		t.Fatalf("get: %v", err)
	}
	repo.templates[KeyTitle] = "v2"
	cache.Reload()

	got, err := cache.Get(ctx, KeyTitle)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got != "v2" {
		t.Fatalf("reload did not refresh: %q", got)
	}
}

func TestCache_MissingKeySurfacesNotFound(t *testing.T) {
	cache := NewCache(logger.NewNop(), &countingRepo{templates: map[string]string{}})
	if _, err := cache.Get(context.Background(), "nope"); err == nil {
		t.Fatalf("expected not-found")
	}
}
