package repos

import (
	"context"
	"errors"
	"testing"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/quantbrief/quantbrief-backend/internal/platform/logger"
	"github.com/quantbrief/quantbrief-backend/internal/types"
	"github.com/quantbrief/quantbrief-backend/internal/workflow/faults"
)

func testDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	if err := db.AutoMigrate(
		&types.WorkflowStateRow{},
		&types.EmbeddedChunkRow{},
		&types.PromptRow{},
		&types.GenerationLogRow{},
	); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return db
}

func TestWorkflowStateRepo_UpsertReplacesDocument(t *testing.T) {
	repo := NewWorkflowStateRepo(testDB(t), logger.NewNop())
	ctx := context.Background()

	first := &types.ReportState{ID: "r1", UserInput: "Apple", LastStage: types.StagePending}
	if err := repo.Upsert(ctx, first); err != nil {
		t.Fatalf("insert: %v", err)
	}

	second := &types.ReportState{ID: "r1", UserInput: "Apple", LastStage: types.StageValidation, Title: "Apple in 2025"}
	if err := repo.Upsert(ctx, second); err != nil {
		t.Fatalf("upsert: %v", err)
	}

	got, err := repo.Get(ctx, "r1")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.LastStage != types.StageValidation || got.Title != "Apple in 2025" {
		t.Fatalf("upsert did not replace document: %+v", got)
	}
}

func TestWorkflowStateRepo_GetMissingIsNotFound(t *testing.T) {
	repo := NewWorkflowStateRepo(testDB(t), logger.NewNop())
	_, err := repo.Get(context.Background(), "absent")
	var fault *faults.Fault
	if !errors.As(err, &fault) || fault.Kind != faults.KindNotFound {
		t.Fatalf("expected not-found fault, got %v", err)
	}
}

func TestWorkflowStateRepo_RejectsEmptyID(t *testing.T) {
	repo := NewWorkflowStateRepo(testDB(t), logger.NewNop())
	if err := repo.Upsert(context.Background(), &types.ReportState{}); err == nil {
		t.Fatalf("expected invariant violation")
	}
}

func TestEmbeddedChunkRepo_ListFiltersByReport(t *testing.T) {
	repo := NewEmbeddedChunkRepo(testDB(t), logger.NewNop())
	ctx := context.Background()

	if err := repo.Insert(ctx, "r1", "website0", "alpha", []float32{1, 0}); err != nil {
		t.Fatalf("insert: %v", err)
	}
	if err := repo.Insert(ctx, "r1", "website1", "beta", []float32{0, 1}); err != nil {
		t.Fatalf("insert: %v", err)
	}
	if err := repo.Insert(ctx, "r2", "website0", "other", []float32{1, 1}); err != nil {
		t.Fatalf("insert: %v", err)
	}

	rows, err := repo.ListByReport(ctx, "r1")
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(rows) != 2 {
		t.Fatalf("expected 2 rows, got %d", len(rows))
	}
	for _, row := range rows {
		if row.ReportID != "r1" {
			t.Fatalf("row from wrong report: %+v", row)
		}
	}
}

func TestPromptRepo_GetMissingIsNotFound(t *testing.T) {
	db := testDB(t)
	repo := NewPromptRepo(db, logger.NewNop())
	ctx := context.Background()

	db.Create(&types.PromptRow{ID: "validation", Template: "Is {user_input} a topic?"})

	got, err := repo.Get(ctx, "validation")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got != "Is {user_input} a topic?" {
		t.Fatalf("got %q", got)
	}

	_, err = repo.Get(ctx, "missing")
	var fault *faults.Fault
	if !errors.As(err, &fault) || fault.Kind != faults.KindNotFound {
		t.Fatalf("expected not-found fault, got %v", err)
	}
}

func TestGenerationLogRepo_CreateAndList(t *testing.T) {
	repo := NewGenerationLogRepo(testDB(t), logger.NewNop())
	ctx := context.Background()

	rows := []*types.GenerationLogRow{
		{ReportID: "r1", APITag: "local", PromptTokens: 100, GeneratedTokens: 50, CostMicroCredits: 125_000},
		{ReportID: "r1", APITag: "groq", PromptTokens: 10, GeneratedTokens: 10},
	}
	if err := repo.Create(ctx, rows); err != nil {
		t.Fatalf("create: %v", err)
	}

	listed, err := repo.ListByReport(ctx, "r1")
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(listed) != 2 {
		t.Fatalf("expected 2 rows, got %d", len(listed))
	}
	for _, row := range listed {
		if row.ID == "" {
			t.Fatalf("row id must be generated: %+v", row)
		}
	}
}
