package vector

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"gorm.io/datatypes"

	"github.com/quantbrief/quantbrief-backend/internal/platform/logger"
	"github.com/quantbrief/quantbrief-backend/internal/types"
	"github.com/quantbrief/quantbrief-backend/internal/workflow/faults"
)

type memChunkRepo struct {
	rows []types.EmbeddedChunkRow
}

func (m *memChunkRepo) Insert(_ context.Context, reportID, sourceID, chunk string, embedding []float32) error {
	raw, err := json.Marshal(embedding)
	if err != nil {
		return err
	}
	m.rows = append(m.rows, types.EmbeddedChunkRow{
		ReportID:  reportID,
		SourceID:  sourceID,
		Chunk:     chunk,
		Embedding: datatypes.JSON(raw),
	})
	return nil
}

func (m *memChunkRepo) ListByReport(_ context.Context, reportID string) ([]types.EmbeddedChunkRow, error) {
	var out []types.EmbeddedChunkRow
	for _, row := range m.rows {
		if row.ReportID == reportID {
			out = append(out, row)
		}
	}
	return out, nil
}

func TestQuery_OrdersAscendingByDistance(t *testing.T) {
	repo := &memChunkRepo{}
	ix := NewIndex(logger.NewNop(), repo)
	ctx := context.Background()

	mustInsert(t, ix, ctx, "r1", "far", []float32{0, 1})
	mustInsert(t, ix, ctx, "r1", "near", []float32{1, 0})
	mustInsert(t, ix, ctx, "r1", "mid", []float32{1, 1})

	matches, err := ix.Query(ctx, "r1", []float32{1, 0}, 3)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	got := []string{matches[0].SourceID, matches[1].SourceID, matches[2].SourceID}
	want := []string{"near", "mid", "far"}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("order mismatch: got %v want %v", got, want)
		}
	}
	for i := 1; i < len(matches); i++ {
		if matches[i].Distance < matches[i-1].Distance {
			t.Fatalf("distances not ascending: %v", matches)
		}
	}
}

func TestQuery_ScopedToReport(t *testing.T) {
	repo := &memChunkRepo{}
	ix := NewIndex(logger.NewNop(), repo)
	ctx := context.Background()

	mustInsert(t, ix, ctx, "r1", "s1", []float32{1, 0})
	mustInsert(t, ix, ctx, "r2", "other", []float32{1, 0})

	matches, err := ix.Query(ctx, "r1", []float32{1, 0}, 10)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(matches) != 1 || matches[0].SourceID != "s1" {
		t.Fatalf("query leaked across reports: %#v", matches)
	}
}

func TestQuery_DimensionMismatchIsInvariantViolation(t *testing.T) {
	repo := &memChunkRepo{}
	ix := NewIndex(logger.NewNop(), repo)
	ctx := context.Background()

	mustInsert(t, ix, ctx, "r1", "s1", []float32{1, 0, 0})
	_, err := ix.Query(ctx, "r1", []float32{1, 0}, 5)
	if err == nil {
		t.Fatalf("expected invariant violation")
	}
	var fault *faults.Fault
	if !errors.As(err, &fault) || fault.Kind != faults.KindInvariantViolation {
		t.Fatalf("expected invariant fault, got %v", err)
	}
}

func TestQuery_DuplicateRowsKeepTopOneStable(t *testing.T) {
	repo := &memChunkRepo{}
	ix := NewIndex(logger.NewNop(), repo)
	ctx := context.Background()

	mustInsert(t, ix, ctx, "r1", "s1", []float32{1, 0})
	mustInsert(t, ix, ctx, "r1", "s2", []float32{0, 1})

	before, err := ix.Query(ctx, "r1", []float32{1, 0}, 1)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	// A redelivered IndexChunks run appends the same rows again.
	mustInsert(t, ix, ctx, "r1", "s1", []float32{1, 0})
	mustInsert(t, ix, ctx, "r1", "s2", []float32{0, 1})

	after, err := ix.Query(ctx, "r1", []float32{1, 0}, 1)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if before[0].SourceID != after[0].SourceID || before[0].Chunk != after[0].Chunk {
		t.Fatalf("top-1 changed after duplicate append: %v vs %v", before[0], after[0])
	}
}

func TestInsert_RejectsEmptyEmbedding(t *testing.T) {
	ix := NewIndex(logger.NewNop(), &memChunkRepo{})
	if err := ix.Insert(context.Background(), "r1", "s1", "c", nil); err == nil {
		t.Fatalf("expected invariant violation")
	}
}

func mustInsert(t *testing.T, ix Index, ctx context.Context, reportID, sourceID string, emb []float32) {
	t.Helper()
	if err := ix.Insert(ctx, reportID, sourceID, "chunk of "+sourceID, emb); err != nil {
		t.Fatalf("insert %s: %v", sourceID, err)
	}
}
