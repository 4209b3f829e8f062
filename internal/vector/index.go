package vector

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"sort"

	"github.com/quantbrief/quantbrief-backend/internal/platform/logger"
	"github.com/quantbrief/quantbrief-backend/internal/repos"
	"github.com/quantbrief/quantbrief-backend/internal/workflow/faults"
)

// Match is one retrieved chunk, ordered ascending by cosine distance.
type Match struct {
	SourceID string
	Chunk    string
	Distance float64
}

// Index stores per-report chunk embeddings and answers cosine top-k queries.
// Rows are partitioned by report id; writers only append, so no cross-report
// locking is needed. The scan is exact: corpora stay well under 10^4 rows per
// report and an exact scan keeps top-k deterministic for identical inputs.
type Index interface {
	Insert(ctx context.Context, reportID, sourceID, chunk string, embedding []float32) error
	Query(ctx context.Context, reportID string, query []float32, topK int) ([]Match, error)
}

type index struct {
	log  *logger.Logger
	rows repos.EmbeddedChunkRepo
}

func NewIndex(baseLog *logger.Logger, rows repos.EmbeddedChunkRepo) Index {
	return &index{log: baseLog.With("service", "VectorIndex"), rows: rows}
}

func (ix *index) Insert(ctx context.Context, reportID, sourceID, chunk string, embedding []float32) error {
	if len(embedding) == 0 {
		return faults.Invariant("vector_insert", "empty embedding")
	}
	if err := ix.rows.Insert(ctx, reportID, sourceID, chunk, embedding); err != nil {
		return faults.Upstream("vector_insert", err)
	}
	return nil
}

func (ix *index) Query(ctx context.Context, reportID string, query []float32, topK int) ([]Match, error) {
	if len(query) == 0 {
		return nil, faults.Invariant("vector_query", "empty query vector")
	}
	if topK <= 0 {
		topK = 10
	}

	rows, err := ix.rows.ListByReport(ctx, reportID)
	if err != nil {
		return nil, faults.Upstream("vector_query", err)
	}

	matches := make([]Match, 0, len(rows))
	for i, row := range rows {
		var emb []float32
		if err := json.Unmarshal(row.Embedding, &emb); err != nil {
			return nil, faults.Parse("vector_query", "stored embedding is not valid JSON", err)
		}
		if len(emb) != len(query) {
			return nil, faults.Invariant("vector_query", fmt.Sprintf(
				"embedding dimension mismatch for report %s: row %d has %d, query has %d",
				reportID, i, len(emb), len(query),
			))
		}
		matches = append(matches, Match{
			SourceID: row.SourceID,
			Chunk:    row.Chunk,
			Distance: cosineDistance(query, emb),
		})
	}

	// Stable sort keeps insertion order among exact ties so duplicate appends
	// from redelivered messages do not perturb the top-k.
	sort.SliceStable(matches, func(i, j int) bool {
		return matches[i].Distance < matches[j].Distance
	})
	if len(matches) > topK {
		matches = matches[:topK]
	}
	return matches, nil
}

func cosineDistance(a, b []float32) float64 {
	var dot, na, nb float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		na += float64(a[i]) * float64(a[i])
		nb += float64(b[i]) * float64(b[i])
	}
	if na == 0 || nb == 0 {
		return 1
	}
	return 1 - dot/(math.Sqrt(na)*math.Sqrt(nb))
}
