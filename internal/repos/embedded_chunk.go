package repos

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/quantbrief/quantbrief-backend/internal/platform/logger"
	"github.com/quantbrief/quantbrief-backend/internal/types"
)

// EmbeddedChunkRepo is the row layer under the vector index. Append-only;
// no in-band delete.
type EmbeddedChunkRepo interface {
	Insert(ctx context.Context, reportID, sourceID, chunk string, embedding []float32) error
	ListByReport(ctx context.Context, reportID string) ([]types.EmbeddedChunkRow, error)
}

type embeddedChunkRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewEmbeddedChunkRepo(db *gorm.DB, baseLog *logger.Logger) EmbeddedChunkRepo {
	return &embeddedChunkRepo{db: db, log: baseLog.With("repo", "EmbeddedChunkRepo")}
}

func (r *embeddedChunkRepo) Insert(ctx context.Context, reportID, sourceID, chunk string, embedding []float32) error {
	raw, err := json.Marshal(embedding)
	if err != nil {
		return err
	}
	row := types.EmbeddedChunkRow{
		ID:        uuid.NewString(),
		ReportID:  reportID,
		SourceID:  sourceID,
		Chunk:     chunk,
		Embedding: datatypes.JSON(raw),
		CreatedAt: time.Now().UTC(),
	}
	return r.db.WithContext(ctx).Create(&row).Error
}

func (r *embeddedChunkRepo) ListByReport(ctx context.Context, reportID string) ([]types.EmbeddedChunkRow, error) {
	var rows []types.EmbeddedChunkRow
	err := r.db.WithContext(ctx).
		Where("report_id = ?", reportID).
		Order("created_at asc").
		Find(&rows).Error
	if err != nil {
		return nil, err
	}
	return rows, nil
}
