package repos

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/quantbrief/quantbrief-backend/internal/platform/logger"
	"github.com/quantbrief/quantbrief-backend/internal/types"
)

// GenerationLogRepo persists priced per-LLM-call rows; the cost ledger views
// read from here.
type GenerationLogRepo interface {
	Create(ctx context.Context, rows []*types.GenerationLogRow) error
	ListByReport(ctx context.Context, reportID string) ([]types.GenerationLogRow, error)
}

type generationLogRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewGenerationLogRepo(db *gorm.DB, baseLog *logger.Logger) GenerationLogRepo {
	return &generationLogRepo{db: db, log: baseLog.With("repo", "GenerationLogRepo")}
}

func (r *generationLogRepo) Create(ctx context.Context, rows []*types.GenerationLogRow) error {
	if len(rows) == 0 {
		return nil
	}
	now := time.Now().UTC()
	for _, row := range rows {
		if row.ID == "" {
			row.ID = uuid.NewString()
		}
		if row.CreatedAt.IsZero() {
			row.CreatedAt = now
		}
	}
	return r.db.WithContext(ctx).Create(&rows).Error
}

func (r *generationLogRepo) ListByReport(ctx context.Context, reportID string) ([]types.GenerationLogRow, error) {
	var rows []types.GenerationLogRow
	err := r.db.WithContext(ctx).
		Where("report_id = ?", reportID).
		Order("created_at asc").
		Find(&rows).Error
	if err != nil {
		return nil, err
	}
	return rows, nil
}
