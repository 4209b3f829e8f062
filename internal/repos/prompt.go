package repos

import (
	"context"
	"errors"

	"gorm.io/gorm"

	"github.com/quantbrief/quantbrief-backend/internal/platform/logger"
	"github.com/quantbrief/quantbrief-backend/internal/types"
	"github.com/quantbrief/quantbrief-backend/internal/workflow/faults"
)

type PromptRepo interface {
	Get(ctx context.Context, key string) (string, error)
}

type promptRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewPromptRepo(db *gorm.DB, baseLog *logger.Logger) PromptRepo {
	return &promptRepo{db: db, log: baseLog.With("repo", "PromptRepo")}
}

func (r *promptRepo) Get(ctx context.Context, key string) (string, error) {
	var row types.PromptRow
	err := r.db.WithContext(ctx).First(&row, "id = ?", key).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return "", faults.NotFound("prompt_get", "prompt "+key)
	}
	if err != nil {
		return "", err
	}
	return row.Template, nil
}
