package repos

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"gorm.io/datatypes"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/quantbrief/quantbrief-backend/internal/platform/logger"
	"github.com/quantbrief/quantbrief-backend/internal/types"
	"github.com/quantbrief/quantbrief-backend/internal/workflow/faults"
)

// WorkflowStateRepo persists whole report states keyed by report id.
// Reads and writes are durable before the scheduler acknowledges a message.
type WorkflowStateRepo interface {
	Upsert(ctx context.Context, st *types.ReportState) error
	Get(ctx context.Context, id string) (*types.ReportState, error)
}

type workflowStateRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewWorkflowStateRepo(db *gorm.DB, baseLog *logger.Logger) WorkflowStateRepo {
	return &workflowStateRepo{db: db, log: baseLog.With("repo", "WorkflowStateRepo")}
}

func (r *workflowStateRepo) Upsert(ctx context.Context, st *types.ReportState) error {
	if st == nil || st.ID == "" {
		return faults.Invariant("state_upsert", "state id is required")
	}
	raw, err := json.Marshal(st)
	if err != nil {
		return err
	}
	row := types.WorkflowStateRow{
		ID:        st.ID,
		State:     datatypes.JSON(raw),
		UpdatedAt: time.Now().UTC(),
	}
	return r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "id"}},
			UpdateAll: true,
		}).
		Create(&row).Error
}

func (r *workflowStateRepo) Get(ctx context.Context, id string) (*types.ReportState, error) {
	var row types.WorkflowStateRow
	err := r.db.WithContext(ctx).First(&row, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, faults.NotFound("state_get", "workflow_state "+id)
	}
	if err != nil {
		return nil, err
	}
	var st types.ReportState
	if err := json.Unmarshal(row.State, &st); err != nil {
		return nil, faults.Parse("state_get", "stored state is not valid JSON", err)
	}
	return &st, nil
}
