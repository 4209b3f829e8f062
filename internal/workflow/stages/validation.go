package stages

import (
	"context"
	"encoding/json"

	"github.com/quantbrief/quantbrief-backend/internal/platform/logger"
	"github.com/quantbrief/quantbrief-backend/internal/prompts"
	"github.com/quantbrief/quantbrief-backend/internal/types"
	"github.com/quantbrief/quantbrief-backend/internal/workflow/faults"
)

// Validation decides whether the user input describes a researchable topic.
// A rejection is not an error: the scheduler forks the report to Invalid.
type Validation struct {
	deps *Deps
	log  *logger.Logger
}

func NewValidation(deps *Deps) *Validation {
	return &Validation{deps: deps, log: deps.stageLog("validation")}
}

func (s *Validation) Stage() types.Stage { return types.StageValidation }

func (s *Validation) Run(ctx context.Context, state *types.ReportState) error {
	if state.UserInput == "" {
		return faults.Invariant("validation", "report has no user input")
	}

	template, err := s.deps.Prompts.Get(ctx, prompts.KeyValidation)
	if err != nil {
		return err
	}

	payload, results, err := s.deps.Tasks.Structured(ctx, template, map[string]any{
		"user_input": state.UserInput,
	}, s.deps.Model, validationSchema)
	state.GenerationResults = append(state.GenerationResults, results...)
	if err != nil {
		return err
	}

	var verdict types.Validation
	if err := json.Unmarshal(payload, &verdict); err != nil {
		return faults.Parse("validation", "verdict payload did not decode", err)
	}
	state.Validation = &verdict
	if !verdict.Valid {
		s.log.Info("User input rejected", "report_id", state.ID, "reason", verdict.Error)
	}
	return nil
}
