package stages

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"golang.org/x/sync/errgroup"

	"github.com/quantbrief/quantbrief-backend/internal/platform/logger"
	"github.com/quantbrief/quantbrief-backend/internal/prompts"
	"github.com/quantbrief/quantbrief-backend/internal/types"
	"github.com/quantbrief/quantbrief-backend/internal/workflow/faults"
)

// GenerateTitle names the report from the user input.
type GenerateTitle struct {
	deps *Deps
	log  *logger.Logger
}

func NewGenerateTitle(deps *Deps) *GenerateTitle {
	return &GenerateTitle{deps: deps, log: deps.stageLog("generate_title")}
}

func (s *GenerateTitle) Stage() types.Stage { return types.StageGenerateTitle }

func (s *GenerateTitle) Run(ctx context.Context, state *types.ReportState) error {
	template, err := s.deps.Prompts.Get(ctx, prompts.KeyTitle)
	if err != nil {
		return err
	}
	title, result, err := s.deps.Tasks.Raw(ctx, template, map[string]any{
		"user_input": state.UserInput,
	}, s.deps.Model)
	state.GenerationResults = append(state.GenerationResults, result)
	if err != nil {
		return err
	}
	state.Title = strings.TrimSpace(title)
	if state.Title == "" {
		return faults.Parse("generate_title", "model produced an empty title", nil)
	}
	return nil
}

// GenerateSectionNames produces the ordered top-level outline.
type GenerateSectionNames struct {
	deps *Deps
	log  *logger.Logger
}

func NewGenerateSectionNames(deps *Deps) *GenerateSectionNames {
	return &GenerateSectionNames{deps: deps, log: deps.stageLog("generate_section_names")}
}

func (s *GenerateSectionNames) Stage() types.Stage { return types.StageGenerateSectionNames }

func (s *GenerateSectionNames) Run(ctx context.Context, state *types.ReportState) error {
	template, err := s.deps.Prompts.Get(ctx, prompts.KeySection)
	if err != nil {
		return err
	}
	payload, results, err := s.deps.Tasks.Structured(ctx, template, map[string]any{
		"user_input": state.UserInput,
		"title":      state.Title,
	}, s.deps.Model, stringListSchema)
	state.GenerationResults = append(state.GenerationResults, results...)
	if err != nil {
		return err
	}
	var sections []string
	if err := json.Unmarshal(payload, &sections); err != nil {
		return faults.Parse("generate_section_names", "section list did not decode", err)
	}
	if len(sections) == 0 {
		return faults.Parse("generate_section_names", "model produced no sections", nil)
	}
	state.Sections = sections
	return nil
}

// GenerateSubSections fans out one generation per section and collects the
// results back in section order.
type GenerateSubSections struct {
	deps *Deps
	log  *logger.Logger
}

func NewGenerateSubSections(deps *Deps) *GenerateSubSections {
	return &GenerateSubSections{deps: deps, log: deps.stageLog("generate_sub_sections")}
}

func (s *GenerateSubSections) Stage() types.Stage { return types.StageGenerateSubSections }

func (s *GenerateSubSections) Run(ctx context.Context, state *types.ReportState) error {
	template, err := s.deps.Prompts.Get(ctx, prompts.KeySubSection)
	if err != nil {
		return err
	}

	subSections := make([][]string, len(state.Sections))
	resultsPer := make([][]types.GenerationResult, len(state.Sections))

	g, gctx := errgroup.WithContext(ctx)
	for i, section := range state.Sections {
		i, section := i, section
		g.Go(func() error {
			payload, results, err := s.deps.Tasks.Structured(gctx, template, map[string]any{
				"user_input": state.UserInput,
				"title":      state.Title,
				"section":    section,
			}, s.deps.Model, stringListSchema)
			resultsPer[i] = results
			if err != nil {
				return err
			}
			var subs []string
			if err := json.Unmarshal(payload, &subs); err != nil {
				return faults.Parse("generate_sub_sections", "sub-section list did not decode", err)
			}
			if len(subs) == 0 {
				return faults.Parse("generate_sub_sections",
					fmt.Sprintf("section %q got no sub-sections", section), nil)
			}
			subSections[i] = subs
			return nil
		})
	}
	err = g.Wait()
	for _, results := range resultsPer {
		state.GenerationResults = append(state.GenerationResults, results...)
	}
	if err != nil {
		return err
	}
	state.SubSections = subSections
	return nil
}

// GenerateSubSectionQuestions asks for the full nested question set in one
// call and checks it aligns with the outline shape.
type GenerateSubSectionQuestions struct {
	deps *Deps
	log  *logger.Logger
}

func NewGenerateSubSectionQuestions(deps *Deps) *GenerateSubSectionQuestions {
	return &GenerateSubSectionQuestions{deps: deps, log: deps.stageLog("generate_sub_section_questions")}
}

func (s *GenerateSubSectionQuestions) Stage() types.Stage {
	return types.StageGenerateSubSectionQuestions
}

func (s *GenerateSubSectionQuestions) Run(ctx context.Context, state *types.ReportState) error {
	template, err := s.deps.Prompts.Get(ctx, prompts.KeySubSectionQuestions)
	if err != nil {
		return err
	}
	payload, results, err := s.deps.Tasks.Structured(ctx, template, map[string]any{
		"user_input":   state.UserInput,
		"title":        state.Title,
		"sections":     state.Sections,
		"sub_sections": state.SubSections,
	}, s.deps.Model, nestedQuestionsSchema)
	state.GenerationResults = append(state.GenerationResults, results...)
	if err != nil {
		return err
	}

	var questions [][][]string
	if err := json.Unmarshal(payload, &questions); err != nil {
		return faults.Parse("generate_sub_section_questions", "question grid did not decode", err)
	}
	if len(questions) != len(state.SubSections) {
		return faults.Invariant("generate_sub_section_questions", fmt.Sprintf(
			"question grid has %d sections, outline has %d", len(questions), len(state.SubSections)))
	}
	for i := range questions {
		if len(questions[i]) != len(state.SubSections[i]) {
			return faults.Invariant("generate_sub_section_questions", fmt.Sprintf(
				"section %d has %d question groups, outline has %d sub-sections",
				i, len(questions[i]), len(state.SubSections[i])))
		}
	}
	state.SubSectionQuestions = questions
	return nil
}
