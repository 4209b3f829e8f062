package stages

import (
	"context"

	"github.com/quantbrief/quantbrief-backend/internal/platform/logger"
	"github.com/quantbrief/quantbrief-backend/internal/render"
	"github.com/quantbrief/quantbrief-backend/internal/types"
	"github.com/quantbrief/quantbrief-backend/internal/workflow/faults"
)

// Render assembles the abstract document tree and hands it to the renderer.
type Render struct {
	deps *Deps
	log  *logger.Logger
}

func NewRender(deps *Deps) *Render {
	return &Render{deps: deps, log: deps.stageLog("render")}
}

func (s *Render) Stage() types.Stage { return types.StageRender }

func (s *Render) Run(ctx context.Context, state *types.ReportState) error {
	doc, err := BuildDocument(state)
	if err != nil {
		return err
	}
	path, err := s.deps.Renderer.Render(ctx, doc, state.ID)
	if err != nil {
		return err
	}
	state.Report = path
	s.log.Info("Report rendered", "report_id", state.ID, "path", path)
	return nil
}

// BuildDocument maps the state onto the renderer's node set: paragraphs from
// sub-section contents, figures and tables at their chosen insertions, and a
// closing references section built from the classified sources.
func BuildDocument(state *types.ReportState) (render.Document, error) {
	if len(state.Sections) != len(state.SubSections) ||
		len(state.Sections) != len(state.SubSectionContents) {
		return render.Document{}, faults.Invariant("render", "outline and contents are misaligned")
	}

	chartsAt := make(map[[2]int][]render.Block)
	for _, pos := range state.ChartPositions {
		if pos.ChartIndex < 0 || pos.ChartIndex >= len(state.Charts) {
			return render.Document{}, faults.Invariant("render", "chart position points at a missing chart")
		}
		chart := state.Charts[pos.ChartIndex]
		key := [2]int{pos.Section, pos.SubSection}
		chartsAt[key] = append(chartsAt[key], render.Figure{Caption: chart.Title, Path: chart.Path})
	}
	for _, pos := range state.TablePositions {
		if pos.TableIndex < 0 || pos.TableIndex >= len(state.Tables) {
			return render.Document{}, faults.Invariant("render", "table position points at a missing table")
		}
		table := state.Tables[pos.TableIndex]
		key := [2]int{pos.Section, pos.SubSection}
		chartsAt[key] = append(chartsAt[key], render.Table{
			Title: table.Title, Columns: table.Columns, Rows: table.Rows,
		})
	}

	doc := render.Document{Title: state.Title}
	for i, name := range state.Sections {
		if len(state.SubSections[i]) != len(state.SubSectionContents[i]) {
			return render.Document{}, faults.Invariant("render", "sub-section contents are misaligned")
		}
		section := render.Section{Name: name}
		for j, subName := range state.SubSections[i] {
			blocks := []render.Block{render.Paragraph{Text: state.SubSectionContents[i][j]}}
			blocks = append(blocks, chartsAt[[2]int{i, j}]...)
			section.SubSections = append(section.SubSections, render.SubSection{
				Name:   subName,
				Blocks: blocks,
			})
		}
		doc.Sections = append(doc.Sections, section)
	}

	if len(state.Sources) > 0 {
		refs := render.SubSection{Name: "Sources"}
		for _, src := range state.Sources {
			refs.Blocks = append(refs.Blocks, render.Citation{
				ID:     src.ID,
				Title:  src.Title,
				Author: src.Author,
				Date:   src.Date,
				URL:    src.URL,
			})
		}
		doc.Sections = append(doc.Sections, render.Section{
			Name:        "References",
			SubSections: []render.SubSection{refs},
		})
	}
	return doc, nil
}

// GeneratePreview truncates the rendered document to its first pages.
type GeneratePreview struct {
	deps *Deps
	log  *logger.Logger
}

func NewGeneratePreview(deps *Deps) *GeneratePreview {
	return &GeneratePreview{deps: deps, log: deps.stageLog("generate_preview")}
}

func (s *GeneratePreview) Stage() types.Stage { return types.StageGeneratePreview }

const previewPages = 5

func (s *GeneratePreview) Run(ctx context.Context, state *types.ReportState) error {
	if state.Report == "" {
		return faults.Invariant("generate_preview", "no rendered report in state")
	}
	path, err := s.deps.Renderer.Preview(ctx, state.Report, previewPages)
	if err != nil {
		return err
	}
	state.Preview = path
	return nil
}
