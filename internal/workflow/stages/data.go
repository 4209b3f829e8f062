package stages

import (
	"context"
	"encoding/json"
	"strings"

	"github.com/quantbrief/quantbrief-backend/internal/extract"
	"github.com/quantbrief/quantbrief-backend/internal/platform/logger"
	"github.com/quantbrief/quantbrief-backend/internal/prompts"
	"github.com/quantbrief/quantbrief-backend/internal/types"
	"github.com/quantbrief/quantbrief-backend/internal/workflow/faults"
)

// ExtractData pulls every markdown table out of the formatted sources as a
// CSV-shaped string.
type ExtractData struct {
	deps *Deps
	log  *logger.Logger
}

func NewExtractData(deps *Deps) *ExtractData {
	return &ExtractData{deps: deps, log: deps.stageLog("extract_data")}
}

func (s *ExtractData) Stage() types.Stage { return types.StageExtractData }

func (s *ExtractData) Run(_ context.Context, state *types.ReportState) error {
	var csvs []string
	for _, page := range state.MDSources {
		tables, err := extract.MarkdownTables(page.Content)
		if err != nil {
			return err
		}
		csvs = append(csvs, tables...)
	}
	state.CSVSources = csvs
	s.log.Info("Tables extracted", "report_id", state.ID, "tables", len(csvs))
	return nil
}

// ClassifyData describes each extracted table. The model sees a short
// markdown preview; its per-column descriptions are stitched back onto the
// full column values.
type ClassifyData struct {
	deps *Deps
	log  *logger.Logger
}

func NewClassifyData(deps *Deps) *ClassifyData {
	return &ClassifyData{deps: deps, log: deps.stageLog("classify_data")}
}

func (s *ClassifyData) Stage() types.Stage { return types.StageClassifyData }

const classifyPreviewRows = 5

type dataVerdict struct {
	Title       string `json:"title"`
	Description string `json:"description"`
	Columns     []struct {
		Title       string `json:"title"`
		Description string `json:"description"`
	} `json:"columns"`
}

func (s *ClassifyData) Run(ctx context.Context, state *types.ReportState) error {
	template, err := s.deps.Prompts.Get(ctx, prompts.KeyDataClassifier)
	if err != nil {
		return err
	}

	classified := make([]types.DataSource, 0, len(state.CSVSources))
	for _, csv := range state.CSVSources {
		header, rows, err := parseCSV(csv)
		if err != nil {
			return err
		}

		payload, results, err := s.deps.Tasks.Structured(ctx, template, map[string]any{
			"data": csvPreview(header, rows, classifyPreviewRows),
		}, s.deps.Model, dataClassifierSchema)
		state.GenerationResults = append(state.GenerationResults, results...)
		if err != nil {
			return err
		}
		var verdict dataVerdict
		if err := json.Unmarshal(payload, &verdict); err != nil {
			return faults.Parse("classify_data", "data verdict did not decode", err)
		}

		columns := make([]types.DataColumn, len(header))
		for c, name := range header {
			col := types.DataColumn{Name: name}
			if c < len(verdict.Columns) {
				col.Description = verdict.Columns[c].Description
			}
			for _, row := range rows {
				if c < len(row) {
					col.Values = append(col.Values, row[c])
				}
			}
			columns[c] = col
		}
		classified = append(classified, types.DataSource{
			Title:       verdict.Title,
			Description: verdict.Description,
			Columns:     columns,
		})
	}
	state.ClassifiedDataSources = classified
	return nil
}

// parseCSV splits a CSV-shaped table string into header and data rows.
func parseCSV(csv string) ([]string, [][]string, error) {
	lines := strings.Split(strings.TrimRight(csv, "\n"), "\n")
	if len(lines) == 0 || strings.TrimSpace(lines[0]) == "" {
		return nil, nil, faults.Parse("classify_data", "empty csv source", nil)
	}
	header := strings.Split(lines[0], ",")
	rows := make([][]string, 0, len(lines)-1)
	for _, line := range lines[1:] {
		rows = append(rows, strings.Split(line, ","))
	}
	return header, rows, nil
}

// csvPreview renders the header plus the first maxRows data rows as a
// markdown table.
func csvPreview(header []string, rows [][]string, maxRows int) string {
	var sb strings.Builder
	sb.WriteString("|" + strings.Join(header, "|") + "|\n")
	seps := make([]string, len(header))
	for i := range seps {
		seps[i] = "---"
	}
	sb.WriteString("|" + strings.Join(seps, "|") + "|\n")
	for i, row := range rows {
		if i == maxRows {
			break
		}
		sb.WriteString("|" + strings.Join(row, "|") + "|\n")
	}
	return sb.String()
}
