package stages

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/quantbrief/quantbrief-backend/internal/platform/logger"
	"github.com/quantbrief/quantbrief-backend/internal/prompts"
	"github.com/quantbrief/quantbrief-backend/internal/render"
	"github.com/quantbrief/quantbrief-backend/internal/types"
	"github.com/quantbrief/quantbrief-backend/internal/workflow/faults"
)

// IdentifyVisuals picks a visual type for each classified data source.
type IdentifyVisuals struct {
	deps *Deps
	log  *logger.Logger
}

func NewIdentifyVisuals(deps *Deps) *IdentifyVisuals {
	return &IdentifyVisuals{deps: deps, log: deps.stageLog("identify_visuals")}
}

func (s *IdentifyVisuals) Stage() types.Stage { return types.StageIdentifyVisuals }

func (s *IdentifyVisuals) Run(ctx context.Context, state *types.ReportState) error {
	template, err := s.deps.Prompts.Get(ctx, prompts.KeyGraphIdentifier)
	if err != nil {
		return err
	}

	visuals := make([]types.Visual, 0, len(state.ClassifiedDataSources))
	for i, ds := range state.ClassifiedDataSources {
		payload, results, err := s.deps.Tasks.Structured(ctx, template, map[string]any{
			"title":       ds.Title,
			"description": ds.Description,
			"columns":     ds.Columns,
		}, s.deps.Model, visualTypeSchema)
		state.GenerationResults = append(state.GenerationResults, results...)
		if err != nil {
			return err
		}
		var verdict struct {
			Type types.VisualType `json:"type"`
		}
		if err := json.Unmarshal(payload, &verdict); err != nil {
			return faults.Parse("identify_visuals", "visual verdict did not decode", err)
		}
		visuals = append(visuals, types.Visual{DataSourceIndex: i, Type: verdict.Type})
	}
	state.Visuals = visuals
	return nil
}

// GenerateVisuals extracts a type-specific data record per visual and hands
// it to the chart renderer; table visuals become structured table specs.
type GenerateVisuals struct {
	deps *Deps
	log  *logger.Logger
}

func NewGenerateVisuals(deps *Deps) *GenerateVisuals {
	return &GenerateVisuals{deps: deps, log: deps.stageLog("generate_visuals")}
}

func (s *GenerateVisuals) Stage() types.Stage { return types.StageGenerateVisuals }

func (s *GenerateVisuals) Run(ctx context.Context, state *types.ReportState) error {
	template, err := s.deps.Prompts.Get(ctx, prompts.KeyGraphDataPrep)
	if err != nil {
		return err
	}

	var charts []types.Chart
	var tables []types.TableSpec
	for _, visual := range state.Visuals {
		if visual.DataSourceIndex < 0 || visual.DataSourceIndex >= len(state.ClassifiedDataSources) {
			return faults.Invariant("generate_visuals", fmt.Sprintf(
				"visual refers to data source %d of %d", visual.DataSourceIndex, len(state.ClassifiedDataSources)))
		}
		ds := state.ClassifiedDataSources[visual.DataSourceIndex]

		schema, ok := visualSchema(visual.Type)
		if !ok {
			return faults.Invariant("generate_visuals", "unknown visual type "+string(visual.Type))
		}
		payload, results, err := s.deps.Tasks.Structured(ctx, template, map[string]any{
			"visual_type": string(visual.Type),
			"data":        ds,
		}, s.deps.Model, schema)
		state.GenerationResults = append(state.GenerationResults, results...)
		if err != nil {
			return err
		}

		switch visual.Type {
		case types.VisualTable:
			var spec types.TableSpec
			if err := json.Unmarshal(payload, &spec); err != nil {
				return faults.Parse("generate_visuals", "table spec did not decode", err)
			}
			tables = append(tables, spec)
		case types.VisualLine:
			var data struct {
				Title   string   `json:"title"`
				XLabels []string `json:"x_labels"`
				Series  []struct {
					Name   string    `json:"name"`
					Values []float64 `json:"values"`
				} `json:"series"`
			}
			if err := json.Unmarshal(payload, &data); err != nil {
				return faults.Parse("generate_visuals", "line chart data did not decode", err)
			}
			series := make([]render.LineSeries, len(data.Series))
			for i, ser := range data.Series {
				series[i] = render.LineSeries{Name: ser.Name, Values: ser.Values}
			}
			chart, err := s.deps.Charts.Line(render.LineChartData{
				Title: data.Title, XLabels: data.XLabels, Series: series,
			})
			if err != nil {
				return err
			}
			charts = append(charts, chart)
		case types.VisualBar:
			var data struct {
				Title  string    `json:"title"`
				Labels []string  `json:"labels"`
				Values []float64 `json:"values"`
			}
			if err := json.Unmarshal(payload, &data); err != nil {
				return faults.Parse("generate_visuals", "bar chart data did not decode", err)
			}
			chart, err := s.deps.Charts.Bar(render.BarChartData{
				Title: data.Title, Labels: data.Labels, Values: data.Values,
			})
			if err != nil {
				return err
			}
			charts = append(charts, chart)
		case types.VisualPie:
			var data struct {
				Title  string    `json:"title"`
				Labels []string  `json:"labels"`
				Values []float64 `json:"values"`
			}
			if err := json.Unmarshal(payload, &data); err != nil {
				return faults.Parse("generate_visuals", "pie chart data did not decode", err)
			}
			chart, err := s.deps.Charts.Pie(render.PieChartData{
				Title: data.Title, Labels: data.Labels, Values: data.Values,
			})
			if err != nil {
				return err
			}
			charts = append(charts, chart)
		case types.VisualStock:
			var data struct {
				Title   string `json:"title"`
				Candles []struct {
					Label string  `json:"label"`
					Open  float64 `json:"open"`
					High  float64 `json:"high"`
					Low   float64 `json:"low"`
					Close float64 `json:"close"`
				} `json:"candles"`
			}
			if err := json.Unmarshal(payload, &data); err != nil {
				return faults.Parse("generate_visuals", "stock chart data did not decode", err)
			}
			candles := make([]render.Candle, len(data.Candles))
			for i, c := range data.Candles {
				candles[i] = render.Candle{Label: c.Label, Open: c.Open, High: c.High, Low: c.Low, Close: c.Close}
			}
			chart, err := s.deps.Charts.Stock(render.StockChartData{Title: data.Title, Candles: candles})
			if err != nil {
				return err
			}
			charts = append(charts, chart)
		}
	}
	state.Charts = charts
	state.Tables = tables
	s.log.Info("Visuals generated", "report_id", state.ID, "charts", len(charts), "tables", len(tables))
	return nil
}

func visualSchema(t types.VisualType) (string, bool) {
	switch t {
	case types.VisualLine:
		return lineChartSchema, true
	case types.VisualBar:
		return barChartSchema, true
	case types.VisualPie:
		return pieChartSchema, true
	case types.VisualStock:
		return stockChartSchema, true
	case types.VisualTable:
		return tableSpecSchema, true
	default:
		return "", false
	}
}

// IdentifyVisualInsertions asks the model where each chart and table belongs
// in the outline.
type IdentifyVisualInsertions struct {
	deps *Deps
	log  *logger.Logger
}

func NewIdentifyVisualInsertions(deps *Deps) *IdentifyVisualInsertions {
	return &IdentifyVisualInsertions{deps: deps, log: deps.stageLog("identify_visual_insertions")}
}

func (s *IdentifyVisualInsertions) Stage() types.Stage { return types.StageIdentifyVisualInsertions }

func (s *IdentifyVisualInsertions) Run(ctx context.Context, state *types.ReportState) error {
	template, err := s.deps.Prompts.Get(ctx, prompts.KeyGraphInsertion)
	if err != nil {
		return err
	}

	place := func(title string) (int, int, error) {
		payload, results, err := s.deps.Tasks.Structured(ctx, template, map[string]any{
			"title":        title,
			"sections":     state.Sections,
			"sub_sections": state.SubSections,
			"contents":     state.SubSectionContents,
		}, s.deps.Model, insertionSchema)
		state.GenerationResults = append(state.GenerationResults, results...)
		if err != nil {
			return 0, 0, err
		}
		var pos struct {
			Section    int `json:"section"`
			SubSection int `json:"sub_section"`
		}
		if err := json.Unmarshal(payload, &pos); err != nil {
			return 0, 0, faults.Parse("identify_visual_insertions", "insertion did not decode", err)
		}
		if pos.Section < 0 || pos.Section >= len(state.SubSections) ||
			pos.SubSection < 0 || pos.SubSection >= len(state.SubSections[pos.Section]) {
			return 0, 0, faults.Invariant("identify_visual_insertions", fmt.Sprintf(
				"insertion (%d, %d) is outside the outline", pos.Section, pos.SubSection))
		}
		return pos.Section, pos.SubSection, nil
	}

	chartPositions := make([]types.ChartPosition, 0, len(state.Charts))
	for i, chart := range state.Charts {
		section, sub, err := place(chart.Title)
		if err != nil {
			return err
		}
		chartPositions = append(chartPositions, types.ChartPosition{
			ChartIndex: i, Section: section, SubSection: sub,
		})
	}
	tablePositions := make([]types.TablePosition, 0, len(state.Tables))
	for i, table := range state.Tables {
		section, sub, err := place(table.Title)
		if err != nil {
			return err
		}
		tablePositions = append(tablePositions, types.TablePosition{
			TableIndex: i, Section: section, SubSection: sub,
		})
	}
	state.ChartPositions = chartPositions
	state.TablePositions = tablePositions
	return nil
}
