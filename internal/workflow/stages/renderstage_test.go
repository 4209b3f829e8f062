package stages

import (
	"testing"

	"github.com/quantbrief/quantbrief-backend/internal/render"
	"github.com/quantbrief/quantbrief-backend/internal/types"
)

func documentState() *types.ReportState {
	return &types.ReportState{
		ID:          "r1",
		Title:       "Apple in 2025",
		Sections:    []string{"Overview", "Financials"},
		SubSections: [][]string{{"Summary"}, {"Revenue", "Margins"}},
		SubSectionContents: [][]string{
			{"Apple had a strong year."},
			{"Revenue grew.", "Margins held."},
		},
		Charts: []types.Chart{{Title: "Revenue Chart", Path: "/tmp/rev.png"}},
		Tables: []types.TableSpec{{Title: "Quarterly", Columns: []string{"q"}, Rows: [][]string{{"Q1"}}}},
		ChartPositions: []types.ChartPosition{
			{ChartIndex: 0, Section: 1, SubSection: 0},
		},
		TablePositions: []types.TablePosition{
			{TableIndex: 0, Section: 1, SubSection: 1},
		},
		Sources: []types.Source{
			{ID: "website0", URL: "http://a", Title: "10-K", Author: "Apple", Date: "2025-01-01"},
		},
	}
}

func TestBuildDocument_PlacesVisualsAndCitations(t *testing.T) {
	doc, err := BuildDocument(documentState())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	// outline sections plus the references section
	if len(doc.Sections) != 3 {
		t.Fatalf("expected 3 sections, got %d", len(doc.Sections))
	}

	revenue := doc.Sections[1].SubSections[0]
	foundFigure := false
	for _, block := range revenue.Blocks {
		if fig, ok := block.(render.Figure); ok {
			foundFigure = true
			if fig.Path != "/tmp/rev.png" {
				t.Fatalf("figure path wrong: %+v", fig)
			}
		}
	}
	if !foundFigure {
		t.Fatalf("chart not placed in its sub-section: %+v", revenue.Blocks)
	}

	margins := doc.Sections[1].SubSections[1]
	foundTable := false
	for _, block := range margins.Blocks {
		if _, ok := block.(render.Table); ok {
			foundTable = true
		}
	}
	if !foundTable {
		t.Fatalf("table not placed in its sub-section")
	}

	refs := doc.Sections[2]
	if refs.Name != "References" || len(refs.SubSections) != 1 {
		t.Fatalf("references section missing: %+v", refs)
	}
	if _, ok := refs.SubSections[0].Blocks[0].(render.Citation); !ok {
		t.Fatalf("citation block missing")
	}
}

func TestBuildDocument_MisalignedOutlineIsInvariantViolation(t *testing.T) {
	state := documentState()
	state.SubSectionContents = state.SubSectionContents[:1]
	if _, err := BuildDocument(state); err == nil {
		t.Fatalf("expected invariant violation")
	}
}

func TestBuildDocument_DanglingChartPositionFails(t *testing.T) {
	state := documentState()
	state.ChartPositions[0].ChartIndex = 7
	if _, err := BuildDocument(state); err == nil {
		t.Fatalf("expected invariant violation")
	}
}
