package render

import (
	"context"
	"os"
	"strings"
	"testing"

	"github.com/quantbrief/quantbrief-backend/internal/platform/logger"
)

func testDoc() Document {
	return Document{
		Title: "Apple in 2025",
		Sections: []Section{
			{Name: "Overview", SubSections: []SubSection{
				{Name: "Summary", Blocks: []Block{
					Paragraph{Text: "Apple had a strong year."},
					Figure{Caption: "Revenue", Path: "/tmp/rev.png"},
				}},
			}},
			{Name: "References", SubSections: []SubSection{
				{Name: "Sources", Blocks: []Block{
					Citation{ID: "website0", Title: "Apple 10-K", Author: "Apple", Date: "2025-01-01", URL: "http://example.com"},
				}},
			}},
		},
	}
}

func TestRender_WritesPagedMarkdown(t *testing.T) {
	dir := t.TempDir()
	r := NewMarkdownRenderer(logger.NewNop(), dir)

	path, err := r.Render(context.Background(), testDoc(), "r1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("rendered file missing: %v", err)
	}
	text := string(raw)

	pages := strings.Split(text, pageBreak)
	// title page plus one page per section
	if len(pages) != 3 {
		t.Fatalf("expected 3 pages, got %d", len(pages))
	}
	if !strings.Contains(pages[0], "# Apple in 2025") {
		t.Fatalf("title page wrong: %q", pages[0])
	}
	if !strings.Contains(text, "![Revenue](/tmp/rev.png)") {
		t.Fatalf("figure lost: %q", text)
	}
	if !strings.Contains(text, "[website0] Apple 10-K") {
		t.Fatalf("citation lost: %q", text)
	}
}

func TestPreview_TruncatesToMaxPages(t *testing.T) {
	dir := t.TempDir()
	r := NewMarkdownRenderer(logger.NewNop(), dir)

	doc := Document{Title: "Long"}
	for i := 0; i < 9; i++ {
		doc.Sections = append(doc.Sections, Section{
			Name: "Section",
			SubSections: []SubSection{
				{Name: "Sub", Blocks: []Block{Paragraph{Text: "body"}}},
			},
		})
	}
	path, err := r.Render(context.Background(), doc, "r2")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	previewPath, err := r.Preview(context.Background(), path, 5)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	raw, err := os.ReadFile(previewPath)
	if err != nil {
		t.Fatalf("preview file missing: %v", err)
	}
	if got := len(strings.Split(string(raw), pageBreak)); got != 5 {
		t.Fatalf("expected 5 preview pages, got %d", got)
	}
}

func TestPreview_MissingSourceIsNotFound(t *testing.T) {
	r := NewMarkdownRenderer(logger.NewNop(), t.TempDir())
	if _, err := r.Preview(context.Background(), "/nope/absent.md", 5); err == nil {
		t.Fatalf("expected not-found error")
	}
}

func TestRenderTable_ShapesMarkdown(t *testing.T) {
	out := renderTable(Table{
		Title:   "Quarterly",
		Columns: []string{"q", "rev"},
		Rows:    [][]string{{"Q1", "100"}, {"Q2", "120"}},
	})
	if !strings.Contains(out, "|q|rev|") || !strings.Contains(out, "|Q1|100|") {
		t.Fatalf("got %q", out)
	}
	if !strings.Contains(out, "|---|---|") {
		t.Fatalf("missing separator row: %q", out)
	}
}
