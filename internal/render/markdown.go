package render

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/quantbrief/quantbrief-backend/internal/platform/logger"
	"github.com/quantbrief/quantbrief-backend/internal/workflow/faults"
)

// pageBreak separates pages in the rendered file; Preview truncates on it.
const pageBreak = "\f"

// markdownRenderer typesets the document tree as a single markdown file in
// the persistence directory, one page per section.
type markdownRenderer struct {
	log *logger.Logger
	dir string
}

func NewMarkdownRenderer(baseLog *logger.Logger, dir string) Renderer {
	return &markdownRenderer{log: baseLog.With("service", "MarkdownRenderer"), dir: dir}
}

func (r *markdownRenderer) Render(_ context.Context, doc Document, reportID string) (string, error) {
	if err := os.MkdirAll(r.dir, 0o755); err != nil {
		return "", err
	}

	var pages []string
	pages = append(pages, "# "+doc.Title+"\n")
	for _, section := range doc.Sections {
		var sb strings.Builder
		sb.WriteString("## " + section.Name + "\n\n")
		for _, sub := range section.SubSections {
			sb.WriteString("### " + sub.Name + "\n\n")
			for _, block := range sub.Blocks {
				sb.WriteString(renderBlock(block))
			}
		}
		pages = append(pages, sb.String())
	}

	path := filepath.Join(r.dir, reportID+".md")
	if err := os.WriteFile(path, []byte(strings.Join(pages, pageBreak)), 0o644); err != nil {
		return "", err
	}
	r.log.Debug("Report rendered", "report_id", reportID, "path", path, "pages", len(pages))
	return path, nil
}

func (r *markdownRenderer) Preview(_ context.Context, renderedPath string, maxPages int) (string, error) {
	raw, err := os.ReadFile(renderedPath)
	if err != nil {
		return "", faults.NotFound("preview", "rendered document "+renderedPath)
	}
	pages := strings.Split(string(raw), pageBreak)
	if maxPages > 0 && len(pages) > maxPages {
		pages = pages[:maxPages]
	}

	dir, err := os.MkdirTemp("", "report-preview-")
	if err != nil {
		return "", err
	}
	base := strings.TrimSuffix(filepath.Base(renderedPath), filepath.Ext(renderedPath))
	path := filepath.Join(dir, base+"-preview.md")
	if err := os.WriteFile(path, []byte(strings.Join(pages, pageBreak)), 0o644); err != nil {
		return "", err
	}
	return path, nil
}

func renderBlock(block Block) string {
	switch b := block.(type) {
	case Paragraph:
		return b.Text + "\n\n"
	case Figure:
		return fmt.Sprintf("![%s](%s)\n\n", b.Caption, b.Path)
	case Table:
		return renderTable(b)
	case Citation:
		return fmt.Sprintf("> [%s] %s — %s (%s) <%s>\n\n", b.ID, b.Title, b.Author, b.Date, b.URL)
	case Equation:
		return "$$" + b.TeX + "$$\n\n"
	case List:
		var sb strings.Builder
		for i, item := range b.Items {
			if b.Ordered {
				sb.WriteString(fmt.Sprintf("%d. %s\n", i+1, item))
			} else {
				sb.WriteString("- " + item + "\n")
			}
		}
		sb.WriteString("\n")
		return sb.String()
	case Link:
		return fmt.Sprintf("[%s](%s)\n\n", b.Text, b.URL)
	case Quotation:
		return fmt.Sprintf("> %s\n> — %s\n\n", b.Text, b.Source)
	default:
		return ""
	}
}

func renderTable(t Table) string {
	var sb strings.Builder
	if t.Title != "" {
		sb.WriteString("**" + t.Title + "**\n\n")
	}
	sb.WriteString("|" + strings.Join(t.Columns, "|") + "|\n")
	seps := make([]string, len(t.Columns))
	for i := range seps {
		seps[i] = "---"
	}
	sb.WriteString("|" + strings.Join(seps, "|") + "|\n")
	for _, row := range t.Rows {
		sb.WriteString("|" + strings.Join(row, "|") + "|\n")
	}
	sb.WriteString("\n")
	return sb.String()
}
