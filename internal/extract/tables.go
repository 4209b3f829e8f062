package extract

import (
	"fmt"
	"strings"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/extension"
	east "github.com/yuin/goldmark/extension/ast"
	"github.com/yuin/goldmark/text"

	"github.com/quantbrief/quantbrief-backend/internal/workflow/faults"
)

var tableMarkdown = goldmark.New(goldmark.WithExtensions(extension.Table))

// MarkdownTables parses the markdown for table nodes, ignoring everything
// else. Each table becomes one CSV-shaped string: one line per row, cells
// joined by commas, cell text taken from leaf text/emphasis/strong children
// with whitespace preserved.
func MarkdownTables(markdown string) ([]string, error) {
	source := []byte(markdown)
	doc := tableMarkdown.Parser().Parse(text.NewReader(source))

	var tables []string
	var walkErr error
	_ = ast.Walk(doc, func(n ast.Node, entering bool) (ast.WalkStatus, error) {
		if !entering {
			return ast.WalkContinue, nil
		}
		table, ok := n.(*east.Table)
		if !ok {
			return ast.WalkContinue, nil
		}
		csv, err := tableToCSV(table, source)
		if err != nil {
			walkErr = err
			return ast.WalkStop, nil
		}
		tables = append(tables, csv)
		return ast.WalkSkipChildren, nil
	})
	if walkErr != nil {
		return nil, walkErr
	}
	return tables, nil
}

func tableToCSV(table *east.Table, source []byte) (string, error) {
	var sb strings.Builder
	for row := table.FirstChild(); row != nil; row = row.NextSibling() {
		switch row.(type) {
		case *east.TableHeader, *east.TableRow:
		default:
			return "", faults.Parse("markdown_tables",
				fmt.Sprintf("unexpected table child %s", row.Kind()), nil)
		}
		cells := make([]string, 0, row.ChildCount())
		for cell := row.FirstChild(); cell != nil; cell = cell.NextSibling() {
			if _, ok := cell.(*east.TableCell); !ok {
				return "", faults.Parse("markdown_tables",
					fmt.Sprintf("unexpected row child %s", cell.Kind()), nil)
			}
			content, err := cellText(cell, source)
			if err != nil {
				return "", err
			}
			cells = append(cells, content)
		}
		sb.WriteString(strings.Join(cells, ","))
		sb.WriteString("\n")
	}
	return sb.String(), nil
}

// cellText concatenates the text of a cell's text, emphasis and strong
// children. Anything else inside a cell is a malformed table.
func cellText(cell ast.Node, source []byte) (string, error) {
	var sb strings.Builder
	for child := cell.FirstChild(); child != nil; child = child.NextSibling() {
		switch node := child.(type) {
		case *ast.Text:
			sb.Write(node.Segment.Value(source))
		case *ast.Emphasis:
			inner, err := cellText(node, source)
			if err != nil {
				return "", err
			}
			sb.WriteString(inner)
		default:
			return "", faults.Parse("markdown_tables",
				fmt.Sprintf("unexpected cell child %s", child.Kind()), nil)
		}
	}
	return sb.String(), nil
}
