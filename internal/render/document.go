package render

import "context"

// Document is the abstract tree handed to the external render collaborator.
// Its node set is fixed by that collaborator's schema.
type Document struct {
	Title    string
	Sections []Section
}

type Section struct {
	Name        string
	SubSections []SubSection
}

type SubSection struct {
	Name   string
	Blocks []Block
}

// Block is one body element of a sub-section.
type Block interface{ isBlock() }

type Paragraph struct {
	Text string
}

type Figure struct {
	Caption string
	Path    string
}

type Table struct {
	Title   string
	Columns []string
	Rows    [][]string
}

type Citation struct {
	ID     string
	Title  string
	Author string
	Date   string
	URL    string
}

type Equation struct {
	TeX string
}

type List struct {
	Ordered bool
	Items   []string
}

type Link struct {
	Text string
	URL  string
}

type Quotation struct {
	Text   string
	Source string
}

func (Paragraph) isBlock() {}
func (Figure) isBlock()    {}
func (Table) isBlock()     {}
func (Citation) isBlock()  {}
func (Equation) isBlock()  {}
func (List) isBlock()      {}
func (Link) isBlock()      {}
func (Quotation) isBlock() {}

// Renderer typesets a document and returns the path of the produced file.
// The typesetting subsystem itself is an external collaborator; the markdown
// renderer in this package is the stand-in used by tests and local runs.
type Renderer interface {
	Render(ctx context.Context, doc Document, reportID string) (string, error)
	// Preview writes a copy of a rendered document truncated to the first
	// maxPages pages and returns the new path.
	Preview(ctx context.Context, renderedPath string, maxPages int) (string, error)
}
