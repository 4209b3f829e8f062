package extract

import (
	"bytes"
	"regexp"
	"strings"

	htmltomarkdown "github.com/JohannesKaufmann/html-to-markdown/v2"
	"golang.org/x/net/html"

	"github.com/quantbrief/quantbrief-backend/internal/workflow/faults"
)

var spanTagRe = regexp.MustCompile(`</?span[^>]*>`)

// HTMLToMarkdown strips every <header> and <footer> subtree, converts the
// remainder to markdown, removes surviving span tags, and drops blank lines.
func HTMLToMarkdown(rawHTML string) (string, error) {
	if strings.TrimSpace(rawHTML) == "" {
		return "", faults.Parse("html_to_markdown", "empty input", nil)
	}

	doc, err := html.Parse(strings.NewReader(rawHTML))
	if err != nil {
		return "", faults.Parse("html_to_markdown", "input is not HTML", err)
	}
	pruneElements(doc, "header", "footer")

	var buf bytes.Buffer
	if err := html.Render(&buf, doc); err != nil {
		return "", faults.Parse("html_to_markdown", "render pruned DOM", err)
	}

	md, err := htmltomarkdown.ConvertString(buf.String())
	if err != nil {
		return "", faults.Parse("html_to_markdown", "markdown conversion failed", err)
	}

	md = spanTagRe.ReplaceAllString(md, "")

	var kept []string
	for _, line := range strings.Split(md, "\n") {
		if strings.TrimSpace(line) == "" {
			continue
		}
		kept = append(kept, line)
	}
	return strings.Join(kept, "\n"), nil
}

// pruneElements removes every subtree rooted at one of the given element
// names, depth-first so nested matches disappear with their parent.
func pruneElements(n *html.Node, names ...string) {
	drop := make(map[string]bool, len(names))
	for _, name := range names {
		drop[name] = true
	}
	var walk func(node *html.Node)
	walk = func(node *html.Node) {
		child := node.FirstChild
		for child != nil {
			next := child.NextSibling
			if child.Type == html.ElementNode && drop[strings.ToLower(child.Data)] {
				node.RemoveChild(child)
			} else {
				walk(child)
			}
			child = next
		}
	}
	walk(n)
}
