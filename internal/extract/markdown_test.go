package extract

import (
	"strings"
	"testing"
)

func TestHTMLToMarkdown_DropsHeaderAndFooter(t *testing.T) {
	in := `<html><body>
<header>Site Navigation</header>
<p>Apple reported record revenue.</p>
<footer>Copyright notice</footer>
</body></html>`

	out, err := HTMLToMarkdown(in)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if strings.Contains(out, "Site Navigation") {
		t.Fatalf("header text survived: %q", out)
	}
	if strings.Contains(out, "Copyright notice") {
		t.Fatalf("footer text survived: %q", out)
	}
	if !strings.Contains(out, "Apple reported record revenue.") {
		t.Fatalf("body text lost: %q", out)
	}
}

func TestHTMLToMarkdown_StripsSpansAndBlankLines(t *testing.T) {
	in := `<html><body><p>before <span class="x">kept text</span> after</p><p></p></body></html>`
	out, err := HTMLToMarkdown(in)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if strings.Contains(out, "<span") || strings.Contains(out, "</span>") {
		t.Fatalf("span tags survived: %q", out)
	}
	if !strings.Contains(out, "kept text") {
		t.Fatalf("span content lost: %q", out)
	}
	for _, line := range strings.Split(out, "\n") {
		if strings.TrimSpace(line) == "" {
			t.Fatalf("blank line survived in %q", out)
		}
	}
}

func TestHTMLToMarkdown_EmptyInputIsParseError(t *testing.T) {
	if _, err := HTMLToMarkdown(""); err == nil {
		t.Fatalf("expected parse error for empty input")
	}
}
