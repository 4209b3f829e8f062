package extract

import "testing"

func TestMarkdownTables_RoundTrip(t *testing.T) {
	md := "|a|b|\n|---|---|\n|1|2|\n|3|4|"
	tables, err := MarkdownTables(md)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(tables) != 1 {
		t.Fatalf("expected 1 table, got %d", len(tables))
	}
	if tables[0] != "a,b\n1,2\n3,4\n" {
		t.Fatalf("got %q", tables[0])
	}
}

func TestMarkdownTables_IgnoresNonTableContent(t *testing.T) {
	md := "# Heading\n\nsome prose\n\n|x|y|\n|---|---|\n|1|2|\n\nmore prose"
	tables, err := MarkdownTables(md)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(tables) != 1 || tables[0] != "x,y\n1,2\n" {
		t.Fatalf("got %#v", tables)
	}
}

func TestMarkdownTables_KeepsEmphasisAndStrongText(t *testing.T) {
	md := "|col|\n|---|\n|*em* and **strong**|"
	tables, err := MarkdownTables(md)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if tables[0] != "col\nem and strong\n" {
		t.Fatalf("got %q", tables[0])
	}
}

func TestMarkdownTables_MultipleTables(t *testing.T) {
	md := "|a|\n|---|\n|1|\n\ntext\n\n|b|\n|---|\n|2|"
	tables, err := MarkdownTables(md)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(tables) != 2 {
		t.Fatalf("expected 2 tables, got %d", len(tables))
	}
	if tables[0] != "a\n1\n" || tables[1] != "b\n2\n" {
		t.Fatalf("got %#v", tables)
	}
}

func TestMarkdownTables_NoTables(t *testing.T) {
	tables, err := MarkdownTables("just prose, no pipes")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(tables) != 0 {
		t.Fatalf("expected no tables, got %#v", tables)
	}
}
