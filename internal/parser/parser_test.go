package parser

import "testing"

func TestParse_FrontmatterAndBody(t *testing.T) {
	input := []byte("---\ntitle: Hello\ntags:\n  - go\n  - vault\n---\n# Hello\nBody text.\n")
	r, err := Parse(input)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if r.Title != "Hello" {
		t.Errorf("title = %q, want %q", r.Title, "Hello")
	}
	if len(r.Tags) < 2 || r.Tags[0] != "go" || r.Tags[1] != "vault" {
		t.Errorf("tags = %v, want [go vault]", r.Tags)
	}
	if r.Body != "# Hello\nBody text.\n" {
		t.Errorf("body = %q", r.Body)
	}
}

func TestParse_NoFrontmatter(t *testing.T) {
	r, err := Parse([]byte("# Just a heading\nSome text.\n"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if r.Frontmatter != nil {
		t.Errorf("expected nil frontmatter, got %v", r.Frontmatter)
	}
	if r.Title != "Just a heading" {
		t.Errorf("title = %q", r.Title)
	}
}

func TestParse_InvalidYAMLFallback(t *testing.T) {
	r, err := Parse([]byte("---\n: invalid: yaml: {{{\n---\nBody\n"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if r.Frontmatter != nil {
		t.Error("expected nil frontmatter on invalid YAML")
	}
}

func TestExtractLinks_OrderAndDedup(t *testing.T) {
	body := "See [[Note A]] and [[Note B|alias]].\nAlso [[Note A]] again."
	links := extractLinks(body)
	if len(links) != 2 {
		t.Fatalf("len(links) = %d, want 2", len(links))
	}
	if links[0] != "Note A" || links[1] != "Note B" {
		t.Errorf("links = %v", links)
	}
}

func TestExtractLinks_SectionAnchorStripped(t *testing.T) {
	links := extractLinks("see [[Note A#Section]]")
	if len(links) != 1 || links[0] != "Note A" {
		t.Errorf("links = %v, want [Note A]", links)
	}
}

func TestExtractLinks_SkipsCode(t *testing.T) {
	body := "real [[a]]\n```\n[[fenced]]\n```\ninline `[[code]]` and [[b]]"
	links := extractLinks(body)
	if len(links) != 2 || links[0] != "a" || links[1] != "b" {
		t.Errorf("links = %v, want [a b]", links)
	}
}

func TestExtractLinks_EmptyTarget(t *testing.T) {
	if links := extractLinks("see [[ ]] and [[|alias]]"); len(links) != 0 {
		t.Errorf("expected no links, got %v", links)
	}
}

func TestExtractTags_InlineAndFrontmatter(t *testing.T) {
	fm := map[string]any{"tags": []any{"alpha"}}
	tags := extractTags("Some text #beta and #alpha again.", fm)
	if len(tags) != 2 || tags[0] != "alpha" || tags[1] != "beta" {
		t.Errorf("tags = %v, want [alpha beta]", tags)
	}
}

func TestDeriveTitle_FrontmatterOverH1(t *testing.T) {
	title := deriveTitle(map[string]any{"title": "FM Title"}, "# H1 Title\ntext")
	if title != "FM Title" {
		t.Errorf("title = %q", title)
	}
}

func TestDeriveTitle_H1Fallback(t *testing.T) {
	if title := deriveTitle(nil, "some text\n# My Heading\nmore"); title != "My Heading" {
		t.Errorf("title = %q", title)
	}
}
