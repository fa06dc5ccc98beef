package linkref

import (
	"fmt"
	"regexp"
	"strings"
)

var (
	// defLineRe matches any reference-style definition line, including ones
	// without a title. Used to find where a sentinel block without an end
	// marker stops.
	defLineRe = regexp.MustCompile(`^\[[^\]]+\]:\s+\S+(\s+".*")?\s*$`)

	// generatedLineRe matches the exact shape FormatBlock emits. The legacy
	// implicit-block recognizer requires this stricter shape for every line,
	// so a manually curated definition list is not mistaken for ours.
	generatedLineRe = regexp.MustCompile(`^\[[^\]]+\]: \S+ ".*"$`)
)

// FormatBlock renders the canonical autogenerated block for the given
// targets, joined with the document's end-of-line sequence. An empty target
// list renders as the empty string: no block should exist at all.
// Output is byte-deterministic for identical ordered input.
func FormatBlock(targets []Target, eol string) string {
	if len(targets) == 0 {
		return ""
	}
	lines := make([]string, 0, len(targets)+2)
	lines = append(lines, BeginMarker)
	for _, t := range targets {
		lines = append(lines, formatDefinition(t))
	}
	lines = append(lines, EndMarker)
	return strings.Join(lines, eol)
}

// formatDefinition renders a single [slug]: ref "title" line. The title
// falls back to the slug so every definition carries one.
func formatDefinition(t Target) string {
	title := t.Title
	if title == "" {
		title = t.Slug
	}
	return fmt.Sprintf(`[%s]: %s "%s"`, t.Slug, t.Ref, title)
}
