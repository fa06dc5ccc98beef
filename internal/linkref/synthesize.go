package linkref

import (
	"fmt"
	"strings"
)

// Synthesize computes the edit that brings the autogenerated link-reference
// block of note in line with its current outbound links, or nil when the
// document is already correct.
//
// The decision is a four-way branch on (expected block, located block):
//
//   - no links, no block:   nil
//   - no links, block:      delete the block's span entirely
//   - links, no block:      insert a fresh block after the title region
//   - links, block:         replace unless already equal (force overrides)
//
// Applying the returned edit and calling Synthesize again on the result
// always yields nil.
func Synthesize(note, text, eol string, graph GraphReader, force bool) (*Edit, error) {
	targets, err := graph.OutboundTargets(note)
	if err != nil {
		return nil, fmt.Errorf("linkref: outbound links for %s: %w", note, err)
	}
	expected := FormatBlock(targets, eol)
	located := LocateBlock(text, eol)

	switch {
	case expected == "" && located.Kind == KindNone:
		return nil, nil

	case expected == "":
		// All links gone: collapse the stale block away, markers included.
		return &Edit{Range: located.Range, NewText: ""}, nil

	case located.Kind == KindNone:
		pos := insertionPoint(text, eol)
		newText := eol + expected
		if pos == (Position{}) {
			// Document start: nothing precedes the block to separate from.
			newText = expected + eol
		}
		return &Edit{Range: Range{Start: pos, End: pos}, NewText: newText}, nil

	default:
		if !force && normalizeEOL(located.Content) == normalizeEOL(expected) {
			return nil, nil
		}
		return &Edit{Range: located.Range, NewText: expected}, nil
	}
}

// insertionPoint picks where a fresh block goes: the first blank line after
// the leading heading. Notes without that structure degrade in order to the
// end of the document (heading but no blank line), the end of the
// frontmatter (no heading), or the document start.
func insertionPoint(text, eol string) Position {
	lines := splitLines(text, eol)

	body := 0
	if len(lines) > 0 && strings.TrimSpace(lines[0]) == "---" {
		for j := 1; j < len(lines); j++ {
			if strings.TrimSpace(lines[j]) == "---" {
				body = j + 1
				break
			}
		}
	}

	heading := -1
	for j := body; j < len(lines); j++ {
		t := strings.TrimSpace(lines[j])
		if t == "" {
			continue
		}
		if strings.HasPrefix(t, "#") {
			heading = j
		}
		break
	}

	if heading >= 0 {
		for j := heading + 1; j < len(lines); j++ {
			if strings.TrimSpace(lines[j]) == "" {
				return Position{Line: j, Col: 0}
			}
		}
		last := len(lines) - 1
		return Position{Line: last, Col: len(lines[last])}
	}

	if body > 0 {
		// Frontmatter but no heading: right after the closing delimiter.
		return Position{Line: body - 1, Col: len(lines[body-1])}
	}
	return Position{}
}

// normalizeEOL makes block contents comparable across CRLF/LF documents.
func normalizeEOL(s string) string {
	return strings.ReplaceAll(s, "\r\n", "\n")
}
