package linkref

import "strings"

// splitLines splits text on the document's own end-of-line sequence. Every
// line/column computation in this package goes through this single split so
// the locator and the synthesizer always agree on positions.
func splitLines(text, eol string) []string {
	return strings.Split(text, eol)
}

// offsetOf converts a Position into a byte offset into text. Positions past
// the end of the document clamp to the end.
func offsetOf(lines []string, eol string, p Position) int {
	if p.Line >= len(lines) {
		p.Line = len(lines) - 1
		p.Col = len(lines[p.Line])
	}
	off := 0
	for i := 0; i < p.Line; i++ {
		off += len(lines[i]) + len(eol)
	}
	col := p.Col
	if col > len(lines[p.Line]) {
		col = len(lines[p.Line])
	}
	return off + col
}

// lineSpan returns the Range covering lines first..last inclusive, from the
// start of the first line to the end of the last line's content.
func lineSpan(lines []string, first, last int) Range {
	return Range{
		Start: Position{Line: first, Col: 0},
		End:   Position{Line: last, Col: len(lines[last])},
	}
}

// ApplyEdit applies e to text and returns the result. A nil edit returns the
// text unchanged. Callers use this to mutate documents exactly the way the
// synchronization core computed the edit.
func ApplyEdit(text, eol string, e *Edit) string {
	if e == nil {
		return text
	}
	lines := splitLines(text, eol)
	start := offsetOf(lines, eol, e.Range.Start)
	end := offsetOf(lines, eol, e.Range.End)
	if end < start {
		end = start
	}
	return text[:start] + e.NewText + text[end:]
}
