package linkref

import "strings"

// BlockKind tags the outcome of LocateBlock.
type BlockKind int

const (
	// KindNone means no autogenerated block was recognized.
	KindNone BlockKind = iota
	// KindSentinel means the block was found via its begin marker.
	KindSentinel
	// KindImplicit means a legacy block without markers was found: a
	// trailing run of definition lines in the generated shape.
	KindImplicit
)

// Block is the located autogenerated block: the line span it occupies and
// its current content. Kind is KindNone when Range and Content are unset.
type Block struct {
	Kind    BlockKind
	Range   Range
	Content string
}

// LocateBlock scans the note text for the autogenerated link-reference
// block.
//
// The primary form is sentinel-delimited: a begin-marker line through the
// matching end-marker line inclusive. When the end marker is missing the
// block extends through the last contiguous definition line after the begin
// marker.
//
// The legacy form (notes written before the marker convention) is a
// contiguous trailing run of definition lines, recognized only when every
// line matches the generated shape exactly. Reference definitions authored
// by hand anywhere else are never reported.
func LocateBlock(text, eol string) Block {
	lines := splitLines(text, eol)

	for i, line := range lines {
		if strings.TrimRight(line, " \t") != BeginMarker {
			continue
		}
		end := -1
		for j := i + 1; j < len(lines); j++ {
			if strings.TrimRight(lines[j], " \t") == EndMarker {
				end = j
				break
			}
		}
		if end == -1 {
			end = i
			for j := i + 1; j < len(lines) && defLineRe.MatchString(lines[j]); j++ {
				end = j
			}
		}
		return Block{
			Kind:    KindSentinel,
			Range:   lineSpan(lines, i, end),
			Content: strings.Join(lines[i:end+1], eol),
		}
	}

	return locateImplicit(lines, eol)
}

// locateImplicit recognizes the legacy trailing run of definition lines.
func locateImplicit(lines []string, eol string) Block {
	last := len(lines) - 1
	for last >= 0 && strings.TrimSpace(lines[last]) == "" {
		last--
	}
	if last < 0 || !defLineRe.MatchString(lines[last]) {
		return Block{Kind: KindNone}
	}

	first := last
	for first > 0 && defLineRe.MatchString(lines[first-1]) {
		first--
	}

	// A run containing any line outside the generated shape is treated as a
	// manually curated list and left alone.
	for i := first; i <= last; i++ {
		if !generatedLineRe.MatchString(lines[i]) {
			return Block{Kind: KindNone}
		}
	}

	return Block{
		Kind:    KindImplicit,
		Range:   lineSpan(lines, first, last),
		Content: strings.Join(lines[first:last+1], eol),
	}
}
