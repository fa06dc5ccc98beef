// Package linkref keeps a note's autogenerated block of reference-style link
// definitions ([label]: target "Title") in sync with the note's resolved
// outbound links. The package is pure: it reads the note text and the link
// graph through a narrow interface and produces a single text edit (or nil)
// for the caller to apply.
package linkref

import (
	"net/url"
	"strings"
)

// Sentinel lines delimiting the block this package owns. Definitions between
// them may be rewritten freely; anything outside them is user content.
const (
	BeginMarker = `[//begin]: # "Autogenerated link references for markdown compatibility"`
	EndMarker   = `[//end]: # "Autogenerated link references"`
)

// Target is one resolved outbound link of a note.
type Target struct {
	// Slug is the literal link label as written in the note, e.g. the
	// wikilink text. It becomes the definition's [label].
	Slug string
	// Ref is the vault-relative path of the resolved note without the .md
	// extension, percent-encoded so it is safe as a bare link destination.
	Ref string
	// Title is the resolved note's display title, not encoded.
	Title string
}

// GraphReader is the capability the synchronization core needs from the
// workspace link graph: the ordered, deduplicated, resolved outbound links
// of a note. Dangling links must not be returned. An unknown note is an
// error; the core cannot compute an edit without a valid graph entry.
type GraphReader interface {
	OutboundTargets(note string) ([]Target, error)
}

// Position is a 0-based line/column location. Columns count bytes within the
// line, excluding the end-of-line sequence.
type Position struct {
	Line int `json:"line"`
	Col  int `json:"col"`
}

// Range is a half-open span over the document's line/column space.
type Range struct {
	Start Position `json:"start"`
	End   Position `json:"end"`
}

// Edit replaces Range with NewText. A nil *Edit means the document already
// matches the link graph and nothing should change.
type Edit struct {
	Range   Range  `json:"range"`
	NewText string `json:"newText"`
}

// DetectEOL returns the end-of-line sequence used by text, defaulting to "\n".
func DetectEOL(text string) string {
	if strings.Contains(text, "\r\n") {
		return "\r\n"
	}
	return "\n"
}

// EncodeRef percent-encodes each path segment of a vault-relative reference
// so the result is usable as a bare markdown link destination (spaces become
// %20). Separating slashes are preserved.
func EncodeRef(ref string) string {
	segs := strings.Split(ref, "/")
	for i, s := range segs {
		segs[i] = url.PathEscape(s)
	}
	return strings.Join(segs, "/")
}
