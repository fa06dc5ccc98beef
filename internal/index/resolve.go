package index

import (
	"fmt"
	"strings"

	"github.com/veidt/skald/internal/apperr"
	"github.com/veidt/skald/internal/linkref"
)

// OutboundTargets implements linkref.GraphReader: the ordered, deduplicated,
// resolved outbound links of a note. A wikilink target resolves to a note
// whose vault path equals the target, the target plus ".md", or whose
// basename matches the target. Dangling targets are dropped; an ambiguous
// target resolves to the lexicographically first matching note.
//
// An unindexed note is a caller error, not an empty result.
func (db *DB) OutboundTargets(note string) ([]linkref.Target, error) {
	var one int
	if err := db.conn.QueryRow(`SELECT 1 FROM notes WHERE path = ?`, note).Scan(&one); err != nil {
		return nil, fmt.Errorf("index: note %s: %w", note, apperr.ErrNotFound)
	}

	rows, err := db.conn.Query(`
		SELECT l.ord, l.target, n.path, n.title
		FROM links l
		JOIN notes n ON n.path = l.target
			OR n.path = l.target || '.md'
			OR n.path LIKE '%/' || l.target || '.md'
		WHERE l.source = ?
		ORDER BY l.ord, n.path
	`, note)
	if err != nil {
		return nil, fmt.Errorf("index: outbound targets: %w", err)
	}
	defer rows.Close()

	var out []linkref.Target
	lastOrd := -1
	for rows.Next() {
		var ord int
		var slug, path, title string
		if err := rows.Scan(&ord, &slug, &path, &title); err != nil {
			return nil, err
		}
		if ord == lastOrd {
			continue // ambiguous target; first match wins
		}
		lastOrd = ord
		out = append(out, linkref.Target{
			Slug:  slug,
			Ref:   linkref.EncodeRef(strings.TrimSuffix(path, ".md")),
			Title: title,
		})
	}
	return out, rows.Err()
}
