// Package noteservice coordinates storage, the index, and link-reference
// synchronization into the operations the API, MCP, and CLI layers expose.
package noteservice

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"time"

	"github.com/veidt/skald/internal/apperr"
	"github.com/veidt/skald/internal/checksum"
	"github.com/veidt/skald/internal/index"
	"github.com/veidt/skald/internal/linkref"
	"github.com/veidt/skald/internal/parser"
	"github.com/veidt/skald/internal/storage"
)

// NoteDetail is the full representation of a note.
type NoteDetail struct {
	Path        string         `json:"path"`
	Title       string         `json:"title"`
	Content     string         `json:"content"`
	Checksum    string         `json:"checksum"`
	Tags        []string       `json:"tags"`
	Frontmatter map[string]any `json:"frontmatter,omitempty"`
	Backlinks   []string       `json:"backlinks"`
	UpdatedAt   time.Time      `json:"updated_at"`
}

// NoteListItem is a lightweight item in a list response.
type NoteListItem struct {
	Path      string    `json:"path"`
	Title     string    `json:"title"`
	Checksum  string    `json:"checksum"`
	Tags      []string  `json:"tags"`
	UpdatedAt time.Time `json:"updated_at"`
}

// SyncResult reports the outcome of link-reference synchronization for one
// note. Edit is the applied edit, nil when the note was already in sync.
type SyncResult struct {
	Path     string        `json:"path"`
	Changed  bool          `json:"changed"`
	Checksum string        `json:"checksum"`
	Edit     *linkref.Edit `json:"edit,omitempty"`
}

// Service coordinates storage and index operations.
type Service struct {
	store storage.Provider
	db    index.NoteIndex
}

// NewService creates a new note service.
func NewService(store storage.Provider, db index.NoteIndex) *Service {
	return &Service{store: store, db: db}
}

// GetNote reads a note from storage, parses it, and enriches with backlinks.
func (s *Service) GetNote(_ context.Context, path string) (*NoteDetail, error) {
	data, err := s.store.Read(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, apperr.ErrNotFound
		}
		return nil, err
	}
	return s.buildNoteDetail(path, data)
}

// CreateNote writes a new note and indexes it.
func (s *Service) CreateNote(_ context.Context, path string, content []byte) (*NoteDetail, error) {
	if _, err := s.store.Read(path); err == nil {
		return nil, apperr.ErrAlreadyExists
	}
	if err := s.store.Write(path, content); err != nil {
		return nil, err
	}
	if err := s.IndexFile(path, content); err != nil {
		return nil, err
	}
	return s.buildNoteDetail(path, content)
}

// UpdateNote writes updated content with optimistic concurrency.
func (s *Service) UpdateNote(_ context.Context, path string, content []byte, ifMatch string) (*NoteDetail, error) {
	existing, err := s.store.Read(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, apperr.ErrNotFound
		}
		return nil, err
	}
	if ifMatch != "" && ifMatch != checksum.Sum(existing) {
		return nil, apperr.ErrConflict
	}
	if err := s.store.Write(path, content); err != nil {
		return nil, err
	}
	if err := s.IndexFile(path, content); err != nil {
		return nil, err
	}
	return s.buildNoteDetail(path, content)
}

// DeleteNote removes a note from storage and index.
func (s *Service) DeleteNote(_ context.Context, path string) error {
	if err := s.store.Delete(path); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return apperr.ErrNotFound
		}
		return err
	}
	return s.db.DeleteNote(path)
}

// ListNotes returns paginated notes with optional tag filter.
func (s *Service) ListNotes(_ context.Context, limit, offset int, tag, sort string) ([]NoteListItem, int, error) {
	rows, total, err := s.db.ListNotes(limit, offset, tag, sort)
	if err != nil {
		return nil, 0, err
	}
	items := make([]NoteListItem, len(rows))
	for i, r := range rows {
		items[i] = NoteListItem{
			Path:      r.Path,
			Title:     r.Title,
			Checksum:  r.Checksum,
			Tags:      nonNilSlice(r.Tags),
			UpdatedAt: r.UpdatedAt,
		}
	}
	return items, total, nil
}

// Search delegates full-text search to the index.
func (s *Service) Search(_ context.Context, query string, limit int) ([]index.SearchResult, error) {
	return s.db.Search(query, limit)
}

// Graph returns all nodes and resolved links for graph visualization.
func (s *Service) Graph(_ context.Context) ([]index.GraphNode, []index.GraphLink, error) {
	return s.db.Graph()
}

// Backlinks returns all note paths that link to the given target.
func (s *Service) Backlinks(_ context.Context, target string) ([]string, error) {
	return s.db.Backlinks(target)
}

// SyncLinkRefs brings the note's autogenerated link-reference block in line
// with its resolved outbound links, applying the computed edit atomically
// and re-indexing the result. The note is indexed first so the graph
// reflects the text being synchronized. force rewrites an up-to-date block.
func (s *Service) SyncLinkRefs(_ context.Context, path string, force bool) (*SyncResult, error) {
	data, err := s.store.Read(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, apperr.ErrNotFound
		}
		return nil, err
	}
	if err := s.IndexFile(path, data); err != nil {
		return nil, err
	}

	text := string(data)
	eol := linkref.DetectEOL(text)

	edit, err := linkref.Synthesize(path, text, eol, s.db, force)
	if err != nil {
		return nil, err
	}
	if edit == nil {
		return &SyncResult{Path: path, Checksum: checksum.Sum(data)}, nil
	}

	updated := linkref.ApplyEdit(text, eol, edit)
	if updated == text {
		// Forced rewrite of an already-correct block: nothing to persist.
		return &SyncResult{Path: path, Checksum: checksum.Sum(data), Edit: edit}, nil
	}

	if err := s.store.Write(path, []byte(updated)); err != nil {
		return nil, err
	}
	if err := s.IndexFile(path, []byte(updated)); err != nil {
		return nil, err
	}
	return &SyncResult{
		Path:     path,
		Changed:  true,
		Checksum: checksum.Sum([]byte(updated)),
		Edit:     edit,
	}, nil
}

// SyncAllLinkRefs runs SyncLinkRefs over every note in the vault and returns
// the number of changed documents. Per-note failures are logged and skipped
// so one bad note does not abort a batch regeneration.
func (s *Service) SyncAllLinkRefs(ctx context.Context, force bool, logger *slog.Logger) (int, error) {
	metas, err := s.store.List("")
	if err != nil {
		return 0, err
	}
	changed := 0
	for _, m := range metas {
		res, err := s.SyncLinkRefs(ctx, m.Path, force)
		if err != nil {
			logger.Warn("linkref sync failed", slog.String("path", m.Path), slog.String("error", err.Error()))
			continue
		}
		if res.Changed {
			changed++
		}
	}
	return changed, nil
}

// IndexFile parses data and upserts it into the index. Exported so that the
// initial sync and the watcher can reuse it.
func (s *Service) IndexFile(path string, data []byte) error {
	res, err := parser.Parse(data)
	if err != nil {
		return err
	}
	return s.db.UpsertNote(index.NoteRow{
		Path:      path,
		Title:     res.Title,
		Checksum:  checksum.Sum(data),
		Tags:      nonNilSlice(res.Tags),
		UpdatedAt: time.Now(),
	}, res.Body, res.Links)
}

// buildNoteDetail constructs a NoteDetail from raw data without re-reading
// the file.
func (s *Service) buildNoteDetail(path string, data []byte) (*NoteDetail, error) {
	res, err := parser.Parse(data)
	if err != nil {
		return nil, err
	}
	bl, err := s.db.Backlinks(path)
	if err != nil {
		return nil, err
	}
	return &NoteDetail{
		Path:        path,
		Title:       res.Title,
		Content:     string(data),
		Checksum:    checksum.Sum(data),
		Tags:        nonNilSlice(res.Tags),
		Frontmatter: res.Frontmatter,
		Backlinks:   nonNilSlice(bl),
		UpdatedAt:   time.Now(),
	}, nil
}

func nonNilSlice[T any](s []T) []T {
	if s == nil {
		return []T{}
	}
	return s
}
