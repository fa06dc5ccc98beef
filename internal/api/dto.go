package api

import "github.com/veidt/skald/internal/noteservice"

// CreateNoteRequest is the request body for creating a note.
type CreateNoteRequest struct {
	Path    string `json:"path"`
	Content string `json:"content"`
}

// UpdateNoteRequest is the request body for updating a note.
type UpdateNoteRequest struct {
	Content string `json:"content"`
}

// SyncLinkRefsRequest asks for link-reference synchronization of one note.
// Force rewrites the block even when it already matches the link graph.
type SyncLinkRefsRequest struct {
	Path  string `json:"path"`
	Force bool   `json:"force"`
}

// NoteDetail is the full note response type (aliased from the domain layer).
type NoteDetail = noteservice.NoteDetail

// NoteListItem is a lightweight list entry (aliased from the domain layer).
type NoteListItem = noteservice.NoteListItem

// SyncResult reports a link-reference synchronization outcome.
type SyncResult = noteservice.SyncResult
