package noteservice

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"strings"
	"testing"

	"github.com/veidt/skald/internal/apperr"
	"github.com/veidt/skald/internal/linkref"
	"github.com/veidt/skald/internal/testutil"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func testService(t *testing.T) *Service {
	t.Helper()
	_, store := testutil.TestVault(t)
	db := testutil.TestDB(t)
	return NewService(store, db)
}

func TestCreateGetDelete(t *testing.T) {
	svc := testService(t)
	ctx := context.Background()

	note, err := svc.CreateNote(ctx, "hello.md", []byte("# Hello\nWorld"))
	if err != nil {
		t.Fatalf("CreateNote: %v", err)
	}
	if note.Title != "Hello" {
		t.Errorf("title = %q", note.Title)
	}

	if _, err := svc.CreateNote(ctx, "hello.md", []byte("again")); !errors.Is(err, apperr.ErrAlreadyExists) {
		t.Errorf("duplicate create err = %v, want ErrAlreadyExists", err)
	}

	if err := svc.DeleteNote(ctx, "hello.md"); err != nil {
		t.Fatalf("DeleteNote: %v", err)
	}
	if _, err := svc.GetNote(ctx, "hello.md"); !errors.Is(err, apperr.ErrNotFound) {
		t.Errorf("get after delete err = %v, want ErrNotFound", err)
	}
}

func TestUpdateOptimisticConcurrency(t *testing.T) {
	svc := testService(t)
	ctx := context.Background()

	created, err := svc.CreateNote(ctx, "lock.md", []byte("v1"))
	if err != nil {
		t.Fatal(err)
	}
	if _, err := svc.UpdateNote(ctx, "lock.md", []byte("v2"), created.Checksum); err != nil {
		t.Fatalf("update with fresh checksum: %v", err)
	}
	if _, err := svc.UpdateNote(ctx, "lock.md", []byte("v3"), created.Checksum); !errors.Is(err, apperr.ErrConflict) {
		t.Errorf("stale update err = %v, want ErrConflict", err)
	}
}

func TestSyncLinkRefs_EndToEnd(t *testing.T) {
	svc := testService(t)
	ctx := context.Background()

	if _, err := svc.CreateNote(ctx, "note-a.md", []byte("# Note A\n\ncontent\n")); err != nil {
		t.Fatal(err)
	}
	if _, err := svc.CreateNote(ctx, "note-b.md", []byte("# Note B\n\ncontent\n")); err != nil {
		t.Fatal(err)
	}
	src := "# Source\n\nSee [[note-a]] and [[note-b]].\n"
	if _, err := svc.CreateNote(ctx, "src.md", []byte(src)); err != nil {
		t.Fatal(err)
	}

	res, err := svc.SyncLinkRefs(ctx, "src.md", false)
	if err != nil {
		t.Fatalf("SyncLinkRefs: %v", err)
	}
	if !res.Changed || res.Edit == nil {
		t.Fatalf("result = %+v, want a change with an edit", res)
	}

	note, err := svc.GetNote(ctx, "src.md")
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(note.Content, linkref.BeginMarker) {
		t.Errorf("document missing begin marker:\n%s", note.Content)
	}
	if !strings.Contains(note.Content, `[note-a]: note-a "Note A"`) {
		t.Errorf("missing note-a definition:\n%s", note.Content)
	}
	if !strings.Contains(note.Content, `[note-b]: note-b "Note B"`) {
		t.Errorf("missing note-b definition:\n%s", note.Content)
	}

	// A second run must be a no-op.
	res2, err := svc.SyncLinkRefs(ctx, "src.md", false)
	if err != nil {
		t.Fatal(err)
	}
	if res2.Changed {
		t.Errorf("second sync changed the document: %+v", res2)
	}
}

func TestSyncLinkRefs_RemovesBlockWhenLinksGone(t *testing.T) {
	svc := testService(t)
	ctx := context.Background()

	if _, err := svc.CreateNote(ctx, "a.md", []byte("# A\n")); err != nil {
		t.Fatal(err)
	}
	src := "# Source\n\n[[a]]\n"
	if _, err := svc.CreateNote(ctx, "src.md", []byte(src)); err != nil {
		t.Fatal(err)
	}
	if _, err := svc.SyncLinkRefs(ctx, "src.md", false); err != nil {
		t.Fatal(err)
	}

	// Drop the wikilink but keep the stale block; the next sync must
	// collapse the block away.
	note, _ := svc.GetNote(ctx, "src.md")
	updated := strings.Replace(note.Content, "[[a]]", "no links now", 1)
	if _, err := svc.UpdateNote(ctx, "src.md", []byte(updated), note.Checksum); err != nil {
		t.Fatal(err)
	}
	res, err := svc.SyncLinkRefs(ctx, "src.md", false)
	if err != nil {
		t.Fatal(err)
	}
	if !res.Changed {
		t.Fatalf("expected the stale block to be removed, got %+v", res)
	}

	after, _ := svc.GetNote(ctx, "src.md")
	if strings.Contains(after.Content, linkref.BeginMarker) {
		t.Errorf("stale block survived:\n%s", after.Content)
	}
	if !strings.Contains(after.Content, "no links now") {
		t.Errorf("body content lost:\n%s", after.Content)
	}
}

func TestSyncLinkRefs_DeletionEdit(t *testing.T) {
	svc := testService(t)
	ctx := context.Background()

	// A note carrying a block for a link that no longer resolves anywhere.
	text := "# Source\n\n" + linkref.BeginMarker + "\n" + `[ghost]: ghost "Ghost"` + "\n" + linkref.EndMarker + "\n"
	if _, err := svc.CreateNote(ctx, "src.md", []byte(text)); err != nil {
		t.Fatal(err)
	}

	res, err := svc.SyncLinkRefs(ctx, "src.md", false)
	if err != nil {
		t.Fatal(err)
	}
	if !res.Changed || res.Edit == nil || res.Edit.NewText != "" {
		t.Fatalf("result = %+v, want a deletion edit", res)
	}
	after, _ := svc.GetNote(ctx, "src.md")
	if strings.Contains(after.Content, "[ghost]:") {
		t.Errorf("ghost definition survived:\n%s", after.Content)
	}
}

func TestSyncLinkRefs_MissingNote(t *testing.T) {
	svc := testService(t)
	if _, err := svc.SyncLinkRefs(context.Background(), "nope.md", false); !errors.Is(err, apperr.ErrNotFound) {
		t.Errorf("err = %v, want ErrNotFound", err)
	}
}

func TestSyncAllLinkRefs(t *testing.T) {
	svc := testService(t)
	ctx := context.Background()

	if _, err := svc.CreateNote(ctx, "a.md", []byte("# A\n")); err != nil {
		t.Fatal(err)
	}
	if _, err := svc.CreateNote(ctx, "one.md", []byte("# One\n\n[[a]]\n")); err != nil {
		t.Fatal(err)
	}
	if _, err := svc.CreateNote(ctx, "two.md", []byte("# Two\n\n[[a]]\n")); err != nil {
		t.Fatal(err)
	}

	changed, err := svc.SyncAllLinkRefs(ctx, false, discardLogger())
	if err != nil {
		t.Fatalf("SyncAllLinkRefs: %v", err)
	}
	if changed != 2 {
		t.Errorf("changed = %d, want 2", changed)
	}

	// Everything in sync now.
	changed, err = svc.SyncAllLinkRefs(ctx, false, discardLogger())
	if err != nil {
		t.Fatal(err)
	}
	if changed != 0 {
		t.Errorf("second pass changed = %d, want 0", changed)
	}
}
