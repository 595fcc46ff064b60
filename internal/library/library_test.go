package library

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/jackzampolin/folio/internal/home"
	"github.com/jackzampolin/folio/internal/provider"
)

// bookFactory recognizes .book files and serves them from a fixed in-memory
// provider, so library tests don't need real EPUB fixtures.
type bookFactory struct {
	chapters int
}

func (f bookFactory) Name() string { return "book" }

func (f bookFactory) CanHandle(path string) bool {
	return strings.HasSuffix(strings.ToLower(path), ".book")
}

func (f bookFactory) Open(path string) (provider.Provider, error) {
	return provider.NewMemory(f.chapters), nil
}

func newTestLibrary(t *testing.T) (*Library, *home.Dir) {
	t.Helper()
	dir, err := home.New(filepath.Join(t.TempDir(), ".folio"))
	if err != nil {
		t.Fatalf("failed to create home dir: %v", err)
	}
	lib, err := New(Config{
		Home:     dir,
		Registry: provider.NewRegistry(bookFactory{chapters: 7}),
		Logger:   slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError})),
	})
	if err != nil {
		t.Fatalf("failed to create library: %v", err)
	}
	return lib, dir
}

func writeBook(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("failed to write fixture: %v", err)
	}
	return path
}

func TestAdd(t *testing.T) {
	lib, dir := newTestLibrary(t)
	ctx := context.Background()

	path := writeBook(t, "the_great-gatsby.book", "chapter text")
	doc, err := lib.Add(ctx, path)
	if err != nil {
		t.Fatalf("failed to add document: %v", err)
	}

	if doc.Title != "the great gatsby" {
		t.Errorf("expected derived title, got %q", doc.Title)
	}
	if doc.Format != "memory" {
		t.Errorf("expected memory format, got %q", doc.Format)
	}
	if doc.Chapters != 7 {
		t.Errorf("expected 7 chapters, got %d", doc.Chapters)
	}
	if _, err := os.Stat(doc.Path); err != nil {
		t.Errorf("expected document copied into library: %v", err)
	}
	if filepath.Dir(doc.Path) != dir.LibraryPath() {
		t.Errorf("document stored outside library dir: %s", doc.Path)
	}
}

func TestAddIsIdempotentByContent(t *testing.T) {
	lib, _ := newTestLibrary(t)
	ctx := context.Background()

	path := writeBook(t, "moby-dick.book", "call me ishmael")
	first, err := lib.Add(ctx, path)
	if err != nil {
		t.Fatalf("first add failed: %v", err)
	}

	// Same content under a different name maps to the same document ID.
	renamed := writeBook(t, "moby_dick_copy.book", "call me ishmael")
	second, err := lib.Add(ctx, renamed)
	if err != nil {
		t.Fatalf("second add failed: %v", err)
	}
	if first.ID != second.ID {
		t.Errorf("same content produced different IDs: %s vs %s", first.ID, second.ID)
	}
	if second.Title != first.Title {
		t.Errorf("re-import changed the title: %q vs %q", second.Title, first.Title)
	}

	docs, err := lib.List(ctx)
	if err != nil {
		t.Fatalf("list failed: %v", err)
	}
	if len(docs) != 1 {
		t.Errorf("expected 1 library entry after duplicate import, got %d", len(docs))
	}
}

func TestAddRejectsUnsupported(t *testing.T) {
	lib, _ := newTestLibrary(t)

	path := writeBook(t, "notes.txt", "plain text")
	if _, err := lib.Add(context.Background(), path); err == nil {
		t.Fatal("expected error for unsupported format")
	}
}

func TestAddMissingFile(t *testing.T) {
	lib, _ := newTestLibrary(t)

	if _, err := lib.Add(context.Background(), "/nonexistent/file.book"); err == nil {
		t.Fatal("expected error for missing file")
	}
}

func TestListEmpty(t *testing.T) {
	lib, _ := newTestLibrary(t)

	docs, err := lib.List(context.Background())
	if err != nil {
		t.Fatalf("list failed: %v", err)
	}
	if len(docs) != 0 {
		t.Errorf("expected empty library, got %d entries", len(docs))
	}
}

func TestListSortedByTitle(t *testing.T) {
	lib, _ := newTestLibrary(t)
	ctx := context.Background()

	for _, name := range []string{"zebra.book", "aardvark.book", "mongoose.book"} {
		if _, err := lib.Add(ctx, writeBook(t, name, name)); err != nil {
			t.Fatalf("failed to add %s: %v", name, err)
		}
	}

	docs, err := lib.List(ctx)
	if err != nil {
		t.Fatalf("list failed: %v", err)
	}
	if len(docs) != 3 {
		t.Fatalf("expected 3 documents, got %d", len(docs))
	}
	for i, want := range []string{"aardvark", "mongoose", "zebra"} {
		if docs[i].Title != want {
			t.Errorf("position %d: expected %q, got %q", i, want, docs[i].Title)
		}
	}
}

func TestListPreservesImportTitles(t *testing.T) {
	lib, _ := newTestLibrary(t)
	ctx := context.Background()

	added, err := lib.Add(ctx, writeBook(t, "the_great-gatsby.book", "gatsby text"))
	if err != nil {
		t.Fatalf("add failed: %v", err)
	}

	// The library copy is named by document ID, so the title must survive
	// through the stored metadata, not the copy's filename.
	docs, err := lib.List(ctx)
	if err != nil {
		t.Fatalf("list failed: %v", err)
	}
	if len(docs) != 1 {
		t.Fatalf("expected 1 document, got %d", len(docs))
	}
	if docs[0].Title != "the great gatsby" {
		t.Errorf("expected import title preserved, got %q", docs[0].Title)
	}
	if docs[0].Title != added.Title {
		t.Errorf("list title %q diverges from add title %q", docs[0].Title, added.Title)
	}
	if docs[0].Format != "memory" || docs[0].Chapters != 7 {
		t.Errorf("expected stored format/chapters, got %+v", docs[0])
	}
}

func TestListWithoutMetadataFallsBack(t *testing.T) {
	lib, dir := newTestLibrary(t)
	ctx := context.Background()

	doc, err := lib.Add(ctx, writeBook(t, "walden.book", "walden pond"))
	if err != nil {
		t.Fatalf("add failed: %v", err)
	}
	if err := os.Remove(filepath.Join(dir.LibraryPath(), doc.ID+metaSuffix)); err != nil {
		t.Fatalf("failed to remove sidecar: %v", err)
	}

	docs, err := lib.List(ctx)
	if err != nil {
		t.Fatalf("list failed: %v", err)
	}
	if len(docs) != 1 {
		t.Fatalf("expected 1 document, got %d", len(docs))
	}
	if docs[0].Chapters != 7 {
		t.Errorf("expected chapters recovered from the document, got %d", docs[0].Chapters)
	}
}

func TestResolve(t *testing.T) {
	lib, _ := newTestLibrary(t)
	ctx := context.Background()

	doc, err := lib.Add(ctx, writeBook(t, "walden.book", "walden pond"))
	if err != nil {
		t.Fatalf("add failed: %v", err)
	}

	got, err := lib.Resolve(ctx, doc.ID[:8])
	if err != nil {
		t.Fatalf("resolve by prefix failed: %v", err)
	}
	if got.ID != doc.ID {
		t.Errorf("resolved wrong document: %s", got.ID)
	}

	if _, err := lib.Resolve(ctx, "ffffffff"); err == nil {
		t.Error("expected error for unknown prefix")
	}

	if _, err := lib.Add(ctx, writeBook(t, "other.book", "other text")); err != nil {
		t.Fatalf("add failed: %v", err)
	}
	if _, err := lib.Resolve(ctx, ""); err == nil {
		t.Error("expected error for ambiguous prefix")
	}
}

func TestDeriveTitle(t *testing.T) {
	tests := []struct {
		path string
		want string
	}{
		{"/books/the_great-gatsby.epub", "the great gatsby"},
		{"war_and_peace.pdf", "war and peace"},
		{"plain.epub", "plain"},
		{"double__underscore.epub", "double underscore"},
	}
	for _, tt := range tests {
		if got := DeriveTitle(tt.path); got != tt.want {
			t.Errorf("DeriveTitle(%q) = %q, want %q", tt.path, got, tt.want)
		}
	}
}
