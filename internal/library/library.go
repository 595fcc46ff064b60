// Package library handles importing documents into the folio home
// directory and enumerating what is already there.
package library

import (
	"context"
	"crypto/sha256"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/google/uuid"
	"gopkg.in/yaml.v3"

	"github.com/jackzampolin/folio/internal/home"
	"github.com/jackzampolin/folio/internal/provider"
)

// metaSuffix names the per-document metadata sidecar. The imported copy is
// stored under its content-derived ID, so the human-readable title has to be
// persisted at import time; it cannot be recovered from the copy's name.
const metaSuffix = ".meta.yaml"

// metadata is the sidecar payload stored next to each imported document.
type metadata struct {
	Title    string `yaml:"title"`
	Format   string `yaml:"format"`
	Chapters int    `yaml:"chapters"`
}

// folioNamespace seeds deterministic document IDs. Importing the same file
// twice yields the same identity, so reading positions survive re-imports.
var folioNamespace = uuid.MustParse("8c1f3e02-55c7-49a2-9c5e-6f3ab2a1d4f7")

// Document is one imported document in the library.
type Document struct {
	ID       string `json:"id" yaml:"id"`
	Title    string `json:"title" yaml:"title"`
	Format   string `json:"format" yaml:"format"`
	Path     string `json:"path" yaml:"path"`
	Chapters int    `json:"chapters" yaml:"chapters"`
}

// Library manages the imported-document directory.
type Library struct {
	home     *home.Dir
	registry *provider.Registry
	logger   *slog.Logger
}

// Config configures a Library.
type Config struct {
	Home     *home.Dir
	Registry *provider.Registry
	Logger   *slog.Logger
}

// New creates a Library.
func New(cfg Config) (*Library, error) {
	if cfg.Home == nil {
		return nil, fmt.Errorf("library: home directory is required")
	}
	registry := cfg.Registry
	if registry == nil {
		registry = provider.DefaultRegistry()
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Library{
		home:     cfg.Home,
		registry: registry,
		logger:   logger.With("component", "library"),
	}, nil
}

// DocumentID derives the stable identity for the file at path from its
// content hash.
func DocumentID(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", fmt.Errorf("failed to open document: %w", err)
	}
	defer f.Close()

	h := sha256.New()
	if _, err := io.Copy(h, f); err != nil {
		return "", fmt.Errorf("failed to hash document: %w", err)
	}
	return uuid.NewSHA1(folioNamespace, h.Sum(nil)).String(), nil
}

// Add imports the document at path into the library: validates that a
// provider can open it, copies it under its document ID, and returns its
// metadata.
func (l *Library) Add(ctx context.Context, path string) (*Document, error) {
	if _, err := os.Stat(path); err != nil {
		return nil, fmt.Errorf("document not found: %s", path)
	}
	if !l.registry.CanHandle(path) {
		return nil, fmt.Errorf("%w: %s", provider.ErrUnsupported, path)
	}

	// Open before copying so unreadable files are rejected up front.
	p, err := l.registry.Open(path)
	if err != nil {
		return nil, err
	}
	defer p.Close()

	chapters, err := p.ChapterCount(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to enumerate chapters: %w", err)
	}

	docID, err := DocumentID(path)
	if err != nil {
		return nil, err
	}

	if err := l.home.EnsureExists(); err != nil {
		return nil, err
	}
	ext := strings.ToLower(filepath.Ext(path))
	dest := l.home.DocumentPath(docID, ext)
	meta := metadata{
		Title:    DeriveTitle(path),
		Format:   p.Name(),
		Chapters: chapters,
	}
	if _, err := os.Stat(dest); err == nil {
		l.logger.Debug("document already imported", "id", docID)
		// The first import's title is canonical.
		if existing, err := l.readMeta(docID); err == nil {
			meta = *existing
		}
	} else if err := copyFile(path, dest); err != nil {
		return nil, fmt.Errorf("failed to copy document into library: %w", err)
	}
	if err := l.writeMeta(docID, meta); err != nil {
		return nil, err
	}

	doc := &Document{
		ID:       docID,
		Title:    meta.Title,
		Format:   meta.Format,
		Path:     dest,
		Chapters: meta.Chapters,
	}
	l.logger.Info("document imported",
		"id", doc.ID, "title", doc.Title, "format", doc.Format, "chapters", doc.Chapters)
	return doc, nil
}

// List returns the imported documents sorted by title.
func (l *Library) List(ctx context.Context) ([]Document, error) {
	entries, err := os.ReadDir(l.home.LibraryPath())
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to read library directory: %w", err)
	}

	var docs []Document
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		path := filepath.Join(l.home.LibraryPath(), entry.Name())
		if !l.registry.CanHandle(path) {
			continue
		}

		docID := strings.TrimSuffix(entry.Name(), filepath.Ext(entry.Name()))
		doc := Document{
			ID:   docID,
			Path: path,
		}
		if meta, err := l.readMeta(docID); err == nil {
			doc.Title = meta.Title
			doc.Format = meta.Format
			doc.Chapters = meta.Chapters
		} else {
			// Sidecar lost or predates this layout; fall back to reading
			// the document itself. The title is gone for good then.
			l.logger.Warn("document metadata missing, reopening", "id", docID, "error", err)
			doc.Title = DeriveTitle(path)
			p, err := l.registry.Open(path)
			if err != nil {
				l.logger.Warn("skipping unreadable library entry", "path", path, "error", err)
				continue
			}
			doc.Format = p.Name()
			if n, err := p.ChapterCount(ctx); err == nil {
				doc.Chapters = n
			}
			p.Close()
		}
		docs = append(docs, doc)
	}

	sort.Slice(docs, func(i, j int) bool { return docs[i].Title < docs[j].Title })
	return docs, nil
}

// Resolve finds the library document whose ID has the given prefix.
// Returns an error when the prefix is ambiguous or matches nothing.
func (l *Library) Resolve(ctx context.Context, idPrefix string) (*Document, error) {
	docs, err := l.List(ctx)
	if err != nil {
		return nil, err
	}

	var matches []Document
	for _, d := range docs {
		if strings.HasPrefix(d.ID, idPrefix) {
			matches = append(matches, d)
		}
	}
	switch len(matches) {
	case 0:
		return nil, fmt.Errorf("no document matches %q", idPrefix)
	case 1:
		return &matches[0], nil
	default:
		return nil, fmt.Errorf("%d documents match %q, use a longer prefix", len(matches), idPrefix)
	}
}

// DeriveTitle produces a human-readable title from a file name:
// "the_great-gatsby.epub" becomes "the great gatsby".
func DeriveTitle(path string) string {
	base := filepath.Base(path)
	base = strings.TrimSuffix(base, filepath.Ext(base))
	base = strings.NewReplacer("_", " ", "-", " ").Replace(base)
	return strings.Join(strings.Fields(base), " ")
}

func (l *Library) metaPath(docID string) string {
	return filepath.Join(l.home.LibraryPath(), docID+metaSuffix)
}

func (l *Library) writeMeta(docID string, m metadata) error {
	data, err := yaml.Marshal(m)
	if err != nil {
		return fmt.Errorf("failed to marshal document metadata: %w", err)
	}
	if err := os.WriteFile(l.metaPath(docID), data, 0o644); err != nil {
		return fmt.Errorf("failed to write document metadata: %w", err)
	}
	return nil
}

func (l *Library) readMeta(docID string) (*metadata, error) {
	data, err := os.ReadFile(l.metaPath(docID))
	if err != nil {
		return nil, err
	}
	var m metadata
	if err := yaml.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("failed to parse document metadata: %w", err)
	}
	return &m, nil
}

func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	out, err := os.Create(dst)
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		os.Remove(dst)
		return err
	}
	return out.Close()
}
