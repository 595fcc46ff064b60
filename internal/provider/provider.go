// Package provider supplies chapter content to the pagination engine.
//
// A Provider wraps one open document and can enumerate chapters, hand back
// per-chapter text/HTML, and expose the document's table of contents. The
// Registry picks the right implementation for a file by asking each
// registered factory whether it can handle the path.
package provider

import (
	"context"
	"errors"
	"fmt"
)

// Sentinel errors returned by providers.
var (
	// ErrParse indicates the document (or one chapter of it) could not be
	// parsed. Callers isolate this to the failing chapter rather than
	// abandoning the whole document.
	ErrParse = errors.New("provider: parse error")

	// ErrUnsupported indicates no registered provider can handle the file.
	ErrUnsupported = errors.New("provider: unsupported document format")

	// ErrInvalidChapter indicates a chapter index outside the document.
	ErrInvalidChapter = errors.New("provider: invalid chapter index")
)

// Content is the renderable payload of one chapter.
type Content struct {
	// Text is the plain-text rendition, used for previews, character
	// offsets, and page-count estimation.
	Text string

	// HTML is the markup handed to the rendering surface.
	HTML string
}

// TOCEntry maps a table-of-contents title to the chapter it starts.
type TOCEntry struct {
	Title   string `json:"title" yaml:"title"`
	Chapter int    `json:"chapter" yaml:"chapter"`
}

// Provider is one open document.
//
// Implementations must be safe for concurrent reads: the conveyor
// materializes windows from background goroutines while the paginator
// loads chapters in the foreground.
type Provider interface {
	// Name identifies the provider implementation (e.g. "epub", "pdf").
	Name() string

	// ChapterCount returns the number of chapters in the document.
	ChapterCount(ctx context.Context) (int, error)

	// ChapterContent returns the content of chapter i.
	// Fails with ErrInvalidChapter for out-of-range indices and with a
	// wrapped ErrParse when the chapter itself is unreadable.
	ChapterContent(ctx context.Context, i int) (Content, error)

	// TableOfContents returns the document's navigation entries.
	// May be empty for documents without navigation metadata.
	TableOfContents(ctx context.Context) ([]TOCEntry, error)

	// Close releases the underlying file handle.
	Close() error
}

// Factory opens providers for the formats it recognizes.
type Factory interface {
	// Name identifies the format (e.g. "epub").
	Name() string

	// CanHandle reports whether this factory recognizes the file path.
	CanHandle(path string) bool

	// Open opens the document at path.
	Open(path string) (Provider, error)
}

// Registry dispatches files to provider factories in registration order.
type Registry struct {
	factories []Factory
}

// NewRegistry creates a registry with the given factories.
// Order matters: the first factory whose CanHandle accepts the path wins.
func NewRegistry(factories ...Factory) *Registry {
	return &Registry{factories: factories}
}

// DefaultRegistry returns a registry with all built-in formats.
func DefaultRegistry() *Registry {
	return NewRegistry(EPUBFactory{}, PDFFactory{})
}

// Register appends a factory to the registry.
func (r *Registry) Register(f Factory) {
	r.factories = append(r.factories, f)
}

// CanHandle reports whether any registered factory recognizes the path.
func (r *Registry) CanHandle(path string) bool {
	for _, f := range r.factories {
		if f.CanHandle(path) {
			return true
		}
	}
	return false
}

// Open opens the document at path with the first factory that handles it.
func (r *Registry) Open(path string) (Provider, error) {
	for _, f := range r.factories {
		if f.CanHandle(path) {
			p, err := f.Open(path)
			if err != nil {
				return nil, fmt.Errorf("open %s as %s: %w", path, f.Name(), err)
			}
			return p, nil
		}
	}
	return nil, fmt.Errorf("%w: %s", ErrUnsupported, path)
}
