// Package assembler materializes rendering windows: it turns a contiguous
// chapter range into one renderable HTML document for the conveyor's cache.
package assembler

import (
	"context"
	"fmt"
	"html"
	"log/slog"
	"strings"

	"github.com/jackzampolin/folio/internal/conveyor"
	"github.com/jackzampolin/folio/internal/provider"
	"github.com/jackzampolin/folio/internal/windowing"
)

// Assembler builds window content from a chapter content provider.
// Safe for concurrent use: it holds no mutable state and providers are
// required to support concurrent reads.
type Assembler struct {
	provider provider.Provider
	indexer  *windowing.Indexer
	logger   *slog.Logger
}

// Config configures an Assembler.
type Config struct {
	Provider provider.Provider
	Indexer  *windowing.Indexer

	// Logger for per-chapter failures. Defaults to slog.Default().
	Logger *slog.Logger
}

// New creates an Assembler.
func New(cfg Config) (*Assembler, error) {
	if cfg.Provider == nil {
		return nil, fmt.Errorf("assembler: provider is required")
	}
	if cfg.Indexer == nil {
		return nil, fmt.Errorf("assembler: indexer is required")
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Assembler{
		provider: cfg.Provider,
		indexer:  cfg.Indexer,
		logger:   logger.With("component", "assembler"),
	}, nil
}

// CanAssemble reports whether the window and chapter range address real
// chapters of the document.
func (a *Assembler) CanAssemble(w windowing.WindowIndex, first, last windowing.ChapterIndex) bool {
	return a.indexer.IsValidWindow(w) &&
		a.indexer.IsValidChapter(first) &&
		a.indexer.IsValidChapter(last) &&
		first <= last
}

// AssembleWindow concatenates the chapters of [first, last] into one window
// document. Returns (nil, nil) for well-formed but out-of-bounds ranges. A
// chapter that fails to parse contributes a visible placeholder section
// instead of failing the whole window.
func (a *Assembler) AssembleWindow(ctx context.Context, w windowing.WindowIndex, first, last windowing.ChapterIndex) (*conveyor.WindowData, error) {
	if first > last {
		return nil, fmt.Errorf("assembler: inverted chapter range %d..%d", first, last)
	}
	if !a.CanAssemble(w, first, last) {
		return nil, nil
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, `<div class="window" data-window="%d">`+"\n", int(w))
	for c := first; c <= last; c++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		content, err := a.provider.ChapterContent(ctx, int(c))
		if err != nil {
			a.logger.Warn("chapter failed during window assembly",
				"window", int(w), "chapter", int(c), "error", err)
			fmt.Fprintf(&sb,
				`<section class="chapter chapter-error" data-chapter="%d"><p>This chapter could not be loaded.</p></section>`+"\n",
				int(c))
			continue
		}
		fmt.Fprintf(&sb, `<section class="chapter" data-chapter="%d">`+"\n", int(c))
		if content.HTML != "" {
			sb.WriteString(content.HTML)
		} else {
			// Plain-text fallback for chapters without markup.
			for _, para := range strings.Split(content.Text, "\n") {
				if strings.TrimSpace(para) == "" {
					continue
				}
				fmt.Fprintf(&sb, "<p>%s</p>\n", html.EscapeString(para))
			}
		}
		sb.WriteString("</section>\n")
	}
	sb.WriteString("</div>")

	return &conveyor.WindowData{
		Window:       w,
		FirstChapter: first,
		LastChapter:  last,
		HTML:         sb.String(),
	}, nil
}
