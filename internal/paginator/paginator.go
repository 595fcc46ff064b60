// Package paginator owns the sliding working set of loaded chapters and the
// global page index that linearizes pages across them.
//
// The working set is a contiguous run of chapters centered on the reader's
// position. Chapters outside the set are evicted; their page counts fall
// back to 1 until they are loaded and measured again, which keeps the global
// index monotonic without paginating the whole book eagerly.
//
// Public operations are not safe for concurrent use with each other: they
// mutate shared prefix-sum and working-set state and are meant to be called
// from a single logical task sequence (the UI loop or an equivalent queue).
package paginator

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/jackzampolin/folio/internal/provider"
	"github.com/jackzampolin/folio/internal/windowing"
)

// Sentinel errors returned by the paginator.
var (
	// ErrInvalidIndex indicates a negative index or one at or beyond the
	// document's chapter/page space.
	ErrInvalidIndex = errors.New("paginator: index out of range")

	// ErrNotInitialized indicates an operation before Initialize.
	ErrNotInitialized = errors.New("paginator: not initialized")
)

// DefaultRadius is the default working-set radius: 2 chapters either side
// of the centered chapter, a 5-chapter working set.
const DefaultRadius = 2

// fallbackPageCount is assumed for chapters that have not been measured by
// the rendering surface. Unknown chapters count as a single page until a
// reflow measurement arrives.
const fallbackPageCount = 1

// LoadedChapter is one chapter resident in the working set.
type LoadedChapter struct {
	Index     windowing.ChapterIndex
	Title     string
	PageCount int
	Content   provider.Content

	// startPage is the chapter's first global page index. Maintained by
	// rebuildPageIndex.
	startPage int
}

// PageLocation pins a global page to its chapter coordinates.
type PageLocation struct {
	GlobalPage int                    `json:"global_page" yaml:"global_page"`
	Chapter    windowing.ChapterIndex `json:"chapter" yaml:"chapter"`
	InPage     int                    `json:"in_page" yaml:"in_page"`
	CharOffset int                    `json:"char_offset" yaml:"char_offset"`
}

// Config configures a Paginator.
type Config struct {
	// Provider supplies chapter counts, titles, and content.
	Provider provider.Provider

	// ChaptersPerWindow sizes the window indexer (default 5).
	ChaptersPerWindow int

	// Radius is the working-set radius (default DefaultRadius).
	Radius int

	// Logger for working-set transitions. Defaults to slog.Default().
	Logger *slog.Logger
}

// Paginator maintains the loaded-chapter working set and global page index.
type Paginator struct {
	provider provider.Provider
	logger   *slog.Logger
	radius   int
	perWin   int

	indexer *windowing.Indexer
	total   int
	titles  map[windowing.ChapterIndex]string

	// loaded is ordered by chapter index and always contiguous.
	loaded []*LoadedChapter

	// center is the chapter the working set is centered on.
	center windowing.ChapterIndex

	// measured remembers reflow measurements for chapters currently
	// outside the working set, so re-loading restores their counts.
	measured map[windowing.ChapterIndex]int
}

// New creates a Paginator. Call Initialize before any other operation.
func New(cfg Config) (*Paginator, error) {
	if cfg.Provider == nil {
		return nil, fmt.Errorf("paginator: provider is required")
	}
	radius := cfg.Radius
	if radius <= 0 {
		radius = DefaultRadius
	}
	perWin := cfg.ChaptersPerWindow
	if perWin <= 0 {
		perWin = 5
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Paginator{
		provider: cfg.Provider,
		logger:   logger.With("component", "paginator"),
		radius:   radius,
		perWin:   perWin,
		titles:   make(map[windowing.ChapterIndex]string),
		measured: make(map[windowing.ChapterIndex]int),
		center:   -1,
	}, nil
}

// Initialize loads the chapter count and titles (metadata only, no content)
// from the provider. Fails with a wrapped provider.ErrParse when the
// document cannot be enumerated.
func (p *Paginator) Initialize(ctx context.Context) error {
	count, err := p.provider.ChapterCount(ctx)
	if err != nil {
		return fmt.Errorf("enumerate chapters: %w", err)
	}

	indexer, err := windowing.NewIndexer(count, p.perWin)
	if err != nil {
		return err
	}
	p.total = count
	p.indexer = indexer

	// Titles are optional navigation sugar; a missing TOC is not fatal.
	toc, err := p.provider.TableOfContents(ctx)
	if err != nil {
		p.logger.Warn("table of contents unavailable", "error", err)
	}
	for _, e := range toc {
		c := windowing.ChapterIndex(e.Chapter)
		if _, seen := p.titles[c]; !seen {
			p.titles[c] = e.Title
		}
	}

	p.logger.Info("document initialized", "chapters", count, "toc_entries", len(toc))
	return nil
}

// Indexer returns the window indexer for this document.
func (p *Paginator) Indexer() *windowing.Indexer {
	return p.indexer
}

// TotalChapters returns the document's chapter count.
func (p *Paginator) TotalChapters() int {
	return p.total
}

// ChapterTitle returns the TOC title for chapter c, or a generated one.
func (p *Paginator) ChapterTitle(c windowing.ChapterIndex) string {
	if t, ok := p.titles[c]; ok && t != "" {
		return t
	}
	return fmt.Sprintf("Chapter %d", int(c)+1)
}

// LoadInitialWindow loads the 2*radius+1 chapters centered on target,
// clamped so the working set is always min(2*radius+1, totalChapters) wide
// even near the book's edges. Returns the global page index of the target
// chapter's first page.
func (p *Paginator) LoadInitialWindow(ctx context.Context, target windowing.ChapterIndex) (int, error) {
	if p.indexer == nil {
		return 0, ErrNotInitialized
	}
	if target < 0 || int(target) >= p.total {
		return 0, fmt.Errorf("%w: chapter %d of %d", ErrInvalidIndex, target, p.total)
	}

	if err := p.retarget(ctx, target); err != nil {
		return 0, err
	}

	ch := p.chapter(target)
	return ch.startPage, nil
}

// NavigateToChapter resolves (c, inPage) to a PageLocation, re-centering the
// working set on c when it is outside the currently loaded run. An
// out-of-range inPage clamps to [0, pageCount-1] rather than failing.
func (p *Paginator) NavigateToChapter(ctx context.Context, c windowing.ChapterIndex, inPage int) (PageLocation, error) {
	if p.indexer == nil {
		return PageLocation{}, ErrNotInitialized
	}
	if c < 0 || int(c) >= p.total {
		return PageLocation{}, fmt.Errorf("%w: chapter %d of %d", ErrInvalidIndex, c, p.total)
	}

	if p.chapter(c) == nil {
		if err := p.retarget(ctx, c); err != nil {
			return PageLocation{}, err
		}
	} else {
		p.center = c
	}

	ch := p.chapter(c)
	if inPage < 0 {
		inPage = 0
	}
	if inPage > ch.PageCount-1 {
		inPage = ch.PageCount - 1
	}
	return p.locationFor(ch, inPage), nil
}

// NavigateToGlobalPage resolves global page g to its chapter and navigates
// there. Out-of-range g clamps to the loaded page space.
func (p *Paginator) NavigateToGlobalPage(ctx context.Context, g int) (PageLocation, error) {
	if p.indexer == nil {
		return PageLocation{}, ErrNotInitialized
	}
	if len(p.loaded) == 0 {
		return PageLocation{}, fmt.Errorf("%w: no chapters loaded", ErrNotInitialized)
	}
	if g < 0 {
		g = 0
	}
	if max := p.TotalGlobalPages(); g > max-1 {
		g = max - 1
	}

	ch, inPage := p.resolveGlobal(g)
	return p.NavigateToChapter(ctx, ch.Index, inPage)
}

// UpdateChapterPageCount records a measured page count for chapter c,
// typically after a font-size reflow. Returns false (a no-op) when the
// count is unchanged or the chapter is not loaded; otherwise rebuilds the
// global index for every chapter after c and returns true.
func (p *Paginator) UpdateChapterPageCount(c windowing.ChapterIndex, pageCount int) bool {
	if pageCount < 1 {
		pageCount = 1
	}
	ch := p.chapter(c)
	if ch == nil {
		p.logger.Debug("page count for unloaded chapter ignored", "chapter", int(c), "pages", pageCount)
		return false
	}
	if ch.PageCount == pageCount {
		return false
	}

	p.logger.Debug("chapter reflowed", "chapter", int(c), "pages_before", ch.PageCount, "pages_after", pageCount)
	ch.PageCount = pageCount
	p.measured[c] = pageCount
	p.rebuildPageIndex()
	return true
}

// MarkChapterEvicted removes chapter c from the working set. The centered
// chapter is never evicted by this call; the request is silently ignored.
func (p *Paginator) MarkChapterEvicted(c windowing.ChapterIndex) {
	if c == p.center {
		return
	}
	for i, ch := range p.loaded {
		if ch.Index == c {
			p.loaded = append(p.loaded[:i], p.loaded[i+1:]...)
			p.rebuildPageIndex()
			p.logger.Debug("chapter evicted", "chapter", int(c))
			return
		}
	}
}

// PageContent returns the content of the chapter containing global page g.
// The boolean is false when g falls outside the loaded page space.
func (p *Paginator) PageContent(g int) (provider.Content, bool) {
	if g < 0 || g >= p.TotalGlobalPages() {
		return provider.Content{}, false
	}
	ch, _ := p.resolveGlobal(g)
	return ch.Content, true
}

// PageLocation resolves global page g to its chapter coordinates without
// navigating. The boolean is false when g falls outside the loaded page
// space, an expected condition during window transitions rather than an
// error.
func (p *Paginator) PageLocation(g int) (PageLocation, bool) {
	if g < 0 || g >= p.TotalGlobalPages() {
		return PageLocation{}, false
	}
	ch, inPage := p.resolveGlobal(g)
	return p.locationFor(ch, inPage), true
}

// ChapterPageCount returns the measured page count for chapter c, or the
// single-page fallback when c is not loaded.
func (p *Paginator) ChapterPageCount(c windowing.ChapterIndex) int {
	if ch := p.chapter(c); ch != nil {
		return ch.PageCount
	}
	return fallbackPageCount
}

// TotalGlobalPages returns the page count summed over loaded chapters.
func (p *Paginator) TotalGlobalPages() int {
	total := 0
	for _, ch := range p.loaded {
		total += ch.PageCount
	}
	return total
}

// LoadedChapters returns the indices of the current working set in order.
func (p *Paginator) LoadedChapters() []windowing.ChapterIndex {
	out := make([]windowing.ChapterIndex, len(p.loaded))
	for i, ch := range p.loaded {
		out[i] = ch.Index
	}
	return out
}

// CenteredChapter returns the chapter the working set is centered on,
// or -1 before the first load.
func (p *Paginator) CenteredChapter() windowing.ChapterIndex {
	return p.center
}

// retarget re-centers the working set on target: evicts chapters now
// outside [target-radius, target+radius] (clamped to keep the set at full
// width near the edges) and loads the ones newly inside.
func (p *Paginator) retarget(ctx context.Context, target windowing.ChapterIndex) error {
	lo := int(target) - p.radius
	hi := int(target) + p.radius
	if lo < 0 {
		hi += -lo
		lo = 0
	}
	if hi > p.total-1 {
		lo -= hi - (p.total - 1)
		hi = p.total - 1
	}
	if lo < 0 {
		lo = 0
	}

	// Drop chapters that fell outside the new range.
	kept := p.loaded[:0]
	for _, ch := range p.loaded {
		if int(ch.Index) >= lo && int(ch.Index) <= hi {
			kept = append(kept, ch)
		} else {
			p.logger.Debug("chapter left working set", "chapter", int(ch.Index))
		}
	}
	p.loaded = kept

	// Load chapters newly inside the range, keeping the slice ordered.
	for c := lo; c <= hi; c++ {
		ci := windowing.ChapterIndex(c)
		if p.chapter(ci) != nil {
			continue
		}
		p.insertChapter(p.loadChapter(ctx, ci))
	}

	p.center = target
	p.rebuildPageIndex()
	p.logger.Debug("working set re-centered",
		"center", int(target), "first", lo, "last", hi, "loaded", len(p.loaded))
	return nil
}

// loadChapter fetches chapter content from the provider. A chapter that
// fails to parse is kept in the set with placeholder content so navigation
// across it still works; the failure is logged and isolated.
func (p *Paginator) loadChapter(ctx context.Context, c windowing.ChapterIndex) *LoadedChapter {
	ch := &LoadedChapter{
		Index:     c,
		Title:     p.ChapterTitle(c),
		PageCount: fallbackPageCount,
	}
	if n, ok := p.measured[c]; ok {
		ch.PageCount = n
	}

	content, err := p.provider.ChapterContent(ctx, int(c))
	if err != nil {
		p.logger.Warn("chapter failed to load, using placeholder",
			"chapter", int(c), "error", err)
		ch.Content = provider.Content{
			Text: "This chapter could not be loaded.",
			HTML: `<div class="chapter-load-error">This chapter could not be loaded.</div>`,
		}
		return ch
	}
	ch.Content = content
	return ch
}

// insertChapter inserts ch keeping p.loaded ordered by chapter index.
func (p *Paginator) insertChapter(ch *LoadedChapter) {
	at := len(p.loaded)
	for i, existing := range p.loaded {
		if existing.Index > ch.Index {
			at = i
			break
		}
	}
	p.loaded = append(p.loaded, nil)
	copy(p.loaded[at+1:], p.loaded[at:])
	p.loaded[at] = ch
}

// rebuildPageIndex recomputes every loaded chapter's starting global page
// as the prefix sum of page counts in chapter order. Called after any
// page-count change or working-set mutation.
func (p *Paginator) rebuildPageIndex() {
	sum := 0
	for _, ch := range p.loaded {
		ch.startPage = sum
		sum += ch.PageCount
	}
}

// chapter returns the loaded chapter with index c, or nil.
func (p *Paginator) chapter(c windowing.ChapterIndex) *LoadedChapter {
	for _, ch := range p.loaded {
		if ch.Index == c {
			return ch
		}
	}
	return nil
}

// resolveGlobal maps a global page (already validated to be in range) to
// its chapter and in-chapter page.
func (p *Paginator) resolveGlobal(g int) (*LoadedChapter, int) {
	for _, ch := range p.loaded {
		if g < ch.startPage+ch.PageCount {
			return ch, g - ch.startPage
		}
	}
	// Unreachable when g is in range; defend by returning the last page.
	last := p.loaded[len(p.loaded)-1]
	return last, last.PageCount - 1
}

// locationFor builds a PageLocation for a loaded chapter and in-page index.
// The character offset approximates the page's position in the chapter text
// by linear interpolation over the measured page count.
func (p *Paginator) locationFor(ch *LoadedChapter, inPage int) PageLocation {
	offset := 0
	if ch.PageCount > 0 && len(ch.Content.Text) > 0 {
		offset = inPage * len(ch.Content.Text) / ch.PageCount
	}
	return PageLocation{
		GlobalPage: ch.startPage + inPage,
		Chapter:    ch.Index,
		InPage:     inPage,
		CharOffset: offset,
	}
}
