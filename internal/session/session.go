// Package session orchestrates one open document: it wires the paginator,
// conveyor, and assembler together, applies saved-position restoration on
// start, and decides when page turns near a window edge should move the
// window buffer.
package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/jackzampolin/folio/internal/assembler"
	"github.com/jackzampolin/folio/internal/config"
	"github.com/jackzampolin/folio/internal/conveyor"
	"github.com/jackzampolin/folio/internal/paginator"
	"github.com/jackzampolin/folio/internal/position"
	"github.com/jackzampolin/folio/internal/provider"
	"github.com/jackzampolin/folio/internal/restore"
	"github.com/jackzampolin/folio/internal/windowing"
)

// ErrNotStarted is returned by operations before Start.
var ErrNotStarted = errors.New("session: not started")

// Config configures a Session.
type Config struct {
	// DocumentID identifies the document for position persistence.
	DocumentID string

	// Title is the document's display title, stored with saved positions.
	Title string

	// Provider supplies chapter content. The session does not close it.
	Provider provider.Provider

	// Positions persists reading positions. Optional; a nil store disables
	// persistence.
	Positions *position.Store

	// Reader holds the pagination tunables.
	Reader config.ReaderCfg

	// Logger for session events. Defaults to slog.Default().
	Logger *slog.Logger

	// Now overrides the clock. Tests use it to step the shift debounce.
	Now func() time.Time
}

// Session is one reading session over an open document.
//
// Methods are not safe for concurrent use; they are meant to be driven from
// a single UI loop, mirroring the paginator's contract.
type Session struct {
	id        string
	docID     string
	title     string
	logger    *slog.Logger
	reader    config.ReaderCfg
	positions *position.Store
	provider  provider.Provider
	now       func() time.Time

	paginator *paginator.Paginator
	conveyor  *conveyor.Conveyor

	started  bool
	fontSize float64

	// current is the reader's position in the global page index.
	current paginator.PageLocation

	// activeWindow tracks which window the reader is in; enteredAt feeds
	// the backward-shift debounce.
	activeWindow windowing.WindowIndex
	enteredAt    time.Time
}

// New creates a Session.
func New(cfg Config) (*Session, error) {
	if cfg.Provider == nil {
		return nil, fmt.Errorf("session: provider is required")
	}
	if cfg.DocumentID == "" {
		return nil, fmt.Errorf("session: document ID is required")
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	reader := cfg.Reader
	if reader.ChaptersPerWindow <= 0 {
		reader = config.DefaultConfig().Reader
	}
	now := cfg.Now
	if now == nil {
		now = time.Now
	}

	id := uuid.NewString()
	logger = logger.With("component", "session", "session_id", id)

	pag, err := paginator.New(paginator.Config{
		Provider:          cfg.Provider,
		ChaptersPerWindow: reader.ChaptersPerWindow,
		Radius:            reader.WindowRadius,
		Logger:            logger,
	})
	if err != nil {
		return nil, err
	}

	return &Session{
		id:           id,
		docID:        cfg.DocumentID,
		title:        cfg.Title,
		logger:       logger,
		reader:       reader,
		positions:    cfg.Positions,
		now:          now,
		paginator:    pag,
		fontSize:     reader.FontSize,
		activeWindow: -1,
		provider:     cfg.Provider,
	}, nil
}

// ID returns the session's unique identifier.
func (s *Session) ID() string { return s.id }

// Start initializes the engine and places the reader: at the saved position
// when one exists for this document, otherwise at the first page of the
// first chapter. The window buffer starts preloading immediately.
func (s *Session) Start(ctx context.Context) error {
	if err := s.paginator.Initialize(ctx); err != nil {
		return err
	}

	asm, err := assembler.New(assembler.Config{
		Provider: s.provider,
		Indexer:  s.paginator.Indexer(),
		Logger:   s.logger,
	})
	if err != nil {
		return err
	}
	conv, err := conveyor.New(conveyor.Config{
		Indexer:    s.paginator.Indexer(),
		Assembler:  asm,
		BufferSize: s.reader.BufferSize,
		Logger:     s.logger,
	})
	if err != nil {
		return err
	}
	s.conveyor = conv

	target, err := s.startingPosition(ctx)
	if err != nil {
		return err
	}
	s.current = target

	startWindow, err := s.paginator.Indexer().WindowForChapter(target.Chapter)
	if err != nil {
		return err
	}
	if err := s.conveyor.Initialize(ctx, startWindow); err != nil {
		return err
	}
	s.enterWindow(startWindow)

	s.started = true
	s.logger.Info("session started",
		"chapter", int(target.Chapter), "in_page", target.InPage, "window", int(startWindow))
	return nil
}

// startingPosition resolves where the reader should begin.
func (s *Session) startingPosition(ctx context.Context) (paginator.PageLocation, error) {
	saved := s.savedPosition(ctx)
	if saved == nil {
		if _, err := s.paginator.LoadInitialWindow(ctx, 0); err != nil {
			return paginator.PageLocation{}, err
		}
		loc, err := s.paginator.NavigateToChapter(ctx, 0, 0)
		return loc, err
	}

	var loc paginator.PageLocation
	var navErr error
	strategy, err := restore.Restore(*saved, s.fontSize, restore.Callbacks{
		NavigateToChapter: func(c windowing.ChapterIndex) {
			loc, navErr = s.paginator.NavigateToChapter(ctx, c, 0)
		},
		NavigateToInPage: func(inPage int) {
			if navErr != nil {
				return
			}
			loc, navErr = s.paginator.NavigateToChapter(ctx, loc.Chapter, inPage)
		},
		ScrollToCharOffset: func(offset int) {
			if navErr != nil {
				return
			}
			loc, navErr = s.navigateToCharOffset(ctx, loc.Chapter, offset)
		},
	})
	if err != nil {
		return paginator.PageLocation{}, err
	}
	if navErr != nil {
		return paginator.PageLocation{}, navErr
	}
	s.logger.Info("position restored", "strategy", string(strategy),
		"chapter", int(loc.Chapter), "in_page", loc.InPage)
	return loc, nil
}

// savedPosition fetches this document's saved position, tolerating a missing
// store or record. A chapter index beyond the document (the file changed
// since the save) is discarded.
func (s *Session) savedPosition(ctx context.Context) *restore.SavedPosition {
	if s.positions == nil {
		return nil
	}
	rec, err := s.positions.Get(ctx, s.docID)
	if err != nil {
		s.logger.Warn("failed to read saved position", "error", err)
		return nil
	}
	if rec == nil {
		return nil
	}
	if rec.ChapterIndex < 0 || rec.ChapterIndex >= s.paginator.TotalChapters() {
		s.logger.Warn("saved position no longer valid", "chapter", rec.ChapterIndex)
		return nil
	}
	return &restore.SavedPosition{
		Chapter:    windowing.ChapterIndex(rec.ChapterIndex),
		InPage:     rec.InPageIndex,
		CharOffset: rec.CharacterOffset,
		FontSize:   rec.FontSize,
	}
}

// navigateToCharOffset maps a character offset in chapter c back to an
// in-chapter page by linear interpolation over the measured page count, then
// navigates there.
func (s *Session) navigateToCharOffset(ctx context.Context, c windowing.ChapterIndex, offset int) (paginator.PageLocation, error) {
	loc, err := s.paginator.NavigateToChapter(ctx, c, 0)
	if err != nil {
		return paginator.PageLocation{}, err
	}
	content, ok := s.paginator.PageContent(loc.GlobalPage)
	if !ok || len(content.Text) == 0 {
		return loc, nil
	}

	pages := s.paginator.ChapterPageCount(c)
	inPage := offset * pages / len(content.Text)
	return s.paginator.NavigateToChapter(ctx, c, inPage)
}

// Location returns the reader's current page location.
func (s *Session) Location() paginator.PageLocation {
	return s.current
}

// Paginator exposes the underlying paginator for reflow measurements.
func (s *Session) Paginator() *paginator.Paginator {
	return s.paginator
}

// Conveyor exposes the underlying window buffer.
func (s *Session) Conveyor() *conveyor.Conveyor {
	return s.conveyor
}

// NextPage advances one page, following the global index across chapter
// boundaries, and shifts the window buffer when the turn lands near the
// active window's trailing edge. Returns the new location.
func (s *Session) NextPage(ctx context.Context) (paginator.PageLocation, error) {
	if !s.started {
		return paginator.PageLocation{}, ErrNotStarted
	}
	loc, err := s.paginator.NavigateToGlobalPage(ctx, s.current.GlobalPage+1)
	if err != nil {
		return paginator.PageLocation{}, err
	}
	if loc.GlobalPage == s.current.GlobalPage {
		// The global index clamps at the working set's last loaded page.
		// Step into the next chapter directly, which re-centers the set.
		next := s.current.Chapter + 1
		if int(next) >= s.paginator.TotalChapters() {
			return s.current, nil
		}
		loc, err = s.paginator.NavigateToChapter(ctx, next, 0)
		if err != nil {
			return paginator.PageLocation{}, err
		}
	}
	s.moveTo(loc)
	s.MaybeShiftForward(ctx)
	return loc, nil
}

// PrevPage is the mirror of NextPage.
func (s *Session) PrevPage(ctx context.Context) (paginator.PageLocation, error) {
	if !s.started {
		return paginator.PageLocation{}, ErrNotStarted
	}
	loc, err := s.paginator.NavigateToGlobalPage(ctx, s.current.GlobalPage-1)
	if err != nil {
		return paginator.PageLocation{}, err
	}
	if loc.GlobalPage == s.current.GlobalPage {
		prev := s.current.Chapter - 1
		if prev < 0 {
			return s.current, nil
		}
		// Land on the previous chapter's last page. Two hops: loading the
		// chapter first establishes its page count.
		if _, err := s.paginator.NavigateToChapter(ctx, prev, 0); err != nil {
			return paginator.PageLocation{}, err
		}
		loc, err = s.paginator.NavigateToChapter(ctx, prev, s.paginator.ChapterPageCount(prev)-1)
		if err != nil {
			return paginator.PageLocation{}, err
		}
	}
	s.moveTo(loc)
	s.MaybeShiftBackward(ctx)
	return loc, nil
}

// GoToChapter jumps to (c, inPage), re-centering the working set and the
// window buffer as needed.
func (s *Session) GoToChapter(ctx context.Context, c windowing.ChapterIndex, inPage int) (paginator.PageLocation, error) {
	if !s.started {
		return paginator.PageLocation{}, ErrNotStarted
	}
	loc, err := s.paginator.NavigateToChapter(ctx, c, inPage)
	if err != nil {
		return paginator.PageLocation{}, err
	}

	w, err := s.paginator.Indexer().WindowForChapter(loc.Chapter)
	if err != nil {
		return paginator.PageLocation{}, err
	}
	if !s.conveyor.InBuffer(w) {
		// A jump outside the buffer restarts the belt around the target.
		if err := s.conveyor.Initialize(ctx, w); err != nil {
			return paginator.PageLocation{}, err
		}
	}
	s.moveTo(loc)
	return loc, nil
}

// MaybeShiftForward shifts the window buffer forward when the reader is
// within the edge threshold of the active window's last page. Reports
// whether a shift happened.
func (s *Session) MaybeShiftForward(ctx context.Context) bool {
	offset, total, ok := s.windowPageSpan()
	if !ok {
		return false
	}
	if total-1-offset > s.reader.EdgeThresholdPages {
		return false
	}
	return s.conveyor.ShiftForward(ctx)
}

// MaybeShiftBackward shifts the window buffer backward when the reader is
// within the edge threshold of the active window's first page. Shifts are
// suppressed for the debounce interval after entering a window, so landing
// on a window's first page does not immediately drag the buffer back.
func (s *Session) MaybeShiftBackward(ctx context.Context) bool {
	if s.now().Sub(s.enteredAt) < time.Duration(s.reader.ShiftDebounceMs)*time.Millisecond {
		return false
	}
	offset, _, ok := s.windowPageSpan()
	if !ok {
		return false
	}
	if offset > s.reader.EdgeThresholdPages {
		return false
	}
	return s.conveyor.ShiftBackward(ctx)
}

// windowPageSpan locates the current page within the active window: its
// page offset from the window's start and the window's total page count.
func (s *Session) windowPageSpan() (offset, total int, ok bool) {
	if s.conveyor == nil || s.activeWindow < 0 {
		return 0, 0, false
	}
	r, err := s.paginator.Indexer().RangeForWindow(s.activeWindow)
	if err != nil {
		return 0, 0, false
	}

	for c := r.FirstChapter; c <= r.LastChapter; c++ {
		n := s.paginator.ChapterPageCount(c)
		if c == s.current.Chapter {
			offset = total + s.current.InPage
		}
		total += n
	}
	if s.current.Chapter < r.FirstChapter || s.current.Chapter > r.LastChapter {
		return 0, 0, false
	}
	return offset, total, true
}

// moveTo records the new location and reports window entry to the conveyor
// when the turn crossed a window boundary.
func (s *Session) moveTo(loc paginator.PageLocation) {
	s.current = loc
	w, err := s.paginator.Indexer().WindowForChapter(loc.Chapter)
	if err != nil {
		return
	}
	if w != s.activeWindow {
		s.enterWindow(w)
	}
}

// enterWindow marks w active, arms the backward-shift debounce, and lets
// the conveyor decide whether the startup phase is over.
func (s *Session) enterWindow(w windowing.WindowIndex) {
	s.activeWindow = w
	s.enteredAt = s.now()
	s.conveyor.OnEnteredWindow(w)
}

// ApplyFontSize records a font-size change. The rendering surface reports
// the resulting per-chapter page counts via ReportPageCount; this call only
// updates the size used for future position snapshots and restorations.
func (s *Session) ApplyFontSize(size float64) {
	if size <= 0 {
		return
	}
	s.logger.Debug("font size changed", "from", s.fontSize, "to", size)
	s.fontSize = size
}

// ReportPageCount feeds a measured page count for chapter c into the global
// index, keeping the reader on the same in-chapter page across the reflow.
func (s *Session) ReportPageCount(ctx context.Context, c windowing.ChapterIndex, pages int) error {
	if !s.started {
		return ErrNotStarted
	}
	if !s.paginator.UpdateChapterPageCount(c, pages) {
		return nil
	}
	loc, err := s.paginator.NavigateToChapter(ctx, s.current.Chapter, s.current.InPage)
	if err != nil {
		return err
	}
	s.current = loc
	return nil
}

// Snapshot persists the current reading position. A nil position store
// makes this a no-op.
func (s *Session) Snapshot(ctx context.Context) error {
	if !s.started {
		return ErrNotStarted
	}
	if s.positions == nil {
		return nil
	}

	preview := ""
	if content, ok := s.paginator.PageContent(s.current.GlobalPage); ok {
		preview = content.Text
	}
	rec := position.Record{
		DocumentID:      s.docID,
		Title:           s.title,
		ChapterIndex:    int(s.current.Chapter),
		InPageIndex:     s.current.InPage,
		CharacterOffset: s.current.CharOffset,
		PreviewText:     restore.PreviewText(preview, s.reader.PreviewRunes),
		PercentComplete: s.percentComplete(),
		FontSize:        s.fontSize,
	}
	if err := s.positions.Save(ctx, rec); err != nil {
		return fmt.Errorf("failed to save position: %w", err)
	}
	s.logger.Debug("position saved",
		"chapter", rec.ChapterIndex, "in_page", rec.InPageIndex, "percent", rec.PercentComplete)
	return nil
}

// percentComplete estimates progress through the document from the chapter
// index and the position within the chapter's measured pages.
func (s *Session) percentComplete() float64 {
	total := s.paginator.TotalChapters()
	if total == 0 {
		return 0
	}
	pages := s.paginator.ChapterPageCount(s.current.Chapter)
	frac := float64(s.current.InPage+1) / float64(pages)
	pct := (float64(s.current.Chapter) + frac) / float64(total) * 100
	if pct > 100 {
		pct = 100
	}
	return pct
}

// Close snapshots the position and drains in-flight window materializations.
// The provider stays open; the caller owns its lifecycle.
func (s *Session) Close(ctx context.Context) error {
	if !s.started {
		return nil
	}
	err := s.Snapshot(ctx)
	s.conveyor.WaitIdle()
	s.logger.Info("session closed", "chapter", int(s.current.Chapter))
	return err
}
