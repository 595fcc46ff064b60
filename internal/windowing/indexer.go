// Package windowing provides pure index arithmetic mapping chapters to
// fixed-size rendering windows. An Indexer is immutable after construction
// and safe for concurrent use without synchronization.
package windowing

import (
	"errors"
	"fmt"
)

// Sentinel errors returned by the windowing package.
var (
	// ErrInvalidConfig indicates a non-positive window size or negative
	// chapter count at construction time.
	ErrInvalidConfig = errors.New("windowing: invalid configuration")

	// ErrInvalidIndex indicates a structurally impossible index
	// (negative chapter or window index).
	ErrInvalidIndex = errors.New("windowing: invalid index")
)

// ChapterIndex identifies a chapter within a document. Chapters are
// zero-indexed in document order.
type ChapterIndex int

// WindowIndex identifies a rendering window. Windows are zero-indexed and
// partition the chapter space in fixed-size contiguous runs.
//
// ChapterIndex and WindowIndex are distinct types on purpose: both are
// integers at runtime, but mixing the two index spaces is exactly the kind
// of bug the type system should catch.
type WindowIndex int

// ChapterRange describes the contiguous chapter span covered by one window.
// The last window of a document may be partial (fewer chapters than the
// configured window size).
type ChapterRange struct {
	Window       WindowIndex
	FirstChapter ChapterIndex
	LastChapter  ChapterIndex
}

// Size returns the number of chapters in the range.
func (r ChapterRange) Size() int {
	return int(r.LastChapter-r.FirstChapter) + 1
}

// Contains reports whether c falls within the range.
func (r ChapterRange) Contains(c ChapterIndex) bool {
	return c >= r.FirstChapter && c <= r.LastChapter
}

// Indexer maps chapter indices to window indices and back for a document
// with a fixed chapter count and window size. All operations are O(1) and
// allocation-free.
type Indexer struct {
	totalChapters     int
	chaptersPerWindow int
}

// NewIndexer creates an Indexer for a document of totalChapters chapters
// grouped into windows of chaptersPerWindow.
func NewIndexer(totalChapters, chaptersPerWindow int) (*Indexer, error) {
	if chaptersPerWindow <= 0 {
		return nil, fmt.Errorf("%w: chapters per window must be positive, got %d", ErrInvalidConfig, chaptersPerWindow)
	}
	if totalChapters < 0 {
		return nil, fmt.Errorf("%w: total chapters cannot be negative, got %d", ErrInvalidConfig, totalChapters)
	}
	return &Indexer{
		totalChapters:     totalChapters,
		chaptersPerWindow: chaptersPerWindow,
	}, nil
}

// TotalChapters returns the document's chapter count.
func (ix *Indexer) TotalChapters() int {
	return ix.totalChapters
}

// ChaptersPerWindow returns the configured window size.
func (ix *Indexer) ChaptersPerWindow() int {
	return ix.chaptersPerWindow
}

// WindowCount returns the number of windows needed to cover every chapter.
// Zero for an empty document.
func (ix *Indexer) WindowCount() int {
	if ix.totalChapters == 0 {
		return 0
	}
	return (ix.totalChapters + ix.chaptersPerWindow - 1) / ix.chaptersPerWindow
}

// WindowForChapter returns the window containing chapter c.
//
// The result is NOT clamped to the last window: callers that may pass
// chapters at or beyond TotalChapters must validate that bound themselves.
func (ix *Indexer) WindowForChapter(c ChapterIndex) (WindowIndex, error) {
	if c < 0 {
		return 0, fmt.Errorf("%w: negative chapter index %d", ErrInvalidIndex, c)
	}
	return WindowIndex(int(c) / ix.chaptersPerWindow), nil
}

// RangeForWindow returns the chapter span covered by window w. The last
// chapter is clamped to the document's final chapter, so the trailing
// window may be partial.
func (ix *Indexer) RangeForWindow(w WindowIndex) (ChapterRange, error) {
	if w < 0 {
		return ChapterRange{}, fmt.Errorf("%w: negative window index %d", ErrInvalidIndex, w)
	}
	first := int(w) * ix.chaptersPerWindow
	last := first + ix.chaptersPerWindow - 1
	if last > ix.totalChapters-1 {
		last = ix.totalChapters - 1
	}
	return ChapterRange{
		Window:       w,
		FirstChapter: ChapterIndex(first),
		LastChapter:  ChapterIndex(last),
	}, nil
}

// IsValidChapter reports whether c addresses an existing chapter.
func (ix *Indexer) IsValidChapter(c ChapterIndex) bool {
	return c >= 0 && int(c) < ix.totalChapters
}

// IsValidWindow reports whether w addresses an existing window.
func (ix *Indexer) IsValidWindow(w WindowIndex) bool {
	return w >= 0 && int(w) < ix.WindowCount()
}
