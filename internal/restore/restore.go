// Package restore decides how a saved reading position is re-applied after
// the rendering metric may have changed.
//
// When the font size at restore time matches the font size at save time the
// saved in-window page is still meaningful and is reused directly. When the
// font size differs the page layout has reflowed, so the only
// location-stable coordinate is the character offset, which the rendering
// surface translates into the correct new page.
package restore

import (
	"errors"
	"math"

	"github.com/jackzampolin/folio/internal/windowing"
)

// FontSizeEpsilon is the font-size delta below which the saved in-page
// index is trusted, in the same units as the font size itself.
const FontSizeEpsilon = 0.1

// previewSentinel is returned by PreviewText for empty page content.
const previewSentinel = "No preview available"

// DefaultPreviewRunes caps preview extraction length.
const DefaultPreviewRunes = 120

// ErrMissingCallback indicates Restore was invoked without the callbacks
// the chosen strategy requires.
var ErrMissingCallback = errors.New("restore: missing callback")

// Strategy identifies which coordinate a restoration used.
type Strategy string

const (
	// StrategyInPage restored via the saved in-window page index.
	StrategyInPage Strategy = "in_page"

	// StrategyCharOffset restored via the saved character offset.
	StrategyCharOffset Strategy = "char_offset"
)

// SavedPosition is a previously persisted reading position. It is produced
// by the position repository and consumed once here; this package never
// mutates or persists it.
type SavedPosition struct {
	Chapter    windowing.ChapterIndex
	InPage     int
	CharOffset int

	// FontSize is the rendering font size at the time the position
	// was saved.
	FontSize float64
}

// Callbacks are the navigation actions Restore can invoke.
// NavigateToChapter is always called; exactly one of NavigateToInPage or
// ScrollToCharOffset follows, never both.
type Callbacks struct {
	NavigateToChapter  func(c windowing.ChapterIndex)
	NavigateToInPage   func(inPage int)
	ScrollToCharOffset func(offset int)
}

// Restore applies pos given the current font size and reports the strategy
// it used.
func Restore(pos SavedPosition, currentFontSize float64, cb Callbacks) (Strategy, error) {
	if cb.NavigateToChapter == nil {
		return "", ErrMissingCallback
	}

	delta := math.Abs(currentFontSize - pos.FontSize)
	if delta < FontSizeEpsilon {
		if cb.NavigateToInPage == nil {
			return "", ErrMissingCallback
		}
		cb.NavigateToChapter(pos.Chapter)
		cb.NavigateToInPage(pos.InPage)
		return StrategyInPage, nil
	}

	if cb.ScrollToCharOffset == nil {
		return "", ErrMissingCallback
	}
	cb.NavigateToChapter(pos.Chapter)
	cb.ScrollToCharOffset(pos.CharOffset)
	return StrategyCharOffset, nil
}

// PreviewText extracts up to maxRunes runes of page content for display in
// saved-position listings. Empty content yields a fixed sentinel rather
// than an error. maxRunes <= 0 selects DefaultPreviewRunes.
func PreviewText(pageContent string, maxRunes int) string {
	if pageContent == "" {
		return previewSentinel
	}
	if maxRunes <= 0 {
		maxRunes = DefaultPreviewRunes
	}
	runes := []rune(pageContent)
	if len(runes) <= maxRunes {
		return pageContent
	}
	return string(runes[:maxRunes])
}
