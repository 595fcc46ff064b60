package windowing

import (
	"errors"
	"testing"
)

func TestNewIndexer(t *testing.T) {
	t.Run("valid config", func(t *testing.T) {
		ix, err := NewIndexer(62, 5)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if ix.TotalChapters() != 62 {
			t.Errorf("expected 62 chapters, got %d", ix.TotalChapters())
		}
		if ix.ChaptersPerWindow() != 5 {
			t.Errorf("expected window size 5, got %d", ix.ChaptersPerWindow())
		}
	})

	t.Run("zero window size", func(t *testing.T) {
		if _, err := NewIndexer(10, 0); !errors.Is(err, ErrInvalidConfig) {
			t.Errorf("expected ErrInvalidConfig, got %v", err)
		}
	})

	t.Run("negative window size", func(t *testing.T) {
		if _, err := NewIndexer(10, -3); !errors.Is(err, ErrInvalidConfig) {
			t.Errorf("expected ErrInvalidConfig, got %v", err)
		}
	})

	t.Run("negative chapter count", func(t *testing.T) {
		if _, err := NewIndexer(-1, 5); !errors.Is(err, ErrInvalidConfig) {
			t.Errorf("expected ErrInvalidConfig, got %v", err)
		}
	})
}

func TestIndexer_WindowCount(t *testing.T) {
	tests := []struct {
		name              string
		totalChapters     int
		chaptersPerWindow int
		want              int
	}{
		{"empty document", 0, 5, 0},
		{"single chapter", 1, 5, 1},
		{"exact multiple", 60, 5, 12},
		{"partial last window", 62, 5, 13},
		{"window larger than book", 3, 10, 1},
		{"window size one", 7, 1, 7},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ix, err := NewIndexer(tt.totalChapters, tt.chaptersPerWindow)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if got := ix.WindowCount(); got != tt.want {
				t.Errorf("WindowCount() = %d, want %d", got, tt.want)
			}
		})
	}
}

func TestIndexer_WindowForChapter(t *testing.T) {
	ix, err := NewIndexer(62, 5)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	t.Run("negative chapter fails", func(t *testing.T) {
		if _, err := ix.WindowForChapter(-1); !errors.Is(err, ErrInvalidIndex) {
			t.Errorf("expected ErrInvalidIndex, got %v", err)
		}
	})

	t.Run("not clamped beyond last window", func(t *testing.T) {
		// Chapter 100 is past the end of the book; the indexer reports
		// the arithmetic window and leaves bounds checking to the caller.
		w, err := ix.WindowForChapter(100)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if w != 20 {
			t.Errorf("expected window 20, got %d", w)
		}
	})

	tests := []struct {
		chapter ChapterIndex
		want    WindowIndex
	}{
		{0, 0},
		{4, 0},
		{5, 1},
		{59, 11},
		{60, 12},
		{61, 12},
	}
	for _, tt := range tests {
		w, err := ix.WindowForChapter(tt.chapter)
		if err != nil {
			t.Fatalf("WindowForChapter(%d): unexpected error: %v", tt.chapter, err)
		}
		if w != tt.want {
			t.Errorf("WindowForChapter(%d) = %d, want %d", tt.chapter, w, tt.want)
		}
	}
}

func TestIndexer_RangeForWindow(t *testing.T) {
	ix, err := NewIndexer(62, 5)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	t.Run("negative window fails", func(t *testing.T) {
		if _, err := ix.RangeForWindow(-2); !errors.Is(err, ErrInvalidIndex) {
			t.Errorf("expected ErrInvalidIndex, got %v", err)
		}
	})

	t.Run("full window", func(t *testing.T) {
		r, err := ix.RangeForWindow(0)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if r.FirstChapter != 0 || r.LastChapter != 4 {
			t.Errorf("expected range 0..4, got %d..%d", r.FirstChapter, r.LastChapter)
		}
		if r.Size() != 5 {
			t.Errorf("expected size 5, got %d", r.Size())
		}
	})

	t.Run("partial last window", func(t *testing.T) {
		// 62 chapters at 5 per window leaves a trailing window of 2.
		r, err := ix.RangeForWindow(12)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if r.FirstChapter != 60 || r.LastChapter != 61 {
			t.Errorf("expected range 60..61, got %d..%d", r.FirstChapter, r.LastChapter)
		}
		if r.Size() != 2 {
			t.Errorf("expected size 2, got %d", r.Size())
		}
	})
}

// TestIndexer_Partition verifies that windows partition the chapter space
// exactly: no gaps, no overlap, every chapter covered once.
func TestIndexer_Partition(t *testing.T) {
	configs := []struct{ total, perWindow int }{
		{0, 5}, {1, 5}, {5, 5}, {62, 5}, {120, 5}, {17, 3}, {100, 7}, {9, 1},
	}

	for _, cfg := range configs {
		ix, err := NewIndexer(cfg.total, cfg.perWindow)
		if err != nil {
			t.Fatalf("NewIndexer(%d, %d): %v", cfg.total, cfg.perWindow, err)
		}

		covered := 0
		prevLast := ChapterIndex(-1)
		for w := 0; w < ix.WindowCount(); w++ {
			r, err := ix.RangeForWindow(WindowIndex(w))
			if err != nil {
				t.Fatalf("RangeForWindow(%d): %v", w, err)
			}
			if r.FirstChapter != prevLast+1 {
				t.Errorf("(%d,%d) window %d: first chapter %d, expected %d",
					cfg.total, cfg.perWindow, w, r.FirstChapter, prevLast+1)
			}
			if r.LastChapter < r.FirstChapter {
				t.Errorf("(%d,%d) window %d: inverted range %d..%d",
					cfg.total, cfg.perWindow, w, r.FirstChapter, r.LastChapter)
			}
			covered += r.Size()
			prevLast = r.LastChapter
		}
		if covered != cfg.total {
			t.Errorf("(%d,%d): windows cover %d chapters, want %d",
				cfg.total, cfg.perWindow, covered, cfg.total)
		}
	}
}

// TestIndexer_RoundTrip verifies windowForChapter(rangeForWindow(w).first) == w.
func TestIndexer_RoundTrip(t *testing.T) {
	ix, err := NewIndexer(120, 5)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	for w := 0; w < ix.WindowCount(); w++ {
		r, err := ix.RangeForWindow(WindowIndex(w))
		if err != nil {
			t.Fatalf("RangeForWindow(%d): %v", w, err)
		}
		got, err := ix.WindowForChapter(r.FirstChapter)
		if err != nil {
			t.Fatalf("WindowForChapter(%d): %v", r.FirstChapter, err)
		}
		if got != WindowIndex(w) {
			t.Errorf("round trip failed: window %d -> chapter %d -> window %d", w, r.FirstChapter, got)
		}
	}
}

func TestChapterRange_Contains(t *testing.T) {
	r := ChapterRange{Window: 1, FirstChapter: 5, LastChapter: 9}

	for c := ChapterIndex(5); c <= 9; c++ {
		if !r.Contains(c) {
			t.Errorf("expected range to contain chapter %d", c)
		}
	}
	if r.Contains(4) || r.Contains(10) {
		t.Error("range should not contain chapters outside 5..9")
	}
}
