package provider

import (
	"context"
	"fmt"
	"sync"
)

// MemoryChapter is one chapter of an in-memory document.
type MemoryChapter struct {
	Title   string
	Content Content

	// FailParse makes ChapterContent fail with ErrParse. Used to exercise
	// the engine's per-chapter failure isolation.
	FailParse bool
}

// Memory is an in-memory Provider used by tests and fixtures.
// Like every Provider it must tolerate concurrent reads; the call counter
// is the only mutable state and is guarded by mu.
type Memory struct {
	Chapters []MemoryChapter

	mu sync.Mutex

	// ContentCalls counts ChapterContent invocations per chapter index.
	// Read it via Calls when other goroutines may still be fetching.
	ContentCalls map[int]int
}

// NewMemory builds an in-memory document with n chapters of generated text.
func NewMemory(n int) *Memory {
	m := &Memory{ContentCalls: make(map[int]int)}
	for i := 0; i < n; i++ {
		m.Chapters = append(m.Chapters, MemoryChapter{
			Title: fmt.Sprintf("Chapter %d", i+1),
			Content: Content{
				Text: fmt.Sprintf("Text of chapter %d.", i+1),
				HTML: fmt.Sprintf("<p>Text of chapter %d.</p>", i+1),
			},
		})
	}
	return m
}

func (m *Memory) Name() string { return "memory" }

func (m *Memory) ChapterCount(ctx context.Context) (int, error) {
	if len(m.Chapters) == 0 {
		return 0, fmt.Errorf("%w: document has no chapters", ErrParse)
	}
	return len(m.Chapters), nil
}

func (m *Memory) ChapterContent(ctx context.Context, i int) (Content, error) {
	if i < 0 || i >= len(m.Chapters) {
		return Content{}, fmt.Errorf("%w: chapter %d of %d", ErrInvalidChapter, i, len(m.Chapters))
	}
	m.mu.Lock()
	if m.ContentCalls != nil {
		m.ContentCalls[i]++
	}
	m.mu.Unlock()
	if m.Chapters[i].FailParse {
		return Content{}, fmt.Errorf("%w: chapter %d is unreadable", ErrParse, i)
	}
	return m.Chapters[i].Content, nil
}

// Calls returns the ChapterContent invocation count for chapter i.
func (m *Memory) Calls(i int) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.ContentCalls[i]
}

func (m *Memory) TableOfContents(ctx context.Context) ([]TOCEntry, error) {
	entries := make([]TOCEntry, 0, len(m.Chapters))
	for i, ch := range m.Chapters {
		entries = append(entries, TOCEntry{Title: ch.Title, Chapter: i})
	}
	return entries, nil
}

func (m *Memory) Close() error { return nil }
