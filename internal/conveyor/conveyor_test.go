package conveyor

import (
	"context"
	"fmt"
	"sync"
	"testing"

	"github.com/jackzampolin/folio/internal/windowing"
)

// stubAssembler materializes windows synchronously and can be made to fail
// or block per window.
type stubAssembler struct {
	mu      sync.Mutex
	calls   map[windowing.WindowIndex]int
	failAll bool
	block   chan struct{} // when set, AssembleWindow waits on it
}

func newStubAssembler() *stubAssembler {
	return &stubAssembler{calls: make(map[windowing.WindowIndex]int)}
}

func (s *stubAssembler) CanAssemble(w windowing.WindowIndex, first, last windowing.ChapterIndex) bool {
	return w >= 0 && first <= last
}

func (s *stubAssembler) AssembleWindow(ctx context.Context, w windowing.WindowIndex, first, last windowing.ChapterIndex) (*WindowData, error) {
	if s.block != nil {
		select {
		case <-s.block:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	s.mu.Lock()
	s.calls[w]++
	fail := s.failAll
	s.mu.Unlock()
	if fail {
		return nil, fmt.Errorf("assembly failed for window %d", w)
	}
	return &WindowData{
		Window:       w,
		FirstChapter: first,
		LastChapter:  last,
		HTML:         fmt.Sprintf("<div>window %d</div>", w),
	}, nil
}

func newTestConveyor(t *testing.T, totalChapters, perWindow int) (*Conveyor, *stubAssembler) {
	t.Helper()
	ix, err := windowing.NewIndexer(totalChapters, perWindow)
	if err != nil {
		t.Fatalf("failed to create indexer: %v", err)
	}
	asm := newStubAssembler()
	c, err := New(Config{Indexer: ix, Assembler: asm})
	if err != nil {
		t.Fatalf("failed to create conveyor: %v", err)
	}
	return c, asm
}

func assertBuffer(t *testing.T, c *Conveyor, want ...windowing.WindowIndex) {
	t.Helper()
	got := c.Buffer()
	if len(got) != len(want) {
		t.Fatalf("buffer %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("buffer %v, want %v", got, want)
		}
	}
}

func TestConveyor_Initialize(t *testing.T) {
	ctx := context.Background()

	t.Run("buffer at start of book", func(t *testing.T) {
		c, _ := newTestConveyor(t, 120, 5) // 24 windows
		if err := c.Initialize(ctx, 0); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		c.WaitIdle()
		assertBuffer(t, c, 0, 1, 2, 3, 4)
		if c.Phase() != PhaseStartup {
			t.Errorf("expected startup phase, got %s", c.Phase())
		}
		for _, w := range c.Buffer() {
			if _, ok := c.CachedWindow(w); !ok {
				t.Errorf("window %d not materialized after preload", w)
			}
		}
	})

	t.Run("start clamped at book end", func(t *testing.T) {
		c, _ := newTestConveyor(t, 120, 5)
		if err := c.Initialize(ctx, 23); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		c.WaitIdle()
		assertBuffer(t, c, 19, 20, 21, 22, 23)
	})

	t.Run("small book buffers every window", func(t *testing.T) {
		c, _ := newTestConveyor(t, 12, 5) // 3 windows
		if err := c.Initialize(ctx, 0); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		c.WaitIdle()
		assertBuffer(t, c, 0, 1, 2)
	})

	t.Run("empty book fails", func(t *testing.T) {
		c, _ := newTestConveyor(t, 0, 5)
		if err := c.Initialize(ctx, 0); err == nil {
			t.Error("expected error for a document with no windows")
		}
	})
}

func TestConveyor_PhaseTransition(t *testing.T) {
	ctx := context.Background()
	c, _ := newTestConveyor(t, 120, 5)
	if err := c.Initialize(ctx, 0); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	c.WaitIdle()

	t.Run("entering non-center windows keeps startup", func(t *testing.T) {
		c.OnEnteredWindow(0)
		c.OnEnteredWindow(1)
		if c.Phase() != PhaseStartup {
			t.Errorf("expected startup, got %s", c.Phase())
		}
	})

	t.Run("center entry goes steady", func(t *testing.T) {
		c.OnEnteredWindow(2)
		if c.Phase() != PhaseSteady {
			t.Errorf("expected steady, got %s", c.Phase())
		}
	})

	t.Run("transition is one way and idempotent", func(t *testing.T) {
		// Re-entering the center (or anything else) never reverts.
		c.OnEnteredWindow(2)
		c.OnEnteredWindow(0)
		c.OnEnteredWindow(2)
		if c.Phase() != PhaseSteady {
			t.Errorf("expected steady after re-entries, got %s", c.Phase())
		}
	})
}

func TestConveyor_ShiftGuards(t *testing.T) {
	ctx := context.Background()

	t.Run("shifts disabled during startup", func(t *testing.T) {
		c, _ := newTestConveyor(t, 120, 5)
		if err := c.Initialize(ctx, 0); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		c.WaitIdle()

		if c.ShiftForward(ctx) {
			t.Error("ShiftForward must be a no-op during startup")
		}
		if c.ShiftBackward(ctx) {
			t.Error("ShiftBackward must be a no-op during startup")
		}
		assertBuffer(t, c, 0, 1, 2, 3, 4)
	})

	t.Run("backward blocked at book start", func(t *testing.T) {
		c, _ := newTestConveyor(t, 120, 5)
		if err := c.Initialize(ctx, 0); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		c.WaitIdle()
		c.OnEnteredWindow(2)

		if c.ShiftBackward(ctx) {
			t.Error("ShiftBackward must fail when buffer starts at window 0")
		}
		assertBuffer(t, c, 0, 1, 2, 3, 4)
	})

	t.Run("forward blocked at book end", func(t *testing.T) {
		c, _ := newTestConveyor(t, 120, 5)
		if err := c.Initialize(ctx, 23); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		c.WaitIdle()
		c.OnEnteredWindow(21) // center of [19..23]

		if c.ShiftForward(ctx) {
			t.Error("ShiftForward must fail when buffer ends at the last window")
		}
		assertBuffer(t, c, 19, 20, 21, 22, 23)
	})
}

// TestConveyor_EndToEnd walks the 120-chapter scenario: 24 windows, buffer
// [0..4], steady after entering window 2, then three forward shifts.
func TestConveyor_EndToEnd(t *testing.T) {
	ctx := context.Background()
	c, _ := newTestConveyor(t, 120, 5)
	if err := c.Initialize(ctx, 0); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	c.WaitIdle()
	assertBuffer(t, c, 0, 1, 2, 3, 4)

	c.OnEnteredWindow(2)
	if c.Phase() != PhaseSteady {
		t.Fatalf("expected steady, got %s", c.Phase())
	}

	wantBuffers := [][]windowing.WindowIndex{
		{1, 2, 3, 4, 5},
		{2, 3, 4, 5, 6},
		{3, 4, 5, 6, 7},
	}
	for i, want := range wantBuffers {
		dropped := c.Buffer()[0]
		if !c.ShiftForward(ctx) {
			t.Fatalf("shift %d failed", i+1)
		}
		c.WaitIdle()
		assertBuffer(t, c, want...)

		// The dropped window's cache entry is evicted synchronously.
		if _, ok := c.CachedWindow(dropped); ok {
			t.Errorf("shift %d: window %d still cached after drop", i+1, dropped)
		}
		// The incoming window is materialized.
		incoming := want[len(want)-1]
		if _, ok := c.CachedWindow(incoming); !ok {
			t.Errorf("shift %d: window %d not materialized", i+1, incoming)
		}
	}

	// And back again.
	if !c.ShiftBackward(ctx) {
		t.Fatal("backward shift failed")
	}
	c.WaitIdle()
	assertBuffer(t, c, 2, 3, 4, 5, 6)
	if _, ok := c.CachedWindow(7); ok {
		t.Error("window 7 still cached after backward shift dropped it")
	}
}

func TestConveyor_CachedWindowDuringMaterialization(t *testing.T) {
	ctx := context.Background()
	c, asm := newTestConveyor(t, 120, 5)
	asm.block = make(chan struct{})

	if err := c.Initialize(ctx, 0); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	// Materialization is blocked: every lookup must miss, never return a
	// partial result.
	for _, w := range c.Buffer() {
		if _, ok := c.CachedWindow(w); ok {
			t.Errorf("window %d cached before materialization finished", w)
		}
	}

	close(asm.block)
	c.WaitIdle()
	for _, w := range c.Buffer() {
		if _, ok := c.CachedWindow(w); !ok {
			t.Errorf("window %d missing after materialization", w)
		}
	}
}

func TestConveyor_StaleMaterializationDiscarded(t *testing.T) {
	ctx := context.Background()
	c, asm := newTestConveyor(t, 120, 5)
	asm.block = make(chan struct{})

	if err := c.Initialize(ctx, 0); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	// Clear while the initial preload is still in flight, then release it.
	c.Clear()
	close(asm.block)
	c.WaitIdle()

	for w := windowing.WindowIndex(0); w < 5; w++ {
		if _, ok := c.CachedWindow(w); ok {
			t.Errorf("stale materialization for window %d inserted after Clear", w)
		}
	}
	if len(c.Buffer()) != 0 {
		t.Errorf("buffer not empty after Clear: %v", c.Buffer())
	}
	if c.Phase() != PhaseStartup {
		t.Errorf("expected startup after Clear, got %s", c.Phase())
	}
}

func TestConveyor_FailedMaterializationLeavesSlotEmpty(t *testing.T) {
	ctx := context.Background()
	c, asm := newTestConveyor(t, 120, 5)
	asm.failAll = true

	if err := c.Initialize(ctx, 0); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	c.WaitIdle()

	// Buffer intact, caches empty: the failure poisons nothing.
	assertBuffer(t, c, 0, 1, 2, 3, 4)
	for _, w := range c.Buffer() {
		if _, ok := c.CachedWindow(w); ok {
			t.Errorf("window %d cached despite assembly failure", w)
		}
	}
}

// TestConveyor_BufferInvariant shifts back and forth and checks that the
// buffer stays min(5, windowCount) wide, contiguous, and ascending.
func TestConveyor_BufferInvariant(t *testing.T) {
	ctx := context.Background()
	c, _ := newTestConveyor(t, 62, 5) // 13 windows
	if err := c.Initialize(ctx, 4); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	c.WaitIdle()
	c.OnEnteredWindow(c.Buffer()[2])

	moves := []bool{true, true, false, true, false, false, false, true, false, false, false, false}
	for i, forward := range moves {
		if forward {
			c.ShiftForward(ctx)
		} else {
			c.ShiftBackward(ctx)
		}
		buf := c.Buffer()
		if len(buf) != 5 {
			t.Fatalf("move %d: buffer width %d, want 5", i, len(buf))
		}
		for j := 1; j < len(buf); j++ {
			if buf[j] != buf[j-1]+1 {
				t.Fatalf("move %d: buffer not contiguous: %v", i, buf)
			}
		}
		if buf[0] < 0 || int(buf[4]) > 12 {
			t.Fatalf("move %d: buffer out of bounds: %v", i, buf)
		}
	}
	c.WaitIdle()
}
