// Package conveyor manages the bounded buffer of materialized rendering
// windows: a deque of up to five contiguous window indices plus a cache of
// assembled window content.
//
// The conveyor has two phases. During startup the buffer is filling its
// lookahead and shifting is disabled; once the reader reaches the buffer's
// center slot the conveyor goes steady and single-window shifts drop one
// edge window and materialize the opposite neighbor. The startup-to-steady
// transition happens exactly once per Initialize.
package conveyor

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/avast/retry-go/v4"

	"github.com/jackzampolin/folio/internal/windowing"
)

// ErrNotInitialized is returned by shifts before Initialize.
var ErrNotInitialized = errors.New("conveyor: not initialized")

// DefaultBufferSize is the number of windows kept materialized.
const DefaultBufferSize = 5

// materializeAttempts bounds retries for a failing window assembly.
const materializeAttempts = 3

// Phase is the conveyor lifecycle phase.
type Phase string

const (
	// PhaseStartup means the buffer is still establishing lookahead;
	// shifting is disabled.
	PhaseStartup Phase = "startup"

	// PhaseSteady means the reader reached the buffer center and the
	// belt may move.
	PhaseSteady Phase = "steady"
)

// WindowData is the materialized content of one window.
type WindowData struct {
	Window       windowing.WindowIndex
	FirstChapter windowing.ChapterIndex
	LastChapter  windowing.ChapterIndex
	HTML         string
}

// Assembler turns a chapter range into renderable window content.
//
// AssembleWindow returns (nil, nil) for a well-formed range that is out of
// bounds; it only errors on actual assembly failures. Implementations are
// called from background goroutines and must be safe for concurrent use.
type Assembler interface {
	CanAssemble(w windowing.WindowIndex, first, last windowing.ChapterIndex) bool
	AssembleWindow(ctx context.Context, w windowing.WindowIndex, first, last windowing.ChapterIndex) (*WindowData, error)
}

// Config configures a Conveyor.
type Config struct {
	Indexer   *windowing.Indexer
	Assembler Assembler

	// BufferSize overrides the number of buffered windows (default 5).
	BufferSize int

	// Logger for lifecycle events. Defaults to slog.Default().
	Logger *slog.Logger
}

// Conveyor owns the window buffer and its materialization lifecycle.
// All public methods are safe for concurrent use.
type Conveyor struct {
	indexer *windowing.Indexer
	asm     Assembler
	logger  *slog.Logger
	size    int

	mu     sync.Mutex
	buffer []windowing.WindowIndex
	cache  map[windowing.WindowIndex]*WindowData
	phase  Phase
	active windowing.WindowIndex

	// generation tags in-flight materializations; results from a previous
	// generation (pre-Clear or pre-reInitialize) are discarded rather than
	// inserted into a buffer they no longer belong to.
	generation uint64

	inflight sync.WaitGroup
}

// New creates a Conveyor. Call Initialize before use.
func New(cfg Config) (*Conveyor, error) {
	if cfg.Indexer == nil {
		return nil, fmt.Errorf("conveyor: indexer is required")
	}
	if cfg.Assembler == nil {
		return nil, fmt.Errorf("conveyor: assembler is required")
	}
	size := cfg.BufferSize
	if size <= 0 {
		size = DefaultBufferSize
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Conveyor{
		indexer: cfg.Indexer,
		asm:     cfg.Assembler,
		logger:  logger.With("component", "conveyor"),
		size:    size,
		cache:   make(map[windowing.WindowIndex]*WindowData),
		phase:   PhaseStartup,
		active:  -1,
	}, nil
}

// Initialize builds the buffer around startWindow and preloads every
// buffered window asynchronously. The start is clamped so the buffer never
// runs off either end of the book.
func (c *Conveyor) Initialize(ctx context.Context, startWindow windowing.WindowIndex) error {
	windowCount := c.indexer.WindowCount()
	if windowCount == 0 {
		return fmt.Errorf("%w: document has no windows", windowing.ErrInvalidConfig)
	}

	width := c.size
	if windowCount < width {
		width = windowCount
	}
	start := int(startWindow)
	if start > windowCount-width {
		start = windowCount - width
	}
	if start < 0 {
		start = 0
	}

	c.mu.Lock()
	c.generation++
	gen := c.generation
	c.phase = PhaseStartup
	c.active = -1
	c.buffer = c.buffer[:0]
	c.cache = make(map[windowing.WindowIndex]*WindowData)
	for i := 0; i < width; i++ {
		c.buffer = append(c.buffer, windowing.WindowIndex(start+i))
	}
	toLoad := append([]windowing.WindowIndex(nil), c.buffer...)
	c.mu.Unlock()

	c.logger.Info("buffer initialized",
		"start", start, "width", width, "windows", windowCount)

	for _, w := range toLoad {
		c.materializeAsync(ctx, gen, w)
	}
	return nil
}

// OnEnteredWindow records the reader's active window. Entering the buffer's
// center slot during startup moves the conveyor to steady exactly once;
// later re-entries are no-ops.
func (c *Conveyor) OnEnteredWindow(w windowing.WindowIndex) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.active = w
	if c.phase != PhaseStartup || len(c.buffer) == 0 {
		return
	}
	if w == c.buffer[len(c.buffer)/2] {
		c.phase = PhaseSteady
		c.logger.Info("lookahead established, conveyor steady", "window", int(w))
	}
}

// ShiftForward drops the buffer's first window and appends the next window
// past its end, materializing it in the background. Returns false without
// touching the buffer during startup or when the buffer already ends at the
// book's last window.
func (c *Conveyor) ShiftForward(ctx context.Context) bool {
	c.mu.Lock()
	if c.phase != PhaseSteady || len(c.buffer) == 0 {
		c.mu.Unlock()
		return false
	}
	last := c.buffer[len(c.buffer)-1]
	if int(last) >= c.indexer.WindowCount()-1 {
		c.mu.Unlock()
		return false
	}

	dropped := c.buffer[0]
	incoming := last + 1
	c.buffer = append(c.buffer[1:], incoming)
	delete(c.cache, dropped)
	gen := c.generation
	c.mu.Unlock()

	c.logger.Debug("shifted forward", "dropped", int(dropped), "loading", int(incoming))
	c.materializeAsync(ctx, gen, incoming)
	return true
}

// ShiftBackward is the mirror of ShiftForward at the opposite edge.
func (c *Conveyor) ShiftBackward(ctx context.Context) bool {
	c.mu.Lock()
	if c.phase != PhaseSteady || len(c.buffer) == 0 {
		c.mu.Unlock()
		return false
	}
	first := c.buffer[0]
	if first <= 0 {
		c.mu.Unlock()
		return false
	}

	dropped := c.buffer[len(c.buffer)-1]
	incoming := first - 1
	c.buffer = append([]windowing.WindowIndex{incoming}, c.buffer[:len(c.buffer)-1]...)
	delete(c.cache, dropped)
	gen := c.generation
	c.mu.Unlock()

	c.logger.Debug("shifted backward", "dropped", int(dropped), "loading", int(incoming))
	c.materializeAsync(ctx, gen, incoming)
	return true
}

// CachedWindow returns the materialized content for window w. The boolean
// is false for windows outside the buffer and for buffered windows whose
// materialization has not finished; callers poll rather than assume
// synchronous availability.
func (c *Conveyor) CachedWindow(w windowing.WindowIndex) (*WindowData, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	data, ok := c.cache[w]
	return data, ok
}

// InBuffer reports whether window w is currently buffered.
func (c *Conveyor) InBuffer(w windowing.WindowIndex) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.inBufferLocked(w)
}

// Buffer returns a copy of the buffered window indices in order.
func (c *Conveyor) Buffer() []windowing.WindowIndex {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]windowing.WindowIndex(nil), c.buffer...)
}

// Phase returns the current lifecycle phase.
func (c *Conveyor) Phase() Phase {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.phase
}

// ActiveWindow returns the window last reported via OnEnteredWindow,
// or -1 before the first report.
func (c *Conveyor) ActiveWindow() windowing.WindowIndex {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.active
}

// Clear resets buffer, cache, and phase to the pre-Initialize state.
// In-flight materializations from before the clear are discarded when they
// complete.
func (c *Conveyor) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.generation++
	c.buffer = nil
	c.cache = make(map[windowing.WindowIndex]*WindowData)
	c.phase = PhaseStartup
	c.active = -1
	c.logger.Debug("buffer cleared")
}

// WaitIdle blocks until all in-flight materializations have completed.
// Used on session shutdown and by tests that need deterministic cache state.
func (c *Conveyor) WaitIdle() {
	c.inflight.Wait()
}

// materializeAsync assembles window w in the background and inserts the
// result into the cache, unless the conveyor moved on (generation changed
// or the window left the buffer) while the assembly was running.
func (c *Conveyor) materializeAsync(ctx context.Context, gen uint64, w windowing.WindowIndex) {
	c.inflight.Add(1)
	go func() {
		defer c.inflight.Done()

		data, err := c.materialize(ctx, w)
		if err != nil {
			// Leave the slot empty; a later shift or re-entry retries.
			c.logger.Warn("window materialization failed", "window", int(w), "error", err)
			return
		}
		if data == nil {
			c.logger.Debug("window out of range, nothing to materialize", "window", int(w))
			return
		}

		c.mu.Lock()
		defer c.mu.Unlock()
		if gen != c.generation || !c.inBufferLocked(w) {
			c.logger.Debug("discarding stale materialization", "window", int(w))
			return
		}
		c.cache[w] = data
	}()
}

// materialize resolves the window's chapter range and runs the assembler
// with bounded retries.
func (c *Conveyor) materialize(ctx context.Context, w windowing.WindowIndex) (*WindowData, error) {
	r, err := c.indexer.RangeForWindow(w)
	if err != nil {
		return nil, err
	}
	if !c.asm.CanAssemble(w, r.FirstChapter, r.LastChapter) {
		return nil, nil
	}

	return retry.DoWithData(
		func() (*WindowData, error) {
			return c.asm.AssembleWindow(ctx, w, r.FirstChapter, r.LastChapter)
		},
		retry.Context(ctx),
		retry.Attempts(materializeAttempts),
		retry.Delay(50*time.Millisecond),
		retry.LastErrorOnly(true),
	)
}

func (c *Conveyor) inBufferLocked(w windowing.WindowIndex) bool {
	for _, b := range c.buffer {
		if b == w {
			return true
		}
	}
	return false
}
