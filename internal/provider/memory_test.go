package provider

import (
	"context"
	"sync"
	"testing"
)

// Providers are read from background window materialization alongside
// foreground chapter loads, so concurrent ChapterContent calls must be safe.
func TestMemoryConcurrentReads(t *testing.T) {
	m := NewMemory(10)
	ctx := context.Background()

	const readers = 8
	const rounds = 50

	var wg sync.WaitGroup
	for r := 0; r < readers; r++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < rounds; i++ {
				if _, err := m.ChapterContent(ctx, i%10); err != nil {
					t.Errorf("chapter read failed: %v", err)
					return
				}
			}
		}()
	}
	wg.Wait()

	total := 0
	for i := 0; i < 10; i++ {
		total += m.Calls(i)
	}
	if total != readers*rounds {
		t.Errorf("expected %d recorded calls, got %d", readers*rounds, total)
	}
}
