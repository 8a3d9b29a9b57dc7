// ABOUTME: Tests for the startup hook adapter
// ABOUTME: Verifies 1:1 mapping to bus appends, concurrency and single completion

package startup

import (
	"fmt"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/2389/bootwatch/internal/progress"
)

func TestHook_ForwardsComponentsInOrder(t *testing.T) {
	bus := progress.NewBus(nil)
	h := NewHook(bus, nil)

	h.OnComponentInitialized("db")
	h.OnComponentInitialized("cache")
	h.OnAllComponentsInitialized()

	assert.Equal(t, []progress.Event{
		{Name: "db", Seq: 1},
		{Name: "cache", Seq: 2},
	}, bus.Events())
	assert.True(t, bus.Completed())
}

func TestHook_CompletesOnce(t *testing.T) {
	bus := progress.NewBus(nil)
	h := NewHook(bus, nil)

	var completions atomic.Int32
	bus.OnComplete(func() { completions.Add(1) })

	var wg sync.WaitGroup
	for range 10 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			h.OnAllComponentsInitialized()
		}()
	}
	wg.Wait()

	assert.Equal(t, int32(1), completions.Load())
}

func TestHook_LateComponentIsIgnored(t *testing.T) {
	bus := progress.NewBus(nil)
	h := NewHook(bus, nil)

	h.OnComponentInitialized("db")
	h.OnAllComponentsInitialized()
	h.OnComponentInitialized("late")

	assert.Len(t, bus.Events(), 1)
}

func TestHook_ConcurrentInitializers(t *testing.T) {
	bus := progress.NewBus(nil)
	h := NewHook(bus, nil)

	const workers, perWorker = 4, 25
	var wg sync.WaitGroup
	for w := range workers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := range perWorker {
				h.OnComponentInitialized(fmt.Sprintf("w%d-c%d", w, i))
			}
		}()
	}
	wg.Wait()
	h.OnAllComponentsInitialized()

	events := bus.Events()
	assert.Len(t, events, workers*perWorker)

	seen := make(map[string]bool, len(events))
	for i, ev := range events {
		assert.Equal(t, uint64(i+1), ev.Seq)
		assert.False(t, seen[ev.Name], "duplicate %s", ev.Name)
		seen[ev.Name] = true
	}
}
