package capabilities

import (
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDedupStoreSuppressesRepeats(t *testing.T) {
	store := newDedupStore(16)

	assert.True(t, store.shouldReport(21, 1234), "first sighting reports")
	assert.False(t, store.shouldReport(21, 1234), "repeat is suppressed")
	assert.False(t, store.shouldReport(21, 1234))

	assert.True(t, store.shouldReport(12, 1234), "different capability is a new pair")
	assert.True(t, store.shouldReport(21, 5678), "different discriminator is a new pair")
	assert.Equal(t, int64(3), store.len())
}

func TestDedupStoreFailsOpenWhenFull(t *testing.T) {
	store := newDedupStore(4)

	for i := int32(0); i < 4; i++ {
		assert.True(t, store.shouldReport(i, 100))
	}
	assert.Equal(t, int64(4), store.len())

	// New pairs no longer fit, so they keep reporting.
	assert.True(t, store.shouldReport(99, 100))
	assert.True(t, store.shouldReport(99, 100))
	assert.Equal(t, int64(4), store.len(), "full store stops growing")

	// Pairs stored before the store filled stay suppressed.
	assert.False(t, store.shouldReport(0, 100))
}

func TestDedupStoreDefaultCapacity(t *testing.T) {
	store := newDedupStore(0)
	assert.Equal(t, int64(dedupCapacity), store.capacity)
}

func TestDedupStoreConcurrent(t *testing.T) {
	store := newDedupStore(1024)

	const goroutines = 8
	const perGoroutine = 200

	var reported atomic.Int64
	var wg sync.WaitGroup
	for g := 0; g < goroutines; g++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < perGoroutine; i++ {
				if store.shouldReport(int32(i%50), uint64(i/50)) {
					reported.Add(1)
				}
			}
		}()
	}
	wg.Wait()

	// 50 caps x 4 discriminators distinct pairs; each reported at
	// most once because LoadOrStore arbitrates racing inserts.
	assert.Equal(t, int64(200), reported.Load())
	assert.Equal(t, int64(200), store.len())
}
