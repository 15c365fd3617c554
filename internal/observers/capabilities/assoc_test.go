package capabilities

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAssocCacheFirstWriteWins(t *testing.T) {
	cache := &assocCache{}

	_, ok := cache.lookup(1234)
	assert.False(t, ok, "empty cache should not match")

	assert.True(t, cache.associate(1234, 777))
	assert.False(t, cache.associate(1234, 888), "second insert is a no-op")

	cgroupID, ok := cache.lookup(1234)
	require.True(t, ok)
	assert.Equal(t, uint64(777), cgroupID, "first association must stick")
}

func TestAssocCacheLookupWrongTGID(t *testing.T) {
	cache := &assocCache{}
	cache.associate(1234, 777)

	_, ok := cache.lookup(9999)
	assert.False(t, ok)
}

func TestAssocCacheConcurrentInsert(t *testing.T) {
	cache := &assocCache{}

	const writers = 16
	var wg sync.WaitGroup
	wins := make(chan uint64, writers)

	for i := 0; i < writers; i++ {
		wg.Add(1)
		go func(cgroupID uint64) {
			defer wg.Done()
			if cache.associate(1234, cgroupID) {
				wins <- cgroupID
			}
		}(uint64(1000 + i))
	}
	wg.Wait()
	close(wins)

	var winners []uint64
	for w := range wins {
		winners = append(winners, w)
	}
	require.Len(t, winners, 1, "exactly one writer should win")

	cgroupID, ok := cache.lookup(1234)
	require.True(t, ok)
	assert.Equal(t, winners[0], cgroupID, "cache must hold the winner's value")
}
