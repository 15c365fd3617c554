package capabilities

import (
	"sync"
	"sync/atomic"
)

// dedupKey identifies one capability check for uniqueness purposes.
// The discriminator is a TGID or a cgroup id depending on the mode.
type dedupKey struct {
	cap           int32
	discriminator uint64
}

// dedupStore suppresses repeat reports of the same (capability,
// discriminator) pair. It is bounded: once capacity keys are stored,
// new pairs are no longer suppressed and keep reporting. That is the
// same fail-open behavior as the BPF map, which drops inserts when
// full. The capacity check happens before the insert, so concurrent
// inserts of distinct keys can overshoot capacity by a few entries.
type dedupStore struct {
	seen     sync.Map
	size     atomic.Int64
	capacity int64
}

func newDedupStore(capacity int64) *dedupStore {
	if capacity <= 0 {
		capacity = dedupCapacity
	}
	return &dedupStore{capacity: capacity}
}

// shouldReport returns true the first time a pair is seen, false on
// repeats. When the store is full, unknown pairs always report.
func (d *dedupStore) shouldReport(cap int32, discriminator uint64) bool {
	key := dedupKey{cap: cap, discriminator: discriminator}
	if _, ok := d.seen.Load(key); ok {
		return false
	}
	if d.size.Load() >= d.capacity {
		// Full store: the insert silently fails, the event reports.
		return true
	}
	if _, loaded := d.seen.LoadOrStore(key, struct{}{}); loaded {
		return false
	}
	d.size.Add(1)
	return true
}

// len returns the number of stored keys.
func (d *dedupStore) len() int64 {
	return d.size.Load()
}
