package capabilities

import "sync/atomic"

// assocCache remembers which cgroup the monitored process group was
// first seen in. It has a single slot: the first writer wins and the
// association never changes while attached, so tracing stays pinned to
// the cgroup the target started in even if its TGID is later recycled.
type assocCache struct {
	slot atomic.Pointer[assocEntry]
}

type assocEntry struct {
	tgid     uint32
	cgroupID uint64
}

// associate records tgid's cgroup if no association exists yet.
// Returns true when this call created the association. Concurrent
// duplicate inserts lose the race and are no-ops.
func (a *assocCache) associate(tgid uint32, cgroupID uint64) bool {
	if a.slot.Load() != nil {
		return false
	}
	return a.slot.CompareAndSwap(nil, &assocEntry{tgid: tgid, cgroupID: cgroupID})
}

// lookup returns the cgroup associated with tgid, if any.
func (a *assocCache) lookup(tgid uint32) (uint64, bool) {
	e := a.slot.Load()
	if e == nil || e.tgid != tgid {
		return 0, false
	}
	return e.cgroupID, true
}
