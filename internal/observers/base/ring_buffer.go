package base

import (
	"sync/atomic"
	"unsafe"

	"github.com/yairfalse/capio/pkg/domain"
	"go.uber.org/zap"
)

// RingBuffer is a bounded, lock-free, single-producer single-consumer
// event ring. The producer is the raw-sample pipeline, the consumer is
// the observer's drain loop. When the ring is full the offered event is
// dropped; the producer never blocks and never signals backpressure.
type RingBuffer struct {
	buffer   []atomic.Pointer[domain.CapabilityEvent]
	capacity uint64
	mask     uint64 // capacity - 1 for fast modulo

	// Position tracking (cache-line aligned)
	_    [64 - unsafe.Sizeof(uint64(0))]byte
	head atomic.Uint64 // next write position

	_    [64 - unsafe.Sizeof(uint64(0))]byte
	tail atomic.Uint64 // next read position

	_        [64 - unsafe.Sizeof(uint64(0))]byte
	dropped  atomic.Uint64
	produced atomic.Uint64
	consumed atomic.Uint64

	logger       *zap.Logger
	observerName string
}

// NewRingBuffer creates a ring with the given capacity, rounded up to
// the next power of two. A zero capacity gets the default of 8192.
func NewRingBuffer(capacity int, observerName string, logger *zap.Logger) *RingBuffer {
	size := uint64(capacity)
	if size == 0 {
		size = 8192
	}
	if size&(size-1) != 0 {
		v := size
		v--
		v |= v >> 1
		v |= v >> 2
		v |= v >> 4
		v |= v >> 8
		v |= v >> 16
		v |= v >> 32
		v++
		size = v
	}

	return &RingBuffer{
		buffer:       make([]atomic.Pointer[domain.CapabilityEvent], size),
		capacity:     size,
		mask:         size - 1,
		logger:       logger,
		observerName: observerName,
	}
}

// Write offers an event to the ring. Returns false when the ring is
// full and the event was dropped.
func (rb *RingBuffer) Write(event *domain.CapabilityEvent) bool {
	if event == nil {
		return false
	}

	head := rb.head.Load()
	tail := rb.tail.Load()

	if head-tail >= rb.capacity {
		dropped := rb.dropped.Add(1)
		if rb.logger != nil && dropped%1000 == 1 {
			rb.logger.Warn("Ring buffer full, dropping events",
				zap.String("observer", rb.observerName),
				zap.Uint64("dropped_total", dropped),
			)
		}
		return false
	}

	// Store before publishing the new head so the consumer never reads
	// a slot that has not been written this lap.
	rb.buffer[head&rb.mask].Store(event)
	rb.head.Store(head + 1)
	rb.produced.Add(1)
	return true
}

// Read takes the oldest unread event, or nil when the ring is empty.
func (rb *RingBuffer) Read() *domain.CapabilityEvent {
	tail := rb.tail.Load()
	head := rb.head.Load()

	if tail >= head {
		return nil
	}

	event := rb.buffer[tail&rb.mask].Load()
	rb.tail.Store(tail + 1)
	rb.consumed.Add(1)
	return event
}

// Drain reads every event currently in the ring.
func (rb *RingBuffer) Drain() []*domain.CapabilityEvent {
	var events []*domain.CapabilityEvent
	for {
		event := rb.Read()
		if event == nil {
			break
		}
		events = append(events, event)
	}
	return events
}

// Len returns the number of unread events.
func (rb *RingBuffer) Len() int {
	head := rb.head.Load()
	tail := rb.tail.Load()
	if head <= tail {
		return 0
	}
	n := head - tail
	if n > rb.capacity {
		n = rb.capacity
	}
	return int(n)
}

// Capacity returns the ring capacity.
func (rb *RingBuffer) Capacity() int {
	return int(rb.capacity)
}

// Statistics returns buffer statistics
func (rb *RingBuffer) Statistics() RingBufferStats {
	head := rb.head.Load()
	tail := rb.tail.Load()

	var utilization float64
	if head > tail {
		used := head - tail
		if used > rb.capacity {
			used = rb.capacity
		}
		utilization = float64(used) / float64(rb.capacity) * 100
	}

	return RingBufferStats{
		Capacity:    rb.capacity,
		Produced:    rb.produced.Load(),
		Consumed:    rb.consumed.Load(),
		Dropped:     rb.dropped.Load(),
		Utilization: utilization,
	}
}

// RingBufferStats contains ring buffer statistics
type RingBufferStats struct {
	Capacity    uint64  `json:"capacity"`
	Produced    uint64  `json:"produced"`
	Consumed    uint64  `json:"consumed"`
	Dropped     uint64  `json:"dropped"`
	Utilization float64 `json:"utilization_percent"`
}
