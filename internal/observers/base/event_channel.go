package base

import (
	"sync"
	"sync/atomic"

	"github.com/yairfalse/capio/pkg/domain"
	"go.uber.org/zap"
)

// EventChannelManager handles event channel operations with drop counting.
// Sends never block; a full channel drops the event.
type EventChannelManager struct {
	mu           sync.RWMutex
	channel      chan *domain.CapabilityEvent
	closed       atomic.Bool
	droppedCount atomic.Int64
	sentCount    atomic.Int64
	logger       *zap.Logger
	observerName string
}

// NewEventChannelManager creates a new event channel manager
func NewEventChannelManager(size int, observerName string, logger *zap.Logger) *EventChannelManager {
	return &EventChannelManager{
		channel:      make(chan *domain.CapabilityEvent, size),
		logger:       logger,
		observerName: observerName,
	}
}

// SendEvent attempts to send an event through the channel.
// Returns true if sent successfully, false if dropped.
func (ecm *EventChannelManager) SendEvent(event *domain.CapabilityEvent) bool {
	if ecm.closed.Load() {
		return false
	}

	ecm.mu.RLock()
	defer ecm.mu.RUnlock()

	// Double-check closed status while holding lock
	if ecm.closed.Load() || ecm.channel == nil {
		ecm.droppedCount.Add(1)
		return false
	}

	select {
	case ecm.channel <- event:
		ecm.sentCount.Add(1)
		return true
	default:
		// Channel full, drop event
		ecm.droppedCount.Add(1)
		if ecm.logger != nil {
			ecm.logger.Debug("Event channel full, dropping event",
				zap.String("observer", ecm.observerName),
				zap.Int32("cap", event.Cap),
				zap.Uint32("tgid", event.TGID),
			)
		}
		return false
	}
}

// GetChannel returns the event channel for reading
func (ecm *EventChannelManager) GetChannel() <-chan *domain.CapabilityEvent {
	ecm.mu.RLock()
	defer ecm.mu.RUnlock()
	return ecm.channel
}

// Close closes the event channel
func (ecm *EventChannelManager) Close() {
	// Ensure Close runs only once
	if !ecm.closed.CompareAndSwap(false, true) {
		return
	}

	ecm.mu.Lock()
	defer ecm.mu.Unlock()

	if ecm.channel != nil {
		close(ecm.channel)
	}
}

// GetDroppedCount returns the number of dropped events
func (ecm *EventChannelManager) GetDroppedCount() int64 {
	return ecm.droppedCount.Load()
}

// GetSentCount returns the number of successfully sent events
func (ecm *EventChannelManager) GetSentCount() int64 {
	return ecm.sentCount.Load()
}

// GetChannelUtilization returns the percentage of channel capacity used
func (ecm *EventChannelManager) GetChannelUtilization() float64 {
	ecm.mu.RLock()
	defer ecm.mu.RUnlock()

	if ecm.channel == nil || cap(ecm.channel) == 0 {
		return 0
	}
	return float64(len(ecm.channel)) / float64(cap(ecm.channel)) * 100
}
