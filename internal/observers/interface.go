// Package observers defines the minimal contract an event source has to
// satisfy so the CLI can drive it without caring how events are produced.
package observers

import (
	"context"

	"github.com/yairfalse/capio/pkg/domain"
)

// Observer defines the minimal interface that all observers must implement
type Observer interface {
	// Name returns the unique identifier for this observer
	Name() string

	// Start begins the observation process
	// It should return quickly and run observation in background
	Start(ctx context.Context) error

	// Stop gracefully shuts down the observer
	Stop() error

	// Events returns a channel of capability events
	// The channel is closed when the observer stops
	Events() <-chan *domain.CapabilityEvent

	// IsHealthy returns true if the observer is functioning properly
	IsHealthy() bool
}

// ObserverWithStats extends Observer with runtime introspection.
type ObserverWithStats interface {
	Observer

	// Statistics returns a snapshot of the observer counters
	Statistics() *domain.ObserverStats

	// Health returns detailed health information
	Health() *domain.HealthStatus
}
