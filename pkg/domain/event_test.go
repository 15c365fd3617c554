package domain

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestCapabilityEventSetIDKnown(t *testing.T) {
	tests := []struct {
		name    string
		insetid int8
		known   bool
	}{
		{name: "unknown on old kernels", insetid: InSetIDUnknown, known: false},
		{name: "not in set-id", insetid: 0, known: true},
		{name: "in set-id", insetid: 1, known: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e := &CapabilityEvent{
				Timestamp: time.Now(),
				TGID:      1234,
				Cap:       21,
				InSetID:   tt.insetid,
			}
			assert.Equal(t, tt.known, e.SetIDKnown())
			assert.Equal(t, int(tt.insetid), e.InSetIDValue())
		})
	}
}

func TestHealthStatus(t *testing.T) {
	hs := NewHealthyStatus("observer operating normally")
	assert.True(t, hs.IsHealthy())
	assert.Equal(t, HealthHealthy, hs.Status)
	assert.False(t, hs.Timestamp.IsZero())

	hs.SetDetail("events_processed", "42")
	assert.Equal(t, "42", hs.Details["events_processed"])

	unhealthy := NewUnhealthyStatus("attach failed", assert.AnError)
	assert.False(t, unhealthy.IsHealthy())
	assert.Equal(t, assert.AnError.Error(), unhealthy.LastErrorText)

	degraded := NewHealthStatus(HealthDegraded, "no events for 5m")
	assert.False(t, degraded.IsHealthy())
	assert.Equal(t, "degraded", degraded.Status.String())
}
