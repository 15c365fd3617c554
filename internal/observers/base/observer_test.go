package base

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yairfalse/capio/pkg/domain"
)

func TestBaseObserverCounters(t *testing.T) {
	bo := NewBaseObserver("test", 5*time.Minute)

	bo.RecordEvent()
	bo.RecordEvent()
	bo.RecordDrop()
	bo.RecordDropWithReason(context.Background(), "channel_full")
	bo.RecordLostSamples(context.Background(), 3, 7)
	bo.RecordError(errors.New("boom"))

	assert.Equal(t, int64(2), bo.GetEventCount())
	assert.Equal(t, int64(2), bo.GetDroppedCount())
	assert.Equal(t, int64(7), bo.GetLostSampleCount())
	assert.Equal(t, int64(1), bo.GetErrorCount())

	stats := bo.Statistics()
	require.NotNil(t, stats)
	assert.Equal(t, int64(2), stats.EventsProcessed)
	assert.Equal(t, int64(2), stats.EventsDropped)
	assert.Equal(t, int64(7), stats.LostSamples)
	assert.Equal(t, int64(1), stats.ErrorCount)
	assert.False(t, stats.LastEventTime.IsZero())
	assert.Greater(t, stats.Uptime, time.Duration(0))
}

func TestBaseObserverHealth(t *testing.T) {
	bo := NewBaseObserver("test", time.Hour)
	assert.True(t, bo.IsHealthy())

	health := bo.Health()
	require.NotNil(t, health)
	assert.Equal(t, domain.HealthHealthy, health.Status)

	bo.SetHealthy(false)
	health = bo.Health()
	assert.Equal(t, domain.HealthUnhealthy, health.Status)

	bo.SetHealthy(true)
	assert.True(t, bo.Health().IsHealthy())
}

func TestBaseObserverDegradesOnErrorRate(t *testing.T) {
	bo := NewBaseObserver("test", time.Hour)

	// 10 processed, 5 errors: 50% error rate is over the 10% threshold
	for i := 0; i < 10; i++ {
		bo.RecordEvent()
	}
	for i := 0; i < 5; i++ {
		bo.RecordError(errors.New("read failed"))
	}

	health := bo.Health()
	assert.Equal(t, domain.HealthDegraded, health.Status)
	assert.Contains(t, health.Message, "error rate")
}

func TestBaseObserverDegradesWhenSilent(t *testing.T) {
	bo := NewBaseObserver("test", 10*time.Millisecond)

	bo.RecordEvent()
	time.Sleep(30 * time.Millisecond)

	health := bo.Health()
	assert.Equal(t, domain.HealthDegraded, health.Status)
	assert.Contains(t, health.Message, "no events")
}

func TestBaseObserverName(t *testing.T) {
	bo := NewBaseObserver("capabilities", time.Minute)
	assert.Equal(t, "capabilities", bo.GetName())
	assert.NotNil(t, bo.GetTracer())
	assert.NotNil(t, bo.GetMeter())
}
