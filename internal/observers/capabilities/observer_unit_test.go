package capabilities

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/yairfalse/capio/pkg/domain"
)

func mockConfig() *Config {
	cfg := DefaultConfig()
	cfg.EnableEBPF = false
	cfg.MockInterval = 5 * time.Millisecond
	cfg.BufferSize = 256
	cfg.NumShards = 2
	cfg.RingShardSize = 64
	return cfg
}

func TestNewObserver(t *testing.T) {
	logger := zaptest.NewLogger(t)

	tests := []struct {
		name    string
		obsName string
		config  *Config
		wantErr bool
	}{
		{name: "nil config uses defaults", obsName: "capabilities", config: nil},
		{name: "custom config", obsName: "caps-custom", config: mockConfig()},
		{name: "empty name falls back to config", obsName: "", config: mockConfig()},
		{
			name:    "invalid uniqueness rejected",
			obsName: "caps-bad",
			config:  &Config{Uniqueness: UniquenessMode(77)},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			obs, err := NewObserver(tt.obsName, tt.config, logger)
			if tt.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			require.NotNil(t, obs)
			assert.NotEmpty(t, obs.Name())
			assert.False(t, obs.IsRunning())
			assert.NotNil(t, obs.Events())
		})
	}
}

func TestObserverLifecycleWithMock(t *testing.T) {
	logger := zaptest.NewLogger(t)
	obs, err := NewObserver("caps-lifecycle", mockConfig(), logger)
	require.NoError(t, err)

	ctx := context.Background()
	require.NoError(t, obs.Start(ctx))
	assert.True(t, obs.IsRunning())
	assert.True(t, obs.IsHealthy())

	// Starting again is a no-op, not an error.
	require.NoError(t, obs.Start(ctx))

	events := obs.Events()
	var got *domain.CapabilityEvent
	require.Eventually(t, func() bool {
		select {
		case ev := <-events:
			got = ev
			return ev != nil
		default:
			return false
		}
	}, 2*time.Second, 10*time.Millisecond, "mock generator should produce events")

	assert.Equal(t, "caps-lifecycle", got.Source)
	assert.NotEmpty(t, got.Comm)
	assert.GreaterOrEqual(t, got.Cap, int32(0))
	assert.NotZero(t, got.TGID)

	require.Eventually(t, func() bool {
		return obs.Statistics().EventsProcessed > 0
	}, 2*time.Second, 10*time.Millisecond)

	require.NoError(t, obs.Stop())
	assert.False(t, obs.IsRunning())

	// Stop closes the channel once staged events are flushed.
	require.Eventually(t, func() bool {
		select {
		case _, ok := <-events:
			return !ok
		default:
			return false
		}
	}, 2*time.Second, 10*time.Millisecond)

	// Stopping again is safe.
	require.NoError(t, obs.Stop())
}

func TestObserverRestartIsFresh(t *testing.T) {
	logger := zaptest.NewLogger(t)
	obs, err := NewObserver("caps-restart", mockConfig(), logger)
	require.NoError(t, err)

	ctx := context.Background()
	require.NoError(t, obs.Start(ctx))
	first := obs.Events()
	require.Eventually(t, func() bool {
		select {
		case ev := <-first:
			return ev != nil
		default:
			return false
		}
	}, 2*time.Second, 10*time.Millisecond)
	require.NoError(t, obs.Stop())

	// A second attachment gets a fresh channel and flows again.
	require.NoError(t, obs.Start(ctx))
	second := obs.Events()
	require.Eventually(t, func() bool {
		select {
		case ev := <-second:
			return ev != nil
		default:
			return false
		}
	}, 2*time.Second, 10*time.Millisecond)
	require.NoError(t, obs.Stop())
}

func TestObserverMonitoredMockFlows(t *testing.T) {
	logger := zaptest.NewLogger(t)
	cfg := mockConfig()
	cfg.MonitoredTGID = 4321
	obs, err := NewObserver("caps-monitored", cfg, logger)
	require.NoError(t, err)

	require.NoError(t, obs.Start(context.Background()))
	defer obs.Stop()

	events := obs.Events()
	require.Eventually(t, func() bool {
		select {
		case ev := <-events:
			return ev != nil && ev.TGID == 4321
		default:
			return false
		}
	}, 2*time.Second, 10*time.Millisecond, "monitored mock traffic should pass membership")
}

func TestObserverHealthReporting(t *testing.T) {
	logger := zaptest.NewLogger(t)
	obs, err := NewObserver("caps-health", mockConfig(), logger)
	require.NoError(t, err)

	health := obs.Health()
	require.NotNil(t, health)

	require.NoError(t, obs.Start(context.Background()))
	assert.True(t, obs.Health().IsHealthy())
	require.NoError(t, obs.Stop())
	assert.False(t, obs.IsHealthy())
}
