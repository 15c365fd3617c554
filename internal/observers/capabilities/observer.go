package capabilities

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.uber.org/zap"

	"github.com/yairfalse/capio/internal/observers"
	"github.com/yairfalse/capio/internal/observers/base"
	"github.com/yairfalse/capio/pkg/cgroups"
	"github.com/yairfalse/capio/pkg/domain"
)

var _ observers.ObserverWithStats = (*Observer)(nil)

// errEBPFUnavailable is returned when a build without the probe is
// asked to attach it.
var errEBPFUnavailable = errors.New("capability probe requires a Linux build with the ebpf tag")

// Observer traces capability checks made by the kernel's cap_capable
// hook. With EnableEBPF it attaches a kprobe and streams real checks;
// without it a mock generator feeds the same pipeline, which is what
// tests and non-Linux development use.
type Observer struct {
	*base.BaseObserver
	*base.EventChannelManager
	*base.LifecycleManager

	config *Config
	logger *zap.Logger
	name   string

	mu      sync.RWMutex
	running bool

	// ebpfState holds *ebpfComponents on Linux builds with the probe.
	ebpfState interface{}

	samplesTotal    metric.Int64Counter
	suppressedTotal metric.Int64Counter
}

// session bundles the state of one attachment. Goroutines keep the
// session they were started with, so a shutdown that times out can
// never race a later attachment's fresh state.
type session struct {
	pipeline *pipeline
	shards   []*base.RingBuffer
	channel  *base.EventChannelManager
}

// NewObserver creates a capability observer. The config's filtering
// fields are captured at Start and immutable while attached.
func NewObserver(name string, config *Config, logger *zap.Logger) (*Observer, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	if config == nil {
		config = DefaultConfig()
	}
	if name == "" {
		name = config.Name
	}
	config.Name = name
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid capabilities config: %w", err)
	}

	o := &Observer{
		BaseObserver:        base.NewBaseObserver(name, 5*time.Minute),
		EventChannelManager: base.NewEventChannelManager(config.BufferSize, name, logger),
		LifecycleManager:    base.NewLifecycleManager(context.Background(), logger),
		config:              config,
		logger:              logger,
		name:                name,
	}

	meter := otel.Meter(name)
	var err error
	o.samplesTotal, err = meter.Int64Counter(
		fmt.Sprintf("%s_checks_total", name),
		metric.WithDescription(fmt.Sprintf("Raw capability checks received by %s", name)),
	)
	if err != nil {
		logger.Warn("Failed to create checks counter", zap.Error(err))
	}
	o.suppressedTotal, err = meter.Int64Counter(
		fmt.Sprintf("%s_suppressed_total", name),
		metric.WithDescription(fmt.Sprintf("Capability checks suppressed by %s, labeled by stage", name)),
	)
	if err != nil {
		logger.Warn("Failed to create suppressed counter", zap.Error(err))
	}

	return o, nil
}

// Name returns the observer name.
func (o *Observer) Name() string {
	return o.name
}

// Events returns the outbound event channel. It is closed by Stop.
func (o *Observer) Events() <-chan *domain.CapabilityEvent {
	o.mu.RLock()
	defer o.mu.RUnlock()
	return o.EventChannelManager.GetChannel()
}

// IsRunning reports whether the observer is attached.
func (o *Observer) IsRunning() bool {
	o.mu.RLock()
	defer o.mu.RUnlock()
	return o.running
}

// Start attaches the observer. Filtering state (the cgroup association
// and the dedup store) is rebuilt empty on every Start, so reattaching
// with the same config always behaves like a first attachment.
func (o *Observer) Start(ctx context.Context) error {
	_, span := o.StartSpan(ctx, "capabilities.start")
	defer span.End()

	o.mu.Lock()
	defer o.mu.Unlock()

	if o.running {
		o.logger.Warn("Capability observer already running")
		return nil
	}

	// A stopped observer gets fresh managers; the old channel stays
	// closed for anyone still holding it.
	if o.LifecycleManager.IsShuttingDown() {
		o.LifecycleManager = base.NewLifecycleManager(context.Background(), o.logger)
		o.EventChannelManager = base.NewEventChannelManager(o.config.BufferSize, o.name, o.logger)
	}

	kv := detectKernelVersion(o.logger)
	decoder := decoderForKernel(kv)

	var pinnedCgroupID uint64
	if o.config.CgroupPath != "" {
		id, err := cgroups.PathID(o.config.CgroupPath)
		if err != nil {
			return fmt.Errorf("resolving cgroup path %q: %w", o.config.CgroupPath, err)
		}
		pinnedCgroupID = id
	}

	shards := make([]*base.RingBuffer, o.config.NumShards)
	for i := range shards {
		shards[i] = base.NewRingBuffer(o.config.RingShardSize, o.name, o.logger)
	}
	sess := &session{
		pipeline: newPipeline(o.config, decoder, pinnedCgroupID),
		shards:   shards,
		channel:  o.EventChannelManager,
	}
	lctx := o.LifecycleManager.Context()

	if o.config.EnableEBPF {
		if err := o.startEBPF(sess); err != nil {
			return fmt.Errorf("starting capability probe: %w", err)
		}
	} else {
		o.LifecycleManager.Start("mock-generator", func() {
			o.generateMock(lctx, sess)
		})
	}
	o.LifecycleManager.Start("drain", func() {
		o.drain(lctx, sess)
	})

	o.BaseObserver.SetHealthy(true)
	o.running = true
	o.logger.Info("Capability observer started",
		zap.Uint32("monitored_tgid", o.config.MonitoredTGID),
		zap.Bool("verbose", o.config.Verbose),
		zap.String("uniqueness", o.config.Uniqueness.String()),
		zap.String("cgroup_path", o.config.CgroupPath),
		zap.Uint64("pinned_cgroup_id", pinnedCgroupID),
		zap.String("kernel", kv.String()),
		zap.String("cap_opt_layout", decoder.Layout()),
		zap.Bool("ebpf", o.config.EnableEBPF))
	return nil
}

// Stop detaches the probe, flushes staged events and closes the event
// channel. Safe to call more than once.
func (o *Observer) Stop() error {
	o.mu.Lock()
	defer o.mu.Unlock()

	if !o.running {
		return nil
	}

	o.stopEBPF()
	if err := o.LifecycleManager.Stop(5 * time.Second); err != nil {
		o.logger.Warn("Capability observer shutdown timed out", zap.Error(err))
	}
	o.EventChannelManager.Close()
	o.BaseObserver.SetHealthy(false)
	o.running = false

	o.logger.Info("Capability observer stopped",
		zap.Int64("events", o.BaseObserver.GetEventCount()),
		zap.Int64("dropped", o.BaseObserver.GetDroppedCount()),
		zap.Int64("lost_samples", o.BaseObserver.GetLostSampleCount()),
		zap.Int64("errors", o.BaseObserver.GetErrorCount()))
	return nil
}

// processRawSample runs one sample through the pipeline and stages the
// surviving event on the shard for its CPU. Never blocks and never
// returns an error; full rings drop.
func (o *Observer) processRawSample(sess *session, raw *rawEvent, cpu int) {
	start := time.Now()
	ctx := context.Background()

	if o.samplesTotal != nil {
		o.samplesTotal.Add(ctx, 1)
	}

	ev, stage := sess.pipeline.handle(raw, cpu)
	if stage != stageNone {
		if o.suppressedTotal != nil {
			o.suppressedTotal.Add(ctx, 1, metric.WithAttributes(
				attribute.String("stage", string(stage)),
			))
		}
		return
	}

	if cpu < 0 {
		cpu = 0
	}
	if !sess.shards[cpu%len(sess.shards)].Write(ev) {
		o.BaseObserver.RecordDropWithReason(ctx, "ring_full")
		return
	}
	o.BaseObserver.RecordProcessingDuration(ctx, time.Since(start))
}

// drain sweeps the shard rings into the outbound channel. Each shard
// is drained in order, which preserves per-CPU event order.
func (o *Observer) drain(ctx context.Context, sess *session) {
	for {
		select {
		case <-ctx.Done():
			o.sweep(sess)
			return
		default:
		}
		if o.sweep(sess) == 0 {
			time.Sleep(200 * time.Microsecond)
		}
	}
}

func (o *Observer) sweep(sess *session) int {
	n := 0
	for _, ring := range sess.shards {
		for {
			ev := ring.Read()
			if ev == nil {
				break
			}
			n++
			if sess.channel.SendEvent(ev) {
				o.BaseObserver.RecordEvent()
			} else {
				o.BaseObserver.RecordDropWithReason(context.Background(), "channel_full")
			}
		}
	}
	return n
}

// mockProfiles are the fabricated workloads the mock generator cycles
// through. Capability numbers are the real ones for each daemon.
var mockProfiles = []struct {
	comm string
	cap  int32
	uid  uint32
}{
	{"nginx", 10, 0},           // CAP_NET_BIND_SERVICE
	{"redis-server", 24, 999},  // CAP_SYS_RESOURCE
	{"sshd", 7, 0},             // CAP_SETUID
	{"systemd", 12, 0},         // CAP_NET_ADMIN
	{"prometheus", 19, 65534},  // CAP_SYS_PTRACE
	{"containerd", 21, 0},      // CAP_SYS_ADMIN
	{"chronyd", 25, 992},       // CAP_SYS_TIME
}

// generateMock fabricates capability checks through the full pipeline
// so every stage runs without the kernel probe.
func (o *Observer) generateMock(ctx context.Context, sess *session) {
	ticker := time.NewTicker(o.config.MockInterval)
	defer ticker.Stop()

	seq := 0
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			raw, cpu := o.mockSample(seq)
			o.processRawSample(sess, raw, cpu)
			seq++
		}
	}
}

func (o *Observer) mockSample(seq int) (*rawEvent, int) {
	profile := mockProfiles[seq%len(mockProfiles)]

	tgid := uint32(4200 + seq%len(mockProfiles))
	if o.config.MonitoredTGID != 0 {
		tgid = o.config.MonitoredTGID
	}

	// Audit bit set in both cap_opt layouts; every ninth sample is a
	// non-audit check so the verbosity stage sees traffic too. Cadences
	// are coprime with the profile count so no profile is starved.
	capOpt := int32(1)
	switch {
	case seq%9 == 3:
		capOpt = capOptNoAudit
	case seq%5 == 2:
		capOpt |= capOptInSetID
	}

	raw := &rawEvent{
		CgroupID: uint64(9000 + tgid%3),
		TGID:     tgid,
		PID:      tgid,
		UID:      profile.uid,
		Cap:      profile.cap,
		CapOpt:   capOpt,
	}
	putComm(&raw.Comm, profile.comm)
	return raw, seq % o.config.NumShards
}
