//go:build linux && ebpf

package capabilities

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/cilium/ebpf"
	"github.com/cilium/ebpf/link"
	"github.com/cilium/ebpf/perf"
	"github.com/cilium/ebpf/rlimit"
	"go.uber.org/zap"

	"github.com/yairfalse/capio/internal/observers/capabilities/bpf"
)

// perfBufferPages is the per-CPU perf buffer size in pages. When the
// buffer fills the kernel drops samples and reports the count; the
// reader accounts for them and carries on.
const perfBufferPages = 8

// ebpfComponents holds the loaded kernel objects for one attachment.
type ebpfComponents struct {
	objs   *bpf.CapmonitorObjects
	kprobe link.Link
	reader *perf.Reader
}

// startEBPF loads the probe, bakes the config snapshot into its
// read-only data, attaches the cap_capable kprobe and starts the perf
// reader. Caller holds o.mu.
func (o *Observer) startEBPF(sess *session) error {
	if !bpf.IsSupported() {
		return errEBPFUnavailable
	}

	if err := rlimit.RemoveMemlock(); err != nil {
		o.logger.Warn("Failed to remove memlock limit", zap.Error(err))
	}

	spec, err := bpf.LoadCapmonitor()
	if err != nil {
		return fmt.Errorf("loading BPF spec: %w", err)
	}

	// The probe reads these constants once at load time. Changing the
	// filter means detaching and attaching again.
	consts := map[string]interface{}{
		"monitored_tgid": o.config.MonitoredTGID,
		"verbose":        o.config.Verbose,
		"unique_type":    int32(o.config.Uniqueness),
		"debug_trace":    o.config.DebugTrace,
	}
	if err := spec.RewriteConstants(consts); err != nil {
		return fmt.Errorf("applying config snapshot: %w", err)
	}

	objs := &bpf.CapmonitorObjects{}
	if err := spec.LoadAndAssign(objs, nil); err != nil {
		var verr *ebpf.VerifierError
		if errors.As(err, &verr) {
			o.logger.Error("Verifier rejected capability probe",
				zap.String("log", fmt.Sprintf("%+v", verr)))
		}
		return fmt.Errorf("loading BPF objects: %w", err)
	}

	kp, err := link.Kprobe("cap_capable", objs.KprobeCapCapable, nil)
	if err != nil {
		objs.Close()
		return fmt.Errorf("attaching cap_capable kprobe: %w", err)
	}

	reader, err := perf.NewReader(objs.Events, perfBufferPages*os.Getpagesize())
	if err != nil {
		kp.Close()
		objs.Close()
		return fmt.Errorf("opening perf reader: %w", err)
	}

	state := &ebpfComponents{objs: objs, kprobe: kp, reader: reader}
	o.ebpfState = state
	o.LifecycleManager.Start("perf-reader", func() {
		o.readEvents(state, sess)
	})
	return nil
}

// stopEBPF tears down the probe. Caller holds o.mu. Closing the perf
// reader is what unblocks the reader goroutine.
func (o *Observer) stopEBPF() {
	state, ok := o.ebpfState.(*ebpfComponents)
	if !ok || state == nil {
		return
	}
	if err := state.reader.Close(); err != nil {
		o.logger.Warn("Failed to close perf reader", zap.Error(err))
	}
	if err := state.kprobe.Close(); err != nil {
		o.logger.Warn("Failed to detach cap_capable kprobe", zap.Error(err))
	}
	state.objs.Close()
	o.ebpfState = nil
}

// readEvents pumps perf samples into the pipeline until the reader is
// closed.
func (o *Observer) readEvents(state *ebpfComponents, sess *session) {
	ctx := context.Background()
	for {
		record, err := state.reader.Read()
		if err != nil {
			if errors.Is(err, perf.ErrClosed) {
				return
			}
			o.BaseObserver.RecordError(err)
			o.logger.Debug("Perf read failed", zap.Error(err))
			continue
		}

		if record.LostSamples > 0 {
			o.BaseObserver.RecordLostSamples(ctx, record.CPU, record.LostSamples)
			o.logger.Warn("Perf buffer overflowed, capability checks lost",
				zap.Int("cpu", record.CPU),
				zap.Uint64("lost", record.LostSamples))
			continue
		}

		raw, err := parseRawEvent(record.RawSample)
		if err != nil {
			o.BaseObserver.RecordError(err)
			continue
		}
		o.processRawSample(sess, raw, record.CPU)
	}
}
