package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/yairfalse/capio/internal/observers"
	"github.com/yairfalse/capio/internal/observers/capabilities"
	"github.com/yairfalse/capio/pkg/cgroups"
)

var traceCmd = &cobra.Command{
	Use:   "trace",
	Short: "Stream capability checks to the terminal",
	Long: `Attach the cap_capable probe and print one line per capability
check until interrupted.

By default only audited checks are shown, which is what the kernel
would also log through the audit subsystem. Filters narrow the stream
to one process group or one cgroup; uniqueness modes suppress repeats.`,
	Example: `  # Everything, fleet-wide
  capio trace

  # What does this container's main process actually use?
  capio trace -p 41702 -u pid

  # One line per capability and cgroup, with set-id details
  capio trace -u cgroup -x

  # Only a specific cgroup, mirrored to a file
  capio trace --cgroup-path /sys/fs/cgroup/system.slice/nginx.service -o checks.log

  # Build an allowlist profile while running a test suite
  capio trace --profile caps.yaml`,
	RunE: runTrace,
}

var (
	traceVerbose     bool
	tracePID         uint32
	traceExtraFields bool
	traceUnique      string
	traceCgroupPath  string
	traceOutput      string
	traceProfile     string
	traceMock        bool
	traceBufferSize  int
)

func init() {
	traceCmd.Flags().BoolVarP(&traceVerbose, "verbose", "v", false, "include non-audit checks")
	traceCmd.Flags().Uint32VarP(&tracePID, "pid", "p", 0, "trace this process group only (0 = all)")
	traceCmd.Flags().BoolVarP(&traceExtraFields, "extra-fields", "x", false, "show TID and INSETID columns")
	traceCmd.Flags().StringVarP(&traceUnique, "unique", "u", "off", "report each capability once per: off, pid, cgroup")
	traceCmd.Flags().StringVar(&traceCgroupPath, "cgroup-path", "", "trace only this cgroup directory")
	traceCmd.Flags().StringVarP(&traceOutput, "output", "o", "", "mirror the table to this file")
	traceCmd.Flags().StringVar(&traceProfile, "profile", "", "write a per-command capability profile (YAML) on exit")
	traceCmd.Flags().BoolVar(&traceMock, "mock", false, "fabricate events instead of attaching the probe")
	traceCmd.Flags().IntVar(&traceBufferSize, "buffer-size", 10000, "event channel capacity")

	viper.BindPFlag("trace.unique", traceCmd.Flags().Lookup("unique"))
	viper.BindPFlag("trace.buffer-size", traceCmd.Flags().Lookup("buffer-size"))
}

func runTrace(cmd *cobra.Command, args []string) error {
	logConfig := zap.NewProductionConfig()
	if debug {
		logConfig = zap.NewDevelopmentConfig()
	}
	logger, err := logConfig.Build()
	if err != nil {
		return fmt.Errorf("creating logger: %w", err)
	}
	defer logger.Sync()

	// Config file values apply unless the flag was given explicitly.
	if !cmd.Flags().Changed("unique") {
		traceUnique = viper.GetString("trace.unique")
	}
	if !cmd.Flags().Changed("buffer-size") {
		traceBufferSize = viper.GetInt("trace.buffer-size")
	}

	uniqueness, err := capabilities.ParseUniquenessMode(traceUnique)
	if err != nil {
		return err
	}

	platform := observers.GetCurrentPlatform()
	if !traceMock && !platform.HasEBPF {
		logger.Warn(platform.Message(),
			zap.String("os", platform.OS),
			zap.String("arch", platform.Architecture))
		traceMock = true
	}

	config := capabilities.DefaultConfig()
	config.MonitoredTGID = tracePID
	config.Verbose = traceVerbose
	config.Uniqueness = uniqueness
	config.CgroupPath = traceCgroupPath
	config.DebugTrace = debug
	config.BufferSize = traceBufferSize
	config.EnableEBPF = !traceMock

	logTargetContext(logger)

	observer, err := capabilities.NewObserver("capabilities", config, logger)
	if err != nil {
		return fmt.Errorf("creating capability observer: %w", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	if err := observer.Start(ctx); err != nil {
		return fmt.Errorf("starting capability observer: %w", err)
	}

	renderer, err := newRenderer(os.Stdout, traceExtraFields, traceOutput)
	if err != nil {
		observer.Stop()
		return err
	}
	defer renderer.Close()

	var profile *profileRecorder
	if traceProfile != "" {
		profile = newProfileRecorder()
	}

	go watchStats(ctx, observer, logger)

	if err := renderer.Banner(); err != nil {
		observer.Stop()
		return err
	}

	events := observer.Events()
loop:
	for {
		select {
		case <-sigChan:
			break loop
		case ev, ok := <-events:
			if !ok {
				break loop
			}
			if err := renderer.Line(ev); err != nil {
				logger.Warn("Failed to write event", zap.Error(err))
			}
			if profile != nil {
				profile.Record(ev)
			}
		}
	}

	cancel()
	if err := observer.Stop(); err != nil {
		logger.Error("Error stopping capability observer", zap.Error(err))
	}

	stats := observer.Statistics()
	logger.Info("Trace finished",
		zap.Duration("duration", observer.GetUptime()),
		zap.Int64("events", stats.EventsProcessed),
		zap.Int64("dropped", stats.EventsDropped),
		zap.Int64("lost_samples", stats.LostSamples))

	if profile != nil {
		if err := profile.WriteFile(traceProfile); err != nil {
			return fmt.Errorf("writing capability profile: %w", err)
		}
		logger.Info("Capability profile written", zap.String("path", traceProfile))
	}
	return nil
}

// logTargetContext reports where the trace target lives. Failures are
// informational; the trace itself does not depend on them.
func logTargetContext(logger *zap.Logger) {
	if tracePID != 0 {
		path, err := cgroups.UnifiedPath(int(tracePID))
		if err != nil {
			logger.Debug("Could not resolve target cgroup", zap.Error(err))
		} else {
			fields := []zap.Field{zap.Uint32("pid", tracePID)}
			// The numeric id is what cgroup membership is matched on.
			if cgid, err := cgroups.PIDCgroupID(int(tracePID), ""); err == nil {
				fields = append(fields, zap.Uint64("cgroup_id", cgid))
			}
			if id := cgroups.ContainerIDFromPath(path); id != "" {
				fields = append(fields,
					zap.String("container_id", id),
					zap.String("runtime", cgroups.Runtime(path)))
				logger.Info("Target process is containerized", fields...)
			} else {
				fields = append(fields, zap.String("cgroup", path))
				logger.Info("Target process cgroup", fields...)
			}
		}
	}
	if traceCgroupPath != "" {
		if id := cgroups.ContainerIDFromPath(traceCgroupPath); id != "" {
			logger.Info("Pinned cgroup looks like a container",
				zap.String("container_id", id),
				zap.String("runtime", cgroups.Runtime(traceCgroupPath)))
		}
	}
}

// watchStats periodically reports loss so a silent terminal is not
// mistaken for a quiet system.
func watchStats(ctx context.Context, observer *capabilities.Observer, logger *zap.Logger) {
	ticker := time.NewTicker(30 * time.Second)
	defer ticker.Stop()

	var lastDropped, lastLost int64
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			stats := observer.Statistics()
			if stats.EventsDropped > lastDropped || stats.LostSamples > lastLost {
				logger.Warn("Event loss since last report",
					zap.Int64("dropped", stats.EventsDropped-lastDropped),
					zap.Int64("lost_samples", stats.LostSamples-lastLost))
				lastDropped = stats.EventsDropped
				lastLost = stats.LostSamples
			}
		}
	}
}
