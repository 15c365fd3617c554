package capabilities

import (
	"fmt"
	"runtime"
	"time"
)

// UniquenessMode selects how repeat capability checks are suppressed.
// Values match enum uniqueness_type in bpf/capable.h.
type UniquenessMode int32

const (
	// UniqueOff reports every check.
	UniqueOff UniquenessMode = iota
	// UniqueByTGID reports each capability once per process group.
	UniqueByTGID
	// UniqueByCgroup reports each capability once per cgroup.
	UniqueByCgroup
)

// String returns the CLI spelling of the mode.
func (m UniquenessMode) String() string {
	switch m {
	case UniqueOff:
		return "off"
	case UniqueByTGID:
		return "pid"
	case UniqueByCgroup:
		return "cgroup"
	default:
		return fmt.Sprintf("unknown(%d)", int32(m))
	}
}

// ParseUniquenessMode parses the CLI spelling of a uniqueness mode.
func ParseUniquenessMode(s string) (UniquenessMode, error) {
	switch s {
	case "", "off":
		return UniqueOff, nil
	case "pid", "tgid":
		return UniqueByTGID, nil
	case "cgroup":
		return UniqueByCgroup, nil
	default:
		return UniqueOff, fmt.Errorf("unknown uniqueness mode %q (want off, pid or cgroup)", s)
	}
}

// Config controls the capability observer. The filtering fields
// (MonitoredTGID, Verbose, Uniqueness, CgroupPath, DebugTrace) are
// captured once at Start and never change while attached; restart the
// observer to apply new values.
type Config struct {
	// Name identifies the observer in logs and metrics.
	Name string

	// BufferSize is the outbound event channel capacity.
	BufferSize int

	// EnableEBPF selects the kernel probe. When false the observer
	// runs a mock generator through the same pipeline, which is what
	// unit tests and non-Linux development use.
	EnableEBPF bool

	// MonitoredTGID restricts tracing to one process group and, once
	// that group is seen, to whatever cgroup it was in at that moment.
	// Zero means trace everything.
	MonitoredTGID uint32

	// Verbose includes checks the kernel performs without auditing,
	// such as the capable_noaudit path. These are normally noise.
	Verbose bool

	// Uniqueness suppresses repeat reports of the same capability.
	Uniqueness UniquenessMode

	// CgroupPath pins tracing to one cgroup directory. Resolved to a
	// cgroup id at Start; empty means no pin.
	CgroupPath string

	// DebugTrace makes the probe also print to the kernel trace pipe.
	DebugTrace bool

	// RingShardSize is the per-CPU staging ring capacity. Rounded up
	// to a power of two.
	RingShardSize int

	// NumShards is the number of staging rings. Defaults to NumCPU.
	NumShards int

	// MockInterval is the fabrication period when EnableEBPF is false.
	MockInterval time.Duration
}

// DefaultConfig returns a config that traces all processes with
// auditing checks only.
func DefaultConfig() *Config {
	return &Config{
		Name:          "capabilities",
		BufferSize:    10000,
		EnableEBPF:    true,
		MonitoredTGID: 0,
		Verbose:       false,
		Uniqueness:    UniqueOff,
		RingShardSize: 2048,
		NumShards:     runtime.NumCPU(),
		MockInterval:  50 * time.Millisecond,
	}
}

// Validate checks the config and fills in defaults.
func (c *Config) Validate() error {
	if c.Name == "" {
		c.Name = "capabilities"
	}
	if c.BufferSize <= 0 {
		c.BufferSize = 10000
	}
	if c.RingShardSize <= 0 {
		c.RingShardSize = 2048
	}
	if c.NumShards <= 0 {
		c.NumShards = runtime.NumCPU()
	}
	if c.MockInterval <= 0 {
		c.MockInterval = 50 * time.Millisecond
	}
	switch c.Uniqueness {
	case UniqueOff, UniqueByTGID, UniqueByCgroup:
	default:
		return fmt.Errorf("invalid uniqueness mode %d", int32(c.Uniqueness))
	}
	return nil
}
