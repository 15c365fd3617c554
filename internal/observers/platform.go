package observers

import "runtime"

// Platform represents the current platform
type Platform struct {
	OS           string
	Architecture string
	HasEBPF      bool
}

// GetCurrentPlatform returns platform information
func GetCurrentPlatform() Platform {
	return Platform{
		OS:           runtime.GOOS,
		Architecture: runtime.GOARCH,
		HasEBPF:      hasEBPFSupport(),
	}
}

// hasEBPFSupport checks if eBPF is available on the current platform
func hasEBPFSupport() bool {
	return runtime.GOOS == "linux"
}

// Message returns a descriptive line about capability tracing support
// on this platform, for startup logging.
func (p Platform) Message() string {
	if p.HasEBPF {
		return "capability tracing is supported on this Linux system"
	}
	return "capability tracing requires Linux; the mock observer is active"
}
