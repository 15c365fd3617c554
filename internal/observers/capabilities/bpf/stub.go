//go:build !linux || !ebpf

package bpf

// IsSupported reports whether this build can attach the probe.
func IsSupported() bool {
	return false
}
