//go:build linux

package capabilities

import (
	"go.uber.org/zap"
	"golang.org/x/sys/unix"
)

// detectKernelVersion reads the running kernel release via uname.
// Failures fall back to the modern cap_opt layout.
func detectKernelVersion(logger *zap.Logger) kernelVersion {
	var uts unix.Utsname
	if err := unix.Uname(&uts); err != nil {
		logger.Warn("Failed to read kernel version, assuming modern cap_opt layout",
			zap.Error(err))
		return splitOptKernel
	}
	release := unix.ByteSliceToString(uts.Release[:])
	v, err := parseKernelRelease(release)
	if err != nil {
		logger.Warn("Failed to parse kernel release, assuming modern cap_opt layout",
			zap.String("release", release), zap.Error(err))
		return splitOptKernel
	}
	return v
}
