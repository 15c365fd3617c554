//go:build !linux

package capabilities

import "go.uber.org/zap"

// detectKernelVersion has nothing to ask on non-Linux platforms; the
// mock generator fabricates samples in the modern layout.
func detectKernelVersion(logger *zap.Logger) kernelVersion {
	return splitOptKernel
}
