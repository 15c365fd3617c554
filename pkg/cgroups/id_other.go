//go:build !linux
// +build !linux

package cgroups

import "errors"

// DefaultMount is meaningless off Linux but kept so callers can compile.
const DefaultMount = "/sys/fs/cgroup"

var errUnsupported = errors.New("cgroup ids require Linux")

// PathID is unsupported off Linux.
func PathID(path string) (uint64, error) {
	return 0, errUnsupported
}

// PIDCgroupID is unsupported off Linux.
func PIDCgroupID(pid int, mount string) (uint64, error) {
	return 0, errUnsupported
}
