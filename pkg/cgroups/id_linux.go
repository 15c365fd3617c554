//go:build linux
// +build linux

package cgroups

import (
	"fmt"
	"path/filepath"

	"golang.org/x/sys/unix"
)

// DefaultMount is where the unified hierarchy is mounted on modern
// distributions.
const DefaultMount = "/sys/fs/cgroup"

// PathID returns the kernel cgroup id for a cgroupfs directory. On the
// v2 unified hierarchy the cgroup id is the inode number of that
// directory, which is also what bpf_get_current_cgroup_id reports.
func PathID(path string) (uint64, error) {
	var st unix.Stat_t
	if err := unix.Stat(path, &st); err != nil {
		return 0, fmt.Errorf("stat cgroup path %s: %w", path, err)
	}
	return st.Ino, nil
}

// PIDCgroupID resolves the cgroup id a process currently belongs to by
// joining its unified-hierarchy path onto the cgroupfs mount.
func PIDCgroupID(pid int, mount string) (uint64, error) {
	if mount == "" {
		mount = DefaultMount
	}
	rel, err := UnifiedPath(pid)
	if err != nil {
		return 0, err
	}
	return PathID(filepath.Join(mount, rel))
}
