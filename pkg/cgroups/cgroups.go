// Package cgroups resolves execution-group identity: parsing
// /proc/<pid>/cgroup, recognizing container runtimes from cgroup paths,
// and (on Linux) turning a cgroupfs directory into the kernel cgroup id
// the capability probe reports.
package cgroups

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"regexp"
	"strings"
)

// Entry is one line of /proc/<pid>/cgroup in parsed form.
type Entry struct {
	HierarchyID string
	Controllers string
	Path        string
}

// V2 reports whether this entry is the cgroup v2 unified hierarchy line.
func (e Entry) V2() bool {
	return e.HierarchyID == "0" && e.Controllers == ""
}

var (
	dockerPattern     = regexp.MustCompile(`/docker/([a-f0-9]{64})`)
	containerdPattern = regexp.MustCompile(`/containerd/([a-f0-9]{64})`)
	crioPattern       = regexp.MustCompile(`/crio/([a-f0-9]{64})`)
	// QoS segment is absent for guaranteed pods.
	kubepodsPattern = regexp.MustCompile(`/kubepods[^/]*(?:/(?:besteffort|burstable))?/pod[a-f0-9-]+/([a-f0-9]{64})`)
	scopePattern    = regexp.MustCompile(`/[a-z]+-([a-f0-9]{64})\.scope`)
)

// Parse reads /proc/<pid>/cgroup formatted content.
// Line format: hierarchy-ID:controller-list:cgroup-path
func Parse(r io.Reader) ([]Entry, error) {
	var entries []Entry
	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		parts := strings.SplitN(line, ":", 3)
		if len(parts) < 3 {
			continue
		}
		entries = append(entries, Entry{
			HierarchyID: parts[0],
			Controllers: parts[1],
			Path:        parts[2],
		})
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("scanning cgroup data: %w", err)
	}
	return entries, nil
}

// ParsePID parses /proc/<pid>/cgroup for a live process.
func ParsePID(pid int) ([]Entry, error) {
	f, err := os.Open(fmt.Sprintf("/proc/%d/cgroup", pid))
	if err != nil {
		return nil, fmt.Errorf("opening cgroup file for pid %d: %w", pid, err)
	}
	defer f.Close()
	return Parse(f)
}

// UnifiedPath returns the cgroup v2 path for a process, relative to the
// cgroupfs mount root.
func UnifiedPath(pid int) (string, error) {
	entries, err := ParsePID(pid)
	if err != nil {
		return "", err
	}
	for _, e := range entries {
		if e.V2() {
			return e.Path, nil
		}
	}
	return "", fmt.Errorf("no cgroup v2 entry for pid %d", pid)
}

// ContainerIDFromPath extracts a container id from a cgroup path.
// Supports Docker, containerd, CRI-O, Kubernetes pod slices, and systemd
// scope units. Returns the short (12 character) form, or "" when the path
// does not look like a container cgroup.
func ContainerIDFromPath(cgroupPath string) string {
	patterns := []*regexp.Regexp{
		kubepodsPattern,
		dockerPattern,
		containerdPattern,
		crioPattern,
		scopePattern,
	}
	for _, p := range patterns {
		if matches := p.FindStringSubmatch(cgroupPath); len(matches) > 1 {
			id := matches[1]
			if len(id) > 12 {
				return id[:12]
			}
			return id
		}
	}
	return ""
}

// Runtime guesses the container runtime from a cgroup path.
func Runtime(cgroupPath string) string {
	switch {
	case strings.Contains(cgroupPath, "/kubepods"):
		return "kubernetes"
	case strings.Contains(cgroupPath, "/docker/"):
		return "docker"
	case strings.Contains(cgroupPath, "/containerd/"):
		return "containerd"
	case strings.Contains(cgroupPath, "/crio/"):
		return "crio"
	case strings.Contains(cgroupPath, ".scope"):
		return "systemd"
	default:
		return "unknown"
	}
}
