//go:build linux && ebpf

package bpf

import (
	"errors"

	"github.com/cilium/ebpf"
)

// Placeholder for the bpf2go output. Running go generate replaces this
// file with the real loaders and the embedded program bytes; until
// then loading reports what is missing instead of compiling the build
// away.

// CapmonitorObjects are the capability probe's programs and maps.
type CapmonitorObjects struct {
	KprobeCapCapable *ebpf.Program `ebpf:"kprobe_cap_capable"`
	Events           *ebpf.Map     `ebpf:"events"`
	SeenCaps         *ebpf.Map     `ebpf:"seen_caps"`
	CgroupAssoc      *ebpf.Map     `ebpf:"cgroup_assoc"`
}

func (o *CapmonitorObjects) Close() error {
	if o.KprobeCapCapable != nil {
		o.KprobeCapCapable.Close()
	}
	if o.Events != nil {
		o.Events.Close()
	}
	if o.SeenCaps != nil {
		o.SeenCaps.Close()
	}
	if o.CgroupAssoc != nil {
		o.CgroupAssoc.Close()
	}
	return nil
}

var errNotGenerated = errors.New("capability probe bindings not generated: run go generate ./internal/observers/capabilities/bpf (needs clang and headers/vmlinux.h)")

// LoadCapmonitor returns the probe's CollectionSpec.
func LoadCapmonitor() (*ebpf.CollectionSpec, error) {
	return nil, errNotGenerated
}

// LoadCapmonitorObjects loads the probe into the kernel and assigns
// its programs and maps.
func LoadCapmonitorObjects(obj *CapmonitorObjects, opts *ebpf.CollectionOptions) error {
	return errNotGenerated
}
