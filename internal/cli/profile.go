package cli

import (
	"fmt"
	"os"
	"sort"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/yairfalse/capio/pkg/capnames"
	"github.com/yairfalse/capio/pkg/domain"
)

// profileRecorder aggregates which capabilities each command exercised
// during a trace. The resulting YAML is a starting point for capability
// allowlists.
type profileRecorder struct {
	byComm map[string]map[int32]int64
	total  int64
}

type capabilityProfile struct {
	GeneratedAt time.Time        `yaml:"generated_at"`
	TotalEvents int64            `yaml:"total_events"`
	Commands    []commandProfile `yaml:"commands"`
}

type commandProfile struct {
	Comm         string   `yaml:"comm"`
	Checks       int64    `yaml:"checks"`
	Capabilities []string `yaml:"capabilities"`
}

func newProfileRecorder() *profileRecorder {
	return &profileRecorder{byComm: make(map[string]map[int32]int64)}
}

func (p *profileRecorder) Record(ev *domain.CapabilityEvent) {
	caps := p.byComm[ev.Comm]
	if caps == nil {
		caps = make(map[int32]int64)
		p.byComm[ev.Comm] = caps
	}
	caps[ev.Cap]++
	p.total++
}

func (p *profileRecorder) snapshot() *capabilityProfile {
	profile := &capabilityProfile{
		GeneratedAt: time.Now().UTC(),
		TotalEvents: p.total,
	}

	comms := make([]string, 0, len(p.byComm))
	for comm := range p.byComm {
		comms = append(comms, comm)
	}
	sort.Strings(comms)

	for _, comm := range comms {
		caps := p.byComm[comm]
		values := make([]int32, 0, len(caps))
		var checks int64
		for capValue, count := range caps {
			values = append(values, capValue)
			checks += count
		}
		sort.Slice(values, func(i, j int) bool { return values[i] < values[j] })

		names := make([]string, 0, len(values))
		for _, v := range values {
			names = append(names, capnames.Name(v))
		}
		profile.Commands = append(profile.Commands, commandProfile{
			Comm:         comm,
			Checks:       checks,
			Capabilities: names,
		})
	}
	return profile
}

// WriteFile marshals the profile and writes it to path.
func (p *profileRecorder) WriteFile(path string) error {
	data, err := yaml.Marshal(p.snapshot())
	if err != nil {
		return fmt.Errorf("marshaling profile: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("writing profile: %w", err)
	}
	return nil
}
