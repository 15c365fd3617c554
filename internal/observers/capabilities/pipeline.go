package capabilities

import (
	"time"

	"github.com/yairfalse/capio/pkg/domain"
)

// filterStage names the pipeline stage that suppressed a sample.
// stageNone means the sample passed every stage and became an event.
type filterStage string

const (
	stageNone       filterStage = ""
	stageVerbosity  filterStage = "verbosity"
	stageMembership filterStage = "membership"
	stageCgroupPin  filterStage = "cgroup_pin"
	stageDedup      filterStage = "dedup"
)

// pipeline applies the per-sample decision stages. It is built fresh
// on every Start, so the association and dedup state never leak across
// attachments. handle is safe for concurrent use.
type pipeline struct {
	monitoredTGID  uint32
	verbose        bool
	uniqueness     UniquenessMode
	pinnedCgroupID uint64
	source         string

	decoder optionDecoder
	assoc   *assocCache
	seen    *dedupStore
}

func newPipeline(cfg *Config, decoder optionDecoder, pinnedCgroupID uint64) *pipeline {
	return &pipeline{
		monitoredTGID:  cfg.MonitoredTGID,
		verbose:        cfg.Verbose,
		uniqueness:     cfg.Uniqueness,
		pinnedCgroupID: pinnedCgroupID,
		source:         cfg.Name,
		decoder:        decoder,
		assoc:          &assocCache{},
		seen:           newDedupStore(dedupCapacity),
	}
}

// handle runs one raw sample through decode, verbosity, membership and
// dedup, and enriches the survivors. A non-empty filterStage means the
// sample was suppressed and no event is returned.
func (p *pipeline) handle(raw *rawEvent, cpu int) (*domain.CapabilityEvent, filterStage) {
	audit, insetid := p.decoder.Decode(raw.CapOpt)

	// Non-audit checks are kernel bookkeeping, not privilege use.
	// Dropped before any state is touched so they cannot pin an
	// association or consume a dedup slot.
	if !p.verbose && !audit {
		return nil, stageVerbosity
	}

	if p.monitoredTGID != 0 {
		if raw.TGID == p.monitoredTGID {
			p.assoc.associate(raw.TGID, raw.CgroupID)
		}
		cgroupID, ok := p.assoc.lookup(p.monitoredTGID)
		if !ok || raw.CgroupID != cgroupID {
			return nil, stageMembership
		}
	}

	if p.pinnedCgroupID != 0 && raw.CgroupID != p.pinnedCgroupID {
		return nil, stageCgroupPin
	}

	switch p.uniqueness {
	case UniqueByTGID:
		if !p.seen.shouldReport(raw.Cap, uint64(raw.TGID)) {
			return nil, stageDedup
		}
	case UniqueByCgroup:
		if !p.seen.shouldReport(raw.Cap, raw.CgroupID) {
			return nil, stageDedup
		}
	}

	return &domain.CapabilityEvent{
		Timestamp: time.Now(),
		TGID:      raw.TGID,
		PID:       raw.PID,
		UID:       raw.UID,
		Comm:      commString(raw.Comm[:]),
		Cap:       raw.Cap,
		Audit:     audit,
		InSetID:   insetid,
		CgroupID:  raw.CgroupID,
		CPU:       cpu,
		Source:    p.source,
	}, stageNone
}
