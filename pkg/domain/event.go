// Package domain holds the types shared between the capability observer
// and its consumers. Nothing in here touches the kernel.
package domain

import "time"

// InSetIDUnknown marks checks where the kernel predates the split
// cap_opt bitfield and the set-id indicator cannot be determined.
const InSetIDUnknown int8 = -1

// CapabilityEvent is a single observed kernel capability check.
// Immutable once constructed; ownership passes to the event channel on emit.
type CapabilityEvent struct {
	Timestamp time.Time `json:"timestamp"`

	// Process identity at check time
	TGID uint32 `json:"tgid"`
	PID  uint32 `json:"pid"`
	UID  uint32 `json:"uid"`
	Comm string `json:"comm"`

	// The check itself
	Cap     int32 `json:"cap"`
	Audit   bool  `json:"audit"`
	InSetID int8  `json:"insetid"`

	// Placement
	CgroupID uint64 `json:"cgroup_id,omitempty"`
	CPU      int    `json:"cpu"`

	// Source identifies the emitting observer
	Source string `json:"source,omitempty"`
}

// SetIDKnown reports whether the running kernel exposed the set-id
// indicator for this check.
func (e *CapabilityEvent) SetIDKnown() bool {
	return e.InSetID != InSetIDUnknown
}

// InSetIDValue formats the set-id indicator the way the column renderer
// and the profile writer expect: "0", "1", or "-1" when unknown.
func (e *CapabilityEvent) InSetIDValue() int {
	return int(e.InSetID)
}
