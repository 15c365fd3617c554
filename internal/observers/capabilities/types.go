package capabilities

import (
	"bytes"
	"encoding/binary"
	"fmt"
)

const (
	// taskCommLen is TASK_COMM_LEN, the kernel's fixed command buffer.
	taskCommLen = 16

	// rawEventSize is the wire size of one perf sample, including the
	// trailing alignment padding the C compiler inserts.
	rawEventSize = 48

	// dedupCapacity bounds the seen-store, matching the BPF map size.
	// Once full, new pairs stop being deduplicated.
	dedupCapacity = 10240
)

// rawEvent is the perf sample emitted by the capability probe.
// Layout must match struct cap_event in bpf/capable.h exactly:
// little-endian, 8-byte leading cgroup id, trailing pad to 48 bytes.
type rawEvent struct {
	CgroupID uint64
	TGID     uint32
	PID      uint32
	UID      uint32
	Cap      int32
	CapOpt   int32
	Comm     [taskCommLen]byte
	_        [4]byte
}

// parseRawEvent decodes one perf sample.
func parseRawEvent(data []byte) (*rawEvent, error) {
	if len(data) < rawEventSize {
		return nil, fmt.Errorf("short capability event: got %d bytes, need %d", len(data), rawEventSize)
	}
	var raw rawEvent
	if err := binary.Read(bytes.NewReader(data), binary.LittleEndian, &raw); err != nil {
		return nil, fmt.Errorf("decoding capability event: %w", err)
	}
	return &raw, nil
}

// commString trims the fixed-width command buffer at the first NUL.
func commString(comm []byte) string {
	if i := bytes.IndexByte(comm, 0); i >= 0 {
		comm = comm[:i]
	}
	return string(comm)
}

// putComm copies a command name into a fixed-width buffer, truncating
// the way the kernel does.
func putComm(dst *[taskCommLen]byte, comm string) {
	n := copy(dst[:taskCommLen-1], comm)
	for i := n; i < taskCommLen; i++ {
		dst[i] = 0
	}
}
