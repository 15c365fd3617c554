package capnames

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestName(t *testing.T) {
	tests := []struct {
		name string
		cap  int32
		want string
	}{
		{name: "first capability", cap: 0, want: "CAP_CHOWN"},
		{name: "sys_admin", cap: 21, want: "CAP_SYS_ADMIN"},
		{name: "net_bind_service", cap: 10, want: "CAP_NET_BIND_SERVICE"},
		{name: "bpf", cap: 39, want: "CAP_BPF"},
		{name: "last table entry", cap: 40, want: "CAP_CHECKPOINT_RESTORE"},
		{name: "negative", cap: -1, want: Unknown},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Name(tt.cap))
		})
	}
}

func TestKnownCoversWholeTable(t *testing.T) {
	for v := int32(0); v <= Max(); v++ {
		assert.True(t, Known(v), "capability %d should resolve", v)
		assert.True(t, strings.HasPrefix(Name(v), "CAP_"), "capability %d name %q", v, Name(v))
	}
}

func TestUnknownFarOutOfRange(t *testing.T) {
	// Way beyond anything a kernel will report. Platform resolvers must
	// not invent a name for it.
	assert.Equal(t, Unknown, Name(10_000))
	assert.False(t, Known(10_000))
}
