package cgroups

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sampleProcCgroup = `12:pids:/docker/0123456789abcdef0123456789abcdef0123456789abcdef0123456789abcdef
3:cpu,cpuacct:/docker/0123456789abcdef0123456789abcdef0123456789abcdef0123456789abcdef
0::/system.slice/docker-0123456789abcdef0123456789abcdef0123456789abcdef0123456789abcdef.scope
`

func TestParse(t *testing.T) {
	entries, err := Parse(strings.NewReader(sampleProcCgroup))
	require.NoError(t, err)
	require.Len(t, entries, 3)

	assert.Equal(t, "12", entries[0].HierarchyID)
	assert.Equal(t, "pids", entries[0].Controllers)
	assert.False(t, entries[0].V2())

	assert.True(t, entries[2].V2())
	assert.Contains(t, entries[2].Path, "docker-0123456789abcdef")
}

func TestParseSkipsMalformedLines(t *testing.T) {
	entries, err := Parse(strings.NewReader("not-a-cgroup-line\n\n0::/foo\n"))
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "/foo", entries[0].Path)
}

func TestContainerIDFromPath(t *testing.T) {
	fullID := "0123456789abcdef0123456789abcdef0123456789abcdef0123456789abcdef"
	tests := []struct {
		name string
		path string
		want string
	}{
		{
			name: "docker",
			path: "/docker/" + fullID,
			want: "0123456789ab",
		},
		{
			name: "containerd",
			path: "/containerd/" + fullID,
			want: "0123456789ab",
		},
		{
			name: "crio",
			path: "/crio/" + fullID,
			want: "0123456789ab",
		},
		{
			name: "kubepods besteffort",
			path: "/kubepods/besteffort/podd9e6d5cf-5f23-4a65-a8c6-b2aab9e5b2dc/" + fullID,
			want: "0123456789ab",
		},
		{
			name: "kubepods guaranteed has no qos segment",
			path: "/kubepods/pod1234abcd-12ab-34cd-56ef-123456789abc/" + fullID,
			want: "0123456789ab",
		},
		{
			name: "systemd scope",
			path: "/system.slice/docker-" + fullID + ".scope",
			want: "0123456789ab",
		},
		{
			name: "host process",
			path: "/user.slice/user-1000.slice/session-2.scope",
			want: "",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ContainerIDFromPath(tt.path))
		})
	}
}

func TestRuntime(t *testing.T) {
	assert.Equal(t, "docker", Runtime("/docker/abc"))
	assert.Equal(t, "kubernetes", Runtime("/kubepods-burstable/pod123"))
	assert.Equal(t, "containerd", Runtime("/containerd/abc"))
	assert.Equal(t, "crio", Runtime("/crio/abc"))
	assert.Equal(t, "systemd", Runtime("/system.slice/run-123.scope"))
	assert.Equal(t, "unknown", Runtime("/init"))
}
