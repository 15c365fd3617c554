//go:build linux
// +build linux

package cgroups

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPathID(t *testing.T) {
	// The cgroup id of a v2 directory is its inode number, so any
	// directory exercises the resolution.
	dir := t.TempDir()
	id, err := PathID(dir)
	require.NoError(t, err)
	assert.NotZero(t, id)

	other := t.TempDir()
	otherID, err := PathID(other)
	require.NoError(t, err)
	assert.NotEqual(t, id, otherID, "distinct directories have distinct ids")
}

func TestPathIDMissing(t *testing.T) {
	_, err := PathID(t.TempDir() + "/nope")
	require.Error(t, err)
}
