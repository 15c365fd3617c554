package capabilities

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yairfalse/capio/pkg/domain"
)

func TestSplitOptDecoder(t *testing.T) {
	tests := []struct {
		name        string
		capOpt      int32
		wantAudit   bool
		wantInSetID int8
	}{
		{name: "plain audited check", capOpt: 0, wantAudit: true, wantInSetID: 0},
		{name: "noaudit bit set", capOpt: capOptNoAudit, wantAudit: false, wantInSetID: 0},
		{name: "insetid bit set", capOpt: capOptInSetID, wantAudit: true, wantInSetID: 1},
		{name: "noaudit and insetid", capOpt: capOptNoAudit | capOptInSetID, wantAudit: false, wantInSetID: 1},
		{name: "unrelated low bit ignored", capOpt: 0b1, wantAudit: true, wantInSetID: 0},
	}

	d := splitOptDecoder{}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			audit, insetid := d.Decode(tt.capOpt)
			assert.Equal(t, tt.wantAudit, audit)
			assert.Equal(t, tt.wantInSetID, insetid)
		})
	}
}

func TestFlatOptDecoder(t *testing.T) {
	d := flatOptDecoder{}

	audit, insetid := d.Decode(1)
	assert.True(t, audit)
	assert.Equal(t, domain.InSetIDUnknown, insetid, "old layout cannot express set-id checks")

	audit, insetid = d.Decode(0)
	assert.False(t, audit)
	assert.Equal(t, domain.InSetIDUnknown, insetid)
}

func TestDecoderForKernel(t *testing.T) {
	tests := []struct {
		name    string
		version kernelVersion
		want    string
	}{
		{name: "5.1 gets the bitfield", version: kernelVersion{major: 5, minor: 1}, want: "bitfield"},
		{name: "5.15 gets the bitfield", version: kernelVersion{major: 5, minor: 15, patch: 92}, want: "bitfield"},
		{name: "6.x gets the bitfield", version: kernelVersion{major: 6, minor: 1}, want: "bitfield"},
		{name: "5.0 gets the flat field", version: kernelVersion{major: 5, minor: 0}, want: "flat"},
		{name: "4.19 gets the flat field", version: kernelVersion{major: 4, minor: 19}, want: "flat"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, decoderForKernel(tt.version).Layout())
		})
	}
}

func TestParseKernelRelease(t *testing.T) {
	tests := []struct {
		name    string
		release string
		want    kernelVersion
		wantErr bool
	}{
		{name: "ubuntu", release: "5.15.0-91-generic", want: kernelVersion{5, 15, 0}},
		{name: "fedora", release: "6.8.9-300.fc40.x86_64", want: kernelVersion{6, 8, 9}},
		{name: "two components", release: "4.19", want: kernelVersion{4, 19, 0}},
		{name: "rc suffix on minor", release: "6.10-rc3", want: kernelVersion{6, 10, 0}},
		{name: "empty", release: "", wantErr: true},
		{name: "garbage", release: "linux", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := parseKernelRelease(tt.release)
			if tt.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}
