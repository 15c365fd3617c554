package capabilities

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/yairfalse/capio/pkg/domain"
)

// optionDecoder interprets the raw cap_opt word of a sample. The field
// changed meaning in kernel 5.1: before that it carried the audit flag
// directly, after it became a bitfield. The decoder is picked once at
// Start from the running kernel and applied to every sample.
type optionDecoder interface {
	// Decode returns whether the check was audited and whether the
	// capability was checked in the set-id sense. insetid is
	// domain.InSetIDUnknown when the layout cannot express it.
	Decode(capOpt int32) (audit bool, insetid int8)

	// Layout names the wire layout for logs.
	Layout() string
}

const (
	// capOptNoAudit and capOptInSetID are the CAP_OPT_NOAUDIT and
	// CAP_OPT_INSETID bits from include/linux/security.h.
	capOptNoAudit int32 = 0b10
	capOptInSetID int32 = 0b100
)

// splitOptDecoder handles kernels 5.1 and later, where cap_opt is a
// bitfield.
type splitOptDecoder struct{}

func (splitOptDecoder) Decode(capOpt int32) (bool, int8) {
	audit := capOpt&capOptNoAudit == 0
	var insetid int8
	if capOpt&capOptInSetID != 0 {
		insetid = 1
	}
	return audit, insetid
}

func (splitOptDecoder) Layout() string { return "bitfield" }

// flatOptDecoder handles kernels before 5.1, where the whole word is
// the audit flag and set-id information does not exist on the wire.
type flatOptDecoder struct{}

func (flatOptDecoder) Decode(capOpt int32) (bool, int8) {
	return capOpt != 0, domain.InSetIDUnknown
}

func (flatOptDecoder) Layout() string { return "flat" }

// kernelVersion is a parsed kernel release.
type kernelVersion struct {
	major int
	minor int
	patch int
}

func (v kernelVersion) String() string {
	return fmt.Sprintf("%d.%d.%d", v.major, v.minor, v.patch)
}

func (v kernelVersion) atLeast(major, minor int) bool {
	if v.major != major {
		return v.major > major
	}
	return v.minor >= minor
}

// splitOptKernel is the first kernel with the bitfield cap_opt layout.
var splitOptKernel = kernelVersion{major: 5, minor: 1}

// decoderForKernel picks the cap_opt layout for a kernel version.
func decoderForKernel(v kernelVersion) optionDecoder {
	if v.atLeast(splitOptKernel.major, splitOptKernel.minor) {
		return splitOptDecoder{}
	}
	return flatOptDecoder{}
}

// parseKernelRelease parses a uname release like "5.15.0-91-generic".
// Suffixes after the patch number are ignored.
func parseKernelRelease(release string) (kernelVersion, error) {
	var v kernelVersion
	parts := strings.SplitN(release, ".", 3)
	if len(parts) < 2 {
		return v, fmt.Errorf("unparseable kernel release %q", release)
	}
	major, err := strconv.Atoi(parts[0])
	if err != nil {
		return v, fmt.Errorf("unparseable kernel release %q: %w", release, err)
	}
	minor, err := strconv.Atoi(numericPrefix(parts[1]))
	if err != nil {
		return v, fmt.Errorf("unparseable kernel release %q: %w", release, err)
	}
	v.major = major
	v.minor = minor
	if len(parts) == 3 {
		// Patch is informational only; parse what we can.
		if patch, err := strconv.Atoi(numericPrefix(parts[2])); err == nil {
			v.patch = patch
		}
	}
	return v, nil
}

func numericPrefix(s string) string {
	for i := 0; i < len(s); i++ {
		if s[i] < '0' || s[i] > '9' {
			return s[:i]
		}
	}
	return s
}
