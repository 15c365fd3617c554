//go:build linux
// +build linux

package capnames

import (
	"strings"

	"kernel.org/pub/linux/libs/security/libcap/cap"
)

// platformName asks libcap about capability numbers the static table does
// not cover, so kernels newer than this build still get real names.
func platformName(v int32) string {
	if v < 0 || cap.Value(v) >= cap.MaxBits() {
		return ""
	}
	// libcap falls back to a bare decimal string for values it has no
	// name for; only a real cap_* name counts as resolved.
	s := cap.Value(v).String()
	if !strings.HasPrefix(s, "cap_") {
		return ""
	}
	return strings.ToUpper(s)
}
