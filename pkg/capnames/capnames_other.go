//go:build !linux
// +build !linux

package capnames

// platformName has no resolver beyond the static table off Linux.
func platformName(v int32) string {
	return ""
}
