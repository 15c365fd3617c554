//go:build !linux || !ebpf

package capabilities

// startEBPF is unavailable without the probe. Run with EnableEBPF
// false to use the mock generator instead.
func (o *Observer) startEBPF(sess *session) error {
	return errEBPFUnavailable
}

func (o *Observer) stopEBPF() {}
