package cli

import (
	"fmt"
	"io"
	"os"

	"github.com/yairfalse/capio/pkg/capnames"
	"github.com/yairfalse/capio/pkg/domain"
)

// renderer prints the event table. With a mirror path set, every line
// also goes to that file.
type renderer struct {
	out         io.Writer
	file        *os.File
	extraFields bool
}

func newRenderer(out io.Writer, extraFields bool, mirrorPath string) (*renderer, error) {
	r := &renderer{out: out, extraFields: extraFields}
	if mirrorPath != "" {
		f, err := os.OpenFile(mirrorPath, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o644)
		if err != nil {
			return nil, fmt.Errorf("opening output file: %w", err)
		}
		r.file = f
		r.out = io.MultiWriter(out, f)
	}
	return r, nil
}

func (r *renderer) Close() error {
	if r.file != nil {
		return r.file.Close()
	}
	return nil
}

// Banner prints the column header. PID is the process group, TID the
// thread that made the check.
func (r *renderer) Banner() error {
	var err error
	if r.extraFields {
		_, err = fmt.Fprintf(r.out, "%-9s %-6s %-6s %-6s %-16s %-4s %-20s %-6s %s\n",
			"TIME", "UID", "PID", "TID", "COMM", "CAP", "NAME", "AUDIT", "INSETID")
	} else {
		_, err = fmt.Fprintf(r.out, "%-9s %-6s %-6s %-16s %-4s %-20s %-6s\n",
			"TIME", "UID", "PID", "COMM", "CAP", "NAME", "AUDIT")
	}
	return err
}

// Line prints one capability check. INSETID is -1 when the kernel's
// cap_opt layout predates the set-id flag.
func (r *renderer) Line(ev *domain.CapabilityEvent) error {
	t := ev.Timestamp.Format("15:04:05")
	audit := 0
	if ev.Audit {
		audit = 1
	}

	var err error
	if r.extraFields {
		_, err = fmt.Fprintf(r.out, "%-9s %-6d %-6d %-6d %-16s %-4d %-20s %-6d %d\n",
			t, ev.UID, ev.TGID, ev.PID, ev.Comm, ev.Cap, capnames.Name(ev.Cap), audit, ev.InSetID)
	} else {
		_, err = fmt.Fprintf(r.out, "%-9s %-6d %-6d %-16s %-4d %-20s %-6d\n",
			t, ev.UID, ev.TGID, ev.Comm, ev.Cap, capnames.Name(ev.Cap), audit)
	}
	return err
}
