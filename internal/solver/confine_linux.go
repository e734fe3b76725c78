//go:build linux

package solver

import (
	"time"

	"golang.org/x/sys/unix"
)

// confineProcess applies CPU and address-space rlimits to a running
// solver process. Both limits are advisory belts on top of the query
// timeout: a runaway solver dies from the kernel even if it stops
// reading stdin.
func confineProcess(pid int, cpu time.Duration, memBytes uint64) error {
	if cpu > 0 {
		secs := uint64(cpu / time.Second)
		if secs == 0 {
			secs = 1
		}

		lim := unix.Rlimit{Cur: secs, Max: secs}
		if err := unix.Prlimit(pid, unix.RLIMIT_CPU, &lim, nil); err != nil {
			return err
		}
	}

	if memBytes > 0 {
		lim := unix.Rlimit{Cur: memBytes, Max: memBytes}
		if err := unix.Prlimit(pid, unix.RLIMIT_AS, &lim, nil); err != nil {
			return err
		}
	}

	return nil
}
