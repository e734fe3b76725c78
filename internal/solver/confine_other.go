//go:build !linux

package solver

import "time"

// confineProcess is a no-op where prlimit is unavailable; the query
// timeout and the command context remain the only bounds.
func confineProcess(int, time.Duration, uint64) error {
	return nil
}
