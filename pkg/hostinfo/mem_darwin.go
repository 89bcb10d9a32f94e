//go:build darwin

package hostinfo

import "golang.org/x/sys/unix"

// memory returns total RAM from hw.memsize. Free memory is not reported.
func memory() (total, avail uint64) {
	mem, err := unix.SysctlUint64("hw.memsize")
	if err != nil {
		return 0, 0
	}
	return mem, 0
}
