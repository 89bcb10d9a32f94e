//go:build freebsd || openbsd || netbsd || dragonfly

package hostinfo

import "golang.org/x/sys/unix"

// memory returns total RAM from hw.physmem, falling back to hw.realmem.
func memory() (total, avail uint64) {
	for _, name := range []string{"hw.physmem", "hw.realmem"} {
		if mem, err := unix.SysctlUint64(name); err == nil && mem > 0 {
			return mem, 0
		}
	}
	return 0, 0
}
