//go:build linux

package hostinfo

import "golang.org/x/sys/unix"

// memory returns total and free RAM using sysinfo.
func memory() (total, avail uint64) {
	var info unix.Sysinfo_t
	if err := unix.Sysinfo(&info); err != nil {
		return 0, 0
	}
	unit := uint64(info.Unit)
	return uint64(info.Totalram) * unit, uint64(info.Freeram) * unit
}
