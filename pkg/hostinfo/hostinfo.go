// Package hostinfo describes the machine a benchmark runs on so results can
// be compared across hosts.
package hostinfo

import (
	"os"
	"runtime"

	"github.com/rs/zerolog"
)

// Info is a snapshot of the host.
type Info struct {
	Hostname string
	OS       string
	Arch     string
	CPUs     int
	Go       string

	// MemoryBytes is total physical memory; zero when it could not be read.
	MemoryBytes uint64
	// AvailableBytes is free memory at snapshot time where the platform
	// reports it, zero otherwise.
	AvailableBytes uint64
}

// Collect takes a snapshot of the current host.
func Collect() Info {
	host, _ := os.Hostname()
	total, avail := memory()
	return Info{
		Hostname:       host,
		OS:             runtime.GOOS,
		Arch:           runtime.GOARCH,
		CPUs:           runtime.NumCPU(),
		Go:             runtime.Version(),
		MemoryBytes:    total,
		AvailableBytes: avail,
	}
}

// MarshalZerologObject lets Info be logged with Event.Object.
func (i Info) MarshalZerologObject(e *zerolog.Event) {
	e.Str("hostname", i.Hostname).
		Str("os", i.OS).
		Str("arch", i.Arch).
		Int("cpus", i.CPUs).
		Str("go", i.Go)
	if i.MemoryBytes > 0 {
		e.Uint64("memory_bytes", i.MemoryBytes)
	}
	if i.AvailableBytes > 0 {
		e.Uint64("available_bytes", i.AvailableBytes)
	}
}
