// Package humanfmt formats byte sizes, durations, counts and insert rates for
// the human-friendly log companions and the end-of-run summary line.
package humanfmt

import (
	"fmt"
	"strconv"
	"time"
)

// Binary (IEC) units for bytes.
const (
	KiB = 1024
	MiB = 1024 * KiB
	GiB = 1024 * MiB
	TiB = 1024 * GiB
)

type unit struct {
	size   float64
	suffix string
}

var (
	byteUnits = []unit{{TiB, " TiB"}, {GiB, " GiB"}, {MiB, " MiB"}, {KiB, " KiB"}}
	// decimal suffixes for row counts and rates
	countUnits = []unit{{1e9, "B"}, {1e6, "M"}, {1e3, "K"}}
)

// scaled renders v with the largest unit it reaches, or ok=false when v is
// below every unit.
func scaled(v float64, units []unit) (s string, ok bool) {
	for _, u := range units {
		if v >= u.size {
			return fmt.Sprintf("%.2f%s", v/u.size, u.suffix), true
		}
	}
	return "", false
}

// Bytes formats a byte count using IEC binary units, e.g. "1.23 GiB".
func Bytes(b uint64) string {
	if s, ok := scaled(float64(b), byteUnits); ok {
		return s
	}
	return strconv.FormatUint(b, 10) + " B"
}

// Duration formats d compactly: "1.23s", "45.6ms", "789.0µs", "1m30s", "2h15m".
func Duration(d time.Duration) string {
	switch {
	case d < 0:
		return d.String()
	case d >= time.Hour:
		return compound(d/time.Hour, "h", (d%time.Hour)/time.Minute, "m")
	case d >= time.Minute:
		return compound(d/time.Minute, "m", (d%time.Minute)/time.Second, "s")
	case d >= time.Second:
		return fmt.Sprintf("%.2fs", d.Seconds())
	case d >= time.Millisecond:
		return fmt.Sprintf("%.1fms", float64(d)/float64(time.Millisecond))
	case d >= time.Microsecond:
		return fmt.Sprintf("%.1fµs", float64(d)/float64(time.Microsecond))
	}
	return strconv.FormatInt(d.Nanoseconds(), 10) + "ns"
}

// compound prints "<major><a>" or "<major><a><minor><b>" when minor is set.
func compound(major time.Duration, a string, minor time.Duration, b string) string {
	if minor == 0 {
		return fmt.Sprintf("%d%s", major, a)
	}
	return fmt.Sprintf("%d%s%d%s", major, a, minor, b)
}

// Count formats a row or document count: "1.23M", "456.00K", "789".
func Count(n int64) string {
	if n >= 0 {
		if s, ok := scaled(float64(n), countUnits); ok {
			return s
		}
	}
	return strconv.FormatInt(n, 10)
}

// Rate formats n items over d as a per-second rate with the given unit,
// e.g. Rate(25000, time.Second, "rows") = "25.00K rows/s".
func Rate(n int64, d time.Duration, unit string) string {
	if d <= 0 {
		return "∞ " + unit + "/s"
	}
	perSec := PerSecond(n, d)
	v, ok := scaled(perSec, countUnits)
	if !ok {
		v = fmt.Sprintf("%.0f", perSec)
	}
	return v + " " + unit + "/s"
}

// PerSecond returns n/d as a float, or 0 when d is not positive.
func PerSecond(n int64, d time.Duration) float64 {
	if d <= 0 {
		return 0
	}
	return float64(n) / d.Seconds()
}
