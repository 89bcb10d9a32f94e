package benchutil

import (
	"os"
	"testing"
)

// Shared constants for benchmarks across packages.

// BenchmarkSeed is the default seed for reproducible benchmark data generation.
const BenchmarkSeed = 42

// BenchmarkBatchSizes are the batch sizes compared by insert benchmarks.
var BenchmarkBatchSizes = []int{100, 1000, 10000}

// SkipIfNoLongBench skips the benchmark if TOKENBENCH_LONG_BENCH is not set.
// Use this to gate long-running benchmarks that shouldn't run by default.
func SkipIfNoLongBench(b *testing.B) {
	if os.Getenv("TOKENBENCH_LONG_BENCH") == "" {
		b.Skip("set TOKENBENCH_LONG_BENCH=1 to run scaling benchmark")
	}
}
