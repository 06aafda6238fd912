package common

import (
	"os"
	"runtime"
	"runtime/debug"

	"github.com/rs/zerolog"
)

// Runtime profiles keyed by CPU count. Quote requests allocate many short
// lived big.Ints, so GC runs less often and GOMEMLIMIT bounds the heap.
const (
	smallServerGOGC     = 200
	smallServerMemLimit = 2 * 1024 * 1024 * 1024

	largeServerGOGC     = 400
	largeServerMemLimit = 8 * 1024 * 1024 * 1024
)

func serverProfile(numCPU int) (gogc int, memLimit int64) {
	if numCPU <= 2 {
		return smallServerGOGC, smallServerMemLimit
	}
	return largeServerGOGC, largeServerMemLimit
}

// TuneRuntime applies GOGC and GOMEMLIMIT defaults unless the environment
// already sets them. GOMAXPROCS is left to the runtime.
func TuneRuntime(logger zerolog.Logger) {
	gogc, memLimit := serverProfile(runtime.NumCPU())
	if os.Getenv("GOGC") == "" {
		debug.SetGCPercent(gogc)
	}
	if os.Getenv("GOMEMLIMIT") == "" {
		debug.SetMemoryLimit(memLimit)
	}

	var memStats runtime.MemStats
	runtime.ReadMemStats(&memStats)
	logger.Info().
		Int("num_cpu", runtime.NumCPU()).
		Int("gomaxprocs", runtime.GOMAXPROCS(0)).
		Int("gogc", gogc).
		Int64("gomemlimit_bytes", memLimit).
		Uint64("heap_alloc_mb", memStats.HeapAlloc/1024/1024).
		Str("go_version", runtime.Version()).
		Msg("runtime tuned")
}
