package report

import (
	"runtime"
)

// MemorySnapshot is the memory usage of the program at a point in time.
type MemorySnapshot struct {
	HeapAlloc uint64
	Sys       uint64
}

// MemoryProbe takes memory snapshots. The boolean is false when the probe
// can't provide any.
type MemoryProbe interface {
	Snapshot() (MemorySnapshot, bool)
}

// SelectMemoryProbe returns the probe to use for the lifetime of the program.
// Reading the runtime statistics stops the world, so hosts that can't afford
// it disable the probe.
func SelectMemoryProbe(enabled bool) MemoryProbe {
	if !enabled {
		return noMemory{}
	}
	return runtimeMemory{}
}

type runtimeMemory struct{}

func (runtimeMemory) Snapshot() (MemorySnapshot, bool) {
	var st runtime.MemStats
	runtime.ReadMemStats(&st)
	return MemorySnapshot{
		HeapAlloc: st.HeapAlloc,
		Sys:       st.Sys,
	}, true
}

type noMemory struct{}

func (noMemory) Snapshot() (MemorySnapshot, bool) {
	return MemorySnapshot{}, false
}
