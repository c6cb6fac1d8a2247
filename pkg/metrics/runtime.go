package metrics

import (
	"runtime"
	"time"
)

// CollectRuntime starts a goroutine that periodically samples Go
// runtime stats into gauges named <prefix>_goroutines,
// <prefix>_heap_alloc_bytes, and <prefix>_gc_total.
func (r *Registry) CollectRuntime(prefix string, interval time.Duration) {
	goroutines := r.Gauge(prefix+"_goroutines", "Number of goroutines")
	heapAlloc := r.Gauge(prefix+"_heap_alloc_bytes", "Bytes of allocated heap objects")
	gcTotal := r.Gauge(prefix+"_gc_total", "Completed GC cycles")

	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		var ms runtime.MemStats
		for range ticker.C {
			runtime.ReadMemStats(&ms)
			goroutines.Set(int64(runtime.NumGoroutine()))
			heapAlloc.Set(int64(ms.HeapAlloc))
			gcTotal.Set(int64(ms.NumGC))
		}
	}()
}
