package silk

import (
	"sync/atomic"

	"github.com/ehrlich-b/silk/internal/interfaces"
)

// Observer receives engine lifecycle events. Implementations must be safe
// for concurrent use: the worker goroutine and any number of external
// callers may invoke it concurrently.
type Observer = interfaces.Observer

// NoOpObserver implements Observer by discarding everything. It is the
// default when Params.Observer is nil.
type NoOpObserver struct{}

func (NoOpObserver) ObserveAlloc(ok bool)          {}
func (NoOpObserver) ObserveDispatch(ok bool)       {}
func (NoOpObserver) ObserveKill(ok bool)           {}
func (NoOpObserver) ObserveYield(latencyNs uint64) {}
func (NoOpObserver) ObserveQueueDepth(depth int)   {}

// Metrics accumulates the counters a MetricsObserver records: alloc/
// dispatch/kill attempt and failure counts, queue depth samples, and a
// cumulative yield latency total, mirroring the teacher's own atomic-
// counters Metrics struct.
type Metrics struct {
	AllocOps      atomic.Uint64
	AllocFailures atomic.Uint64

	DispatchOps      atomic.Uint64
	DispatchFailures atomic.Uint64

	KillOps      atomic.Uint64
	KillFailures atomic.Uint64

	YieldOps          atomic.Uint64
	YieldLatencyNsSum atomic.Uint64

	QueueDepthTotal atomic.Uint64
	QueueDepthCount atomic.Uint64
	MaxQueueDepth   atomic.Uint32
}

// NewMetrics constructs a zeroed Metrics.
func NewMetrics() *Metrics {
	return &Metrics{}
}

// MetricsObserver is an Observer backed by a Metrics.
type MetricsObserver struct {
	M *Metrics
}

// NewMetricsObserver constructs a MetricsObserver backed by a fresh
// Metrics.
func NewMetricsObserver() *MetricsObserver {
	return &MetricsObserver{M: NewMetrics()}
}

func (o *MetricsObserver) ObserveAlloc(ok bool) {
	o.M.AllocOps.Add(1)
	if !ok {
		o.M.AllocFailures.Add(1)
	}
}

func (o *MetricsObserver) ObserveDispatch(ok bool) {
	o.M.DispatchOps.Add(1)
	if !ok {
		o.M.DispatchFailures.Add(1)
	}
}

func (o *MetricsObserver) ObserveKill(ok bool) {
	o.M.KillOps.Add(1)
	if !ok {
		o.M.KillFailures.Add(1)
	}
}

func (o *MetricsObserver) ObserveYield(latencyNs uint64) {
	o.M.YieldOps.Add(1)
	o.M.YieldLatencyNsSum.Add(latencyNs)
}

func (o *MetricsObserver) ObserveQueueDepth(depth int) {
	o.M.QueueDepthTotal.Add(uint64(depth))
	o.M.QueueDepthCount.Add(1)
	for {
		cur := o.M.MaxQueueDepth.Load()
		if uint32(depth) <= cur {
			return
		}
		if o.M.MaxQueueDepth.CompareAndSwap(cur, uint32(depth)) {
			return
		}
	}
}
