// Package memory provides Arrow allocators instrumented with Prometheus
// metrics.
package memory

import (
	"sync/atomic"

	"github.com/apache/arrow-go/v18/arrow/memory"

	"github.com/23skdu/bandcluster/internal/metrics"
)

// TrackingAllocator wraps a base memory.Allocator and updates Prometheus metrics
type TrackingAllocator struct {
	memory.Allocator
	BytesAllocated atomic.Int64
	BytesFreed     atomic.Int64
}

// NewTrackingAllocator wraps base. A nil base means memory.DefaultAllocator.
func NewTrackingAllocator(base memory.Allocator) *TrackingAllocator {
	if base == nil {
		base = memory.DefaultAllocator
	}
	return &TrackingAllocator{Allocator: base}
}

func (a *TrackingAllocator) Allocate(size int) []byte {
	a.BytesAllocated.Add(int64(size))
	metrics.ArrowBytesAllocatedTotal.Add(float64(size))
	metrics.ArrowAllocationsActive.Inc()
	return a.Allocator.Allocate(size)
}

// Reallocate counts the new size as allocated; the live buffer count is
// unchanged.
func (a *TrackingAllocator) Reallocate(size int, b []byte) []byte {
	a.BytesAllocated.Add(int64(size))
	a.BytesFreed.Add(int64(len(b)))
	metrics.ArrowBytesAllocatedTotal.Add(float64(size))
	metrics.ArrowBytesFreedTotal.Add(float64(len(b)))
	return a.Allocator.Reallocate(size, b)
}

func (a *TrackingAllocator) Free(b []byte) {
	a.BytesFreed.Add(int64(len(b)))
	metrics.ArrowBytesFreedTotal.Add(float64(len(b)))
	metrics.ArrowAllocationsActive.Dec()
	a.Allocator.Free(b)
}

// Outstanding returns allocated minus freed bytes.
func (a *TrackingAllocator) Outstanding() int64 {
	return a.BytesAllocated.Load() - a.BytesFreed.Load()
}

var _ memory.Allocator = (*TrackingAllocator)(nil)
