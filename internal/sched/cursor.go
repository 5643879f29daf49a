// Package sched divides pixel space among workers without static
// partitioning.
//
// A single shared atomic cursor holds the next unclaimed pixel index. A worker
// claims a contiguous chunk with one fetch-add, so chunks are disjoint and
// monotonically increasing by construction and no other locking is needed.
// Each worker sizes its claims from its own adaptive cost budget (see
// CostModel), which lets heterogeneous workers converge on the same pass
// duration and tolerates a straggler without work stealing.
package sched

import "sync/atomic"

// Chunk is a half-open pixel index range [Start, End).
type Chunk struct {
	Start int
	End   int
}

// Len returns the number of pixels in the chunk.
func (c Chunk) Len() int {
	return c.End - c.Start
}

// Cursor is a handle to the shared pixel cursor.
// The zero value is not usable; create one with NewCursor.
type Cursor struct {
	v *atomic.Int64
}

// NewCursor wraps the atomic word v.
func NewCursor(v *atomic.Int64) Cursor {
	return Cursor{v: v}
}

// Claim atomically reserves the next n pixels of a space of total pixels.
// The returned chunk is clipped to total. When the reservation starts at or
// past total, Claim returns false and no work must be performed.
// A request of less than one pixel claims one pixel.
func (c Cursor) Claim(n, total int) (Chunk, bool) {
	if n < 1 {
		n = 1
	}
	end := int(c.v.Add(int64(n)))
	start := end - n
	if start >= total {
		return Chunk{}, false
	}
	if end > total {
		end = total
	}
	return Chunk{Start: start, End: end}, true
}

// Load returns the next unclaimed index. It may exceed the pixel count once
// the space is exhausted.
func (c Cursor) Load() int {
	return int(c.v.Load())
}

// Reset restarts claiming at pixel 0.
// It must only be called while no worker is claiming.
func (c Cursor) Reset() {
	c.v.Store(0)
}
