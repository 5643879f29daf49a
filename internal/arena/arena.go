// Package arena implements the single growable memory region shared by the
// coordinator and every worker.
//
// The arena is one linear buffer holding the atomic pixel cursor, the palette
// table, the per-pixel iteration and shading values, and the RGBA output.
// Typed views are derived from the current backing buffer on demand; any view
// taken before a growth must be re-derived afterwards because the backing
// buffer's identity changes.
//
// Thread safety: only the coordinator may call Relayout or EnsureCapacity, and
// only while no pass is in flight. Workers access disjoint pixel ranges of the
// views and the cursor through atomic operations.
package arena

import (
	"errors"
	"fmt"
	"sync/atomic"
	"unsafe"
)

// ErrCapacity is returned when the arena cannot grow to the required size.
var ErrCapacity = errors.New("arena: memory limit exceeded")

// Arena is the shared linear buffer.
type Arena struct {
	// words backs the buffer; uint64 elements guarantee 8-byte alignment
	// for the cursor word and every region.
	words []uint64

	// buf is the byte view of words.
	buf []byte

	// limit is the hard ceiling in bytes (page aligned).
	limit int

	// layout is the active layout.
	layout Layout
}

// New creates an arena with one committed page and the given hard ceiling in
// bytes. A limit of 0 or less selects DefaultLimit.
func New(limit int) *Arena {
	if limit <= 0 {
		limit = DefaultLimit
	}
	limit = limit / PageSize * PageSize
	if limit < PageSize {
		limit = PageSize
	}

	a := &Arena{limit: limit}
	a.grow(PageSize)
	a.layout = Compute(0, 0)
	return a
}

// Len returns the committed buffer length in bytes.
func (a *Arena) Len() int {
	return len(a.buf)
}

// Limit returns the hard ceiling in bytes.
func (a *Arena) Limit() int {
	return a.limit
}

// Layout returns the active layout.
func (a *Arena) Layout() Layout {
	return a.layout
}

// EnsureCapacity grows the buffer to at least required bytes, rounded up to
// whole pages. It is a no-op when the buffer is already large enough.
// Existing contents are preserved. Growth never shrinks the buffer.
func (a *Arena) EnsureCapacity(required int) error {
	if required <= len(a.buf) {
		return nil
	}
	size := roundPages(required)
	if size > a.limit {
		return fmt.Errorf("%w: need %d bytes, limit is %d bytes", ErrCapacity, size, a.limit)
	}
	a.grow(size)
	return nil
}

func (a *Arena) grow(size int) {
	words := make([]uint64, size/8)
	copy(words, a.words)
	a.words = words
	a.buf = unsafe.Slice((*byte)(unsafe.Pointer(&words[0])), size) //nolint:gosec // words is never empty
}

// Relayout computes the layout for pixels and paletteEntries and ensures the
// buffer can hold it.
//
// When the pixel count is unchanged, the per-pixel regions are moved to their
// new offsets so iteration data survives a palette length change. When the
// pixel count changes, the per-pixel regions are zeroed: old data is
// meaningless for a different raster.
//
// On error the previous layout stays active.
func (a *Arena) Relayout(pixels, paletteEntries int) (Layout, error) {
	next := Compute(pixels, paletteEntries)
	if err := a.EnsureCapacity(next.Total); err != nil {
		return a.layout, err
	}

	prev := a.layout
	switch {
	case prev.Pixels != next.Pixels:
		clear(a.buf[next.Iterations:next.Total])
	case !prev.SamePixelOffsets(next):
		// Regions keep the same spacing, so one overlapping copy moves all three.
		copy(a.buf[next.Iterations:next.Total], a.buf[prev.Iterations:prev.Total])
	}

	a.layout = next
	return next, nil
}

// Cursor returns the shared pixel cursor stored in the first word.
func (a *Arena) Cursor() *atomic.Int64 {
	return (*atomic.Int64)(unsafe.Pointer(&a.words[0])) //nolint:gosec // word 0 is reserved for the cursor
}

// Palette returns the palette table including the wrap-around entry.
func (a *Arena) Palette() []uint32 {
	l := a.layout
	return uint32s(a.buf[l.Palette : l.Palette+(l.PaletteEntries+1)*4])
}

// Iterations returns the per-pixel escape values.
func (a *Arena) Iterations() []float32 {
	l := a.layout
	return float32s(a.buf[l.Iterations : l.Iterations+l.Pixels*4])
}

// Shading returns the per-pixel shading values.
func (a *Arena) Shading() []float32 {
	l := a.layout
	return float32s(a.buf[l.Shading : l.Shading+l.Pixels*4])
}

// Colors returns the per-pixel packed RGBA output.
func (a *Arena) Colors() []uint32 {
	l := a.layout
	return uint32s(a.buf[l.Colors : l.Colors+l.Pixels*4])
}

// ColorBytes returns the RGBA output as bytes in R, G, B, A order.
func (a *Arena) ColorBytes() []byte {
	l := a.layout
	return a.buf[l.Colors : l.Colors+l.Pixels*4]
}

// SetPalette writes entries into the palette region followed by the wrap
// entry. The layout must have been computed for len(entries).
func (a *Arena) SetPalette(entries []uint32) {
	dst := a.Palette()
	n := copy(dst, entries)
	if n > 0 && n < len(dst) {
		dst[n] = entries[0]
	}
}

func float32s(b []byte) []float32 {
	if len(b) == 0 {
		return nil
	}
	return unsafe.Slice((*float32)(unsafe.Pointer(&b[0])), len(b)/4) //nolint:gosec // regions are 8-byte aligned
}

func uint32s(b []byte) []uint32 {
	if len(b) == 0 {
		return nil
	}
	return unsafe.Slice((*uint32)(unsafe.Pointer(&b[0])), len(b)/4) //nolint:gosec // regions are 8-byte aligned
}
