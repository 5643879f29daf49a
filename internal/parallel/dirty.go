package parallel

import (
	"math/bits"
	"sync/atomic"
)

// BandRows is the default number of raster rows per dirty band.
const BandRows = 16

// Span is a run of dirty rows [Y0, Y1).
type Span struct {
	Y0 int
	Y1 int
}

// Rows returns the number of rows in the span.
func (s Span) Rows() int {
	return s.Y1 - s.Y0
}

// Bands tracks which horizontal row bands of the output changed since the
// last present, using an atomic bitmap with one bit per band.
//
// All methods are safe for concurrent use without external synchronization.
// After each compute pass the coordinator marks the rows covered by the
// pass's newly claimed pixels, and every band after a render pass; the
// presenter collects and clears them.
type Bands struct {
	// words is the atomic bitmap. Bit index = band index.
	words []atomic.Uint64

	// rows is the raster height.
	rows int

	// bandRows is the height of one band.
	bandRows int

	// n is the number of bands.
	n int
}

// NewBands creates a tracker for a raster of the given height. bandRows < 1
// selects BandRows. Returns nil if rows is zero or negative.
func NewBands(rows, bandRows int) *Bands {
	if rows <= 0 {
		return nil
	}
	if bandRows < 1 {
		bandRows = BandRows
	}
	n := (rows + bandRows - 1) / bandRows
	return &Bands{
		words:    make([]atomic.Uint64, (n+63)/64),
		rows:     rows,
		bandRows: bandRows,
		n:        n,
	}
}

func (b *Bands) mark(band int) {
	b.words[band/64].Or(1 << (band & 63))
}

// MarkRows marks every band intersecting rows [y0, y1).
func (b *Bands) MarkRows(y0, y1 int) {
	y0 = max(y0, 0)
	y1 = min(y1, b.rows)
	if y0 >= y1 {
		return
	}
	for band := y0 / b.bandRows; band <= (y1-1)/b.bandRows; band++ {
		b.mark(band)
	}
}

// MarkPixels marks the bands covering the linear pixel range [lo, hi) of a
// raster width pixels wide.
func (b *Bands) MarkPixels(lo, hi, width int) {
	if width <= 0 || lo >= hi {
		return
	}
	b.MarkRows(lo/width, (hi-1)/width+1)
}

// MarkAll marks every band.
func (b *Bands) MarkAll() {
	full := b.n / 64
	for i := 0; i < full; i++ {
		b.words[i].Store(^uint64(0))
	}
	if rem := b.n % 64; rem > 0 {
		b.words[full].Store((uint64(1) << rem) - 1)
	}
}

// IsEmpty returns true if no band is marked.
func (b *Bands) IsEmpty() bool {
	for i := range b.words {
		if b.words[i].Load() != 0 {
			return false
		}
	}
	return true
}

// Count returns the number of marked bands.
func (b *Bands) Count() int {
	count := 0
	for i := range b.words {
		count += bits.OnesCount64(b.words[i].Load())
	}
	return count
}

// GetAndClear atomically collects the marked bands and clears them.
// Adjacent bands are merged; spans are returned top to bottom and clipped to
// the raster height.
func (b *Bands) GetAndClear() []Span {
	var spans []Span
	for wi := range b.words {
		word := b.words[wi].Swap(0)
		for word != 0 {
			bit := bits.TrailingZeros64(word)
			word &^= 1 << bit

			band := wi*64 + bit
			if band >= b.n {
				break
			}
			y0 := band * b.bandRows
			y1 := min(y0+b.bandRows, b.rows)
			if k := len(spans) - 1; k >= 0 && spans[k].Y1 == y0 {
				spans[k].Y1 = y1
				continue
			}
			spans = append(spans, Span{Y0: y0, Y1: y1})
		}
	}
	return spans
}

// Rows returns the raster height.
func (b *Bands) Rows() int {
	return b.rows
}

// Len returns the number of bands.
func (b *Bands) Len() int {
	return b.n
}
