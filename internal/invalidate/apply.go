package invalidate

import "github.com/gogpu/fractal/internal/arena"

// ResetIterations marks every pixel uncomputed. The kernel treats the
// sentinel as "needs computation", so no copy is needed.
func ResetIterations(iter, shading []float32) {
	clear(iter)
	clear(shading)
}

// ClearColors clears the RGBA output.
func ClearColors(colors []uint32) {
	clear(colors)
}

// Shifter moves per-pixel data for continuous panning.
// It reuses one scratch buffer across shifts.
type Shifter struct {
	scratch []float32
}

// Shift moves the w×h raster data by (dx, dy) pixels: a value at (x, y) that
// stays in bounds lands at (x+dx, y+dy). Values shifted out of bounds are
// dropped and newly exposed pixels become arena.Uncomputed.
//
// The copy goes row by row through a freshly zeroed buffer.
func (s *Shifter) Shift(data []float32, w, h, dx, dy int) {
	n := w * h
	if n == 0 || len(data) < n || (dx == 0 && dy == 0) {
		return
	}
	if cap(s.scratch) < n {
		s.scratch = make([]float32, n)
	}
	dst := s.scratch[:n]
	clear(dst)

	srcX, dstX := 0, dx
	if dx < 0 {
		srcX, dstX = -dx, 0
	}
	srcY, dstY := 0, dy
	if dy < 0 {
		srcY, dstY = -dy, 0
	}
	copyW := w - abs(dx)
	copyH := h - abs(dy)

	for y := 0; y < copyH && copyW > 0; y++ {
		from := (srcY+y)*w + srcX
		to := (dstY+y)*w + dstX
		copy(dst[to:to+copyW], data[from:from+copyW])
	}
	copy(data[:n], dst)
}

// ShiftArena applies a pan to the arena's iteration data and, when active,
// its shading data.
func (s *Shifter) ShiftArena(a *arena.Arena, w, h, dx, dy int, shading bool) {
	s.Shift(a.Iterations(), w, h, dx, dy)
	if shading {
		s.Shift(a.Shading(), w, h, dx, dy)
	} else {
		clear(a.Shading())
	}
}

func abs(x int) int {
	if x < 0 {
		return -x
	}
	return x
}
