package kernel

import (
	"testing"

	"github.com/gogpu/fractal/internal/arena"
	"github.com/gogpu/fractal/internal/sched"
)

func newBuffers(t *testing.T, w, h int, palette []uint32) (*arena.Arena, Buffers) {
	t.Helper()
	a := arena.New(0)
	if _, err := a.Relayout(w*h, len(palette)); err != nil {
		t.Fatal(err)
	}
	a.SetPalette(palette)
	return a, BuffersFrom(a)
}

func testParams(w, h int) Params {
	return Params{
		Formula:    Mandelbrot,
		Width:      w,
		Height:     h,
		OriginX:    -2,
		OriginY:    -1.5,
		Scale:      3.0 / float64(h),
		Iterations: 200,
		PaletteLen: 4,
		Interior:   0xff000000,
		Speed:      1,
	}
}

var testPalette = []uint32{0xff0000ff, 0xff00ff00, 0xffff0000, 0xffffffff}

func TestEscapeTime_ComputeCoversImage(t *testing.T) {
	const w, h = 40, 30
	_, b := newBuffers(t, w, h, testPalette)
	p := testParams(w, h)

	var k EscapeTime
	for range 10000 {
		r := k.Compute(b, p, 500)
		if r.Kind == sched.KindExhausted {
			break
		}
		if r.Kind != sched.KindProgress {
			t.Fatalf("unexpected result %v", r)
		}
	}

	for i, v := range b.Iterations {
		if v == arena.Uncomputed {
			t.Fatalf("pixel %d left uncomputed", i)
		}
		if v != arena.Interior && v < 1 {
			t.Fatalf("pixel %d escape value %v < 1", i, v)
		}
		if b.Colors[i]>>24 != 0xff {
			t.Fatalf("pixel %d colour %#x not opaque", i, b.Colors[i])
		}
	}
}

func TestEscapeTime_ProgressIsChunkEnd(t *testing.T) {
	const w, h = 64, 64
	_, b := newBuffers(t, w, h, testPalette)
	p := testParams(w, h)

	r := EscapeTime{}.Compute(b, p, 1)
	if r.Kind != sched.KindProgress {
		t.Fatalf("result = %v, want progress", r)
	}
	if r.Index != ClaimSize {
		t.Errorf("Index = %d, want %d", r.Index, ClaimSize)
	}
	if got := b.Cursor.Load(); got != ClaimSize {
		t.Errorf("cursor = %d, want %d", got, ClaimSize)
	}
}

func TestEscapeTime_ExhaustedPastEnd(t *testing.T) {
	const w, h = 8, 8
	_, b := newBuffers(t, w, h, testPalette)
	b.Cursor.Claim(1000, w*h)

	r := EscapeTime{}.Compute(b, testParams(w, h), 100)
	if r.Kind != sched.KindExhausted {
		t.Errorf("result = %v, want exhausted", r)
	}
	for i, v := range b.Iterations {
		if v != arena.Uncomputed {
			t.Fatalf("pixel %d computed after exhausted claim", i)
		}
	}
}

func TestEscapeTime_KeepsComputedPixels(t *testing.T) {
	const w, h = 16, 16
	_, b := newBuffers(t, w, h, testPalette)
	for i := range b.Iterations {
		b.Iterations[i] = 5
	}
	EscapeTime{}.Compute(b, testParams(w, h), 1<<30)
	for i, v := range b.Iterations {
		if v != 5 {
			t.Fatalf("pixel %d recomputed: %v", i, v)
		}
	}
}

func TestEscapeTime_RenderRange(t *testing.T) {
	const w, h = 10, 10
	_, b := newBuffers(t, w, h, testPalette)
	for i := range b.Iterations {
		b.Iterations[i] = arena.Interior
	}
	p := testParams(w, h)
	p.Interior = 0xff123456

	EscapeTime{}.Render(b, p, 20, 40)
	for i, c := range b.Colors {
		inRange := i >= 20 && i < 40
		if inRange && c != 0xff123456 {
			t.Fatalf("pixel %d = %#x, want interior", i, c)
		}
		if !inRange && c != 0 {
			t.Fatalf("pixel %d outside range written: %#x", i, c)
		}
	}
}

func TestFormula_Cycle(t *testing.T) {
	fs := Formulas()
	if len(fs) != formulaCount {
		t.Fatalf("len(Formulas()) = %d, want %d", len(fs), formulaCount)
	}
	if got := Tricorn.Next(); got != Mandelbrot {
		t.Errorf("Tricorn.Next() = %v, want Mandelbrot", got)
	}
	if got := Mandelbrot.Prev(); got != Tricorn {
		t.Errorf("Mandelbrot.Prev() = %v, want Tricorn", got)
	}
	if Formula(0).Valid() {
		t.Error("Formula(0) should be invalid")
	}
}

func TestShading_SharesData(t *testing.T) {
	tests := []struct {
		from, to Shading
		want     bool
	}{
		{ShadingShadow, ShadingInvertedShadow, true},
		{ShadingInvertedShadow, ShadingShadow, true},
		{ShadingNone, ShadingShadow, false},
		{ShadingShadow, ShadingStripes, false},
	}
	for _, tt := range tests {
		t.Run(tt.from.String()+"->"+tt.to.String(), func(t *testing.T) {
			if got := tt.from.SharesData(tt.to); got != tt.want {
				t.Errorf("SharesData = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestMix_Endpoints(t *testing.T) {
	a, b := uint32(0xff000000), uint32(0xffffffff)
	if got := mix(a, b, 0); got != 0xff000000 {
		t.Errorf("mix(t=0) = %#x", got)
	}
	if got := darken(0xffffffff, 1); got != 0xff000000 {
		t.Errorf("darken(l=1) = %#x, want black", got)
	}
	if got := darken(0xff808080, 0); got != 0xff808080 {
		t.Errorf("darken(l=0) = %#x, want unchanged", got)
	}
}
