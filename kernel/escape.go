package kernel

import (
	"math"

	"github.com/gogpu/fractal/internal/arena"
	"github.com/gogpu/fractal/internal/sched"
)

const (
	// bailout is the squared escape radius. A large radius keeps the smooth
	// escape value continuous.
	bailout = 10000.0

	// stripeDensity is the angular frequency of the stripes effect.
	stripeDensity = 5.0

	// recolorCost is the work charged for a pixel that only needs colouring.
	recolorCost = 1

	// escapeCost is the base work charged for an escaped pixel.
	escapeCost = 12
)

// EscapeTime is the reference kernel. It is stateless and safe to share
// between workers.
type EscapeTime struct{}

// Compute implements Kernel.
func (EscapeTime) Compute(b Buffers, p Params, budget int) sched.Result {
	total := p.Pixels()
	if total == 0 || !p.Formula.Valid() {
		return sched.Exhausted()
	}
	f := &formulas[p.Formula]
	c := newColorizer(p, b.Palette)

	score := 0
	for {
		chunk, ok := b.Cursor.Claim(ClaimSize, total)
		if !ok {
			return sched.Exhausted()
		}

		for t := chunk.Start; t < chunk.End; t++ {
			if b.Iterations[t] == arena.Uncomputed {
				x := p.OriginX + float64(t%p.Width)*p.Scale
				y := p.OriginY + float64(t/p.Width)*p.Scale
				cx, cy := x, y
				if p.Julia {
					cx, cy = p.JuliaX, p.JuliaY
				}
				n, l := escape(f, p.Iterations, x, y, cx, cy, p.Shading)
				b.Iterations[t] = n
				b.Shading[t] = l
				if n == arena.Interior {
					score += p.Iterations + 2
				} else {
					score += escapeCost + int(n)
				}
			} else {
				score += recolorCost
			}
			b.Colors[t] = c.color(b.Iterations[t], b.Shading[t])
		}

		if chunk.End >= total {
			return sched.Exhausted()
		}
		if score >= budget {
			return sched.Progress(chunk.End)
		}
	}
}

// Render implements Kernel.
func (EscapeTime) Render(b Buffers, p Params, lo, hi int) {
	lo = max(lo, 0)
	hi = min(hi, len(b.Colors))
	c := newColorizer(p, b.Palette)
	for i := lo; i < hi; i++ {
		b.Colors[i] = c.color(b.Iterations[i], b.Shading[i])
	}
}

// escape iterates one point and returns its smooth escape value (>= 1) or
// arena.Interior, plus the shading value in [0, 1].
func escape(f *formula, iterations int, x, y, cx, cy float64, shading Shading) (float32, float32) {
	zr, zi := x, y
	stripes := 0.0
	for n := 1; n <= iterations; n++ {
		zr, zi = f.step(zr, zi)
		zr += cx
		zi += cy
		m := zr*zr + zi*zi
		if shading == ShadingStripes {
			stripes += 0.5 + 0.5*math.Sin(stripeDensity*math.Atan2(zi, zr))
		}
		if m > bailout {
			v := float64(n) - math.Log2(math.Log2(math.Sqrt(m)))/math.Log2(float64(f.power))
			if v < 1 {
				v = 1
			}
			return float32(v), shade(shading, zr, zi, stripes, n)
		}
	}
	return arena.Interior, 0
}

func shade(s Shading, zr, zi, stripes float64, n int) float32 {
	switch s {
	case ShadingShadow, ShadingInvertedShadow:
		// Light from the upper left; the final orbit angle approximates the
		// surface normal far from the set.
		l := 0.5 + 0.5*math.Cos(math.Atan2(zi, zr)-math.Pi/4)
		return float32(l * 0.75)
	case ShadingStripes:
		return float32(stripes / float64(n) * 0.7)
	default:
		return 0
	}
}

// colorizer maps escape and shading values to packed RGBA.
type colorizer struct {
	p       Params
	palette []uint32
	speed1  float64
	speed2  float64
}

func newColorizer(p Params, palette []uint32) colorizer {
	speed := float64(p.Speed)
	if speed <= 0 {
		speed = 1
	}
	return colorizer{
		p:       p,
		palette: palette,
		speed1:  math.Sqrt(math.Sqrt(speed)),
		speed2:  0.035 * speed,
	}
}

func (c colorizer) color(v, l float32) uint32 {
	if v == arena.Uncomputed {
		return 0
	}
	if v == arena.Interior || c.p.PaletteLen <= 0 || len(c.palette) < c.p.PaletteLen+1 {
		return c.p.Interior
	}
	if c.p.Shading == ShadingInvertedShadow {
		l = 1 - l
	}

	return darken(c.lookup(c.position(v)), l)
}

// position maps an escape value to an unwrapped palette position.
func (c colorizer) position(v float32) float64 {
	pos := float64(c.p.Flow)
	if v > 1 {
		n := float64(v)
		pos += math.Log2(n)*c.speed1 + (n-1)*c.speed2
	}
	return pos
}

// PalettePosition returns where escape value v lands in the palette, in
// [0, p.PaletteLen). It returns -1 for interior or uncomputed pixels.
func PalettePosition(p Params, v float32) float64 {
	if v == arena.Uncomputed || v == arena.Interior || p.PaletteLen <= 0 {
		return -1
	}
	n := float64(p.PaletteLen)
	pos := math.Mod(newColorizer(p, nil).position(v), n)
	if pos < 0 {
		pos += n
	}
	return pos
}

func (c colorizer) lookup(pos float64) uint32 {
	n := float64(c.p.PaletteLen)
	pos = math.Mod(pos, n)
	if pos < 0 {
		pos += n
	}
	i := int(pos)
	if i >= c.p.PaletteLen {
		i = c.p.PaletteLen - 1
	}
	frac := pos - float64(i)
	a, b := c.palette[i], c.palette[i+1]

	switch c.p.RenderMode {
	case RenderBanded:
		return a | 0xff000000
	case RenderSharp:
		return mix(a, b, frac*frac*frac)
	case RenderSoft:
		return mix(a, b, frac*frac*(3-2*frac))
	default:
		return mix(a, b, frac)
	}
}

// mix blends two packed colours; t is the weight of b.
func mix(a, b uint32, t float64) uint32 {
	w := uint32(t * 255)
	inv := 255 - w
	r := ((a&0xff)*inv + (b&0xff)*w) >> 8
	g := (((a>>8)&0xff)*inv + ((b>>8)&0xff)*w) >> 8
	bl := (((a>>16)&0xff)*inv + ((b>>16)&0xff)*w) >> 8
	return r | g<<8 | bl<<16 | 0xff000000
}

// darken moves a packed colour toward black by amount l in [0, 1].
func darken(c uint32, l float32) uint32 {
	if l <= 0 {
		return c
	}
	if l > 1 {
		l = 1
	}
	inv := 255 - uint32(l*255)
	r := ((c & 0xff) * inv) >> 8
	g := (((c >> 8) & 0xff) * inv) >> 8
	b := (((c >> 16) & 0xff) * inv) >> 8
	return r | g<<8 | b<<16 | 0xff000000
}
