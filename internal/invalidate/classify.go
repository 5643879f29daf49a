package invalidate

import "github.com/gogpu/fractal/kernel"

// Change is the classification of a parameter change.
type Change struct {
	Flags Flags

	// ClearShading is set when shading is switched off: stale shading values
	// would otherwise keep darkening the recoloured image.
	ClearShading bool
}

// None reports whether the change requires no work.
func (c Change) None() bool {
	return c.Flags == 0 && !c.ClearShading
}

// Classify compares two parameter sets and returns the minimal invalidation.
//
// Raster size changes are not classified here; they go through
// Machine.MarkResize. Pans that move the origin by whole pixels go through
// Machine.MarkShift; an origin change seen here is a jump and recomputes.
//
// Shading policy: switching between two effects that share data recolours,
// switching the effect off clears shading and recolours, anything else
// recomputes.
func Classify(prev, next kernel.Params) Change {
	var c Change

	if prev.Formula != next.Formula ||
		prev.Julia != next.Julia ||
		prev.JuliaX != next.JuliaX ||
		prev.JuliaY != next.JuliaY ||
		prev.Iterations != next.Iterations ||
		prev.Scale != next.Scale ||
		prev.OriginX != next.OriginX ||
		prev.OriginY != next.OriginY {
		c.Flags |= FlagFullRecompute
	}

	if prev.Shading != next.Shading {
		switch {
		case prev.Shading.SharesData(next.Shading):
			c.Flags |= FlagRecolor
		case next.Shading == kernel.ShadingNone:
			c.Flags |= FlagRecolor
			c.ClearShading = true
		default:
			c.Flags |= FlagFullRecompute
		}
	}

	if prev.PaletteLen != next.PaletteLen ||
		prev.Interior != next.Interior ||
		prev.RenderMode != next.RenderMode ||
		prev.Speed != next.Speed ||
		prev.Flow != next.Flow {
		c.Flags |= FlagRecolor
	}

	return c
}
