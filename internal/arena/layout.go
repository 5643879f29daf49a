package arena

const (
	// PageSize is the growth granularity of the arena in bytes.
	PageSize = 65536

	// DefaultMaxPages bounds the arena at 1.25 GiB.
	DefaultMaxPages = 20000

	// DefaultLimit is the default hard ceiling in bytes.
	DefaultLimit = PageSize * DefaultMaxPages

	// PaletteGranule is the number of palette entries reserved at a time.
	// Small palette edits then keep the per-pixel regions in place.
	PaletteGranule = 1024

	// cursorBytes holds the shared pixel cursor (one int64 word).
	cursorBytes = 8

	// regionAlign keeps every region 8-byte aligned.
	regionAlign = 8
)

// Sentinel values stored in the iteration region.
const (
	// Uncomputed marks a pixel that still needs computation.
	// A freshly zeroed region is entirely uncomputed.
	Uncomputed float32 = 0

	// Interior marks a pixel that never escaped within the iteration cap.
	Interior float32 = -999
)

// Layout describes the byte offsets of every named region in the arena.
//
// Regions are laid out in this order:
//
//	cursor | palette | iterations | shading | colors
//
// The palette region always holds one extra entry: a copy of entry 0 that
// lets interpolation wrap without a modulo on the upper neighbour.
type Layout struct {
	// Pixels is the number of pixels the layout was computed for.
	Pixels int

	// PaletteEntries is the number of distinct palette colors.
	PaletteEntries int

	// Cursor is the offset of the atomic pixel cursor (always 0).
	Cursor int

	// Palette is the offset of the palette table (uint32 per entry).
	Palette int

	// PaletteCap is the reserved palette capacity in entries.
	PaletteCap int

	// Iterations is the offset of the per-pixel escape values (float32).
	Iterations int

	// Shading is the offset of the per-pixel shading values (float32).
	Shading int

	// Colors is the offset of the per-pixel RGBA output (uint32).
	Colors int

	// Total is the number of bytes the layout requires.
	Total int
}

// Compute returns the layout for the given pixel count and palette length.
// It is pure and monotonically non-decreasing in both arguments.
// Negative arguments are treated as zero.
func Compute(pixels, paletteEntries int) Layout {
	if pixels < 0 {
		pixels = 0
	}
	if paletteEntries < 0 {
		paletteEntries = 0
	}

	l := Layout{
		Pixels:         pixels,
		PaletteEntries: paletteEntries,
		Cursor:         0,
		PaletteCap:     paletteCapacity(paletteEntries),
	}

	off := cursorBytes
	l.Palette = off
	off = align(off + l.PaletteCap*4)

	l.Iterations = off
	off = align(off + pixels*4)

	l.Shading = off
	off = align(off + pixels*4)

	l.Colors = off
	off = align(off + pixels*4)

	l.Total = off
	return l
}

// SamePixelOffsets reports whether both layouts place the per-pixel regions
// at the same offsets.
func (l Layout) SamePixelOffsets(o Layout) bool {
	return l.Pixels == o.Pixels && l.Iterations == o.Iterations
}

// paletteCapacity returns the reserved entry count, including the wrap entry.
func paletteCapacity(entries int) int {
	n := entries + 1
	return (n + PaletteGranule - 1) / PaletteGranule * PaletteGranule
}

func align(n int) int {
	return (n + regionAlign - 1) &^ (regionAlign - 1)
}

// roundPages rounds n up to a whole number of pages.
func roundPages(n int) int {
	return (n + PageSize - 1) / PageSize * PageSize
}
