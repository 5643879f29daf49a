package fractal

import (
	"fmt"
	"image/color"
	"slices"
	"strconv"
	"strings"
	"unicode"

	"github.com/lucasb-eyer/go-colorful"
)

// MaxPaletteColors is the largest number of colours a palette may have,
// interior included.
const MaxPaletteColors = 25000

// Palette is a cyclic colour table plus the colour of points that never
// escape.
//
// Entries are packed as 0xAABBGGRR so that their little-endian bytes are
// R, G, B, A.
type Palette struct {
	Entries  []uint32
	Interior uint32
}

// Pack converts c to the packed palette representation.
func Pack(c color.Color) uint32 {
	r, g, b, _ := c.RGBA()
	return uint32(r>>8) | uint32(g>>8)<<8 | uint32(b>>8)<<16 | 0xff000000
}

// Unpack converts a packed colour back to color.RGBA.
func Unpack(v uint32) color.RGBA {
	return color.RGBA{R: uint8(v), G: uint8(v >> 8), B: uint8(v >> 16), A: uint8(v >> 24)}
}

// Len returns the number of cyclic entries.
func (p Palette) Len() int {
	return len(p.Entries)
}

// Clone returns a deep copy.
func (p Palette) Clone() Palette {
	p.Entries = slices.Clone(p.Entries)
	return p
}

// String formats the palette in the form accepted by ParsePalette.
func (p Palette) String() string {
	var sb strings.Builder
	for _, e := range p.Entries {
		sb.WriteString(hex(e))
		sb.WriteByte(' ')
	}
	sb.WriteString(hex(p.Interior))
	return sb.String()
}

func hex(v uint32) string {
	c := Unpack(v)
	return fmt.Sprintf("#%02x%02x%02x", c.R, c.G, c.B)
}

// ParsePalette parses a list of at least two colours separated by
// whitespace or semicolons. The last colour becomes the interior colour.
//
// Each colour is a hex triplet (#rrggbb or #rgb, the # is optional) or a
// decimal "r,g,b" triple with components in [0, 255].
func ParsePalette(text string) (Palette, error) {
	fields := strings.FieldsFunc(text, func(r rune) bool {
		return unicode.IsSpace(r) || r == ';'
	})
	if len(fields) < 2 {
		return Palette{}, fmt.Errorf("%w: need at least 2 colours, got %d", ErrInvalidPalette, len(fields))
	}
	if len(fields) > MaxPaletteColors {
		return Palette{}, fmt.Errorf("%w: %d colours exceeds the limit of %d", ErrInvalidPalette, len(fields), MaxPaletteColors)
	}

	packed := make([]uint32, len(fields))
	for i, f := range fields {
		c, err := parseColor(f)
		if err != nil {
			return Palette{}, fmt.Errorf("%w: colour %d %q: %w", ErrInvalidPalette, i+1, f, err)
		}
		packed[i] = c
	}
	return Palette{Entries: packed[:len(packed)-1], Interior: packed[len(packed)-1]}, nil
}

func parseColor(s string) (uint32, error) {
	if strings.Contains(s, ",") {
		parts := strings.Split(s, ",")
		if len(parts) != 3 {
			return 0, fmt.Errorf("want 3 components, got %d", len(parts))
		}
		var rgb [3]uint8
		for i, p := range parts {
			n, err := strconv.Atoi(strings.TrimSpace(p))
			if err != nil {
				return 0, err
			}
			if n < 0 || n > 255 {
				return 0, fmt.Errorf("component %d out of range", n)
			}
			rgb[i] = uint8(n)
		}
		return Pack(color.RGBA{R: rgb[0], G: rgb[1], B: rgb[2], A: 0xff}), nil
	}

	if !strings.HasPrefix(s, "#") {
		s = "#" + s
	}
	if len(s) != 4 && len(s) != 7 {
		return 0, fmt.Errorf("bad hex length %d", len(s)-1)
	}
	c, err := colorful.Hex(strings.ToLower(s))
	if err != nil {
		return 0, err
	}
	r, g, b := c.RGB255()
	return Pack(color.RGBA{R: r, G: g, B: b, A: 0xff}), nil
}

// BuildPalette interpolates n cyclic entries through the given stops in
// CIE L*a*b* space. The last stop blends back into the first.
func BuildPalette(stops []color.Color, n int, interior color.Color) Palette {
	p := Palette{Interior: Pack(interior)}
	if len(stops) == 0 || n <= 0 {
		return p
	}
	cs := make([]colorful.Color, len(stops))
	for i, s := range stops {
		cs[i], _ = colorful.MakeColor(s)
	}

	p.Entries = make([]uint32, n)
	for i := range n {
		pos := float64(i) * float64(len(cs)) / float64(n)
		k := int(pos)
		a, b := cs[k], cs[(k+1)%len(cs)]
		r, g, bl := a.BlendLab(b, pos-float64(k)).Clamped().RGB255()
		p.Entries[i] = Pack(color.RGBA{R: r, G: g, B: bl, A: 0xff})
	}
	return p
}

// builtinPalettes maps names to palette text.
var builtinPalettes = map[string]string{
	"sky":       "#0b1d51 #1f4e9c #5fa8ff #dff3ff #ffd27f #ff8c42 #7a2e8e #000000",
	"fire":      "#000000 #5a0000 #c81e00 #ff7800 #ffd200 #ffffc8 #000000",
	"ocean":     "#001219 #005f73 #0a9396 #94d2bd #e9d8a6 #ee9b00 #001219",
	"grayscale": "#000000 #ffffff #000000",
	"rainbow":   "#ff0000 #ffff00 #00ff00 #00ffff #0000ff #ff00ff #000000",
}

// DefaultPaletteName names the palette used when none is configured.
const DefaultPaletteName = "sky"

// PaletteNames returns the built-in palette names in sorted order.
func PaletteNames() []string {
	names := make([]string, 0, len(builtinPalettes))
	for n := range builtinPalettes {
		names = append(names, n)
	}
	slices.Sort(names)
	return names
}

// NamedPalette returns a built-in palette.
func NamedPalette(name string) (Palette, bool) {
	text, ok := builtinPalettes[strings.ToLower(name)]
	if !ok {
		return Palette{}, false
	}
	p, err := ParsePalette(text)
	if err != nil {
		panic("fractal: bad built-in palette " + name + ": " + err.Error())
	}
	return p, true
}

// DefaultPalette returns the default built-in palette.
func DefaultPalette() Palette {
	p, _ := NamedPalette(DefaultPaletteName)
	return p
}
