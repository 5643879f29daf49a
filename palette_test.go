package fractal

import (
	"errors"
	"image/color"
	"slices"
	"strings"
	"testing"
)

// =============================================================================
// Pack Tests
// =============================================================================

func TestPack(t *testing.T) {
	got := Pack(color.RGBA{R: 1, G: 2, B: 3, A: 255})
	if got != 0xff030201 {
		t.Errorf("Pack() = %#08x, want 0xff030201", got)
	}
}

func TestPack_ForcesOpaque(t *testing.T) {
	got := Pack(color.RGBA{R: 10, G: 20, B: 30, A: 40})
	if got>>24 != 0xff {
		t.Errorf("Pack() alpha = %#02x, want 0xff", got>>24)
	}
}

func TestUnpack(t *testing.T) {
	want := color.RGBA{R: 0x12, G: 0x34, B: 0x56, A: 0xff}
	if got := Unpack(Pack(want)); got != want {
		t.Errorf("Unpack(Pack(%v)) = %v", want, got)
	}
}

// =============================================================================
// ParsePalette Tests
// =============================================================================

func TestParsePalette(t *testing.T) {
	tests := []struct {
		name     string
		text     string
		entries  []uint32
		interior uint32
	}{
		{
			name:     "hex",
			text:     "#ff0000 #00ff00 #000000",
			entries:  []uint32{0xff0000ff, 0xff00ff00},
			interior: 0xff000000,
		},
		{
			name:     "short hex without hash",
			text:     "f00 00f fff",
			entries:  []uint32{0xff0000ff, 0xffff0000},
			interior: 0xffffffff,
		},
		{
			name:     "decimal triples",
			text:     "255,0,0; 0,0,255; 1,2,3",
			entries:  []uint32{0xff0000ff, 0xffff0000},
			interior: 0xff030201,
		},
		{
			name:     "mixed separators",
			text:     "#ff0000\n0,255,0;\t#0000ff  #000",
			entries:  []uint32{0xff0000ff, 0xff00ff00, 0xffff0000},
			interior: 0xff000000,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p, err := ParsePalette(tt.text)
			if err != nil {
				t.Fatalf("ParsePalette(%q) error = %v", tt.text, err)
			}
			if !slices.Equal(p.Entries, tt.entries) {
				t.Errorf("Entries = %#08x, want %#08x", p.Entries, tt.entries)
			}
			if p.Interior != tt.interior {
				t.Errorf("Interior = %#08x, want %#08x", p.Interior, tt.interior)
			}
		})
	}
}

func TestParsePalette_Errors(t *testing.T) {
	tests := []struct {
		name string
		text string
	}{
		{"empty", ""},
		{"single colour", "#ffffff"},
		{"bad hex digit", "#ggg #000"},
		{"bad hex length", "#12345 #000"},
		{"component out of range", "300,0,0 #000"},
		{"two components", "1,2 #000"},
		{"non numeric component", "a,b,c #000"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParsePalette(tt.text)
			if !errors.Is(err, ErrInvalidPalette) {
				t.Errorf("ParsePalette(%q) error = %v, want ErrInvalidPalette", tt.text, err)
			}
		})
	}
}

func TestParsePalette_TooMany(t *testing.T) {
	text := strings.Repeat("#000 ", MaxPaletteColors+1)
	if _, err := ParsePalette(text); !errors.Is(err, ErrInvalidPalette) {
		t.Errorf("ParsePalette(%d colours) error = %v, want ErrInvalidPalette", MaxPaletteColors+1, err)
	}
}

func TestPalette_StringRoundTrip(t *testing.T) {
	p := DefaultPalette()
	q, err := ParsePalette(p.String())
	if err != nil {
		t.Fatalf("ParsePalette(String()) error = %v", err)
	}
	if !slices.Equal(p.Entries, q.Entries) || p.Interior != q.Interior {
		t.Errorf("round trip changed palette: %v -> %v", p, q)
	}
}

func TestPalette_Clone(t *testing.T) {
	p := DefaultPalette()
	c := p.Clone()
	c.Entries[0] = 0
	if p.Entries[0] == 0 {
		t.Error("Clone() shares entries with the original")
	}
}

// =============================================================================
// Built-in Palette Tests
// =============================================================================

func TestNamedPalette(t *testing.T) {
	for _, name := range PaletteNames() {
		p, ok := NamedPalette(name)
		if !ok {
			t.Errorf("NamedPalette(%q) not found", name)
			continue
		}
		if p.Len() < 1 {
			t.Errorf("NamedPalette(%q).Len() = %d, want >= 1", name, p.Len())
		}
	}
	if _, ok := NamedPalette("FIRE"); !ok {
		t.Error("NamedPalette is case sensitive")
	}
	if _, ok := NamedPalette("nope"); ok {
		t.Error("NamedPalette(nope) found")
	}
}

func TestPaletteNames_Sorted(t *testing.T) {
	names := PaletteNames()
	if !slices.IsSorted(names) {
		t.Errorf("PaletteNames() = %v, want sorted", names)
	}
	if !slices.Contains(names, DefaultPaletteName) {
		t.Errorf("PaletteNames() = %v, missing %q", names, DefaultPaletteName)
	}
}

func TestDefaultPalette(t *testing.T) {
	p := DefaultPalette()
	if p.Len() != 7 {
		t.Errorf("DefaultPalette().Len() = %d, want 7", p.Len())
	}
	if p.Interior != 0xff000000 {
		t.Errorf("DefaultPalette().Interior = %#08x, want black", p.Interior)
	}
}

// =============================================================================
// BuildPalette Tests
// =============================================================================

func TestBuildPalette(t *testing.T) {
	stops := []color.Color{
		color.RGBA{R: 255, A: 255},
		color.RGBA{B: 255, A: 255},
	}
	p := BuildPalette(stops, 64, color.Black)
	if p.Len() != 64 {
		t.Fatalf("Len() = %d, want 64", p.Len())
	}
	if p.Interior != 0xff000000 {
		t.Errorf("Interior = %#08x, want black", p.Interior)
	}
	for i, e := range p.Entries {
		if e>>24 != 0xff {
			t.Errorf("entry %d = %#08x, want opaque", i, e)
		}
	}
	first := Unpack(p.Entries[0])
	if first.R < 250 || first.B > 5 {
		t.Errorf("entry 0 = %v, want red", first)
	}
	mid := Unpack(p.Entries[32])
	if mid.B < 250 || mid.R > 5 {
		t.Errorf("entry 32 = %v, want blue", mid)
	}
}

func TestBuildPalette_Empty(t *testing.T) {
	p := BuildPalette(nil, 10, color.White)
	if p.Len() != 0 {
		t.Errorf("Len() = %d, want 0", p.Len())
	}
	if p.Interior != 0xffffffff {
		t.Errorf("Interior = %#08x, want white", p.Interior)
	}
}
