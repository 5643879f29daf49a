package fractal

import (
	"image"
	"image/color"
	"image/png"
	"io"
	"os"
	"strings"
	"sync"

	"golang.org/x/image/draw"
	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/f64"
	"golang.org/x/image/math/fixed"

	"github.com/gogpu/fractal/internal/driver"
)

// Image is a rectangular RGBA pixel buffer holding rendered output.
type Image struct {
	width  int
	height int
	data   []uint8 // RGBA, 4 bytes per pixel
}

// NewImage creates a transparent image with the given dimensions.
func NewImage(width, height int) *Image {
	width, height = max(width, 0), max(height, 0)
	return &Image{
		width:  width,
		height: height,
		data:   make([]uint8, width*height*4),
	}
}

// Width returns the width of the image.
func (m *Image) Width() int {
	return m.width
}

// Height returns the height of the image.
func (m *Image) Height() int {
	return m.height
}

// Data returns the raw pixel data (RGBA format).
func (m *Image) Data() []uint8 {
	return m.data
}

// Pixel returns the colour at (x, y), or transparent out of bounds.
func (m *Image) Pixel(x, y int) color.RGBA {
	if x < 0 || x >= m.width || y < 0 || y >= m.height {
		return color.RGBA{}
	}
	i := (y*m.width + x) * 4
	return color.RGBA{R: m.data[i], G: m.data[i+1], B: m.data[i+2], A: m.data[i+3]}
}

// Clone returns a deep copy.
func (m *Image) Clone() *Image {
	c := NewImage(m.width, m.height)
	copy(c.data, m.data)
	return c
}

// rgba wraps the pixel data without copying.
func (m *Image) rgba() *image.RGBA {
	return &image.RGBA{Pix: m.data, Stride: m.width * 4, Rect: image.Rect(0, 0, m.width, m.height)}
}

// ToImage converts the image to an image.RGBA.
func (m *Image) ToImage() *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, m.width, m.height))
	copy(img.Pix, m.data)
	return img
}

// EncodePNG writes the image to w in PNG format.
func (m *Image) EncodePNG(w io.Writer) error {
	return png.Encode(w, m.rgba())
}

// SavePNG saves the image to a PNG file.
func (m *Image) SavePNG(path string) error {
	f, err := os.Create(path) //nolint:gosec // path is user-provided intentionally
	if err != nil {
		return err
	}
	if err := m.EncodePNG(f); err != nil {
		_ = f.Close()
		return err
	}
	return f.Close()
}

// At implements the image.Image interface.
func (m *Image) At(x, y int) color.Color {
	return m.Pixel(x, y)
}

// Bounds implements the image.Image interface.
func (m *Image) Bounds() image.Rectangle {
	return image.Rect(0, 0, m.width, m.height)
}

// ColorModel implements the image.Image interface.
func (m *Image) ColorModel() color.Model {
	return color.RGBAModel
}

// Scaled returns the image resampled to width×height with a Catmull-Rom
// filter. It is used to reduce a supersampled raster to the output size.
func (m *Image) Scaled(width, height int) *Image {
	dst := NewImage(width, height)
	if m.width == 0 || m.height == 0 {
		return dst
	}
	draw.CatmullRom.Scale(dst.rgba(), dst.Bounds(), m.rgba(), m.Bounds(), draw.Src, nil)
	return dst
}

// Preview returns the image magnified by factor about (cx, cy), which stays
// fixed. It gives immediate feedback for a zoom while the new view is being
// computed.
func (m *Image) Preview(factor, cx, cy float64) *Image {
	dst := NewImage(m.width, m.height)
	if factor <= 0 || m.width == 0 || m.height == 0 {
		return dst
	}
	s2d := f64.Aff3{
		factor, 0, cx * (1 - factor),
		0, factor, cy * (1 - factor),
	}
	draw.ApproxBiLinear.Transform(dst.rgba(), s2d, m.rgba(), m.Bounds(), draw.Src, nil)
	return dst
}

// Annotate draws text with its top-left corner at (x, y) in a fixed 7×13
// font. Lines are separated by '\n'.
func (m *Image) Annotate(x, y int, text string, c color.Color) {
	face := basicfont.Face7x13
	d := &font.Drawer{
		Dst:  m.rgba(),
		Src:  image.NewUniform(c),
		Face: face,
	}
	lineHeight := face.Metrics().Height.Ceil() + 2
	for i, line := range strings.Split(text, "\n") {
		d.Dot = fixed.P(x, y+face.Ascent+i*lineHeight)
		d.DrawString(line)
	}
}

// copyRows copies rows [y0, y1) of an image-sized RGBA buffer into m.
func (m *Image) copyRows(src []byte, y0, y1 int) {
	y0 = max(y0, 0)
	y1 = min(y1, m.height)
	if y0 >= y1 {
		return
	}
	lo, hi := y0*m.width*4, y1*m.width*4
	copy(m.data[lo:hi], src[lo:hi])
}

// Presenter receives every presented frame on the coordinator goroutine.
// The image is only valid during the call; Clone it to keep it.
type Presenter interface {
	Present(img *Image, s Status)
}

// PresenterFunc adapts a function to Presenter.
type PresenterFunc func(img *Image, s Status)

// Present implements Presenter.
func (fn PresenterFunc) Present(img *Image, s Status) { fn(img, s) }

// frontBuffer keeps the last presented frame. Only rows reported dirty are
// copied out of the arena.
type frontBuffer struct {
	mu     sync.Mutex
	img    *Image
	status Status
	info   func() viewInfo
	user   Presenter
}

// Present implements driver.Presenter.
func (f *frontBuffer) Present(fr driver.Frame) {
	f.mu.Lock()
	if f.img == nil || f.img.width != fr.Width || f.img.height != fr.Height {
		f.img = NewImage(fr.Width, fr.Height)
		copy(f.img.data, fr.Pixels)
	} else {
		for _, s := range fr.Dirty {
			f.img.copyRows(fr.Pixels, s.Y0, s.Y1)
		}
	}
	f.status = newStatus(fr.Stats, f.info())
	img, status := f.img, f.status
	f.mu.Unlock()

	if f.user != nil {
		f.user.Present(img, status)
	}
}

// snapshot returns a copy of the last frame.
func (f *frontBuffer) snapshot() *Image {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.img == nil {
		return NewImage(0, 0)
	}
	return f.img.Clone()
}
