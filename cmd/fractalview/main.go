// Command fractalview is an interactive terminal fractal explorer.
//
// Each terminal cell shows two pixels with an upper half block. Keys:
//
//	arrows      pan            + / -      zoom in / out
//	mouse       click zooms in, right click zooms out, wheel zooms
//	i / I       iterations x2 / /2       f / F      next / previous formula
//	j           Julia set at the centre, or back to the parent fractal
//	s / m       next shading / render mode
//	p           next built-in palette    [ / ]      palette flow rate
//	< / >       palette speed            q          cycle quality
//	r           reset                    Esc        quit
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"slices"
	"sync"
	"time"

	"github.com/gdamore/tcell/v2"

	"github.com/gogpu/fractal"
)

const (
	redrawInterval = 16 * time.Millisecond // ~60 FPS
	zoomStep       = 1.5
	panFraction    = 8
)

type app struct {
	screen tcell.Screen
	viewer *fractal.Viewer

	width, height int // output pixels

	mu     sync.Mutex
	frame  *fractal.Image
	status fractal.Status
	dirty  bool

	// preview is shown instead of frame until a frame of generation want
	// arrives.
	preview *fractal.Image
	want    uint64

	palettes []string
	palette  int
	message  string
}

// Present implements fractal.Presenter.
func (a *app) Present(img *fractal.Image, s fractal.Status) {
	a.mu.Lock()
	a.frame = img.Clone()
	a.status = s
	if s.Generation >= a.want {
		a.preview = nil
	}
	a.dirty = true
	a.mu.Unlock()
}

// zoomAt zooms about output pixel (x, y) and shows the current frame
// magnified until the first frame of the new view arrives.
func (a *app) zoomAt(x, y int, factor float64) {
	a.viewer.ZoomAt(x, y, factor)
	want := a.viewer.Status().Generation

	a.mu.Lock()
	defer a.mu.Unlock()
	if a.frame == nil || a.status.Generation >= want {
		return
	}
	src := a.frame
	if a.preview != nil {
		src = a.preview
	}
	cx := float64(x) * float64(src.Width()) / float64(a.width)
	cy := float64(y) * float64(src.Height()) / float64(a.height)
	a.preview = src.Preview(factor, cx, cy)
	a.want = want
	a.dirty = true
}

// outputSize maps a terminal size to pixels, keeping the last row for the
// status line.
func outputSize(cols, rows int) (int, int) {
	return max(cols, 1), max(2*(rows-1), 2)
}

func newApp(cfg fractal.Config) (*app, error) {
	screen, err := tcell.NewScreen()
	if err != nil {
		return nil, err
	}
	if err := screen.Init(); err != nil {
		return nil, err
	}
	screen.EnableMouse()

	a := &app{screen: screen, palettes: fractal.PaletteNames()}
	name := cfg.Palette
	if name == "" {
		name = fractal.DefaultPaletteName
	}
	a.palette = max(slices.Index(a.palettes, name), 0)
	a.width, a.height = outputSize(screen.Size())

	opts, err := cfg.Options()
	if err != nil {
		screen.Fini()
		return nil, err
	}
	opts = append(opts, fractal.WithPresenter(a))

	a.viewer, err = fractal.NewViewer(a.width, a.height, opts...)
	if err != nil {
		screen.Fini()
		return nil, err
	}
	return a, nil
}

func (a *app) draw() {
	a.mu.Lock()
	if !a.dirty || a.frame == nil {
		a.mu.Unlock()
		return
	}
	img, status, msg := a.frame, a.status, a.message
	if a.preview != nil {
		img = a.preview
	}
	a.dirty = false
	a.mu.Unlock()

	if img.Width() != a.width || img.Height() != a.height {
		img = img.Scaled(a.width, a.height)
	}

	cols, rows := a.screen.Size()
	for y := 0; y+1 < a.height && y/2 < rows-1; y += 2 {
		for x := 0; x < a.width && x < cols; x++ {
			top, bottom := img.Pixel(x, y), img.Pixel(x, y+1)
			style := tcell.StyleDefault.
				Foreground(tcell.NewRGBColor(int32(top.R), int32(top.G), int32(top.B))).
				Background(tcell.NewRGBColor(int32(bottom.R), int32(bottom.G), int32(bottom.B)))
			a.screen.SetContent(x, y/2, '▀', nil, style)
		}
	}

	line := status.String()
	if msg != "" {
		line = msg + " | " + line
	}
	bar := tcell.StyleDefault.Foreground(tcell.ColorWhite).Background(tcell.ColorBlack)
	i := 0
	for _, r := range line {
		if i >= cols {
			break
		}
		a.screen.SetContent(i, rows-1, r, nil, bar)
		i++
	}
	for ; i < cols; i++ {
		a.screen.SetContent(i, rows-1, ' ', nil, bar)
	}
	a.screen.Show()
}

func (a *app) notify(format string, args ...any) {
	a.mu.Lock()
	a.message = fmt.Sprintf(format, args...)
	a.dirty = true
	a.mu.Unlock()
}

func (a *app) handleResize() {
	a.screen.Sync()
	w, h := outputSize(a.screen.Size())
	if w == a.width && h == a.height {
		return
	}
	a.width, a.height = w, h
	if err := a.viewer.Resize(w, h); err != nil {
		a.notify("resize: %v", err)
	}
}

func (a *app) handleKey(ev *tcell.EventKey) bool {
	v := a.viewer
	dx, dy := max(a.width/panFraction, 1), max(a.height/panFraction, 1)

	switch ev.Key() {
	case tcell.KeyEscape, tcell.KeyCtrlC:
		return false
	case tcell.KeyLeft:
		v.Pan(dx, 0)
	case tcell.KeyRight:
		v.Pan(-dx, 0)
	case tcell.KeyUp:
		v.Pan(0, dy)
	case tcell.KeyDown:
		v.Pan(0, -dy)
	case tcell.KeyRune:
		return a.handleRune(ev.Rune())
	}
	return true
}

func (a *app) handleRune(r rune) bool {
	v := a.viewer
	view := v.View()

	switch r {
	case '+', '=':
		a.zoomAt(a.width/2, a.height/2, zoomStep)
	case '-', '_':
		a.zoomAt(a.width/2, a.height/2, 1/zoomStep)
	case 'i':
		v.SetIterations(view.Iterations * 2)
	case 'I':
		v.SetIterations(view.Iterations / 2)
	case 'f':
		v.SetFormula(view.Formula.Next())
	case 'F':
		v.SetFormula(view.Formula.Prev())
	case 'j':
		if view.Julia {
			v.ExitJulia()
		} else {
			v.MakeJulia(a.width/2, a.height/2)
		}
	case 's':
		v.SetShading(view.Shading.Next())
		a.notify("shading: %v", view.Shading.Next())
	case 'm':
		v.SetRenderMode(view.RenderMode.Next())
		a.notify("mode: %v", view.RenderMode.Next())
	case 'p':
		a.palette = (a.palette + 1) % len(a.palettes)
		name := a.palettes[a.palette]
		p, _ := fractal.NamedPalette(name)
		if err := v.SetPalette(p); err != nil {
			a.notify("palette: %v", err)
		} else {
			a.notify("palette: %s", name)
		}
	case '[':
		v.SetFlowRate(view.FlowRate - 1)
	case ']':
		v.SetFlowRate(view.FlowRate + 1)
	case '<', ',':
		v.SetSpeed(view.Speed / 1.25)
	case '>', '.':
		v.SetSpeed(view.Speed * 1.25)
	case 'q':
		a.notify("quality: %v", v.CycleQuality())
	case 'r':
		v.Reset()
	}
	return true
}

func (a *app) handleMouse(ev *tcell.EventMouse) {
	x, row := ev.Position()
	y := 2*row + 1
	switch b := ev.Buttons(); {
	case b&tcell.Button1 != 0:
		a.zoomAt(x, y, zoomStep)
	case b&tcell.Button2 != 0:
		a.zoomAt(x, y, 1/zoomStep)
	case b&tcell.WheelUp != 0:
		a.zoomAt(x, y, 1.1)
	case b&tcell.WheelDown != 0:
		a.zoomAt(x, y, 1/1.1)
	}
}

func (a *app) handleInput(ev tcell.Event) bool {
	switch ev := ev.(type) {
	case *tcell.EventKey:
		return a.handleKey(ev)
	case *tcell.EventMouse:
		a.handleMouse(ev)
	case *tcell.EventResize:
		a.handleResize()
	}
	return true
}

func (a *app) run() error {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	errc := make(chan error, 1)
	go func() {
		errc <- a.viewer.Run(ctx)
	}()

	ticker := time.NewTicker(redrawInterval)
	defer ticker.Stop()

	eventChan := make(chan tcell.Event, 100)
	go func() {
		for {
			ev := a.screen.PollEvent()
			if ev == nil {
				return
			}
			eventChan <- ev
		}
	}()

	for {
		select {
		case ev := <-eventChan:
			if !a.handleInput(ev) {
				return nil
			}
		case err := <-errc:
			if errors.Is(err, context.Canceled) {
				return nil
			}
			if fatal := a.viewer.Err(); fatal != nil {
				return fatal
			}
			return err
		case <-ticker.C:
			a.draw()
		}
	}
}

func (a *app) cleanup() {
	a.viewer.Close()
	a.screen.Fini()
}

func main() {
	configPath := flag.String("config", "", "configuration file (.toml, .yaml or .json)")
	flag.Parse()

	var cfg fractal.Config
	if *configPath != "" {
		c, err := fractal.LoadConfig(*configPath)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
			os.Exit(1)
		}
		cfg = c
	}

	a, err := newApp(cfg)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize: %v\n", err)
		os.Exit(1)
	}

	err = a.run()
	a.cleanup()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Stopped: %v\n", err)
		os.Exit(1)
	}
	for _, f := range a.viewer.Failures() {
		fmt.Fprintf(os.Stderr, "warning: %v\n", f)
	}
}
