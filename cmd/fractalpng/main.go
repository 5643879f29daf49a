// Command fractalpng renders one fractal view to a PNG file.
package main

import (
	"context"
	"flag"
	"image/color"
	"log"
	"log/slog"
	"os"
	"os/signal"

	"github.com/gogpu/fractal"
)

func main() {
	var (
		width      = flag.Int("width", 800, "image width")
		height     = flag.Int("height", 600, "image height")
		output     = flag.String("output", "fractal.png", "output file")
		configPath = flag.String("config", "", "configuration file (.toml, .yaml or .json)")
		workers    = flag.Int("workers", 0, "worker count (0 = one per CPU)")
		sequential = flag.Bool("sequential", false, "compute in a single goroutine")
		iterations = flag.Int("iterations", 0, "iteration cap (0 = keep)")
		formula    = flag.String("formula", "", "formula name or number")
		palette    = flag.String("palette", "", "built-in palette name or palette text")
		shading    = flag.String("shading", "", "shading effect")
		quality    = flag.Float64("quality", 0, "supersampling factor (0 = keep)")
		zoom       = flag.Float64("zoom", 1, "magnification relative to the home view")
		annotate   = flag.Bool("annotate", false, "draw the status line onto the image")
		verbose    = flag.Bool("v", false, "log progress")
	)
	flag.Parse()

	if *verbose {
		fractal.SetLogger(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelDebug})))
	}

	cfg := fractal.Config{Width: *width, Height: *height}
	if *configPath != "" {
		c, err := fractal.LoadConfig(*configPath)
		if err != nil {
			log.Fatalf("Failed to load config: %v", err)
		}
		cfg = c
		if cfg.Width == 0 {
			cfg.Width = *width
		}
		if cfg.Height == 0 {
			cfg.Height = *height
		}
	}

	// Flags override the file.
	if *workers != 0 {
		cfg.Workers = *workers
	}
	if *sequential {
		cfg.Backend = "sequential"
	}
	if *palette != "" {
		cfg.Palette = *palette
	}
	if *iterations > 0 {
		cfg.Initial.Iterations = *iterations
	}
	if *formula != "" {
		cfg.Initial.Formula = *formula
	}
	if *shading != "" {
		cfg.Initial.Shading = *shading
	}
	if *quality > 0 {
		cfg.Initial.Quality = *quality
	}

	opts, err := cfg.Options()
	if err != nil {
		log.Fatalf("Invalid configuration: %v", err)
	}
	opts = append(opts, fractal.WithClock(fractal.InstantClock()))

	v, err := fractal.NewViewer(cfg.Width, cfg.Height, opts...)
	if err != nil {
		log.Fatalf("Failed to create viewer: %v", err)
	}
	defer v.Close()

	if *zoom > 0 && *zoom != 1 {
		v.Zoom(*zoom)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	if err := v.RenderSync(ctx); err != nil {
		log.Fatalf("Render failed: %v", err)
	}
	for _, f := range v.Failures() {
		log.Printf("warning: %v", f)
	}

	img := v.Image()
	if v.Quality() != 1 {
		img = img.Scaled(cfg.Width, cfg.Height)
	}
	status := v.Status()
	if *annotate {
		img.Annotate(4, 4, status.String(), color.White)
	}

	if err := img.SavePNG(*output); err != nil {
		log.Fatalf("Failed to save: %v", err)
	}

	log.Printf("Fractal saved to %s (%dx%d)\n", *output, cfg.Width, cfg.Height)
	log.Println(status)
}
