package fractal

import (
	"errors"

	"github.com/gogpu/fractal/internal/arena"
	"github.com/gogpu/fractal/internal/parallel"
)

var (
	// ErrCapacity is reported when the image no longer fits in the memory
	// limit. It stops the session; reduce the resolution or the quality
	// factor and create a new Viewer.
	ErrCapacity = arena.ErrCapacity

	// ErrInvalidPalette is returned for palette text that cannot be parsed.
	// The active palette is left unchanged.
	ErrInvalidPalette = errors.New("fractal: invalid palette")

	// ErrNoWorkers is returned by Start when no worker could load its kernel.
	ErrNoWorkers = parallel.ErrNoWorkers

	// ErrKernelUnavailable wraps each worker's kernel load failure.
	ErrKernelUnavailable = parallel.ErrKernelUnavailable

	// ErrConfigFormat is returned by LoadConfig for an unknown file extension.
	ErrConfigFormat = errors.New("fractal: unsupported config format")

	// ErrClosed is returned by operations on a closed Viewer, and by Run
	// and Err once Close stopped the workers under a running loop.
	ErrClosed = errors.New("fractal: viewer closed")
)
