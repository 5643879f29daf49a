// Package invalidate classifies state changes and decides, once per frame
// tick, how much of the computed state must be thrown away.
//
// Every change is recorded as a pending flag. The frame driver drains at most
// one flag per tick in precedence order
//
//	Resizing > FullRecompute > PixelShift > RecolorOnly > Idle
//
// and applies exactly that transition's data movement. A shift and a later
// recolour therefore happen in separate ticks, never combined in one.
package invalidate

import "strconv"

// State is the render state selected for a tick.
type State uint8

// Render states.
const (
	Idle State = iota
	FullRecompute
	RecolorOnly
	PixelShift
	Resizing
)

// String returns the state name.
func (s State) String() string {
	switch s {
	case Idle:
		return "Idle"
	case FullRecompute:
		return "FullRecompute"
	case RecolorOnly:
		return "RecolorOnly"
	case PixelShift:
		return "PixelShift"
	case Resizing:
		return "Resizing"
	default:
		return "State(" + strconv.Itoa(int(s)) + ")"
	}
}

// Flags is a set of pending invalidations.
type Flags uint8

// Invalidation flags.
const (
	FlagResize Flags = 1 << iota
	FlagFullRecompute
	FlagPixelShift
	FlagRecolor
)

// Has reports whether all flags in o are set.
func (f Flags) Has(o Flags) bool {
	return f&o == o
}

// ResizeCause distinguishes why the raster changed size.
type ResizeCause uint8

const (
	// ResizeViewport is a window resize; the view is zoom-compensated.
	ResizeViewport ResizeCause = iota

	// ResizeQuality is a supersampling change; scale is already adjusted.
	ResizeQuality
)

// Transition is the single state change drained for one tick.
type Transition struct {
	State State

	// DX and DY are the accumulated pan offset for PixelShift.
	DX int
	DY int

	// Cause is set for Resizing.
	Cause ResizeCause

	// ClearShading requests zeroing the shading buffer (shading turned off).
	ClearShading bool
}

// Machine records pending invalidations.
//
// Machine is not safe for concurrent use; the owner serializes access.
type Machine struct {
	pending      Flags
	dx, dy       int
	cause        ResizeCause
	clearShading bool
	state        State
}

// MarkResize records a resize. A quality resize wins over a viewport resize
// pending in the same tick.
func (m *Machine) MarkResize(cause ResizeCause) {
	if !m.pending.Has(FlagResize) || cause == ResizeQuality {
		m.cause = cause
	}
	m.pending |= FlagResize
}

// MarkFullRecompute records a change to per-pixel escape data.
func (m *Machine) MarkFullRecompute() {
	m.pending |= FlagFullRecompute
}

// MarkShift accumulates a continuous pan by (dx, dy) pixels.
// A zero offset is ignored.
func (m *Machine) MarkShift(dx, dy int) {
	if dx == 0 && dy == 0 {
		return
	}
	m.dx += dx
	m.dy += dy
	m.pending |= FlagPixelShift
}

// MarkRecolor records a change affecting only colour mapping.
func (m *Machine) MarkRecolor() {
	m.pending |= FlagRecolor
}

// Mark records a classified change.
func (m *Machine) Mark(c Change) {
	if c.Flags.Has(FlagFullRecompute) {
		m.MarkFullRecompute()
	}
	if c.Flags.Has(FlagRecolor) {
		m.MarkRecolor()
	}
	if c.ClearShading {
		m.clearShading = true
	}
}

// Pending returns the pending flags.
func (m *Machine) Pending() Flags {
	return m.pending
}

// State returns the state selected by the last call to Next.
func (m *Machine) State() State {
	return m.state
}

// Next drains exactly one pending flag and returns its transition.
//
// Resizing discards every other pending flag because all data is reset.
// FullRecompute discards a pending shift and recolour, which it subsumes.
// PixelShift and RecolorOnly drain only themselves.
func (m *Machine) Next() Transition {
	var t Transition
	switch {
	case m.pending.Has(FlagResize):
		t = Transition{State: Resizing, Cause: m.cause}
		m.pending = 0
		m.dx, m.dy = 0, 0
		m.clearShading = false

	case m.pending.Has(FlagFullRecompute):
		t = Transition{State: FullRecompute}
		m.pending &^= FlagFullRecompute | FlagPixelShift | FlagRecolor
		m.dx, m.dy = 0, 0
		m.clearShading = false

	case m.pending.Has(FlagPixelShift):
		t = Transition{State: PixelShift, DX: m.dx, DY: m.dy}
		m.pending &^= FlagPixelShift
		m.dx, m.dy = 0, 0

	case m.pending.Has(FlagRecolor):
		t = Transition{State: RecolorOnly, ClearShading: m.clearShading}
		m.pending &^= FlagRecolor
		m.clearShading = false

	default:
		t = Transition{State: Idle}
	}
	m.state = t.State
	return t
}
