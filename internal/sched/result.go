package sched

import (
	"fmt"
	"strconv"
)

// Kind classifies a worker report.
type Kind uint8

const (
	// KindProgress reports the highest pixel index (exclusive) the worker
	// fully completed in a compute invocation.
	KindProgress Kind = iota + 1

	// KindExhausted reports that the claim started past the end of pixel
	// space: nothing is left to compute.
	KindExhausted

	// KindAborted reports that the invocation stopped without a usable
	// progress value (for example a kernel fault).
	KindAborted

	// KindRendered reports that a render invocation completed.
	KindRendered

	// KindReady is the readiness handshake of a worker whose kernel loaded.
	KindReady

	// KindFailed is the readiness handshake of a worker whose kernel failed
	// to initialize.
	KindFailed
)

// String returns the kind name.
func (k Kind) String() string {
	switch k {
	case KindProgress:
		return "progress"
	case KindExhausted:
		return "exhausted"
	case KindAborted:
		return "aborted"
	case KindRendered:
		return "rendered"
	case KindReady:
		return "ready"
	case KindFailed:
		return "failed"
	default:
		return "Kind(" + strconv.Itoa(int(k)) + ")"
	}
}

// Result is the closed set of values a worker can report.
// Index is meaningful only for KindProgress, Err only for KindFailed and
// KindAborted.
type Result struct {
	Kind  Kind
	Index int
	Err   error
}

// Progress returns a progress result for the exclusive end index.
func Progress(index int) Result { return Result{Kind: KindProgress, Index: index} }

// Exhausted returns the "nothing left" result.
func Exhausted() Result { return Result{Kind: KindExhausted} }

// Aborted returns an aborted result carrying the cause, which may be nil.
func Aborted(err error) Result { return Result{Kind: KindAborted, Err: err} }

// Rendered returns the render-completed result.
func Rendered() Result { return Result{Kind: KindRendered} }

// Ready returns the readiness handshake.
func Ready() Result { return Result{Kind: KindReady} }

// Failed returns a failed readiness handshake.
func Failed(err error) Result { return Result{Kind: KindFailed, Err: err} }

// String implements fmt.Stringer.
func (r Result) String() string {
	switch r.Kind {
	case KindProgress:
		return fmt.Sprintf("progress(%d)", r.Index)
	case KindFailed, KindAborted:
		if r.Err != nil {
			return fmt.Sprintf("%s(%v)", r.Kind, r.Err)
		}
	}
	return r.Kind.String()
}
