package brain

import "errors"

var (
	// ErrInterrupted marks a turn aborted by the shared interrupt flag.
	// Not a failure per spec.md §7: "Interrupted ... not an error."
	ErrInterrupted = errors.New("turn interrupted")

	// ErrToolLoopExceeded is surfaced to the user when the tool-call loop
	// exceeds the configured iteration cap (spec.md §9 open question,
	// resolved in DESIGN.md as a fixed cap of 8 by default).
	ErrToolLoopExceeded = errors.New("tool loop exceeded maximum iterations")
)

// DefaultMaxToolIterations is the conservative bound spec.md §9 suggests
// to prevent runaway tool-call loops.
const DefaultMaxToolIterations = 8
