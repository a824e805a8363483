package cip

import "errors"

// Error taxonomy per spec.md §7. Only ErrInvariantViolation is meant to
// propagate to the Host as fatal; every other sentinel here marks a
// recoverable condition the core handles by disabling the offending
// pass for the remainder of the run.
var (
	// ErrIncomplete is returned by MatrixView.Build when a constraint
	// handler is unsupported or a bounddisjunction cannot be normalised.
	// Not fatal: the caller disables symmetry/sparsification and the
	// solver proceeds without these facilities.
	ErrIncomplete = errors.New("cip: matrix view incomplete, unsupported constraint encountered")

	// ErrBackendAbsent is returned when no automorphism backend is
	// available or the configured one reports Available() == false.
	ErrBackendAbsent = errors.New("cip: automorphism backend unavailable")

	// ErrScaleTooLarge is returned by the Sparsifier when a candidate
	// cancellation's scale exceeds SCALE_MAX.
	ErrScaleTooLarge = errors.New("cip: sparsifier scale exceeds bound")

	// ErrFillInBudget is returned when a candidate cancellation would
	// exceed a per-kind fill-in budget.
	ErrFillInBudget = errors.New("cip: sparsifier fill-in budget exceeded")

	// ErrInvariantViolation is returned when SymGroup verification
	// discovers a non-symmetric permutation. Fatal: the caller aborts
	// the pass with a diagnostic and disables symmetry.
	ErrInvariantViolation = errors.New("cip: symmetry verification failed")

	// ErrRetrieveBudget signals the Sparsifier's useless-retrieve budget
	// was exhausted; the current pass ends with partial work, not an error.
	ErrRetrieveBudget = errors.New("cip: sparsifier retrieve budget exhausted")
)

// PropagateOutcome is the exception-free result of OrbitalFixer.Propagate,
// per spec.md §4.7.
type PropagateOutcome uint8

const (
	NoChange PropagateOutcome = iota
	Tightened
	Infeasible
)

func (o PropagateOutcome) String() string {
	switch o {
	case NoChange:
		return "no-change"
	case Tightened:
		return "tightened"
	case Infeasible:
		return "infeasible"
	default:
		return "unknown"
	}
}

// PropagateResult bundles the outcome with the two fixing counts, so a
// single call site can both branch on the outcome and read how much work
// happened, matching spec.md §6's two Host-facing counters.
type PropagateResult struct {
	Outcome PropagateOutcome
	NFixed0 int
	NFixed1 int
}
