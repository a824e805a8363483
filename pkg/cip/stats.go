package cip

// Stats aggregates every counter spec.md surfaces for Host reporting:
// the orbital-fixing totals named explicitly in spec.md §6, plus the
// Sparsifier pass counters spec.md §4.2's "Result reporting" and
// §4.8's failures/waiting describe narratively.
type Stats struct {
	// Orbital fixing (spec.md §6 statistics table).
	NFixedZero int
	NFixedOne  int

	// Sparsifier, summed across all passes.
	NCoefChanged int
	NCanceled    int
	NFillIn      int
	NRowsDeleted int

	// Scheduling (spec.md §4.8).
	SparsifierFailures int
	SparsifierWaiting  int
	SymmetryFailures   int
	SymmetryWaiting    int

	// Symmetry.
	NGenerators     int
	NComponents     int
	NOrbitopesFound int
	NSubgroupsFound int
	Log10GroupSize  float64
}

// add merges delta into s in place, used by Orchestrator to accumulate
// per-pass results into the running total.
func (s *Stats) add(delta Stats) {
	s.NFixedZero += delta.NFixedZero
	s.NFixedOne += delta.NFixedOne
	s.NCoefChanged += delta.NCoefChanged
	s.NCanceled += delta.NCanceled
	s.NFillIn += delta.NFillIn
	s.NRowsDeleted += delta.NRowsDeleted
}
