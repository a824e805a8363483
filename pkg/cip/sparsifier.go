package cip

import "math"

// Sparsifier implements spec.md §4.2: it uses small equality rows as
// "donor" rows to cancel non-zeros out of other rows that share a
// variable pair, provided the resulting fill-in stays within budget and
// the combination scale stays bounded. It mutates a MatrixView's rows in
// place; callers are responsible for pushing changed rows back to the
// Host via Host.ReplaceRow and rebuilding anything derived from the
// matrix (SymGroup, Components) afterwards.
type Sparsifier struct {
	cfg *Config
}

// NewSparsifier constructs a Sparsifier bound to cfg.
func NewSparsifier(cfg *Config) *Sparsifier {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	return &Sparsifier{cfg: cfg}
}

// Changed describes one target row Run rewrote, for callers that must
// push the new coefficients back to the Host.
type Changed struct {
	RowIndex int
	Cons     ConsId
	Terms    LinearTerms
	LHS, RHS Real
}

// pairKey is the cancellation key of spec.md §4.2 decision 1: two
// VarIds i < j plus the tolerance-bucketed ratio coef_j/coef_i a donor
// equation row carries between them. Two rows combine only when both
// variables and the ratio between their coefficients match.
type pairKey struct {
	I, J        VarId
	RatioBucket int64
}

// ratioQuantum buckets a ratio for hashing; two ratios in the same
// bucket are confirmed (or rejected) with a proper EQ tolerance check
// before being treated as a match, so the bucket width only affects how
// many candidates reach that check, never correctness.
const ratioQuantum = 1e-6

func ratioBucket(ratio Real) int64 {
	return int64(math.Round(ratio / ratioQuantum))
}

// pairEntry is one donor equation row registered under a pairKey.
type pairEntry struct {
	RowIdx int
	Len    int
	Ratio  Real
}

// candidate is one accepted combine(target, scale*donor) result, along
// with the bookkeeping spec.md §4.2 decision 3's cancellation rate
// needs to compare it against other candidates for the same target row.
type candidate struct {
	row        Row
	nCancelled int
	nFillIn    int
	rate       Real
}

// Run scans every equation row as a candidate donor, builds the pair
// hashtable, then for each target row probes that table with each
// 2-variable combination the row contains, applying the best-scoring
// cancellation it can find per spec.md §4.2's algorithm. It returns the
// accumulated Stats plus the list of rows it rewrote; the caller owns
// pushing those back to the Host and invalidating any cached MatrixView
// projection.
func (s *Sparsifier) Run(mv *MatrixView) (Stats, []Changed, error) {
	var stats Stats
	if !s.cfg.SparsifierEnable {
		return stats, nil, nil
	}

	table := s.buildPairTable(mv)
	if len(table) == 0 {
		return stats, nil, nil
	}

	targets := s.candidateTargets(mv)

	var changed []Changed
	totalNonzeros := 0
	for _, r := range mv.Rows() {
		totalNonzeros += r.Len()
	}
	retrieveBudget := int(s.cfg.MaxRetrieveFac * float64(totalNonzeros+1))
	retrieves := 0

	var retrieveErr error
targetLoop:
	for _, targetIdx := range targets {
		target := mv.rows[targetIdx]
		if !s.eligibleTarget(&target) {
			continue
		}

		for {
			if retrieves >= retrieveBudget {
				retrieveErr = ErrRetrieveBudget
				break targetLoop
			}

			cand, nRetrieves, found := s.bestCandidate(mv, targetIdx, &target, table)
			retrieves += nRetrieves
			if !found {
				break
			}

			stats.NCanceled += cand.nCancelled
			stats.NCoefChanged += coefChangeCount(&target, &cand.row)
			stats.NFillIn += cand.nFillIn
			if cand.row.Len() == 0 {
				stats.NRowsDeleted++
			}

			target = cand.row
			mv.rows[targetIdx] = target
			changed = append(changed, Changed{
				RowIndex: targetIdx,
				Cons:     target.Cons,
				Terms:    LinearTerms{Vars: target.Vars, Coefs: target.Coefs},
				LHS:      target.LHS,
				RHS:      target.RHS,
			})

			if target.Len() == 0 {
				break
			}
		}
	}

	if len(changed) > 0 {
		mv.InvalidateColumns()
	}
	return stats, changed, retrieveErr
}

// buildPairTable seeds the pair hashtable from every equation row within
// the considered-nonzero budgets, per spec.md §4.2 decision 1.
func (s *Sparsifier) buildPairTable(mv *MatrixView) map[pairKey][]pairEntry {
	table := make(map[pairKey][]pairEntry)
	for i, r := range mv.Rows() {
		if !r.IsEquation(s.cfg.Epsilon) {
			continue
		}
		if r.Len() > s.cfg.MaxConsideredNonzeros || r.Len() > s.cfg.MaxNonzerosEq {
			continue
		}
		s.registerRow(table, i, &r)
	}
	return table
}

// registerRow inserts every 2-element combination of r's variables into
// table. Row.Vars is strictly increasing, so iterating a < b already
// yields i < j.
func (s *Sparsifier) registerRow(table map[pairKey][]pairEntry, rowIdx int, r *Row) {
	n := r.Len()
	for a := 0; a < n; a++ {
		ci := r.Coefs[a]
		if ci == 0 {
			continue
		}
		for b := a + 1; b < n; b++ {
			ratio := r.Coefs[b] / ci
			key := pairKey{I: r.Vars[a], J: r.Vars[b], RatioBucket: ratioBucket(ratio)}
			s.insertEntry(table, key, pairEntry{RowIdx: rowIdx, Len: n, Ratio: ratio})
		}
	}
}

// insertEntry applies spec.md §4.2 decision 1's collision rule: among
// entries under the same key whose ratio is tolerance-equal, retain the
// shortest donor equation; on a length tie, retain the one with the
// lower row index (the higher-rowIdx entry is the one "removed").
// Entries whose ratio differs (same bucket, different exact value) are
// kept side by side.
func (s *Sparsifier) insertEntry(table map[pairKey][]pairEntry, key pairKey, entry pairEntry) {
	existing := table[key]
	for i, e := range existing {
		if !EQ(e.Ratio, entry.Ratio, s.cfg.Epsilon) {
			continue
		}
		if entry.Len < e.Len || (entry.Len == e.Len && entry.RowIdx < e.RowIdx) {
			existing[i] = entry
		}
		return
	}
	table[key] = append(existing, entry)
}

// candidateTargets returns every eligible row index, ordered per
// cfg.RowSort (spec.md §4.2 decision 8: denser rows are processed first
// under the default descending order, since they carry the most
// cancellation opportunity).
func (s *Sparsifier) candidateTargets(mv *MatrixView) []int {
	var targets []int
	for i, r := range mv.Rows() {
		if s.eligibleTarget(&r) {
			targets = append(targets, i)
		}
	}
	switch s.cfg.RowSort {
	case RowSortAscending:
		sortInts(targets, func(a, b int) bool { return mv.rows[a].Len() < mv.rows[b].Len() })
	case RowSortDescending:
		sortInts(targets, func(a, b int) bool { return mv.rows[a].Len() > mv.rows[b].Len() })
	}
	return targets
}

// eligibleTarget excludes rows the Sparsifier must not rewrite: rows
// disabled by SparsifierCancelLinear, or (defensively) rows with no
// non-zeros left.
func (s *Sparsifier) eligibleTarget(r *Row) bool {
	if !s.cfg.SparsifierCancelLinear {
		return false
	}
	return r.Len() > 0
}

// bestCandidate probes the pair table with every 2-variable combination
// target contains, tries each matching donor, and keeps the
// highest-cancellation-rate accepted result, per spec.md §4.2 decisions
// 2-7. It returns early the moment a rate-1 (pure cancellation) result
// is found, since nothing can beat it.
func (s *Sparsifier) bestCandidate(mv *MatrixView, targetIdx int, target *Row, table map[pairKey][]pairEntry) (candidate, int, bool) {
	var best candidate
	haveBest := false
	retrieves := 0

	n := target.Len()
	for a := 0; a < n; a++ {
		ci := target.Coefs[a]
		if ci == 0 {
			continue
		}
		for b := a + 1; b < n; b++ {
			ratio := target.Coefs[b] / ci
			key := pairKey{I: target.Vars[a], J: target.Vars[b], RatioBucket: ratioBucket(ratio)}
			entries, ok := table[key]
			if !ok {
				continue
			}
			for _, e := range entries {
				if e.RowIdx == targetIdx {
					continue
				}
				if !EQ(e.Ratio, ratio, s.cfg.Epsilon) {
					continue
				}
				retrieves++

				donor := mv.rows[e.RowIdx]
				cand, ok := s.tryCombine(mv, target, &donor, target.Vars[a])
				if !ok {
					continue
				}
				if target.requiresFullCancellation() && !EQ(cand.rate, 1, s.cfg.Epsilon) {
					continue // spec.md §4.2 decision 7: never weaken these structures
				}
				if !haveBest || cand.rate > best.rate {
					best = cand
					haveBest = true
				}
				if haveBest && EQ(best.rate, 1, s.cfg.Epsilon) {
					return best, retrieves, true
				}
			}
		}
	}
	return best, retrieves, haveBest
}

// tryCombine attempts target := target + scale*donor, cancelling v's
// coefficient, subject to spec.md §4.2's bounds: |scale| <= ScaleMax,
// per-kind fill-in budgets, integrality preservation (when configured),
// and decision 6's lock-safety rule for any variable whose sign flips.
func (s *Sparsifier) tryCombine(mv *MatrixView, target, donor *Row, v VarId) (candidate, bool) {
	dc, _ := donor.coefOf(v)
	tc, ok := target.coefOf(v)
	if !ok || dc == 0 {
		return candidate{}, false
	}
	scale := -tc / dc
	if scale == 0 {
		return candidate{}, false
	}
	if absReal(scale) > s.cfg.ScaleMax {
		return candidate{}, false
	}

	oldCoef := make(map[VarId]Real, target.Len())
	for i, w := range target.Vars {
		oldCoef[w] = target.Coefs[i]
	}

	merged := make(map[VarId]Real, target.Len()+donor.Len())
	for w, c := range oldCoef {
		merged[w] = c
	}
	for i, w := range donor.Vars {
		merged[w] += scale * donor.Coefs[i]
	}

	newRow := Row{Cons: target.Cons, Origin: target.Origin, LHS: target.LHS, RHS: target.RHS}
	// The donor is an equation (LHS == RHS == eq_rhs); folding scale*donor
	// into target shifts whichever side is finite by scale*eq_rhs too, per
	// spec.md §4.2's edge case (a zero eq_rhs leaves both sides unchanged).
	if !IsInfinity(newRow.LHS) {
		newRow.LHS += scale * donor.RHS
	}
	if !IsInfinity(newRow.RHS) {
		newRow.RHS += scale * donor.RHS
	}

	nCancelled := 0
	nFillIn := 0
	fillByKind := map[VarKind]int{}
	for w, c := range merged {
		oldC, existed := oldCoef[w]
		if existed && !EQ(oldC, 0, s.cfg.Epsilon) && EQ(c, 0, s.cfg.Epsilon) {
			nCancelled++
			continue
		}
		if EQ(c, 0, s.cfg.Epsilon) {
			continue
		}

		attrs := mv.Attrs(w)
		if s.cfg.SparsifierPreserveIntCoef && attrs.Kind.IsIntegral() && !IsIntegral(c, s.cfg.Epsilon) {
			return candidate{}, false
		}

		if !existed {
			nFillIn++
			fillByKind[attrs.Kind]++
		} else if sign(oldC) != sign(c) && oldC != 0 {
			if !s.lockSafe(mv, w, c) {
				return candidate{}, false
			}
		}

		newRow.Vars = append(newRow.Vars, w)
		newRow.Coefs = append(newRow.Coefs, c)
	}
	if !withinFillInBudget(s.cfg, fillByKind) {
		return candidate{}, false
	}
	if nCancelled == 0 {
		return candidate{}, false // scale solved for v but nothing actually cancelled
	}

	sortRow(&newRow)

	rate := Real(nCancelled-nFillIn) / Real(donor.Len())
	return candidate{row: newRow, nCancelled: nCancelled, nFillIn: nFillIn, rate: rate}, true
}

// lockSafe implements spec.md §4.2 decision 6: a sign flip is rejected
// if the direction the flip produces has <= 1 lock while the opposite
// direction has > 1, since that combination would weaken local
// propagation strength more than it is worth.
func (s *Sparsifier) lockSafe(mv *MatrixView, w VarId, newCoef Real) bool {
	var newDir, oppositeDir int
	if newCoef > 0 {
		newDir, oppositeDir = mv.UpLocks(w), mv.DownLocks(w)
	} else {
		newDir, oppositeDir = mv.DownLocks(w), mv.UpLocks(w)
	}
	return !(newDir <= 1 && oppositeDir > 1)
}

func sign(v Real) int {
	switch {
	case v > 0:
		return 1
	case v < 0:
		return -1
	default:
		return 0
	}
}

func withinFillInBudget(cfg *Config, fillByKind map[VarKind]int) bool {
	if fillByKind[VarContinuous] > cfg.MaxContFillIn {
		return false
	}
	if fillByKind[VarBinary] > cfg.MaxBinFillIn {
		return false
	}
	if fillByKind[VarInteger]+fillByKind[VarImplicitInteger] > cfg.MaxIntFillIn {
		return false
	}
	return true
}

func coefChangeCount(old, new_ *Row) int {
	oldCoef := make(map[VarId]Real, old.Len())
	for i, v := range old.Vars {
		oldCoef[v] = old.Coefs[i]
	}
	count := 0
	for i, v := range new_.Vars {
		if c, ok := oldCoef[v]; !ok || c != new_.Coefs[i] {
			count++
		}
	}
	return count
}

func absReal(v Real) Real {
	if v < 0 {
		return -v
	}
	return v
}

// sortInts sorts a slice of row indices in place with an insertion sort;
// the index lists sparsifier.go sorts are small, so this avoids
// importing sort for a one-off comparator-over-indices shape already
// used elsewhere in this file via sort.Slice semantics.
func sortInts(idx []int, less func(a, b int) bool) {
	for i := 1; i < len(idx); i++ {
		for j := i; j > 0 && less(idx[j], idx[j-1]); j-- {
			idx[j], idx[j-1] = idx[j-1], idx[j]
		}
	}
}
