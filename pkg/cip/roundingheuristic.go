package cip

// TrivialRoundingHeuristic implements spec.md §4.9's simplest primal
// heuristic: given an LP-relaxation solution, round every fractional
// integral variable in a direction its lock counts certify will not
// worsen any row, then check whether the result respects every row's
// bound. It makes no attempt to repair a rounding neither direction of
// which is lock-safe (that is a full diving/rounding heuristic's job,
// out of scope here; see spec.md §1 Non-goals).
type TrivialRoundingHeuristic struct {
	cfg *Config
}

// NewTrivialRoundingHeuristic constructs the heuristic bound to cfg.
func NewTrivialRoundingHeuristic(cfg *Config) *TrivialRoundingHeuristic {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	return &TrivialRoundingHeuristic{cfg: cfg}
}

// Round takes an LP solution (VarId -> value, only integral-kind
// variables need be present) and mv's rows, and returns a complete
// rounded assignment plus whether it satisfies every row.
//
// Rounding direction per variable follows spec.md §9's Open Question:
// a variable may round down if its down-lock count is zero (no active
// row is tightened by decreasing it) and may round up if its up-lock
// count is zero. If only one direction is lock-safe, that direction is
// used. If both are lock-safe, the tie is broken by the sign of the
// variable's objective coefficient, rounding down when obj >= 0 and up
// when obj < 0 (preserved as-is per the Open Question). If neither
// direction is lock-safe the variable is rounded to the nearest
// integer anyway and the row check below is left to catch the
// resulting infeasibility — this heuristic never repairs, it only
// detects.
func (h *TrivialRoundingHeuristic) Round(mv *MatrixView, lpSol map[VarId]Real) (map[VarId]Real, bool) {
	eps := h.cfg.Epsilon
	rounded := make(map[VarId]Real, len(lpSol))
	for v, val := range lpSol {
		attrs := mv.Attrs(v)
		if !attrs.Kind.IsIntegral() {
			rounded[v] = val
			continue
		}
		rounded[v] = roundDirected(val, attrs.Obj, mv.DownLocks(v), mv.UpLocks(v), eps)
	}

	for _, r := range mv.Rows() {
		sum := 0.0
		for i, v := range r.Vars {
			val, ok := rounded[v]
			if !ok {
				val = 0
			}
			sum += r.Coefs[i] * val
		}
		if !IsInfinity(r.LHS) && sum < r.LHS-eps {
			return rounded, false
		}
		if !IsInfinity(r.RHS) && sum > r.RHS+eps {
			return rounded, false
		}
	}
	return rounded, true
}

// roundDirected rounds v per the lock-safety / objective-sign rule
// documented on Round. Already-integral values pass through unchanged.
// downLocks/upLocks are MatrixView's computed lock counts (spec.md
// §4.1), not the Host-supplied VarAttrs fields, which a Host need not
// keep in sync with the matrix the heuristic is rounding against.
func roundDirected(v Real, obj Real, downLocks, upLocks int, eps float64) Real {
	down := Floor(v, eps)
	up := Ceil(v, eps)
	if down == up {
		return down
	}

	mayRoundDown := downLocks == 0
	mayRoundUp := upLocks == 0

	switch {
	case mayRoundDown && mayRoundUp:
		if obj >= 0 {
			return down
		}
		return up
	case mayRoundDown:
		return down
	case mayRoundUp:
		return up
	default:
		// Neither direction is lock-safe; round to nearest and let the
		// row-feasibility check report the resulting violation.
		if v-down <= up-v {
			return down
		}
		return up
	}
}
