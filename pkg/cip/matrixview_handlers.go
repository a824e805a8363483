package cip

import "fmt"

// normalizeFunc turns one Host constraint into zero or more canonical
// Rows. This is the "one normalisation function per variant" dispatch
// spec.md §9 calls for: a tagged HandlerKind plus a single table lookup
// at constraint-walk time, no inheritance.
type normalizeFunc func(c ConsId, attrs ConsAttrs, cfg *Config) ([]Row, error)

// normalizers is built once at package init and never mutated, mirroring
// the teacher's single dispatch-table-per-tagged-variant pattern.
var normalizers = map[HandlerKind]normalizeFunc{
	HandlerLinear:           normalizeLinear,
	HandlerSetPacking:       normalizeSetPPC,
	HandlerSetPartitioning:  normalizeSetPPC,
	HandlerSetCovering:      normalizeSetPPC,
	HandlerKnapsack:         normalizeKnapsack,
	HandlerVarbound:         normalizeLinear, // varbound is a 2-var linear row
	HandlerXor:              normalizeXor,
	HandlerLinking:          normalizeLinking,
	HandlerLogicOr:          normalizeLogicOr,
	HandlerAnd:              normalizeLogicOr,
	HandlerOr:               normalizeLogicOr,
	HandlerBoundDisjunction: normalizeBoundDisjunction,
}

// normalizeLinear implements spec.md §4.1's linear normalisation:
// equations emit a single `=` row; ranged/one-sided constraints emit a
// negated `-a,-lhs` row for a finite lhs and an `a,rhs` row for a finite
// rhs, both in the canonical (LHS=-Infinity, finite RHS) shape.
func normalizeLinear(c ConsId, attrs ConsAttrs, cfg *Config) ([]Row, error) {
	terms := attrs.Terms
	if len(terms.Vars) != len(terms.Coefs) {
		return nil, fmt.Errorf("linear constraint %d: vars/coefs length mismatch", c)
	}
	if EQ(attrs.LHS, attrs.RHS, cfg.Epsilon) {
		return []Row{{Cons: c, Origin: attrs.Handler, LHS: attrs.RHS, RHS: attrs.RHS, Vars: cloneVars(terms.Vars), Coefs: cloneCoefs(terms.Coefs)}}, nil
	}

	var rows []Row
	if !IsInfinity(attrs.LHS) {
		negCoefs := make([]Real, len(terms.Coefs))
		for i, v := range terms.Coefs {
			negCoefs[i] = -v
		}
		rows = append(rows, Row{Cons: c, Origin: attrs.Handler, LHS: -Infinity, RHS: -attrs.LHS, Vars: cloneVars(terms.Vars), Coefs: negCoefs})
	}
	if !IsInfinity(attrs.RHS) {
		rows = append(rows, Row{Cons: c, Origin: attrs.Handler, LHS: -Infinity, RHS: attrs.RHS, Vars: cloneVars(terms.Vars), Coefs: cloneCoefs(terms.Coefs)})
	}
	return rows, nil
}

// normalizeSetPPC implements set-packing/partitioning/covering: all-ones
// coefficients over an equivalent inequality or equation.
func normalizeSetPPC(c ConsId, attrs ConsAttrs, cfg *Config) ([]Row, error) {
	coefs := make([]Real, len(attrs.Terms.Vars))
	for i := range coefs {
		coefs[i] = 1
	}
	vars := cloneVars(attrs.Terms.Vars)
	switch attrs.Handler {
	case HandlerSetPartitioning:
		return []Row{{Cons: c, Origin: attrs.Handler, LHS: 1, RHS: 1, Vars: vars, Coefs: coefs}}, nil
	case HandlerSetPacking:
		return []Row{{Cons: c, Origin: attrs.Handler, LHS: -Infinity, RHS: 1, Vars: vars, Coefs: coefs}}, nil
	case HandlerSetCovering:
		neg := make([]Real, len(coefs))
		for i := range neg {
			neg[i] = -1
		}
		return []Row{{Cons: c, Origin: attrs.Handler, LHS: -Infinity, RHS: -1, Vars: vars, Coefs: neg}}, nil
	default:
		return nil, fmt.Errorf("not a set-ppc handler: %v", attrs.Handler)
	}
}

// normalizeKnapsack promotes integer weights to reals and emits a single
// <= row, per spec.md §4.1.
func normalizeKnapsack(c ConsId, attrs ConsAttrs, cfg *Config) ([]Row, error) {
	return []Row{{Cons: c, Origin: attrs.Handler, LHS: -Infinity, RHS: attrs.RHS, Vars: cloneVars(attrs.Terms.Vars), Coefs: cloneCoefs(attrs.Terms.Coefs)}}, nil
}

// normalizeXor treats the integer slack as coefficient 2 and emits a
// single equation row, per spec.md §4.1.
func normalizeXor(c ConsId, attrs ConsAttrs, cfg *Config) ([]Row, error) {
	vars := cloneVars(attrs.Terms.Vars)
	coefs := cloneCoefs(attrs.Terms.Coefs)
	if len(vars) == 0 {
		return nil, fmt.Errorf("xor constraint %d: no variables", c)
	}
	// By convention the last term supplied by the Host is the integer
	// slack variable; its coefficient is forced to 2 regardless of what
	// the Host reported, per spec.md §4.1.
	coefs[len(coefs)-1] = 2
	return []Row{{Cons: c, Origin: attrs.Handler, LHS: attrs.RHS, RHS: attrs.RHS, Vars: vars, Coefs: coefs}}, nil
}

// normalizeLinking emits the defining identity plus a partitioning
// equation over the binary expansion, per spec.md §4.1. By convention
// the Host presents Terms as [binary_0 .. binary_{k-1}, integerVar] with
// Coefs as [value_0 .. value_{k-1}, -1] for the identity row; the
// partitioning row is all-ones over the binaries only.
func normalizeLinking(c ConsId, attrs ConsAttrs, cfg *Config) ([]Row, error) {
	vars := attrs.Terms.Vars
	coefs := attrs.Terms.Coefs
	if len(vars) < 2 {
		return nil, fmt.Errorf("linking constraint %d: need at least one binary and the integer variable", c)
	}
	identity := Row{Cons: c, Origin: attrs.Handler, LHS: 0, RHS: 0, Vars: cloneVars(vars), Coefs: cloneCoefs(coefs)}

	binVars := cloneVars(vars[:len(vars)-1])
	binCoefs := make([]Real, len(binVars))
	for i := range binCoefs {
		binCoefs[i] = 1
	}
	partition := Row{Cons: c, Origin: attrs.Handler, LHS: 1, RHS: 1, Vars: binVars, Coefs: binCoefs}
	return []Row{identity, partition}, nil
}

// normalizeLogicOr covers logicor/and/or: `sum x_i >= 1` rewritten to the
// canonical <= shape by negation.
func normalizeLogicOr(c ConsId, attrs ConsAttrs, cfg *Config) ([]Row, error) {
	coefs := make([]Real, len(attrs.Terms.Vars))
	for i := range coefs {
		coefs[i] = -1
	}
	return []Row{{Cons: c, Origin: attrs.Handler, LHS: -Infinity, RHS: -1, Vars: cloneVars(attrs.Terms.Vars), Coefs: coefs}}, nil
}

// Special is the sentinel magnitude spec.md §6 specifies for a zero
// bounddisjunction literal bound, to avoid collapsing the literal's
// rewritten coefficient to zero.
const Special Real = 1.12345678912345e+19

// normalizeBoundDisjunction implements spec.md §6's bit-exact
// normalisation:
//
//	(x >= b) rewrites to coefficient -b; (x <= b) to b. A zero bound is
//	replaced by Special. Type-1 (no repeated variable) emits
//	`sum c_i x_i = 0`. Type-2 (exactly two literals on one variable)
//	emits `min(c1,c2) <= x <= max(c1,c2)`. More than two literals with
//	a repeated variable is rejected (returns an error, which Build wraps
//	as ErrIncomplete).
func normalizeBoundDisjunction(c ConsId, attrs ConsAttrs, cfg *Config) ([]Row, error) {
	lits := attrs.Literals
	if len(lits) == 0 {
		return nil, fmt.Errorf("bounddisjunction %d: no literals", c)
	}

	byVar := make(map[VarId][]Real)
	order := make([]VarId, 0, len(lits))
	for _, lit := range lits {
		coef := lit.Bound
		if lit.IsLB {
			coef = -lit.Bound
		}
		if coef == 0 {
			coef = Special
		}
		if _, seen := byVar[lit.Var]; !seen {
			order = append(order, lit.Var)
		}
		byVar[lit.Var] = append(byVar[lit.Var], coef)
	}

	repeated := false
	for _, v := range order {
		if len(byVar[v]) > 1 {
			repeated = true
			break
		}
	}

	if !repeated {
		vars := make([]VarId, len(order))
		coefs := make([]Real, len(order))
		for i, v := range order {
			vars[i] = v
			coefs[i] = byVar[v][0]
		}
		return []Row{{Cons: c, Origin: attrs.Handler, LHS: 0, RHS: 0, Vars: vars, Coefs: coefs}}, nil
	}

	if len(order) != 1 || len(byVar[order[0]]) != 2 {
		return nil, fmt.Errorf("bounddisjunction %d: more than two literals with a repeated variable is unsupported", c)
	}

	v := order[0]
	lo, hi := byVar[v][0], byVar[v][1]
	if lo > hi {
		lo, hi = hi, lo
	}
	return []Row{{Cons: c, Origin: attrs.Handler, LHS: lo, RHS: hi, Vars: []VarId{v}, Coefs: []Real{1}}}, nil
}

func cloneVars(v []VarId) []VarId {
	out := make([]VarId, len(v))
	copy(out, v)
	return out
}

func cloneCoefs(c []Real) []Real {
	out := make([]Real, len(c))
	copy(out, c)
	return out
}
