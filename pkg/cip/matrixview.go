package cip

import (
	"fmt"
	"sort"
)

// Row is one normalised row of the constraint matrix, per spec.md §3.
//
// Every Row is stored in one of two canonical shapes after normalisation
// (see matrixview_handlers.go): an equation (LHS == RHS, both finite), or
// a single-sided inequality (LHS == -Infinity, RHS finite, representing
// `a^T x <= RHS`). Ranged and `>=` constraints are rewritten to this
// shape at build time (negating coefficients for the `>=` side), exactly
// as spec.md §4.1's normalisation rules describe. The one exception is
// bounddisjunction's type-2 literal pair (spec.md §6), which produces a
// genuinely ranged `lo <= x <= hi` single-variable row.
type Row struct {
	Cons ConsId
	// Origin is the Host handler kind this row was normalised from. The
	// Sparsifier reads it to enforce spec.md §4.2 decision 7: rows
	// originating from a set-packing/partitioning/covering or logic-or
	// family constraint may only be rewritten by a pure (rate == 1)
	// cancellation, never weakened by a partial one.
	Origin HandlerKind
	LHS    Real
	RHS    Real
	Vars   []VarId // strictly increasing
	Coefs  []Real
}

// requiresFullCancellation reports whether r's Origin is one of the
// set-packing/partitioning/covering/logic-or family spec.md §4.2
// decision 7 singles out as never-to-be-weakened.
func (r *Row) requiresFullCancellation() bool {
	switch r.Origin {
	case HandlerSetPacking, HandlerSetPartitioning, HandlerSetCovering, HandlerLogicOr, HandlerAnd, HandlerOr:
		return true
	default:
		return false
	}
}

// IsEquation reports whether r is an equation row under tol.
func (r *Row) IsEquation(tol Real) bool {
	return EQ(r.LHS, r.RHS, tol)
}

// Len returns the number of non-zeros in the row.
func (r *Row) Len() int { return len(r.Vars) }

// coefOf returns the coefficient on v and whether v appears in the row.
// Vars is sorted, so this is a binary search.
func (r *Row) coefOf(v VarId) (Real, bool) {
	i := sort.Search(len(r.Vars), func(i int) bool { return r.Vars[i] >= v })
	if i < len(r.Vars) && r.Vars[i] == v {
		return r.Coefs[i], true
	}
	return 0, false
}

// colEntry is one (row, coefficient) pair in a column, used by the CSC
// projection built lazily on first column access.
type colEntry struct {
	Row   int
	Coef  Real
}

// MatrixView is the canonical read-only projection of the Host's active
// constraints into a sparse matrix, per spec.md §4.1. It owns its CSR
// array exclusively; any coefficient-altering presolve step invalidates
// it and callers must rebuild.
type MatrixView struct {
	cfg  *Config
	rows []Row

	varOrder []VarId       // stable iteration order, also the dense index space
	varIdx   map[VarId]int // VarId -> position in varOrder
	varAttr  map[VarId]VarAttrs

	downLocks map[VarId]int
	upLocks   map[VarId]int

	// colIdx[v] lists indices into rows that reference v, built lazily.
	colIdx map[VarId][]colEntry

	allColumnsInLP bool
}

// Build walks every active Host constraint once, normalises it into zero
// or more Rows, and computes lock counts. It returns ErrIncomplete if any
// constraint handler is unsupported (returned as is), or if a
// constraint fails to normalise, e.g. a bounddisjunction with more than
// two literals and a repeated variable (wrapped with the constraint id).
// Callers can test for both with errors.Is.
func Build(host Host, cfg *Config) (*MatrixView, error) {
	if cfg == nil {
		cfg = DefaultConfig()
	}

	mv := &MatrixView{
		cfg:       cfg,
		varOrder:  host.Variables(),
		varIdx:    make(map[VarId]int),
		varAttr:   make(map[VarId]VarAttrs),
		downLocks: make(map[VarId]int),
		upLocks:   make(map[VarId]int),
	}
	for i, v := range mv.varOrder {
		mv.varIdx[v] = i
		mv.varAttr[v] = host.VarAttrs(v)
	}

	allColumnsInLP := true
	for _, c := range host.Constraints() {
		attrs := host.ConsAttrs(c)
		if !attrs.Active {
			continue
		}
		norm, ok := normalizers[attrs.Handler]
		if !ok {
			cfg.Logger.Warn().Stringer("handler", attrs.Handler).Msg("cip: unsupported constraint handler, matrix view incomplete")
			return nil, ErrIncomplete
		}
		rows, err := norm(c, attrs, cfg)
		if err != nil {
			cfg.Logger.Warn().Err(err).Msg("cip: constraint normalisation failed, matrix view incomplete")
			return nil, fmt.Errorf("%w: constraint %d: %v", ErrIncomplete, c, err)
		}
		for _, r := range rows {
			sortRow(&r)
			mv.rows = append(mv.rows, r)
		}
		if attrs.Handler != HandlerLinear {
			allColumnsInLP = false
		}
	}
	mv.allColumnsInLP = allColumnsInLP

	mv.computeLocks()
	return mv, nil
}

func sortRow(r *Row) {
	if sort.IntsAreSorted(varIdsAsInts(r.Vars)) {
		return
	}
	idx := make([]int, len(r.Vars))
	for i := range idx {
		idx[i] = i
	}
	sort.Slice(idx, func(a, b int) bool { return r.Vars[idx[a]] < r.Vars[idx[b]] })
	vars := make([]VarId, len(r.Vars))
	coefs := make([]Real, len(r.Coefs))
	for i, j := range idx {
		vars[i] = r.Vars[j]
		coefs[i] = r.Coefs[j]
	}
	r.Vars, r.Coefs = vars, coefs
}

func varIdsAsInts(vars []VarId) []int {
	out := make([]int, len(vars))
	for i, v := range vars {
		out[i] = int(v)
	}
	return out
}

// computeLocks derives per-variable up/down lock counts from coefficient
// signs relative to each row's active side, per spec.md §4.1's invariant.
// Equation rows lock both directions regardless of sign; single-sided
// (<=) rows lock "up" for positive coefficients and "down" for negative
// ones, following the standard convention that increasing a
// positive-coefficient variable in a <= row can only push the row
// towards infeasibility.
func (mv *MatrixView) computeLocks() {
	for _, r := range mv.rows {
		bothSidesActive := r.IsEquation(mv.cfg.Epsilon) || (!IsInfinity(r.LHS) && !IsInfinity(r.RHS))
		for i, v := range r.Vars {
			c := r.Coefs[i]
			if bothSidesActive {
				mv.upLocks[v]++
				mv.downLocks[v]++
				continue
			}
			if c > 0 {
				mv.upLocks[v]++
			} else if c < 0 {
				mv.downLocks[v]++
			}
		}
	}
}

// Rows returns the CSR projection: one Row per normalised constraint.
func (mv *MatrixView) Rows() []Row { return mv.rows }

// NumRows returns the number of rows in the CSR projection.
func (mv *MatrixView) NumRows() int { return len(mv.rows) }

// Vars returns the dense variable index space MatrixView was built over.
func (mv *MatrixView) Vars() []VarId { return mv.varOrder }

// VarIndex returns v's position in Vars(), or -1 if v is not part of
// this MatrixView.
func (mv *MatrixView) VarIndex(v VarId) int {
	if i, ok := mv.varIdx[v]; ok {
		return i
	}
	return -1
}

// Attrs returns the cached VarAttrs for v.
func (mv *MatrixView) Attrs(v VarId) VarAttrs { return mv.varAttr[v] }

// UpLocks and DownLocks return v's lock counts computed at Build time.
func (mv *MatrixView) UpLocks(v VarId) int   { return mv.upLocks[v] }
func (mv *MatrixView) DownLocks(v VarId) int { return mv.downLocks[v] }

// AllColumnsInLP reports whether every row of the matrix came from a
// plain linear constraint, a predicate consumed by strong branching
// (external to this package) but computed here from matrix state, per
// spec.md §4.1.
func (mv *MatrixView) AllColumnsInLP() bool { return mv.allColumnsInLP }

// Column returns the CSC projection for v: the list of (row index,
// coefficient) pairs referencing v. Built lazily on first call per
// variable and cached for the lifetime of the MatrixView.
func (mv *MatrixView) Column(v VarId) []colEntry {
	if mv.colIdx == nil {
		mv.buildColumns()
	}
	return mv.colIdx[v]
}

func (mv *MatrixView) buildColumns() {
	mv.colIdx = make(map[VarId][]colEntry)
	for ri, r := range mv.rows {
		for i, v := range r.Vars {
			mv.colIdx[v] = append(mv.colIdx[v], colEntry{Row: ri, Coef: r.Coefs[i]})
		}
	}
}

// InvalidateColumns drops the cached CSC projection; callers must call
// this after any coefficient-altering mutation of Rows() (e.g. the
// Sparsifier rebuilding a row in place) so the next Column() call
// rebuilds from current state. MatrixView's CSR array itself is
// considered invalid after such a mutation too -- per spec.md §4.1, a
// fresh Build is required; InvalidateColumns only protects callers that
// continue reading the (now stale) CSR for bookkeeping before rebuilding.
func (mv *MatrixView) InvalidateColumns() {
	mv.colIdx = nil
}
