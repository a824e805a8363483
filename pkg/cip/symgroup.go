package cip

import (
	"fmt"

	"github.com/bits-and-blooms/bitset"
)

// SymGroup produces a coloured graph from a MatrixView, invokes the
// pluggable automorphism backend, and owns the resulting permutation
// storage (direct + transposed) plus optional compression, per
// spec.md §4.3.
type SymGroup struct {
	cfg     *Config
	backend AutomorphismBackend

	storage *PermStorage

	// permvars maps a permutation-variable index back to the MatrixView
	// variable index space it was compacted from (identity unless
	// compression ran).
	permvars []int

	log10GroupSize float64
	compressed     bool
}

// NewSymGroup constructs a SymGroup bound to the given automorphism
// backend and configuration.
func NewSymGroup(backend AutomorphismBackend, cfg *Config) *SymGroup {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	return &SymGroup{cfg: cfg, backend: backend}
}

// Build computes the colouring, invokes the backend, optionally
// compresses the result, and optionally verifies it, per spec.md §4.3.
func (sg *SymGroup) Build(mv *MatrixView) error {
	if !sg.backend.Available() {
		sg.cfg.Logger.Warn().Str("backend", sg.backend.Name()).Msg("cip: automorphism backend unavailable, symmetry disabled")
		return ErrBackendAbsent
	}

	graph, permvars := sg.colour(mv)
	sg.permvars = permvars

	// Termination shortcuts (spec.md §4.3): unique variable or matrix
	// entry colours mean the only automorphism is the identity.
	if allUnique(graph.VarColour) || allUnique(flattenEntryColours(graph)) {
		sg.storage = NewPermStorage(len(permvars), nil)
		sg.log10GroupSize = 0
		return nil
	}

	perms, log10Size, err := sg.backend.ComputeGenerators(graph, sg.cfg.MaxGenerators)
	if err != nil {
		return fmt.Errorf("cip: automorphism backend failed: %w", err)
	}
	sg.log10GroupSize = log10Size

	byPerm := make([][]int, len(perms))
	for i, p := range perms {
		byPerm[i] = p.Image
	}
	sg.storage = NewPermStorage(len(permvars), byPerm)

	if sg.cfg.Compress {
		sg.maybeCompress(mv)
	}
	if sg.cfg.CheckSymmetries {
		if err := sg.Verify(mv); err != nil {
			sg.cfg.Logger.Error().Err(err).Msg("cip: symmetry verification failed, disabling symmetry")
			return err
		}
	}
	return nil
}

// colour implements spec.md §4.3's colouring rules and builds the
// ColouredGraph the backend consumes. Returns the graph plus the
// permvars array (MatrixView variable indices eligible to be permuted,
// in the order used as the graph's variable-node index space).
func (sg *SymGroup) colour(mv *MatrixView) (ColouredGraph, []int) {
	vars := mv.Vars()
	permvars := make([]int, len(vars))
	for i := range vars {
		permvars[i] = i
	}

	type varKey struct {
		obj, lb, ub float64
		kind        VarKind
		unique      int // 0 for other variables; a distinct value >=1 per Fixed variable
	}
	varColourOf := make(map[varKey]int)
	varColour := make([]int, len(vars))
	nextVarColour := 0
	fixedCounter := 0
	for i, v := range vars {
		attrs := mv.Attrs(v)
		key := varKey{obj: quantize(attrs.Obj, sg.cfg.Epsilon), lb: quantize(attrs.LB, sg.cfg.Epsilon), ub: quantize(attrs.UB, sg.cfg.Epsilon), kind: attrs.Kind}
		if attrs.Fixed {
			key.unique = fixedCounter + 1
			fixedCounter++
		}
		c, ok := varColourOf[key]
		if !ok {
			c = nextVarColour
			varColourOf[key] = c
			nextVarColour++
		}
		varColour[i] = c
	}

	if sg.cfg.UseColumnSparsity {
		// Additional colour channel keyed by per-variable constraint
		// count, refining the base colour (spec.md §4.3 "Optional").
		sg.refineBySparsity(mv, vars, varColour)
	}

	rows := mv.Rows()
	rhsColourOf := make(map[[2]interface{}]int)
	rowColour := make([]int, len(rows))
	nextRowColour := 0
	entryColourOf := make(map[float64]int)
	nextEntryColour := 0
	entries := make([][]GraphEdge, len(rows))

	varIdxOf := make(map[VarId]int, len(vars))
	for i, v := range vars {
		varIdxOf[v] = i
	}

	for ri, r := range rows {
		eq := r.IsEquation(sg.cfg.Epsilon)
		// Sense strictly orders before value, per spec.md §4.3, so two
		// rows with the same rhs value but different senses never merge
		// under numeric noise.
		key := [2]interface{}{eq, quantize(r.RHS, sg.cfg.Epsilon)}
		c, ok := rhsColourOf[key]
		if !ok {
			c = nextRowColour
			rhsColourOf[key] = c
			nextRowColour++
		}
		rowColour[ri] = c

		for i, v := range r.Vars {
			coefQ := quantize(r.Coefs[i], sg.cfg.Epsilon)
			ec, ok := entryColourOf[coefQ]
			if !ok {
				ec = nextEntryColour
				entryColourOf[coefQ] = ec
				nextEntryColour++
			}
			entries[ri] = append(entries[ri], GraphEdge{Var: varIdxOf[v], Colour: ec})
		}
	}

	return ColouredGraph{
		NVars:     len(vars),
		VarColour: varColour,
		RowColour: rowColour,
		Entries:   entries,
	}, permvars
}

// refineBySparsity adds a secondary colour channel keyed by per-variable
// constraint count (spec.md §4.3's optional sparsity-aware refinement).
func (sg *SymGroup) refineBySparsity(mv *MatrixView, vars []VarId, varColour []int) {
	counts := make([]int, len(vars))
	for i, v := range vars {
		counts[i] = len(mv.Column(v))
	}
	combined := make(map[[2]int]int)
	next := 0
	for i := range vars {
		key := [2]int{varColour[i], counts[i]}
		c, ok := combined[key]
		if !ok {
			c = next
			combined[key] = c
			next++
		}
		varColour[i] = c
	}
}

func quantize(v, eps float64) float64 {
	if eps <= 0 {
		return v
	}
	return float64(int64(v/eps+0.5)) * eps
}

func allUnique(colours []int) bool {
	seen := make(map[int]bool, len(colours))
	for _, c := range colours {
		if seen[c] {
			return false
		}
		seen[c] = true
	}
	return true
}

func flattenEntryColours(g ColouredGraph) []int {
	var out []int
	for _, row := range g.Entries {
		for _, e := range row {
			out = append(out, e.Colour)
		}
	}
	return out
}

// maybeCompress implements spec.md §4.3's compression: if the fraction
// of variables actually moved by some permutation is <= compressThreshold
// and the problem is large enough, permutations are rewritten to index
// only moved variables.
func (sg *SymGroup) maybeCompress(mv *MatrixView) {
	n := sg.storage.NumVars()
	if n == 0 || len(mv.Vars()) < sg.cfg.CompressMinVars {
		return
	}
	movedMask := bitset.New(uint(n))
	for _, p := range sg.storage.All() {
		for v, w := range p.Image {
			if w != v {
				movedMask.Set(uint(v))
			}
		}
	}
	moved := int(movedMask.Count())
	if float64(moved)/float64(n) > sg.cfg.CompressThreshold {
		return
	}

	// Build old-index -> new-index map for moved variables only.
	newIdx := make([]int, n)
	newPermvars := make([]int, 0, moved)
	for v := 0; v < n; v++ {
		if movedMask.Test(uint(v)) {
			newIdx[v] = len(newPermvars)
			newPermvars = append(newPermvars, sg.permvars[v])
		} else {
			newIdx[v] = -1
		}
	}

	newByPerm := make([][]int, sg.storage.NumPerms())
	for pi, p := range sg.storage.All() {
		img := make([]int, moved)
		for v, w := range p.Image {
			if newIdx[v] == -1 {
				continue
			}
			img[newIdx[v]] = newIdx[w]
		}
		newByPerm[pi] = img
	}

	sg.storage = NewPermStorage(moved, newByPerm)
	sg.permvars = newPermvars
	sg.compressed = true
}

// Verify re-applies every stored permutation to mv and checks that each
// row maps to a row of the same rhs-sense and value with a matching
// coefficient pattern (tolerance-aware), per spec.md §4.3 and testable
// property 1 in spec.md §8. Returns ErrInvariantViolation (fatal, per
// spec.md §7) on the first mismatch found.
func (sg *SymGroup) Verify(mv *MatrixView) error {
	if sg.storage == nil {
		return nil
	}
	rows := mv.Rows()
	type rowSig struct {
		eq  bool
		rhs float64
	}
	bySig := make(map[rowSig][]int)
	for ri, r := range rows {
		sig := rowSig{eq: r.IsEquation(sg.cfg.Epsilon), rhs: quantize(r.RHS, sg.cfg.Epsilon)}
		bySig[sig] = append(bySig[sig], ri)
	}

	varAt := make([]VarId, len(sg.permvars))
	for i, mvIdx := range sg.permvars {
		varAt[i] = mv.Vars()[mvIdx]
	}

	for _, p := range sg.storage.All() {
		for ri, r := range rows {
			sig := rowSig{eq: r.IsEquation(sg.cfg.Epsilon), rhs: quantize(r.RHS, sg.cfg.Epsilon)}
			permuted := make(map[VarId]float64, len(r.Vars))
			ok := true
			for i, v := range r.Vars {
				pos := indexOf(varAt, v)
				if pos == -1 {
					permuted[v] = r.Coefs[i] // untouched by this permutation's domain
					continue
				}
				permuted[varAt[p.Image[pos]]] = r.Coefs[i]
			}
			if !rowMatchesAny(permuted, bySig[sig], rows, sg.cfg.Epsilon) {
				return fmt.Errorf("%w: row %d not preserved by permutation", ErrInvariantViolation, ri)
			}
		}
	}
	return nil
}

func indexOf(vs []VarId, v VarId) int {
	for i, x := range vs {
		if x == v {
			return i
		}
	}
	return -1
}

func rowMatchesAny(permuted map[VarId]float64, candidates []int, rows []Row, eps float64) bool {
	for _, ci := range candidates {
		r := rows[ci]
		if len(r.Vars) != len(permuted) {
			continue
		}
		match := true
		for i, v := range r.Vars {
			want, ok := permuted[v]
			if !ok || !EQ(want, r.Coefs[i], eps) {
				match = false
				break
			}
		}
		if match {
			return true
		}
	}
	return false
}

// Perms returns every stored permutation.
func (sg *SymGroup) Perms() []Perm { return sg.storage.All() }

// Storage exposes the underlying dual-projection permutation storage.
func (sg *SymGroup) Storage() *PermStorage { return sg.storage }

// PermVars maps a permutation-variable index back to its MatrixView
// variable index, accounting for compression.
func (sg *SymGroup) PermVars() []int { return sg.permvars }

// Compressed reports whether compression rewrote the permutation space.
func (sg *SymGroup) Compressed() bool { return sg.compressed }

// Log10GroupSize returns the backend's group-size estimate.
func (sg *SymGroup) Log10GroupSize() float64 { return sg.log10GroupSize }
