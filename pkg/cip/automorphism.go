package cip

import (
	"math"
	"sort"
)

// ColouredGraph is the canonical-colouring graph SymGroup builds from a
// MatrixView, per spec.md §4.3. It is bipartite: variable nodes (indexed
// 0..NVars-1, in MatrixView's dense variable order) and row nodes
// (indexed 0..len(RowColour)-1), connected by coloured entry edges.
//
// An automorphism backend must return permutations of the variable
// nodes only, that extend to a full graph automorphism (some
// permutation of row nodes preserving RowColour and entry colours).
type ColouredGraph struct {
	NVars     int
	VarColour []int // per-variable colour class, len == NVars

	RowColour []int         // per-row colour class (sense, rhs), len == NRows
	Entries   [][]GraphEdge // per-row list of (variable index, entry colour)
}

// GraphEdge is one coloured edge from a row node to a variable node.
type GraphEdge struct {
	Var    int
	Colour int
}

// AutomorphismBackend is the pluggable `compute-symmetry` capability
// spec.md §1 and §9 describe: a capability object selected at startup by
// configuration, offering an availability probe, a name, and the
// generator computation itself. A production backend (bliss, nauty, ...)
// is out of scope for this package; BruteForceBackend below is a
// reference implementation adequate for tests and small demos only.
type AutomorphismBackend interface {
	Available() bool
	Name() string
	// ComputeGenerators returns permutations of the graph's variable
	// nodes that are automorphisms of g, capped at maxGenerators, plus
	// an estimate of log10(|Aut(g)|).
	ComputeGenerators(g ColouredGraph, maxGenerators int) ([]Perm, float64, error)
}

// BruteForceBackend computes automorphisms by exhaustive search over
// colour-respecting permutations. It is only practical for a few dozen
// variables (per spec.md §1's "treated as a pluggable capability" --
// this package ships no production backend), which is sufficient for
// the unit tests and cmd/cipdemo scenarios in SPEC_FULL.md.
type BruteForceBackend struct{}

// NewBruteForceBackend constructs the reference automorphism backend.
func NewBruteForceBackend() *BruteForceBackend { return &BruteForceBackend{} }

func (b *BruteForceBackend) Available() bool { return true }
func (b *BruteForceBackend) Name() string    { return "bruteforce" }

// ComputeGenerators enumerates every permutation of g's variable nodes
// that respects VarColour (only ever maps a variable within its own
// colour class) and checks each one for being a full graph automorphism:
// for every row there must exist a row of matching RowColour whose entry
// multiset, read through the candidate permutation, matches exactly.
func (b *BruteForceBackend) ComputeGenerators(g ColouredGraph, maxGenerators int) ([]Perm, float64, error) {
	classes := make(map[int][]int)
	for v, c := range g.VarColour {
		classes[c] = append(classes[c], v)
	}
	// If every variable has a unique colour, the only automorphism is
	// the identity: return zero permutations immediately (spec.md §4.3
	// termination shortcut).
	unique := true
	for _, members := range classes {
		if len(members) > 1 {
			unique = false
			break
		}
	}
	if unique {
		return nil, 0, nil
	}

	// Precompute, per row, the sorted entry list for fast comparison.
	rowEntries := make([][]GraphEdge, len(g.Entries))
	for i, entries := range g.Entries {
		sorted := append([]GraphEdge(nil), entries...)
		sort.Slice(sorted, func(a, b int) bool { return sorted[a].Var < sorted[b].Var })
		rowEntries[i] = sorted
	}

	// Group rows by colour for candidate matching.
	rowsByColour := make(map[int][]int)
	for ri, c := range g.RowColour {
		rowsByColour[c] = append(rowsByColour[c], ri)
	}

	var classKeys []int
	for c := range classes {
		classKeys = append(classKeys, c)
		sort.Ints(classes[c])
	}
	sort.Ints(classKeys)

	img := make([]int, g.NVars)
	for v := range img {
		img[v] = v
	}

	var perms []Perm
	var rec func(classIdx int) bool
	rec = func(classIdx int) bool {
		if len(perms) >= maxGenerators {
			return true // stop recursion, budget exhausted
		}
		if classIdx == len(classKeys) {
			candidate := append([]int(nil), img...)
			if !isIdentityPerm(candidate) && isAutomorphism(g, rowEntries, rowsByColour, candidate) {
				perms = append(perms, Perm{Image: candidate})
			}
			return len(perms) >= maxGenerators
		}
		members := classes[classKeys[classIdx]]
		return permuteWithin(members, img, func() bool { return rec(classIdx + 1) })
	}
	rec(0)

	logSize := 0.0
	if len(perms) > 0 {
		// |Aut(g)| is at least len(perms)+1 (the identity plus every
		// generator found); a tight group-size count requires closing
		// the generators under composition, which is unnecessary for
		// this reference backend's diagnostic purpose.
		logSize = math.Log10(float64(len(perms) + 1))
	}
	return perms, logSize, nil
}

func isIdentityPerm(img []int) bool {
	for i, w := range img {
		if w != i {
			return false
		}
	}
	return true
}

func isAutomorphism(g ColouredGraph, rowEntries [][]GraphEdge, rowsByColour map[int][]int, img []int) bool {
	used := make([]bool, len(g.Entries))
	for ri, entries := range rowEntries {
		mapped := make([]GraphEdge, len(entries))
		for i, e := range entries {
			mapped[i] = GraphEdge{Var: img[e.Var], Colour: e.Colour}
		}
		sort.Slice(mapped, func(a, b int) bool { return mapped[a].Var < mapped[b].Var })

		found := false
		for _, cand := range rowsByColour[g.RowColour[ri]] {
			if used[cand] {
				continue
			}
			if edgesEqual(mapped, rowEntries[cand]) {
				used[cand] = true
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	return true
}

func edgesEqual(a, b []GraphEdge) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

// permuteWithin calls visit once for every permutation of members
// written into img at those positions, restoring img afterwards; it
// stops early (returning true) as soon as visit returns true.
func permuteWithin(members []int, img []int, visit func() bool) bool {
	n := len(members)
	perm := make([]int, n)
	copy(perm, members)

	var rec func(k int) bool
	rec = func(k int) bool {
		if k == n {
			for i, m := range members {
				img[m] = perm[i]
			}
			return visit()
		}
		for i := k; i < n; i++ {
			perm[k], perm[i] = perm[i], perm[k]
			if rec(k + 1) {
				perm[k], perm[i] = perm[i], perm[k]
				return true
			}
			perm[k], perm[i] = perm[i], perm[k]
		}
		return false
	}
	stop := rec(0)
	for _, m := range members {
		img[m] = m
	}
	return stop
}

