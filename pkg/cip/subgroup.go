package cip

import "sort"

// SubgroupResult is what SubgroupDetector found within one component:
// zero or more sub-orbitopes (each a balanced two-column orbitope over a
// connected chain of generators) plus the generators that instead
// contribute weak symmetry-breaking constraints over the enclosing
// orbit, per spec.md §4.6.
type SubgroupResult struct {
	Orbitopes []OrbitopeShape
	// WeakSBCPerms are the permutation indices (within the component)
	// whose generator could not be folded into a balanced sub-orbitope
	// and instead yields a weak SBC forcing a lex-leading representative.
	WeakSBCPerms []int
}

// bicolorDSU is a parity-tracking disjoint-set union: parity[x] is the
// colour of x relative to parent[x] (0 same, 1 opposite), used to build
// and verify the bipartite forest SubgroupDetector's generator-chaining
// relies on. Two endpoints of an accepted edge always end up with
// opposite colour relative to their shared root.
type bicolorDSU struct {
	parent []int
	rank   []int
	parity []int
}

func newBicolorDSU(n int) *bicolorDSU {
	d := &bicolorDSU{parent: make([]int, n), rank: make([]int, n), parity: make([]int, n)}
	for i := range d.parent {
		d.parent[i] = i
	}
	return d
}

func (d *bicolorDSU) clone() *bicolorDSU {
	c := &bicolorDSU{
		parent: append([]int(nil), d.parent...),
		rank:   append([]int(nil), d.rank...),
		parity: append([]int(nil), d.parity...),
	}
	return c
}

// find returns x's root and x's colour relative to that root, with path
// compression folding the accumulated parity into each visited node.
func (d *bicolorDSU) find(x int) (int, int) {
	if d.parent[x] == x {
		return x, 0
	}
	root, p := d.find(d.parent[x])
	d.parity[x] ^= p
	d.parent[x] = root
	return root, d.parity[x]
}

// tryEdge attempts to add an edge requiring colour(u) != colour(v). It
// returns false if u and v are already in the same component (whether
// their existing relative colour already agrees with the requirement --
// a redundant edge closing a cycle -- or conflicts with it -- a genuine
// bipartiteness violation; spec.md §4.6 lists these as two separate
// rejection reasons, (iii) and (iv), which collapse to the same
// DSU-connectivity check here since both make the edge unusable).
func (d *bicolorDSU) tryEdge(u, v int) bool {
	ru, pu := d.find(u)
	rv, pv := d.find(v)
	if ru == rv {
		return false
	}
	// Attach the smaller-rank tree's root under the larger, with a
	// parity offset chosen so colour(v) ends up opposite colour(u).
	if d.rank[ru] < d.rank[rv] {
		ru, rv = rv, ru
		pu, pv = pv, pu
	}
	d.parent[rv] = ru
	d.parity[rv] = pu ^ pv ^ 1
	if d.rank[ru] == d.rank[rv] {
		d.rank[ru]++
	}
	return true
}

func (d *bicolorDSU) rootOf(v int) int {
	r, _ := d.find(v)
	return r
}

// DetectSubgroup implements spec.md §4.6 within one Components component.
// Generators are sorted by increasing 2-cycle count; each is tentatively
// folded into a shared bipartite forest over permutation-variable
// indices and accepted only if every one of its edges extends the forest
// without reusing a pre-existing graph-component twice and without
// creating a cycle (spec.md §4.6 rejection conditions (i)-(iv); see
// bicolorDSU.tryEdge's doc comment for how (iii)/(iv) collapse into one
// DSU-connectivity check). Rejected generators fall back to weak SBCs.
//
// Open Question resolution (spec.md §9): orbitope emission below always
// reads the live "colour-start" grouping, never the `#if 0`-gated
// chosencomppercolor variant.
func DetectSubgroup(comp *Components, compID int, storage *PermStorage) SubgroupResult {
	members := append([]int(nil), comp.Members(compID)...)
	sort.Slice(members, func(a, b int) bool {
		return len(storage.Perm(members[a]).Cycles()) < len(storage.Perm(members[b]).Cycles())
	})

	d := newBicolorDSU(storage.NumVars())
	var weakSBC []int

	for _, permIdx := range members {
		cycles := storage.Perm(permIdx).Cycles()
		ok := acceptGenerator(d, cycles)
		if !ok {
			weakSBC = append(weakSBC, permIdx)
		}
	}

	return SubgroupResult{
		Orbitopes:    collectSubOrbitopes(d, storage.NumVars()),
		WeakSBCPerms: weakSBC,
	}
}

// acceptGenerator tentatively applies every 2-cycle edge of one
// generator to a clone of d; if every edge succeeds (no reused
// pre-existing component, no internal duplication, no cycle) the clone
// replaces d's state and the generator is accepted.
func acceptGenerator(d *bicolorDSU, cycles [][]int) bool {
	touchedRoots := make(map[int]bool)
	touchedVars := make(map[int]bool)
	for _, c := range cycles {
		if len(c) != 2 {
			return false // not a 2-cycle: outside this detector's scope
		}
		u, v := c[0], c[1]
		if touchedVars[u] || touchedVars[v] {
			return false // condition (i): duplicate variable within one generator
		}
		touchedVars[u], touchedVars[v] = true, true

		ru := d.rootOf(u)
		rv := d.rootOf(v)
		if touchedRoots[ru] || (ru != rv && touchedRoots[rv]) {
			return false // condition (ii): pre-existing component reused twice
		}
		touchedRoots[ru] = true
		touchedRoots[rv] = true
	}

	clone := d.clone()
	for _, c := range cycles {
		if !clone.tryEdge(c[0], c[1]) {
			return false // condition (iii)/(iv): already connected
		}
	}
	*d = *clone
	return true
}

// collectSubOrbitopes groups the final forest's members by graph-component
// and, within each component, by colour. A component whose two colour
// classes are equal in size and >= 3 yields one two-column orbitope
// (spec.md §4.6: "each colour whose graph components all have equal
// size >= 3 yields an orbitope"); members are paired in the order they
// were first observed, which is deterministic given permutation order.
func collectSubOrbitopes(d *bicolorDSU, nVars int) []OrbitopeShape {
	type bucket struct{ side0, side1 []int }
	byRoot := make(map[int]*bucket)

	for v := 0; v < nVars; v++ {
		root, colour := d.find(v)
		if root == v && singletonSize(d, v, nVars) <= 1 {
			continue
		}
		b, ok := byRoot[root]
		if !ok {
			b = &bucket{}
			byRoot[root] = b
		}
		if colour == 0 {
			b.side0 = append(b.side0, v)
		} else {
			b.side1 = append(b.side1, v)
		}
	}

	var roots []int
	for r := range byRoot {
		roots = append(roots, r)
	}
	sort.Ints(roots)

	var shapes []OrbitopeShape
	for _, r := range roots {
		b := byRoot[r]
		if len(b.side0) != len(b.side1) || len(b.side0) < 3 {
			continue
		}
		shape := OrbitopeShape{Rows: len(b.side0), Cols: 2, Vars: make([][]int, len(b.side0))}
		for i := range b.side0 {
			shape.Vars[i] = []int{b.side0[i], b.side1[i]}
		}
		shapes = append(shapes, shape)
	}
	return shapes
}

// singletonSize reports how many variables share v's root, used to skip
// variables no generator ever touched.
func singletonSize(d *bicolorDSU, v, nVars int) int {
	count := 0
	root := d.rootOf(v)
	for w := 0; w < nVars; w++ {
		if d.rootOf(w) == root {
			count++
		}
	}
	return count
}

