package cip

// Perm is a single permutation on the dense permutation-variable index
// space {0..n-1}, per spec.md §3. Image[i] gives the index i maps to;
// Image must be a bijection (a composition of disjoint cycles).
type Perm struct {
	Image []int
}

// N returns the size of the permutation's domain.
func (p Perm) N() int { return len(p.Image) }

// IsIdentity reports whether p fixes every index.
func (p Perm) IsIdentity() bool {
	for i, w := range p.Image {
		if w != i {
			return false
		}
	}
	return true
}

// Cycles decomposes p into its disjoint cycles (length >= 2 only;
// fixed points are omitted), in order of smallest representative index.
func (p Perm) Cycles() [][]int {
	seen := make([]bool, len(p.Image))
	var cycles [][]int
	for i := range p.Image {
		if seen[i] || p.Image[i] == i {
			seen[i] = true
			continue
		}
		var cyc []int
		j := i
		for !seen[j] {
			seen[j] = true
			cyc = append(cyc, j)
			j = p.Image[j]
		}
		cycles = append(cycles, cyc)
	}
	return cycles
}

// Is2CycleProduct reports whether p is a product of disjoint 2-cycles
// only (an involution with no fixed points among moved variables), the
// OrbitopeDetector precondition from spec.md §4.5.
func (p Perm) Is2CycleProduct() bool {
	for _, c := range p.Cycles() {
		if len(c) != 2 {
			return false
		}
	}
	return true
}

// PermStorage holds a set of permutations over a shared dense variable
// index space, stored both row-major (permutation index -> image array)
// and transposed (variable index -> array over permutations), per
// spec.md §3's Permutation data model: "Stored twice ... to serve both
// algorithms without reallocation."
type PermStorage struct {
	nVars  int
	byPerm [][]int // [p][v] = image of v under permutation p
	byVar  [][]int // [v][p] = image of v under permutation p (transposed)
}

// NewPermStorage builds both projections from a row-major permutation
// list. Panics if any permutation's length does not match nVars --
// callers (SymGroup) are expected to only ever construct permutations
// over the compacted variable space they themselves computed.
func NewPermStorage(nVars int, perms [][]int) *PermStorage {
	ps := &PermStorage{
		nVars:  nVars,
		byPerm: make([][]int, len(perms)),
		byVar:  make([][]int, nVars),
	}
	for v := range ps.byVar {
		ps.byVar[v] = make([]int, len(perms))
	}
	for p, img := range perms {
		if len(img) != nVars {
			panic("cip: permutation length does not match variable space")
		}
		ps.byPerm[p] = img
		for v, w := range img {
			ps.byVar[v][p] = w
		}
	}
	return ps
}

// NumPerms returns the number of stored permutations.
func (ps *PermStorage) NumPerms() int { return len(ps.byPerm) }

// NumVars returns the size of the shared permutation-variable index space.
func (ps *PermStorage) NumVars() int { return ps.nVars }

// Perm returns permutation p as a standalone Perm value (shares the
// underlying image slice; callers must not mutate it).
func (ps *PermStorage) Perm(p int) Perm { return Perm{Image: ps.byPerm[p]} }

// ImageOf returns the image of variable v under every stored permutation,
// reading the transposed projection directly with no reallocation.
func (ps *PermStorage) ImageOf(v int) []int { return ps.byVar[v] }

// All returns every stored permutation as a []Perm slice.
func (ps *PermStorage) All() []Perm {
	out := make([]Perm, len(ps.byPerm))
	for i, img := range ps.byPerm {
		out[i] = Perm{Image: img}
	}
	return out
}
