package cip

// OrbitopeShape is a materialised (k rows, cols columns) binary orbitope
// matrix, in the variable-index space of the MatrixView it was detected
// over, per spec.md §4.5.
type OrbitopeShape struct {
	Rows int
	Cols int
	// Vars[row][col] is the MatrixView variable index at that cell.
	Vars [][]int
}

// DetectOrbitope checks whether compID's generators form a full
// orbitope matrix, per spec.md §4.5's preconditions, matrix-construction
// algorithm, and tie-breaks. permvars maps a permutation-variable index
// back to a MatrixView variable index.
//
// Preconditions: the component has at least two generators, every
// generator is a product of disjoint 2-cycles only, every moved variable
// is binary, and every generator has the same number of 2-cycles k. If
// any precondition fails, returns (nil, false) -- the component is left
// unblocked for SubgroupDetector.
func DetectOrbitope(comp *Components, compID int, storage *PermStorage, permvars []int, mv *MatrixView) (*OrbitopeShape, bool) {
	members := comp.Members(compID)
	if len(members) < 2 {
		return nil, false
	}

	cycleSets := make([][][2]int, len(members))
	k := -1
	for i, pi := range members {
		p := storage.Perm(pi)
		if !p.Is2CycleProduct() {
			return nil, false
		}
		cycles := p.Cycles()
		if k == -1 {
			k = len(cycles)
		} else if len(cycles) != k {
			return nil, false
		}
		cs := make([][2]int, len(cycles))
		for j, c := range cycles {
			if len(c) != 2 {
				return nil, false
			}
			cs[j] = [2]int{c[0], c[1]}
			if !isBinary(mv, permvars, c[0]) || !isBinary(mv, permvars, c[1]) {
				return nil, false
			}
		}
		cycleSets[i] = cs
	}
	if k <= 0 {
		return nil, false
	}

	// Seed: the first generator's cycles fix row order and the first two
	// columns, per spec.md §4.5's tie-break.
	seed := cycleSets[0]
	columns := [][]int{make([]int, k), make([]int, k)}
	for row, c := range seed {
		columns[0][row] = c[0]
		columns[1][row] = c[1]
	}
	used := make([]bool, len(members))
	used[0] = true
	remaining := len(members) - 1

	for remaining > 0 {
		extendedRight := false
		if col, idx, ok := findExtension(cycleSets, used, columns[len(columns)-1]); ok {
			columns = append(columns, col)
			used[idx] = true
			remaining--
			extendedRight = true
		}
		if extendedRight {
			continue
		}
		if col, idx, ok := findExtension(cycleSets, used, columns[0]); ok {
			columns = append([][]int{col}, columns...)
			used[idx] = true
			remaining--
			continue
		}
		// Neither direction extends cleanly: detection fails.
		return nil, false
	}

	shape := &OrbitopeShape{Rows: k, Cols: len(columns)}
	shape.Vars = make([][]int, k)
	for row := 0; row < k; row++ {
		shape.Vars[row] = make([]int, len(columns))
		for col, c := range columns {
			shape.Vars[row][col] = c[row]
		}
	}
	return shape, true
}

// findExtension scans unused generators in member order (deterministic
// tie-break per spec.md §4.5) and accepts the first one whose 2-cycles
// pair every row's outer value with exactly one new value.
func findExtension(cycleSets [][][2]int, used []bool, outer []int) ([]int, int, bool) {
	inOuter := make(map[int]bool, len(outer))
	for _, v := range outer {
		inOuter[v] = true
	}
	for idx, cycles := range cycleSets {
		if used[idx] {
			continue
		}
		partner := make(map[int]int, len(cycles)*2)
		for _, c := range cycles {
			partner[c[0]] = c[1]
			partner[c[1]] = c[0]
		}
		newCol := make([]int, len(outer))
		ok := true
		for row, v := range outer {
			p, found := partner[v]
			if !found || inOuter[p] {
				ok = false
				break
			}
			newCol[row] = p
		}
		if ok {
			return newCol, idx, true
		}
	}
	return nil, 0, false
}

func isBinary(mv *MatrixView, permvars []int, permIdx int) bool {
	if permIdx < 0 || permIdx >= len(permvars) {
		return false
	}
	v := mv.Vars()[permvars[permIdx]]
	return mv.Attrs(v).Kind == VarBinary
}

// ToVarIds translates an OrbitopeShape's MatrixView-index cells into
// Host VarIds, for passing to Host.AddOrbitopeConstraint.
func (s *OrbitopeShape) ToVarIds(mv *MatrixView, permvars []int) [][]VarId {
	out := make([][]VarId, s.Rows)
	vars := mv.Vars()
	for row := 0; row < s.Rows; row++ {
		out[row] = make([]VarId, s.Cols)
		for col := 0; col < s.Cols; col++ {
			out[row][col] = vars[permvars[s.Vars[row][col]]]
		}
	}
	return out
}
