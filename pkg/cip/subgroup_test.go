package cip_test

import (
	"testing"

	"github.com/scipopt/cip-core/pkg/cip"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// swapPerm builds an identity permutation over nVars with u and v
// transposed.
func swapPerm(nVars, u, v int) []int {
	img := make([]int, nVars)
	for i := range img {
		img[i] = i
	}
	img[u], img[v] = v, u
	return img
}

func TestDetectSubgroupChainsIntoOneOrbitope(t *testing.T) {
	const n = 6
	// A path 0-1-2-3-4-5 of single-transposition generators is a
	// spanning tree over 6 variables; the bipartite 2-colouring splits
	// it into {0,2,4} and {1,3,5}, a balanced (3,2) orbitope.
	edges := [][2]int{{0, 1}, {1, 2}, {2, 3}, {3, 4}, {4, 5}}
	byPerm := make([][]int, len(edges))
	for i, e := range edges {
		byPerm[i] = swapPerm(n, e[0], e[1])
	}
	storage := cip.NewPermStorage(n, byPerm)

	perms := storage.All()
	comps := cip.BuildComponents(perms, n)
	require.Equal(t, 1, comps.NumComponents())

	result := cip.DetectSubgroup(comps, 0, storage)
	require.Len(t, result.Orbitopes, 1)
	assert.Empty(t, result.WeakSBCPerms)

	shape := result.Orbitopes[0]
	assert.Equal(t, 3, shape.Rows)
	assert.Equal(t, 2, shape.Cols)

	var allVars []int
	for _, row := range shape.Vars {
		require.Len(t, row, 2)
		allVars = append(allVars, row...)
	}
	assert.ElementsMatch(t, []int{0, 1, 2, 3, 4, 5}, allVars)
}

func TestDetectSubgroupRejectsOddCycleAsWeakSBC(t *testing.T) {
	const n = 3
	// A single generator that is a 3-cycle is outside this detector's
	// 2-cycle precondition and must fall back to a weak SBC.
	byPerm := [][]int{{1, 2, 0}}
	storage := cip.NewPermStorage(n, byPerm)
	perms := storage.All()
	comps := cip.BuildComponents(perms, n)
	require.Equal(t, 1, comps.NumComponents())

	result := cip.DetectSubgroup(comps, 0, storage)
	assert.Empty(t, result.Orbitopes)
	assert.Equal(t, []int{0}, result.WeakSBCPerms)
}

func TestDetectSubgroupTooSmallComponentYieldsNoOrbitope(t *testing.T) {
	const n = 2
	byPerm := [][]int{{1, 0}}
	storage := cip.NewPermStorage(n, byPerm)
	perms := storage.All()
	comps := cip.BuildComponents(perms, n)
	require.Equal(t, 1, comps.NumComponents())

	result := cip.DetectSubgroup(comps, 0, storage)
	assert.Empty(t, result.Orbitopes)
	assert.Empty(t, result.WeakSBCPerms) // single transposition accepted, just too small to emit
}
