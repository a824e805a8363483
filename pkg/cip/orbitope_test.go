package cip_test

import (
	"sort"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/scipopt/cip-core/pkg/cip"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// buildColumnOrbitopeHost builds a 3x4 binary grid with one row-packing
// constraint per row, which induces full column-permutation symmetry
// (the same construction as cmd/cipdemo's S3 scenario).
func buildColumnOrbitopeHost(rows, cols int) *testHost {
	h := newTestHost()
	grid := make([][]cip.VarId, rows)
	for r := 0; r < rows; r++ {
		grid[r] = make([]cip.VarId, cols)
		for c := 0; c < cols; c++ {
			grid[r][c] = h.addBinary()
		}
	}
	for r := 0; r < rows; r++ {
		coefs := make([]cip.Real, cols)
		for i := range coefs {
			coefs[i] = 1
		}
		h.addLinear(grid[r], coefs, -cip.Infinity, 1)
	}
	return h
}

func TestDetectOrbitopeFindsColumnSymmetry(t *testing.T) {
	h := buildColumnOrbitopeHost(3, 4)
	mv, err := cip.Build(h, cip.DefaultConfig())
	require.NoError(t, err)

	cfg := cip.DefaultConfig()
	sg := cip.NewSymGroup(cip.NewBruteForceBackend(), cfg)
	require.NoError(t, sg.Build(mv))
	require.NotZero(t, sg.Storage().NumPerms())

	comps := cip.BuildComponents(sg.Perms(), sg.Storage().NumVars())
	require.Equal(t, 1, comps.NumComponents())

	shape, ok := cip.DetectOrbitope(comps, 0, sg.Storage(), sg.PermVars(), mv)
	require.True(t, ok)
	assert.Equal(t, 3, shape.Rows)
	assert.Equal(t, 4, shape.Cols)

	vars := shape.ToVarIds(mv, sg.PermVars())
	assert.Len(t, vars, 3)
	assert.Len(t, vars[0], 4)

	// Each grid row's own 4 variables were created contiguously
	// (buildColumnOrbitopeHost adds them row-major), and MatrixView
	// preserves host.Variables() order; so row r's shape cells must be
	// exactly {4r, 4r+1, 4r+2, 4r+3} in MatrixView index space, though
	// findExtension is free to choose any column order within the row.
	for r, row := range shape.Vars {
		want := []int{4 * r, 4*r + 1, 4*r + 2, 4*r + 3}
		got := append([]int(nil), row...)
		sort.Ints(got)
		if diff := cmp.Diff(want, got); diff != "" {
			t.Errorf("row %d column-index set mismatch (-want +got):\n%s", r, diff)
		}
	}
}

func TestDetectOrbitopeRejectsEmptyComponent(t *testing.T) {
	storage := cip.NewPermStorage(2, nil)
	comps := cip.BuildComponents(nil, 2)
	_, ok := cip.DetectOrbitope(comps, 0, storage, []int{0, 1}, nil)
	assert.False(t, ok)
}

func TestDetectOrbitopeRejectsNonInvolution(t *testing.T) {
	perms := []cip.Perm{{Image: []int{1, 2, 0}}} // a 3-cycle, not a 2-cycle product
	storage := cip.NewPermStorage(3, [][]int{{1, 2, 0}})
	comps := cip.BuildComponents(perms, 3)
	_, ok := cip.DetectOrbitope(comps, 0, storage, []int{0, 1, 2}, nil)
	assert.False(t, ok)
}
