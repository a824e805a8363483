package cip_test

import (
	"errors"
	"testing"

	"github.com/scipopt/cip-core/pkg/cip"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBuildNormalisesEquationAndInequality(t *testing.T) {
	h := newTestHost()
	x := h.addContinuous()
	y := h.addContinuous()
	h.addLinear([]cip.VarId{x, y}, []cip.Real{1, 1}, 3, 3)           // equation
	h.addLinear([]cip.VarId{x, y}, []cip.Real{2, -1}, -cip.Infinity, 5) // one-sided <=

	mv, err := cip.Build(h, cip.DefaultConfig())
	require.NoError(t, err)
	require.Len(t, mv.Rows(), 2)

	eqRow := mv.Rows()[0]
	assert.True(t, eqRow.IsEquation(cip.DefaultEpsilon))
	assert.Equal(t, 2, eqRow.Len())
}

func TestBuildRangedRowEmitsTwoRows(t *testing.T) {
	h := newTestHost()
	x := h.addContinuous()
	h.addLinear([]cip.VarId{x}, []cip.Real{1}, 0, 10) // ranged: 0 <= x <= 10

	mv, err := cip.Build(h, cip.DefaultConfig())
	require.NoError(t, err)
	assert.Len(t, mv.Rows(), 2)
}

func TestBuildRejectsUnsupportedBoundDisjunction(t *testing.T) {
	h := newTestHost()
	x := h.addContinuous()
	y := h.addContinuous()
	h.addBoundDisjunction([]cip.BoundDisjunctionLiteral{
		{Var: x, IsLB: true, Bound: 1},
		{Var: y, IsLB: false, Bound: 0},
		{Var: x, IsLB: false, Bound: 0},
	})

	_, err := cip.Build(h, cip.DefaultConfig())
	require.Error(t, err)
	assert.True(t, errors.Is(err, cip.ErrIncomplete))
}

func TestMatrixViewLocksAndColumns(t *testing.T) {
	h := newTestHost()
	x := h.addContinuous()
	y := h.addContinuous()
	h.addLinear([]cip.VarId{x, y}, []cip.Real{1, -1}, -cip.Infinity, 5)

	mv, err := cip.Build(h, cip.DefaultConfig())
	require.NoError(t, err)
	assert.Equal(t, 1, mv.UpLocks(x))
	assert.Equal(t, 0, mv.DownLocks(x))
	assert.Equal(t, 0, mv.UpLocks(y))
	assert.Equal(t, 1, mv.DownLocks(y))

	col := mv.Column(x)
	require.Len(t, col, 1)
	assert.Equal(t, 0, col[0].Row)

	assert.True(t, mv.AllColumnsInLP())
}

func TestMatrixViewVarIndexUnknownVar(t *testing.T) {
	h := newTestHost()
	h.addContinuous()
	mv, err := cip.Build(h, cip.DefaultConfig())
	require.NoError(t, err)
	assert.Equal(t, -1, mv.VarIndex(cip.VarId(999)))
}
