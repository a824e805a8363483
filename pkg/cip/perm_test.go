package cip_test

import (
	"testing"

	"github.com/scipopt/cip-core/pkg/cip"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPermCyclesAndIdentity(t *testing.T) {
	p := cip.Perm{Image: []int{0, 2, 1, 3}}
	assert.False(t, p.IsIdentity())
	assert.Equal(t, [][]int{{1, 2}}, p.Cycles())
	assert.True(t, p.Is2CycleProduct())

	id := cip.Perm{Image: []int{0, 1, 2, 3}}
	assert.True(t, id.IsIdentity())
	assert.Empty(t, id.Cycles())

	threeCycle := cip.Perm{Image: []int{1, 2, 0}}
	assert.False(t, threeCycle.Is2CycleProduct())
	require.Len(t, threeCycle.Cycles(), 1)
	assert.Equal(t, []int{0, 1, 2}, threeCycle.Cycles()[0])
}

func TestPermStorageProjections(t *testing.T) {
	perms := [][]int{
		{1, 0, 2},
		{0, 2, 1},
	}
	ps := cip.NewPermStorage(3, perms)
	assert.Equal(t, 2, ps.NumPerms())
	assert.Equal(t, 3, ps.NumVars())
	assert.Equal(t, []int{1, 0, 2}, ps.Perm(0).Image)
	assert.Equal(t, []int{1, 0}, ps.ImageOf(0))
	assert.Len(t, ps.All(), 2)
}

func TestPermStoragePanicsOnLengthMismatch(t *testing.T) {
	assert.Panics(t, func() {
		cip.NewPermStorage(3, [][]int{{0, 1}})
	})
}
