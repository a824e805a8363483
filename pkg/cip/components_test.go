package cip_test

import (
	"testing"

	"github.com/scipopt/cip-core/pkg/cip"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBuildComponentsSingleOrbit(t *testing.T) {
	// A single transposition (0 1) over a 4-variable space: variables 2
	// and 3 are never moved and must collapse into UnaffectedComponent.
	perms := []cip.Perm{{Image: []int{1, 0, 2, 3}}}
	comps := cip.BuildComponents(perms, 4)

	require.Equal(t, 1, comps.NumComponents())
	assert.Equal(t, 0, comps.ComponentOf(0))
	assert.Equal(t, 0, comps.ComponentOf(1))
	assert.Equal(t, cip.UnaffectedComponent, comps.ComponentOf(2))
	assert.Equal(t, cip.UnaffectedComponent, comps.ComponentOf(3))
	assert.Equal(t, []int{0}, comps.Members(0))
	assert.True(t, comps.Partitions(1))
}

func TestBuildComponentsTwoDisjointOrbits(t *testing.T) {
	perms := []cip.Perm{
		{Image: []int{1, 0, 2, 3}}, // moves {0,1}
		{Image: []int{0, 1, 3, 2}}, // moves {2,3}
	}
	comps := cip.BuildComponents(perms, 4)

	require.Equal(t, 2, comps.NumComponents())
	assert.NotEqual(t, comps.ComponentOf(0), comps.ComponentOf(2))
	assert.Equal(t, comps.ComponentOf(0), comps.ComponentOf(1))
	assert.Equal(t, comps.ComponentOf(2), comps.ComponentOf(3))
	assert.True(t, comps.Partitions(2))
}

func TestComponentsBlockIsMonotonic(t *testing.T) {
	perms := []cip.Perm{{Image: []int{1, 0}}}
	comps := cip.BuildComponents(perms, 2)
	assert.False(t, comps.Blocked(0))
	comps.Block(0)
	assert.True(t, comps.Blocked(0))
	// Blocking an out-of-range id is a silent no-op, never a panic.
	comps.Block(99)
	assert.False(t, comps.Blocked(99))
}

func TestBuildComponentsMergesOverlappingOrbits(t *testing.T) {
	// Two generators that individually move disjoint pairs but share a
	// variable must merge into one component via the DSU union.
	perms := []cip.Perm{
		{Image: []int{1, 0, 2}}, // moves {0,1}
		{Image: []int{0, 2, 1}}, // moves {1,2}
	}
	comps := cip.BuildComponents(perms, 3)
	require.Equal(t, 1, comps.NumComponents())
	assert.Equal(t, comps.ComponentOf(0), comps.ComponentOf(2))
}
