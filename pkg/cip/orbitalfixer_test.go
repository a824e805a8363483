package cip_test

import (
	"context"
	"testing"

	"github.com/scipopt/cip-core/pkg/cip"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOrbitalFixerFixesSwapPartnerOnBranch(t *testing.T) {
	h, x1, x2 := buildSwapSymmetricHost()
	mv, err := cip.Build(h, cip.DefaultConfig())
	require.NoError(t, err)

	sg := cip.NewSymGroup(cip.NewBruteForceBackend(), cip.DefaultConfig())
	require.NoError(t, sg.Build(mv))
	require.Equal(t, 1, sg.Storage().NumPerms())

	permvars := sg.PermVars()
	permvarID := make([]cip.VarId, len(permvars))
	for i, mvIdx := range permvars {
		permvarID[i] = mv.Vars()[mvIdx]
	}

	fixer := cip.NewOrbitalFixer(cip.DefaultConfig(), sg.Storage(), permvarID, nil)
	require.NoError(t, fixer.Subscribe(h))

	ctx := context.Background()

	// Branching x1 to 1 puts x1 in the fixed-to-one path; its orbit
	// partner x2 is not globally fixed by anything yet, so no tightening
	// should occur (x2 shares x1's orbit, not bg0/bg1 coverage).
	h.bounds[x1] = testBounds{LB: 1, UB: 1}
	node1 := h.branchToOne(x1)
	h.current = node1
	result, err := fixer.Propagate(ctx, h, node1)
	require.NoError(t, err)
	assert.Equal(t, cip.NoChange, result.Outcome)

	// Now simulate x1 having been globally fixed to zero elsewhere
	// (bg0 covers it); propagating a node with no branching should fix
	// x2 to zero too, since {x1,x2} is one orbit fully covered by bg0.
	h.bounds[x1] = testBounds{LB: 0, UB: 0}
	h.fireUBToZero(x1)
	h.current = cip.RootNode
	result, err = fixer.Propagate(ctx, h, cip.RootNode)
	require.NoError(t, err)
	assert.Equal(t, cip.Tightened, result.Outcome)
	assert.Equal(t, 1, result.NFixed0)
	assert.Equal(t, cip.Real(0), h.bounds[x2].UB)
}

func TestOrbitalFixerDetectsInfeasibility(t *testing.T) {
	h := newTestHost()
	x1 := h.addBinary()
	x2 := h.addBinary()
	x3 := h.addBinary()
	h.addLinear([]cip.VarId{x1, x2, x3}, []cip.Real{1, 1, 1}, -cip.Infinity, 2)

	mv, err := cip.Build(h, cip.DefaultConfig())
	require.NoError(t, err)
	sg := cip.NewSymGroup(cip.NewBruteForceBackend(), cip.DefaultConfig())
	require.NoError(t, sg.Build(mv))
	require.NotZero(t, sg.Storage().NumPerms())

	permvars := sg.PermVars()
	permvarID := make([]cip.VarId, len(permvars))
	for i, mvIdx := range permvars {
		permvarID[i] = mv.Vars()[mvIdx]
	}
	fixer := cip.NewOrbitalFixer(cip.DefaultConfig(), sg.Storage(), permvarID, nil)
	require.NoError(t, fixer.Subscribe(h))

	ctx := context.Background()
	h.bounds[x1] = testBounds{LB: 1, UB: 1}
	h.fireLBToOne(x1)
	h.bounds[x2] = testBounds{LB: 0, UB: 0}
	h.fireUBToZero(x2)

	result, err := fixer.Propagate(ctx, h, cip.RootNode)
	require.NoError(t, err)
	assert.Equal(t, cip.Infeasible, result.Outcome)
}

// A component claimed by an exclusive symmetry-handling method (here
// simulated directly, since orbitope/subgroup detection isn't exercised
// by this host) must never have orbital fixing act on it, even when
// bg0/bg1 would otherwise cover its orbit.
func TestOrbitalFixerSkipsBlockedComponent(t *testing.T) {
	h, x1, x2 := buildSwapSymmetricHost()
	mv, err := cip.Build(h, cip.DefaultConfig())
	require.NoError(t, err)

	sg := cip.NewSymGroup(cip.NewBruteForceBackend(), cip.DefaultConfig())
	require.NoError(t, sg.Build(mv))

	permvars := sg.PermVars()
	permvarID := make([]cip.VarId, len(permvars))
	for i, mvIdx := range permvars {
		permvarID[i] = mv.Vars()[mvIdx]
	}

	comps := cip.BuildComponents([]cip.Perm{sg.Storage().Perm(0)}, sg.Storage().NumVars())
	comps.Block(comps.ComponentOf(0))

	fixer := cip.NewOrbitalFixer(cip.DefaultConfig(), sg.Storage(), permvarID, comps)
	require.NoError(t, fixer.Subscribe(h))

	h.bounds[x1] = testBounds{LB: 0, UB: 0}
	h.fireUBToZero(x1)

	ctx := context.Background()
	result, err := fixer.Propagate(ctx, h, cip.RootNode)
	require.NoError(t, err)
	assert.Equal(t, cip.NoChange, result.Outcome)
	assert.Equal(t, cip.Real(1), h.bounds[x2].UB)
}

// TestOrbitalFixerAbortsOnUnknownBranchedVariable reproduces spec.md
// §4.7 step 1's abort rule: if a variable on the branching path is no
// longer known to the perm-var map (e.g. a stale mapping after symmetry
// was recomputed over a narrower set of variables), Propagate must
// return NoChange for the whole node rather than act on the partial
// path it can still resolve.
func TestOrbitalFixerAbortsOnUnknownBranchedVariable(t *testing.T) {
	h := newTestHost()
	x1 := h.addBinary()
	x2 := h.addBinary()
	x3 := h.addBinary()
	h.addLinear([]cip.VarId{x1, x2, x3}, []cip.Real{1, 1, 1}, -cip.Infinity, 2)

	mv, err := cip.Build(h, cip.DefaultConfig())
	require.NoError(t, err)
	sg := cip.NewSymGroup(cip.NewBruteForceBackend(), cip.DefaultConfig())
	require.NoError(t, sg.Build(mv))
	require.NotZero(t, sg.Storage().NumPerms())

	// permvarID deliberately omits x3, simulating a perm-var map that no
	// longer covers every variable the Host can branch on.
	permvars := sg.PermVars()
	permvarID := make([]cip.VarId, len(permvars))
	for i, mvIdx := range permvars {
		permvarID[i] = mv.Vars()[mvIdx]
	}
	for i, v := range permvarID {
		if v == x3 {
			permvarID[i] = cip.VarId(999999)
		}
	}

	fixer := cip.NewOrbitalFixer(cip.DefaultConfig(), sg.Storage(), permvarID, nil)
	require.NoError(t, fixer.Subscribe(h))

	// x1 fixed to zero globally would otherwise fix its orbit partners;
	// branching x3 to one (unknown to the map) must abort the whole call.
	h.bounds[x1] = testBounds{LB: 0, UB: 0}
	h.fireUBToZero(x1)
	node := h.branchToOne(x3)
	h.current = node

	ctx := context.Background()
	result, err := fixer.Propagate(ctx, h, node)
	require.NoError(t, err)
	assert.Equal(t, cip.NoChange, result.Outcome)
}

func TestOrbitalFixerResetClearsBitsets(t *testing.T) {
	h, x1, x2 := buildSwapSymmetricHost()
	mv, err := cip.Build(h, cip.DefaultConfig())
	require.NoError(t, err)
	sg := cip.NewSymGroup(cip.NewBruteForceBackend(), cip.DefaultConfig())
	require.NoError(t, sg.Build(mv))

	permvars := sg.PermVars()
	permvarID := make([]cip.VarId, len(permvars))
	for i, mvIdx := range permvars {
		permvarID[i] = mv.Vars()[mvIdx]
	}
	fixer := cip.NewOrbitalFixer(cip.DefaultConfig(), sg.Storage(), permvarID, nil)
	require.NoError(t, fixer.Subscribe(h))

	h.bounds[x1] = testBounds{LB: 0, UB: 0}
	h.fireUBToZero(x1)
	fixer.Reset()

	h.bounds[x2] = testBounds{LB: 0, UB: 1} // restore x2's bound as if a fresh run
	ctx := context.Background()
	result, err := fixer.Propagate(ctx, h, cip.RootNode)
	require.NoError(t, err)
	assert.Equal(t, cip.NoChange, result.Outcome)
}
