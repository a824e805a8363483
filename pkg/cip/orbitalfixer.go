package cip

import (
	"context"

	"github.com/bits-and-blooms/bitset"
)

// OrbitalFixer maintains the two global-fixing bitsets bg0/bg1 (binary
// variables whose upper bound has gone to zero, or lower bound to one,
// at any point during the search so far) and applies spec.md §4.7's
// per-node orbital fixing algorithm against them. It covers binary
// variables only.
type OrbitalFixer struct {
	cfg     *Config
	storage *PermStorage
	permvar []VarId // permutation-variable index -> Host VarId
	comps   *Components

	bg0 *bitset.BitSet // globally fixed to zero at some point
	bg1 *bitset.BitSet // globally fixed to one at some point

	lbTokens map[VarId]int
	ubTokens map[VarId]int

	permIdxOf map[VarId]int
}

// NewOrbitalFixer binds an OrbitalFixer to a permutation group over the
// given permutation-variable -> Host VarId mapping. comps may be nil if
// no component was claimed by an exclusive symmetry-handling method
// (e.g. the symmetry pipeline ran with orbitope/subgroup detection
// disabled); when non-nil, components comps.Blocked reports true for
// are skipped entirely, per spec.md §4.4/§4.7.
func NewOrbitalFixer(cfg *Config, storage *PermStorage, permvar []VarId, comps *Components) *OrbitalFixer {
	n := storage.NumVars()
	permIdxOf := make(map[VarId]int, len(permvar))
	for i, v := range permvar {
		permIdxOf[v] = i
	}
	return &OrbitalFixer{
		cfg:       cfg,
		storage:   storage,
		permvar:   permvar,
		comps:     comps,
		permIdxOf: permIdxOf,
		bg0:       bitset.New(uint(n)),
		bg1:       bitset.New(uint(n)),
		lbTokens:  make(map[VarId]int),
		ubTokens:  make(map[VarId]int),
	}
}

// Subscribe registers this fixer's event handlers with host, per
// spec.md §4.7's event-driven bitset maintenance.
func (of *OrbitalFixer) Subscribe(host Host) error {
	for permIdx, v := range of.permvar {
		pi := permIdx
		tok, err := host.Subscribe(v, EventUBToZero, func(VarId) { of.onUBToZero(pi) })
		if err != nil {
			return err
		}
		of.ubTokens[v] = tok
		tok, err = host.Subscribe(v, EventLBToOne, func(VarId) { of.onLBToOne(pi) })
		if err != nil {
			return err
		}
		of.lbTokens[v] = tok
	}
	return nil
}

// Unsubscribe tears down every event handler this fixer registered, in
// reverse order of registration.
func (of *OrbitalFixer) Unsubscribe(host Host) error {
	for i := len(of.permvar) - 1; i >= 0; i-- {
		v := of.permvar[i]
		if tok, ok := of.lbTokens[v]; ok {
			if err := host.Unsubscribe(tok); err != nil {
				return err
			}
		}
		if tok, ok := of.ubTokens[v]; ok {
			if err := host.Unsubscribe(tok); err != nil {
				return err
			}
		}
	}
	of.ubTokens = make(map[VarId]int)
	of.lbTokens = make(map[VarId]int)
	return nil
}

func (of *OrbitalFixer) onUBToZero(permIdx int) { of.bg0.Set(uint(permIdx)) }
func (of *OrbitalFixer) onLBToOne(permIdx int)  { of.bg1.Set(uint(permIdx)) }

// Reset clears both global bitsets, for spec.md §4.7's restart policy
// when RecomputeOnRestart is set.
func (of *OrbitalFixer) Reset() {
	n := of.bg0.Len()
	of.bg0 = bitset.New(n)
	of.bg1 = bitset.New(n)
}

// Propagate implements spec.md §4.7's four-step node algorithm:
//  1. collect the root-to-node branching-to-one path into a local
//     extension of bg1 (bg0 has no such path extension: the Host
//     contract exposes only BranchedToOne, and a variable branched to
//     zero on the path to this node is observed, for fixing purposes,
//     once it is actually tightened and bg0 picks it up globally);
//  2. mark every permutation inactive that moves a variable on that
//     branching path, so a sibling's branch choice never leaks into
//     this node's fixing;
//  3. compute orbits of binary variables over the surviving active
//     permutations, restricted to unblocked components;
//  4. tighten every variable in a non-trivial orbit that is covered by
//     bg0 or bg1, and report Infeasible if an orbit is covered by both.
func (of *OrbitalFixer) Propagate(ctx context.Context, host Host, node NodeId) (PropagateResult, error) {
	if of.storage == nil || of.storage.NumPerms() == 0 {
		return PropagateResult{Outcome: NoChange}, nil
	}

	fixedPath1, ok := of.branchingPath(host, node)
	if !ok {
		return PropagateResult{Outcome: NoChange}, nil
	}

	local1 := of.bg1.Clone()
	blocked := make([]bool, of.storage.NumVars())
	for _, v := range fixedPath1 {
		local1.Set(uint(v))
		blocked[v] = true
	}

	active := of.activePermutations(blocked)

	result := PropagateResult{Outcome: NoChange}
	seen := make([]bool, of.storage.NumVars())
	for permIdx := range of.permvar {
		if seen[permIdx] {
			continue
		}
		if host.VarAttrs(of.permvar[permIdx]).Kind != VarBinary {
			continue
		}
		if of.bg0.Test(uint(permIdx)) || local1.Test(uint(permIdx)) {
			continue // already covered; nothing new to learn starting here
		}
		if of.comps != nil && of.comps.Blocked(of.comps.ComponentOf(permIdx)) {
			continue
		}

		orbit := of.orbitUnder(permIdx, active)
		for _, w := range orbit {
			seen[w] = true
		}
		if len(orbit) < 2 {
			continue // spec.md §8: single-variable orbits are never acted upon
		}

		coveredBy0 := false
		coveredBy1 := false
		for _, w := range orbit {
			if of.bg0.Test(uint(w)) {
				coveredBy0 = true
			}
			if local1.Test(uint(w)) {
				coveredBy1 = true
			}
		}
		if !coveredBy0 && !coveredBy1 {
			continue
		}
		if coveredBy0 && coveredBy1 {
			return PropagateResult{Outcome: Infeasible}, nil
		}

		for _, w := range orbit {
			v := of.permvar[w]
			if coveredBy0 {
				tr, err := host.TightenUB(ctx, v, 0)
				if err != nil {
					return result, err
				}
				if tr.Infeasible {
					return PropagateResult{Outcome: Infeasible}, nil
				}
				if tr.ActuallyTightened {
					result.NFixed0++
					result.Outcome = Tightened
				}
			} else {
				tr, err := host.TightenLB(ctx, v, 1)
				if err != nil {
					return result, err
				}
				if tr.Infeasible {
					return PropagateResult{Outcome: Infeasible}, nil
				}
				if tr.ActuallyTightened {
					result.NFixed1++
					result.Outcome = Tightened
				}
			}
		}
	}
	return result, nil
}

// activePermutations implements spec.md §4.7 step 2: a permutation is
// marked inactive (excluded from orbit computation at this node) if it
// moves any variable on the current root-to-node branching path. A
// branch decision is this node's own, not a symmetric property of the
// problem, so no permutation may be used to propagate its consequences
// onto an orbit partner.
func (of *OrbitalFixer) activePermutations(blocked []bool) []bool {
	n := of.storage.NumPerms()
	active := make([]bool, n)
	for p := 0; p < n; p++ {
		perm := of.storage.Perm(p)
		active[p] = true
		for v, w := range perm.Image {
			if v == w {
				continue
			}
			if blocked[v] || blocked[w] {
				active[p] = false
				break
			}
		}
	}
	return active
}

// branchingPath reads the root-to-node set of binary variables already
// branched to one, per spec.md §4.7 step 1. The Host tracks only
// branch-to-one decisions (BranchedToOne); branch-to-zero decisions on
// binary variables are equivalent, for fixing purposes, to the variable
// never entering any permutation's support once bg0 covers it, so this
// fixer does not need a separate branched-to-zero feed from the Host.
//
// ok is false if any variable on the path is no longer known to the
// perm-var map (a stale or compressed mapping): per spec.md §4.7 step 1
// this must abort the whole Propagate call rather than propagate from a
// partial path, since the missing variable's orbit membership is
// unknown and silently dropping it could fix a sibling's consequences
// onto this node.
func (of *OrbitalFixer) branchingPath(host Host, node NodeId) (fixed1 []int, ok bool) {
	for _, v := range host.BranchedToOne(node) {
		idx, known := of.permIdxOf[v]
		if !known {
			return nil, false
		}
		fixed1 = append(fixed1, idx)
	}
	return fixed1, true
}

// orbitUnder computes the orbit of permIdx under the subgroup generated
// by the permutations marked active, per spec.md §4.7 step 3.
func (of *OrbitalFixer) orbitUnder(permIdx int, active []bool) []int {
	visited := make(map[int]bool)
	queue := []int{permIdx}
	visited[permIdx] = true
	for len(queue) > 0 {
		cur := queue[0]
		queue = queue[1:]
		for p := 0; p < of.storage.NumPerms(); p++ {
			if !active[p] {
				continue
			}
			next := of.storage.Perm(p).Image[cur]
			if !visited[next] {
				visited[next] = true
				queue = append(queue, next)
			}
		}
	}
	out := make([]int, 0, len(visited))
	for v := range visited {
		out = append(out, v)
	}
	return out
}
