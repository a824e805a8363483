package main

import (
	"context"
	"fmt"

	"github.com/scipopt/cip-core/pkg/cip"
)

// bounds is a variable's current global bound pair.
type bounds struct{ LB, UB cip.Real }

// subscription is one registered event callback.
type subscription struct {
	v    cip.VarId
	kind cip.EventKind
	cb   func(cip.VarId)
	live bool
}

// consRow records one linear-like constraint's current normalised shape,
// so ReplaceRow / ConsAttrs can round-trip Sparsifier rewrites.
type consRow struct {
	handler cip.HandlerKind
	terms   cip.LinearTerms
	lhs, rhs cip.Real
	literals []cip.BoundDisjunctionLiteral
	active   bool
}

// fakeHost is a minimal in-memory Host implementation for cmd/cipdemo's
// scenarios and (by the same shape) for pkg/cip's own tests.
type fakeHost struct {
	vars     []cip.VarId
	varAttrs map[cip.VarId]cip.VarAttrs
	bounds   map[cip.VarId]bounds
	nextVar  cip.VarId

	cons     []cip.ConsId
	consAttr map[cip.ConsId]*consRow
	nextCons cip.ConsId

	subs     map[int]*subscription
	nextTok  int

	orbitopes  [][][]cip.VarId
	symresacks []cip.Perm

	parent      map[cip.NodeId]cip.NodeId
	hasParent   map[cip.NodeId]bool
	branchedTo1 map[cip.NodeId][]cip.VarId
	depth       map[cip.NodeId]int
	nextNode    cip.NodeId
	current     cip.NodeId

	stop        bool
	solvingTime float64
	isNewRun    bool
}

func newFakeHost() *fakeHost {
	return &fakeHost{
		varAttrs:    make(map[cip.VarId]cip.VarAttrs),
		bounds:      make(map[cip.VarId]bounds),
		consAttr:    make(map[cip.ConsId]*consRow),
		subs:        make(map[int]*subscription),
		parent:      make(map[cip.NodeId]cip.NodeId),
		hasParent:   make(map[cip.NodeId]bool),
		branchedTo1: make(map[cip.NodeId][]cip.VarId),
		depth:       make(map[cip.NodeId]int),
		nextNode:    cip.RootNode + 1,
		current:     cip.RootNode,
		isNewRun:    true,
	}
}

func (h *fakeHost) addVar(kind cip.VarKind) cip.VarId {
	v := h.nextVar
	h.nextVar++
	h.vars = append(h.vars, v)
	lb, ub := 0.0, 1.0
	if kind != cip.VarBinary {
		ub = cip.Infinity
	}
	h.bounds[v] = bounds{LB: lb, UB: ub}
	h.varAttrs[v] = cip.VarAttrs{Kind: kind, LB: lb, UB: ub, LLB: lb, LUB: ub}
	return v
}

func (h *fakeHost) addBinary(_ string) cip.VarId     { return h.addVar(cip.VarBinary) }
func (h *fakeHost) addContinuous(_ string) cip.VarId { return h.addVar(cip.VarContinuous) }

func (h *fakeHost) addLinear(vars []cip.VarId, coefs []cip.Real, lhs, rhs cip.Real) cip.ConsId {
	c := h.nextCons
	h.nextCons++
	h.cons = append(h.cons, c)
	h.consAttr[c] = &consRow{
		handler: cip.HandlerLinear,
		terms:   cip.LinearTerms{Vars: append([]cip.VarId(nil), vars...), Coefs: append([]cip.Real(nil), coefs...)},
		lhs:     lhs,
		rhs:     rhs,
		active:  true,
	}
	return c
}

func (h *fakeHost) addBoundDisjunction(lits []cip.BoundDisjunctionLiteral) cip.ConsId {
	c := h.nextCons
	h.nextCons++
	h.cons = append(h.cons, c)
	h.consAttr[c] = &consRow{handler: cip.HandlerBoundDisjunction, literals: lits, active: true}
	return c
}

// branch creates a child node of parent branching v to 1 or 0.
func (h *fakeHost) branch(parent cip.NodeId, v cip.VarId, toOne bool) cip.NodeId {
	n := h.nextNode
	h.nextNode++
	h.parent[n] = parent
	h.hasParent[n] = true
	h.depth[n] = h.depth[parent] + 1
	path := append([]cip.VarId(nil), h.branchedTo1[parent]...)
	if toOne {
		path = append(path, v)
	}
	h.branchedTo1[n] = path
	return n
}

func (h *fakeHost) fireUBToZero(v cip.VarId) { h.fireEvent(v, cip.EventUBToZero) }
func (h *fakeHost) fireLBToOne(v cip.VarId)  { h.fireEvent(v, cip.EventLBToOne) }

func (h *fakeHost) fireEvent(v cip.VarId, kind cip.EventKind) {
	for _, s := range h.subs {
		if s.live && s.v == v && s.kind == kind {
			s.cb(v)
		}
	}
}

// Host interface implementation.

func (h *fakeHost) Variables() []cip.VarId { return h.vars }

func (h *fakeHost) VarAttrs(v cip.VarId) cip.VarAttrs {
	a := h.varAttrs[v]
	b := h.bounds[v]
	a.LB, a.UB, a.LLB, a.LUB = b.LB, b.UB, b.LB, b.UB
	return a
}

func (h *fakeHost) Constraints() []cip.ConsId {
	var active []cip.ConsId
	for _, c := range h.cons {
		if h.consAttr[c].active {
			active = append(active, c)
		}
	}
	return active
}

func (h *fakeHost) ConsAttrs(c cip.ConsId) cip.ConsAttrs {
	r := h.consAttr[c]
	return cip.ConsAttrs{
		Handler:     r.handler,
		Active:      r.active,
		Transformed: true,
		Terms:       r.terms,
		LHS:         r.lhs,
		RHS:         r.rhs,
		Literals:    r.literals,
	}
}

func (h *fakeHost) Subscribe(v cip.VarId, kind cip.EventKind, cb func(cip.VarId)) (int, error) {
	tok := h.nextTok
	h.nextTok++
	h.subs[tok] = &subscription{v: v, kind: kind, cb: cb, live: true}
	return tok, nil
}

func (h *fakeHost) Unsubscribe(token int) error {
	if s, ok := h.subs[token]; ok {
		s.live = false
	}
	return nil
}

func (h *fakeHost) TightenUB(_ context.Context, v cip.VarId, newUB cip.Real) (cip.TighteningResult, error) {
	b := h.bounds[v]
	if newUB >= b.UB {
		return cip.TighteningResult{}, nil
	}
	if newUB < b.LB {
		return cip.TighteningResult{Infeasible: true}, nil
	}
	b.UB = newUB
	h.bounds[v] = b
	if newUB == 0 {
		h.fireUBToZero(v)
	}
	return cip.TighteningResult{ActuallyTightened: true}, nil
}

func (h *fakeHost) TightenLB(_ context.Context, v cip.VarId, newLB cip.Real) (cip.TighteningResult, error) {
	b := h.bounds[v]
	if newLB <= b.LB {
		return cip.TighteningResult{}, nil
	}
	if newLB > b.UB {
		return cip.TighteningResult{Infeasible: true}, nil
	}
	b.LB = newLB
	h.bounds[v] = b
	if newLB == 1 {
		h.fireLBToOne(v)
	}
	return cip.TighteningResult{ActuallyTightened: true}, nil
}

func (h *fakeHost) AddLinearConstraint(terms cip.LinearTerms, lhs, rhs cip.Real) (cip.ConsId, error) {
	return h.addLinear(terms.Vars, terms.Coefs, lhs, rhs), nil
}

func (h *fakeHost) AddOrbitopeConstraint(rows, cols int, vars [][]cip.VarId) (cip.ConsId, error) {
	if len(vars) != rows || (rows > 0 && len(vars[0]) != cols) {
		return 0, fmt.Errorf("fakehost: orbitope shape mismatch")
	}
	h.orbitopes = append(h.orbitopes, vars)
	c := h.nextCons
	h.nextCons++
	h.cons = append(h.cons, c)
	h.consAttr[c] = &consRow{handler: cip.HandlerLinear, active: true}
	return c, nil
}

func (h *fakeHost) AddSymresackConstraint(perm cip.Perm) (cip.ConsId, error) {
	h.symresacks = append(h.symresacks, perm)
	c := h.nextCons
	h.nextCons++
	h.cons = append(h.cons, c)
	h.consAttr[c] = &consRow{handler: cip.HandlerLinear, active: true}
	return c, nil
}

func (h *fakeHost) DeleteConstraint(c cip.ConsId) error {
	if r, ok := h.consAttr[c]; ok {
		r.active = false
	}
	return nil
}

func (h *fakeHost) ReplaceRow(c cip.ConsId, terms cip.LinearTerms, lhs, rhs cip.Real) error {
	r, ok := h.consAttr[c]
	if !ok {
		return fmt.Errorf("fakehost: unknown constraint %d", c)
	}
	r.terms, r.lhs, r.rhs = terms, lhs, rhs
	return nil
}

func (h *fakeHost) CurrentNode() cip.NodeId { return h.current }

func (h *fakeHost) Parent(n cip.NodeId) (cip.NodeId, bool) {
	p, ok := h.hasParent[n]
	if !ok || !p {
		return n, false
	}
	return h.parent[n], true
}

func (h *fakeHost) Depth(n cip.NodeId) int { return h.depth[n] }

func (h *fakeHost) BranchedToOne(n cip.NodeId) []cip.VarId { return h.branchedTo1[n] }

func (h *fakeHost) StopRequested() bool { return h.stop }

func (h *fakeHost) SolvingTime() float64 { return h.solvingTime }

func (h *fakeHost) IsNewRun() bool {
	wasNew := h.isNewRun
	h.isNewRun = false
	return wasNew
}
