package cip_test

import (
	"context"
	"fmt"

	"github.com/scipopt/cip-core/pkg/cip"
)

// testBounds is a variable's current global bound pair, mirroring the
// shape cmd/cipdemo's fakeHost uses for its own fixture.
type testBounds struct{ LB, UB cip.Real }

type testSub struct {
	v    cip.VarId
	kind cip.EventKind
	cb   func(cip.VarId)
	live bool
}

type testCons struct {
	handler  cip.HandlerKind
	terms    cip.LinearTerms
	lhs, rhs cip.Real
	literals []cip.BoundDisjunctionLiteral
	active   bool
}

// testHost is a minimal in-memory cip.Host for package-level tests: it
// implements the full Host contract directly rather than mocking it,
// the same way cmd/cipdemo's fakeHost plays the "Host" role for the
// scenario demo.
type testHost struct {
	vars     []cip.VarId
	varAttrs map[cip.VarId]cip.VarAttrs
	bounds   map[cip.VarId]testBounds
	nextVar  cip.VarId

	cons     []cip.ConsId
	consAttr map[cip.ConsId]*testCons
	nextCons cip.ConsId

	subs    map[int]*testSub
	nextTok int

	orbitopes  [][][]cip.VarId
	symresacks []cip.Perm

	branchedTo1 map[cip.NodeId][]cip.VarId
	current     cip.NodeId

	isNewRun bool
}

func newTestHost() *testHost {
	return &testHost{
		varAttrs:    make(map[cip.VarId]cip.VarAttrs),
		bounds:      make(map[cip.VarId]testBounds),
		consAttr:    make(map[cip.ConsId]*testCons),
		subs:        make(map[int]*testSub),
		branchedTo1: make(map[cip.NodeId][]cip.VarId),
		current:     cip.RootNode,
		isNewRun:    true,
	}
}

func (h *testHost) addVar(kind cip.VarKind) cip.VarId {
	v := h.nextVar
	h.nextVar++
	h.vars = append(h.vars, v)
	lb, ub := 0.0, 1.0
	if kind != cip.VarBinary {
		ub = cip.Infinity
	}
	h.bounds[v] = testBounds{LB: lb, UB: ub}
	h.varAttrs[v] = cip.VarAttrs{Kind: kind, LB: lb, UB: ub, LLB: lb, LUB: ub}
	return v
}

func (h *testHost) addBinary() cip.VarId     { return h.addVar(cip.VarBinary) }
func (h *testHost) addContinuous() cip.VarId { return h.addVar(cip.VarContinuous) }

func (h *testHost) addLinear(vars []cip.VarId, coefs []cip.Real, lhs, rhs cip.Real) cip.ConsId {
	c := h.nextCons
	h.nextCons++
	h.cons = append(h.cons, c)
	h.consAttr[c] = &testCons{
		handler: cip.HandlerLinear,
		terms:   cip.LinearTerms{Vars: append([]cip.VarId(nil), vars...), Coefs: append([]cip.Real(nil), coefs...)},
		lhs:     lhs,
		rhs:     rhs,
		active:  true,
	}
	return c
}

func (h *testHost) addBoundDisjunction(lits []cip.BoundDisjunctionLiteral) cip.ConsId {
	c := h.nextCons
	h.nextCons++
	h.cons = append(h.cons, c)
	h.consAttr[c] = &testCons{handler: cip.HandlerBoundDisjunction, literals: lits, active: true}
	return c
}

func (h *testHost) branchToOne(v cip.VarId) cip.NodeId {
	n := cip.NodeId(len(h.branchedTo1) + 1)
	path := append([]cip.VarId(nil), h.branchedTo1[h.current]...)
	path = append(path, v)
	h.branchedTo1[n] = path
	return n
}

func (h *testHost) fireUBToZero(v cip.VarId) { h.fireEvent(v, cip.EventUBToZero) }
func (h *testHost) fireLBToOne(v cip.VarId)  { h.fireEvent(v, cip.EventLBToOne) }

func (h *testHost) fireEvent(v cip.VarId, kind cip.EventKind) {
	for _, s := range h.subs {
		if s.live && s.v == v && s.kind == kind {
			s.cb(v)
		}
	}
}

func (h *testHost) setBound(v cip.VarId, b testBounds) { h.bounds[v] = b }

func (h *testHost) setObj(v cip.VarId, obj cip.Real) {
	a := h.varAttrs[v]
	a.Obj = obj
	h.varAttrs[v] = a
}

// Host interface.

func (h *testHost) Variables() []cip.VarId { return h.vars }

func (h *testHost) VarAttrs(v cip.VarId) cip.VarAttrs {
	a := h.varAttrs[v]
	b := h.bounds[v]
	a.LB, a.UB, a.LLB, a.LUB = b.LB, b.UB, b.LB, b.UB
	return a
}

func (h *testHost) Constraints() []cip.ConsId {
	var active []cip.ConsId
	for _, c := range h.cons {
		if h.consAttr[c].active {
			active = append(active, c)
		}
	}
	return active
}

func (h *testHost) ConsAttrs(c cip.ConsId) cip.ConsAttrs {
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

func (h *testHost) Subscribe(v cip.VarId, kind cip.EventKind, cb func(cip.VarId)) (int, error) {
	tok := h.nextTok
	h.nextTok++
	h.subs[tok] = &testSub{v: v, kind: kind, cb: cb, live: true}
	return tok, nil
}

func (h *testHost) Unsubscribe(token int) error {
	if s, ok := h.subs[token]; ok {
		s.live = false
	}
	return nil
}

func (h *testHost) TightenUB(_ context.Context, v cip.VarId, newUB cip.Real) (cip.TighteningResult, error) {
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

func (h *testHost) TightenLB(_ context.Context, v cip.VarId, newLB cip.Real) (cip.TighteningResult, error) {
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

func (h *testHost) AddLinearConstraint(terms cip.LinearTerms, lhs, rhs cip.Real) (cip.ConsId, error) {
	return h.addLinear(terms.Vars, terms.Coefs, lhs, rhs), nil
}

func (h *testHost) AddOrbitopeConstraint(rows, cols int, vars [][]cip.VarId) (cip.ConsId, error) {
	if len(vars) != rows || (rows > 0 && len(vars[0]) != cols) {
		return 0, fmt.Errorf("testhost: orbitope shape mismatch")
	}
	h.orbitopes = append(h.orbitopes, vars)
	c := h.nextCons
	h.nextCons++
	h.cons = append(h.cons, c)
	h.consAttr[c] = &testCons{handler: cip.HandlerLinear, active: true}
	return c, nil
}

func (h *testHost) AddSymresackConstraint(perm cip.Perm) (cip.ConsId, error) {
	h.symresacks = append(h.symresacks, perm)
	c := h.nextCons
	h.nextCons++
	h.cons = append(h.cons, c)
	h.consAttr[c] = &testCons{handler: cip.HandlerLinear, active: true}
	return c, nil
}

func (h *testHost) DeleteConstraint(c cip.ConsId) error {
	if r, ok := h.consAttr[c]; ok {
		r.active = false
	}
	return nil
}

func (h *testHost) ReplaceRow(c cip.ConsId, terms cip.LinearTerms, lhs, rhs cip.Real) error {
	r, ok := h.consAttr[c]
	if !ok {
		return fmt.Errorf("testhost: unknown constraint %d", c)
	}
	r.terms, r.lhs, r.rhs = terms, lhs, rhs
	return nil
}

func (h *testHost) CurrentNode() cip.NodeId { return h.current }

func (h *testHost) Parent(n cip.NodeId) (cip.NodeId, bool) {
	if n == cip.RootNode {
		return n, false
	}
	return cip.RootNode, true
}

func (h *testHost) Depth(n cip.NodeId) int {
	if n == cip.RootNode {
		return 0
	}
	return 1
}

func (h *testHost) BranchedToOne(n cip.NodeId) []cip.VarId { return h.branchedTo1[n] }

func (h *testHost) StopRequested() bool { return false }

func (h *testHost) SolvingTime() float64 { return 0 }

func (h *testHost) IsNewRun() bool {
	wasNew := h.isNewRun
	h.isNewRun = false
	return wasNew
}
