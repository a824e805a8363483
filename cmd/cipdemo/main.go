// Command cipdemo runs the six end-to-end scenarios from spec.md §8
// against an in-memory Host, printing a short report for each. It plays
// the same role the teacher's cmd/example did for miniKanren: a
// runnable tour of the package's behaviour, not a production solver
// driver.
package main

import (
	"context"
	"fmt"

	"github.com/scipopt/cip-core/pkg/cip"
)

func main() {
	fmt.Println("=== cip-core scenario demo ===")
	fmt.Println()

	scenarioS1BasicOrbitalFixing()
	scenarioS2SparsifierCancellation()
	scenarioS3OrbitopeDetection()
	scenarioS4InfeasibilityViaOrbitalFixing()
	scenarioS5BoundDisjunctionRejection()
	scenarioS6RestartRecomputation()
}

// scenarioS1BasicOrbitalFixing reproduces spec.md §8 S1: x1+x2 binary,
// x1+x2<=1. Branching x1=1 should leave x2 untouched (it is in the same
// orbit as the branched variable); branching x1=0 should globally fix
// x2=0.
func scenarioS1BasicOrbitalFixing() {
	fmt.Println("S1: basic orbital fixing")
	host := newFakeHost()
	x1 := host.addBinary("x1")
	x2 := host.addBinary("x2")
	host.addLinear([]cip.VarId{x1, x2}, []cip.Real{1, 1}, -cip.Infinity, 1)

	orch := cip.NewOrchestrator(cip.NewBruteForceBackend(), cip.DefaultConfig())
	ctx := context.Background()
	if err := orch.PresolveRound(ctx, host); err != nil {
		fmt.Println("  presolve error:", err)
		return
	}
	fmt.Printf("  components=%d generators=%d\n", orch.Components().NumComponents(), orch.SymGroup().Storage().NumPerms())

	child1 := host.branch(cip.RootNode, x1, true)
	host.current = child1
	r, err := orch.PropagateNode(ctx, host)
	fmt.Printf("  branch x1=1: outcome=%s fixed0=%d fixed1=%d err=%v\n", r.Outcome, r.NFixed0, r.NFixed1, err)

	host.current = cip.RootNode
	child0 := host.branch(cip.RootNode, x1, false)
	host.current = child0
	// Branching x1 to 0 is realised, as for any bound change, by actually
	// tightening its upper bound; this is what lets bg0 pick it up.
	if _, err := host.TightenUB(ctx, x1, 0); err != nil {
		fmt.Println("  tighten error:", err)
		return
	}
	r, err = orch.PropagateNode(ctx, host)
	fmt.Printf("  branch x1=0: outcome=%s fixed0=%d fixed1=%d err=%v (expect x2 fixed to 0)\n", r.Outcome, r.NFixed0, r.NFixed1, err)
	fmt.Println()
}

// scenarioS2SparsifierCancellation reproduces spec.md §8 S2: an
// equation donor row cancels a shared pair of variables out of a
// second row, introducing one new non-zero.
func scenarioS2SparsifierCancellation() {
	fmt.Println("S2: sparsifier cancellation")
	host := newFakeHost()
	x := host.addContinuous("x")
	y := host.addContinuous("y")
	z := host.addContinuous("z")
	w := host.addContinuous("w")
	host.addLinear([]cip.VarId{x, y, z}, []cip.Real{2, 3, 1}, 5, 5)
	host.addLinear([]cip.VarId{x, y, w}, []cip.Real{4, 6, 1}, -cip.Infinity, 10)

	mv, err := cip.Build(host, cip.DefaultConfig())
	if err != nil {
		fmt.Println("  build error:", err)
		return
	}
	sp := cip.NewSparsifier(cip.DefaultConfig())
	stats, changed, err := sp.Run(mv)
	fmt.Printf("  canceled=%d fillIn=%d rowsChanged=%d err=%v\n", stats.NCanceled, stats.NFillIn, len(changed), err)
	fmt.Println()
}

// scenarioS3OrbitopeDetection reproduces spec.md §8 S3: a symmetric
// group of column permutations over a 3-row binary matrix, expected to
// be detected as one (3,4) orbitope.
func scenarioS3OrbitopeDetection() {
	fmt.Println("S3: orbitope detection")
	host := newFakeHost()
	const rows, cols = 3, 4
	vars := make([][]cip.VarId, rows)
	for r := 0; r < rows; r++ {
		vars[r] = make([]cip.VarId, cols)
		for c := 0; c < cols; c++ {
			vars[r][c] = host.addBinary(fmt.Sprintf("v%d_%d", r, c))
		}
	}
	// Row-packing constraint ties each row together so the columns carry
	// genuine (not coincidental) symmetry under any column permutation.
	for r := 0; r < rows; r++ {
		terms := vars[r]
		coefs := make([]cip.Real, cols)
		for i := range coefs {
			coefs[i] = 1
		}
		host.addLinear(terms, coefs, -cip.Infinity, 1)
	}

	orch := cip.NewOrchestrator(cip.NewBruteForceBackend(), cip.DefaultConfig())
	if err := orch.PresolveRound(context.Background(), host); err != nil {
		fmt.Println("  presolve error:", err)
		return
	}
	fmt.Printf("  components=%d orbitopesAdded=%d\n", orch.Components().NumComponents(), len(host.orbitopes))
	fmt.Println()
}

// scenarioS4InfeasibilityViaOrbitalFixing reproduces spec.md §8 S4:
// three symmetric variables where the search has globally fixed one
// to 1 and another to 0; their shared orbit makes the node infeasible.
func scenarioS4InfeasibilityViaOrbitalFixing() {
	fmt.Println("S4: infeasibility via orbital fixing")
	host := newFakeHost()
	x1 := host.addBinary("x1")
	x2 := host.addBinary("x2")
	x3 := host.addBinary("x3")
	host.addLinear([]cip.VarId{x1, x2, x3}, []cip.Real{1, 1, 1}, -cip.Infinity, 2)

	orch := cip.NewOrchestrator(cip.NewBruteForceBackend(), cip.DefaultConfig())
	ctx := context.Background()
	if err := orch.PresolveRound(ctx, host); err != nil {
		fmt.Println("  presolve error:", err)
		return
	}

	// Simulate the search having globally fixed x1=1 and x2=0 elsewhere.
	host.bounds[x1] = bounds{LB: 1, UB: 1}
	host.fireLBToOne(x1)
	host.bounds[x2] = bounds{LB: 0, UB: 0}
	host.fireUBToZero(x2)

	host.current = cip.RootNode
	r, err := orch.PropagateNode(ctx, host)
	fmt.Printf("  outcome=%s err=%v (expect infeasible)\n", r.Outcome, err)
	fmt.Println()
}

// scenarioS5BoundDisjunctionRejection reproduces spec.md §8 S5: a
// bounddisjunction with a repeated variable across three literals,
// which MatrixView cannot normalise into its two canonical shapes.
func scenarioS5BoundDisjunctionRejection() {
	fmt.Println("S5: bounddisjunction rejection")
	host := newFakeHost()
	x := host.addContinuous("x")
	y := host.addContinuous("y")
	host.addBoundDisjunction([]cip.BoundDisjunctionLiteral{
		{Var: x, IsLB: true, Bound: 1},
		{Var: y, IsLB: false, Bound: 0},
		{Var: x, IsLB: false, Bound: 0},
	})

	_, err := cip.Build(host, cip.DefaultConfig())
	fmt.Printf("  build err=%v (expect ErrIncomplete)\n", err)
	fmt.Println()
}

// scenarioS6RestartRecomputation reproduces spec.md §8 S6: after a
// restart, a prior OrbitalFixer's bitsets must be cleared so the next
// symmetry demand starts clean.
func scenarioS6RestartRecomputation() {
	fmt.Println("S6: restart recomputation")
	host := newFakeHost()
	x1 := host.addBinary("x1")
	x2 := host.addBinary("x2")
	host.addLinear([]cip.VarId{x1, x2}, []cip.Real{1, 1}, -cip.Infinity, 1)

	orch := cip.NewOrchestrator(cip.NewBruteForceBackend(), cip.DefaultConfig())
	ctx := context.Background()
	_ = orch.PresolveRound(ctx, host)
	fmt.Printf("  before restart: symmetryComputed=%v\n", orch.SymmetryComputed())

	host.isNewRun = true
	_ = orch.PresolveRound(ctx, host)
	fmt.Printf("  after restart: symmetryComputed=%v stats reset, generators=%d\n", orch.SymmetryComputed(), orch.Stats().NGenerators)
	fmt.Println()
}
