// Command branchdemo wires a fake host against the dwbranch package and
// runs one strong-branching selection, one generic-branching separation,
// and one reliability-probing selection end to end, demonstrating that
// the branching core is usable standalone (it never dials out to a real
// LP solver).
package main

import (
	"context"
	"fmt"

	"github.com/RoaringBitmap/roaring/v2"
	"go.uber.org/zap"

	"github.com/gitrdm/dwbranch/internal/fakehost"
	"github.com/gitrdm/dwbranch/pkg/dwbranch"
)

func main() {
	fmt.Println("=== dwbranch demo ===")
	fmt.Println()

	strongBranchingDemo()
	genericBranchingDemo()
	reliabilityProbingDemo()
}

// strongBranchingDemo runs a two-candidate strong-branching selection:
// x with LP value 0.6 and probed gains (down=1.0, up=0.3), y with LP
// value 0.2 and gains (0.2, 0.8). The product rule picks x, since
// 1.0*0.3 = 0.30 beats 0.2*0.8 = 0.16.
func strongBranchingDemo() {
	fmt.Println("1. Strong branching (single-variable):")

	h := fakehost.New()
	h.AddOriginalVar(1, fakehost.OriginalVar{Type: dwbranch.VarInteger, LbLocal: 0, UbLocal: 1, LbGlobal: 0, UbGlobal: 1, Block: dwbranch.DirectBlock, SolValue: 0.6})
	h.AddOriginalVar(2, fakehost.OriginalVar{Type: dwbranch.VarInteger, LbLocal: 0, UbLocal: 1, LbGlobal: 0, UbGlobal: 1, Block: dwbranch.DirectBlock, SolValue: 0.2})

	gains := map[dwbranch.OriginalVariableID][2]float64{
		1: {1.0, 0.3},
		2: {0.2, 0.8},
	}
	solVal := map[dwbranch.OriginalVariableID]float64{1: 0.6, 2: 0.2}
	h.Probe = func(ctx context.Context, withPricing bool, iterLimit int, lb, ub map[dwbranch.OriginalVariableID][2]float64) dwbranch.ProbeResult {
		for v, g := range gains {
			if ub[v][1] == 0 { // ub was probed down to 0 => down-probe of v
				return dwbranch.ProbeResult{Status: dwbranch.ProbeSolved, ObjectiveValid: true, Objective: solVal[v] - g[0]}
			}
			if lb[v][0] >= 1 { // lb was probed up to 1 => up-probe of v
				return dwbranch.ProbeResult{Status: dwbranch.ProbeSolved, ObjectiveValid: true, Objective: solVal[v] + g[1]}
			}
		}
		return dwbranch.ProbeResult{Status: dwbranch.ProbeSolved, ObjectiveValid: true}
	}

	cands := []dwbranch.CandidateInfo{
		{Var: 1, LPValue: 0.6, FractionalPart: 0.6},
		{Var: 2, LPValue: 0.2, FractionalPart: 0.2},
	}

	scoring := dwbranch.NewScoringState()
	scorer := dwbranch.NewCandidateScorer(1e-6)
	log := zap.NewNop()
	params := dwbranch.DefaultStrongBranchingParams()
	params.MaxPhaseOutcandsFrac = 1 // keep both candidates through phase 0 and phase 1
	engine := dwbranch.NewStrongBranchingEngine(h, scoring, scorer, 2, log, dwbranch.WithStrongBranchingParams(params))
	defer engine.Close()

	v, upInf, downInf, result, err := engine.SelectOriginal(context.Background(), cands, 0.5)
	fmt.Printf("   selected var=%d upInf=%v downInf=%v result=%s err=%v\n", v, upInf, downInf, result, err)
	fmt.Println()
}

// genericBranchingDemo separates a 2-identical-block master whose block
// has three fractional columns, builds the child decisions for the
// chosen sequence, and shows dominance pruning rejecting a duplicate
// child.
func genericBranchingDemo() {
	fmt.Println("2. Generic branching (separation, child construction, dominance pruning):")

	h := fakehost.New()
	h.AddOriginalVar(10, fakehost.OriginalVar{Type: dwbranch.VarInteger, Block: 0})
	h.AddMasterVar(100, fakehost.MasterVar{Block: 0, LPValue: 0.5, Coefs: map[dwbranch.OriginalVariableID]float64{10: 1}})
	h.AddMasterVar(101, fakehost.MasterVar{Block: 0, LPValue: 0.5, Coefs: map[dwbranch.OriginalVariableID]float64{10: 0}})
	h.AddMasterVar(102, fakehost.MasterVar{Block: 0, LPValue: 0.5, Coefs: map[dwbranch.OriginalVariableID]float64{10: 0}})
	h.SetIdenticalBlocks(0, 2)

	engine := dwbranch.NewGenericBranchingEngine(h, zap.NewNop())
	indexSet := roaring.New()
	indexSet.Add(10)

	seq, ok := engine.FindBranchingSequence(0, indexSet, nil)
	fmt.Printf("   separating sequence found=%v seq=%v\n", ok, seq)
	if !ok {
		return
	}

	mu := func(s dwbranch.ComponentBoundSequence) float64 {
		total := 0.0
		for _, m := range []dwbranch.MasterVariableID{100, 101, 102} {
			coefOf := func(v dwbranch.OriginalVariableID) float64 {
				c, _ := h.MasterVarCoeff(m, v)
				return c
			}
			if s.SatisfiedBy(coefOf) {
				total += h.MasterVarLPValue(m)
			}
		}
		return total
	}
	children := dwbranch.CreateChildNodesGeneric(2, 0, seq,
		func(p int) float64 {
			flipped := append(dwbranch.ComponentBoundSequence(nil), seq[:p+1]...)
			flipped[p].Sense = flipped[p].Sense.Flip()
			return mu(flipped)
		},
		func() float64 { return mu(seq) },
	)
	for i, c := range children {
		fmt.Printf("   child %d: block=%d lhs=%.0f seq=%v\n", i, c.Block, c.LHS, c.Sequence)
	}

	pruned, err := dwbranch.PruneChildNodeByDominanceGeneric(children[0], []dwbranch.GenericDecision{children[0]})
	fmt.Printf("   re-proposing child 0 as its own ancestor: pruned=%v err=%v\n", pruned, err)
	fmt.Println()
}

// reliabilityProbingDemo runs one reliability-probing selection over a
// single unreliable candidate with a feasible two-sided probe.
func reliabilityProbingDemo() {
	fmt.Println("3. Reliability probing:")

	h := fakehost.New()
	h.AddOriginalVar(1, fakehost.OriginalVar{Type: dwbranch.VarInteger, LbLocal: 0, UbLocal: 5, LbGlobal: 0, UbGlobal: 5, Block: dwbranch.DirectBlock, SolValue: 2.5})
	h.Probe = func(ctx context.Context, withPricing bool, iterLimit int, lb, ub map[dwbranch.OriginalVariableID][2]float64) dwbranch.ProbeResult {
		return dwbranch.ProbeResult{Status: dwbranch.ProbeSolved, ObjectiveValid: true, Objective: 1.0}
	}

	cands := []dwbranch.CandidateInfo{{Var: 1, LPValue: 2.5, FractionalPart: 0.5}}

	scoring := dwbranch.NewScoringState()
	scorer := dwbranch.NewCandidateScorer(1e-6)
	ledger := dwbranch.NewBoundChangeLedger([]dwbranch.OriginalVariableID{1})
	engine := dwbranch.NewReliabilityProbingEngine(h, scoring, scorer, ledger, zap.NewNop())

	v, downInf, upInf, result, err := engine.Select(context.Background(), cands, 3, 1000, 0.5)
	fmt.Printf("   selected var=%d downInf=%v upInf=%v result=%s err=%v\n", v, downInf, upInf, result, err)
}
