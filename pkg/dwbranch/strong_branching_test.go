package dwbranch_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/gitrdm/dwbranch/internal/fakehost"
	"github.com/gitrdm/dwbranch/pkg/dwbranch"
)

// Two candidates: x (LP 0.6, gains 1.0/0.3) beats y (LP 0.2, gains
// 0.2/0.8) under the product rule, since 1.0*0.3=0.30 > 0.2*0.8=0.16.
func TestStrongBranchingEngineSelectOriginalPicksHigherProductScore(t *testing.T) {
	h := fakehost.New()
	h.AddOriginalVar(1, fakehost.OriginalVar{Type: dwbranch.VarInteger, LbLocal: 0, UbLocal: 1, LbGlobal: 0, UbGlobal: 1, Block: dwbranch.DirectBlock, SolValue: 0.6})
	h.AddOriginalVar(2, fakehost.OriginalVar{Type: dwbranch.VarInteger, LbLocal: 0, UbLocal: 1, LbGlobal: 0, UbGlobal: 1, Block: dwbranch.DirectBlock, SolValue: 0.2})

	gains := map[dwbranch.OriginalVariableID][2]float64{1: {1.0, 0.3}, 2: {0.2, 0.8}} // (downGain, upGain)
	solVal := map[dwbranch.OriginalVariableID]float64{1: 0.6, 2: 0.2}
	h.Probe = func(ctx context.Context, withPricing bool, iterLimit int, lb, ub map[dwbranch.OriginalVariableID][2]float64) dwbranch.ProbeResult {
		for v, g := range gains {
			if ub[v][1] == 0 { // this variable's ub was probed down to 0
				return dwbranch.ProbeResult{Status: dwbranch.ProbeSolved, ObjectiveValid: true, Objective: solVal[v] - g[0]}
			}
			if lb[v][0] >= 1 { // this variable's lb was probed up to 1
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
	engine := dwbranch.NewStrongBranchingEngine(h, scoring, scorer, 2, zap.NewNop(),
		dwbranch.WithStrongBranchingParams(dwbranch.StrongBranchingParams{
			Mincolgencands:       1,
			MaxPhaseOutcandsFrac: 1,
			MinPhase0Outcands:    10,
			MaxPhase0Outcands:    10,
			MinPhase1Outcands:    10,
			MaxPhase1Outcands:    10,
			Stronglite:           true,
			UsePseudocosts:       true,
		}))
	defer engine.Close()

	v, _, _, result, err := engine.SelectOriginal(context.Background(), cands, 0.5)
	require.NoError(t, err)
	assert.Equal(t, dwbranch.ResultBranched, result)
	assert.Equal(t, dwbranch.OriginalVariableID(1), v)
}

func TestStrongBranchingEngineNoCandidateWhenAllContinuous(t *testing.T) {
	h := fakehost.New()
	h.AddOriginalVar(1, fakehost.OriginalVar{Type: dwbranch.VarContinuous, SolValue: 0.5})

	scoring := dwbranch.NewScoringState()
	scorer := dwbranch.NewCandidateScorer(1e-6)
	engine := dwbranch.NewStrongBranchingEngine(h, scoring, scorer, 1, zap.NewNop())
	defer engine.Close()

	_, _, _, result, err := engine.SelectOriginal(context.Background(), []dwbranch.CandidateInfo{{Var: 1, LPValue: 0.5, FractionalPart: 0.5}}, 0.5)
	require.Error(t, err)
	var noCand *dwbranch.NoCandidate
	assert.ErrorAs(t, err, &noCand)
	assert.Equal(t, dwbranch.ResultDidNotRun, result)
}

func TestStrongBranchingEngineCutoffWhenBothDirectionsInfeasible(t *testing.T) {
	h := fakehost.New()
	h.AddOriginalVar(1, fakehost.OriginalVar{Type: dwbranch.VarInteger, LbLocal: 0, UbLocal: 1, Block: dwbranch.DirectBlock, SolValue: 0.5})
	h.Probe = func(ctx context.Context, withPricing bool, iterLimit int, lb, ub map[dwbranch.OriginalVariableID][2]float64) dwbranch.ProbeResult {
		return dwbranch.ProbeResult{Status: dwbranch.ProbeCutoff}
	}

	scoring := dwbranch.NewScoringState()
	scorer := dwbranch.NewCandidateScorer(1e-6)
	engine := dwbranch.NewStrongBranchingEngine(h, scoring, scorer, 1, zap.NewNop(),
		dwbranch.WithStrongBranchingParams(dwbranch.StrongBranchingParams{
			Mincolgencands: 1, MaxPhaseOutcandsFrac: 1,
			MinPhase0Outcands: 10, MaxPhase0Outcands: 10,
			MinPhase1Outcands: 10, MaxPhase1Outcands: 10,
			Stronglite: true,
		}))
	defer engine.Close()

	_, _, _, result, err := engine.SelectOriginal(context.Background(), []dwbranch.CandidateInfo{{Var: 1, LPValue: 0.5, FractionalPart: 0.5}}, 0.5)
	require.NoError(t, err)
	assert.Equal(t, dwbranch.ResultCutoff, result)
}

func TestStrongBranchingEngineSelectRyanFosterPicksHigherPairScore(t *testing.T) {
	h := fakehost.New()
	scoring := dwbranch.NewScoringState()
	scorer := dwbranch.NewCandidateScorer(1e-6)
	engine := dwbranch.NewStrongBranchingEngine(h, scoring, scorer, 1, zap.NewNop())
	defer engine.Close()

	pairs := [][2]dwbranch.CandidateInfo{
		{{Var: 1, PseudocostScore: 0.9}, {Var: 2, PseudocostScore: 0.9}},
		{{Var: 3, PseudocostScore: 0.1}, {Var: 4, PseudocostScore: 0.1}},
	}
	blockOf := func(v1, v2 dwbranch.OriginalVariableID) dwbranch.BlockIndex { return 0 }

	v1, v2, block, _, _, result, err := engine.SelectRyanFoster(context.Background(), pairs, blockOf)
	require.NoError(t, err)
	assert.Equal(t, dwbranch.ResultBranched, result)
	assert.Equal(t, dwbranch.OriginalVariableID(1), v1)
	assert.Equal(t, dwbranch.OriginalVariableID(2), v2)
	assert.Equal(t, dwbranch.BlockIndex(0), block)
}

func TestStrongBranchingEngineSelectRyanFosterNoPairs(t *testing.T) {
	h := fakehost.New()
	scoring := dwbranch.NewScoringState()
	scorer := dwbranch.NewCandidateScorer(1e-6)
	engine := dwbranch.NewStrongBranchingEngine(h, scoring, scorer, 1, zap.NewNop())
	defer engine.Close()

	_, _, _, _, _, result, err := engine.SelectRyanFoster(context.Background(), nil, func(v1, v2 dwbranch.OriginalVariableID) dwbranch.BlockIndex { return 0 })
	require.Error(t, err)
	assert.Equal(t, dwbranch.ResultDidNotRun, result)
}

func TestStrongBranchingEngineObserveAncestorTraversal(t *testing.T) {
	h := fakehost.New()
	scoring := dwbranch.NewScoringState()
	scorer := dwbranch.NewCandidateScorer(1e-6)
	params := dwbranch.DefaultStrongBranchingParams()
	params.Reevalage = 2
	engine := dwbranch.NewStrongBranchingEngine(h, scoring, scorer, 1, zap.NewNop(),
		dwbranch.WithStrongBranchingParams(params))
	defer engine.Close()

	scoring.RecordScore(7, 0.9, 1)

	// two pure infeasibility-reduction ancestors stay within reevalage 2
	assert.True(t, engine.ObserveAncestorTraversal(true, 0))
	assert.True(t, engine.ObserveAncestorTraversal(true, 1))
	assert.True(t, scoring.ScoreRecent(7))

	// the third reduction exceeds the age and stored scores go stale
	assert.False(t, engine.ObserveAncestorTraversal(true, 2))
	assert.False(t, scoring.ScoreRecent(7))

	// a real branching split invalidates immediately
	scoring.RecordScore(7, 0.9, 2)
	assert.False(t, engine.ObserveAncestorTraversal(false, 0))
	assert.False(t, scoring.ScoreRecent(7))
}

func TestStrongBranchingEngineProbesLoneCandidateUnderDefaults(t *testing.T) {
	h := fakehost.New()
	h.AddOriginalVar(1, fakehost.OriginalVar{Type: dwbranch.VarInteger, LbLocal: 0, UbLocal: 1, LbGlobal: 0, UbGlobal: 1, Block: dwbranch.DirectBlock, SolValue: 0.5})

	lpProbes, pricingProbes := 0, 0
	h.Probe = func(ctx context.Context, withPricing bool, iterLimit int, lb, ub map[dwbranch.OriginalVariableID][2]float64) dwbranch.ProbeResult {
		if withPricing {
			pricingProbes++
		} else {
			lpProbes++
		}
		return dwbranch.ProbeResult{Status: dwbranch.ProbeSolved, ObjectiveValid: true, Objective: 0.2}
	}

	scoring := dwbranch.NewScoringState()
	scorer := dwbranch.NewCandidateScorer(1e-6)
	// stock parameters: Mincolgencands 4, Stronglite false
	engine := dwbranch.NewStrongBranchingEngine(h, scoring, scorer, 1, zap.NewNop())
	defer engine.Close()

	v, _, _, result, err := engine.SelectOriginal(context.Background(), []dwbranch.CandidateInfo{{Var: 1, LPValue: 0.5, FractionalPart: 0.5}}, 0.5)
	require.NoError(t, err)
	assert.Equal(t, dwbranch.ResultBranched, result)
	assert.Equal(t, dwbranch.OriginalVariableID(1), v)

	// phase 1 strong-branched the lone candidate in both directions;
	// phase 2 stayed suppressed below Mincolgencands
	assert.Equal(t, 2, lpProbes)
	assert.Equal(t, 0, pricingProbes)
}
