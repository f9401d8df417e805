package dwbranch

import (
	"context"
	"sort"

	"go.uber.org/zap"

	"github.com/gitrdm/dwbranch/internal/workerpool"
)

// StrongBranchingEngine selects a branching variable (or a variable pair
// in Ryan-Foster mode) by up to three phases of progressively more
// expensive evaluation: a cheap heuristic filter, strong branching on
// the master LP without pricing, and strong branching with pricing.
//
// Phase 0 computes pure scores over data already materialized by the
// host, so it is fanned out across internal/workerpool; phases 1 and 2
// open probing sessions and therefore run strictly sequentially.
type StrongBranchingEngine struct {
	host    Host
	scorer  *CandidateScorer
	scoring *ScoringState
	params  StrongBranchingParams
	limits  callLimits
	pool    *workerpool.Pool
	log     *zap.Logger
}

// NewStrongBranchingEngine constructs an engine against host, sharing
// scoring (owned by the caller and mutated only through this engine's
// own update paths) and a bounded scoring fan-out pool of poolSize
// workers (0 = NumCPU).
func NewStrongBranchingEngine(host Host, scoring *ScoringState, scorer *CandidateScorer, poolSize int, log *zap.Logger, opts ...Option) *StrongBranchingEngine {
	cfg := defaultEngineConfig()
	for _, o := range opts {
		o(&cfg)
	}
	return &StrongBranchingEngine{
		host:    host,
		scorer:  scorer,
		scoring: scoring,
		params:  cfg.strong,
		limits:  cfg.limits,
		pool:    workerpool.New(poolSize),
		log:     orNop(log),
	}
}

// Close releases the engine's scoring worker pool.
func (e *StrongBranchingEngine) Close() { e.pool.Close() }

// ObserveAncestorTraversal tells the engine the search moved down one
// ancestor link since stored scores were last recorded.
// wasInfeasibilityReduction is true when that ancestor node was created
// purely to apply domain reductions from infeasible probes rather than
// for a real branching split; reductionsSoFar counts how many such
// reductions have been crossed since the recording node. Stored scores
// stay reusable only while every crossed ancestor was such a reduction
// and their count stays below the Reevalage parameter.
func (e *StrongBranchingEngine) ObserveAncestorTraversal(wasInfeasibilityReduction bool, reductionsSoFar int) bool {
	return e.scoring.MarkAncestorTraversed(wasInfeasibilityReduction, reductionsSoFar, e.params.Reevalage)
}

// scoredCandidate carries a CandidateInfo through the three phases along
// with its block classification and running phase score.
type scoredCandidate struct {
	info       CandidateInfo
	uniqueness BlockUniqueness
	score      float64
	historical bool
	downInf    bool
	upInf      bool
	downGain   float64
	upGain     float64
}

// assignUniqueBlockFlags applies the block uniqueness filter: a first
// pass keeps integer variables assigned to a unique pricing block; if
// none qualify, a fallback pass keeps integer variables directly
// transferred to the master that are still fractional. Everything else
// is dropped.
func (e *StrongBranchingEngine) assignUniqueBlockFlags(cands []CandidateInfo) []scoredCandidate {
	out := make([]scoredCandidate, 0, len(cands))
	for _, c := range cands {
		if e.host.VarType(c.Var) == VarContinuous {
			continue
		}
		block := e.host.OriginalVarBlock(c.Var)
		linking := e.host.OriginalVarIsLinking(c.Var)
		if block != DirectBlock && !linking {
			e.scoring.SetUniqueness(c.Var, BlockUnique)
			out = append(out, scoredCandidate{info: c, uniqueness: BlockUnique})
		}
	}
	if len(out) > 0 {
		return out
	}
	for _, c := range cands {
		if e.host.VarType(c.Var) == VarContinuous {
			continue
		}
		if e.host.OriginalVarBlock(c.Var) == DirectBlock && !e.host.IsIntegral(c.FractionalPart) {
			e.scoring.SetUniqueness(c.Var, BlockDirectMaster)
			out = append(out, scoredCandidate{info: c, uniqueness: BlockDirectMaster})
		}
	}
	return out
}

// phase0Score computes the cheap per-candidate score used to rank
// phase-0 survivors: the stored historical score when it is still
// recent, otherwise a pseudocost or fractionality estimate.
func (e *StrongBranchingEngine) phase0Score(c CandidateInfo) (score float64, historical bool) {
	if stored, known := e.scoring.StoredScore(c.Var); known && e.scoring.ScoreRecent(c.Var) {
		return stored, true
	}
	if e.params.UseMostFrac {
		return e.scorer.FractionalityScore(c.LPValue), false
	}
	return c.PseudocostScore, false
}

// selectPhase0 scores every candidate (in parallel, since this touches
// no probing state), splits the result into new vs. historical, and
// keeps the top n0 by the gap-weighted output bound, mixing in up to
// Histweight*n0 historical candidates by swapping out the worst new
// ones (deduplicated by variable).
func (e *StrongBranchingEngine) selectPhase0(ctx context.Context, cands []scoredCandidate, gap float64) ([]scoredCandidate, error) {
	type scored struct {
		cand       scoredCandidate
		historical bool
	}
	results, err := workerpool.MapScores(ctx, e.pool, cands, func(c scoredCandidate) (scored, error) {
		s, hist := e.phase0Score(c.info)
		c.score = s
		c.historical = hist
		return scored{cand: c, historical: hist}, nil
	})
	if err != nil {
		return nil, NewLpError(err)
	}

	var newOnes, historical []scoredCandidate
	for _, r := range results {
		if r.historical {
			historical = append(historical, r.cand)
		} else {
			newOnes = append(newOnes, r.cand)
		}
	}

	n0 := PhaseOutCount(len(cands), e.params.MaxPhaseOutcandsFrac, e.params.MinPhase0Outcands, e.params.MaxPhase0Outcands, gap, e.params.Phase0GapWeight)
	if n0 > len(cands) {
		n0 = len(cands)
	}

	sortDesc := func(s []scoredCandidate) {
		sort.Slice(s, func(i, j int) bool { return s[i].score > s[j].score })
	}
	sortDesc(newOnes)
	sortDesc(historical)

	if len(newOnes) > n0 {
		newOnes = newOnes[:n0]
	}

	maxHist := int(e.params.Histweight * float64(n0))
	seen := make(map[OriginalVariableID]bool, len(newOnes))
	for _, c := range newOnes {
		seen[c.info.Var] = true
	}
	mixed := 0
	for _, h := range historical {
		if mixed >= maxHist || len(newOnes) == 0 {
			break
		}
		if seen[h.info.Var] {
			continue
		}
		// replace the worst surviving "new" candidate
		worstIdx := len(newOnes) - 1
		if newOnes[worstIdx].score >= h.score {
			continue
		}
		delete(seen, newOnes[worstIdx].info.Var)
		newOnes[worstIdx] = h
		seen[h.info.Var] = true
		mixed++
		sortDesc(newOnes)
	}

	if len(newOnes) > n0 {
		newOnes = newOnes[:n0]
	}
	return newOnes, nil
}

// probeDirection opens a probing session, applies the bound change for
// one direction of candidate v, propagates, optionally prices, and
// returns the resulting ProbeResult. A probing or propagation error is
// surfaced as *LpError; the session is always closed before returning.
func (e *StrongBranchingEngine) probeDirection(ctx context.Context, v OriginalVariableID, bound float64, kind BoundKind, withPricing bool) (ProbeResult, error) {
	sess, err := OpenProbingSession(e.host, e.log)
	if err != nil {
		return ProbeResult{}, err
	}
	defer sess.Close()

	sess.SetBound(v, kind, bound)
	cutoff, err := sess.Propagate(ctx)
	if err != nil {
		return ProbeResult{}, err
	}
	if cutoff {
		return ProbeResult{Status: ProbeCutoff, CutoffPropagation: true}, nil
	}
	if err := ctx.Err(); err != nil {
		return ProbeResult{}, &Stopped{}
	}
	return sess.SolveRelaxation(ctx, withPricing, 0), nil
}

// runPhase evaluates every surviving candidate's two directions (the
// down probe always precedes the up probe) and keeps the top survivors
// by the host's branching score, bounded by the gap-weighted output
// count between minOut and maxOut.
//
// A candidate infeasible in both directions proves the node infeasible.
// When exactly one direction is infeasible in a pricing phase and
// Immediateinf is set, the candidate is committed on the spot: the
// feasible direction becomes the only child, so the phase returns that
// single candidate as its sole survivor.
func (e *StrongBranchingEngine) runPhase(ctx context.Context, cands []scoredCandidate, withPricing bool, minOut, maxOut int, gap float64, gapWeight float64) ([]scoredCandidate, Result, error) {
	out := make([]scoredCandidate, 0, len(cands))
	for _, c := range cands {
		if err := ctx.Err(); err != nil {
			return nil, ResultDidNotRun, &Stopped{}
		}

		downVal := float64(int64(c.info.LPValue))
		upVal := downVal + 1

		downRes, err := e.probeDirection(ctx, c.info.Var, downVal, Upper, withPricing)
		if err != nil {
			if _, ok := err.(*Stopped); ok {
				return nil, ResultDidNotRun, err
			}
			continue // LP error: drop this candidate, keep scoring the others
		}
		upRes, err := e.probeDirection(ctx, c.info.Var, upVal, Lower, withPricing)
		if err != nil {
			if _, ok := err.(*Stopped); ok {
				return nil, ResultDidNotRun, err
			}
			continue
		}

		c.downInf = downRes.Infeasible()
		c.upInf = upRes.Infeasible()

		if c.downInf && c.upInf {
			return nil, ResultCutoff, nil
		}

		if c.downInf != c.upInf && e.params.Immediateinf && withPricing {
			return []scoredCandidate{c}, ResultBranched, nil
		}

		if !c.downInf {
			c.downGain = c.info.LPValue - downRes.Objective
		}
		if !c.upInf {
			c.upGain = upRes.Objective - c.info.LPValue
		}
		c.score = e.host.BranchScore(c.downGain, c.upGain)
		if withPricing || e.params.Strongtraining {
			e.scoring.RecordScore(c.info.Var, c.score, e.host.FocusNode())
		}
		out = append(out, c)
	}

	n := PhaseOutCount(len(cands), e.params.MaxPhaseOutcandsFrac, minOut, maxOut, gap, gapWeight)
	if n <= 0 || n > len(out) {
		n = len(out)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].score > out[j].score })
	if len(out) > n {
		out = out[:n]
	}
	return out, ResultBranched, nil
}

// SelectOriginal picks a single branching variable maximizing expected
// bound improvement via up to three phases. gap is the normalized
// current node gap in [0, 1]. Phase 1 (LP-only strong branching) always
// runs; phase 2 (strong branching with pricing) is skipped in
// Stronglite mode and whenever fewer than Mincolgencands candidates
// survive phase 1.
func (e *StrongBranchingEngine) SelectOriginal(ctx context.Context, candidates []CandidateInfo, gap float64) (variable OriginalVariableID, upBranchInf, downBranchInf bool, result Result, err error) {
	ctx, cancel := e.limits.apply(ctx)
	defer cancel()

	filtered := e.assignUniqueBlockFlags(candidates)
	if len(filtered) == 0 {
		return 0, false, false, ResultDidNotRun, &NoCandidate{Reason: "no candidate survived block-uniqueness filtering"}
	}

	phase0, err := e.selectPhase0(ctx, filtered, gap)
	if err != nil {
		return 0, false, false, ResultDidNotRun, err
	}
	if len(phase0) == 0 {
		return 0, false, false, ResultDidNotRun, &NoCandidate{Reason: "phase 0 filtered out every candidate"}
	}

	survivors, result, err := e.runPhase(ctx, phase0, false, e.params.MinPhase1Outcands, e.params.MaxPhase1Outcands, gap, e.params.Phase1GapWeight)
	if result == ResultCutoff || result == ResultDidNotRun {
		return 0, false, false, result, err
	}

	if !e.params.Stronglite && len(survivors) >= e.params.Mincolgencands {
		survivors, result, err = e.runPhase(ctx, survivors, true, 1, 1, gap, e.params.Phase1GapWeight)
		if result == ResultCutoff || result == ResultDidNotRun {
			return 0, false, false, result, err
		}
	}

	if len(survivors) == 0 {
		return 0, false, false, ResultDidNotRun, &NoCandidate{Reason: "every candidate eliminated by LP error"}
	}

	best := survivors[0]
	for _, c := range survivors[1:] {
		if c.score > best.score {
			best = c
		}
	}
	e.scoring.RecordBranching(best.info.Var)
	return best.info.Var, best.upInf, best.downInf, ResultBranched, nil
}

// SelectRyanFoster picks the best same/differ pair. pairs enumerates
// candidate (v1, v2) pairs already known to co-occur fractionally in a
// set-partitioning or set-covering master; blockOf reports each pair's
// shared pricing block. Pairs are ranked by the product of their
// per-variable scores, pseudocost-based when UsePseudocosts is set and
// fractionality-based otherwise.
func (e *StrongBranchingEngine) SelectRyanFoster(ctx context.Context, pairs [][2]CandidateInfo, blockOf func(v1, v2 OriginalVariableID) BlockIndex) (v1, v2 OriginalVariableID, block BlockIndex, upBranchInf, downBranchInf bool, result Result, err error) {
	if len(pairs) == 0 {
		return 0, 0, 0, false, false, ResultDidNotRun, &NoCandidate{Reason: "no ryan-foster pair candidates"}
	}
	ctx, cancel := e.limits.apply(ctx)
	defer cancel()

	type pairScore struct {
		v1, v2 OriginalVariableID
		block  BlockIndex
		score  float64
	}
	best := pairScore{score: -1}
	for _, p := range pairs {
		if err := ctx.Err(); err != nil {
			return 0, 0, 0, false, false, ResultDidNotRun, &Stopped{}
		}
		var s1, s2 float64
		if e.params.UsePseudocosts {
			s1, s2 = p[0].PseudocostScore, p[1].PseudocostScore
		} else {
			s1 = e.scorer.FractionalityScore(p[0].LPValue)
			s2 = e.scorer.FractionalityScore(p[1].LPValue)
		}
		score := e.scorer.PairScore(s1, s2)
		if score > best.score {
			best = pairScore{v1: p[0].Var, v2: p[1].Var, block: blockOf(p[0].Var, p[1].Var), score: score}
		}
	}
	if best.score < 0 {
		return 0, 0, 0, false, false, ResultDidNotRun, &NoCandidate{Reason: "no valid ryan-foster pair"}
	}
	return best.v1, best.v2, best.block, false, false, ResultBranched, nil
}
