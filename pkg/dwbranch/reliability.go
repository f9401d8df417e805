package dwbranch

import (
	"context"
	"sort"

	"go.uber.org/zap"
)

// ReliabilityProbingEngine implements reliability pseudocost branching
// with probing: candidates with enough branching history are trusted on
// their stored pseudocost score; candidates without enough history are
// probed in both directions via ProbingSession to establish a real score
// and, as a side effect, to tighten the shared BoundChangeLedger whenever
// probing proves one direction infeasible.
type ReliabilityProbingEngine struct {
	host    Host
	scorer  *CandidateScorer
	scoring *ScoringState
	ledger  *BoundChangeLedger
	params  ReliabilityParams
	limits  callLimits
	log     *zap.Logger
}

// NewReliabilityProbingEngine constructs an engine against host. scoring
// and ledger are shared with the caller and mutated only through this
// engine's own update paths.
func NewReliabilityProbingEngine(host Host, scoring *ScoringState, scorer *CandidateScorer, ledger *BoundChangeLedger, log *zap.Logger, opts ...Option) *ReliabilityProbingEngine {
	cfg := defaultEngineConfig()
	for _, o := range opts {
		o(&cfg)
	}
	return &ReliabilityProbingEngine{
		host:    host,
		scorer:  scorer,
		scoring: scoring,
		ledger:  ledger,
		params:  cfg.reliability,
		limits:  cfg.limits,
		log:     orNop(log),
	}
}

type reliabilityCandidate struct {
	info     CandidateInfo
	score    float64
	reliable bool
}

// rawScores pulls the five raw statistics combined into a candidate's
// score off the host.
func (e *ReliabilityProbingEngine) rawScores(v OriginalVariableID, solVal float64) (conflict, conflictLen, inference, cutoff, pscost float64) {
	return e.host.VarConflictScore(v), e.host.VarConflictlengthScore(v), e.host.VarAvgInferenceScore(v), e.host.VarAvgCutoffScore(v), e.host.VarPseudocostScore(v, solVal)
}

// batchAverages estimates the running averages each raw score is
// normalized against from the current candidate batch. The host exposes
// no global running averages through VariableHost, so the batch is the
// widest population visible to a single call.
func (e *ReliabilityProbingEngine) batchAverages(cands []CandidateInfo) ScoreAverages {
	var avg ScoreAverages
	if len(cands) == 0 {
		return avg
	}
	for _, c := range cands {
		conflict, conflictLen, inference, cutoff, pscost := e.rawScores(c.Var, c.LPValue)
		avg.Conflict += conflict
		avg.ConflictLength += conflictLen
		avg.Inference += inference
		avg.Cutoff += cutoff
		avg.Pscost += pscost
	}
	n := float64(len(cands))
	avg.Conflict /= n
	avg.ConflictLength /= n
	avg.Inference /= n
	avg.Cutoff /= n
	avg.Pscost /= n
	return avg
}

func (e *ReliabilityProbingEngine) scoreCandidate(c CandidateInfo, avg ScoreAverages) float64 {
	conflict, conflictLen, inference, cutoff, pscost := e.rawScores(c.Var, c.LPValue)
	return e.scorer.CombinedScore(conflict, conflictLen, inference, cutoff, pscost, avg, e.params.Weights, c.FractionalPart)
}

// probeBounds derives the bound values for the two probes of a candidate
// at solVal. The down probe sets the upper bound to floor(solVal), except
// when floor(solVal) equals the current upper bound, in which case it
// uses currentUpper-1 so the probe actually restricts the domain; the up
// probe is symmetric with the lower bound.
func (e *ReliabilityProbingEngine) probeBounds(v OriginalVariableID, solVal float64) (downUb, upLb float64) {
	floor := float64(int64(solVal))
	ceil := floor + 1
	if cur := e.host.VarUbLocal(v); floor == cur {
		floor = cur - 1
	}
	if cur := e.host.VarLbLocal(v); ceil == cur {
		ceil = cur + 1
	}
	return floor, ceil
}

// probeBothDirections mirrors strong branching's per-direction probing
// but is kept local to this engine because it additionally records
// pseudocost updates and ledger tightenings.
func (e *ReliabilityProbingEngine) probeBothDirections(ctx context.Context, v OriginalVariableID, solVal float64, iterLimit int) (down, up ProbeResult, err error) {
	downUb, upLb := e.probeBounds(v, solVal)

	sessDown, err := OpenProbingSession(e.host, e.log)
	if err != nil {
		return ProbeResult{}, ProbeResult{}, err
	}
	sessDown.SetBound(v, Upper, downUb)
	cutoff, err := sessDown.Propagate(ctx)
	if err != nil {
		sessDown.Close()
		return ProbeResult{}, ProbeResult{}, err
	}
	if cutoff {
		down = ProbeResult{Status: ProbeCutoff, CutoffPropagation: true}
	} else {
		down = sessDown.SolveRelaxation(ctx, e.params.UseLP, iterLimit)
	}
	sessDown.Close()

	if err := ctx.Err(); err != nil {
		return down, ProbeResult{}, &Stopped{}
	}

	sessUp, err := OpenProbingSession(e.host, e.log)
	if err != nil {
		return down, ProbeResult{}, err
	}
	sessUp.SetBound(v, Lower, upLb)
	cutoff, err = sessUp.Propagate(ctx)
	if err != nil {
		sessUp.Close()
		return down, ProbeResult{}, err
	}
	if cutoff {
		up = ProbeResult{Status: ProbeCutoff, CutoffPropagation: true}
	} else {
		up = sessUp.SolveRelaxation(ctx, e.params.UseLP, iterLimit)
	}
	sessUp.Close()
	return down, up, nil
}

// Select picks a branching variable among candidates. Reliable
// candidates keep their combined pseudocost score; the top unreliable
// ones (up to InitCand) are probed in both directions, updating
// pseudocosts and the ledger as probes resolve. avgIters is the running
// average LP iteration count used to derive the probing iteration limit;
// depth is the current node's depth, which forces probing near the root.
//
// When probing proves one direction of a candidate infeasible the
// corresponding bound tightening is recorded in the ledger; once the
// ledger holds at least MinBdChgs changes (or five such one-sided
// probes occurred), the tightenings are applied to the focus node and
// Select returns ResultReducedDomain so the host re-solves the LP
// instead of branching. Both directions infeasible proves the node
// infeasible and returns ResultCutoff.
func (e *ReliabilityProbingEngine) Select(ctx context.Context, candidates []CandidateInfo, depth int, avgIters float64, gap float64) (variable OriginalVariableID, downBranchInf, upBranchInf bool, result Result, err error) {
	if len(candidates) == 0 {
		return 0, false, false, ResultDidNotRun, &NoCandidate{Reason: "no reliability-branching candidates"}
	}
	ctx, cancel := e.limits.apply(ctx)
	defer cancel()

	avg := e.batchAverages(candidates)
	ranked := make([]reliabilityCandidate, 0, len(candidates))
	for _, c := range candidates {
		ranked = append(ranked, reliabilityCandidate{
			info:     c,
			score:    e.scoreCandidate(c, avg),
			reliable: e.scoring.Reliable(c.Var, depth, e.params.Reliability, e.params.MinReliable, e.params.MaxReliable),
		})
	}
	sort.Slice(ranked, func(i, j int) bool { return ranked[i].score > ranked[j].score })

	iterLimit := int(e.params.IterQuot*avgIters) + e.params.IterOfs
	if e.params.InitIter > 0 {
		iterLimit = e.params.InitIter
	}

	bestVar := OriginalVariableID(0)
	bestScore := -1.0
	haveBest := false
	var bestDownInf, bestUpInf bool

	// fallback candidate: feasible in exactly one direction, committed
	// only when the ledger is not applied
	oneSidedVar := OriginalVariableID(0)
	var oneSidedDownInf, oneSidedUpInf bool
	haveOneSided := false

	lookahead := 0
	probed := 0
	infProbes := 0

	for _, rc := range ranked {
		if err := ctx.Err(); err != nil {
			return 0, false, false, ResultDidNotRun, &Stopped{}
		}

		probeThis := !rc.reliable && probed < e.params.InitCand
		score := rc.score
		downInf, upInf := false, false

		if probeThis {
			down, up, perr := e.probeBothDirections(ctx, rc.info.Var, rc.info.LPValue, iterLimit)
			if perr != nil {
				if _, ok := perr.(*Stopped); ok {
					return 0, false, false, ResultDidNotRun, perr
				}
				continue // LP error on this candidate: keep scanning others
			}
			downInf = down.Infeasible()
			upInf = up.Infeasible()
			probed++

			if downInf && upInf {
				return 0, false, false, ResultCutoff, nil
			}
			if downInf || upInf {
				infProbes++
				if downInf {
					if lerr := e.ledger.Add(rc.info.Var, float64(int64(rc.info.LPValue))+1, Lower, true); lerr != nil {
						return 0, false, false, ResultCutoff, lerr
					}
				} else {
					if lerr := e.ledger.Add(rc.info.Var, float64(int64(rc.info.LPValue)), Upper, true); lerr != nil {
						return 0, false, false, ResultCutoff, lerr
					}
				}
				e.scoring.RecordProbing(rc.info.Var)
				if !haveOneSided {
					oneSidedVar = rc.info.Var
					oneSidedDownInf, oneSidedUpInf = downInf, upInf
					haveOneSided = true
				}
				if e.params.MaxBdChgs >= 0 && e.ledger.Changes() >= e.params.MaxBdChgs {
					break
				}
				continue
			}

			downGain := rc.info.LPValue - down.Objective
			upGain := up.Objective - rc.info.LPValue
			score = e.host.BranchScore(downGain, upGain)
			frac := rc.info.LPValue - float64(int64(rc.info.LPValue))
			e.host.UpdateVarPseudocost(rc.info.Var, -frac, downGain, 1.0)
			e.host.UpdateVarPseudocost(rc.info.Var, 1-frac, upGain, 1.0)
			e.scoring.RecordScore(rc.info.Var, score, e.host.FocusNode())
			e.scoring.RecordProbing(rc.info.Var)
		}

		if !haveBest || score > bestScore {
			bestScore = score
			bestVar = rc.info.Var
			bestDownInf, bestUpInf = downInf, upInf
			haveBest = true
			lookahead = 0
		} else {
			lookahead++
		}
		if lookahead >= e.params.MaxLookahead {
			break
		}
	}

	if e.ledger.Changes() >= e.params.MinBdChgs || infProbes >= 5 {
		if applied := e.ledger.Apply(e.host, e.host.FocusNode()); applied > 0 {
			e.log.Debug("probing tightened bounds on the focus node", zap.Int("count", applied))
			return 0, false, false, ResultReducedDomain, nil
		}
	}

	if !haveBest {
		if haveOneSided {
			e.scoring.RecordBranching(oneSidedVar)
			return oneSidedVar, oneSidedDownInf, oneSidedUpInf, ResultBranched, nil
		}
		return 0, false, false, ResultDidNotRun, &NoCandidate{Reason: "every candidate eliminated by LP error"}
	}

	e.scoring.RecordBranching(bestVar)
	return bestVar, bestDownInf, bestUpInf, ResultBranched, nil
}
