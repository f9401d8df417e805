package dwbranch

import (
	"context"
	"time"
)

// StrongBranchingParams holds the branching/bp_strong/* parameter
// namespace a host exposes for strong branching with column generation.
type StrongBranchingParams struct {
	// Stronglite skips phase 2 (LP + pricing) entirely and picks the
	// best of phase 1.
	Stronglite bool
	// Strongtraining records every phase-1 score even for candidates
	// that are not ultimately selected, building up ScoringState history
	// faster for later reuse.
	Strongtraining bool
	// Immediateinf commits a candidate immediately when exactly one
	// direction is infeasible in phase 2, instead of continuing to score
	// it as a two-sided candidate with a noted infeasibility.
	Immediateinf bool
	// Reevalage bounds how many pure-infeasibility-reduction ancestors
	// may intervene before a stored score must be recomputed (0..100).
	Reevalage int
	// Mincolgencands is the minimum candidate count below which phase 2
	// is suppressed regardless of Stronglite.
	Mincolgencands int
	// MinPhase0Outcands / MaxPhase0Outcands (and the phase-1 pair) bound
	// how many candidates survive each phase; the actual count is
	// interpolated between them by the node gap and capped by
	// MaxPhaseOutcandsFrac times the incoming candidate count.
	MinPhase0Outcands    int
	MaxPhase0Outcands    int
	MinPhase1Outcands    int
	MaxPhase1Outcands    int
	MaxPhaseOutcandsFrac float64
	// Phase0GapWeight / Phase1GapWeight control how strongly the node
	// gap pulls the phase output bound from its max toward its min.
	Phase0GapWeight float64
	Phase1GapWeight float64
	// Histweight bounds the fraction of phase-0 survivors that may come
	// from historical (previously-scored) candidates.
	Histweight float64

	// Ryan-Foster mode toggles.
	UsePseudocosts bool
	UseMostFrac    bool
}

// DefaultStrongBranchingParams returns the stock configuration: modest
// phase-out bounds, reevalage of 1 node, pricing enabled.
func DefaultStrongBranchingParams() StrongBranchingParams {
	return StrongBranchingParams{
		Stronglite:           false,
		Strongtraining:       false,
		Immediateinf:         true,
		Reevalage:            1,
		Mincolgencands:       4,
		MinPhase0Outcands:    10,
		MaxPhase0Outcands:    50,
		MinPhase1Outcands:    2,
		MaxPhase1Outcands:    10,
		MaxPhaseOutcandsFrac: 0.5,
		Phase0GapWeight:      0.5,
		Phase1GapWeight:      0.5,
		Histweight:           0.5,
		UsePseudocosts:       true,
		UseMostFrac:          false,
	}
}

// PhaseOutCount computes how many candidates survive a selection phase:
//
//	min(candFrac*|cands|, minOut + ceil((maxOut-minOut)*(gap*gapWeight + (1-gapWeight))))
//
// bounded below by 1 whenever any candidate came in, so a lone
// fractional candidate is never filtered into an empty phase.
func PhaseOutCount(numCands int, candFrac float64, minOut, maxOut int, gap, gapWeight float64) int {
	if numCands <= 0 {
		return 0
	}
	byFrac := int(candFrac * float64(numCands))
	interp := float64(minOut) + ceil(float64(maxOut-minOut)*(gap*gapWeight+(1-gapWeight)))
	byGap := int(interp)
	n := byGap
	if byFrac < n {
		n = byFrac
	}
	if n < 1 {
		n = 1
	}
	return n
}

func ceil(x float64) float64 {
	i := float64(int(x))
	if i < x {
		return i + 1
	}
	return i
}

// ReliabilityParams holds the branching/relpsprob/* parameter namespace
// a host exposes for reliability pseudocost branching with probing.
type ReliabilityParams struct {
	Weights ScoreWeights

	MinReliable  float64
	MaxReliable  float64
	IterQuot     float64
	IterOfs      int
	MaxLookahead int
	InitCand     int
	InitIter     int
	MaxBdChgs    int
	MinBdChgs    int
	UseLP        bool
	Reliability  float64
}

// DefaultReliabilityParams returns the stock reliability-branching
// configuration.
func DefaultReliabilityParams() ReliabilityParams {
	return ReliabilityParams{
		Weights: ScoreWeights{
			Conflict:       1000,
			ConflictLength: 1,
			Inference:      1,
			Cutoff:         1,
			Pscost:         1,
		},
		MinReliable:  1,
		MaxReliable:  8,
		IterQuot:     0.25,
		IterOfs:      10000,
		MaxLookahead: 8,
		InitCand:     100,
		InitIter:     0,
		MaxBdChgs:    -1,
		MinBdChgs:    1,
		UseLP:        true,
		Reliability:  0.8,
	}
}

// Option configures a StrongBranchingEngine or ReliabilityProbingEngine
// at construction time.
type Option func(*engineConfig)

type engineConfig struct {
	strong      StrongBranchingParams
	reliability ReliabilityParams
	limits      callLimits
}

// callLimits bounds a single branching call. A zero value imposes no
// limit.
type callLimits struct {
	timeLimit time.Duration
}

// apply derives a context enforcing the limits. The returned cancel
// function must be called when the branching call finishes.
func (l callLimits) apply(ctx context.Context) (context.Context, context.CancelFunc) {
	if l.timeLimit > 0 {
		return context.WithTimeout(ctx, l.timeLimit)
	}
	return context.WithCancel(ctx)
}

func defaultEngineConfig() engineConfig {
	return engineConfig{
		strong:      DefaultStrongBranchingParams(),
		reliability: DefaultReliabilityParams(),
	}
}

// WithStrongBranchingParams overrides the strong-branching namespace.
func WithStrongBranchingParams(p StrongBranchingParams) Option {
	return func(c *engineConfig) { c.strong = p }
}

// WithReliabilityParams overrides the reliability-branching namespace.
func WithReliabilityParams(p ReliabilityParams) Option {
	return func(c *engineConfig) { c.reliability = p }
}

// WithTimeLimit bounds how long a single branching call may run. When
// the limit expires mid-call the engine abandons candidate evaluation
// and returns ResultDidNotRun without committing a partial decision.
func WithTimeLimit(d time.Duration) Option {
	return func(c *engineConfig) { c.limits.timeLimit = d }
}
