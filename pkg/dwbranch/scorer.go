package dwbranch

import "math"

// ScoreWeights are the weights applied to the five normalized raw scores
// when combining them into a single candidate score.
type ScoreWeights struct {
	Conflict       float64
	ConflictLength float64
	Inference      float64
	Cutoff         float64
	Pscost         float64
}

// ScoreAverages are the running averages each raw score is normalized
// against in CombinedScore's `1 - 1/(1 + s/avg)` transform.
type ScoreAverages struct {
	Conflict       float64
	ConflictLength float64
	Inference      float64
	Cutoff         float64
	Pscost         float64
}

// CandidateScorer computes the pure, side-effect-free scores used to
// order and compare branching candidates. Every method reads only its
// arguments: callers supply whatever host-derived state is current.
type CandidateScorer struct {
	// FeasTol is the feasibility tolerance used to decide whether a
	// fractional part is "near-integral" in CombinedScore.
	FeasTol float64
}

// NewCandidateScorer returns a scorer using feasTol as its feasibility
// tolerance (must be > 0; solver-typical defaults use 1e-6).
func NewCandidateScorer(feasTol float64) *CandidateScorer {
	return &CandidateScorer{FeasTol: feasTol}
}

// FractionalityScore is the distance of solValue to its nearest integer:
// min(solValue - floor(solValue), 1 - (solValue - floor(solValue))).
func (CandidateScorer) FractionalityScore(solValue float64) float64 {
	f := solValue - math.Floor(solValue)
	if f > 1-f {
		return 1 - f
	}
	return f
}

// normalize maps a raw score onto [0, 1) via `1 - 1/(1 + s/avg)`,
// treating a non-positive average as "no history yet" (the score passes
// through unscaled, avoiding a division by zero).
func normalize(raw, avg float64) float64 {
	if avg <= 0 {
		return raw
	}
	return 1 - 1/(1+raw/avg)
}

// CombinedScore normalizes each raw score by its running average, takes
// the weighted sum, and dampens near-integral candidates: when
// fractionalPart is within 10*FeasTol of an integer the total is scaled
// by 1e-6 times the candidate's distance to the integer, clamped to
// >= 0.0001, so near-integral candidates still order by how fractional
// they are instead of collapsing to a single dampened score.
func (cs CandidateScorer) CombinedScore(conflict, conflictLen, inference, cutoff, pscost float64, avg ScoreAverages, weights ScoreWeights, fractionalPart float64) float64 {
	total := weights.Conflict*normalize(conflict, avg.Conflict) +
		weights.ConflictLength*normalize(conflictLen, avg.ConflictLength) +
		weights.Inference*normalize(inference, avg.Inference) +
		weights.Cutoff*normalize(cutoff, avg.Cutoff) +
		weights.Pscost*normalize(pscost, avg.Pscost)

	frac := math.Abs(fractionalPart - math.Round(fractionalPart))
	if frac <= 10*cs.FeasTol {
		if frac < 0.0001 {
			frac = 0.0001
		}
		total *= 1e-6 * frac
	}
	return total
}

// PairScore is the geometric product of two candidate scores
// (fractionality or pseudocost), used to rank Ryan-Foster pairs.
func (CandidateScorer) PairScore(score1, score2 float64) float64 {
	return score1 * score2
}

// Candidate bundles the scores Compare needs to apply the candidate
// tie-break order without recomputing anything.
type Candidate struct {
	Var           OriginalVariableID
	Combined      float64
	Fractionality float64
	DomainSize    float64
}

// Compare is the total order over candidates: primary descending
// combined score, secondary descending fractionality score, tertiary
// ascending domain size (smaller preferred). It returns a strict
// three-way result (-1, 0, 1).
func (CandidateScorer) Compare(a, b Candidate) int {
	if a.Combined != b.Combined {
		if a.Combined > b.Combined {
			return -1
		}
		return 1
	}
	if a.Fractionality != b.Fractionality {
		if a.Fractionality > b.Fractionality {
			return -1
		}
		return 1
	}
	if a.DomainSize != b.DomainSize {
		if a.DomainSize < b.DomainSize {
			return -1
		}
		return 1
	}
	return 0
}

// Best returns the candidate that sorts first under Compare, or false if
// cands is empty.
func (cs CandidateScorer) Best(cands []Candidate) (Candidate, bool) {
	if len(cands) == 0 {
		return Candidate{}, false
	}
	best := cands[0]
	for _, c := range cands[1:] {
		if cs.Compare(c, best) < 0 {
			best = c
		}
	}
	return best, true
}
