package dwbranch

// candidateHistory is the persistent per-candidate data a branching rule
// keeps across nodes: the last strong-branching score, the node it was
// recorded at, the score-recency flag, branching/probing counters, and
// the block classification.
type candidateHistory struct {
	score        float64 // -1 means "never computed"
	recordedNode NodeID
	recent       bool
	branchings   int
	probings     int
	uniqueness   BlockUniqueness
}

// ScoringState is the per-rule historical state: it is owned by exactly
// one branching rule instance, read during scoring and mutated only by
// that rule's own update paths. Cross-rule sharing is not supported.
type ScoringState struct {
	history map[OriginalVariableID]*candidateHistory
	// totalBranchings feeds the reliability predicate's
	// (varProbings + varBranchings) / (totalBranchings + 1) ratio.
	totalBranchings int
}

// NewScoringState returns an empty ScoringState; every history entry
// starts absent and is created lazily on first touch.
func NewScoringState() *ScoringState {
	return &ScoringState{history: make(map[OriginalVariableID]*candidateHistory)}
}

func (s *ScoringState) entry(v OriginalVariableID) *candidateHistory {
	e, ok := s.history[v]
	if !ok {
		e = &candidateHistory{score: -1, uniqueness: BlockUnknown}
		s.history[v] = e
	}
	return e
}

// StoredScore returns v's last recorded strong-branching score and
// whether it has ever been computed. A score of -1 means "historical
// missing"; such a candidate is never selected as a top-historical one.
func (s *ScoringState) StoredScore(v OriginalVariableID) (score float64, known bool) {
	e := s.entry(v)
	return e.score, e.score >= 0
}

// RecordScore stores a freshly computed strong-branching score for v at
// node, marking it recent (valid for reuse until an ancestor traversal
// proves otherwise; see MarkAncestorTraversed).
func (s *ScoringState) RecordScore(v OriginalVariableID, score float64, node NodeID) {
	e := s.entry(v)
	e.score = score
	e.recordedNode = node
	e.recent = true
}

// ScoreRecent reports whether v's stored score is still valid for reuse:
// true iff every ancestor between the recording node and the current
// node was created purely for domain reduction from infeasibility
// discovered during earlier strong branching.
func (s *ScoringState) ScoreRecent(v OriginalVariableID) bool {
	e := s.entry(v)
	return e.score >= 0 && e.recent
}

// MarkAncestorTraversed flips every candidate's recency flag to false
// the moment a non-infeasibility-reduction ancestor is traversed. A
// caller walking from the recording node to the current node calls this
// once per ancestor; reevalAge additionally bounds how many qualifying
// reductions may intervene before stored scores go stale anyway. The
// return value reports whether stored scores remain reusable.
func (s *ScoringState) MarkAncestorTraversed(wasInfeasibilityReduction bool, reductionsSoFar, reevalAge int) bool {
	if !wasInfeasibilityReduction || reductionsSoFar >= reevalAge {
		for _, e := range s.history {
			e.recent = false
		}
		return false
	}
	return true
}

// RecordBranching increments v's branching counter and the process-wide
// total.
func (s *ScoringState) RecordBranching(v OriginalVariableID) {
	s.entry(v).branchings++
	s.totalBranchings++
}

// RecordProbing increments v's probing counter.
func (s *ScoringState) RecordProbing(v OriginalVariableID) {
	s.entry(v).probings++
}

// Reliable reports whether v's pseudocost history is trustworthy enough
// to skip probing. At depth <= 2 a candidate is never reliable. A
// history count (probings+branchings) below minReliable is never
// reliable and one at or above maxReliable always is (maxReliable <= 0
// disables that cap); between the two, the candidate is reliable iff
// (probings+branchings)/(totalBranchings+1) >= threshold.
func (s *ScoringState) Reliable(v OriginalVariableID, depth int, threshold, minReliable, maxReliable float64) bool {
	if depth <= 2 {
		return false
	}
	e := s.entry(v)
	count := float64(e.probings + e.branchings)
	if count < minReliable {
		return false
	}
	if maxReliable > 0 && count >= maxReliable {
		return true
	}
	ratio := count / float64(s.totalBranchings+1)
	return ratio >= threshold
}

// Uniqueness returns v's cached block-uniqueness classification.
func (s *ScoringState) Uniqueness(v OriginalVariableID) BlockUniqueness {
	return s.entry(v).uniqueness
}

// SetUniqueness caches v's block-uniqueness classification, computed
// once per node by the uniqueness filter and reused across calls.
func (s *ScoringState) SetUniqueness(v OriginalVariableID, u BlockUniqueness) {
	s.entry(v).uniqueness = u
}

// Snapshot returns a deep copy of the scoring state, so a caller can
// mutate the copy without affecting the original.
func (s *ScoringState) Snapshot() *ScoringState {
	cp := &ScoringState{
		history:         make(map[OriginalVariableID]*candidateHistory, len(s.history)),
		totalBranchings: s.totalBranchings,
	}
	for v, e := range s.history {
		copyE := *e
		cp.history[v] = &copyE
	}
	return cp
}

// Restore replaces s's contents with snapshot's, in place, so a held
// *ScoringState reference stays valid across a restore.
func (s *ScoringState) Restore(snapshot *ScoringState) {
	s.history = make(map[OriginalVariableID]*candidateHistory, len(snapshot.history))
	for v, e := range snapshot.history {
		copyE := *e
		s.history[v] = &copyE
	}
	s.totalBranchings = snapshot.totalBranchings
}
