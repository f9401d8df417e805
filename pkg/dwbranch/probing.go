package dwbranch

import (
	"context"
	"sync"

	"go.uber.org/zap"
)

// probingExclusive enforces the rule that at most one probing session is
// active per process and nested probing is forbidden, across every
// ProbingSession created against any Host. There is exactly one real LP
// solver underneath any Host, so the lock is process-wide.
var probingExclusive sync.Mutex

// ProbingSession is a scoped acquisition of the host's probing mode.
// Open starts probing and pushes one probing node; Close ends probing
// unconditionally. Every exit path must route through Close exactly
// once, which is why the session's Close is idempotent and callers are
// expected to defer it immediately after a successful Open.
type ProbingSession struct {
	host   ProbingHost
	log    *zap.Logger
	opened bool
	closed bool
}

// OpenProbingSession acquires the process-wide probing-exclusive lock,
// starts probing on host, and pushes a new probing node. It returns
// ProbingExclusive if another session is already open anywhere in this
// process. Callers must call Close exactly once, typically via defer.
func OpenProbingSession(host ProbingHost, log *zap.Logger) (*ProbingSession, error) {
	if log == nil {
		log = zap.NewNop()
	}
	if !probingExclusive.TryLock() {
		return nil, ProbingExclusive
	}
	if err := host.StartProbing(); err != nil {
		probingExclusive.Unlock()
		return nil, NewLpError(err)
	}
	host.NewProbingNode()
	log.Debug("probing session opened")
	return &ProbingSession{host: host, log: log, opened: true}, nil
}

// SetBound changes a bound within the probing node.
func (s *ProbingSession) SetBound(v OriginalVariableID, kind BoundKind, value float64) {
	switch kind {
	case Lower:
		s.host.ChgVarLbProbing(v, value)
	case Upper:
		s.host.ChgVarUbProbing(v, value)
	}
}

// Propagate runs host propagation inside the probing node and reports
// cutoff on infeasibility.
func (s *ProbingSession) Propagate(ctx context.Context) (cutoff bool, err error) {
	cutoff, err = s.host.PropagateProbing(ctx)
	if err != nil {
		return false, NewLpError(err)
	}
	return cutoff, nil
}

// SolveRelaxation solves the probing node's relaxation, optionally with
// pricing. A caller whose ProbeResult reports ProbeError must treat the
// probe as inconclusive: neither direction's bound is valid, and strong
// branching for the current candidate must be abandoned.
func (s *ProbingSession) SolveRelaxation(ctx context.Context, withPricing bool, iterLimit int) ProbeResult {
	return s.host.PerformProbing(ctx, withPricing, iterLimit)
}

// SnapshotBounds captures the post-propagation local bounds of the given
// watched variables.
func (s *ProbingSession) SnapshotBounds(vars []OriginalVariableID, lbOf, ubOf func(OriginalVariableID) float64) map[OriginalVariableID][2]float64 {
	out := make(map[OriginalVariableID][2]float64, len(vars))
	for _, v := range vars {
		out[v] = [2]float64{lbOf(v), ubOf(v)}
	}
	return out
}

// Close ends probing, releasing every change made inside the session,
// and releases the process-wide exclusive lock. Close is idempotent: a
// second call is a no-op.
func (s *ProbingSession) Close() {
	if s == nil || s.closed {
		return
	}
	s.closed = true
	if s.opened {
		s.host.EndProbing()
		s.log.Debug("probing session closed")
	}
	probingExclusive.Unlock()
}
