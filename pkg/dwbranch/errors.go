package dwbranch

import (
	"fmt"

	"github.com/pkg/errors"
)

// Result is the outcome code a branching call hands back to the host. It
// is distinct from Go's error: a branching call that could not select
// anything still returns a nil error alongside a Result describing why,
// because "did not run" and "cut off" are routine outcomes the host's
// search loop must react to, not failures of this package.
type Result int

const (
	// ResultBranched means children were produced and committed.
	ResultBranched Result = iota
	// ResultCutoff means the current node was proven infeasible.
	ResultCutoff
	// ResultReducedDomain means probing tightened bounds on the current
	// node without branching; the host should re-solve the LP.
	ResultReducedDomain
	// ResultDidNotRun means no decision could be produced this call
	// (no candidate, LP error, or the host signalled stop); the host
	// should try another rule.
	ResultDidNotRun
)

func (r Result) String() string {
	switch r {
	case ResultBranched:
		return "branched"
	case ResultCutoff:
		return "cutoff"
	case ResultReducedDomain:
		return "reduced-domain"
	case ResultDidNotRun:
		return "did-not-run"
	default:
		return fmt.Sprintf("Result(%d)", int(r))
	}
}

// Contradicts is returned by BoundChangeLedger.Add when a new bound
// would make the ledger's stored range for a variable empty (lb > ub).
// It proves the current node globally infeasible; the caller must cut
// the node off.
type Contradicts struct {
	Var OriginalVariableID
	Lb  float64
	Ub  float64
}

func (e *Contradicts) Error() string {
	return fmt.Sprintf("dwbranch: bound change ledger: variable %d has contradictory bounds [%g, %g]", e.Var, e.Lb, e.Ub)
}

// NoCandidate is returned when a branching rule finds nothing it can
// branch on: every candidate was continuous, filtered out, or the
// candidate set was empty. Surfaced to the host as ResultDidNotRun.
type NoCandidate struct {
	Reason string
}

func (e *NoCandidate) Error() string {
	if e.Reason == "" {
		return "dwbranch: no branching candidate available"
	}
	return "dwbranch: no branching candidate available: " + e.Reason
}

// LpError wraps a probing LP that did not converge. It cancels the
// current candidate; if it recurs across every remaining candidate the
// caller surfaces ResultDidNotRun for the whole call.
type LpError struct {
	cause error
}

// NewLpError wraps cause (which may be nil) as an LpError.
func NewLpError(cause error) *LpError {
	return &LpError{cause: errors.WithStack(cause)}
}

func (e *LpError) Error() string {
	if e.cause == nil {
		return "dwbranch: probing LP did not converge"
	}
	return "dwbranch: probing LP did not converge: " + e.cause.Error()
}

func (e *LpError) Unwrap() error { return e.cause }

// Stopped indicates the host reported a time limit or user interrupt
// during phase execution. The engine must release all intermediate
// buffers and commit no partial decision.
type Stopped struct{}

func (e *Stopped) Error() string { return "dwbranch: host signalled stop" }

// ContradictoryBound indicates that NodeBranchStack activation would
// install a bound contradicting the variable's current local bound
// (lb > ub). Surfaced as "cut off".
type ContradictoryBound struct {
	Var OriginalVariableID
}

func (e *ContradictoryBound) Error() string {
	return fmt.Sprintf("dwbranch: contradictory bound on variable %d during activation", e.Var)
}

// MalformedDecision signals an internal consistency check on a
// DecisionRecord failed. This is fatal and never recovered by the
// calling rule; it is the caller's responsibility to abort the solver
// rather than retry.
type MalformedDecision struct {
	Reason string
}

func (e *MalformedDecision) Error() string {
	return "dwbranch: malformed decision record: " + e.Reason
}

// ProbingExclusive is returned by OpenProbingSession when a probing
// session is already active: at most one session may exist per process
// and nested probing is forbidden.
var ProbingExclusive = errors.New("dwbranch: a probing session is already open")
