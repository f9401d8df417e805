package dwbranch

import "context"

// OriginalVariableID and MasterVariableID index into the host's own
// variable tables. The branching core never allocates or interprets
// these beyond using them as map/slice keys; identity and lifetime
// belong to the host.
type OriginalVariableID int
type MasterVariableID int

// NodeID identifies a B&B node as the host's tree sees it.
type NodeID int64

// VarType mirrors the host's classification of an original variable.
type VarType int

const (
	VarContinuous VarType = iota
	VarInteger
	VarBinary
)

// BoundKind distinguishes which side of a variable's range a bound
// change applies to.
type BoundKind int

const (
	Lower BoundKind = iota
	Upper
)

// ProbeStatus is the outcome of a single relaxation solve inside a
// probing node.
type ProbeStatus int

const (
	ProbeSolved ProbeStatus = iota
	ProbeError
	ProbeCutoff
)

// ProbeResult is what a single relaxation solve inside a probing node
// reports back.
type ProbeResult struct {
	Objective      float64
	ObjectiveValid bool
	Status         ProbeStatus
	LPIterations   int
	// CutoffPropagation is true when host propagation alone proved the
	// probing node infeasible (before any LP/pricing solve ran).
	CutoffPropagation bool
	// CutoffPricing is true when infeasibility was established
	// specifically by the priced LP (pricing found no improving column
	// and the restricted master is infeasible), as distinct from a
	// bound propagation cutoff. The two signals are tracked separately
	// rather than folded into one flag.
	CutoffPricing bool
}

// Infeasible reports whether this probe result should be treated as a
// cut branch, combining both cutoff signals.
func (r ProbeResult) Infeasible() bool {
	return r.Status == ProbeCutoff || r.CutoffPropagation || r.CutoffPricing
}

// CandidateInfo is what the host reports for one fractional candidate:
// its current LP value and the statistics CandidateScorer combines.
type CandidateInfo struct {
	Var              OriginalVariableID
	LPValue          float64
	FractionalPart   float64
	PseudocostScore  float64
	ConflictScore    float64
	ConflictLenScore float64
	InferenceScore   float64
	CutoffScore      float64
}

// Host is the full set of operations the branching core consumes from
// the LP solver, pricer, and B&B tree. It is intentionally an
// interface: the real implementation is the host solver, out of scope
// here; internal/fakehost provides an in-memory implementation used by
// tests and cmd/branchdemo.
type Host interface {
	NodeHost
	VariableHost
	ProbingHost
	MasterHost
	ConstraintHost
}

// NodeHost exposes the B&B tree and node bounds.
type NodeHost interface {
	FocusNode() NodeID
	FocusNodeNumber() int64
	Parent(n NodeID) (NodeID, bool)
	Lowerbound(n NodeID) float64
	Upperbound() float64
	CreateChild(estimate float64) NodeID
	AddConsNode(n NodeID, consHandle ConsHandle)
	NodeIsInfeasible(n NodeID) bool
	ChgVarLbNode(n NodeID, v OriginalVariableID, value float64)
	ChgVarUbNode(n NodeID, v OriginalVariableID, value float64)
}

// VariableHost exposes branching candidates and per-variable queries.
type VariableHost interface {
	ExternBranchCands() []CandidateInfo
	LPBranchCands() []CandidateInfo
	PseudoBranchCands() []CandidateInfo

	VarLbLocal(v OriginalVariableID) float64
	VarUbLocal(v OriginalVariableID) float64
	VarLbGlobal(v OriginalVariableID) float64
	VarUbGlobal(v OriginalVariableID) float64
	VarType(v OriginalVariableID) VarType
	IsIntegral(value float64) bool
	SolVal(v OriginalVariableID) float64

	VarPseudocostScore(v OriginalVariableID, solVal float64) float64
	VarConflictScore(v OriginalVariableID) float64
	VarConflictlengthScore(v OriginalVariableID) float64
	VarAvgInferenceScore(v OriginalVariableID) float64
	VarAvgCutoffScore(v OriginalVariableID) float64
	BranchScore(down, up float64) float64
	UpdateVarPseudocost(v OriginalVariableID, solValDelta, objDelta float64, weight float64)
}

// ProbingHost exposes the scoped probing-mode API.
type ProbingHost interface {
	StartProbing() error
	NewProbingNode()
	ChgVarLbProbing(v OriginalVariableID, value float64)
	ChgVarUbProbing(v OriginalVariableID, value float64)
	PropagateProbing(ctx context.Context) (cutoff bool, err error)
	PerformProbing(ctx context.Context, withPricing bool, iterLimit int) ProbeResult
	EndProbing()
}

// BlockIndex identifies a pricing block; -1 means "directly transferred
// to the master" (no pricing subproblem).
type BlockIndex int

const DirectBlock BlockIndex = -1

// MasterHost exposes the master/original variable mapping and convexity
// data.
type MasterHost interface {
	MasterVarBlock(m MasterVariableID) BlockIndex
	MasterVarIsRay(m MasterVariableID) bool
	MasterVarOriginals(m MasterVariableID) []OriginalVariableID
	MasterVarCoeff(m MasterVariableID, v OriginalVariableID) (float64, bool)
	MasterVarLPValue(m MasterVariableID) float64

	OriginalVarBlock(v OriginalVariableID) BlockIndex
	OriginalVarIsLinking(v OriginalVariableID) bool
	OriginalVarPricingImages(v OriginalVariableID) []OriginalVariableID

	IsMasterSetCovering() bool
	IsMasterSetPartitioning() bool
	NIdenticalBlocks(b BlockIndex) int

	// MasterVariablesInBlock returns every master variable currently
	// priced for block b, used by generic-branching separation and by
	// propagation of Ryan-Foster same/differ constraints.
	MasterVariablesInBlock(b BlockIndex) []MasterVariableID
}

// ConsHandle is an opaque reference to a constraint created through
// ConstraintHost. The core never inspects it beyond passing it back.
type ConsHandle interface{}

// ConstraintHost exposes constraint creation and removal on the master
// problem.
type ConstraintHost interface {
	CreateConsLinear(name string, lhs, rhs float64) ConsHandle
	AddCoefLinear(c ConsHandle, m MasterVariableID, coef float64)
	AddCons(c ConsHandle)
	DelCons(c ConsHandle)
	ReleaseCons(c ConsHandle)
	FindCons(name string) (ConsHandle, bool)
}
