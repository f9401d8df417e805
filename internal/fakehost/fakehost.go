// Package fakehost is an in-memory implementation of dwbranch.Host
// against a toy master/pricing model, used by the branching tests and by
// cmd/branchdemo. The real host is an LP solver and column generator;
// this double keeps the immutable parts (variables, columns) separate
// from the per-node mutable state (local bound overrides) so tests can
// observe exactly what the branching core changed.
package fakehost

import (
	"context"
	"fmt"

	"github.com/gitrdm/dwbranch/pkg/dwbranch"
)

// OriginalVar is one toy original-problem variable.
type OriginalVar struct {
	Type          dwbranch.VarType
	LbLocal       float64
	UbLocal       float64
	LbGlobal      float64
	UbGlobal      float64
	Block         dwbranch.BlockIndex
	Linking       bool
	PricingImages []dwbranch.OriginalVariableID

	SolValue         float64
	PseudocostScore  float64
	ConflictScore    float64
	ConflictLenScore float64
	InferenceScore   float64
	CutoffScore      float64
}

// MasterVar is one toy master-problem column.
type MasterVar struct {
	Block   dwbranch.BlockIndex
	IsRay   bool
	Coefs   map[dwbranch.OriginalVariableID]float64
	LPValue float64
}

// node is one B&B node's local bound overrides, layered on top of the
// global bounds carried by OriginalVar.
type node struct {
	parent       dwbranch.NodeID
	haveParent   bool
	lowerbound   float64
	infeasible   bool
	lbOverride   map[dwbranch.OriginalVariableID]float64
	ubOverride   map[dwbranch.OriginalVariableID]float64
	consAttached []dwbranch.ConsHandle
}

// cons is one toy linear constraint created through ConstraintHost.
type cons struct {
	name     string
	lhs, rhs float64
	coefs    map[dwbranch.MasterVariableID]float64
	active   bool
	refs     int
}

// ProbeScript lets a test script exactly what PerformProbing should
// return, given the probing-local bounds in effect, instead of FakeHost
// trying to simulate LP behavior.
type ProbeScript func(ctx context.Context, withPricing bool, iterLimit int, lb, ub map[dwbranch.OriginalVariableID][2]float64) dwbranch.ProbeResult

// FakeHost is a hand-written (not generated) in-memory implementation of
// dwbranch.Host against a toy master/pricing model.
type FakeHost struct {
	origVars   map[dwbranch.OriginalVariableID]*OriginalVar
	masterVars map[dwbranch.MasterVariableID]*MasterVar
	nodes      map[dwbranch.NodeID]*node
	consByName map[string]*cons

	focus      dwbranch.NodeID
	nextNode   dwbranch.NodeID
	upperbound float64

	externCands []dwbranch.CandidateInfo
	lpCands     []dwbranch.CandidateInfo
	pseudoCands []dwbranch.CandidateInfo

	feasTol float64

	probing        bool
	probingLb      map[dwbranch.OriginalVariableID]float64
	probingUb      map[dwbranch.OriginalVariableID]float64
	probeCallCount int

	// Probe is consulted by PerformProbing; if nil, PerformProbing reports
	// ProbeSolved with Objective 0 unconditionally (a trivially feasible
	// probe), which is enough for tests that only care about bound
	// bookkeeping rather than branching scores.
	Probe ProbeScript
	// PropagateCutoff, if set, makes PropagateProbing report cutoff on its
	// next call (consumed once).
	PropagateCutoff bool

	isSetCovering     bool
	isSetPartitioning bool
	identicalBlocks   map[dwbranch.BlockIndex]int

	pseudocostUpdates []PseudocostUpdate
}

// PseudocostUpdate records one UpdateVarPseudocost call, for assertions.
type PseudocostUpdate struct {
	Var         dwbranch.OriginalVariableID
	SolValDelta float64
	ObjDelta    float64
	Weight      float64
}

// New constructs an empty FakeHost rooted at node 0.
func New() *FakeHost {
	h := &FakeHost{
		origVars:        make(map[dwbranch.OriginalVariableID]*OriginalVar),
		masterVars:      make(map[dwbranch.MasterVariableID]*MasterVar),
		nodes:           make(map[dwbranch.NodeID]*node),
		consByName:      make(map[string]*cons),
		feasTol:         1e-6,
		identicalBlocks: make(map[dwbranch.BlockIndex]int),
		upperbound:      1e20,
	}
	h.nodes[0] = &node{lowerbound: 0}
	h.nextNode = 1
	return h
}

// --- test-construction helpers (not part of dwbranch.Host) ---

// AddOriginalVar registers v with the given state.
func (h *FakeHost) AddOriginalVar(v dwbranch.OriginalVariableID, ov OriginalVar) {
	cp := ov
	h.origVars[v] = &cp
}

// AddMasterVar registers column m.
func (h *FakeHost) AddMasterVar(m dwbranch.MasterVariableID, mv MasterVar) {
	cp := mv
	if cp.Coefs == nil {
		cp.Coefs = map[dwbranch.OriginalVariableID]float64{}
	}
	h.masterVars[m] = &cp
}

// SetCandidates configures what ExternBranchCands/LPBranchCands/
// PseudoBranchCands return: all three are set to cands.
func (h *FakeHost) SetCandidates(cands []dwbranch.CandidateInfo) {
	h.externCands = cands
	h.lpCands = cands
	h.pseudoCands = cands
}

// SetMasterType configures IsMasterSetCovering/IsMasterSetPartitioning.
func (h *FakeHost) SetMasterType(covering, partitioning bool) {
	h.isSetCovering = covering
	h.isSetPartitioning = partitioning
}

// SetIdenticalBlocks configures NIdenticalBlocks(b).
func (h *FakeHost) SetIdenticalBlocks(b dwbranch.BlockIndex, n int) {
	h.identicalBlocks[b] = n
}

// FocusNodeID exposes the current focus node to test code.
func (h *FakeHost) FocusNodeID() dwbranch.NodeID { return h.focus }

// SetFocus moves the toy host's focus to n (simulating the host
// descending the B&B tree).
func (h *FakeHost) SetFocus(n dwbranch.NodeID) { h.focus = n }

// PseudocostUpdates returns every UpdateVarPseudocost call recorded so
// far, for assertions.
func (h *FakeHost) PseudocostUpdates() []PseudocostUpdate {
	return append([]PseudocostUpdate(nil), h.pseudocostUpdates...)
}

// --- NodeHost ---

func (h *FakeHost) FocusNode() dwbranch.NodeID { return h.focus }
func (h *FakeHost) FocusNodeNumber() int64     { return int64(h.focus) }

func (h *FakeHost) Parent(n dwbranch.NodeID) (dwbranch.NodeID, bool) {
	nd, ok := h.nodes[n]
	if !ok || !nd.haveParent {
		return 0, false
	}
	return nd.parent, true
}

func (h *FakeHost) Lowerbound(n dwbranch.NodeID) float64 {
	nd, ok := h.nodes[n]
	if !ok {
		return 0
	}
	return nd.lowerbound
}

func (h *FakeHost) Upperbound() float64 { return h.upperbound }

// SetUpperbound lets a test script the global upper bound used to derive
// the node gap passed into strong/reliability branching.
func (h *FakeHost) SetUpperbound(v float64) { h.upperbound = v }

func (h *FakeHost) CreateChild(estimate float64) dwbranch.NodeID {
	id := h.nextNode
	h.nextNode++
	h.nodes[id] = &node{parent: h.focus, haveParent: true, lowerbound: estimate}
	return id
}

func (h *FakeHost) AddConsNode(n dwbranch.NodeID, c dwbranch.ConsHandle) {
	nd, ok := h.nodes[n]
	if !ok {
		return
	}
	nd.consAttached = append(nd.consAttached, c)
}

func (h *FakeHost) NodeIsInfeasible(n dwbranch.NodeID) bool {
	nd, ok := h.nodes[n]
	return ok && nd.infeasible
}

// MarkInfeasible lets a test script a node cutoff directly.
func (h *FakeHost) MarkInfeasible(n dwbranch.NodeID) {
	if nd, ok := h.nodes[n]; ok {
		nd.infeasible = true
	}
}

func (h *FakeHost) ChgVarLbNode(n dwbranch.NodeID, v dwbranch.OriginalVariableID, value float64) {
	nd := h.nodes[n]
	if nd.lbOverride == nil {
		nd.lbOverride = map[dwbranch.OriginalVariableID]float64{}
	}
	nd.lbOverride[v] = value
	if n == h.focus {
		h.origVars[v].LbLocal = value
	}
}

func (h *FakeHost) ChgVarUbNode(n dwbranch.NodeID, v dwbranch.OriginalVariableID, value float64) {
	nd := h.nodes[n]
	if nd.ubOverride == nil {
		nd.ubOverride = map[dwbranch.OriginalVariableID]float64{}
	}
	nd.ubOverride[v] = value
	if n == h.focus {
		h.origVars[v].UbLocal = value
	}
}

// --- VariableHost ---

func (h *FakeHost) ExternBranchCands() []dwbranch.CandidateInfo { return h.externCands }
func (h *FakeHost) LPBranchCands() []dwbranch.CandidateInfo     { return h.lpCands }
func (h *FakeHost) PseudoBranchCands() []dwbranch.CandidateInfo { return h.pseudoCands }

func (h *FakeHost) VarLbLocal(v dwbranch.OriginalVariableID) float64 {
	if h.probing {
		if lb, ok := h.probingLb[v]; ok {
			return lb
		}
	}
	return h.origVars[v].LbLocal
}

func (h *FakeHost) VarUbLocal(v dwbranch.OriginalVariableID) float64 {
	if h.probing {
		if ub, ok := h.probingUb[v]; ok {
			return ub
		}
	}
	return h.origVars[v].UbLocal
}

func (h *FakeHost) VarLbGlobal(v dwbranch.OriginalVariableID) float64 { return h.origVars[v].LbGlobal }
func (h *FakeHost) VarUbGlobal(v dwbranch.OriginalVariableID) float64 { return h.origVars[v].UbGlobal }
func (h *FakeHost) VarType(v dwbranch.OriginalVariableID) dwbranch.VarType {
	return h.origVars[v].Type
}

func (h *FakeHost) IsIntegral(value float64) bool {
	f := value - float64(int64(value))
	if f > 0.5 {
		f = 1 - f
	}
	return f <= h.feasTol
}

func (h *FakeHost) SolVal(v dwbranch.OriginalVariableID) float64 { return h.origVars[v].SolValue }

func (h *FakeHost) VarPseudocostScore(v dwbranch.OriginalVariableID, solVal float64) float64 {
	return h.origVars[v].PseudocostScore
}
func (h *FakeHost) VarConflictScore(v dwbranch.OriginalVariableID) float64 {
	return h.origVars[v].ConflictScore
}
func (h *FakeHost) VarConflictlengthScore(v dwbranch.OriginalVariableID) float64 {
	return h.origVars[v].ConflictLenScore
}
func (h *FakeHost) VarAvgInferenceScore(v dwbranch.OriginalVariableID) float64 {
	return h.origVars[v].InferenceScore
}
func (h *FakeHost) VarAvgCutoffScore(v dwbranch.OriginalVariableID) float64 {
	return h.origVars[v].CutoffScore
}

// BranchScore combines the two directional gains with the product rule,
// clamping each gain to a small minimum first.
func (h *FakeHost) BranchScore(down, up float64) float64 {
	const minGain = 1e-6
	if down < minGain {
		down = minGain
	}
	if up < minGain {
		up = minGain
	}
	return down * up
}

func (h *FakeHost) UpdateVarPseudocost(v dwbranch.OriginalVariableID, solValDelta, objDelta float64, weight float64) {
	h.pseudocostUpdates = append(h.pseudocostUpdates, PseudocostUpdate{
		Var: v, SolValDelta: solValDelta, ObjDelta: objDelta, Weight: weight,
	})
}

// --- ProbingHost ---

func (h *FakeHost) StartProbing() error {
	h.probing = true
	h.probingLb = map[dwbranch.OriginalVariableID]float64{}
	h.probingUb = map[dwbranch.OriginalVariableID]float64{}
	h.probeCallCount = 0
	return nil
}

func (h *FakeHost) NewProbingNode() {}

func (h *FakeHost) ChgVarLbProbing(v dwbranch.OriginalVariableID, value float64) {
	h.probingLb[v] = value
}

func (h *FakeHost) ChgVarUbProbing(v dwbranch.OriginalVariableID, value float64) {
	h.probingUb[v] = value
}

func (h *FakeHost) PropagateProbing(ctx context.Context) (bool, error) {
	if h.PropagateCutoff {
		h.PropagateCutoff = false
		return true, nil
	}
	for v, lb := range h.probingLb {
		if ub, ok := h.probingUb[v]; ok && lb > ub {
			return true, nil
		}
		if lb > h.origVars[v].UbLocal {
			return true, nil
		}
	}
	for v, ub := range h.probingUb {
		if ub < h.origVars[v].LbLocal {
			return true, nil
		}
	}
	return false, nil
}

func (h *FakeHost) PerformProbing(ctx context.Context, withPricing bool, iterLimit int) dwbranch.ProbeResult {
	h.probeCallCount++
	if h.Probe != nil {
		lbub := make(map[dwbranch.OriginalVariableID][2]float64, len(h.origVars))
		for v := range h.origVars {
			lbub[v] = [2]float64{h.VarLbLocal(v), h.VarUbLocal(v)}
		}
		return h.Probe(ctx, withPricing, iterLimit, lbub, lbub)
	}
	return dwbranch.ProbeResult{Status: dwbranch.ProbeSolved, ObjectiveValid: true, Objective: 0}
}

func (h *FakeHost) EndProbing() {
	h.probing = false
	h.probingLb = nil
	h.probingUb = nil
}

// --- MasterHost ---

func (h *FakeHost) MasterVarBlock(m dwbranch.MasterVariableID) dwbranch.BlockIndex {
	return h.masterVars[m].Block
}
func (h *FakeHost) MasterVarIsRay(m dwbranch.MasterVariableID) bool { return h.masterVars[m].IsRay }
func (h *FakeHost) MasterVarOriginals(m dwbranch.MasterVariableID) []dwbranch.OriginalVariableID {
	mv := h.masterVars[m]
	out := make([]dwbranch.OriginalVariableID, 0, len(mv.Coefs))
	for v := range mv.Coefs {
		out = append(out, v)
	}
	return out
}
func (h *FakeHost) MasterVarCoeff(m dwbranch.MasterVariableID, v dwbranch.OriginalVariableID) (float64, bool) {
	c, ok := h.masterVars[m].Coefs[v]
	return c, ok
}
func (h *FakeHost) MasterVarLPValue(m dwbranch.MasterVariableID) float64 {
	return h.masterVars[m].LPValue
}

func (h *FakeHost) OriginalVarBlock(v dwbranch.OriginalVariableID) dwbranch.BlockIndex {
	return h.origVars[v].Block
}
func (h *FakeHost) OriginalVarIsLinking(v dwbranch.OriginalVariableID) bool {
	return h.origVars[v].Linking
}
func (h *FakeHost) OriginalVarPricingImages(v dwbranch.OriginalVariableID) []dwbranch.OriginalVariableID {
	return h.origVars[v].PricingImages
}

func (h *FakeHost) IsMasterSetCovering() bool     { return h.isSetCovering }
func (h *FakeHost) IsMasterSetPartitioning() bool { return h.isSetPartitioning }
func (h *FakeHost) NIdenticalBlocks(b dwbranch.BlockIndex) int { return h.identicalBlocks[b] }

func (h *FakeHost) MasterVariablesInBlock(b dwbranch.BlockIndex) []dwbranch.MasterVariableID {
	var out []dwbranch.MasterVariableID
	for id, mv := range h.masterVars {
		if mv.Block == b {
			out = append(out, id)
		}
	}
	return out
}

// --- ConstraintHost ---

func (h *FakeHost) CreateConsLinear(name string, lhs, rhs float64) dwbranch.ConsHandle {
	c := &cons{name: name, lhs: lhs, rhs: rhs, coefs: map[dwbranch.MasterVariableID]float64{}}
	return c
}

func (h *FakeHost) AddCoefLinear(c dwbranch.ConsHandle, m dwbranch.MasterVariableID, coef float64) {
	c.(*cons).coefs[m] = coef
}

func (h *FakeHost) AddCons(c dwbranch.ConsHandle) {
	cc := c.(*cons)
	cc.active = true
	cc.refs++
	h.consByName[cc.name] = cc
}

func (h *FakeHost) DelCons(c dwbranch.ConsHandle) {
	c.(*cons).active = false
}

func (h *FakeHost) ReleaseCons(c dwbranch.ConsHandle) {
	cc := c.(*cons)
	cc.refs--
	if cc.refs <= 0 {
		delete(h.consByName, cc.name)
	}
}

func (h *FakeHost) FindCons(name string) (dwbranch.ConsHandle, bool) {
	c, ok := h.consByName[name]
	if !ok {
		return nil, false
	}
	return c, true
}

// ConsActive reports whether the named constraint is currently active, for
// test assertions.
func (h *FakeHost) ConsActive(name string) bool {
	c, ok := h.consByName[name]
	return ok && c.active
}

// ConsCoef returns the stored coefficient of m in the named constraint.
func (h *FakeHost) ConsCoef(name string, m dwbranch.MasterVariableID) (float64, bool) {
	c, ok := h.consByName[name]
	if !ok {
		return 0, false
	}
	v, ok := c.coefs[m]
	return v, ok
}

// String renders a one-line debug summary, useful in test failure output.
func (h *FakeHost) String() string {
	return fmt.Sprintf("FakeHost{vars=%d, masterVars=%d, nodes=%d, cons=%d}",
		len(h.origVars), len(h.masterVars), len(h.nodes), len(h.consByName))
}

var _ dwbranch.Host = (*FakeHost)(nil)
