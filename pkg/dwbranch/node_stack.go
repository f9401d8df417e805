package dwbranch

import (
	"fmt"
	"math"

	"go.uber.org/zap"
)

// Handle indexes a NodeBranchStack entry. Master-side and origin-side
// entries are not linked by pointer: a Handle is a plain arena index, so
// destruction never has to unwind a reference cycle. The B&B tree (the
// host) owns the sweep; NodeBranchStack never frees a slot on its own
// initiative.
type Handle int

// NoHandle is the zero-value-safe sentinel for "no such entry" (e.g. the
// root's parent).
const NoHandle Handle = -1

// PropagateOutcome is what NodeBranchStack.Propagate reports. It is a
// distinct type from Result: propagate's DidNotFind means "nothing
// further to deduce from this decision", not "the branching rule could
// not run".
type PropagateOutcome int

const (
	PropagateDidNotFind PropagateOutcome = iota
	PropagateReducedDom
	PropagateCutoff
)

func (o PropagateOutcome) String() string {
	switch o {
	case PropagateCutoff:
		return "cutoff"
	case PropagateReducedDom:
		return "reduced-dom"
	default:
		return "did-not-find"
	}
}

// stackEntry is one NodeBranchStack arena slot.
type stackEntry struct {
	node       NodeID
	parent     Handle
	children   []Handle
	decision   *DecisionRecord
	active     bool
	destroyed  bool
	fixedCons  []ConsHandle // column-fixing constraints created by Propagate (Ryan-Foster)
	originNode NodeID       // mirror node in the original problem's tree
	haveOrigin bool
}

// NodeBranchStack is the per-node constraint carrier: it pairs each B&B
// node with its branching decision, activates/deactivates the induced
// master constraint when the host enters/leaves the node, propagates
// variable fixings implied by the decision, and preserves identity of
// constraints across the master and original problems.
type NodeBranchStack struct {
	entries   []stackEntry
	byNode    map[NodeID]Handle
	active    []Handle // LIFO stack of currently-active handles
	generic   *GenericBranchingEngine
	cons      ConstraintHost
	master    MasterHost
	nodeHost  NodeHost
	boundHost NodeBoundSetter
	log       *zap.Logger
	nextFixID int
}

// NewNodeBranchStack constructs an empty stack. generic may be nil if
// the stack will never carry GenericDecision records (e.g. a pure
// Ryan-Foster or single-variable deployment).
func NewNodeBranchStack(cons ConstraintHost, master MasterHost, nodeHost NodeHost, boundHost NodeBoundSetter, generic *GenericBranchingEngine, log *zap.Logger) *NodeBranchStack {
	return &NodeBranchStack{
		byNode:    make(map[NodeID]Handle),
		cons:      cons,
		master:    master,
		nodeHost:  nodeHost,
		boundHost: boundHost,
		generic:   generic,
		log:       orNop(log),
	}
}

// Create allocates a new entry carrying decision, owned exclusively by
// node, linked under parent (NoHandle at the root). It validates the
// decision before allocating; a validation failure is a
// *MalformedDecision and is never recovered by the caller.
func (s *NodeBranchStack) Create(node NodeID, parent Handle, decision *DecisionRecord, vars VariableHost) (Handle, error) {
	if err := decision.Validate(vars); err != nil {
		return NoHandle, err
	}
	h := Handle(len(s.entries))
	s.entries = append(s.entries, stackEntry{
		node:     node,
		parent:   parent,
		decision: decision,
	})
	s.byNode[node] = h
	if parent != NoHandle {
		p := &s.entries[parent]
		p.children = append(p.children, h)
	}
	s.log.Debug("branch stack entry created", zap.Int("handle", int(h)), zap.Int64("node", int64(node)))
	return h, nil
}

func (s *NodeBranchStack) entry(h Handle) *stackEntry {
	return &s.entries[h]
}

// SetOriginMirror records the corresponding node in the original
// problem's branch tree, so that the master-side and origin-side trees
// stay structurally synchronous. Both sides branch on the same
// DecisionRecord, so remembering the origin-side node id is all the
// linkage needed.
func (s *NodeBranchStack) SetOriginMirror(h Handle, originNode NodeID) {
	e := s.entry(h)
	e.originNode = originNode
	e.haveOrigin = true
}

// OriginMirror returns the origin-side node mirroring h, if one was set.
func (s *NodeBranchStack) OriginMirror(h Handle) (NodeID, bool) {
	e := s.entry(h)
	return e.originNode, e.haveOrigin
}

// inducedConsName gives every materialized induced constraint a name
// derived from the owning node, so FindCons(name) round-trips and
// repeat activation of the same handle is idempotent.
func inducedConsName(kind string, node NodeID) string {
	return fmt.Sprintf("dwbranch_%s_n%d", kind, node)
}

// Activate materializes the induced master constraint (if not already
// materialized), installs the variable bound changes the decision
// implies, and pushes h onto the active stack. It fails with
// *ContradictoryBound if the implied bound change would make the node
// infeasible (lb > ub); the caller must then cut the node off rather
// than retry.
func (s *NodeBranchStack) Activate(h Handle) error {
	e := s.entry(h)
	if e.destroyed {
		return &MalformedDecision{Reason: "activate called on a destroyed branch stack entry"}
	}
	if e.active {
		return nil // re-entrant activate is harmless
	}

	switch e.decision.Kind {
	case KindSingleVariable:
		sv := e.decision.Single
		switch sv.Direction {
		case Down:
			floor := float64(int64(sv.Value))
			if s.boundHost.VarLbLocal(sv.Var) > floor {
				return &ContradictoryBound{Var: sv.Var}
			}
			s.nodeHost.ChgVarUbNode(e.node, sv.Var, floor)
		case Up:
			ceil := float64(int64(sv.Value)) + 1
			if s.boundHost.VarUbLocal(sv.Var) < ceil {
				return &ContradictoryBound{Var: sv.Var}
			}
			s.nodeHost.ChgVarLbNode(e.node, sv.Var, ceil)
		}

	case KindRyanFoster:
		rf := e.decision.RyanFoster
		if rf.PairingCons == nil {
			// PairingCons is a named placeholder handle identifying the
			// same/differ decision to the external pricer, which enforces
			// the pairing inside its subproblem; no coefficients are
			// attached here. Master-side enforcement is the column
			// fixing done by Propagate.
			name := inducedConsName(fmt.Sprintf("rf_%d_%d", rf.Var1, rf.Var2), e.node)
			c := s.cons.CreateConsLinear(name, 0, 0)
			s.cons.AddCons(c)
			rf.PairingCons = c
		}

	case KindGeneric:
		if s.generic == nil {
			return &MalformedDecision{Reason: "generic decision activated with no GenericBranchingEngine wired"}
		}
		name := inducedConsName(fmt.Sprintf("generic_b%d", e.decision.Generic.Block), e.node)
		s.generic.BranchActiveMasterGeneric(s.cons, e.decision.Generic, name)
	}

	e.active = true
	s.active = append(s.active, h)
	s.log.Debug("branch stack entry activated", zap.Int("handle", int(h)))
	return nil
}

// Deactivate removes the induced master constraint from the local active
// set (generic decisions) and the column-fixing constraints added by
// Propagate (Ryan-Foster decisions). It does not undo the bound change a
// single-variable decision pushed onto its node on activation; that
// change stays on the node. Deactivation is LIFO: Deactivate panics if h is not the current top of
// the active stack, since that signals the host broke the
// activate/deactivate pairing guarantee.
func (s *NodeBranchStack) Deactivate(h Handle) {
	e := s.entry(h)
	if !e.active {
		return
	}
	if len(s.active) == 0 || s.active[len(s.active)-1] != h {
		panic("dwbranch: NodeBranchStack.Deactivate called out of LIFO order")
	}
	s.active = s.active[:len(s.active)-1]

	switch e.decision.Kind {
	case KindGeneric:
		if s.generic != nil {
			s.generic.BranchDeactiveMasterGeneric(s.cons, e.decision.Generic)
		}
	case KindRyanFoster:
		// The pairing constraint's identity persists across re-entry;
		// only the per-visit column fixings from Propagate are torn
		// down here.
		for _, c := range e.fixedCons {
			s.cons.DelCons(c)
		}
		e.fixedCons = nil
	case KindSingleVariable:
		// Bound changes were pushed directly onto the node's own local
		// bounds; those belong to the node itself and are released when
		// the host discards the node, not here.
	}

	e.active = false
	s.log.Debug("branch stack entry deactivated", zap.Int("handle", int(h)))
}

// Propagate deduces variable fixings from the decision.
//
//   - Ryan-Foster: iterate master variables in the relevant block; any
//     column whose coefficients on Var1/Var2 contradict the same/differ
//     constraint gets fixed to zero by adding a `m <= 0` linear
//     constraint (the narrowest operation ConstraintHost exposes that
//     achieves "fix its upper bound to 0" without a dedicated
//     master-variable-bound primitive).
//   - Generic: no additional propagation beyond the induced master
//     constraint already materialized by Activate.
//   - SingleVariable: no propagation beyond the bound change already
//     installed by Activate.
func (s *NodeBranchStack) Propagate(h Handle) (PropagateOutcome, error) {
	e := s.entry(h)
	if !e.active {
		return PropagateDidNotFind, &MalformedDecision{Reason: "propagate called on an inactive branch stack entry"}
	}

	if e.decision.Kind != KindRyanFoster {
		return PropagateDidNotFind, nil
	}

	rf := e.decision.RyanFoster
	fixed := 0
	for _, m := range s.master.MasterVariablesInBlock(rf.Block) {
		c1, _ := s.master.MasterVarCoeff(m, rf.Var1)
		c2, _ := s.master.MasterVarCoeff(m, rf.Var2)
		in1 := c1 != 0
		in2 := c2 != 0

		contradicts := false
		if rf.Same {
			contradicts = in1 != in2 // column must carry both or neither
		} else {
			contradicts = in1 && in2 // column must not carry both
		}
		if !contradicts {
			continue
		}

		s.nextFixID++
		name := fmt.Sprintf("dwbranch_rf_fix_%d_%d_m%d_%d", rf.Var1, rf.Var2, m, s.nextFixID)
		c := s.cons.CreateConsLinear(name, negInf, 0)
		s.cons.AddCoefLinear(c, m, 1.0)
		s.cons.AddCons(c)
		e.fixedCons = append(e.fixedCons, c)
		fixed++
	}

	if fixed == 0 {
		return PropagateDidNotFind, nil
	}
	return PropagateReducedDom, nil
}

// negInf is -infinity as a float64, used for the Ryan-Foster column-fix
// constraint's lhs (m <= 0 is equivalent to -inf <= m <= 0).
var negInf = math.Inf(-1)

// Destroy releases the induced master constraint (decrementing the joint
// reference held by the master constraint set) and drops the
// DecisionRecord. Destruction happens in whole-node sweeps owned by the
// B&B tree, so Destroy does not recycle the arena slot; it only severs
// outgoing references so the entry can be garbage collected once the
// host drops its own references to node.
func (s *NodeBranchStack) Destroy(h Handle) {
	e := s.entry(h)
	if e.destroyed {
		return
	}
	if e.active {
		s.Deactivate(h)
	}
	switch e.decision.Kind {
	case KindGeneric:
		if e.decision.Generic.InducedCons != nil {
			s.cons.ReleaseCons(e.decision.Generic.InducedCons)
		}
	case KindRyanFoster:
		if e.decision.RyanFoster.PairingCons != nil {
			s.cons.ReleaseCons(e.decision.RyanFoster.PairingCons)
		}
	}
	delete(s.byNode, e.node)
	e.decision = nil
	e.destroyed = true
	s.log.Debug("branch stack entry destroyed", zap.Int("handle", int(h)))
}

// Parent returns h's parent handle, or (NoHandle, false) at the root.
func (s *NodeBranchStack) Parent(h Handle) (Handle, bool) {
	p := s.entry(h).parent
	return p, p != NoHandle
}

// FirstChild returns h's first child, if any.
func (s *NodeBranchStack) FirstChild(h Handle) (Handle, bool) {
	c := s.entry(h).children
	if len(c) == 0 {
		return NoHandle, false
	}
	return c[0], true
}

// SecondChild returns h's second child, if any (e.g. the "up" child of a
// single-variable split, or the "differ" child of a Ryan-Foster split).
func (s *NodeBranchStack) SecondChild(h Handle) (Handle, bool) {
	c := s.entry(h).children
	if len(c) < 2 {
		return NoHandle, false
	}
	return c[1], true
}

// AllChildren returns every child of h, in creation order.
func (s *NodeBranchStack) AllChildren(h Handle) []Handle {
	return append([]Handle(nil), s.entry(h).children...)
}

// Active returns the currently active handles, root-to-focus order (the
// LIFO stack read bottom-to-top).
func (s *NodeBranchStack) Active() []Handle {
	return append([]Handle(nil), s.active...)
}

// GetActiveCons returns the handle for the given node's own branch stack
// entry, if one was created for it.
func (s *NodeBranchStack) GetActiveCons(node NodeID) (Handle, bool) {
	h, ok := s.byNode[node]
	return h, ok
}

// Decision returns h's DecisionRecord.
func (s *NodeBranchStack) Decision(h Handle) *DecisionRecord {
	return s.entry(h).decision
}

// AncestorGenericDecisions walks from h's parent to the root and
// collects every GenericDecision along the path, in root-to-parent
// order. This is the ancestor list dominance pruning needs and the
// prior-sequence list constrained separation resumes from.
func (s *NodeBranchStack) AncestorGenericDecisions(h Handle) []*GenericDecision {
	var out []*GenericDecision
	for cur, ok := s.Parent(h); ok; cur, ok = s.Parent(cur) {
		e := s.entry(cur)
		if e.destroyed || e.decision == nil {
			continue
		}
		if e.decision.Kind == KindGeneric {
			out = append(out, e.decision.Generic)
		}
	}
	// reverse into root-to-parent order
	for i, j := 0, len(out)-1; i < j; i, j = i+1, j-1 {
		out[i], out[j] = out[j], out[i]
	}
	return out
}

// ActiveGenericAncestors returns the GenericDecision of every
// currently-active ancestor of h (including h itself if active), for
// EventExecGenericbranchvaradd to wire a newly priced column into every
// still-live induced constraint it satisfies.
func (s *NodeBranchStack) ActiveGenericAncestors(h Handle) []*GenericDecision {
	var out []*GenericDecision
	for cur, ok := h, true; ok; cur, ok = s.Parent(cur) {
		e := s.entry(cur)
		if e.active && e.decision != nil && e.decision.Kind == KindGeneric {
			out = append(out, e.decision.Generic)
		}
	}
	return out
}
