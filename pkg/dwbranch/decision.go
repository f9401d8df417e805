package dwbranch

// DecisionKind tags which branching rule produced a DecisionRecord. The
// record is a tagged variant dispatched on this tag; each variant owns
// its own payload shape and there is no common base type.
type DecisionKind int

const (
	KindSingleVariable DecisionKind = iota
	KindRyanFoster
	KindGeneric
)

func (k DecisionKind) String() string {
	switch k {
	case KindSingleVariable:
		return "single-variable"
	case KindRyanFoster:
		return "ryan-foster"
	case KindGeneric:
		return "generic"
	default:
		return "unknown"
	}
}

// Direction is which side of a single-variable split a child represents.
type Direction int

const (
	Down Direction = iota
	Up
)

// SingleVariableDecision is the DecisionRecord variant for a classic
// two-child split on one integer variable. Var must be integer-typed and
// fractional in the current LP solution at construction time.
type SingleVariableDecision struct {
	Var       OriginalVariableID
	Value     float64
	Direction Direction
}

// RyanFosterDecision is the DecisionRecord variant for a same/differ
// split over a pair of original variables in a set-partitioning or
// set-covering master. Var1 and Var2 must be distinct and belong to the
// same pricing block.
type RyanFosterDecision struct {
	Var1, Var2 OriginalVariableID
	Block      BlockIndex
	Same       bool // true = "same column", false = "differ"
	// PairingCons is set once the induced pairwise pricing constraint is
	// materialized (nil beforehand).
	PairingCons ConsHandle
}

// GenericDecision is the DecisionRecord variant produced by
// GenericBranchingEngine. Every component in Sequence must be an
// integer-typed original variable belonging to Block or linking into
// it; Sequence has length >= 1 and is stored by value, never aliasing a
// mutating accumulator.
type GenericDecision struct {
	Block    BlockIndex
	Sequence ComponentBoundSequence
	LHS      float64
	// InducedCons is set once the induced master constraint
	// (sum of matching columns >= LHS) is materialized.
	InducedCons ConsHandle
	// PriorSequences carries the ancestor sequences this decision was
	// derived under, used to resume constrained separation from a
	// descendant node. Nil at the root of a generic-branching subtree.
	PriorSequences []ComponentBoundSequence
}

// DecisionRecord is the per-node branch data carried by a
// NodeBranchStack entry. Exactly one of the three payload fields is
// non-nil, selected by Kind.
type DecisionRecord struct {
	Kind       DecisionKind
	Single     *SingleVariableDecision
	RyanFoster *RyanFosterDecision
	Generic    *GenericDecision
}

// Validate checks the construction-time invariants of the record. A
// failure here is a *MalformedDecision: fatal, never recovered.
func (d *DecisionRecord) Validate(h VariableHost) error {
	switch d.Kind {
	case KindSingleVariable:
		s := d.Single
		if s == nil {
			return &MalformedDecision{Reason: "single-variable decision missing payload"}
		}
		if h.VarType(s.Var) == VarContinuous {
			return &MalformedDecision{Reason: "single-variable decision on a continuous variable"}
		}
		frac := s.Value - float64(int64(s.Value))
		if h.IsIntegral(frac) {
			return &MalformedDecision{Reason: "single-variable decision value is not fractional"}
		}
	case KindRyanFoster:
		r := d.RyanFoster
		if r == nil {
			return &MalformedDecision{Reason: "ryan-foster decision missing payload"}
		}
		if r.Var1 == r.Var2 {
			return &MalformedDecision{Reason: "ryan-foster decision on identical variables"}
		}
	case KindGeneric:
		g := d.Generic
		if g == nil {
			return &MalformedDecision{Reason: "generic decision missing payload"}
		}
		if len(g.Sequence) == 0 {
			return &MalformedDecision{Reason: "generic decision has an empty component-bound sequence"}
		}
		for _, cb := range g.Sequence {
			if h.VarType(cb.Var) != VarInteger && h.VarType(cb.Var) != VarBinary {
				return &MalformedDecision{Reason: "generic decision component is not integer-typed"}
			}
		}
	default:
		return &MalformedDecision{Reason: "unknown decision kind"}
	}
	return nil
}

// NewSingleVariableChildren builds the two DecisionRecords for a classic
// split: the down-child fixes Var <= floor(value), the up-child fixes
// Var >= ceil(value).
func NewSingleVariableChildren(v OriginalVariableID, value float64) (down, up *DecisionRecord) {
	down = &DecisionRecord{
		Kind:   KindSingleVariable,
		Single: &SingleVariableDecision{Var: v, Value: value, Direction: Down},
	}
	up = &DecisionRecord{
		Kind:   KindSingleVariable,
		Single: &SingleVariableDecision{Var: v, Value: value, Direction: Up},
	}
	return down, up
}

// NewRyanFosterChildren builds the "same" and "differ" DecisionRecords
// for a pair of original variables in the same block.
func NewRyanFosterChildren(v1, v2 OriginalVariableID, block BlockIndex) (same, differ *DecisionRecord) {
	same = &DecisionRecord{
		Kind:       KindRyanFoster,
		RyanFoster: &RyanFosterDecision{Var1: v1, Var2: v2, Block: block, Same: true},
	}
	differ = &DecisionRecord{
		Kind:       KindRyanFoster,
		RyanFoster: &RyanFosterDecision{Var1: v1, Var2: v2, Block: block, Same: false},
	}
	return same, differ
}
