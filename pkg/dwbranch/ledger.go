package dwbranch

// boundEntry is the per-variable state tracked by a BoundChangeLedger.
type boundEntry struct {
	lb, ub             float64
	haveLb, haveUb     bool
	infeasibleRounding bool
}

// BoundChangeLedger accumulates bound tightenings discovered during
// probing and rejects contradictory ones. It never touches the host
// itself; Apply is the only operation that pushes changes onto a live
// node. The ledger is sized up front from the full variable set, but an
// unseen variable still gets an entry rather than being dropped, since
// pricing can introduce original variables the caller did not
// anticipate.
type BoundChangeLedger struct {
	entries map[OriginalVariableID]*boundEntry
	changes int
}

// NewBoundChangeLedger initializes an empty ledger sized for vars.
func NewBoundChangeLedger(vars []OriginalVariableID) *BoundChangeLedger {
	l := &BoundChangeLedger{
		entries: make(map[OriginalVariableID]*boundEntry, len(vars)),
	}
	for _, v := range vars {
		l.entries[v] = &boundEntry{}
	}
	return l
}

// Add records a tightened bound for v. It is monotone: a Lower bound can
// only increase and an Upper bound can only decrease relative to what is
// already stored (a weaker incoming bound is silently ignored). Add
// returns a *Contradicts error, without modifying the ledger, if the new
// bound would make lb > ub.
//
// fromInfeasibleRounding marks the change as discovered because probing
// the other direction of this variable was infeasible, rather than from
// a genuine two-sided probe improvement.
func (l *BoundChangeLedger) Add(v OriginalVariableID, value float64, kind BoundKind, fromInfeasibleRounding bool) error {
	e, ok := l.entries[v]
	if !ok {
		e = &boundEntry{}
		l.entries[v] = e
	}

	newLb, newUb := e.lb, e.ub
	haveLb, haveUb := e.haveLb, e.haveUb
	switch kind {
	case Lower:
		if !haveLb || value > newLb {
			newLb, haveLb = value, true
		}
	case Upper:
		if !haveUb || value < newUb {
			newUb, haveUb = value, true
		}
	}

	if haveLb && haveUb && newLb > newUb {
		return &Contradicts{Var: v, Lb: newLb, Ub: newUb}
	}

	if newLb != e.lb || newUb != e.ub || haveLb != e.haveLb || haveUb != e.haveUb {
		e.lb, e.ub, e.haveLb, e.haveUb = newLb, newUb, haveLb, haveUb
		l.changes++
	}
	if fromInfeasibleRounding {
		e.infeasibleRounding = true
	}
	return nil
}

// Changes reports how many Add calls actually tightened a bound.
func (l *BoundChangeLedger) Changes() int {
	return l.changes
}

// InfeasibleRounding reports whether v's tightening was discovered via a
// one-sided infeasible probe rather than a genuine two-sided improvement.
func (l *BoundChangeLedger) InfeasibleRounding(v OriginalVariableID) bool {
	e, ok := l.entries[v]
	return ok && e.infeasibleRounding
}

// Bounds returns the ledger's currently stored (lb, ub) for v, and
// whether each side has been set at all.
func (l *BoundChangeLedger) Bounds(v OriginalVariableID) (lb float64, haveLb bool, ub float64, haveUb bool) {
	e, ok := l.entries[v]
	if !ok {
		return 0, false, 0, false
	}
	return e.lb, e.haveLb, e.ub, e.haveUb
}

// NodeBoundSetter is the subset of host operations Apply needs to push a
// bound change onto a real node. It is satisfied by any Host, kept
// narrow so tests can pass a minimal fake.
type NodeBoundSetter interface {
	VarLbLocal(v OriginalVariableID) float64
	VarUbLocal(v OriginalVariableID) float64
	ChgVarLbNode(n NodeID, v OriginalVariableID, value float64)
	ChgVarUbNode(n NodeID, v OriginalVariableID, value float64)
}

// Apply pushes every ledger entry that is strictly tighter than the
// node's current local bound onto node, and returns the number of bound
// changes actually applied. A variable with no recorded tightening, or
// one whose stored bound is no tighter than the node already has, is
// skipped.
func (l *BoundChangeLedger) Apply(host NodeBoundSetter, node NodeID) int {
	applied := 0
	for v, e := range l.entries {
		if e.haveLb {
			if cur := host.VarLbLocal(v); e.lb > cur {
				host.ChgVarLbNode(node, v, e.lb)
				applied++
			}
		}
		if e.haveUb {
			if cur := host.VarUbLocal(v); e.ub < cur {
				host.ChgVarUbNode(node, v, e.ub)
				applied++
			}
		}
	}
	return applied
}
