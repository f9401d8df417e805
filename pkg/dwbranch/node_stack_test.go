package dwbranch_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/gitrdm/dwbranch/internal/fakehost"
	"github.com/gitrdm/dwbranch/pkg/dwbranch"
)

func newStack(t *testing.T, h *fakehost.FakeHost, generic *dwbranch.GenericBranchingEngine) *dwbranch.NodeBranchStack {
	t.Helper()
	return dwbranch.NewNodeBranchStack(h, h, h, h, generic, zap.NewNop())
}

func TestNodeBranchStackSingleVariableLifecycle(t *testing.T) {
	h := fakehost.New()
	h.AddOriginalVar(1, fakehost.OriginalVar{Type: dwbranch.VarInteger, LbLocal: 0, UbLocal: 10, LbGlobal: 0, UbGlobal: 10})
	s := newStack(t, h, nil)

	node := h.CreateChild(0)
	h.SetFocus(node)
	down, _ := dwbranch.NewSingleVariableChildren(1, 2.5)
	handle, err := s.Create(node, dwbranch.NoHandle, down, h)
	require.NoError(t, err)

	require.NoError(t, s.Activate(handle))
	assert.Equal(t, 2.0, h.VarUbLocal(1))

	outcome, err := s.Propagate(handle)
	require.NoError(t, err)
	assert.Equal(t, dwbranch.PropagateDidNotFind, outcome)

	s.Deactivate(handle)
	s.Destroy(handle)

	_, ok := s.GetActiveCons(node)
	assert.False(t, ok)
}

func TestNodeBranchStackContradictoryBound(t *testing.T) {
	h := fakehost.New()
	h.AddOriginalVar(1, fakehost.OriginalVar{Type: dwbranch.VarInteger, LbLocal: 3, UbLocal: 10})
	s := newStack(t, h, nil)

	node := h.CreateChild(0)
	down, _ := dwbranch.NewSingleVariableChildren(1, 2.5) // wants ub <= 2, but lb is already 3
	handle, err := s.Create(node, dwbranch.NoHandle, down, h)
	require.NoError(t, err)

	err = s.Activate(handle)
	require.Error(t, err)
	var cb *dwbranch.ContradictoryBound
	assert.ErrorAs(t, err, &cb)
}

func TestNodeBranchStackRyanFosterFixesContradictingColumn(t *testing.T) {
	h := fakehost.New()
	h.AddOriginalVar(1, fakehost.OriginalVar{Type: dwbranch.VarInteger, Block: 0})
	h.AddOriginalVar(2, fakehost.OriginalVar{Type: dwbranch.VarInteger, Block: 0})
	// column 100 carries var 1 but not var 2: contradicts a "same" pairing.
	h.AddMasterVar(100, fakehost.MasterVar{Block: 0, Coefs: map[dwbranch.OriginalVariableID]float64{1: 1}})
	// column 101 carries both: satisfies "same".
	h.AddMasterVar(101, fakehost.MasterVar{Block: 0, Coefs: map[dwbranch.OriginalVariableID]float64{1: 1, 2: 1}})

	s := newStack(t, h, nil)
	node := h.CreateChild(0)
	same, _ := dwbranch.NewRyanFosterChildren(1, 2, 0)
	handle, err := s.Create(node, dwbranch.NoHandle, same, h)
	require.NoError(t, err)

	require.NoError(t, s.Activate(handle))
	assert.NotNil(t, same.RyanFoster.PairingCons)

	outcome, err := s.Propagate(handle)
	require.NoError(t, err)
	assert.Equal(t, dwbranch.PropagateReducedDom, outcome)

	// re-propagating is idempotent in effect (adds another fixing constraint
	// for the same still-contradicting column, but never errors).
	outcome, err = s.Propagate(handle)
	require.NoError(t, err)
	assert.Equal(t, dwbranch.PropagateReducedDom, outcome)

	s.Deactivate(handle)
	s.Destroy(handle)
}

func TestNodeBranchStackGenericLifecycle(t *testing.T) {
	h := fakehost.New()
	h.AddOriginalVar(10, fakehost.OriginalVar{Type: dwbranch.VarInteger, Block: 0})
	h.AddMasterVar(100, fakehost.MasterVar{Block: 0, LPValue: 1, Coefs: map[dwbranch.OriginalVariableID]float64{10: 1}})
	generic := dwbranch.NewGenericBranchingEngine(h, zap.NewNop())
	s := newStack(t, h, generic)

	node := h.CreateChild(0)
	d := &dwbranch.DecisionRecord{
		Kind: dwbranch.KindGeneric,
		Generic: &dwbranch.GenericDecision{
			Block:    0,
			Sequence: dwbranch.ComponentBoundSequence{{Var: 10, Sense: dwbranch.GE, Value: 1}},
			LHS:      1,
		},
	}
	handle, err := s.Create(node, dwbranch.NoHandle, d, h)
	require.NoError(t, err)

	require.NoError(t, s.Activate(handle))
	require.NotNil(t, d.Generic.InducedCons)

	s.Deactivate(handle)
	s.Destroy(handle)
}

func TestNodeBranchStackGenericWithoutEngineIsMalformed(t *testing.T) {
	h := fakehost.New()
	h.AddOriginalVar(10, fakehost.OriginalVar{Type: dwbranch.VarInteger, Block: 0})
	s := newStack(t, h, nil)

	node := h.CreateChild(0)
	d := &dwbranch.DecisionRecord{
		Kind:    dwbranch.KindGeneric,
		Generic: &dwbranch.GenericDecision{Block: 0, Sequence: dwbranch.ComponentBoundSequence{{Var: 10, Sense: dwbranch.GE, Value: 1}}, LHS: 1},
	}
	handle, err := s.Create(node, dwbranch.NoHandle, d, h)
	require.NoError(t, err)

	err = s.Activate(handle)
	require.Error(t, err)
	var malformed *dwbranch.MalformedDecision
	assert.ErrorAs(t, err, &malformed)
}

func TestNodeBranchStackParentChildNavigation(t *testing.T) {
	h := fakehost.New()
	h.AddOriginalVar(1, fakehost.OriginalVar{Type: dwbranch.VarInteger, LbLocal: 0, UbLocal: 10})
	s := newStack(t, h, nil)

	root := h.CreateChild(0)
	down, up := dwbranch.NewSingleVariableChildren(1, 2.5)
	parent, err := s.Create(root, dwbranch.NoHandle, down, h)
	require.NoError(t, err)

	downNode := h.CreateChild(0)
	upNode := h.CreateChild(0)
	downHandle, err := s.Create(downNode, parent, down, h)
	require.NoError(t, err)
	upHandle, err := s.Create(upNode, parent, up, h)
	require.NoError(t, err)

	first, ok := s.FirstChild(parent)
	require.True(t, ok)
	assert.Equal(t, downHandle, first)

	second, ok := s.SecondChild(parent)
	require.True(t, ok)
	assert.Equal(t, upHandle, second)

	assert.ElementsMatch(t, []dwbranch.Handle{downHandle, upHandle}, s.AllChildren(parent))

	p, ok := s.Parent(downHandle)
	require.True(t, ok)
	assert.Equal(t, parent, p)

	_, ok = s.Parent(parent)
	assert.False(t, ok)
}

func TestNodeBranchStackAncestorGenericDecisions(t *testing.T) {
	h := fakehost.New()
	h.AddOriginalVar(10, fakehost.OriginalVar{Type: dwbranch.VarInteger, Block: 0})
	generic := dwbranch.NewGenericBranchingEngine(h, zap.NewNop())
	s := newStack(t, h, generic)

	rootNode := h.CreateChild(0)
	rootDecision := &dwbranch.DecisionRecord{
		Kind:    dwbranch.KindGeneric,
		Generic: &dwbranch.GenericDecision{Block: 0, Sequence: dwbranch.ComponentBoundSequence{{Var: 10, Sense: dwbranch.GE, Value: 1}}, LHS: 1},
	}
	root, err := s.Create(rootNode, dwbranch.NoHandle, rootDecision, h)
	require.NoError(t, err)
	require.NoError(t, s.Activate(root))

	childNode := h.CreateChild(0)
	childDecision := &dwbranch.DecisionRecord{
		Kind:    dwbranch.KindGeneric,
		Generic: &dwbranch.GenericDecision{Block: 0, Sequence: dwbranch.ComponentBoundSequence{{Var: 10, Sense: dwbranch.LT, Value: 1}}, LHS: 1},
	}
	child, err := s.Create(childNode, root, childDecision, h)
	require.NoError(t, err)

	ancestors := s.AncestorGenericDecisions(child)
	require.Len(t, ancestors, 1)
	assert.Same(t, rootDecision.Generic, ancestors[0])

	active := s.ActiveGenericAncestors(child)
	require.Len(t, active, 1)
	assert.Same(t, rootDecision.Generic, active[0])
}

func TestNodeBranchStackDeactivateOutOfOrderPanics(t *testing.T) {
	h := fakehost.New()
	h.AddOriginalVar(1, fakehost.OriginalVar{Type: dwbranch.VarInteger, LbLocal: 0, UbLocal: 10})
	s := newStack(t, h, nil)

	node1 := h.CreateChild(0)
	node2 := h.CreateChild(0)
	down, up := dwbranch.NewSingleVariableChildren(1, 2.5)
	h1, err := s.Create(node1, dwbranch.NoHandle, down, h)
	require.NoError(t, err)
	h2, err := s.Create(node2, dwbranch.NoHandle, up, h)
	require.NoError(t, err)

	require.NoError(t, s.Activate(h1))
	require.NoError(t, s.Activate(h2))

	assert.Panics(t, func() { s.Deactivate(h1) })
}

func TestNodeBranchStackOriginMirror(t *testing.T) {
	h := fakehost.New()
	h.AddOriginalVar(1, fakehost.OriginalVar{Type: dwbranch.VarInteger, LbLocal: 0, UbLocal: 10})
	s := newStack(t, h, nil)

	node := h.CreateChild(0)
	down, _ := dwbranch.NewSingleVariableChildren(1, 2.5)
	handle, err := s.Create(node, dwbranch.NoHandle, down, h)
	require.NoError(t, err)

	_, ok := s.OriginMirror(handle)
	assert.False(t, ok)

	s.SetOriginMirror(handle, 42)
	origin, ok := s.OriginMirror(handle)
	require.True(t, ok)
	assert.Equal(t, dwbranch.NodeID(42), origin)
}
