package dwbranch_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gitrdm/dwbranch/internal/fakehost"
	"github.com/gitrdm/dwbranch/pkg/dwbranch"
)

func TestNewSingleVariableChildren(t *testing.T) {
	down, up := dwbranch.NewSingleVariableChildren(1, 2.5)
	require.Equal(t, dwbranch.KindSingleVariable, down.Kind)
	require.Equal(t, dwbranch.KindSingleVariable, up.Kind)
	assert.Equal(t, dwbranch.Down, down.Single.Direction)
	assert.Equal(t, dwbranch.Up, up.Single.Direction)
	assert.Equal(t, 2.5, down.Single.Value)
}

func TestNewRyanFosterChildren(t *testing.T) {
	same, differ := dwbranch.NewRyanFosterChildren(1, 2, 0)
	require.Equal(t, dwbranch.KindRyanFoster, same.Kind)
	assert.True(t, same.RyanFoster.Same)
	assert.False(t, differ.RyanFoster.Same)
	assert.Equal(t, dwbranch.BlockIndex(0), same.RyanFoster.Block)
}

func TestDecisionRecordValidate(t *testing.T) {
	h := fakehost.New()
	h.AddOriginalVar(1, fakehost.OriginalVar{Type: dwbranch.VarInteger, SolValue: 2.5})
	h.AddOriginalVar(2, fakehost.OriginalVar{Type: dwbranch.VarContinuous, SolValue: 2.5})

	t.Run("valid single-variable decision", func(t *testing.T) {
		d := &dwbranch.DecisionRecord{Kind: dwbranch.KindSingleVariable, Single: &dwbranch.SingleVariableDecision{Var: 1, Value: 2.5}}
		assert.NoError(t, d.Validate(h))
	})

	t.Run("single-variable decision on continuous variable is malformed", func(t *testing.T) {
		d := &dwbranch.DecisionRecord{Kind: dwbranch.KindSingleVariable, Single: &dwbranch.SingleVariableDecision{Var: 2, Value: 2.5}}
		err := d.Validate(h)
		require.Error(t, err)
		var malformed *dwbranch.MalformedDecision
		assert.ErrorAs(t, err, &malformed)
	})

	t.Run("ryan-foster decision on identical variables is malformed", func(t *testing.T) {
		d := &dwbranch.DecisionRecord{Kind: dwbranch.KindRyanFoster, RyanFoster: &dwbranch.RyanFosterDecision{Var1: 1, Var2: 1}}
		assert.Error(t, d.Validate(h))
	})

	t.Run("generic decision with empty sequence is malformed", func(t *testing.T) {
		d := &dwbranch.DecisionRecord{Kind: dwbranch.KindGeneric, Generic: &dwbranch.GenericDecision{}}
		assert.Error(t, d.Validate(h))
	})

	t.Run("generic decision over a continuous component is malformed", func(t *testing.T) {
		d := &dwbranch.DecisionRecord{
			Kind: dwbranch.KindGeneric,
			Generic: &dwbranch.GenericDecision{
				Sequence: dwbranch.ComponentBoundSequence{{Var: 2, Sense: dwbranch.GE, Value: 1}},
			},
		}
		assert.Error(t, d.Validate(h))
	})

	t.Run("unknown kind is malformed", func(t *testing.T) {
		d := &dwbranch.DecisionRecord{Kind: dwbranch.DecisionKind(99)}
		assert.Error(t, d.Validate(h))
	})
}
