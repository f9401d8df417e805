package dwbranch_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gitrdm/dwbranch/pkg/dwbranch"
)

func TestSenseFlip(t *testing.T) {
	assert.Equal(t, dwbranch.LT, dwbranch.GE.Flip())
	assert.Equal(t, dwbranch.GE, dwbranch.LT.Flip())
}

func TestComponentBoundSatisfies(t *testing.T) {
	ge := dwbranch.ComponentBound{Var: 1, Sense: dwbranch.GE, Value: 2}
	assert.True(t, ge.Satisfies(2))
	assert.True(t, ge.Satisfies(3))
	assert.False(t, ge.Satisfies(1.9))

	lt := dwbranch.ComponentBound{Var: 1, Sense: dwbranch.LT, Value: 2}
	assert.True(t, lt.Satisfies(1.9))
	assert.False(t, lt.Satisfies(2))
}

func TestComponentBoundSequenceExtendDoesNotAlias(t *testing.T) {
	base := dwbranch.ComponentBoundSequence{{Var: 1, Sense: dwbranch.GE, Value: 1}}
	a := base.Extend(dwbranch.ComponentBound{Var: 2, Sense: dwbranch.GE, Value: 2})
	b := base.Extend(dwbranch.ComponentBound{Var: 3, Sense: dwbranch.LT, Value: 3})

	require.Len(t, base, 1)
	require.Len(t, a, 2)
	require.Len(t, b, 2)
	assert.Equal(t, dwbranch.OriginalVariableID(2), a[1].Var)
	assert.Equal(t, dwbranch.OriginalVariableID(3), b[1].Var)
}

func TestComponentBoundSequenceSatisfiedBy(t *testing.T) {
	seq := dwbranch.ComponentBoundSequence{
		{Var: 1, Sense: dwbranch.GE, Value: 1},
		{Var: 2, Sense: dwbranch.LT, Value: 5},
	}
	coefOf := func(v dwbranch.OriginalVariableID) float64 {
		switch v {
		case 1:
			return 1
		case 2:
			return 4
		}
		return 0
	}
	assert.True(t, seq.SatisfiedBy(coefOf))

	coefOfFail := func(v dwbranch.OriginalVariableID) float64 {
		if v == 2 {
			return 6
		}
		return coefOf(v)
	}
	assert.False(t, seq.SatisfiedBy(coefOfFail))
}

func TestComponentBoundSequenceLess(t *testing.T) {
	a := dwbranch.ComponentBoundSequence{{Var: 1, Sense: dwbranch.GE, Value: 1}}
	b := dwbranch.ComponentBoundSequence{{Var: 2, Sense: dwbranch.GE, Value: 1}}
	assert.True(t, a.Less(b))
	assert.False(t, b.Less(a))

	same := dwbranch.ComponentBoundSequence{{Var: 1, Sense: dwbranch.GE, Value: 1}}
	longer := dwbranch.ComponentBoundSequence{{Var: 1, Sense: dwbranch.GE, Value: 1}, {Var: 2, Sense: dwbranch.GE, Value: 1}}
	assert.True(t, same.Less(longer))
	assert.False(t, longer.Less(same))

	geFirst := dwbranch.ComponentBoundSequence{{Var: 1, Sense: dwbranch.GE, Value: 1}}
	ltFirst := dwbranch.ComponentBoundSequence{{Var: 1, Sense: dwbranch.LT, Value: 1}}
	assert.True(t, geFirst.Less(ltFirst))
}
