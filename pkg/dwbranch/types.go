package dwbranch

import "fmt"

// Sense is the comparison a ComponentBound uses to partition a pricing
// block's extreme-point set.
type Sense int

const (
	// GE: a column satisfies the bound iff its coefficient on Var is >= Value.
	GE Sense = iota
	// LT: a column satisfies the bound iff its coefficient on Var is < Value.
	LT
)

func (s Sense) String() string {
	if s == GE {
		return ">="
	}
	return "<"
}

// Flip returns the complementary sense, used when child construction
// builds a sibling by flipping the last component bound of a prefix.
func (s Sense) Flip() Sense {
	if s == GE {
		return LT
	}
	return GE
}

// ComponentBound is a triple (original-variable, sense, bound value). A
// master column "satisfies" it iff the column's coefficient on Var
// compares to Value per Sense.
type ComponentBound struct {
	Var   OriginalVariableID
	Sense Sense
	Value float64
}

func (c ComponentBound) String() string {
	return fmt.Sprintf("x%d %s %g", c.Var, c.Sense, c.Value)
}

// Satisfies reports whether a column with the given coefficient for
// c.Var satisfies this component bound.
func (c ComponentBound) Satisfies(coef float64) bool {
	if c.Sense == GE {
		return coef >= c.Value
	}
	return coef < c.Value
}

// ComponentBoundSequence is an ordered list of ComponentBounds defining
// a region of a pricing block's extreme-point set. Sequences are copied
// by value on extension so recursive separation can branch the
// accumulator without aliasing.
type ComponentBoundSequence []ComponentBound

// Extend returns a new sequence with cb appended, without mutating s.
// Go slice semantics already give value-copy-on-append behavior as long
// as callers always assign the result and never append in place before
// a fork; Extend makes that discipline explicit at call sites.
func (s ComponentBoundSequence) Extend(cb ComponentBound) ComponentBoundSequence {
	out := make(ComponentBoundSequence, len(s), len(s)+1)
	copy(out, s)
	return append(out, cb)
}

// SatisfiedBy reports whether a column (identified by its coefficient
// lookup function) satisfies every component bound in the sequence.
func (s ComponentBoundSequence) SatisfiedBy(coefOf func(OriginalVariableID) float64) bool {
	for _, cb := range s {
		if !cb.Satisfies(coefOf(cb.Var)) {
			return false
		}
	}
	return true
}

// Less is the lexicographic order over sequences, compared by position.
func (s ComponentBoundSequence) Less(o ComponentBoundSequence) bool {
	n := len(s)
	if len(o) < n {
		n = len(o)
	}
	for i := 0; i < n; i++ {
		if s[i].Var != o[i].Var {
			return s[i].Var < o[i].Var
		}
		if s[i].Sense != o[i].Sense {
			return s[i].Sense == GE // GE sorts before LT at a fixed position
		}
		if s[i].Value != o[i].Value {
			return s[i].Value < o[i].Value
		}
	}
	return len(s) < len(o)
}

// BlockUniqueness classifies a candidate original variable for the
// block-uniqueness filter of strong branching.
type BlockUniqueness int

const (
	BlockUnknown      BlockUniqueness = -1
	BlockDirectMaster BlockUniqueness = 0
	BlockUnique       BlockUniqueness = 1
	BlockUnclassified BlockUniqueness = -2
)
