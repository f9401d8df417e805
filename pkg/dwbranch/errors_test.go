package dwbranch_test

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/gitrdm/dwbranch/pkg/dwbranch"
)

func TestResultString(t *testing.T) {
	assert.Equal(t, "branched", dwbranch.ResultBranched.String())
	assert.Equal(t, "cutoff", dwbranch.ResultCutoff.String())
	assert.Equal(t, "reduced-domain", dwbranch.ResultReducedDomain.String())
	assert.Equal(t, "did-not-run", dwbranch.ResultDidNotRun.String())
}

func TestLpErrorUnwrap(t *testing.T) {
	cause := errors.New("lp diverged")
	wrapped := dwbranch.NewLpError(cause)
	assert.Contains(t, wrapped.Error(), "lp diverged")
	assert.ErrorIs(t, wrapped, cause)
}

func TestLpErrorNilCause(t *testing.T) {
	wrapped := dwbranch.NewLpError(nil)
	assert.Contains(t, wrapped.Error(), "did not converge")
}

func TestContradictsError(t *testing.T) {
	err := &dwbranch.Contradicts{Var: 3, Lb: 2, Ub: 1}
	assert.Contains(t, err.Error(), "contradictory bounds")
}

func TestNoCandidateError(t *testing.T) {
	withReason := &dwbranch.NoCandidate{Reason: "empty set"}
	assert.Contains(t, withReason.Error(), "empty set")

	bare := &dwbranch.NoCandidate{}
	assert.Equal(t, "dwbranch: no branching candidate available", bare.Error())
}
