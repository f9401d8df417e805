package dwbranch

import (
	"math"
	"sort"

	"github.com/RoaringBitmap/roaring/v2"
	"github.com/mitchellh/hashstructure"
	"go.uber.org/zap"
)

// column is a read-only view of one master variable's coefficients,
// assembled once per separation call so the recursive descent never
// re-queries the host per level.
type column struct {
	id      MasterVariableID
	lpValue float64
	coefs   map[OriginalVariableID]float64
}

func (c column) coef(v OriginalVariableID) float64 { return c.coefs[v] }

// SeparationRecord is one candidate separating sequence discovered during
// component-bound separation, together with the discriminating priority
// (maxCoef - minCoef at the appended position) that ChooseS ranks by.
type SeparationRecord struct {
	Seq      ComponentBoundSequence
	Priority float64
}

// GenericBranchingEngine produces child nodes defined by component-bound
// sequences when the fractional master solution cannot be cut by a
// single-variable split. Separation repeatedly bisects the fractional
// column set by a discriminating component's coefficient median and
// recurses on the smaller half until a fractional column mass is
// isolated.
//
// The candidate component set is kept as a *roaring.Bitmap rather than a
// plain slice: a pricing block's component count can run into the
// thousands, and separation removes one element per recursion level, an
// access pattern a compressed bitmap handles cheaply.
type GenericBranchingEngine struct {
	host MasterHost
	log  *zap.Logger
}

// NewGenericBranchingEngine constructs an engine against host.
func NewGenericBranchingEngine(host MasterHost, log *zap.Logger) *GenericBranchingEngine {
	return &GenericBranchingEngine{host: host, log: orNop(log)}
}

func isIntegral(x float64) bool {
	return math.Abs(x-math.Round(x)) < 1e-9
}

// splitMedian returns the coefficient bound used to bisect F on the
// component values xs: the median, raised to the smallest value strictly
// above the minimum whenever the median coincides with it, so the
// ">= bound" side is always a proper subset of F. ok is false when every
// coefficient is equal and the component cannot discriminate.
func splitMedian(xs []float64) (bound float64, ok bool) {
	sorted := append([]float64(nil), xs...)
	sort.Float64s(sorted)
	n := len(sorted)
	if n == 0 || sorted[0] == sorted[n-1] {
		return 0, false
	}
	var m float64
	if n%2 == 1 {
		m = sorted[n/2]
	} else {
		m = (sorted[n/2-1] + sorted[n/2]) / 2
	}
	if m == sorted[0] {
		for _, x := range sorted {
			if x > m {
				m = x
				break
			}
		}
	}
	return m, true
}

func minMax(xs []float64) (lo, hi float64) {
	lo, hi = xs[0], xs[0]
	for _, x := range xs[1:] {
		if x < lo {
			lo = x
		}
		if x > hi {
			hi = x
		}
	}
	return lo, hi
}

func loadColumns(host MasterHost, mvars []MasterVariableID, indexSet *roaring.Bitmap) []column {
	cols := make([]column, 0, len(mvars))
	for _, m := range mvars {
		coefs := make(map[OriginalVariableID]float64, indexSet.GetCardinality())
		it := indexSet.Iterator()
		for it.HasNext() {
			v := OriginalVariableID(it.Next())
			if c, ok := host.MasterVarCoeff(m, v); ok {
				coefs[v] = c
			}
		}
		cols = append(cols, column{id: m, lpValue: host.MasterVarLPValue(m), coefs: coefs})
	}
	return cols
}

// separate performs root-style separation over the fractional master
// variables F, considering the original-variable components in indexSet,
// extending the prefix sequence S and accumulating discovered candidate
// sequences into record. For each component it computes the coefficient
// median m and the column mass alpha of {f : coef(f) >= m}; a fractional
// alpha yields a recorded sequence, an integral one makes the component a
// discriminator candidate. When no alpha is fractional, it bisects F by
// the highest-priority discriminator and descends on the smaller half.
func (e *GenericBranchingEngine) separate(F []column, indexSet *roaring.Bitmap, S ComponentBoundSequence, record *[]SeparationRecord) {
	if len(F) == 0 || indexSet.IsEmpty() {
		return
	}

	type discrim struct {
		idx      OriginalVariableID
		priority float64
		median   float64
	}
	var best *discrim
	anyFractional := false

	it := indexSet.Iterator()
	for it.HasNext() {
		i := OriginalVariableID(it.Next())
		coefs := make([]float64, len(F))
		for j, f := range F {
			coefs[j] = f.coef(i)
		}
		m, ok := splitMedian(coefs)
		if !ok {
			continue // constant coefficient: cannot discriminate on this component
		}
		var alpha float64
		for j, f := range F {
			if coefs[j] >= m {
				alpha += f.lpValue
			}
		}
		lo, hi := minMax(coefs)
		priority := hi - lo

		if !isIntegral(alpha) {
			anyFractional = true
			seq := S.Extend(ComponentBound{Var: i, Sense: GE, Value: m})
			*record = append(*record, SeparationRecord{Seq: seq, Priority: priority})
			continue
		}
		if best == nil || priority > best.priority {
			best = &discrim{idx: i, priority: priority, median: m}
		}
	}

	if anyFractional || best == nil {
		return
	}

	var ge, lt []column
	for _, f := range F {
		if f.coef(best.idx) >= best.median {
			ge = append(ge, f)
		} else {
			lt = append(lt, f)
		}
	}
	remaining := indexSet.Clone()
	remaining.Remove(uint32(best.idx))

	if len(ge) <= len(lt) {
		e.separate(ge, remaining, S.Extend(ComponentBound{Var: best.idx, Sense: GE, Value: best.median}), record)
	} else {
		e.separate(lt, remaining, S.Extend(ComponentBound{Var: best.idx, Sense: LT, Value: best.median}), record)
	}
}

// explore performs constrained descendant separation under an active
// branching, where C is the ordered list of previously chosen sequences
// constraining further splits. At depth len(S) it requires every
// sequence in C to fix the same component; if they disagree, or some
// sequence in C is exhausted, it falls back to separate.
func (e *GenericBranchingEngine) explore(C []ComponentBoundSequence, F []column, indexSet *roaring.Bitmap, S ComponentBoundSequence, record *[]SeparationRecord) {
	if len(C) == 0 {
		e.separate(F, indexSet, S, record)
		return
	}

	p := len(S)
	fallback := false
	var fixed OriginalVariableID
	for k, c := range C {
		if p >= len(c) {
			fallback = true
			break
		}
		if k == 0 {
			fixed = c[p].Var
		} else if c[p].Var != fixed {
			fallback = true
			break
		}
	}
	if fallback {
		e.separate(F, indexSet, S, record)
		return
	}

	coefs := make([]float64, len(F))
	for j, f := range F {
		coefs[j] = f.coef(fixed)
	}
	m, ok := splitMedian(coefs)
	if !ok {
		remaining := indexSet.Clone()
		remaining.Remove(uint32(fixed))
		e.separate(F, remaining, S, record)
		return
	}
	var alpha float64
	for j, f := range F {
		if coefs[j] >= m {
			alpha += f.lpValue
		}
	}
	lo, hi := minMax(coefs)
	priority := hi - lo

	if !isIntegral(alpha) {
		seq := S.Extend(ComponentBound{Var: fixed, Sense: GE, Value: m})
		*record = append(*record, SeparationRecord{Seq: seq, Priority: priority})
		return
	}

	var geF, ltF []column
	for _, f := range F {
		if f.coef(fixed) >= m {
			geF = append(geF, f)
		} else {
			ltF = append(ltF, f)
		}
	}
	var geC, ltC []ComponentBoundSequence
	for _, c := range C {
		if c[p].Sense == GE {
			geC = append(geC, c)
		} else {
			ltC = append(ltC, c)
		}
	}

	remaining := indexSet.Clone()
	remaining.Remove(uint32(fixed))

	if len(geC) > 0 {
		e.explore(geC, geF, remaining, S.Extend(ComponentBound{Var: fixed, Sense: GE, Value: m}), record)
	} else if len(ltC) > 0 {
		e.explore(ltC, ltF, remaining, S.Extend(ComponentBound{Var: fixed, Sense: LT, Value: m}), record)
	}
}

// FindBranchingSequence runs component-bound separation over the
// columns of block with strictly positive LP value and returns the selected separating sequence. The
// components considered are those in indexSet. priors carries the
// sequences chosen by still-active ancestor branchings of the same
// block; when non-empty, separation is constrained to refine them. The
// boolean result is false when no separating sequence exists.
func (e *GenericBranchingEngine) FindBranchingSequence(block BlockIndex, indexSet *roaring.Bitmap, priors []ComponentBoundSequence) (ComponentBoundSequence, bool) {
	mvars := e.host.MasterVariablesInBlock(block)
	fractional := make([]MasterVariableID, 0, len(mvars))
	for _, m := range mvars {
		if e.host.MasterVarLPValue(m) > 0 {
			fractional = append(fractional, m)
		}
	}
	if len(fractional) == 0 {
		return nil, false
	}
	F := loadColumns(e.host, fractional, indexSet)

	var record []SeparationRecord
	if len(priors) > 0 {
		e.explore(priors, F, indexSet, nil, &record)
	} else {
		e.separate(F, indexSet, nil, &record)
	}

	S, ok := ChooseS(record)
	if ok {
		e.log.Debug("separating sequence found",
			zap.Int("block", int(block)),
			zap.Int("length", len(S)),
			zap.Int("recorded", len(record)))
	}
	return S, ok
}

// ChooseS picks, among every recorded candidate sequence, the one with
// the highest discriminating priority at its last position, breaking
// ties by the strictly shorter sequence.
func ChooseS(record []SeparationRecord) (ComponentBoundSequence, bool) {
	if len(record) == 0 {
		return nil, false
	}
	best := record[0]
	for _, r := range record[1:] {
		if r.Priority > best.Priority {
			best = r
		} else if r.Priority == best.Priority && len(r.Seq) < len(best.Seq) {
			best = r
		}
	}
	return best.Seq, true
}

// CreateChildNodesGeneric builds the |S|+1 child decisions induced by a
// chosen sequence S for block, given the parent's identical-block count
// pL. Child p (p < |S|) is defined by the prefix S[0:p+1] with the bound
// at position p flipped, and its left-hand side is pL - ceil(mu) + 1
// where mu is the LP mass of block columns satisfying that flipped
// prefix; the final child keeps the full sequence and gets
// ceil(muOfFull()). The left-hand sides of all children sum to pL + |S|.
func CreateChildNodesGeneric(pL int, block BlockIndex, S ComponentBoundSequence, muOfFlippedPrefix func(p int) float64, muOfFull func() float64) []GenericDecision {
	children := make([]GenericDecision, 0, len(S)+1)
	for p := 0; p < len(S); p++ {
		flipped := append(ComponentBoundSequence(nil), S[:p+1]...)
		flipped[p] = ComponentBound{Var: flipped[p].Var, Sense: flipped[p].Sense.Flip(), Value: flipped[p].Value}
		mu := muOfFlippedPrefix(p)
		L := math.Ceil(mu)
		lhs := float64(pL) - L + 1
		children = append(children, GenericDecision{Block: block, Sequence: flipped, LHS: lhs})
	}
	full := append(ComponentBoundSequence(nil), S...)
	lhsFull := math.Ceil(muOfFull())
	children = append(children, GenericDecision{Block: block, Sequence: full, LHS: lhsFull})
	return children
}

// dominanceKey is the structural identity hashed for dominance pruning:
// (block, |S|, S, lhs).
type dominanceKey struct {
	Block BlockIndex
	Len   int
	Seq   ComponentBoundSequence
	LHS   float64
}

func dominanceHash(d GenericDecision) (uint64, error) {
	return hashstructure.Hash(dominanceKey{Block: d.Block, Len: len(d.Sequence), Seq: d.Sequence, LHS: d.LHS}, nil)
}

func dominanceEqual(a, b GenericDecision) bool {
	if a.Block != b.Block || a.LHS != b.LHS || len(a.Sequence) != len(b.Sequence) {
		return false
	}
	for i := range a.Sequence {
		if a.Sequence[i] != b.Sequence[i] {
			return false
		}
	}
	return true
}

// PruneChildNodeByDominanceGeneric reports true (skip creating this
// child) if any ancestor already carries a branch with an identical
// (block, |S|, S, lhs). Identity is checked by hash first, with exact
// field comparison on collision.
func PruneChildNodeByDominanceGeneric(child GenericDecision, ancestors []GenericDecision) (bool, error) {
	childHash, err := dominanceHash(child)
	if err != nil {
		return false, err
	}
	for _, a := range ancestors {
		ah, err := dominanceHash(a)
		if err != nil {
			return false, err
		}
		if ah == childHash && dominanceEqual(child, a) {
			return true, nil
		}
	}
	return false, nil
}

// LexicographicSort orders master variables lexicographically by their
// coefficients on the original variables, in the order given.
func LexicographicSort(host MasterHost, cols []MasterVariableID, order []OriginalVariableID) {
	sort.SliceStable(cols, func(i, j int) bool {
		for _, v := range order {
			ci, _ := host.MasterVarCoeff(cols[i], v)
			cj, _ := host.MasterVarCoeff(cols[j], v)
			if ci != cj {
				return ci < cj
			}
		}
		return false
	})
}

// InducedLexicographicSort orders master variables like
// LexicographicSort, but the comparison honors the prefix structure of C
// (the components fixed by active ancestor branchings, in the order they
// were fixed) before falling back to rest.
func InducedLexicographicSort(host MasterHost, cols []MasterVariableID, C []ComponentBoundSequence, rest []OriginalVariableID) {
	order := make([]OriginalVariableID, 0, len(C)+len(rest))
	for _, seq := range C {
		for _, cb := range seq {
			order = append(order, cb.Var)
		}
	}
	order = append(order, rest...)
	LexicographicSort(host, cols, order)
}

// BranchActiveMasterGeneric materializes d's induced master constraint:
// the sum over matching columns of 1*m >= d.LHS, where a column matches
// when its coefficients satisfy d's defining sequence in d.Block. A
// decision whose constraint is already materialized is left untouched.
func (e *GenericBranchingEngine) BranchActiveMasterGeneric(ch ConstraintHost, d *GenericDecision, name string) {
	if d.InducedCons != nil {
		return
	}
	cons := ch.CreateConsLinear(name, d.LHS, math.Inf(1))
	for _, m := range e.host.MasterVariablesInBlock(d.Block) {
		coefOf := func(v OriginalVariableID) float64 {
			c, _ := e.host.MasterVarCoeff(m, v)
			return c
		}
		if d.Sequence.SatisfiedBy(coefOf) {
			ch.AddCoefLinear(cons, m, 1.0)
		}
	}
	ch.AddCons(cons)
	d.InducedCons = cons
}

// BranchDeactiveMasterGeneric removes d's induced master constraint from
// the active set.
func (e *GenericBranchingEngine) BranchDeactiveMasterGeneric(ch ConstraintHost, d *GenericDecision) {
	if d.InducedCons == nil {
		return
	}
	ch.DelCons(d.InducedCons)
}

// EventExecGenericbranchvaradd handles a master variable newly created
// during pricing: it walks the active chain of generic-branch ancestors
// and adds the variable to every ancestor's induced master constraint
// whose sequence it satisfies and whose block matches.
func (e *GenericBranchingEngine) EventExecGenericbranchvaradd(ch ConstraintHost, newVar MasterVariableID, block BlockIndex, activeAncestors []*GenericDecision) {
	coefOf := func(v OriginalVariableID) float64 {
		c, _ := e.host.MasterVarCoeff(newVar, v)
		return c
	}
	for _, a := range activeAncestors {
		if a == nil || a.InducedCons == nil || a.Block != block {
			continue
		}
		if a.Sequence.SatisfiedBy(coefOf) {
			ch.AddCoefLinear(a.InducedCons, newVar, 1.0)
		}
	}
}
