package unify

import (
	"fmt"
	"math"
	"strconv"

	"github.com/cognicore/relgen/pkg/relgen/internalerr"
	"github.com/cognicore/relgen/pkg/relgen/logic"
)

// Change reports the effect of UnifyStates.
type Change int

const (
	// NoUnification means no old fact had a counterpart; the old state is
	// left untouched.
	NoUnification Change = -1
	Unchanged     Change = 0
	Generalised   Change = 1
)

func (c Change) String() string {
	switch c {
	case NoUnification:
		return "no-unification"
	case Unchanged:
		return "unchanged"
	case Generalised:
		return "generalised"
	}
	return fmt.Sprintf("change(%d)", int(c))
}

// Generalisation is the accumulated old state: the facts that held in every
// instantiation seen so far and the action terms they are bound to.
type Generalisation struct {
	Facts []logic.Predicate
	Terms []logic.Term
}

// NewGeneralisation seeds a generalisation with one ground instantiation.
func NewGeneralisation(facts []logic.Predicate, terms []logic.Term) *Generalisation {
	g := &Generalisation{Terms: append([]logic.Term(nil), terms...)}
	for _, f := range facts {
		g.Facts = append(g.Facts, f.Clone())
	}
	return g
}

// UnifyStates merges a new ground instantiation into g in place.
//
// Old and new terms are generalised pair by pair: every (old, new) pair
// maps to one result term, so an old term paired with the same new value
// always generalises the same way and a fact that holds verbatim in both
// states is kept as is. Numeric pairs become range variables: an existing
// range grows to include the new value and two differing numbers get a
// fresh range covering both. A non-numeric old term generalises against at
// most one new value. Old facts with no counterpart are dropped.
func (s *Session) UnifyStates(g *Generalisation, newFacts []logic.Predicate, newTerms []logic.Term) (Change, error) {
	if len(g.Terms) != len(newTerms) {
		return Unchanged, fmt.Errorf("%w: %d old terms, %d new terms", internalerr.ErrArity, len(g.Terms), len(newTerms))
	}

	m := newMerger(s, g)
	terms := make([]logic.Term, len(g.Terms))
	for i, o := range g.Terms {
		r, err := m.pair(o, newTerms[i], logic.ActionVar(i))
		if err != nil {
			return Unchanged, fmt.Errorf("term %d: %w", i, err)
		}
		terms[i] = r
	}

	merged, err := m.mergeFacts(g.Facts, newFacts)
	if err != nil {
		return Unchanged, err
	}

	var kept []logic.Predicate
	seen := make(map[string]bool)
	for _, f := range merged {
		if f == nil || seen[f.Key()] {
			continue
		}
		seen[f.Key()] = true
		kept = append(kept, *f)
	}

	if len(g.Facts) > 0 && len(kept) == 0 {
		return NoUnification, nil
	}
	if len(kept) != len(g.Facts) {
		m.changed = true
	}
	g.Facts = kept
	g.Terms = terms
	if m.changed {
		return Generalised, nil
	}
	return Unchanged, nil
}

type pairKey struct{ old, new string }

type merger struct {
	s       *Session
	pairs   map[pairKey]logic.Term // (old, new) -> result term
	bound   map[string]bool        // old non-numeric terms already generalised
	claimed map[string]bool        // old variables and ranges whose own name is taken
	used    map[string]bool        // variable names in use
	changed bool
}

func newMerger(s *Session, g *Generalisation) *merger {
	m := &merger{
		s:       s,
		pairs:   make(map[pairKey]logic.Term),
		bound:   make(map[string]bool),
		claimed: make(map[string]bool),
		used:    make(map[string]bool),
	}
	for _, t := range g.Terms {
		m.use(t)
	}
	for _, f := range g.Facts {
		for _, a := range f.Args {
			m.use(a)
		}
	}
	return m
}

func (m *merger) use(t logic.Term) {
	if t.IsVariable() {
		m.used[t.Name] = true
	}
}

// mergeFacts pairs each old fact with a new counterpart. Facts that need no
// new generalisation are settled first, so a verbatim match is never lost to
// a rename made for another fact. The result is parallel to old; dropped
// facts are nil.
func (m *merger) mergeFacts(old, newFacts []logic.Predicate) ([]*logic.Predicate, error) {
	out := make([]*logic.Predicate, len(old))
	done := make([]bool, len(old))
	for {
		fi, nj := m.nextPair(old, newFacts, done)
		if fi < 0 {
			break
		}
		p, err := m.commit(old[fi], newFacts[nj])
		if err != nil {
			return nil, err
		}
		out[fi] = &p
		done[fi] = true
	}

	for i, f := range old {
		if !done[i] && m.numericMismatch(f, newFacts) {
			return nil, fmt.Errorf("%w: %s has no numeric counterpart", internalerr.ErrNotNumeric, f)
		}
	}
	return out, nil
}

// nextPair returns the earliest old fact whose counterpart needs no new
// pair, falling back to the earliest that needs exactly one.
func (m *merger) nextPair(old, newFacts []logic.Predicate, done []bool) (int, int) {
	fi, nj := -1, -1
	for i, f := range old {
		if done[i] {
			continue
		}
		for j, n := range newFacts {
			cost, ok := m.cost(f, n)
			if !ok {
				continue
			}
			if cost == 0 {
				return i, j
			}
			if fi < 0 {
				fi, nj = i, j
			}
		}
	}
	return fi, nj
}

// cost counts the new pairs needed to generalise f against n. A fact with a
// numeric final argument may only introduce a pair in that position; any
// other fact may introduce one.
func (m *merger) cost(f, n logic.Predicate) (int, bool) {
	if f.Name != n.Name || f.Negated != n.Negated || len(f.Args) != len(n.Args) {
		return 0, false
	}
	numeric := numericFinal(f)
	last := len(f.Args) - 1
	fresh := make(map[pairKey]bool)
	for i, o := range f.Args {
		nt := n.Args[i]
		if m.known(o, nt) {
			continue
		}
		if !m.canPair(o, nt) || (numeric && i != last) {
			return 0, false
		}
		fresh[keyOf(o, nt)] = true
	}
	if len(fresh) > 1 {
		return 0, false
	}
	return len(fresh), true
}

func (m *merger) commit(f, n logic.Predicate) (logic.Predicate, error) {
	p := f.Clone()
	for i, o := range f.Args {
		r, err := m.pair(o, n.Args[i], logic.Term{})
		if err != nil {
			return logic.Predicate{}, fmt.Errorf("%s: %w", f, err)
		}
		p.Args[i] = r
	}
	return p, nil
}

// known reports whether o against n needs no new pair.
func (m *merger) known(o, n logic.Term) bool {
	if identical(o, n) {
		return true
	}
	_, ok := m.pairs[keyOf(o, n)]
	return ok
}

// canPair reports whether a new pair (o, n) may be introduced by a fact.
func (m *merger) canPair(o, n logic.Term) bool {
	switch {
	case o.IsRange() || isNumber(o):
		return n.IsNumeric()
	case o.IsVariable() || o.IsConstant():
		return !m.bound[keyOf(o, n).old]
	}
	return false
}

// pair returns the result term generalising o against n, registering the
// pair on first use. hint names the variable for a generalised action term.
func (m *merger) pair(o, n logic.Term, hint logic.Term) (logic.Term, error) {
	if identical(o, n) {
		return o, nil
	}
	k := keyOf(o, n)
	if r, ok := m.pairs[k]; ok {
		return r, nil
	}

	var r logic.Term
	switch {
	case o.IsRange():
		lo, hi, ok := bounds(n)
		if !ok {
			return logic.Term{}, fmt.Errorf("%w: range %s against %s", internalerr.ErrNotNumeric, o.Name, n)
		}
		if !m.claimed[k.old] {
			m.claimed[k.old] = true
			r = o.Widen(lo, hi)
		} else {
			r = m.s.NewRange(math.Min(o.Lower, lo), math.Max(o.Upper, hi))
		}
		if r != o {
			m.changed = true
		}
	case isNumber(o):
		lo, hi, ok := bounds(n)
		if !ok {
			return logic.Term{}, fmt.Errorf("%w: %s against %s", internalerr.ErrNotNumeric, o, n)
		}
		v, _ := o.Numeric()
		r = m.s.NewRange(math.Min(v, lo), math.Max(v, hi))
		m.changed = true
	case o.IsVariable() && !m.claimed[k.old]:
		m.claimed[k.old] = true
		m.bound[k.old] = true
		r = o
	case o.IsVariable() || o.IsConstant():
		m.bound[k.old] = true
		r = m.freshVar(hint)
		m.changed = true
	default:
		return logic.Term{}, fmt.Errorf("%w: cannot generalise %s against %s", internalerr.ErrInvalidInput, o, n)
	}
	m.pairs[k] = r
	return r, nil
}

// numericMismatch reports whether f has a counterpart on every argument but
// the last whose final value is not a number.
func (m *merger) numericMismatch(f logic.Predicate, newFacts []logic.Predicate) bool {
	if !numericFinal(f) {
		return false
	}
	last := len(f.Args) - 1
	for _, n := range newFacts {
		if n.Name != f.Name || n.Negated != f.Negated || len(n.Args) != len(f.Args) || n.Args[last].IsNumeric() {
			continue
		}
		match := true
		for i := 0; i < last; i++ {
			if !m.known(f.Args[i], n.Args[i]) {
				match = false
				break
			}
		}
		if match {
			return true
		}
	}
	return false
}

// freshVar returns hint when it is free, otherwise the first unused ?V<k>.
func (m *merger) freshVar(hint logic.Term) logic.Term {
	if hint.IsVariable() && !m.used[hint.Name] {
		m.used[hint.Name] = true
		return hint
	}
	for k := 0; ; k++ {
		v := logic.Var(fmt.Sprintf("V%d", k))
		if !m.used[v.Name] {
			m.used[v.Name] = true
			return v
		}
	}
}

// identical reports whether o already describes n exactly.
func identical(o, n logic.Term) bool {
	if o.IsAnonymous() {
		return true
	}
	if !o.IsConstant() || !n.IsConstant() {
		return false
	}
	if o == n {
		return true
	}
	a, ok1 := o.Numeric()
	b, ok2 := n.Numeric()
	return ok1 && ok2 && a == b
}

func keyOf(o, n logic.Term) pairKey {
	return pairKey{old: termKey(o), new: termKey(n)}
}

func termKey(t logic.Term) string {
	switch {
	case t.IsRange():
		return "range:" + t.Name
	case t.IsVariable():
		return "var:" + t.Name
	}
	if v, ok := t.Numeric(); ok {
		return "num:" + strconv.FormatFloat(v, 'g', -1, 64)
	}
	return "const:" + t.Name
}

func numericFinal(f logic.Predicate) bool {
	return len(f.Args) > 0 && f.Args[len(f.Args)-1].IsNumeric()
}

func isNumber(t logic.Term) bool {
	_, ok := t.Numeric()
	return ok
}

func bounds(t logic.Term) (float64, float64, bool) {
	if t.IsRange() {
		return t.Lower, t.Upper, true
	}
	v, ok := t.Numeric()
	return v, v, ok
}
