// Package knowledge implements domain axioms ("background knowledge") and
// their application to rule condition sets.
package knowledge

import (
	"fmt"
	"strings"

	"github.com/cognicore/relgen/pkg/relgen/internalerr"
	"github.com/cognicore/relgen/pkg/relgen/logic"
)

// Kind tags the form of an axiom.
type Kind uint8

const (
	Equivalence Kind = iota
	Implication
	ConditionalAssertion
)

func (k Kind) String() string {
	switch k {
	case Equivalence:
		return "equivalence"
	case Implication:
		return "implication"
	case ConditionalAssertion:
		return "assertion"
	}
	return "unknown"
}

// maxRewrites bounds the rewrites one Simplify call may perform.
const maxRewrites = 64

// BackgroundKnowledge is one parsed, immutable domain axiom.
type BackgroundKnowledge struct {
	left  []logic.Predicate
	right []logic.Predicate
	kind  Kind
	text  string
}

// Outcome reports what Simplify did to a condition set.
type Outcome struct {
	Changed       bool
	Contradiction bool
}

// Parse reads an axiom:
//
//	(above ?X ?) <=> (on ?X ?)
//	(onFloor ?X) => (not (above ?X ?))
//	(floor ?X) => (assert (clear ?X))
func Parse(text string) (*BackgroundKnowledge, error) {
	text = strings.TrimSpace(text)
	kind := Implication
	sep := "=>"
	idx := strings.Index(text, "<=>")
	if idx >= 0 {
		kind, sep = Equivalence, "<=>"
	} else {
		idx = strings.Index(text, "=>")
	}
	if idx < 0 {
		return nil, fmt.Errorf("%w: axiom %q has no '=>' or '<=>'", internalerr.ErrSyntax, text)
	}

	lhs := strings.TrimSpace(text[:idx])
	rhs := strings.TrimSpace(text[idx+len(sep):])
	if kind == Implication && strings.HasPrefix(rhs, "(assert") {
		if !strings.HasSuffix(rhs, ")") {
			return nil, fmt.Errorf("%w: unterminated assert in %q", internalerr.ErrSyntax, text)
		}
		kind = ConditionalAssertion
		rhs = strings.TrimSuffix(strings.TrimPrefix(rhs, "(assert"), ")")
	}

	left, err := logic.ParseConditions(lhs)
	if err != nil {
		return nil, fmt.Errorf("axiom %q left side: %w", text, err)
	}
	right, err := logic.ParseConditions(rhs)
	if err != nil {
		return nil, fmt.Errorf("axiom %q right side: %w", text, err)
	}
	if len(left) == 0 || len(right) == 0 {
		return nil, fmt.Errorf("%w: axiom %q has an empty side", internalerr.ErrSyntax, text)
	}

	return &BackgroundKnowledge{
		left:  logic.Canonical(left),
		right: logic.Canonical(right),
		kind:  kind,
		text:  text,
	}, nil
}

// MustParse is Parse for fixtures and static domain tables.
func MustParse(text string) *BackgroundKnowledge {
	bk, err := Parse(text)
	if err != nil {
		panic(err)
	}
	return bk
}

func (bk *BackgroundKnowledge) Kind() Kind { return bk.kind }

// Left returns a copy of the left-hand atoms.
func (bk *BackgroundKnowledge) Left() []logic.Predicate { return copyPreds(bk.left) }

// Right returns a copy of the right-hand atoms.
func (bk *BackgroundKnowledge) Right() []logic.Predicate { return copyPreds(bk.right) }

func (bk *BackgroundKnowledge) String() string { return bk.text }

// canonical returns (canonical side, rewritten side) for an equivalence.
// The declared left side wins unless it has more atoms than the right.
func (bk *BackgroundKnowledge) canonical() (keep, replace []logic.Predicate) {
	if len(bk.left) > len(bk.right) {
		return bk.right, bk.left
	}
	return bk.left, bk.right
}

// Simplify applies the axiom to conds in place.
//
// An equivalence rewrites matches of its non-canonical side. An implication
// adds implied positive atoms, drops implied negated atoms and detects
// contradictions; with illegalCheck unset a contradiction stops immediately
// and conds must be discarded by the caller, with it set the contradicted
// atoms are removed and the contradiction is only recorded. A conditional
// assertion is consulted only when illegalCheck is set.
func (bk *BackgroundKnowledge) Simplify(conds *logic.ConditionSet, illegalCheck bool) Outcome {
	switch bk.kind {
	case Equivalence:
		return bk.rewrite(conds)
	case Implication:
		return bk.imply(conds, illegalCheck, true)
	case ConditionalAssertion:
		if !illegalCheck {
			return Outcome{}
		}
		return bk.imply(conds, true, false)
	}
	return Outcome{}
}

func (bk *BackgroundKnowledge) rewrite(conds *logic.ConditionSet) Outcome {
	keep, replace := bk.canonical()
	var out Outcome
	for i := 0; i < maxRewrites; i++ {
		var (
			found   bool
			b       bindings
			matched []logic.Predicate
		)
		match(replace, conds.Sorted(), false, func(mb bindings, m []logic.Predicate) bool {
			found, b, matched = true, mb, m
			return false
		})
		if !found {
			return out
		}

		before := conds.Clone()
		for _, m := range matched {
			conds.Remove(m)
		}
		for _, k := range keep {
			conds.Add(instantiateLenient(k, b))
		}
		if conds.Equal(before) {
			return out
		}
		out.Changed = true
	}
	return out
}

func (bk *BackgroundKnowledge) imply(conds *logic.ConditionSet, illegalCheck, add bool) Outcome {
	type firing struct {
		b       bindings
		matched []logic.Predicate
	}
	var firings []firing
	match(bk.left, conds.Sorted(), true, func(b bindings, m []logic.Predicate) bool {
		firings = append(firings, firing{b, m})
		return true
	})

	var out Outcome
	for _, f := range firings {
		antecedent := logic.NewConditionSet(f.matched...)
		for _, rp := range bk.right {
			c, ok := instantiate(rp, f.b)
			if !ok {
				continue
			}
			if c.Negated {
				if bk.denied(conds, c, antecedent, illegalCheck, &out) {
					return out
				}
				continue
			}
			if bk.asserted(conds, c, illegalCheck, add, &out) {
				return out
			}
		}
	}
	return out
}

// asserted handles a positive consequent c. It reports true when a
// contradiction must abort simplification.
func (bk *BackgroundKnowledge) asserted(conds *logic.ConditionSet, c logic.Predicate, illegalCheck, add bool, out *Outcome) bool {
	present := false
	for _, q := range conds.Sorted() {
		if q.Negated && q.Positive().Subsumes(c) {
			out.Contradiction = true
			if !illegalCheck {
				return true
			}
			conds.Remove(q)
			out.Changed = true
			continue
		}
		if !q.Negated && c.Subsumes(q) {
			present = true
		}
	}
	if add && !present && conds.Add(c) {
		out.Changed = true
	}
	return false
}

// denied handles a negated consequent c. Positive instances of c's atom
// contradict it; negated atoms it already covers are redundant.
func (bk *BackgroundKnowledge) denied(conds *logic.ConditionSet, c logic.Predicate, antecedent *logic.ConditionSet, illegalCheck bool, out *Outcome) bool {
	pos := c.Positive()
	for _, q := range conds.Sorted() {
		if antecedent.Contains(q) {
			continue
		}
		if !q.Negated && pos.Subsumes(q) {
			out.Contradiction = true
			if !illegalCheck {
				return true
			}
			conds.Remove(q)
			out.Changed = true
			continue
		}
		if q.Negated && pos.Subsumes(q.Positive()) {
			conds.Remove(q)
			out.Changed = true
		}
	}
	return false
}

func copyPreds(ps []logic.Predicate) []logic.Predicate {
	out := make([]logic.Predicate, len(ps))
	for i, p := range ps {
		out[i] = p.Clone()
	}
	return out
}
