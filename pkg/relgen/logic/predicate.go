package logic

import (
	"strings"
)

// Predicate is a relational atom: a named tuple of terms, optionally negated.
// Predicates are treated as immutable values; transformations return copies.
type Predicate struct {
	Name    string
	Args    []Term
	Negated bool
}

// NewPredicate builds a positive atom.
func NewPredicate(name string, args ...Term) Predicate {
	return Predicate{Name: name, Args: append([]Term(nil), args...)}
}

// Arity returns the number of arguments.
func (p Predicate) Arity() int { return len(p.Args) }

// Negate returns the atom with its negation flag flipped.
func (p Predicate) Negate() Predicate {
	q := p.Clone()
	q.Negated = !p.Negated
	return q
}

// Positive returns the atom without negation.
func (p Predicate) Positive() Predicate {
	q := p.Clone()
	q.Negated = false
	return q
}

// Clone returns a copy that shares no argument storage with p.
func (p Predicate) Clone() Predicate {
	return Predicate{Name: p.Name, Args: append([]Term(nil), p.Args...), Negated: p.Negated}
}

// Equal reports exact structural equality.
func (p Predicate) Equal(o Predicate) bool {
	if p.Name != o.Name || p.Negated != o.Negated || len(p.Args) != len(o.Args) {
		return false
	}
	for i := range p.Args {
		if p.Args[i] != o.Args[i] {
			return false
		}
	}
	return true
}

// Compare is a total order over predicates: name, negation (positive first),
// arity, then arguments left to right.
func Compare(a, b Predicate) int {
	if c := strings.Compare(a.Name, b.Name); c != 0 {
		return c
	}
	if a.Negated != b.Negated {
		if !a.Negated {
			return -1
		}
		return 1
	}
	if len(a.Args) != len(b.Args) {
		if len(a.Args) < len(b.Args) {
			return -1
		}
		return 1
	}
	for i := range a.Args {
		if c := CompareTerms(a.Args[i], b.Args[i]); c != 0 {
			return c
		}
	}
	return 0
}

// Substitute replaces every argument found in m.
func (p Predicate) Substitute(m map[Term]Term) Predicate {
	q := p.Clone()
	for i, a := range q.Args {
		if r, ok := m[a]; ok {
			q.Args[i] = r
		}
	}
	return q
}

// Mentions reports whether t occurs among the arguments.
func (p Predicate) Mentions(t Term) bool {
	for _, a := range p.Args {
		if a == t {
			return true
		}
	}
	return false
}

// Subsumes reports whether p is at least as general as q: same name and
// negation, and every argument of p is Anonymous or equal to q's.
func (p Predicate) Subsumes(q Predicate) bool {
	if p.Name != q.Name || p.Negated != q.Negated || len(p.Args) != len(q.Args) {
		return false
	}
	for i, a := range p.Args {
		if a.Kind == Anonymous {
			continue
		}
		if a != q.Args[i] {
			return false
		}
	}
	return true
}

// Key returns the canonical textual form, used for set membership.
func (p Predicate) Key() string { return p.String() }

func (p Predicate) String() string {
	var b strings.Builder
	if p.Negated {
		b.WriteString("(not ")
	}
	b.WriteByte('(')
	b.WriteString(p.Name)
	for _, a := range p.Args {
		b.WriteByte(' ')
		b.WriteString(a.String())
	}
	b.WriteByte(')')
	if p.Negated {
		b.WriteByte(')')
	}
	return b.String()
}
