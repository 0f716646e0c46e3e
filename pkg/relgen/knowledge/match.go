package knowledge

import (
	"github.com/cognicore/relgen/pkg/relgen/logic"
)

// bindings maps axiom variable names to the rule terms they matched.
type bindings map[string]logic.Term

func (b bindings) clone() bindings {
	c := make(bindings, len(b))
	for k, v := range b {
		c[k] = v
	}
	return c
}

// matchTerm matches one axiom term against one rule term. With loose set, an
// axiom anonymous slot accepts any rule term and an axiom range accepts any
// numeric value inside it; otherwise both must be exact.
func matchTerm(pattern, concrete logic.Term, b bindings, loose bool) bool {
	switch pattern.Kind {
	case logic.Anonymous:
		return loose || concrete.Kind == logic.Anonymous
	case logic.Variable:
		bound, ok := b[pattern.Name]
		if !ok {
			b[pattern.Name] = concrete
			return true
		}
		// an anonymous binding stands for "something", never a shared value
		if bound.Kind == logic.Anonymous {
			return false
		}
		return bound == concrete
	case logic.Range:
		if pattern == concrete {
			return true
		}
		if !loose {
			return false
		}
		if v, ok := concrete.Numeric(); ok {
			return pattern.Contains(v)
		}
		return concrete.Kind == logic.Range && concrete.Lower >= pattern.Lower && concrete.Upper <= pattern.Upper
	}
	return pattern == concrete
}

// matchAtom extends b so that pattern maps onto concrete. Negated patterns
// always match strictly: "not p(X, ?)" is stronger than "not p(X, a)".
func matchAtom(pattern, concrete logic.Predicate, b bindings, loose bool) (bindings, bool) {
	if pattern.Name != concrete.Name || pattern.Negated != concrete.Negated || len(pattern.Args) != len(concrete.Args) {
		return nil, false
	}
	loose = loose && !pattern.Negated
	next := b.clone()
	for i := range pattern.Args {
		if !matchTerm(pattern.Args[i], concrete.Args[i], next, loose) {
			return nil, false
		}
	}
	return next, true
}

// match enumerates every substitution mapping all patterns onto distinct
// atoms of conds. visit receives the bindings and the matched atoms in
// pattern order; returning false stops the search.
func match(patterns, conds []logic.Predicate, loose bool, visit func(bindings, []logic.Predicate) bool) {
	used := make([]bool, len(conds))
	matched := make([]logic.Predicate, len(patterns))

	var walk func(i int, b bindings) bool
	walk = func(i int, b bindings) bool {
		if i == len(patterns) {
			return visit(b, append([]logic.Predicate(nil), matched...))
		}
		for j, c := range conds {
			if used[j] {
				continue
			}
			next, ok := matchAtom(patterns[i], c, b, loose)
			if !ok {
				continue
			}
			used[j] = true
			matched[i] = c
			cont := walk(i+1, next)
			used[j] = false
			if !cont {
				return false
			}
		}
		return true
	}
	walk(0, bindings{})
}

// instantiate applies b to an axiom atom. Unbound variables become anonymous.
// A positive atom carries an anonymous binding over as "something". ok is
// false for a negated atom mentioning such a binding, since denying one
// unspecified term is not the same as denying every term.
func instantiate(p logic.Predicate, b bindings) (logic.Predicate, bool) {
	q := p.Clone()
	for i, a := range q.Args {
		if a.Kind != logic.Variable {
			continue
		}
		v, ok := b[a.Name]
		if !ok {
			q.Args[i] = logic.Anon()
			continue
		}
		if v.Kind == logic.Anonymous && q.Negated {
			return q, false
		}
		q.Args[i] = v
	}
	return q, true
}

// instantiateLenient is instantiate for equivalence rewrites, where an
// anonymous binding carries over unchanged.
func instantiateLenient(p logic.Predicate, b bindings) logic.Predicate {
	q := p.Clone()
	for i, a := range q.Args {
		if a.Kind != logic.Variable {
			continue
		}
		if v, ok := b[a.Name]; ok {
			q.Args[i] = v
		} else {
			q.Args[i] = logic.Anon()
		}
	}
	return q
}
