package logic

import (
	"fmt"
	"strings"
	"sync"

	"github.com/cognicore/relgen/pkg/relgen/internalerr"
)

// Rule is an immutable relational rule: a canonical condition set and a
// single action. Mutations produce new rules.
type Rule struct {
	conditions []Predicate
	action     Predicate

	constOnce  sync.Once
	constConds []Predicate
}

// NewRule validates the action and stores the conditions in canonical order.
// Action arguments must be constants or variables.
func NewRule(conditions []Predicate, action Predicate) (*Rule, error) {
	if action.Negated {
		return nil, fmt.Errorf("%w: negated action %s", internalerr.ErrInvalidAction, action)
	}
	for _, a := range action.Args {
		if a.Kind != Constant && a.Kind != Variable {
			return nil, fmt.Errorf("%w: %s argument %s is %s", internalerr.ErrInvalidAction, action.Name, a, a.Kind)
		}
	}
	return &Rule{
		conditions: Canonical(conditions),
		action:     action.Clone(),
	}, nil
}

// MustRule is NewRule for fixtures; it panics on an invalid action.
func MustRule(conditions []Predicate, action Predicate) *Rule {
	r, err := NewRule(conditions, action)
	if err != nil {
		panic(err)
	}
	return r
}

// Conditions returns a copy of the canonical rule body.
func (r *Rule) Conditions() []Predicate {
	out := make([]Predicate, len(r.conditions))
	for i, p := range r.conditions {
		out[i] = p.Clone()
	}
	return out
}

// Action returns a copy of the rule head.
func (r *Rule) Action() Predicate { return r.action.Clone() }

// ConditionSet returns a fresh mutable copy of the body.
func (r *Rule) ConditionSet() *ConditionSet { return NewConditionSet(r.conditions...) }

// Key identifies the rule structurally.
func (r *Rule) Key() string { return KeyOf(r.conditions) + " => " + r.action.Key() }

// Equal compares bodies and actions structurally.
func (r *Rule) Equal(o *Rule) bool { return r.Key() == o.Key() }

// FreeTerms lists the variables used in the body but not in the action, in
// canonical order of first appearance.
func (r *Rule) FreeTerms() []Term {
	bound := make(map[Term]bool)
	for _, a := range r.action.Args {
		bound[a] = true
	}
	var out []Term
	for _, p := range r.conditions {
		for _, a := range p.Args {
			if a.Kind == Variable && !bound[a] {
				bound[a] = true
				out = append(out, a)
			}
		}
	}
	return out
}

// ConstantConditions returns the conditions grounded purely in the action's
// constant terms (anonymous slots allowed). It is nil when the action has no
// constants. The result is computed once.
func (r *Rule) ConstantConditions() []Predicate {
	r.constOnce.Do(func() {
		consts := make(map[Term]bool)
		for _, a := range r.action.Args {
			if a.Kind == Constant {
				consts[a] = true
			}
		}
		if len(consts) == 0 {
			return
		}
		r.constConds = []Predicate{}
		for _, p := range r.conditions {
			grounded := false
			ok := true
			for _, a := range p.Args {
				switch {
				case a.Kind == Anonymous:
				case consts[a]:
					grounded = true
				default:
					ok = false
				}
			}
			if ok && grounded {
				r.constConds = append(r.constConds, p.Clone())
			}
		}
	})
	return r.constConds
}

func (r *Rule) String() string {
	parts := make([]string, len(r.conditions))
	for i, p := range r.conditions {
		parts[i] = p.String()
	}
	return strings.Join(parts, " ") + " => " + r.action.String()
}
