package creation

import (
	"context"
	"fmt"
	"slices"
	"strings"

	"golang.org/x/sync/errgroup"

	"github.com/cognicore/relgen/pkg/relgen/internalerr"
	"github.com/cognicore/relgen/pkg/relgen/logic"
	"github.com/cognicore/relgen/pkg/relgen/schema"
)

// mutants collects simplified rules keyed by structure.
type mutants struct {
	c        *Creator
	rule     *logic.Rule
	action   logic.Predicate
	original []logic.Predicate
	byKey    map[string]*logic.Rule
}

func (c *Creator) newMutants(rule *logic.Rule) *mutants {
	return &mutants{
		c:        c,
		rule:     rule,
		action:   rule.Action(),
		original: rule.Conditions(),
		byKey:    make(map[string]*logic.Rule),
	}
}

// add simplifies work and keeps it when it is a legal, non-trivial change.
func (m *mutants) add(work []logic.Predicate, sameSize bool) {
	result, ok := m.c.mutate(m.original, work, false, true)
	if !ok {
		return
	}
	if sameSize && len(result) != len(m.original) {
		return
	}
	r, err := logic.NewRule(result, m.action)
	if err != nil {
		return
	}
	m.byKey[r.Key()] = r
}

func (m *mutants) addCondition(p logic.Predicate) {
	m.add(append(clonePreds(m.original), p), false)
}

func (m *mutants) rules() []*logic.Rule {
	out := make([]*logic.Rule, 0, len(m.byKey))
	for _, r := range m.byKey {
		out = append(out, r)
	}
	slices.SortFunc(out, func(a, b *logic.Rule) int { return strings.Compare(a.Key(), b.Key()) })
	return out
}

// SpecialiseRule returns every legal single-step specialisation of rule:
// one mutant per vocabulary condition registered for the rule's action, the
// negated complement of vocabulary conditions that belong to a
// complementary pair, and local specialisations binding module variables
// into anonymous or free slots. Mutants that simplify to a contradiction or
// to the original body are dropped; the rest are deduplicated.
func (c *Creator) SpecialiseRule(rule *logic.Rule) ([]*logic.Rule, error) {
	vocab, err := c.vocabulary(rule)
	if err != nil {
		return nil, err
	}
	m := c.newMutants(rule)

	for _, p := range vocab {
		m.addCondition(p)
		comp, ok := c.schema.Complement(p.Name)
		if !ok {
			continue
		}
		for _, q := range vocab {
			if q.Name == comp && !q.Negated {
				m.addCondition(q.Negate())
			}
		}
	}

	c.localSpecialisations(m)
	for _, mv := range c.schema.ModuleVariables() {
		for _, p := range vocab {
			for i, a := range p.Args {
				if !a.IsAnonymous() || !c.fits(mv, p.Name, i) {
					continue
				}
				q := p.Clone()
				q.Args[i] = mv.Term
				m.addCondition(q)
			}
		}
	}
	return m.rules(), nil
}

// SpecialiseRuleMinor only narrows existing conditions: each mutant binds
// one anonymous slot or one free variable of rule to a module variable.
// Conditions are never added or removed.
func (c *Creator) SpecialiseRuleMinor(rule *logic.Rule) ([]*logic.Rule, error) {
	if err := c.check(rule); err != nil {
		return nil, err
	}
	m := c.newMutants(rule)
	c.localSpecialisations(m)
	return m.rules(), nil
}

func (c *Creator) localSpecialisations(m *mutants) {
	modules := c.schema.ModuleVariables()
	for _, mv := range modules {
		for ci, cond := range m.original {
			if cond.Mentions(mv.Term) {
				continue
			}
			for i, a := range cond.Args {
				if !a.IsAnonymous() || !c.fits(mv, cond.Name, i) {
					continue
				}
				work := clonePreds(m.original)
				work[ci].Args[i] = mv.Term
				m.add(work, true)
			}
		}
	}

	for _, v := range m.rule.FreeTerms() {
		if isModuleVariable(modules, v) {
			continue
		}
		for _, mv := range modules {
			if !c.fitsEverywhere(mv, v, m.original) {
				continue
			}
			work := make([]logic.Predicate, len(m.original))
			for i, p := range m.original {
				work[i] = p.Substitute(map[logic.Term]logic.Term{v: mv.Term})
			}
			m.add(work, true)
		}
	}
}

// GeneraliseRule returns every legal rule obtained by dropping one
// condition. A rule always keeps at least one condition.
func (c *Creator) GeneraliseRule(rule *logic.Rule) ([]*logic.Rule, error) {
	if err := c.check(rule); err != nil {
		return nil, err
	}
	m := c.newMutants(rule)
	if len(m.original) < 2 {
		return nil, nil
	}
	for i := range m.original {
		work := append(clonePreds(m.original[:i]), clonePreds(m.original[i+1:])...)
		m.add(work, false)
	}
	return m.rules(), nil
}

// SpecialiseAll specialises many candidate rules concurrently. The i-th
// result holds the mutants of rules[i].
func (c *Creator) SpecialiseAll(ctx context.Context, rules []*logic.Rule) ([][]*logic.Rule, error) {
	results := make([][]*logic.Rule, len(rules))
	g, gCtx := errgroup.WithContext(ctx)
	g.SetLimit(c.opts.Parallelism)

	for i, rule := range rules {
		g.Go(func() error {
			if err := gCtx.Err(); err != nil {
				return err
			}
			out, err := c.SpecialiseRule(rule)
			if err != nil {
				return fmt.Errorf("rule %d: %w", i, err)
			}
			results[i] = out
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return results, nil
}

// vocabulary instantiates the action's condition templates on the rule's
// action terms.
func (c *Creator) vocabulary(rule *logic.Rule) ([]logic.Predicate, error) {
	if err := c.check(rule); err != nil {
		return nil, err
	}
	action := rule.Action()
	template, _ := c.schema.Action(action.Name)
	mapping := make(map[logic.Term]logic.Term, template.Arity())
	for i, a := range template.Args {
		mapping[a] = action.Args[i]
	}

	templates := c.schema.ActionConditionVocabulary(action.Name)
	out := make([]logic.Predicate, 0, len(templates))
	for _, p := range templates {
		out = append(out, p.Substitute(mapping))
	}
	return out, nil
}

// check rejects rules whose action or conditions the schema does not know.
func (c *Creator) check(rule *logic.Rule) error {
	action := rule.Action()
	if !c.schema.IsValidAction(action) {
		return fmt.Errorf("%w: %s", internalerr.ErrUnknownAction, action)
	}
	for _, p := range rule.Conditions() {
		sig, ok := c.schema.SignatureOf(p.Name)
		if !ok {
			return fmt.Errorf("%w: %s", internalerr.ErrUnknownPredicate, p.Name)
		}
		if len(sig) != p.Arity() {
			return fmt.Errorf("%w: %s takes %d arguments, got %d", internalerr.ErrArity, p.Name, len(sig), p.Arity())
		}
	}
	return nil
}

// fits reports whether mv may fill argument i of predicate name.
func (c *Creator) fits(mv schema.ModuleVariable, name string, i int) bool {
	sig, ok := c.schema.SignatureOf(name)
	if !ok || i >= len(sig) {
		return false
	}
	return c.schema.IsA(mv.Type, sig[i])
}

// fitsEverywhere reports whether mv may replace every occurrence of v.
func (c *Creator) fitsEverywhere(mv schema.ModuleVariable, v logic.Term, conds []logic.Predicate) bool {
	for _, p := range conds {
		if p.Mentions(mv.Term) {
			return false
		}
		for i, a := range p.Args {
			if a == v && !c.fits(mv, p.Name, i) {
				return false
			}
		}
	}
	return true
}

func isModuleVariable(modules []schema.ModuleVariable, v logic.Term) bool {
	for _, mv := range modules {
		if mv.Term == v {
			return true
		}
	}
	return false
}
