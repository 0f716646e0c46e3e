// Package creation produces rule mutations for policy search and drives
// condition-set simplification to a fixed point.
//
// A Creator is safe for concurrent use: the schema and its axioms are
// read-only, every call works on its own condition set and the
// normalisation cache is internally locked.
package creation

import (
	"fmt"
	"strconv"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/cognicore/relgen/pkg/relgen/internalerr"
	"github.com/cognicore/relgen/pkg/relgen/knowledge"
	"github.com/cognicore/relgen/pkg/relgen/logic"
	"github.com/cognicore/relgen/pkg/relgen/schema"
)

// Schema is the read-only domain view rule creation needs.
type Schema interface {
	SignatureOf(name string) ([]string, bool)
	IsValidAction(p logic.Predicate) bool
	Action(name string) (logic.Predicate, bool)
	IsA(typ, ancestor string) bool
	BackgroundKnowledge() []*knowledge.BackgroundKnowledge
	ActionConditionVocabulary(action string) []logic.Predicate
	Complement(name string) (string, bool)
	ModuleVariables() []schema.ModuleVariable
}

// Options tune a Creator. Zero values fall back to the schema package
// defaults.
type Options struct {
	CacheSize     int
	Parallelism   int
	MaxIterations int
}

// OptionsFrom copies the engine settings of a loaded domain.
func OptionsFrom(s schema.Settings) Options {
	return Options{
		CacheSize:     s.CacheSize,
		Parallelism:   s.Parallelism,
		MaxIterations: s.MaxIterations,
	}
}

type normalised struct {
	preds []logic.Predicate
	ok    bool
}

// Creator specialises, generalises and simplifies rules against one schema.
type Creator struct {
	schema     Schema
	background []*knowledge.BackgroundKnowledge
	opts       Options
	cache      *lru.Cache[string, normalised]
}

// New creates a Creator over s.
func New(s Schema, opts Options) (*Creator, error) {
	if s == nil {
		return nil, fmt.Errorf("%w: nil schema", internalerr.ErrInvalidInput)
	}
	if opts.CacheSize <= 0 {
		opts.CacheSize = schema.DefaultCacheSize
	}
	if opts.Parallelism <= 0 {
		opts.Parallelism = schema.DefaultParallelism
	}
	if opts.MaxIterations <= 0 {
		opts.MaxIterations = schema.DefaultMaxIterations
	}
	cache, err := lru.New[string, normalised](opts.CacheSize)
	if err != nil {
		return nil, err
	}
	return &Creator{
		schema:     s,
		background: s.BackgroundKnowledge(),
		opts:       opts,
		cache:      cache,
	}, nil
}

// Purge empties the normalisation cache.
func (c *Creator) Purge() { c.cache.Purge() }

// SimplifyRule simplifies conds plus added (which may be nil) with the
// schema's background knowledge. The boolean is false when the mutation
// must be discarded: a contradiction was found (and illegalCheck is unset)
// or the result is identical to conds. With illegalCheck set, contradicted
// atoms are removed and the remaining illegal witness is returned. With
// fixedPoint unset the axioms are applied in a single pass.
func (c *Creator) SimplifyRule(conds []logic.Predicate, added *logic.Predicate, illegalCheck, fixedPoint bool) ([]logic.Predicate, bool) {
	original := logic.Canonical(conds)
	work := append([]logic.Predicate(nil), original...)
	if added != nil {
		work = append(work, *added)
	}
	return c.mutate(original, work, illegalCheck, fixedPoint)
}

// Normalise returns the fixed point of conds under the background knowledge,
// even when nothing changed. ok is false on contradiction.
func (c *Creator) Normalise(conds []logic.Predicate, illegalCheck bool) ([]logic.Predicate, bool) {
	return c.normalise(conds, illegalCheck, true)
}

// IsIllegal reports whether conds contain a contradiction under the
// background knowledge, conditional assertions included.
func (c *Creator) IsIllegal(conds []logic.Predicate) bool {
	_, ok := c.normalise(conds, false, true)
	if !ok {
		return true
	}
	work := logic.NewConditionSet(conds...)
	for _, bk := range c.background {
		if bk.Kind() != knowledge.ConditionalAssertion {
			continue
		}
		if out := bk.Simplify(work.Clone(), true); out.Contradiction {
			return true
		}
	}
	return false
}

// mutate normalises work and rejects results equal to original.
func (c *Creator) mutate(original, work []logic.Predicate, illegalCheck, fixedPoint bool) ([]logic.Predicate, bool) {
	result, ok := c.normalise(work, illegalCheck, fixedPoint)
	if !ok {
		return nil, false
	}
	if logic.KeyOf(result) == logic.KeyOf(original) {
		return nil, false
	}
	return result, true
}

func (c *Creator) normalise(conds []logic.Predicate, illegalCheck, fixedPoint bool) ([]logic.Predicate, bool) {
	set := logic.NewConditionSet(conds...)
	key := set.Key() + "|" + strconv.FormatBool(illegalCheck) + strconv.FormatBool(fixedPoint)
	if hit, ok := c.cache.Get(key); ok {
		return clonePreds(hit.preds), hit.ok
	}

	ok := c.simplify(set, illegalCheck, fixedPoint)
	var res normalised
	if ok {
		res = normalised{preds: set.Sorted(), ok: true}
	}
	c.cache.Add(key, res)
	return clonePreds(res.preds), res.ok
}

// simplify applies every axiom and the built-in passes until nothing
// changes. It reports false on a contradiction outside illegal checking.
func (c *Creator) simplify(set *logic.ConditionSet, illegalCheck, fixedPoint bool) bool {
	for i := 0; i < c.opts.MaxIterations; i++ {
		changed := false
		for _, bk := range c.background {
			out := bk.Simplify(set, illegalCheck)
			if out.Contradiction && !illegalCheck {
				return false
			}
			changed = changed || out.Changed
		}
		if removeSubsumed(set) {
			changed = true
		}
		if contradictory(set) && !illegalCheck {
			return false
		}
		if !changed || !fixedPoint {
			return true
		}
	}
	return true
}

// removeSubsumed drops atoms implied by a more specific atom of the set:
// (above ?X ?) is redundant next to (above ?X a), and (not (above ?X a))
// is redundant next to (not (above ?X ?)).
func removeSubsumed(set *logic.ConditionSet) bool {
	preds := set.Sorted()
	changed := false
	for _, p := range preds {
		for _, q := range preds {
			if p.Equal(q) || p.Negated != q.Negated {
				continue
			}
			redundant := (!p.Negated && p.Subsumes(q)) || (p.Negated && q.Subsumes(p))
			if redundant && set.Remove(p) {
				changed = true
				break
			}
		}
	}
	return changed
}

// contradictory reports an atom together with a negation covering it.
func contradictory(set *logic.ConditionSet) bool {
	preds := set.Sorted()
	for _, n := range preds {
		if !n.Negated {
			continue
		}
		pos := n.Positive()
		for _, p := range preds {
			if !p.Negated && pos.Subsumes(p) {
				return true
			}
		}
	}
	return false
}

func clonePreds(ps []logic.Predicate) []logic.Predicate {
	if ps == nil {
		return nil
	}
	out := make([]logic.Predicate, len(ps))
	for i, p := range ps {
		out[i] = p.Clone()
	}
	return out
}
