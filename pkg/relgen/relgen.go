// Package relgen is the rule engine facade: it ties a loaded domain schema
// to rule creation, state unification and an optional lineage store.
package relgen

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/cognicore/relgen/pkg/relgen/creation"
	"github.com/cognicore/relgen/pkg/relgen/inference"
	"github.com/cognicore/relgen/pkg/relgen/inference/prolog"
	"github.com/cognicore/relgen/pkg/relgen/internalerr"
	"github.com/cognicore/relgen/pkg/relgen/logic"
	"github.com/cognicore/relgen/pkg/relgen/schema"
	"github.com/cognicore/relgen/pkg/relgen/store"
	"github.com/cognicore/relgen/pkg/relgen/unify"
)

// Engine is the main rule generalisation facade
type Engine struct {
	domain  *schema.Domain
	creator *creation.Creator
	session *unify.Session
	inf     inference.Engine
	store   store.Store
	ids     *store.IDs
	log     *slog.Logger
}

// Options configures an Engine. Only Domain is required.
type Options struct {
	Domain    *schema.Domain
	Store     store.Store      // lineage is not recorded when nil
	Session   *unify.Session   // a fresh session when nil
	Inference inference.Engine // embedded Prolog when nil
	Logger    *slog.Logger     // silent when nil
}

// Derived is a rule produced by the engine together with its lineage ID.
// ID is empty when no store is configured.
type Derived struct {
	ID   string
	Rule *logic.Rule
}

// New creates an Engine with the given dependencies
func New(opts Options) (*Engine, error) {
	if opts.Domain == nil {
		return nil, fmt.Errorf("%w: engine needs a domain", internalerr.ErrInvalidInput)
	}
	creator, err := creation.New(opts.Domain, creation.OptionsFrom(opts.Domain.Settings()))
	if err != nil {
		return nil, err
	}
	e := &Engine{
		domain:  opts.Domain,
		creator: creator,
		session: opts.Session,
		inf:     opts.Inference,
		store:   opts.Store,
		ids:     store.NewIDs(),
		log:     opts.Logger,
	}
	if e.session == nil {
		e.session = unify.NewSession()
	}
	if e.inf == nil {
		e.inf = prolog.New()
	}
	if e.log == nil {
		e.log = slog.New(slog.DiscardHandler)
	}
	return e, nil
}

// Close releases the lineage store, if any
func (e *Engine) Close() error {
	if e.store == nil {
		return nil
	}
	return e.store.Close()
}

func (e *Engine) Domain() *schema.Domain { return e.domain }

func (e *Engine) Creator() *creation.Creator { return e.creator }

func (e *Engine) Session() *unify.Session { return e.session }

// Seed records a starting rule with no parent.
func (e *Engine) Seed(ctx context.Context, rule *logic.Rule) (Derived, error) {
	id, err := e.record(ctx, "", store.KindSeed, rule.Action().Name, rule.String())
	if err != nil {
		return Derived{}, err
	}
	return Derived{ID: id, Rule: rule}, nil
}

// Specialise returns the specialisations of parent and records them as its
// children.
func (e *Engine) Specialise(ctx context.Context, parent Derived) ([]Derived, error) {
	mutants, err := e.creator.SpecialiseRule(parent.Rule)
	if err != nil {
		return nil, err
	}
	return e.derive(ctx, parent, store.KindSpecialised, mutants)
}

// SpecialiseMinor returns the same-size specialisations of parent.
func (e *Engine) SpecialiseMinor(ctx context.Context, parent Derived) ([]Derived, error) {
	mutants, err := e.creator.SpecialiseRuleMinor(parent.Rule)
	if err != nil {
		return nil, err
	}
	return e.derive(ctx, parent, store.KindMinor, mutants)
}

// Generalise returns the one-condition-dropped generalisations of parent.
func (e *Engine) Generalise(ctx context.Context, parent Derived) ([]Derived, error) {
	mutants, err := e.creator.GeneraliseRule(parent.Rule)
	if err != nil {
		return nil, err
	}
	return e.derive(ctx, parent, store.KindGeneralised, mutants)
}

// SpecialiseAll specialises many parents in parallel. Lineage is written
// after every parent has been specialised, in input order.
func (e *Engine) SpecialiseAll(ctx context.Context, parents []Derived) ([][]Derived, error) {
	rules := make([]*logic.Rule, len(parents))
	for i, p := range parents {
		rules[i] = p.Rule
	}
	all, err := e.creator.SpecialiseAll(ctx, rules)
	if err != nil {
		return nil, err
	}
	out := make([][]Derived, len(parents))
	for i, mutants := range all {
		if out[i], err = e.derive(ctx, parents[i], store.KindSpecialised, mutants); err != nil {
			return nil, err
		}
	}
	return out, nil
}

// Simplify runs the background knowledge over conds to a fixed point. See
// creation.Creator.SimplifyRule.
func (e *Engine) Simplify(conds []logic.Predicate, illegalCheck bool) ([]logic.Predicate, bool) {
	return e.creator.SimplifyRule(conds, nil, illegalCheck, true)
}

// Fire closes state under the background knowledge and returns the ground
// actions rule proposes in it. A state the axioms reject is ErrInvalidInput.
func (e *Engine) Fire(ctx context.Context, rule *logic.Rule, state []logic.Predicate) ([]logic.Predicate, error) {
	if e.creator.IsIllegal(state) {
		e.log.Debug("rejected state", "rule", rule.String(), "state", logic.KeyOf(logic.Canonical(state)))
		return nil, fmt.Errorf("%w: state contradicts the background knowledge", internalerr.ErrInvalidInput)
	}
	closed, _ := e.creator.Normalise(state, false)
	actions, err := e.inf.Fire(ctx, rule, closed)
	if err != nil {
		return nil, err
	}
	e.log.Debug("fired rule", "rule", rule.String(), "facts", len(closed), "actions", len(actions))
	return actions, nil
}

// Unify merges a new instantiation of action into g. When g generalises and
// a store is configured, the resulting rule is recorded under parentID.
func (e *Engine) Unify(ctx context.Context, parentID, action string, g *unify.Generalisation, facts []logic.Predicate, terms []logic.Term) (unify.Change, string, error) {
	change, err := e.session.UnifyStates(g, facts, terms)
	if err != nil {
		return change, "", err
	}
	e.log.Debug("unified state", "action", action, "change", change, "facts", len(g.Facts))
	if change != unify.Generalised {
		return change, "", nil
	}
	text := logic.KeyOf(logic.Canonical(g.Facts)) + " => " + logic.NewPredicate(action, g.Terms...).String()
	id, err := e.record(ctx, parentID, store.KindUnified, action, text)
	return change, id, err
}

// Load reads a stored rule back. Unified records whose action carries a
// range term cannot be loaded as rules.
func (e *Engine) Load(ctx context.Context, id string) (Derived, store.Record, error) {
	if e.store == nil {
		return Derived{}, store.Record{}, fmt.Errorf("%w: no lineage store configured", internalerr.ErrStoreUnavailable)
	}
	rec, ok, err := e.store.GetRule(ctx, id)
	if err != nil {
		return Derived{}, store.Record{}, err
	}
	if !ok {
		return Derived{}, store.Record{}, fmt.Errorf("%w: rule %s", internalerr.ErrNotFound, id)
	}
	rule, err := logic.ParseRule(rec.Text)
	if err != nil {
		return Derived{}, rec, fmt.Errorf("rule %s: %w", id, err)
	}
	return Derived{ID: rec.ID, Rule: rule}, rec, nil
}

// Children lists the recorded rules derived from id.
func (e *Engine) Children(ctx context.Context, id string) ([]store.Record, error) {
	if e.store == nil {
		return nil, fmt.Errorf("%w: no lineage store configured", internalerr.ErrStoreUnavailable)
	}
	return e.store.Children(ctx, id)
}

func (e *Engine) derive(ctx context.Context, parent Derived, kind store.Kind, mutants []*logic.Rule) ([]Derived, error) {
	e.log.Debug("derived rules", "kind", kind, "parent", parent.Rule.String(), "count", len(mutants))
	out := make([]Derived, len(mutants))
	for i, m := range mutants {
		id, err := e.record(ctx, parent.ID, kind, m.Action().Name, m.String())
		if err != nil {
			return nil, err
		}
		out[i] = Derived{ID: id, Rule: m}
	}
	return out, nil
}

func (e *Engine) record(ctx context.Context, parentID string, kind store.Kind, action, text string) (string, error) {
	if e.store == nil {
		return "", nil
	}
	rec := store.Record{
		ID:        e.ids.Next(),
		ParentID:  parentID,
		Action:    action,
		Text:      text,
		Kind:      kind,
		CreatedAt: time.Now().UTC(),
	}
	if err := e.store.SaveRule(ctx, rec); err != nil {
		return "", fmt.Errorf("save %s rule: %w", kind, err)
	}
	e.log.Debug("rule recorded", "id", rec.ID, "parent", parentID, "kind", kind)
	return rec.ID, nil
}
