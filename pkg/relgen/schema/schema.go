// Package schema holds the domain schema: predicate signatures, the type
// hierarchy, per-action condition vocabularies, complementary predicate
// pairs, goal-scoped module variables and the ordered background knowledge.
//
// A Domain is built once at load time and is read-only afterwards, so it can
// be shared across goroutines without locking.
package schema

import (
	"fmt"
	"sort"

	"github.com/cognicore/relgen/pkg/relgen/internalerr"
	"github.com/cognicore/relgen/pkg/relgen/knowledge"
	"github.com/cognicore/relgen/pkg/relgen/logic"
)

// NumberType is the built-in type of numeric arguments.
const NumberType = "number"

// ModuleVariable is a goal-scoped variable that local specialisation may
// bind into free rule slots.
type ModuleVariable struct {
	Term logic.Term
	Type string
}

// Settings are the engine knobs carried by a domain file.
type Settings struct {
	CacheSize     int
	Parallelism   int
	MaxIterations int
}

type action struct {
	template   logic.Predicate
	vocabulary []logic.Predicate
}

// Domain is an immutable, validated domain schema.
type Domain struct {
	name       string
	parents    map[string]string
	signatures map[string][]string
	actions    map[string]action
	complement map[string]string
	module     []ModuleVariable
	background []*knowledge.BackgroundKnowledge
	settings   Settings
}

func (d *Domain) Name() string { return d.name }

// SignatureOf returns the argument types of a predicate or action.
func (d *Domain) SignatureOf(name string) ([]string, bool) {
	sig, ok := d.signatures[name]
	if !ok {
		return nil, false
	}
	return append([]string(nil), sig...), true
}

// IsValidAction reports whether p names a registered action with the
// right arity.
func (d *Domain) IsValidAction(p logic.Predicate) bool {
	a, ok := d.actions[p.Name]
	return ok && !p.Negated && a.template.Arity() == p.Arity()
}

// Action returns the registered template of an action.
func (d *Domain) Action(name string) (logic.Predicate, bool) {
	a, ok := d.actions[name]
	if !ok {
		return logic.Predicate{}, false
	}
	return a.template.Clone(), true
}

// Actions lists action names in sorted order.
func (d *Domain) Actions() []string {
	out := make([]string, 0, len(d.actions))
	for name := range d.actions {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}

// ActionConditionVocabulary returns the condition templates registered for
// an action, written over the action template's variables.
func (d *Domain) ActionConditionVocabulary(name string) []logic.Predicate {
	a, ok := d.actions[name]
	if !ok {
		return nil
	}
	out := make([]logic.Predicate, len(a.vocabulary))
	for i, p := range a.vocabulary {
		out[i] = p.Clone()
	}
	return out
}

// Complement returns the declared complementary partner of a predicate.
func (d *Domain) Complement(name string) (string, bool) {
	c, ok := d.complement[name]
	return c, ok
}

// IsA reports whether typ equals ancestor or descends from it.
func (d *Domain) IsA(typ, ancestor string) bool {
	seen := make(map[string]bool)
	for t := typ; t != ""; t = d.parents[t] {
		if t == ancestor {
			return true
		}
		if seen[t] {
			return false
		}
		seen[t] = true
	}
	return false
}

// BackgroundKnowledge returns the axioms in declaration order.
func (d *Domain) BackgroundKnowledge() []*knowledge.BackgroundKnowledge {
	return append([]*knowledge.BackgroundKnowledge(nil), d.background...)
}

// ModuleVariables returns the goal-scoped variables in declaration order.
func (d *Domain) ModuleVariables() []ModuleVariable {
	return append([]ModuleVariable(nil), d.module...)
}

// Settings returns the engine knobs declared by the domain.
func (d *Domain) Settings() Settings { return d.settings }

// CheckPredicate verifies that p names a known predicate with the right arity.
func (d *Domain) CheckPredicate(p logic.Predicate) error {
	sig, ok := d.signatures[p.Name]
	if !ok {
		return fmt.Errorf("%w: %s", internalerr.ErrUnknownPredicate, p.Name)
	}
	if len(sig) != p.Arity() {
		return fmt.Errorf("%w: %s takes %d arguments, got %d", internalerr.ErrArity, p.Name, len(sig), p.Arity())
	}
	return nil
}
