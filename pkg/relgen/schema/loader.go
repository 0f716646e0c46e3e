package schema

import (
	"fmt"

	"github.com/cognicore/relgen/pkg/relgen/internalerr"
	"github.com/cognicore/relgen/pkg/relgen/knowledge"
	"github.com/cognicore/relgen/pkg/relgen/logic"
)

// Default engine settings, used when the domain file leaves them unset.
const (
	DefaultCacheSize     = 4096
	DefaultParallelism   = 4
	DefaultMaxIterations = 32
)

// Loader loads a domain definition file and resolves it into a Domain
type Loader struct {
	DomainPath string
}

// Load reads the domain file and returns the validated schema
func (l *Loader) Load() (*Domain, error) {
	if l.DomainPath == "" {
		return nil, fmt.Errorf("%w: no domain path", internalerr.ErrInvalidConfig)
	}
	f, err := LoadFile(l.DomainPath)
	if err != nil {
		return nil, fmt.Errorf("load domain: %w", err)
	}
	d, err := Build(f)
	if err != nil {
		return nil, fmt.Errorf("build domain %s: %w", l.DomainPath, err)
	}
	return d, nil
}

// Build validates a decoded domain file. Any malformed axiom, template or
// reference to an undeclared predicate or type fails the whole domain.
func Build(f *File) (*Domain, error) {
	d := &Domain{
		name:       f.Name,
		parents:    make(map[string]string, len(f.Types)),
		signatures: make(map[string][]string, len(f.Predicates)+len(f.Actions)),
		actions:    make(map[string]action, len(f.Actions)),
		complement: make(map[string]string),
		settings:   settingsOrDefault(f.Engine),
	}

	known := map[string]bool{NumberType: true}
	for child, parent := range f.Types {
		d.parents[child] = parent
		known[child] = true
		if parent != "" {
			known[parent] = true
		}
	}
	for child := range d.parents {
		if hasCycle(d.parents, child) {
			return nil, fmt.Errorf("%w: type hierarchy cycle through %s", internalerr.ErrInvalidConfig, child)
		}
	}

	for name, sig := range f.Predicates {
		for _, typ := range sig {
			if !known[typ] {
				return nil, fmt.Errorf("%w: predicate %s uses undeclared type %s", internalerr.ErrInvalidConfig, name, typ)
			}
		}
		d.signatures[name] = append([]string(nil), sig...)
	}

	for name, ac := range f.Actions {
		a, err := buildAction(d, name, ac, known)
		if err != nil {
			return nil, err
		}
		d.actions[name] = a
	}

	for _, pair := range f.Complementary {
		if len(pair) != 2 {
			return nil, fmt.Errorf("%w: complementary entry %v must name two predicates", internalerr.ErrInvalidConfig, pair)
		}
		for _, p := range pair {
			if _, ok := d.signatures[p]; !ok {
				return nil, fmt.Errorf("%w: complementary predicate %s", internalerr.ErrUnknownPredicate, p)
			}
		}
		d.complement[pair[0]] = pair[1]
		d.complement[pair[1]] = pair[0]
	}

	for _, mv := range f.Module {
		if !known[mv.Type] {
			return nil, fmt.Errorf("%w: module variable %s has undeclared type %s", internalerr.ErrInvalidConfig, mv.Name, mv.Type)
		}
		d.module = append(d.module, ModuleVariable{Term: logic.Var(mv.Name), Type: mv.Type})
	}

	for i, text := range f.Background {
		bk, err := knowledge.Parse(text)
		if err != nil {
			return nil, fmt.Errorf("background %d: %w", i, err)
		}
		for _, p := range append(bk.Left(), bk.Right()...) {
			if err := d.CheckPredicate(p); err != nil {
				return nil, fmt.Errorf("background %d: %w", i, err)
			}
		}
		d.background = append(d.background, bk)
	}

	return d, nil
}

func buildAction(d *Domain, name string, ac ActionConfig, known map[string]bool) (action, error) {
	template, err := logic.ParsePredicate(ac.Template)
	if err != nil {
		return action{}, fmt.Errorf("action %s template: %w", name, err)
	}
	if template.Name != name {
		return action{}, fmt.Errorf("%w: action %s has template %s", internalerr.ErrInvalidConfig, name, template)
	}
	params := make(map[logic.Term]bool)
	for _, a := range template.Args {
		if !a.IsVariable() {
			return action{}, fmt.Errorf("%w: action %s template argument %s must be a variable", internalerr.ErrInvalidAction, name, a)
		}
		params[a] = true
	}
	if len(ac.Types) != template.Arity() {
		return action{}, fmt.Errorf("%w: action %s declares %d types for %d arguments", internalerr.ErrArity, name, len(ac.Types), template.Arity())
	}
	for _, typ := range ac.Types {
		if !known[typ] {
			return action{}, fmt.Errorf("%w: action %s uses undeclared type %s", internalerr.ErrInvalidConfig, name, typ)
		}
	}
	d.signatures[name] = append([]string(nil), ac.Types...)

	a := action{template: template}
	for _, text := range ac.Conditions {
		p, err := logic.ParsePredicate(text)
		if err != nil {
			return action{}, fmt.Errorf("action %s condition: %w", name, err)
		}
		if err := d.CheckPredicate(p); err != nil {
			return action{}, fmt.Errorf("action %s condition: %w", name, err)
		}
		for _, arg := range p.Args {
			if arg.IsVariable() && !params[arg] {
				return action{}, fmt.Errorf("%w: action %s condition %s uses %s, not an action argument", internalerr.ErrInvalidConfig, name, p, arg)
			}
		}
		a.vocabulary = append(a.vocabulary, p)
	}
	return a, nil
}

func hasCycle(parents map[string]string, start string) bool {
	seen := map[string]bool{start: true}
	for t := parents[start]; t != ""; t = parents[t] {
		if seen[t] {
			return true
		}
		seen[t] = true
	}
	return false
}

func settingsOrDefault(c EngineConfig) Settings {
	s := Settings{
		CacheSize:     c.CacheSize,
		Parallelism:   c.Parallelism,
		MaxIterations: c.MaxIterations,
	}
	if s.CacheSize <= 0 {
		s.CacheSize = DefaultCacheSize
	}
	if s.Parallelism <= 0 {
		s.Parallelism = DefaultParallelism
	}
	if s.MaxIterations <= 0 {
		s.MaxIterations = DefaultMaxIterations
	}
	return s
}
