// Package prolog evaluates rules by compiling the ground state to Prolog
// facts and the rule body to a query for an embedded interpreter.
package prolog

import (
	"context"
	"fmt"
	"math"
	"sort"
	"strconv"
	"strings"

	ichiban "github.com/ichiban/prolog"

	"github.com/cognicore/relgen/pkg/relgen/internalerr"
	"github.com/cognicore/relgen/pkg/relgen/logic"
)

// unbound is returned for action arguments the rule body never binds.
const unbound = "_"

// Engine is an inference.Engine backed by github.com/ichiban/prolog.
// Each Fire call runs on a fresh interpreter, so an Engine is safe for
// concurrent use.
type Engine struct{}

// New creates a Prolog-backed engine
func New() *Engine { return &Engine{} }

// Fire implements inference.Engine.
func (e *Engine) Fire(ctx context.Context, rule *logic.Rule, state []logic.Predicate) ([]logic.Predicate, error) {
	program, err := compileState(rule, state)
	if err != nil {
		return nil, err
	}
	p := ichiban.New(nil, nil)
	if err := p.Exec(program); err != nil {
		return nil, fmt.Errorf("load state: %w", err)
	}

	q := compileQuery(rule)
	sols, err := p.QueryContext(ctx, q.text)
	if err != nil {
		return nil, fmt.Errorf("query %s: %w", rule, err)
	}
	defer sols.Close()

	action := rule.Action()
	seen := make(map[string]bool)
	var out []logic.Predicate
	for sols.Next() {
		var s struct {
			Result []string
		}
		if err := sols.Scan(&s); err != nil {
			return nil, fmt.Errorf("scan %s: %w", rule, err)
		}
		fired := action.Clone()
		for i, a := range fired.Args {
			if a.IsVariable() {
				fired.Args[i] = groundTerm(s.Result[q.slots[a]])
			}
		}
		if key := fired.Key(); !seen[key] {
			seen[key] = true
			out = append(out, fired)
		}
	}
	if err := sols.Err(); err != nil {
		return nil, fmt.Errorf("solve %s: %w", rule, err)
	}
	sort.Slice(out, func(i, j int) bool { return logic.Compare(out[i], out[j]) < 0 })
	return out, nil
}

func groundTerm(s string) logic.Term {
	if s == unbound {
		return logic.Anon()
	}
	return logic.Const(s)
}

// compileState declares every predicate the rule mentions and asserts the
// positive ground facts of state.
func compileState(rule *logic.Rule, state []logic.Predicate) (string, error) {
	var b strings.Builder
	declared := make(map[string]bool)
	declare := func(p logic.Predicate) {
		key := atom(p.Name) + "/" + strconv.Itoa(p.Arity())
		if !declared[key] {
			declared[key] = true
			fmt.Fprintf(&b, ":- dynamic(%s).\n", key)
		}
	}

	for _, c := range rule.Conditions() {
		declare(c)
	}
	for _, f := range state {
		if f.Negated {
			continue
		}
		for _, a := range f.Args {
			if !a.IsConstant() {
				return "", fmt.Errorf("%w: state fact %s is not ground", internalerr.ErrInvalidInput, f)
			}
		}
		declare(f)
		b.WriteString(goal(f, nil))
		b.WriteString(".\n")
	}
	return b.String(), nil
}

type query struct {
	text  string
	slots map[logic.Term]int // action variable -> index in Result
}

// compileQuery renders the rule body as a conjunction: positive goals first,
// then range checks and negations, then the action bindings as Result.
func compileQuery(rule *logic.Rule) query {
	vars := make(map[string]string)
	var positive, checks []string

	for _, c := range rule.Conditions() {
		for _, a := range c.Args {
			if a.IsRange() {
				if _, ok := vars[a.Name]; !ok {
					v := variable(vars, a)
					checks = append(checks, fmt.Sprintf("number(%s), %s >= %s, %s =< %s", v, v, number(a.Lower), v, number(a.Upper)))
				}
			}
		}
		if c.Negated {
			checks = append(checks, `\+ `+goal(c.Positive(), vars))
			continue
		}
		positive = append(positive, goal(c, vars))
	}

	goals := append(positive, checks...)
	q := query{slots: make(map[logic.Term]int)}
	var results []string
	for _, a := range rule.Action().Args {
		if !a.IsVariable() {
			continue
		}
		if _, ok := q.slots[a]; ok {
			continue
		}
		q.slots[a] = len(results)
		v := variable(vars, a)
		r := fmt.Sprintf("R%d", len(results))
		goals = append(goals, fmt.Sprintf("(var(%s) -> %s = '%s' ; atom(%s) -> %s = %s ; number_codes(%s, C%d), atom_codes(%s, C%d))",
			v, r, unbound, v, r, v, v, len(results), r, len(results)))
		results = append(results, r)
	}
	goals = append(goals, "Result = ["+strings.Join(results, ", ")+"]")
	q.text = strings.Join(goals, ", ") + "."
	return q
}

// variable maps a rule variable or range onto a Prolog variable name.
func variable(vars map[string]string, t logic.Term) string {
	if v, ok := vars[t.Name]; ok {
		return v
	}
	v := "V" + strconv.Itoa(len(vars))
	vars[t.Name] = v
	return v
}

func goal(p logic.Predicate, vars map[string]string) string {
	args := make([]string, len(p.Args))
	for i, a := range p.Args {
		switch {
		case a.IsAnonymous():
			args[i] = "_"
		case a.IsVariable(), a.IsRange():
			args[i] = variable(vars, a)
		default:
			if v, ok := a.Numeric(); ok && !math.IsInf(v, 0) && !math.IsNaN(v) {
				args[i] = number(v)
			} else {
				args[i] = atom(a.Name)
			}
		}
	}
	if len(args) == 0 {
		return atom(p.Name)
	}
	return atom(p.Name) + "(" + strings.Join(args, ", ") + ")"
}

// number renders integral values as integers so that 3 and 3.0 unify.
func number(v float64) string {
	if v == math.Trunc(v) && math.Abs(v) < 1<<53 {
		return strconv.FormatInt(int64(v), 10)
	}
	s := strconv.FormatFloat(v, 'f', -1, 64)
	if !strings.Contains(s, ".") {
		s += ".0"
	}
	return s
}

func atom(s string) string {
	s = strings.ReplaceAll(s, `\`, `\\`)
	s = strings.ReplaceAll(s, `'`, `\'`)
	return "'" + s + "'"
}
