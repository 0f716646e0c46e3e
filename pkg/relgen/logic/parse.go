package logic

import (
	"bufio"
	"fmt"
	"strconv"
	"strings"
	"unicode"

	"github.com/cognicore/relgen/pkg/relgen/internalerr"
)

// ParsePredicate parses a single atom:
//
//	(on ?X ?)
//	(not (highest ?X))
//	(distanceGhost ?G ?D&:(betweenRange ?D 0 7.5))
func ParsePredicate(s string) (Predicate, error) {
	r := &reader{src: s}
	p, err := r.predicate()
	if err != nil {
		return Predicate{}, err
	}
	r.skipSpace()
	if !r.eof() {
		return Predicate{}, r.errorf("trailing input %q", r.src[r.pos:])
	}
	return p, nil
}

// MustPredicate is ParsePredicate for fixtures.
func MustPredicate(s string) Predicate {
	p, err := ParsePredicate(s)
	if err != nil {
		panic(err)
	}
	return p
}

// ParseConditions parses a whitespace-separated sequence of atoms.
func ParseConditions(s string) ([]Predicate, error) {
	r := &reader{src: s}
	var out []Predicate
	for {
		r.skipSpace()
		if r.eof() {
			return out, nil
		}
		p, err := r.predicate()
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
}

// MustConditions is ParseConditions for fixtures.
func MustConditions(s string) []Predicate {
	ps, err := ParseConditions(s)
	if err != nil {
		panic(err)
	}
	return ps
}

// ParseRule parses "cond... => (action ...)".
func ParseRule(s string) (*Rule, error) {
	idx := strings.Index(s, "=>")
	if idx < 0 {
		return nil, fmt.Errorf("%w: missing '=>': %s", internalerr.ErrSyntax, s)
	}
	conds, err := ParseConditions(s[:idx])
	if err != nil {
		return nil, fmt.Errorf("conditions: %w", err)
	}
	action, err := ParsePredicate(strings.TrimSpace(s[idx+2:]))
	if err != nil {
		return nil, fmt.Errorf("action: %w", err)
	}
	return NewRule(conds, action)
}

// MustRuleText is ParseRule for fixtures.
func MustRuleText(s string) *Rule {
	r, err := ParseRule(s)
	if err != nil {
		panic(err)
	}
	return r
}

// ParseRules loads one rule per line. Blank lines and lines starting with
// '#' or ';' are skipped.
func ParseRules(text string) ([]*Rule, error) {
	scanner := bufio.NewScanner(strings.NewReader(text))
	lineNum := 0
	var rules []*Rule

	for scanner.Scan() {
		lineNum++
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") || strings.HasPrefix(line, ";") {
			continue
		}
		rule, err := ParseRule(line)
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", lineNum, err)
		}
		rules = append(rules, rule)
	}
	return rules, scanner.Err()
}

type reader struct {
	src string
	pos int
}

func (r *reader) eof() bool { return r.pos >= len(r.src) }

func (r *reader) peek() byte {
	if r.eof() {
		return 0
	}
	return r.src[r.pos]
}

func (r *reader) skipSpace() {
	for !r.eof() && unicode.IsSpace(rune(r.src[r.pos])) {
		r.pos++
	}
}

func (r *reader) errorf(format string, args ...any) error {
	return fmt.Errorf("%w at offset %d: %s", internalerr.ErrSyntax, r.pos, fmt.Sprintf(format, args...))
}

func (r *reader) expect(c byte) error {
	r.skipSpace()
	if r.peek() != c {
		if r.eof() {
			return r.errorf("expected %q, got end of input", c)
		}
		return r.errorf("expected %q, got %q", c, r.peek())
	}
	r.pos++
	return nil
}

// token reads up to whitespace or a parenthesis.
func (r *reader) token() string {
	r.skipSpace()
	start := r.pos
	for !r.eof() {
		c := r.src[r.pos]
		if c == '(' || c == ')' || unicode.IsSpace(rune(c)) {
			break
		}
		r.pos++
	}
	return r.src[start:r.pos]
}

func (r *reader) predicate() (Predicate, error) {
	if err := r.expect('('); err != nil {
		return Predicate{}, err
	}
	name := r.token()
	if name == "" {
		return Predicate{}, r.errorf("missing predicate name")
	}
	if name == "not" {
		inner, err := r.predicate()
		if err != nil {
			return Predicate{}, err
		}
		if inner.Negated {
			return Predicate{}, r.errorf("double negation")
		}
		if err := r.expect(')'); err != nil {
			return Predicate{}, err
		}
		inner.Negated = true
		return inner, nil
	}
	if strings.HasPrefix(name, "?") {
		return Predicate{}, r.errorf("predicate name %q looks like a variable", name)
	}

	p := Predicate{Name: name}
	for {
		r.skipSpace()
		switch r.peek() {
		case ')':
			r.pos++
			return p, nil
		case '(':
			return Predicate{}, r.errorf("nested atom inside %s", name)
		case 0:
			return Predicate{}, r.errorf("unterminated atom %s", name)
		}
		t, err := r.term()
		if err != nil {
			return Predicate{}, err
		}
		p.Args = append(p.Args, t)
	}
}

func (r *reader) term() (Term, error) {
	tok := r.token()
	switch {
	case tok == AnonymousName:
		return Anon(), nil
	case strings.HasSuffix(tok, "&:"):
		return r.rangeTerm(strings.TrimSuffix(tok, "&:"))
	case strings.HasPrefix(tok, "?"):
		return Var(tok), nil
	}
	return Const(tok), nil
}

// rangeTerm reads the "(betweenRange ?R lo hi)" tail of a range term.
func (r *reader) rangeTerm(name string) (Term, error) {
	if !strings.HasPrefix(name, "?") || len(name) < 2 {
		return Term{}, r.errorf("range term %q must be a variable", name)
	}
	if err := r.expect('('); err != nil {
		return Term{}, err
	}
	if fn := r.token(); fn != "betweenRange" {
		return Term{}, r.errorf("expected betweenRange, got %q", fn)
	}
	if v := r.token(); v != name {
		return Term{}, r.errorf("range constraint names %q, want %q", v, name)
	}
	lo, err := strconv.ParseFloat(r.token(), 64)
	if err != nil {
		return Term{}, r.errorf("range lower bound: %v", err)
	}
	hi, err := strconv.ParseFloat(r.token(), 64)
	if err != nil {
		return Term{}, r.errorf("range upper bound: %v", err)
	}
	if lo > hi {
		return Term{}, r.errorf("range %s has lower bound %g above upper bound %g", name, lo, hi)
	}
	if err := r.expect(')'); err != nil {
		return Term{}, err
	}
	return NewRange(name, lo, hi), nil
}
