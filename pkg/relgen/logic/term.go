// Package logic holds the value types shared by every relgen component:
// terms, relational predicates, rules and mutable condition sets, plus the
// s-expression reader for the textual rule syntax.
package logic

import (
	"fmt"
	"strconv"
	"strings"
)

// Kind distinguishes the four sorts of term.
type Kind uint8

const (
	Constant Kind = iota
	Variable
	Anonymous
	Range
)

func (k Kind) String() string {
	switch k {
	case Constant:
		return "constant"
	case Variable:
		return "variable"
	case Anonymous:
		return "anonymous"
	case Range:
		return "range"
	}
	return "unknown"
}

// AnonymousName is the textual form of the anonymous term.
const AnonymousName = "?"

// Term is an immutable predicate argument. Terms are comparable and may be
// used as map keys.
type Term struct {
	Kind  Kind
	Name  string  // constant value or variable name ("?X"); unused for Anonymous
	Lower float64 // Range only, inclusive
	Upper float64 // Range only, inclusive
}

// Const returns a constant term.
func Const(name string) Term { return Term{Kind: Constant, Name: name} }

// Var returns a variable term. The leading '?' is added when missing.
func Var(name string) Term {
	if !strings.HasPrefix(name, "?") {
		name = "?" + name
	}
	return Term{Kind: Variable, Name: name}
}

// Anon returns the anonymous term.
func Anon() Term { return Term{Kind: Anonymous, Name: AnonymousName} }

// NewRange returns a range variable named name covering [lo, hi]. Swapped
// bounds are reordered so that Lower <= Upper always holds.
func NewRange(name string, lo, hi float64) Term {
	if lo > hi {
		lo, hi = hi, lo
	}
	if !strings.HasPrefix(name, "?") {
		name = "?" + name
	}
	return Term{Kind: Range, Name: name, Lower: lo, Upper: hi}
}

// Number returns a numeric constant term.
func Number(v float64) Term {
	return Const(strconv.FormatFloat(v, 'g', -1, 64))
}

func (t Term) IsConstant() bool  { return t.Kind == Constant }
func (t Term) IsVariable() bool  { return t.Kind == Variable }
func (t Term) IsAnonymous() bool { return t.Kind == Anonymous }
func (t Term) IsRange() bool     { return t.Kind == Range }

// Numeric reports the value of a numeric constant.
func (t Term) Numeric() (float64, bool) {
	if t.Kind != Constant {
		return 0, false
	}
	v, err := strconv.ParseFloat(t.Name, 64)
	if err != nil {
		return 0, false
	}
	return v, true
}

// IsNumeric is true for numeric constants and range variables.
func (t Term) IsNumeric() bool {
	if t.Kind == Range {
		return true
	}
	_, ok := t.Numeric()
	return ok
}

// Widen returns the range grown to include [lo, hi]. Bounds never shrink.
func (t Term) Widen(lo, hi float64) Term {
	if lo < t.Lower {
		t.Lower = lo
	}
	if hi > t.Upper {
		t.Upper = hi
	}
	return t
}

// Contains reports whether v lies within a range term's bounds.
func (t Term) Contains(v float64) bool {
	return t.Kind == Range && v >= t.Lower && v <= t.Upper
}

// SameRange reports whether two range terms denote the same range variable,
// ignoring bounds.
func (t Term) SameRange(o Term) bool {
	return t.Kind == Range && o.Kind == Range && t.Name == o.Name
}

func (t Term) String() string {
	switch t.Kind {
	case Anonymous:
		return AnonymousName
	case Range:
		return fmt.Sprintf("%s&:(betweenRange %s %s %s)", t.Name, t.Name, formatBound(t.Lower), formatBound(t.Upper))
	}
	return t.Name
}

func formatBound(v float64) string {
	return strconv.FormatFloat(v, 'g', -1, 64)
}

// CompareTerms orders terms by kind, then name, then bounds.
func CompareTerms(a, b Term) int {
	if a.Kind != b.Kind {
		if a.Kind < b.Kind {
			return -1
		}
		return 1
	}
	if c := strings.Compare(a.Name, b.Name); c != 0 {
		return c
	}
	if c := compareFloat(a.Lower, b.Lower); c != 0 {
		return c
	}
	return compareFloat(a.Upper, b.Upper)
}

func compareFloat(a, b float64) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	}
	return 0
}

// ActionVar names the variable generated for the i-th action argument:
// ?A, ?B, ... ?Z, ?A1, ?B1, ...
func ActionVar(i int) Term {
	letter := string(rune('A' + i%26))
	if i >= 26 {
		letter += strconv.Itoa(i / 26)
	}
	return Var(letter)
}
