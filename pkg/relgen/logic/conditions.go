package logic

import (
	"slices"
	"strings"
)

// ConditionSet is a mutable set of predicates keyed by their canonical form.
// It is the transient working copy used while a rule body is rewritten; it
// is not safe for concurrent use.
type ConditionSet struct {
	preds map[string]Predicate
}

// NewConditionSet builds a set from preds, dropping duplicates.
func NewConditionSet(preds ...Predicate) *ConditionSet {
	s := &ConditionSet{preds: make(map[string]Predicate, len(preds))}
	for _, p := range preds {
		s.Add(p)
	}
	return s
}

// Len returns the number of atoms.
func (s *ConditionSet) Len() int { return len(s.preds) }

// Add inserts p and reports whether the set grew.
func (s *ConditionSet) Add(p Predicate) bool {
	k := p.Key()
	if _, ok := s.preds[k]; ok {
		return false
	}
	s.preds[k] = p.Clone()
	return true
}

// Remove deletes p and reports whether it was present.
func (s *ConditionSet) Remove(p Predicate) bool {
	k := p.Key()
	if _, ok := s.preds[k]; !ok {
		return false
	}
	delete(s.preds, k)
	return true
}

// Contains reports exact membership.
func (s *ConditionSet) Contains(p Predicate) bool {
	_, ok := s.preds[p.Key()]
	return ok
}

// Sorted returns the atoms in canonical order.
func (s *ConditionSet) Sorted() []Predicate {
	out := make([]Predicate, 0, len(s.preds))
	for _, p := range s.preds {
		out = append(out, p.Clone())
	}
	slices.SortFunc(out, Compare)
	return out
}

// Clone returns an independent copy.
func (s *ConditionSet) Clone() *ConditionSet {
	c := &ConditionSet{preds: make(map[string]Predicate, len(s.preds))}
	for k, p := range s.preds {
		c.preds[k] = p
	}
	return c
}

// Equal reports whether both sets hold the same atoms.
func (s *ConditionSet) Equal(o *ConditionSet) bool {
	if len(s.preds) != len(o.preds) {
		return false
	}
	for k := range s.preds {
		if _, ok := o.preds[k]; !ok {
			return false
		}
	}
	return true
}

// Key is a canonical string for the whole set.
func (s *ConditionSet) Key() string {
	return KeyOf(s.Sorted())
}

// KeyOf joins already sorted predicates into a set key.
func KeyOf(preds []Predicate) string {
	parts := make([]string, len(preds))
	for i, p := range preds {
		parts[i] = p.Key()
	}
	return strings.Join(parts, " ")
}

// Canonical sorts and deduplicates preds into a fresh slice.
func Canonical(preds []Predicate) []Predicate {
	return NewConditionSet(preds...).Sorted()
}
