// Package unify merges two ground instantiations of the same relational
// context into their least general generalisation, widening numeric values
// into range variables.
package unify

import (
	"fmt"
	"sync/atomic"

	"github.com/cognicore/relgen/pkg/relgen/logic"
)

// RangePrefix starts the name of every generated range variable.
const RangePrefix = "?#_"

// Session owns the range-variable id counter for one experiment run. It is
// safe for concurrent use; Reset it between independent runs.
type Session struct {
	next atomic.Int64
}

// NewSession returns a session whose first range id is 0.
func NewSession() *Session { return &Session{} }

// NewRange allocates a fresh range variable covering [lo, hi].
func (s *Session) NewRange(lo, hi float64) logic.Term {
	id := s.next.Add(1) - 1
	return logic.NewRange(fmt.Sprintf("%s%d", RangePrefix, id), lo, hi)
}

// Allocated returns how many range variables the session has handed out.
func (s *Session) Allocated() int64 { return s.next.Load() }

// Reset restarts range ids from 0.
func (s *Session) Reset() { s.next.Store(0) }
