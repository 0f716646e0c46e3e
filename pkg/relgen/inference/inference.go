package inference

import (
	"context"

	"github.com/cognicore/relgen/pkg/relgen/logic"
)

// Engine evaluates rules against ground states.
// This interface allows swapping implementations (embedded Prolog, a native
// matcher, a remote reasoner, etc.)
type Engine interface {
	// Fire returns the distinct ground actions rule proposes in state, in
	// sorted order. Negated conditions use the closed-world assumption:
	// (not (p a)) holds when (p a) is absent from state.
	Fire(ctx context.Context, rule *logic.Rule, state []logic.Predicate) ([]logic.Predicate, error)
}
