package store

import (
	"context"
	"crypto/rand"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"
)

// Store persists rule lineage: every rule the engine produces together
// with the rule it was derived from.
type Store interface {
	Close() error

	SaveRule(ctx context.Context, r Record) error
	GetRule(ctx context.Context, id string) (Record, bool, error)
	Children(ctx context.Context, parentID string) ([]Record, error)
	ByAction(ctx context.Context, action string) ([]Record, error)
}

// Kind records how a rule was derived from its parent
type Kind string

const (
	KindSeed        Kind = "seed"
	KindSpecialised Kind = "specialised"
	KindMinor       Kind = "minor"
	KindGeneralised Kind = "generalised"
	KindUnified     Kind = "unified"
)

// Record is one stored rule
type Record struct {
	ID        string
	ParentID  string // empty for seeds
	Action    string // action predicate name
	Text      string // "conds => action", parseable by logic.ParseRule
	Kind      Kind
	CreatedAt time.Time
}

// IDs hands out lexically sortable record IDs. It is safe for concurrent use.
type IDs struct {
	mu      sync.Mutex
	entropy *ulid.MonotonicEntropy
}

// NewIDs creates an ID source
func NewIDs() *IDs {
	return &IDs{entropy: ulid.Monotonic(rand.Reader, 0)}
}

// Next returns a fresh ULID string
func (g *IDs) Next() string {
	g.mu.Lock()
	defer g.mu.Unlock()
	return ulid.MustNew(ulid.Now(), g.entropy).String()
}
