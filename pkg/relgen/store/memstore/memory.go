package memstore

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/cognicore/relgen/pkg/relgen/internalerr"
	"github.com/cognicore/relgen/pkg/relgen/store"
)

// Store is an in-memory implementation of store.Store for tests.
type Store struct {
	mu       sync.RWMutex
	records  map[string]store.Record
	children map[string][]string
	byAction map[string][]string
}

// New creates a new in-memory store.
func New() *Store {
	return &Store{
		records:  make(map[string]store.Record),
		children: make(map[string][]string),
		byAction: make(map[string][]string),
	}
}

// Close implements store.Store.
func (s *Store) Close() error { return nil }

// SaveRule inserts a record, keyed by ID. Saving an existing ID replaces it.
func (s *Store) SaveRule(ctx context.Context, r store.Record) error {
	if r.ID == "" {
		return fmt.Errorf("%w: record without id", internalerr.ErrInvalidInput)
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	if old, ok := s.records[r.ID]; ok {
		s.children[old.ParentID] = without(s.children[old.ParentID], r.ID)
		s.byAction[old.Action] = without(s.byAction[old.Action], r.ID)
	}
	s.records[r.ID] = r
	if r.ParentID != "" {
		s.children[r.ParentID] = append(s.children[r.ParentID], r.ID)
	}
	s.byAction[r.Action] = append(s.byAction[r.Action], r.ID)
	return nil
}

// GetRule returns a record by ID.
func (s *Store) GetRule(ctx context.Context, id string) (store.Record, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	r, ok := s.records[id]
	return r, ok, nil
}

// Children returns the records derived from parentID, oldest first.
func (s *Store) Children(ctx context.Context, parentID string) ([]store.Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.collect(s.children[parentID]), nil
}

// ByAction returns every record for an action, oldest first.
func (s *Store) ByAction(ctx context.Context, action string) ([]store.Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.collect(s.byAction[action]), nil
}

func (s *Store) collect(ids []string) []store.Record {
	out := make([]store.Record, 0, len(ids))
	for _, id := range ids {
		out = append(out, s.records[id])
	}
	// ULIDs sort by creation time
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

func without(ids []string, id string) []string {
	out := ids[:0]
	for _, v := range ids {
		if v != id {
			out = append(out, v)
		}
	}
	return out
}
