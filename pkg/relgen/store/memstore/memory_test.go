package memstore

import (
	"context"
	"errors"
	"testing"

	"github.com/cognicore/relgen/pkg/relgen/internalerr"
	"github.com/cognicore/relgen/pkg/relgen/store"
)

func TestSaveAndGet(t *testing.T) {
	ctx := context.Background()
	s := New()
	ids := store.NewIDs()

	seed := store.Record{ID: ids.Next(), Action: "moveFloor", Text: "(clear ?X) => (moveFloor ?X)", Kind: store.KindSeed}
	if err := s.SaveRule(ctx, seed); err != nil {
		t.Fatalf("SaveRule: %v", err)
	}

	got, ok, err := s.GetRule(ctx, seed.ID)
	if err != nil || !ok {
		t.Fatalf("GetRule: ok=%v err=%v", ok, err)
	}
	if got.Text != seed.Text || got.Kind != store.KindSeed {
		t.Errorf("unexpected record %+v", got)
	}

	if _, ok, _ := s.GetRule(ctx, "missing"); ok {
		t.Error("expected missing record not to be found")
	}
	if err := s.SaveRule(ctx, store.Record{}); !errors.Is(err, internalerr.ErrInvalidInput) {
		t.Errorf("expected ErrInvalidInput for empty id, got %v", err)
	}
}

func TestChildrenAndByAction(t *testing.T) {
	ctx := context.Background()
	s := New()
	ids := store.NewIDs()

	seed := store.Record{ID: ids.Next(), Action: "moveFloor", Kind: store.KindSeed}
	a := store.Record{ID: ids.Next(), ParentID: seed.ID, Action: "moveFloor", Kind: store.KindSpecialised}
	b := store.Record{ID: ids.Next(), ParentID: seed.ID, Action: "moveFloor", Kind: store.KindSpecialised}
	other := store.Record{ID: ids.Next(), Action: "move", Kind: store.KindSeed}
	// saved out of order on purpose
	for _, r := range []store.Record{b, other, seed, a} {
		if err := s.SaveRule(ctx, r); err != nil {
			t.Fatalf("SaveRule: %v", err)
		}
	}

	children, err := s.Children(ctx, seed.ID)
	if err != nil {
		t.Fatalf("Children: %v", err)
	}
	if len(children) != 2 || children[0].ID != a.ID || children[1].ID != b.ID {
		t.Errorf("expected [a b] oldest first, got %+v", children)
	}

	byAction, err := s.ByAction(ctx, "moveFloor")
	if err != nil {
		t.Fatalf("ByAction: %v", err)
	}
	if len(byAction) != 3 || byAction[0].ID != seed.ID {
		t.Errorf("expected 3 moveFloor records starting with the seed, got %+v", byAction)
	}

	// re-parenting moves the record between lineages
	b.ParentID = a.ID
	if err := s.SaveRule(ctx, b); err != nil {
		t.Fatalf("SaveRule: %v", err)
	}
	if children, _ := s.Children(ctx, seed.ID); len(children) != 1 {
		t.Errorf("expected 1 child after re-parenting, got %d", len(children))
	}
	if children, _ := s.Children(ctx, a.ID); len(children) != 1 || children[0].ID != b.ID {
		t.Errorf("expected b under a, got %+v", children)
	}
	if byAction, _ := s.ByAction(ctx, "moveFloor"); len(byAction) != 3 {
		t.Errorf("replacing a record duplicated it: %d", len(byAction))
	}
}

func TestIDsAreOrdered(t *testing.T) {
	ids := store.NewIDs()
	prev := ids.Next()
	for i := 0; i < 100; i++ {
		next := ids.Next()
		if next <= prev {
			t.Fatalf("ids not increasing: %s then %s", prev, next)
		}
		prev = next
	}
}
