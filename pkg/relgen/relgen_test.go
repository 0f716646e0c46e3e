package relgen

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"path/filepath"
	"strings"
	"testing"

	"github.com/cognicore/relgen/pkg/relgen/internalerr"
	"github.com/cognicore/relgen/pkg/relgen/logic"
	"github.com/cognicore/relgen/pkg/relgen/schema"
	"github.com/cognicore/relgen/pkg/relgen/store"
	"github.com/cognicore/relgen/pkg/relgen/store/memstore"
	"github.com/cognicore/relgen/pkg/relgen/unify"
)

func loadDomain(t *testing.T) *schema.Domain {
	t.Helper()
	d, err := (&schema.Loader{DomainPath: filepath.Join("..", "..", "testdata", "blocksworld", "domain.yaml")}).Load()
	if err != nil {
		t.Fatalf("load domain: %v", err)
	}
	return d
}

func TestNewRequiresDomain(t *testing.T) {
	if _, err := New(Options{}); !errors.Is(err, internalerr.ErrInvalidInput) {
		t.Fatalf("expected ErrInvalidInput, got %v", err)
	}
}

func TestSpecialiseRecordsLineage(t *testing.T) {
	ctx := context.Background()
	var logs bytes.Buffer
	st := memstore.New()
	e, err := New(Options{
		Domain: loadDomain(t),
		Store:  st,
		Logger: slog.New(slog.NewTextHandler(&logs, &slog.HandlerOptions{Level: slog.LevelDebug})),
	})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	defer e.Close()

	seed, err := e.Seed(ctx, logic.MustRuleText("(clear ?X) (above ?X ?) => (moveFloor ?X)"))
	if err != nil {
		t.Fatalf("Seed: %v", err)
	}
	if seed.ID == "" {
		t.Fatal("seed should get an id")
	}

	mutants, err := e.Specialise(ctx, seed)
	if err != nil {
		t.Fatalf("Specialise: %v", err)
	}
	if len(mutants) != 6 {
		t.Fatalf("expected 6 mutants, got %d", len(mutants))
	}

	children, err := e.Children(ctx, seed.ID)
	if err != nil {
		t.Fatalf("Children: %v", err)
	}
	if len(children) != 6 {
		t.Fatalf("expected 6 recorded children, got %d", len(children))
	}
	for _, c := range children {
		if c.Kind != store.KindSpecialised || c.Action != "moveFloor" {
			t.Errorf("unexpected child record %+v", c)
		}
	}

	loaded, rec, err := e.Load(ctx, mutants[0].ID)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if !loaded.Rule.Equal(mutants[0].Rule) {
		t.Errorf("loaded %s, want %s", loaded.Rule, mutants[0].Rule)
	}
	if rec.ParentID != seed.ID {
		t.Errorf("expected parent %s, got %s", seed.ID, rec.ParentID)
	}

	gens, err := e.Generalise(ctx, loaded)
	if err != nil {
		t.Fatalf("Generalise: %v", err)
	}
	for _, g := range gens {
		r, _, _ := st.GetRule(ctx, g.ID)
		if r.Kind != store.KindGeneralised || r.ParentID != loaded.ID {
			t.Errorf("unexpected generalised record %+v", r)
		}
	}

	if !strings.Contains(logs.String(), "rule recorded") {
		t.Error("expected lineage writes to be logged at debug level")
	}
}

func TestEngineWithoutStore(t *testing.T) {
	ctx := context.Background()
	e, err := New(Options{Domain: loadDomain(t)})
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	seed, err := e.Seed(ctx, logic.MustRuleText("(clear ?X) (above ?X ?) => (moveFloor ?X)"))
	if err != nil {
		t.Fatalf("Seed: %v", err)
	}
	minor, err := e.SpecialiseMinor(ctx, seed)
	if err != nil {
		t.Fatalf("SpecialiseMinor: %v", err)
	}
	if len(minor) != 2 {
		t.Errorf("expected 2 minor mutants, got %d", len(minor))
	}
	for _, m := range minor {
		if m.ID != "" {
			t.Errorf("no store, but mutant got id %s", m.ID)
		}
	}

	if _, _, err := e.Load(ctx, "x"); !errors.Is(err, internalerr.ErrStoreUnavailable) {
		t.Errorf("expected ErrStoreUnavailable, got %v", err)
	}
	if _, err := e.Children(ctx, "x"); !errors.Is(err, internalerr.ErrStoreUnavailable) {
		t.Errorf("expected ErrStoreUnavailable, got %v", err)
	}
	if err := e.Close(); err != nil {
		t.Errorf("Close: %v", err)
	}
}

func TestLoadMissing(t *testing.T) {
	e, err := New(Options{Domain: loadDomain(t), Store: memstore.New()})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if _, _, err := e.Load(context.Background(), "missing"); !errors.Is(err, internalerr.ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestSimplify(t *testing.T) {
	e, err := New(Options{Domain: loadDomain(t)})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	conds := logic.MustConditions("(above ?X ?) (onFloor ?X)")
	if _, ok := e.Simplify(conds, false); ok {
		t.Error("contradiction should be rejected")
	}
	got, ok := e.Simplify(conds, true)
	if !ok || logic.KeyOf(got) != "(onFloor ?X)" {
		t.Errorf("expected the illegal witness (onFloor ?X), got %v", got)
	}
}

func TestSpecialiseAll(t *testing.T) {
	ctx := context.Background()
	st := memstore.New()
	e, err := New(Options{Domain: loadDomain(t), Store: st})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	var parents []Derived
	for _, text := range []string{
		"(clear ?X) (above ?X ?) => (moveFloor ?X)",
		"(clear ?X) => (move ?X ?Y)",
	} {
		d, err := e.Seed(ctx, logic.MustRuleText(text))
		if err != nil {
			t.Fatalf("Seed: %v", err)
		}
		parents = append(parents, d)
	}

	out, err := e.SpecialiseAll(ctx, parents)
	if err != nil {
		t.Fatalf("SpecialiseAll: %v", err)
	}
	for i, p := range parents {
		children, _ := st.Children(ctx, p.ID)
		if len(children) != len(out[i]) {
			t.Errorf("parent %d: %d mutants, %d recorded", i, len(out[i]), len(children))
		}
	}
}

func TestUnifyRecordsGeneralisation(t *testing.T) {
	ctx := context.Background()
	e, err := New(Options{Domain: loadDomain(t), Store: memstore.New(), Session: unify.NewSession()})
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	g := unify.NewGeneralisation(logic.MustConditions("(on a b) (clear a)"), []logic.Term{logic.Const("a")})
	change, id, err := e.Unify(ctx, "", "moveFloor", g, logic.MustConditions("(on c b) (clear c)"), []logic.Term{logic.Const("c")})
	if err != nil {
		t.Fatalf("Unify: %v", err)
	}
	if change != unify.Generalised || id == "" {
		t.Fatalf("expected a recorded generalisation, got %v %q", change, id)
	}

	loaded, rec, err := e.Load(ctx, id)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if rec.Kind != store.KindUnified {
		t.Errorf("expected unified record, got %s", rec.Kind)
	}
	want := logic.MustRuleText("(on ?A b) (clear ?A) => (moveFloor ?A)")
	if !loaded.Rule.Equal(want) {
		t.Errorf("loaded %s, want %s", loaded.Rule, want)
	}

	change, id, err = e.Unify(ctx, id, "moveFloor", g, logic.MustConditions("(on d b) (clear d)"), []logic.Term{logic.Const("d")})
	if err != nil {
		t.Fatalf("Unify: %v", err)
	}
	if change != unify.Unchanged || id != "" {
		t.Errorf("expected no new record for an unchanged generalisation, got %v %q", change, id)
	}
}

func TestFireUsesBackgroundKnowledge(t *testing.T) {
	e, err := New(Options{Domain: loadDomain(t)})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	// above and clear only follow from the axioms
	state := logic.MustConditions("(on a b) (on b c) (onFloor c) (highest a)")
	rule := logic.MustRuleText("(above ?X ?) (clear ?X) => (moveFloor ?X)")

	got, err := e.Fire(context.Background(), rule, state)
	if err != nil {
		t.Fatalf("Fire: %v", err)
	}
	if len(got) != 1 || got[0].String() != "(moveFloor a)" {
		t.Errorf("expected [(moveFloor a)], got %v", got)
	}
}

func TestFireRejectsContradictoryState(t *testing.T) {
	fake := &fakeInference{}
	e, err := New(Options{Domain: loadDomain(t), Inference: fake})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	// (on a b) implies (above a b), which (onFloor a) denies
	state := logic.MustConditions("(on a b) (onFloor a)")
	rule := logic.MustRuleText("(clear ?X) => (moveFloor ?X)")

	if _, err := e.Fire(context.Background(), rule, state); !errors.Is(err, internalerr.ErrInvalidInput) {
		t.Fatalf("expected ErrInvalidInput, got %v", err)
	}
	if fake.state != nil {
		t.Errorf("inference ran on a repaired state: %v", fake.state)
	}
}

type fakeInference struct {
	state []logic.Predicate
}

func (f *fakeInference) Fire(ctx context.Context, rule *logic.Rule, state []logic.Predicate) ([]logic.Predicate, error) {
	f.state = state
	return []logic.Predicate{rule.Action()}, nil
}

func TestFireWithCustomInference(t *testing.T) {
	fake := &fakeInference{}
	e, err := New(Options{Domain: loadDomain(t), Inference: fake})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	rule := logic.MustRuleText("(clear ?X) => (moveFloor ?X)")
	if _, err := e.Fire(context.Background(), rule, logic.MustConditions("(on a b)")); err != nil {
		t.Fatalf("Fire: %v", err)
	}
	if logic.KeyOf(fake.state) != "(above a b) (on a b)" {
		t.Errorf("expected the closed state, got %v", fake.state)
	}
}
