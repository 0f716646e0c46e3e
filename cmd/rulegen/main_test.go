package main

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

const domainPath = "../../testdata/blocksworld/domain.yaml"

// TestBuildEngine tests that buildEngine loads the domain and lineage db
func TestBuildEngine(t *testing.T) {
	ctx := context.Background()
	dbPath := filepath.Join(t.TempDir(), "rules.db")

	engine, cleanup, err := buildEngine(ctx, domainPath, dbPath, false)
	if err != nil {
		t.Fatalf("buildEngine failed: %v", err)
	}
	defer cleanup()

	if engine.Domain().Name() != "blocksworld" {
		t.Errorf("Expected blocksworld domain, got %q", engine.Domain().Name())
	}
}

func TestBuildEngineMissingDomain(t *testing.T) {
	_, _, err := buildEngine(context.Background(), filepath.Join(t.TempDir(), "missing.yaml"), "", false)
	if err == nil {
		t.Error("buildEngine should fail with a missing domain")
	}
}

func TestRunSpecialise(t *testing.T) {
	ctx := context.Background()
	engine, cleanup, err := buildEngine(ctx, domainPath, "", false)
	if err != nil {
		t.Fatalf("buildEngine failed: %v", err)
	}
	defer cleanup()

	var out bytes.Buffer
	if err := run(ctx, engine, &out, "(clear ?X) (above ?X ?) => (moveFloor ?X)", "specialise", false); err != nil {
		t.Fatalf("run: %v", err)
	}
	lines := strings.Split(strings.TrimSpace(out.String()), "\n")
	if len(lines) != 6 {
		t.Errorf("Expected 6 mutants, got %d:\n%s", len(lines), out.String())
	}
}

func TestRunWithLineage(t *testing.T) {
	ctx := context.Background()
	engine, cleanup, err := buildEngine(ctx, domainPath, filepath.Join(t.TempDir(), "rules.db"), false)
	if err != nil {
		t.Fatalf("buildEngine failed: %v", err)
	}
	defer cleanup()

	var out bytes.Buffer
	if err := run(ctx, engine, &out, "(clear ?X) (highest ?X) (above ?X ?) => (moveFloor ?X)", "generalise", false); err != nil {
		t.Fatalf("run: %v", err)
	}
	for _, line := range strings.Split(strings.TrimSpace(out.String()), "\n") {
		id, _, ok := strings.Cut(line, "\t")
		if !ok {
			t.Fatalf("Expected id-prefixed output, got %q", line)
		}
		if _, _, err := engine.Load(ctx, id); err != nil {
			t.Errorf("Load(%s): %v", id, err)
		}
	}
}

func TestRunIllegal(t *testing.T) {
	ctx := context.Background()
	engine, cleanup, err := buildEngine(ctx, domainPath, "", false)
	if err != nil {
		t.Fatalf("buildEngine failed: %v", err)
	}
	defer cleanup()

	var out bytes.Buffer
	if err := run(ctx, engine, &out, "(above ?X ?) (onFloor ?X) => (moveFloor ?X)", "", true); err != nil {
		t.Fatalf("run: %v", err)
	}
	if got := strings.TrimSpace(out.String()); got != "(onFloor ?X)" {
		t.Errorf("Expected (onFloor ?X), got %q", got)
	}
}

func TestRunErrors(t *testing.T) {
	ctx := context.Background()
	engine, cleanup, err := buildEngine(ctx, domainPath, "", false)
	if err != nil {
		t.Fatalf("buildEngine failed: %v", err)
	}
	defer cleanup()

	var out bytes.Buffer
	if err := run(ctx, engine, &out, "(clear ?X) => (moveFloor ?X)", "shuffle", false); err == nil {
		t.Error("Expected unknown mode error")
	}
	if err := run(ctx, engine, &out, "(clear ?X) =>", "specialise", false); err == nil {
		t.Error("Expected parse error")
	}
	if err := run(ctx, engine, &out, "(clear ?X) => (jump ?X)", "specialise", false); err == nil {
		t.Error("Expected unknown action error")
	}
}

func TestRunBatch(t *testing.T) {
	ctx := context.Background()
	engine, cleanup, err := buildEngine(ctx, domainPath, "", false)
	if err != nil {
		t.Fatalf("buildEngine failed: %v", err)
	}
	defer cleanup()

	path := filepath.Join(t.TempDir(), "rules.txt")
	content := `# seeds
(clear ?X) (above ?X ?) => (moveFloor ?X)
(clear ?X) => (move ?X ?Y)
`
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}

	var out bytes.Buffer
	if err := runBatch(ctx, engine, &out, string(data)); err != nil {
		t.Fatalf("runBatch: %v", err)
	}
	if n := strings.Count(out.String(), "# "); n != 2 {
		t.Errorf("Expected 2 rule headers, got %d:\n%s", n, out.String())
	}
}

func TestRunFire(t *testing.T) {
	ctx := context.Background()
	engine, cleanup, err := buildEngine(ctx, domainPath, "", false)
	if err != nil {
		t.Fatalf("buildEngine failed: %v", err)
	}
	defer cleanup()

	var out bytes.Buffer
	state := "(on a b)\n(on b c)\n(onFloor c)\n(highest a)\n"
	if err := runFire(ctx, engine, &out, "(clear ?X) (above ?X ?) => (moveFloor ?X)", state); err != nil {
		t.Fatalf("runFire: %v", err)
	}
	if got := strings.TrimSpace(out.String()); got != "(moveFloor a)" {
		t.Errorf("Expected (moveFloor a), got %q", got)
	}
	if err := runFire(ctx, engine, &out, "(clear ?X) => (moveFloor ?X)", "(on a"); err == nil {
		t.Error("Expected a state parse error")
	}
}
