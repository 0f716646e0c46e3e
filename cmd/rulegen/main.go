package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"log"
	"log/slog"
	"os"

	"github.com/cognicore/relgen/pkg/relgen"
	"github.com/cognicore/relgen/pkg/relgen/logic"
	"github.com/cognicore/relgen/pkg/relgen/schema"
	"github.com/cognicore/relgen/pkg/relgen/store"
	"github.com/cognicore/relgen/pkg/relgen/store/sqlite"
)

func main() {
	var (
		domainPath = flag.String("domain", "", "Domain YAML file (required)")
		ruleText   = flag.String("rule", "", "Rule to mutate, e.g. \"(clear ?X) => (moveFloor ?X)\" (required unless --rules)")
		rulesPath  = flag.String("rules", "", "File with one rule per line, specialised in parallel")
		mode       = flag.String("mode", "specialise", "Mutation: specialise, minor or generalise")
		dbPath     = flag.String("db", "", "SQLite lineage database (optional)")
		illegal    = flag.Bool("illegal", false, "Print the illegal-check simplification of the rule body instead")
		statePath  = flag.String("state", "", "Ground facts file; print the actions the rule fires in that state instead")
		verbose    = flag.Bool("v", false, "Debug logging to stderr")
	)
	flag.Parse()

	if *domainPath == "" {
		log.Fatal("--domain required")
	}
	if *ruleText == "" && *rulesPath == "" {
		log.Fatal("--rule or --rules required")
	}

	ctx := context.Background()

	engine, cleanup, err := buildEngine(ctx, *domainPath, *dbPath, *verbose)
	if err != nil {
		log.Fatal(err)
	}
	defer cleanup()

	if *rulesPath != "" {
		data, err := os.ReadFile(*rulesPath)
		if err != nil {
			log.Fatal(err)
		}
		if err := runBatch(ctx, engine, os.Stdout, string(data)); err != nil {
			log.Fatal(err)
		}
		return
	}
	if *statePath != "" {
		data, err := os.ReadFile(*statePath)
		if err != nil {
			log.Fatal(err)
		}
		if err := runFire(ctx, engine, os.Stdout, *ruleText, string(data)); err != nil {
			log.Fatal(err)
		}
		return
	}
	if err := run(ctx, engine, os.Stdout, *ruleText, *mode, *illegal); err != nil {
		log.Fatal(err)
	}
}

// buildEngine loads the domain and opens the lineage store when dbPath is set
func buildEngine(ctx context.Context, domainPath, dbPath string, verbose bool) (*relgen.Engine, func(), error) {
	domain, err := (&schema.Loader{DomainPath: domainPath}).Load()
	if err != nil {
		return nil, nil, err
	}

	var st store.Store
	if dbPath != "" {
		st, err = sqlite.OpenSQLite(ctx, dbPath)
		if err != nil {
			return nil, nil, fmt.Errorf("open lineage db: %w", err)
		}
	}

	opts := relgen.Options{Domain: domain, Store: st}
	if verbose {
		opts.Logger = slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelDebug}))
	}
	engine, err := relgen.New(opts)
	if err != nil {
		if st != nil {
			st.Close()
		}
		return nil, nil, err
	}
	cleanup := func() {
		if err := engine.Close(); err != nil {
			log.Printf("close: %v", err)
		}
	}
	return engine, cleanup, nil
}

func run(ctx context.Context, engine *relgen.Engine, out io.Writer, ruleText, mode string, illegal bool) error {
	rule, err := logic.ParseRule(ruleText)
	if err != nil {
		return err
	}

	if illegal {
		creator := engine.Creator()
		if !creator.IsIllegal(rule.Conditions()) {
			fmt.Fprintln(out, "legal")
			return nil
		}
		witness, _ := creator.Normalise(rule.Conditions(), true)
		fmt.Fprintln(out, logic.KeyOf(witness))
		return nil
	}

	seed, err := engine.Seed(ctx, rule)
	if err != nil {
		return err
	}

	var mutants []relgen.Derived
	switch mode {
	case "specialise":
		mutants, err = engine.Specialise(ctx, seed)
	case "minor":
		mutants, err = engine.SpecialiseMinor(ctx, seed)
	case "generalise":
		mutants, err = engine.Generalise(ctx, seed)
	default:
		return fmt.Errorf("unknown mode %q", mode)
	}
	if err != nil {
		return err
	}

	printDerived(out, mutants)
	return nil
}

func runBatch(ctx context.Context, engine *relgen.Engine, out io.Writer, text string) error {
	rules, err := logic.ParseRules(text)
	if err != nil {
		return err
	}
	seeds := make([]relgen.Derived, len(rules))
	for i, r := range rules {
		if seeds[i], err = engine.Seed(ctx, r); err != nil {
			return err
		}
	}
	all, err := engine.SpecialiseAll(ctx, seeds)
	if err != nil {
		return err
	}
	for i, mutants := range all {
		fmt.Fprintf(out, "# %s\n", seeds[i].Rule)
		printDerived(out, mutants)
	}
	return nil
}

func runFire(ctx context.Context, engine *relgen.Engine, out io.Writer, ruleText, stateText string) error {
	rule, err := logic.ParseRule(ruleText)
	if err != nil {
		return err
	}
	state, err := logic.ParseConditions(stateText)
	if err != nil {
		return fmt.Errorf("state: %w", err)
	}
	actions, err := engine.Fire(ctx, rule, state)
	if err != nil {
		return err
	}
	for _, a := range actions {
		fmt.Fprintln(out, a)
	}
	return nil
}

func printDerived(out io.Writer, mutants []relgen.Derived) {
	for _, m := range mutants {
		if m.ID != "" {
			fmt.Fprintf(out, "%s\t%s\n", m.ID, m.Rule)
			continue
		}
		fmt.Fprintln(out, m.Rule)
	}
}
