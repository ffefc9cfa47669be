package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"os"
	"strconv"
	"strings"

	"nanoforge/internal/bandit"
	"nanoforge/internal/bench"
	"nanoforge/internal/hostcap"
	"nanoforge/internal/storage"
	"nanoforge/pkg/nanoforge"
)

func main() {
	if err := run(context.Background(), os.Args[1:]); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run(ctx context.Context, args []string) error {
	if len(args) == 0 {
		return usageError("missing command")
	}

	switch args[0] {
	case "features":
		return runFeatures(args[1:])
	case "version":
		return runVersion(args[1:])
	case "run":
		return runRun(args[1:])
	case "benchmark":
		return runBenchmark(ctx, args[1:])
	case "runs":
		return runRuns(args[1:])
	case "boundary":
		return runBoundary(ctx, args[1:])
	case "repl":
		return runRepl(args[1:])
	default:
		return usageError(fmt.Sprintf("unknown command: %s", args[0]))
	}
}

func runFeatures(args []string) error {
	fs := flag.NewFlagSet("features", flag.ContinueOnError)
	if err := fs.Parse(args); err != nil {
		return err
	}

	caps := hostcap.Detect()
	fmt.Printf("host capabilities: %s\n", caps.Summary())
	return nil
}

func runVersion(args []string) error {
	fs := flag.NewFlagSet("version", flag.ContinueOnError)
	if err := fs.Parse(args); err != nil {
		return err
	}

	fmt.Println(nanoforge.Version())
	return nil
}

func runRun(args []string) error {
	fs := flag.NewFlagSet("run", flag.ContinueOnError)
	file := fs.String("file", "", "script file to compile")
	input := fs.Uint64("input", 0, "argument passed to the entry function")
	variant := fs.Int("variant", -1, "variant index to execute (-1 for baseline)")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *file == "" {
		return errors.New("run: -file is required")
	}

	source, err := os.ReadFile(*file)
	if err != nil {
		return err
	}

	engine, err := nanoforge.NewEngine(nanoforge.Options{})
	if err != nil {
		return err
	}
	fn, err := engine.Compile(string(source))
	if err != nil {
		return err
	}
	defer fn.Release()

	var out uint64
	if *variant < 0 {
		out, err = engine.Execute(fn, *input)
	} else {
		out, err = engine.ExecuteVariant(fn, *variant, *input)
	}
	if err != nil {
		return err
	}
	fmt.Printf("%d\n", out)
	return nil
}

func runBenchmark(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("benchmark", flag.ContinueOnError)
	file := fs.String("file", "", "script file to compile")
	modelPath := fs.String("model", "", "optimizer model file to load and save")
	storeKind := fs.String("store", "", "store backend instead of -model: memory|sqlite")
	dbPath := fs.String("db-path", "nanoforge.db", "sqlite database path")
	modelName := fs.String("name", "default", "model name within the store")
	rounds := fs.Int("rounds", 200, "select/measure/update rounds")
	iters := fs.Int("iters", 1000, "timed iterations per measurement")
	sizesFlag := fs.String("sizes", "1,64,4096", "comma-separated input sizes to cycle through")
	exploration := fs.Float64("exploration", bandit.DefaultExploration, "UCB exploration constant")
	outDir := fs.String("out", "", "directory for run artifacts (skipped when empty)")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *file == "" {
		return errors.New("benchmark: -file is required")
	}

	sizes, err := parseSizes(*sizesFlag)
	if err != nil {
		return err
	}

	source, err := os.ReadFile(*file)
	if err != nil {
		return err
	}

	engine, err := nanoforge.NewEngine(nanoforge.Options{})
	if err != nil {
		return err
	}
	fn, err := engine.Compile(string(source))
	if err != nil {
		return err
	}
	defer fn.Release()

	var opt *nanoforge.Optimizer
	var st storage.Store
	switch {
	case *storeKind != "":
		st, err = storage.NewStore(*storeKind, *dbPath)
		if err != nil {
			return err
		}
		defer func() {
			_ = storage.CloseIfSupported(st)
		}()
		if err := st.Init(ctx); err != nil {
			return err
		}
		opt, _, err = engine.LoadOptimizerFromStore(ctx, st, *modelName)
	case *modelPath != "":
		opt, _, err = engine.LoadOptimizer(*modelPath)
	default:
		opt = engine.NewOptimizer(*exploration)
	}
	if err != nil {
		return err
	}
	defer opt.Close()

	inner, err := opt.Runtime()
	if err != nil {
		return err
	}
	rt, err := fn.Runtime()
	if err != nil {
		return err
	}

	report := bench.Loop(rt, inner, sizes, *rounds, *iters)

	if *outDir != "" {
		hash, err := fn.SourceHash()
		if err != nil {
			return err
		}
		runDir, err := bench.WriteRunArtifacts(*outDir, bench.RunArtifacts{
			Config: bench.RunConfig{
				RunID:       report.RunID,
				SourceHash:  hash,
				Sizes:       sizes,
				Rounds:      *rounds,
				Iters:       *iters,
				Exploration: *exploration,
			},
			Report: report,
		})
		if err != nil {
			return err
		}
		fmt.Fprintf(os.Stderr, "artifacts written to %s\n", runDir)
	}

	switch {
	case st != nil:
		if err := opt.SaveToStore(ctx, st, *modelName); err != nil {
			return err
		}
	case *modelPath != "":
		if err := opt.Save(*modelPath); err != nil {
			return err
		}
	}

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(report)
}

func runRuns(args []string) error {
	fs := flag.NewFlagSet("runs", flag.ContinueOnError)
	outDir := fs.String("out", "benchmarks", "run artifacts directory")
	if err := fs.Parse(args); err != nil {
		return err
	}

	entries, err := bench.ListRunIndex(*outDir)
	if err != nil {
		return err
	}
	if len(entries) == 0 {
		fmt.Println("no recorded runs")
		return nil
	}
	for _, e := range entries {
		fmt.Printf("%s  %s  rounds=%d buckets=%d  source=%s\n",
			e.CreatedAtUTC, e.RunID, e.Rounds, e.Buckets, e.SourceHash)
	}
	return nil
}

// runBoundary prints the decision boundary a saved model has learned: for
// every observed input-size bucket, the variant with the highest mean
// reward and the statistics behind it.
func runBoundary(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("boundary", flag.ContinueOnError)
	modelPath := fs.String("model", "", "optimizer model file")
	storeKind := fs.String("store", "", "store backend instead of -model: memory|sqlite")
	dbPath := fs.String("db-path", "nanoforge.db", "sqlite database path")
	modelName := fs.String("name", "default", "model name within the store")
	if err := fs.Parse(args); err != nil {
		return err
	}

	engine, err := nanoforge.NewEngine(nanoforge.Options{})
	if err != nil {
		return err
	}

	var opt *nanoforge.Optimizer
	var found bool
	switch {
	case *storeKind != "":
		st, err := storage.NewStore(*storeKind, *dbPath)
		if err != nil {
			return err
		}
		defer func() {
			_ = storage.CloseIfSupported(st)
		}()
		if err := st.Init(ctx); err != nil {
			return err
		}
		opt, found, err = engine.LoadOptimizerFromStore(ctx, st, *modelName)
		if err != nil {
			return err
		}
	case *modelPath != "":
		opt, found, err = engine.LoadOptimizer(*modelPath)
		if err != nil {
			return err
		}
	default:
		return errors.New("boundary: -model or -store is required")
	}
	defer opt.Close()

	if !found {
		fmt.Println("no learned model")
		return nil
	}

	m, err := opt.Snapshot()
	if err != nil {
		return err
	}
	if len(m.Buckets) == 0 {
		fmt.Println("model has no observations")
		return nil
	}

	fmt.Printf("exploration=%.2f\n", m.Exploration)
	for _, bs := range m.Buckets {
		winner, mean := bs.Arms[0].Variant, bs.Arms[0].MeanReward
		var pulls uint64
		for _, a := range bs.Arms {
			pulls += a.Pulls
			if a.MeanReward > mean {
				winner, mean = a.Variant, a.MeanReward
			}
		}
		fmt.Printf("bucket %2d (sizes %s): variant %d  mean=%.3f pulls=%d\n",
			bs.Bucket, bucketRange(bs.Bucket), winner, mean, pulls)
	}
	return nil
}

// bucketRange renders the input-size interval a bit-length bucket covers.
func bucketRange(bucket int) string {
	if bucket <= 0 {
		return "[0,0]"
	}
	lo := uint64(1) << (bucket - 1)
	if bucket >= 64 {
		return fmt.Sprintf("[%d,max]", lo)
	}
	return fmt.Sprintf("[%d,%d]", lo, uint64(1)<<bucket-1)
}

func parseSizes(s string) ([]uint64, error) {
	parts := strings.Split(s, ",")
	sizes := make([]uint64, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p == "" {
			continue
		}
		v, err := strconv.ParseUint(p, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("bad size %q: %w", p, err)
		}
		sizes = append(sizes, v)
	}
	if len(sizes) == 0 {
		return nil, errors.New("no input sizes given")
	}
	return sizes, nil
}

func usageError(msg string) error {
	return fmt.Errorf("%s\nusage: nanoforgectl <features|version|run|benchmark|runs|boundary|repl> [flags]", msg)
}
