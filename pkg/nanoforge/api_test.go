package nanoforge

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/prometheus/client_golang/prometheus"

	"nanoforge/internal/bandit"
	"nanoforge/internal/storage"
)

const doubleSrc = `fn main(n) {
    x = n + n
    return x
}`

func newEngine(t *testing.T) *Engine {
	t.Helper()
	e, err := NewEngine(Options{Registerer: prometheus.NewRegistry()})
	if err != nil {
		t.Fatalf("new engine: %v", err)
	}
	return e
}

func TestCompileAndExecute(t *testing.T) {
	e := newEngine(t)
	fn, err := e.Compile(doubleSrc)
	if err != nil {
		t.Fatalf("compile: %v", err)
	}
	defer fn.Release()

	out, err := e.Execute(fn, 21)
	if err != nil {
		t.Fatalf("execute: %v", err)
	}
	if out != 42 {
		t.Fatalf("Execute(21) = %d, want 42", out)
	}
}

func TestExecuteVariantNeverFails(t *testing.T) {
	e := newEngine(t)
	fn, err := e.Compile(doubleSrc)
	if err != nil {
		t.Fatalf("compile: %v", err)
	}
	defer fn.Release()

	n, err := fn.NumVariants()
	if err != nil {
		t.Fatalf("num variants: %v", err)
	}
	for _, idx := range []int{-3, 0, 1, n - 1, n, n + 10} {
		out, err := e.ExecuteVariant(fn, idx, 21)
		if err != nil {
			t.Fatalf("variant %d: %v", idx, err)
		}
		if out != 42 {
			t.Fatalf("variant %d = %d, want 42", idx, out)
		}
	}
}

func TestCompileErrorKinds(t *testing.T) {
	e := newEngine(t)
	cases := []struct {
		name string
		src  string
		want error
	}{
		{"invalid encoding", "fn main() { return \xff }", ErrInvalidEncoding},
		{"syntax", "fn main() { return }", ErrSyntax},
		{"undefined label", "fn main() {\n    goto nowhere\n    return 0\n}", ErrCompile},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := e.Compile(tc.src)
			if !errors.Is(err, tc.want) {
				t.Fatalf("got %v, want %v", err, tc.want)
			}
		})
	}
}

func TestReleasedHandleIsSafe(t *testing.T) {
	e := newEngine(t)
	fn, err := e.Compile(doubleSrc)
	if err != nil {
		t.Fatalf("compile: %v", err)
	}
	fn.Release()
	fn.Release()

	if _, err := e.Execute(fn, 21); !errors.Is(err, ErrNilHandle) {
		t.Fatalf("released handle: got %v, want ErrNilHandle", err)
	}

	var nilFn *Function
	if _, err := e.Execute(nilFn, 21); !errors.Is(err, ErrNilHandle) {
		t.Fatalf("nil handle: got %v, want ErrNilHandle", err)
	}
}

func TestCompileCacheSurvivesRelease(t *testing.T) {
	e := newEngine(t)
	a, err := e.Compile(doubleSrc)
	if err != nil {
		t.Fatalf("compile a: %v", err)
	}
	b, err := e.Compile(doubleSrc)
	if err != nil {
		t.Fatalf("compile b: %v", err)
	}

	a.Release()
	out, err := e.Execute(b, 21)
	if err != nil || out != 42 {
		t.Fatalf("cached compile broken after sibling release: %d, %v", out, err)
	}
	b.Release()
}

func TestOptimizerLifecycle(t *testing.T) {
	e := newEngine(t)
	opt := e.NewOptimizer(0)
	defer opt.Close()

	v, err := opt.Select(100)
	if err != nil {
		t.Fatalf("select: %v", err)
	}
	if v != 0 {
		t.Fatalf("first selection = %d, want unexplored arm 0", v)
	}

	if err := opt.Update(100, int(v), 10, 10); err != nil {
		t.Fatalf("update: %v", err)
	}
	if err := opt.Update(100, int(v), 0, 10); err != nil {
		t.Fatalf("malformed update must be a no-op, got %v", err)
	}

	opt.Close()
	opt.Close()
	if _, err := opt.Select(100); !errors.Is(err, ErrNilHandle) {
		t.Fatalf("closed optimizer: got %v, want ErrNilHandle", err)
	}

	var nilOpt *Optimizer
	if _, err := nilOpt.Select(100); !errors.Is(err, ErrNilHandle) {
		t.Fatalf("nil optimizer: got %v, want ErrNilHandle", err)
	}
}

func TestSaveLoadSelectEquivalence(t *testing.T) {
	e := newEngine(t)
	path := filepath.Join(t.TempDir(), "model.json")

	opt := e.NewOptimizer(bandit.DefaultExploration)
	defer opt.Close()

	sizes := []uint64{3, 400, 1 << 22}
	cost := []uint64{30, 10, 20, 40}
	for i := 0; i < 120; i++ {
		size := sizes[i%len(sizes)]
		v, err := opt.Select(size)
		if err != nil {
			t.Fatalf("select: %v", err)
		}
		if err := opt.Update(size, int(v), cost[v], 10); err != nil {
			t.Fatalf("update: %v", err)
		}
	}
	if err := opt.Save(path); err != nil {
		t.Fatalf("save: %v", err)
	}

	restored, found, err := e.LoadOptimizer(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if !found {
		t.Fatal("expected persisted model")
	}
	defer restored.Close()

	for _, size := range sizes {
		want, err := opt.Select(size)
		if err != nil {
			t.Fatalf("select original: %v", err)
		}
		got, err := restored.Select(size)
		if err != nil {
			t.Fatalf("select restored: %v", err)
		}
		if got != want {
			t.Fatalf("size %d: restored selects %d, original %d", size, got, want)
		}
	}
}

func TestLoadMissingModelStartsFresh(t *testing.T) {
	e := newEngine(t)
	opt, found, err := e.LoadOptimizer(filepath.Join(t.TempDir(), "absent.json"))
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if found {
		t.Fatal("absent file reported found")
	}
	defer opt.Close()

	v, err := opt.Select(100)
	if err != nil {
		t.Fatalf("select on fresh optimizer: %v", err)
	}
	if v != 0 {
		t.Fatalf("fresh optimizer selects %d, want 0", v)
	}
}

func TestLoadCorruptModel(t *testing.T) {
	e := newEngine(t)
	path := filepath.Join(t.TempDir(), "model.json")
	if err := os.WriteFile(path, []byte("garbage"), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}

	_, _, err := e.LoadOptimizer(path)
	if !errors.Is(err, ErrCorruptModel) {
		t.Fatalf("got %v, want ErrCorruptModel", err)
	}
}

func TestStoreBackedSaveLoad(t *testing.T) {
	ctx := context.Background()
	e := newEngine(t)

	st := storage.NewMemoryStore()
	if err := st.Init(ctx); err != nil {
		t.Fatalf("init store: %v", err)
	}

	opt := e.NewOptimizer(bandit.DefaultExploration)
	defer opt.Close()
	for i := 0; i < 20; i++ {
		v, err := opt.Select(64)
		if err != nil {
			t.Fatalf("select: %v", err)
		}
		if err := opt.Update(64, int(v), 10+uint64(v), 10); err != nil {
			t.Fatalf("update: %v", err)
		}
	}
	if err := opt.SaveToStore(ctx, st, "default"); err != nil {
		t.Fatalf("save to store: %v", err)
	}

	restored, found, err := e.LoadOptimizerFromStore(ctx, st, "default")
	if err != nil {
		t.Fatalf("load from store: %v", err)
	}
	if !found {
		t.Fatal("expected persisted model")
	}
	defer restored.Close()

	want, _ := opt.Select(64)
	got, _ := restored.Select(64)
	if got != want {
		t.Fatalf("restored selects %d, original %d", got, want)
	}
}

func TestInitReportsCapabilities(t *testing.T) {
	e := newEngine(t)
	if e.Init() == "" {
		t.Fatal("empty capability summary")
	}
}

func TestVersion(t *testing.T) {
	if Version() == "" {
		t.Fatal("empty version")
	}
}
