package bench

import (
	"testing"

	"nanoforge/internal/bandit"
	"nanoforge/internal/codegen"
	"nanoforge/internal/exec"
	"nanoforge/internal/hostcap"
	"nanoforge/internal/lang"
)

func compiled(t *testing.T) *exec.Function {
	t.Helper()
	src := `fn main(n) {
    total = 0
    i = 0
    while i < n {
        total = total + i
        i = i + 1
    }
    return total
}`
	prog, err := lang.Parse(src)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	variants, err := codegen.Synthesize(prog, hostcap.NewSet())
	if err != nil {
		t.Fatalf("synthesize: %v", err)
	}
	return exec.New(variants, hostcap.NewSet(), src)
}

func TestMeasureNeverReturnsZero(t *testing.T) {
	cost := Measure(func(n uint64) uint64 { return n }, 1, 1)
	if cost == 0 {
		t.Fatal("measured cost must stay a valid optimizer update")
	}
}

func TestMeasureDefaultsIters(t *testing.T) {
	if cost := Measure(func(n uint64) uint64 { return n }, 1, 0); cost == 0 {
		t.Fatal("zero iters must fall back to a single timed call")
	}
}

func TestLoopFeedsOptimizer(t *testing.T) {
	f := compiled(t)
	opt := bandit.New(f.NumVariants(), bandit.DefaultExploration)

	report := Loop(f, opt, []uint64{4, 4096}, 40, 10)
	if report.RunID == "" {
		t.Fatal("missing run id")
	}
	if report.Rounds != 40 {
		t.Fatalf("rounds = %d, want 40", report.Rounds)
	}
	if len(report.Model.Buckets) == 0 {
		t.Fatal("loop recorded no bucket statistics")
	}

	var pulls uint64
	for _, b := range report.Model.Buckets {
		for _, a := range b.Arms {
			pulls += a.Pulls
		}
	}
	if pulls == 0 {
		t.Fatal("loop recorded no pulls")
	}
	for bucket, winner := range report.Winners {
		if winner < 0 || winner >= f.NumVariants() {
			t.Fatalf("bucket %d winner %d out of range", bucket, winner)
		}
	}
}

func TestLoopWithNoSizesRunsNoRounds(t *testing.T) {
	f := compiled(t)
	opt := bandit.New(f.NumVariants(), bandit.DefaultExploration)

	report := Loop(f, opt, nil, 10, 10)
	if report.Rounds != 0 {
		t.Fatalf("rounds = %d, want 0", report.Rounds)
	}
	if len(report.Model.Buckets) != 0 {
		t.Fatalf("empty size list recorded statistics: %+v", report.Model)
	}
}

func TestLoopStopsWhenOptimizerIsEmpty(t *testing.T) {
	f := compiled(t)
	opt := bandit.New(0, bandit.DefaultExploration)

	report := Loop(f, opt, []uint64{4}, 10, 10)
	if len(report.Model.Buckets) != 0 {
		t.Fatalf("empty optimizer recorded statistics: %+v", report.Model)
	}
}
