// Package bench is the measurement harness that closes the learning loop:
// it times variants for representative input sizes and feeds the measured
// costs back into the optimizer.
//
// Costs are wall-clock nanoseconds per call from the monotonic clock. The
// optimizer only consumes cost ratios, so any monotone proxy for cycles
// works and the unit never reaches the model.
package bench

import (
	"time"

	"github.com/google/uuid"

	"nanoforge/internal/bandit"
	"nanoforge/internal/exec"
	"nanoforge/internal/model"
)

const warmupIters = 100

// Measure times fn at the given input and returns the average cost per
// call. The result is never zero, so it is always a valid optimizer
// update.
func Measure(fn func(uint64) uint64, input uint64, iters int) uint64 {
	if iters <= 0 {
		iters = 1
	}
	for i := 0; i < warmupIters; i++ {
		sink = fn(input)
	}
	start := time.Now()
	for i := 0; i < iters; i++ {
		sink = fn(input)
	}
	elapsed := uint64(time.Since(start).Nanoseconds()) / uint64(iters)
	if elapsed == 0 {
		elapsed = 1
	}
	return elapsed
}

// sink defeats dead-call elimination in the measurement loops.
var sink uint64

// Report summarizes one benchmarking run.
type Report struct {
	RunID  string
	Rounds int
	Model  model.OptimizerModel

	// Winners maps bucket -> variant index the optimizer converged on.
	Winners map[int]int
}

// Loop drives rounds of select, execute, measure, update against one
// function. Best-known cost is tracked per bucket so rewards stay
// normalized within a context. An empty size list runs no rounds.
func Loop(f *exec.Function, opt *bandit.Optimizer, sizes []uint64, rounds, iters int) Report {
	if len(sizes) == 0 {
		rounds = 0
	}
	best := make(map[int]uint64)

	for r := 0; r < rounds; r++ {
		size := sizes[r%len(sizes)]
		idx := opt.Select(size)
		if idx == bandit.None {
			break
		}
		v := f.Variant(idx)
		if v == nil {
			continue
		}
		cost := Measure(func(in uint64) uint64 {
			out, _ := f.ExecuteVariant(idx, in)
			return out
		}, size, iters)

		b := bandit.Bucketize(size)
		if best[b] == 0 || cost < best[b] {
			best[b] = cost
		}
		opt.Update(size, idx, cost, best[b])
	}

	snapshot := opt.Snapshot()
	winners := make(map[int]int, len(snapshot.Buckets))
	for _, bs := range snapshot.Buckets {
		winners[bs.Bucket] = bestArm(bs)
	}
	return Report{
		RunID:   uuid.NewString(),
		Rounds:  rounds,
		Model:   snapshot,
		Winners: winners,
	}
}

// bestArm returns the arm with the highest learned mean, ties to the
// lowest index.
func bestArm(bs model.BucketStats) int {
	best, bestMean := 0, -1.0
	for _, a := range bs.Arms {
		if a.MeanReward > bestMean {
			best, bestMean = a.Variant, a.MeanReward
		}
	}
	return best
}
