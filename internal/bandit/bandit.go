// Package bandit implements the contextual upper-confidence-bound policy
// that learns which variant is fastest for each input-size bucket.
//
// The policy is deterministic: selection needs no randomness, so identical
// models always produce identical decisions, which keeps exploration traces
// reproducible in tests. Buckets are discretized by log2 of the input size,
// bounding the model to at most 65 distinct contexts.
//
// Concurrency: each bucket guards its own arm statistics with an
// independent mutex under a read-mostly registry lock, so concurrent
// updates to different buckets never contend. The running mean is a
// learning heuristic, not a correctness-critical value; interleavings
// across bucket-lock boundaries are tolerated within bounded error.
package bandit

import (
	"math"
	"math/bits"
	"sort"
	"sync"

	"nanoforge/internal/model"
)

// None is the sentinel Select returns when no arm has ever been registered.
const None = -1

// DefaultExploration is the UCB exploration constant c.
const DefaultExploration = 2.0

type arm struct {
	pulls uint64
	mean  float64
}

type bucket struct {
	mu         sync.Mutex
	arms       []arm
	totalPulls uint64
}

// Optimizer is a contextual bandit over caller-defined variant indices. It
// has no relationship to any particular compiled function; the caller's
// benchmarking loop supplies indices and feedback.
type Optimizer struct {
	exploration float64

	mu      sync.RWMutex
	buckets map[int]*bucket
	arms    int
}

// New creates an empty optimizer tracking the given number of arms. More
// arms register implicitly when Update reports a higher variant index.
func New(arms int, exploration float64) *Optimizer {
	if exploration <= 0 {
		exploration = DefaultExploration
	}
	if arms < 0 {
		arms = 0
	}
	return &Optimizer{
		exploration: exploration,
		buckets:     make(map[int]*bucket),
		arms:        arms,
	}
}

// Bucketize discretizes an input size into its context bucket: the bit
// length of the size, so bucket k covers [2^(k-1), 2^k).
func Bucketize(inputSize uint64) int {
	return bits.Len64(inputSize)
}

// Exploration returns the fixed exploration constant.
func (o *Optimizer) Exploration() float64 {
	return o.exploration
}

// Select returns the variant to try for the given input size. Unexplored
// arms (zero pulls) are returned first, lowest index first; once every arm
// in the bucket has been pulled, the arm with the highest UCB score wins,
// ties broken by lowest index. Returns None only when no arm has ever been
// registered.
func (o *Optimizer) Select(inputSize uint64) int {
	v, _ := o.SelectExplored(inputSize)
	return v
}

// SelectExplored is Select plus a flag reporting whether the choice was
// pure exploration of an unpulled arm rather than a UCB decision.
func (o *Optimizer) SelectExplored(inputSize uint64) (int, bool) {
	o.mu.RLock()
	arms := o.arms
	b := o.buckets[Bucketize(inputSize)]
	o.mu.RUnlock()

	if arms == 0 {
		return None, false
	}
	if b == nil {
		// Never-observed bucket: pure exploration from the first arm.
		return 0, true
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	for i := 0; i < arms; i++ {
		if i >= len(b.arms) || b.arms[i].pulls == 0 {
			return i, true
		}
	}

	best, bestScore := 0, math.Inf(-1)
	logTotal := math.Log(float64(b.totalPulls))
	for i := range b.arms {
		a := &b.arms[i]
		score := a.mean + o.exploration*math.Sqrt(logTotal/float64(a.pulls))
		if score > bestScore {
			best, bestScore = i, score
		}
	}
	return best, false
}

// Update folds one measurement into the model. A zero measured-cycle value
// is an undefined cost and the call is a no-op, as is a negative variant
// index or a zero best-known value; malformed feedback must never stall a
// live benchmarking loop. Reward is bestCycles/measuredCycles clamped to
// (0, 1], where 1 means the variant matched the best known performance.
func (o *Optimizer) Update(inputSize uint64, variant int, measuredCycles, bestCycles uint64) {
	if variant < 0 || measuredCycles == 0 || bestCycles == 0 {
		return
	}
	reward := float64(bestCycles) / float64(measuredCycles)
	if reward > 1 {
		reward = 1
	}

	b := o.bucketFor(Bucketize(inputSize), variant)

	b.mu.Lock()
	defer b.mu.Unlock()
	if variant >= len(b.arms) {
		b.arms = append(b.arms, make([]arm, variant+1-len(b.arms))...)
	}
	a := &b.arms[variant]
	a.pulls++
	b.totalPulls++
	a.mean += (reward - a.mean) / float64(a.pulls)
}

// bucketFor returns the bucket, creating it and registering the variant
// index if unseen. Bucket and arm sets only grow.
func (o *Optimizer) bucketFor(id, variant int) *bucket {
	o.mu.RLock()
	b := o.buckets[id]
	grow := variant >= o.arms
	o.mu.RUnlock()
	if b != nil && !grow {
		return b
	}

	o.mu.Lock()
	defer o.mu.Unlock()
	if variant >= o.arms {
		o.arms = variant + 1
	}
	b = o.buckets[id]
	if b == nil {
		b = &bucket{}
		o.buckets[id] = b
	}
	return b
}

// Snapshot copies the full model under lock. The copy is consistent per
// bucket; cross-bucket skew is bounded by updates racing the walk and is
// acceptable for a learning heuristic. File I/O happens outside any lock.
func (o *Optimizer) Snapshot() model.OptimizerModel {
	o.mu.RLock()
	defer o.mu.RUnlock()

	ids := make([]int, 0, len(o.buckets))
	for id := range o.buckets {
		ids = append(ids, id)
	}
	sort.Ints(ids)

	m := model.OptimizerModel{Exploration: o.exploration}
	for _, id := range ids {
		b := o.buckets[id]
		b.mu.Lock()
		bs := model.BucketStats{Bucket: id}
		for i, a := range b.arms {
			if a.pulls == 0 {
				continue
			}
			bs.Arms = append(bs.Arms, model.ArmStats{Variant: i, Pulls: a.pulls, MeanReward: a.mean})
		}
		b.mu.Unlock()
		if len(bs.Arms) > 0 {
			m.Buckets = append(m.Buckets, bs)
		}
	}
	return m
}

// Restore rebuilds an optimizer whose select/update behavior is
// indistinguishable from the one the snapshot was taken from.
func Restore(m model.OptimizerModel, arms int) *Optimizer {
	o := New(arms, m.Exploration)
	for _, bs := range m.Buckets {
		b := &bucket{}
		for _, as := range bs.Arms {
			if as.Variant < 0 {
				continue
			}
			if as.Variant >= len(b.arms) {
				b.arms = append(b.arms, make([]arm, as.Variant+1-len(b.arms))...)
			}
			b.arms[as.Variant] = arm{pulls: as.Pulls, mean: as.MeanReward}
			b.totalPulls += as.Pulls
			if as.Variant >= o.arms {
				o.arms = as.Variant + 1
			}
		}
		o.buckets[bs.Bucket] = b
	}
	return o
}
