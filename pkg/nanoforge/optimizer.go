package nanoforge

import (
	"context"
	"errors"
	"sync"

	"nanoforge/internal/bandit"
	"nanoforge/internal/codegen"
	"nanoforge/internal/metrics"
	"nanoforge/internal/model"
	"nanoforge/internal/storage"
)

// SelectNone is the sentinel Select returns when the optimizer has no arms
// to choose from. It is never a valid variant index.
const SelectNone int32 = -1

// Optimizer is a caller-owned handle to one learned selection model. It is
// safe for concurrent Select and Update from many goroutines; Close and the
// other operations may race only in the trivial sense that a closed handle
// returns ErrNilHandle.
type Optimizer struct {
	mu    sync.Mutex
	inner *bandit.Optimizer
	stats *metrics.Metrics
}

// NewOptimizer creates an empty model sized to the engine's variant
// strategy set. A non-positive exploration constant selects the default.
func (e *Engine) NewOptimizer(exploration float64) *Optimizer {
	return &Optimizer{
		inner: bandit.New(codegen.StrategyCount(), exploration),
		stats: e.stats,
	}
}

// LoadOptimizer restores a model from a snapshot file. A missing file is
// the cold-start path: it returns a fresh optimizer and found=false. A
// present but undecodable file returns ErrCorruptModel; learned state is
// never silently discarded.
func (e *Engine) LoadOptimizer(path string) (*Optimizer, bool, error) {
	m, found, err := storage.LoadModel(path)
	if err != nil {
		e.stats.ModelLoadTotal.WithLabelValues(loadResult(err)).Inc()
		return nil, false, err
	}
	if !found {
		e.stats.ModelLoadTotal.WithLabelValues("fresh").Inc()
		return e.NewOptimizer(bandit.DefaultExploration), false, nil
	}
	e.stats.ModelLoadTotal.WithLabelValues("ok").Inc()
	return &Optimizer{
		inner: bandit.Restore(m, codegen.StrategyCount()),
		stats: e.stats,
	}, true, nil
}

// LoadOptimizerFromStore restores a named model from a Store backend with
// the same absent-versus-corrupt contract as LoadOptimizer.
func (e *Engine) LoadOptimizerFromStore(ctx context.Context, st storage.Store, name string) (*Optimizer, bool, error) {
	m, found, err := st.GetModel(ctx, name)
	if err != nil {
		e.stats.ModelLoadTotal.WithLabelValues(loadResult(err)).Inc()
		return nil, false, err
	}
	if !found {
		e.stats.ModelLoadTotal.WithLabelValues("fresh").Inc()
		return e.NewOptimizer(bandit.DefaultExploration), false, nil
	}
	e.stats.ModelLoadTotal.WithLabelValues("ok").Inc()
	return &Optimizer{
		inner: bandit.Restore(m, codegen.StrategyCount()),
		stats: e.stats,
	}, true, nil
}

func loadResult(err error) string {
	if errors.Is(err, storage.ErrCorruptModel) {
		return "corrupt"
	}
	return "error"
}

// Select returns the variant index to try for the given input size, or
// SelectNone when the model tracks no arms.
func (o *Optimizer) Select(inputSize uint64) (int32, error) {
	inner, err := o.handle()
	if err != nil {
		return SelectNone, err
	}
	v, explored := inner.SelectExplored(inputSize)
	switch {
	case v == bandit.None:
		o.stats.SelectTotal.WithLabelValues("none").Inc()
	case explored:
		o.stats.SelectTotal.WithLabelValues("explore").Inc()
	default:
		o.stats.SelectTotal.WithLabelValues("exploit").Inc()
	}
	return int32(v), nil
}

// Update folds one measurement into the model. Malformed feedback (zero
// cycle counts or a negative variant index) is dropped without error so a
// live measurement loop never stalls on a bad sample.
func (o *Optimizer) Update(inputSize uint64, variant int, measuredCycles, bestCycles uint64) error {
	inner, err := o.handle()
	if err != nil {
		return err
	}
	if variant < 0 || measuredCycles == 0 || bestCycles == 0 {
		o.stats.UpdateIgnored.Inc()
		return nil
	}
	inner.Update(inputSize, variant, measuredCycles, bestCycles)
	o.stats.UpdateTotal.Inc()
	return nil
}

// Save writes a consistent snapshot of the model to path atomically. The
// optimizer remains usable; concurrent updates racing the snapshot land in
// the next save.
func (o *Optimizer) Save(path string) error {
	inner, err := o.handle()
	if err != nil {
		return err
	}
	if err := storage.SaveModel(path, inner.Snapshot()); err != nil {
		return err
	}
	o.stats.ModelSaveTotal.Inc()
	return nil
}

// SaveToStore writes a snapshot under name to a Store backend.
func (o *Optimizer) SaveToStore(ctx context.Context, st storage.Store, name string) error {
	inner, err := o.handle()
	if err != nil {
		return err
	}
	if err := st.SaveModel(ctx, name, inner.Snapshot()); err != nil {
		return err
	}
	o.stats.ModelSaveTotal.Inc()
	return nil
}

// Snapshot copies the current learned state.
func (o *Optimizer) Snapshot() (model.OptimizerModel, error) {
	inner, err := o.handle()
	if err != nil {
		return model.OptimizerModel{}, err
	}
	return inner.Snapshot(), nil
}

// Runtime exposes the underlying policy for benchmark harnesses.
func (o *Optimizer) Runtime() (*bandit.Optimizer, error) {
	return o.handle()
}

// Close releases the model. Further calls return ErrNilHandle; closing
// twice is a no-op.
func (o *Optimizer) Close() {
	if o == nil {
		return
	}
	o.mu.Lock()
	defer o.mu.Unlock()
	o.inner = nil
}

func (o *Optimizer) handle() (*bandit.Optimizer, error) {
	if o == nil {
		return nil, ErrNilHandle
	}
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.inner == nil {
		return nil, ErrNilHandle
	}
	return o.inner, nil
}
