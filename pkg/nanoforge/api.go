// Package nanoforge is the public surface of the adaptive compilation
// engine. It compiles numeric scripts into multi-variant functions,
// executes them, and manages contextual-bandit optimizers that learn the
// fastest variant per workload shape from measured feedback.
//
// Handles returned by this package (Function, Optimizer) are owned by the
// caller and released explicitly; they are never collected implicitly.
package nanoforge

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"sync"

	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/prometheus/client_golang/prometheus"

	"nanoforge/internal/codegen"
	"nanoforge/internal/exec"
	"nanoforge/internal/hostcap"
	"nanoforge/internal/lang"
	"nanoforge/internal/metrics"
	"nanoforge/internal/storage"
)

const version = "0.1.0"

// Version returns the static engine version string.
func Version() string {
	return version
}

// ErrNilHandle is returned by every operation handed a nil or released
// handle. Boundary calls never crash on bad handles.
var ErrNilHandle = errors.New("nil handle")

// Error kinds re-exported so embedders can classify failures without
// importing internal packages.
var (
	ErrInvalidEncoding = lang.ErrInvalidEncoding
	ErrSyntax          = lang.ErrSyntax
	ErrCompile         = codegen.ErrCompile
	ErrCorruptModel    = storage.ErrCorruptModel
)

const defaultCacheSize = 128

// Options configures an Engine.
type Options struct {
	// Capabilities overrides host detection, for simulated environments.
	Capabilities *hostcap.Set
	// CacheSize bounds the compiled-variant cache. Zero means the default.
	CacheSize int
	// Registerer receives the engine's metrics. Nil registers nothing.
	Registerer prometheus.Registerer
}

// Engine compiles scripts and dispenses optimizers. One Engine is safe for
// concurrent use from many goroutines.
type Engine struct {
	caps  hostcap.Set
	cache *lru.Cache[string, []*codegen.Variant]
	stats *metrics.Metrics
}

// NewEngine detects host capabilities once and prepares the compile cache.
func NewEngine(opts Options) (*Engine, error) {
	caps := hostcap.Detect()
	if opts.Capabilities != nil {
		caps = *opts.Capabilities
	}
	size := opts.CacheSize
	if size <= 0 {
		size = defaultCacheSize
	}
	cache, err := lru.New[string, []*codegen.Variant](size)
	if err != nil {
		return nil, fmt.Errorf("compile cache: %w", err)
	}
	reg := opts.Registerer
	if reg == nil {
		reg = discardRegisterer{}
	}
	return &Engine{caps: caps, cache: cache, stats: metrics.New(reg)}, nil
}

// Init returns a human-readable description of the capability context the
// engine was constructed with.
func (e *Engine) Init() string {
	return e.caps.Summary()
}

// Capabilities returns the engine's immutable capability context.
func (e *Engine) Capabilities() hostcap.Set {
	return e.caps
}

// Function is a caller-owned handle to one compiled script.
type Function struct {
	mu    sync.Mutex
	inner *exec.Function
}

// Compile parses, validates, and synthesizes every variant of source.
// Failures are classified: ErrInvalidEncoding, ErrSyntax, or ErrCompile.
// No partially-built function is ever returned. Repeat compilations of
// identical source reuse the cached variant set.
func (e *Engine) Compile(source string) (*Function, error) {
	prog, err := lang.Parse(source)
	if err != nil {
		switch {
		case errors.Is(err, lang.ErrInvalidEncoding):
			e.stats.CompileTotal.WithLabelValues("encoding_error").Inc()
		default:
			e.stats.CompileTotal.WithLabelValues("parse_error").Inc()
		}
		return nil, err
	}

	sum := sha256.Sum256([]byte(source))
	key := hex.EncodeToString(sum[:])
	if variants, ok := e.cache.Get(key); ok {
		e.stats.CompileTotal.WithLabelValues("ok").Inc()
		return &Function{inner: exec.New(variants, e.caps, source)}, nil
	}

	variants, err := codegen.Synthesize(prog, e.caps)
	if err != nil {
		e.stats.CompileTotal.WithLabelValues("compile_error").Inc()
		return nil, err
	}
	e.cache.Add(key, variants)
	e.stats.CompileTotal.WithLabelValues("ok").Inc()
	return &Function{inner: exec.New(variants, e.caps, source)}, nil
}

// Execute runs f's default capability-free variant.
func (e *Engine) Execute(f *Function, input uint64) (uint64, error) {
	inner, err := f.handle()
	if err != nil {
		return 0, err
	}
	e.stats.ExecuteTotal.Inc()
	return inner.Execute(input), nil
}

// ExecuteVariant runs the chosen variant, falling back to the baseline if
// the index is out of range or the variant needs an unmet capability.
func (e *Engine) ExecuteVariant(f *Function, variant int, input uint64) (uint64, error) {
	inner, err := f.handle()
	if err != nil {
		return 0, err
	}
	e.stats.ExecuteTotal.Inc()
	out, fellBack := inner.ExecuteVariant(variant, input)
	if fellBack {
		e.stats.FallbackTotal.Inc()
	}
	return out, nil
}

// NumVariants reports how many variants f carries.
func (f *Function) NumVariants() (int, error) {
	inner, err := f.handle()
	if err != nil {
		return 0, err
	}
	return inner.NumVariants(), nil
}

// SourceHash identifies the compiled source for provenance.
func (f *Function) SourceHash() (string, error) {
	inner, err := f.handle()
	if err != nil {
		return "", err
	}
	return inner.SourceHash(), nil
}

// Runtime exposes the underlying immutable function for benchmark
// harnesses that bypass the engine.
func (f *Function) Runtime() (*exec.Function, error) {
	return f.handle()
}

// Release frees the function. Further calls on the handle return
// ErrNilHandle; releasing twice is a no-op.
func (f *Function) Release() {
	if f == nil {
		return
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.inner != nil {
		f.inner.Release()
		f.inner = nil
	}
}

func (f *Function) handle() (*exec.Function, error) {
	if f == nil {
		return nil, ErrNilHandle
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.inner == nil || f.inner.Released() {
		return nil, ErrNilHandle
	}
	return f.inner, nil
}

// discardRegisterer drops all collectors; used when the embedder does not
// wire metrics.
type discardRegisterer struct{}

func (discardRegisterer) Register(prometheus.Collector) error  { return nil }
func (discardRegisterer) MustRegister(...prometheus.Collector) {}
func (discardRegisterer) Unregister(prometheus.Collector) bool { return true }
