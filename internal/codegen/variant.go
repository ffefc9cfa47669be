// Package codegen synthesizes the executable variants of a compiled script.
//
// From one lowered program it emits an ordered, non-empty set of
// semantically-equivalent entry points built with different execution
// strategies. The first variant is always the capability-free scalar
// baseline; enhanced variants carry the capability set they require and are
// emitted regardless of whether the compiling host supports them, since a
// compiled function may execute on hosts with different capabilities.
// Eligibility is a dispatch-time decision, not a compile-time one.
package codegen

import (
	"errors"
	"fmt"

	"nanoforge/internal/hostcap"
	"nanoforge/internal/ir"
	"nanoforge/internal/lang"
)

// ErrCompile marks a validly-parsed program the synthesizer cannot compile.
// It is distinct from parse errors; no partially-built variant set is ever
// returned alongside it.
var ErrCompile = errors.New("compile error")

// Variant is one compiled implementation of the script's transform. All
// variants of a program produce identical outputs for identical inputs;
// they differ only in execution strategy.
type Variant struct {
	// Index is the variant's stable 0-based position in its function.
	Index int
	// Name identifies the strategy, e.g. "scalar" or "avx2x4".
	Name string
	// Requires lists the host capabilities the variant needs.
	Requires []hostcap.Capability
	// Fallback marks variants that require no optional capability.
	Fallback bool

	entry func(uint64) uint64
}

// Invoke runs the variant's entry point.
func (v *Variant) Invoke(input uint64) uint64 {
	return v.entry(input)
}

// StrategyCount reports the number of variant strategies every synthesis
// emits. Optimizers size their arm sets from it.
func StrategyCount() int {
	return len(variantConfigs())
}

// config describes one strategy slot, mirroring the fixed variant table the
// selection model is trained against.
type config struct {
	name     string
	requires []hostcap.Capability
	fallback bool
	compile  func(*ir.Function) (func(uint64) uint64, error)
}

func variantConfigs() []config {
	return []config{
		{name: "scalar", fallback: true, compile: compileScalar},
		{name: "scalarx4", fallback: true, compile: compileThreaded},
		{name: "avx2x4", requires: []hostcap.Capability{hostcap.AVX, hostcap.AVX2}, compile: compileBlocks},
		{name: "avx512x8", requires: []hostcap.Capability{hostcap.AVX512F}, compile: compileBlocksWide},
	}
}

// Synthesize lowers prog and compiles every variant strategy. The
// capability context is consulted for the availability invariant only:
// emission never filters on it, but at least one returned variant must be
// executable under caps (the scalar baseline always is).
func Synthesize(prog *lang.Program, caps hostcap.Set) ([]*Variant, error) {
	lowered, err := ir.Lower(prog)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCompile, err)
	}
	entry := lowered.Main()
	if entry == nil {
		return nil, fmt.Errorf("%w: no entry function", ErrCompile)
	}

	var variants []*Variant
	for _, cfg := range variantConfigs() {
		fn, err := cfg.compile(entry)
		if err != nil {
			return nil, fmt.Errorf("%w: variant %s: %v", ErrCompile, cfg.name, err)
		}
		variants = append(variants, &Variant{
			Index:    len(variants),
			Name:     cfg.name,
			Requires: cfg.requires,
			Fallback: cfg.fallback,
			entry:    fn,
		})
	}

	eligible := false
	for _, v := range variants {
		if caps.Supports(v.Requires) {
			eligible = true
			break
		}
	}
	if !eligible {
		return nil, fmt.Errorf("%w: no variant executable on compiling host", ErrCompile)
	}
	return variants, nil
}
