// Package exec holds the runtime artifact of a compiled script: an
// immutable Function bundling every synthesized variant behind one
// execute-with-scalar-input operation.
package exec

import (
	"crypto/sha256"
	"encoding/hex"
	"sync/atomic"

	"github.com/google/uuid"

	"nanoforge/internal/codegen"
	"nanoforge/internal/hostcap"
)

// Function owns the ordered variant set of one compiled script. It is
// immutable after construction and safe for unbounded concurrent
// invocation; release it explicitly with Release when done.
type Function struct {
	variants []*codegen.Variant
	caps     hostcap.Set
	fallback int

	sourceHash string
	compileID  string

	released atomic.Bool
}

// New wraps a non-empty variant set. The capability context gates variant
// eligibility at every dispatch, never at construction.
func New(variants []*codegen.Variant, caps hostcap.Set, source string) *Function {
	sum := sha256.Sum256([]byte(source))
	fallback := 0
	for i, v := range variants {
		if v.Fallback {
			fallback = i
			break
		}
	}
	return &Function{
		variants:   variants,
		caps:       caps,
		fallback:   fallback,
		sourceHash: hex.EncodeToString(sum[:]),
		compileID:  uuid.NewString(),
	}
}

// NumVariants returns the number of variants the function carries.
func (f *Function) NumVariants() int {
	return len(f.variants)
}

// Variant returns variant metadata by index, or nil when out of range.
func (f *Function) Variant(idx int) *codegen.Variant {
	if idx < 0 || idx >= len(f.variants) {
		return nil
	}
	return f.variants[idx]
}

// SourceHash is the hex SHA-256 of the compiled source text.
func (f *Function) SourceHash() string {
	return f.sourceHash
}

// CompileID uniquely identifies this compilation for provenance.
func (f *Function) CompileID() string {
	return f.compileID
}

// Execute runs the default capability-free variant.
func (f *Function) Execute(input uint64) uint64 {
	return f.variants[f.fallback].Invoke(input)
}

// ExecuteVariant runs the chosen variant. An index outside the variant
// range, or a variant whose capability requirements the host does not meet,
// silently falls back to the capability-free baseline: every variant
// computes the same result, so a correct substitute always exists and
// dispatch never fails.
func (f *Function) ExecuteVariant(idx int, input uint64) (uint64, bool) {
	if idx < 0 || idx >= len(f.variants) {
		return f.variants[f.fallback].Invoke(input), true
	}
	v := f.variants[idx]
	if !f.caps.Supports(v.Requires) {
		return f.variants[f.fallback].Invoke(input), true
	}
	return v.Invoke(input), false
}

// Released reports whether Release has been called.
func (f *Function) Released() bool {
	return f.released.Load()
}

// Release drops the variant code. Releasing twice is a no-op. The Function
// must not be executed afterwards.
func (f *Function) Release() {
	if f.released.CompareAndSwap(false, true) {
		f.variants = nil
	}
}
