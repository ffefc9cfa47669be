// Package hostcap provides an immutable snapshot of host CPU capabilities.
//
// The snapshot is taken once and passed by value into variant synthesis and
// dispatch; it is never re-probed per call. Tests construct simulated sets
// so capability-dependent eligibility stays deterministic.
package hostcap

import (
	"sort"
	"strings"

	"github.com/klauspost/cpuid/v2"
)

// Capability names one ISA feature a variant may require.
type Capability string

const (
	SSE2    Capability = "sse2"
	SSE42   Capability = "sse4.2"
	AVX     Capability = "avx"
	AVX2    Capability = "avx2"
	AVX512F Capability = "avx512f"
	NEON    Capability = "neon"
)

// Set is an immutable capability set. The zero value is the empty set.
type Set struct {
	caps map[Capability]bool
}

// Detect probes the host CPU once and returns its capability set.
func Detect() Set {
	s := NewSet()
	if cpuid.CPU.Supports(cpuid.SSE2) {
		s.caps[SSE2] = true
	}
	if cpuid.CPU.Supports(cpuid.SSE42) {
		s.caps[SSE42] = true
	}
	if cpuid.CPU.Supports(cpuid.AVX) {
		s.caps[AVX] = true
	}
	if cpuid.CPU.Supports(cpuid.AVX2) {
		s.caps[AVX2] = true
	}
	if cpuid.CPU.Supports(cpuid.AVX512F) {
		s.caps[AVX512F] = true
	}
	if cpuid.CPU.Supports(cpuid.ASIMD) {
		s.caps[NEON] = true
	}
	return s
}

// NewSet returns an empty mutable set for simulated environments. Callers
// populate it with With before handing it out.
func NewSet() Set {
	return Set{caps: make(map[Capability]bool)}
}

// With returns a copy of s with the given capabilities added.
func (s Set) With(caps ...Capability) Set {
	out := NewSet()
	for c := range s.caps {
		out.caps[c] = true
	}
	for _, c := range caps {
		out.caps[c] = true
	}
	return out
}

// Has reports whether the set contains c.
func (s Set) Has(c Capability) bool {
	return s.caps[c]
}

// Supports reports whether every capability in required is present.
func (s Set) Supports(required []Capability) bool {
	for _, c := range required {
		if !s.caps[c] {
			return false
		}
	}
	return true
}

// Summary returns a human-readable, stable description of the set, e.g.
// "avx, avx2, sse2". Empty sets report "none".
func (s Set) Summary() string {
	if len(s.caps) == 0 {
		return "none"
	}
	names := make([]string, 0, len(s.caps))
	for c := range s.caps {
		names = append(names, string(c))
	}
	sort.Strings(names)
	return strings.Join(names, ", ")
}
