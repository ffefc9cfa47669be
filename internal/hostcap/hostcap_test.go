package hostcap

import (
	"strings"
	"testing"
)

func TestEmptySet(t *testing.T) {
	s := NewSet()
	if s.Has(AVX2) {
		t.Fatal("empty set reports AVX2")
	}
	if !s.Supports(nil) {
		t.Fatal("empty requirement must always be supported")
	}
	if got := s.Summary(); got != "none" {
		t.Fatalf("summary = %q, want none", got)
	}
}

func TestWithDoesNotMutateReceiver(t *testing.T) {
	base := NewSet()
	extended := base.With(AVX, AVX2)
	if base.Has(AVX) {
		t.Fatal("With mutated the receiver")
	}
	if !extended.Has(AVX) || !extended.Has(AVX2) {
		t.Fatal("extended set missing added capabilities")
	}
}

func TestSupports(t *testing.T) {
	s := NewSet().With(SSE2, AVX, AVX2)
	if !s.Supports([]Capability{AVX, AVX2}) {
		t.Fatal("expected AVX+AVX2 supported")
	}
	if s.Supports([]Capability{AVX512F}) {
		t.Fatal("AVX512F must not be supported")
	}
	if s.Supports([]Capability{AVX, AVX512F}) {
		t.Fatal("partial requirement must not be supported")
	}
}

func TestSummaryIsSortedAndComplete(t *testing.T) {
	s := NewSet().With(AVX2, SSE2, AVX)
	got := s.Summary()
	for _, want := range []string{"sse2", "avx", "avx2"} {
		if !strings.Contains(got, want) {
			t.Fatalf("summary %q missing %s", got, want)
		}
	}
	if strings.Index(got, "avx2") < strings.Index(got, "avx") {
		t.Fatalf("summary %q is not sorted", got)
	}
}

func TestDetectIsStable(t *testing.T) {
	a := Detect()
	b := Detect()
	if a.Summary() != b.Summary() {
		t.Fatalf("detect not stable: %q vs %q", a.Summary(), b.Summary())
	}
}
