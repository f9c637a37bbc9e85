package noise

import "testing"

func TestRealtimeSourceDeterministic(t *testing.T) {
	a := NewRealtimeSource(42)
	b := NewRealtimeSource(42)
	for i := 0; i < 1000; i++ {
		av, bv := a.Next(), b.Next()
		if av != bv {
			t.Fatalf("sample %d mismatch: %v != %v", i, av, bv)
		}
	}
}

func TestRealtimeSourceRange(t *testing.T) {
	s := NewRealtimeSource(1)
	for i := 0; i < 100000; i++ {
		v := s.Next()
		if v < -1 || v > 1 {
			t.Fatalf("sample %d out of range: %v", i, v)
		}
	}
}

func TestRealtimeSourceReseed(t *testing.T) {
	s := NewRealtimeSource(7)
	first := make([]float64, 16)
	s.NextBlock(first)

	s.Reseed(7)
	second := make([]float64, 16)
	s.NextBlock(second)

	for i := range first {
		if first[i] != second[i] {
			t.Fatalf("reseed mismatch at %d", i)
		}
	}
}

func TestRealtimeSourceZeroSeedFallback(t *testing.T) {
	s := NewRealtimeSource(0)
	v := s.Next()
	if v < -1 || v > 1 {
		t.Fatalf("zero-seed fallback produced out-of-range sample: %v", v)
	}
}

func TestGeneratorWhiteNoiseRange(t *testing.T) {
	g := NewGenerator()
	samples, err := g.WhiteNoise(4096)
	if err != nil {
		t.Fatalf("WhiteNoise() error = %v", err)
	}
	for i, v := range samples {
		if v < -1 || v > 1 {
			t.Fatalf("sample %d out of range: %v", i, v)
		}
	}
}

func TestGeneratorWhiteNoiseInvalidLength(t *testing.T) {
	g := NewGenerator()
	if _, err := g.WhiteNoise(0); err == nil {
		t.Fatal("expected error for zero samples")
	}
}

func TestGeneratorSeededReproducible(t *testing.T) {
	a := NewGeneratorSeeded(1, 2)
	b := NewGeneratorSeeded(1, 2)
	sa, _ := a.WhiteNoise(256)
	sb, _ := b.WhiteNoise(256)
	for i := range sa {
		if sa[i] != sb[i] {
			t.Fatalf("seeded generators diverged at %d", i)
		}
	}
}
