// Package noise generates uniform white noise for the two consumption
// contracts of the core: a deterministic-seeded real-time source for the
// audio thread and a non-deterministic offline generator for bulk export.
package noise

import (
	"fmt"
	"math/rand/v2"
)

const (
	lcgModulus     = 2147483647 // 2^31 - 1 (Mersenne prime, Park-Miller modulus)
	lcgMultiplier  = 16807
	lcgDefaultSeed = 1
)

// RealtimeSource is a Park-Miller multiplicative LCG producing samples
// uniformly distributed on [-1, 1]. It is reentrant, allocates nothing after
// construction, and is safe to call from an audio-priority thread.
//
// State update: s <- (16807*s) mod (2^31 - 1).
type RealtimeSource struct {
	state int64
}

// NewRealtimeSource creates a source reseeded to the given value.
// A zero or negative seed is replaced with the default seed, since the LCG
// is degenerate at state 0.
func NewRealtimeSource(seed int64) *RealtimeSource {
	s := &RealtimeSource{}
	s.Reseed(seed)
	return s
}

// Reseed resets the generator state to seed. track.Track.Start does not
// call it: a track's noise continues from its current state across
// stop/start cycles.
func (s *RealtimeSource) Reseed(seed int64) {
	seed %= lcgModulus
	if seed <= 0 {
		seed = lcgDefaultSeed
	}
	s.state = seed
}

// Next returns the next uniform sample on [-1, 1].
func (s *RealtimeSource) Next() float64 {
	s.state = (lcgMultiplier * s.state) % lcgModulus
	return 2*float64(s.state)/float64(lcgModulus-1) - 1
}

// NextBlock fills buf with consecutive uniform samples on [-1, 1].
func (s *RealtimeSource) NextBlock(buf []float64) {
	for i := range buf {
		buf[i] = s.Next()
	}
}

// Generator produces offline white-noise buffers. Unlike RealtimeSource it
// makes no reproducibility guarantee: any uniform generator producing
// statistically independent samples satisfies the offline contract.
type Generator struct {
	rng *rand.Rand
}

// NewGenerator creates an offline noise generator seeded from a fresh
// entropy source.
func NewGenerator() *Generator {
	return &Generator{rng: rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64()))}
}

// NewGeneratorSeeded creates an offline noise generator with a fixed seed.
// Offline reproducibility is not required by the core, but a fixed seed is
// useful for parallel/sequential parity testing (spec S6).
func NewGeneratorSeeded(seed1, seed2 uint64) *Generator {
	return &Generator{rng: rand.New(rand.NewPCG(seed1, seed2))}
}

// WhiteNoise returns samples uniformly distributed on [-1, 1].
func (g *Generator) WhiteNoise(samples int) ([]float64, error) {
	if samples <= 0 {
		return nil, fmt.Errorf("noise: samples must be > 0: %d", samples)
	}
	out := make([]float64, samples)
	for i := range out {
		out[i] = g.rng.Float64()*2 - 1
	}
	return out, nil
}

// Fill writes uniform [-1, 1] samples into an existing buffer, avoiding
// an allocation when the caller already owns scratch space.
func (g *Generator) Fill(buf []float64) {
	for i := range buf {
		buf[i] = g.rng.Float64()*2 - 1
	}
}
