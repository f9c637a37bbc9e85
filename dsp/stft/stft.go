// Package stft implements the real-time STFT streaming processor: the
// block-size adapter that turns the host's small fixed-size callbacks into
// Hann-windowed, 75%-overlap analysis frames, applies a composite spectral
// mask in the frequency domain, and reconstructs a continuous signal via
// overlap-add.
//
// A Processor allocates everything it needs at construction. Process
// writes directly into caller-provided and pre-allocated scratch buffers
// and never allocates, blocks, or performs I/O, so it is safe to call from
// an audio-priority thread; mask updates from the control thread are
// applied by swapping an atomic pointer rather than mutating shared state
// in place.
package stft

import (
	"fmt"
	"sync/atomic"

	"github.com/cwbudde/shapednoise/dsp/fftkernel"
	"github.com/cwbudde/shapednoise/dsp/ringbuffer"
	"github.com/cwbudde/shapednoise/dsp/window"
)

// AnalysisSize is the internal analysis block length N.
const AnalysisSize = 4096

// HopSize is the hop H = N/4, realizing 75% overlap.
const HopSize = AnalysisSize / 4

// Processor converts between a host's small block size and the internal
// analysis size, applying a composite spectral mask each analysis hop.
type Processor struct {
	sampleRate float64

	inRing  *ringbuffer.Ring
	outRing *ringbuffer.Ring

	win        []float64
	windowNorm float64

	plan *fftkernel.Plan

	accumulator []float64 // length AnalysisSize, OLA accumulator

	frame   []float64 // scratch: raw peeked input frame, pre-window
	re, im  []float64 // scratch: spectrum
	mask    atomic.Pointer[[]float64]
	unityMask []float64
}

// New creates a Processor operating at sampleRate. The initial composite
// mask is unity (all-pass).
func New(sampleRate float64) (*Processor, error) {
	if sampleRate <= 0 {
		return nil, fmt.Errorf("stft: sampleRate must be > 0: %f", sampleRate)
	}

	plan, err := fftkernel.NewPlan(AnalysisSize)
	if err != nil {
		return nil, fmt.Errorf("stft: %w", err)
	}

	inRing, err := ringbuffer.New(2 * AnalysisSize)
	if err != nil {
		return nil, fmt.Errorf("stft: %w", err)
	}
	outRing, err := ringbuffer.New(2 * AnalysisSize)
	if err != nil {
		return nil, fmt.Errorf("stft: %w", err)
	}

	// Pre-roll N-H zeros of input and H zeros of output: every emitted
	// sample then carries its full four-window overlap, and the output
	// stream is the input delayed by exactly N samples.
	_ = inRing.Enqueue(make([]float64, AnalysisSize-HopSize))
	_ = outRing.Enqueue(make([]float64, HopSize))

	// The squared periodic Hann window sums to a constant under 75%
	// overlap; dividing by that sum per hop gives unity gain.
	win := window.Generate(window.TypeHann, AnalysisSize, window.WithPeriodic())
	sum := 0.0
	for _, w := range win {
		sum += w * w
	}
	windowNorm := sum / float64(HopSize)

	unity := make([]float64, AnalysisSize)
	for i := range unity {
		unity[i] = 1
	}

	p := &Processor{
		sampleRate:  sampleRate,
		inRing:      inRing,
		outRing:     outRing,
		win:         win,
		windowNorm:  windowNorm,
		plan:        plan,
		accumulator: make([]float64, AnalysisSize),
		frame:       make([]float64, AnalysisSize),
		re:          make([]float64, AnalysisSize),
		im:          make([]float64, AnalysisSize),
		unityMask:   unity,
	}
	p.mask.Store(&unity)

	return p, nil
}

// SampleRate returns the configured sample rate.
func (p *Processor) SampleRate() float64 { return p.sampleRate }

// LatencySamples returns the fixed processing latency, N samples.
func (p *Processor) LatencySamples() int { return AnalysisSize }

// SetMask installs a new composite spectral mask of length AnalysisSize.
// Safe to call from the control thread while Process runs concurrently on
// the audio thread: the swap is a single atomic pointer store.
func (p *Processor) SetMask(mask []float64) error {
	if len(mask) != AnalysisSize {
		return fmt.Errorf("stft: mask must have length %d, got %d", AnalysisSize, len(mask))
	}
	cp := make([]float64, AnalysisSize)
	copy(cp, mask)
	p.mask.Store(&cp)
	return nil
}

// ResetMask restores the unity (all-pass) mask.
func (p *Processor) ResetMask() {
	cp := make([]float64, AnalysisSize)
	copy(cp, p.unityMask)
	p.mask.Store(&cp)
}

// Process consumes in (a host-sized block) and writes available output
// samples into out, returning the number of samples written. Callers
// should size out the same as in; fewer than len(out) samples are written
// only when out is longer than the output queued so far.
//
// Process never allocates: the input ring is drained hop-by-hop into
// pre-allocated scratch (runHop), and output is dequeued straight into
// out via DequeueInto rather than through an intermediate allocated slice.
func (p *Processor) Process(in []float64, out []float64) (int, error) {
	if err := p.inRing.Enqueue(in); err != nil {
		return 0, fmt.Errorf("stft: input overrun: %w", err)
	}

	for p.inRing.Len() >= AnalysisSize {
		if err := p.runHop(); err != nil {
			return 0, err
		}
	}

	n := len(out)
	if avail := p.outRing.Len(); n > avail {
		n = avail
	}
	if n == 0 {
		return 0, nil
	}

	if err := p.outRing.DequeueInto(out[:n]); err != nil {
		return 0, fmt.Errorf("stft: output underrun: %w", err)
	}
	return n, nil
}

// runHop performs one analysis/synthesis iteration per the §4.4 protocol.
func (p *Processor) runHop() error {
	if err := p.inRing.PeekInto(p.frame); err != nil {
		return fmt.Errorf("stft: peek failed: %w", err)
	}

	for i := 0; i < AnalysisSize; i++ {
		p.re[i] = p.frame[i] * p.win[i]
		p.im[i] = 0
	}

	if err := p.plan.Forward(p.re, p.im); err != nil {
		return fmt.Errorf("stft: forward FFT failed: %w", err)
	}

	mask := *p.mask.Load()
	for i := 0; i < AnalysisSize; i++ {
		p.re[i] *= mask[i]
		p.im[i] *= mask[i]
	}

	if err := p.plan.Inverse(p.re, p.im); err != nil {
		return fmt.Errorf("stft: inverse FFT failed: %w", err)
	}

	invNorm := 1 / p.windowNorm
	for i := 0; i < AnalysisSize; i++ {
		p.accumulator[i] += p.re[i] * p.win[i] * invNorm
	}

	emit := p.accumulator[:HopSize]
	if err := p.outRing.Enqueue(emit); err != nil {
		return fmt.Errorf("stft: output overrun: %w", err)
	}

	copy(p.accumulator, p.accumulator[HopSize:])
	for i := AnalysisSize - HopSize; i < AnalysisSize; i++ {
		p.accumulator[i] = 0
	}

	if err := p.inRing.Advance(HopSize); err != nil {
		return fmt.Errorf("stft: input advance failed: %w", err)
	}

	return nil
}
