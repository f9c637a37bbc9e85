// Package engine implements the system boundary described by the
// external-interfaces surface: the audio host callback, a typed
// configuration command channel, and delivery to a single output sink.
// Everything downstream of this package (tracks, mixer, analyzer) is
// internal to the DSP core.
package engine

import (
	"fmt"
	"time"

	"github.com/cwbudde/shapednoise/dsp/analyzer"
	"github.com/cwbudde/shapednoise/dsp/core"
	"github.com/cwbudde/shapednoise/dsp/dsperr"
	"github.com/cwbudde/shapednoise/dsp/mixer"
	"github.com/cwbudde/shapednoise/dsp/window"
)

// ValidBlockSizes enumerates the host callback contract's allowed block
// lengths.
var ValidBlockSizes = []int{64, 128, 256}

func isValidBlockSize(n int) bool {
	for _, v := range ValidBlockSizes {
		if v == n {
			return true
		}
	}
	return false
}

// Sink receives the final mixed signal. It must never back-pressure the
// engine; real-time underruns manifest as zero-filled frames upstream of
// Sink, not as a blocked call into it.
type Sink interface {
	Write(samples []float64)
}

// Engine is the audio host callback surface: it owns the mixer and
// analyzer, discovers its sample rate at construction, and exposes a
// typed configuration channel for control-thread mutation.
type Engine struct {
	sampleRate float64
	blockSize  int

	mix      *mixer.Mixer
	analyzer *analyzer.Analyzer

	sink Sink

	initialized   bool
	analyzerScale Scale

	lastBlockLatency time.Duration

	commands chan Command
	replies  chan Reply
}

// Scale mirrors analyzer.Scale for the engine's own fft_info bookkeeping,
// set via SetAnalyzerScale.
type Scale = analyzer.Scale

// New creates an Engine at sampleRate for a fixed host block size. The
// analyzer defaults to 2048 frames with a Hann display window.
func New(sampleRate float64, blockSize int, sink Sink) (*Engine, error) {
	return NewFromConfig(core.ProcessorConfig{SampleRate: sampleRate, BlockSize: blockSize}, sink)
}

// NewFromConfig creates an Engine from a core.ProcessorConfig, the same
// sample-rate/block-size pair shared by every processing stage in this
// module. Unlike core.ApplyProcessorOptions's silent-ignore-on-invalid
// options, both fields are validated here since the host callback
// contract requires them, not just suggests sensible defaults.
func NewFromConfig(cfg core.ProcessorConfig, sink Sink) (*Engine, error) {
	if cfg.SampleRate <= 0 {
		return nil, fmt.Errorf("engine: sampleRate must be > 0: %f", cfg.SampleRate)
	}
	if !isValidBlockSize(cfg.BlockSize) {
		return nil, fmt.Errorf("engine: blockSize must be one of %v, got %d", ValidBlockSizes, cfg.BlockSize)
	}

	a, err := analyzer.New(cfg.SampleRate, 2048, window.TypeHann)
	if err != nil {
		return nil, fmt.Errorf("engine: %w", err)
	}

	m := mixer.New(cfg.SampleRate)
	m.SetAnalyzerTap(func(mixBuf []float64) {
		_ = a.Feed(mixBuf)
	})

	e := &Engine{
		sampleRate:  cfg.SampleRate,
		blockSize:   cfg.BlockSize,
		mix:         m,
		analyzer:    a,
		sink:        sink,
		initialized: true,
		commands:    make(chan Command, 64),
		replies:     make(chan Reply, 64),
	}
	return e, nil
}

// SampleRate returns the sample rate discovered at construction.
func (e *Engine) SampleRate() float64 { return e.sampleRate }

// BlockSize returns the fixed host callback block length.
func (e *Engine) BlockSize() int { return e.blockSize }

// Mixer exposes the underlying track manager / mix bus for control-thread
// operations (§4.5–§4.7).
func (e *Engine) Mixer() *mixer.Mixer { return e.mix }

// Analyzer exposes the real-time FFT analyzer for display reads.
func (e *Engine) Analyzer() *analyzer.Analyzer { return e.analyzer }

// SetAnalyzerScale records the analyzer's display scale so fft_info
// queries can report it without taking the analyzer's lock on the
// control thread's read path.
func (e *Engine) SetAnalyzerScale(s Scale) {
	e.analyzerScale = s
	e.analyzer.SetScale(s)
}

// Process is the audio host callback: it consumes the requested
// input_block length (ignored — this core is a generator, not an
// effect), renders one block of the current mix into output, delivers it
// to the sink, and returns a "continue" signal. Underruns surface as a
// zero-filled block rather than an error, per the sink-never-back-
// pressures contract.
func (e *Engine) Process(inputBlock, outputBlock []float64) (cont bool, err error) {
	if !e.initialized {
		return false, dsperr.New(dsperr.NotInitialized, "engine.Process", "engine not initialized")
	}
	if len(outputBlock) != e.blockSize {
		return false, fmt.Errorf("engine: outputBlock length %d does not match configured block size %d", len(outputBlock), e.blockSize)
	}

	start := time.Now()
	renderErr := e.mix.Render(outputBlock)
	e.lastBlockLatency = time.Since(start)

	if renderErr != nil {
		for i := range outputBlock {
			outputBlock[i] = 0
		}
		return true, fmt.Errorf("engine: render failed, emitting silence: %w", renderErr)
	}

	if e.sink != nil {
		e.sink.Write(outputBlock)
	}

	return true, nil
}
