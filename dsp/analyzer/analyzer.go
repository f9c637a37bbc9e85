// Package analyzer implements the real-time FFT analyzer: a windowed
// frame buffer that produces smoothed magnitude spectra in dB for display,
// independent of the signal path's own STFT filtering.
package analyzer

import (
	"fmt"
	"math"
	"sync"

	"github.com/cwbudde/shapednoise/dsp/dbconv"
	"github.com/cwbudde/shapednoise/dsp/fftkernel"
	"github.com/cwbudde/shapednoise/dsp/spectrum"
	"github.com/cwbudde/shapednoise/dsp/window"
)

// ValidSizes enumerates the allowed analysis frame sizes N_a.
var ValidSizes = []int{512, 1024, 2048, 4096, 8192}

// Scale selects the frequency mapping used by GetDisplayData.
type Scale int

const (
	// ScaleLog maps pixel columns logarithmically across [20, 20000] Hz.
	ScaleLog Scale = iota
	// ScaleLinear maps pixel columns linearly across [0, Nyquist] Hz.
	ScaleLinear
)

const (
	logMinFreq = 20.0
	logMaxFreq = 20000.0
)

func isValidSize(n int) bool {
	for _, v := range ValidSizes {
		if v == n {
			return true
		}
	}
	return false
}

// Analyzer owns a windowed frame buffer of configurable size, producing
// smoothed magnitude spectra in dB. Safe for concurrent reconfiguration
// and reads: all mutable state is guarded by a single mutex.
type Analyzer struct {
	mu sync.Mutex

	sampleRate float64
	size       int
	windowType window.Type

	plan *fftkernel.Plan
	win  []float64

	// Most recent 'size' input samples in time order, shifted on each Feed.
	history []float64
	filled  int

	smoothedDB []float64
	haveSmooth bool

	tau          float64 // exponential smoothing time constant, [0, 0.95]
	movingWindow int     // N-frame moving average window, [1, 10]
	history2D    [][]float64
	historyPos   int

	scale Scale
}

// New creates an Analyzer at sampleRate with initial frame size n (must be
// one of ValidSizes) and the given display window type (metadata only —
// it never changes the analyzer's own internally consistent window).
func New(sampleRate float64, n int, windowType window.Type) (*Analyzer, error) {
	if sampleRate <= 0 {
		return nil, fmt.Errorf("analyzer: sampleRate must be > 0: %f", sampleRate)
	}
	if !isValidSize(n) {
		return nil, fmt.Errorf("analyzer: invalid frame size %d, must be one of %v", n, ValidSizes)
	}

	a := &Analyzer{
		sampleRate:   sampleRate,
		windowType:   windowType,
		tau:          0,
		movingWindow: 1,
		scale:        ScaleLog,
	}
	if err := a.reinit(n); err != nil {
		return nil, err
	}
	return a, nil
}

func (a *Analyzer) reinit(n int) error {
	plan, err := fftkernel.NewPlan(n)
	if err != nil {
		return fmt.Errorf("analyzer: %w", err)
	}
	a.size = n
	a.plan = plan
	a.win = window.Generate(window.TypeHann, n)
	a.history = make([]float64, n)
	a.filled = 0
	a.smoothedDB = make([]float64, n/2+1)
	a.haveSmooth = false
	a.history2D = nil
	a.historyPos = 0
	return nil
}

// SetSize reconfigures the analysis frame size, resetting internal buffers
// and averaging state. Safe to call concurrently with Feed/GetDisplayData.
func (a *Analyzer) SetSize(n int) error {
	if !isValidSize(n) {
		return fmt.Errorf("analyzer: invalid frame size %d, must be one of %v", n, ValidSizes)
	}
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.reinit(n)
}

// Size returns the current analysis frame size N_a.
func (a *Analyzer) Size() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.size
}

// SetScale selects the frequency mapping used by GetDisplayData.
func (a *Analyzer) SetScale(s Scale) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.scale = s
}

// SetSmoothing configures exponential smoothing (tau in [0, 0.95], 0
// disables it) and an N-frame moving average (n in [1, 10], 1 disables
// it). Changing either resets the corresponding averaging state.
func (a *Analyzer) SetSmoothing(tau float64, movingAvgFrames int) error {
	if tau < 0 || tau > 0.95 {
		return fmt.Errorf("analyzer: tau must be in [0, 0.95]: %f", tau)
	}
	if movingAvgFrames < 1 || movingAvgFrames > 10 {
		return fmt.Errorf("analyzer: moving average frame count must be in [1, 10]: %d", movingAvgFrames)
	}

	a.mu.Lock()
	defer a.mu.Unlock()
	a.tau = tau
	a.haveSmooth = false
	a.movingWindow = movingAvgFrames
	a.history2D = nil
	a.historyPos = 0
	return nil
}

// Feed appends samples to the analyzer's rolling frame buffer and, once a
// full frame is available, computes a new smoothed magnitude spectrum.
func (a *Analyzer) Feed(samples []float64) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	// history always holds the most recent n samples in time order,
	// zero-padded at the head until enough samples have arrived.
	n := a.size
	if len(samples) >= n {
		copy(a.history, samples[len(samples)-n:])
		a.filled = n
	} else {
		copy(a.history, a.history[len(samples):])
		copy(a.history[n-len(samples):], samples)
		if a.filled < n {
			a.filled += len(samples)
			if a.filled > n {
				a.filled = n
			}
		}
	}

	if a.filled < n {
		return nil
	}

	re := make([]float64, n)
	im := make([]float64, n)
	for i := 0; i < n; i++ {
		re[i] = a.history[i] * a.win[i]
	}

	if err := a.plan.Forward(re, im); err != nil {
		return fmt.Errorf("analyzer: forward FFT failed: %w", err)
	}

	bins := n/2 + 1
	complexBins := make([]complex128, bins)
	for i := 0; i < bins; i++ {
		complexBins[i] = complex(re[i], im[i])
	}
	mag := spectrum.Magnitude(complexBins)

	db := make([]float64, bins)
	for i, m := range mag {
		db[i] = dbconv.LinearToDB(m / float64(n))
	}

	a.applySmoothing(db)
	return nil
}

func (a *Analyzer) applySmoothing(db []float64) {
	if a.tau > 0 && a.haveSmooth {
		for i := range db {
			a.smoothedDB[i] = a.tau*a.smoothedDB[i] + (1-a.tau)*db[i]
		}
	} else {
		copy(a.smoothedDB, db)
		a.haveSmooth = true
	}

	if a.movingWindow <= 1 {
		return
	}

	if a.history2D == nil {
		a.history2D = make([][]float64, a.movingWindow)
		for i := range a.history2D {
			a.history2D[i] = append([]float64(nil), a.smoothedDB...)
		}
		a.historyPos = 0
	}

	a.history2D[a.historyPos] = append([]float64(nil), a.smoothedDB...)
	a.historyPos = (a.historyPos + 1) % a.movingWindow

	avg := make([]float64, len(a.smoothedDB))
	for _, frame := range a.history2D {
		for i, v := range frame {
			avg[i] += v
		}
	}
	for i := range avg {
		avg[i] /= float64(a.movingWindow)
	}
	a.smoothedDB = avg
}

// GetDisplayData returns one dB value per pixel column, mapping each
// column to a frequency via the configured scale. Clipping to a display
// range is the consumer's responsibility, not the analyzer's.
func (a *Analyzer) GetDisplayData(pixelWidth int) ([]float64, error) {
	if pixelWidth <= 0 {
		return nil, fmt.Errorf("analyzer: pixelWidth must be > 0: %d", pixelWidth)
	}

	a.mu.Lock()
	defer a.mu.Unlock()

	if !a.haveSmooth {
		return make([]float64, pixelWidth), nil
	}

	bins := len(a.smoothedDB)
	nyquist := a.sampleRate / 2
	binHz := nyquist / float64(bins-1)

	out := make([]float64, pixelWidth)
	for x := 0; x < pixelWidth; x++ {
		var freq float64
		if a.scale == ScaleLinear {
			freq = nyquist * float64(x) / float64(pixelWidth-1)
		} else {
			t := float64(x) / float64(pixelWidth-1)
			freq = logMinFreq * math.Pow(logMaxFreq/logMinFreq, t)
		}

		bin := freq / binHz
		out[x] = interpolateBin(a.smoothedDB, bin)
	}

	return out, nil
}

func interpolateBin(db []float64, bin float64) float64 {
	if bin <= 0 {
		return db[0]
	}
	last := len(db) - 1
	if bin >= float64(last) {
		return db[last]
	}
	lo := int(bin)
	frac := bin - float64(lo)
	return db[lo]*(1-frac) + db[lo+1]*frac
}
