// Package track implements a single noise-generator channel: a noise
// source feeding a filter chain, followed by a gain stage with click-free
// ramping and mute support.
package track

import (
	"github.com/cwbudde/shapednoise/dsp/buffer"
	"github.com/cwbudde/shapednoise/dsp/core"
	"github.com/cwbudde/shapednoise/dsp/filterchain"
	"github.com/cwbudde/shapednoise/dsp/noise"
	"github.com/cwbudde/shapednoise/dsp/stft"
)

// RampDurationSeconds is the fixed gain-ramp time used by start/stop/
// set_gain/set_muted transitions, per §4.6.
const RampDurationSeconds = 0.010

// Track owns one noise source, one filter chain, a scalar gain, and the
// mute flag. Its contribution to the mix bus is zero exactly when it is
// muted or not playing.
type Track struct {
	sampleRate float64

	source *noise.RealtimeSource
	Chain  *filterchain.Chain
	stft   *stft.Processor

	gainTarget  float64 // the "gain_linear" set point, clamped to [0,1]
	gainCurrent float64 // instantaneous ramped gain
	rampStep    float64 // per-sample delta while ramping
	rampFrames  int     // remaining samples in the current ramp

	playing bool
	muted   bool

	rawScratch      *buffer.Buffer
	filteredScratch *buffer.Buffer
}

// New creates a Track at the given sample rate. The filter chain's mask
// length always matches the STFT processor's analysis size.
func New(sampleRate float64, seed int64) (*Track, error) {
	proc, err := stft.New(sampleRate)
	if err != nil {
		return nil, err
	}
	return &Track{
		sampleRate:      sampleRate,
		source:          noise.NewRealtimeSource(seed),
		Chain:           filterchain.New(sampleRate, stft.AnalysisSize),
		stft:            proc,
		gainTarget:      1,
		rawScratch:      buffer.New(0),
		filteredScratch: buffer.New(0),
	}, nil
}

func (t *Track) rampSamples() int {
	n := int(RampDurationSeconds * t.sampleRate)
	if n < 1 {
		n = 1
	}
	return n
}

// beginRamp sets up a linear ramp of gainCurrent toward target over the
// fixed ramp duration.
func (t *Track) beginRamp(target float64) {
	n := t.rampSamples()
	t.rampStep = (target - t.gainCurrent) / float64(n)
	t.rampFrames = n
	t.gainTarget = target
}

// Start resumes the noise source (if not muted) and ramps gain from 0 to
// gain_linear over the fixed ramp duration.
func (t *Track) Start() {
	t.playing = true
	if t.muted {
		return
	}
	t.gainCurrent = 0
	t.beginRamp(t.gainTarget)
}

// Stop ramps gain to 0 over the fixed ramp duration, then pauses the noise
// source. Idempotent.
func (t *Track) Stop() {
	if !t.playing {
		return
	}
	t.beginRamp(0)
	t.playing = false
}

// SetGain clamps g to [0, 1] and applies it at audio-thread time with a
// linear ramp while playing.
func (t *Track) SetGain(g float64) {
	switch {
	case g < 0:
		g = 0
	case g > 1:
		g = 1
	}
	t.gainTarget = g
	if t.playing && !t.muted {
		t.beginRamp(g)
	}
}

// SetMuted sets the mute flag. True ramps output to 0; false while playing
// ramps back to gain_linear.
func (t *Track) SetMuted(m bool) {
	if t.muted == m {
		return
	}
	t.muted = m
	if !t.playing {
		return
	}
	if m {
		t.beginRamp(0)
	} else {
		t.beginRamp(t.gainTarget)
	}
}

// Active reports whether the track currently contributes to the mix: it
// must be playing and unmuted.
func (t *Track) Active() bool { return t.playing && !t.muted }

// nextGain advances the ramp by one sample and returns the gain to apply.
func (t *Track) nextGain() float64 {
	if t.rampFrames <= 0 {
		return t.gainCurrent
	}
	t.gainCurrent += t.rampStep
	t.rampFrames--
	if t.rampFrames == 0 {
		t.gainCurrent = t.gainTarget
	}
	return t.gainCurrent
}

// Render fills out with noise → filter chain (biquad pre-filter, then
// STFT-applied composite spectral mask) → gain for len(out) samples,
// matching the §4.6 signal path.
func (t *Track) Render(out []float64) error {
	n := len(out)
	t.rawScratch.Resize(n)
	t.filteredScratch.Resize(n)
	raw := t.rawScratch.Samples()
	filtered := t.filteredScratch.Samples()
	core.Zero(filtered)

	t.source.NextBlock(raw)
	t.Chain.ApplyPreFilter(raw)

	if err := t.stft.SetMask(t.Chain.Composite()); err != nil {
		return err
	}
	if _, err := t.stft.Process(raw, filtered); err != nil {
		return err
	}

	for i := range out {
		g := t.nextGain()
		if !t.playing && t.rampFrames == 0 && t.gainCurrent == 0 {
			out[i] = 0
			continue
		}
		out[i] = filtered[i] * g
	}
	return nil
}
