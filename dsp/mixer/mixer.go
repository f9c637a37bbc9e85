// Package mixer implements the track manager and mix bus: an ordered set
// of tracks summed into a single signal, with an analyzer tap taken before
// the master-gain node so that visualization is invariant under the
// playback-volume control.
package mixer

import (
	"github.com/cwbudde/shapednoise/dsp/buffer"
	"github.com/cwbudde/shapednoise/dsp/core"
	"github.com/cwbudde/shapednoise/dsp/dsperr"
	"github.com/cwbudde/shapednoise/dsp/track"
)

// Mixer manages an ordered set of tracks and sums their outputs into a
// single mix bus. A track is identified by the id Add returned; ids come
// from a counter, so they are not reused and do not shift down when a
// track is removed.
type Mixer struct {
	sampleRate float64

	tracks []*track.Track
	ids    []int
	nextID int

	masterGain float64
	playing    bool

	scratch *buffer.Buffer

	// tap receives the pre-master-gain mix each Render call, for the
	// real-time FFT analyzer.
	tap func(mix []float64)
}

// New creates an empty Mixer at the given sample rate, with unity master
// gain.
func New(sampleRate float64) *Mixer {
	return &Mixer{sampleRate: sampleRate, masterGain: 1, scratch: buffer.New(0)}
}

// SetAnalyzerTap installs a callback invoked with the pre-master-gain mix
// buffer on every Render call. Pass nil to remove it.
func (m *Mixer) SetAnalyzerTap(tap func(mix []float64)) {
	m.tap = tap
}

// Add creates a new track, appends it to the managed set, and returns its
// id. If the mixer is currently playing, the new track is started
// immediately (soft-joining a running mix) unless it is later muted by the
// caller.
func (m *Mixer) Add() (int, error) {
	tr, err := track.New(m.sampleRate, int64(m.nextID)+1)
	if err != nil {
		return 0, err
	}

	id := m.nextID
	m.nextID++

	m.tracks = append(m.tracks, tr)
	m.ids = append(m.ids, id)

	if m.playing {
		tr.Start()
	}

	return id, nil
}

// Remove deletes the track with the given id.
func (m *Mixer) Remove(id int) error {
	idx, err := m.indexOf(id)
	if err != nil {
		return err
	}
	m.tracks = append(m.tracks[:idx], m.tracks[idx+1:]...)
	m.ids = append(m.ids[:idx], m.ids[idx+1:]...)
	return nil
}

// Track returns the track with the given id, for direct parameter access
// (gain, mute, filter chain).
func (m *Mixer) Track(id int) (*track.Track, error) {
	idx, err := m.indexOf(id)
	if err != nil {
		return nil, err
	}
	return m.tracks[idx], nil
}

// StartAll starts every managed track and marks the mixer as playing, so
// subsequently added tracks soft-join automatically.
func (m *Mixer) StartAll() {
	m.playing = true
	for _, tr := range m.tracks {
		tr.Start()
	}
}

// StopAll stops every managed track and marks the mixer as not playing.
func (m *Mixer) StopAll() {
	m.playing = false
	for _, tr := range m.tracks {
		tr.Stop()
	}
}

// SetMasterGain sets the linear master gain applied after the analyzer
// tap, between the mix bus and the sink.
func (m *Mixer) SetMasterGain(linear float64) {
	if linear < 0 {
		linear = 0
	}
	m.masterGain = linear
}

// Render sums every track's contribution in ascending id order into out,
// invokes the analyzer tap on the pre-master-gain mix, then applies master
// gain in place.
func (m *Mixer) Render(out []float64) error {
	core.Zero(out)

	m.scratch.Resize(len(out))
	scratch := m.scratch.Samples()

	for _, tr := range m.tracks {
		if !tr.Active() {
			continue
		}
		if err := tr.Render(scratch); err != nil {
			return err
		}
		for i := range out {
			out[i] += scratch[i]
		}
	}

	if m.tap != nil {
		m.tap(out)
	}

	for i := range out {
		out[i] *= m.masterGain
	}
	return nil
}

// ActiveTrackCount returns the number of tracks currently playing and
// unmuted, for performance reporting.
func (m *Mixer) ActiveTrackCount() int {
	n := 0
	for _, tr := range m.tracks {
		if tr.Active() {
			n++
		}
	}
	return n
}

func (m *Mixer) indexOf(id int) (int, error) {
	for i, existing := range m.ids {
		if existing == id {
			return i, nil
		}
	}
	return 0, dsperr.New(dsperr.BadIndex, "mixer", "unknown track id")
}
