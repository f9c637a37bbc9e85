package engine

import (
	"fmt"
	"time"

	"github.com/cwbudde/shapednoise/dsp/analyzer"
	"github.com/cwbudde/shapednoise/dsp/mask"
)

// CommandKind identifies a control-thread request on the configuration
// channel.
type CommandKind int

const (
	// CmdConfig reparameterizes a filter instance in place.
	CmdConfig CommandKind = iota
	// CmdGetPerformance requests the most recent performance snapshot.
	CmdGetPerformance
	// CmdGetFFTInfo requests the analyzer's current FFT configuration.
	CmdGetFFTInfo
)

// PartialConfig carries the subset of FilterConfig fields a caller wants
// to change; zero-value numeric fields are left untouched. Kind is
// informational only — switching variants requires removing and
// re-adding the instance, not a partial update.
type PartialConfig struct {
	Kind       mask.Kind
	CenterFreq float64
	Width      float64
	GainDB     float64

	// Plateau
	FlatWidth float64

	// Gaussian / Parabolic
	Skew     float64
	Kurtosis float64 // gaussian only
	Flatness float64 // parabolic only

	Enabled *bool // nil means "leave unchanged"
}

// FilterInstanceRef addresses a single filter instance within a track's
// chain.
type FilterInstanceRef struct {
	TrackID int
	Index   int
}

// Command is one request on the typed configuration channel.
type Command struct {
	Kind CommandKind

	// Populated for CmdConfig.
	Ref    FilterInstanceRef
	Config PartialConfig

	// Reply is delivered here; the caller must always drain it.
	Reply chan Reply
}

// Performance is the {performance} response body: a snapshot of the
// real-time path's health.
type Performance struct {
	SampleRate       float64
	BlockSize        int
	ActiveTracks     int
	LastBlockLatency time.Duration
}

// FFTInfo is the {fft_info} response body: the analyzer's current
// configuration.
type FFTInfo struct {
	AnalysisSize int
	SampleRate   float64
	Scale        string
}

// Reply is the typed response to a Command: exactly one of Initialized,
// Performance, FFTInfo, or Err is meaningful, selected by the matching
// request Kind (or Err, which can accompany any kind).
type Reply struct {
	Initialized bool
	Performance Performance
	FFTInfo     FFTInfo
	Err         error
}

// Dispatch executes a single Command synchronously against the engine's
// mixer/analyzer and sends the Reply. It is intended to be called from
// the control thread, never from the audio callback.
func (e *Engine) Dispatch(cmd Command) {
	if cmd.Reply == nil {
		return
	}

	switch cmd.Kind {
	case CmdConfig:
		cmd.Reply <- e.handleConfig(cmd.Ref, cmd.Config)
	case CmdGetPerformance:
		cmd.Reply <- Reply{Performance: e.performanceSnapshot()}
	case CmdGetFFTInfo:
		cmd.Reply <- Reply{FFTInfo: e.fftInfoSnapshot()}
	default:
		cmd.Reply <- Reply{Err: fmt.Errorf("engine: unknown command kind %d", cmd.Kind)}
	}
}

func (e *Engine) handleConfig(ref FilterInstanceRef, pc PartialConfig) Reply {
	tr, err := e.mix.Track(ref.TrackID)
	if err != nil {
		return Reply{Err: err}
	}

	cfg, err := tr.Chain.Config(ref.Index)
	if err != nil {
		return Reply{Err: err}
	}

	merged := mergeConfig(cfg, pc)
	if err := tr.Chain.SetParameter(ref.Index, "center_freq", merged.CenterFreq); err != nil {
		return Reply{Err: err}
	}
	if err := tr.Chain.SetParameter(ref.Index, "width", merged.Width); err != nil {
		return Reply{Err: err}
	}
	if err := tr.Chain.SetParameter(ref.Index, "gain_db", merged.GainDB); err != nil {
		return Reply{Err: err}
	}

	switch merged.Kind {
	case mask.Plateau:
		if err := tr.Chain.SetParameter(ref.Index, "flat_width", merged.FlatWidth); err != nil {
			return Reply{Err: err}
		}
	case mask.Gaussian:
		if err := tr.Chain.SetParameter(ref.Index, "skew", merged.Skew); err != nil {
			return Reply{Err: err}
		}
		if err := tr.Chain.SetParameter(ref.Index, "kurtosis", merged.Kurtosis); err != nil {
			return Reply{Err: err}
		}
	case mask.Parabolic:
		if err := tr.Chain.SetParameter(ref.Index, "skew", merged.Skew); err != nil {
			return Reply{Err: err}
		}
		if err := tr.Chain.SetParameter(ref.Index, "flatness", merged.Flatness); err != nil {
			return Reply{Err: err}
		}
	}

	if pc.Enabled != nil {
		if err := tr.Chain.SetEnabled(ref.Index, *pc.Enabled); err != nil {
			return Reply{Err: err}
		}
	}

	return Reply{Initialized: true}
}

// mergeConfig overlays non-zero PartialConfig fields onto the filter
// instance's current config. Kind is never changed by a partial update —
// switching variants requires removing and re-adding the instance.
func mergeConfig(cur mask.Config, pc PartialConfig) mask.Config {
	out := cur
	if pc.CenterFreq != 0 {
		out.CenterFreq = pc.CenterFreq
	}
	if pc.Width != 0 {
		out.Width = pc.Width
	}
	if pc.GainDB != 0 {
		out.GainDB = pc.GainDB
	}
	if pc.FlatWidth != 0 {
		out.FlatWidth = pc.FlatWidth
	}
	if pc.Skew != 0 {
		out.Skew = pc.Skew
	}
	if pc.Kurtosis != 0 {
		out.Kurtosis = pc.Kurtosis
	}
	if pc.Flatness != 0 {
		out.Flatness = pc.Flatness
	}
	return out
}

func (e *Engine) performanceSnapshot() Performance {
	return Performance{
		SampleRate:       e.sampleRate,
		BlockSize:        e.blockSize,
		ActiveTracks:     e.mix.ActiveTrackCount(),
		LastBlockLatency: e.lastBlockLatency,
	}
}

func (e *Engine) fftInfoSnapshot() FFTInfo {
	scaleName := "log"
	if e.analyzerScale == analyzer.ScaleLinear {
		scaleName = "linear"
	}
	return FFTInfo{
		AnalysisSize: e.analyzer.Size(),
		SampleRate:   e.sampleRate,
		Scale:        scaleName,
	}
}
