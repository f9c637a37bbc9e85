// Package mask implements the spectral mask library: plateau, Gaussian, and
// parabolic frequency-domain gain curves used by the filter chain to shape
// noise in both the real-time STFT path and the offline bulk-FFT path.
package mask

import (
	"fmt"
	"math"

	"github.com/cwbudde/shapednoise/dsp/core"
	"github.com/cwbudde/shapednoise/dsp/dbconv"
)

// Kind identifies a spectral-shaper variant.
type Kind int

const (
	// Plateau is a flat-top band with raised-cosine rolloff skirts.
	Plateau Kind = iota
	// Gaussian is a skewed, kurtosis-shaped bell curve.
	Gaussian
	// Parabolic is a skewed power-law band with adjustable flatness.
	Parabolic
)

// String returns the name of the mask kind.
func (k Kind) String() string {
	switch k {
	case Plateau:
		return "plateau"
	case Gaussian:
		return "gaussian"
	case Parabolic:
		return "parabolic"
	default:
		return fmt.Sprintf("Kind(%d)", int(k))
	}
}

// Range bounds shared across all variants, per spec §3.
const (
	MinCenterFreq = 20.0
	MaxCenterFreq = 20000.0
	MinWidth      = 50.0
	MaxWidth      = 10000.0
	MinGainDB     = -40.0
	MaxGainDB     = 40.0

	MinFlatWidth = 10.0
	MaxFlatWidth = 2000.0

	MinSkew = -5.0
	MaxSkew = 5.0

	MinKurtosis = 0.2
	MaxKurtosis = 5.0

	MinFlatness = 0.5
	MaxFlatness = 3.0
)

// Config is a tagged-variant FilterConfig covering all three mask kinds.
// Fields not relevant to Kind are ignored by Generate.
type Config struct {
	Kind       Kind
	CenterFreq float64 // Hz, [20, 20000]
	Width      float64 // Hz, [50, 10000]
	GainDB     float64 // dB, [-40, 40]

	// Plateau-only.
	FlatWidth float64 // Hz, [10, 2000]; must not exceed Width.

	// Gaussian-only.
	Skew     float64 // [-5, 5]
	Kurtosis float64 // [0.2, 5]

	// Parabolic-only.
	// Skew is shared with Gaussian.
	Flatness float64 // [0.5, 3]
}

// Clamp returns a copy of cfg with every field clamped to its valid range.
// Clamping is silent per spec §4.5/§9 Open Question 4; callers observe the
// effect by reading back the clamped config.
func (cfg Config) Clamp() Config {
	out := cfg
	out.CenterFreq = core.Clamp(cfg.CenterFreq, MinCenterFreq, MaxCenterFreq)
	out.Width = core.Clamp(cfg.Width, MinWidth, MaxWidth)
	out.GainDB = core.Clamp(cfg.GainDB, MinGainDB, MaxGainDB)

	switch cfg.Kind {
	case Plateau:
		out.FlatWidth = core.Clamp(cfg.FlatWidth, MinFlatWidth, MaxFlatWidth)
		if out.FlatWidth > out.Width {
			out.FlatWidth = out.Width
		}
	case Gaussian:
		out.Skew = core.Clamp(cfg.Skew, MinSkew, MaxSkew)
		out.Kurtosis = core.Clamp(cfg.Kurtosis, MinKurtosis, MaxKurtosis)
	case Parabolic:
		out.Skew = core.Clamp(cfg.Skew, MinSkew, MaxSkew)
		out.Flatness = core.Clamp(cfg.Flatness, MinFlatness, MaxFlatness)
	}

	return out
}

// DefaultConfig returns a sensible default config for the given kind,
// used by the filter chain's add(type) operation.
func DefaultConfig(kind Kind) Config {
	switch kind {
	case Plateau:
		return Config{Kind: Plateau, CenterFreq: 1000, Width: 400, GainDB: 0, FlatWidth: 200}
	case Gaussian:
		return Config{Kind: Gaussian, CenterFreq: 1000, Width: 400, GainDB: 0, Skew: 0, Kurtosis: 1}
	case Parabolic:
		return Config{Kind: Parabolic, CenterFreq: 1000, Width: 400, GainDB: 0, Skew: 0, Flatness: 1}
	default:
		return Config{Kind: Plateau, CenterFreq: 1000, Width: 400, GainDB: 0, FlatWidth: 200}
	}
}

// binFreq maps bin index i in [0, n) to a signed frequency in Hz using the
// standard negative-frequency FFT bin layout: bins <= n/2 are non-negative
// frequencies, bins > n/2 fold back from -Nyquist.
func binFreq(i, n int, sampleRate float64) float64 {
	if i <= n/2 {
		return float64(i) * sampleRate / float64(n)
	}
	return float64(i-n) * sampleRate / float64(n)
}

// Generate computes a length-n mask at the given sample rate for cfg. The
// config is clamped first, so callers never need to validate ranges
// themselves. It fails for a non-positive n or sample rate and for an
// unknown Kind.
func Generate(cfg Config, n int, sampleRate float64) ([]float64, error) {
	if n <= 0 {
		return nil, fmt.Errorf("mask: n must be > 0: %d", n)
	}
	if sampleRate <= 0 {
		return nil, fmt.Errorf("mask: sampleRate must be > 0: %f", sampleRate)
	}

	cfg = cfg.Clamp()
	gain := dbconv.DBToLinear(cfg.GainDB)

	out := make([]float64, n)
	for i := 0; i < n; i++ {
		f := binFreq(i, n, sampleRate)
		var m float64
		switch cfg.Kind {
		case Plateau:
			m = plateauMagnitude(f, cfg)
		case Gaussian:
			m = gaussianMagnitude(f, cfg)
		case Parabolic:
			m = parabolicMagnitude(f, cfg)
		default:
			return nil, fmt.Errorf("mask: unknown kind %v", cfg.Kind)
		}
		out[i] = m * gain
	}

	return out, nil
}

func plateauMagnitude(f float64, cfg Config) float64 {
	d := math.Abs(f - cfg.CenterFreq)
	w := cfg.Width
	fw := cfg.FlatWidth

	if w <= fw {
		// Edge case: no rolloff region, pure plateau.
		if d < w/2 {
			return 1
		}
		return 0
	}

	switch {
	case d < fw/2:
		return 1
	case d <= w/2:
		return 0.5 * (1 + math.Cos(math.Pi*(d-fw/2)/((w-fw)/2)))
	default:
		return 0
	}
}

// erf5 is the Abramowitz-Stegun 5-term rational approximation to the error
// function (formula 7.1.26), accurate to ~1.5e-7. Used instead of math.Erf
// so the real-time and offline paths share one explicit, auditable
// implementation rather than depending on the standard library's internal
// algorithm (spec §9 Open Question 3 fixes the erf formulation).
func erf5(x float64) float64 {
	sign := 1.0
	if x < 0 {
		sign = -1
		x = -x
	}

	const (
		a1 = 0.254829592
		a2 = -0.284496736
		a3 = 1.421413741
		a4 = -1.453152027
		a5 = 1.061405429
		p  = 0.3275911
	)

	t := 1 / (1 + p*x)
	poly := ((((a5*t+a4)*t+a3)*t+a2)*t + a1) * t
	y := 1 - poly*math.Exp(-x*x)

	return sign * y
}

func gaussianMagnitude(f float64, cfg Config) float64 {
	const eps = 1e-10
	z := (f - cfg.CenterFreq) / (cfg.Width + eps)

	m := math.Exp(-math.Pow(z*z, cfg.Kurtosis) / 2)

	skewFactor := math.Max(0, 1+erf5(cfg.Skew*z/math.Sqrt2))

	return m * skewFactor
}

func parabolicMagnitude(f float64, cfg Config) float64 {
	d := math.Abs(f - cfg.CenterFreq)
	n := d / cfg.Width
	if n > 1 {
		return 0
	}

	if cfg.Skew == 0 {
		return 1 - math.Pow(n, 2/cfg.Flatness)
	}

	s := 1 + math.Abs(cfg.Skew)/5
	sameSign := (cfg.Skew > 0) == (f-cfg.CenterFreq > 0)
	if sameSign {
		return 1 - math.Pow(n, 2*s/cfg.Flatness)
	}
	return 1 - math.Pow(n, 2/(cfg.Flatness*s))
}
