// Package filterchain implements an ordered chain of spectral-shaper
// instances whose masks compose by pointwise multiplication into a single
// composite mask, plus an optional cascade of time-domain biquad
// pass-through collaborators applied before the STFT stage.
//
// The chain exposes only an input and output handle to its callers; the
// individual filter instances are addressed solely by index through Add,
// Remove, Move, SetEnabled, and SetParameter.
package filterchain

import (
	"github.com/cwbudde/shapednoise/dsp/dsperr"
	"github.com/cwbudde/shapednoise/dsp/filter/biquad"
	"github.com/cwbudde/shapednoise/dsp/mask"
)

// instance is one spectral-shaper slot in the chain.
type instance struct {
	config  mask.Config
	enabled bool
}

// Chain is an ordered list of spectral-shaper instances plus an optional
// time-domain biquad pre-filter, per the §4.4/§4.5 pass-through note.
type Chain struct {
	sampleRate float64
	size       int // FFT/mask length, matches stft.AnalysisSize or the offline chunk size

	instances []*instance
	composite []float64

	preFilter *biquad.Chain
}

// New creates an empty chain for a given sample rate and mask length.
func New(sampleRate float64, size int) *Chain {
	c := &Chain{sampleRate: sampleRate, size: size}
	c.recomputeComposite()
	return c
}

// SetPreFilter installs a time-domain biquad cascade applied before the
// STFT analysis window. Pass nil to remove it.
func (c *Chain) SetPreFilter(pre *biquad.Chain) {
	c.preFilter = pre
}

// ApplyPreFilter runs the biquad pass-through cascade over buf in place,
// a no-op if no pre-filter has been installed.
func (c *Chain) ApplyPreFilter(buf []float64) {
	if c.preFilter == nil {
		return
	}
	c.preFilter.ProcessBlock(buf)
}

// Len returns the number of spectral-shaper instances in the chain.
func (c *Chain) Len() int { return len(c.instances) }

// Composite returns the current composite mask: the pointwise product of
// every enabled instance's mask. Callers must not mutate the returned
// slice; Mask returns a fresh copy.
func (c *Chain) Composite() []float64 { return c.composite }

// Mask returns a copy of the current composite mask.
func (c *Chain) Mask() []float64 {
	cp := make([]float64, len(c.composite))
	copy(cp, c.composite)
	return cp
}

// CompositeAt recomputes the composite mask at an arbitrary length,
// independent of the chain's construction-time size. The offline renderer
// uses this to apply the same instance configs across bulk FFTs whose
// size varies with buffer/chunk length, without disturbing the size the
// chain otherwise reports through Composite/Mask.
func (c *Chain) CompositeAt(size int) ([]float64, error) {
	composite := make([]float64, size)
	for i := range composite {
		composite[i] = 1
	}

	for _, inst := range c.instances {
		if !inst.enabled {
			continue
		}
		m, err := mask.Generate(inst.config, size, c.sampleRate)
		if err != nil {
			return nil, err
		}
		for i := range composite {
			composite[i] *= m[i]
		}
	}

	return composite, nil
}

// Add appends a new instance of kind, using a default config, and returns
// its index.
func (c *Chain) Add(kind mask.Kind) (int, error) {
	return c.AddWithConfig(mask.DefaultConfig(kind))
}

// AddWithConfig appends a new instance with an explicit config and returns
// its index.
func (c *Chain) AddWithConfig(cfg mask.Config) (int, error) {
	c.instances = append(c.instances, &instance{config: cfg.Clamp(), enabled: true})
	if err := c.recomputeComposite(); err != nil {
		return 0, err
	}
	return len(c.instances) - 1, nil
}

// Remove deletes the instance at index, shifting later indices down.
func (c *Chain) Remove(index int) error {
	if err := c.checkIndex(index); err != nil {
		return err
	}
	c.instances = append(c.instances[:index], c.instances[index+1:]...)
	return c.recomputeComposite()
}

// Move relocates the instance at from to position to, shifting instances
// between the two positions.
func (c *Chain) Move(from, to int) error {
	if err := c.checkIndex(from); err != nil {
		return err
	}
	if err := c.checkIndex(to); err != nil {
		return err
	}
	inst := c.instances[from]
	c.instances = append(c.instances[:from], c.instances[from+1:]...)
	head := append([]*instance{}, c.instances[:to]...)
	head = append(head, inst)
	c.instances = append(head, c.instances[to:]...)
	return c.recomputeComposite()
}

// SetEnabled toggles whether the instance at index contributes to the
// composite mask. Disabled instances are full bypass.
func (c *Chain) SetEnabled(index int, enabled bool) error {
	if err := c.checkIndex(index); err != nil {
		return err
	}
	c.instances[index].enabled = enabled
	return c.recomputeComposite()
}

// Config returns a copy of the instance's current (possibly clamped)
// configuration, for read-back after SetParameter.
func (c *Chain) Config(index int) (mask.Config, error) {
	if err := c.checkIndex(index); err != nil {
		return mask.Config{}, err
	}
	return c.instances[index].config, nil
}

// SetParameter clamps value to the instance's variant-specific range and
// recomputes that instance's mask plus the composite. Unknown parameter
// names for the instance's variant fail with dsperr.BadParameter.
func (c *Chain) SetParameter(index int, key string, value float64) error {
	if err := c.checkIndex(index); err != nil {
		return err
	}

	inst := c.instances[index]
	cfg := inst.config

	switch key {
	case "center_freq":
		cfg.CenterFreq = value
	case "width":
		cfg.Width = value
	case "gain_db":
		cfg.GainDB = value
	case "flat_width":
		if cfg.Kind != mask.Plateau {
			return dsperr.New(dsperr.BadParameter, "filterchain.SetParameter", "flat_width is only valid for plateau instances")
		}
		cfg.FlatWidth = value
	case "skew":
		if cfg.Kind != mask.Gaussian && cfg.Kind != mask.Parabolic {
			return dsperr.New(dsperr.BadParameter, "filterchain.SetParameter", "skew is only valid for gaussian/parabolic instances")
		}
		cfg.Skew = value
	case "kurtosis":
		if cfg.Kind != mask.Gaussian {
			return dsperr.New(dsperr.BadParameter, "filterchain.SetParameter", "kurtosis is only valid for gaussian instances")
		}
		cfg.Kurtosis = value
	case "flatness":
		if cfg.Kind != mask.Parabolic {
			return dsperr.New(dsperr.BadParameter, "filterchain.SetParameter", "flatness is only valid for parabolic instances")
		}
		cfg.Flatness = value
	default:
		return dsperr.New(dsperr.BadParameter, "filterchain.SetParameter", "unknown parameter: "+key)
	}

	inst.config = cfg.Clamp()
	return c.recomputeComposite()
}

func (c *Chain) checkIndex(index int) error {
	if index < 0 || index >= len(c.instances) {
		return dsperr.New(dsperr.BadIndex, "filterchain", "index out of range")
	}
	return nil
}

// recomputeComposite rebuilds the composite mask as the pointwise product
// of every enabled instance's mask. Disabled instances are skipped
// entirely rather than multiplied by a unity placeholder.
func (c *Chain) recomputeComposite() error {
	composite := make([]float64, c.size)
	for i := range composite {
		composite[i] = 1
	}

	for _, inst := range c.instances {
		if !inst.enabled {
			continue
		}
		m, err := mask.Generate(inst.config, c.size, c.sampleRate)
		if err != nil {
			return err
		}
		for i := range composite {
			composite[i] *= m[i]
		}
	}

	c.composite = composite
	return nil
}
