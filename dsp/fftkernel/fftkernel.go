// Package fftkernel provides the core's radix-2 FFT/IFFT, operating in
// place on separate real/imaginary arrays of power-of-two length. It is the
// one place in the core that performs a frequency-domain transform; every
// other component (the spectral mask library excepted, which only produces
// gain curves) goes through this package.
//
// The actual butterfly computation is delegated to algo-fft's
// decimation-in-time plan, the same library the teacher's own dsp/conv
// package uses for its overlap-add/overlap-save convolvers. A Plan here is
// reentrant and allocates no new memory once constructed.
package fftkernel

import (
	"fmt"
	"math/bits"

	algofft "github.com/MeKo-Christian/algo-fft"
)

// Plan is a reusable radix-2 complex FFT/IFFT for a fixed power-of-two size.
type Plan struct {
	n      int
	plan   *algofft.Plan[complex128]
	scratch []complex128
}

// NewPlan creates a Plan for transforms of length n. n must be a power of
// two and at least 2.
func NewPlan(n int) (*Plan, error) {
	if n < 2 || bits.OnesCount(uint(n)) != 1 {
		return nil, fmt.Errorf("fftkernel: size must be a power of two >= 2: %d", n)
	}
	p, err := algofft.NewPlan64(n)
	if err != nil {
		return nil, fmt.Errorf("fftkernel: failed to create plan: %w", err)
	}
	return &Plan{n: n, plan: p, scratch: make([]complex128, n)}, nil
}

// Size returns the transform length.
func (p *Plan) Size() int { return p.n }

// Forward computes the in-place forward FFT of (re, im), both of length N.
func (p *Plan) Forward(re, im []float64) error {
	if len(re) != p.n || len(im) != p.n {
		return fmt.Errorf("fftkernel: Forward expects length %d, got re=%d im=%d", p.n, len(re), len(im))
	}

	for i := 0; i < p.n; i++ {
		p.scratch[i] = complex(re[i], im[i])
	}

	if err := p.plan.Forward(p.scratch, p.scratch); err != nil {
		return fmt.Errorf("fftkernel: forward transform failed: %w", err)
	}

	for i := 0; i < p.n; i++ {
		re[i] = real(p.scratch[i])
		im[i] = imag(p.scratch[i])
	}

	return nil
}

// Inverse computes the in-place inverse FFT of (re, im), both of length N.
//
// Per spec: conjugate imag, run the forward transform, conjugate imag again,
// and scale both arrays by 1/N. This is equivalent to a direct inverse DFT
// and lets the package share a single forward plan for both directions.
func (p *Plan) Inverse(re, im []float64) error {
	if len(re) != p.n || len(im) != p.n {
		return fmt.Errorf("fftkernel: Inverse expects length %d, got re=%d im=%d", p.n, len(re), len(im))
	}

	for i := 0; i < p.n; i++ {
		im[i] = -im[i]
	}

	if err := p.Forward(re, im); err != nil {
		return err
	}

	invN := 1 / float64(p.n)
	for i := 0; i < p.n; i++ {
		re[i] *= invN
		im[i] = -im[i] * invN
	}

	return nil
}

// ForwardComplex is the complex128-slice convenience form used by callers
// that already carry spectra as []complex128 (the offline bulk-FFT path).
func (p *Plan) ForwardComplex(buf []complex128) error {
	if len(buf) != p.n {
		return fmt.Errorf("fftkernel: ForwardComplex expects length %d, got %d", p.n, len(buf))
	}
	if err := p.plan.Forward(buf, buf); err != nil {
		return fmt.Errorf("fftkernel: forward transform failed: %w", err)
	}
	return nil
}

// InverseComplex is the complex128-slice convenience form used by callers
// that already carry spectra as []complex128.
func (p *Plan) InverseComplex(buf []complex128) error {
	if len(buf) != p.n {
		return fmt.Errorf("fftkernel: InverseComplex expects length %d, got %d", p.n, len(buf))
	}

	for i := range buf {
		buf[i] = complex(real(buf[i]), -imag(buf[i]))
	}

	if err := p.plan.Forward(buf, buf); err != nil {
		return fmt.Errorf("fftkernel: inverse transform failed: %w", err)
	}

	invN := 1 / float64(p.n)
	for i := range buf {
		buf[i] = complex(real(buf[i])*invN, -imag(buf[i])*invN)
	}

	return nil
}

// NextPowerOfTwo returns the smallest power of two >= n.
func NextPowerOfTwo(n int) int {
	if n <= 1 {
		return 1
	}
	return 1 << bits.Len(uint(n-1))
}
