package postprocess

import (
	"math"
	"testing"
)

func TestEnvelopeUnityInMiddle(t *testing.T) {
	cfg := FadeConfig{FadeInSamples: 100, FadeOutSamples: 100, PowerIn: 1, PowerOut: 1}
	v := Envelope(cfg, 500, 1000)
	if math.Abs(v-1) > 1e-9 {
		t.Fatalf("Envelope in middle = %v, want 1", v)
	}
}

func TestEnvelopeZeroAtStartAndEnd(t *testing.T) {
	cfg := FadeConfig{FadeInSamples: 100, FadeOutSamples: 100, PowerIn: 1, PowerOut: 1}
	if v := Envelope(cfg, 0, 1000); math.Abs(v) > 1e-9 {
		t.Fatalf("Envelope(0) = %v, want 0", v)
	}
	if v := Envelope(cfg, 999, 1000); math.Abs(v) > 1e-9 {
		t.Fatalf("Envelope(L-1) = %v, want 0", v)
	}
}

func TestEnvelopeRescalesWhenFadesOverlap(t *testing.T) {
	cfg := FadeConfig{FadeInSamples: 600, FadeOutSamples: 600, PowerIn: 1, PowerOut: 1}
	const length = 1000
	// fIn + fOut = 1200 >= length, so both scale down by (L-1)/(fIn+fOut).
	mid := Envelope(cfg, length/2, length)
	if mid < 0 || mid > 1 {
		t.Fatalf("Envelope at midpoint = %v, want within [0,1]", mid)
	}
}

func TestPeakNormalizeScalesToTarget(t *testing.T) {
	buf := []float64{0.1, -0.5, 0.25}
	PeakNormalize(buf, 1.0)
	m := 0.0
	for _, v := range buf {
		if math.Abs(v) > m {
			m = math.Abs(v)
		}
	}
	if math.Abs(m-1) > 1e-9 {
		t.Fatalf("peak after normalize = %v, want 1", m)
	}
}

func TestPeakNormalizeAllZeroPassesThrough(t *testing.T) {
	buf := []float64{0, 0, 0}
	PeakNormalize(buf, 1.0)
	for _, v := range buf {
		if v != 0 {
			t.Fatalf("expected all-zero buffer unchanged, got %v", v)
		}
	}
}

func TestSequenceInsertsSilenceBetweenClips(t *testing.T) {
	clips := [][]float64{{1, 1}, {2, 2}}
	cfg := SequenceConfig{SampleRate: 1000, SilenceMS: 2, NormalizeScope: ScopeGlobal, NormalizeTarget: 1}
	out, err := Sequence(clips, cfg)
	if err != nil {
		t.Fatal(err)
	}
	// silenceSamples = floor(2 * 1000 / 1000) = 2
	wantLen := 2 + 2 + 2
	if len(out) != wantLen {
		t.Fatalf("len(out) = %d, want %d", len(out), wantLen)
	}
}

func TestSequenceFinalSilenceAppended(t *testing.T) {
	clips := [][]float64{{1, 1}}
	cfg := SequenceConfig{SampleRate: 1000, SilenceMS: 5, FinalSilenceEnabled: true, NormalizeScope: ScopeGlobal, NormalizeTarget: 1}
	out, err := Sequence(clips, cfg)
	if err != nil {
		t.Fatal(err)
	}
	wantLen := 2 + 5
	if len(out) != wantLen {
		t.Fatalf("len(out) = %d, want %d", len(out), wantLen)
	}
}

func TestSequencePerClipNormalizesIndependently(t *testing.T) {
	clips := [][]float64{{0.1, -0.1}, {0.5, -0.5}}
	cfg := SequenceConfig{SampleRate: 1000, SilenceMS: 0, NormalizeScope: ScopePerClip, NormalizeTarget: 1}
	out, err := Sequence(clips, cfg)
	if err != nil {
		t.Fatal(err)
	}
	for _, v := range out {
		if math.Abs(math.Abs(v)-1) > 1e-9 {
			t.Fatalf("expected each per-clip-normalized sample to reach unity magnitude, got %v", v)
		}
	}
}

func TestSequenceRejectsNonPositiveSampleRate(t *testing.T) {
	if _, err := Sequence([][]float64{{1}}, SequenceConfig{SampleRate: 0}); err == nil {
		t.Fatal("expected error for SampleRate=0")
	}
}

func TestProcessOrderMatters(t *testing.T) {
	fade := FadeConfig{FadeInSamples: 2, FadeOutSamples: 2, PowerIn: 1, PowerOut: 1}

	// fade_then_normalize: fading first lowers the peak, so the final
	// normalize brings the buffer's peak back up to exactly the target.
	a := []float64{0.5, 0.5, 0.5, 0.5, 0.5}
	Process(a, fade, 1.0, FadeThenNormalize)
	peakA := 0.0
	for _, v := range a {
		if math.Abs(v) > peakA {
			peakA = math.Abs(v)
		}
	}
	if math.Abs(peakA-1) > 1e-9 {
		t.Fatalf("fade_then_normalize peak = %v, want 1", peakA)
	}

	// normalize_then_fade: normalize sets every sample to the target, but
	// the subsequent fade attenuates the edges below it.
	b := []float64{0.5, 0.5, 0.5, 0.5, 0.5}
	Process(b, fade, 1.0, NormalizeThenFade)
	if math.Abs(b[0]) > 1e-9 {
		t.Fatalf("normalize_then_fade sample 0 = %v, want faded to 0", b[0])
	}
	if math.Abs(b[2]-1) > 1e-9 {
		t.Fatalf("normalize_then_fade middle sample = %v, want unfaded 1", b[2])
	}
}
