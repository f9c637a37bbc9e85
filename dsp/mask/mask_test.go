package mask

import (
	"math"
	"testing"
)

func TestPlateauPeakIsUnityAtCenter(t *testing.T) {
	cfg := Config{Kind: Plateau, CenterFreq: 1000, Width: 400, GainDB: 0, FlatWidth: 200}
	m, err := Generate(cfg, 2048, 48000)
	if err != nil {
		t.Fatal(err)
	}

	bin := int(math.Round(1000 * 2048 / 48000))
	if math.Abs(m[bin]-1) > 1e-6 {
		t.Fatalf("plateau center magnitude = %v, want ~1", m[bin])
	}
}

func TestPlateauZeroOutsideWidth(t *testing.T) {
	cfg := Config{Kind: Plateau, CenterFreq: 1000, Width: 400, GainDB: 0, FlatWidth: 200}
	m, err := Generate(cfg, 2048, 48000)
	if err != nil {
		t.Fatal(err)
	}

	bin := int(math.Round(5000 * 2048 / 48000))
	if m[bin] > 1e-6 {
		t.Fatalf("plateau magnitude far from center = %v, want ~0", m[bin])
	}
}

func TestPlateauFlatWidthClampedToWidth(t *testing.T) {
	cfg := Config{Kind: Plateau, CenterFreq: 1000, Width: 400, GainDB: 0, FlatWidth: 5000}
	clamped := cfg.Clamp()
	if clamped.FlatWidth > clamped.Width {
		t.Fatalf("FlatWidth %v should not exceed Width %v", clamped.FlatWidth, clamped.Width)
	}
}

func TestGaussianPeakIsUnityAtCenterWhenUnskewed(t *testing.T) {
	cfg := Config{Kind: Gaussian, CenterFreq: 1000, Width: 400, GainDB: 0, Skew: 0, Kurtosis: 1}
	m, err := Generate(cfg, 2048, 48000)
	if err != nil {
		t.Fatal(err)
	}

	bin := int(math.Round(1000 * 2048 / 48000))
	if math.Abs(m[bin]-1) > 1e-3 {
		t.Fatalf("gaussian center magnitude = %v, want ~1", m[bin])
	}
}

func TestGaussianSymmetricWhenUnskewed(t *testing.T) {
	cfg := Config{Kind: Gaussian, CenterFreq: 1000, Width: 400, GainDB: 0, Skew: 0, Kurtosis: 1}
	const n = 4096
	const sr = 48000.0

	lo := plateauOrGaussianAt(t, cfg, n, sr, 800)
	hi := plateauOrGaussianAt(t, cfg, n, sr, 1200)

	if math.Abs(lo-hi) > 1e-2 {
		t.Fatalf("unskewed gaussian should be symmetric: %v vs %v", lo, hi)
	}
}

func plateauOrGaussianAt(t *testing.T, cfg Config, n int, sr, freq float64) float64 {
	t.Helper()
	m, err := Generate(cfg, n, sr)
	if err != nil {
		t.Fatal(err)
	}
	bin := int(math.Round(freq * float64(n) / sr))
	return m[bin]
}

func TestErf5MatchesKnownValues(t *testing.T) {
	cases := map[float64]float64{
		0:   0,
		1:   0.8427007929,
		-1:  -0.8427007929,
		2:   0.9953222650,
		0.5: 0.5204998778,
	}
	for x, want := range cases {
		got := erf5(x)
		if math.Abs(got-want) > 1e-6 {
			t.Fatalf("erf5(%v) = %v, want %v", x, got, want)
		}
	}
}

func TestParabolicUnityAtCenter(t *testing.T) {
	cfg := Config{Kind: Parabolic, CenterFreq: 1000, Width: 400, GainDB: 0, Flatness: 1}
	m, err := Generate(cfg, 2048, 48000)
	if err != nil {
		t.Fatal(err)
	}
	bin := int(math.Round(1000.0 * 2048 / 48000))
	if math.Abs(m[bin]-1) > 1e-3 {
		t.Fatalf("parabolic center magnitude = %v, want ~1", m[bin])
	}
}

func TestParabolicZeroAtEdge(t *testing.T) {
	cfg := Config{Kind: Parabolic, CenterFreq: 1000, Width: 400, GainDB: 0, Flatness: 1}
	m, err := Generate(cfg, 4096, 48000)
	if err != nil {
		t.Fatal(err)
	}
	bin := int(math.Round(1400 * 4096 / 48000))
	if math.Abs(m[bin]) > 0.05 {
		t.Fatalf("parabolic magnitude at edge = %v, want ~0", m[bin])
	}
}

func TestGainDBAppliesAsLinearScale(t *testing.T) {
	base := Config{Kind: Plateau, CenterFreq: 1000, Width: 400, GainDB: 0, FlatWidth: 200}
	boosted := base
	boosted.GainDB = 6

	m0, err := Generate(base, 2048, 48000)
	if err != nil {
		t.Fatal(err)
	}
	m6, err := Generate(boosted, 2048, 48000)
	if err != nil {
		t.Fatal(err)
	}

	bin := int(math.Round(1000 * 2048 / 48000))
	ratio := m6[bin] / m0[bin]
	want := math.Pow(10, 6.0/20)
	if math.Abs(ratio-want) > 1e-6 {
		t.Fatalf("gain ratio = %v, want %v", ratio, want)
	}
}

func TestGenerateRejectsInvalidSize(t *testing.T) {
	cfg := DefaultConfig(Plateau)
	if _, err := Generate(cfg, 0, 48000); err == nil {
		t.Fatal("expected error for n=0")
	}
	if _, err := Generate(cfg, 1024, 0); err == nil {
		t.Fatal("expected error for sampleRate=0")
	}
}

func TestClampOutOfRangeValues(t *testing.T) {
	cfg := Config{Kind: Gaussian, CenterFreq: -5, Width: 1e6, GainDB: 1000, Skew: -50, Kurtosis: 50}
	c := cfg.Clamp()
	if c.CenterFreq != MinCenterFreq {
		t.Fatalf("CenterFreq = %v, want %v", c.CenterFreq, MinCenterFreq)
	}
	if c.Width != MaxWidth {
		t.Fatalf("Width = %v, want %v", c.Width, MaxWidth)
	}
	if c.GainDB != MaxGainDB {
		t.Fatalf("GainDB = %v, want %v", c.GainDB, MaxGainDB)
	}
	if c.Skew != MinSkew {
		t.Fatalf("Skew = %v, want %v", c.Skew, MinSkew)
	}
	if c.Kurtosis != MaxKurtosis {
		t.Fatalf("Kurtosis = %v, want %v", c.Kurtosis, MaxKurtosis)
	}
}

func TestKindString(t *testing.T) {
	cases := map[Kind]string{Plateau: "plateau", Gaussian: "gaussian", Parabolic: "parabolic"}
	for k, want := range cases {
		if got := k.String(); got != want {
			t.Fatalf("Kind(%d).String() = %q, want %q", k, got, want)
		}
	}
}
