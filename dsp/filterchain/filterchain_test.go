package filterchain

import (
	"math"
	"testing"

	"github.com/cwbudde/shapednoise/dsp/dsperr"
	"github.com/cwbudde/shapednoise/dsp/mask"
)

func TestAddReturnsSequentialIndices(t *testing.T) {
	c := New(48000, 2048)
	i0, err := c.Add(mask.Plateau)
	if err != nil {
		t.Fatal(err)
	}
	i1, err := c.Add(mask.Gaussian)
	if err != nil {
		t.Fatal(err)
	}
	if i0 != 0 || i1 != 1 {
		t.Fatalf("indices = %d, %d, want 0, 1", i0, i1)
	}
	if c.Len() != 2 {
		t.Fatalf("Len() = %d, want 2", c.Len())
	}
}

func TestRemoveShiftsLaterIndicesDown(t *testing.T) {
	c := New(48000, 2048)
	_, _ = c.Add(mask.Plateau)
	_, _ = c.Add(mask.Gaussian)
	second, _ := c.Add(mask.Parabolic)

	if err := c.Remove(0); err != nil {
		t.Fatal(err)
	}
	if c.Len() != 2 {
		t.Fatalf("Len() = %d, want 2", c.Len())
	}
	cfg, err := c.Config(1)
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Kind != mask.Parabolic {
		t.Fatalf("instance at index 1 after removal should be the original index %d entry", second)
	}
}

func TestRemoveInvalidIndexFails(t *testing.T) {
	c := New(48000, 2048)
	err := c.Remove(0)
	if !dsperr.Is(err, dsperr.BadIndex) {
		t.Fatalf("expected BadIndex, got %v", err)
	}
}

func TestSetParameterUnknownKeyFails(t *testing.T) {
	c := New(48000, 2048)
	idx, _ := c.Add(mask.Plateau)
	err := c.SetParameter(idx, "nonexistent", 1)
	if !dsperr.Is(err, dsperr.BadParameter) {
		t.Fatalf("expected BadParameter, got %v", err)
	}
}

func TestSetParameterWrongVariantFails(t *testing.T) {
	c := New(48000, 2048)
	idx, _ := c.Add(mask.Plateau)
	err := c.SetParameter(idx, "kurtosis", 2)
	if !dsperr.Is(err, dsperr.BadParameter) {
		t.Fatalf("expected BadParameter for kurtosis on a plateau instance, got %v", err)
	}
}

func TestSetParameterClampsOutOfRangeValue(t *testing.T) {
	c := New(48000, 2048)
	idx, _ := c.Add(mask.Gaussian)
	if err := c.SetParameter(idx, "kurtosis", 1000); err != nil {
		t.Fatal(err)
	}
	cfg, err := c.Config(idx)
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Kurtosis != mask.MaxKurtosis {
		t.Fatalf("Kurtosis = %v, want clamped to %v", cfg.Kurtosis, mask.MaxKurtosis)
	}
}

func TestSetEnabledExcludesFromComposite(t *testing.T) {
	c := New(48000, 2048)
	idx, _ := c.Add(mask.Plateau)

	enabledComposite := c.Mask()

	if err := c.SetEnabled(idx, false); err != nil {
		t.Fatal(err)
	}
	disabledComposite := c.Mask()

	for i := range disabledComposite {
		if disabledComposite[i] != 1 {
			t.Fatalf("disabled composite[%d] = %v, want 1 (unity)", i, disabledComposite[i])
		}
	}

	allUnity := true
	for _, v := range enabledComposite {
		if math.Abs(v-1) > 1e-9 {
			allUnity = false
			break
		}
	}
	if allUnity {
		t.Fatal("expected enabled single-instance composite to differ from unity somewhere")
	}
}

func TestMoveReorders(t *testing.T) {
	c := New(48000, 2048)
	_, _ = c.Add(mask.Plateau)
	_, _ = c.Add(mask.Gaussian)

	if err := c.Move(0, 1); err != nil {
		t.Fatal(err)
	}
	cfg, err := c.Config(1)
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Kind != mask.Plateau {
		t.Fatalf("after Move(0,1), index 1 should hold the plateau instance, got %v", cfg.Kind)
	}
}

func TestEmptyChainCompositeIsUnity(t *testing.T) {
	c := New(48000, 1024)
	m := c.Mask()
	for i, v := range m {
		if v != 1 {
			t.Fatalf("composite[%d] = %v, want 1 for empty chain", i, v)
		}
	}
}
