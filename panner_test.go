package sfzcore

import (
	"math"
	"testing"
)

func TestPanGainsCenterIsEqualPower(t *testing.T) {
	left, right := panGains(0, 0, 0)
	if math.Abs(left-right) > 1e-9 {
		t.Errorf("expected equal L/R gain at center pan, got left=%f right=%f", left, right)
	}
	// equal-power law: L^2 + R^2 == 1
	if math.Abs(left*left+right*right-1) > 1e-9 {
		t.Errorf("expected equal-power sum of 1, got %f", left*left+right*right)
	}
}

func TestPanGainsHardLeftAndRight(t *testing.T) {
	left, right := panGains(-1, 0, 0)
	if right > 0.01 {
		t.Errorf("expected near-zero right gain at hard left pan, got %f", right)
	}
	if left < 0.99 {
		t.Errorf("expected near-full left gain at hard left pan, got %f", left)
	}

	left, right = panGains(1, 0, 0)
	if left > 0.01 {
		t.Errorf("expected near-zero left gain at hard right pan, got %f", left)
	}
	if right < 0.99 {
		t.Errorf("expected near-full right gain at hard right pan, got %f", right)
	}
}

func TestPanGainsClampsOutOfRangeInputs(t *testing.T) {
	left, right := panGains(5, 0, 0)
	leftClamped, rightClamped := panGains(1, 0, 0)
	if math.Abs(left-leftClamped) > 1e-9 || math.Abs(right-rightClamped) > 1e-9 {
		t.Error("expected out-of-range pan to clamp to 1")
	}
}

func TestXfadeGainEndpoints(t *testing.T) {
	if g := xfadeGain(0, 0, 10, XfadeGain, true); g != 0 {
		t.Errorf("expected rising crossfade gain 0 at lo, got %f", g)
	}
	if g := xfadeGain(10, 0, 10, XfadeGain, true); g != 1 {
		t.Errorf("expected rising crossfade gain 1 at hi, got %f", g)
	}
	if g := xfadeGain(0, 0, 10, XfadeGain, false); g != 1 {
		t.Errorf("expected falling crossfade gain 1 at lo, got %f", g)
	}
}

func TestXfadeGainZeroWidthRangeIsAlwaysOne(t *testing.T) {
	if g := xfadeGain(5, 10, 10, XfadeGain, true); g != 1 {
		t.Errorf("expected degenerate range to return gain 1, got %f", g)
	}
}

func TestXfadeGainPowerCurveBendsAboveLinear(t *testing.T) {
	linear := xfadeGain(5, 0, 10, XfadeGain, true)
	power := xfadeGain(5, 0, 10, XfadePower, true)
	if power <= linear {
		t.Errorf("expected power curve at midpoint to exceed linear, power=%f linear=%f", power, linear)
	}
}

func TestParseXfadeCurve(t *testing.T) {
	if parseXfadeCurve("power") != XfadePower {
		t.Error("expected 'power' to parse as XfadePower")
	}
	if parseXfadeCurve("gain") != XfadeGain {
		t.Error("expected 'gain' to parse as XfadeGain")
	}
	if parseXfadeCurve("") != XfadeGain {
		t.Error("expected empty string to default to XfadeGain")
	}
}

func TestClamp(t *testing.T) {
	if clamp(5, 0, 1) != 1 {
		t.Error("expected clamp to cap at hi")
	}
	if clamp(-5, 0, 1) != 0 {
		t.Error("expected clamp to floor at lo")
	}
	if clamp(0.5, 0, 1) != 0.5 {
		t.Error("expected clamp to pass through in-range values")
	}
}
