package sfzcore

import (
	"math"
	"testing"
)

func TestCurveLinearIsIdentity(t *testing.T) {
	ct := NewCurveTable()
	for _, v := range []float64{0, 0.25, 0.5, 0.75, 1.0} {
		got := ct.Apply(CurveLinear, v)
		if math.Abs(got-v) > 0.01 {
			t.Errorf("linear curve at %f: got %f", v, got)
		}
	}
}

func TestCurveConcaveAndConvexBendAwayFromLinear(t *testing.T) {
	ct := NewCurveTable()
	mid := 0.5
	concave := ct.Apply(CurveConcave, mid)
	convex := ct.Apply(CurveConvex, mid)

	if concave >= mid {
		t.Errorf("expected concave(0.5) below 0.5, got %f", concave)
	}
	if convex <= mid {
		t.Errorf("expected convex(0.5) above 0.5, got %f", convex)
	}
}

func TestCurveApplyClampsInput(t *testing.T) {
	ct := NewCurveTable()
	if got := ct.Apply(CurveLinear, -1); got != 0 {
		t.Errorf("expected clamp to 0 for negative input, got %f", got)
	}
	if got := ct.Apply(CurveLinear, 2); got != 1 {
		t.Errorf("expected clamp to 1 for >1 input, got %f", got)
	}
}

func TestCurveApplyOutOfRangeIndexFallsBackToLinear(t *testing.T) {
	ct := NewCurveTable()
	got := ct.Apply(999, 0.5)
	want := ct.Apply(CurveLinear, 0.5)
	if got != want {
		t.Errorf("expected out-of-range curve index to fall back to linear, got %f want %f", got, want)
	}
}

func TestSetCurveInstallsCustomTable(t *testing.T) {
	ct := NewCurveTable()
	var pts [curvePoints]float64
	for i := range pts {
		pts[i] = 1.0
	}
	ct.SetCurve(5, pts)

	if got := ct.Apply(5, 0.0); got != 1.0 {
		t.Errorf("expected custom curve to return 1.0 everywhere, got %f", got)
	}
}
