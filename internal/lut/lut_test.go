package lut

import (
	"math"
	"testing"
)

func TestSigmoidLookup(t *testing.T) {
	s := DefaultTables().Sigmoid

	if got := s.Lookup(0); math.Abs(got-0.5) > 0.01 {
		t.Errorf("Lookup(0) = %v, want ~0.5", got)
	}
	if got := s.Lookup(-4); got > 0.05 {
		t.Errorf("Lookup(-4) = %v, want < 0.05", got)
	}
	if got := s.Lookup(4); got < 0.95 {
		t.Errorf("Lookup(4) = %v, want > 0.95", got)
	}
	if s.Lookup(-10) != s.Lookup(-4) {
		t.Errorf("Lookup(-10) = %v, want boundary %v", s.Lookup(-10), s.Lookup(-4))
	}
	if s.Lookup(1e9) != s.Lookup(4) {
		t.Errorf("Lookup(1e9) = %v, want boundary %v", s.Lookup(1e9), s.Lookup(4))
	}
}

func TestSigmoidMonotone(t *testing.T) {
	s := DefaultTables().Sigmoid
	prev := s.Lookup(-6)
	for x := -6.0; x <= 6.0; x += 0.013 {
		got := s.Lookup(x)
		if got < prev {
			t.Fatalf("Lookup(%v) = %v decreased from %v", x, got, prev)
		}
		prev = got
	}
}

func TestSigmoidNonFiniteInput(t *testing.T) {
	s := DefaultTables().Sigmoid
	if got := s.Lookup(math.NaN()); got != s.Lookup(-4) {
		t.Errorf("Lookup(NaN) = %v, want lower boundary %v", got, s.Lookup(-4))
	}
	if got := s.Lookup(math.Inf(1)); got != s.Lookup(4) {
		t.Errorf("Lookup(+Inf) = %v, want upper boundary", got)
	}
	if got := s.Lookup(math.Inf(-1)); got != s.Lookup(-4) {
		t.Errorf("Lookup(-Inf) = %v, want lower boundary", got)
	}
}

func TestLogRatioLookup(t *testing.T) {
	l := DefaultTables().LogRatio

	tests := []struct {
		ratio, want, tol float64
	}{
		{1.0, 0, 0.01},
		{0.25, -1.386, 0.1},
		{4.0, 1.386, 0.1},
		{2.0, math.Ln2, 0.01},
		{0.01, -1.386, 0.1}, // clamps to the lower bound
		{100, 1.386, 0.1},   // clamps to the upper bound
	}
	for _, tt := range tests {
		if got := l.Lookup(tt.ratio); math.Abs(got-tt.want) > tt.tol {
			t.Errorf("Lookup(%v) = %v, want %v ±%v", tt.ratio, got, tt.want, tt.tol)
		}
	}
}

func TestDiscountGet(t *testing.T) {
	d := DefaultTables().Discount

	if d.Get(0) != 0 {
		t.Errorf("Get(0) = %v, want 0", d.Get(0))
	}
	if d.Get(d.Horizon()+1) != 0 {
		t.Errorf("Get(horizon+1) = %v, want 0", d.Get(d.Horizon()+1))
	}
	if d.Get(-3) != 0 {
		t.Errorf("Get(-3) = %v, want 0", d.Get(-3))
	}
	if math.Abs(d.Get(1)-0.95) > 1e-12 {
		t.Errorf("Get(1) = %v, want 0.95", d.Get(1))
	}
	if math.Abs(d.Get(2)-0.95*0.95) > 1e-12 {
		t.Errorf("Get(2) = %v, want 0.9025", d.Get(2))
	}
	if d.Horizon() != 16 {
		t.Errorf("Horizon() = %d, want 16", d.Horizon())
	}
}

func TestDiscountCustomRate(t *testing.T) {
	d := NewDiscount(0.9, 8)
	if math.Abs(d.Get(1)-0.9) > 0.01 || math.Abs(d.Get(2)-0.81) > 0.01 {
		t.Errorf("Get(1), Get(2) = %v, %v; want 0.9, 0.81", d.Get(1), d.Get(2))
	}
	if d.Get(9) != 0 {
		t.Errorf("Get(9) = %v, want 0", d.Get(9))
	}

	f := d.Factors()
	f[0] = 42
	if d.Get(1) == 42 {
		t.Error("Factors() exposed the internal slice")
	}
}

func TestDistanceKernel(t *testing.T) {
	k := DefaultTables().DistanceKernel

	if k.Get(0) != 1 {
		t.Errorf("Get(0) = %v, want 1", k.Get(0))
	}
	for d := 1; d <= k.MaxDistance(); d++ {
		if k.Get(d) >= k.Get(d-1) {
			t.Fatalf("Get(%d) = %v not below Get(%d) = %v", d, k.Get(d), d-1, k.Get(d-1))
		}
	}
	for _, d := range []int{21, 22, 1000, -1} {
		if k.Get(d) != 0 {
			t.Errorf("Get(%d) = %v, want 0", d, k.Get(d))
		}
	}
}

func TestDegenerateConstruction(t *testing.T) {
	s := NewSigmoid(-1, 1, 0)
	if got := s.Lookup(0); math.IsNaN(got) {
		t.Error("single-sample table returned NaN")
	}

	flat := NewSigmoid(2, 2, 16)
	if got := flat.Lookup(-100); math.IsNaN(got) || math.Abs(got-1/(1+math.Exp(-2))) > 1e-9 {
		t.Errorf("zero-width table Lookup = %v", got)
	}

	if k := NewDistanceKernel(-5, 0.2); k.Get(0) != 1 || k.Get(1) != 0 {
		t.Errorf("negative max distance kernel: Get(0)=%v Get(1)=%v", k.Get(0), k.Get(1))
	}

	if d := NewDiscount(0.5, -1); d.Horizon() != 0 || d.Get(1) != 0 {
		t.Error("negative horizon should build an empty discount table")
	}

	l := NewLogRatio(0, 2, 8)
	if got := l.Lookup(0); math.IsInf(got, 0) || math.IsNaN(got) {
		t.Errorf("log of zero ratio = %v, want finite", got)
	}
}
