package geom

import (
	"math"
	"testing"
)

func TestNormalizedZeroIsZero(t *testing.T) {
	got := Zero.Normalized()
	if got != Zero {
		t.Fatalf("Zero.Normalized() = %v, want zero", got)
	}
	if math.IsNaN(got.X) || math.IsNaN(got.Y) || math.IsNaN(got.Z) {
		t.Fatalf("normalize produced NaN")
	}
}

func TestNormalizedUnitLength(t *testing.T) {
	for _, v := range []Vec3{V(3, 0, 4), V(-1, 2, -2), V(0, 0, 1e-3)} {
		n := v.Normalized()
		if math.Abs(n.Len()-1) > 1e-12 {
			t.Errorf("len(%v.Normalized()) = %f, want 1", v, n.Len())
		}
	}
}

func TestLerp(t *testing.T) {
	a := V(0, 0, 0)
	b := V(10, -4, 2)
	tests := []struct {
		t    float64
		want Vec3
	}{
		{0, a},
		{1, b},
		{0.5, V(5, -2, 1)},
	}
	for _, tt := range tests {
		if got := Lerp(a, b, tt.t); got != tt.want {
			t.Errorf("Lerp(t=%v) = %v, want %v", tt.t, got, tt.want)
		}
	}
}

func TestClamp01(t *testing.T) {
	tests := map[float64]float64{-1: 0, 0: 0, 0.25: 0.25, 1: 1, 6: 1}
	for in, want := range tests {
		if got := Clamp01(in); got != want {
			t.Errorf("Clamp01(%v) = %v, want %v", in, got, want)
		}
	}
}

func TestDist(t *testing.T) {
	if d := Dist(V(1, 1, 1), V(1, 4, 5)); d != 5 {
		t.Fatalf("Dist = %v, want 5", d)
	}
}
