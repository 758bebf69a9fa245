package geom

import (
	"math"
	"testing"
)

func matNear(a, b Mat4, eps float64) bool {
	for i := range a {
		if math.Abs(a[i]-b[i]) > eps {
			return false
		}
	}
	return true
}

func TestInvert_Identity(t *testing.T) {
	inv, ok := Identity().Invert()
	if !ok {
		t.Fatal("Expected identity to be invertible")
	}
	if !matNear(inv, Identity(), 1e-12) {
		t.Errorf("Expected identity inverse, got %v", inv)
	}
}

func TestInvert_RoundTrip(t *testing.T) {
	m := Mat4{
		0, -1, 0, 5,
		1, 0, 0, -3,
		0, 0, 1, 2,
		0, 0, 0, 1,
	}
	inv, ok := m.Invert()
	if !ok {
		t.Fatal("Expected matrix to be invertible")
	}
	if got := m.Mul(inv); !matNear(got, Identity(), 1e-9) {
		t.Errorf("Expected M*inv(M)=I, got %v", got)
	}
}

func TestInvert_Singular(t *testing.T) {
	var zero Mat4
	inv, ok := zero.Invert()
	if ok {
		t.Error("Expected singular matrix to report non-invertible")
	}
	if !matNear(inv, Identity(), 0) {
		t.Errorf("Expected identity fallback for singular input, got %v", inv)
	}
}

func TestApply_Translation(t *testing.T) {
	m := FromRotationTranslation([9]float64{1, 0, 0, 0, 1, 0, 0, 0, 1}, [3]float64{10, 20, 30})
	x, y, z := m.Apply(1, 2, 3)
	if x != 11 || y != 22 || z != 33 {
		t.Errorf("Expected (11,22,33), got (%v,%v,%v)", x, y, z)
	}
}

func TestTranspose(t *testing.T) {
	var m Mat4
	for i := range m {
		m[i] = float64(i)
	}
	tr := m.Transpose()
	if tr[1] != m[4] || tr[4] != m[1] || tr[11] != m[14] {
		t.Errorf("Transpose mismatch: %v", tr)
	}
}
