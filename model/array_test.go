package model

import "testing"

func TestShapeSizeAndString(t *testing.T) {
	cases := []struct {
		shape Shape
		size  int
		str   string
	}{
		{Shape{}, 1, "()"},
		{Shape{5}, 5, "(5,)"},
		{Shape{3, 4}, 12, "(3, 4)"},
		{Shape{2, 3, 3}, 18, "(2, 3, 3)"},
	}
	for _, tc := range cases {
		if got := tc.shape.Size(); got != tc.size {
			t.Errorf("%v.Size() = %d, want %d", tc.shape, got, tc.size)
		}
		if got := tc.shape.String(); got != tc.str {
			t.Errorf("String() = %q, want %q", got, tc.str)
		}
	}
}

func TestShapeAppendDoesNotAlias(t *testing.T) {
	base := make(Shape, 2, 8)
	base[0], base[1] = 3, 4
	a := base.Append(3)
	b := base.Append(7)
	if a[2] != 3 || b[2] != 7 {
		t.Fatalf("Append aliased backing storage: %v %v", a, b)
	}
}

func TestNewArrayRejectsWrongLength(t *testing.T) {
	if _, err := NewArray(Shape{2, 2}, []float64{1, 2, 3}); err == nil {
		t.Fatalf("expected error for 3 elements in a (2, 2) array")
	}
	a, err := NewArray(Shape{2, 2}, []float64{1, 2, 3, 4})
	if err != nil {
		t.Fatalf("NewArray: %v", err)
	}
	if a.Len() != 4 {
		t.Fatalf("Len() = %d, want 4", a.Len())
	}
}

func TestLOSZeroValueIsZenith(t *testing.T) {
	var l LOS
	if !l.IsZenith() {
		t.Fatalf("zero LOS should be Zenith")
	}
	v := VectorLOS(FrameECEF, Full(Shape{2, 3}, 1))
	if v.IsZenith() || v.Kind() != LOSVectors {
		t.Fatalf("VectorLOS reported as %v", v.Kind())
	}
	if got := v.String(); got != "LOS(2, 3)[ECEF]" {
		t.Fatalf("String() = %q", got)
	}
}
