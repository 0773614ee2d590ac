package core

import (
	"errors"
	"math"
	"testing"

	"github.com/google/go-cmp/cmp"
	"gonum.org/v1/gonum/spatial/r3"

	"github.com/signalsfoundry/losrays/model"
)

func TestSampleCount(t *testing.T) {
	cases := []struct {
		maxLen, step float64
		want         int
	}{
		{10, 1, 10},
		{10.5, 1, 11},
		{15000, 100, 150},
		{15001, 100, 151},
		{0.5, 1, 1},
		{1, 3, 1},
		// Steps that are not exact in binary.
		{1, 0.1, 10},
		{0.3, 0.1, 3},
		{7, 0.7, 10},
		{15000, 0.1, 150000},
		{14800, 500, 30},
	}
	for _, tc := range cases {
		if got := SampleCount(tc.maxLen, tc.step); got != tc.want {
			t.Errorf("SampleCount(%g, %g) = %d, want %d", tc.maxLen, tc.step, got, tc.want)
		}
	}
}

func TestSampleRay_Properties(t *testing.T) {
	start := GeodeticToECEF(12, 34, 56)
	dirs := []Vec3{
		UpVector(12, 34),
		{X: 0.2, Y: -0.4, Z: 0.5},
		r3.Scale(3, UpVector(12, 34)),
	}
	for _, dir := range dirs {
		for _, p := range [][2]float64{{15000, 100}, {15000, 7}, {1234.5, 10}, {3, 0.25}, {1, 0.1}, {0.3, 0.1}, {7, 0.7}} {
			maxLen, step := p[0], p[1]
			ray := SampleRay(maxLen, start, dir, step)

			// One more step would reach maxLen.
			if reach := float64(len(ray)) * step; reach < maxLen*(1-1e-12) {
				t.Fatalf("SampleRay(%g, step %g) returned %d samples, which stop short at %g", maxLen, step, len(ray), reach)
			}
			if ray[0] != start {
				t.Fatalf("first sample %+v != start %+v", ray[0], start)
			}
			wantGap := step * r3.Norm(dir)
			for k := 1; k < len(ray); k++ {
				gap := r3.Norm(r3.Sub(ray[k], ray[k-1]))
				if math.Abs(gap-wantGap) > 1e-6 {
					t.Fatalf("gap between samples %d and %d = %g, want %g", k-1, k, gap, wantGap)
				}
			}
			// Half-open: the last sample lies strictly before maxLen along the ray.
			last := r3.Norm(r3.Sub(ray[len(ray)-1], start)) / r3.Norm(dir)
			if last >= maxLen {
				t.Fatalf("last sample at distance %g, must be < %g", last, maxLen)
			}
		}
	}
}

func TestSampleRay_ExactPositions(t *testing.T) {
	ray := SampleRay(5, Vec3{X: 1, Y: 2, Z: 3}, Vec3{X: 1, Y: 0, Z: -1}, 2)
	want := []Vec3{{X: 1, Y: 2, Z: 3}, {X: 3, Y: 2, Z: 1}, {X: 5, Y: 2, Z: -1}}
	if diff := cmp.Diff(want, ray); diff != "" {
		t.Fatalf("SampleRay mismatch (-want +got):\n%s", diff)
	}
}

func gridInputs(shape model.Shape) (starts, dirs []Vec3) {
	n := shape.Size()
	starts = make([]Vec3, n)
	dirs = make([]Vec3, n)
	for i := 0; i < n; i++ {
		lat := -60 + float64(i%17)*7.1
		lon := -170 + float64(i%29)*11.3
		starts[i] = GeodeticToECEF(lat, lon, float64(i%5)*100)
		dirs[i] = r3.Unit(ENUVectorToECEF(0.1*float64(i%3), -0.05*float64(i%4), 1, lat, lon))
	}
	return starts, dirs
}

func TestSampleRays_BatchMatchesSingle(t *testing.T) {
	shapes := []model.Shape{{}, {7}, {3, 4}, {2, 3, 5}, {40, 30}}
	for _, shape := range shapes {
		starts, dirs := gridInputs(shape)
		grid, err := SampleRays(15000, starts, dirs, shape, 93)
		if err != nil {
			t.Fatalf("SampleRays(%s): %v", shape, err)
		}
		n := SampleCount(15000, 93)
		if diff := cmp.Diff(shape.Append(3, n), grid.Shape()); diff != "" {
			t.Fatalf("grid shape mismatch (-want +got):\n%s", diff)
		}
		for i := 0; i < shape.Size(); i++ {
			want := SampleRay(15000, starts[i], dirs[i], 93)
			if diff := cmp.Diff(want, grid.Points(i)); diff != "" {
				t.Fatalf("shape %s pixel %d differs from single-ray sampling (-want +got):\n%s", shape, i, diff)
			}
		}

		looped, err := SampleRaysLooped(15000, starts, dirs, shape, 93)
		if err != nil {
			t.Fatalf("SampleRaysLooped(%s): %v", shape, err)
		}
		if diff := cmp.Diff(looped.Data, grid.Data); diff != "" {
			t.Fatalf("shape %s: parallel and looped sampling differ", shape)
		}
	}
}

func TestSampleRays_InexactStepMatchesLooped(t *testing.T) {
	shape := model.Shape{3, 2}
	starts, dirs := gridInputs(shape)
	for _, p := range [][3]float64{{1, 0.1, 10}, {0.3, 0.1, 3}, {7, 0.7, 10}} {
		maxLen, step, want := p[0], p[1], int(p[2])
		grid, err := SampleRays(maxLen, starts, dirs, shape, step)
		if err != nil {
			t.Fatalf("SampleRays(%g, %g): %v", maxLen, step, err)
		}
		if grid.Samples != want {
			t.Fatalf("SampleRays(%g, %g) took %d samples per ray, want %d", maxLen, step, grid.Samples, want)
		}
		looped, err := SampleRaysLooped(maxLen, starts, dirs, shape, step)
		if err != nil {
			t.Fatalf("SampleRaysLooped(%g, %g): %v", maxLen, step, err)
		}
		if diff := cmp.Diff(looped.Data, grid.Data); diff != "" {
			t.Fatalf("maxLen %g step %g: parallel and looped sampling differ", maxLen, step)
		}
	}
}

func TestSampleRays_Layout(t *testing.T) {
	shape := model.Shape{2, 2}
	starts := []Vec3{{X: 0}, {X: 10}, {X: 20}, {X: 30}}
	dirs := []Vec3{{X: 1}, {Y: 1}, {Z: 1}, {X: 1, Y: 1, Z: 1}}
	grid, err := SampleRays(3, starts, dirs, shape, 1)
	if err != nil {
		t.Fatalf("SampleRays: %v", err)
	}
	// Pixel 3, y component, sample 2: 0 + 2*1.
	if got := grid.At(3, 1, 2); got != 2 {
		t.Fatalf("At(3,1,2) = %g, want 2", got)
	}
	if diff := cmp.Diff([]float64{10, 10, 10}, grid.Component(1, 0)); diff != "" {
		t.Fatalf("Component(1,0) (-want +got):\n%s", diff)
	}
}

func TestSampleRays_PixelCountMismatch(t *testing.T) {
	starts, dirs := gridInputs(model.Shape{6})
	if _, err := SampleRays(100, starts, dirs, model.Shape{2, 4}, 10); !errors.Is(err, ErrShapeMismatch) {
		t.Fatalf("SampleRays = %v, want ErrShapeMismatch", err)
	}
}
