package core

import (
	"fmt"
	"math"
	"runtime"

	"golang.org/x/sync/errgroup"

	"github.com/signalsfoundry/losrays/model"
)

// SampleCount returns the number of samples along a ray of length maxLen
// stepped every stepSize: the floor quotient of maxLen by stepSize, plus one
// when the remainder is non-zero. Quotient and remainder come from the same
// math.Mod so that (SampleCount-1)*stepSize stays below maxLen for steps
// such as 0.1 that are not exact in binary.
//
// maxLen and stepSize must be positive.
func SampleCount(maxLen, stepSize float64) int {
	rem := math.Mod(maxLen, stepSize)
	n := int(math.Round((maxLen - rem) / stepSize))
	if rem != 0 {
		n++
	}
	return n
}

// baseSpace returns the distances 0, stepSize, 2*stepSize, ... for n samples.
func baseSpace(n int, stepSize float64) []float64 {
	base := make([]float64, n)
	for k := range base {
		base[k] = float64(k) * stepSize
	}
	return base
}

// SampleRay discretises the ray start + s*direction for s in
// [0, maxLen) every stepSize. The first sample is start; the endpoint at
// maxLen is never included.
//
// maxLen and stepSize must be positive.
func SampleRay(maxLen float64, start, direction Vec3, stepSize float64) []Vec3 {
	base := baseSpace(SampleCount(maxLen, stepSize), stepSize)
	return sampleWithBase(base, start, direction)
}

func sampleWithBase(base []float64, start, direction Vec3) []Vec3 {
	out := make([]Vec3, len(base))
	for k, s := range base {
		out[k] = Vec3{
			X: start.X + s*direction.X,
			Y: start.Y + s*direction.Y,
			Z: start.Z + s*direction.Z,
		}
	}
	return out
}

// RayGrid holds sampled rays for an N-D grid of ground pixels laid out as
// grid-shape + [3, Samples] in row-major order.
type RayGrid struct {
	GridShape model.Shape
	Samples   int
	Data      []float64
}

// Shape returns the full array shape, grid-shape + [3, Samples].
func (g *RayGrid) Shape() model.Shape { return g.GridShape.Append(3, g.Samples) }

// Pixels returns the number of rays in the grid.
func (g *RayGrid) Pixels() int { return g.GridShape.Size() }

// Component returns the samples of coordinate c (0=x, 1=y, 2=z) of the ray
// at flat pixel index i. The slice aliases the grid data.
func (g *RayGrid) Component(i, c int) []float64 {
	off := (i*3 + c) * g.Samples
	return g.Data[off : off+g.Samples]
}

// At returns coordinate c of sample k of the ray at flat pixel index i.
func (g *RayGrid) At(i, c, k int) float64 {
	return g.Data[(i*3+c)*g.Samples+k]
}

// Points returns the samples of the ray at flat pixel index i as vectors.
func (g *RayGrid) Points(i int) []Vec3 {
	xs, ys, zs := g.Component(i, 0), g.Component(i, 1), g.Component(i, 2)
	out := make([]Vec3, g.Samples)
	for k := range out {
		out[k] = Vec3{X: xs[k], Y: ys[k], Z: zs[k]}
	}
	return out
}

// SampleRays samples one ray per ground pixel of a grid. starts and
// directions hold one vector per pixel in row-major order of gridShape.
// Pixels are independent and sampled concurrently; each ray equals the
// result of SampleRay for that pixel's own start and direction.
//
// maxLen and stepSize must be positive.
func SampleRays(maxLen float64, starts, directions []Vec3, gridShape model.Shape, stepSize float64) (*RayGrid, error) {
	nPix := gridShape.Size()
	if len(starts) != nPix || len(directions) != nPix {
		return nil, fmt.Errorf("%w: grid %s has %d pixels, got %d start positions and %d directions",
			ErrShapeMismatch, gridShape, nPix, len(starts), len(directions))
	}

	n := SampleCount(maxLen, stepSize)
	base := baseSpace(n, stepSize)
	grid := &RayGrid{
		GridShape: append(model.Shape(nil), gridShape...),
		Samples:   n,
		Data:      make([]float64, nPix*3*n),
	}

	workers := runtime.GOMAXPROCS(0)
	chunk := (nPix + workers - 1) / workers
	if chunk < 64 {
		chunk = 64
	}

	var g errgroup.Group
	g.SetLimit(workers)
	for lo := 0; lo < nPix; lo += chunk {
		lo, hi := lo, min(lo+chunk, nPix)
		g.Go(func() error {
			for i := lo; i < hi; i++ {
				fillRay(grid, i, base, starts[i], directions[i])
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return grid, nil
}

// fillRay writes ray i as start[c] + base*direction[c] per coordinate,
// using the same arithmetic as sampleWithBase.
func fillRay(grid *RayGrid, i int, base []float64, start, dir Vec3) {
	sp := [3]float64{start.X, start.Y, start.Z}
	slv := [3]float64{dir.X, dir.Y, dir.Z}
	for c := 0; c < 3; c++ {
		dst := grid.Component(i, c)
		for k, s := range base {
			dst[k] = sp[c] + s*slv[c]
		}
	}
}

// SampleRaysLooped is the sequential reference for SampleRays: it visits
// every pixel in order and calls SampleRay.
func SampleRaysLooped(maxLen float64, starts, directions []Vec3, gridShape model.Shape, stepSize float64) (*RayGrid, error) {
	nPix := gridShape.Size()
	if len(starts) != nPix || len(directions) != nPix {
		return nil, fmt.Errorf("%w: grid %s has %d pixels, got %d start positions and %d directions",
			ErrShapeMismatch, gridShape, nPix, len(starts), len(directions))
	}
	n := SampleCount(maxLen, stepSize)
	grid := &RayGrid{
		GridShape: append(model.Shape(nil), gridShape...),
		Samples:   n,
		Data:      make([]float64, nPix*3*n),
	}
	for i := 0; i < nPix; i++ {
		for k, p := range SampleRay(maxLen, starts[i], directions[i], stepSize) {
			grid.Data[(i*3+0)*n+k] = p.X
			grid.Data[(i*3+1)*n+k] = p.Y
			grid.Data[(i*3+2)*n+k] = p.Z
		}
	}
	return grid, nil
}
