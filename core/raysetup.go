package core

import (
	"errors"
	"fmt"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/spatial/r3"

	"github.com/signalsfoundry/losrays/model"
)

// DefaultZRef is the altitude of the top of the troposphere in metres; rays
// are traced from the ground up to this height.
const DefaultZRef = 15000.0

var (
	ErrLOSBelowHorizon = errors.New("line-of-sight points below the local horizon")
	ErrDegenerateLOS   = errors.New("zero-length line-of-sight vector")
)

// RaySetup holds the per-pixel ray parameters that complete a query-point
// dataset: ECEF start position, unit ECEF look vector and ray length.
type RaySetup struct {
	Shape  model.Shape
	Start  []Vec3
	SLV    []Vec3
	Length []float64
}

// MaxLength returns the longest ray in the setup.
func (s *RaySetup) MaxLength() float64 {
	if len(s.Length) == 0 {
		return 0
	}
	return floats.Max(s.Length)
}

// Sample discretises every ray of the setup up to its longest length.
func (s *RaySetup) Sample(stepSize float64) (*RayGrid, error) {
	return SampleRays(s.MaxLength(), s.Start, s.SLV, s.Shape, stepSize)
}

// PrepareRays computes ray start positions, unit look vectors and lengths
// for every ground pixel. A ray ends where it crosses the zref altitude,
// using a flat-layer approximation: length = (zref - h) / cos(zenith angle).
// Pixels already above zref get length zero.
func PrepareRays(lats, lons, hgts model.Array, los model.LOS, zref float64) (*RaySetup, error) {
	if err := CheckShapes(los, lats, lons, hgts); err != nil {
		return nil, err
	}
	los, err := CheckLOS(los, hgts.Len())
	if err != nil {
		return nil, err
	}
	starts, err := GeodeticArrayToECEF(lats, lons, hgts)
	if err != nil {
		return nil, err
	}

	n := hgts.Len()
	setup := &RaySetup{
		Shape:  append(model.Shape(nil), hgts.Shape...),
		Start:  starts,
		SLV:    make([]Vec3, n),
		Length: make([]float64, n),
	}
	for i := 0; i < n; i++ {
		lat, lon, h := lats.Data[i], lons.Data[i], hgts.Data[i]
		up := UpVector(lat, lon)

		dir, cosZ := up, 1.0
		if !los.IsZenith() {
			dx, dy, dz := los.Vector(i)
			switch los.Frame() {
			case model.FrameENU:
				dir = ENUVectorToECEF(dx, dy, dz, lat, lon)
			default:
				dir = Vec3{X: dx, Y: dy, Z: dz}
			}
			if r3.Norm(dir) == 0 {
				return nil, fmt.Errorf("%w at pixel %d", ErrDegenerateLOS, i)
			}
			dir = r3.Unit(dir)
			cosZ = r3.Dot(dir, up)
			if cosZ <= 0 {
				return nil, fmt.Errorf("%w at pixel %d (elevation %.3f°)", ErrLOSBelowHorizon, i, elevationOf(dir, up))
			}
		}

		setup.SLV[i] = dir
		if h < zref {
			setup.Length[i] = (zref - h) / cosZ
		}
	}
	return setup, nil
}
