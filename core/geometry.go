package core

import (
	"math"

	"gonum.org/v1/gonum/spatial/r3"

	"github.com/signalsfoundry/losrays/model"
)

// Vec3 is an ECEF vector in metres.
type Vec3 = r3.Vec

// Ellipsoid is a reference ellipsoid of revolution.
type Ellipsoid struct {
	Name              string
	SemiMajorAxis     float64 // metres
	InverseFlattening float64
}

// WGS84 is the only ellipsoid the transforms are defined for.
var WGS84 = Ellipsoid{
	Name:              "WGS84",
	SemiMajorAxis:     6378137.0,
	InverseFlattening: 298.257223563,
}

// Flattening returns f = 1/rf.
func (e Ellipsoid) Flattening() float64 { return 1 / e.InverseFlattening }

// SemiMinorAxis returns b = a(1-f).
func (e Ellipsoid) SemiMinorAxis() float64 { return e.SemiMajorAxis * (1 - e.Flattening()) }

// EccentricitySquared returns e² = f(2-f).
func (e Ellipsoid) EccentricitySquared() float64 {
	f := e.Flattening()
	return f * (2 - f)
}

func sind(deg float64) float64 { return math.Sin(deg * math.Pi / 180) }
func cosd(deg float64) float64 { return math.Cos(deg * math.Pi / 180) }

// GeodeticToECEF projects a geodetic point (degrees, degrees, metres above
// the WGS84 ellipsoid) into ECEF metres.
func GeodeticToECEF(lat, lon, height float64) Vec3 {
	return WGS84.ToECEF(lat, lon, height)
}

// ToECEF projects a geodetic point onto e.
func (e Ellipsoid) ToECEF(lat, lon, height float64) Vec3 {
	sinLat, cosLat := sind(lat), cosd(lat)
	sinLon, cosLon := sind(lon), cosd(lon)
	e2 := e.EccentricitySquared()

	// Radius of curvature in the prime vertical.
	n := e.SemiMajorAxis / math.Sqrt(1-e2*sinLat*sinLat)

	return Vec3{
		X: (n + height) * cosLat * cosLon,
		Y: (n + height) * cosLat * sinLon,
		Z: (n*(1-e2) + height) * sinLat,
	}
}

// ECEFToGeodetic inverts GeodeticToECEF with Bowring's iteration. Latitude
// and longitude are returned in degrees, height in metres.
func ECEFToGeodetic(v Vec3) (lat, lon, height float64) {
	return WGS84.FromECEF(v)
}

// FromECEF inverts ToECEF for e.
func (e Ellipsoid) FromECEF(v Vec3) (lat, lon, height float64) {
	a := e.SemiMajorAxis
	e2 := e.EccentricitySquared()

	lonRad := math.Atan2(v.Y, v.X)
	p := math.Hypot(v.X, v.Y)

	latRad := math.Atan2(v.Z, p*(1-e2))
	for i := 0; i < 6; i++ {
		s := math.Sin(latRad)
		n := a / math.Sqrt(1-e2*s*s)
		latRad = math.Atan2(v.Z+e2*n*s, p)
	}

	sinLat, cosLat := math.Sin(latRad), math.Cos(latRad)
	n := a / math.Sqrt(1-e2*sinLat*sinLat)
	if math.Abs(cosLat) > 1e-10 {
		height = p/cosLat - n
	} else {
		height = math.Abs(v.Z)/math.Abs(sinLat) - n*(1-e2)
	}
	return latRad * 180 / math.Pi, lonRad * 180 / math.Pi, height
}

// enuRotation returns the matrix taking local (east, north, up) components
// at (lat0, lon0) to ECEF components.
func enuRotation(lat0, lon0 float64) *r3.Mat {
	sinLat, cosLat := sind(lat0), cosd(lat0)
	sinLon, cosLon := sind(lon0), cosd(lon0)
	return r3.NewMat([]float64{
		-sinLon, -cosLon * sinLat, cosLon * cosLat,
		cosLon, -sinLon * sinLat, sinLon * cosLat,
		0, cosLat, sinLat,
	})
}

// ENUVectorToECEF rotates a local East-North-Up vector at (lat0, lon0) into
// the ECEF frame without translating it.
func ENUVectorToECEF(east, north, up, lat0, lon0 float64) Vec3 {
	return enuRotation(lat0, lon0).MulVec(Vec3{X: east, Y: north, Z: up})
}

// ENUToECEF converts a point given as an ENU offset from the geodetic origin
// (lat0, lon0, h0) into ECEF. All angles are in degrees.
func ENUToECEF(east, north, up, lat0, lon0, h0 float64) Vec3 {
	return r3.Add(GeodeticToECEF(lat0, lon0, h0), ENUVectorToECEF(east, north, up, lat0, lon0))
}

// UpVector returns the unit ellipsoid normal at (lat, lon) in ECEF.
func UpVector(lat, lon float64) Vec3 {
	return ENUVectorToECEF(0, 0, 1, lat, lon)
}

// GeodeticArrayToECEF converts arrays of latitude, longitude and height of
// identical shape into a flat slice of ECEF points in row-major order.
func GeodeticArrayToECEF(lats, lons, hgts model.Array) ([]Vec3, error) {
	if err := checkData(model.Zenith(), lats, lons, hgts); err != nil {
		return nil, err
	}
	if !lats.Shape.Equal(lons.Shape) || !lats.Shape.Equal(hgts.Shape) {
		return nil, &ShapeMismatchError{Lats: lats.Shape, Lons: lons.Shape, Heights: hgts.Shape}
	}
	out := make([]Vec3, lats.Len())
	for i := range out {
		out[i] = GeodeticToECEF(lats.Data[i], lons.Data[i], hgts.Data[i])
	}
	return out, nil
}

// hasLineOfSight checks whether the straight segment between p1 and p2
// intersects the WGS84 ellipsoid. If it does, the Earth blocks the
// line-of-sight and the function returns false.
//
// Both points are scaled so the ellipsoid becomes the unit sphere, where the
// closest-approach test is exact.
func hasLineOfSight(p1, p2 Vec3) bool {
	a := WGS84.SemiMajorAxis
	b := WGS84.SemiMinorAxis()
	scale := func(p Vec3) Vec3 { return Vec3{X: p.X / a, Y: p.Y / a, Z: p.Z / b} }
	s1, s2 := scale(p1), scale(p2)

	v := r3.Sub(s2, s1)
	vv := r3.Dot(v, v)
	if vv == 0 {
		return true
	}

	// t* minimises |s1 + t v|^2 over t in [0, 1].
	t := -r3.Dot(s1, v) / vv
	if t < 0 {
		t = 0
	} else if t > 1 {
		t = 1
	}
	closest := r3.Add(s1, r3.Scale(t, v))

	// Points below the ellipsoid shrink the blocking surface to their own level.
	limit := math.Min(1, r3.Dot(s1, s1)) * (1 - 1e-9)
	return r3.Dot(closest, closest) > limit
}

// ElevationDegrees returns the elevation angle of the target as seen from
// the observer, in degrees. 0° = local horizon, 90° = along the ellipsoid
// normal at the observer.
func ElevationDegrees(observer, target Vec3) float64 {
	v := r3.Sub(target, observer)
	if r3.Norm(v) == 0 {
		return 90
	}
	lat, lon, _ := ECEFToGeodetic(observer)
	return elevationOf(v, UpVector(lat, lon))
}

// elevationOf returns the angle in degrees between dir and the plane normal
// to the unit vector up.
func elevationOf(dir, up Vec3) float64 {
	n := r3.Norm(dir)
	if n == 0 {
		return 90
	}
	s := r3.Dot(dir, up) / n
	if s > 1 {
		s = 1
	} else if s < -1 {
		s = -1
	}
	return math.Asin(s) * 180 / math.Pi
}
