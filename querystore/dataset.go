// Package querystore persists query-point datasets: ground pixels, their
// line-of-sight vectors and the ray parameters later stages fill in, stored
// as a CF-annotated netCDF classic file.
package querystore

import (
	"fmt"

	"github.com/signalsfoundry/losrays/core"
	"github.com/signalsfoundry/losrays/model"
)

// Variable names of the dataset schema.
const (
	VarLon        = "lon"
	VarLat        = "lat"
	VarHgt        = "hgt"
	VarLOS        = "LOS"
	VarRaysSP     = "Rays_SP"
	VarRaysLen    = "Rays_len"
	VarRaysSLV    = "Rays_SLV"
	VarProjection = "projection"
)

const (
	// Conventions is the CF version tag written to every dataset.
	Conventions = "CF-1.8"
	// ChunkContiguous is the ChunkSize attribute of unchunked datasets.
	ChunkContiguous = "contiguous"

	losFrameZenith = "zenith"
)

// ProjectionAttrs are the grid-mapping attributes of the projection variable.
type ProjectionAttrs struct {
	SemiMajorAxis            float64
	InverseFlattening        float64
	Ellipsoid                string
	EPSGCode                 int
	SpatialRef               string
	GridMappingName          string
	LongitudeOfPrimeMeridian float64
}

// VariableAttrs are the CF attributes of a data variable. Fields a variable
// does not carry are left empty.
type VariableAttrs struct {
	StandardName string
	Units        string
	GridMapping  string
	Shape        model.Shape
}

// Dataset is an in-memory query-point dataset. Every per-pixel array has the
// pixel shape, or the pixel shape plus a trailing 3-axis for vectors.
type Dataset struct {
	Shape model.Shape

	Lon, Lat, Hgt model.Array
	LOS           model.Array
	// LOSFrame is "zenith" when LOS holds no vectors, else "ENU" or "ECEF".
	LOSFrame string

	RaysSP  model.Array
	RaysLen model.Array
	RaysSLV model.Array

	Projection int

	Conventions string
	// ChunkShape is nil for contiguous datasets.
	ChunkShape model.Shape
	NumRays    int

	CRS       ProjectionAttrs
	Variables map[string]VariableAttrs
}

// LineOfSight rebuilds the LOS input the dataset was written from.
func (d *Dataset) LineOfSight() (model.LOS, error) {
	switch d.LOSFrame {
	case losFrameZenith:
		return model.Zenith(), nil
	case model.FrameENU.String():
		return model.VectorLOS(model.FrameENU, d.LOS), nil
	case model.FrameECEF.String():
		return model.VectorLOS(model.FrameECEF, d.LOS), nil
	default:
		return model.LOS{}, fmt.Errorf("%w: unknown LOS frame %q", ErrMalformedDataset, d.LOSFrame)
	}
}

// RaySetup returns the stored ray parameters. They are all zero until
// WriteRays has populated the dataset.
func (d *Dataset) RaySetup() *core.RaySetup {
	n := d.Shape.Size()
	setup := &core.RaySetup{
		Shape:  append(model.Shape(nil), d.Shape...),
		Start:  make([]core.Vec3, n),
		SLV:    make([]core.Vec3, n),
		Length: append([]float64(nil), d.RaysLen.Data...),
	}
	for i := 0; i < n; i++ {
		sp, slv := d.RaysSP.Data[3*i:3*i+3], d.RaysSLV.Data[3*i:3*i+3]
		setup.Start[i] = core.Vec3{X: sp[0], Y: sp[1], Z: sp[2]}
		setup.SLV[i] = core.Vec3{X: slv[0], Y: slv[1], Z: slv[2]}
	}
	return setup
}

// Populated reports whether any ray has a non-zero length.
func (d *Dataset) Populated() bool {
	for _, l := range d.RaysLen.Data {
		if l != 0 {
			return true
		}
	}
	return false
}

func newDataset(shape model.Shape, lats, lons, hgts model.Array, los model.LOS, ref core.ReferenceSystem, chunk model.Shape) *Dataset {
	vecShape := shape.Append(3)
	n := shape.Size()

	d := &Dataset{
		Shape:       append(model.Shape(nil), shape...),
		Lon:         model.Array{Shape: shape, Data: append([]float64(nil), lons.Data...)},
		Lat:         model.Array{Shape: shape, Data: append([]float64(nil), lats.Data...)},
		Hgt:         model.Array{Shape: shape, Data: append([]float64(nil), hgts.Data...)},
		RaysSP:      model.Full(vecShape, 0),
		RaysLen:     model.Full(shape, 0),
		RaysSLV:     model.Full(vecShape, 0),
		Projection:  ref.EPSG,
		Conventions: Conventions,
		NumRays:     n,
	}
	if len(chunk) > 0 {
		d.ChunkShape = append(model.Shape(nil), chunk...)
	}

	if los.IsZenith() {
		d.LOS = model.Full(vecShape, 0)
		d.LOSFrame = losFrameZenith
	} else {
		d.LOS = model.Array{Shape: vecShape, Data: append([]float64(nil), los.Vectors().Data...)}
		d.LOSFrame = los.Frame().String()
	}

	d.CRS = ProjectionAttrs{
		SemiMajorAxis:            ref.Ellipsoid.SemiMajorAxis,
		InverseFlattening:        ref.Ellipsoid.InverseFlattening,
		Ellipsoid:                ref.Ellipsoid.Name,
		EPSGCode:                 ref.EPSG,
		SpatialRef:               ref.WKT,
		GridMappingName:          ref.GridMappingName,
		LongitudeOfPrimeMeridian: ref.LongitudeOfPrimeMeridian,
	}
	d.Variables = map[string]VariableAttrs{
		VarLon:     {StandardName: "longitude", Units: "degrees_east", GridMapping: VarProjection, Shape: d.Shape},
		VarLat:     {StandardName: "latitude", Units: "degrees_north", GridMapping: VarProjection, Shape: d.Shape},
		VarHgt:     {StandardName: "height", Units: "m", GridMapping: VarProjection, Shape: d.Shape},
		VarLOS:     {GridMapping: VarProjection},
		VarRaysSP:  {GridMapping: VarProjection},
		VarRaysLen: {GridMapping: VarProjection},
		VarRaysSLV: {GridMapping: VarProjection},
	}
	return d
}

// validate checks that every array matches the dataset's pixel shape.
func (d *Dataset) validate() error {
	vecShape := d.Shape.Append(3)
	for _, f := range []struct {
		name  string
		arr   model.Array
		shape model.Shape
	}{
		{VarLon, d.Lon, d.Shape},
		{VarLat, d.Lat, d.Shape},
		{VarHgt, d.Hgt, d.Shape},
		{VarLOS, d.LOS, vecShape},
		{VarRaysSP, d.RaysSP, vecShape},
		{VarRaysLen, d.RaysLen, d.Shape},
		{VarRaysSLV, d.RaysSLV, vecShape},
	} {
		if !f.arr.Shape.Equal(f.shape) || f.arr.Len() != f.shape.Size() {
			return fmt.Errorf("%w: %s has shape %s with %d values, want %s",
				ErrMalformedDataset, f.name, f.arr.Shape, f.arr.Len(), f.shape)
		}
	}
	return nil
}
