package querystore

import (
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/ctessum/cdf"

	"github.com/signalsfoundry/losrays/model"
)

const (
	dimXYZ    = "xyz"
	attrFrame = "los_frame"
)

// dataVars lists the float64 variables in file order.
var dataVars = []string{VarLon, VarLat, VarHgt, VarLOS, VarRaysSP, VarRaysLen, VarRaysSLV}

func pixelDims(shape model.Shape) []string {
	dims := make([]string, len(shape))
	for i := range shape {
		dims[i] = fmt.Sprintf("pixel_%d", i)
	}
	return dims
}

func int32s(s model.Shape) []int32 {
	out := make([]int32, len(s))
	for i, v := range s {
		out[i] = int32(v)
	}
	return out
}

func (d *Dataset) array(name string) model.Array {
	switch name {
	case VarLon:
		return d.Lon
	case VarLat:
		return d.Lat
	case VarHgt:
		return d.Hgt
	case VarLOS:
		return d.LOS
	case VarRaysSP:
		return d.RaysSP
	case VarRaysLen:
		return d.RaysLen
	case VarRaysSLV:
		return d.RaysSLV
	}
	return model.Array{}
}

func (d *Dataset) setArray(name string, a model.Array) {
	switch name {
	case VarLon:
		d.Lon = a
	case VarLat:
		d.Lat = a
	case VarHgt:
		d.Hgt = a
	case VarLOS:
		d.LOS = a
	case VarRaysSP:
		d.RaysSP = a
	case VarRaysLen:
		d.RaysLen = a
	case VarRaysSLV:
		d.RaysSLV = a
	}
}

// encode writes d to w as netCDF classic. The pixel shape must have no
// zero-length axis; netCDF classic reserves those for the record dimension.
func encode(w *os.File, d *Dataset) error {
	pix := pixelDims(d.Shape)
	vec := append(append([]string(nil), pix...), dimXYZ)

	h := cdf.NewHeader(vec, append(append([]int(nil), d.Shape...), 3))

	h.AddAttribute("", "Conventions", d.Conventions)
	if d.ChunkShape == nil {
		h.AddAttribute("", "ChunkSize", ChunkContiguous)
	} else {
		h.AddAttribute("", "ChunkSize", int32s(d.ChunkShape))
	}
	h.AddAttribute("", "NumRays", []int32{int32(d.NumRays)})

	h.AddVariable(VarProjection, []string{}, []int32{0})
	h.AddAttribute(VarProjection, "semi_major_axis", []float64{d.CRS.SemiMajorAxis})
	h.AddAttribute(VarProjection, "inverse_flattening", []float64{d.CRS.InverseFlattening})
	h.AddAttribute(VarProjection, "ellipsoid", d.CRS.Ellipsoid)
	h.AddAttribute(VarProjection, "epsg_code", []int32{int32(d.CRS.EPSGCode)})
	h.AddAttribute(VarProjection, "spatial_ref", d.CRS.SpatialRef)
	h.AddAttribute(VarProjection, "grid_mapping_name", d.CRS.GridMappingName)
	h.AddAttribute(VarProjection, "longitude_of_prime_meridian", []float64{d.CRS.LongitudeOfPrimeMeridian})

	for _, name := range dataVars {
		dims := pix
		if len(d.array(name).Shape) == len(d.Shape)+1 {
			dims = vec
		}
		h.AddVariable(name, dims, []float64{0})

		attrs := d.Variables[name]
		if attrs.StandardName != "" {
			h.AddAttribute(name, "standard_name", attrs.StandardName)
		}
		if attrs.Units != "" {
			h.AddAttribute(name, "units", attrs.Units)
		}
		if attrs.Shape != nil {
			h.AddAttribute(name, "Shape", int32s(attrs.Shape))
		}
		if attrs.GridMapping != "" {
			h.AddAttribute(name, "grid_mapping", attrs.GridMapping)
		}
		if name == VarLOS {
			h.AddAttribute(name, attrFrame, d.LOSFrame)
		}
	}
	h.Define()

	f, err := cdf.Create(w, h)
	if err != nil {
		return fmt.Errorf("write header: %w", err)
	}
	if err := writeVar(f, VarProjection, []int32{int32(d.Projection)}, 1); err != nil {
		return err
	}
	for _, name := range dataVars {
		data := d.array(name).Data
		if err := writeVar(f, name, data, len(data)); err != nil {
			return err
		}
	}
	return cdf.UpdateNumRecs(w)
}

// writeVar writes all n values of a fixed-size variable. The cdf writer
// reports io.EOF once it reaches the last byte of the variable, so EOF after
// a complete write is success.
func writeVar(f *cdf.File, name string, values any, n int) error {
	got, err := f.Writer(name, nil, nil).Write(values)
	if errors.Is(err, io.EOF) && got == n {
		err = nil
	}
	if err != nil {
		return fmt.Errorf("write %s: %w", name, err)
	}
	if got != n {
		return fmt.Errorf("write %s: wrote %d of %d values", name, got, n)
	}
	return nil
}

// decode reads a dataset written by encode.
func decode(r cdf.ReaderWriterAt) (*Dataset, error) {
	f, err := cdf.Open(r)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedDataset, err)
	}
	hdr := f.Header

	for _, name := range append([]string{VarProjection}, dataVars...) {
		if hdr.Lengths(name) == nil {
			return nil, fmt.Errorf("%w: missing variable %s", ErrMalformedDataset, name)
		}
	}

	d := &Dataset{
		Shape:     model.Shape(append([]int(nil), hdr.Lengths(VarHgt)...)),
		Variables: make(map[string]VariableAttrs, len(dataVars)),
	}

	for _, name := range dataVars {
		shape := model.Shape(append([]int(nil), hdr.Lengths(name)...))
		buf := make([]float64, shape.Size())
		if _, err := f.Reader(name, nil, nil).Read(buf); err != nil {
			return nil, fmt.Errorf("%w: read %s: %v", ErrMalformedDataset, name, err)
		}
		d.setArray(name, model.Array{Shape: shape, Data: buf})

		attrs := VariableAttrs{
			StandardName: attrString(hdr, name, "standard_name"),
			Units:        attrString(hdr, name, "units"),
			GridMapping:  attrString(hdr, name, "grid_mapping"),
		}
		if v, ok := hdr.GetAttribute(name, "Shape").([]int32); ok {
			attrs.Shape = make(model.Shape, len(v))
			for i, x := range v {
				attrs.Shape[i] = int(x)
			}
		}
		d.Variables[name] = attrs
	}
	d.LOSFrame = attrString(hdr, VarLOS, attrFrame)

	proj := make([]int32, 1)
	if _, err := f.Reader(VarProjection, nil, nil).Read(proj); err != nil {
		return nil, fmt.Errorf("%w: read %s: %v", ErrMalformedDataset, VarProjection, err)
	}
	d.Projection = int(proj[0])

	d.Conventions = attrString(hdr, "", "Conventions")
	switch v := hdr.GetAttribute("", "ChunkSize").(type) {
	case string:
		if v != ChunkContiguous {
			return nil, fmt.Errorf("%w: ChunkSize %q", ErrMalformedDataset, v)
		}
	case []int32:
		d.ChunkShape = make(model.Shape, len(v))
		for i, x := range v {
			d.ChunkShape[i] = int(x)
		}
	default:
		return nil, fmt.Errorf("%w: missing ChunkSize attribute", ErrMalformedDataset)
	}
	if v, ok := hdr.GetAttribute("", "NumRays").([]int32); ok && len(v) == 1 {
		d.NumRays = int(v[0])
	}

	d.CRS = ProjectionAttrs{
		SemiMajorAxis:            attrFloat(hdr, VarProjection, "semi_major_axis"),
		InverseFlattening:        attrFloat(hdr, VarProjection, "inverse_flattening"),
		Ellipsoid:                attrString(hdr, VarProjection, "ellipsoid"),
		SpatialRef:               attrString(hdr, VarProjection, "spatial_ref"),
		GridMappingName:          attrString(hdr, VarProjection, "grid_mapping_name"),
		LongitudeOfPrimeMeridian: attrFloat(hdr, VarProjection, "longitude_of_prime_meridian"),
	}
	if v, ok := hdr.GetAttribute(VarProjection, "epsg_code").([]int32); ok && len(v) == 1 {
		d.CRS.EPSGCode = int(v[0])
	}

	if err := d.validate(); err != nil {
		return nil, err
	}
	return d, nil
}

func attrString(h *cdf.Header, v, a string) string {
	s, _ := h.GetAttribute(v, a).(string)
	return s
}

func attrFloat(h *cdf.Header, v, a string) float64 {
	if f, ok := h.GetAttribute(v, a).([]float64); ok && len(f) == 1 {
		return f[0]
	}
	return 0
}
