package core

import (
	"errors"
	"fmt"

	"github.com/signalsfoundry/losrays/model"
)

var (
	ErrShapeMismatch    = errors.New("shape mismatch")
	ErrLOSCountMismatch = errors.New("line-of-sight count mismatch")
)

// ShapeMismatchError reports inconsistent ground-point and LOS shapes.
// LOS is nil when the LOS was the Zenith sentinel. Array is set when one
// array holds a different number of values than its shape addresses.
type ShapeMismatchError struct {
	Lats, Lons, Heights model.Shape
	LOS                 model.Shape

	Array  string
	Values int
}

func (e *ShapeMismatchError) Error() string {
	if e.Array != "" {
		var shape model.Shape
		switch e.Array {
		case "lats":
			shape = e.Lats
		case "lons":
			shape = e.Lons
		case "heights":
			shape = e.Heights
		default:
			shape = e.LOS
		}
		return fmt.Sprintf("%v: %s has shape %s (%d values) but holds %d values",
			ErrShapeMismatch, e.Array, shape, shape.Size(), e.Values)
	}
	los := "Zenith"
	if e.LOS != nil {
		los = e.LOS.String()
	}
	return fmt.Sprintf("%v: lats, lons, heights and los must agree; lats had shape %s, lons had shape %s, heights had shape %s, los was %s",
		ErrShapeMismatch, e.Lats, e.Lons, e.Heights, los)
}

func (e *ShapeMismatchError) Is(target error) bool { return target == ErrShapeMismatch }

// LOSCountMismatchError reports a LOS array that does not hold one vector
// per ground point.
type LOSCountMismatchError struct {
	Got  int // number of LOS rows (or flattened elements when not a multiple of 3)
	Want int
	// Ragged is set when the flattened LOS length is not a multiple of 3.
	Ragged bool
}

func (e *LOSCountMismatchError) Error() string {
	if e.Ragged {
		return fmt.Sprintf("%v: %d line-of-sight values cannot be split into 3-vectors for %d points", ErrLOSCountMismatch, e.Got, e.Want)
	}
	return fmt.Sprintf("%v: found %d line-of-sight vectors and %d points", ErrLOSCountMismatch, e.Got, e.Want)
}

func (e *LOSCountMismatchError) Is(target error) bool { return target == ErrLOSCountMismatch }

// CheckShapes verifies that latitude, longitude and height arrays share one
// shape and that a non-Zenith LOS has that shape plus a trailing 3-axis.
func CheckShapes(los model.LOS, lats, lons, hts model.Array) error {
	if err := checkData(los, lats, lons, hts); err != nil {
		return err
	}
	sameGround := hts.Shape.Equal(lats.Shape) && lats.Shape.Equal(lons.Shape)

	losOK := true
	var losShape model.Shape
	if !los.IsZenith() {
		losShape = los.Vectors().Shape
		if losShape == nil {
			losShape = model.Shape{}
		}
		n := len(losShape)
		losOK = n > 0 && losShape[n-1] == 3 && losShape[:n-1].Equal(hts.Shape)
	}

	if !sameGround || !losOK {
		return &ShapeMismatchError{Lats: lats.Shape, Lons: lons.Shape, Heights: hts.Shape, LOS: losShape}
	}
	return nil
}

// checkData rejects arrays whose data length disagrees with their shape.
func checkData(los model.LOS, lats, lons, hts model.Array) error {
	var losShape model.Shape
	if !los.IsZenith() {
		losShape = los.Vectors().Shape
	}
	mismatch := func(name string, a model.Array) error {
		if a.Len() == a.Shape.Size() {
			return nil
		}
		return &ShapeMismatchError{Lats: lats.Shape, Lons: lons.Shape, Heights: hts.Shape, LOS: losShape, Array: name, Values: a.Len()}
	}
	for _, c := range []struct {
		name string
		a    model.Array
	}{{"lats", lats}, {"lons", lons}, {"heights", hts}} {
		if err := mismatch(c.name, c.a); err != nil {
			return err
		}
	}
	if !los.IsZenith() {
		return mismatch("los", los.Vectors())
	}
	return nil
}

// CheckLOS reshapes a vector LOS into (nPoints, 3). The Zenith sentinel is
// returned unchanged. On error the input LOS is returned as is.
func CheckLOS(los model.LOS, nPoints int) (model.LOS, error) {
	if los.IsZenith() {
		return los, nil
	}
	vec := los.Vectors()
	if vec.Len()%3 != 0 {
		return los, &LOSCountMismatchError{Got: vec.Len(), Want: nPoints, Ragged: true}
	}
	rows := vec.Len() / 3
	if rows != nPoints {
		return los, &LOSCountMismatchError{Got: rows, Want: nPoints}
	}
	return model.VectorLOS(los.Frame(), model.Array{Shape: model.Shape{rows, 3}, Data: vec.Data}), nil
}
