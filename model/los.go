package model

// LOSKind tags the variant held by a LOS value.
type LOSKind int

const (
	// LOSZenith means "look straight up"; no vectors are stored.
	LOSZenith LOSKind = iota
	// LOSVectors holds one 3-vector per ground pixel.
	LOSVectors
)

// Frame is the coordinate frame LOS vectors are expressed in.
type Frame int

const (
	// FrameENU vectors are local East-North-Up at each ground pixel.
	FrameENU Frame = iota
	// FrameECEF vectors are already earth-centered, earth-fixed.
	FrameECEF
)

func (f Frame) String() string {
	switch f {
	case FrameENU:
		return "ENU"
	case FrameECEF:
		return "ECEF"
	default:
		return "unknown"
	}
}

// LOS is the line-of-sight input for a set of ground pixels: either the
// Zenith sentinel or an array of look vectors whose trailing axis has
// length 3. The zero value is Zenith.
type LOS struct {
	kind    LOSKind
	frame   Frame
	vectors Array
}

// Zenith returns the "straight up" LOS.
func Zenith() LOS { return LOS{kind: LOSZenith} }

// VectorLOS returns a LOS holding explicit look vectors in the given frame.
func VectorLOS(frame Frame, vectors Array) LOS {
	return LOS{kind: LOSVectors, frame: frame, vectors: vectors}
}

// Kind reports which variant l holds.
func (l LOS) Kind() LOSKind { return l.kind }

// IsZenith reports whether l is the Zenith sentinel.
func (l LOS) IsZenith() bool { return l.kind == LOSZenith }

// Frame returns the frame of the look vectors. It is meaningless for Zenith.
func (l LOS) Frame() Frame { return l.frame }

// Vectors returns the look-vector array. It is empty for Zenith.
func (l LOS) Vectors() Array { return l.vectors }

// Vector returns the i-th look vector of a flattened (N, 3) view.
func (l LOS) Vector(i int) (dx, dy, dz float64) {
	d := l.vectors.Data[3*i : 3*i+3]
	return d[0], d[1], d[2]
}

func (l LOS) String() string {
	if l.IsZenith() {
		return "Zenith"
	}
	return "LOS" + l.vectors.Shape.String() + "[" + l.frame.String() + "]"
}
