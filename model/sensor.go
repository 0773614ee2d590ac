package model

// MotionSource indicates how a sensor's position is determined.
type MotionSource int

const (
	MotionSourceStatic MotionSource = iota
	MotionSourceTLE                 // TLE-based orbit propagation
)

// Motion represents a position in ECEF metres.
type Motion struct {
	X float64
	Y float64
	Z float64
}

// SensorDefinition describes the observing platform a LOS points toward.
type SensorDefinition struct {
	ID   string
	Name string

	Coordinates  Motion
	MotionSource MotionSource

	// TLE lines, used when MotionSource is MotionSourceTLE.
	TLE1, TLE2 string
}
