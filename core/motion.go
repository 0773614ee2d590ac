package core

import (
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	satellite "github.com/joshuaferrara/go-satellite"
	"gonum.org/v1/gonum/spatial/r3"

	"github.com/signalsfoundry/losrays/model"
)

var (
	// ErrSensorNotVisible is returned when the Earth blocks the straight
	// line between a ground pixel and the sensor.
	ErrSensorNotVisible = errors.New("sensor not visible from ground pixel")
	ErrInvalidTLE       = errors.New("invalid two-line element set")
	ErrPropagation      = errors.New("orbit propagation failed")
)

const (
	tleLineLen = 69
	kmToM      = 1000.0
)

// MotionModel yields a sensor's ECEF position for an acquisition time.
type MotionModel interface {
	PositionAt(t time.Time) (Vec3, error)
}

// StaticMotionModel holds the sensor at a fixed ECEF position.
type StaticMotionModel struct {
	Position Vec3
}

func (m StaticMotionModel) PositionAt(time.Time) (Vec3, error) { return m.Position, nil }

// OrbitalSGP4MotionModel places the sensor by propagating a TLE with SGP4.
type OrbitalSGP4MotionModel struct {
	sat satellite.Satellite
}

// NewOrbitalModelFromTLE validates the two element lines and initialises
// SGP4 from them. go-satellite exits the process on unparsable fields, so
// every field it reads is checked here first.
func NewOrbitalModelFromTLE(line1, line2 string) (*OrbitalSGP4MotionModel, error) {
	line1, line2 = strings.TrimRight(line1, " \r\n"), strings.TrimRight(line2, " \r\n")
	if err := checkTLE(line1, line2); err != nil {
		return nil, err
	}
	sat := satellite.TLEToSat(line1, line2, satellite.GravityWGS72)
	if sat.Error != 0 {
		return nil, fmt.Errorf("%w: %s", ErrInvalidTLE, sat.ErrorStr)
	}
	return &OrbitalSGP4MotionModel{sat: sat}, nil
}

// PositionAt propagates the orbit to t (whole seconds, UTC) and rotates the
// result from ECI to ECEF through GMST. A decayed or corrupt element set
// shows up as a non-finite position or one inside the Earth.
func (m *OrbitalSGP4MotionModel) PositionAt(t time.Time) (Vec3, error) {
	t = t.UTC()
	year, month, day := t.Date()
	hour, minute, sec := t.Clock()

	eci, _ := satellite.Propagate(m.sat, year, int(month), day, hour, minute, sec)
	gmst := satellite.ThetaG_JD(satellite.JDay(year, int(month), day, hour, minute, sec))
	ecef := satellite.ECIToECEF(eci, gmst)

	p := Vec3{X: ecef.X * kmToM, Y: ecef.Y * kmToM, Z: ecef.Z * kmToM}
	for _, c := range [...]float64{p.X, p.Y, p.Z} {
		if math.IsNaN(c) || math.IsInf(c, 0) {
			return Vec3{}, fmt.Errorf("%w at %s: non-finite sensor position", ErrPropagation, t.Format(time.RFC3339))
		}
	}
	if r := r3.Norm(p); r < WGS84.SemiMinorAxis() {
		return Vec3{}, fmt.Errorf("%w at %s: sensor %.0f m from the geocentre is inside the Earth (decayed orbit?)",
			ErrPropagation, t.Format(time.RFC3339), r)
	}
	return p, nil
}

// NewMotionModel picks SGP4 for TLE sensors and a static model otherwise.
func NewMotionModel(s *model.SensorDefinition) (MotionModel, error) {
	if s.MotionSource == model.MotionSourceTLE {
		if s.TLE1 == "" || s.TLE2 == "" {
			return nil, fmt.Errorf("%w: sensor %q has no element lines", ErrInvalidTLE, s.ID)
		}
		return NewOrbitalModelFromTLE(s.TLE1, s.TLE2)
	}
	c := s.Coordinates
	return StaticMotionModel{Position: Vec3{X: c.X, Y: c.Y, Z: c.Z}}, nil
}

// SensorPosition places the sensor at time t, records the position in
// s.Coordinates and returns it.
func SensorPosition(s *model.SensorDefinition, t time.Time) (Vec3, error) {
	m, err := NewMotionModel(s)
	if err != nil {
		return Vec3{}, err
	}
	p, err := m.PositionAt(t)
	if err != nil {
		return Vec3{}, fmt.Errorf("sensor %q: %w", s.ID, err)
	}
	s.Coordinates = model.Motion{X: p.X, Y: p.Y, Z: p.Z}
	return p, nil
}

// checkTLE verifies line numbers, lengths, checksums and every numeric
// field SGP4 initialisation parses.
func checkTLE(line1, line2 string) error {
	for i, l := range [...]string{line1, line2} {
		n := i + 1
		if len(l) != tleLineLen {
			return fmt.Errorf("%w: line %d has %d characters, want %d", ErrInvalidTLE, n, len(l), tleLineLen)
		}
		if l[0] != byte('0'+n) || l[1] != ' ' {
			return fmt.Errorf("%w: line %d does not start with %q", ErrInvalidTLE, n, strconv.Itoa(n)+" ")
		}
		want, got := tleChecksum(l[:tleLineLen-1]), int(l[tleLineLen-1]-'0')
		if got != want {
			return fmt.Errorf("%w: line %d checksum %c, computed %d", ErrInvalidTLE, n, l[tleLineLen-1], want)
		}
	}

	ints := map[string]string{
		"catalogue number": strings.TrimSpace(line1[2:7]),
		"epoch year":       line1[18:20],
	}
	for name, v := range ints {
		if _, err := strconv.ParseInt(v, 10, 0); err != nil {
			return fmt.Errorf("%w: %s %q", ErrInvalidTLE, name, v)
		}
	}
	reals := map[string]string{
		"epoch day":           line1[20:32],
		"mean motion dot":     strings.Replace(line1[33:43], " ", "", 2),
		"mean motion ddot":    strings.Replace(line1[44:45]+"."+line1[45:50]+"e"+line1[50:52], " ", "", 2),
		"bstar":               strings.Replace(line1[53:54]+"."+line1[54:59]+"e"+line1[59:61], " ", "", 2),
		"inclination":         strings.Replace(line2[8:16], " ", "", 2),
		"right ascension":     strings.Replace(line2[17:25], " ", "", 2),
		"eccentricity":        "." + line2[26:33],
		"argument of perigee": strings.Replace(line2[34:42], " ", "", 2),
		"mean anomaly":        strings.Replace(line2[43:51], " ", "", 2),
		"mean motion":         strings.Replace(line2[52:63], " ", "", 2),
	}
	for name, v := range reals {
		if _, err := strconv.ParseFloat(v, 64); err != nil {
			return fmt.Errorf("%w: %s %q", ErrInvalidTLE, name, v)
		}
	}
	return nil
}

// tleChecksum sums the digits of a TLE line, counting '-' as 1, modulo 10.
func tleChecksum(l string) int {
	sum := 0
	for _, c := range l {
		switch {
		case c >= '0' && c <= '9':
			sum += int(c - '0')
		case c == '-':
			sum++
		}
	}
	return sum % 10
}

// LOSFromSensor returns ECEF unit look vectors from every ground pixel
// toward the sensor, shaped as the ground arrays plus a trailing 3-axis.
func LOSFromSensor(lats, lons, hgts model.Array, sensor Vec3) (model.LOS, error) {
	ground, err := GeodeticArrayToECEF(lats, lons, hgts)
	if err != nil {
		return model.LOS{}, err
	}
	data := make([]float64, 0, 3*len(ground))
	for i, g := range ground {
		if !hasLineOfSight(g, sensor) {
			return model.LOS{}, fmt.Errorf("%w: pixel %d (elevation %.3f°)", ErrSensorNotVisible, i, ElevationDegrees(g, sensor))
		}
		v := r3.Sub(sensor, g)
		if r3.Norm(v) == 0 {
			return model.LOS{}, fmt.Errorf("%w at pixel %d", ErrDegenerateLOS, i)
		}
		u := r3.Unit(v)
		data = append(data, u.X, u.Y, u.Z)
	}
	return model.VectorLOS(model.FrameECEF, model.Array{Shape: hgts.Shape.Append(3), Data: data}), nil
}
