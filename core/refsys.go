package core

import (
	"errors"
	"fmt"
	"strings"

	"github.com/ctessum/geom/proj"
)

var (
	ErrUnsupportedReferenceSystem = errors.New("unsupported reference system")
	ErrReferenceSystemConfig      = errors.New("malformed reference system definition")
)

// EPSGWGS84 is the EPSG code of WGS84 geodetic latitude/longitude.
const EPSGWGS84 = 4326

// wkt4326 is the OGC WKT of EPSG:4326 as exported by GDAL.
const wkt4326 = `GEOGCS["WGS 84",DATUM["WGS_1984",SPHEROID["WGS 84",6378137,298.257223563,AUTHORITY["EPSG","7030"]],AUTHORITY["EPSG","6326"]],PRIMEM["Greenwich",0,AUTHORITY["EPSG","8901"]],UNIT["degree",0.0174532925199433,AUTHORITY["EPSG","9122"]],AXIS["Latitude",NORTH],AXIS["Longitude",EAST],AUTHORITY["EPSG","4326"]]`

// referenceSystems maps supported EPSG codes to their proj4 definitions.
var referenceSystems = map[int]string{
	EPSGWGS84: "+proj=longlat +ellps=WGS84 +datum=WGS84 +no_defs",
}

// ReferenceSystem is the spatial reference attached to a query-point dataset.
type ReferenceSystem struct {
	EPSG                     int
	Ellipsoid                Ellipsoid
	WKT                      string
	Proj4                    string
	GridMappingName          string
	LongitudeOfPrimeMeridian float64
}

// ResolveReferenceSystem returns the reference system for an EPSG code. Only
// geodetic WGS84 (EPSG:4326) is supported.
func ResolveReferenceSystem(epsg int) (ReferenceSystem, error) {
	def, ok := referenceSystems[epsg]
	if !ok {
		return ReferenceSystem{}, fmt.Errorf("%w: EPSG:%d (only EPSG:%d is supported)", ErrUnsupportedReferenceSystem, epsg, EPSGWGS84)
	}

	sr, err := proj.Parse(def)
	if err != nil {
		return ReferenceSystem{}, fmt.Errorf("%w: EPSG:%d: %v", ErrReferenceSystemConfig, epsg, err)
	}
	if sr.Name != "longlat" {
		return ReferenceSystem{}, fmt.Errorf("%w: EPSG:%d parsed as projection %q, want longlat", ErrReferenceSystemConfig, epsg, sr.Name)
	}
	if !strings.EqualFold(sr.Ellps, WGS84.Name) {
		return ReferenceSystem{}, fmt.Errorf("%w: EPSG:%d uses ellipsoid %q, want %s", ErrReferenceSystemConfig, epsg, sr.Ellps, WGS84.Name)
	}

	return ReferenceSystem{
		EPSG:                     epsg,
		Ellipsoid:                WGS84,
		WKT:                      wkt4326,
		Proj4:                    def,
		GridMappingName:          "latitude_longitude",
		LongitudeOfPrimeMeridian: 0.0,
	}, nil
}
