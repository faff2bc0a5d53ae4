// Package track defines the normalized point tuple produced from feature
// records and the output formats tuples can be written in.
package track

import (
	"fmt"
	"strings"
)

// PointTuple is one observation of a track. Coordinates are truncated to
// 32-bit floats.
type PointTuple struct {
	Lat float32
	Lon float32
	// Dtg is milliseconds since the Unix epoch.
	Dtg     int64
	TrackID *string
	Label   *int64
}

// AxisOrder controls how a geometry's x/y map onto latitude and longitude.
type AxisOrder int

const (
	// LonLat treats x as longitude and y as latitude.
	LonLat AxisOrder = iota
	// LatLon treats x as latitude and y as longitude.
	LatLon
)

func (a AxisOrder) String() string {
	if a == LatLon {
		return "LAT_LON"
	}
	return "LON_LAT"
}

// ParseAxisOrder accepts LAT_LON or LON_LAT in any case; empty is LON_LAT.
func ParseAxisOrder(s string) (AxisOrder, error) {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "", "LON_LAT", "LONLAT":
		return LonLat, nil
	case "LAT_LON", "LATLON":
		return LatLon, nil
	}
	return LonLat, fmt.Errorf("invalid axis order %q", s)
}

// FileFormat represents the output file format.
type FileFormat string

const (
	FormatBin     FileFormat = "bin"
	FormatAvro    FileFormat = "avro"
	FormatParquet FileFormat = "parquet"
)

// Stats summarizes an encode run.
type Stats struct {
	RecordsRead    int64
	RecordsSkipped int64
	TuplesWritten  int64
	BytesWritten   int64
}
