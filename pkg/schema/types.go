package schema

import (
	"fmt"
	"strings"
)

// DataType is the storage type of a simple scalar attribute or of a list
// element / map key or value.
type DataType int

const (
	TypeString DataType = iota
	TypeInteger
	TypeLong
	TypeFloat
	TypeDouble
	TypeBoolean
	TypeDate
	TypeTimestamp
	TypeUUID
	TypeBytes
)

var dataTypeNames = [...]string{
	TypeString:    "String",
	TypeInteger:   "Integer",
	TypeLong:      "Long",
	TypeFloat:     "Float",
	TypeDouble:    "Double",
	TypeBoolean:   "Boolean",
	TypeDate:      "Date",
	TypeTimestamp: "Timestamp",
	TypeUUID:      "UUID",
	TypeBytes:     "Bytes",
}

// String returns the canonical short type name used in spec strings.
func (t DataType) String() string {
	if t < 0 || int(t) >= len(dataTypeNames) {
		return fmt.Sprintf("DataType(%d)", int(t))
	}
	return dataTypeNames[t]
}

// IsTemporal reports whether values of the type are points in time.
func (t DataType) IsTemporal() bool {
	return t == TypeDate || t == TypeTimestamp
}

// IsNumeric reports whether values of the type are numbers.
func (t DataType) IsNumeric() bool {
	switch t {
	case TypeInteger, TypeLong, TypeFloat, TypeDouble:
		return true
	}
	return false
}

// DataTypes returns every simple data type in declaration order.
func DataTypes() []DataType {
	out := make([]DataType, len(dataTypeNames))
	for i := range dataTypeNames {
		out[i] = DataType(i)
	}
	return out
}

// GeometryType is the declared shape of a geometry attribute.
type GeometryType int

const (
	GeomPoint GeometryType = iota
	GeomLineString
	GeomPolygon
	GeomMultiPoint
	GeomMultiLineString
	GeomMultiPolygon
	GeomCollection
	GeomGeometry
)

var geometryTypeNames = [...]string{
	GeomPoint:           "Point",
	GeomLineString:      "LineString",
	GeomPolygon:         "Polygon",
	GeomMultiPoint:      "MultiPoint",
	GeomMultiLineString: "MultiLineString",
	GeomMultiPolygon:    "MultiPolygon",
	GeomCollection:      "GeometryCollection",
	GeomGeometry:        "Geometry",
}

func (g GeometryType) String() string {
	if g < 0 || int(g) >= len(geometryTypeNames) {
		return fmt.Sprintf("GeometryType(%d)", int(g))
	}
	return geometryTypeNames[g]
}

// GeometryTypes returns every geometry type in declaration order.
func GeometryTypes() []GeometryType {
	out := make([]GeometryType, len(geometryTypeNames))
	for i := range geometryTypeNames {
		out[i] = GeometryType(i)
	}
	return out
}

// IndexCoverage governs secondary-index participation of an attribute.
type IndexCoverage int

const (
	IndexNone IndexCoverage = iota
	IndexJoin
	IndexFull
)

func (c IndexCoverage) String() string {
	switch c {
	case IndexJoin:
		return "join"
	case IndexFull:
		return "full"
	default:
		return "none"
	}
}

// ParseIndexCoverage accepts the enum names as well as the legacy boolean
// forms (true/1 for full, false/0 for none).
func ParseIndexCoverage(s string) (IndexCoverage, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "none", "false", "0":
		return IndexNone, nil
	case "join":
		return IndexJoin, nil
	case "full", "true", "1":
		return IndexFull, nil
	}
	return IndexNone, fmt.Errorf("invalid index coverage %q", s)
}

// Cardinality is a query-planning hint about value distinctness.
type Cardinality int

const (
	CardinalityUnknown Cardinality = iota
	CardinalityLow
	CardinalityHigh
)

func (c Cardinality) String() string {
	switch c {
	case CardinalityLow:
		return "low"
	case CardinalityHigh:
		return "high"
	default:
		return "unknown"
	}
}

// ParseCardinality parses unknown, low or high, case-insensitively.
func ParseCardinality(s string) (Cardinality, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "unknown":
		return CardinalityUnknown, nil
	case "low":
		return CardinalityLow, nil
	case "high":
		return CardinalityHigh, nil
	}
	return CardinalityUnknown, fmt.Errorf("invalid cardinality %q", s)
}

// Spatial reference identifiers accepted by feature types.
const (
	SRIDWGS84 = 4326
	SRIDUnset = -1
)
