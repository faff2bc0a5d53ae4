// Package extract maps feature records onto normalized point tuples
// according to a field-role configuration.
package extract

import (
	"fmt"

	"github.com/paulmach/orb"

	apperrors "github.com/jittakal/geobin/internal/errors"
	"github.com/jittakal/geobin/internal/featuretype"
	"github.com/jittakal/geobin/pkg/feature"
	"github.com/jittakal/geobin/pkg/schema"
	"github.com/jittakal/geobin/pkg/track"
)

// IDField selects the record identifier as the track id.
const IDField = "id"

// Roles assigns feature attributes to tuple fields.
type Roles struct {
	// DtgField names the temporal attribute. Empty uses the schema default.
	DtgField string
	// TrackIDField names the track attribute, or IDField for the record id.
	TrackIDField string
	// LabelField names an attribute carried as the 64-bit label.
	LabelField string
	// LatField and LonField override geometry-derived coordinates.
	LatField  string
	LonField  string
	AxisOrder track.AxisOrder
}

// Labeled reports whether tuples carry a label.
func (r Roles) Labeled() bool { return r.LabelField != "" }

// Extractor converts records of one feature type into tuples. It holds no
// mutable state and is safe for concurrent use.
type Extractor struct {
	roles     Roles
	line      bool
	dtg       string
	trackIsID bool
}

// New validates roles against ft. Every configuration problem is reported
// here, before any record is read.
func New(ft *featuretype.FeatureType, roles Roles) (*Extractor, error) {
	e := &Extractor{roles: roles, line: ft.IsLine()}

	dtg, err := resolveDtg(ft, roles.DtgField, e.line)
	if err != nil {
		return nil, err
	}
	e.dtg = dtg

	if (roles.LatField == "") != (roles.LonField == "") {
		return nil, &apperrors.ValidationError{Field: roles.LatField + roles.LonField, Reason: "lat and lon fields must be configured together"}
	}
	if roles.LatField != "" {
		if e.line {
			return nil, &apperrors.ValidationError{Field: roles.LatField, Reason: "explicit lat/lon fields are not supported for line geometries"}
		}
		for _, name := range []string{roles.LatField, roles.LonField} {
			if err := requireSimple(ft, name, "coordinate", func(a schema.Attribute) bool {
				return a.Type.IsNumeric() || a.Type == schema.TypeString
			}); err != nil {
				return nil, err
			}
		}
	} else if _, ok := ft.DefaultGeometry(); !ok {
		return nil, &apperrors.ValidationError{Field: "geometry", Reason: "schema has no geometry and no lat/lon fields are configured", Err: apperrors.ErrFieldNotFound}
	}

	switch roles.TrackIDField {
	case "":
	case IDField:
		e.trackIsID = true
	default:
		if err := requireSimple(ft, roles.TrackIDField, "track id", func(schema.Attribute) bool { return true }); err != nil {
			return nil, err
		}
	}

	if roles.LabelField != "" {
		if err := requireSimple(ft, roles.LabelField, "label", func(a schema.Attribute) bool {
			return a.Type == schema.TypeInteger || a.Type == schema.TypeLong || a.Type == schema.TypeString
		}); err != nil {
			return nil, err
		}
	}

	return e, nil
}

func resolveDtg(ft *featuretype.FeatureType, name string, line bool) (string, error) {
	if name == "" {
		if a, ok := ft.DefaultTemporal(); ok && (a.IsTemporalList() == line) {
			return a.Name, nil
		}
		if line {
			for _, a := range ft.Attributes() {
				if a.IsTemporalList() {
					return a.Name, nil
				}
			}
		}
		return "", &apperrors.ValidationError{Field: "dtg", Reason: "no dtg field configured and the schema has no default date", Err: apperrors.ErrFieldNotFound}
	}

	a, ok := ft.Attribute(name)
	if !ok {
		return "", &apperrors.ValidationError{Field: name, Reason: "dtg field does not exist", Err: apperrors.ErrFieldNotFound}
	}
	if line && !a.IsTemporalList() {
		return "", &apperrors.ValidationError{Field: name, Reason: "dtg field of a line schema must be List[Date] or List[Timestamp]", Err: apperrors.ErrFieldType}
	}
	if !line && !a.IsTemporal() {
		return "", &apperrors.ValidationError{Field: name, Reason: "dtg field must be Date or Timestamp", Err: apperrors.ErrFieldType}
	}
	return name, nil
}

func requireSimple(ft *featuretype.FeatureType, name, role string, accept func(schema.Attribute) bool) error {
	a, ok := ft.Attribute(name)
	if !ok {
		return &apperrors.ValidationError{Field: name, Reason: role + " field does not exist", Err: apperrors.ErrFieldNotFound}
	}
	if a.Kind != schema.KindSimple || !accept(a) {
		return &apperrors.ValidationError{Field: name, Reason: fmt.Sprintf("%s field cannot be of type %s", role, attributeTypeName(a)), Err: apperrors.ErrFieldType}
	}
	return nil
}

func attributeTypeName(a schema.Attribute) string {
	switch a.Kind {
	case schema.KindGeometry:
		return a.GeometryType.String()
	case schema.KindList:
		return "List[" + a.ElementType.String() + "]"
	case schema.KindMap:
		return "Map[" + a.KeyType.String() + "," + a.ValueType.String() + "]"
	}
	return a.Type.String()
}

// IsLine reports whether records expand into one tuple per vertex.
func (e *Extractor) IsLine() bool { return e.line }

// Roles returns the validated role configuration.
func (e *Extractor) Roles() Roles { return e.roles }

// Extract returns the tuples for one record. A record that cannot be
// converted yields a SkippedRecordError.
func (e *Extractor) Extract(f feature.Feature) ([]track.PointTuple, error) {
	if e.line {
		return e.ExtractLine(f)
	}
	t, err := e.ExtractPoint(f)
	if err != nil {
		return nil, err
	}
	return []track.PointTuple{t}, nil
}

// ExtractPoint produces the single tuple of a point-schema record.
func (e *Extractor) ExtractPoint(f feature.Feature) (track.PointTuple, error) {
	var t track.PointTuple
	var err error

	if e.roles.LatField != "" {
		lat, err := e.number(f, e.roles.LatField)
		if err != nil {
			return t, err
		}
		lon, err := e.number(f, e.roles.LonField)
		if err != nil {
			return t, err
		}
		t.Lat, t.Lon = float32(lat), float32(lon)
	} else {
		p, ok := interiorPoint(f.Geometry())
		if !ok {
			return t, skipped(f, "record has no geometry")
		}
		t.Lat, t.Lon = e.latLon(p)
	}

	v, _ := f.Attribute(e.dtg)
	if t.Dtg, err = toMillis(v); err != nil {
		return t, skipped(f, fmt.Sprintf("field %s: %v", e.dtg, err))
	}
	return t, e.fillTrackAndLabel(f, &t)
}

// ExtractLine produces one tuple per vertex of a line-schema record, paired
// with the record's per-vertex date list.
func (e *Extractor) ExtractLine(f feature.Feature) ([]track.PointTuple, error) {
	var verts []orb.Point
	switch g := f.Geometry().(type) {
	case orb.LineString:
		verts = g
	case orb.MultiLineString:
		verts = vertices(g, nil)
	default:
		return nil, skipped(f, fmt.Sprintf("expected a line geometry, got %T", f.Geometry()))
	}

	raw, _ := f.Attribute(e.dtg)
	dates, err := toList(raw)
	if err != nil {
		return nil, skipped(f, fmt.Sprintf("field %s: %v", e.dtg, err))
	}
	if len(dates) != len(verts) {
		return nil, skipped(f, fmt.Sprintf("line has %d vertices but %s has %d dates", len(verts), e.dtg, len(dates)))
	}

	var base track.PointTuple
	if err := e.fillTrackAndLabel(f, &base); err != nil {
		return nil, err
	}

	out := make([]track.PointTuple, len(verts))
	for i, p := range verts {
		t := base
		t.Lat, t.Lon = e.latLon(p)
		if t.Dtg, err = toMillis(dates[i]); err != nil {
			return nil, skipped(f, fmt.Sprintf("field %s[%d]: %v", e.dtg, i, err))
		}
		out[i] = t
	}
	return out, nil
}

func (e *Extractor) latLon(p orb.Point) (float32, float32) {
	if e.roles.AxisOrder == track.LatLon {
		return float32(p.X()), float32(p.Y())
	}
	return float32(p.Y()), float32(p.X())
}

func (e *Extractor) number(f feature.Feature, name string) (float64, error) {
	v, ok := f.Attribute(name)
	if !ok || v == nil {
		return 0, skipped(f, fmt.Sprintf("field %s is missing", name))
	}
	n, err := toFloat(v)
	if err != nil {
		return 0, skipped(f, fmt.Sprintf("field %s: %v", name, err))
	}
	return n, nil
}

func (e *Extractor) fillTrackAndLabel(f feature.Feature, t *track.PointTuple) error {
	if e.trackIsID {
		id := f.ID()
		t.TrackID = &id
	} else if e.roles.TrackIDField != "" {
		if v, ok := f.Attribute(e.roles.TrackIDField); ok && v != nil {
			id := toString(v)
			t.TrackID = &id
		}
	}

	if e.roles.LabelField != "" {
		if v, ok := f.Attribute(e.roles.LabelField); ok && v != nil {
			label, err := toInt64(v)
			if err != nil {
				return skipped(f, fmt.Sprintf("field %s: %v", e.roles.LabelField, err))
			}
			t.Label = &label
		}
	}
	return nil
}

func skipped(f feature.Feature, reason string) error {
	return &apperrors.SkippedRecordError{FeatureID: f.ID(), Reason: reason}
}
