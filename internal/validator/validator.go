// Package validator checks records and message envelopes before they reach
// the tuple extractor.
package validator

import (
	"fmt"
	"strings"

	cloudevents "github.com/cloudevents/sdk-go/v2"
	"github.com/paulmach/orb"

	"github.com/jittakal/geobin/internal/errors"
	"github.com/jittakal/geobin/internal/featuretype"
	"github.com/jittakal/geobin/pkg/feature"
	"github.com/jittakal/geobin/pkg/schema"
)

// RecordValidator checks that a record's geometry conforms to the schema's
// default geometry attribute.
type RecordValidator struct {
	geomType        schema.GeometryType
	hasGeometry     bool
	requireGeometry bool
}

// NewRecordValidator creates a validator for records of ft. When
// requireGeometry is false, records without a geometry pass (coordinates
// come from attributes instead).
func NewRecordValidator(ft *featuretype.FeatureType, requireGeometry bool) *RecordValidator {
	v := &RecordValidator{requireGeometry: requireGeometry}
	if a, ok := ft.DefaultGeometry(); ok {
		v.geomType = a.GeometryType
		v.hasGeometry = true
	}
	return v
}

// Validate returns a SkippedRecordError when f cannot be encoded.
func (v *RecordValidator) Validate(f feature.Feature) error {
	g := f.Geometry()
	if g == nil {
		if v.requireGeometry {
			return &errors.SkippedRecordError{FeatureID: f.ID(), Reason: "record has no geometry"}
		}
		return nil
	}
	if !v.hasGeometry {
		return nil
	}
	if !Compatible(v.geomType, g) {
		return &errors.SkippedRecordError{
			FeatureID: f.ID(),
			Reason:    fmt.Sprintf("geometry %s does not match schema type %s", g.GeoJSONType(), v.geomType),
		}
	}
	return nil
}

// Compatible reports whether g may be stored in an attribute of type t.
// Geometry accepts anything and a LineString attribute also accepts a
// MultiLineString, whose parts are walked in order.
func Compatible(t schema.GeometryType, g orb.Geometry) bool {
	switch t {
	case schema.GeomGeometry:
		return true
	case schema.GeomPoint:
		_, ok := g.(orb.Point)
		return ok
	case schema.GeomLineString:
		switch g.(type) {
		case orb.LineString, orb.MultiLineString:
			return true
		}
		return false
	case schema.GeomPolygon:
		switch g.(type) {
		case orb.Polygon, orb.Bound:
			return true
		}
		return false
	case schema.GeomMultiPoint:
		_, ok := g.(orb.MultiPoint)
		return ok
	case schema.GeomMultiLineString:
		_, ok := g.(orb.MultiLineString)
		return ok
	case schema.GeomMultiPolygon:
		_, ok := g.(orb.MultiPolygon)
		return ok
	case schema.GeomCollection:
		_, ok := g.(orb.Collection)
		return ok
	}
	return false
}

// EnvelopeValidator validates CloudEvents carrying GeoJSON features.
type EnvelopeValidator struct{}

// NewEnvelopeValidator creates a new CloudEvents envelope validator.
func NewEnvelopeValidator() *EnvelopeValidator {
	return &EnvelopeValidator{}
}

// Validate checks the required CloudEvents attributes and that the payload
// is declared as JSON.
func (v *EnvelopeValidator) Validate(e *cloudevents.Event) error {
	if e.ID() == "" {
		return &errors.ValidationError{Field: "id", Reason: "required field is missing"}
	}
	if e.Source() == "" {
		return &errors.ValidationError{Field: "source", Reason: "required field is missing"}
	}
	if e.Type() == "" {
		return &errors.ValidationError{Field: "type", Reason: "required field is missing"}
	}
	if sv := e.SpecVersion(); sv != cloudevents.VersionV1 && sv != cloudevents.VersionV03 {
		return &errors.ValidationError{
			Field:  "specversion",
			Reason: fmt.Sprintf("unsupported version: %s (supported: 1.0, 0.3)", sv),
		}
	}
	if ct := e.DataContentType(); ct != "" && !strings.Contains(ct, "json") {
		return &errors.ValidationError{
			Field:  "datacontenttype",
			Reason: fmt.Sprintf("payload must be JSON, got %s", ct),
		}
	}
	if len(e.Data()) == 0 {
		return &errors.ValidationError{Field: "data", Reason: "event carries no feature"}
	}
	return nil
}
