// Package feature defines the record model consumed by the encoder: a
// geospatial feature with an identifier, named attributes and a geometry,
// plus the source and skip-publisher collaborators around it.
package feature

import (
	"context"
	"fmt"
	"io"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"
)

// Feature is a single geospatial record.
type Feature interface {
	// ID returns the record identifier.
	ID() string

	// Attribute returns the named attribute value and whether it is present.
	Attribute(name string) (any, bool)

	// Geometry returns the record geometry, or nil.
	Geometry() orb.Geometry
}

// Source yields features one at a time.
type Source interface {
	// Next returns the next feature, or io.EOF when the source is exhausted.
	Next(ctx context.Context) (Feature, error)

	// Close releases resources held by the source.
	Close() error
}

// SkipPublisher receives records dropped by the encoder.
type SkipPublisher interface {
	// Publish sends a skipped feature along with the reason it was dropped.
	Publish(ctx context.Context, f Feature, reason string) error

	// Close closes the publisher and releases resources.
	Close() error
}

// SimpleFeature is a map-backed Feature.
type SimpleFeature struct {
	FID        string
	Attributes map[string]any
	Geom       orb.Geometry
}

// Ensure implementation satisfies interface at compile time.
var _ Feature = (*SimpleFeature)(nil)

func (f *SimpleFeature) ID() string { return f.FID }

func (f *SimpleFeature) Attribute(name string) (any, bool) {
	v, ok := f.Attributes[name]
	return v, ok
}

func (f *SimpleFeature) Geometry() orb.Geometry { return f.Geom }

// FromGeoJSON adapts a GeoJSON feature. Numeric identifiers are formatted
// with %v.
func FromGeoJSON(g *geojson.Feature) *SimpleFeature {
	id := ""
	if g.ID != nil {
		id = fmt.Sprintf("%v", g.ID)
	}
	return &SimpleFeature{FID: id, Attributes: g.Properties, Geom: g.Geometry}
}

// ToGeoJSON converts any Feature into a GeoJSON feature with the given
// attribute names as properties.
func ToGeoJSON(f Feature, names []string) *geojson.Feature {
	g := geojson.NewFeature(f.Geometry())
	g.ID = f.ID()
	for _, n := range names {
		if v, ok := f.Attribute(n); ok {
			g.Properties[n] = v
		}
	}
	return g
}

// SliceSource serves features from memory.
type SliceSource struct {
	features []Feature
	pos      int
}

// NewSliceSource creates a source over the given features.
func NewSliceSource(features ...Feature) *SliceSource {
	return &SliceSource{features: features}
}

func (s *SliceSource) Next(ctx context.Context) (Feature, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if s.pos >= len(s.features) {
		return nil, io.EOF
	}
	f := s.features[s.pos]
	s.pos++
	return f, nil
}

func (s *SliceSource) Close() error { return nil }
