// Package featuretype builds immutable feature type descriptors from parsed
// attribute specs, spec strings or structured configuration.
package featuretype

import (
	"fmt"
	"strings"

	apperrors "github.com/jittakal/geobin/internal/errors"
	"github.com/jittakal/geobin/internal/spec"
	"github.com/jittakal/geobin/pkg/schema"
)

// FeatureType is a read-only schema descriptor.
type FeatureType struct {
	namespace  string
	name       string
	specs      []schema.AttributeSpec
	attributes []schema.Attribute
	byName     map[string]int
	geomIdx    int
	dtgIdx     int
	options    []schema.FeatureOption
	userData   map[string]string
}

// Build assembles a descriptor. typeName is "namespace:name" or "name".
func Build(typeName string, specs []schema.AttributeSpec, opts ...schema.FeatureOption) (*FeatureType, error) {
	ns, name := SplitTypeName(typeName)
	if name == "" {
		return nil, &apperrors.ValidationError{Field: "type-name", Reason: "type name is required"}
	}

	ft := &FeatureType{
		namespace: ns,
		name:      name,
		byName:    make(map[string]int, len(specs)),
		geomIdx:   -1,
		dtgIdx:    -1,
		userData:  map[string]string{},
	}

	explicitGeom := -1
	for i, s := range specs {
		attrName := s.AttributeName()
		if _, dup := ft.byName[attrName]; dup {
			return nil, &apperrors.ValidationError{
				Field:  attrName,
				Reason: fmt.Sprintf("duplicate attribute name %q", attrName),
				Err:    apperrors.ErrDuplicateAttribute,
			}
		}
		ft.byName[attrName] = i

		if g, ok := s.(schema.GeometrySpec); ok {
			if g.SRID != schema.SRIDWGS84 && g.SRID != schema.SRIDUnset {
				return nil, &apperrors.ValidationError{
					Field:  attrName,
					Reason: fmt.Sprintf("srid %d is not supported, use %d or %d", g.SRID, schema.SRIDWGS84, schema.SRIDUnset),
					Err:    apperrors.ErrUnsupportedSRID,
				}
			}
			if g.IsDefault {
				if explicitGeom >= 0 {
					return nil, &apperrors.ValidationError{
						Field:  attrName,
						Reason: fmt.Sprintf("%q and %q are both marked as the default geometry", specs[explicitGeom].AttributeName(), attrName),
					}
				}
				explicitGeom = i
			}
			if ft.geomIdx < 0 {
				ft.geomIdx = i
			}
		}
		ft.specs = append(ft.specs, s.Clone())
	}
	if explicitGeom >= 0 {
		ft.geomIdx = explicitGeom
	}

	// Exactly the selected geometry carries the default flag.
	for i, s := range ft.specs {
		if g, ok := s.(schema.GeometrySpec); ok {
			ft.specs[i] = g.WithDefault(i == ft.geomIdx)
		}
	}
	for _, s := range ft.specs {
		ft.attributes = append(ft.attributes, s.ToAttribute())
	}

	for _, o := range opts {
		switch opt := o.(type) {
		case schema.Splitter:
			ft.options = append(ft.options, opt.Clone())
		case schema.UserData:
			ft.options = append(ft.options, opt)
			ft.userData[opt.Key] = opt.Value
		}
	}

	if err := ft.selectDefaultTemporal(); err != nil {
		return nil, err
	}
	return ft, nil
}

// selectDefaultTemporal honours an explicit geomesa.index.dtg entry, and
// otherwise picks the first simple Date or Timestamp attribute.
func (ft *FeatureType) selectDefaultTemporal() error {
	if dtg, ok := ft.userData[schema.DefaultDtgKey]; ok && dtg != "" {
		i, found := ft.byName[dtg]
		if !found {
			return &apperrors.ValidationError{
				Field:  dtg,
				Reason: fmt.Sprintf("%s names unknown attribute %q", schema.DefaultDtgKey, dtg),
				Err:    apperrors.ErrFieldNotFound,
			}
		}
		if a := ft.attributes[i]; !a.IsTemporal() && !a.IsTemporalList() {
			return &apperrors.ValidationError{
				Field:  dtg,
				Reason: fmt.Sprintf("%s must name a Date or Timestamp attribute", schema.DefaultDtgKey),
				Err:    apperrors.ErrFieldType,
			}
		}
		ft.dtgIdx = i
		return nil
	}
	for i, a := range ft.attributes {
		if a.IsTemporal() {
			ft.dtgIdx = i
			return nil
		}
	}
	return nil
}

// FromSpec parses a spec string and builds the descriptor.
func FromSpec(typeName, text string) (*FeatureType, error) {
	res, err := spec.Parse(text)
	if err != nil {
		return nil, err
	}
	return Build(typeName, res.Attributes, res.Options...)
}

// SplitTypeName splits "namespace:name" into its parts.
func SplitTypeName(typeName string) (namespace, name string) {
	typeName = strings.TrimSpace(typeName)
	if i := strings.LastIndexByte(typeName, ':'); i >= 0 {
		return typeName[:i], typeName[i+1:]
	}
	return "", typeName
}

func (ft *FeatureType) Namespace() string { return ft.namespace }

func (ft *FeatureType) Name() string { return ft.name }

// TypeName returns "namespace:name", or the bare name without a namespace.
func (ft *FeatureType) TypeName() string {
	if ft.namespace == "" {
		return ft.name
	}
	return ft.namespace + ":" + ft.name
}

// Attributes returns a copy of the attribute descriptors in declaration order.
func (ft *FeatureType) Attributes() []schema.Attribute {
	out := make([]schema.Attribute, len(ft.attributes))
	copy(out, ft.attributes)
	return out
}

// AttributeSpecs returns copies of the attribute specs in declaration order.
func (ft *FeatureType) AttributeSpecs() []schema.AttributeSpec {
	out := make([]schema.AttributeSpec, len(ft.specs))
	for i, s := range ft.specs {
		out[i] = s.Clone()
	}
	return out
}

// Attribute looks up an attribute by name.
func (ft *FeatureType) Attribute(name string) (schema.Attribute, bool) {
	i, ok := ft.byName[name]
	if !ok {
		return schema.Attribute{}, false
	}
	return ft.attributes[i], true
}

// IndexOf returns the attribute position, or -1.
func (ft *FeatureType) IndexOf(name string) int {
	if i, ok := ft.byName[name]; ok {
		return i
	}
	return -1
}

// DefaultGeometry returns the default geometry attribute, if any.
func (ft *FeatureType) DefaultGeometry() (schema.Attribute, bool) {
	if ft.geomIdx < 0 {
		return schema.Attribute{}, false
	}
	return ft.attributes[ft.geomIdx], true
}

// DefaultTemporal returns the default temporal attribute, if any.
func (ft *FeatureType) DefaultTemporal() (schema.Attribute, bool) {
	if ft.dtgIdx < 0 {
		return schema.Attribute{}, false
	}
	return ft.attributes[ft.dtgIdx], true
}

// IsLine reports whether the default geometry is a LineString.
func (ft *FeatureType) IsLine() bool {
	g, ok := ft.DefaultGeometry()
	return ok && g.GeometryType == schema.GeomLineString
}

// Options returns copies of the feature options in declaration order.
func (ft *FeatureType) Options() []schema.FeatureOption {
	out := make([]schema.FeatureOption, len(ft.options))
	for i, o := range ft.options {
		if s, ok := o.(schema.Splitter); ok {
			out[i] = s.Clone()
			continue
		}
		out[i] = o
	}
	return out
}

// UserData returns the value of a user-data option.
func (ft *FeatureType) UserData(key string) (string, bool) {
	v, ok := ft.userData[key]
	return v, ok
}

// Spec renders the descriptor as a canonical spec string.
func (ft *FeatureType) Spec() string {
	return spec.Encode(ft.specs, ft.options)
}

func (ft *FeatureType) String() string {
	return ft.TypeName() + "[" + ft.Spec() + "]"
}
