package featuretype

import (
	"fmt"

	"github.com/jittakal/geobin/internal/config/dto"
	apperrors "github.com/jittakal/geobin/internal/errors"
	"github.com/jittakal/geobin/internal/spec"
	"github.com/jittakal/geobin/pkg/schema"
)

// FromConfig builds a descriptor from a structured schema configuration.
func FromConfig(cfg dto.FeatureTypeConfig) (*FeatureType, error) {
	if err := cfg.Validate(); err != nil {
		return nil, &apperrors.ValidationError{Field: "schema", Reason: err.Error()}
	}

	var opts []schema.FeatureOption
	for _, ud := range cfg.UserData {
		opts = append(opts, schema.UserData{Key: ud.Key, Value: ud.Value})
	}
	if cfg.DtgField != "" {
		opts = append(opts, schema.UserData{Key: schema.DefaultDtgKey, Value: cfg.DtgField})
	}

	if cfg.Spec != "" {
		res, err := spec.Parse(cfg.Spec)
		if err != nil {
			return nil, err
		}
		return Build(cfg.TypeName, res.Attributes, append(res.Options, opts...)...)
	}

	fields := cfg.FieldList()
	specs := make([]schema.AttributeSpec, 0, len(fields))
	for _, f := range fields {
		s, err := fieldSpec(f)
		if err != nil {
			return nil, err
		}
		specs = append(specs, s)
	}
	return Build(cfg.TypeName, specs, opts...)
}

// fieldSpec parses the field's type token and applies its structured options.
func fieldSpec(f dto.FieldConfig) (schema.AttributeSpec, error) {
	parsed, err := spec.ParseAttribute(f.Name + ":" + f.Type)
	if err != nil {
		return nil, err
	}

	index, err := schema.ParseIndexCoverage(f.Index)
	if err != nil {
		return nil, &apperrors.ValidationError{Field: f.Name, Reason: err.Error()}
	}
	card, err := schema.ParseCardinality(f.Cardinality)
	if err != nil {
		return nil, &apperrors.ValidationError{Field: f.Name, Reason: err.Error()}
	}

	geomOnly := func(opt string) error {
		return &apperrors.ValidationError{Field: f.Name, Reason: fmt.Sprintf("%s applies to geometry attributes only", opt)}
	}

	switch s := parsed.(type) {
	case schema.GeometrySpec:
		if f.SRID != nil {
			s.SRID = *f.SRID
		}
		s.IsDefault = f.Default
		return s, nil
	case schema.SimpleSpec:
		if f.SRID != nil {
			return nil, geomOnly("srid")
		}
		if f.Default {
			return nil, geomOnly("default")
		}
		s.Index, s.IndexValue, s.Cardinality = index, f.IndexValue, card
		return s, nil
	case schema.ListSpec:
		if f.SRID != nil || f.Default {
			return nil, geomOnly("srid and default")
		}
		s.Index, s.Cardinality = index, card
		return s, nil
	case schema.MapSpec:
		if f.SRID != nil || f.Default {
			return nil, geomOnly("srid and default")
		}
		s.Index, s.Cardinality = index, card
		return s, nil
	}
	return nil, &apperrors.ValidationError{Field: f.Name, Reason: fmt.Sprintf("unsupported attribute %T", parsed)}
}
