package schema

import (
	"strconv"
	"strings"
)

// AttributeKind identifies which AttributeSpec variant an attribute came from.
type AttributeKind int

const (
	KindSimple AttributeKind = iota
	KindGeometry
	KindList
	KindMap
)

func (k AttributeKind) String() string {
	switch k {
	case KindGeometry:
		return "geometry"
	case KindList:
		return "list"
	case KindMap:
		return "map"
	default:
		return "simple"
	}
}

// Attribute is the built descriptor of a single attribute. Only the fields
// relevant to Kind are meaningful.
type Attribute struct {
	Name string
	Kind AttributeKind

	// Type is the scalar type of a simple attribute.
	Type DataType
	// ElementType is the element type of a list attribute.
	ElementType DataType
	// KeyType and ValueType describe a map attribute.
	KeyType   DataType
	ValueType DataType

	GeometryType GeometryType
	SRID         int
	Default      bool

	Index       IndexCoverage
	IndexValue  bool
	Cardinality Cardinality
}

// IsGeometry reports whether the attribute holds a geometry.
func (a Attribute) IsGeometry() bool { return a.Kind == KindGeometry }

// IsTemporal reports whether the attribute is a simple Date or Timestamp.
func (a Attribute) IsTemporal() bool {
	return a.Kind == KindSimple && a.Type.IsTemporal()
}

// IsTemporalList reports whether the attribute is a list of Date or Timestamp.
func (a Attribute) IsTemporalList() bool {
	return a.Kind == KindList && a.ElementType.IsTemporal()
}

// AttributeSpec is the parsed form of one attribute declaration. The variant
// set is closed: SimpleSpec, GeometrySpec, ListSpec and MapSpec.
type AttributeSpec interface {
	// AttributeName returns the declared attribute name.
	AttributeName() string
	// ToAttribute builds the attribute descriptor.
	ToAttribute() Attribute
	// ToSpec renders the minimal canonical spec text.
	ToSpec() string
	// Clone returns an independent copy of the spec.
	Clone() AttributeSpec

	attributeSpec()
}

// SimpleSpec declares a scalar attribute.
type SimpleSpec struct {
	Name        string
	Type        DataType
	Index       IndexCoverage
	IndexValue  bool
	Cardinality Cardinality
}

func (s SimpleSpec) AttributeName() string { return s.Name }

func (s SimpleSpec) ToAttribute() Attribute {
	return Attribute{
		Name:        s.Name,
		Kind:        KindSimple,
		Type:        s.Type,
		SRID:        SRIDUnset,
		Index:       s.Index,
		IndexValue:  s.IndexValue,
		Cardinality: s.Cardinality,
	}
}

func (s SimpleSpec) ToSpec() string {
	var b strings.Builder
	b.WriteString(s.Name)
	b.WriteByte(':')
	b.WriteString(s.Type.String())
	writeIndexOptions(&b, s.Index, s.IndexValue, s.Cardinality)
	return b.String()
}

func (s SimpleSpec) Clone() AttributeSpec { return s }

func (SimpleSpec) attributeSpec() {}

// GeometrySpec declares a geometry attribute.
type GeometrySpec struct {
	Name      string
	Type      GeometryType
	SRID      int
	IsDefault bool
}

func (s GeometrySpec) AttributeName() string { return s.Name }

func (s GeometrySpec) ToAttribute() Attribute {
	return Attribute{
		Name:         s.Name,
		Kind:         KindGeometry,
		GeometryType: s.Type,
		SRID:         s.SRID,
		Default:      s.IsDefault,
	}
}

func (s GeometrySpec) ToSpec() string {
	var b strings.Builder
	if s.IsDefault {
		b.WriteByte('*')
	}
	b.WriteString(s.Name)
	b.WriteByte(':')
	b.WriteString(s.Type.String())
	b.WriteString(":srid=")
	b.WriteString(strconv.Itoa(s.SRID))
	return b.String()
}

func (s GeometrySpec) Clone() AttributeSpec { return s }

// WithDefault returns a copy with the default-geometry flag set to def.
func (s GeometrySpec) WithDefault(def bool) GeometrySpec {
	s.IsDefault = def
	return s
}

func (GeometrySpec) attributeSpec() {}

// ListSpec declares a list attribute. Lists never store index values.
type ListSpec struct {
	Name        string
	ElementType DataType
	Index       IndexCoverage
	Cardinality Cardinality
}

func (s ListSpec) AttributeName() string { return s.Name }

func (s ListSpec) ToAttribute() Attribute {
	return Attribute{
		Name:        s.Name,
		Kind:        KindList,
		ElementType: s.ElementType,
		SRID:        SRIDUnset,
		Index:       s.Index,
		Cardinality: s.Cardinality,
	}
}

func (s ListSpec) ToSpec() string {
	var b strings.Builder
	b.WriteString(s.Name)
	b.WriteString(":List[")
	b.WriteString(s.ElementType.String())
	b.WriteByte(']')
	writeIndexOptions(&b, s.Index, false, s.Cardinality)
	return b.String()
}

func (s ListSpec) Clone() AttributeSpec { return s }

func (ListSpec) attributeSpec() {}

// MapSpec declares a map attribute. Maps never store index values.
type MapSpec struct {
	Name        string
	KeyType     DataType
	ValueType   DataType
	Index       IndexCoverage
	Cardinality Cardinality
}

func (s MapSpec) AttributeName() string { return s.Name }

func (s MapSpec) ToAttribute() Attribute {
	return Attribute{
		Name:        s.Name,
		Kind:        KindMap,
		KeyType:     s.KeyType,
		ValueType:   s.ValueType,
		SRID:        SRIDUnset,
		Index:       s.Index,
		Cardinality: s.Cardinality,
	}
}

func (s MapSpec) ToSpec() string {
	var b strings.Builder
	b.WriteString(s.Name)
	b.WriteString(":Map[")
	b.WriteString(s.KeyType.String())
	b.WriteByte(',')
	b.WriteString(s.ValueType.String())
	b.WriteByte(']')
	writeIndexOptions(&b, s.Index, false, s.Cardinality)
	return b.String()
}

func (s MapSpec) Clone() AttributeSpec { return s }

func (MapSpec) attributeSpec() {}

// SpecFromAttribute converts a descriptor back into its spec variant.
func SpecFromAttribute(a Attribute) AttributeSpec {
	switch a.Kind {
	case KindGeometry:
		return GeometrySpec{Name: a.Name, Type: a.GeometryType, SRID: a.SRID, IsDefault: a.Default}
	case KindList:
		return ListSpec{Name: a.Name, ElementType: a.ElementType, Index: a.Index, Cardinality: a.Cardinality}
	case KindMap:
		return MapSpec{Name: a.Name, KeyType: a.KeyType, ValueType: a.ValueType, Index: a.Index, Cardinality: a.Cardinality}
	default:
		return SimpleSpec{Name: a.Name, Type: a.Type, Index: a.Index, IndexValue: a.IndexValue, Cardinality: a.Cardinality}
	}
}

// writeIndexOptions appends only the options that differ from defaults.
func writeIndexOptions(b *strings.Builder, index IndexCoverage, indexValue bool, card Cardinality) {
	if index != IndexNone {
		b.WriteString(":index=")
		b.WriteString(index.String())
	}
	if indexValue {
		b.WriteString(":index-value=true")
	}
	if card != CardinalityUnknown {
		b.WriteString(":cardinality=")
		b.WriteString(card.String())
	}
}
