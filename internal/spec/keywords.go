package spec

import (
	"sort"

	"github.com/jittakal/geobin/pkg/schema"
)

type keywordKind int

const (
	kwSimple keywordKind = iota
	kwGeometry
	kwList
	kwMap
)

type keyword struct {
	text     string
	kind     keywordKind
	dataType schema.DataType
	geomType schema.GeometryType
}

// typeKeywords is sorted longest first so that a type name is never matched
// by one of its own prefixes. Read-only after init.
var typeKeywords = buildTypeKeywords()

// elementKeywords holds the simple types only, for List and Map parameters.
var elementKeywords = filterKeywords(typeKeywords, kwSimple)

func buildTypeKeywords() []keyword {
	simple := map[schema.DataType][]string{
		schema.TypeString:    {"String", "string", "java.lang.String"},
		schema.TypeInteger:   {"Integer", "Int", "int", "java.lang.Integer", "0"},
		schema.TypeLong:      {"Long", "long", "java.lang.Long"},
		schema.TypeFloat:     {"Float", "float", "java.lang.Float"},
		schema.TypeDouble:    {"Double", "double", "java.lang.Double", "0.0"},
		schema.TypeBoolean:   {"Boolean", "boolean", "Bool", "bool", "java.lang.Boolean", "true", "false"},
		schema.TypeDate:      {"Date", "java.util.Date"},
		schema.TypeTimestamp: {"Timestamp", "java.sql.Timestamp"},
		schema.TypeUUID:      {"UUID", "java.util.UUID"},
		schema.TypeBytes:     {"Bytes", "byte[]"},
	}

	var out []keyword
	for dt, names := range simple {
		for _, n := range names {
			out = append(out, keyword{text: n, kind: kwSimple, dataType: dt})
		}
	}
	for _, gt := range schema.GeometryTypes() {
		out = append(out, keyword{text: gt.String(), kind: kwGeometry, geomType: gt})
	}
	out = append(out,
		keyword{text: "List", kind: kwList},
		keyword{text: "java.util.List", kind: kwList},
		keyword{text: "Map", kind: kwMap},
		keyword{text: "java.util.Map", kind: kwMap},
	)

	sort.Slice(out, func(i, j int) bool {
		if len(out[i].text) != len(out[j].text) {
			return len(out[i].text) > len(out[j].text)
		}
		return out[i].text < out[j].text
	})
	return out
}

func filterKeywords(in []keyword, kind keywordKind) []keyword {
	var out []keyword
	for _, k := range in {
		if k.kind == kind {
			out = append(out, k)
		}
	}
	return out
}
