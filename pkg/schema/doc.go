// Package schema defines the attribute model of a feature type: the closed
// set of attribute spec variants, their data and geometry types, indexing
// hints and schema-level feature options.
//
// Specs are plain values. Each variant renders its own canonical text with
// ToSpec and converts into an Attribute descriptor with ToAttribute:
//
//	geom := schema.GeometrySpec{Name: "geom", Type: schema.GeomPoint, SRID: 4326, IsDefault: true}
//	geom.ToSpec() // "*geom:Point:srid=4326"
//
// List and map attributes never store index values; their specs have no
// field for it.
package schema
