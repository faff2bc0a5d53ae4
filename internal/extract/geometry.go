package extract

import (
	"math"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/planar"
)

// interiorPoint returns a representative point of g. Points are returned
// as-is; areal geometries use their centroid when it falls inside, and every
// other case snaps to the vertex nearest the centroid so the result always
// lies on the geometry.
func interiorPoint(g orb.Geometry) (orb.Point, bool) {
	switch geom := g.(type) {
	case nil:
		return orb.Point{}, false
	case orb.Point:
		return geom, true
	case orb.Bound:
		return geom.Center(), true
	}

	verts := vertices(g, nil)
	if len(verts) == 0 {
		return orb.Point{}, false
	}
	centroid, _ := planar.CentroidArea(g)

	switch geom := g.(type) {
	case orb.Polygon:
		if planar.PolygonContains(geom, centroid) {
			return centroid, true
		}
	case orb.MultiPolygon:
		if planar.MultiPolygonContains(geom, centroid) {
			return centroid, true
		}
	}
	return nearest(verts, centroid), true
}

func nearest(points []orb.Point, target orb.Point) orb.Point {
	best, bestDist := points[0], math.Inf(1)
	for _, p := range points {
		if d := planar.DistanceSquared(p, target); d < bestDist {
			best, bestDist = p, d
		}
	}
	return best
}

// vertices appends every coordinate of g to dst in order.
func vertices(g orb.Geometry, dst []orb.Point) []orb.Point {
	switch geom := g.(type) {
	case orb.Point:
		dst = append(dst, geom)
	case orb.MultiPoint:
		dst = append(dst, geom...)
	case orb.LineString:
		dst = append(dst, geom...)
	case orb.Ring:
		dst = append(dst, geom...)
	case orb.MultiLineString:
		for _, ls := range geom {
			dst = append(dst, ls...)
		}
	case orb.Polygon:
		for _, r := range geom {
			dst = append(dst, r...)
		}
	case orb.MultiPolygon:
		for _, p := range geom {
			dst = vertices(p, dst)
		}
	case orb.Collection:
		for _, c := range geom {
			dst = vertices(c, dst)
		}
	case orb.Bound:
		dst = vertices(geom.ToPolygon(), dst)
	}
	return dst
}
