// Package geo converts skid trails to and from simplefeatures geometries.
// Trails keep the host's world axes: X and Z span the ground plane, Y is height.
package geo

import (
	"errors"
	"fmt"

	"github.com/EllipseGrip/extension/pkg/core"
	geom "github.com/peterstace/simplefeatures/geom"
)

// ErrTooFewPoints is returned when a trail has fewer than two points
var ErrTooFewPoints = errors.New("trail needs at least 2 points")

// ErrNotLineString is returned when a stored geometry is not a line string
var ErrNotLineString = errors.New("geometry is not a line string")

// PointFromVector creates an XYZ point from a world position.
func PointFromVector(v core.Vector3) geom.Point {
	return geom.NewPoint(
		geom.Coordinates{
			XY:   geom.XY{X: v.X, Y: v.Y},
			Z:    v.Z,
			Type: geom.DimXYZ,
		},
	)
}

// VectorFromPoint is the inverse of PointFromVector. Empty points map to the zero vector.
func VectorFromPoint(p geom.Point) core.Vector3 {
	c, ok := p.Coordinates()
	if !ok {
		return core.Vector3{}
	}
	return core.Vector3{X: c.XY.X, Y: c.XY.Y, Z: c.Z}
}

// TrailLineString builds an XYZ line string from the trail's contact points.
func TrailLineString(points []core.SkidPoint) (geom.LineString, error) {
	if len(points) < 2 {
		return geom.LineString{}, fmt.Errorf("%w, got %d", ErrTooFewPoints, len(points))
	}

	flat := make([]float64, 0, len(points)*3)
	for _, p := range points {
		flat = append(flat, p.Position.X, p.Position.Y, p.Position.Z)
	}
	return geom.NewLineString(geom.NewSequence(flat, geom.DimXYZ)), nil
}

// TrailPositions reads the contact points back out of a line string.
func TrailPositions(ls geom.LineString) []core.Vector3 {
	seq := ls.Coordinates()
	if seq.Length() == 0 {
		return nil
	}
	out := make([]core.Vector3, seq.Length())
	for i := 0; i < seq.Length(); i++ {
		c := seq.Get(i)
		out[i] = core.Vector3{X: c.X, Y: c.Y, Z: c.Z}
	}
	return out
}

// TrailWKT renders a trail as WKT, for logs and exports.
func TrailWKT(points []core.SkidPoint) (string, error) {
	ls, err := TrailLineString(points)
	if err != nil {
		return "", err
	}
	return ls.AsText(), nil
}

// ParseTrailWKT parses a WKT line string back into positions.
func ParseTrailWKT(wkt string) ([]core.Vector3, error) {
	g, err := geom.UnmarshalWKT(wkt)
	if err != nil {
		return nil, fmt.Errorf("failed to parse trail WKT: %w", err)
	}
	ls, ok := g.AsLineString()
	if !ok {
		return nil, ErrNotLineString
	}
	return TrailPositions(ls), nil
}

// TrailLength returns the path length of the trail over the ground and height axes.
func TrailLength(points []core.SkidPoint) float64 {
	var total float64
	for i := 1; i < len(points); i++ {
		total += points[i].Position.Sub(points[i-1].Position).Length()
	}
	return total
}
