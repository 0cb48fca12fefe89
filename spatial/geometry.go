/*
Copyright © 2024 the Meshdata authors.
This file is part of Meshdata.

Meshdata is free software: you can redistribute it and/or modify
it under the terms of the GNU General Public License as published by
the Free Software Foundation, either version 3 of the License, or
(at your option) any later version.

Meshdata is distributed in the hope that it will be useful,
but WITHOUT ANY WARRANTY; without even the implied warranty of
MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
GNU General Public License for more details.

You should have received a copy of the GNU General Public License
along with Meshdata.  If not, see <http://www.gnu.org/licenses/>.
*/

// Package spatial implements the geometry variants underlying meshdata
// datasets: regular equidistant grids in one, two and three dimensions and
// the unstructured flexible-mesh family, including layered and spectral
// sub-types. Geometries are constructed once per file open and shared
// read-only afterwards.
package spatial

import "github.com/ctessum/geom"

// Geometry is the closed set of geometry variants. Callers branch on
// capability by asserting the narrower interfaces (ElementGeometry,
// PointQuerier) or by type-switching on the concrete variants, never on a
// nil value: a selection that loses its coordinate semantics yields
// GeometryUndefined instead.
type Geometry interface {
	// Projection returns the projection string, e.g. "LONG/LAT" or
	// "NON-UTM". It is carried opaquely; no coordinate transforms are
	// performed.
	Projection() string
}

// ElementGeometry is the capability of geometries with an element topology.
type ElementGeometry interface {
	Geometry

	NElements() int
	// ElementCoordinates returns the center (x, y, z) of each element.
	ElementCoordinates() (x, y, z []float64)
	// ElementsInArea returns the indices of elements whose centers lie
	// inside the area.
	ElementsInArea(a Area) []int
	// Subset derives the sub-geometry covering only the given elements.
	// The result is owned by the caller.
	Subset(elements []int) (Geometry, error)
}

// PointQuerier is the capability of geometries that can resolve (x, y)
// points to element indices.
type PointQuerier interface {
	// FindElements returns, for each point, the index of the element
	// containing (or nearest to) it, or -1 if the point is outside the
	// domain.
	FindElements(points []geom.Point) []int
}

// GeometryUndefined is the explicit sentinel for a selection that carries
// no coordinate semantics (e.g. a non-equidistant axis subset of a regular
// grid). It satisfies Geometry so downstream code handles it through the
// same interface instead of a nil check.
type GeometryUndefined struct{}

// Projection implements Geometry; an undefined geometry has no projection.
func (GeometryUndefined) Projection() string { return "" }

// Point2D is a degenerate geometry: a single horizontal point.
type Point2D struct {
	X, Y float64
	Proj string
}

// Projection implements Geometry.
func (p Point2D) Projection() string { return p.Proj }

// Point3D is a degenerate geometry: a single point with elevation.
type Point3D struct {
	X, Y, Z float64
	Proj    string
}

// Projection implements Geometry.
func (p Point3D) Projection() string { return p.Proj }

// Area is a horizontal selection area: either a bounding box or a closed
// polygon.
type Area struct {
	bounds  *geom.Bounds
	polygon geom.Polygon
}

// BBox creates an Area from edge coordinates.
func BBox(left, bottom, right, top float64) Area {
	return Area{bounds: &geom.Bounds{
		Min: geom.Point{X: left, Y: bottom},
		Max: geom.Point{X: right, Y: top},
	}}
}

// PolygonArea creates an Area from a closed polygon ring.
func PolygonArea(ring []geom.Point) Area {
	return Area{polygon: geom.Polygon{ring}}
}

// Contains reports whether p lies inside the area (boundary inclusive).
func (a Area) Contains(p geom.Point) bool {
	if a.bounds != nil {
		return a.bounds.Min.X <= p.X && p.X <= a.bounds.Max.X &&
			a.bounds.Min.Y <= p.Y && p.Y <= a.bounds.Max.Y
	}
	return p.Within(a.polygon) != geom.Outside
}
