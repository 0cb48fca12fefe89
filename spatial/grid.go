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

package spatial

import (
	"fmt"
	"math"

	"github.com/ctessum/geom"
	log "github.com/sirupsen/logrus"
)

// equidistantTol is the relative tolerance used when checking that
// explicitly given axis coordinates are equidistant.
const equidistantTol = 1e-8

func checkAxis(name string, x []float64) (x0, dx float64, err error) {
	if len(x) == 0 {
		return 0, 0, fmt.Errorf("spatial: %s axis is empty", name)
	}
	if len(x) == 1 {
		return x[0], 1.0, nil
	}
	dx = x[1] - x[0]
	if dx <= 0 {
		return 0, 0, fmt.Errorf("spatial: %s values must be increasing", name)
	}
	for i := 1; i < len(x); i++ {
		d := x[i] - x[i-1]
		if math.Abs(d-dx) > equidistantTol*math.Max(math.Abs(dx), 1) {
			return 0, 0, fmt.Errorf("spatial: %s values must be equidistant", name)
		}
	}
	return x[0], dx, nil
}

// uniformStride reports whether idx is ascending with a constant positive
// stride, returning that stride.
func uniformStride(idx []int) (int, bool) {
	if len(idx) < 2 {
		return 1, true
	}
	d := idx[1] - idx[0]
	if d < 1 {
		return 0, false
	}
	for i := 2; i < len(idx); i++ {
		if idx[i]-idx[i-1] != d {
			return 0, false
		}
	}
	return d, true
}

func axisCoords(x0, dx float64, n int) []float64 {
	x := make([]float64, n)
	for i := range x {
		x[i] = x0 + float64(i)*dx
	}
	return x
}

// Grid1D is an equidistant one-dimensional axis. When derived from a
// higher-dimensional grid it carries the fixed node coordinates of the
// points along the axis.
type Grid1D struct {
	x0, dx float64
	n      int
	proj   string

	// nodes are the full (x, y) coordinates of each axis point when the
	// axis was cut out of a 2D grid; nil otherwise.
	nodes []geom.Point
}

// NewGrid1D creates an equidistant axis from origin, spacing and count.
func NewGrid1D(x0, dx float64, n int, projection string) (*Grid1D, error) {
	if dx <= 0 {
		return nil, fmt.Errorf("spatial: dx must be a positive number, got %g", dx)
	}
	if n < 1 {
		return nil, fmt.Errorf("spatial: n must be at least 1, got %d", n)
	}
	return &Grid1D{x0: x0, dx: dx, n: n, proj: projection}, nil
}

// NewGrid1DFromX creates an axis from explicit coordinates, which must be
// increasing and equidistant.
func NewGrid1DFromX(x []float64, projection string) (*Grid1D, error) {
	x0, dx, err := checkAxis("x", x)
	if err != nil {
		return nil, err
	}
	return &Grid1D{x0: x0, dx: dx, n: len(x), proj: projection}, nil
}

// Projection implements Geometry.
func (g *Grid1D) Projection() string { return g.proj }

// N returns the number of points.
func (g *Grid1D) N() int { return g.n }

// DX returns the spacing.
func (g *Grid1D) DX() float64 { return g.dx }

// X returns the point coordinates.
func (g *Grid1D) X() []float64 { return axisCoords(g.x0, g.dx, g.n) }

// X0 returns the left end point.
func (g *Grid1D) X0() float64 { return g.x0 }

// X1 returns the right end point.
func (g *Grid1D) X1() float64 { return g.x0 + float64(g.n-1)*g.dx }

// FindIndex returns the index of the point nearest to x.
func (g *Grid1D) FindIndex(x float64) int {
	i := int(math.Round((x - g.x0) / g.dx))
	if i < 0 {
		i = 0
	}
	if i >= g.n {
		i = g.n - 1
	}
	return i
}

// Isel selects points along the axis. A multi-point selection with uniform
// stride returns a reduced Grid1D; a single index degrades to a point
// geometry when node coordinates are known, else to GeometryUndefined; a
// non-uniform selection returns GeometryUndefined with a warning.
func (g *Grid1D) Isel(idx []int) Geometry {
	if len(idx) == 1 {
		if g.nodes != nil {
			p := g.nodes[idx[0]]
			return Point2D{X: p.X, Y: p.Y, Proj: g.proj}
		}
		return GeometryUndefined{}
	}
	stride, ok := uniformStride(idx)
	if !ok {
		log.Warn("spatial: non-uniform axis selection, returning undefined geometry")
		return GeometryUndefined{}
	}
	sub := &Grid1D{x0: g.x0 + float64(idx[0])*g.dx, dx: g.dx * float64(stride), n: len(idx), proj: g.proj}
	if g.nodes != nil {
		sub.nodes = make([]geom.Point, len(idx))
		for i, j := range idx {
			sub.nodes[i] = g.nodes[j]
		}
	}
	return sub
}

// Grid2D is a regular equidistant horizontal grid. Coordinates are cell
// centers; the grid origin is the center of the lower-left cell.
type Grid2D struct {
	x0, y0 float64
	dx, dy float64
	nx, ny int
	proj   string
}

// Grid2DOptions selects exactly one of three mutually exclusive grid
// specifications:
//
//   - BBox (cell-edge box [left, bottom, right, top]), optionally with
//     spacing (DX/DY) or shape (NX/NY);
//   - explicit cell-center coordinate arrays X and Y;
//   - origin + spacing + count (X0, Y0, DX, DY, NX, NY).
type Grid2DOptions struct {
	BBox       []float64
	X, Y       []float64
	X0, Y0     float64
	DX, DY     float64
	NX, NY     int
	Projection string
}

// NewGrid2D creates a grid from one of the three specifications in o.
// Providing none, or a conflicting combination, is a configuration error.
func NewGrid2D(o Grid2DOptions) (*Grid2D, error) {
	proj := o.Projection
	if proj == "" {
		proj = "LONG/LAT"
	}
	hasBBox := o.BBox != nil
	hasXY := len(o.X) > 0 || len(o.Y) > 0
	hasOrigin := !hasBBox && !hasXY && (o.NX > 0 || o.NY > 0)

	switch {
	case hasBBox && hasXY:
		return nil, fmt.Errorf("spatial: cannot provide both bbox and explicit x/y coordinates")
	case hasBBox:
		return newGrid2DInBBox(o, proj)
	case hasXY:
		if len(o.X) == 0 || len(o.Y) == 0 {
			return nil, fmt.Errorf("spatial: both x and y coordinate arrays must be provided")
		}
		x0, dx, err := checkAxis("x", o.X)
		if err != nil {
			return nil, err
		}
		y0, dy, err := checkAxis("y", o.Y)
		if err != nil {
			return nil, err
		}
		return &Grid2D{x0: x0, y0: y0, dx: dx, dy: dy, nx: len(o.X), ny: len(o.Y), proj: proj}, nil
	case hasOrigin:
		if o.NX < 1 || o.NY < 1 {
			return nil, fmt.Errorf("spatial: both nx and ny must be provided")
		}
		if o.DX <= 0 {
			return nil, fmt.Errorf("spatial: dx must be a positive number, got %g", o.DX)
		}
		dy := o.DY
		if dy == 0 {
			dy = o.DX
		}
		if dy <= 0 {
			return nil, fmt.Errorf("spatial: dy must be a positive number, got %g", dy)
		}
		return &Grid2D{x0: o.X0, y0: o.Y0, dx: o.DX, dy: dy, nx: o.NX, ny: o.NY, proj: proj}, nil
	default:
		return nil, fmt.Errorf("spatial: provide either bbox, or x and y, or origin with spacing and count")
	}
}

// newGrid2DInBBox covers the cell-edge box with cells, from the given
// spacing or shape; with neither, the shorter side gets 10 divisions and
// the longer proportionally more (ratio preserved, rounded up).
func newGrid2DInBBox(o Grid2DOptions, proj string) (*Grid2D, error) {
	if len(o.BBox) != 4 {
		return nil, fmt.Errorf("spatial: bbox must be [left, bottom, right, top], got %d values", len(o.BBox))
	}
	left, bottom, right, top := o.BBox[0], o.BBox[1], o.BBox[2], o.BBox[3]
	if left > right {
		return nil, fmt.Errorf("spatial: invalid x axis, left %g must be smaller than right %g", left, right)
	}
	if bottom > top {
		return nil, fmt.Errorf("spatial: invalid y axis, bottom %g must be smaller than top %g", bottom, top)
	}
	xr := right - left
	yr := top - bottom

	var nx, ny int
	var dx, dy float64
	hasSpacing := o.DX > 0 || o.DY > 0
	hasShape := o.NX > 0 || o.NY > 0
	switch {
	case hasSpacing && hasShape:
		return nil, fmt.Errorf("spatial: spacing and shape cannot both be provided with bbox, choose one")
	case hasShape:
		nx, ny = o.NX, o.NY
		if nx == 0 {
			nx = int(math.Ceil(float64(ny) * xr / yr))
		}
		if ny == 0 {
			ny = int(math.Ceil(float64(nx) * yr / xr))
		}
		dx = xr / float64(nx)
		dy = yr / float64(ny)
	case hasSpacing:
		dx = o.DX
		dy = o.DY
		if dy == 0 {
			dy = dx
		}
		nx = int(math.Ceil(xr / dx))
		ny = int(math.Ceil(yr / dy))
	default:
		if xr <= yr {
			nx = 10
			ny = int(math.Ceil(float64(nx) * yr / xr))
		} else {
			ny = 10
			nx = int(math.Ceil(float64(ny) * xr / yr))
		}
		dx = xr / float64(nx)
		dy = yr / float64(ny)
	}

	return &Grid2D{
		x0: left + dx/2, y0: bottom + dy/2,
		dx: dx, dy: dy, nx: nx, ny: ny, proj: proj,
	}, nil
}

// Projection implements Geometry.
func (g *Grid2D) Projection() string { return g.proj }

// NX returns the number of cells in the x direction.
func (g *Grid2D) NX() int { return g.nx }

// NY returns the number of cells in the y direction.
func (g *Grid2D) NY() int { return g.ny }

// N returns the total number of cells.
func (g *Grid2D) N() int { return g.nx * g.ny }

// DX returns the x spacing.
func (g *Grid2D) DX() float64 { return g.dx }

// DY returns the y spacing.
func (g *Grid2D) DY() float64 { return g.dy }

// X0 returns the center of the left column of cells.
func (g *Grid2D) X0() float64 { return g.x0 }

// Y0 returns the center of the bottom row of cells.
func (g *Grid2D) Y0() float64 { return g.y0 }

// X1 returns the center of the right column of cells.
func (g *Grid2D) X1() float64 { return g.x0 + float64(g.nx-1)*g.dx }

// Y1 returns the center of the top row of cells.
func (g *Grid2D) Y1() float64 { return g.y0 + float64(g.ny-1)*g.dy }

// X returns the cell-center x coordinates.
func (g *Grid2D) X() []float64 { return axisCoords(g.x0, g.dx, g.nx) }

// Y returns the cell-center y coordinates.
func (g *Grid2D) Y() []float64 { return axisCoords(g.y0, g.dy, g.ny) }

// Bbox returns the cell-edge bounding box, half a cell wider than the
// cell-center extremes on each side.
func (g *Grid2D) Bbox() *geom.Bounds {
	return &geom.Bounds{
		Min: geom.Point{X: g.x0 - g.dx/2, Y: g.y0 - g.dy/2},
		Max: geom.Point{X: g.X1() + g.dx/2, Y: g.Y1() + g.dy/2},
	}
}

// Contains tests each point against the cell-edge bounding box, boundary
// inclusive.
func (g *Grid2D) Contains(points []geom.Point) []bool {
	b := g.Bbox()
	in := make([]bool, len(points))
	for i, p := range points {
		in[i] = b.Min.X <= p.X && p.X <= b.Max.X && b.Min.Y <= p.Y && p.Y <= b.Max.Y
	}
	return in
}

// FindIndex returns the nearest cell-center (i, j) index per axis for each
// point, or (-1, -1) for points outside the grid.
func (g *Grid2D) FindIndex(points []geom.Point) (ii, jj []int) {
	ii = make([]int, len(points))
	jj = make([]int, len(points))
	inside := g.Contains(points)
	for k, p := range points {
		if !inside[k] {
			ii[k], jj[k] = -1, -1
			continue
		}
		i := int(math.Round((p.X - g.x0) / g.dx))
		j := int(math.Round((p.Y - g.y0) / g.dy))
		if i < 0 {
			i = 0
		}
		if i >= g.nx {
			i = g.nx - 1
		}
		if j < 0 {
			j = 0
		}
		if j >= g.ny {
			j = g.ny - 1
		}
		ii[k], jj[k] = i, j
	}
	return ii, jj
}

// Isel selects indices along an axis of the (ny, nx)-shaped data: axis 0 is
// y, axis 1 is x. A uniform multi-index selection returns a reduced Grid2D;
// a single index degrades to a Grid1D along the other axis with fixed node
// coordinates; any non-uniform selection returns GeometryUndefined with a
// warning.
func (g *Grid2D) Isel(idx []int, axis int) Geometry {
	if len(idx) != 1 {
		stride, ok := uniformStride(idx)
		if !ok {
			log.Warn("spatial: axis not equidistant, returning undefined geometry")
			return GeometryUndefined{}
		}
		sub := *g
		if axis == 0 {
			sub.y0 = g.y0 + float64(idx[0])*g.dy
			sub.dy = g.dy * float64(stride)
			sub.ny = len(idx)
		} else {
			sub.x0 = g.x0 + float64(idx[0])*g.dx
			sub.dx = g.dx * float64(stride)
			sub.nx = len(idx)
		}
		return &sub
	}

	if axis == 0 {
		// Fixing a y index leaves the x axis.
		y := g.y0 + float64(idx[0])*g.dy
		nodes := make([]geom.Point, g.nx)
		for i, x := range g.X() {
			nodes[i] = geom.Point{X: x, Y: y}
		}
		return &Grid1D{x0: g.x0, dx: g.dx, n: g.nx, proj: g.proj, nodes: nodes}
	}
	x := g.x0 + float64(idx[0])*g.dx
	nodes := make([]geom.Point, g.ny)
	for j, y := range g.Y() {
		nodes[j] = geom.Point{X: x, Y: y}
	}
	return &Grid1D{x0: g.y0, dx: g.dy, n: g.ny, proj: g.proj, nodes: nodes}
}

// centersToNodes places node coordinates midway between cell centers,
// extrapolating half a cell at the domain edges.
func centersToNodes(x []float64) []float64 {
	if len(x) == 1 {
		return []float64{x[0]}
	}
	xn := make([]float64, len(x)+1)
	xn[0] = x[0] - (x[1]-x[0])/2
	for i := 1; i < len(x); i++ {
		xn[i] = (x[i] + x[i-1]) / 2
	}
	xn[len(x)] = x[len(x)-1] + (x[len(x)-1]-x[len(x)-2])/2
	return xn
}

// ToMesh converts the regular grid to an unstructured mesh with one
// quadrilateral element per cell. Nodes are placed at cell corners
// (midpoints between centers, extrapolated at the edges); z gives the node
// elevations and must be nil (all zero), one value (constant) or one value
// per node. Boundary codes are assigned by edge membership: north=5,
// east=4, south=3, west=2, with the north-west corner counted as north.
func (g *Grid2D) ToMesh(z []float64) (*Mesh2D, error) {
	xn := centersToNodes(g.X())
	yn := centersToNodes(g.Y())
	nxn, nyn := len(xn), len(yn)
	nNodes := nxn * nyn

	zn := make([]float64, nNodes)
	switch len(z) {
	case 0:
	case 1:
		for i := range zn {
			zn[i] = z[0]
		}
	case nNodes:
		copy(zn, z)
	default:
		return nil, fmt.Errorf("spatial: z must be scalar or have one value per node (%d), got %d", nNodes, len(z))
	}

	left, right := xn[0], xn[nxn-1]
	bottom, top := yn[0], yn[nyn-1]

	x := make([]float64, nNodes)
	y := make([]float64, nNodes)
	codes := make([]int32, nNodes)
	ids := make([]int32, nNodes)
	for j := 0; j < nyn; j++ {
		for i := 0; i < nxn; i++ {
			n := j*nxn + i
			x[n] = xn[i]
			y[n] = yn[j]
			ids[n] = int32(n + 1)
			switch {
			case yn[j] == top && xn[i] == left:
				codes[n] = 5 // north-west corner counts as north
			case xn[i] == left:
				codes[n] = 2
			case yn[j] == bottom:
				codes[n] = 3
			case xn[i] == right:
				codes[n] = 4
			case yn[j] == top:
				codes[n] = 5
			}
		}
	}

	nElem := (nxn - 1) * (nyn - 1)
	table := make([][]int, 0, nElem)
	for i := 0; i < nxn-1; i++ {
		for j := 0; j < nyn-1; j++ {
			n1 := j*nxn + i
			n2 := (j+1)*nxn + i
			table = append(table, []int{n1, n1 + 1, n2 + 1, n2})
		}
	}
	elemIDs := make([]int32, nElem)
	for i := range elemIDs {
		elemIDs[i] = int32(i + 1)
	}

	return NewMesh2D(NodeData{X: x, Y: y, Z: zn, Code: codes, ID: ids},
		ElementData{Table: table, ID: elemIDs}, g.proj)
}

// Grid3D is a regular equidistant three-dimensional grid; data is shaped
// (nz, ny, nx).
type Grid3D struct {
	x, y, z *Grid1D
	proj    string
}

// Grid3DOptions specifies the three axes of a Grid3D, each either as
// explicit equidistant coordinates or as origin + spacing + count.
type Grid3DOptions struct {
	X, Y, Z    []float64
	X0, Y0, Z0 float64
	DX, DY, DZ float64
	NX, NY, NZ int
	Projection string
}

func parseAxis3D(name string, x []float64, x0, dx float64, n int, proj string) (*Grid1D, error) {
	if len(x) > 0 {
		return NewGrid1DFromX(x, proj)
	}
	if n < 1 {
		return nil, fmt.Errorf("spatial: n%s must be provided", name)
	}
	if dx <= 0 {
		return nil, fmt.Errorf("spatial: d%s must be provided", name)
	}
	return NewGrid1D(x0, dx, n, proj)
}

// NewGrid3D creates a three-dimensional grid.
func NewGrid3D(o Grid3DOptions) (*Grid3D, error) {
	proj := o.Projection
	if proj == "" {
		proj = "NON-UTM"
	}
	x, err := parseAxis3D("x", o.X, o.X0, o.DX, o.NX, proj)
	if err != nil {
		return nil, err
	}
	y, err := parseAxis3D("y", o.Y, o.Y0, o.DY, o.NY, proj)
	if err != nil {
		return nil, err
	}
	z, err := parseAxis3D("z", o.Z, o.Z0, o.DZ, o.NZ, proj)
	if err != nil {
		return nil, err
	}
	return &Grid3D{x: x, y: y, z: z, proj: proj}, nil
}

// Projection implements Geometry.
func (g *Grid3D) Projection() string { return g.proj }

// NX returns the number of points along x.
func (g *Grid3D) NX() int { return g.x.N() }

// NY returns the number of points along y.
func (g *Grid3D) NY() int { return g.y.N() }

// NZ returns the number of points along z.
func (g *Grid3D) NZ() int { return g.z.N() }

// X returns the x axis coordinates.
func (g *Grid3D) X() []float64 { return g.x.X() }

// Y returns the y axis coordinates.
func (g *Grid3D) Y() []float64 { return g.y.X() }

// Z returns the z axis coordinates.
func (g *Grid3D) Z() []float64 { return g.z.X() }

// DX returns the x spacing.
func (g *Grid3D) DX() float64 { return g.x.DX() }

// DY returns the y spacing.
func (g *Grid3D) DY() float64 { return g.y.DX() }

// DZ returns the z spacing.
func (g *Grid3D) DZ() float64 { return g.z.DX() }

// Isel selects indices along an axis of the (nz, ny, nx)-shaped data:
// axis 0 is z, axis 1 is y, axis 2 is x. A single index reduces the grid
// to a Grid2D over the remaining plane (axis 0 → x-y, axis 1 → x-z,
// axis 2 → y-z); a uniform multi-index selection returns a reduced Grid3D;
// a non-uniform selection returns GeometryUndefined with a warning.
func (g *Grid3D) Isel(idx []int, axis int) Geometry {
	if len(idx) != 1 {
		stride, ok := uniformStride(idx)
		if !ok {
			log.Warn("spatial: axis not equidistant, returning undefined geometry")
			return GeometryUndefined{}
		}
		sub := *g
		var ax **Grid1D
		switch axis {
		case 0:
			ax = &sub.z
		case 1:
			ax = &sub.y
		default:
			ax = &sub.x
		}
		a := **ax
		a.x0 += float64(idx[0]) * a.dx
		a.dx *= float64(stride)
		a.n = len(idx)
		*ax = &a
		return &sub
	}

	var first, second *Grid1D
	switch axis {
	case 0:
		first, second = g.x, g.y
	case 1:
		first, second = g.x, g.z
	default:
		first, second = g.y, g.z
	}
	return &Grid2D{
		x0: first.x0, dx: first.dx, nx: first.n,
		y0: second.x0, dy: second.dx, ny: second.n,
		proj: g.proj,
	}
}
