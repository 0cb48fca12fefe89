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
	"sort"

	"github.com/ctessum/geom"
	"github.com/ctessum/geom/index/rtree"
)

// NodeData is the node table of a flexible mesh: coordinates, boundary
// codes (0 = interior, >0 = boundary marker) and external ids.
type NodeData struct {
	X, Y, Z []float64
	Code    []int32
	ID      []int32
}

/// ElementData is the element table of a flexible mesh: per-element ordered
// node indices (0-based) and external ids.
type ElementData struct {
	Table [][]int
	ID    []int32
}

// flexMesh is the state shared by all flexible-mesh variants.
type flexMesh struct {
	nodes NodeData
	elems ElementData
	proj  string

	ecX, ecY, ecZ []float64    // element centers, computed on construction
	tree          *rtree.Rtree // element polygon index, built lazily
}

func newFlexMesh(nodes NodeData, elems ElementData, projection string) (flexMesh, error) {
	n := len(nodes.X)
	if len(nodes.Y) != n || len(nodes.Z) != n || len(nodes.Code) != n {
		return flexMesh{}, fmt.Errorf("spatial: node table columns have inconsistent lengths")
	}
	for i, c := range nodes.Code {
		if c < 0 {
			return flexMesh{}, fmt.Errorf("spatial: node %d has negative code %d", i, c)
		}
	}
	for i, el := range elems.Table {
		if len(el) == 0 {
			return flexMesh{}, fmt.Errorf("spatial: element %d has no nodes", i)
		}
		for _, ni := range el {
			if ni < 0 || ni >= n {
				return flexMesh{}, fmt.Errorf("spatial: element %d references invalid node index %d", i, ni)
			}
		}
	}
	m := flexMesh{nodes: nodes, elems: elems, proj: projection}
	m.computeElementCenters()
	return m, nil
}

func (m *flexMesh) computeElementCenters() {
	ne := len(m.elems.Table)
	m.ecX = make([]float64, ne)
	m.ecY = make([]float64, ne)
	m.ecZ = make([]float64, ne)
	for i, el := range m.elems.Table {
		var sx, sy, sz float64
		for _, ni := range el {
			sx += m.nodes.X[ni]
			sy += m.nodes.Y[ni]
			sz += m.nodes.Z[ni]
		}
		c := float64(len(el))
		m.ecX[i], m.ecY[i], m.ecZ[i] = sx/c, sy/c, sz/c
	}
}

// Projection implements Geometry.
func (m *flexMesh) Projection() string { return m.proj }

// NNodes returns the number of nodes.
func (m *flexMesh) NNodes() int { return len(m.nodes.X) }

// NElements returns the number of elements.
func (m *flexMesh) NElements() int { return len(m.elems.Table) }

// Nodes returns the node table.
func (m *flexMesh) Nodes() NodeData { return m.nodes }

// Elements returns the element table.
func (m *flexMesh) Elements() ElementData { return m.elems }

// ElementCoordinates returns the center coordinates of each element.
func (m *flexMesh) ElementCoordinates() (x, y, z []float64) {
	return m.ecX, m.ecY, m.ecZ
}

// MaxNodesPerElement returns the largest node count of any element.
func (m *flexMesh) MaxNodesPerElement() int {
	max := 0
	for _, el := range m.elems.Table {
		if len(el) > max {
			max = len(el)
		}
	}
	return max
}

// IsTriOnly reports whether the mesh consists of triangles only.
func (m *flexMesh) IsTriOnly() bool { return m.MaxNodesPerElement() == 3 }

// Codes returns the node boundary codes.
func (m *flexMesh) Codes() []int32 { return m.nodes.Code }

// BoundaryCodes returns the sorted unique non-zero node codes.
func (m *flexMesh) BoundaryCodes() []int32 {
	seen := make(map[int32]bool)
	var codes []int32
	for _, c := range m.nodes.Code {
		if c > 0 && !seen[c] {
			seen[c] = true
			codes = append(codes, c)
		}
	}
	sort.Slice(codes, func(i, j int) bool { return codes[i] < codes[j] })
	return codes
}

// Bounds returns the node bounding box.
func (m *flexMesh) Bounds() *geom.Bounds {
	b := geom.NewBounds()
	for i := range m.nodes.X {
		b.Extend(geom.NewBoundsPoint(geom.Point{X: m.nodes.X[i], Y: m.nodes.Y[i]}))
	}
	return b
}

// elemPoly is an rtree entry holding one element's horizontal outline.
type elemPoly struct {
	geom.Polygon
	i int
}

func (m *flexMesh) elementPolygon(i int) geom.Polygon {
	el := m.elems.Table[i]
	ring := make([]geom.Point, 0, len(el)+1)
	for _, ni := range el {
		ring = append(ring, geom.Point{X: m.nodes.X[ni], Y: m.nodes.Y[ni]})
	}
	ring = append(ring, ring[0])
	return geom.Polygon{ring}
}

func (m *flexMesh) index() *rtree.Rtree {
	if m.tree == nil {
		m.tree = rtree.NewTree(25, 50)
		for i := range m.elems.Table {
			m.tree.Insert(elemPoly{Polygon: m.elementPolygon(i), i: i})
		}
	}
	return m.tree
}

// findContaining returns the index of the element containing each point,
// or -1 for points outside the domain.
func (m *flexMesh) findContaining(points []geom.Point) []int {
	tree := m.index()
	out := make([]int, len(points))
	for k, p := range points {
		out[k] = -1
		for _, c := range tree.SearchIntersect(geom.NewBoundsPoint(p)) {
			ep := c.(elemPoly)
			if p.Within(ep.Polygon) != geom.Outside {
				out[k] = ep.i
				break
			}
		}
	}
	return out
}

// findNearestCenter returns the index of the element with the nearest
// horizontal center for each point.
func (m *flexMesh) findNearestCenter(points []geom.Point) []int {
	out := make([]int, len(points))
	for k, p := range points {
		best, bestD := -1, math.Inf(1)
		for i := range m.ecX {
			d := (m.ecX[i]-p.X)*(m.ecX[i]-p.X) + (m.ecY[i]-p.Y)*(m.ecY[i]-p.Y)
			if d < bestD {
				best, bestD = i, d
			}
		}
		out[k] = best
	}
	return out
}

// ElementsInArea returns the indices of elements whose centers lie inside
// the area.
func (m *flexMesh) ElementsInArea(a Area) []int {
	var out []int
	for i := range m.ecX {
		if a.Contains(geom.Point{X: m.ecX[i], Y: m.ecY[i]}) {
			out = append(out, i)
		}
	}
	return out
}

// SubsetNodes returns the sorted original node indices used by the given
// elements. The returned order matches the node numbering produced by
// Subset, so per-node data can be subset alongside the geometry.
func (m *flexMesh) SubsetNodes(elements []int) ([]int, error) {
	used := make(map[int]bool)
	for _, e := range elements {
		if e < 0 || e >= len(m.elems.Table) {
			return nil, fmt.Errorf("spatial: element index %d out of range [0,%d)", e, len(m.elems.Table))
		}
		for _, ni := range m.elems.Table[e] {
			used[ni] = true
		}
	}
	nodeIdx := make([]int, 0, len(used))
	for ni := range used {
		nodeIdx = append(nodeIdx, ni)
	}
	sort.Ints(nodeIdx)
	return nodeIdx, nil
}

// subset extracts the node and element tables covering only the given
// elements, renumbering node indices.
func (m *flexMesh) subset(elements []int) (flexMesh, error) {
	nodeIdx, err := m.SubsetNodes(elements)
	if err != nil {
		return flexMesh{}, err
	}
	remap := make(map[int]int, len(nodeIdx))
	for newI, oldI := range nodeIdx {
		remap[oldI] = newI
	}

	nodes := NodeData{
		X:    make([]float64, len(nodeIdx)),
		Y:    make([]float64, len(nodeIdx)),
		Z:    make([]float64, len(nodeIdx)),
		Code: make([]int32, len(nodeIdx)),
		ID:   make([]int32, len(nodeIdx)),
	}
	for newI, oldI := range nodeIdx {
		nodes.X[newI] = m.nodes.X[oldI]
		nodes.Y[newI] = m.nodes.Y[oldI]
		nodes.Z[newI] = m.nodes.Z[oldI]
		nodes.Code[newI] = m.nodes.Code[oldI]
		nodes.ID[newI] = m.nodes.ID[oldI]
	}

	elems := ElementData{
		Table: make([][]int, len(elements)),
		ID:    make([]int32, len(elements)),
	}
	for i, e := range elements {
		el := make([]int, len(m.elems.Table[e]))
		for j, ni := range m.elems.Table[e] {
			el[j] = remap[ni]
		}
		elems.Table[i] = el
		elems.ID[i] = m.elems.ID[e]
	}
	return newFlexMesh(nodes, elems, m.proj)
}

// Mesh2D is an unstructured horizontal mesh of triangles and
// quadrilaterals.
type Mesh2D struct {
	flexMesh
}

// NewMesh2D creates a 2D flexible mesh from node and element tables.
// Element node indices are 0-based.
func NewMesh2D(nodes NodeData, elems ElementData, projection string) (*Mesh2D, error) {
	m, err := newFlexMesh(nodes, elems, projection)
	if err != nil {
		return nil, err
	}
	return &Mesh2D{flexMesh: m}, nil
}

// FindElements returns the index of the element containing each point, or
// -1 for points outside the domain.
func (m *Mesh2D) FindElements(points []geom.Point) []int {
	return m.findContaining(points)
}

// Contains reports, for each point, whether it lies inside the mesh
// domain.
func (m *Mesh2D) Contains(points []geom.Point) []bool {
	idx := m.findContaining(points)
	in := make([]bool, len(idx))
	for i, e := range idx {
		in[i] = e >= 0
	}
	return in
}

// Subset implements ElementGeometry. A single-element subset degrades to a
// point geometry at the element center.
func (m *Mesh2D) Subset(elements []int) (Geometry, error) {
	if len(elements) == 0 {
		return nil, fmt.Errorf("spatial: empty element selection")
	}
	if len(elements) == 1 {
		e := elements[0]
		if e < 0 || e >= m.NElements() {
			return nil, fmt.Errorf("spatial: element index %d out of range [0,%d)", e, m.NElements())
		}
		return Point2D{X: m.ecX[e], Y: m.ecY[e], Proj: m.proj}, nil
	}
	sub, err := m.subset(elements)
	if err != nil {
		return nil, err
	}
	return &Mesh2D{flexMesh: sub}, nil
}

// Mesh3D is a layered unstructured mesh: a horizontal mesh extruded into
// vertical layers, the lowest NSigma of which are terrain-following.
type Mesh3D struct {
	flexMesh
	nLayers, nSigma int
}

// NewMesh3D creates a layered mesh. nSigma must not exceed nLayers.
func NewMesh3D(nodes NodeData, elems ElementData, projection string, nLayers, nSigma int) (*Mesh3D, error) {
	if nSigma > nLayers {
		return nil, fmt.Errorf("spatial: n_sigma (%d) cannot exceed n_layers (%d)", nSigma, nLayers)
	}
	m, err := newFlexMesh(nodes, elems, projection)
	if err != nil {
		return nil, err
	}
	return &Mesh3D{flexMesh: m, nLayers: nLayers, nSigma: nSigma}, nil
}

// NLayers returns the number of vertical layers.
func (m *Mesh3D) NLayers() int { return m.nLayers }

// NSigmaLayers returns the number of sigma (terrain-following) layers.
func (m *Mesh3D) NSigmaLayers() int { return m.nSigma }

// FindElements returns the element with the nearest horizontal center for
// each point. Layered elements are prisms, so horizontal containment is
// resolved by center distance.
func (m *Mesh3D) FindElements(points []geom.Point) []int {
	return m.findNearestCenter(points)
}

// Subset implements ElementGeometry.
func (m *Mesh3D) Subset(elements []int) (Geometry, error) {
	if len(elements) == 0 {
		return nil, fmt.Errorf("spatial: empty element selection")
	}
	if len(elements) == 1 {
		e := elements[0]
		if e < 0 || e >= m.NElements() {
			return nil, fmt.Errorf("spatial: element index %d out of range [0,%d)", e, m.NElements())
		}
		return Point3D{X: m.ecX[e], Y: m.ecY[e], Z: m.ecZ[e], Proj: m.proj}, nil
	}
	sub, err := m.subset(elements)
	if err != nil {
		return nil, err
	}
	return &Mesh3D{flexMesh: sub, nLayers: m.nLayers, nSigma: m.nSigma}, nil
}

// MeshVerticalProfile is a vertical transect mesh (x along the transect,
// z vertical).
type MeshVerticalProfile struct {
	flexMesh
	nLayers, nSigma int
}

// NewMeshVerticalProfile creates a vertical-profile mesh.
func NewMeshVerticalProfile(nodes NodeData, elems ElementData, projection string, nLayers, nSigma int) (*MeshVerticalProfile, error) {
	if nSigma > nLayers {
		return nil, fmt.Errorf("spatial: n_sigma (%d) cannot exceed n_layers (%d)", nSigma, nLayers)
	}
	m, err := newFlexMesh(nodes, elems, projection)
	if err != nil {
		return nil, err
	}
	return &MeshVerticalProfile{flexMesh: m, nLayers: nLayers, nSigma: nSigma}, nil
}

// NLayers returns the number of vertical layers.
func (m *MeshVerticalProfile) NLayers() int { return m.nLayers }

// NSigmaLayers returns the number of sigma layers.
func (m *MeshVerticalProfile) NSigmaLayers() int { return m.nSigma }

// FindElements returns the element with the nearest center for each point.
func (m *MeshVerticalProfile) FindElements(points []geom.Point) []int {
	return m.findNearestCenter(points)
}

// Subset implements ElementGeometry.
func (m *MeshVerticalProfile) Subset(elements []int) (Geometry, error) {
	if len(elements) == 0 {
		return nil, fmt.Errorf("spatial: empty element selection")
	}
	sub, err := m.subset(elements)
	if err != nil {
		return nil, err
	}
	return &MeshVerticalProfile{flexMesh: sub, nLayers: m.nLayers, nSigma: m.nSigma}, nil
}

// Spectrum holds the spectral axes shared by the spectral geometry
// variants: ascending frequencies in Hz and directions in degrees
// (0-360).
type Spectrum struct {
	Frequencies []float64
	Directions  []float64
}

// NFrequencies returns the number of frequencies.
func (s Spectrum) NFrequencies() int { return len(s.Frequencies) }

// NDirections returns the number of directions.
func (s Spectrum) NDirections() int { return len(s.Directions) }

// DirectionsFromRadians converts direction coordinates as stored on disk
// (radians) to degrees.
func DirectionsFromRadians(rad []float64) []float64 {
	if rad == nil {
		return nil
	}
	deg := make([]float64, len(rad))
	for i, r := range rad {
		deg[i] = r * 180 / math.Pi
	}
	return deg
}

// SpectralPoint is a spectral geometry at a single point: only frequency
// and direction axes, no node or element tables.
type SpectralPoint struct {
	Spectrum
	Proj string
}

// Projection implements Geometry.
func (s SpectralPoint) Projection() string { return s.Proj }

// SpectralLine is a spectral geometry along a line of nodes.
type SpectralLine struct {
	flexMesh
	Spectrum
}

// NewSpectralLine creates a line-spectrum geometry.
func NewSpectralLine(nodes NodeData, elems ElementData, projection string, sp Spectrum) (*SpectralLine, error) {
	m, err := newFlexMesh(nodes, elems, projection)
	if err != nil {
		return nil, err
	}
	return &SpectralLine{flexMesh: m, Spectrum: sp}, nil
}

// Subset implements ElementGeometry.
func (m *SpectralLine) Subset(elements []int) (Geometry, error) {
	if len(elements) == 0 {
		return nil, fmt.Errorf("spatial: empty element selection")
	}
	sub, err := m.subset(elements)
	if err != nil {
		return nil, err
	}
	return &SpectralLine{flexMesh: sub, Spectrum: m.Spectrum}, nil
}

// SpectralArea is a spectral geometry over a horizontal mesh.
type SpectralArea struct {
	flexMesh
	Spectrum
}

// NewSpectralArea creates an area-spectrum geometry.
func NewSpectralArea(nodes NodeData, elems ElementData, projection string, sp Spectrum) (*SpectralArea, error) {
	m, err := newFlexMesh(nodes, elems, projection)
	if err != nil {
		return nil, err
	}
	return &SpectralArea{flexMesh: m, Spectrum: sp}, nil
}

// FindElements returns the index of the element containing each point, or
// -1 for points outside the domain.
func (m *SpectralArea) FindElements(points []geom.Point) []int {
	return m.findContaining(points)
}

// Subset implements ElementGeometry.
func (m *SpectralArea) Subset(elements []int) (Geometry, error) {
	if len(elements) == 0 {
		return nil, fmt.Errorf("spatial: empty element selection")
	}
	sub, err := m.subset(elements)
	if err != nil {
		return nil, err
	}
	return &SpectralArea{flexMesh: sub, Spectrum: m.Spectrum}, nil
}
