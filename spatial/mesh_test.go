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
	"math"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/ctessum/geom"
)

// testMesh2D is a unit square split into two triangles along the
// diagonal from (0, 0) to (1, 1).
func testMesh2D(t *testing.T) *Mesh2D {
	t.Helper()
	nodes := NodeData{
		X:    []float64{0, 1, 1, 0},
		Y:    []float64{0, 0, 1, 1},
		Z:    []float64{-2, -4, -6, -8},
		Code: []int32{1, 1, 1, 1},
		ID:   []int32{1, 2, 3, 4},
	}
	elems := ElementData{
		Table: [][]int{{0, 1, 2}, {0, 2, 3}},
		ID:    []int32{1, 2},
	}
	m, err := NewMesh2D(nodes, elems, "LONG/LAT")
	if err != nil {
		t.Fatal(err)
	}
	return m
}

func TestMesh2DFindElements(t *testing.T) {
	m := testMesh2D(t)
	if !m.IsTriOnly() {
		t.Error("mesh should be triangles only")
	}

	idx := m.FindElements([]geom.Point{
		{X: 0.7, Y: 0.2}, // below the diagonal
		{X: 0.2, Y: 0.7}, // above the diagonal
		{X: 2, Y: 2},     // outside
	})
	if idx[0] != 0 {
		t.Errorf("point below the diagonal in element %d", idx[0])
	}
	if idx[1] != 1 {
		t.Errorf("point above the diagonal in element %d", idx[1])
	}
	if idx[2] != -1 {
		t.Errorf("outside point in element %d, want -1", idx[2])
	}
}

func TestMesh2DElementsInArea(t *testing.T) {
	m := testMesh2D(t)

	// centers are (2/3, 1/3) and (1/3, 2/3)
	all := m.ElementsInArea(BBox(0, 0, 1, 1))
	if len(all) != 2 {
		t.Errorf("box over the whole mesh selects %v", all)
	}
	lower := m.ElementsInArea(BBox(0.5, 0, 1, 0.5))
	if len(lower) != 1 || lower[0] != 0 {
		t.Errorf("lower-right box selects %v", lower)
	}
	none := m.ElementsInArea(BBox(5, 5, 6, 6))
	if len(none) != 0 {
		t.Errorf("far-away box selects %v", none)
	}

	// polygon areas select by element center too
	tri := m.ElementsInArea(PolygonArea([]geom.Point{{X: 0, Y: 0}, {X: 1, Y: 0}, {X: 1, Y: 1}, {X: 0, Y: 0}}))
	if len(tri) != 1 || tri[0] != 0 {
		t.Errorf("triangle area selects %v", tri)
	}
}

func TestMesh2DSubset(t *testing.T) {
	m := testMesh2D(t)

	// a single element degrades to a point at its center
	pt, err := m.Subset([]int{0})
	if err != nil {
		t.Fatal(err)
	}
	p, ok := pt.(Point2D)
	if !ok {
		t.Fatalf("single-element subset is %T, want Point2D", pt)
	}
	if math.Abs(p.X-2.0/3) > 1e-12 || math.Abs(p.Y-1.0/3) > 1e-12 {
		t.Errorf("point at (%g, %g)", p.X, p.Y)
	}

	// node renumbering keeps only the used nodes
	sub, err := m.Subset([]int{1, 0})
	if err != nil {
		t.Fatal(err)
	}
	sm := sub.(*Mesh2D)
	if sm.NNodes() != 4 || sm.NElements() != 2 {
		t.Errorf("subset has %d nodes, %d elements", sm.NNodes(), sm.NElements())
	}

	nodeIdx, err := m.SubsetNodes([]int{1})
	if err != nil {
		t.Fatal(err)
	}
	want := []int{0, 2, 3}
	if len(nodeIdx) != len(want) {
		t.Fatalf("subset nodes %v, want %v", nodeIdx, want)
	}
	for i := range want {
		if nodeIdx[i] != want[i] {
			t.Errorf("subset nodes %v, want %v", nodeIdx, want)
			break
		}
	}

	if _, err := m.Subset(nil); err == nil {
		t.Error("empty selection should fail")
	}
	if _, err := m.Subset([]int{9}); err == nil {
		t.Error("out-of-range element should fail")
	}
}

func TestMesh3DFindElements(t *testing.T) {
	nodes := NodeData{
		X:    []float64{0, 1, 1, 0},
		Y:    []float64{0, 0, 1, 1},
		Z:    []float64{-2, -4, -6, -8},
		Code: []int32{1, 1, 1, 1},
		ID:   []int32{1, 2, 3, 4},
	}
	elems := ElementData{
		Table: [][]int{{0, 1, 2}, {0, 2, 3}},
		ID:    []int32{1, 2},
	}
	m, err := NewMesh3D(nodes, elems, "LONG/LAT", 4, 4)
	if err != nil {
		t.Fatal(err)
	}
	if m.NLayers() != 4 || m.NSigmaLayers() != 4 {
		t.Errorf("layers %d/%d", m.NLayers(), m.NSigmaLayers())
	}

	// layered lookup is by nearest center, so points outside still
	// resolve to an element
	idx := m.FindElements([]geom.Point{{X: 5, Y: 0}})
	if idx[0] != 0 {
		t.Errorf("nearest element %d", idx[0])
	}

	if _, err := NewMesh3D(nodes, elems, "LONG/LAT", 2, 3); err == nil {
		t.Error("n_sigma > n_layers should fail")
	}
}

func TestBoundaryCodes(t *testing.T) {
	nodes := NodeData{
		X:    []float64{0, 1, 1, 0},
		Y:    []float64{0, 0, 1, 1},
		Z:    []float64{0, 0, 0, 0},
		Code: []int32{2, 0, 5, 2},
		ID:   []int32{1, 2, 3, 4},
	}
	elems := ElementData{Table: [][]int{{0, 1, 2, 3}}, ID: []int32{1}}
	m, err := NewMesh2D(nodes, elems, "")
	if err != nil {
		t.Fatal(err)
	}
	codes := m.BoundaryCodes()
	if len(codes) != 2 || codes[0] != 2 || codes[1] != 5 {
		t.Errorf("boundary codes %v, want [2 5]", codes)
	}
	if m.IsTriOnly() {
		t.Error("quad mesh reported as triangles only")
	}
}

func TestDirectionsFromRadians(t *testing.T) {
	deg := DirectionsFromRadians([]float64{0, math.Pi / 2, math.Pi})
	want := []float64{0, 90, 180}
	for i := range want {
		if math.Abs(deg[i]-want[i]) > 1e-10 {
			t.Errorf("direction %d: got %g, want %g", i, deg[i], want[i])
		}
	}
	if DirectionsFromRadians(nil) != nil {
		t.Error("nil directions should stay nil")
	}
}

func TestWriteMeshFile(t *testing.T) {
	m := testMesh2D(t)
	path := filepath.Join(t.TempDir(), "square.mesh")
	if err := WriteMeshFile(path, m); err != nil {
		t.Fatal(err)
	}
	b, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	lines := strings.Split(strings.TrimRight(string(b), "\n"), "\n")

	// header, 4 node lines, element section header, 2 element lines
	if len(lines) != 8 {
		t.Fatalf("mesh file has %d lines:\n%s", len(lines), string(b))
	}
	header := strings.Fields(lines[0])
	if header[0] != "100079" || header[1] != "1000" || header[2] != "4" {
		t.Errorf("header %q", lines[0])
	}
	elemHeader := strings.Fields(lines[5])
	if elemHeader[0] != "2" || elemHeader[1] != "3" || elemHeader[2] != "21" {
		t.Errorf("element section header %q", lines[5])
	}
	// connectivity is written 1-based
	if fields := strings.Fields(lines[6]); fields[1] != "1" || fields[2] != "2" || fields[3] != "3" {
		t.Errorf("first element row %q", lines[6])
	}
}
